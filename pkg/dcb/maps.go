// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dcb

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Thermoquad/heatmiser/pkg/schedule"
)

// Model is the device model number reported in the model field.
type Model int

const (
	ModelDT    Model = 0
	ModelDTE   Model = 1
	ModelPRT   Model = 2
	ModelPRTE  Model = 3
	ModelPRTHW Model = 4
	ModelTM1   Model = 5
)

var modelNames = map[Model]string{
	ModelDT:    "DT",
	ModelDTE:   "DT-E",
	ModelPRT:   "PRT",
	ModelPRTE:  "PRT-E",
	ModelPRTHW: "PRT-HW",
	ModelTM1:   "TM1",
}

func (m Model) String() string {
	if name, ok := modelNames[m]; ok {
		return name
	}
	return fmt.Sprintf("model(%d)", int(m))
}

// ParseModel parses a model name such as "PRT-E" or "prt_hw".
func ParseModel(s string) (Model, error) {
	norm := strings.ToUpper(strings.ReplaceAll(s, "_", "-"))
	for m, name := range modelNames {
		if name == norm || strings.ReplaceAll(name, "-", "") == norm {
			return m, nil
		}
	}
	return 0, fmt.Errorf("dcb: unknown model %q", s)
}

// HasHotWater reports whether the model controls hot water.
func (m Model) HasHotWater() bool {
	return m == ModelPRTHW
}

// Supported reports whether the model has an address map.
func (m Model) Supported() bool {
	return m == ModelPRT || m == ModelPRTE || m == ModelPRTHW
}

var (
	ErrUnsupportedModel = errors.New("dcb: unsupported model")
	ErrBadAddressMap    = errors.New("dcb: malformed address map")
)

// Invalid marks a map entry whose addresses are absent on the device.
const Invalid = -1

// MapEntry covers unique addresses up to and including Bound. Offset is
// subtracted from a unique address to get its DCB address.
type MapEntry struct {
	Bound  int
	Offset int
}

// AddressMap translates unique addresses into DCB addresses for one device
// variant. Entries are ordered by strictly increasing Bound.
type AddressMap []MapEntry

var (
	mapStdWeek = AddressMap{{25, 0}, {31, Invalid}, {41, 6}, {42, Invalid}, {70, 7}, {298, Invalid}}
	mapStdDay  = AddressMap{{25, 0}, {31, Invalid}, {41, 6}, {42, Invalid}, {70, 7}, {102, Invalid}, {186, 39}, {298, Invalid}}
	mapHWWeek  = AddressMap{{25, 0}, {31, Invalid}, {102, 6}, {298, Invalid}}
	mapHWDay   = AddressMap{{25, 0}, {31, Invalid}, {298, 6}}
)

// MapFor returns the address map of a model in a program mode.
func MapFor(model Model, mode schedule.Mode) (AddressMap, error) {
	if !model.Supported() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedModel, model)
	}
	switch {
	case model.HasHotWater() && mode == schedule.ModeDay:
		return mapHWDay, nil
	case model.HasHotWater():
		return mapHWWeek, nil
	case mode == schedule.ModeDay:
		return mapStdDay, nil
	default:
		return mapStdWeek, nil
	}
}

// Validate checks that bounds strictly increase and at least one entry is
// present.
func (m AddressMap) Validate() error {
	valid := false
	for i, e := range m {
		if i > 0 && e.Bound <= m[i-1].Bound {
			return fmt.Errorf("%w: bound %d at entry %d does not increase", ErrBadAddressMap, e.Bound, i)
		}
		if e.Offset != Invalid {
			valid = true
		}
	}
	if !valid {
		return fmt.Errorf("%w: no present addresses", ErrBadAddressMap)
	}
	return nil
}

// DCBAddress maps a unique address to its DCB address. It reports false
// when the address falls in a gap or beyond the map.
func (m AddressMap) DCBAddress(unique int) (int, bool) {
	for _, e := range m {
		if e.Bound >= unique {
			if e.Offset == Invalid {
				return 0, false
			}
			return unique - e.Offset, true
		}
	}
	return 0, false
}

// Length is the DCB size in bytes for this variant.
func (m AddressMap) Length() int {
	n := 0
	for _, e := range m {
		if e.Offset == Invalid {
			continue
		}
		if l := e.Bound - e.Offset + 1; l > n {
			n = l
		}
	}
	return n
}

// Locate returns the DCB address of a field if every byte of it is present.
func (m AddressMap) Locate(id FieldID) (int, bool) {
	f := id.Field()
	start, ok := m.DCBAddress(f.Address)
	if !ok {
		return 0, false
	}
	end, ok := m.DCBAddress(f.Address + f.Width - 1)
	if !ok || end != start+f.Width-1 {
		return 0, false
	}
	return start, true
}

// contiguous reports whether the unique addresses from a to b inclusive map
// onto consecutive DCB bytes.
func (m AddressMap) contiguous(a, b int) bool {
	da, ok := m.DCBAddress(a)
	if !ok {
		return false
	}
	db, ok := m.DCBAddress(b)
	return ok && db-da == b-a
}
