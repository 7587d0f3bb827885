// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package dcb maps thermostat fields onto the device control block (DCB),
// the byte array each thermostat exposes over the bus.
//
// Every field has a unique address that is the same on all device variants.
// An AddressMap, chosen by model and program mode, turns a unique address
// into a DCB offset or reports that the field is absent on that variant.
// A Registry holds one device's decoded field values and notifies listeners
// when they change. The Planner batches field reads into few transactions.
package dcb

import (
	"fmt"
	"time"

	"github.com/Thermoquad/heatmiser/pkg/schedule"
)

// FieldID identifies a field. It indexes a Registry's value table.
type FieldID int

// Fields in unique address order
const (
	DCBLength FieldID = iota
	Vendor
	Version
	ModelNumber
	TempFormat
	SwitchDiff
	FrostProtDisable
	CalOffset
	OutputDelay
	Address
	UpDownKeyLimit
	SensorsAvailable
	OptimStart
	RateOfChange
	ProgramMode
	FrostTemp
	SetRoomTemp
	FloorMaxLimit
	FloorMaxLimitEnable
	OnOff
	KeyLock
	RunMode
	HolidayHours
	TempHoldMins
	RemoteAirTemp
	FloorTemp
	AirTemp
	ErrorCode
	HeatingDemand
	HotWaterDemand
	CurrentTime
	WeekdayHeat
	WeekendHeat
	WeekdayWater
	WeekendWater
	MonHeat
	TueHeat
	WedHeat
	ThuHeat
	FriHeat
	SatHeat
	SunHeat
	MonWater
	TueWater
	WedWater
	ThuWater
	FriWater
	SatWater
	SunWater

	NumFields
)

// Age classes a field's freshness budget.
type Age int

const (
	AgeLong Age = iota
	AgeMedium
	AgeShort
	AgeUShort
)

// MaxAges gives the freshness budget of each Age.
type MaxAges struct {
	Long   time.Duration
	Medium time.Duration
	Short  time.Duration
	UShort time.Duration
}

// DefaultMaxAges returns the standard budgets.
func DefaultMaxAges() MaxAges {
	return MaxAges{
		Long:   24 * time.Hour,
		Medium: time.Hour,
		Short:  5 * time.Minute,
		UShort: 10 * time.Second,
	}
}

// For returns the budget for a.
func (m MaxAges) For(a Age) time.Duration {
	switch a {
	case AgeLong:
		return m.Long
	case AgeMedium:
		return m.Medium
	case AgeShort:
		return m.Short
	default:
		return m.UShort
	}
}

// Range is an inclusive bound on a value.
type Range struct {
	Min int
	Max int
}

// Field describes one field of the DCB.
type Field struct {
	ID       FieldID
	Name     string
	Address  int // unique address
	Width    int // bytes
	Divisor  int
	Ranges   []Range // cycles across the slots of multi-byte fields
	Enum     []int   // legal read values, when not a range
	Writes   []int   // legal write values, when they differ from reads
	Writable bool
	Age      Age

	// NoSensor marks a 2 byte reading where 0xFFFF means no sensor fitted.
	NoSensor bool
}

// Kind returns the value kind the field decodes to.
func (f *Field) Kind() Kind {
	switch f.Width {
	case 4:
		return KindClock
	case 12:
		return KindHeat
	case 16:
		return KindWater
	default:
		return KindNumber
	}
}

func (id FieldID) String() string {
	if id < 0 || id >= NumFields {
		return fmt.Sprintf("field(%d)", int(id))
	}
	return Fields[id].Name
}

// Valid reports whether id names a field.
func (id FieldID) Valid() bool {
	return id >= 0 && id < NumFields
}

// Field returns the descriptor of id.
func (id FieldID) Field() *Field {
	return &Fields[id]
}

var (
	bool01      = []Range{{0, 1}}
	timeRanges  = []Range{{1, 7}, {0, 23}, {0, 59}, {0, 59}}
	heatRanges  = []Range{{0, 24}, {0, 59}, {5, 35}}
	waterRanges = []Range{{0, 24}, {0, 59}}
)

// Fields is the schema shared by every device variant, indexed by FieldID.
var Fields = [NumFields]Field{
	DCBLength:           {Name: "dcblen", Address: 0, Width: 2, Age: AgeLong},
	Vendor:              {Name: "vendor", Address: 2, Width: 1, Ranges: bool01, Age: AgeLong},
	Version:             {Name: "version", Address: 3, Width: 1, Age: AgeLong},
	ModelNumber:         {Name: "model", Address: 4, Width: 1, Ranges: []Range{{0, 5}}, Age: AgeLong},
	TempFormat:          {Name: "tempformat", Address: 5, Width: 1, Ranges: bool01, Age: AgeLong},
	SwitchDiff:          {Name: "switchdiff", Address: 6, Width: 1, Ranges: []Range{{1, 3}}, Age: AgeLong},
	FrostProtDisable:    {Name: "frostprotdisable", Address: 7, Width: 1, Ranges: bool01, Writable: true, Age: AgeLong},
	CalOffset:           {Name: "caloffset", Address: 8, Width: 2, Age: AgeLong},
	OutputDelay:         {Name: "outputdelay", Address: 10, Width: 1, Ranges: []Range{{0, 15}}, Age: AgeLong},
	Address:             {Name: "address", Address: 11, Width: 1, Ranges: []Range{{1, 32}}, Age: AgeLong},
	UpDownKeyLimit:      {Name: "updwnkeylimit", Address: 12, Width: 1, Ranges: []Range{{0, 10}}, Age: AgeLong},
	SensorsAvailable:    {Name: "sensorsavailable", Address: 13, Width: 1, Ranges: []Range{{0, 4}}, Age: AgeLong},
	OptimStart:          {Name: "optimstart", Address: 14, Width: 1, Ranges: []Range{{0, 3}}, Age: AgeLong},
	RateOfChange:        {Name: "rateofchange", Address: 15, Width: 1, Age: AgeLong},
	ProgramMode:         {Name: "programmode", Address: 16, Width: 1, Ranges: bool01, Age: AgeLong},
	FrostTemp:           {Name: "frosttemp", Address: 17, Width: 1, Ranges: []Range{{7, 17}}, Writable: true, Age: AgeLong},
	SetRoomTemp:         {Name: "setroomtemp", Address: 18, Width: 1, Ranges: []Range{{5, 35}}, Writable: true, Age: AgeUShort},
	FloorMaxLimit:       {Name: "floormaxlimit", Address: 19, Width: 1, Ranges: []Range{{20, 45}}, Writable: true, Age: AgeLong},
	FloorMaxLimitEnable: {Name: "floormaxlimitenable", Address: 20, Width: 1, Ranges: bool01, Age: AgeLong},
	OnOff:               {Name: "onoff", Address: 21, Width: 1, Ranges: bool01, Writable: true, Age: AgeShort},
	KeyLock:             {Name: "keylock", Address: 22, Width: 1, Ranges: bool01, Writable: true, Age: AgeShort},
	RunMode:             {Name: "runmode", Address: 23, Width: 1, Ranges: bool01, Writable: true, Age: AgeShort},
	HolidayHours:        {Name: "holidayhours", Address: 24, Width: 2, Ranges: []Range{{0, 720}}, Writable: true, Age: AgeShort},
	TempHoldMins:        {Name: "tempholdmins", Address: 32, Width: 2, Ranges: []Range{{0, 5760}}, Writable: true, Age: AgeShort},
	RemoteAirTemp:       {Name: "remoteairtemp", Address: 34, Width: 2, Divisor: 10, NoSensor: true, Age: AgeUShort},
	FloorTemp:           {Name: "floortemp", Address: 36, Width: 2, Divisor: 10, NoSensor: true, Age: AgeUShort},
	AirTemp:             {Name: "airtemp", Address: 38, Width: 2, Divisor: 10, NoSensor: true, Age: AgeUShort},
	ErrorCode:           {Name: "errorcode", Address: 40, Width: 1, Ranges: []Range{{0, 3}}, Age: AgeShort},
	HeatingDemand:       {Name: "heatingdemand", Address: 41, Width: 1, Ranges: bool01, Age: AgeUShort},
	HotWaterDemand:      {Name: "hotwaterdemand", Address: 42, Width: 1, Enum: []int{0, 1}, Writes: []int{HotWaterProgram, HotWaterOn, HotWaterOff}, Writable: true, Age: AgeUShort},
	CurrentTime:         {Name: "currenttime", Address: 43, Width: 4, Ranges: timeRanges, Writable: true, Age: AgeUShort},
	WeekdayHeat:         {Name: "wday_heat", Address: 47, Width: 12, Ranges: heatRanges, Writable: true, Age: AgeMedium},
	WeekendHeat:         {Name: "wend_heat", Address: 59, Width: 12, Ranges: heatRanges, Writable: true, Age: AgeMedium},
	WeekdayWater:        {Name: "wday_water", Address: 71, Width: 16, Ranges: waterRanges, Writable: true, Age: AgeMedium},
	WeekendWater:        {Name: "wend_water", Address: 87, Width: 16, Ranges: waterRanges, Writable: true, Age: AgeMedium},
}

// Hot water demand write codes. Reads only ever return 0 (off) or 1 (on).
const (
	HotWaterProgram = 0
	HotWaterOn      = 1
	HotWaterOff     = 2
)

var dayNames = [7]string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

func init() {
	for i, day := range dayNames {
		Fields[MonHeat+FieldID(i)] = Field{
			Name: day + "_heat", Address: 103 + 12*i, Width: 12,
			Ranges: heatRanges, Writable: true, Age: AgeMedium,
		}
		Fields[MonWater+FieldID(i)] = Field{
			Name: day + "_water", Address: 187 + 16*i, Width: 16,
			Ranges: waterRanges, Writable: true, Age: AgeMedium,
		}
	}
	for i := range Fields {
		Fields[i].ID = FieldID(i)
		if Fields[i].Divisor == 0 {
			Fields[i].Divisor = 1
		}
		byName[Fields[i].Name] = FieldID(i)
	}
}

var byName = make(map[string]FieldID, NumFields)

// Lookup returns the field called name.
func Lookup(name string) (FieldID, bool) {
	id, ok := byName[name]
	return id, ok
}

// Names returns every field name in unique address order.
func Names() []string {
	out := make([]string, NumFields)
	for i := range Fields {
		out[i] = Fields[i].Name
	}
	return out
}

// HeatFields returns the heating schedule fields holding each bucket in
// mode, in bucket order.
func HeatFields(m schedule.Mode) []FieldID {
	if m == schedule.ModeWeek {
		return []FieldID{WeekdayHeat, WeekendHeat}
	}
	return []FieldID{MonHeat, TueHeat, WedHeat, ThuHeat, FriHeat, SatHeat, SunHeat}
}

// WaterFields returns the water schedule fields in bucket order.
func WaterFields(m schedule.Mode) []FieldID {
	if m == schedule.ModeWeek {
		return []FieldID{WeekdayWater, WeekendWater}
	}
	return []FieldID{MonWater, TueWater, WedWater, ThuWater, FriWater, SatWater, SunWater}
}
