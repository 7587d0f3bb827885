// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dcb

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownField = errors.New("dcb: unknown field")
	ErrReadOnly     = errors.New("dcb: field is read-only")
	ErrNotPresent   = errors.New("dcb: field not present on this device")
	ErrInvalid      = errors.New("dcb: invalid value")
	ErrBadData      = errors.New("dcb: invalid data from device")
	ErrUnexpected   = errors.New("dcb: unexpected value")
)

// ValidationType classifies a rejected caller value.
type ValidationType int

const (
	ValidationRange ValidationType = iota
	ValidationKind
	ValidationLength
)

// ValidationError is a caller-supplied value that cannot be written. It is
// raised before anything reaches the bus.
type ValidationError struct {
	Field   FieldID
	Type    ValidationType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("dcb: %s: %s", e.Field, e.Message)
}

// Is matches ErrInvalid.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// DataError is a value decoded from the device that fails validation.
type DataError struct {
	Field   FieldID
	Message string
	Raw     []byte
}

// Error implements the error interface
func (e *DataError) Error() string {
	return fmt.Sprintf("dcb: %s: %s (raw % X)", e.Field, e.Message, e.Raw)
}

// Is matches ErrBadData.
func (e *DataError) Is(target error) bool {
	return target == ErrBadData
}

// UnexpectedValueError is a field that disagrees with the value it must
// have, such as a model number that does not match configuration.
type UnexpectedValueError struct {
	Field    FieldID
	Expected string
	Got      string
}

// Error implements the error interface
func (e *UnexpectedValueError) Error() string {
	return fmt.Sprintf("dcb: %s is %s, expected %s", e.Field, e.Got, e.Expected)
}

// Is matches ErrUnexpected.
func (e *UnexpectedValueError) Is(target error) bool {
	return target == ErrUnexpected
}
