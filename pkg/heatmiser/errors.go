// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package heatmiser

import (
	"errors"
	"fmt"
)

// Local errors. These are caused by the caller and are never retried.
var (
	ErrPayloadLength   = errors.New("heatmiser: write payload length does not match declared length")
	ErrPayloadTooLarge = errors.New("heatmiser: write payload too large")
	ErrInvalidAddress  = errors.New("heatmiser: invalid device address")
	ErrInvalidFunction = errors.New("heatmiser: invalid function code")
)

// Response sentinels, matched by *ResponseError through errors.Is.
var (
	ErrResponse         = errors.New("heatmiser: invalid response")
	ErrNoResponse       = errors.New("heatmiser: no response")
	ErrNoCRC            = errors.New("heatmiser: response too short to carry a checksum")
	ErrBadCRC           = errors.New("heatmiser: response checksum mismatch")
	ErrLengthMismatch   = errors.New("heatmiser: response length mismatch")
	ErrAddressMismatch  = errors.New("heatmiser: response address mismatch")
	ErrFunctionMismatch = errors.New("heatmiser: response function mismatch")
)

// ResponseKind classifies a frame validation failure.
type ResponseKind int

const (
	KindNoResponse ResponseKind = iota
	KindNoCRC
	KindCRC
	KindLength
	KindAddress
	KindFunction
)

func (k ResponseKind) String() string {
	switch k {
	case KindNoResponse:
		return "no response"
	case KindNoCRC:
		return "no crc"
	case KindCRC:
		return "bad crc"
	case KindLength:
		return "length"
	case KindAddress:
		return "address"
	case KindFunction:
		return "function"
	default:
		return "unknown"
	}
}

// ResponseError is a frame validation failure. These are transient and are
// retried by Client.
type ResponseError struct {
	Kind    ResponseKind
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (e *ResponseError) Error() string {
	return e.Message
}

// Is matches ErrResponse and the sentinel for the error's kind.
func (e *ResponseError) Is(target error) bool {
	if target == ErrResponse {
		return true
	}
	switch e.Kind {
	case KindNoResponse:
		return target == ErrNoResponse
	case KindNoCRC:
		return target == ErrNoCRC
	case KindCRC:
		return target == ErrBadCRC
	case KindLength:
		return target == ErrLengthMismatch
	case KindAddress:
		return target == ErrAddressMismatch
	case KindFunction:
		return target == ErrFunctionMismatch
	}
	return false
}

func responseError(kind ResponseKind, details map[string]interface{}, format string, args ...interface{}) *ResponseError {
	return &ResponseError{
		Kind:    kind,
		Message: "heatmiser: " + fmt.Sprintf(format, args...),
		Details: details,
	}
}

// TransportError is a serial I/O fault. The port is closed when one occurs
// and reopened by the next transaction.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("heatmiser: serial %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RetriesExhaustedError is returned once every attempt of a transaction has
// failed frame validation. Last holds the final cause.
type RetriesExhaustedError struct {
	Op       string
	Dest     uint8
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("heatmiser: %s to %d failed after %d attempts: %v", e.Op, e.Dest, e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Last
}

// Retryable reports whether err is a transient frame validation failure.
func Retryable(err error) bool {
	var re *ResponseError
	return errors.As(err, &re)
}
