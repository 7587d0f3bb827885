// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package heatmiser implements the master side of the Heatmiser V3 serial
// protocol.
//
// The bus is a shared, half-duplex RS-485 line with up to 32 addressable
// thermostats. This package builds request frames, checks response frames,
// enforces the bus timing rules and retries transient failures. It knows
// nothing about what the bytes of a device control block mean; see package
// dcb for that.
package heatmiser

import "fmt"

// Bus addresses
const (
	MasterAddressMin     = 0x81
	MasterAddressMax     = 0xA0
	DefaultMasterAddress = 0x81

	SlaveAddressMin = 1
	SlaveAddressMax = 32

	BroadcastAddress = 0xFF
)

// Frame geometry
const (
	RequestHeaderSize      = 8 // dest, len, source, fn, start(2), length(2)
	ReadResponseHeaderSize = 9 // dest, len(2), source, fn, start(2), length(2)
	CRCSize                = 2
	WriteAckSize           = 7 // dest, len(2), source, fn, crc(2)
	ReadResponseOverhead   = ReadResponseHeaderSize + CRCSize

	MaxWritePayload = 100
	MaxFrameSize    = 512
)

// Read-all request geometry
const (
	ReadAllStart  = 0x0000
	ReadAllLength = 0xFFFF
)

// Function is the protocol function code carried in every frame.
type Function uint8

// Function codes
const (
	FunctionRead  Function = 0
	FunctionWrite Function = 1
)

func (f Function) String() string {
	switch f {
	case FunctionRead:
		return "READ"
	case FunctionWrite:
		return "WRITE"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(f))
	}
}

// Valid reports whether f is a known function code.
func (f Function) Valid() bool {
	return f == FunctionRead || f == FunctionWrite
}

// IsMasterAddress reports whether addr lies in the master address range.
func IsMasterAddress(addr uint8) bool {
	return addr >= MasterAddressMin && addr <= MasterAddressMax
}

// IsSlaveAddress reports whether addr lies in the slave address range.
func IsSlaveAddress(addr uint8) bool {
	return addr >= SlaveAddressMin && addr <= SlaveAddressMax
}
