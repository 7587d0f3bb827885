// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package heatmisertest

import "github.com/Thermoquad/heatmiser/pkg/heatmiser"

// ReadResponse builds a READ response frame from slave to master.
func ReadResponse(master, slave uint8, start uint16, payload []byte) []byte {
	total := heatmiser.ReadResponseOverhead + len(payload)
	frame := []byte{
		master, byte(total), byte(total >> 8),
		slave, byte(heatmiser.FunctionRead),
		byte(start), byte(start >> 8),
		byte(len(payload)), byte(len(payload) >> 8),
	}
	frame = append(frame, payload...)
	return heatmiser.AppendCRC(frame)
}

// WriteAck builds a WRITE acknowledgement frame from slave to master.
func WriteAck(master, slave uint8) []byte {
	return heatmiser.AppendCRC([]byte{master, heatmiser.WriteAckSize, 0, slave, byte(heatmiser.FunctionWrite)})
}

// Device answers requests for one bus address from an in-memory DCB.
type Device struct {
	Address uint8
	DCB     []byte

	Reads  int
	Writes int
}

// Handle answers a request frame addressed to d. Broadcast writes are
// applied without a reply.
func (d *Device) Handle(frame []byte) []byte {
	if len(frame) < heatmiser.RequestHeaderSize+heatmiser.CRCSize || !heatmiser.CheckCRC(frame) {
		return nil
	}
	dest, master, fn := frame[0], frame[2], heatmiser.Function(frame[3])
	if dest != d.Address && dest != heatmiser.BroadcastAddress {
		return nil
	}
	start := int(frame[4]) | int(frame[5])<<8
	length := int(frame[6]) | int(frame[7])<<8

	switch fn {
	case heatmiser.FunctionRead:
		if dest == heatmiser.BroadcastAddress {
			return nil
		}
		d.Reads++
		if start == heatmiser.ReadAllStart && length == heatmiser.ReadAllLength {
			return ReadResponse(master, d.Address, 0, d.DCB)
		}
		if start+length > len(d.DCB) {
			return nil
		}
		return ReadResponse(master, d.Address, uint16(start), d.DCB[start:start+length])
	case heatmiser.FunctionWrite:
		payload := frame[heatmiser.RequestHeaderSize : len(frame)-heatmiser.CRCSize]
		if start+len(payload) > len(d.DCB) {
			return nil
		}
		d.Writes++
		copy(d.DCB[start:], payload)
		if dest == heatmiser.BroadcastAddress {
			return nil
		}
		return WriteAck(master, d.Address)
	}
	return nil
}
