// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package heatmiser

// Nibble lookup tables, one per accumulator byte.
var (
	crcTableHigh = [16]byte{
		0x00, 0x10, 0x20, 0x30, 0x40, 0x50, 0x60, 0x70,
		0x81, 0x91, 0xA1, 0xB1, 0xC1, 0xD1, 0xE1, 0xF1,
	}
	crcTableLow = [16]byte{
		0x00, 0x21, 0x42, 0x63, 0x84, 0xA5, 0xC6, 0xE7,
		0x08, 0x29, 0x4A, 0x6B, 0x8C, 0xAD, 0xCE, 0xEF,
	}
)

const crcInitial = 0xFF

type crcState struct {
	high byte
	low  byte
}

func (c *crcState) update(nibble byte) {
	t := (c.high >> 4) ^ nibble
	c.high = (c.high << 4) | (c.low >> 4)
	c.low <<= 4
	c.high ^= crcTableHigh[t]
	c.low ^= crcTableLow[t]
}

// CRC16 computes the frame checksum of data. The result is in wire order:
// low byte first, then high byte.
func CRC16(data []byte) [2]byte {
	c := crcState{high: crcInitial, low: crcInitial}
	for _, b := range data {
		c.update(b >> 4)
		c.update(b & 0x0F)
	}
	return [2]byte{c.low, c.high}
}

// AppendCRC appends the checksum of msg to msg.
func AppendCRC(msg []byte) []byte {
	crc := CRC16(msg)
	return append(msg, crc[0], crc[1])
}

// CheckCRC reports whether the last two bytes of frame are the checksum of
// the bytes before them.
func CheckCRC(frame []byte) bool {
	if len(frame) < CRCSize {
		return false
	}
	body := frame[:len(frame)-CRCSize]
	crc := CRC16(body)
	return frame[len(frame)-2] == crc[0] && frame[len(frame)-1] == crc[1]
}
