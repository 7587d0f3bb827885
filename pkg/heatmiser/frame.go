// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package heatmiser

import "fmt"

// FormFrame builds a complete request frame ready for transmission.
//
// The payload is only sent with FunctionWrite, where its length must match
// length and may not exceed MaxWritePayload. For FunctionRead the payload is
// ignored and length is the number of DCB bytes requested.
func FormFrame(dest, source uint8, fn Function, start, length uint16, payload []byte) ([]byte, error) {
	if !fn.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFunction, fn)
	}

	var body []byte
	if fn == FunctionWrite {
		if len(payload) != int(length) {
			return nil, fmt.Errorf("%w: declared %d, got %d", ErrPayloadLength, length, len(payload))
		}
		if len(payload) > MaxWritePayload {
			return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxWritePayload)
		}
		body = payload
	}

	total := RequestHeaderSize + len(body) + CRCSize
	frame := make([]byte, 0, total)
	frame = append(frame,
		dest,
		byte(total),
		source,
		byte(fn),
		byte(start&0xFF), byte(start>>8),
		byte(length&0xFF), byte(length>>8),
	)
	frame = append(frame, body...)

	return AppendCRC(frame), nil
}

// Response is a decoded response frame. Start, Length and Payload are only
// set for READ responses.
type Response struct {
	Dest     uint8
	Source   uint8
	Function Function
	Start    uint16
	Length   uint16
	Payload  []byte
}

// ParseResponse splits a response frame into its fields. The frame should
// already have passed VerifyResponse.
func ParseResponse(frame []byte) (*Response, error) {
	if len(frame) < WriteAckSize {
		return nil, responseError(KindNoCRC, map[string]interface{}{"length": len(frame)},
			"response too short (%d bytes)", len(frame))
	}

	r := &Response{
		Dest:     frame[0],
		Source:   frame[3],
		Function: Function(frame[4]),
	}
	if r.Function != FunctionRead {
		return r, nil
	}

	if len(frame) < ReadResponseOverhead {
		return nil, responseError(KindLength, map[string]interface{}{"length": len(frame)},
			"read response too short (%d bytes)", len(frame))
	}
	r.Start = uint16(frame[5]) | uint16(frame[6])<<8
	r.Length = uint16(frame[7]) | uint16(frame[8])<<8
	r.Payload = frame[ReadResponseHeaderSize : len(frame)-CRCSize]

	return r, nil
}

// declaredLength returns the two-byte total length field of a response.
func declaredLength(frame []byte) int {
	return int(frame[1]) | int(frame[2])<<8
}
