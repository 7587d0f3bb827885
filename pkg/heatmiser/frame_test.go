// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package heatmiser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================
// FormFrame Tests
// ============================================================

func TestFormFrameWrite(t *testing.T) {
	frame, err := FormFrame(5, 129, FunctionWrite, 34, 1, []byte{255})
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 11, 129, 1, 34, 0, 1, 0, 255, 222, 138}, frame)
}

func TestFormFrameRead(t *testing.T) {
	frame, err := FormFrame(5, 129, FunctionRead, 34, 8, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 10, 129, 0, 34, 0, 8, 0, 193, 72}, frame)

	// A payload passed with a read is not transmitted.
	frame, err = FormFrame(5, 129, FunctionRead, 34, 8, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, frame, RequestHeaderSize+CRCSize)
}

func TestFormFrameReadAll(t *testing.T) {
	frame, err := FormFrame(1, 0x81, FunctionRead, ReadAllStart, ReadAllLength, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 10, 0x81, 0, 0, 0, 0xFF, 0xFF}, frame[:8])
	assert.True(t, CheckCRC(frame))
}

func TestFormFrameRejects(t *testing.T) {
	tests := []struct {
		name    string
		fn      Function
		length  uint16
		payload []byte
		want    error
	}{
		{"length disagrees", FunctionWrite, 2, []byte{1}, ErrPayloadLength},
		{"too large", FunctionWrite, 101, make([]byte, 101), ErrPayloadTooLarge},
		{"unknown function", Function(7), 0, nil, ErrInvalidFunction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FormFrame(5, 129, tt.fn, 0, tt.length, tt.payload)
			assert.ErrorIs(t, err, tt.want)
			assert.False(t, Retryable(err))
		})
	}
}

func TestFormFrameMaxPayload(t *testing.T) {
	frame, err := FormFrame(5, 129, FunctionWrite, 0, MaxWritePayload, make([]byte, MaxWritePayload))
	require.NoError(t, err)
	assert.Len(t, frame, RequestHeaderSize+MaxWritePayload+CRCSize)
	assert.Equal(t, byte(len(frame)), frame[1])
}

// ============================================================
// ParseResponse Tests
// ============================================================

func TestParseReadResponse(t *testing.T) {
	frame := AppendCRC([]byte{0x81, 13, 0, 5, 0, 34, 0, 2, 0, 0xAA, 0xBB})
	resp, err := ParseResponse(frame)
	require.NoError(t, err)

	assert.Equal(t, uint8(0x81), resp.Dest)
	assert.Equal(t, uint8(5), resp.Source)
	assert.Equal(t, FunctionRead, resp.Function)
	assert.Equal(t, uint16(34), resp.Start)
	assert.Equal(t, uint16(2), resp.Length)
	assert.Equal(t, []byte{0xAA, 0xBB}, resp.Payload)
}

func TestParseWriteAck(t *testing.T) {
	resp, err := ParseResponse(AppendCRC([]byte{0x81, 7, 0, 5, 1}))
	require.NoError(t, err)
	assert.Equal(t, FunctionWrite, resp.Function)
	assert.Nil(t, resp.Payload)
}

func TestParseResponseTooShort(t *testing.T) {
	_, err := ParseResponse([]byte{0x81, 7})
	assert.ErrorIs(t, err, ErrNoCRC)

	_, err = ParseResponse(AppendCRC([]byte{0x81, 9, 0, 5, 0, 0, 0}))
	assert.ErrorIs(t, err, ErrLengthMismatch)
}
