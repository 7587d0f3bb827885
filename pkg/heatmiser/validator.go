// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package heatmiser

// UnknownLength marks an Expectation whose payload length is not known in
// advance, as for a read-all request.
const UnknownLength = -1

// Expectation describes the response a request should produce.
type Expectation struct {
	Source   uint8 // slave the request was sent to
	Dest     uint8 // our own master address
	Function Function
	Length   int // expected READ payload length, or UnknownLength
}

// VerifyResponse checks a response frame against what the request expected.
// Checks run in order (checksum, length, address, function) and stop at the
// first failure. Every failure is a *ResponseError.
func VerifyResponse(exp Expectation, frame []byte) error {
	if len(frame) == 0 {
		return responseError(KindNoResponse, nil, "no response from %d", exp.Source)
	}
	if len(frame) < WriteAckSize {
		return responseError(KindNoCRC, map[string]interface{}{"length": len(frame)},
			"response too short to carry a checksum (%d bytes)", len(frame))
	}

	if err := verifyCRC(frame); err != nil {
		return err
	}
	if err := verifyLength(exp, frame); err != nil {
		return err
	}
	if err := verifyAddresses(exp, frame); err != nil {
		return err
	}
	return verifyFunction(exp, frame)
}

func verifyCRC(frame []byte) error {
	if CheckCRC(frame) {
		return nil
	}
	n := len(frame)
	expected := CRC16(frame[:n-CRCSize])
	return responseError(KindCRC,
		map[string]interface{}{"expected": expected, "got": [2]byte{frame[n-2], frame[n-1]}},
		"CRC mismatch: expected %02X%02X, got %02X%02X", expected[0], expected[1], frame[n-2], frame[n-1])
}

func verifyLength(exp Expectation, frame []byte) error {
	declared := declaredLength(frame)
	if declared != len(frame) {
		return responseError(KindLength,
			map[string]interface{}{"declared": declared, "actual": len(frame)},
			"declared length %d does not match received %d bytes", declared, len(frame))
	}

	switch exp.Function {
	case FunctionRead:
		if exp.Length == UnknownLength {
			if declared < ReadResponseOverhead {
				return responseError(KindLength,
					map[string]interface{}{"declared": declared, "minimum": ReadResponseOverhead},
					"read response length %d below minimum %d", declared, ReadResponseOverhead)
			}
			return nil
		}
		if want := ReadResponseOverhead + exp.Length; declared != want {
			return responseError(KindLength,
				map[string]interface{}{"declared": declared, "expected": want},
				"read response length %d, expected %d", declared, want)
		}
	case FunctionWrite:
		if declared != WriteAckSize {
			return responseError(KindLength,
				map[string]interface{}{"declared": declared, "expected": WriteAckSize},
				"write acknowledgement length %d, expected %d", declared, WriteAckSize)
		}
	}
	return nil
}

func verifyAddresses(exp Expectation, frame []byte) error {
	dest, source := frame[0], frame[3]

	if !IsMasterAddress(dest) {
		return responseError(KindAddress, map[string]interface{}{"dest": dest},
			"destination 0x%02X outside master range", dest)
	}
	if dest != exp.Dest {
		return responseError(KindAddress, map[string]interface{}{"dest": dest, "expected": exp.Dest},
			"destination 0x%02X, expected 0x%02X", dest, exp.Dest)
	}
	if !IsSlaveAddress(source) {
		return responseError(KindAddress, map[string]interface{}{"source": source},
			"source %d outside slave range", source)
	}
	if source != exp.Source {
		return responseError(KindAddress, map[string]interface{}{"source": source, "expected": exp.Source},
			"source %d, expected %d", source, exp.Source)
	}
	return nil
}

func verifyFunction(exp Expectation, frame []byte) error {
	fn := Function(frame[4])
	if !fn.Valid() {
		return responseError(KindFunction, map[string]interface{}{"function": uint8(fn)},
			"unknown function code %s", fn)
	}
	if fn != exp.Function {
		return responseError(KindFunction, map[string]interface{}{"function": fn, "expected": exp.Function},
			"function %s, expected %s", fn, exp.Function)
	}
	return nil
}
