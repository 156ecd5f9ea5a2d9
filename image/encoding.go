package image

import (
	"math"

	"github.com/tetratelabs/wazero/api"
)

// EncodeULEB128 encodes an unsigned value in LEB128 format.
func EncodeULEB128(v uint32) []byte {
	var result []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		result = append(result, b)
		if v == 0 {
			break
		}
	}
	return result
}

// EncodeSLEB128 encodes a signed value in LEB128 format.
func EncodeSLEB128[T int32 | int64](v T) []byte {
	var result []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			result = append(result, b)
			break
		}
		result = append(result, b|0x80)
	}
	return result
}

// DecodeULEB128 decodes an unsigned LEB128 value and returns the number of
// bytes consumed.
func DecodeULEB128(data []byte) (uint32, int) {
	var result uint32
	var shift uint32
	for i, b := range data {
		result |= uint32(b&0x7F) << shift
		if b&0x80 == 0 {
			return result, i + 1
		}
		shift += 7
		if shift > 35 {
			return result, i + 1
		}
	}
	return result, len(data)
}

func valType(t api.ValueType) byte {
	switch t {
	case api.ValueTypeI32:
		return 0x7f
	case api.ValueTypeI64:
		return 0x7e
	case api.ValueTypeF32:
		return 0x7d
	case api.ValueTypeF64:
		return 0x7c
	default:
		return 0x7f
	}
}

func name(s string) []byte {
	return append(EncodeULEB128(uint32(len(s))), s...)
}

func section(id byte, body []byte) []byte {
	out := []byte{id}
	out = append(out, EncodeULEB128(uint32(len(body)))...)
	return append(out, body...)
}

// Instruction encoders for function bodies.

func LocalGet(i uint32) []byte  { return append([]byte{0x20}, EncodeULEB128(i)...) }
func LocalSet(i uint32) []byte  { return append([]byte{0x21}, EncodeULEB128(i)...) }
func GlobalGet(i uint32) []byte { return append([]byte{0x23}, EncodeULEB128(i)...) }
func GlobalSet(i uint32) []byte { return append([]byte{0x24}, EncodeULEB128(i)...) }
func Call(fn uint32) []byte     { return append([]byte{0x10}, EncodeULEB128(fn)...) }
func I32Const(v int32) []byte   { return append([]byte{0x41}, EncodeSLEB128(v)...) }
func I64Const(v int64) []byte   { return append([]byte{0x42}, EncodeSLEB128(v)...) }

func F64Const(v float64) []byte {
	bits := math.Float64bits(v)
	out := []byte{0x44}
	for i := 0; i < 8; i++ {
		out = append(out, byte(bits>>(8*i)))
	}
	return out
}

var (
	Unreachable = []byte{0x00}
	Drop        = []byte{0x1a}
	I32Add      = []byte{0x6a}
	I32Sub      = []byte{0x6b}
	I32Mul      = []byte{0x6c}
	I64Add      = []byte{0x7c}
	F64Add      = []byte{0xa0}
	F64Mul      = []byte{0xa2}
)
