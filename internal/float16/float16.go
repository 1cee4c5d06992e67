// Package float16 implements IEEE 754 binary16 conversions for the
// half-precision GEMM entry points and their tests. Device kernels operate
// on f16 natively; the host only converts at the API boundary.
package float16

import "math"

// F16 is the bit pattern of a 16-bit floating point number.
type F16 uint16

const (
	signMask     = 0x8000
	exponentMask = 0x7C00
	mantissaMask = 0x03FF
	exponentBias = 15
	mantissaBits = 10
)

// Float32 widens f to float32.
func (f F16) Float32() float32 {
	sign := uint32(f&signMask) << 16
	exponent := (f & exponentMask) >> mantissaBits
	mantissa := f & mantissaMask

	switch {
	case exponent == 0:
		if mantissa == 0 {
			return math.Float32frombits(sign) // signed zero
		}
		// Subnormal: renormalize into the float32 range.
		exp := uint32(1)
		for mantissa&0x200 == 0 {
			mantissa <<= 1
			exp++
		}
		mantissa &= 0x1FF
		exponentBits := 127 - exponentBias - exp + 1
		return math.Float32frombits(sign | (exponentBits << 23) | (uint32(mantissa) << 14))
	case exponent == 0x1F:
		if mantissa == 0 {
			return math.Float32frombits(sign | 0x7F800000) // infinity
		}
		return math.Float32frombits(sign | 0x7FC00000 | (uint32(mantissa) << 13)) // NaN
	default:
		return math.Float32frombits(sign | ((uint32(exponent) + 127 - exponentBias) << 23) | (uint32(mantissa) << 13))
	}
}

// FromFloat32 narrows f to binary16, rounding toward zero. Values outside
// the representable range become signed infinity; subnormal results flush
// to zero.
func FromFloat32(f float32) F16 {
	bits := math.Float32bits(f)
	sign := (bits >> 16) & signMask
	exponent := (bits >> 23) & 0xFF
	mantissa := bits & 0x7FFFFF

	if exponent == 0xFF {
		if mantissa == 0 {
			return F16(sign | exponentMask) // infinity
		}
		return F16(sign | exponentMask | (mantissa >> 13)) // NaN
	}

	exp := int(exponent) - 127 + exponentBias
	switch {
	case exp <= 0:
		return F16(sign)
	case exp >= 0x1F:
		return F16(sign | exponentMask)
	default:
		return F16(uint32(sign) | (uint32(exp) << mantissaBits) | (mantissa >> 13))
	}
}

// Encode converts a float32 slice into little-endian binary16 bytes.
func Encode(src []float32) []byte {
	out := make([]byte, len(src)*2)
	for i, v := range src {
		h := FromFloat32(v)
		out[i*2] = byte(h)
		out[i*2+1] = byte(h >> 8)
	}
	return out
}

// Decode converts little-endian binary16 bytes into float32 values.
func Decode(src []byte) []float32 {
	out := make([]float32, len(src)/2)
	for i := range out {
		h := F16(uint16(src[i*2]) | uint16(src[i*2+1])<<8)
		out[i] = h.Float32()
	}
	return out
}

// FromUint16 reinterprets raw binary16 bit patterns as float32 values.
func FromUint16(src []uint16) []float32 {
	out := make([]float32, len(src))
	for i, h := range src {
		out[i] = F16(h).Float32()
	}
	return out
}

// ToUint16 narrows float32 values to raw binary16 bit patterns.
func ToUint16(src []float32) []uint16 {
	out := make([]uint16, len(src))
	for i, v := range src {
		out[i] = uint16(FromFloat32(v))
	}
	return out
}
