// Package vectorenc encodes embedding vectors for storage. The raw float32
// encoding round-trips exactly; the quantized encodings are lossy:
//
//	int8    uniform quantization with per-vector min/max,
//	        reconstruction error <= (max-min)/255/2 per component
//	float16 IEEE 754 half precision, ~3 decimal digits
//	binary  sign bit only, decodes to +1/-1
//
// Encoded blobs are self-describing: a one-byte tag precedes the payload.
package vectorenc

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// Encoding identifies a vector storage format.
type Encoding string

const (
	Float32 Encoding = "float32"
	Int8    Encoding = "int8"
	Float16 Encoding = "float16"
	Binary  Encoding = "binary"
)

const (
	tagFloat32 byte = 0x01
	tagInt8    byte = 0x02
	tagFloat16 byte = 0x03
	tagBinary  byte = 0x04
)

// Parse validates an encoding name.
func Parse(name string) (Encoding, error) {
	switch Encoding(name) {
	case Float32, Int8, Float16, Binary:
		return Encoding(name), nil
	}
	return "", errors.Errorf("unknown vector encoding %q", name)
}

// Encode serializes a vector using the given encoding.
func Encode(enc Encoding, vec []float32) ([]byte, error) {
	if len(vec) == 0 {
		return nil, errors.New("cannot encode empty vector")
	}
	switch enc {
	case Float32:
		return encodeFloat32(vec), nil
	case Int8:
		return encodeInt8(vec), nil
	case Float16:
		return encodeFloat16(vec), nil
	case Binary:
		return encodeBinary(vec), nil
	}
	return nil, errors.Errorf("unknown vector encoding %q", enc)
}

// Decode reconstructs a vector from an encoded blob.
func Decode(data []byte) ([]float32, error) {
	if len(data) < 1 {
		return nil, errors.New("encoded vector is empty")
	}
	tag, payload := data[0], data[1:]
	switch tag {
	case tagFloat32:
		return decodeFloat32(payload)
	case tagInt8:
		return decodeInt8(payload)
	case tagFloat16:
		return decodeFloat16(payload)
	case tagBinary:
		return decodeBinary(payload)
	}
	return nil, errors.Errorf("unknown vector encoding tag 0x%02x", tag)
}

func encodeFloat32(vec []float32) []byte {
	buf := make([]byte, 1+4*len(vec))
	buf[0] = tagFloat32
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[1+4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeFloat32(payload []byte) ([]float32, error) {
	if len(payload)%4 != 0 {
		return nil, errors.Errorf("float32 payload length %d not a multiple of 4", len(payload))
	}
	vec := make([]float32, len(payload)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[4*i:]))
	}
	return vec, nil
}

// int8 layout: min float32, max float32, then one byte per component.
func encodeInt8(vec []float32) []byte {
	minV, maxV := vec[0], vec[0]
	for _, v := range vec[1:] {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}

	buf := make([]byte, 1+8+len(vec))
	buf[0] = tagInt8
	binary.LittleEndian.PutUint32(buf[1:], math.Float32bits(minV))
	binary.LittleEndian.PutUint32(buf[5:], math.Float32bits(maxV))

	scale := maxV - minV
	for i, v := range vec {
		var q byte
		if scale > 0 {
			q = byte(math.Round(float64((v - minV) / scale * 255)))
		}
		buf[9+i] = q
	}
	return buf
}

func decodeInt8(payload []byte) ([]float32, error) {
	if len(payload) < 8 {
		return nil, errors.Errorf("int8 payload too short: %d bytes", len(payload))
	}
	minV := math.Float32frombits(binary.LittleEndian.Uint32(payload[0:]))
	maxV := math.Float32frombits(binary.LittleEndian.Uint32(payload[4:]))
	scale := maxV - minV

	quantized := payload[8:]
	vec := make([]float32, len(quantized))
	for i, q := range quantized {
		vec[i] = minV + float32(q)/255*scale
	}
	return vec, nil
}

func encodeFloat16(vec []float32) []byte {
	buf := make([]byte, 1+2*len(vec))
	buf[0] = tagFloat16
	for i, v := range vec {
		binary.LittleEndian.PutUint16(buf[1+2*i:], float32ToHalf(v))
	}
	return buf
}

func decodeFloat16(payload []byte) ([]float32, error) {
	if len(payload)%2 != 0 {
		return nil, errors.Errorf("float16 payload length %d not a multiple of 2", len(payload))
	}
	vec := make([]float32, len(payload)/2)
	for i := range vec {
		vec[i] = halfToFloat32(binary.LittleEndian.Uint16(payload[2*i:]))
	}
	return vec, nil
}

// binary layout: uint32 dimension count, then packed sign bits (1 = non-negative).
func encodeBinary(vec []float32) []byte {
	buf := make([]byte, 1+4+(len(vec)+7)/8)
	buf[0] = tagBinary
	binary.LittleEndian.PutUint32(buf[1:], uint32(len(vec)))
	for i, v := range vec {
		if v >= 0 {
			buf[5+i/8] |= 1 << (i % 8)
		}
	}
	return buf
}

func decodeBinary(payload []byte) ([]float32, error) {
	if len(payload) < 4 {
		return nil, errors.Errorf("binary payload too short: %d bytes", len(payload))
	}
	dim := int(binary.LittleEndian.Uint32(payload[0:]))
	bits := payload[4:]
	if len(bits) < (dim+7)/8 {
		return nil, errors.Errorf("binary payload truncated: need %d bits, have %d bytes", dim, len(bits))
	}
	vec := make([]float32, dim)
	for i := 0; i < dim; i++ {
		if bits[i/8]&(1<<(i%8)) != 0 {
			vec[i] = 1
		} else {
			vec[i] = -1
		}
	}
	return vec, nil
}

// float32ToHalf converts with round-to-nearest-even, saturating to infinity.
func float32ToHalf(f float32) uint16 {
	b := math.Float32bits(f)
	sign := uint16(b>>16) & 0x8000
	exp := int32(b>>23&0xff) - 127 + 15
	mant := b & 0x7fffff

	switch {
	case int32(b>>23&0xff) == 0xff: // Inf or NaN
		if mant != 0 {
			return sign | 0x7e00
		}
		return sign | 0x7c00
	case exp >= 0x1f: // overflow
		return sign | 0x7c00
	case exp <= 0: // subnormal or zero
		if exp < -10 {
			return sign
		}
		mant |= 0x800000
		shift := uint32(14 - exp)
		half := uint16(mant >> shift)
		if mant>>(shift-1)&1 != 0 {
			half++
		}
		return sign | half
	}

	half := sign | uint16(exp)<<10 | uint16(mant>>13)
	if mant&0x1fff > 0x1000 || (mant&0x1fff == 0x1000 && half&1 != 0) {
		half++
	}
	return half
}

func halfToFloat32(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := uint32(h >> 10 & 0x1f)
	mant := uint32(h & 0x3ff)

	switch exp {
	case 0:
		if mant == 0 {
			return math.Float32frombits(sign)
		}
		// subnormal: normalize
		for mant&0x400 == 0 {
			mant <<= 1
			exp--
		}
		mant &= 0x3ff
		exp++
	case 0x1f:
		return math.Float32frombits(sign | 0x7f800000 | mant<<13)
	}

	return math.Float32frombits(sign | (exp+127-15)<<23 | mant<<13)
}
