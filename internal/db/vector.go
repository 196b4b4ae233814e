package db

import (
	"encoding/binary"
	"math"
)

// EncodeVector serializes v as little-endian float32 bytes, the HASH layout
// FT.SEARCH reads vector fields from.
func EncodeVector(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// DecodeVector is the inverse of EncodeVector. Malformed input yields nil.
func DecodeVector(s string) []float32 {
	if s == "" || len(s)%4 != 0 {
		return nil
	}
	v := make([]float32, len(s)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32([]byte(s[i*4 : i*4+4])))
	}
	return v
}
