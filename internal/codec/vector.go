package codec

import "math"

// EncodeVector serializes a vector value record as
// {magnitude:f32_le, v0, v1, ..., v_{d-1}:f32_le}, per spec. The magnitude is
// precomputed by the caller rather than derived here so that callers that
// already know it (e.g. the HNSW indexer) never pay for a second pass.
func EncodeVector(magnitude float32, v []float32) []byte {
	out := make([]byte, 0, 4+4*len(v))
	out = PutFloat32(out, magnitude)
	for _, f := range v {
		out = PutFloat32(out, f)
	}
	return out
}

// DecodeVector parses a vector value record into its stored magnitude and
// float components. It returns false if value is too short to contain at
// least the magnitude field or is not a whole number of float32s past it.
func DecodeVector(value []byte) (magnitude float32, v []float32, ok bool) {
	if len(value) < 4 || (len(value)-4)%4 != 0 {
		return 0, nil, false
	}
	magnitude = Float32(value)
	d := (len(value) - 4) / 4
	v = make([]float32, d)
	for i := 0; i < d; i++ {
		v[i] = Float32(value[4+4*i:])
	}
	return magnitude, v, true
}

// Magnitude computes the Euclidean norm of v.
func Magnitude(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}
