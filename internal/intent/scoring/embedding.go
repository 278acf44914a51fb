// internal/intent/scoring/embedding.go
package scoring

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
)

// Vector is a deterministic 3-component pseudo-embedding.
type Vector [3]float64

// Embed maps text to a unit vector derived from its SHA-256 digest. The raw
// UTF-8 bytes are hashed as-is, casing and whitespace included, so the same
// text always yields the same vector. No model call, no randomness.
func Embed(text string) Vector {
	sum := sha256.Sum256([]byte(text))
	h := hex.EncodeToString(sum[:])

	v := Vector{
		hexComponent(h[0:8]),
		hexComponent(h[8:16]),
		hexComponent(h[16:24]),
	}
	mag := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if mag == 0 {
		return Vector{0, 0, 1}
	}
	return Vector{v[0] / mag, v[1] / mag, v[2] / mag}
}

// Cosine returns the cosine similarity of two vectors, or 0 when either has
// zero magnitude.
func Cosine(a, b Vector) float64 {
	var dot, magA, magB float64
	for i := 0; i < 3; i++ {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// hexComponent scales 8 hex digits into [0,1).
func hexComponent(s string) float64 {
	v, _ := strconv.ParseUint(s, 16, 64)
	return float64(v) / (1 << 32)
}
