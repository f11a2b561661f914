package vector

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Vector is a fixed-length face template produced by an external
// extraction capability. Templates are stored as little-endian float64
// blobs, the same layout the upstream encoder emits.
type Vector []float64

var ErrBadLength = errors.New("template blob length is not a multiple of 8")

// Encode serializes the vector to its blob form.
func Encode(v Vector) []byte {
	buf := make([]byte, 8*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

// Decode parses a little-endian float64 blob.
func Decode(b []byte) (Vector, error) {
	if len(b)%8 != 0 {
		return nil, ErrBadLength
	}
	v := make(Vector, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v, nil
}

// Distance returns the Euclidean distance between two templates.
// Mismatched lengths yield +Inf so the pair can never match.
func Distance(a, b Vector) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Extractor converts a raw capture payload into zero or more templates.
// The extraction algorithm itself is external; implementations only
// unpack whatever representation the upstream encoder ships.
type Extractor interface {
	Extract(payload []byte) ([]Vector, error)
}

// RawExtractor decodes payloads that carry pre-computed templates: a
// concatenation of fixed-dimension little-endian float64 vectors, either
// as raw bytes or base64-encoded. A payload holding several templates
// (several faces in one capture) decodes to several vectors.
type RawExtractor struct {
	Dim int
}

func (e RawExtractor) Extract(payload []byte) ([]Vector, error) {
	if e.Dim <= 0 {
		return nil, fmt.Errorf("extractor dimension %d is invalid", e.Dim)
	}

	vecs, err := e.split(payload)
	if err == nil {
		return vecs, nil
	}

	// Base64 fallback: some publishers wrap the blob in base64.
	decoded, derr := base64.StdEncoding.DecodeString(string(payload))
	if derr != nil {
		return nil, err
	}
	return e.split(decoded)
}

func (e RawExtractor) split(b []byte) ([]Vector, error) {
	stride := 8 * e.Dim
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%stride != 0 {
		return nil, fmt.Errorf("payload of %d bytes does not divide into %d-dim templates", len(b), e.Dim)
	}
	vecs := make([]Vector, 0, len(b)/stride)
	for off := 0; off < len(b); off += stride {
		v, err := Decode(b[off : off+stride])
		if err != nil {
			return nil, err
		}
		vecs = append(vecs, v)
	}
	return vecs, nil
}
