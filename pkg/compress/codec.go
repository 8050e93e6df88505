// Package compress provides the payload codecs used when reports are stored
// in a shared backend.
//
// Every codec is safe for concurrent use. Encoders and decoders that keep
// internal state are pooled.
package compress

import (
	"fmt"
	"strings"
)

// Type names a compression algorithm.
type Type string

const (
	None Type = "none"
	Zstd Type = "zstd"
	S2   Type = "s2"
	LZ4  Type = "lz4"
)

// Codec compresses and decompresses whole payloads.
type Codec interface {
	// Type returns the algorithm implemented by the codec.
	Type() Type

	// Compress returns the compressed form of data. The input is not
	// modified.
	Compress(data []byte) ([]byte, error)

	// Decompress returns the original form of data, or an error if data
	// is corrupted or was produced by another algorithm.
	Decompress(data []byte) ([]byte, error)
}

// ParseType returns the Type named by s, ignoring case. The empty string is
// None.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return None, nil
	case None, Zstd, S2, LZ4:
		return t, nil
	default:
		return "", fmt.Errorf("unknown compression %q (want none, zstd, s2 or lz4)", s)
	}
}

// CreateCodec returns the codec for t.
func CreateCodec(t Type) (Codec, error) {
	switch t {
	case None, "":
		return NoOp{}, nil
	case Zstd:
		return ZstdCodec{}, nil
	case S2:
		return S2Codec{}, nil
	case LZ4:
		return LZ4Codec{}, nil
	default:
		return nil, fmt.Errorf("invalid compression type: %s", t)
	}
}

// NoOp passes data through unchanged.
type NoOp struct{}

var _ Codec = NoOp{}

// Type implements Codec.
func (NoOp) Type() Type { return None }

// Compress returns data as is.
func (NoOp) Compress(data []byte) ([]byte, error) { return data, nil }

// Decompress returns data as is.
func (NoOp) Decompress(data []byte) ([]byte, error) { return data, nil }
