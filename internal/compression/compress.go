// Package compression implements the JFFS2 payload codecs.
//
// Decoders take the stored payload and the expected decoded length and
// return exactly that many bytes or a *DecompressionError. Encoders exist
// for every codec with a decoder so that synthetic images round-trip.
package compression

import (
	"fmt"

	"github.com/deploymenttheory/go-jffs2/internal/types"
)

// Compress encodes data with the given codec.
func Compress(tag types.CompressionType, data []byte) ([]byte, error) {
	switch tag {
	case types.CompressionNone:
		return data, nil
	case types.CompressionZero:
		for i, b := range data {
			if b != 0 {
				return nil, fmt.Errorf("zero compression of nonzero byte at %d", i)
			}
		}
		return nil, nil
	case types.CompressionRtime:
		return CompressRtime(data), nil
	case types.CompressionZlib:
		return CompressZlib(data)
	case types.CompressionLzo:
		return CompressLzo(data), nil
	case types.CompressionLzma:
		return CompressLzma(data)
	default:
		return nil, &DecompressionError{Kind: UnsupportedCodec, Tag: tag}
	}
}

// Supported reports whether a decoder exists for the tag.
func Supported(tag types.CompressionType) bool {
	switch tag {
	case types.CompressionNone, types.CompressionZero, types.CompressionRtime,
		types.CompressionZlib, types.CompressionLzo, types.CompressionLzma:
		return true
	default:
		return false
	}
}
