package compression

import (
	"github.com/anchore/go-lzo"

	"github.com/deploymenttheory/go-jffs2/internal/types"
)

// DecompressLzo decodes an LZO1X block into exactly destLen bytes.
func DecompressLzo(src []byte, destLen int) ([]byte, error) {
	out := make([]byte, destLen)
	n, err := lzo.Decompress(src, out)
	if err != nil {
		return nil, corrupt(types.CompressionLzo, "%w", err)
	}
	if n != destLen {
		return nil, lengthMismatch(types.CompressionLzo, n, destLen)
	}
	return out, nil
}

// lzo1x end-of-stream marker: an M4 match with distance 16384.
var lzoEndOfStream = []byte{0x11, 0x00, 0x00}

// CompressLzo emits a valid LZO1X stream that stores data as a single
// literal run. It never compresses; it exists so that images and tests
// can carry LZO nodes without a C encoder.
func CompressLzo(data []byte) []byte {
	out := make([]byte, 0, len(data)+len(data)/255+8)
	n := len(data)

	switch {
	case n == 0:
	case n <= 238:
		// First byte 18..255 copies n literals.
		out = append(out, byte(n+17))
	default:
		// Long literal run: 0, then (n-18) as 255-counted zero bytes and a
		// nonzero remainder.
		out = append(out, 0x00)
		rem := n - 18
		for rem > 255 {
			out = append(out, 0x00)
			rem -= 255
		}
		out = append(out, byte(rem))
	}
	out = append(out, data...)
	return append(out, lzoEndOfStream...)
}
