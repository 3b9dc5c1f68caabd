package nodes

import (
	"encoding/binary"

	"github.com/deploymenttheory/go-jffs2/internal/types"
)

// MinEraseBlockSize is the smallest erase block size accepted by detection.
const MinEraseBlockSize = 4096

// DetectEraseBlockSize infers the erase block size from the spacing of
// clean markers, which mkfs.jffs2 and the kernel write at the start of
// every erased block. It returns false when fewer than two markers exist or
// their spacing is not a power of two of at least MinEraseBlockSize.
func DetectEraseBlockSize(buf []byte, order binary.ByteOrder) (int64, bool) {
	var markers []int64
	for off := 0; off+types.UnknownNodeSize <= len(buf); off += types.NodeAlignment {
		header := buf[off : off+types.UnknownNodeSize]
		if order.Uint16(header) != types.Magic {
			continue
		}
		if types.NodeType(order.Uint16(header[2:])) != types.NodeTypeCleanmarker {
			continue
		}
		if !headerCRCValid(header, order) {
			continue
		}
		markers = append(markers, int64(off))
	}
	if len(markers) < 2 {
		return 0, false
	}

	var spacing int64
	for i := 1; i < len(markers); i++ {
		spacing = gcd(spacing, markers[i]-markers[i-1])
	}
	// Blocks start at multiples of the block size.
	spacing = gcd(spacing, markers[0])

	if spacing < MinEraseBlockSize || spacing&(spacing-1) != 0 {
		return 0, false
	}
	return spacing, true
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
