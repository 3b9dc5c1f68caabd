package nodes

import (
	"encoding/binary"
	"errors"

	"github.com/deploymenttheory/go-jffs2/internal/types"
)

// ErrNoNodes is returned when a buffer holds no node with a valid header.
var ErrNoNodes = errors.New("no jffs2 node with a valid header found")

// DetectByteOrder returns the byte order of the first node whose header
// CRC verifies. JFFS2 is written in the CPU's native order, so images from
// MIPS or PowerPC targets are usually big-endian.
func DetectByteOrder(buf []byte) (binary.ByteOrder, error) {
	orders := []binary.ByteOrder{binary.LittleEndian, binary.BigEndian}
	for off := 0; off+types.UnknownNodeSize <= len(buf); off += types.NodeAlignment {
		for _, order := range orders {
			if order.Uint16(buf[off:]) != types.Magic {
				continue
			}
			if headerCRCValid(buf[off:off+types.UnknownNodeSize], order) {
				return order, nil
			}
		}
	}
	return nil, ErrNoNodes
}

// ByteOrderName returns "little" or "big".
func ByteOrderName(order binary.ByteOrder) string {
	if order == binary.BigEndian {
		return "big"
	}
	return "little"
}
