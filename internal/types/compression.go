package types

import "fmt"

// Compression Methods
// Every inode node names the algorithm its payload was written with in the
// compr field. Reference: include/uapi/linux/jffs2.h

// CompressionType identifies the codec of an inode node payload.
type CompressionType uint8

const (
	// CompressionNone stores the payload verbatim.
	CompressionNone CompressionType = 0x00

	// CompressionZero marks a hole node. The payload is empty and the
	// covered range reads as zero bytes.
	CompressionZero CompressionType = 0x01

	// CompressionRtime is the JFFS2 run-length/back-reference scheme.
	CompressionRtime CompressionType = 0x02

	// CompressionRubinMips is the historic rubin compressor (MIPS variant).
	// Never enabled in mainline kernels.
	CompressionRubinMips CompressionType = 0x03

	// CompressionCopy is the historic "copy" compressor.
	CompressionCopy CompressionType = 0x04

	// CompressionDynRubin is the dynamic rubin compressor.
	CompressionDynRubin CompressionType = 0x05

	// CompressionZlib is a zlib stream (RFC 1950).
	CompressionZlib CompressionType = 0x06

	// CompressionLzo is an LZO1X block.
	CompressionLzo CompressionType = 0x07

	// CompressionLzma is a raw LZMA stream with fixed parameters
	// (see LzmaProperties and LzmaDictSize).
	CompressionLzma CompressionType = 0x08
)

// LZMA parameters used by the kernel compressor. The on-flash stream has no
// header, so the decoder has to rebuild one from these values.
const (
	LzmaLC       = 0
	LzmaLP       = 0
	LzmaPB       = 0
	LzmaDictSize = 0x2000

	// LzmaProperties is the properties byte (pb * 5 + lp) * 9 + lc.
	LzmaProperties = (LzmaPB*5+LzmaLP)*9 + LzmaLC
)

// IsKnown reports whether the tag belongs to the JFFS2 compression set,
// whether or not a decoder exists for it.
func (c CompressionType) IsKnown() bool {
	return c <= CompressionLzma
}

// String returns the name used by mkfs.jffs2 for the compressor.
func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZero:
		return "zero"
	case CompressionRtime:
		return "rtime"
	case CompressionRubinMips:
		return "rubinmips"
	case CompressionCopy:
		return "copy"
	case CompressionDynRubin:
		return "dynrubin"
	case CompressionZlib:
		return "zlib"
	case CompressionLzo:
		return "lzo"
	case CompressionLzma:
		return "lzma"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompressionType parses a compressor name as printed by String.
func ParseCompressionType(name string) (CompressionType, error) {
	for c := CompressionNone; c <= CompressionLzma; c++ {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown compression type: %q", name)
}
