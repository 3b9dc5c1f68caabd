package nodes

import (
	"encoding/binary"

	"github.com/deploymenttheory/go-jffs2/internal/checksum"
	"github.com/deploymenttheory/go-jffs2/internal/diagnostics"
	"github.com/deploymenttheory/go-jffs2/internal/types"
)

// ScannerConfig parameterises a NodeScanner.
type ScannerConfig struct {
	// ByteOrder of the image. Nil means detect; little-endian is assumed
	// when detection finds nothing.
	ByteOrder binary.ByteOrder

	// EraseBlockSize bounds nodes to their erase block. Zero treats the
	// whole buffer as a single block.
	EraseBlockSize int64

	// Diagnostics receives header problems. May be nil.
	Diagnostics *diagnostics.Collector
}

// KindStats counts nodes and bytes of one kind.
type KindStats struct {
	Count int   `json:"count" yaml:"count" cbor:"count"`
	Bytes int64 `json:"bytes" yaml:"bytes" cbor:"bytes"`
}

// ScanStats accounts for the bytes a scan walked over.
type ScanStats struct {
	// Kinds is keyed by node type name; obsoleted nodes of any type are
	// counted under "obsolete".
	Kinds map[string]KindStats `json:"kinds" yaml:"kinds" cbor:"kinds"`

	// HeaderCorrupt counts magic matches rejected by CRC or bounds checks.
	HeaderCorrupt int `json:"header_corrupt" yaml:"header_corrupt" cbor:"header_corrupt"`

	// ImageSize is the number of bytes scanned.
	ImageSize int64 `json:"image_size" yaml:"image_size" cbor:"image_size"`
}

func (s *ScanStats) add(kind string, totlen uint32) {
	k := s.Kinds[kind]
	k.Count++
	k.Bytes += int64(totlen)
	s.Kinds[kind] = k
}

// ObsoleteKind is the ScanStats key for obsoleted nodes.
const ObsoleteKind = "obsolete"

// NodeScanner walks a buffer and yields every content node whose header
// verifies. Use it like bufio.Scanner:
//
//	s := nodes.NewNodeScanner(buf, cfg)
//	for s.Next() {
//	    raw := s.Node()
//	}
//
// A scanner holds no state beyond its position; scanning the same buffer
// again requires a new scanner.
type NodeScanner struct {
	buf   []byte
	order binary.ByteOrder
	ebs   int64
	diag  *diagnostics.Collector

	pos   int
	node  RawNode
	stats ScanStats
}

// NewNodeScanner creates a scanner over buf.
func NewNodeScanner(buf []byte, cfg ScannerConfig) *NodeScanner {
	order := cfg.ByteOrder
	if order == nil {
		detected, err := DetectByteOrder(buf)
		if err != nil {
			detected = binary.LittleEndian
		}
		order = detected
	}

	ebs := cfg.EraseBlockSize
	if ebs <= 0 {
		ebs = int64(len(buf))
	}

	return &NodeScanner{
		buf:   buf,
		order: order,
		ebs:   ebs,
		diag:  cfg.Diagnostics,
		stats: ScanStats{Kinds: make(map[string]KindStats), ImageSize: int64(len(buf))},
	}
}

// ByteOrder returns the byte order the scanner decodes headers with.
func (s *NodeScanner) ByteOrder() binary.ByteOrder {
	return s.order
}

// Node returns the node found by the last successful call to Next.
func (s *NodeScanner) Node() RawNode {
	return s.node
}

// Stats returns the byte accounting gathered so far.
func (s *NodeScanner) Stats() ScanStats {
	return s.stats
}

// Next advances to the next dirent or inode node. It returns false when the
// buffer is exhausted.
func (s *NodeScanner) Next() bool {
	for s.pos+types.UnknownNodeSize <= len(s.buf) {
		off := s.pos
		header := s.buf[off : off+types.UnknownNodeSize]

		switch s.order.Uint16(header) {
		case types.Magic:
		case types.OldMagic:
			if headerCRCValid(header, s.order) {
				s.record(diagnostics.LegacyNode, off, "node written with pre-release magic 0x1984")
			}
			s.pos += types.NodeAlignment
			continue
		default:
			s.pos += types.NodeAlignment
			continue
		}

		nodeType := types.NodeType(s.order.Uint16(header[2:]))
		totlen := s.order.Uint32(header[4:])
		hdrCRC := s.order.Uint32(header[8:])

		if !headerCRCValid(header, s.order) {
			s.stats.HeaderCorrupt++
			s.record(diagnostics.HeaderCorrupt, off, "header crc mismatch for %s node", nodeType)
			s.pos += types.NodeAlignment
			continue
		}

		if reason := s.checkBounds(off, totlen); reason != "" {
			s.stats.HeaderCorrupt++
			s.record(diagnostics.HeaderCorrupt, off, "%s node of %d bytes %s", nodeType, totlen, reason)
			s.pos = off + types.UnknownNodeSize
			continue
		}

		s.pos = off + alignUp(int(totlen))

		if !nodeType.IsAccurate() {
			s.stats.add(ObsoleteKind, totlen)
			continue
		}

		switch nodeType {
		case types.NodeTypeDirent, types.NodeTypeInode:
			s.stats.add(nodeType.String(), totlen)
			s.node = RawNode{
				Offset:    int64(off),
				NodeType:  nodeType,
				TotalLen:  totlen,
				HeaderCRC: hdrCRC,
				Data:      s.buf[off : off+int(totlen)],
			}
			return true
		case types.NodeTypeCleanmarker, types.NodeTypePadding, types.NodeTypeSummary,
			types.NodeTypeXattr, types.NodeTypeXref:
			s.stats.add(nodeType.String(), totlen)
		default:
			s.stats.add(nodeType.String(), totlen)
			s.record(diagnostics.UnknownNode, off, "skipping node type 0x%04x", uint16(nodeType))
		}
	}

	s.pos = len(s.buf)
	return false
}

// checkBounds returns why a node of totlen bytes at off cannot be trusted,
// or "" when it fits. Block boundaries are multiples of the block size
// from the start of buf, so buf must begin on one.
func (s *NodeScanner) checkBounds(off int, totlen uint32) string {
	if totlen < types.UnknownNodeSize {
		return "is shorter than its header"
	}
	end := int64(off) + int64(totlen)
	if end > int64(len(s.buf)) {
		return "overruns the image"
	}
	blockEnd := (int64(off)/s.ebs + 1) * s.ebs
	if end > blockEnd {
		return "crosses an erase block boundary"
	}
	return ""
}

func (s *NodeScanner) record(kind diagnostics.Kind, off int, format string, args ...any) {
	if s.diag == nil {
		return
	}
	s.diag.Recordf(kind, int64(off), 0, format, args...)
}

// headerCRCValid checks hdr_crc with the ACCURATE bit forced on, because
// obsoleting a node clears that bit in place without rewriting the CRC.
func headerCRCValid(header []byte, order binary.ByteOrder) bool {
	var crcInput [types.HeaderCRCLen]byte
	copy(crcInput[:], header[:types.HeaderCRCLen])
	nodeType := types.NodeType(order.Uint16(crcInput[2:]))
	order.PutUint16(crcInput[2:], uint16(nodeType.Accurate()))
	return checksum.CRC32(crcInput[:]) == order.Uint32(header[8:])
}

func alignUp(n int) int {
	return (n + types.NodeAlignment - 1) &^ (types.NodeAlignment - 1)
}
