// Package nodes finds and decodes JFFS2 nodes in a raw flash image.
package nodes

import "github.com/deploymenttheory/go-jffs2/internal/types"

// RawNode is a header that passed its CRC and bounds checks. Data is the
// header and payload sliced from the scanned buffer; it is not copied.
type RawNode struct {
	Offset    int64
	NodeType  types.NodeType
	TotalLen  uint32
	HeaderCRC uint32
	Data      []byte
}

// Node is the result of decoding a RawNode: *DirentNode, *InodeNode or
// *IgnoredNode.
type Node interface {
	Position() int64
}

// DirentNode is a decoded directory entry.
type DirentNode struct {
	types.RawDirent
	NodeOffset int64
}

func (n *DirentNode) Position() int64 { return n.NodeOffset }

// IsDeletion reports whether the dirent unlinks its name.
func (n *DirentNode) IsDeletion() bool { return n.Ino == 0 }

// InodeNode is a decoded inode node. Payload is the stored (possibly
// compressed) data and is nil for metadata-only nodes.
type InodeNode struct {
	types.RawInode
	NodeOffset int64
	Payload    []byte
}

func (n *InodeNode) Position() int64 { return n.NodeOffset }

// MetadataOnly reports whether the node carries no file data.
func (n *InodeNode) MetadataOnly() bool { return n.Dsize == 0 }

// End returns the file offset just past the node's data.
func (n *InodeNode) End() uint64 { return uint64(n.DataOffset) + uint64(n.Dsize) }

// IgnoredNode is a node the decoder refused.
type IgnoredNode struct {
	NodeOffset int64
	Reason     error
}

func (n *IgnoredNode) Position() int64 { return n.NodeOffset }
