package types

import "fmt"

// Node Headers
// Every record in a JFFS2 log starts with the same 12-byte header.
// Reference: include/uapi/linux/jffs2.h

const (
	// Magic is the bit pattern at the start of every node.
	Magic uint16 = 0x1985

	// OldMagic was written by pre-release JFFS2 and is not supported.
	OldMagic uint16 = 0x1984

	// EmptyMagic is erased flash.
	EmptyMagic uint16 = 0xFFFF

	// NodeAlignment is the granularity at which nodes start.
	NodeAlignment = 4

	// UnknownNodeSize is the size of the common node header.
	UnknownNodeSize = 12

	// RawDirentSize is the size of a dirent node without its name.
	RawDirentSize = 40

	// RawInodeSize is the size of an inode node without its payload.
	RawInodeSize = 68

	// DirentNodeCRCLen is the number of leading bytes covered by a dirent node_crc.
	DirentNodeCRCLen = RawDirentSize - 8

	// InodeNodeCRCLen is the number of leading bytes covered by an inode node_crc.
	InodeNodeCRCLen = RawInodeSize - 8

	// HeaderCRCLen is the number of leading bytes covered by hdr_crc.
	HeaderCRCLen = 8
)

// Node compatibility bits occupy the top of the node type. They tell an
// implementation what to do with a type it does not understand.
const (
	FeatureIncompat       uint16 = 0xc000
	FeatureRocompat       uint16 = 0x8000
	FeatureRwcompatCopy   uint16 = 0x4000
	FeatureRwcompatDelete uint16 = 0x0000

	// NodeAccurate is cleared on flash when a node becomes obsolete.
	NodeAccurate uint16 = 0x2000

	// CompatMask selects the compatibility bits.
	CompatMask uint16 = 0xc000
)

// NodeType is the nodetype field of the common header.
type NodeType uint16

const (
	// NodeTypeDirent binds a name in a directory to an inode.
	NodeTypeDirent NodeType = NodeType(FeatureIncompat|NodeAccurate) | 1

	// NodeTypeInode carries file data and attributes.
	NodeTypeInode NodeType = NodeType(FeatureIncompat|NodeAccurate) | 2

	// NodeTypeCleanmarker is written at the start of a freshly erased block.
	NodeTypeCleanmarker NodeType = NodeType(FeatureRwcompatDelete|NodeAccurate) | 3

	// NodeTypePadding fills the tail of a block.
	NodeTypePadding NodeType = NodeType(FeatureRwcompatDelete|NodeAccurate) | 4

	// NodeTypeSummary is the erase block summary written at the end of a block.
	NodeTypeSummary NodeType = NodeType(FeatureRwcompatDelete|NodeAccurate) | 6

	// NodeTypeXattr carries an extended attribute value.
	NodeTypeXattr NodeType = NodeType(FeatureIncompat|NodeAccurate) | 8

	// NodeTypeXref links an xattr to an inode.
	NodeTypeXref NodeType = NodeType(FeatureIncompat|NodeAccurate) | 9
)

// IsAccurate reports whether the node is still live on flash.
func (t NodeType) IsAccurate() bool {
	return uint16(t)&NodeAccurate != 0
}

// Accurate returns the type with the ACCURATE bit set, which is how the
// header CRC was computed when the node was written.
func (t NodeType) Accurate() NodeType {
	return t | NodeType(NodeAccurate)
}

// Compat returns the compatibility bits.
func (t NodeType) Compat() uint16 {
	return uint16(t) & CompatMask
}

func (t NodeType) String() string {
	switch t.Accurate() {
	case NodeTypeDirent:
		return "dirent"
	case NodeTypeInode:
		return "inode"
	case NodeTypeCleanmarker:
		return "cleanmarker"
	case NodeTypePadding:
		return "padding"
	case NodeTypeSummary:
		return "summary"
	case NodeTypeXattr:
		return "xattr"
	case NodeTypeXref:
		return "xref"
	default:
		return fmt.Sprintf("unknown(0x%04x)", uint16(t))
	}
}

// UnknownNode is the common header shared by all nodes (jffs2_unknown_node).
type UnknownNode struct {
	// Magic is always Magic for nodes written by Linux.
	Magic uint16

	// NodeType identifies the node layout.
	NodeType NodeType

	// TotLen is the total node length including header and payload.
	TotLen uint32

	// HdrCRC covers Magic, NodeType and TotLen.
	HdrCRC uint32
}

// RawDirent is a directory entry node (jffs2_raw_dirent).
type RawDirent struct {
	Hdr UnknownNode

	// Pino is the inode number of the parent directory.
	Pino uint32

	// Version orders dirents of the same parent directory.
	Version uint32

	// Ino is the target inode number, zero for an unlink.
	Ino uint32

	// Mctime is the directory mtime/ctime at the time of the write.
	Mctime uint32

	// Nsize is the length of Name.
	Nsize uint8

	// Type is the d_type hint of the target.
	Type DirentType

	// Unused is padding.
	Unused [2]uint8

	// NodeCRC covers the first DirentNodeCRCLen bytes.
	NodeCRC uint32

	// NameCRC covers Name.
	NameCRC uint32

	// Name is the entry name. It is not NUL terminated.
	Name []byte
}

// RawInode is an inode node (jffs2_raw_inode).
type RawInode struct {
	Hdr UnknownNode

	// Ino is the inode number.
	Ino uint32

	// Version orders the nodes of one inode.
	Version uint32

	// Mode is the POSIX st_mode.
	Mode ModeT

	// UID is the owner.
	UID uint16

	// GID is the group.
	GID uint16

	// Isize is the file size after this write.
	Isize uint32

	// Atime, Mtime and Ctime are seconds since the Unix epoch.
	Atime uint32
	Mtime uint32
	Ctime uint32

	// DataOffset is where the payload lands in the file (offset in C).
	DataOffset uint32

	// Csize is the compressed payload length stored on flash.
	Csize uint32

	// Dsize is the decompressed payload length.
	Dsize uint32

	// Compr is the payload codec.
	Compr CompressionType

	// Usercompr is the compressor requested by the user (informational).
	Usercompr uint8

	// Flags holds JFFS2_INO_FLAG_* bits.
	Flags uint16

	// DataCRC covers the Csize payload bytes.
	DataCRC uint32

	// NodeCRC covers the first InodeNodeCRCLen bytes.
	NodeCRC uint32
}

// Inode flags.
const (
	// InoFlagPrealloc marks a node written to preallocate space.
	InoFlagPrealloc uint16 = 0x01

	// InoFlagUsercompr marks a Usercompr value that must be honoured.
	InoFlagUsercompr uint16 = 0x02
)
