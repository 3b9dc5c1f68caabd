// Package imagebuilder writes JFFS2 images in memory. It produces the same
// node layout as mkfs.jffs2 and is used to build test fixtures.
package imagebuilder

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-jffs2/internal/checksum"
	"github.com/deploymenttheory/go-jffs2/internal/compression"
	"github.com/deploymenttheory/go-jffs2/internal/types"
)

// PageSize is the largest data span File puts in one inode node.
const PageSize = 4096

// DefaultEraseBlockSize is used when no erase block size is configured.
const DefaultEraseBlockSize = 0x10000

// Option configures a Builder.
type Option func(*Builder)

// WithByteOrder selects the image byte order.
func WithByteOrder(order binary.ByteOrder) Option {
	return func(b *Builder) { b.order = order }
}

// WithEraseBlockSize sets the erase block size.
func WithEraseBlockSize(size int) Option {
	return func(b *Builder) { b.eraseBlockSize = size }
}

// WithCleanmarkers controls whether every erase block starts with a clean
// marker. They are on by default.
func WithCleanmarkers(enabled bool) Option {
	return func(b *Builder) { b.cleanmarkers = enabled }
}

// Dirent describes a dirent node.
type Dirent struct {
	Parent  uint32
	Ino     uint32
	Version uint32 // zero picks the next version for Parent
	MCTime  uint32
	Type    types.DirentType
	Name    string
}

// Inode describes an inode node.
type Inode struct {
	Ino     uint32
	Version uint32 // zero picks the next version for Ino
	Mode    types.ModeT
	UID     uint16
	GID     uint16
	Isize   uint32
	Atime   uint32
	Mtime   uint32
	Ctime   uint32
	Offset  uint32
	Compr   types.CompressionType
	Data    []byte

	// Stored, when non-nil, is written as the payload verbatim with Dsize
	// as the decompressed length; Data and Compr are not used to derive it.
	Stored []byte
	Dsize  uint32

	// DataCRC overrides the computed data CRC when non-nil.
	DataCRC *uint32
}

// Builder accumulates nodes into an image.
type Builder struct {
	order          binary.ByteOrder
	eraseBlockSize int
	cleanmarkers   bool

	buf      []byte
	versions map[uint32]uint32
	dversion map[uint32]uint32
}

// New creates an empty builder.
func New(opts ...Option) *Builder {
	b := &Builder{
		order:          binary.LittleEndian,
		eraseBlockSize: DefaultEraseBlockSize,
		cleanmarkers:   true,
		versions:       make(map[uint32]uint32),
		dversion:       make(map[uint32]uint32),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ByteOrder returns the image byte order.
func (b *Builder) ByteOrder() binary.ByteOrder {
	return b.order
}

// EraseBlockSize returns the erase block size.
func (b *Builder) EraseBlockSize() int {
	return b.eraseBlockSize
}

// Bytes returns the image padded with erased flash to a whole number of
// erase blocks.
func (b *Builder) Bytes() []byte {
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	if rem := len(out) % b.eraseBlockSize; rem != 0 {
		out = append(out, erased(b.eraseBlockSize-rem)...)
	}
	return out
}

// AddDirent appends a dirent node and returns its offset.
func (b *Builder) AddDirent(d Dirent) int64 {
	if d.Version == 0 {
		d.Version = b.dversion[d.Parent] + 1
	}
	if d.Version > b.dversion[d.Parent] {
		b.dversion[d.Parent] = d.Version
	}

	name := []byte(d.Name)
	node := make([]byte, types.RawDirentSize+len(name))
	b.putHeader(node, types.NodeTypeDirent)
	b.order.PutUint32(node[12:], d.Parent)
	b.order.PutUint32(node[16:], d.Version)
	b.order.PutUint32(node[20:], d.Ino)
	b.order.PutUint32(node[24:], d.MCTime)
	node[28] = uint8(len(name))
	node[29] = uint8(d.Type)
	b.order.PutUint32(node[32:], checksum.CRC32(node[:types.DirentNodeCRCLen]))
	b.order.PutUint32(node[36:], checksum.CRC32(name))
	copy(node[types.RawDirentSize:], name)

	return b.append(node)
}

// AddInode appends an inode node and returns its offset.
func (b *Builder) AddInode(in Inode) (int64, error) {
	if in.Version == 0 {
		in.Version = b.versions[in.Ino] + 1
	}
	if in.Version > b.versions[in.Ino] {
		b.versions[in.Ino] = in.Version
	}

	payload, dsize := in.Stored, in.Dsize
	if payload == nil {
		var err error
		payload, err = compression.Compress(in.Compr, in.Data)
		if err != nil {
			return 0, fmt.Errorf("failed to compress inode %d payload: %w", in.Ino, err)
		}
		dsize = uint32(len(in.Data))
	}

	node := make([]byte, types.RawInodeSize+len(payload))
	b.putHeader(node, types.NodeTypeInode)
	b.order.PutUint32(node[12:], in.Ino)
	b.order.PutUint32(node[16:], in.Version)
	b.order.PutUint32(node[20:], uint32(in.Mode))
	b.order.PutUint16(node[24:], in.UID)
	b.order.PutUint16(node[26:], in.GID)
	b.order.PutUint32(node[28:], in.Isize)
	b.order.PutUint32(node[32:], in.Atime)
	b.order.PutUint32(node[36:], in.Mtime)
	b.order.PutUint32(node[40:], in.Ctime)
	b.order.PutUint32(node[44:], in.Offset)
	b.order.PutUint32(node[48:], uint32(len(payload)))
	b.order.PutUint32(node[52:], dsize)
	node[56] = uint8(in.Compr)
	dataCRC := checksum.CRC32(payload)
	if in.DataCRC != nil {
		dataCRC = *in.DataCRC
	}
	b.order.PutUint32(node[60:], dataCRC)
	b.order.PutUint32(node[64:], checksum.CRC32(node[:types.InodeNodeCRCLen]))
	copy(node[types.RawInodeSize:], payload)

	return b.append(node), nil
}

// AddPadding appends a padding node of n bytes (at least the header size).
func (b *Builder) AddPadding(n int) int64 {
	if n < types.UnknownNodeSize {
		n = types.UnknownNodeSize
	}
	node := make([]byte, n)
	b.putHeader(node, types.NodeTypePadding)
	return b.append(node)
}

// AddRaw appends arbitrary bytes at the next aligned offset. It does not
// respect erase block boundaries.
func (b *Builder) AddRaw(data []byte) int64 {
	b.align()
	off := int64(len(b.buf))
	b.buf = append(b.buf, data...)
	return off
}

// Obsolete clears the ACCURATE bit of the node at off, as the kernel does
// when a node is superseded.
func (b *Builder) Obsolete(off int64) {
	t := b.order.Uint16(b.buf[off+2:])
	b.order.PutUint16(b.buf[off+2:], t&^types.NodeAccurate)
}

// NextEraseBlock pads the current erase block so the next node starts a
// new one.
func (b *Builder) NextEraseBlock() {
	if rem := len(b.buf) % b.eraseBlockSize; rem != 0 {
		b.buf = append(b.buf, erased(b.eraseBlockSize-rem)...)
	}
}

func (b *Builder) putHeader(node []byte, t types.NodeType) {
	b.order.PutUint16(node[0:], types.Magic)
	b.order.PutUint16(node[2:], uint16(t))
	b.order.PutUint32(node[4:], uint32(len(node)))
	b.order.PutUint32(node[8:], checksum.CRC32(node[:types.HeaderCRCLen]))
}

func (b *Builder) append(node []byte) int64 {
	b.align()
	if len(b.buf)%b.eraseBlockSize == 0 {
		b.startBlock()
	}
	used := len(b.buf) % b.eraseBlockSize
	if used+len(node) > b.eraseBlockSize {
		b.buf = append(b.buf, erased(b.eraseBlockSize-used)...)
		b.startBlock()
	}
	off := int64(len(b.buf))
	b.buf = append(b.buf, node...)
	return off
}

func (b *Builder) startBlock() {
	if !b.cleanmarkers || len(b.buf)%b.eraseBlockSize != 0 {
		return
	}
	marker := make([]byte, types.UnknownNodeSize)
	b.putHeader(marker, types.NodeTypeCleanmarker)
	b.buf = append(b.buf, marker...)
}

func (b *Builder) align() {
	if rem := len(b.buf) % types.NodeAlignment; rem != 0 {
		b.buf = append(b.buf, erased(types.NodeAlignment-rem)...)
	}
}

func erased(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = 0xff
	}
	return out
}
