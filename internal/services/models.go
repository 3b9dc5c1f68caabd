package services

import (
	"encoding/hex"
	"time"

	"github.com/zeebo/blake3"

	"github.com/deploymenttheory/go-jffs2/internal/parsers/nodes"
	"github.com/deploymenttheory/go-jffs2/internal/types"
)

// InodeTable is the output of pass one: every decoded node grouped by the
// key the resolvers fold on. Slices keep scan order.
type InodeTable struct {
	Inodes  map[uint32][]*nodes.InodeNode
	Dirents []*nodes.DirentNode
	Ignored []*nodes.IgnoredNode
}

// NewInodeTable creates an empty table.
func NewInodeTable() *InodeTable {
	return &InodeTable{Inodes: make(map[uint32][]*nodes.InodeNode)}
}

// Add files a decoded node under its key.
func (t *InodeTable) Add(n nodes.Node) {
	switch node := n.(type) {
	case *nodes.InodeNode:
		t.Inodes[node.Ino] = append(t.Inodes[node.Ino], node)
	case *nodes.DirentNode:
		t.Dirents = append(t.Dirents, node)
	case *nodes.IgnoredNode:
		t.Ignored = append(t.Ignored, node)
	}
}

// Parents returns the inode numbers that hold at least one live name once
// dirents are folded the way BuildDirectoryTree folds them.
func (t *InodeTable) Parents() map[uint32]struct{} {
	parents := make(map[uint32]struct{})
	for key, d := range foldDirents(t.Dirents) {
		if !d.IsDeletion() {
			parents[key.parent] = struct{}{}
		}
	}
	return parents
}

// Inode is the resolved state of one inode number.
type Inode struct {
	Ino   uint32
	Mode  types.ModeT
	UID   uint32
	GID   uint32
	Size  uint64
	ATime time.Time
	MTime time.Time
	CTime time.Time

	// Content is the file data of a regular file. It is nil for every other
	// type.
	Content []byte

	LinkTarget string
	DevMajor   uint32
	DevMinor   uint32

	// Partial is set when a fragment could not be recovered or the size was
	// clipped.
	Partial bool

	// Synthetic is set for directories that have dirents but no inode nodes,
	// which is always the case for the root.
	Synthetic bool

	// Versions is the number of inode nodes folded into this inode and
	// Version the highest version among them.
	Versions int
	Version  uint32
}

// Type returns the file type encoded in Mode.
func (i *Inode) Type() types.FileType {
	return types.FileTypeFromMode(i.Mode)
}

// Entry is one named object of the extracted tree, ready for a
// Materializer.
type Entry struct {
	Path     []string       `json:"path" yaml:"path" cbor:"path"`
	Type     types.FileType `json:"type" yaml:"type" cbor:"type"`
	Mode     types.ModeT    `json:"mode" yaml:"mode" cbor:"mode"`
	UID      uint32         `json:"uid" yaml:"uid" cbor:"uid"`
	GID      uint32         `json:"gid" yaml:"gid" cbor:"gid"`
	Size     uint64         `json:"size" yaml:"size" cbor:"size"`
	ATime    time.Time      `json:"atime" yaml:"atime" cbor:"atime"`
	MTime    time.Time      `json:"mtime" yaml:"mtime" cbor:"mtime"`
	CTime    time.Time      `json:"ctime" yaml:"ctime" cbor:"ctime"`
	Content  []byte         `json:"-" yaml:"-" cbor:"-"`
	DevMajor uint32         `json:"dev_major,omitempty" yaml:"dev_major,omitempty" cbor:"dev_major,omitempty"`
	DevMinor uint32         `json:"dev_minor,omitempty" yaml:"dev_minor,omitempty" cbor:"dev_minor,omitempty"`
	Ino      uint32         `json:"ino" yaml:"ino" cbor:"ino"`

	LinkTarget string `json:"link_target,omitempty" yaml:"link_target,omitempty" cbor:"link_target,omitempty"`

	// LinkGroup is the inode number shared by every name of a hard-linked
	// file, zero when the file has one name.
	LinkGroup uint32 `json:"link_group,omitempty" yaml:"link_group,omitempty" cbor:"link_group,omitempty"`

	// HardLinkTarget is the path of the first name of the file when this
	// entry is a later one.
	HardLinkTarget []string `json:"hard_link_target,omitempty" yaml:"hard_link_target,omitempty" cbor:"hard_link_target,omitempty"`

	Partial bool `json:"partial,omitempty" yaml:"partial,omitempty" cbor:"partial,omitempty"`
	Orphan  bool `json:"orphan,omitempty" yaml:"orphan,omitempty" cbor:"orphan,omitempty"`
}

// IsHardLink reports whether the entry is a secondary name.
func (e *Entry) IsHardLink() bool {
	return len(e.HardLinkTarget) > 0
}

// Digest returns the hex BLAKE3 digest of a regular file's content, or ""
// for other types.
func (e *Entry) Digest() string {
	if e.Type != types.FileTypeRegular {
		return ""
	}
	sum := blake3.Sum256(e.Content)
	return hex.EncodeToString(sum[:])
}
