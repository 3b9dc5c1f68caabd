package services

import (
	"github.com/deploymenttheory/go-jffs2/internal/checksum"
	"github.com/deploymenttheory/go-jffs2/internal/compression"
	"github.com/deploymenttheory/go-jffs2/internal/parsers/nodes"
	"github.com/deploymenttheory/go-jffs2/internal/types"
)

var nextOffset int64

func dirent(parent, ino, version uint32, name string) *nodes.DirentNode {
	nextOffset += 64
	return &nodes.DirentNode{
		RawDirent: types.RawDirent{
			Pino:    parent,
			Ino:     ino,
			Version: version,
			Nsize:   uint8(len(name)),
			Name:    []byte(name),
		},
		NodeOffset: nextOffset,
	}
}

func typedDirent(parent, ino, version uint32, name string, dt types.DirentType) *nodes.DirentNode {
	d := dirent(parent, ino, version, name)
	d.Type = dt
	return d
}

// inodeNode builds a node whose payload is data compressed with compr.
func inodeNode(ino, version uint32, mode types.ModeT, isize, offset uint32, compr types.CompressionType, data []byte) *nodes.InodeNode {
	payload, err := compression.Compress(compr, data)
	if err != nil {
		panic(err)
	}
	nextOffset += 128
	n := &nodes.InodeNode{
		RawInode: types.RawInode{
			Ino:        ino,
			Version:    version,
			Mode:       mode,
			Isize:      isize,
			DataOffset: offset,
			Csize:      uint32(len(payload)),
			Dsize:      uint32(len(data)),
			Compr:      compr,
			DataCRC:    checksum.CRC32(payload),
		},
		NodeOffset: nextOffset,
	}
	if len(data) > 0 {
		n.Payload = payload
	}
	return n
}

func fileNode(ino, version, isize, offset uint32, data string) *nodes.InodeNode {
	return inodeNode(ino, version, types.SIfreg|0o644, isize, offset, types.CompressionNone, []byte(data))
}

func metaNode(ino, version uint32, mode types.ModeT, isize uint32) *nodes.InodeNode {
	return inodeNode(ino, version, mode, isize, 0, types.CompressionNone, nil)
}

func dirNode(ino uint32) *nodes.InodeNode {
	return metaNode(ino, 1, types.SIfdir|0o755, 0)
}

func entryPaths(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = joinPath(e.Path)
	}
	return out
}

func joinPath(path []string) string {
	s := ""
	for i, p := range path {
		if i > 0 {
			s += "/"
		}
		s += p
	}
	return s
}

func findEntry(entries []Entry, path string) *Entry {
	for i := range entries {
		if joinPath(entries[i].Path) == path {
			return &entries[i]
		}
	}
	return nil
}
