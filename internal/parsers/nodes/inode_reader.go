package nodes

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-jffs2/internal/checksum"
	"github.com/deploymenttheory/go-jffs2/internal/types"
)

// parseInode parses an inode node. data spans the whole node; the returned
// payload aliases data and is nil for metadata-only nodes.
func parseInode(data []byte, endian binary.ByteOrder) (*types.RawInode, []byte, error) {
	if len(data) < types.RawInodeSize {
		return nil, nil, fmt.Errorf("inode node of %d bytes is shorter than its %d byte header", len(data), types.RawInodeSize)
	}

	in := &types.RawInode{Hdr: parseHeader(data, endian)}
	offset := types.UnknownNodeSize

	in.Ino = endian.Uint32(data[offset : offset+4])
	offset += 4

	in.Version = endian.Uint32(data[offset : offset+4])
	offset += 4

	in.Mode = types.ModeT(endian.Uint32(data[offset : offset+4]))
	offset += 4

	in.UID = endian.Uint16(data[offset : offset+2])
	in.GID = endian.Uint16(data[offset+2 : offset+4])
	offset += 4

	in.Isize = endian.Uint32(data[offset : offset+4])
	offset += 4

	in.Atime = endian.Uint32(data[offset : offset+4])
	in.Mtime = endian.Uint32(data[offset+4 : offset+8])
	in.Ctime = endian.Uint32(data[offset+8 : offset+12])
	offset += 12

	in.DataOffset = endian.Uint32(data[offset : offset+4])
	offset += 4

	in.Csize = endian.Uint32(data[offset : offset+4])
	offset += 4

	in.Dsize = endian.Uint32(data[offset : offset+4])
	offset += 4

	in.Compr = types.CompressionType(data[offset])
	in.Usercompr = data[offset+1]
	in.Flags = endian.Uint16(data[offset+2 : offset+4])
	offset += 4

	in.DataCRC = endian.Uint32(data[offset : offset+4])
	offset += 4

	in.NodeCRC = endian.Uint32(data[offset : offset+4])

	if got := checksum.CRC32(data[:types.InodeNodeCRCLen]); got != in.NodeCRC {
		return nil, nil, fmt.Errorf("inode node crc mismatch: stored 0x%08x, computed 0x%08x", in.NodeCRC, got)
	}
	if uint64(types.RawInodeSize)+uint64(in.Csize) > uint64(len(data)) {
		return nil, nil, fmt.Errorf("inode payload of %d bytes exceeds node length %d", in.Csize, len(data))
	}
	if !in.Compr.IsKnown() {
		return nil, nil, fmt.Errorf("inode uses unknown compression tag %d", uint8(in.Compr))
	}
	if in.Dsize == 0 {
		return in, nil, nil
	}

	return in, data[types.RawInodeSize : types.RawInodeSize+int(in.Csize)], nil
}
