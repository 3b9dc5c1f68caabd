package nodes

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-jffs2/internal/checksum"
	"github.com/deploymenttheory/go-jffs2/internal/types"
)

// parseHeader reads the common node header.
func parseHeader(data []byte, endian binary.ByteOrder) types.UnknownNode {
	return types.UnknownNode{
		Magic:    endian.Uint16(data[0:2]),
		NodeType: types.NodeType(endian.Uint16(data[2:4])),
		TotLen:   endian.Uint32(data[4:8]),
		HdrCRC:   endian.Uint32(data[8:12]),
	}
}

// parseDirent parses a dirent node. data spans the whole node (totlen bytes).
// The name is copied out of data.
func parseDirent(data []byte, endian binary.ByteOrder) (*types.RawDirent, error) {
	if len(data) < types.RawDirentSize {
		return nil, fmt.Errorf("dirent node of %d bytes is shorter than its %d byte header", len(data), types.RawDirentSize)
	}

	d := &types.RawDirent{Hdr: parseHeader(data, endian)}
	offset := types.UnknownNodeSize

	d.Pino = endian.Uint32(data[offset : offset+4])
	offset += 4

	d.Version = endian.Uint32(data[offset : offset+4])
	offset += 4

	d.Ino = endian.Uint32(data[offset : offset+4])
	offset += 4

	d.Mctime = endian.Uint32(data[offset : offset+4])
	offset += 4

	d.Nsize = data[offset]
	d.Type = types.DirentType(data[offset+1])
	copy(d.Unused[:], data[offset+2:offset+4])
	offset += 4

	d.NodeCRC = endian.Uint32(data[offset : offset+4])
	offset += 4

	d.NameCRC = endian.Uint32(data[offset : offset+4])
	offset += 4

	if got := checksum.CRC32(data[:types.DirentNodeCRCLen]); got != d.NodeCRC {
		return nil, fmt.Errorf("dirent node crc mismatch: stored 0x%08x, computed 0x%08x", d.NodeCRC, got)
	}

	end := offset + int(d.Nsize)
	if end > len(data) {
		return nil, fmt.Errorf("dirent name of %d bytes exceeds node length %d", d.Nsize, len(data))
	}
	name := data[offset:end]

	if got := checksum.CRC32(name); got != d.NameCRC {
		return nil, fmt.Errorf("dirent name crc mismatch: stored 0x%08x, computed 0x%08x", d.NameCRC, got)
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	d.Name = make([]byte, len(name))
	copy(d.Name, name)

	return d, nil
}

// validateName rejects names that cannot be a single path component.
func validateName(name []byte) error {
	switch {
	case len(name) == 0:
		return fmt.Errorf("dirent has an empty name")
	case bytes.IndexByte(name, '/') >= 0:
		return fmt.Errorf("dirent name %q contains a path separator", name)
	case bytes.IndexByte(name, 0) >= 0:
		return fmt.Errorf("dirent name %q contains a NUL byte", name)
	case bytes.Equal(name, []byte(".")) || bytes.Equal(name, []byte("..")):
		return fmt.Errorf("dirent name %q is reserved", name)
	}
	return nil
}
