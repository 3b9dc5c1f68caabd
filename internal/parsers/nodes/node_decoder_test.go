package nodes

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-jffs2/internal/checksum"
	"github.com/deploymenttheory/go-jffs2/internal/diagnostics"
	"github.com/deploymenttheory/go-jffs2/internal/imagebuilder"
	"github.com/deploymenttheory/go-jffs2/internal/types"
)

// firstNode builds an image with fill and returns its first content node.
func firstNode(t *testing.T, order binary.ByteOrder, fill func(b *imagebuilder.Builder)) RawNode {
	t.Helper()
	b := imagebuilder.New(imagebuilder.WithByteOrder(order))
	fill(b)
	s := NewNodeScanner(b.Bytes(), ScannerConfig{ByteOrder: order})
	require.True(t, s.Next())
	return s.Node()
}

// resign recomputes the CRC stored at crcAt over data[:crcAt] so a tampered
// field reaches the check under test.
func resign(order binary.ByteOrder, data []byte, crcAt int) {
	order.PutUint32(data[crcAt:], checksum.CRC32(data[:crcAt]))
}

func requireIgnored(t *testing.T, n Node) {
	t.Helper()
	ig, ok := n.(*IgnoredNode)
	require.True(t, ok, "expected *IgnoredNode, got %T", n)

	var derr *diagnostics.Error
	require.True(t, errors.As(ig.Reason, &derr))
	assert.Equal(t, diagnostics.StructuralInvalid, derr.Kind)
	assert.Equal(t, ig.NodeOffset, derr.Offset)
}

func TestDecodeDirent(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		t.Run(ByteOrderName(order), func(t *testing.T) {
			raw := firstNode(t, order, func(b *imagebuilder.Builder) {
				b.AddDirent(imagebuilder.Dirent{Parent: 7, Ino: 9, Version: 3, MCTime: 1700000000, Type: types.DtReg, Name: "config.txt"})
			})

			d, ok := DecodeNode(raw, order).(*DirentNode)
			require.True(t, ok)
			assert.Equal(t, raw.Offset, d.Position())
			assert.Equal(t, uint32(7), d.Pino)
			assert.Equal(t, uint32(9), d.Ino)
			assert.Equal(t, uint32(3), d.Version)
			assert.Equal(t, uint32(1700000000), d.Mctime)
			assert.Equal(t, types.DtReg, d.Type)
			assert.Equal(t, uint8(10), d.Nsize)
			assert.Equal(t, "config.txt", string(d.Name))
			assert.False(t, d.IsDeletion())
		})
	}
}

func TestDecodeDirentDeletion(t *testing.T) {
	raw := firstNode(t, binary.LittleEndian, func(b *imagebuilder.Builder) {
		b.Unlink(types.RootIno, "gone")
	})
	d, ok := DecodeNode(raw, binary.LittleEndian).(*DirentNode)
	require.True(t, ok)
	assert.True(t, d.IsDeletion())
}

func TestDecodeDirentRejects(t *testing.T) {
	order := binary.LittleEndian
	tests := []struct {
		name   string
		entry  string
		tamper func(data []byte)
	}{
		{"node crc", "file", func(data []byte) { data[20] ^= 0xff }},
		{"name crc", "file", func(data []byte) { data[types.RawDirentSize] ^= 0x01 }},
		{"name longer than node", "file", func(data []byte) {
			data[28] = 200
			resign(order, data, types.DirentNodeCRCLen)
		}},
		{"empty name", "", nil},
		{"separator", "a/b", nil},
		{"nul", "a\x00b", nil},
		{"dot", ".", nil},
		{"dotdot", "..", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := firstNode(t, order, func(b *imagebuilder.Builder) {
				b.AddDirent(imagebuilder.Dirent{Parent: types.RootIno, Ino: 2, Name: tt.entry})
			})
			data := append([]byte(nil), raw.Data...)
			if tt.tamper != nil {
				tt.tamper(data)
			}
			raw.Data = data
			requireIgnored(t, DecodeNode(raw, order))
		})
	}
}

func TestDecodeInode(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		t.Run(ByteOrderName(order), func(t *testing.T) {
			raw := firstNode(t, order, func(b *imagebuilder.Builder) {
				_, err := b.AddInode(imagebuilder.Inode{
					Ino: 4, Version: 2, Mode: types.SIfreg | 0o640, UID: 1000, GID: 100,
					Isize: 16, Atime: 1, Mtime: 2, Ctime: 3, Offset: 8,
					Compr: types.CompressionZlib, Data: []byte("payload!"),
				})
				require.NoError(t, err)
			})

			in, ok := DecodeNode(raw, order).(*InodeNode)
			require.True(t, ok)
			assert.Equal(t, uint32(4), in.Ino)
			assert.Equal(t, uint32(2), in.Version)
			assert.Equal(t, types.SIfreg|0o640, in.Mode)
			assert.Equal(t, uint16(1000), in.UID)
			assert.Equal(t, uint16(100), in.GID)
			assert.Equal(t, uint32(16), in.Isize)
			assert.Equal(t, uint32(1), in.Atime)
			assert.Equal(t, uint32(2), in.Mtime)
			assert.Equal(t, uint32(3), in.Ctime)
			assert.Equal(t, uint32(8), in.DataOffset)
			assert.Equal(t, uint32(8), in.Dsize)
			assert.Equal(t, uint64(16), in.End())
			assert.Equal(t, types.CompressionZlib, in.Compr)
			assert.Len(t, in.Payload, int(in.Csize))
			assert.Equal(t, checksum.CRC32(in.Payload), in.DataCRC)
			assert.False(t, in.MetadataOnly())
		})
	}
}

func TestDecodeInodeMetadataOnlyAndHole(t *testing.T) {
	order := binary.LittleEndian

	raw := firstNode(t, order, func(b *imagebuilder.Builder) {
		require.NoError(t, b.Truncate(5, 100, imagebuilder.Attr{}))
	})
	in, ok := DecodeNode(raw, order).(*InodeNode)
	require.True(t, ok)
	assert.True(t, in.MetadataOnly())
	assert.Nil(t, in.Payload)
	assert.Equal(t, uint32(100), in.Isize)

	raw = firstNode(t, order, func(b *imagebuilder.Builder) {
		require.NoError(t, b.Hole(5, 0, 4096, 4096, imagebuilder.Attr{}))
	})
	in, ok = DecodeNode(raw, order).(*InodeNode)
	require.True(t, ok)
	assert.False(t, in.MetadataOnly())
	assert.Equal(t, types.CompressionZero, in.Compr)
	assert.Zero(t, in.Csize)
	assert.Equal(t, uint32(4096), in.Dsize)
}

func TestDecodeInodeRejects(t *testing.T) {
	order := binary.LittleEndian
	tests := []struct {
		name   string
		tamper func(data []byte)
	}{
		{"node crc", func(data []byte) { data[12] ^= 0x01 }},
		{"payload longer than node", func(data []byte) {
			order.PutUint32(data[48:], 4096)
			resign(order, data, types.InodeNodeCRCLen)
		}},
		{"unknown compression", func(data []byte) {
			data[56] = 9
			resign(order, data, types.InodeNodeCRCLen)
		}},
		{"truncated header", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := firstNode(t, order, func(b *imagebuilder.Builder) {
				_, err := b.AddInode(imagebuilder.Inode{Ino: 4, Mode: types.SIfreg, Isize: 4, Data: []byte("data")})
				require.NoError(t, err)
			})
			data := append([]byte(nil), raw.Data...)
			if tt.tamper != nil {
				tt.tamper(data)
			} else {
				data = data[:types.RawInodeSize-1]
			}
			raw.Data = data
			requireIgnored(t, DecodeNode(raw, order))
		})
	}
}

func TestDecodeNodeOtherTypes(t *testing.T) {
	raw := RawNode{Offset: 64, NodeType: types.NodeTypePadding, TotalLen: 12, Data: make([]byte, 12)}
	requireIgnored(t, DecodeNode(raw, binary.LittleEndian))
}
