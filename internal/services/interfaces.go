package services

import (
	"context"

	"github.com/deploymenttheory/go-jffs2/internal/parsers/nodes"
	"github.com/deploymenttheory/go-jffs2/internal/types"
)

// Decompressor decodes inode node payloads.
type Decompressor interface {
	Decompress(tag types.CompressionType, payload []byte, expectedLen int) ([]byte, error)
	DecompressNode(node *nodes.InodeNode) ([]byte, error)
}

// InodeResolver turns the inode nodes of pass one into resolved inodes.
type InodeResolver interface {
	Resolve(ctx context.Context, table *InodeTable) (map[uint32]*Inode, error)
}

// Extractor runs the two-pass pipeline over an image held in memory.
type Extractor interface {
	Scan(buf []byte) *ScanResult
	Extract(ctx context.Context, buf []byte) (*ExtractionResult, error)
}

var (
	_ Decompressor  = (*CompressionService)(nil)
	_ InodeResolver = (*FragmentResolver)(nil)
	_ Extractor     = (*ExtractionService)(nil)
)
