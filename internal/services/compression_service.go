package services

import (
	"github.com/deploymenttheory/go-jffs2/internal/checksum"
	"github.com/deploymenttheory/go-jffs2/internal/compression"
	"github.com/deploymenttheory/go-jffs2/internal/parsers/nodes"
	"github.com/deploymenttheory/go-jffs2/internal/types"
)

// CompressionService handles decompression of inode node payloads
type CompressionService struct{}

// NewCompressionService creates a new compression service
func NewCompressionService() *CompressionService {
	return &CompressionService{}
}

// Decompress decodes payload with the codec named by tag. The result is
// exactly expectedLen bytes long or the call fails with a
// *compression.DecompressionError.
func (cs *CompressionService) Decompress(tag types.CompressionType, payload []byte, expectedLen int) ([]byte, error) {
	if !compression.Supported(tag) {
		return nil, &compression.DecompressionError{Kind: compression.UnsupportedCodec, Tag: tag}
	}
	if expectedLen == 0 {
		return []byte{}, nil
	}

	switch tag {
	case types.CompressionNone:
		if len(payload) != expectedLen {
			return nil, &compression.DecompressionError{
				Kind: compression.LengthMismatch,
				Tag:  tag,
			}
		}
		return payload, nil
	case types.CompressionZero:
		return make([]byte, expectedLen), nil
	case types.CompressionRtime:
		return compression.DecompressRtime(payload, expectedLen)
	case types.CompressionZlib:
		return compression.DecompressZlib(payload, expectedLen)
	case types.CompressionLzo:
		return compression.DecompressLzo(payload, expectedLen)
	case types.CompressionLzma:
		return compression.DecompressLzma(payload, expectedLen)
	default:
		return nil, &compression.DecompressionError{Kind: compression.UnsupportedCodec, Tag: tag}
	}
}

// DecompressNode decodes the payload of an inode node and verifies its data
// CRC. JFFS2 computes data_crc over the stored payload; the check also
// accepts a CRC over the decoded bytes, which some image writers produce.
func (cs *CompressionService) DecompressNode(node *nodes.InodeNode) ([]byte, error) {
	data, err := cs.Decompress(node.Compr, node.Payload, int(node.Dsize))
	if err != nil {
		return nil, err
	}

	stored := checksum.CRC32(node.Payload)
	if stored == node.DataCRC || checksum.Verify(data, node.DataCRC) {
		return data, nil
	}
	return nil, &compression.IntegrityError{Tag: node.Compr, Expected: node.DataCRC, Actual: stored}
}
