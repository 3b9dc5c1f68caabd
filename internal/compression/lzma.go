package compression

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ulikunitz/xz/lzma"

	"github.com/deploymenttheory/go-jffs2/internal/types"
)

// lzmaHeader builds the classic 13-byte LZMA header the on-flash stream
// omits: properties, dictionary size and the uncompressed length.
func lzmaHeader(destLen int) []byte {
	header := make([]byte, lzma.HeaderLen)
	header[0] = types.LzmaProperties
	binary.LittleEndian.PutUint32(header[1:5], types.LzmaDictSize)
	binary.LittleEndian.PutUint64(header[5:13], uint64(destLen))
	return header
}

// DecompressLzma decodes a JFFS2 LZMA payload into exactly destLen bytes.
func DecompressLzma(src []byte, destLen int) ([]byte, error) {
	stream := io.MultiReader(bytes.NewReader(lzmaHeader(destLen)), bytes.NewReader(src))
	reader, err := lzma.NewReader(stream)
	if err != nil {
		return nil, corrupt(types.CompressionLzma, "%w", err)
	}

	out, err := readExactly(reader, destLen)
	if err != nil {
		return nil, corrupt(types.CompressionLzma, "%w", err)
	}
	if len(out) != destLen {
		return nil, lengthMismatch(types.CompressionLzma, len(out), destLen)
	}
	return out, nil
}

// CompressLzma encodes data with the JFFS2 LZMA parameters and strips the
// header, producing the bytes an inode node stores.
func CompressLzma(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	config := lzma.WriterConfig{
		Properties:   &lzma.Properties{LC: types.LzmaLC, LP: types.LzmaLP, PB: types.LzmaPB},
		DictCap:      types.LzmaDictSize,
		SizeInHeader: true,
		Size:         int64(len(data)),
	}
	writer, err := config.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("lzma writer: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("lzma compress: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("lzma close: %w", err)
	}
	return buf.Bytes()[lzma.HeaderLen:], nil
}
