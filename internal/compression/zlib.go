package compression

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/deploymenttheory/go-jffs2/internal/types"
)

// DecompressZlib decodes a zlib stream that must expand to exactly destLen bytes.
func DecompressZlib(src []byte, destLen int) ([]byte, error) {
	reader, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, corrupt(types.CompressionZlib, "%w", err)
	}
	defer reader.Close()

	out, err := readExactly(reader, destLen)
	if err != nil {
		return nil, corrupt(types.CompressionZlib, "%w", err)
	}
	if len(out) != destLen {
		return nil, lengthMismatch(types.CompressionZlib, len(out), destLen)
	}
	return out, nil
}

// CompressZlib encodes data as a zlib stream at the best compression level,
// which is what mkfs.jffs2 uses.
func CompressZlib(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("zlib writer: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("zlib close: %w", err)
	}
	return buf.Bytes(), nil
}

// readExactly reads at most destLen+1 bytes so an oversized stream is
// detected without decoding all of it.
func readExactly(r io.Reader, destLen int) ([]byte, error) {
	out := make([]byte, 0, destLen)
	buf := bytes.NewBuffer(out)
	if _, err := io.Copy(buf, io.LimitReader(r, int64(destLen)+1)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
