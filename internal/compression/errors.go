package compression

import (
	"fmt"

	"github.com/deploymenttheory/go-jffs2/internal/types"
)

// ErrorKind classifies a DecompressionError.
type ErrorKind int

const (
	// UnsupportedCodec is a tag with no decoder.
	UnsupportedCodec ErrorKind = iota + 1

	// CorruptInput is a payload the codec rejected.
	CorruptInput

	// LengthMismatch is a payload that decoded to the wrong number of bytes.
	LengthMismatch
)

func (k ErrorKind) String() string {
	switch k {
	case UnsupportedCodec:
		return "unsupported codec"
	case CorruptInput:
		return "corrupt input"
	case LengthMismatch:
		return "length mismatch"
	default:
		return fmt.Sprintf("error kind %d", int(k))
	}
}

// DecompressionError reports a payload that could not be decoded.
type DecompressionError struct {
	Kind ErrorKind
	Tag  types.CompressionType
	Err  error
}

func (e *DecompressionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s decompression: %s: %v", e.Tag, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s decompression: %s", e.Tag, e.Kind)
}

func (e *DecompressionError) Unwrap() error {
	return e.Err
}

// IntegrityError reports a data CRC mismatch on a decoded payload.
type IntegrityError struct {
	Tag      types.CompressionType
	Expected uint32
	Actual   uint32
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s payload: data crc mismatch: expected %08x, got %08x", e.Tag, e.Expected, e.Actual)
}

func corrupt(tag types.CompressionType, format string, args ...any) *DecompressionError {
	return &DecompressionError{Kind: CorruptInput, Tag: tag, Err: fmt.Errorf(format, args...)}
}

func lengthMismatch(tag types.CompressionType, got, want int) *DecompressionError {
	return &DecompressionError{
		Kind: LengthMismatch,
		Tag:  tag,
		Err:  fmt.Errorf("decoded %d bytes, expected %d", got, want),
	}
}
