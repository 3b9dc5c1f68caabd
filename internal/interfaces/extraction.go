// File: internal/interfaces/extraction.go
package interfaces

import (
	"context"

	"github.com/deploymenttheory/go-jffs2/internal/services"
)

// ImageSource provides the raw bytes of a flash image
type ImageSource interface {
	// Bytes returns the image contents, which callers must not modify
	Bytes() []byte

	// Size returns the number of bytes in the image
	Size() int64

	// Close releases the image
	Close() error
}

// Materializer receives reconstructed entries in walk order, parents first
type Materializer interface {
	// Materialize writes a single entry
	Materialize(ctx context.Context, entry services.Entry) error

	// Finish completes any deferred work once every entry has been written
	Finish() error
}
