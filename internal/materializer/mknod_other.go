//go:build !linux && !darwin

package materializer

import (
	"fmt"

	"github.com/deploymenttheory/go-jffs2/internal/services"
)

func mknod(path string, entry services.Entry) error {
	return fmt.Errorf("%s: %w", entry.Type, ErrUnsupported)
}
