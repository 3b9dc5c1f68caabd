//go:build linux || darwin

package materializer

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/deploymenttheory/go-jffs2/internal/services"
	"github.com/deploymenttheory/go-jffs2/internal/types"
)

func mknod(path string, entry services.Entry) error {
	perm := uint32(entry.Mode & types.SIperm)
	switch entry.Type {
	case types.FileTypeCharDevice:
		return unix.Mknod(path, unix.S_IFCHR|perm, int(unix.Mkdev(entry.DevMajor, entry.DevMinor)))
	case types.FileTypeBlockDevice:
		return unix.Mknod(path, unix.S_IFBLK|perm, int(unix.Mkdev(entry.DevMajor, entry.DevMinor)))
	case types.FileTypeFifo:
		return unix.Mkfifo(path, perm)
	default:
		return fmt.Errorf("%s: %w", entry.Type, ErrUnsupported)
	}
}
