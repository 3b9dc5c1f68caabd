// Package materializer writes extracted entries to a filesystem and records
// manifests of what was written.
package materializer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/deploymenttheory/go-jffs2/internal/services"
	"github.com/deploymenttheory/go-jffs2/internal/types"
)

// ErrUnsupported is returned for entries the target filesystem cannot
// represent.
var ErrUnsupported = errors.New("not supported by the output filesystem")

// ErrSymlinkInPath is returned for entries whose parent on the output
// filesystem is a symlink.
var ErrSymlinkInPath = errors.New("path passes through a symlink")

// Options controls how entries are written.
type Options struct {
	// Overwrite replaces existing files instead of failing.
	Overwrite bool

	// PreservePerms applies the full mode including setuid, setgid and
	// sticky bits, and the owner when running as root. Without it files get
	// 0644 or 0755 and directories 0755.
	PreservePerms bool

	Logger *slog.Logger
}

type dirTimes struct {
	path  string
	atime time.Time
	mtime time.Time
	mode  os.FileMode
}

// FsMaterializer writes entries into an afero filesystem.
type FsMaterializer struct {
	fs   afero.Fs
	opts Options
	log  *slog.Logger

	dirs    []dirTimes
	written int
}

// NewFsMaterializer writes into fsys. Entry paths are made absolute within
// fsys, so it should be rooted at the destination (a BasePathFs or an
// in-memory filesystem).
func NewFsMaterializer(fsys afero.Fs, opts Options) *FsMaterializer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FsMaterializer{fs: fsys, opts: opts, log: logger}
}

// NewDirMaterializer writes below dest on the host filesystem, creating it
// if needed.
func NewDirMaterializer(dest string, opts Options) (*FsMaterializer, error) {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create destination %s: %w", dest, err)
	}
	return NewFsMaterializer(afero.NewBasePathFs(afero.NewOsFs(), dest), opts), nil
}

// Written returns the number of entries materialized so far.
func (m *FsMaterializer) Written() int {
	return m.written
}

// Materialize writes one entry. Parents must have been materialized first,
// which the order of DirectoryTree.Materialize guarantees; missing parents
// are created anyway.
func (m *FsMaterializer) Materialize(ctx context.Context, entry services.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(entry.Path) == 0 {
		return fmt.Errorf("entry for inode %d has an empty path", entry.Ino)
	}

	name := string(filepath.Separator) + filepath.Join(entry.Path...)
	if err := m.checkParents(name); err != nil {
		return fmt.Errorf("failed to materialize %s: %w", name, err)
	}
	if err := m.fs.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return fmt.Errorf("failed to create parent of %s: %w", name, err)
	}

	var err error
	switch {
	case entry.Type == types.FileTypeDirectory:
		err = m.writeDir(name, entry)
	case entry.IsHardLink():
		err = m.writeHardLink(name, entry)
	case entry.Type == types.FileTypeRegular || entry.Type == types.FileTypeUnknown:
		err = m.writeFile(name, entry)
	case entry.Type == types.FileTypeSymlink:
		err = m.writeSymlink(name, entry)
	default:
		err = m.writeSpecial(name, entry)
	}
	if err != nil {
		return fmt.Errorf("failed to materialize %s: %w", name, err)
	}

	m.written++
	if entry.Partial {
		m.log.Warn("wrote partially recovered file", "path", name, "ino", entry.Ino)
	}
	return nil
}

// Finish applies directory modes and times, which writing their children
// would otherwise disturb.
func (m *FsMaterializer) Finish() error {
	var errs []error
	for i := len(m.dirs) - 1; i >= 0; i-- {
		d := m.dirs[i]
		if err := m.fs.Chmod(d.path, d.mode); err != nil {
			errs = append(errs, err)
		}
		if err := m.fs.Chtimes(d.path, d.atime, d.mtime); err != nil {
			errs = append(errs, err)
		}
	}
	m.dirs = nil
	return errors.Join(errs...)
}

func (m *FsMaterializer) writeDir(name string, entry services.Entry) error {
	if info, err := lstat(m.fs, name); err == nil && !info.IsDir() {
		if !m.opts.Overwrite {
			return fs.ErrExist
		}
		if err := m.fs.Remove(name); err != nil {
			return err
		}
	}
	if err := m.fs.MkdirAll(name, 0o755); err != nil {
		return err
	}
	m.dirs = append(m.dirs, dirTimes{path: name, atime: entry.ATime, mtime: entry.MTime, mode: m.dirMode(entry)})
	return nil
}

func (m *FsMaterializer) writeFile(name string, entry services.Entry) error {
	if err := m.prepare(name); err != nil {
		return err
	}
	if err := afero.WriteFile(m.fs, name, entry.Content, 0o600); err != nil {
		return err
	}
	return m.applyAttrs(name, entry)
}

func (m *FsMaterializer) writeHardLink(name string, entry services.Entry) error {
	if err := m.prepare(name); err != nil {
		return err
	}
	target := string(filepath.Separator) + filepath.Join(entry.HardLinkTarget...)

	if oldname, newname, ok := m.realPaths(target, name); ok {
		if err := os.Link(oldname, newname); err == nil {
			return nil
		}
	}

	m.log.Debug("hard link not possible, writing a copy", "path", name, "target", target)
	if err := afero.WriteFile(m.fs, name, entry.Content, 0o600); err != nil {
		return err
	}
	return m.applyAttrs(name, entry)
}

// writeSymlink keeps the link target byte for byte. BasePathFs would
// rebase the target, so host paths go through os.Symlink.
func (m *FsMaterializer) writeSymlink(name string, entry services.Entry) error {
	if err := m.prepare(name); err != nil {
		return err
	}
	if hostPath, ok := m.realPath(name); ok {
		return os.Symlink(entry.LinkTarget, hostPath)
	}
	if linker, ok := m.fs.(afero.Linker); ok {
		return linker.SymlinkIfPossible(entry.LinkTarget, name)
	}
	return fmt.Errorf("symlink to %q: %w", entry.LinkTarget, ErrUnsupported)
}

func (m *FsMaterializer) writeSpecial(name string, entry services.Entry) error {
	hostPath, ok := m.realPath(name)
	if !ok {
		return fmt.Errorf("%s: %w", entry.Type, ErrUnsupported)
	}
	if err := m.prepare(name); err != nil {
		return err
	}
	if err := mknod(hostPath, entry); err != nil {
		return err
	}
	return m.applyAttrs(name, entry)
}

// checkParents refuses names below an existing symlink, which MkdirAll and
// WriteFile would otherwise follow out of the destination.
func (m *FsMaterializer) checkParents(name string) error {
	root := string(filepath.Separator)
	for dir := filepath.Dir(name); dir != root && dir != "."; dir = filepath.Dir(dir) {
		info, err := lstat(m.fs, dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%s: %w", dir, ErrSymlinkInPath)
		}
	}
	return nil
}

// prepare makes room for a new non-directory at name.
func (m *FsMaterializer) prepare(name string) error {
	if _, err := lstat(m.fs, name); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if !m.opts.Overwrite {
		return fs.ErrExist
	}
	return m.fs.RemoveAll(name)
}

func (m *FsMaterializer) applyAttrs(name string, entry services.Entry) error {
	if err := m.fs.Chmod(name, m.fileMode(entry)); err != nil {
		return err
	}
	if m.opts.PreservePerms && os.Geteuid() == 0 {
		if err := m.fs.Chown(name, int(entry.UID), int(entry.GID)); err != nil {
			return err
		}
	}
	return m.fs.Chtimes(name, entry.ATime, entry.MTime)
}

func (m *FsMaterializer) fileMode(entry services.Entry) os.FileMode {
	if m.opts.PreservePerms {
		return toFileMode(entry.Mode)
	}
	if entry.Mode&0o111 != 0 {
		return 0o755
	}
	return 0o644
}

func (m *FsMaterializer) dirMode(entry services.Entry) os.FileMode {
	if m.opts.PreservePerms {
		return toFileMode(entry.Mode)
	}
	return 0o755
}

// realPath maps name to a host path when fs is a BasePathFs.
func (m *FsMaterializer) realPath(name string) (string, bool) {
	base, ok := m.fs.(*afero.BasePathFs)
	if !ok {
		return "", false
	}
	hostPath, err := base.RealPath(name)
	if err != nil {
		return "", false
	}
	return hostPath, true
}

func (m *FsMaterializer) realPaths(oldname, newname string) (string, string, bool) {
	oldReal, ok := m.realPath(oldname)
	if !ok {
		return "", "", false
	}
	newReal, ok := m.realPath(newname)
	return oldReal, newReal, ok
}

// toFileMode converts POSIX permission bits to an os.FileMode.
func toFileMode(mode types.ModeT) os.FileMode {
	out := os.FileMode(mode & 0o777)
	if mode&0o4000 != 0 {
		out |= os.ModeSetuid
	}
	if mode&0o2000 != 0 {
		out |= os.ModeSetgid
	}
	if mode&0o1000 != 0 {
		out |= os.ModeSticky
	}
	return out
}

func lstat(fsys afero.Fs, name string) (os.FileInfo, error) {
	if lstater, ok := fsys.(afero.Lstater); ok {
		info, _, err := lstater.LstatIfPossible(name)
		return info, err
	}
	return fsys.Stat(name)
}
