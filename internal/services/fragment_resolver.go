package services

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deploymenttheory/go-jffs2/internal/compression"
	"github.com/deploymenttheory/go-jffs2/internal/diagnostics"
	"github.com/deploymenttheory/go-jffs2/internal/parsers/nodes"
	"github.com/deploymenttheory/go-jffs2/internal/types"
)

// SyntheticDirMode is given to directories that have no inode nodes.
const SyntheticDirMode = types.SIfdir | 0o755

// MaxSymlinkTarget is the longest link target accepted, PATH_MAX on Linux.
const MaxSymlinkTarget = 4096

// maxDevicePayload is the size of the 12:20 device number encoding.
const maxDevicePayload = 4

// ResolverConfig parameterises a FragmentResolver.
type ResolverConfig struct {
	// Workers bounds the number of inodes resolved concurrently. Zero
	// means runtime.NumCPU().
	Workers int

	// MaxFileSize clips file contents. Zero disables the limit.
	MaxFileSize uint64

	// MaxTotalSize caps the regular file content held across the image.
	// Files are charged in inode order and the ones past the cap are
	// clipped. Zero disables the limit.
	MaxTotalSize uint64

	// ByteOrder is used to decode device numbers.
	ByteOrder binary.ByteOrder

	Diagnostics *diagnostics.Collector
}

// FragmentResolver folds the inode nodes of each inode number into its final
// attributes and content.
type FragmentResolver struct {
	config       ResolverConfig
	decompressor Decompressor
}

// NewFragmentResolver creates a resolver using the given decompressor.
func NewFragmentResolver(config ResolverConfig, decompressor Decompressor) *FragmentResolver {
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.ByteOrder == nil {
		config.ByteOrder = binary.LittleEndian
	}
	if decompressor == nil {
		decompressor = NewCompressionService()
	}
	return &FragmentResolver{config: config, decompressor: decompressor}
}

// Resolve resolves every inode in the table. Each inode is resolved by its
// own task; the tasks share nothing but the read-only node payloads. Parent
// inode numbers with no inode nodes become synthetic directories, and the
// root always exists in the result.
func (r *FragmentResolver) Resolve(ctx context.Context, table *InodeTable) (map[uint32]*Inode, error) {
	inos := make([]uint32, 0, len(table.Inodes))
	for ino := range table.Inodes {
		inos = append(inos, ino)
	}
	sort.Slice(inos, func(i, j int) bool { return inos[i] < inos[j] })

	limits := r.contentLimits(inos, table)
	result := make(map[uint32]*Inode, len(inos)+1)
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Workers)
	for _, ino := range inos {
		nodeList := table.Inodes[ino]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			limit, ok := limits[ino]
			if !ok {
				limit = r.fileLimit()
			}
			inode := r.resolveInode(ino, nodeList, limit)

			mu.Lock()
			result[ino] = inode
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	parents := table.Parents()
	parents[types.RootIno] = struct{}{}
	for ino := range parents {
		if _, ok := result[ino]; ok {
			continue
		}
		result[ino] = syntheticDir(ino)
		if ino != types.RootIno {
			r.config.Diagnostics.Recordf(diagnostics.OrphanInode, diagnostics.NoOffset, ino,
				"directory has entries but no inode nodes; using default attributes")
		}
	}

	return result, nil
}

// ResolveInode folds the nodes of one inode, given in scan order.
func (r *FragmentResolver) ResolveInode(ino uint32, nodeList []*nodes.InodeNode) *Inode {
	return r.resolveInode(ino, nodeList, r.fileLimit())
}

// resolveInode folds one inode, clipping regular file content to limit.
func (r *FragmentResolver) resolveInode(ino uint32, nodeList []*nodes.InodeNode, limit uint64) *Inode {
	ordered := make([]*nodes.InodeNode, len(nodeList))
	copy(ordered, nodeList)
	// Stable, so the later record in scan order wins a version tie.
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Version < ordered[j].Version })

	latest := ordered[len(ordered)-1]
	inode := &Inode{
		Ino:      ino,
		Mode:     latest.Mode,
		UID:      uint32(latest.UID),
		GID:      uint32(latest.GID),
		Size:     uint64(latest.Isize),
		ATime:    unixTime(latest.Atime),
		MTime:    unixTime(latest.Mtime),
		CTime:    unixTime(latest.Ctime),
		Versions: len(ordered),
		Version:  latest.Version,
	}

	var frags fragmentMap
	for _, node := range ordered {
		if node.MetadataOnly() {
			continue
		}
		r.applyFragment(inode, &frags, node, limit)
	}

	switch inode.Type() {
	case types.FileTypeDirectory:
		inode.Size = 0
	case types.FileTypeRegular, types.FileTypeUnknown:
		if inode.Size > limit {
			r.config.Diagnostics.Recordf(diagnostics.SizeClipped, latest.NodeOffset, ino,
				"size %d exceeds limit %d", inode.Size, limit)
			inode.Size = limit
			inode.Partial = true
		}
		inode.Content = frags.assemble(inode.Size)
	case types.FileTypeSymlink:
		size := specialSize(inode.Size, &frags)
		if size > MaxSymlinkTarget {
			inode.Partial = true
			r.config.Diagnostics.Recordf(diagnostics.StructuralInvalid, latest.NodeOffset, ino,
				"symlink target of %d bytes is longer than %d", size, MaxSymlinkTarget)
			inode.Size = 0
			break
		}
		target := frags.assemble(size)
		inode.LinkTarget = string(target)
		inode.Size = uint64(len(target))
	case types.FileTypeCharDevice, types.FileTypeBlockDevice:
		size := specialSize(inode.Size, &frags)
		if size > maxDevicePayload {
			inode.Partial = true
			r.config.Diagnostics.Recordf(diagnostics.StructuralInvalid, latest.NodeOffset, ino,
				"device payload of %d bytes is longer than %d", size, maxDevicePayload)
		} else {
			r.decodeDevice(inode, frags.assemble(size), latest.NodeOffset)
		}
		inode.Size = 0
	default:
		inode.Size = 0
	}

	return inode
}

// applyFragment inserts one data node into frags. Nodes that cannot be
// decoded leave zeros over their range; nodes that fail the data CRC are
// dropped so older data shows through.
func (r *FragmentResolver) applyFragment(inode *Inode, frags *fragmentMap, node *nodes.InodeNode, limit uint64) {
	start, length := uint64(node.DataOffset), uint64(node.Dsize)
	if start >= limit {
		return
	}
	if start+length > limit && node.Compr == types.CompressionZero {
		length = limit - start
	}

	if node.Compr == types.CompressionZero {
		frags.insertZero(start, length)
		return
	}

	data, err := r.decompressor.DecompressNode(node)
	if err == nil {
		frags.insert(start, data)
		return
	}

	inode.Partial = true

	var integrity *compression.IntegrityError
	if errors.As(err, &integrity) {
		r.config.Diagnostics.Recordf(diagnostics.IntegrityError, node.NodeOffset, inode.Ino,
			"fragment [%d, %d) version %d discarded: %v", start, start+length, node.Version, err)
		return
	}

	kind := diagnostics.DecompressionFailed
	var derr *compression.DecompressionError
	if errors.As(err, &derr) && derr.Kind == compression.UnsupportedCodec {
		kind = diagnostics.UnsupportedCodec
	}
	r.config.Diagnostics.Recordf(kind, node.NodeOffset, inode.Ino,
		"fragment [%d, %d) version %d zero-filled: %v", start, start+length, node.Version, err)
	frags.insertZero(start, length)
}

// decodeDevice reads the device number stored as the payload of a device
// inode: two bytes in the old 8:8 encoding or four in the new 12:20 one.
func (r *FragmentResolver) decodeDevice(inode *Inode, payload []byte, offset int64) {
	order := r.config.ByteOrder
	switch len(payload) {
	case 2:
		dev := uint32(order.Uint16(payload))
		inode.DevMajor = (dev >> 8) & 0xff
		inode.DevMinor = dev & 0xff
	case 4:
		dev := order.Uint32(payload)
		inode.DevMajor = (dev & 0xfff00) >> 8
		inode.DevMinor = (dev & 0xff) | ((dev >> 12) & 0xfff00)
	default:
		inode.Partial = true
		r.config.Diagnostics.Recordf(diagnostics.StructuralInvalid, offset, inode.Ino,
			"device payload of %d bytes is neither 2 nor 4 bytes", len(payload))
	}
}

// fileLimit is the content limit of a single file.
func (r *FragmentResolver) fileLimit() uint64 {
	if r.config.MaxFileSize == 0 {
		return math.MaxUint64
	}
	return r.config.MaxFileSize
}

// contentLimits charges the size each regular file will have against
// MaxTotalSize, in inode order, and returns the reduced limit of every file
// that does not fit in what is left.
func (r *FragmentResolver) contentLimits(inos []uint32, table *InodeTable) map[uint32]uint64 {
	limits := make(map[uint32]uint64)
	if r.config.MaxTotalSize == 0 {
		return limits
	}
	remaining := r.config.MaxTotalSize
	for _, ino := range inos {
		latest := latestNode(table.Inodes[ino])
		switch types.FileTypeFromMode(latest.Mode) {
		case types.FileTypeRegular, types.FileTypeUnknown:
		default:
			continue
		}
		size := min(uint64(latest.Isize), r.fileLimit())
		if size > remaining {
			limits[ino] = remaining
			size = remaining
		}
		remaining -= size
	}
	return limits
}

// latestNode returns the node whose metadata wins: the highest version, and
// on a tie the later one in scan order.
func latestNode(nodeList []*nodes.InodeNode) *nodes.InodeNode {
	latest := nodeList[0]
	for _, n := range nodeList[1:] {
		if n.Version >= latest.Version {
			latest = n
		}
	}
	return latest
}

// specialSize is the payload length of a symlink or device. Writers differ
// on whether isize is set for them, so the covered range is used when it
// is unset or larger.
func specialSize(isize uint64, frags *fragmentMap) uint64 {
	if isize == 0 || isize > frags.end() {
		return frags.end()
	}
	return isize
}

func syntheticDir(ino uint32) *Inode {
	return &Inode{
		Ino:       ino,
		Mode:      SyntheticDirMode,
		ATime:     unixTime(0),
		MTime:     unixTime(0),
		CTime:     unixTime(0),
		Synthetic: true,
	}
}

func unixTime(sec uint32) time.Time {
	return time.Unix(int64(sec), 0).UTC()
}
