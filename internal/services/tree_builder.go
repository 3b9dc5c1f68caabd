package services

import (
	"bytes"
	"sort"
	"strconv"
	"strings"

	"github.com/deploymenttheory/go-jffs2/internal/diagnostics"
	"github.com/deploymenttheory/go-jffs2/internal/parsers/nodes"
	"github.com/deploymenttheory/go-jffs2/internal/types"
)

// DefaultOrphanDir is the top-level directory orphans are recovered into.
const DefaultOrphanDir = "lost+found"

// direntKey identifies a name within a directory.
type direntKey struct {
	parent uint32
	name   string
}

// Edge is a live name in a directory.
type Edge struct {
	Parent uint32
	Name   []byte
	Ino    uint32
	Hint   types.DirentType
	Offset int64
}

// DirectoryTree maps (parent, name) to child inode numbers.
type DirectoryTree struct {
	children map[uint32][]Edge
	parentOf map[uint32]uint32
	unlinked map[uint32]bool
	diag     *diagnostics.Collector
}

// BuildDirectoryTree folds dirents, given in scan order, into a tree. For
// each (parent, name) the highest version wins, and on a tie the later
// record. A winning dirent with inode zero removes the name. Inodes that
// were named once but lost every name are unlinked, not orphaned.
func BuildDirectoryTree(dirents []*nodes.DirentNode, diag *diagnostics.Collector) *DirectoryTree {
	winners := foldDirents(dirents)

	t := &DirectoryTree{
		children: make(map[uint32][]Edge),
		parentOf: make(map[uint32]uint32),
		unlinked: make(map[uint32]bool),
		diag:     diag,
	}
	for _, d := range dirents {
		if !d.IsDeletion() {
			t.unlinked[d.Ino] = true
		}
	}
	for key, d := range winners {
		if d.IsDeletion() {
			continue
		}
		t.children[key.parent] = append(t.children[key.parent], Edge{
			Parent: d.Pino,
			Name:   d.Name,
			Ino:    d.Ino,
			Hint:   d.Type,
			Offset: d.NodeOffset,
		})
	}
	for parent, edges := range t.children {
		sort.Slice(edges, func(i, j int) bool { return bytes.Compare(edges[i].Name, edges[j].Name) < 0 })
		for _, e := range edges {
			delete(t.unlinked, e.Ino)
			if _, ok := t.parentOf[e.Ino]; !ok || parent < t.parentOf[e.Ino] {
				t.parentOf[e.Ino] = parent
			}
		}
	}
	return t
}

// foldDirents keeps the winning dirent of each (parent, name).
func foldDirents(dirents []*nodes.DirentNode) map[direntKey]*nodes.DirentNode {
	winners := make(map[direntKey]*nodes.DirentNode, len(dirents))
	for _, d := range dirents {
		key := direntKey{parent: d.Pino, name: string(d.Name)}
		if cur, ok := winners[key]; ok && cur.Version > d.Version {
			continue
		}
		winners[key] = d
	}
	return winners
}

// Children returns the live names in a directory sorted bytewise.
func (t *DirectoryTree) Children(parent uint32) []Edge {
	return t.children[parent]
}

// Lookup returns the inode a name in parent points at.
func (t *DirectoryTree) Lookup(parent uint32, name string) (uint32, bool) {
	for _, e := range t.children[parent] {
		if string(e.Name) == name {
			return e.Ino, true
		}
	}
	return 0, false
}

// Unlinked reports whether ino was named by some dirent but has no live
// name left.
func (t *DirectoryTree) Unlinked(ino uint32) bool {
	return t.unlinked[ino]
}

// Len returns the number of live names.
func (t *DirectoryTree) Len() int {
	n := 0
	for _, edges := range t.children {
		n += len(edges)
	}
	return n
}

// MaterializeOptions controls how the tree is flattened into entries.
type MaterializeOptions struct {
	// RecoverOrphans emits unreachable inodes under OrphanDir.
	RecoverOrphans bool

	// OrphanDir defaults to DefaultOrphanDir.
	OrphanDir string
}

// walker carries the state of one Materialize call.
type walker struct {
	tree    *DirectoryTree
	inodes  map[uint32]*Inode
	entries []Entry
	primary map[uint32]int
	reached map[uint32]bool
}

// Materialize walks the tree from the root and returns one entry per path
// in walk order. Parents precede their children and siblings are sorted
// by name.
func (t *DirectoryTree) Materialize(inodes map[uint32]*Inode, opts MaterializeOptions) []Entry {
	if opts.OrphanDir == "" {
		opts.OrphanDir = DefaultOrphanDir
	}

	w := &walker{
		tree:    t,
		inodes:  inodes,
		primary: make(map[uint32]int),
		reached: map[uint32]bool{types.RootIno: true},
	}
	w.walk(types.RootIno, nil, map[uint32]bool{types.RootIno: true}, false)

	roots := w.orphanRoots()
	orphanDir := opts.OrphanDir
	if opts.RecoverOrphans && len(roots) > 0 {
		orphanDir = t.freeRootName(opts.OrphanDir)
		if orphanDir != opts.OrphanDir {
			t.diag.Recordf(diagnostics.OrphanInode, diagnostics.NoOffset, 0,
				"root already has an entry named %q; orphans recovered under %q", opts.OrphanDir, orphanDir)
		}
	}

	for _, ino := range roots {
		if !opts.RecoverOrphans {
			t.diag.Recordf(diagnostics.OrphanInode, diagnostics.NoOffset, ino, "unreachable inode not recovered")
			continue
		}
		path := []string{orphanDir, strconv.FormatUint(uint64(ino), 10)}
		t.diag.Recordf(diagnostics.OrphanInode, diagnostics.NoOffset, ino,
			"unreachable inode recovered as %s", strings.Join(path, "/"))
		w.emit(Edge{Ino: ino, Offset: diagnostics.NoOffset}, path, map[uint32]bool{types.RootIno: true}, true)
	}

	return w.entries
}

// freeRootName returns name, or name with the first numeric suffix that no
// root entry uses.
func (t *DirectoryTree) freeRootName(name string) string {
	taken := make(map[string]bool)
	for _, e := range t.Children(types.RootIno) {
		taken[string(e.Name)] = true
	}
	candidate := name
	for i := 1; taken[candidate]; i++ {
		candidate = name + "." + strconv.Itoa(i)
	}
	return candidate
}

// walk emits the children of dir. onPath holds the directories between
// the walk's start and dir.
func (w *walker) walk(dir uint32, prefix []string, onPath map[uint32]bool, orphan bool) {
	for _, e := range w.tree.Children(dir) {
		path := make([]string, len(prefix)+1)
		copy(path, prefix)
		path[len(prefix)] = string(e.Name)
		w.emit(e, path, onPath, orphan)
	}
}

func (w *walker) emit(e Edge, path []string, onPath map[uint32]bool, orphan bool) {
	diag := w.tree.diag
	if onPath[e.Ino] {
		diag.Recordf(diagnostics.CycleDetected, e.Offset, e.Ino,
			"%s points back at an ancestor directory; not followed", strings.Join(path, "/"))
		return
	}

	inode, ok := w.inodes[e.Ino]
	if !ok {
		diag.Recordf(diagnostics.DanglingReference, e.Offset, e.Ino,
			"%s points at an inode with no nodes", strings.Join(path, "/"))
		return
	}

	entry := newEntry(path, inode, e.Hint)
	entry.Orphan = orphan

	if idx, seen := w.primary[e.Ino]; seen {
		if entry.Type == types.FileTypeDirectory {
			diag.Recordf(diagnostics.CycleDetected, e.Offset, e.Ino,
				"directory %s is already linked at %s; not followed",
				strings.Join(path, "/"), strings.Join(w.entries[idx].Path, "/"))
			return
		}
		w.entries[idx].LinkGroup = e.Ino
		entry.LinkGroup = e.Ino
		entry.HardLinkTarget = w.entries[idx].Path
		w.entries = append(w.entries, entry)
		return
	}

	w.primary[e.Ino] = len(w.entries)
	w.reached[e.Ino] = true
	w.entries = append(w.entries, entry)

	if entry.Type == types.FileTypeDirectory {
		onPath[e.Ino] = true
		w.walk(e.Ino, path, onPath, orphan)
		delete(onPath, e.Ino)
	}
}

// orphanRoots returns the unreached inodes whose parent chain does not lead
// to another unreached inode, in ascending order. Recovering them recovers
// every unreached subtree.
func (w *walker) orphanRoots() []uint32 {
	var roots []uint32
	for ino := range w.inodes {
		if w.reached[ino] || w.tree.unlinked[ino] {
			continue
		}
		if w.topOfChain(ino) == ino {
			roots = append(roots, ino)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })
	return roots
}

// topOfChain climbs parents from ino through unreached resolved inodes and
// returns the highest one. A loop resolves to its smallest member.
func (w *walker) topOfChain(ino uint32) uint32 {
	chain := []uint32{ino}
	index := map[uint32]int{ino: 0}
	for {
		top := chain[len(chain)-1]
		parent, ok := w.tree.parentOf[top]
		if !ok || w.reached[parent] {
			return top
		}
		if _, resolved := w.inodes[parent]; !resolved {
			return top
		}
		if at, looped := index[parent]; looped {
			return smallest(chain[at:])
		}
		index[parent] = len(chain)
		chain = append(chain, parent)
	}
}

func smallest(inos []uint32) uint32 {
	lowest := inos[0]
	for _, ino := range inos[1:] {
		if ino < lowest {
			lowest = ino
		}
	}
	return lowest
}

func newEntry(path []string, inode *Inode, hint types.DirentType) Entry {
	fileType := inode.Type()
	if fileType == types.FileTypeUnknown {
		fileType = types.FileTypeFromDirent(hint)
	}
	return Entry{
		Path:       path,
		Type:       fileType,
		Mode:       inode.Mode.Perm(),
		UID:        inode.UID,
		GID:        inode.GID,
		Size:       inode.Size,
		ATime:      inode.ATime,
		MTime:      inode.MTime,
		CTime:      inode.CTime,
		Content:    inode.Content,
		LinkTarget: inode.LinkTarget,
		DevMajor:   inode.DevMajor,
		DevMinor:   inode.DevMinor,
		Ino:        inode.Ino,
		Partial:    inode.Partial,
	}
}
