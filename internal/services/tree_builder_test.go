package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-jffs2/internal/diagnostics"
	"github.com/deploymenttheory/go-jffs2/internal/parsers/nodes"
	"github.com/deploymenttheory/go-jffs2/internal/types"
)

func resolvedInodes(t *testing.T, inodeNodes ...*nodes.InodeNode) map[uint32]*Inode {
	t.Helper()
	r := newTestResolver(nil)
	grouped := make(map[uint32][]*nodes.InodeNode)
	for _, n := range inodeNodes {
		grouped[n.Ino] = append(grouped[n.Ino], n)
	}
	out := map[uint32]*Inode{types.RootIno: syntheticDir(types.RootIno)}
	for ino, list := range grouped {
		out[ino] = r.ResolveInode(ino, list)
	}
	return out
}

func TestBuildDirectoryTreeDeletion(t *testing.T) {
	tree := BuildDirectoryTree([]*nodes.DirentNode{
		dirent(types.RootIno, 10, 1, "a"),
		dirent(types.RootIno, 0, 2, "a"),
	}, nil)

	_, ok := tree.Lookup(types.RootIno, "a")
	assert.False(t, ok)
	assert.Zero(t, tree.Len())

	entries := tree.Materialize(resolvedInodes(t, fileNode(10, 1, 1, 0, "x")), MaterializeOptions{})
	assert.Empty(t, entries)
}

func TestBuildDirectoryTreeVersionPrecedence(t *testing.T) {
	tests := []struct {
		name    string
		dirents []*nodes.DirentNode
		wantIno uint32
		wantOK  bool
	}{
		{
			name:    "higher version later",
			dirents: []*nodes.DirentNode{dirent(1, 10, 1, "a"), dirent(1, 11, 2, "a")},
			wantIno: 11,
			wantOK:  true,
		},
		{
			name:    "higher version earlier in scan order",
			dirents: []*nodes.DirentNode{dirent(1, 11, 2, "a"), dirent(1, 10, 1, "a")},
			wantIno: 11,
			wantOK:  true,
		},
		{
			name:    "tie goes to the later record",
			dirents: []*nodes.DirentNode{dirent(1, 10, 3, "a"), dirent(1, 11, 3, "a")},
			wantIno: 11,
			wantOK:  true,
		},
		{
			name:    "recreated after deletion",
			dirents: []*nodes.DirentNode{dirent(1, 10, 1, "a"), dirent(1, 0, 2, "a"), dirent(1, 12, 3, "a")},
			wantIno: 12,
			wantOK:  true,
		},
		{
			name:    "stale deletion loses",
			dirents: []*nodes.DirentNode{dirent(1, 0, 1, "a"), dirent(1, 10, 2, "a")},
			wantIno: 10,
			wantOK:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := BuildDirectoryTree(tt.dirents, nil)
			ino, ok := tree.Lookup(1, "a")
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantIno, ino)
		})
	}
}

func TestMaterializeWalkOrder(t *testing.T) {
	tree := BuildDirectoryTree([]*nodes.DirentNode{
		typedDirent(1, 3, 1, "usr", types.DtDir),
		typedDirent(1, 2, 2, "etc", types.DtDir),
		dirent(2, 5, 1, "passwd"),
		dirent(2, 4, 2, "hosts"),
		dirent(3, 6, 1, "bin"),
	}, nil)

	inodes := resolvedInodes(t,
		dirNode(2), dirNode(3),
		fileNode(4, 1, 5, 0, "hosts"),
		fileNode(5, 1, 6, 0, "passwd"),
		dirNode(6),
	)

	entries := tree.Materialize(inodes, MaterializeOptions{})
	assert.Equal(t, []string{"etc", "etc/hosts", "etc/passwd", "usr", "usr/bin"}, entryPaths(entries))

	hosts := findEntry(entries, "etc/hosts")
	require.NotNil(t, hosts)
	assert.Equal(t, types.FileTypeRegular, hosts.Type)
	assert.Equal(t, "hosts", string(hosts.Content))
	assert.Equal(t, types.ModeT(0o644), hosts.Mode)
}

func TestMaterializeHardLinks(t *testing.T) {
	tree := BuildDirectoryTree([]*nodes.DirentNode{
		dirent(1, 42, 1, "first"),
		dirent(1, 42, 2, "second"),
	}, nil)
	inodes := resolvedInodes(t, fileNode(42, 1, 6, 0, "shared"))

	entries := tree.Materialize(inodes, MaterializeOptions{})
	require.Len(t, entries, 2)

	first, second := findEntry(entries, "first"), findEntry(entries, "second")
	require.NotNil(t, first)
	require.NotNil(t, second)

	assert.Equal(t, uint32(42), first.LinkGroup)
	assert.Equal(t, uint32(42), second.LinkGroup)
	assert.False(t, first.IsHardLink())
	assert.True(t, second.IsHardLink())
	assert.Equal(t, []string{"first"}, second.HardLinkTarget)
	assert.Equal(t, "shared", string(first.Content))
	assert.Equal(t, "shared", string(second.Content))
}

func TestMaterializeCycle(t *testing.T) {
	diag := diagnostics.NewCollector()
	tree := BuildDirectoryTree([]*nodes.DirentNode{
		dirent(1, 2, 1, "a"),
		dirent(2, 3, 1, "b"),
		dirent(3, 2, 1, "loop"),
		dirent(3, 1, 2, "root"),
		dirent(3, 4, 3, "file"),
	}, diag)
	inodes := resolvedInodes(t, dirNode(2), dirNode(3), fileNode(4, 1, 1, 0, "x"))

	entries := tree.Materialize(inodes, MaterializeOptions{})
	assert.Equal(t, []string{"a", "a/b", "a/b/file"}, entryPaths(entries))
	assert.Equal(t, 2, diag.Counts()[diagnostics.CycleDetected])
}

func TestMaterializeDanglingReference(t *testing.T) {
	diag := diagnostics.NewCollector()
	tree := BuildDirectoryTree([]*nodes.DirentNode{
		dirent(1, 77, 1, "ghost"),
		dirent(1, 4, 1, "real"),
	}, diag)
	inodes := resolvedInodes(t, fileNode(4, 1, 1, 0, "x"))

	entries := tree.Materialize(inodes, MaterializeOptions{})
	assert.Equal(t, []string{"real"}, entryPaths(entries))
	assert.True(t, diag.Has(diagnostics.DanglingReference))
}

func TestMaterializeOrphans(t *testing.T) {
	dirents := []*nodes.DirentNode{
		dirent(1, 2, 1, "kept"),
		// 8 is a directory nothing names; 9 lives inside it.
		dirent(8, 9, 1, "inner"),
		// 20 and 21 name each other and nothing else names them.
		typedDirent(20, 21, 1, "down", types.DtDir),
		typedDirent(21, 20, 1, "up", types.DtDir),
	}
	inodeNodes := []*nodes.InodeNode{
		fileNode(2, 1, 1, 0, "k"),
		fileNode(5, 1, 4, 0, "lost"),
		dirNode(8),
		fileNode(9, 1, 2, 0, "in"),
		dirNode(20),
		dirNode(21),
	}

	t.Run("recovered", func(t *testing.T) {
		diag := diagnostics.NewCollector()
		tree := BuildDirectoryTree(dirents, diag)
		entries := tree.Materialize(resolvedInodes(t, inodeNodes...), MaterializeOptions{RecoverOrphans: true})

		assert.Equal(t, []string{
			"kept",
			"lost+found/5",
			"lost+found/8",
			"lost+found/8/inner",
			"lost+found/20",
			"lost+found/20/down",
		}, entryPaths(entries))

		orphan := findEntry(entries, "lost+found/5")
		require.NotNil(t, orphan)
		assert.True(t, orphan.Orphan)
		assert.Equal(t, "lost", string(orphan.Content))

		assert.Equal(t, 3, diag.Counts()[diagnostics.OrphanInode])
		assert.True(t, diag.Has(diagnostics.CycleDetected))
	})

	t.Run("custom directory", func(t *testing.T) {
		tree := BuildDirectoryTree(dirents, nil)
		entries := tree.Materialize(resolvedInodes(t, inodeNodes...), MaterializeOptions{RecoverOrphans: true, OrphanDir: "orphans"})
		assert.NotNil(t, findEntry(entries, "orphans/5"))
	})

	t.Run("name taken at the root", func(t *testing.T) {
		taken := append([]*nodes.DirentNode{
			typedDirent(1, 30, 1, "lost+found", types.DtLnk),
			typedDirent(1, 31, 1, "lost+found.1", types.DtReg),
		}, dirents...)
		inodes := resolvedInodes(t, append([]*nodes.InodeNode{
			inodeNode(30, 1, types.SIflnk|0o777, 4, 0, types.CompressionNone, []byte("/tmp")),
			fileNode(31, 1, 1, 0, "x"),
		}, inodeNodes...)...)

		diag := diagnostics.NewCollector()
		entries := BuildDirectoryTree(taken, diag).Materialize(inodes, MaterializeOptions{RecoverOrphans: true})

		assert.NotNil(t, findEntry(entries, "lost+found.2/5"))
		assert.NotNil(t, findEntry(entries, "lost+found.2/8/inner"))
		assert.Nil(t, findEntry(entries, "lost+found/5"))

		link := findEntry(entries, "lost+found")
		require.NotNil(t, link)
		assert.Equal(t, types.FileTypeSymlink, link.Type)
		assert.Equal(t, 4, diag.Counts()[diagnostics.OrphanInode], "the rename is reported")
	})

	t.Run("disabled", func(t *testing.T) {
		diag := diagnostics.NewCollector()
		tree := BuildDirectoryTree(dirents, diag)
		entries := tree.Materialize(resolvedInodes(t, inodeNodes...), MaterializeOptions{})

		assert.Equal(t, []string{"kept"}, entryPaths(entries))
		assert.Equal(t, 3, diag.Counts()[diagnostics.OrphanInode])
	})
}

func TestMaterializeTypeFromDirentHint(t *testing.T) {
	tree := BuildDirectoryTree([]*nodes.DirentNode{typedDirent(1, 5, 1, "pipe", types.DtFifo)}, nil)
	inodes := resolvedInodes(t, metaNode(5, 1, 0o644, 0))

	entries := tree.Materialize(inodes, MaterializeOptions{})
	require.Len(t, entries, 1)
	assert.Equal(t, types.FileTypeFifo, entries[0].Type)
}
