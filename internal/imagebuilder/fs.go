package imagebuilder

import (
	"github.com/deploymenttheory/go-jffs2/internal/types"
)

// Attr carries the attributes written with every inode node of a file.
type Attr struct {
	Perm  types.ModeT
	UID   uint16
	GID   uint16
	MTime uint32
}

// Dir writes a directory inode and its dirent.
func (b *Builder) Dir(parent, ino uint32, name string, attr Attr) error {
	if _, err := b.AddInode(b.metaInode(ino, types.SIfdir|perm(attr, 0o755), 0, attr)); err != nil {
		return err
	}
	b.AddDirent(Dirent{Parent: parent, Ino: ino, Name: name, Type: types.DtDir, MCTime: attr.MTime})
	return nil
}

// File writes a regular file split into PageSize nodes compressed with
// compr, followed by its dirent. An empty file gets one metadata node.
func (b *Builder) File(parent, ino uint32, name string, data []byte, compr types.CompressionType, attr Attr) error {
	if err := b.WriteData(ino, 0, data, compr, attr); err != nil {
		return err
	}
	b.AddDirent(Dirent{Parent: parent, Ino: ino, Name: name, Type: types.DtReg, MCTime: attr.MTime})
	return nil
}

// WriteData writes data at offset of a regular file. Every node records the
// end of the write as the file size.
func (b *Builder) WriteData(ino uint32, offset uint32, data []byte, compr types.CompressionType, attr Attr) error {
	mode := types.SIfreg | perm(attr, 0o644)
	end := offset + uint32(len(data))
	if len(data) == 0 {
		_, err := b.AddInode(b.metaInode(ino, mode, end, attr))
		return err
	}
	for start := 0; start < len(data); start += PageSize {
		stop := start + PageSize
		if stop > len(data) {
			stop = len(data)
		}
		in := b.metaInode(ino, mode, end, attr)
		in.Offset = offset + uint32(start)
		in.Compr = compr
		in.Data = data[start:stop]
		if _, err := b.AddInode(in); err != nil {
			return err
		}
	}
	return nil
}

// Truncate writes a metadata node setting the file size.
func (b *Builder) Truncate(ino uint32, size uint32, attr Attr) error {
	_, err := b.AddInode(b.metaInode(ino, types.SIfreg|perm(attr, 0o644), size, attr))
	return err
}

// Hole writes a ZERO node covering [offset, offset+length).
func (b *Builder) Hole(ino uint32, offset, length, isize uint32, attr Attr) error {
	in := b.metaInode(ino, types.SIfreg|perm(attr, 0o644), isize, attr)
	in.Offset = offset
	in.Compr = types.CompressionZero
	in.Stored = []byte{}
	in.Dsize = length
	_, err := b.AddInode(in)
	return err
}

// Symlink writes a symbolic link and its dirent.
func (b *Builder) Symlink(parent, ino uint32, name, target string, attr Attr) error {
	in := b.metaInode(ino, types.SIflnk|perm(attr, 0o777), uint32(len(target)), attr)
	in.Data = []byte(target)
	if _, err := b.AddInode(in); err != nil {
		return err
	}
	b.AddDirent(Dirent{Parent: parent, Ino: ino, Name: name, Type: types.DtLnk, MCTime: attr.MTime})
	return nil
}

// Device writes a character or block device node using the new 32-bit
// device number encoding.
func (b *Builder) Device(parent, ino uint32, name string, char bool, major, minor uint32, attr Attr) error {
	mode, dt := types.SIfblk, types.DtBlk
	if char {
		mode, dt = types.SIfchr, types.DtChr
	}
	dev := (minor & 0xff) | (major&0xfff)<<8 | (minor&^0xff)<<12
	payload := make([]byte, 4)
	b.order.PutUint32(payload, dev)

	in := b.metaInode(ino, mode|perm(attr, 0o600), uint32(len(payload)), attr)
	in.Data = payload
	if _, err := b.AddInode(in); err != nil {
		return err
	}
	b.AddDirent(Dirent{Parent: parent, Ino: ino, Name: name, Type: dt, MCTime: attr.MTime})
	return nil
}

// Link adds another name for an existing inode.
func (b *Builder) Link(parent, ino uint32, name string, dt types.DirentType) {
	b.AddDirent(Dirent{Parent: parent, Ino: ino, Name: name, Type: dt})
}

// Unlink writes a deletion dirent for name.
func (b *Builder) Unlink(parent uint32, name string) {
	b.AddDirent(Dirent{Parent: parent, Ino: 0, Name: name})
}

func (b *Builder) metaInode(ino uint32, mode types.ModeT, isize uint32, attr Attr) Inode {
	return Inode{
		Ino:   ino,
		Mode:  mode,
		UID:   attr.UID,
		GID:   attr.GID,
		Isize: isize,
		Atime: attr.MTime,
		Mtime: attr.MTime,
		Ctime: attr.MTime,
	}
}

func perm(attr Attr, fallback types.ModeT) types.ModeT {
	if attr.Perm == 0 {
		return fallback
	}
	return attr.Perm & types.SIperm
}
