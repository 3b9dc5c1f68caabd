package types

// File-System Constants
// Reference: include/uapi/linux/jffs2.h, include/uapi/linux/stat.h

// RootIno is the inode number of the filesystem root. JFFS2 never writes an
// inode node for it; it only appears as the parent of top-level dirents.
const RootIno uint32 = 1

// DirentType is the d_type hint stored in a dirent node.
type DirentType uint8

const (
	// DtUnknown is used when the writer did not record a type.
	DtUnknown DirentType = 0

	// DtFifo marks a named pipe.
	DtFifo DirentType = 1

	// DtChr marks a character device.
	DtChr DirentType = 2

	// DtDir marks a directory.
	DtDir DirentType = 4

	// DtBlk marks a block device.
	DtBlk DirentType = 6

	// DtReg marks a regular file.
	DtReg DirentType = 8

	// DtLnk marks a symbolic link.
	DtLnk DirentType = 10

	// DtSock marks a socket.
	DtSock DirentType = 12

	// DtWht marks a whiteout entry.
	DtWht DirentType = 14
)

func (t DirentType) String() string {
	switch t {
	case DtFifo:
		return "fifo"
	case DtChr:
		return "chr"
	case DtDir:
		return "dir"
	case DtBlk:
		return "blk"
	case DtReg:
		return "reg"
	case DtLnk:
		return "lnk"
	case DtSock:
		return "sock"
	case DtWht:
		return "wht"
	default:
		return "unknown"
	}
}

// ModeT is the POSIX st_mode stored in inode nodes.
type ModeT uint32

// File type bits of ModeT.
const (
	SIfmt   ModeT = 0o170000
	SIfifo  ModeT = 0o010000
	SIfchr  ModeT = 0o020000
	SIfdir  ModeT = 0o040000
	SIfblk  ModeT = 0o060000
	SIfreg  ModeT = 0o100000
	SIflnk  ModeT = 0o120000
	SIfsock ModeT = 0o140000

	// SIperm covers permission, setuid, setgid and sticky bits.
	SIperm ModeT = 0o7777
)

// Type returns the file type bits.
func (m ModeT) Type() ModeT {
	return m & SIfmt
}

// Perm returns the permission bits.
func (m ModeT) Perm() ModeT {
	return m & SIperm
}

// FileType is the kind of filesystem object an output entry describes.
type FileType uint8

const (
	FileTypeUnknown FileType = iota
	FileTypeRegular
	FileTypeDirectory
	FileTypeSymlink
	FileTypeCharDevice
	FileTypeBlockDevice
	FileTypeFifo
	FileTypeSocket
)

var fileTypeNames = [...]string{"unknown", "file", "dir", "symlink", "chardev", "blockdev", "fifo", "socket"}

func (t FileType) String() string {
	if int(t) >= len(fileTypeNames) {
		return fileTypeNames[FileTypeUnknown]
	}
	return fileTypeNames[t]
}

// MarshalText lets manifests carry the readable type name.
func (t FileType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// FileTypeFromMode maps the mode type bits to a FileType.
func FileTypeFromMode(m ModeT) FileType {
	switch m.Type() {
	case SIfreg:
		return FileTypeRegular
	case SIfdir:
		return FileTypeDirectory
	case SIflnk:
		return FileTypeSymlink
	case SIfchr:
		return FileTypeCharDevice
	case SIfblk:
		return FileTypeBlockDevice
	case SIfifo:
		return FileTypeFifo
	case SIfsock:
		return FileTypeSocket
	default:
		return FileTypeUnknown
	}
}

// FileTypeFromDirent maps a dirent type hint to a FileType.
func FileTypeFromDirent(t DirentType) FileType {
	switch t {
	case DtReg:
		return FileTypeRegular
	case DtDir:
		return FileTypeDirectory
	case DtLnk:
		return FileTypeSymlink
	case DtChr:
		return FileTypeCharDevice
	case DtBlk:
		return FileTypeBlockDevice
	case DtFifo:
		return FileTypeFifo
	case DtSock:
		return FileTypeSocket
	default:
		return FileTypeUnknown
	}
}
