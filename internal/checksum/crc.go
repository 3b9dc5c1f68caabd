// Package checksum implements the CRC32 variant used by JFFS2.
//
// JFFS2 calls the kernel's crc32(0, buf, len), which is the reflected
// IEEE polynomial seeded with zero and without the final inversion that
// hash/crc32 applies. The helpers below undo both inversions.
package checksum

import "hash/crc32"

// CRC32 returns the JFFS2 checksum of data.
func CRC32(data []byte) uint32 {
	return Update(0, data)
}

// Update continues a JFFS2 checksum with more data.
func Update(crc uint32, data []byte) uint32 {
	return ^crc32.Update(^crc, crc32.IEEETable, data)
}

// Verify reports whether data checksums to expected.
func Verify(data []byte, expected uint32) bool {
	return CRC32(data) == expected
}
