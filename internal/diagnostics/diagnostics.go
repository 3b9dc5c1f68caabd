// Package diagnostics records the non-fatal problems found while extracting
// an image. Nothing recorded here aborts an extraction.
package diagnostics

import (
	"fmt"
	"sort"
	"sync"
)

// Kind classifies a diagnostic.
type Kind string

const (
	// HeaderCorrupt is a magic match whose header CRC or bounds are bad.
	HeaderCorrupt Kind = "header_corrupt"

	// StructuralInvalid is a node the decoder refused.
	StructuralInvalid Kind = "structural_invalid"

	// UnsupportedCodec is a payload in a compression format with no decoder.
	UnsupportedCodec Kind = "unsupported_codec"

	// DecompressionFailed is a payload the codec rejected or that decoded to
	// the wrong length.
	DecompressionFailed Kind = "decompression_failed"

	// IntegrityError is a payload whose data CRC does not match.
	IntegrityError Kind = "integrity_error"

	// DanglingReference is a dirent pointing at an inode with no nodes.
	DanglingReference Kind = "dangling_reference"

	// CycleDetected is a dirent that would make a directory its own ancestor.
	CycleDetected Kind = "cycle_detected"

	// OrphanInode is an inode with no reachable name, or a directory with no
	// inode nodes of its own.
	OrphanInode Kind = "orphan_inode"

	// EraseBlockUndetected means the erase block size could not be inferred.
	EraseBlockUndetected Kind = "erase_block_undetected"

	// LegacyNode is a node written with the pre-release magic.
	LegacyNode Kind = "legacy_node"

	// UnknownNode is a valid node of a type this reader does not handle.
	UnknownNode Kind = "unknown_node"

	// SizeClipped is an inode whose declared size exceeds the configured limit.
	SizeClipped Kind = "size_clipped"

	// MaterializeFailed is an entry the output sink could not write.
	MaterializeFailed Kind = "materialize_failed"
)

// NoOffset marks diagnostics not tied to an image position.
const NoOffset int64 = -1

// Diagnostic is one recorded problem.
type Diagnostic struct {
	Kind    Kind   `json:"kind" yaml:"kind" cbor:"kind"`
	Offset  int64  `json:"offset" yaml:"offset" cbor:"offset"`
	Ino     uint32 `json:"ino,omitempty" yaml:"ino,omitempty" cbor:"ino,omitempty"`
	Message string `json:"message" yaml:"message" cbor:"message"`
}

func (d Diagnostic) String() string {
	switch {
	case d.Offset >= 0 && d.Ino != 0:
		return fmt.Sprintf("%s at 0x%08x (ino %d): %s", d.Kind, d.Offset, d.Ino, d.Message)
	case d.Offset >= 0:
		return fmt.Sprintf("%s at 0x%08x: %s", d.Kind, d.Offset, d.Message)
	case d.Ino != 0:
		return fmt.Sprintf("%s (ino %d): %s", d.Kind, d.Ino, d.Message)
	default:
		return fmt.Sprintf("%s: %s", d.Kind, d.Message)
	}
}

// Error wraps a Diagnostic so components can return it through error paths.
type Error struct {
	Diagnostic
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Diagnostic.String(), e.Err)
	}
	return e.Diagnostic.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Hook is called for every recorded diagnostic.
type Hook func(Diagnostic)

// Collector accumulates diagnostics. It is safe for concurrent use.
type Collector struct {
	mu    sync.Mutex
	items []Diagnostic
	hooks []Hook
}

// NewCollector creates an empty collector.
func NewCollector(hooks ...Hook) *Collector {
	return &Collector{hooks: hooks}
}

// Record stores a diagnostic and notifies hooks.
func (c *Collector) Record(d Diagnostic) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.items = append(c.items, d)
	hooks := c.hooks
	c.mu.Unlock()

	for _, hook := range hooks {
		hook(d)
	}
}

// Recordf is a convenience wrapper around Record.
func (c *Collector) Recordf(kind Kind, offset int64, ino uint32, format string, args ...any) {
	c.Record(Diagnostic{Kind: kind, Offset: offset, Ino: ino, Message: fmt.Sprintf(format, args...)})
}

// Len returns the number of diagnostics recorded.
func (c *Collector) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Diagnostics returns the diagnostics ordered by offset, then inode, then
// kind and message, so concurrent producers still yield a stable report.
func (c *Collector) Diagnostics() []Diagnostic {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	out := make([]Diagnostic, len(c.items))
	copy(out, c.items)
	c.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Offset != b.Offset {
			return a.Offset < b.Offset
		}
		if a.Ino != b.Ino {
			return a.Ino < b.Ino
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Message < b.Message
	})
	return out
}

// Counts returns the number of diagnostics per kind.
func (c *Collector) Counts() map[Kind]int {
	counts := make(map[Kind]int)
	if c == nil {
		return counts
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.items {
		counts[d.Kind]++
	}
	return counts
}

// Has reports whether at least one diagnostic of kind was recorded.
func (c *Collector) Has(kind Kind) bool {
	return c.Counts()[kind] > 0
}
