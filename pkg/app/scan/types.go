package scan

import (
	"time"

	"github.com/deploymenttheory/go-jffs2/internal/device"
	"github.com/deploymenttheory/go-jffs2/internal/diagnostics"
	"github.com/deploymenttheory/go-jffs2/internal/interfaces"
	"github.com/deploymenttheory/go-jffs2/internal/parsers/nodes"
	"github.com/deploymenttheory/go-jffs2/pkg/app"
)

// Request represents a node census request
type Request struct {
	Target app.ImageTarget
	Config *device.ImageConfig

	// Source overrides Target with an image already in memory
	Source interfaces.ImageSource

	// ShowDiagnostics lists every diagnostic rather than counts only
	ShowDiagnostics bool
}

// Response represents the node census of an image
type Response struct {
	Image              string                   `json:"image" yaml:"image"`
	ImageSize          int64                    `json:"image_size" yaml:"image_size"`
	ByteOrder          string                   `json:"byte_order" yaml:"byte_order"`
	EraseBlockSize     int64                    `json:"erase_block_size" yaml:"erase_block_size"`
	EraseBlockDetected bool                     `json:"erase_block_detected" yaml:"erase_block_detected"`
	Stats              nodes.ScanStats          `json:"stats" yaml:"stats"`
	Inodes             int                      `json:"inodes" yaml:"inodes"`
	Dirents            int                      `json:"dirents" yaml:"dirents"`
	Ignored            int                      `json:"ignored" yaml:"ignored"`
	DiagnosticCounts   map[diagnostics.Kind]int `json:"diagnostic_counts" yaml:"diagnostic_counts"`
	Diagnostics        []diagnostics.Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
	ScanTime           time.Duration            `json:"scan_time" yaml:"scan_time"`
}

// Accounted returns the bytes covered by recognised nodes
func (r *Response) Accounted() int64 {
	var total int64
	for _, k := range r.Stats.Kinds {
		total += k.Bytes
	}
	return total
}
