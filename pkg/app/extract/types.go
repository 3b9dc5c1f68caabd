package extract

import (
	"time"

	"github.com/spf13/afero"

	"github.com/deploymenttheory/go-jffs2/internal/device"
	"github.com/deploymenttheory/go-jffs2/internal/diagnostics"
	"github.com/deploymenttheory/go-jffs2/internal/interfaces"
	"github.com/deploymenttheory/go-jffs2/pkg/app"
)

// Request represents an extraction to a directory
type Request struct {
	Target app.ImageTarget
	Config *device.ImageConfig

	// Source overrides Target with an image already in memory
	Source interfaces.ImageSource

	// Dest is the output directory
	Dest string

	// Output overrides Dest with a filesystem rooted at the destination
	Output afero.Fs

	// Extraction behavior
	Overwrite     bool
	PreservePerms bool
	NoOrphans     bool

	// Manifest is written after extraction when set; the extension picks
	// json, yaml or cbor
	Manifest string
}

// Response represents the outcome of an extraction
type Response struct {
	Image            string                   `json:"image" yaml:"image"`
	Dest             string                   `json:"dest" yaml:"dest"`
	Entries          int                      `json:"entries" yaml:"entries"`
	Written          int                      `json:"written" yaml:"written"`
	Skipped          []SkippedEntry           `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Partial          int                      `json:"partial" yaml:"partial"`
	Orphans          int                      `json:"orphans" yaml:"orphans"`
	Diagnostics      []diagnostics.Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
	DiagnosticCounts map[diagnostics.Kind]int `json:"diagnostic_counts" yaml:"diagnostic_counts"`
	Manifest         string                   `json:"manifest,omitempty" yaml:"manifest,omitempty"`
	RunID            string                   `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	ExtractTime      time.Duration            `json:"extract_time" yaml:"extract_time"`
}

// SkippedEntry is an entry the output filesystem could not hold
type SkippedEntry struct {
	Path   string `json:"path" yaml:"path"`
	Reason string `json:"reason" yaml:"reason"`
}
