package list

import (
	"time"

	"github.com/deploymenttheory/go-jffs2/internal/device"
	"github.com/deploymenttheory/go-jffs2/internal/diagnostics"
	"github.com/deploymenttheory/go-jffs2/internal/interfaces"
	"github.com/deploymenttheory/go-jffs2/internal/materializer"
	"github.com/deploymenttheory/go-jffs2/pkg/app"
)

// Request represents a listing of the reconstructed tree
type Request struct {
	Target app.ImageTarget
	Config *device.ImageConfig

	// Source overrides Target with an image already in memory
	Source interfaces.ImageSource

	// Prefix limits the listing to one subtree, e.g. "etc" or "/usr/bin"
	Prefix string
}

// Response represents the reconstructed tree
type Response struct {
	Image       string                       `json:"image" yaml:"image"`
	ByteOrder   string                       `json:"byte_order" yaml:"byte_order"`
	Entries     []materializer.ManifestEntry `json:"entries" yaml:"entries"`
	TotalSize   uint64                       `json:"total_size" yaml:"total_size"`
	Partial     int                          `json:"partial" yaml:"partial"`
	Orphans     int                          `json:"orphans" yaml:"orphans"`
	Diagnostics []diagnostics.Diagnostic     `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
	ListTime    time.Duration                `json:"list_time" yaml:"list_time"`
}
