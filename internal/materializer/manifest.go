package materializer

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/deploymenttheory/go-jffs2/internal/diagnostics"
	"github.com/deploymenttheory/go-jffs2/internal/parsers/nodes"
	"github.com/deploymenttheory/go-jffs2/internal/services"
)

// Format is a manifest serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCBOR Format = "cbor"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".cbor":
		return FormatCBOR, nil
	default:
		return "", fmt.Errorf("cannot infer manifest format from %q: use .json, .yaml or .cbor", path)
	}
}

// cborEncMode encodes manifests deterministically, with FileType and other
// TextMarshalers as text.
var cborEncMode cbor.EncMode

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.TextMarshaler = cbor.TextMarshalerTextString
	opts.Time = cbor.TimeRFC3339
	var err error
	cborEncMode, err = opts.EncMode()
	if err != nil {
		panic("materializer: CBOR encoder initialization failed: " + err.Error())
	}
}

// Manifest records one extraction run.
type Manifest struct {
	RunID          string                   `json:"run_id" yaml:"run_id" cbor:"run_id"`
	CreatedAt      time.Time                `json:"created_at" yaml:"created_at" cbor:"created_at"`
	Image          string                   `json:"image" yaml:"image" cbor:"image"`
	ImageSize      int64                    `json:"image_size" yaml:"image_size" cbor:"image_size"`
	ByteOrder      string                   `json:"byte_order" yaml:"byte_order" cbor:"byte_order"`
	EraseBlockSize int64                    `json:"erase_block_size" yaml:"erase_block_size" cbor:"erase_block_size"`
	Stats          nodes.ScanStats          `json:"stats" yaml:"stats" cbor:"stats"`
	Entries        []ManifestEntry          `json:"entries" yaml:"entries" cbor:"entries"`
	Diagnostics    []diagnostics.Diagnostic `json:"diagnostics" yaml:"diagnostics" cbor:"diagnostics"`
}

// ManifestEntry describes one extracted path.
type ManifestEntry struct {
	Path           string    `json:"path" yaml:"path" cbor:"path"`
	Type           string    `json:"type" yaml:"type" cbor:"type"`
	Mode           string    `json:"mode" yaml:"mode" cbor:"mode"`
	UID            uint32    `json:"uid" yaml:"uid" cbor:"uid"`
	GID            uint32    `json:"gid" yaml:"gid" cbor:"gid"`
	Size           uint64    `json:"size" yaml:"size" cbor:"size"`
	MTime          time.Time `json:"mtime" yaml:"mtime" cbor:"mtime"`
	Ino            uint32    `json:"ino" yaml:"ino" cbor:"ino"`
	BLAKE3         string    `json:"blake3,omitempty" yaml:"blake3,omitempty" cbor:"blake3,omitempty"`
	LinkTarget     string    `json:"link_target,omitempty" yaml:"link_target,omitempty" cbor:"link_target,omitempty"`
	HardLinkTarget string    `json:"hard_link_target,omitempty" yaml:"hard_link_target,omitempty" cbor:"hard_link_target,omitempty"`
	Device         string    `json:"device,omitempty" yaml:"device,omitempty" cbor:"device,omitempty"`
	Partial        bool      `json:"partial,omitempty" yaml:"partial,omitempty" cbor:"partial,omitempty"`
	Orphan         bool      `json:"orphan,omitempty" yaml:"orphan,omitempty" cbor:"orphan,omitempty"`
}

// NewManifest describes result, read from image.
func NewManifest(image string, imageSize int64, result *services.ExtractionResult) *Manifest {
	m := &Manifest{
		RunID:          uuid.NewString(),
		CreatedAt:      time.Now().UTC().Truncate(time.Second),
		Image:          image,
		ImageSize:      imageSize,
		ByteOrder:      nodes.ByteOrderName(result.ByteOrder),
		EraseBlockSize: result.EraseBlockSize,
		Stats:          result.Stats,
		Entries:        make([]ManifestEntry, 0, len(result.Entries)),
		Diagnostics:    result.Diagnostics,
	}
	for i := range result.Entries {
		m.Entries = append(m.Entries, NewManifestEntry(&result.Entries[i]))
	}
	return m
}

// NewManifestEntry describes one entry.
func NewManifestEntry(e *services.Entry) ManifestEntry {
	me := ManifestEntry{
		Path:       strings.Join(e.Path, "/"),
		Type:       e.Type.String(),
		Mode:       fmt.Sprintf("%04o", uint32(e.Mode)),
		UID:        e.UID,
		GID:        e.GID,
		Size:       e.Size,
		MTime:      e.MTime,
		Ino:        e.Ino,
		BLAKE3:     e.Digest(),
		LinkTarget: e.LinkTarget,
		Partial:    e.Partial,
		Orphan:     e.Orphan,
	}
	if e.IsHardLink() {
		me.HardLinkTarget = strings.Join(e.HardLinkTarget, "/")
	}
	if e.DevMajor != 0 || e.DevMinor != 0 {
		me.Device = fmt.Sprintf("%d:%d", e.DevMajor, e.DevMinor)
	}
	return me
}

// Encode writes the manifest to w.
func (m *Manifest) Encode(w io.Writer, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return err
		}
		return enc.Close()
	case FormatCBOR:
		return cborEncMode.NewEncoder(w).Encode(m)
	default:
		return fmt.Errorf("unsupported manifest format %q", format)
	}
}

// WriteManifest writes m to path on fsys in the format its extension names.
func WriteManifest(fsys afero.Fs, path string, m *Manifest) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	file, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}
	if err := m.Encode(file, format); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return file.Close()
}
