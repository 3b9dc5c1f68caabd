package extract

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/deploymenttheory/go-jffs2/internal/device"
	"github.com/deploymenttheory/go-jffs2/internal/diagnostics"
	"github.com/deploymenttheory/go-jffs2/internal/imagebuilder"
	"github.com/deploymenttheory/go-jffs2/internal/materializer"
	"github.com/deploymenttheory/go-jffs2/internal/types"
	"github.com/deploymenttheory/go-jffs2/pkg/app"
)

var attr = imagebuilder.Attr{MTime: 1700000000}

func buildImage(t *testing.T, withDevice bool) []byte {
	t.Helper()
	b := imagebuilder.New()
	require.NoError(t, b.Dir(types.RootIno, 2, "etc", attr))
	require.NoError(t, b.File(2, 3, "hostname", []byte("router\n"), types.CompressionZlib, attr))
	b.Link(2, 3, "hostname.bak", types.DtReg)
	require.NoError(t, b.Dir(types.RootIno, 4, "bin", attr))
	require.NoError(t, b.File(4, 5, "busybox", bytes.Repeat([]byte("busybox"), 1000), types.CompressionLzma, imagebuilder.Attr{Perm: 0o755, MTime: attr.MTime}))
	require.NoError(t, b.Symlink(4, 6, "sh", "busybox", attr))
	if withDevice {
		require.NoError(t, b.Device(types.RootIno, 7, "console", true, 5, 1, attr))
	}
	// Data for an inode that no dirent names.
	require.NoError(t, b.WriteData(20, 0, []byte("lost data"), types.CompressionNone, attr))
	return b.Bytes()
}

func TestHandleMemMapFs(t *testing.T) {
	output := afero.NewMemMapFs()
	resp, err := Handle(app.NewContext(), &Request{
		Config:   device.DefaultImageConfig(),
		Source:   device.NewImage(buildImage(t, true)),
		Output:   output,
		Manifest: "/manifest.yaml",
	})
	require.NoError(t, err)

	assert.Equal(t, 8, resp.Entries)
	assert.Equal(t, 6, resp.Written)
	assert.Equal(t, 1, resp.Orphans)
	assert.Equal(t, []SkippedEntry{
		{Path: "bin/sh", Reason: "unsupported"},
		{Path: "console", Reason: "unsupported"},
	}, resp.Skipped)
	assert.Equal(t, 2, resp.DiagnosticCounts[diagnostics.MaterializeFailed])
	assert.NotEmpty(t, resp.RunID)

	content, err := afero.ReadFile(output, "/etc/hostname.bak")
	require.NoError(t, err)
	assert.Equal(t, "router\n", string(content))

	content, err = afero.ReadFile(output, "/lost+found/20")
	require.NoError(t, err)
	assert.Equal(t, "lost data", string(content))

	raw, err := afero.ReadFile(output, "/manifest.yaml")
	require.NoError(t, err)
	var manifest materializer.Manifest
	require.NoError(t, yaml.Unmarshal(raw, &manifest))
	assert.Equal(t, resp.RunID, manifest.RunID)
	assert.Len(t, manifest.Entries, 8)
}

func TestHandleNoOrphans(t *testing.T) {
	output := afero.NewMemMapFs()
	resp, err := Handle(app.NewContext(), &Request{
		Config:    device.DefaultImageConfig(),
		Source:    device.NewImage(buildImage(t, false)),
		Output:    output,
		NoOrphans: true,
	})
	require.NoError(t, err)
	assert.Zero(t, resp.Orphans)

	exists, err := afero.Exists(output, "/lost+found")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestHandleOverwrite(t *testing.T) {
	output := afero.NewMemMapFs()
	image := buildImage(t, false)
	request := func(overwrite bool) *Request {
		return &Request{
			Config:    device.DefaultImageConfig(),
			Source:    device.NewImage(image),
			Output:    output,
			Overwrite: overwrite,
		}
	}

	_, err := Handle(app.NewContext(), request(false))
	require.NoError(t, err)

	resp, err := Handle(app.NewContext(), request(false))
	require.NoError(t, err)
	skipped := make(map[string]bool)
	for _, s := range resp.Skipped {
		skipped[s.Path] = true
	}
	assert.True(t, skipped["etc/hostname"], "existing files are kept")
	assert.False(t, skipped["etc"], "existing directories are reused")

	resp, err = Handle(app.NewContext(), request(true))
	require.NoError(t, err)
	require.Len(t, resp.Skipped, 1)
	assert.Equal(t, "bin/sh", resp.Skipped[0].Path)
}

func TestHandleDirectory(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "rootfs")
	manifest := filepath.Join(t.TempDir(), "manifest.cbor")

	resp, err := Handle(app.NewContext(), &Request{
		Config:   device.DefaultImageConfig(),
		Source:   device.NewImage(buildImage(t, false)),
		Dest:     dest,
		Manifest: manifest,
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Skipped)

	target, err := os.Readlink(filepath.Join(dest, "bin", "sh"))
	require.NoError(t, err)
	assert.Equal(t, "busybox", target)

	first, err := os.Stat(filepath.Join(dest, "etc", "hostname"))
	require.NoError(t, err)
	second, err := os.Stat(filepath.Join(dest, "etc", "hostname.bak"))
	require.NoError(t, err)
	assert.True(t, os.SameFile(first, second))

	info, err := os.Stat(filepath.Join(dest, "bin", "busybox"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	_, err = os.Stat(manifest)
	require.NoError(t, err)
}

func TestHandleOrphanDirTaken(t *testing.T) {
	outside := t.TempDir()
	dest := filepath.Join(t.TempDir(), "rootfs")

	b := imagebuilder.New()
	require.NoError(t, b.Symlink(types.RootIno, 2, "lost+found", outside, attr))
	require.NoError(t, b.WriteData(20, 0, []byte("lost data"), types.CompressionNone, attr))

	resp, err := Handle(app.NewContext(), &Request{
		Config: device.DefaultImageConfig(),
		Source: device.NewImage(b.Bytes()),
		Dest:   dest,
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Skipped)
	assert.Equal(t, 1, resp.Orphans)

	leaked, err := os.ReadDir(outside)
	require.NoError(t, err)
	assert.Empty(t, leaked, "nothing is written through the image's symlink")

	content, err := os.ReadFile(filepath.Join(dest, "lost+found.1", "20"))
	require.NoError(t, err)
	assert.Equal(t, "lost data", string(content))

	target, err := os.Readlink(filepath.Join(dest, "lost+found"))
	require.NoError(t, err)
	assert.Equal(t, outside, target)
}

func TestValidate(t *testing.T) {
	image := device.NewImage(nil)

	tests := []struct {
		name    string
		request *Request
		wantErr bool
	}{
		{"valid", &Request{Config: device.DefaultImageConfig(), Source: image, Dest: "out"}, false},
		{"no destination", &Request{Config: device.DefaultImageConfig(), Source: image}, true},
		{"no image", &Request{Config: device.DefaultImageConfig(), Dest: "out"}, true},
		{"bad manifest extension", &Request{Config: device.DefaultImageConfig(), Source: image, Dest: "out", Manifest: "m.txt"}, true},
		{"bad endian", &Request{Config: &device.ImageConfig{Endian: "middle"}, Source: image, Dest: "out"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.request.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var commonErr *app.CommonError
			require.ErrorAs(t, err, &commonErr)
			assert.Equal(t, app.ErrCodeInvalidInput, commonErr.Code)
		})
	}
}

func TestFormatOutput(t *testing.T) {
	resp := &Response{
		Image:            "flash.bin",
		Dest:             "out",
		Entries:          3,
		Written:          2,
		Skipped:          []SkippedEntry{{Path: "dev/console", Reason: "unsupported"}},
		DiagnosticCounts: map[diagnostics.Kind]int{diagnostics.MaterializeFailed: 1},
	}

	var table bytes.Buffer
	require.NoError(t, FormatOutput(&table, resp, "table"))
	assert.Contains(t, table.String(), "Extracted 2 of 3 entries from flash.bin to out")
	assert.Contains(t, table.String(), "dev/console")
	assert.Contains(t, table.String(), "materialize_failed")

	var out bytes.Buffer
	require.NoError(t, FormatOutput(&out, resp, "json"))
	assert.Contains(t, out.String(), `"written": 2`)
	assert.Error(t, FormatOutput(&out, resp, "csv"))
}
