package scan

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-jffs2/internal/device"
	"github.com/deploymenttheory/go-jffs2/internal/diagnostics"
	"github.com/deploymenttheory/go-jffs2/internal/imagebuilder"
	"github.com/deploymenttheory/go-jffs2/internal/types"
	"github.com/deploymenttheory/go-jffs2/pkg/app"
)

func buildImage(t *testing.T) []byte {
	t.Helper()
	b := imagebuilder.New()
	attr := imagebuilder.Attr{MTime: 1700000000}
	require.NoError(t, b.Dir(types.RootIno, 2, "etc", attr))
	require.NoError(t, b.File(2, 3, "hostname", []byte("router\n"), types.CompressionZlib, attr))
	require.NoError(t, b.File(types.RootIno, 4, "readme", []byte("hello"), types.CompressionNone, attr))
	b.AddPadding(64)
	return b.Bytes()
}

func TestHandle(t *testing.T) {
	image := buildImage(t)

	tests := []struct {
		name     string
		request  *Request
		wantErr  bool
		validate func(*testing.T, *Response)
	}{
		{
			name:    "in-memory image",
			request: &Request{Config: device.DefaultImageConfig(), Source: device.NewImage(image)},
			validate: func(t *testing.T, resp *Response) {
				assert.Equal(t, "little", resp.ByteOrder)
				assert.Equal(t, int64(len(image)), resp.ImageSize)
				assert.Equal(t, 3, resp.Inodes)
				assert.Equal(t, 3, resp.Dirents)
				assert.Equal(t, 3, resp.Stats.Kinds["inode"].Count)
				assert.Equal(t, 1, resp.Stats.Kinds["padding"].Count)
				assert.Zero(t, resp.Stats.HeaderCorrupt)
				assert.Positive(t, resp.Accounted())
				assert.Empty(t, resp.Diagnostics)
			},
		},
		{
			name: "big-endian forced on a little-endian image",
			request: func() *Request {
				config := device.DefaultImageConfig()
				config.Endian = "big"
				return &Request{Config: config, Source: device.NewImage(image), ShowDiagnostics: true}
			}(),
			validate: func(t *testing.T, resp *Response) {
				assert.Equal(t, "big", resp.ByteOrder)
				assert.Zero(t, resp.Inodes)
				assert.Zero(t, resp.Dirents)
			},
		},
		{
			name:    "missing target",
			request: &Request{Config: device.DefaultImageConfig()},
			wantErr: true,
		},
		{
			name:    "missing configuration",
			request: &Request{Source: device.NewImage(image)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := Handle(app.NewContext(), tt.request)
			if tt.wantErr {
				require.Error(t, err)
				var commonErr *app.CommonError
				require.ErrorAs(t, err, &commonErr)
				assert.Equal(t, app.ErrCodeInvalidInput, commonErr.Code)
				return
			}
			require.NoError(t, err)
			tt.validate(t, resp)
		})
	}
}

func TestHandleFromFile(t *testing.T) {
	image := buildImage(t)
	path := filepath.Join(t.TempDir(), "flash.bin")
	require.NoError(t, os.WriteFile(path, append(bytes.Repeat([]byte{0xAA}, 512), image...), 0o644))

	resp, err := Handle(app.NewContext(), &Request{
		Target: app.ImageTarget{Path: path, Offset: 512},
		Config: device.DefaultImageConfig(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(image)), resp.ImageSize)
	assert.Equal(t, 3, resp.Inodes)

	_, err = Handle(app.NewContext(), &Request{
		Target: app.ImageTarget{Path: filepath.Join(t.TempDir(), "missing.bin")},
		Config: device.DefaultImageConfig(),
	})
	var commonErr *app.CommonError
	require.ErrorAs(t, err, &commonErr)
	assert.Equal(t, app.ErrCodeImageAccess, commonErr.Code)
}

func TestFormatOutput(t *testing.T) {
	resp, err := Handle(app.NewContext(), &Request{Config: device.DefaultImageConfig(), Source: device.NewImage(buildImage(t))})
	require.NoError(t, err)
	resp.DiagnosticCounts = map[diagnostics.Kind]int{diagnostics.HeaderCorrupt: 2}

	var table bytes.Buffer
	require.NoError(t, FormatOutput(&table, resp, "table"))
	assert.Contains(t, table.String(), "Byte order:  little")
	assert.Contains(t, table.String(), "inode")
	assert.Contains(t, table.String(), "header_corrupt")

	var out bytes.Buffer
	require.NoError(t, FormatOutput(&out, resp, "json"))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "little", decoded["byte_order"])

	out.Reset()
	require.NoError(t, FormatOutput(&out, resp, "yaml"))
	assert.Contains(t, out.String(), "byte_order: little")

	assert.Error(t, FormatOutput(&out, resp, "xml"))
}
