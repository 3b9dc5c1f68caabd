package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-jffs2/internal/device"
	"github.com/deploymenttheory/go-jffs2/internal/diagnostics"
)

func TestLogLevel(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		verbose    bool
		quiet      bool
		want       slog.Level
		wantErr    bool
	}{
		{"default", "", false, false, slog.LevelInfo, false},
		{"configured", "warn", false, false, slog.LevelWarn, false},
		{"verbose wins", "error", true, false, slog.LevelDebug, false},
		{"quiet", "debug", false, true, slog.LevelError, false},
		{"invalid", "loud", false, false, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, err := LogLevel(tt.configured, tt.verbose, tt.quiet)
			if tt.wantErr {
				var commonErr *CommonError
				require.ErrorAs(t, err, &commonErr)
				assert.Equal(t, ErrCodeInvalidInput, commonErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, level)
		})
	}
}

func TestNewLoggerHandlers(t *testing.T) {
	var text, js bytes.Buffer
	newLogger(&text, true, slog.LevelInfo).Info("hello", "n", 1)
	newLogger(&js, false, slog.LevelInfo).Info("hello", "n", 1)

	assert.Contains(t, text.String(), "msg=hello n=1")

	var record map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &record))
	assert.Equal(t, "hello", record["msg"])
	assert.Equal(t, float64(1), record["n"])
}

func TestDiagnosticHook(t *testing.T) {
	var buf bytes.Buffer
	ctx := NewContext()
	ctx.Logger = newLogger(&buf, false, slog.LevelInfo)

	hook := ctx.DiagnosticHook()
	hook(diagnostics.Diagnostic{Kind: diagnostics.HeaderCorrupt, Offset: 0x40, Message: "bad crc"})
	hook(diagnostics.Diagnostic{Kind: diagnostics.OrphanInode, Offset: diagnostics.NoOffset, Ino: 9, Message: "orphan"})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.NoError(t, json.Unmarshal(lines[1], &second))
	assert.Equal(t, "WARN", first["level"])
	assert.Equal(t, "header_corrupt", first["kind"])
	assert.Equal(t, float64(0x40), first["offset"])
	assert.NotContains(t, second, "offset")
	assert.Equal(t, float64(9), second["ino"])
}

func TestContextLogging(t *testing.T) {
	var buf bytes.Buffer
	ctx := NewContext()
	ctx.Logger = newLogger(&buf, true, slog.LevelInfo)

	ctx.Log("hidden below debug")
	assert.Empty(t, buf.String())

	ctx.Error("shown")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	ctx.Quiet = true
	ctx.Error("suppressed")
	assert.Empty(t, buf.String())

	var zero Context
	assert.NotPanics(t, func() { zero.Log("no logger") })
}

func TestContextProgress(t *testing.T) {
	ctx := NewContext()
	ctx.Progress("ignored", 10)

	var got []int
	ctx.SetProgress(func(_ string, percent int) { got = append(got, percent) })
	ctx.Progress("a", 5)
	ctx.Progress("b", 100)
	assert.Equal(t, []int{5, 100}, got)

	timed, cancel := ctx.WithTimeout(time.Millisecond)
	defer cancel()
	<-timed.Done()
	assert.ErrorIs(t, timed.Err(), context.DeadlineExceeded)
	assert.NoError(t, ctx.Err())
}

func TestImageTarget(t *testing.T) {
	assert.True(t, (&ImageTarget{}).IsEmpty())
	assert.Error(t, (&ImageTarget{}).Validate())
	assert.Error(t, (&ImageTarget{Path: "a", Offset: -1}).Validate())
	assert.NoError(t, (&ImageTarget{Path: "a"}).Validate())

	assert.Equal(t, "flash.bin", (&ImageTarget{Path: "flash.bin"}).String())
	assert.Equal(t, "flash.bin [0x200, end)", (&ImageTarget{Path: "flash.bin", Offset: 0x200}).String())
	assert.Equal(t, "flash.bin [0x200, +0x1000)", (&ImageTarget{Path: "flash.bin", Offset: 0x200, Length: 0x1000}).String())
}

func TestProgressUpdate(t *testing.T) {
	p := ProgressUpdate{Completed: 25, Total: 100, ElapsedTime: 5 * time.Second}
	assert.Equal(t, 25, p.Percent())
	assert.InDelta(t, 5.0, p.Rate(), 0.001)

	assert.Zero(t, (&ProgressUpdate{}).Percent())
	assert.Zero(t, (&ProgressUpdate{}).Rate())
}

func TestCommonError(t *testing.T) {
	cause := errors.New("disk on fire")
	err := NewError(ErrCodeImageAccess, "cannot read image", cause)
	assert.Equal(t, "cannot read image: disk on fire", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "bare", NewError(ErrCodeOutputFailed, "bare", nil).Error())
}

func TestOpenSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flash.bin")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	source, err := OpenSource(ImageTarget{Path: path, Offset: 2, Length: 4}, device.DefaultImageConfig())
	require.NoError(t, err)
	defer source.Close()
	assert.Equal(t, []byte("2345"), source.Bytes())

	_, err = OpenSource(ImageTarget{Path: path, Offset: 20}, device.DefaultImageConfig())
	var commonErr *CommonError
	require.ErrorAs(t, err, &commonErr)
	assert.Equal(t, ErrCodeImageAccess, commonErr.Code)

	blocked := device.DefaultImageConfig()
	blocked.EraseBlockSize = "64KiB"
	_, err = OpenSource(ImageTarget{Path: path, Offset: 2}, blocked)
	require.ErrorAs(t, err, &commonErr)
	assert.Equal(t, ErrCodeInvalidInput, commonErr.Code, "the window must start on an erase block")
}

func TestExtractionError(t *testing.T) {
	assert.Equal(t, ErrCodeTimeout, ExtractionError(context.DeadlineExceeded).Code)
	assert.Equal(t, ErrCodeExtractionFailed, ExtractionError(context.Canceled).Code)
}
