package extract

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/deploymenttheory/go-jffs2/internal/diagnostics"
	"github.com/deploymenttheory/go-jffs2/internal/interfaces"
	"github.com/deploymenttheory/go-jffs2/internal/materializer"
	"github.com/deploymenttheory/go-jffs2/internal/services"
	"github.com/deploymenttheory/go-jffs2/pkg/app"
)

// progressInterval is the number of entries between progress reports
const progressInterval = 256

// Handle processes an extraction request
func Handle(ctx *app.Context, req *Request) (*Response, error) {
	startTime := time.Now()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	config := *req.Config
	if req.NoOrphans {
		config.RecoverOrphans = false
	}

	source := req.Source
	if source == nil {
		ctx.Progress("Reading image...", 5)
		opened, err := app.OpenSource(req.Target, &config)
		if err != nil {
			return nil, err
		}
		defer opened.Close()
		source = opened
	}

	service, err := app.NewExtractionService(ctx, &config)
	if err != nil {
		return nil, err
	}

	ctx.Log("extracting image", "image", req.Target.String(), "dest", req.Dest)
	ctx.Progress("Reconstructing tree...", 10)
	result, err := service.Extract(ctx, source.Bytes())
	if err != nil {
		return nil, app.ExtractionError(err)
	}

	sink, err := newSink(ctx, req)
	if err != nil {
		return nil, err
	}

	response := &Response{
		Image:   req.Target.String(),
		Dest:    req.Dest,
		Entries: len(result.Entries),
	}
	if err := materialize(ctx, sink, result, response); err != nil {
		return nil, err
	}
	if err := sink.Finish(); err != nil {
		return nil, app.NewError(app.ErrCodeOutputFailed, "failed to apply directory attributes", err)
	}

	if req.Manifest != "" {
		manifest := materializer.NewManifest(req.Target.String(), source.Size(), result)
		if err := materializer.WriteManifest(manifestFs(req), req.Manifest, manifest); err != nil {
			return nil, app.NewError(app.ErrCodeOutputFailed, "failed to write manifest", err)
		}
		response.Manifest = req.Manifest
		response.RunID = manifest.RunID
	}

	response.Diagnostics = result.Diagnostics
	response.DiagnosticCounts = countKinds(result.Diagnostics)
	response.ExtractTime = time.Since(startTime)

	ctx.Progress("Complete", 100)
	ctx.Log("extraction complete",
		"written", response.Written,
		"skipped", len(response.Skipped),
		"duration", response.ExtractTime)
	return response, nil
}

func newSink(ctx *app.Context, req *Request) (interfaces.Materializer, error) {
	opts := materializer.Options{
		Overwrite:     req.Overwrite,
		PreservePerms: req.PreservePerms,
		Logger:        ctx.Logger,
	}
	if req.Output != nil {
		return materializer.NewFsMaterializer(req.Output, opts), nil
	}
	sink, err := materializer.NewDirMaterializer(req.Dest, opts)
	if err != nil {
		return nil, app.NewError(app.ErrCodeOutputFailed, "cannot prepare destination", err)
	}
	return sink, nil
}

// materialize writes every entry. Entries the output cannot hold are
// skipped and recorded as diagnostics; only cancellation stops the walk.
func materialize(ctx *app.Context, sink interfaces.Materializer, result *services.ExtractionResult, response *Response) error {
	hook := ctx.DiagnosticHook()
	update := app.ProgressUpdate{
		Message:   "Writing entries...",
		Total:     int64(len(result.Entries)),
		StartedAt: time.Now(),
	}

	for i := range result.Entries {
		entry := &result.Entries[i]
		err := sink.Materialize(ctx, *entry)
		switch {
		case err == nil:
			response.Written++
		case ctx.Err() != nil:
			return app.ExtractionError(ctx.Err())
		default:
			path := strings.Join(entry.Path, "/")
			response.Skipped = append(response.Skipped, SkippedEntry{Path: path, Reason: reason(err)})
			d := diagnostics.Diagnostic{
				Kind:    diagnostics.MaterializeFailed,
				Offset:  diagnostics.NoOffset,
				Ino:     entry.Ino,
				Message: fmt.Sprintf("%s: %v", path, err),
			}
			result.Diagnostics = append(result.Diagnostics, d)
			hook(d)
		}
		if entry.Partial {
			response.Partial++
		}
		if entry.Orphan {
			response.Orphans++
		}

		update.Completed = int64(i + 1)
		if update.Completed%progressInterval == 0 {
			update.ElapsedTime = time.Since(update.StartedAt)
			ctx.Progress(update.Message, 10+update.Percent()*85/100)
		}
	}

	update.ElapsedTime = time.Since(update.StartedAt)
	ctx.Log("entries written", "count", update.Completed, "per_second", int(update.Rate()))
	return nil
}

func reason(err error) string {
	if errors.Is(err, materializer.ErrUnsupported) {
		return "unsupported"
	}
	return err.Error()
}

func manifestFs(req *Request) afero.Fs {
	if req.Output != nil {
		return req.Output
	}
	return afero.NewOsFs()
}

func countKinds(items []diagnostics.Diagnostic) map[diagnostics.Kind]int {
	counts := make(map[diagnostics.Kind]int)
	for _, d := range items {
		counts[d.Kind]++
	}
	return counts
}
