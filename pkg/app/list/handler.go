package list

import (
	"time"

	"github.com/deploymenttheory/go-jffs2/internal/materializer"
	"github.com/deploymenttheory/go-jffs2/internal/parsers/nodes"
	"github.com/deploymenttheory/go-jffs2/pkg/app"
)

// Handle processes a list request
func Handle(ctx *app.Context, req *Request) (*Response, error) {
	startTime := time.Now()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	source := req.Source
	if source == nil {
		ctx.Progress("Reading image...", 5)
		opened, err := app.OpenSource(req.Target, req.Config)
		if err != nil {
			return nil, err
		}
		defer opened.Close()
		source = opened
	}

	service, err := app.NewExtractionService(ctx, req.Config)
	if err != nil {
		return nil, err
	}

	ctx.Progress("Reconstructing tree...", 25)
	result, err := service.Extract(ctx, source.Bytes())
	if err != nil {
		return nil, app.ExtractionError(err)
	}

	ctx.Progress("Processing results...", 90)
	response := &Response{
		Image:       req.Target.String(),
		ByteOrder:   nodes.ByteOrderName(result.ByteOrder),
		Entries:     make([]materializer.ManifestEntry, 0, len(result.Entries)),
		Diagnostics: result.Diagnostics,
	}
	for i := range result.Entries {
		entry := materializer.NewManifestEntry(&result.Entries[i])
		if !req.matches(entry.Path) {
			continue
		}
		response.Entries = append(response.Entries, entry)
		response.TotalSize += entry.Size
		if entry.Partial {
			response.Partial++
		}
		if entry.Orphan {
			response.Orphans++
		}
	}
	response.ListTime = time.Since(startTime)

	ctx.Progress("Complete", 100)
	ctx.Log("listing complete", "entries", len(response.Entries), "duration", response.ListTime)
	return response, nil
}
