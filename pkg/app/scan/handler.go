package scan

import (
	"time"

	"github.com/deploymenttheory/go-jffs2/internal/parsers/nodes"
	"github.com/deploymenttheory/go-jffs2/pkg/app"
)

// Handle processes a scan request
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

	ctx.Log("scanning image", "image", req.Target.String(), "size", source.Size())
	ctx.Progress("Scanning nodes...", 25)
	result := service.Scan(source.Bytes())

	response := &Response{
		Image:              req.Target.String(),
		ImageSize:          source.Size(),
		ByteOrder:          nodes.ByteOrderName(result.ByteOrder),
		EraseBlockSize:     result.EraseBlockSize,
		EraseBlockDetected: result.EraseBlockDetected,
		Stats:              result.Stats,
		Inodes:             len(result.Table.Inodes),
		Dirents:            len(result.Table.Dirents),
		Ignored:            len(result.Table.Ignored),
		DiagnosticCounts:   result.Diagnostics.Counts(),
		ScanTime:           time.Since(startTime),
	}
	if req.ShowDiagnostics {
		response.Diagnostics = result.Diagnostics.Diagnostics()
	}

	ctx.Progress("Complete", 100)
	ctx.Log("scan complete", "inodes", response.Inodes, "dirents", response.Dirents, "duration", response.ScanTime)
	return response, nil
}
