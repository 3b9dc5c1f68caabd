package app

import (
	"context"
	"errors"
	"time"

	"github.com/deploymenttheory/go-jffs2/internal/device"
	"github.com/deploymenttheory/go-jffs2/internal/diagnostics"
	"github.com/deploymenttheory/go-jffs2/internal/interfaces"
	"github.com/deploymenttheory/go-jffs2/internal/services"
)

// OpenSource reads the target image window into memory
func OpenSource(target ImageTarget, config *device.ImageConfig) (interfaces.ImageSource, error) {
	if err := target.Validate(); err != nil {
		return nil, NewError(ErrCodeInvalidInput, "invalid image target", err)
	}
	windowed := *config
	windowed.Offset = target.Offset
	windowed.Length = target.Length
	if err := windowed.Validate(); err != nil {
		return nil, NewError(ErrCodeInvalidInput, "invalid image target "+target.String(), err)
	}

	image, err := device.OpenImage(target.Path, &windowed)
	if err != nil {
		return nil, NewError(ErrCodeImageAccess, "cannot read image "+target.String(), err)
	}
	return image, nil
}

// NewExtractionService builds the extraction pipeline from config, logging
// diagnostics through ctx
func NewExtractionService(ctx *Context, config *device.ImageConfig) (*services.ExtractionService, error) {
	order, err := config.ByteOrder()
	if err != nil {
		return nil, NewError(ErrCodeInvalidInput, "invalid configuration", err)
	}
	ebs, err := config.EraseBlockBytes()
	if err != nil {
		return nil, NewError(ErrCodeInvalidInput, "invalid configuration", err)
	}
	maxSize, err := config.MaxFileSizeBytes()
	if err != nil {
		return nil, NewError(ErrCodeInvalidInput, "invalid configuration", err)
	}
	maxTotal, err := config.MaxTotalSizeBytes()
	if err != nil {
		return nil, NewError(ErrCodeInvalidInput, "invalid configuration", err)
	}

	return services.NewExtractionService(services.ExtractionConfig{
		ByteOrder:      order,
		EraseBlockSize: ebs,
		Workers:        config.Workers,
		MaxFileSize:    maxSize,
		MaxTotalSize:   maxTotal,
		RecoverOrphans: config.RecoverOrphans,
		OrphanDir:      config.OrphanDir,
		Hooks:          []diagnostics.Hook{ctx.DiagnosticHook()},
		Logger:         ctx.logger(),
	}), nil
}

// ExtractionError classifies an error returned by ExtractionService.Extract
func ExtractionError(err error) *CommonError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(ErrCodeTimeout, "extraction timed out", err)
	}
	return NewError(ErrCodeExtractionFailed, "extraction failed", err)
}

// Elapsed rounds a duration for display
func Elapsed(d time.Duration) time.Duration {
	return d.Round(time.Millisecond)
}
