package extract

import (
	"github.com/deploymenttheory/go-jffs2/internal/materializer"
	"github.com/deploymenttheory/go-jffs2/pkg/app"
)

// Validate validates an extraction request
func (r *Request) Validate() error {
	if r.Source == nil {
		if err := r.Target.Validate(); err != nil {
			return app.NewError(app.ErrCodeInvalidInput, "invalid image target", err)
		}
	}
	if r.Config == nil {
		return app.NewError(app.ErrCodeInvalidInput, "configuration is required", nil)
	}
	if err := r.Config.Validate(); err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid configuration", err)
	}
	if r.Dest == "" && r.Output == nil {
		return app.NewError(app.ErrCodeInvalidInput, "destination directory is required", nil)
	}
	if r.Manifest != "" {
		if _, err := materializer.FormatFromPath(r.Manifest); err != nil {
			return app.NewError(app.ErrCodeInvalidInput, "invalid manifest path", err)
		}
	}
	return nil
}
