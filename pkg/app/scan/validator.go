package scan

import (
	"github.com/deploymenttheory/go-jffs2/pkg/app"
)

// Validate validates a scan request
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
	return nil
}
