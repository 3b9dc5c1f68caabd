package list

import (
	"path"
	"strings"

	"github.com/deploymenttheory/go-jffs2/pkg/app"
)

// Validate validates a list request and normalises its prefix
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

	// Cleaning against "/" keeps ".." from climbing above the root.
	if r.Prefix != "" {
		r.Prefix = strings.TrimPrefix(path.Clean("/"+r.Prefix), "/")
	}
	return nil
}

// matches reports whether p lies in the requested subtree
func (r *Request) matches(p string) bool {
	if r.Prefix == "" {
		return true
	}
	return p == r.Prefix || strings.HasPrefix(p, r.Prefix+"/")
}
