package interfaces_test

import (
	"github.com/spf13/afero"

	"github.com/deploymenttheory/go-jffs2/internal/device"
	"github.com/deploymenttheory/go-jffs2/internal/interfaces"
	"github.com/deploymenttheory/go-jffs2/internal/materializer"
)

var (
	_ interfaces.ImageSource  = (*device.Image)(nil)
	_ interfaces.Materializer = (*materializer.FsMaterializer)(nil)
	_ interfaces.Materializer = materializer.NewFsMaterializer(afero.NewMemMapFs(), materializer.Options{})
)
