package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-jffs2/pkg/app/extract"
)

var (
	// Destination (extract-specific)
	extractDest     string
	extractManifest string

	// Extraction options (extract-specific)
	overwriteExisting bool
	preservePerms     bool
	noOrphans         bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [image-path]",
	Short: "Extract the reconstructed tree to a directory",
	Long: `Extract every file, directory, link and device node of a JFFS2 image.

Examples:
  # Extract to ./rootfs
  go-jffs2 extract rootfs.jffs2 --dest ./rootfs

  # Keep ownership and setuid bits (run as root) and record a manifest
  sudo go-jffs2 extract rootfs.jffs2 --dest ./rootfs --preserve-perms --manifest rootfs.cbor

  # Skip unreachable inodes
  go-jffs2 extract rootfs.jffs2 --dest ./rootfs --no-orphans`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExtract(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVarP(&extractDest, "dest", "d", "", "destination directory (required)")
	extractCmd.MarkFlagRequired("dest")
	extractCmd.Flags().StringVarP(&extractManifest, "manifest", "m", "", "write a manifest (.json, .yaml or .cbor)")

	extractCmd.Flags().BoolVar(&overwriteExisting, "overwrite", false, "overwrite existing files")
	extractCmd.Flags().BoolVar(&preservePerms, "preserve-perms", false, "apply the full mode and, as root, ownership")
	extractCmd.Flags().BoolVar(&noOrphans, "no-orphans", false, "do not recover unreachable inodes")
}

func runExtract(cmd *cobra.Command, imagePath string) error {
	ctx := newAppContext(cmd)

	request := &extract.Request{
		Target:        imageTarget(imagePath),
		Config:        imageConfig,
		Dest:          extractDest,
		Overwrite:     overwriteExisting,
		PreservePerms: preservePerms,
		NoOrphans:     noOrphans,
		Manifest:      extractManifest,
	}

	response, err := extract.Handle(ctx, request)
	if err != nil {
		return err
	}

	return extract.FormatOutput(os.Stdout, response, ctx.OutputFormat)
}
