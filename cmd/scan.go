package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-jffs2/pkg/app/scan"
)

var scanShowDiagnostics bool

var scanCmd = &cobra.Command{
	Use:   "scan [image-path]",
	Short: "Count the nodes of a JFFS2 image",
	Long: `Walk every node of a JFFS2 image and report how its bytes are used.

Examples:
  # Node census of a flash dump
  go-jffs2 scan flash.bin

  # Image carved from a firmware file, listing every diagnostic
  go-jffs2 scan firmware.bin --offset 0x40000 --length 0x300000 --diagnostics

  # Big-endian image with a known erase block size
  go-jffs2 scan mips.bin --endian big --erase-block-size 64KiB -o json`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().BoolVar(&scanShowDiagnostics, "diagnostics", false, "list every diagnostic, not just counts")
}

func runScan(cmd *cobra.Command, imagePath string) error {
	ctx := newAppContext(cmd)

	request := &scan.Request{
		Target:          imageTarget(imagePath),
		Config:          imageConfig,
		ShowDiagnostics: scanShowDiagnostics,
	}

	response, err := scan.Handle(ctx, request)
	if err != nil {
		return err
	}

	return scan.FormatOutput(os.Stdout, response, ctx.OutputFormat)
}
