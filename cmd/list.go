package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-jffs2/pkg/app/list"
)

var listPrefix string

var listCmd = &cobra.Command{
	Use:   "list [image-path]",
	Short: "List the reconstructed directory tree",
	Long: `List every entry of the tree reconstructed from a JFFS2 image.

Examples:
  # List the whole tree
  go-jffs2 list rootfs.jffs2

  # List one directory as YAML
  go-jffs2 list rootfs.jffs2 --path /etc -o yaml`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listPrefix, "path", "p", "", "list only this subtree")
}

func runList(cmd *cobra.Command, imagePath string) error {
	ctx := newAppContext(cmd)

	request := &list.Request{
		Target: imageTarget(imagePath),
		Config: imageConfig,
		Prefix: listPrefix,
	}

	response, err := list.Handle(ctx, request)
	if err != nil {
		return err
	}

	return list.FormatOutput(os.Stdout, response, ctx.OutputFormat)
}
