package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/deploymenttheory/go-jffs2/internal/device"
	"github.com/deploymenttheory/go-jffs2/pkg/app"
)

var (
	// Global output flags
	verbose      bool
	quiet        bool
	outputFormat string
	cfgFile      string

	// Loaded by PersistentPreRunE for every subcommand
	imageConfig *device.ImageConfig
	logger      *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "go-jffs2",
	Short: "Read-only JFFS2 flash image extractor",
	Long: `go-jffs2 reconstructs the directory tree of a raw JFFS2 flash image
without mounting it. It tolerates corrupt nodes, recovers orphaned files and
reports every problem it finds as a diagnostic.

Commands:
  scan        Census of the nodes in an image
  list        List the reconstructed tree
  extract     Write the reconstructed tree to a directory`,
	Version:       "0.1.0-dev",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config, err := device.LoadImageConfigFile(cfgFile)
		if err != nil {
			return app.NewError(app.ErrCodeInvalidInput, "failed to load configuration", err)
		}
		level, err := app.LogLevel(config.Log.Level, verbose, quiet)
		if err != nil {
			return err
		}
		imageConfig = config
		logger = app.NewLogger(level)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// flagBindings maps persistent flags onto configuration keys, so a flag
// overrides the config file and the environment.
var flagBindings = map[string]string{
	"endian":           device.KeyEndian,
	"erase-block-size": device.KeyEraseBlockSize,
	"offset":           device.KeyOffset,
	"length":           device.KeyLength,
	"workers":          device.KeyWorkers,
	"max-file-size":    device.KeyMaxFileSize,
	"max-total-size":   device.KeyMaxTotalSize,
	"orphan-dir":       device.KeyOrphanDir,
	"log-level":        device.KeyLogLevel,
}

func init() {
	flags := rootCmd.PersistentFlags()

	// Output control
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	flags.BoolVarP(&quiet, "quiet", "q", false, "suppress output except errors")
	flags.StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./jffs2-config.yaml)")

	// Image geometry
	flags.String("endian", "auto", "byte order of the image (auto, little, big)")
	flags.String("erase-block-size", "auto", "erase block size, e.g. 128KiB (auto detects)")
	flags.Int64("offset", 0, "byte offset of the image within the file")
	flags.Int64("length", 0, "number of bytes to read (0 reads to the end)")

	// Extraction
	flags.Int("workers", 0, "inodes resolved in parallel (0 uses one per CPU)")
	flags.String("max-file-size", "1GiB", "largest file that is reconstructed (unlimited disables)")
	flags.String("max-total-size", "4GiB", "file content held in memory across the image (unlimited disables)")
	flags.String("orphan-dir", "lost+found", "directory that receives unreachable inodes")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	for flag, key := range flagBindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to bind flag %s: %v\n", flag, err)
			os.Exit(1)
		}
	}
}

// newAppContext builds the application context for a command
func newAppContext(cmd *cobra.Command) *app.Context {
	ctx := app.NewContext()
	ctx.Context = cmd.Context()
	ctx.OutputFormat = outputFormat
	ctx.Verbose = verbose
	ctx.Quiet = quiet
	ctx.Logger = logger
	return ctx
}

// imageTarget selects the image named on the command line
func imageTarget(path string) app.ImageTarget {
	return app.ImageTarget{
		Path:   path,
		Offset: imageConfig.Offset,
		Length: imageConfig.Length,
	}
}
