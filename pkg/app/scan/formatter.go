package scan

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/deploymenttheory/go-jffs2/internal/diagnostics"
	"github.com/deploymenttheory/go-jffs2/pkg/app"
)

// FormatOutput writes scan results in the requested format
func FormatOutput(w io.Writer, response *Response, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(response)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		encoder.SetIndent(2)
		return encoder.Encode(response)
	case "table":
		return formatTable(w, response)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func formatTable(out io.Writer, response *Response) error {
	fmt.Fprintf(out, "Image:       %s (%s)\n", response.Image, humanize.IBytes(uint64(response.ImageSize)))
	fmt.Fprintf(out, "Byte order:  %s\n", response.ByteOrder)
	ebs := humanize.IBytes(uint64(response.EraseBlockSize))
	if !response.EraseBlockDetected {
		ebs += " (not detected)"
	}
	fmt.Fprintf(out, "Erase block: %s\n\n", ebs)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "KIND\tNODES\tBYTES\n")
	fmt.Fprintf(w, "----\t-----\t-----\n")

	kinds := make([]string, 0, len(response.Stats.Kinds))
	for kind := range response.Stats.Kinds {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		k := response.Stats.Kinds[kind]
		fmt.Fprintf(w, "%s\t%d\t%s\n", kind, k.Count, humanize.IBytes(uint64(k.Bytes)))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d inodes, %d dirents, %d nodes ignored, %d corrupt headers\n",
		response.Inodes, response.Dirents, response.Ignored, response.Stats.HeaderCorrupt)
	fmt.Fprintf(out, "%s of %s accounted for in %v\n",
		humanize.IBytes(uint64(response.Accounted())), humanize.IBytes(uint64(response.ImageSize)), app.Elapsed(response.ScanTime))

	return formatDiagnostics(out, response.DiagnosticCounts, response.Diagnostics)
}

func formatDiagnostics(out io.Writer, counts map[diagnostics.Kind]int, items []diagnostics.Diagnostic) error {
	if len(counts) == 0 {
		return nil
	}
	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)

	fmt.Fprintf(out, "\nDiagnostics:\n")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, kind := range kinds {
		fmt.Fprintf(w, "  %s\t%d\n", kind, counts[diagnostics.Kind(kind)])
	}
	if err := w.Flush(); err != nil {
		return err
	}
	for _, d := range items {
		fmt.Fprintf(out, "  %s\n", d)
	}
	return nil
}
