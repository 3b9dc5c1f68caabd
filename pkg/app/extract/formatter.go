package extract

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/deploymenttheory/go-jffs2/internal/diagnostics"
	"github.com/deploymenttheory/go-jffs2/pkg/app"
)

// FormatOutput writes extraction results in the requested format
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
	fmt.Fprintf(out, "Extracted %d of %d entries from %s to %s in %v\n",
		response.Written, response.Entries, response.Image, response.Dest, app.Elapsed(response.ExtractTime))
	if response.Partial > 0 {
		fmt.Fprintf(out, "%d entries were only partially recovered\n", response.Partial)
	}
	if response.Orphans > 0 {
		fmt.Fprintf(out, "%d orphaned entries recovered\n", response.Orphans)
	}
	if response.Manifest != "" {
		fmt.Fprintf(out, "Manifest: %s (run %s)\n", response.Manifest, response.RunID)
	}

	if len(response.Skipped) > 0 {
		fmt.Fprintf(out, "\nSkipped:\n")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, s := range response.Skipped {
			fmt.Fprintf(w, "  %s\t%s\n", s.Path, s.Reason)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if len(response.DiagnosticCounts) > 0 {
		kinds := make([]string, 0, len(response.DiagnosticCounts))
		for kind := range response.DiagnosticCounts {
			kinds = append(kinds, string(kind))
		}
		sort.Strings(kinds)

		fmt.Fprintf(out, "\nDiagnostics:\n")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, kind := range kinds {
			fmt.Fprintf(w, "  %s\t%d\n", kind, response.DiagnosticCounts[diagnostics.Kind(kind)])
		}
		return w.Flush()
	}
	return nil
}
