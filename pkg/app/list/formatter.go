package list

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/deploymenttheory/go-jffs2/internal/materializer"
	"github.com/deploymenttheory/go-jffs2/pkg/app"
)

// FormatOutput writes list results in the requested format
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
	if len(response.Entries) == 0 {
		fmt.Fprintln(out, "No entries found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "MODE\tUID\tGID\tSIZE\tMODIFIED\tPATH\n")
	fmt.Fprintf(w, "----\t---\t---\t----\t--------\t----\n")
	for _, entry := range response.Entries {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t%s\n",
			modeString(entry), entry.UID, entry.GID, sizeString(entry),
			entry.MTime.UTC().Format("2006-01-02 15:04"), describe(entry))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d entries, %s", len(response.Entries), humanize.IBytes(response.TotalSize))
	if response.Partial > 0 {
		fmt.Fprintf(out, ", %d partial", response.Partial)
	}
	if response.Orphans > 0 {
		fmt.Fprintf(out, ", %d orphaned", response.Orphans)
	}
	if len(response.Diagnostics) > 0 {
		fmt.Fprintf(out, ", %d diagnostics", len(response.Diagnostics))
	}
	fmt.Fprintf(out, " in %v\n", app.Elapsed(response.ListTime))
	return nil
}

// modeString renders the mode the way ls does
func modeString(entry materializer.ManifestEntry) string {
	perm, err := strconv.ParseUint(entry.Mode, 8, 32)
	if err != nil {
		return entry.Mode
	}
	mode := os.FileMode(perm & 0o777)
	if perm&0o4000 != 0 {
		mode |= os.ModeSetuid
	}
	if perm&0o2000 != 0 {
		mode |= os.ModeSetgid
	}
	if perm&0o1000 != 0 {
		mode |= os.ModeSticky
	}
	switch entry.Type {
	case "dir":
		mode |= os.ModeDir
	case "symlink":
		mode |= os.ModeSymlink
	case "chardev":
		mode |= os.ModeDevice | os.ModeCharDevice
	case "blockdev":
		mode |= os.ModeDevice
	case "fifo":
		mode |= os.ModeNamedPipe
	case "socket":
		mode |= os.ModeSocket
	}
	return mode.String()
}

func sizeString(entry materializer.ManifestEntry) string {
	if entry.Device != "" {
		return entry.Device
	}
	return humanize.IBytes(entry.Size)
}

func describe(entry materializer.ManifestEntry) string {
	name := entry.Path
	switch {
	case entry.LinkTarget != "":
		name += " -> " + entry.LinkTarget
	case entry.HardLinkTarget != "":
		name += " => " + entry.HardLinkTarget
	}
	if entry.Partial {
		name += " (partial)"
	}
	return name
}
