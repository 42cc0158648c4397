package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/specht/specht-client/internal/domain/model"
)

func printReport(w io.Writer, r *model.ReportPayload) {
	status := "finished"
	if r.Failed {
		status = "aborted"
	}
	fmt.Fprintf(w, "Reconcile pass %s %s in %dms\n", r.PassID, status, r.DurationMs)
	fmt.Fprintf(w, "  Removed: %d\n", r.Removed)
	fmt.Fprintf(w, "  Created: %s\n", joinOrDash(r.Created))
	fmt.Fprintf(w, "  Changed: %s\n", joinOrDash(r.Changed))
	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "  Errors:")
		for _, e := range r.Errors {
			fmt.Fprintf(w, "    - %s\n", e)
		}
	}
}

func printTunnels(w io.Writer, snap *model.SnapshotPayload) {
	if len(snap.Tunnels) == 0 {
		fmt.Fprintln(w, "No tunnels defined")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATUS\tHASH\tCONFIG")
	for _, h := range snap.Tunnels {
		hash := h.Definition.Payload.Hash
		if len(hash) > 8 {
			hash = hash[:8]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", h.Name(), h.Status, hash, h.Definition.Payload.ConfigPath)
	}
	tw.Flush()
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
