package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jmylchreest/dlnaprobe/internal/dlna"
	"github.com/jmylchreest/dlnaprobe/internal/negotiator"
	"github.com/jmylchreest/dlnaprobe/internal/observability"
	"github.com/jmylchreest/dlnaprobe/pkg/npt"
)

// Output formats.
const (
	outputText = "text"
	outputJSON = "json"
)

// capabilityView is the query side of a session used for rendering.
type capabilityView interface {
	Snapshot() *dlna.Snapshot
	Duration(format dlna.Format) (int64, error)
	Seeking(format dlna.Format) (negotiator.Range, error)
	DecryptionPlan() (negotiator.DecryptionPlan, error)
}

type probeResult struct {
	URI      string         `json:"uri"`
	Snapshot *dlna.Snapshot `json:"snapshot"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeSnapshotText prints the snapshot and its derived capabilities as
// aligned key/value rows.
func writeSnapshotText(w io.Writer, uri string, view capabilityView) error {
	snap := view.Snapshot()
	if snap == nil {
		_, err := fmt.Fprintln(w, "no capability snapshot")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	row := func(key, value string) {
		fmt.Fprintf(tw, "%s\t%s\n", key, value)
	}

	row("URI", observability.RedactURL(uri))
	row("Status", fmt.Sprintf("%d %s", snap.Status.Code, snap.Status.Message))
	if snap.Server != "" {
		row("Server", snap.Server)
	}
	row("Content-Type", snap.ContentType)
	row("Content-Length", fmt.Sprintf("%d", snap.ContentLength))
	row("Byte ranges", yesNo(snap.AcceptsByteRanges))

	cf := snap.ContentFeatures
	if cf.Profile != "" {
		row("Profile", cf.Profile)
	}
	row("Time seek", yesNo(cf.TimeSeekSupported))
	row("Byte seek", yesNo(cf.ByteRangeSupported))
	row("Playspeeds", playspeedList(cf.Playspeeds))
	if cf.FlagsText != "" {
		row("Flags", fmt.Sprintf("%08X %s", uint32(cf.Flags), strings.Join(cf.Flags.Names(), ",")))
	}

	if r, err := view.Seeking(dlna.FormatTime); err == nil {
		d, _ := view.Duration(dlna.FormatTime)
		row("Time range", fmt.Sprintf("%s - %s / %s",
			npt.Format(time.Duration(r.Start)), npt.Format(time.Duration(r.End)), npt.Format(time.Duration(d))))
	}
	if r, err := view.Seeking(dlna.FormatBytes); err == nil {
		d, _ := view.Duration(dlna.FormatBytes)
		row("Byte range", fmt.Sprintf("%d - %d / %d", r.Start, r.End, d))
	}

	if plan, err := view.DecryptionPlan(); err == nil && plan.Required {
		row("Link protected", fmt.Sprintf("yes (DTCP %s:%d)", plan.Host, plan.Port))
	} else {
		row("Link protected", "no")
	}

	for _, warning := range snap.Warnings {
		row("Warning", warning.Field+": "+warning.Message)
	}

	return tw.Flush()
}

func playspeedList(speeds []dlna.Playspeed) string {
	if len(speeds) == 0 {
		return "-"
	}
	texts := make([]string, len(speeds))
	for i, ps := range speeds {
		texts[i] = ps.Text
	}
	return strings.Join(texts, ",")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
