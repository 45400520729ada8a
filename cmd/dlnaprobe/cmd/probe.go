package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/dlnaprobe/internal/observability"
	"github.com/jmylchreest/dlnaprobe/pkg/npt"
)

var (
	probeOutput string
	probeNPT    string
	probeByte   uint64
)

// probeCmd runs one HEAD exchange and prints the snapshot.
var probeCmd = &cobra.Command{
	Use:   "probe <uri>",
	Short: "Fetch and print the capability snapshot of a resource",
	Long: `Send a DLNA HEAD request for the resource and print the decoded
capability snapshot.

A start position hint may be given with --npt or --byte; the server then
reports the seek range starting at that position.`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().StringVarP(&probeOutput, "output", "o", outputText, "output format (text, json)")
	probeCmd.Flags().StringVar(&probeNPT, "npt", "", "start position hint as NPT (e.g. 0:01:30.5)")
	probeCmd.Flags().Uint64Var(&probeByte, "byte", 0, "start position hint as byte offset")
	probeCmd.MarkFlagsMutuallyExclusive("npt", "byte")
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	if probeOutput != outputText && probeOutput != outputJSON {
		return fmt.Errorf("unsupported output format %q", probeOutput)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	logger := slog.Default()
	session := newSession(cfg, logger)

	if err := session.SetURI(ctx, args[0]); err != nil {
		return fmt.Errorf("probing %s: %w", args[0], err)
	}

	if probeNPT != "" || probeByte != 0 {
		startNPT, err := parseOptionalNPT(probeNPT)
		if err != nil {
			return err
		}
		if _, err := session.Exchange(ctx, startNPT, probeByte); err != nil {
			return fmt.Errorf("probing %s with start hint: %w", args[0], err)
		}
	}

	out := cmd.OutOrStdout()
	if probeOutput == outputJSON {
		return writeJSON(out, probeResult{URI: observability.RedactURL(args[0]), Snapshot: session.Snapshot()})
	}
	return writeSnapshotText(out, args[0], session)
}

func parseOptionalNPT(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := npt.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("invalid npt %q: %w", s, err)
	}
	return d, nil
}
