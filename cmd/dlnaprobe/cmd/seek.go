package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/dlnaprobe/internal/dlna"
	"github.com/jmylchreest/dlnaprobe/pkg/npt"
)

var (
	seekRate   float64
	seekFormat string
	seekStart  string
	seekStop   string
	seekOutput string
)

// seekCmd validates a seek or rate change against a fresh snapshot.
var seekCmd = &cobra.Command{
	Use:   "seek <uri>",
	Short: "Validate a seek or rate change against a resource",
	Long: `Fetch the capability snapshot of the resource and check whether a seek
to --start at playback rate --rate would be honoured.

Positions are NPT (e.g. 0:01:30) for --format time and byte offsets for
--format bytes. An accepted rate other than 1 prints the extra headers the
media request must carry.`,
	Args: cobra.ExactArgs(1),
	RunE: runSeek,
}

func init() {
	seekCmd.Flags().Float64Var(&seekRate, "rate", 1.0, "playback rate")
	seekCmd.Flags().StringVar(&seekFormat, "format", "bytes", "position format (bytes, time)")
	seekCmd.Flags().StringVar(&seekStart, "start", "0", "start position")
	seekCmd.Flags().StringVar(&seekStop, "stop", "", "stop position (default open-ended)")
	seekCmd.Flags().StringVarP(&seekOutput, "output", "o", outputText, "output format (text, json)")
	rootCmd.AddCommand(seekCmd)
}

type seekResult struct {
	Accepted bool              `json:"accepted"`
	Reason   string            `json:"reason,omitempty"`
	Detail   string            `json:"detail,omitempty"`
	Headers  []dlna.HeaderLine `json:"headers,omitempty"`
}

func runSeek(cmd *cobra.Command, args []string) error {
	if seekOutput != outputText && seekOutput != outputJSON {
		return fmt.Errorf("unsupported output format %q", seekOutput)
	}

	req, err := buildSeekRequest(seekRate, seekFormat, seekStart, seekStop)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	session := newSession(cfg, slog.Default())
	if err := session.SetURI(ctx, args[0]); err != nil {
		return fmt.Errorf("probing %s: %w", args[0], err)
	}

	decision, seekErr := session.Seek(ctx, req)
	result := seekResult{Accepted: seekErr == nil, Headers: decision.ExtraHeaders}

	var rejection *dlna.RejectionError
	switch {
	case seekErr == nil:
	case errors.As(seekErr, &rejection):
		result.Reason = rejection.Code()
		result.Detail = rejection.Detail
	default:
		return seekErr
	}

	out := cmd.OutOrStdout()
	if seekOutput == outputJSON {
		if err := writeJSON(out, result); err != nil {
			return err
		}
	} else {
		if result.Accepted {
			fmt.Fprintln(out, "accepted")
			for _, h := range result.Headers {
				fmt.Fprintln(out, h.String())
			}
		} else {
			fmt.Fprintf(out, "rejected: %s (%s)\n", result.Reason, result.Detail)
		}
	}

	return seekErr
}

// buildSeekRequest converts flag values into a seek request.
func buildSeekRequest(rate float64, format, start, stop string) (dlna.SeekRequest, error) {
	f, err := dlna.ParseFormat(format)
	if err != nil {
		return dlna.SeekRequest{}, err
	}

	req := dlna.SeekRequest{
		Rate:      rate,
		Format:    f,
		Stop:      -1,
		StartType: dlna.SeekTypeSet,
		StopType:  dlna.SeekTypeNone,
	}

	req.Start, err = parsePosition(f, start)
	if err != nil {
		return dlna.SeekRequest{}, fmt.Errorf("invalid start: %w", err)
	}
	if stop != "" {
		req.Stop, err = parsePosition(f, stop)
		if err != nil {
			return dlna.SeekRequest{}, fmt.Errorf("invalid stop: %w", err)
		}
		req.StopType = dlna.SeekTypeSet
	}
	return req, nil
}

func parsePosition(f dlna.Format, s string) (int64, error) {
	if f == dlna.FormatTime {
		d, err := npt.Parse(s)
		if err != nil {
			return 0, err
		}
		return int64(d), nil
	}
	return strconv.ParseInt(s, 10, 64)
}
