package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"runstream/internal/analysis"
	"runstream/internal/export"
	"runstream/internal/fitfile"
	"runstream/internal/service"
)

func exportCmd(opts *rootOptions) *cobra.Command {
	var segments bool
	cmd := &cobra.Command{
		Use:     "export <activity-id> <file.parquet>",
		Short:   "Write an analysis series to a Parquet file",
		Example: "runstream export 1234567890 run.parquet\nrunstream export 1234567890 segments.parquet --segments",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			e, err := opts.open(false)
			if err != nil {
				return err
			}
			defer e.Close()

			rec, err := e.analyzer.Process(cmd.Context(), id)
			if err != nil {
				return err
			}
			result, err := service.DecodeResult(rec)
			if err != nil {
				return err
			}
			if result == nil {
				return fmt.Errorf("activity %d has no analysis to export (status %s)", id, rec.Status)
			}
			return writeParquet(cmd, args[1], result, segments)
		},
	}
	cmd.Flags().BoolVar(&segments, "segments", false, "export the segment table instead of the series")
	return cmd
}

func analyzeFitCmd(opts *rootOptions) *cobra.Command {
	var (
		parquetOut string
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "analyze-fit <file.fit>",
		Short: "Analyze a FIT activity file without storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			act, err := fitfile.Decode(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			out := analysis.Analyze(act.Input, cfg.Thresholds())
			if out.Err != nil {
				return fmt.Errorf("analysis failed: %w", out.Err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				view := service.AnalysisView{
					Version: analysis.Version,
					Status:  out.Status,
					Reason:  out.Reason,
					Result:  out.Result,
				}
				if err := enc.Encode(view); err != nil {
					return err
				}
			} else {
				printOutcome(cmd, act, out)
			}

			if parquetOut != "" {
				if out.Result == nil {
					return errors.New("nothing to export for an unavailable analysis")
				}
				return writeParquet(cmd, parquetOut, out.Result, false)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&parquetOut, "parquet", "", "also write the series to this Parquet file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full outcome as JSON")
	return cmd
}

func printOutcome(cmd *cobra.Command, act *fitfile.Activity, out analysis.Outcome) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s  %s  %d samples\n", act.StartTime.Format("2006-01-02 15:04"), act.Sport, len(act.Input.Samples))
	if out.Result == nil {
		fmt.Fprintf(w, "status %s (%s)\n", out.Status, out.Reason)
		return
	}
	r := out.Result
	fmt.Fprintf(w, "status %s  tier %s  confidence %.2f\n", out.Status, r.TierUsed, r.Confidence)
	for _, s := range r.Segments {
		pace := "-"
		if s.AvgPaceSKm != nil {
			pace = fmt.Sprintf("%.0f s/km", *s.AvgPaceSKm)
		}
		fmt.Fprintf(w, "  %-9s %6.0fs %8.0fm  %s\n", s.Type, s.DurationS, s.DistanceM, pace)
	}
	if d := r.Drift.CardiacPct; d != nil {
		fmt.Fprintf(w, "cardiac drift %+.1f%%\n", *d)
	}
	fmt.Fprintf(w, "%d moments\n", len(r.Moments))
}

func writeParquet(cmd *cobra.Command, path string, r *analysis.StreamAnalysisResult, segments bool) error {
	var (
		data []byte
		err  error
	)
	if segments {
		data, err = export.Segments(r)
	} else {
		data, err = export.Series(r)
	}
	if err != nil {
		return fmt.Errorf("encoding parquet: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", path, len(data))
	return nil
}
