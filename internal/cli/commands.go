package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"runstream/internal/analysis"
	"runstream/internal/service"
	"runstream/internal/store"
)

func syncCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Fetch new runs and streams from Strava and analyze them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := opts.open(false)
			if err != nil {
				return err
			}
			defer e.Close()

			svc, err := e.syncService(ctx)
			if err != nil {
				return err
			}

			progress := make(chan service.SyncProgress, 16)
			done := make(chan struct{})
			go func() {
				defer close(done)
				last := ""
				for p := range progress {
					if p.Phase != last {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s...\n", p.Phase)
						last = p.Phase
					}
				}
			}()
			result, err := svc.SyncAll(ctx, progress)
			<-done
			if result != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "fetched %d, stored %d, streams %d (%d missing), analyzed %d, errors %d\n",
					result.ActivitiesFetched, result.ActivitiesStored, result.StreamsFetched,
					result.StreamsMissing, result.Analyzed, len(result.Errors))
				for _, serr := range result.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "  %v\n", serr)
				}
			}
			return err
		},
	}
}

func analyzeCmd(opts *rootOptions) *cobra.Command {
	var (
		pending bool
		force   bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:     "analyze [activity-id...]",
		Short:   "Analyze stored streams",
		Long:    "Analyze the given activities, or every activity without a final result at the current analysis version with --pending. Cached results are returned unless --force is set.",
		Example: "runstream analyze 1234567890\nrunstream analyze --pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			if pending == (len(args) > 0) {
				return errors.New("pass activity IDs or --pending")
			}
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			e, err := opts.open(false)
			if err != nil {
				return err
			}
			defer e.Close()

			if pending {
				batch, err := e.analyzer.ProcessPending(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "analyzed %d\n", batch.Processed)
				for _, st := range []analysis.Status{analysis.StatusSuccess, analysis.StatusUnavailable, analysis.StatusError} {
					fmt.Fprintf(out, "  %-11s %d\n", st, batch.ByStatus[st])
				}
				return errors.Join(batch.Errors...)
			}

			var records []*store.AnalysisRecord
			for _, id := range ids {
				var rec *store.AnalysisRecord
				if force {
					rec, err = e.analyzer.Reprocess(ctx, id)
				} else {
					rec, err = e.analyzer.Process(ctx, id)
				}
				if err != nil {
					return fmt.Errorf("activity %d: %w", id, err)
				}
				records = append(records, rec)
			}
			return printRecords(cmd.OutOrStdout(), records, asJSON)
		},
	}
	cmd.Flags().BoolVar(&pending, "pending", false, "analyze every activity without a final result")
	cmd.Flags().BoolVar(&force, "force", false, "recompute even when a cached result exists")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full analysis as JSON")
	return cmd
}

func reprocessCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "reprocess <activity-id>",
		Short: "Recompute one analysis and overwrite the cached result",
		Args:  cobra.ExactArgs(1),
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

			rec, err := e.analyzer.Reprocess(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printRecords(cmd.OutOrStdout(), []*store.AnalysisRecord{rec}, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full analysis as JSON")
	return cmd
}

func refetchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refetch <activity-id>",
		Short: "Download an activity's stream from Strava again and reanalyze it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			e, err := opts.open(false)
			if err != nil {
				return err
			}
			defer e.Close()

			svc, err := e.syncService(ctx)
			if err != nil {
				return err
			}
			rec, err := svc.RefetchStreams(ctx, id)
			if err != nil {
				return err
			}
			return printRecords(cmd.OutOrStdout(), []*store.AnalysisRecord{rec}, false)
		},
	}
}

func planCmd(opts *rootOptions) *cobra.Command {
	var (
		duration  float64
		distance  float64
		pace      float64
		intervals int
		clearPlan bool
	)
	cmd := &cobra.Command{
		Use:     "plan <activity-id>",
		Short:   "Attach a prescribed workout to an activity and reanalyze it",
		Example: "runstream plan 1234567890 --distance 10 --pace 300\nrunstream plan 1234567890 --intervals 6\nrunstream plan 1234567890 --clear",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			plan := &store.PlannedWorkout{ActivityID: id}
			flags := cmd.Flags()
			if flags.Changed("duration") {
				plan.PlannedDurationMin = &duration
			}
			if flags.Changed("distance") {
				plan.PlannedDistanceKm = &distance
			}
			if flags.Changed("pace") {
				plan.PlannedPaceSKm = &pace
			}
			if flags.Changed("intervals") {
				plan.PlannedIntervalCount = &intervals
			}
			empty := plan.PlannedDurationMin == nil && plan.PlannedDistanceKm == nil &&
				plan.PlannedPaceSKm == nil && plan.PlannedIntervalCount == nil
			if clearPlan == !empty {
				return errors.New("pass at least one of --duration, --distance, --pace, --intervals, or only --clear")
			}

			e, err := opts.open(false)
			if err != nil {
				return err
			}
			defer e.Close()

			var rec *store.AnalysisRecord
			if clearPlan {
				rec, err = e.analyzer.ClearPlan(cmd.Context(), id)
			} else {
				rec, err = e.analyzer.SetPlan(cmd.Context(), plan)
			}
			if err != nil {
				return err
			}
			return printRecords(cmd.OutOrStdout(), []*store.AnalysisRecord{rec}, false)
		},
	}
	cmd.Flags().Float64Var(&duration, "duration", 0, "planned duration in minutes")
	cmd.Flags().Float64Var(&distance, "distance", 0, "planned distance in km")
	cmd.Flags().Float64Var(&pace, "pace", 0, "planned pace in seconds per km")
	cmd.Flags().IntVar(&intervals, "intervals", 0, "planned number of work intervals")
	cmd.Flags().BoolVar(&clearPlan, "clear", false, "remove the planned workout")
	return cmd
}

func pruneCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete cached analyses from older analysis versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.open(false)
			if err != nil {
				return err
			}
			defer e.Close()

			n, err := e.db.DeleteStaleAnalyses(cmd.Context(), analysis.Version)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d stale analyses (current version %d)\n", n, analysis.Version)
			return nil
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid activity ID %q", s)
	}
	return id, nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := parseID(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// printRecords writes one summary line per record, or the consumer views as
// JSON
func printRecords(w io.Writer, records []*store.AnalysisRecord, asJSON bool) error {
	views := make([]*service.AnalysisView, 0, len(records))
	for _, rec := range records {
		v, err := service.ViewFromRecord(rec)
		if err != nil {
			return err
		}
		views = append(views, v)
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if len(views) == 1 {
			return enc.Encode(views[0])
		}
		return enc.Encode(views)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ACTIVITY\tSTATUS\tTIER\tCONFIDENCE\tSEGMENTS\tMOMENTS\tREASON")
	for _, v := range views {
		tier, conf, segs, moments := "-", "-", "-", "-"
		if r := v.Result; r != nil {
			tier = string(r.TierUsed)
			conf = fmt.Sprintf("%.2f", r.Confidence)
			segs = strconv.Itoa(len(r.Segments))
			moments = strconv.Itoa(len(r.Moments))
		}
		reason := string(v.Reason)
		if reason == "" {
			reason = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", v.ActivityID, v.Status, tier, conf, segs, moments, reason)
	}
	return tw.Flush()
}
