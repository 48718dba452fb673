// Package cli wires configuration, storage and services into the runstream
// commands.
package cli

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"runstream/internal/config"
	"runstream/internal/tui"
)

type rootOptions struct {
	// v layers the persistent flags over RUNSTREAM_* environment variables
	v       *viper.Viper
	version string
}

// New returns the root command. Without a subcommand it opens the TUI.
func New(version string) *cobra.Command {
	opts := &rootOptions{v: viper.New(), version: version}

	cmd := &cobra.Command{
		Use:     "runstream",
		Short:   "Analyze the telemetry streams of your runs",
		Long:    "Sync runs from Strava, segment their streams and report drift, notable moments and plan adherence.",
		Version: version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, opts)
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "config file (default ~/.runstream/config.json)")
	cmd.PersistentFlags().String("log-level", "", "override logging.level (debug, info, warn, error)")
	opts.v.BindPFlag("config", cmd.PersistentFlags().Lookup("config"))
	opts.v.BindPFlag("logging.level", cmd.PersistentFlags().Lookup("log-level"))
	opts.v.SetEnvPrefix("runstream")
	opts.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	opts.v.AutomaticEnv()

	cmd.AddCommand(
		syncCmd(opts),
		analyzeCmd(opts),
		reprocessCmd(opts),
		refetchCmd(opts),
		planCmd(opts),
		pruneCmd(opts),
		exportCmd(opts),
		analyzeFitCmd(opts),
		serveCmd(opts),
		initConfigCmd(opts),
	)
	return cmd
}

func runTUI(cmd *cobra.Command, opts *rootOptions) error {
	ctx := cmd.Context()

	e, err := opts.open(true)
	if err != nil {
		return err
	}
	defer e.Close()

	// Sync is optional; the TUI still browses stored analyses without it
	syncSvc, err := e.syncService(ctx)
	if err != nil {
		e.logger.Warn("Strava sync disabled", "error", err)
		syncSvc = nil
	}

	app := tui.NewApp(e.query, e.analyzer, syncSvc, tui.NewUnits(e.cfg.Display))
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}

func initConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Write an example config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := opts.resolveConfigPath()
			if err != nil {
				return err
			}
			if err := config.CreateExampleAt(path); err != nil {
				return fmt.Errorf("creating example config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Please edit the config file at:\n  %s\n\n", path)
			fmt.Fprintln(out, "You need to add your Strava API credentials and refresh token.")
			fmt.Fprintln(out, "Get them from: https://www.strava.com/settings/api")
			return nil
		},
	}
}
