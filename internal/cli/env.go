package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"runstream/internal/auth"
	"runstream/internal/config"
	"runstream/internal/logging"
	"runstream/internal/observability"
	"runstream/internal/service"
	"runstream/internal/store"
	"runstream/internal/strava"
)

// env is the wired application shared by the commands
type env struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *store.DB
	analyzer *service.AnalysisService
	query    *service.QueryService
	closers  []io.Closer
}

func (o *rootOptions) resolveConfigPath() (string, error) {
	if path := o.v.GetString("config"); path != "" {
		return path, nil
	}
	dir, err := config.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// loadConfig reads the config file, falling back to defaults when none exists
func (o *rootOptions) loadConfig() (*config.Config, error) {
	path, err := o.resolveConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadFrom(path)
	if errors.Is(err, config.ErrNoConfig) {
		def := config.DefaultConfig()
		cfg, err = &def, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if level := o.v.GetString("logging.level"); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// open loads config and wires logging, error reporting, storage and the
// analysis services. logToFile keeps log output off the terminal while the
// TUI owns it.
func (o *rootOptions) open(logToFile bool) (*env, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	logCfg := cfg.Logging
	if logToFile && logCfg.File == "" {
		dir, err := config.GetConfigDir()
		if err != nil {
			return nil, err
		}
		logCfg.File = filepath.Join(dir, "runstream.log")
	}
	logger, logCloser, err := logging.New(logCfg, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("configuring logging: %w", err)
	}
	e := &env{cfg: cfg, logger: logger, closers: []io.Closer{logCloser}}

	if err := observability.Init(cfg.Sentry, o.version, logging.Component(logger, "sentry")); err != nil {
		logger.Warn("Error reporting disabled", "error", err)
	}

	path, err := cfg.DatabasePath()
	if err != nil {
		e.Close()
		return nil, err
	}
	db, err := store.Open(path)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}
	e.db = db
	e.closers = append(e.closers, db)

	e.analyzer = service.NewAnalysisService(db, cfg.Thresholds(), cfg.Analysis.Workers, logger, observability.CaptureException)
	e.query = service.NewQueryService(db)
	return e, nil
}

// syncService builds the Strava-backed sync, seeding stored tokens from the
// configured refresh token on first use
func (e *env) syncService(ctx context.Context) (*service.SyncService, error) {
	if err := e.cfg.ValidateStrava(); err != nil {
		return nil, err
	}

	authCfg := auth.Config{
		ClientID:     e.cfg.Strava.ClientID,
		ClientSecret: e.cfg.Strava.ClientSecret,
		RefreshToken: e.cfg.Strava.RefreshToken,
	}
	if err := auth.Seed(ctx, authCfg, e.db); err != nil {
		return nil, err
	}
	tokenSource, err := auth.NewTokenSource(ctx, auth.NewOAuthConfig(authCfg), e.db)
	if err != nil {
		return nil, fmt.Errorf("creating token source: %w", err)
	}

	client := strava.NewClient(tokenSource)
	return service.NewSyncService(client, e.db, e.analyzer, e.logger), nil
}

// Close flushes pending error reports and releases the database and log file
func (e *env) Close() {
	observability.Flush(2 * time.Second)
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			e.logger.Warn("Close failed", "error", err)
		}
	}
}
