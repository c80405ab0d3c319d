package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/tindex"
	"github.com/hupe1980/tindex/config"
	"github.com/spf13/cobra"
)

// app carries the state shared by all commands.
type app struct {
	configPath string
	logLevel   string
	backend    string
	path       string

	cfg     *config.Config
	logger  *tindex.Logger
	metrics tindex.MetricsCollector
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "tindex",
		Short: "Manage temporal secondary indexes",
		Long: `tindex maintains secondary indexes whose entries carry validity intervals.
Indexes live in a key-value store (memory, badger or sqlite) configured in YAML.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "path to the YAML configuration")
	f.StringVar(&a.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	f.StringVar(&a.backend, "backend", "", "storage backend override (memory, badger, sqlite)")
	f.StringVar(&a.path, "path", "", "storage path override")

	root.AddCommand(
		a.indexCmd(),
		a.insertCmd(),
		a.terminateCmd(),
		a.rollbackCmd(),
		a.scanCmd(),
		a.dumpCmd(),
		a.backupCmd(),
		a.restoreCmd(),
		a.serveMetricsCmd(),
	)
	return root
}

func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.backend != "" {
		cfg.Storage.Backend = a.backend
	}
	if a.path != "" {
		cfg.Storage.Path = a.path
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := cfg.Logging.Logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.cfg, a.logger = cfg, logger
	return nil
}

// withEngine opens the configured store and engine for the duration of fn.
func (a *app) withEngine(ctx context.Context, fn func(*tindex.Engine) error) (err error) {
	store, err := a.cfg.Storage.OpenStore(a.logger.Logger)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, store.Close()) }()

	opts, err := a.cfg.Index.Options()
	if err != nil {
		return err
	}
	opts = append(opts, tindex.WithLogger(a.logger))
	if a.metrics != nil {
		opts = append(opts, tindex.WithMetricsCollector(a.metrics))
	}

	eng, err := tindex.Open(ctx, store, opts...)
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer func() { err = errors.Join(err, eng.Close()) }()
	return fn(eng)
}
