package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/chanq/internal/channel"
	"github.com/roach88/chanq/internal/config"
)

// loadConfig resolves the store configuration from --config or --db.
func loadConfig(opts *RootOptions) (config.Config, error) {
	switch {
	case opts.Config != "":
		return config.Load(opts.Config)
	case opts.Database != "":
		cfg := config.Default()
		cfg.DBType = config.DBTypeSQLite
		cfg.URL = opts.Database
		return cfg, nil
	default:
		return config.Config{}, errors.New("one of --config or --db is required")
	}
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openProvider loads the configuration and initializes a provider. Logs go
// to the command's stderr through the returned logger.
func openProvider(cmd *cobra.Command, opts *RootOptions) (*channel.Provider, *slog.Logger, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	logger := newLogger(newFormatter(cmd, opts).GetErrWriter(), opts.Verbose)
	p, err := channel.Open(commandContext(cmd), cfg, channel.WithLogger(logger))
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	return p, logger, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// inTransaction runs fn inside a fresh session's transaction and commits.
// The transaction is rolled back if fn fails.
func inTransaction(ctx context.Context, p *channel.Provider, fn func(ctx context.Context, tx *channel.Tx) error) error {
	ctx = channel.NewSession(ctx)
	tx, err := p.Transaction(ctx)
	if err != nil {
		return err
	}
	defer tx.Close()

	if err := tx.Begin(ctx); err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

// closeProvider closes p, logging rather than returning the error so it
// does not mask the command's own result.
func closeProvider(p *channel.Provider, log *slog.Logger) {
	if err := p.Close(); err != nil {
		log.Error("error closing store", "error", err)
	}
}
