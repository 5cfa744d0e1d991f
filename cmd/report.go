// File: cmd/report.go
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/selenium-suite/api/schemas"
	"github.com/xkilldash9x/selenium-suite/internal/config"
	"github.com/xkilldash9x/selenium-suite/internal/observability"
	"github.com/xkilldash9x/selenium-suite/internal/store"
)

// runStore is the slice of *store.Store the commands use.
type runStore interface {
	EnsureSchema(ctx context.Context) error
	PersistRun(ctx context.Context, report *schemas.RunReport) error
	GetRun(ctx context.Context, runID string) (*schemas.RunReport, error)
}

var _ runStore = (*store.Store)(nil)

// storeProvider creates the run store. Tests inject a fake in place of a
// live database connection.
type storeProvider interface {
	// Create returns the store, a cleanup function releasing its resources,
	// and an error if the store could not be reached.
	Create(ctx context.Context, cfg config.Interface) (runStore, func(), error)
}

type defaultStoreProvider struct{}

// NewStoreProvider returns the PostgreSQL backed provider.
func NewStoreProvider() storeProvider {
	return &defaultStoreProvider{}
}

// Create connects to PostgreSQL and wraps the pool in a store.
func (p *defaultStoreProvider) Create(ctx context.Context, cfg config.Interface) (runStore, func(), error) {
	logger := observability.GetLogger()
	if cfg.Database().URL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured (SELENIUM_SUITE_DATABASE_URL)")
	}

	pool, err := pgxpool.New(ctx, cfg.Database().URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storeService, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize store service: %w", err)
	}

	cleanup := func() {
		pool.Close()
		logger.Debug("Database connection pool closed.")
	}
	return storeService, cleanup, nil
}

// newReportCmd creates the `report` command, which re-renders a persisted run.
func newReportCmd(provider storeProvider) *cobra.Command {
	var runID, outputPath, format string

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Generates a report for a persisted run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if format == "" {
				format = cfg.Report().Format
			}
			return runReport(ctx, observability.GetLogger(), cfg, runID, outputPath, format, provider, cmd.OutOrStdout())
		},
	}

	reportCmd.Flags().StringVar(&runID, "run-id", "", "The ID of the run to report on (required)")
	_ = reportCmd.MarkFlagRequired("run-id")
	reportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path. If unset, a summary is printed to stdout.")
	reportCmd.Flags().StringVarP(&format, "format", "f", "", "Report format: junit or json (defaults to report.format)")
	return reportCmd
}

func runReport(
	ctx context.Context,
	logger *zap.Logger,
	cfg config.Interface,
	runID, outputPath, format string,
	provider storeProvider,
	out io.Writer,
) error {
	logger.Info("Starting report generation", zap.String("run_id", runID))

	st, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	report, err := st.GetRun(ctx, runID)
	if err != nil {
		return err
	}

	if outputPath != "" {
		return writeReportFile(logger, report, format, outputPath)
	}
	printSummary(out, report)
	return nil
}
