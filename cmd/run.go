// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/selenium-suite/api/schemas"
	"github.com/xkilldash9x/selenium-suite/internal/config"
	"github.com/xkilldash9x/selenium-suite/internal/observability"
	"github.com/xkilldash9x/selenium-suite/internal/reporting"
	"github.com/xkilldash9x/selenium-suite/internal/suite"
	"github.com/xkilldash9x/selenium-suite/internal/webdriver"
)

// errTestsFailed is returned when the run completed but not every test passed.
var errTestsFailed = errors.New("one or more tests failed")

// osFs is the filesystem scripts are discovered and read from.
var osFs afero.Fs = afero.NewOsFs()

type selection struct {
	fixture  string
	browsers []string
}

// newRunCmd creates and configures the `run` command.
func newRunCmd(deps dependencies) *cobra.Command {
	var sel selection

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Builds the configured suite and runs it against the remote end",
		Long: `Discovers the Selenese scripts of the configured fixture, replicates them over
every declared browser profile and runs each browser node in its own remote
session. The report is written when --output is set and the run is persisted
when database.url is configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runSuite(ctx, observability.GetLogger(), cfg, sel, deps.stores, cmd.OutOrStdout())
		},
	}

	runCmd.Flags().StringVar(&sel.fixture, "fixture", "", "Name of a registered fixture to run instead of the configured suite (see list --fixtures)")
	runCmd.Flags().StringSliceVarP(&sel.browsers, "browser", "b", nil, "Browser profile(s) to run; unknown names become plain browserName profiles")
	runCmd.Flags().String("selenese-path", "", "Selenese script file or directory (overrides suite.selenese_path)")
	runCmd.Flags().String("server", "", "WebDriver remote end URL (overrides remote.server_url)")
	runCmd.Flags().StringP("format", "f", "", "Report format: junit or json (overrides report.format)")
	runCmd.Flags().StringP("output", "o", "", "Report file path. If unset, only a summary is printed.")
	runCmd.Flags().IntP("parallel", "p", 0, "Browser nodes run concurrently (overrides suite.parallel_browsers)")
	return runCmd
}

// runSuite contains the core, testable logic of the run command.
func runSuite(ctx context.Context, logger *zap.Logger, cfg *config.Config, sel selection, stores storeProvider, out io.Writer) error {
	root, err := buildSuite(cfg, logger, sel)
	if err != nil {
		return err
	}

	if addr := cfg.Metrics().ListenAddr; addr != "" {
		stop, err := serveMetrics(addr, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	driver, err := webdriver.NewDriver(cfg.Remote(), logger)
	if err != nil {
		return err
	}

	runner := suite.NewRunner(driver, osFs, logger, suite.RunOptions{
		Parallel:       cfg.Suite().ParallelBrowsers,
		IncludeGroups:  cfg.Suite().IncludeGroups,
		ExcludeGroups:  cfg.Suite().ExcludeGroups,
		DefaultBrowser: defaultProfile(cfg),
		Timeouts:       cfg.Remote().Timeouts,
		BaseURL:        cfg.Suite().BaseURL,
	})

	logger.Info("Starting suite run",
		zap.String("suite", root.Name),
		zap.String("server", cfg.Remote().ServerURL),
		zap.Int("tests", root.CountTests()),
		zap.Int("parallel", cfg.Suite().ParallelBrowsers))

	report, runErr := runner.Run(ctx, root)
	if report == nil {
		return runErr
	}

	if output := cfg.Report().Output; output != "" {
		if err := writeReportFile(logger, report, cfg.Report().Format, output); err != nil {
			return err
		}
	}
	if cfg.Database().URL != "" {
		if err := persistReport(ctx, logger, cfg, stores, report); err != nil {
			return err
		}
	}

	printSummary(out, report)

	if runErr != nil {
		return runErr
	}
	if !report.Succeeded() {
		return errTestsFailed
	}
	return nil
}

// buildSuite resolves the fixture to run and builds its tree.
func buildSuite(cfg *config.Config, logger *zap.Logger, sel selection) (*suite.Suite, error) {
	if len(sel.browsers) > 0 {
		cfg.SetSuiteBrowsers(selectBrowsers(cfg.Suite().Browsers, sel.browsers))
	}

	var fixture suite.Fixture
	if sel.fixture != "" {
		f, ok := suite.DefaultRegistry.Lookup(sel.fixture)
		if !ok {
			return nil, fmt.Errorf("no fixture registered as %q (registered: %v)", sel.fixture, suite.DefaultRegistry.Names())
		}
		fixture = f
	} else {
		fixture = suite.NewStaticFixture(cfg.Suite())
	}

	builder := suite.NewBuilder(suite.NewScanner(osFs, logger), logger)
	root, err := builder.Build(&suite.BuildContext{}, fixture)
	if err != nil {
		return nil, fmt.Errorf("failed to build suite: %w", err)
	}
	return root, nil
}

// selectBrowsers keeps the configured profiles named in names, in the order
// given. A name with no profile becomes one with that browserName.
func selectBrowsers(configured []schemas.BrowserProfile, names []string) []schemas.BrowserProfile {
	byName := make(map[string]schemas.BrowserProfile, len(configured))
	for _, p := range configured {
		byName[p.Name] = p
	}
	out := make([]schemas.BrowserProfile, 0, len(names))
	for _, name := range names {
		if p, ok := byName[name]; ok {
			out = append(out, p)
			continue
		}
		out = append(out, schemas.BrowserProfile{Name: name, Browser: name})
	}
	return out
}

func defaultProfile(cfg *config.Config) schemas.BrowserProfile {
	name := cfg.Remote().DefaultBrowser
	if name == "" {
		return schemas.DefaultBrowserProfile
	}
	for _, p := range cfg.Suite().Browsers {
		if p.Name == name {
			return p
		}
	}
	return schemas.BrowserProfile{Name: name, Browser: name}
}

// serveMetrics exposes /metrics on addr until the returned stop is called.
func serveMetrics(addr string, logger *zap.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for metrics on %s: %w", addr, err)
	}

	r := chi.NewRouter()
	r.Handle("/metrics", observability.MetricsHandler())
	srv := &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("Serving metrics", zap.String("addr", ln.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		<-done
	}, nil
}

// writeReportFile handles writing the report to a file using the reporting module.
func writeReportFile(logger *zap.Logger, report *schemas.RunReport, format, outputPath string) error {
	reporter, err := reporting.New(format, outputPath, Version)
	if err != nil {
		return fmt.Errorf("failed to initialize reporter: %w", err)
	}
	if err := reporter.Write(report); err != nil {
		_ = reporter.Close()
		return fmt.Errorf("failed to write report file: %w", err)
	}
	if err := reporter.Close(); err != nil {
		return fmt.Errorf("failed to finalize report file: %w", err)
	}
	logger.Info("Report successfully written to file", zap.String("path", outputPath), zap.String("format", format))
	return nil
}

func persistReport(ctx context.Context, logger *zap.Logger, cfg config.Interface, stores storeProvider, report *schemas.RunReport) error {
	st, cleanup, err := stores.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}
	// Persisting survives an interrupted run; the partial report is still useful.
	ctx = context.WithoutCancel(ctx)
	if err := st.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := st.PersistRun(ctx, report); err != nil {
		return fmt.Errorf("failed to persist run %s: %w", report.RunID, err)
	}
	logger.Info("Run persisted", zap.String("run_id", report.RunID))
	return nil
}

func printSummary(out io.Writer, report *schemas.RunReport) {
	counts := report.Counts()
	fmt.Fprintf(out, "\nRun %s (%s): %d passed, %d failed, %d errors, %d skipped in %s\n",
		report.RunID, report.Suite,
		counts[schemas.StatusPassed], counts[schemas.StatusFailed],
		counts[schemas.StatusError], counts[schemas.StatusSkipped],
		report.Duration.Round(time.Millisecond))
	for _, r := range report.Results {
		switch r.Status {
		case schemas.StatusFailed:
			fmt.Fprintf(out, "  FAIL  %s: %s\n", r.Name, firstLine(r.Message))
		case schemas.StatusError:
			fmt.Fprintf(out, "  ERROR %s: %s\n", r.Name, firstLine(r.Message))
		}
	}
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i]
		}
	}
	return s
}
