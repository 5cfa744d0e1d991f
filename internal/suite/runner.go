package suite

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/selenium-suite/api/schemas"
	"github.com/xkilldash9x/selenium-suite/internal/observability"
	"github.com/xkilldash9x/selenium-suite/internal/selenese"
	"github.com/xkilldash9x/selenium-suite/internal/webdriver"
)

const sessionTeardownTimeout = 30 * time.Second

// SessionFactory opens remote browser sessions. *webdriver.Driver is one.
type SessionFactory interface {
	NewSession(ctx context.Context, profile schemas.BrowserProfile) (*webdriver.Session, error)
}

var _ SessionFactory = (*webdriver.Driver)(nil)

// RunOptions tune a run.
type RunOptions struct {
	// Parallel bounds how many browser nodes run at once; 1 runs them in order.
	Parallel int
	// IncludeGroups, when non-empty, keeps only tests in at least one group.
	IncludeGroups []string
	ExcludeGroups []string
	// DefaultBrowser is used for tests not bound to a browser node.
	DefaultBrowser schemas.BrowserProfile
	Timeouts       schemas.Timeouts
	// BaseURL is the fallback for tests whose fixture declares none.
	BaseURL string
	// StepTimeout bounds Selenese waitFor* and *AndWait commands.
	StepTimeout time.Duration
}

// Runner executes suite trees. Each node with tests gets its own session,
// which is closed when the node finishes no matter how it finished.
type Runner struct {
	sessions SessionFactory
	fs       afero.Fs
	logger   *zap.Logger
	opts     RunOptions
	now      func() time.Time
}

func NewRunner(sessions SessionFactory, fs afero.Fs, logger *zap.Logger, opts RunOptions) *Runner {
	if opts.Parallel < 1 {
		opts.Parallel = 1
	}
	if opts.DefaultBrowser.Name == "" {
		opts.DefaultBrowser = schemas.DefaultBrowserProfile
	}
	return &Runner{
		sessions: sessions,
		fs:       fs,
		logger:   logger.Named("runner"),
		opts:     opts,
		now:      time.Now,
	}
}

// job is one suite node with its own tests and the browser they run on.
type job struct {
	node    *Suite
	browser schemas.BrowserProfile
}

// Run executes root. Results are ordered by node (tree order) and by
// registration order within a node, regardless of parallelism. The error is
// non-nil only when ctx ended before the run completed; the partial report
// is returned alongside it.
func (r *Runner) Run(ctx context.Context, root *Suite) (*schemas.RunReport, error) {
	report := &schemas.RunReport{
		RunID:   uuid.NewString(),
		Suite:   root.Name,
		Started: r.now(),
	}
	logger := r.logger.With(zap.String("run_id", report.RunID), zap.String("suite", root.Name))

	jobs := r.plan(root, r.opts.DefaultBrowser)
	logger.Info("Starting run", zap.Int("nodes", len(jobs)), zap.Int("tests", root.CountTests()), zap.Int("parallel", r.opts.Parallel))

	results := make([][]schemas.TestResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Parallel)
	for i, j := range jobs {
		g.Go(func() error {
			results[i] = r.runNode(gctx, j, logger)
			return gctx.Err()
		})
	}
	err := g.Wait()

	for _, rs := range results {
		report.Results = append(report.Results, rs...)
	}
	report.Duration = r.now().Sub(report.Started)

	counts := report.Counts()
	logger.Info("Run finished",
		zap.Int("passed", counts[schemas.StatusPassed]),
		zap.Int("failed", counts[schemas.StatusFailed]),
		zap.Int("errors", counts[schemas.StatusError]),
		zap.Int("skipped", counts[schemas.StatusSkipped]),
		zap.Duration("duration", report.Duration))

	if err != nil {
		return report, fmt.Errorf("run %s interrupted: %w", report.RunID, err)
	}
	return report, nil
}

// plan flattens the tree into the nodes that own tests. A node inherits the
// browser of its nearest bound ancestor.
func (r *Runner) plan(node *Suite, inherited schemas.BrowserProfile) []job {
	browser := inherited
	if node.Browser != nil {
		browser = *node.Browser
	}
	var jobs []job
	if len(node.Tests) > 0 {
		jobs = append(jobs, job{node: node, browser: browser})
	}
	for _, child := range node.Suites {
		jobs = append(jobs, r.plan(child, browser)...)
	}
	return jobs
}

func (r *Runner) selected(t *Test) bool {
	for _, g := range t.Groups {
		for _, ex := range r.opts.ExcludeGroups {
			if g == ex {
				return false
			}
		}
	}
	if len(r.opts.IncludeGroups) == 0 {
		return true
	}
	for _, g := range t.Groups {
		for _, in := range r.opts.IncludeGroups {
			if g == in {
				return true
			}
		}
	}
	return false
}

func (r *Runner) runNode(ctx context.Context, j job, logger *zap.Logger) []schemas.TestResult {
	var tests []*Test
	for _, t := range j.node.Tests {
		if r.selected(t) {
			tests = append(tests, t)
		}
	}
	if len(tests) == 0 {
		return nil
	}
	logger = logger.With(zap.String("node", j.node.Name), zap.String("browser", j.browser.Name))

	results := make([]schemas.TestResult, 0, len(tests))
	finish := func(t *Test, started time.Time, status schemas.Status, msg string) {
		res := schemas.TestResult{
			Suite:    j.node.Name,
			Name:     t.SimpleName(),
			Browser:  j.browser.Name,
			Script:   t.ScriptPath,
			Groups:   t.Groups,
			Status:   status,
			Message:  msg,
			Started:  started,
			Duration: r.now().Sub(started),
		}
		results = append(results, res)
		observability.RecordTest(string(status))
		logger.Info("Test finished",
			zap.String("test", res.Name),
			zap.String("status", string(status)),
			zap.Duration("duration", res.Duration))
	}

	if ctx.Err() != nil {
		now := r.now()
		for _, t := range tests {
			finish(t, now, schemas.StatusSkipped, "run cancelled")
		}
		return results
	}

	session, err := r.sessions.NewSession(ctx, j.browser)
	if err != nil {
		logger.Error("Could not open session", zap.Error(err))
		now := r.now()
		for _, t := range tests {
			finish(t, now, schemas.StatusError, err.Error())
		}
		return results
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sessionTeardownTimeout)
		defer cancel()
		if err := session.Close(closeCtx); err != nil {
			logger.Warn("Session close failed", zap.Error(err))
		}
	}()

	if err := session.SetTimeouts(ctx, r.opts.Timeouts); err != nil {
		now := r.now()
		for _, t := range tests {
			finish(t, now, schemas.StatusError, err.Error())
		}
		return results
	}

	outcomes := make(map[string]schemas.Status, len(tests))
	for _, t := range tests {
		started := r.now()
		if ctx.Err() != nil {
			finish(t, started, schemas.StatusSkipped, "run cancelled")
			continue
		}
		if dep, ok := unmetDependency(t, outcomes); ok {
			outcomes[t.SimpleName()] = schemas.StatusSkipped
			finish(t, started, schemas.StatusSkipped, fmt.Sprintf("depends on %q, which did not pass", dep))
			continue
		}

		status, msg := classify(r.runTest(ctx, session, t, logger))
		outcomes[t.SimpleName()] = status
		finish(t, started, status, msg)
	}
	return results
}

func unmetDependency(t *Test, outcomes map[string]schemas.Status) (string, bool) {
	for _, dep := range t.DependsOn {
		if outcomes[dep] != schemas.StatusPassed {
			return dep, true
		}
	}
	return "", false
}

func (r *Runner) runTest(ctx context.Context, session *webdriver.Session, t *Test, logger *zap.Logger) (err error) {
	// A panicking method errors its own test; the node keeps going and its
	// session is still released.
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("Test panicked", zap.String("test", t.Name()), zap.Any("panic", rec))
			err = fmt.Errorf("test %s panicked: %v\n%s", t.Name(), rec, debug.Stack())
		}
	}()

	if t.Method != nil {
		return t.Method.Run(ctx, session)
	}
	script, err := selenese.ParseFile(r.fs, t.ScriptPath)
	if err != nil {
		return err
	}
	baseURL := t.BaseURL
	if baseURL == "" {
		baseURL = r.opts.BaseURL
	}
	in := selenese.NewInterpreter(session, logger, selenese.Options{BaseURL: baseURL, Timeout: r.opts.StepTimeout})
	return in.Run(ctx, script)
}

// classify maps a test error onto a status: assertion failures fail the
// test, anything else is an error.
func classify(err error) (schemas.Status, string) {
	switch {
	case err == nil:
		return schemas.StatusPassed, ""
	case selenese.IsAssertion(err):
		return schemas.StatusFailed, err.Error()
	default:
		return schemas.StatusError, err.Error()
	}
}
