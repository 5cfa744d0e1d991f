package selenese

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/selenium-suite/internal/webdriver"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultPollInterval = 250 * time.Millisecond
	readyStateScript    = "return document.readyState"
)

// Browser is the part of a webdriver session the interpreter drives.
type Browser interface {
	Navigate(ctx context.Context, target string) error
	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	Refresh(ctx context.Context) error
	Back(ctx context.Context) error
	FindElement(ctx context.Context, by webdriver.Locator) (*webdriver.Element, error)
	FindElements(ctx context.Context, by webdriver.Locator) ([]*webdriver.Element, error)
	ExecuteScript(ctx context.Context, script string, args ...interface{}) (json.RawMessage, error)
}

var _ Browser = (*webdriver.Session)(nil)

// Options tune script playback.
type Options struct {
	// BaseURL resolves relative "open" targets when the script declares no
	// selenium.base link of its own.
	BaseURL string
	// Timeout bounds waitFor* commands and *AndWait page loads.
	Timeout      time.Duration
	PollInterval time.Duration
}

// Interpreter plays Selenese scripts against one browser. Stored variables
// persist across Run calls on the same Interpreter.
type Interpreter struct {
	browser Browser
	opts    Options
	logger  *zap.Logger
	vars    map[string]string
}

func NewInterpreter(browser Browser, logger *zap.Logger, opts Options) *Interpreter {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	return &Interpreter{
		browser: browser,
		opts:    opts,
		logger:  logger.Named("selenese"),
		vars:    make(map[string]string),
	}
}

// Vars returns a copy of the stored variables.
func (in *Interpreter) Vars() map[string]string {
	out := make(map[string]string, len(in.vars))
	for k, v := range in.vars {
		out[k] = v
	}
	return out
}

// Run plays every step of script. A failed assert* or waitFor* stops the
// script with an *AssertionError; failed verify* checks are collected and
// reported together once the last step has run. Any other error (unknown
// command, remote failure) aborts immediately and is returned as is.
func (in *Interpreter) Run(ctx context.Context, script *Script) error {
	base := script.BaseURL
	if base == "" {
		base = in.opts.BaseURL
	}
	logger := in.logger.With(zap.String("script", script.Name()))
	logger.Debug("Running script", zap.Int("steps", len(script.Steps)), zap.String("base_url", base))

	var verifications []string
	for _, step := range script.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		step.Target = in.expand(step.Target)
		step.Value = in.expand(step.Value)

		failure, err := in.exec(ctx, base, step)
		if err != nil {
			return fmt.Errorf("row %d %s: %w", step.Line, step, err)
		}
		if failure == "" {
			continue
		}

		msg := fmt.Sprintf("row %d %s: %s", step.Line, step, failure)
		if strings.HasPrefix(step.Command, "verify") {
			logger.Info("Verification failed", zap.String("failure", msg))
			verifications = append(verifications, msg)
			continue
		}
		return &AssertionError{Script: script.Name(), Failures: []string{msg}}
	}

	if len(verifications) > 0 {
		return &AssertionError{Script: script.Name(), Failures: verifications}
	}
	return nil
}

var variablePattern = regexp.MustCompile(`\$\{(\w+)\}`)

// expand substitutes ${name} with stored variables; unknown names are left verbatim.
func (in *Interpreter) expand(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return variablePattern.ReplaceAllStringFunc(s, func(m string) string {
		if v, ok := in.vars[m[2:len(m)-1]]; ok {
			return v
		}
		return m
	})
}

// exec runs one step. A non-empty failure is a check that did not hold.
func (in *Interpreter) exec(ctx context.Context, base string, step Step) (failure string, err error) {
	if action, ok := actions[step.Command]; ok {
		return "", action(ctx, in, base, step)
	}
	if step.Command == "waitForPageToLoad" {
		return in.waitForPageToLoad(ctx)
	}
	if name, ok := strings.CutSuffix(step.Command, "AndWait"); ok {
		if action, ok := actions[name]; ok {
			if err := action(ctx, in, base, step); err != nil {
				return "", err
			}
			return in.waitForPageToLoad(ctx)
		}
	}
	for _, prefix := range []string{"assert", "verify", "waitFor", "store"} {
		if rest, ok := strings.CutPrefix(step.Command, prefix); ok && rest != "" {
			return in.check(ctx, prefix, rest, step)
		}
	}
	return "", &UnknownCommandError{Step: step}
}

// -- Actions --

type action func(ctx context.Context, in *Interpreter, base string, step Step) error

var actions = map[string]action{
	"open": func(ctx context.Context, in *Interpreter, base string, step Step) error {
		target, err := resolve(base, step.Target)
		if err != nil {
			return err
		}
		return in.browser.Navigate(ctx, target)
	},
	"click": func(ctx context.Context, in *Interpreter, _ string, step Step) error {
		el, err := in.find(ctx, step.Target)
		if err != nil {
			return err
		}
		return el.Click(ctx)
	},
	"type": func(ctx context.Context, in *Interpreter, _ string, step Step) error {
		el, err := in.find(ctx, step.Target)
		if err != nil {
			return err
		}
		if err := el.Clear(ctx); err != nil {
			return err
		}
		return el.SendKeys(ctx, step.Value)
	},
	"sendKeys": func(ctx context.Context, in *Interpreter, _ string, step Step) error {
		el, err := in.find(ctx, step.Target)
		if err != nil {
			return err
		}
		return el.SendKeys(ctx, step.Value)
	},
	"clear": func(ctx context.Context, in *Interpreter, _ string, step Step) error {
		el, err := in.find(ctx, step.Target)
		if err != nil {
			return err
		}
		return el.Clear(ctx)
	},
	"pause": func(ctx context.Context, _ *Interpreter, _ string, step Step) error {
		d, err := millis(step.Target, 0)
		if err != nil {
			return err
		}
		return sleep(ctx, d)
	},
	"echo": func(_ context.Context, in *Interpreter, _ string, step Step) error {
		in.logger.Info("echo", zap.String("message", step.Target))
		return nil
	},
	"store": func(_ context.Context, in *Interpreter, _ string, step Step) error {
		in.vars[step.Value] = step.Target
		return nil
	},
	"setTimeout": func(_ context.Context, in *Interpreter, _ string, step Step) error {
		d, err := millis(step.Target, defaultTimeout)
		if err != nil {
			return err
		}
		in.opts.Timeout = d
		return nil
	},
	"runScript": func(ctx context.Context, in *Interpreter, _ string, step Step) error {
		_, err := in.browser.ExecuteScript(ctx, step.Target)
		return err
	},
	"refresh": func(ctx context.Context, in *Interpreter, _ string, _ Step) error {
		return in.browser.Refresh(ctx)
	},
	"goBack": func(ctx context.Context, in *Interpreter, _ string, _ Step) error {
		return in.browser.Back(ctx)
	},
}

func (in *Interpreter) find(ctx context.Context, target string) (*webdriver.Element, error) {
	loc, err := ParseLocator(target)
	if err != nil {
		return nil, err
	}
	return in.browser.FindElement(ctx, loc)
}

func (in *Interpreter) waitForPageToLoad(ctx context.Context) (string, error) {
	ok, err := in.poll(ctx, in.opts.Timeout, func(ctx context.Context) (bool, error) {
		raw, err := in.browser.ExecuteScript(ctx, readyStateScript)
		if err != nil {
			return false, err
		}
		var state string
		if err := webdriver.DecodeValue(raw, &state); err != nil {
			return false, fmt.Errorf("decode ready state: %w", err)
		}
		return state == "complete", nil
	})
	if err != nil {
		return "", err
	}
	if !ok {
		return fmt.Sprintf("timed out after %s waiting for the page to load", in.opts.Timeout), nil
	}
	return "", nil
}

// -- Checks: assert*, verify*, waitFor*, store* --

type accessor struct {
	takesLocator bool
	read         func(ctx context.Context, in *Interpreter, locator string) (string, error)
}

var accessors = map[string]accessor{
	"Title": {read: func(ctx context.Context, in *Interpreter, _ string) (string, error) {
		return in.browser.Title(ctx)
	}},
	"Location": {read: func(ctx context.Context, in *Interpreter, _ string) (string, error) {
		return in.browser.CurrentURL(ctx)
	}},
	"Text": {takesLocator: true, read: func(ctx context.Context, in *Interpreter, locator string) (string, error) {
		el, err := in.find(ctx, locator)
		if err != nil {
			return "", err
		}
		return el.Text(ctx)
	}},
	"Value": {takesLocator: true, read: func(ctx context.Context, in *Interpreter, locator string) (string, error) {
		el, err := in.find(ctx, locator)
		if err != nil {
			return "", err
		}
		return el.Property(ctx, "value")
	}},
}

type predicate func(ctx context.Context, in *Interpreter, locator string) (bool, error)

var predicates = map[string]predicate{
	"ElementPresent": elementPresent,
	"ElementNotPresent": func(ctx context.Context, in *Interpreter, locator string) (bool, error) {
		ok, err := elementPresent(ctx, in, locator)
		return !ok, err
	},
	"Visible": func(ctx context.Context, in *Interpreter, locator string) (bool, error) {
		el, err := in.find(ctx, locator)
		if err != nil {
			return false, err
		}
		return el.Displayed(ctx)
	},
}

func elementPresent(ctx context.Context, in *Interpreter, locator string) (bool, error) {
	loc, err := ParseLocator(locator)
	if err != nil {
		return false, err
	}
	found, err := in.browser.FindElements(ctx, loc)
	if err != nil {
		return false, err
	}
	return len(found) > 0, nil
}

func (in *Interpreter) check(ctx context.Context, prefix, name string, step Step) (string, error) {
	negate := false
	if rest, ok := strings.CutPrefix(name, "Not"); ok {
		negate, name = true, rest
	}

	if pred, ok := predicates[name]; ok {
		return in.checkPredicate(ctx, prefix, name, negate, pred, step)
	}
	if acc, ok := accessors[name]; ok {
		return in.checkAccessor(ctx, prefix, negate, acc, step)
	}
	return "", &UnknownCommandError{Step: step}
}

func (in *Interpreter) checkPredicate(ctx context.Context, prefix, name string, negate bool, pred predicate, step Step) (string, error) {
	holds := func(ctx context.Context) (bool, error) {
		ok, err := pred(ctx, in, step.Target)
		return ok != negate, err
	}

	switch prefix {
	case "store":
		ok, err := holds(ctx)
		if err != nil {
			return "", err
		}
		in.vars[step.Value] = strconv.FormatBool(ok)
		return "", nil
	case "waitFor":
		timeout, err := millis(step.Value, in.opts.Timeout)
		if err != nil {
			return "", err
		}
		ok, err := in.poll(ctx, timeout, holds)
		if err != nil {
			return "", err
		}
		if !ok {
			return fmt.Sprintf("timed out after %s", timeout), nil
		}
		return "", nil
	default:
		ok, err := holds(ctx)
		if err != nil {
			return "", err
		}
		if !ok {
			return fmt.Sprintf("%s%s did not hold for %q", notPrefix(negate), name, step.Target), nil
		}
		return "", nil
	}
}

func (in *Interpreter) checkAccessor(ctx context.Context, prefix string, negate bool, acc accessor, step Step) (string, error) {
	locator, pattern, variable := "", step.Target, step.Target
	if acc.takesLocator {
		locator, pattern, variable = step.Target, step.Value, step.Value
	}

	if prefix == "store" {
		actual, err := acc.read(ctx, in, locator)
		if err != nil {
			return "", err
		}
		in.vars[variable] = actual
		return "", nil
	}

	var last string
	holds := func(ctx context.Context) (bool, error) {
		actual, err := acc.read(ctx, in, locator)
		if err != nil {
			return false, err
		}
		last = actual
		matched, err := Match(pattern, actual)
		return matched != negate, err
	}

	if prefix == "waitFor" {
		ok, err := in.poll(ctx, in.opts.Timeout, holds)
		if err != nil {
			return "", err
		}
		if !ok {
			return fmt.Sprintf("timed out after %s; last value %q", in.opts.Timeout, last), nil
		}
		return "", nil
	}

	ok, err := holds(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		if negate {
			return fmt.Sprintf("actual value %q matched %q", last, pattern), nil
		}
		return fmt.Sprintf("actual value %q did not match %q", last, pattern), nil
	}
	return "", nil
}

func notPrefix(negate bool) string {
	if negate {
		return "Not"
	}
	return ""
}

// poll evaluates cond until it holds, the timeout passes or ctx ends.
// Missing and stale elements count as "not yet".
func (in *Interpreter) poll(ctx context.Context, timeout time.Duration, cond func(context.Context) (bool, error)) (bool, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(in.opts.PollInterval)
	defer ticker.Stop()

	for {
		ok, err := cond(ctx)
		if err != nil && !errors.Is(err, webdriver.ErrNoSuchElement) && !errors.Is(err, webdriver.ErrStaleElement) {
			return false, err
		}
		if err == nil && ok {
			return true, nil
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}

// -- Helpers --

func resolve(base, target string) (string, error) {
	ref, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", target, err)
	}
	if ref.IsAbs() {
		return target, nil
	}
	if base == "" {
		return "", fmt.Errorf("relative url %q and no base url configured", target)
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", base, err)
	}
	return b.ResolveReference(ref).String(), nil
}

// millis parses a millisecond count; an empty string yields def.
func millis(s string, def time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid millisecond value %q", s)
	}
	return time.Duration(n) * time.Millisecond, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
