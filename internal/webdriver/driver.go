package webdriver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/selenium-suite/api/schemas"
	"github.com/xkilldash9x/selenium-suite/internal/config"
	"github.com/xkilldash9x/selenium-suite/internal/observability"
)

// wire is the codec for request payloads and response envelopes.
var wire = jsoniter.ConfigCompatibleWithStandardLibrary

// maxResponseBytes bounds a single response body (screenshots are the largest).
const maxResponseBytes = 64 << 20

// Executor dispatches a command and returns the "value" member of the response.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (json.RawMessage, error)
}

// envelope covers both the W3C ({"value": ...}) and the legacy JSON wire
// ({"status": n, "sessionId": ..., "value": ...}) response shapes.
type envelope struct {
	Value     json.RawMessage `json:"value"`
	Status    *int            `json:"status,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
}

type remoteError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Driver talks to one remote end over HTTP and opens sessions on it.
// A Driver is safe for concurrent use; each Session it returns is not shared.
type Driver struct {
	server  URL
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ Executor = (*Driver)(nil)

// Option customizes a Driver.
type Option func(*Driver)

// WithHTTPClient replaces the default client (tests, custom transports).
func WithHTTPClient(c *http.Client) Option {
	return func(d *Driver) { d.client = c }
}

// WithLimiter throttles command dispatch.
func WithLimiter(l *rate.Limiter) Option {
	return func(d *Driver) { d.limiter = l }
}

// NewDriver creates a driver for the configured remote end.
func NewDriver(cfg config.RemoteConfig, logger *zap.Logger, opts ...Option) (*Driver, error) {
	u, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid remote server url %q: %w", cfg.ServerURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid remote server url %q: scheme must be http or https", cfg.ServerURL)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	d := &Driver{
		server: NewURL(cfg.ServerURL),
		client: &http.Client{Timeout: timeout},
		logger: logger.Named("driver"),
	}
	if cfg.CommandRate > 0 {
		burst := cfg.CommandBurst
		if burst <= 0 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(cfg.CommandRate), burst)
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// ServerURL returns the remote end root.
func (d *Driver) ServerURL() URL { return d.server }

// Execute dispatches cmd and returns the response value.
func (d *Driver) Execute(ctx context.Context, cmd Command) (json.RawMessage, error) {
	env, err := d.roundTrip(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return env.Value, nil
}

func (d *Driver) roundTrip(ctx context.Context, cmd Command) (*envelope, error) {
	start := time.Now()
	env, err := d.send(ctx, cmd)
	elapsed := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		d.logger.Debug("Command failed",
			zap.String("command", cmd.Name()),
			zap.String("method", cmd.Method()),
			zap.String("path", cmd.URL().Path()),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
	} else {
		d.logger.Debug("Command completed",
			zap.String("command", cmd.Name()),
			zap.String("method", cmd.Method()),
			zap.String("path", cmd.URL().Path()),
			zap.Duration("elapsed", elapsed))
	}
	observability.RecordCommand(cmd.Name(), outcome, elapsed)
	return env, err
}

func (d *Driver) send(ctx context.Context, cmd Command) (*envelope, error) {
	fail := func(status int, cause error) *CommandError {
		return &CommandError{
			Command:    cmd.Name(),
			Method:     cmd.Method(),
			Path:       cmd.URL().Path(),
			StatusCode: status,
			Err:        cause,
		}
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, fail(0, fmt.Errorf("rate limiter: %w", err))
		}
	}

	var body io.Reader
	if cmd.Payload() != nil {
		data, err := wire.Marshal(cmd.Payload())
		if err != nil {
			return nil, fail(0, fmt.Errorf("encode payload: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, cmd.Method(), cmd.URL().String(), body)
	if err != nil {
		return nil, fail(0, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json;charset=utf-8")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fail(0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fail(resp.StatusCode, fmt.Errorf("read response: %w", err))
	}

	var env envelope
	decodeErr := wire.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		ce := fail(resp.StatusCode, nil)
		var re remoteError
		if decodeErr == nil && len(env.Value) > 0 && wire.Unmarshal(env.Value, &re) == nil && re.Error != "" {
			ce.Code, ce.Message = re.Error, re.Message
		} else {
			ce.Message = truncate(string(raw), 512)
		}
		return nil, ce
	}
	if decodeErr != nil {
		return nil, fail(resp.StatusCode, fmt.Errorf("decode response: %w", decodeErr))
	}
	if env.Status != nil && *env.Status != 0 {
		ce := fail(resp.StatusCode, nil)
		ce.Code = legacyCodes[*env.Status]
		if ce.Code == "" {
			ce.Code = "unknown error"
		}
		var msg struct {
			Message string `json:"message"`
		}
		_ = wire.Unmarshal(env.Value, &msg)
		ce.Message = msg.Message
		return nil, ce
	}
	return &env, nil
}

// Status queries GET /status.
func (d *Driver) Status(ctx context.Context) (*schemas.ServerStatus, error) {
	raw, err := d.Execute(ctx, Status("status", d.server))
	if err != nil {
		return nil, err
	}
	var st schemas.ServerStatus
	if err := wire.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &st, nil
}

// NewSession opens a remote browser for profile. The caller owns the
// returned Session and must Close it.
func (d *Driver) NewSession(ctx context.Context, profile schemas.BrowserProfile) (*Session, error) {
	caps := profile.SessionCapabilities()
	env, err := d.roundTrip(ctx, NewSession("session", d.server, caps))
	if err != nil {
		return nil, fmt.Errorf("failed to create session for browser %q: %w", profile.Name, err)
	}

	id := env.SessionID
	granted := schemas.Capabilities{}
	var w3c struct {
		SessionID    string               `json:"sessionId"`
		Capabilities schemas.Capabilities `json:"capabilities"`
	}
	if err := wire.Unmarshal(env.Value, &w3c); err == nil && w3c.SessionID != "" {
		id = w3c.SessionID
		granted = w3c.Capabilities
	} else {
		// Legacy remote ends return the capabilities as the value itself.
		_ = wire.Unmarshal(env.Value, &granted)
	}
	if id == "" {
		return nil, &CommandError{
			Command: "new_session", Method: http.MethodPost, Path: d.server.Descend("session").Path(),
			StatusCode: http.StatusOK, Code: "session not created", Message: "response carried no session id",
		}
	}

	s := newSession(id, profile, granted, d.server.Descend("session"), d, d.logger)
	observability.SessionOpened()
	s.logger.Info("Session opened", zap.String("browser", profile.BrowserName()))
	return s, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
