package webdriver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/xkilldash9x/selenium-suite/api/schemas"
	"github.com/xkilldash9x/selenium-suite/internal/observability"
)

// Session is one live remote browser. It is owned by the suite node that
// opened it and must be closed on every exit path.
type Session struct {
	id           string
	profile      schemas.BrowserProfile
	capabilities schemas.Capabilities
	sessions     URL // the server's "session" collection
	url          URL // sessions.Descend(id)
	exec         Executor
	logger       *zap.Logger

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func newSession(id string, profile schemas.BrowserProfile, caps schemas.Capabilities, sessions URL, exec Executor, logger *zap.Logger) *Session {
	return &Session{
		id:           id,
		profile:      profile,
		capabilities: caps,
		sessions:     sessions,
		url:          sessions.Descend(id),
		exec:         exec,
		logger:       logger.Named("session").With(zap.String("session_id", id), zap.String("browser_profile", profile.Name)),
	}
}

// AttachSession wraps an already existing remote session, e.g. one created
// by another tool. Closing it deletes the remote session.
func AttachSession(id string, profile schemas.BrowserProfile, server URL, exec Executor, logger *zap.Logger) *Session {
	return newSession(id, profile, schemas.Capabilities{}, server.Descend("session"), exec, logger)
}

func (s *Session) ID() string                         { return s.id }
func (s *Session) Profile() schemas.BrowserProfile    { return s.profile }
func (s *Session) Capabilities() schemas.Capabilities { return s.capabilities }
func (s *Session) URL() URL                           { return s.url }
func (s *Session) Closed() bool                       { return s.closed.Load() }

// Execute dispatches cmd unless the session has been closed.
func (s *Session) Execute(ctx context.Context, cmd Command) (json.RawMessage, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("%s: %w", cmd, ErrSessionClosed)
	}
	return s.exec.Execute(ctx, cmd)
}

// Close deletes the remote session. It is safe to call more than once;
// only the first call talks to the remote end.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		_, err := s.exec.Execute(ctx, DeleteSession(s.id, s.sessions))
		observability.SessionClosed()
		if err != nil {
			s.closeErr = fmt.Errorf("failed to delete session %s: %w", s.id, err)
			s.logger.Warn("Session teardown failed", zap.Error(err))
			return
		}
		s.logger.Info("Session closed")
	})
	return s.closeErr
}

// -- Navigation --

func (s *Session) Navigate(ctx context.Context, target string) error {
	_, err := s.Execute(ctx, Navigate("url", s.url, target))
	return err
}

func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	return decodeString(s.Execute(ctx, Query("url", s.url)))
}

func (s *Session) Title(ctx context.Context) (string, error) {
	return decodeString(s.Execute(ctx, Query("title", s.url)))
}

func (s *Session) Source(ctx context.Context) (string, error) {
	return decodeString(s.Execute(ctx, Query("source", s.url)))
}

func (s *Session) Back(ctx context.Context) error {
	_, err := s.Execute(ctx, Action("back", s.url))
	return err
}

func (s *Session) Forward(ctx context.Context) error {
	_, err := s.Execute(ctx, Action("forward", s.url))
	return err
}

func (s *Session) Refresh(ctx context.Context) error {
	_, err := s.Execute(ctx, Action("refresh", s.url))
	return err
}

// SetTimeouts applies t to the session. Zero fields are omitted.
func (s *Session) SetTimeouts(ctx context.Context, t schemas.Timeouts) error {
	if t == (schemas.Timeouts{}) {
		return nil
	}
	_, err := s.Execute(ctx, SetTimeouts("timeouts", s.url, t))
	return err
}

// ExecuteScript runs script synchronously in the page and returns its raw result.
func (s *Session) ExecuteScript(ctx context.Context, script string, args ...interface{}) (json.RawMessage, error) {
	return s.Execute(ctx, ExecuteScript("sync", s.url.Descend("execute"), script, args))
}

// Screenshot returns the current viewport as PNG bytes.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	encoded, err := decodeString(s.Execute(ctx, Query("screenshot", s.url)))
	if err != nil {
		return nil, err
	}
	png, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return png, nil
}

// -- Element lookup --

// FindElement returns the first element matching by.
func (s *Session) FindElement(ctx context.Context, by Locator) (*Element, error) {
	raw, err := s.Execute(ctx, Find("element", s.url, by))
	if err != nil {
		return nil, err
	}
	id, err := elementID(raw)
	if err != nil {
		return nil, err
	}
	return s.element(id), nil
}

// FindElements returns every element matching by, possibly none.
func (s *Session) FindElements(ctx context.Context, by Locator) ([]*Element, error) {
	raw, err := s.Execute(ctx, Find("elements", s.url, by))
	if err != nil {
		return nil, err
	}
	var refs []json.RawMessage
	if err := wire.Unmarshal(raw, &refs); err != nil {
		return nil, fmt.Errorf("decode element list: %w", err)
	}
	out := make([]*Element, 0, len(refs))
	for _, ref := range refs {
		id, err := elementID(ref)
		if err != nil {
			return nil, err
		}
		out = append(out, s.element(id))
	}
	return out, nil
}

// Element returns a handle for a known element id without a round trip.
func (s *Session) Element(id string) *Element {
	return s.element(id)
}

func (s *Session) element(id string) *Element {
	return &Element{id: id, session: s, url: s.url.Descend("element", id)}
}

// -- Decoding helpers --

const (
	w3cElementKey    = "element-6066-11e4-a52e-4f735466cecf"
	legacyElementKey = "ELEMENT"
)

func elementID(raw json.RawMessage) (string, error) {
	var ref map[string]string
	if err := wire.Unmarshal(raw, &ref); err != nil {
		return "", fmt.Errorf("decode element reference: %w", err)
	}
	if id := ref[w3cElementKey]; id != "" {
		return id, nil
	}
	if id := ref[legacyElementKey]; id != "" {
		return id, nil
	}
	return "", fmt.Errorf("element reference carries no id: %s", string(raw))
}

// DecodeValue decodes a command result, such as the value returned by
// ExecuteScript, with the codec used for the wire protocol.
func DecodeValue(raw json.RawMessage, v interface{}) error {
	return wire.Unmarshal(raw, v)
}

func decodeString(raw json.RawMessage, err error) (string, error) {
	if err != nil {
		return "", err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := wire.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("decode string value: %w", err)
	}
	return s, nil
}

func decodeBool(raw json.RawMessage, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	var b bool
	if err := wire.Unmarshal(raw, &b); err != nil {
		return false, fmt.Errorf("decode boolean value: %w", err)
	}
	return b, nil
}
