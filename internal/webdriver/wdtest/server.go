// Package wdtest provides an in-process WebDriver remote end for tests.
// It models just enough of a browser (pages, elements, a current URL) to
// exercise the protocol client, the Selenese interpreter and the runner.
package wdtest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xkilldash9x/selenium-suite/internal/config"
)

const elementKey = "element-6066-11e4-a52e-4f735466cecf"

// ScreenshotPNG is what GET {session}/screenshot decodes to.
var ScreenshotPNG = []byte("\x89PNG fake")

// Locator mirrors the find element payload.
type Locator struct {
	Using string `json:"using"`
	Value string `json:"value"`
}

// Rect mirrors the rect payload.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Element is a fake DOM element. It matches any locator in Locators.
type Element struct {
	ID         string
	Tag        string
	Locators   []Locator
	Text       string
	Attributes map[string]string
	Rect       Rect
	Hidden     bool
	// Href navigates the session when the element is clicked.
	Href string
}

// Page is served for one URL.
type Page struct {
	Title    string
	Source   string
	Elements []*Element
}

// Request records one call the server received.
type Request struct {
	Method string
	Path   string
	Body   string
}

type session struct {
	id         string
	browser    string
	currentURL string
	history    []string
	typed      map[string]string
	timeouts   map[string]interface{}
}

// Server is a fake remote end. The zero value is not usable; call NewServer.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	sessions map[string]*session
	pages    map[string]*Page
	scripts  map[string]interface{}
	requests []Request
	nextID   int
	deleted  []string
	created  []string

	// Legacy answers in the JSON wire protocol shape instead of W3C.
	Legacy bool
	// RejectBrowsers lists browserName values session creation fails for.
	RejectBrowsers map[string]bool
	// Latency is added to every response.
	Latency time.Duration
}

// NewServer starts a fake remote end; it is closed via t.Cleanup by the caller.
func NewServer() *Server {
	s := &Server{
		sessions:       make(map[string]*session),
		pages:          make(map[string]*Page),
		scripts:        make(map[string]interface{}),
		RejectBrowsers: make(map[string]bool),
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

// RemoteConfig returns a config pointing at the server.
func (s *Server) RemoteConfig() config.RemoteConfig {
	return config.RemoteConfig{
		ServerURL:      s.URL,
		RequestTimeout: 5 * time.Second,
	}
}

// AddPage serves page for url.
func (s *Server) AddPage(url string, page *Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[url] = page
}

// SetScriptResult makes execute/sync return result for script.
func (s *Server) SetScriptResult(script string, result interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[script] = result
}

// Requests returns a copy of every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// OpenSessions returns the number of sessions not yet deleted.
func (s *Server) OpenSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// DeletedSessions returns the ids of deleted sessions in deletion order.
func (s *Server) DeletedSessions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

// CreatedBrowsers returns the browserName of every session ever created, in
// creation order.
func (s *Server) CreatedBrowsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.created...)
}

// SessionBrowsers returns the browserName each session was created with.
func (s *Server) SessionBrowsers() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.sessions))
	for id, sess := range s.sessions {
		out[id] = sess.browser
	}
	return out
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)

	r.Get("/status", s.handleStatus)
	r.Post("/session", s.handleNewSession)
	r.Route("/session/{sid}", func(r chi.Router) {
		r.Use(s.requireSession)
		r.Delete("/", s.handleDeleteSession)
		r.Post("/url", s.handleNavigate)
		r.Get("/url", s.handleCurrentURL)
		r.Get("/title", s.handleTitle)
		r.Get("/source", s.handleSource)
		r.Post("/back", s.handleBack)
		r.Post("/forward", s.handleNoop)
		r.Post("/refresh", s.handleNoop)
		r.Post("/timeouts", s.handleTimeouts)
		r.Get("/screenshot", s.handleScreenshot)
		r.Post("/execute/sync", s.handleExecute)
		r.Post("/element", s.handleFind(false))
		r.Post("/elements", s.handleFind(true))
		r.Route("/element/{eid}", func(r chi.Router) {
			r.Post("/element", s.handleFind(false))
			r.Get("/rect", s.handleRect)
			r.Get("/text", s.handleText)
			r.Get("/name", s.handleTagName)
			r.Get("/displayed", s.handleDisplayed)
			r.Get("/enabled", s.handleTrue)
			r.Get("/selected", s.handleFalse)
			r.Get("/attribute/{name}", s.handleAttribute)
			r.Get("/property/{name}", s.handleAttribute)
			r.Get("/css/{name}", s.handleCSS)
			r.Post("/click", s.handleClick)
			r.Post("/clear", s.handleClear)
			r.Post("/value", s.handleValue)
		})
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusNotFound, "unknown command", "no route for "+r.Method+" "+r.URL.Path)
	})
	return r
}

// -- middleware --

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))
		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.EscapedPath(), Body: string(body)})
		latency := s.Latency
		s.mu.Unlock()
		if latency > 0 {
			time.Sleep(latency)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		_, ok := s.sessions[chi.URLParam(r, "sid")]
		s.mu.Unlock()
		if !ok {
			s.writeError(w, http.StatusNotFound, "invalid session id", "session "+chi.URLParam(r, "sid")+" does not exist")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// -- response helpers --

func (s *Server) writeValue(w http.ResponseWriter, value interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	body := map[string]interface{}{"value": value}
	if s.Legacy {
		body["status"] = 0
	}
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"value": map[string]string{"error": code, "message": message, "stacktrace": ""},
	})
}

func decode(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) session(r *http.Request) *session {
	return s.sessions[chi.URLParam(r, "sid")]
}

// element looks up {eid} on the session's current page. Callers hold s.mu.
func (s *Server) element(r *http.Request) (*Element, *session) {
	sess := s.session(r)
	page := s.pages[sess.currentURL]
	if page == nil {
		return nil, sess
	}
	eid := chi.URLParam(r, "eid")
	for _, el := range page.Elements {
		if el.ID == eid {
			return el, sess
		}
	}
	return nil, sess
}

func (s *Server) withElement(w http.ResponseWriter, r *http.Request, fn func(*Element, *session)) {
	s.mu.Lock()
	el, sess := s.element(r)
	if el == nil {
		s.mu.Unlock()
		s.writeError(w, http.StatusNotFound, "stale element reference", "element "+chi.URLParam(r, "eid")+" is not attached to the page")
		return
	}
	fn(el, sess)
	s.mu.Unlock()
}

// -- handlers --

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeValue(w, map[string]interface{}{
		"ready":   true,
		"message": "wdtest ready",
		"build":   map[string]string{"version": "wdtest"},
		"os":      map[string]string{"name": "linux", "arch": "amd64"},
	})
}

func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Capabilities struct {
			AlwaysMatch map[string]interface{} `json:"alwaysMatch"`
		} `json:"capabilities"`
		Desired map[string]interface{} `json:"desiredCapabilities"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid argument", err.Error())
		return
	}
	caps := req.Capabilities.AlwaysMatch
	if caps == nil {
		caps = req.Desired
	}
	browser, _ := caps["browserName"].(string)

	s.mu.Lock()
	if s.RejectBrowsers[browser] {
		s.mu.Unlock()
		s.writeError(w, http.StatusInternalServerError, "session not created", "no node supports "+browser)
		return
	}
	s.nextID++
	id := fmt.Sprintf("session-%d", s.nextID)
	s.sessions[id] = &session{id: id, browser: browser, typed: map[string]string{}}
	s.created = append(s.created, browser)
	legacy := s.Legacy
	s.mu.Unlock()

	if legacy {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"sessionId": id, "status": 0, "value": caps})
		return
	}
	s.writeValue(w, map[string]interface{}{"sessionId": id, "capabilities": caps})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	id := chi.URLParam(r, "sid")
	delete(s.sessions, id)
	s.deleted = append(s.deleted, id)
	s.mu.Unlock()
	s.writeValue(w, nil)
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := decode(r, &req); err != nil || req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "invalid argument", "url is required")
		return
	}
	s.mu.Lock()
	sess := s.session(r)
	sess.history = append(sess.history, sess.currentURL)
	sess.currentURL = req.URL
	sess.typed = map[string]string{}
	s.mu.Unlock()
	s.writeValue(w, nil)
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	sess := s.session(r)
	if n := len(sess.history); n > 0 {
		sess.currentURL = sess.history[n-1]
		sess.history = sess.history[:n-1]
	}
	s.mu.Unlock()
	s.writeValue(w, nil)
}

func (s *Server) handleNoop(w http.ResponseWriter, _ *http.Request)  { s.writeValue(w, nil) }
func (s *Server) handleTrue(w http.ResponseWriter, _ *http.Request)  { s.writeValue(w, true) }
func (s *Server) handleFalse(w http.ResponseWriter, _ *http.Request) { s.writeValue(w, false) }

func (s *Server) handleCurrentURL(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	u := s.session(r).currentURL
	s.mu.Unlock()
	s.writeValue(w, u)
}

func (s *Server) handleTitle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	title := ""
	if page := s.pages[s.session(r).currentURL]; page != nil {
		title = page.Title
	}
	s.mu.Unlock()
	s.writeValue(w, title)
}

func (s *Server) handleSource(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	src := ""
	if page := s.pages[s.session(r).currentURL]; page != nil {
		src = page.Source
	}
	s.mu.Unlock()
	s.writeValue(w, src)
}

func (s *Server) handleTimeouts(w http.ResponseWriter, r *http.Request) {
	var req map[string]interface{}
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid argument", err.Error())
		return
	}
	s.mu.Lock()
	s.session(r).timeouts = req
	s.mu.Unlock()
	s.writeValue(w, nil)
}

func (s *Server) handleScreenshot(w http.ResponseWriter, _ *http.Request) {
	s.writeValue(w, base64.StdEncoding.EncodeToString(ScreenshotPNG))
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Script string        `json:"script"`
		Args   []interface{} `json:"args"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid argument", err.Error())
		return
	}
	s.mu.Lock()
	result, ok := s.scripts[req.Script]
	s.mu.Unlock()
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "javascript error", "no result registered for script")
		return
	}
	s.writeValue(w, result)
}

func (s *Server) handleFind(many bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var loc Locator
		if err := decode(r, &loc); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid argument", err.Error())
			return
		}
		s.mu.Lock()
		var matches []map[string]string
		if page := s.pages[s.session(r).currentURL]; page != nil {
			for _, el := range page.Elements {
				for _, l := range el.Locators {
					if l == loc {
						matches = append(matches, map[string]string{elementKey: el.ID})
						break
					}
				}
			}
		}
		s.mu.Unlock()

		if many {
			if matches == nil {
				matches = []map[string]string{}
			}
			s.writeValue(w, matches)
			return
		}
		if len(matches) == 0 {
			s.writeError(w, http.StatusNotFound, "no such element", fmt.Sprintf("unable to locate %s=%s", loc.Using, loc.Value))
			return
		}
		s.writeValue(w, matches[0])
	}
}

func (s *Server) handleRect(w http.ResponseWriter, r *http.Request) {
	s.withElement(w, r, func(el *Element, _ *session) { s.writeValue(w, el.Rect) })
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	s.withElement(w, r, func(el *Element, _ *session) { s.writeValue(w, el.Text) })
}

func (s *Server) handleTagName(w http.ResponseWriter, r *http.Request) {
	s.withElement(w, r, func(el *Element, _ *session) { s.writeValue(w, el.Tag) })
}

func (s *Server) handleDisplayed(w http.ResponseWriter, r *http.Request) {
	s.withElement(w, r, func(el *Element, _ *session) { s.writeValue(w, !el.Hidden) })
}

func (s *Server) handleAttribute(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s.withElement(w, r, func(el *Element, sess *session) {
		if name == "value" {
			if typed, ok := sess.typed[el.ID]; ok {
				s.writeValue(w, typed)
				return
			}
		}
		if v, ok := el.Attributes[name]; ok {
			s.writeValue(w, v)
			return
		}
		s.writeValue(w, nil)
	})
}

func (s *Server) handleCSS(w http.ResponseWriter, r *http.Request) {
	s.withElement(w, r, func(_ *Element, _ *session) { s.writeValue(w, "") })
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	s.withElement(w, r, func(el *Element, sess *session) {
		if el.Href != "" {
			sess.history = append(sess.history, sess.currentURL)
			sess.currentURL = el.Href
			sess.typed = map[string]string{}
		}
		s.writeValue(w, nil)
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.withElement(w, r, func(el *Element, sess *session) {
		sess.typed[el.ID] = ""
		s.writeValue(w, nil)
	})
}

func (s *Server) handleValue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid argument", err.Error())
		return
	}
	s.withElement(w, r, func(el *Element, sess *session) {
		sess.typed[el.ID] += req.Text
		s.writeValue(w, nil)
	})
}
