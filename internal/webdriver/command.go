package webdriver

import (
	"net/http"

	"github.com/xkilldash9x/selenium-suite/api/schemas"
)

// Command is a single remote operation: a verb, the resource it targets and
// an optional JSON payload. Commands are built per call, dispatched once by
// an Executor and then dropped; they hold no connection state.
type Command struct {
	name    string
	method  string
	url     URL
	payload interface{}
}

// Factory builds a command of one kind. The target is always
// base.Descend(parameter).
type Factory func(parameter string, base URL) Command

func newCommand(name, method, parameter string, base URL, payload interface{}) Command {
	return Command{
		name:    name,
		method:  method,
		url:     base.Descend(parameter),
		payload: payload,
	}
}

// Name is a low-cardinality label for the command kind (logging, metrics).
func (c Command) Name() string { return c.name }

// Method returns the HTTP verb.
func (c Command) Method() string { return c.method }

// URL returns the resolved resource.
func (c Command) URL() URL { return c.url }

// Payload returns the request body value, nil for read-only commands.
func (c Command) Payload() interface{} { return c.payload }

func (c Command) String() string {
	return c.method + " " + c.url.Path()
}

// emptyBody is sent for POST commands that take no arguments; W3C remote
// ends reject a missing body on POST.
type emptyBody struct{}

// -- Read-only element and session queries --

// Rect reads an element's bounding rectangle.
func Rect(parameter string, base URL) Command {
	return newCommand("rect", http.MethodGet, parameter, base, nil)
}

// Attribute reads a named attribute; base is the element's "attribute" resource.
func Attribute(name string, base URL) Command {
	return newCommand("attribute", http.MethodGet, name, base, nil)
}

// Property reads a named DOM property; base is the element's "property" resource.
func Property(name string, base URL) Command {
	return newCommand("property", http.MethodGet, name, base, nil)
}

// CSSValue reads a computed style value; base is the element's "css" resource.
func CSSValue(name string, base URL) Command {
	return newCommand("css", http.MethodGet, name, base, nil)
}

// Query is the generic read (text, name, displayed, title, url, source, ...).
func Query(parameter string, base URL) Command {
	return newCommand(parameter, http.MethodGet, parameter, base, nil)
}

// -- State-changing commands --

// Action posts an argument-less command (click, clear, back, forward, refresh).
func Action(parameter string, base URL) Command {
	return newCommand(parameter, http.MethodPost, parameter, base, emptyBody{})
}

// Value types text into an element. Both the W3C "text" field and the
// legacy "value" character array are sent.
func Value(parameter string, base URL, text string) Command {
	chars := make([]string, 0, len(text))
	for _, r := range text {
		chars = append(chars, string(r))
	}
	return newCommand("value", http.MethodPost, parameter, base, map[string]interface{}{
		"text":  text,
		"value": chars,
	})
}

// Navigate loads target in the session's current browsing context.
func Navigate(parameter string, base URL, target string) Command {
	return newCommand("navigate", http.MethodPost, parameter, base, map[string]string{"url": target})
}

// Find locates one ("element") or many ("elements") elements.
func Find(parameter string, base URL, by Locator) Command {
	return newCommand("find_"+parameter, http.MethodPost, parameter, base, by)
}

// ExecuteScript runs synchronous JavaScript; base is the session's "execute" resource.
func ExecuteScript(parameter string, base URL, script string, args []interface{}) Command {
	if args == nil {
		args = []interface{}{}
	}
	return newCommand("execute", http.MethodPost, parameter, base, map[string]interface{}{
		"script": script,
		"args":   args,
	})
}

// SetTimeouts configures implicit, page-load and script timeouts.
func SetTimeouts(parameter string, base URL, t schemas.Timeouts) Command {
	return newCommand("timeouts", http.MethodPost, parameter, base, t)
}

// -- Session lifecycle --

// NewSession requests a browser with the given capabilities. The payload
// carries both the W3C and the legacy JSON wire shape.
func NewSession(parameter string, base URL, caps schemas.Capabilities) Command {
	return newCommand("new_session", http.MethodPost, parameter, base, map[string]interface{}{
		"capabilities":        map[string]interface{}{"alwaysMatch": caps},
		"desiredCapabilities": caps,
	})
}

// DeleteSession tears down a session; base is the server's "session" resource.
func DeleteSession(sessionID string, base URL) Command {
	return newCommand("delete_session", http.MethodDelete, sessionID, base, nil)
}

// Status queries remote end readiness.
func Status(parameter string, base URL) Command {
	return newCommand("status", http.MethodGet, parameter, base, nil)
}
