package webdriver

import (
	"net/url"
	"strings"
)

// URL is an immutable resource address on the remote end: a base such as
// "http://grid:4444/wd/hub" plus an ordered list of path segments.
// Segments are stored raw and escaped only when rendered, so identifiers
// containing '/', '?' or '%' cannot change the path structure.
type URL struct {
	base     string
	segments []string
}

// NewURL returns a URL rooted at base. Trailing slashes are dropped.
func NewURL(base string) URL {
	return URL{base: strings.TrimRight(base, "/")}
}

// Descend returns a new URL with the given segments appended. The receiver
// is never modified, so URLs can be shared between goroutines.
func (u URL) Descend(segments ...string) URL {
	next := make([]string, len(u.segments), len(u.segments)+len(segments))
	copy(next, u.segments)
	return URL{base: u.base, segments: append(next, segments...)}
}

// Base returns the root the URL was created from.
func (u URL) Base() string { return u.base }

// Segments returns a copy of the raw path segments.
func (u URL) Segments() []string {
	out := make([]string, len(u.segments))
	copy(out, u.segments)
	return out
}

// Path renders the escaped segment path, e.g. "/session/abc/element/42/rect".
func (u URL) Path() string {
	if len(u.segments) == 0 {
		return ""
	}
	var b strings.Builder
	for _, s := range u.segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// String renders the absolute URL.
func (u URL) String() string {
	return u.base + u.Path()
}

// Equal compares the resolved form of two URLs.
func (u URL) Equal(other URL) bool {
	return u.String() == other.String()
}
