package webdriver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURLDescend(t *testing.T) {
	base := NewURL("http://grid:4444/wd/hub/")

	t.Run("TrailingSlashDropped", func(t *testing.T) {
		assert.Equal(t, "http://grid:4444/wd/hub", base.String())
		assert.Empty(t, base.Path())
	})

	t.Run("Associative", func(t *testing.T) {
		a := base.Descend("session").Descend("abc", "element").Descend("42")
		b := base.Descend("session", "abc").Descend("element", "42")
		assert.True(t, a.Equal(b))
		assert.Equal(t, "http://grid:4444/wd/hub/session/abc/element/42", a.String())
	})

	t.Run("Immutable", func(t *testing.T) {
		parent := base.Descend("session", "abc")
		left := parent.Descend("title")
		right := parent.Descend("url")

		assert.Equal(t, "/session/abc", parent.Path())
		assert.Equal(t, "/session/abc/title", left.Path())
		assert.Equal(t, "/session/abc/url", right.Path())
	})

	t.Run("SegmentsAreCopies", func(t *testing.T) {
		u := base.Descend("session", "abc")
		segs := u.Segments()
		segs[0] = "mutated"
		assert.Equal(t, []string{"session", "abc"}, u.Segments())
	})

	t.Run("SegmentsEscaped", func(t *testing.T) {
		u := base.Descend("element", "a/b?c%d")
		assert.Equal(t, "/element/a%2Fb%3Fc%25d", u.Path())
		assert.Equal(t, []string{"element", "a/b?c%d"}, u.Segments())
	})
}
