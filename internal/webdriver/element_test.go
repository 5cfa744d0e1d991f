package webdriver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/selenium-suite/api/schemas"
	"github.com/xkilldash9x/selenium-suite/internal/webdriver/wdtest"
)

func TestElementQueries(t *testing.T) {
	srv := newServer(t)
	srv.AddPage(loginURL, loginPage())
	ctx := context.Background()
	s := openSession(t, srv)
	require.NoError(t, s.Navigate(ctx, loginURL))

	user, err := s.FindElement(ctx, ID("user"))
	require.NoError(t, err)
	assert.Equal(t, s.URL().Descend("element", "user").String(), user.URL().String())

	rect, err := user.Rect(ctx)
	require.NoError(t, err)
	assert.Equal(t, schemas.Rect{X: 10, Y: 20, Width: 200, Height: 30}, rect)

	tag, err := user.TagName(ctx)
	require.NoError(t, err)
	assert.Equal(t, "input", tag)

	typ, err := user.Attribute(ctx, "type")
	require.NoError(t, err)
	assert.Equal(t, "text", typ)

	absent, err := user.Attribute(ctx, "placeholder")
	require.NoError(t, err)
	assert.Empty(t, absent)

	enabled, err := user.Enabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)

	selected, err := user.Selected(ctx)
	require.NoError(t, err)
	assert.False(t, selected)

	_, err = user.CSSValue(ctx, "color")
	require.NoError(t, err)

	help := s.Element("help")
	displayed, err := help.Displayed(ctx)
	require.NoError(t, err)
	assert.False(t, displayed)
}

func TestElementInteraction(t *testing.T) {
	srv := newServer(t)
	srv.AddPage(loginURL, loginPage())
	srv.AddPage("http://app.test/", &wdtest.Page{Title: "Home"})
	ctx := context.Background()
	s := openSession(t, srv)
	require.NoError(t, s.Navigate(ctx, loginURL))

	user := s.Element("user")
	require.NoError(t, user.SendKeys(ctx, "ada"))
	require.NoError(t, user.SendKeys(ctx, "!"))
	v, err := user.Property(ctx, "value")
	require.NoError(t, err)
	assert.Equal(t, "ada!", v)

	require.NoError(t, user.Clear(ctx))
	v, err = user.Attribute(ctx, "value")
	require.NoError(t, err)
	assert.Empty(t, v)

	home, err := s.FindElement(ctx, LinkText("Home"))
	require.NoError(t, err)
	text, err := home.Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Home", text)

	require.NoError(t, home.Click(ctx))
	title, err := s.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Home", title)

	// The link belonged to the previous page.
	_, err = home.Text(ctx)
	assert.ErrorIs(t, err, ErrStaleElement)
}
