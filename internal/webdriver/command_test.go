package webdriver

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/selenium-suite/api/schemas"
)

func TestCommandURLResolution(t *testing.T) {
	base := NewURL("http://localhost:4444").Descend("session", "s1")

	factories := map[string]Factory{
		"rect":    Rect,
		"query":   Query,
		"action":  Action,
		"status":  Status,
		"attr":    Attribute,
		"prop":    Property,
		"css":     CSSValue,
		"delete":  DeleteSession,
		"timeout": func(p string, b URL) Command { return SetTimeouts(p, b, schemas.Timeouts{Script: 1}) },
	}

	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			for _, parameter := range []string{"rect", "text", "weird/param"} {
				cmd := factory(parameter, base)
				assert.True(t, cmd.URL().Equal(base.Descend(parameter)), "parameter %q", parameter)
			}
		})
	}
}

func TestRectCommand(t *testing.T) {
	// The element id never changes the verb or the payload.
	for _, id := range []string{"0", "abc-123", "{weird}"} {
		element := NewURL("http://localhost:4444").Descend("session", "s1", "element", id)
		cmd := Rect("rect", element)

		assert.Equal(t, http.MethodGet, cmd.Method())
		assert.Nil(t, cmd.Payload())
		assert.Equal(t, element.Descend("rect").String(), cmd.URL().String())
		assert.Equal(t, "rect", cmd.Name())
	}
}

func TestCommandPayloads(t *testing.T) {
	base := NewURL("http://localhost:4444").Descend("session", "s1")

	t.Run("Action", func(t *testing.T) {
		cmd := Action("click", base)
		assert.Equal(t, http.MethodPost, cmd.Method())
		assert.Equal(t, emptyBody{}, cmd.Payload())
		assert.Equal(t, "POST /session/s1/click", cmd.String())
	})

	t.Run("Value", func(t *testing.T) {
		cmd := Value("value", base, "héllo")
		payload, ok := cmd.Payload().(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "héllo", payload["text"])
		assert.Equal(t, []string{"h", "é", "l", "l", "o"}, payload["value"])
	})

	t.Run("Navigate", func(t *testing.T) {
		cmd := Navigate("url", base, "http://example.test/")
		assert.Equal(t, map[string]string{"url": "http://example.test/"}, cmd.Payload())
		assert.Equal(t, "/session/s1/url", cmd.URL().Path())
	})

	t.Run("Find", func(t *testing.T) {
		cmd := Find("elements", base, CSS("li"))
		assert.Equal(t, "find_elements", cmd.Name())
		assert.Equal(t, CSS("li"), cmd.Payload())
	})

	t.Run("ExecuteScriptNilArgs", func(t *testing.T) {
		cmd := ExecuteScript("sync", base.Descend("execute"), "return 1", nil)
		payload := cmd.Payload().(map[string]interface{})
		assert.Equal(t, []interface{}{}, payload["args"])
		assert.Equal(t, "/session/s1/execute/sync", cmd.URL().Path())
	})

	t.Run("NewSession", func(t *testing.T) {
		caps := schemas.Capabilities{"browserName": "firefox"}
		cmd := NewSession("session", NewURL("http://localhost:4444"), caps)
		payload := cmd.Payload().(map[string]interface{})
		assert.Equal(t, map[string]interface{}{"alwaysMatch": caps}, payload["capabilities"])
		assert.Equal(t, caps, payload["desiredCapabilities"])
	})

	t.Run("DeleteSession", func(t *testing.T) {
		cmd := DeleteSession("s1", NewURL("http://localhost:4444").Descend("session"))
		assert.Equal(t, http.MethodDelete, cmd.Method())
		assert.Equal(t, "/session/s1", cmd.URL().Path())
		assert.Nil(t, cmd.Payload())
	})
}

func TestLocators(t *testing.T) {
	assert.Equal(t, Locator{Using: StrategyCSS, Value: `[id="login"]`}, ID("login"))
	assert.Equal(t, Locator{Using: StrategyCSS, Value: `[name="q\"x\\"]`}, Name(`q"x\`))
	assert.Equal(t, "xpath=//a", XPath("//a").String())
	assert.Equal(t, StrategyLinkText, LinkText("Home").Using)
	assert.Equal(t, StrategyPartialLinkText, PartialLinkText("Ho").Using)
	assert.Equal(t, StrategyTagName, TagName("h1").Using)
}
