package selenese

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/selenium-suite/internal/webdriver"
)

// ParseLocator converts a Selenese element locator into a find payload.
//
//	id=login        name=q        css=#main > a
//	xpath=//a[1]    link=Home     //div[@id='x']
//
// Anything else is taken as an element id.
func ParseLocator(s string) (webdriver.Locator, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return webdriver.Locator{}, fmt.Errorf("empty locator")
	}
	if strings.HasPrefix(s, "//") || strings.HasPrefix(s, "(//") {
		return webdriver.XPath(s), nil
	}

	kind, value, ok := strings.Cut(s, "=")
	if !ok {
		return webdriver.ID(s), nil
	}
	switch kind {
	case "id":
		return webdriver.ID(value), nil
	case "name":
		return webdriver.Name(value), nil
	case "css":
		return webdriver.CSS(value), nil
	case "xpath":
		return webdriver.XPath(value), nil
	case "link":
		return webdriver.LinkText(value), nil
	case "identifier":
		return webdriver.ID(value), nil
	default:
		// "=" inside a bare id, e.g. "a=b" where "a" is not a strategy.
		return webdriver.ID(s), nil
	}
}
