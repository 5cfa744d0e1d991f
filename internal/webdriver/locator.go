package webdriver

import (
	"fmt"
	"strings"
)

// Strategy is a W3C element location strategy.
type Strategy string

const (
	StrategyCSS             Strategy = "css selector"
	StrategyXPath           Strategy = "xpath"
	StrategyLinkText        Strategy = "link text"
	StrategyPartialLinkText Strategy = "partial link text"
	StrategyTagName         Strategy = "tag name"
)

// Locator is the payload of the find element commands.
type Locator struct {
	Using Strategy `json:"using"`
	Value string   `json:"value"`
}

func (l Locator) String() string {
	return fmt.Sprintf("%s=%s", l.Using, l.Value)
}

func CSS(selector string) Locator  { return Locator{Using: StrategyCSS, Value: selector} }
func XPath(expr string) Locator    { return Locator{Using: StrategyXPath, Value: expr} }
func LinkText(text string) Locator { return Locator{Using: StrategyLinkText, Value: text} }
func TagName(name string) Locator  { return Locator{Using: StrategyTagName, Value: name} }
func PartialLinkText(text string) Locator {
	return Locator{Using: StrategyPartialLinkText, Value: text}
}

// ID and Name have no W3C strategy of their own; they are expressed as
// attribute selectors so that arbitrary values stay valid CSS.
func ID(id string) Locator     { return CSS(attributeSelector("id", id)) }
func Name(name string) Locator { return CSS(attributeSelector("name", name)) }

func attributeSelector(attr, value string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(value)
	return fmt.Sprintf(`[%s="%s"]`, attr, escaped)
}
