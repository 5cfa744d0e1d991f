package webdriver

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/selenium-suite/api/schemas"
)

// Element is a handle to a DOM element within a session, addressed as
// {session}/element/{id}.
type Element struct {
	id      string
	session *Session
	url     URL
}

func (e *Element) ID() string { return e.id }
func (e *Element) URL() URL   { return e.url }

// Rect returns the element's position and size.
func (e *Element) Rect(ctx context.Context) (schemas.Rect, error) {
	var r schemas.Rect
	raw, err := e.session.Execute(ctx, Rect("rect", e.url))
	if err != nil {
		return r, err
	}
	if err := wire.Unmarshal(raw, &r); err != nil {
		return r, fmt.Errorf("decode rect: %w", err)
	}
	return r, nil
}

// Attribute returns the attribute value; "" when the attribute is absent.
func (e *Element) Attribute(ctx context.Context, name string) (string, error) {
	return decodeString(e.session.Execute(ctx, Attribute(name, e.url.Descend("attribute"))))
}

// Property returns the DOM property rendered as a string.
func (e *Element) Property(ctx context.Context, name string) (string, error) {
	raw, err := e.session.Execute(ctx, Property(name, e.url.Descend("property")))
	if err != nil {
		return "", err
	}
	var v interface{}
	if err := wire.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("decode property: %w", err)
	}
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	default:
		return fmt.Sprint(t), nil
	}
}

func (e *Element) CSSValue(ctx context.Context, name string) (string, error) {
	return decodeString(e.session.Execute(ctx, CSSValue(name, e.url.Descend("css"))))
}

func (e *Element) Text(ctx context.Context) (string, error) {
	return decodeString(e.session.Execute(ctx, Query("text", e.url)))
}

func (e *Element) TagName(ctx context.Context) (string, error) {
	return decodeString(e.session.Execute(ctx, Query("name", e.url)))
}

func (e *Element) Displayed(ctx context.Context) (bool, error) {
	return decodeBool(e.session.Execute(ctx, Query("displayed", e.url)))
}

func (e *Element) Enabled(ctx context.Context) (bool, error) {
	return decodeBool(e.session.Execute(ctx, Query("enabled", e.url)))
}

func (e *Element) Selected(ctx context.Context) (bool, error) {
	return decodeBool(e.session.Execute(ctx, Query("selected", e.url)))
}

func (e *Element) Click(ctx context.Context) error {
	_, err := e.session.Execute(ctx, Action("click", e.url))
	return err
}

func (e *Element) Clear(ctx context.Context) error {
	_, err := e.session.Execute(ctx, Action("clear", e.url))
	return err
}

// SendKeys types text into the element.
func (e *Element) SendKeys(ctx context.Context, text string) error {
	_, err := e.session.Execute(ctx, Value("value", e.url, text))
	return err
}

// FindElement searches below this element.
func (e *Element) FindElement(ctx context.Context, by Locator) (*Element, error) {
	raw, err := e.session.Execute(ctx, Find("element", e.url, by))
	if err != nil {
		return nil, err
	}
	id, err := elementID(raw)
	if err != nil {
		return nil, err
	}
	return e.session.element(id), nil
}
