// Package selenese parses Selenium IDE HTML table scripts and plays them
// against a remote browser session.
package selenese

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/afero"
)

// Step is one table row: command | target | value.
type Step struct {
	Command string
	Target  string
	Value   string
	Line    int // 1-based row index within the table body
}

func (s Step) String() string {
	switch {
	case s.Value != "":
		return fmt.Sprintf("%s(%q, %q)", s.Command, s.Target, s.Value)
	case s.Target != "":
		return fmt.Sprintf("%s(%q)", s.Command, s.Target)
	default:
		return s.Command + "()"
	}
}

// Script is a parsed Selenese file.
type Script struct {
	Path    string
	Title   string
	BaseURL string
	Steps   []Step
}

// Name is the file name without its extension, or the title when the
// script was not read from a file.
func (s *Script) Name() string {
	if s.Path == "" {
		return s.Title
	}
	base := filepath.Base(s.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ParseFile reads and parses the script at path.
func ParseFile(fs afero.Fs, path string) (*Script, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open selenese script: %w", err)
	}
	defer f.Close()

	script, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	script.Path = path
	return script, nil
}

// Parse reads a Selenese document. The first table is the script; its
// header row, when present, is the title.
func Parse(r io.Reader) (*Script, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse selenese html: %w", err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("selenese document has no <table>")
	}

	script := &Script{
		Title:   cellText(table.Find("thead tr").First().Find("td, th").First()),
		BaseURL: strings.TrimSpace(doc.Find(`link[rel="selenium.base"]`).AttrOr("href", "")),
	}
	if script.Title == "" {
		script.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	rows := table.Find("tbody tr")

	var parseErr error
	rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
		cells := row.Find("td")
		if cells.Length() == 0 {
			return true
		}
		if cells.Length() == 1 && cells.AttrOr("colspan", "") != "" {
			// A title row in a file without <thead>.
			if script.Title == "" {
				script.Title = cellText(cells)
			}
			return true
		}
		if cells.Length() != 3 {
			parseErr = fmt.Errorf("row %d: expected 3 cells, got %d", i+1, cells.Length())
			return false
		}
		step := Step{
			Command: cellText(cells.Eq(0)),
			Target:  cellText(cells.Eq(1)),
			Value:   cellText(cells.Eq(2)),
			Line:    i + 1,
		}
		if step.Command == "" {
			return true
		}
		script.Steps = append(script.Steps, step)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return script, nil
}

// cellText returns the cell's text with non-breaking spaces folded and
// surrounding whitespace trimmed.
func cellText(s *goquery.Selection) string {
	return strings.TrimSpace(strings.ReplaceAll(s.Text(), "\u00a0", " "))
}
