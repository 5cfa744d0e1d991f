package reporting

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/xkilldash9x/selenium-suite/api/schemas"
	"github.com/xkilldash9x/selenium-suite/internal/observability"
)

const timestampLayout = "2006-01-02T15:04:05"

// JUnitReporter renders runs as a JUnit XML <testsuites> document, one
// <testsuite> per suite node. The document is written on Close.
type JUnitReporter struct {
	writer      io.WriteCloser
	logger      *zap.Logger
	toolVersion string

	mu  sync.Mutex
	doc *etree.Document
	top *etree.Element
}

func NewJUnitReporter(writer io.WriteCloser, toolVersion string) *JUnitReporter {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	top := doc.CreateElement("testsuites")
	return &JUnitReporter{
		writer:      writer,
		logger:      observability.GetLogger().Named("junit_reporter"),
		toolVersion: toolVersion,
		doc:         doc,
		top:         top,
	}
}

// Write appends the run's results, grouped by suite node in the order the
// nodes first appear.
func (r *JUnitReporter) Write(report *schemas.RunReport) error {
	if report == nil {
		return fmt.Errorf("nil report")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	hostname, _ := os.Hostname()
	var order []string
	byNode := make(map[string][]schemas.TestResult)
	for _, res := range report.Results {
		if _, ok := byNode[res.Suite]; !ok {
			order = append(order, res.Suite)
		}
		byNode[res.Suite] = append(byNode[res.Suite], res)
	}

	for _, node := range order {
		results := byNode[node]
		suite := r.top.CreateElement("testsuite")
		suite.CreateAttr("name", node)
		suite.CreateAttr("timestamp", report.Started.UTC().Format(timestampLayout))
		if hostname != "" {
			suite.CreateAttr("hostname", hostname)
		}

		props := suite.CreateElement("properties")
		addProperty(props, "run_id", report.RunID)
		addProperty(props, "tool_version", r.toolVersion)
		if len(results) > 0 && results[0].Browser != "" {
			addProperty(props, "browser", results[0].Browser)
		}

		var failures, errors, skipped int
		var total float64
		for _, res := range results {
			tc := suite.CreateElement("testcase")
			tc.CreateAttr("name", res.Name)
			tc.CreateAttr("classname", node)
			tc.CreateAttr("time", seconds(res.Duration.Seconds()))
			if res.Script != "" {
				tc.CreateAttr("file", res.Script)
			}
			total += res.Duration.Seconds()

			switch res.Status {
			case schemas.StatusFailed:
				failures++
				outcome(tc, "failure", res.Message)
			case schemas.StatusError:
				errors++
				outcome(tc, "error", res.Message)
			case schemas.StatusSkipped:
				skipped++
				tc.CreateElement("skipped").CreateAttr("message", res.Message)
			}
		}

		suite.CreateAttr("tests", fmt.Sprint(len(results)))
		suite.CreateAttr("failures", fmt.Sprint(failures))
		suite.CreateAttr("errors", fmt.Sprint(errors))
		suite.CreateAttr("skipped", fmt.Sprint(skipped))
		suite.CreateAttr("time", seconds(total))
	}
	return nil
}

// Close writes the document and closes the writer.
func (r *JUnitReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.doc.Indent(2)
	if _, err := r.doc.WriteTo(r.writer); err != nil {
		r.logger.Error("Failed to write JUnit report", zap.Error(err))
		_ = r.writer.Close()
		return fmt.Errorf("failed to write junit report: %w", err)
	}
	return r.writer.Close()
}

func addProperty(props *etree.Element, name, value string) {
	p := props.CreateElement("property")
	p.CreateAttr("name", name)
	p.CreateAttr("value", value)
}

func outcome(tc *etree.Element, kind, message string) {
	el := tc.CreateElement(kind)
	first, _, _ := strings.Cut(message, "\n")
	el.CreateAttr("message", first)
	el.CreateAttr("type", kind)
	el.SetText(message)
}

func seconds(s float64) string {
	return fmt.Sprintf("%.3f", s)
}
