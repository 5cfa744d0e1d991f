package reporting

import (
	"fmt"
	"io"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/selenium-suite/api/schemas"
)

// JSONReporter writes each run as an indented JSON document as soon as it
// is written.
type JSONReporter struct {
	mu     sync.Mutex
	writer io.WriteCloser
	enc    *jsoniter.Encoder
}

func NewJSONReporter(writer io.WriteCloser) *JSONReporter {
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(writer)
	enc.SetIndent("", "  ")
	return &JSONReporter{writer: writer, enc: enc}
}

func (r *JSONReporter) Write(report *schemas.RunReport) error {
	if report == nil {
		return fmt.Errorf("nil report")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode json report: %w", err)
	}
	return nil
}

func (r *JSONReporter) Close() error {
	return r.writer.Close()
}
