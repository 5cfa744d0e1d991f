package reporting

import (
	"fmt"
	"io"
	"os"

	"github.com/xkilldash9x/selenium-suite/api/schemas"
)

// Reporter writes run reports to an output.
type Reporter interface {
	// Write adds one run to the output.
	Write(report *schemas.RunReport) error
	// Close finalizes the output and closes any underlying file.
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for format ("junit" or "json") writing to
// outputPath, or to stdout when outputPath is empty or "stdout".
func New(format, outputPath, toolVersion string) (Reporter, error) {
	var writer io.WriteCloser
	isStdOut := outputPath == "" || outputPath == "stdout"

	if isStdOut {
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	switch format {
	case "junit":
		return NewJUnitReporter(writer, toolVersion), nil
	case "json":
		return NewJSONReporter(writer), nil
	default:
		if !isStdOut {
			writer.Close()
		}
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
