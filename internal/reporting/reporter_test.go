package reporting_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/selenium-suite/api/schemas"
	"github.com/xkilldash9x/selenium-suite/internal/reporting"
)

const testToolVersion = "v1.0.0-test"

func sampleReport() *schemas.RunReport {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &schemas.RunReport{
		RunID:    "run-1",
		Suite:    "Shop",
		Started:  started,
		Duration: 3 * time.Second,
		Results: []schemas.TestResult{
			{Suite: "Shop: ff", Name: "login", Browser: "ff", Script: "/s/login.html", Status: schemas.StatusPassed, Started: started, Duration: 1500 * time.Millisecond},
			{Suite: "Shop: ff", Name: "checkout", Browser: "ff", Status: schemas.StatusFailed, Message: "row 3 assertTitle(\"Paid\"): mismatch\nmore", Started: started, Duration: time.Second},
			{Suite: "Shop: gc", Name: "login", Browser: "gc", Status: schemas.StatusError, Message: "session not created", Started: started},
			{Suite: "Shop: gc", Name: "checkout", Browser: "gc", Status: schemas.StatusSkipped, Message: `depends on "login", which did not pass`, Started: started},
		},
	}
}

func TestNew_Stdout(t *testing.T) {
	for _, format := range []string{"junit", "json"} {
		t.Run(format, func(t *testing.T) {
			r, err := reporting.New(format, "stdout", testToolVersion)
			require.NoError(t, err)
			assert.NotNil(t, r)
		})
	}
}

func TestNew_UnsupportedFormat(t *testing.T) {
	r, err := reporting.New("sarif", "stdout", testToolVersion)
	assert.Nil(t, r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format: sarif")

	tmpFile := filepath.Join(t.TempDir(), "out.xml")
	r, err = reporting.New("sarif", tmpFile, testToolVersion)
	assert.Nil(t, r)
	assert.Error(t, err)
	info, err := os.Stat(tmpFile)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestNew_BadPath(t *testing.T) {
	_, err := reporting.New("junit", filepath.Join(t.TempDir(), "missing", "out.xml"), testToolVersion)
	assert.ErrorContains(t, err, "failed to create output file")
}

func TestJUnitReporter(t *testing.T) {
	out := filepath.Join(t.TempDir(), "junit.xml")
	r, err := reporting.New("junit", out, testToolVersion)
	require.NoError(t, err)
	require.NoError(t, r.Write(sampleReport()))
	require.NoError(t, r.Close())

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromFile(out))

	suites := doc.FindElements("/testsuites/testsuite")
	require.Len(t, suites, 2)

	ff := suites[0]
	assert.Equal(t, "Shop: ff", ff.SelectAttrValue("name", ""))
	assert.Equal(t, "2", ff.SelectAttrValue("tests", ""))
	assert.Equal(t, "1", ff.SelectAttrValue("failures", ""))
	assert.Equal(t, "0", ff.SelectAttrValue("errors", ""))
	assert.Equal(t, "2.500", ff.SelectAttrValue("time", ""))
	assert.Equal(t, "2026-03-01T12:00:00", ff.SelectAttrValue("timestamp", ""))
	assert.Equal(t, "ff", ff.FindElement("properties/property[@name='browser']").SelectAttrValue("value", ""))
	assert.Equal(t, "run-1", ff.FindElement("properties/property[@name='run_id']").SelectAttrValue("value", ""))

	cases := ff.SelectElements("testcase")
	require.Len(t, cases, 2)
	assert.Equal(t, "/s/login.html", cases[0].SelectAttrValue("file", ""))
	assert.Nil(t, cases[0].SelectElement("failure"))
	failure := cases[1].SelectElement("failure")
	require.NotNil(t, failure)
	assert.Equal(t, `row 3 assertTitle("Paid"): mismatch`, failure.SelectAttrValue("message", ""))
	assert.Contains(t, failure.Text(), "more")

	gc := suites[1]
	assert.Equal(t, "1", gc.SelectAttrValue("errors", ""))
	assert.Equal(t, "1", gc.SelectAttrValue("skipped", ""))
	assert.NotNil(t, gc.FindElement("testcase[@name='login']/error"))
	assert.NotNil(t, gc.FindElement("testcase[@name='checkout']/skipped"))
}

func TestJSONReporter(t *testing.T) {
	out := filepath.Join(t.TempDir(), "report.json")
	r, err := reporting.New("json", out, testToolVersion)
	require.NoError(t, err)
	require.NoError(t, r.Write(sampleReport()))
	require.NoError(t, r.Close())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_id": "run-1"`)
	assert.Contains(t, string(data), `"status": "skipped"`)

	assert.Error(t, reporting.NewJSONReporter(nopCloser{}).Write(nil))
}

type nopCloser struct{}

func (nopCloser) Write(p []byte) (int, error) { return len(p), nil }
func (nopCloser) Close() error                { return nil }
