// File: cmd/report_test.go
package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/selenium-suite/api/schemas"
)

func persistedStore() *fakeStore {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &fakeStore{runs: map[string]*schemas.RunReport{
		"run-7": {
			RunID:    "run-7",
			Suite:    "Shop",
			Started:  started,
			Duration: 3 * time.Second,
			Results: []schemas.TestResult{
				{Suite: "Shop: ff", Name: "login [ff]", Browser: "ff", Status: schemas.StatusPassed, Started: started},
				{Suite: "Shop: ff", Name: "checkout [ff]", Browser: "ff", Status: schemas.StatusError, Message: "invalid session id\nstack", Started: started},
			},
		},
	}}
}

func TestReportCmd(t *testing.T) {
	t.Run("summary to stdout", func(t *testing.T) {
		provider := &fakeProvider{store: persistedStore()}
		out, err := executeCommand(t, provider, "report", "--run-id", "run-7")
		require.NoError(t, err)
		assert.Contains(t, out, "Run run-7 (Shop): 1 passed, 0 failed, 1 errors, 0 skipped in 3s")
		assert.Contains(t, out, "ERROR checkout [ff]: invalid session id\n")
		assert.True(t, provider.cleaned)
	})

	t.Run("junit file", func(t *testing.T) {
		output := filepath.Join(t.TempDir(), "junit.xml")
		_, err := executeCommand(t, &fakeProvider{store: persistedStore()}, "report", "--run-id", "run-7", "-o", output, "-f", "junit")
		require.NoError(t, err)
		data, err := os.ReadFile(output)
		require.NoError(t, err)
		assert.Contains(t, string(data), "<testsuites")
		assert.Contains(t, string(data), `name="checkout [ff]"`)
	})

	t.Run("unknown run", func(t *testing.T) {
		_, err := executeCommand(t, &fakeProvider{store: persistedStore()}, "report", "--run-id", "missing")
		assert.ErrorContains(t, err, "run missing not found")
	})

	t.Run("run id is required", func(t *testing.T) {
		_, err := executeCommand(t, &fakeProvider{store: persistedStore()}, "report")
		assert.ErrorContains(t, err, `required flag(s) "run-id" not set`)
	})
}
