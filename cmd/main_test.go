// File: cmd/main_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xkilldash9x/selenium-suite/internal/observability"
	"github.com/xkilldash9x/selenium-suite/internal/webdriver/wdtest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

// resetForTest isolates the process-wide logger and silences it.
func resetForTest(t *testing.T) {
	t.Helper()
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)
	t.Setenv("SELENIUM_SUITE_LOGGER_LEVEL", "fatal")
}

// executeCommand runs a pristine command tree with args and returns its output.
func executeCommand(t *testing.T, stores storeProvider, args ...string) (string, error) {
	t.Helper()
	resetForTest(t)

	rootCmd := newRootCmd(dependencies{stores: stores})
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const loginScript = `<html><head><title>login</title></head><body>
<table><thead><tr><td colspan="3">login</td></tr></thead><tbody>
<tr><td>open</td><td>http://app.test/login</td><td></td></tr>
<tr><td>assertTitle</td><td>%s</td><td></td></tr>
</tbody></table></body></html>`

// newRemote starts a fake remote end serving the login page.
func newRemote(t *testing.T) *wdtest.Server {
	t.Helper()
	srv := wdtest.NewServer()
	t.Cleanup(srv.Close)
	srv.AddPage("http://app.test/login", &wdtest.Page{Title: "Login"})
	return srv
}
