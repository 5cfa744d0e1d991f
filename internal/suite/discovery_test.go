package suite

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func writeFiles(t *testing.T, fs afero.Fs, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, afero.WriteFile(fs, p, []byte(minimalScript), 0o644))
	}
}

func TestResolveScriptPath(t *testing.T) {
	assert.Equal(t, "/new", ResolveScriptPath(FixtureConfig{SelenesePath: "/new", SeleneseDirectory: "/old"}))
	assert.Equal(t, "/old", ResolveScriptPath(FixtureConfig{SeleneseDirectory: "/old"}))
	assert.Empty(t, ResolveScriptPath(FixtureConfig{}))
}

func TestScannerScan(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs,
		"/scripts/a.htm",
		"/scripts/b.html",
		"/scripts/c.txt",
		"/scripts/nested/z.htm",
		"/scripts/nested/d.html",
		"/other/only.html",
	)
	scanner := NewScanner(fs, zaptest.NewLogger(t))

	t.Run("Directory", func(t *testing.T) {
		assert.Equal(t, []string{
			"/scripts/a.htm",
			"/scripts/nested/z.htm",
			"/scripts/b.html",
			"/scripts/nested/d.html",
		}, scanner.Scan("/scripts"))
	})

	t.Run("SuffixesOnly", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeFiles(t, fs, "/d/a.htm", "/d/b.html", "/d/c.txt")
		assert.Equal(t, []string{"/d/a.htm", "/d/b.html"}, NewScanner(fs, zaptest.NewLogger(t)).Scan("/d"))
	})

	t.Run("SingleFile", func(t *testing.T) {
		assert.Equal(t, []string{"/other/only.html"}, scanner.Scan("/other/only.html"))
		// A file path is used as given, whatever its suffix.
		assert.Equal(t, []string{"/scripts/c.txt"}, scanner.Scan("/scripts/c.txt"))
	})

	t.Run("MissingIsSkipped", func(t *testing.T) {
		assert.Empty(t, scanner.Scan("/does/not/exist"))
		assert.Empty(t, scanner.Scan(""))
	})

	t.Run("Deterministic", func(t *testing.T) {
		assert.Equal(t, scanner.Scan("/scripts"), scanner.Scan("/scripts"))
	})
}
