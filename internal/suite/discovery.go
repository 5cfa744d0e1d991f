package suite

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ScriptSuffixes are the extensions collected from a script directory, in
// the order they are collected.
var ScriptSuffixes = []string{".htm", ".html"}

// ResolveScriptPath picks the script location: SelenesePath when set,
// otherwise the deprecated SeleneseDirectory.
func ResolveScriptPath(cfg FixtureConfig) string {
	if cfg.SelenesePath != "" {
		return cfg.SelenesePath
	}
	return cfg.SeleneseDirectory
}

// Scanner finds Selenese files on a filesystem.
type Scanner struct {
	fs     afero.Fs
	logger *zap.Logger
}

func NewScanner(fs afero.Fs, logger *zap.Logger) *Scanner {
	return &Scanner{fs: fs, logger: logger.Named("scanner")}
}

// FS returns the filesystem scripts are read from.
func (s *Scanner) FS() afero.Fs { return s.fs }

// Scan returns the script files at path. A file yields itself. A directory
// is walked recursively once per suffix in ScriptSuffixes, each pass sorted
// lexically. A missing or unreadable path yields nothing.
func (s *Scanner) Scan(path string) []string {
	if path == "" {
		return nil
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		s.logger.Debug("Could not expand script path", zap.String("path", path), zap.Error(err))
		return nil
	}

	info, err := s.fs.Stat(expanded)
	if err != nil {
		s.logger.Debug("Script path not readable, skipping", zap.String("path", expanded), zap.Error(err))
		return nil
	}
	if !info.IsDir() {
		return []string{expanded}
	}

	var files []string
	for _, suffix := range ScriptSuffixes {
		files = append(files, s.collect(expanded, suffix)...)
	}
	return files
}

func (s *Scanner) collect(dir, suffix string) []string {
	var found []string
	_ = afero.Walk(s.fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// Unreadable entries are skipped like a missing path.
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() && filepath.Ext(path) == suffix {
			found = append(found, path)
		}
		return nil
	})
	sort.Strings(found)
	return found
}
