package selenese

import (
	"fmt"
	"regexp"
	"strings"
)

// Match reports whether actual satisfies a Selenese string pattern:
// "exact:" compares literally, "regexp:" and "regexpi:" search with a
// regular expression, and "glob:" (the default) matches the whole string
// with * and ? wildcards.
func Match(pattern, actual string) (bool, error) {
	switch {
	case strings.HasPrefix(pattern, "exact:"):
		return strings.TrimPrefix(pattern, "exact:") == actual, nil
	case strings.HasPrefix(pattern, "regexpi:"):
		return matchRegexp("(?i)"+strings.TrimPrefix(pattern, "regexpi:"), actual)
	case strings.HasPrefix(pattern, "regexp:"):
		return matchRegexp(strings.TrimPrefix(pattern, "regexp:"), actual)
	default:
		return globRegexp(strings.TrimPrefix(pattern, "glob:")).MatchString(actual), nil
	}
}

func matchRegexp(expr, actual string) (bool, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return false, fmt.Errorf("invalid regexp pattern %q: %w", expr, err)
	}
	return re.MatchString(actual), nil
}

func globRegexp(glob string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString(`(?s)\A`)
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString(`\z`)
	return regexp.MustCompile(b.String())
}
