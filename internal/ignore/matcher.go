package ignore

import (
	"path"
	"regexp"
	"strings"
)

// DiscoveryDefaults are excluded when walking a build directory for raw
// source maps. A later negation rule can bring any of them back.
var DiscoveryDefaults = []string{
	".git/",
	"node_modules/",
	"deploy/",
	"private/",
	"src/",
}

type rule struct {
	source   string
	re       *regexp.Regexp
	negated  bool
	dirOnly  bool
	anchored bool
	nested   bool
}

// Matcher applies gitignore-style patterns. The last matching rule decides.
type Matcher struct {
	rules []rule
}

// NewMatcher compiles patterns in order. Blank lines and # comments are
// skipped.
func NewMatcher(patterns []string) *Matcher {
	rules := make([]rule, 0, len(patterns))
	for _, line := range patterns {
		if parsed, ok := parseRule(line); ok {
			rules = append(rules, parsed)
		}
	}
	return &Matcher{rules: rules}
}

// NewDiscoveryMatcher is NewMatcher with DiscoveryDefaults prepended.
func NewDiscoveryMatcher(userPatterns []string) *Matcher {
	all := make([]string, 0, len(DiscoveryDefaults)+len(userPatterns))
	all = append(all, DiscoveryDefaults...)
	all = append(all, userPatterns...)
	return NewMatcher(all)
}

// Empty reports whether the matcher has no rules.
func (m *Matcher) Empty() bool {
	return m == nil || len(m.rules) == 0
}

// Match reports whether relPath is excluded. Paths use forward slashes and
// are relative to whatever root the caller walks.
func (m *Matcher) Match(relPath string, isDir bool) bool {
	if m.Empty() {
		return false
	}
	relPath = normalizePath(relPath)
	excluded := false
	for _, r := range m.rules {
		if r.matches(relPath, isDir) {
			excluded = !r.negated
		}
	}
	return excluded
}

func parseRule(line string) (rule, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return rule{}, false
	}

	r := rule{}
	if rest, ok := strings.CutPrefix(line, "!"); ok {
		r.negated = true
		line = rest
	}
	if rest, ok := strings.CutPrefix(line, "/"); ok {
		r.anchored = true
		line = rest
	}
	if rest, ok := strings.CutSuffix(line, "/"); ok {
		r.dirOnly = true
		line = rest
	}

	line = normalizePath(line)
	if line == "" {
		return rule{}, false
	}
	r.source = line
	r.nested = strings.Contains(line, "/")
	r.re = regexp.MustCompile("^" + globToRegex(line) + "$")
	return r, true
}

func (r rule) matches(relPath string, isDir bool) bool {
	if r.dirOnly {
		return r.matchesDirectory(relPath, isDir)
	}
	if r.anchored {
		return r.re.MatchString(relPath)
	}
	if r.nested {
		return r.matchesAnySuffix(relPath)
	}
	for _, segment := range strings.Split(relPath, "/") {
		if r.re.MatchString(segment) {
			return true
		}
	}
	return false
}

// matchesDirectory checks every ancestor directory of relPath, plus relPath
// itself when it is a directory.
func (r rule) matchesDirectory(relPath string, isDir bool) bool {
	parts := strings.Split(relPath, "/")
	dirs := len(parts) - 1
	if isDir {
		dirs = len(parts)
	}
	for i := 0; i < dirs; i++ {
		prefix := strings.Join(parts[:i+1], "/")
		if r.anchored || r.nested {
			if r.re.MatchString(prefix) {
				return true
			}
			continue
		}
		if r.re.MatchString(parts[i]) {
			return true
		}
	}
	return false
}

func (r rule) matchesAnySuffix(relPath string) bool {
	parts := strings.Split(relPath, "/")
	for i := range parts {
		if r.re.MatchString(strings.Join(parts[i:], "/")) {
			return true
		}
	}
	return false
}

func globToRegex(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		switch {
		case ch == '*' && i+1 < len(pattern) && pattern[i+1] == '*':
			b.WriteString(".*")
			i++
		case ch == '*':
			b.WriteString("[^/]*")
		case ch == '?':
			b.WriteString("[^/]")
		default:
			b.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	return b.String()
}

func normalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return p
	}
	return path.Clean(p)
}
