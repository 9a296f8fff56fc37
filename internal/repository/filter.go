// Package repository decides which repositories of an owner take part in a build.
package repository

import (
	"fmt"
	"regexp"
	"strings"
)

// Reasons reported by Filter.Include for skipped repositories.
const (
	ReasonExactMatch   = "ignored_by_name"
	ReasonPatternMatch = "ignored_by_pattern"
)

// DefaultIgnore is used when no ignore list is configured.
var DefaultIgnore = []string{"index", "/template/"}

// Pattern is a single ignore rule: either an exact name or a regular expression.
type Pattern struct {
	raw   string
	exact string
	re    *regexp.Regexp
}

// Exact returns a pattern matching only the given name.
func Exact(name string) Pattern {
	return Pattern{raw: name, exact: name}
}

// Regex compiles an unanchored regular expression pattern.
func Regex(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("compile pattern %q: %w", expr, err)
	}
	return Pattern{raw: "/" + expr + "/", re: re}, nil
}

// ParsePattern decodes the configuration form of a pattern.
// "/expr/" (optionally followed by the flag "i") is a regular expression,
// anything else is an exact name. An empty expression or an unknown flag is an error.
func ParsePattern(s string) (Pattern, error) {
	if len(s) >= 2 && s[0] == '/' {
		if end := strings.LastIndexByte(s, '/'); end > 0 {
			expr, flags := s[1:end], s[end+1:]
			if expr == "" {
				return Pattern{}, fmt.Errorf("pattern %q: empty regular expression", s)
			}
			switch flags {
			case "":
				return Regex(expr)
			case "i":
				p, err := Regex("(?i)" + expr)
				p.raw = s
				return p, err
			default:
				return Pattern{}, fmt.Errorf("pattern %q: unsupported flags %q", s, flags)
			}
		}
	}
	return Exact(s), nil
}

// ParsePatterns decodes a list of configured patterns, skipping blank entries.
func ParsePatterns(raw []string) ([]Pattern, error) {
	out := make([]Pattern, 0, len(raw))
	for _, s := range raw {
		if strings.TrimSpace(s) == "" {
			continue
		}
		p, err := ParsePattern(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// IsRegex reports whether the pattern is a regular expression.
func (p Pattern) IsRegex() bool { return p.re != nil }

// Matches reports whether name is covered by this pattern.
func (p Pattern) Matches(name string) bool {
	if p.re != nil {
		return p.re.MatchString(name)
	}
	return p.exact == name
}

func (p Pattern) String() string { return p.raw }

// IsIgnored reports whether name equals any exact pattern or matches any regex pattern.
func IsIgnored(name string, patterns []Pattern) bool {
	for _, p := range patterns {
		if p.Matches(name) {
			return true
		}
	}
	return false
}

// Filter applies an ignore list to repository names.
type Filter struct {
	patterns []Pattern
}

// NewFilter compiles the configured ignore list. A nil list selects DefaultIgnore,
// an empty non-nil list ignores nothing.
func NewFilter(ignore []string) (*Filter, error) {
	if ignore == nil {
		ignore = DefaultIgnore
	}
	patterns, err := ParsePatterns(ignore)
	if err != nil {
		return nil, err
	}
	return &Filter{patterns: patterns}, nil
}

// NewFilterFromPatterns wraps already compiled patterns.
func NewFilterFromPatterns(patterns []Pattern) *Filter {
	return &Filter{patterns: patterns}
}

// Patterns returns the compiled ignore list.
func (f *Filter) Patterns() []Pattern {
	if f == nil {
		return nil
	}
	return f.patterns
}

// Include returns true if the repository takes part in the build, or false with the reason it was skipped.
func (f *Filter) Include(name string) (bool, string) {
	if f == nil {
		return true, ""
	}
	for _, p := range f.patterns {
		if !p.Matches(name) {
			continue
		}
		if p.IsRegex() {
			return false, ReasonPatternMatch
		}
		return false, ReasonExactMatch
	}
	return true, ""
}
