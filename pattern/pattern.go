// Package pattern implements the two pattern-matching needs of the shell
// core: filesystem globbing for pathname expansion (spec §4.3 stage 6) and
// in-memory shell-pattern matching for case arms and the parameter
// expansion trim modifiers (spec §4.3, `#` `##` `%` `%%`). Grounded on the
// teacher's pattern package (regexp-based translation of shell patterns)
// for the in-memory matcher, and on the retrieval pack's cc-allow
// cmd/cc-allow/match.go for wiring doublestar as the filesystem globber.
package pattern

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Glob expands pat (a POSIX shell pathname pattern, spec §4.3 stage 6)
// against the filesystem rooted at dir, returning matches as paths
// relative to dir when pat itself was relative.
func Glob(dir, pat string) ([]string, error) {
	full := pat
	if dir != "" && !filepath.IsAbs(pat) {
		full = filepath.Join(dir, pat)
	}
	full = filepath.ToSlash(full)
	matches, err := doublestar.FilepathGlob(full)
	if err != nil {
		return nil, err
	}
	if dir == "" || filepath.IsAbs(pat) {
		return matches, nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		rel, err := filepath.Rel(dir, m)
		if err != nil {
			rel = m
		}
		out = append(out, rel)
	}
	return out, nil
}

// Match reports whether name matches the shell pattern pat in its entirety
// (spec §4.3, case arm matching).
func Match(pat, name string) (bool, error) {
	re, err := compile(pat)
	if err != nil {
		return false, err
	}
	return re.MatchString(name), nil
}

// TrimPrefix removes a prefix of s matching pat (spec §4.3, `#`/`##`).
// longest selects the greediest matching prefix (`##`); otherwise the
// shortest match is removed (`#`), which is the empty prefix when pat
// matches the empty string.
func TrimPrefix(s, pat string, longest bool) string {
	if pat == "" {
		return s
	}
	re, err := compile(pat)
	if err != nil {
		return s
	}
	if longest {
		for l := len(s); l >= 0; l-- {
			if re.MatchString(s[:l]) {
				return s[l:]
			}
		}
		return s
	}
	for l := 0; l <= len(s); l++ {
		if re.MatchString(s[:l]) {
			return s[l:]
		}
	}
	return s
}

// TrimSuffix removes a suffix of s matching pat (spec §4.3, `%`/`%%`).
func TrimSuffix(s, pat string, longest bool) string {
	if pat == "" {
		return s
	}
	re, err := compile(pat)
	if err != nil {
		return s
	}
	if longest {
		for l := 0; l <= len(s); l++ {
			if re.MatchString(s[l:]) {
				return s[:l]
			}
		}
		return s
	}
	for l := len(s); l >= 0; l-- {
		if re.MatchString(s[l:]) {
			return s[:l]
		}
	}
	return s
}

// compile translates a shell pattern (`*`, `?`, `[...]`, backslash escapes)
// into an anchored regexp, the same approach the teacher's pattern package
// uses for in-memory matching (doublestar is reserved for the filesystem).
func compile(pat string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteByte('^')
	i := 0
	for i < len(pat) {
		c := pat[i]
		switch c {
		case '\\':
			if i+1 < len(pat) {
				b.WriteString(regexp.QuoteMeta(string(pat[i+1])))
				i += 2
				continue
			}
			b.WriteString(regexp.QuoteMeta(`\`))
			i++
		case '*':
			b.WriteString(".*")
			i++
		case '?':
			b.WriteString(".")
			i++
		case '[':
			end := i + 1
			if end < len(pat) && (pat[end] == '!' || pat[end] == '^') {
				end++
			}
			if end < len(pat) && pat[end] == ']' {
				end++
			}
			for end < len(pat) && pat[end] != ']' {
				end++
			}
			if end >= len(pat) {
				b.WriteString(regexp.QuoteMeta("["))
				i++
				continue
			}
			cls := pat[i+1 : end]
			b.WriteByte('[')
			if strings.HasPrefix(cls, "!") {
				b.WriteByte('^')
				cls = cls[1:]
			} else if strings.HasPrefix(cls, "^") {
				b.WriteString(`\^`)
				cls = cls[1:]
			}
			b.WriteString(cls)
			b.WriteByte(']')
			i = end + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	b.WriteByte('$')
	return regexp.Compile(b.String())
}
