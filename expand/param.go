package expand

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xaonfc/posish/pattern"
)

// scanBareParam recognizes a bare (unbraced) parameter reference right
// after '$': a special parameter, a single positional digit, or a NAME
// (spec §4.3, "Special parameters" and "Simple/positional forms").
func scanBareParam(s string) (name string, consumed int, ok bool) {
	if s == "" {
		return "", 0, false
	}
	c := s[0]
	switch {
	case strings.ContainsRune("?$!#@*-", rune(c)):
		return string(c), 1, true
	case c >= '0' && c <= '9':
		return string(c), 1, true
	case c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z'):
		i := 1
		for i < len(s) {
			d := s[i]
			if d == '_' || ('a' <= d && d <= 'z') || ('A' <= d && d <= 'Z') || ('0' <= d && d <= '9') {
				i++
				continue
			}
			break
		}
		return s[:i], i, true
	}
	return "", 0, false
}

// isSetBare reports whether name (as produced by scanBareParam/splitParamName)
// currently has a value. Special and positional parameters are always
// considered set.
func isSetBare(cfg *Config, name string) bool {
	if name == "" {
		return true
	}
	c := name[0]
	if strings.ContainsRune("?$!#@*-", rune(c)) {
		return true
	}
	if c >= '0' && c <= '9' {
		return true
	}
	return cfg.Env.Get(name).IsSet()
}

// rawLookup resolves name to its current string value with no nounset
// check (spec §4.3, "Special parameters" + plain variable lookup).
func rawLookup(cfg *Config, name string) (val string, isAt bool, err error) {
	if name == "" {
		return "", false, nil
	}
	if name[0] >= '0' && name[0] <= '9' {
		n, _ := strconv.Atoi(name)
		if n == 0 {
			return cfg.Env.Name0(), false, nil
		}
		pos := cfg.Env.Positional()
		if n < 1 || n > len(pos) {
			return "", false, nil
		}
		return pos[n-1], false, nil
	}
	switch name {
	case "?":
		return strconv.Itoa(cfg.Env.LastStatus()), false, nil
	case "$":
		return strconv.Itoa(cfg.Env.PID()), false, nil
	case "!":
		return strconv.Itoa(cfg.Env.LastBackgroundPID()), false, nil
	case "#":
		return strconv.Itoa(len(cfg.Env.Positional())), false, nil
	case "-":
		return cfg.Env.Flags(), false, nil
	case "@":
		return strings.Join(cfg.Env.Positional(), ifsJoiner(cfg)), true, nil
	case "*":
		return strings.Join(cfg.Env.Positional(), ifsJoiner(cfg)), false, nil
	}
	return cfg.Env.Get(name).Str, false, nil
}

func ifsJoiner(cfg *Config) string {
	if vr := cfg.Env.Get("IFS"); vr.IsSet() {
		if vr.Str == "" {
			return ""
		}
		return vr.Str[:1]
	}
	return " "
}

// lookupBare resolves a bare $NAME reference, applying the nounset check
// (spec §6, -u option; spec §7, Expansion error) since a bare reference has
// no modifier to supply a fallback.
func lookupBare(cfg *Config, name string) (val string, isAt bool, err error) {
	if !isSetBare(cfg, name) {
		if err := checkUnset(cfg, name); err != nil {
			return "", false, err
		}
	}
	return rawLookup(cfg, name)
}

func checkUnset(cfg *Config, name string) error {
	if cfg.OnUnset == nil {
		return nil
	}
	return cfg.OnUnset(name)
}

// splitParamName extracts the parameter name from the text inside
// ${...} (after any leading '#' length marker has been stripped by the
// caller), returning the name and the remaining modifier text.
func splitParamName(s string) (name, rest string) {
	if s == "" {
		return "", ""
	}
	c := s[0]
	switch {
	case strings.ContainsRune("?$!#@*-", rune(c)):
		return string(c), s[1:]
	case c >= '0' && c <= '9':
		i := 1
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		return s[:i], s[i:]
	case c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z'):
		i := 1
		for i < len(s) {
			d := s[i]
			if d == '_' || ('a' <= d && d <= 'z') || ('A' <= d && d <= 'Z') || ('0' <= d && d <= '9') {
				i++
				continue
			}
			break
		}
		return s[:i], s[i:]
	}
	return "", s
}

var modOps = []string{":-", ":=", ":?", ":+", "##", "%%", "-", "=", "?", "+", "#", "%"}

func splitModifier(s string) (op, word string) {
	for _, o := range modOps {
		if strings.HasPrefix(s, o) {
			return o, s[len(o):]
		}
	}
	return "", s
}

func expandModWord(cfg *Config, word string) (string, error) {
	pieces, err := expandUnquoted(cfg, word)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, p := range pieces {
		b.WriteString(p.text)
	}
	return b.String(), nil
}

// expandParamExp expands the interior of a ${...} form (spec §4.3,
// "Parameter expansion"): plain lookup, length (`${#name}`), the four
// fallback modifiers (`:-` `:=` `:?` `:+` and their unset-only variants),
// and the four pattern-trim modifiers (`#` `##` `%` `%%`).
func expandParamExp(cfg *Config, body string) (string, error) {
	length := false
	if strings.HasPrefix(body, "#") && body != "#" {
		length = true
		body = body[1:]
	}

	name, rest := splitParamName(body)
	if name == "" {
		return "", fmt.Errorf("bad substitution: ${%s}", body)
	}

	if length {
		if name == "@" || name == "*" {
			return strconv.Itoa(len(cfg.Env.Positional())), nil
		}
		raw, _, err := rawLookup(cfg, name)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(len(raw)), nil
	}

	isUnset := !isSetBare(cfg, name)
	raw, _, err := rawLookup(cfg, name)
	if err != nil {
		return "", err
	}

	if rest == "" {
		if isUnset {
			if err := checkUnset(cfg, name); err != nil {
				return "", err
			}
		}
		return raw, nil
	}

	op, word := splitModifier(rest)
	switch op {
	case ":-", "-":
		trigger := isUnset
		if op == ":-" {
			trigger = isUnset || raw == ""
		}
		if trigger {
			return expandModWord(cfg, word)
		}
		return raw, nil
	case ":=", "=":
		trigger := isUnset
		if op == ":=" {
			trigger = isUnset || raw == ""
		}
		if trigger {
			val, err := expandModWord(cfg, word)
			if err != nil {
				return "", err
			}
			if wenv, ok := cfg.Env.(WriteEnviron); ok {
				if err := wenv.Set(name, val); err != nil {
					return "", err
				}
			}
			return val, nil
		}
		return raw, nil
	case ":?", "?":
		trigger := isUnset
		if op == ":?" {
			trigger = isUnset || raw == ""
		}
		if trigger {
			msg, err := expandModWord(cfg, word)
			if err != nil {
				return "", err
			}
			if msg == "" {
				msg = "parameter null or not set"
			}
			return "", fmt.Errorf("%s: %s", name, msg)
		}
		return raw, nil
	case ":+", "+":
		trigger := !isUnset
		if op == ":+" {
			trigger = !isUnset && raw != ""
		}
		if trigger {
			return expandModWord(cfg, word)
		}
		return "", nil
	case "##", "#":
		if isUnset {
			if err := checkUnset(cfg, name); err != nil {
				return "", err
			}
		}
		pat, err := expandModWord(cfg, word)
		if err != nil {
			return "", err
		}
		return pattern.TrimPrefix(raw, pat, op == "##"), nil
	case "%%", "%":
		if isUnset {
			if err := checkUnset(cfg, name); err != nil {
				return "", err
			}
		}
		pat, err := expandModWord(cfg, word)
		if err != nil {
			return "", err
		}
		return pattern.TrimSuffix(raw, pat, op == "%%"), nil
	}
	return raw, nil
}
