package expand

import (
	"fmt"
	"os"
	"os/user"
	"strings"

	"github.com/xaonfc/posish/arena"
	"github.com/xaonfc/posish/ast"
	"github.com/xaonfc/posish/pattern"
	"github.com/xaonfc/posish/syntax"
)

// Config carries everything the expander needs from its caller (spec §4.3,
// "Interface to executor").
type Config struct {
	Env Environ

	// CmdSubst re-enters the Lexer/Parser/Executor on src (the inner text
	// of a $(...) or `...`) with stdout captured, per spec §4.3 stage 4.
	// This is the interpreter's job, not the expander's, so it is injected.
	CmdSubst func(src string) (string, error)

	Dir    string // cwd used to resolve relative globs
	NoGlob bool   // set -f / -o noglob (spec §6)

	// OnUnset is consulted when a bare $NAME/${NAME} reference is unset
	// and the nounset option (spec §6, -u) is active; returning a non-nil
	// error aborts the expansion (spec §7, Expansion error).
	OnUnset func(name string) error

	// Arena backs the scratch text built while assembling this word's
	// pieces (spec §3, "Lifetime is one top-level command (arena-scoped)
	// for parser output"). Nil is valid; Arena.NewBuilder falls back to
	// the heap.
	Arena *arena.Arena
}

// piece is one chunk of expanded text together with whether it is eligible
// for field splitting and pathname expansion (spec §4.3, "Quoting
// discipline": "Only unquoted expansion output participates").
type piece struct {
	text       string
	quoted     bool
	fieldBreak bool // starts a new field even though quoted ("$@" parameters after the first)
}

// ToString expands word with no field splitting or globbing (spec §4.3,
// "expand-word-to-string" — used for assignments, heredoc targets, case
// subjects, arithmetic operands).
func ToString(cfg *Config, w *ast.Word) (string, error) {
	if w == nil {
		return "", nil
	}
	pieces, err := expandUnquoted(cfg, w.Raw)
	if err != nil {
		return "", err
	}
	b := cfg.Arena.NewBuilder(len(w.Raw))
	for _, p := range pieces {
		b.WriteString(p.text)
	}
	return b.String(), nil
}

// ToFields expands word into zero or more fields with splitting and
// globbing applied (spec §4.3, "expand-word-to-fields" — used for command
// arguments and for-list words).
func ToFields(cfg *Config, w *ast.Word) ([]string, error) {
	if w == nil {
		return nil, nil
	}
	pieces, err := expandUnquoted(cfg, w.Raw)
	if err != nil {
		return nil, err
	}
	fields := splitFields(cfg, pieces)
	if cfg.NoGlob {
		return fields, nil
	}
	var out []string
	for i, f := range fields {
		if !fieldHasUnquotedGlob(pieces, fields, i, f) {
			out = append(out, f)
			continue
		}
		matches, err := pattern.Glob(cfg.Dir, f)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			out = append(out, f) // spec §4.3 stage 6: zero matches keeps it literal
			continue
		}
		out = append(out, matches...)
	}
	return out, nil
}

// fieldHasUnquotedGlob reports whether field f contains a glob
// metacharacter and at least one unquoted piece of the word does too. The
// check is per word, not per field: when a word mixes a quoted and an
// unquoted metacharacter, every field of it that contains one is treated as
// glob-eligible.
func fieldHasUnquotedGlob(pieces []piece, _ []string, _ int, f string) bool {
	if !strings.ContainsAny(f, "*?[") {
		return false
	}
	for _, p := range pieces {
		if !p.quoted && strings.ContainsAny(p.text, "*?[") {
			return true
		}
	}
	return false
}

// splitFields implements stage 5 (spec §4.3): IFS splitting applies only to
// unquoted pieces; quoted pieces are never split and always contribute to
// whichever field is open when they're encountered.
func splitFields(cfg *Config, pieces []piece) []string {
	ifs := " \t\n"
	if vr := cfg.Env.Get("IFS"); vr.IsSet() {
		ifs = vr.Str
	}
	var fields []string
	cur := cfg.Arena.NewBuilder(32)
	haveCur := false
	flush := func() {
		if haveCur {
			fields = append(fields, cur.String())
			cur.Reset()
			haveCur = false
		}
	}
	for _, p := range pieces {
		if p.quoted || ifs == "" {
			if p.fieldBreak {
				flush()
			}
			cur.WriteString(p.text)
			haveCur = true
			continue
		}
		start := 0
		for i := 0; i < len(p.text); i++ {
			c := p.text[i]
			if !strings.ContainsRune(ifs, rune(c)) {
				continue
			}
			cur.WriteString(p.text[start:i])
			if i > start || (c != ' ' && c != '\t' && c != '\n') {
				haveCur = true
			}
			flush()
			start = i + 1
		}
		cur.WriteString(p.text[start:])
		if start < len(p.text) {
			haveCur = true
		}
	}
	flush()
	return fields
}

// expandUnquoted scans s as unquoted top-level word text: tilde prefix,
// bare/braced parameter expansion, arithmetic expansion, command
// substitution, and single/double-quoted spans (spec §4.3 stages 1-4).
func expandUnquoted(cfg *Config, s string) ([]piece, error) {
	var out []piece
	lit := cfg.Arena.NewBuilder(len(s))
	flushLit := func() {
		if lit.Len() > 0 {
			out = append(out, piece{text: lit.String(), quoted: false})
			lit.Reset()
		}
	}

	// Tilde prefix (spec §4.3 stage 1): only at the very start of the word.
	if strings.HasPrefix(s, "~") {
		rest := s[1:]
		end := strings.IndexAny(rest, "/")
		name := rest
		tail := ""
		if end >= 0 {
			name = rest[:end]
			tail = rest[end:]
		}
		if home, ok := tildeHome(name); ok {
			out = append(out, piece{text: home, quoted: false})
			s = tail
		}
	}

	i := 0
	for i < len(s) {
		b := s[i]
		switch b {
		case '\\':
			if i+1 < len(s) {
				if s[i+1] == '\n' {
					i += 2
					continue
				}
				lit.WriteByte(s[i+1])
				i += 2
				continue
			}
			lit.WriteByte('\\')
			i++
		case '\'':
			flushLit()
			j := strings.IndexByte(s[i+1:], '\'')
			if j < 0 {
				return nil, fmt.Errorf("unterminated '")
			}
			out = append(out, piece{text: s[i+1 : i+1+j], quoted: true})
			i += j + 2
		case '"':
			flushLit()
			end, err := findDoubleQuoteEnd(s, i+1)
			if err != nil {
				return nil, err
			}
			dpieces, err := expandDouble(cfg, s[i+1:end])
			if err != nil {
				return nil, err
			}
			out = append(out, dpieces...)
			i = end + 1
		case '`':
			flushLit()
			inner, consumed, ok := syntax.FindBacktick(s[i:])
			if !ok {
				lit.WriteByte(b)
				i++
				continue
			}
			val, err := runCmdSubst(cfg, inner)
			if err != nil {
				return nil, err
			}
			out = append(out, piece{text: val, quoted: false})
			i += consumed
		case '$':
			val, consumed, err := expandDollar(cfg, s[i+1:], false)
			if err != nil {
				return nil, err
			}
			if consumed == 0 {
				lit.WriteByte('$')
				i++
				continue
			}
			flushLit()
			out = append(out, val...)
			i += 1 + consumed
		default:
			lit.WriteByte(b)
			i++
		}
	}
	flushLit()
	return out, nil
}

// expandDouble expands the interior of a double-quoted span (spec §4.3:
// "allow \ to escape $ ` \" \\ newline; other backslashes preserved
// literally"). The whole result is one quoted piece, except "$@" which
// expands to one piece per positional parameter (spec §8, boundary cases).
func expandDouble(cfg *Config, s string) ([]piece, error) {
	if s == "$@" {
		pos := cfg.Env.Positional()
		if len(pos) == 0 {
			return nil, nil
		}
		out := make([]piece, len(pos))
		for i, v := range pos {
			out[i] = piece{text: v, quoted: true, fieldBreak: i > 0}
		}
		return out, nil
	}

	b := cfg.Arena.NewBuilder(len(s))
	i := 0
	for i < len(s) {
		c := s[i]
		switch c {
		case '\\':
			if i+1 < len(s) {
				switch s[i+1] {
				case '$', '`', '"', '\\':
					b.WriteByte(s[i+1])
					i += 2
					continue
				case '\n':
					i += 2
					continue
				}
			}
			b.WriteByte('\\')
			i++
		case '`':
			inner, consumed, ok := syntax.FindBacktick(s[i:])
			if !ok {
				b.WriteByte(c)
				i++
				continue
			}
			val, err := runCmdSubst(cfg, inner)
			if err != nil {
				return nil, err
			}
			b.WriteString(val)
			i += consumed
		case '$':
			val, consumed, err := expandDollar(cfg, s[i+1:], true)
			if err != nil {
				return nil, err
			}
			if consumed == 0 {
				b.WriteByte('$')
				i++
				continue
			}
			for _, p := range val {
				b.WriteString(p.text)
			}
			i += 1 + consumed
		default:
			b.WriteByte(c)
			i++
		}
	}
	return []piece{{text: b.String(), quoted: true}}, nil
}

func findDoubleQuoteEnd(s string, i int) (int, error) {
	for i < len(s) {
		switch s[i] {
		case '\\':
			i += 2
		case '"':
			return i, nil
		default:
			i++
		}
	}
	return 0, fmt.Errorf("unterminated \"")
}

// expandDollar dispatches on what follows a '$': ${...}, $((...)), $(...),
// or a bare special/positional/name parameter. consumed is the number of
// bytes of s (which does NOT include the leading '$') that were consumed;
// 0 means s didn't start a recognized form and the '$' should be literal.
func expandDollar(cfg *Config, s string, insideDouble bool) ([]piece, int, error) {
	if kind, inner, consumed, ok := syntax.SplitDollar(s); ok {
		switch kind {
		case '{':
			val, err := expandParamExp(cfg, inner)
			if err != nil {
				return nil, 0, err
			}
			return []piece{{text: val, quoted: insideDouble}}, consumed, nil
		case '(':
			val, err := runCmdSubst(cfg, inner)
			if err != nil {
				return nil, 0, err
			}
			return []piece{{text: val, quoted: insideDouble}}, consumed, nil
		case 'A':
			n, err := EvalArith(cfg, inner)
			if err != nil {
				return nil, 0, err
			}
			return []piece{{text: fmt.Sprintf("%d", n), quoted: insideDouble}}, consumed, nil
		}
	}
	if name, consumed, ok := scanBareParam(s); ok {
		val, isAt, err := lookupBare(cfg, name)
		if err != nil {
			return nil, 0, err
		}
		if isAt && !insideDouble {
			// unquoted $@ behaves like unquoted $* (spec §4.3).
			return []piece{{text: val, quoted: false}}, consumed, nil
		}
		return []piece{{text: val, quoted: insideDouble}}, consumed, nil
	}
	return nil, 0, nil
}

func runCmdSubst(cfg *Config, src string) (string, error) {
	if cfg.CmdSubst == nil {
		return "", nil
	}
	out, err := cfg.CmdSubst(src)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}

func tildeHome(name string) (string, bool) {
	if name == "" {
		if h := os.Getenv("HOME"); h != "" {
			return h, true
		}
		return "", false
	}
	u, err := user.Lookup(name)
	if err != nil {
		return "", false
	}
	return u.HomeDir, true
}
