// Package syntax implements the POSIX shell lexer and recursive-descent
// parser (spec §4.1, §4.2): a byte stream becomes a token stream, which
// becomes an AST. Grounded on the teacher's (mvdan.cc/sh/v3) syntax/lexer.go
// and syntax/parser.go quote-tracking and recursive-descent structure,
// narrowed to the POSIX grammar only (no arrays, [[ ]], process
// substitution, or $'...' — those are spec Non-goals).
package syntax

import (
	"fmt"
	"strings"

	"github.com/xaonfc/posish/token"
)

// ctxKind identifies one entry on the Lexer's nesting stack while assembling
// a WORD token (spec §4.1: "track nested quoting state").
type ctxKind int

const (
	ctxSingle ctxKind = iota
	ctxDouble
	ctxDollarParen  // $( ... )
	ctxDollarDParen // $(( ... ))
	ctxDollarBrace  // ${ ... }
	ctxBacktick     // ` ... `
)

// Lexer tokenizes shell source on demand. It is not safe for concurrent use.
type Lexer struct {
	src  string
	pos  int
	line int
}

// NewLexer returns a Lexer positioned at the start of src.
func NewLexer(src string) *Lexer {
	return &Lexer{src: src, line: 1}
}

// Pos returns the current byte offset, used by the parser to slice out
// heredoc bodies and by the incompleteness probe.
func (l *Lexer) Pos() int { return l.pos }

// Line returns the current source line.
func (l *Lexer) Line() int { return l.line }

func (l *Lexer) peekByte() (byte, bool) {
	if l.pos >= len(l.src) {
		return 0, false
	}
	return l.src[l.pos], true
}

func (l *Lexer) byteAt(off int) (byte, bool) {
	if l.pos+off >= len(l.src) {
		return 0, false
	}
	return l.src[l.pos+off], true
}

// Next returns the next token. cmdStart tells the lexer whether a WORD at
// this position should be classified as KEYWORD when it matches a reserved
// word (spec §3: "Keywords recognized only at command-start position").
func (l *Lexer) Next(cmdStart bool) (token.Token, error) {
	l.skipBlanksAndComments()
	if l.pos >= len(l.src) {
		return token.Token{Kind: token.EOF, Line: l.line}, nil
	}

	b := l.src[l.pos]
	if b == '\n' {
		l.pos++
		tok := token.Token{Kind: token.NEWLINE, Line: l.line}
		l.line++
		return tok, nil
	}

	// IO_NUMBER: digits immediately followed by '<' or '>'.
	if b >= '0' && b <= '9' {
		end := l.pos
		for end < len(l.src) && l.src[end] >= '0' && l.src[end] <= '9' {
			end++
		}
		if end < len(l.src) && (l.src[end] == '<' || l.src[end] == '>') {
			v := l.src[l.pos:end]
			l.pos = end
			return token.Token{Kind: token.IONUMBER, Value: v, Line: l.line}, nil
		}
	}

	if op, lit, ok := token.MatchOperator(l.src[l.pos:]); ok {
		l.pos += len(lit)
		return token.Token{Kind: token.OPERATOR, Op: op, Value: lit, Line: l.line}, nil
	}

	start := l.pos
	startLine := l.line
	if err := l.scanWord(); err != nil {
		return token.Token{}, err
	}
	raw := l.src[start:l.pos]
	kind := token.WORD
	if cmdStart && token.Keywords[raw] {
		kind = token.KEYWORD
	}
	return token.Token{Kind: kind, Value: raw, Line: startLine}, nil
}

func (l *Lexer) skipBlanksAndComments() {
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case ' ', '\t', '\r':
			l.pos++
		case '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

func isWordBreak(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '&', '|', ';', '<', '>', '(', ')':
		return true
	}
	return false
}

// scanWord consumes one WORD's raw text, honoring quote/backslash/
// substitution nesting (spec §4.1). l.pos ends just past the word.
func (l *Lexer) scanWord() error {
	var stack []ctxKind
	top := func() (ctxKind, bool) {
		if len(stack) == 0 {
			return 0, false
		}
		return stack[len(stack)-1], true
	}

	for l.pos < len(l.src) {
		b := l.src[l.pos]
		k, inCtx := top()

		switch {
		case inCtx && k == ctxSingle:
			if b == '\'' {
				stack = stack[:len(stack)-1]
			}
			if b == '\n' {
				l.line++
			}
			l.pos++
			continue

		case b == '\\' && (!inCtx || k != ctxSingle):
			nb, ok := l.byteAt(1)
			if !ok {
				l.pos++
				continue
			}
			if nb == '\n' {
				// line continuation: both bytes removed from semantic
				// content but kept in raw text; quote-removal strips them.
				l.pos += 2
				l.line++
				continue
			}
			l.pos += 2
			continue

		case inCtx && k == ctxDouble:
			switch b {
			case '"':
				stack = stack[:len(stack)-1]
				l.pos++
			case '$':
				l.pos++
				l.scanDollar(&stack)
			case '`':
				stack = append(stack, ctxBacktick)
				l.pos++
			case '\n':
				l.line++
				l.pos++
			default:
				l.pos++
			}
			continue

		case inCtx && k == ctxBacktick:
			if b == '`' {
				stack = stack[:len(stack)-1]
			}
			if b == '\n' {
				l.line++
			}
			l.pos++
			continue

		case inCtx && (k == ctxDollarParen || k == ctxDollarDParen):
			switch b {
			case '(':
				stack = append(stack, k)
				l.pos++
			case ')':
				stack = stack[:len(stack)-1]
				l.pos++
				if k == ctxDollarDParen {
					// $(( ... )) needs a second closing paren.
					if b2, ok := l.peekByte(); ok && b2 == ')' && len(stack) > 0 && stack[len(stack)-1] == ctxDollarDParen {
						stack = stack[:len(stack)-1]
						l.pos++
					}
				}
			case '\'':
				stack = append(stack, ctxSingle)
				l.pos++
			case '"':
				stack = append(stack, ctxDouble)
				l.pos++
			case '\n':
				l.line++
				l.pos++
			default:
				l.pos++
			}
			continue

		case inCtx && k == ctxDollarBrace:
			switch b {
			case '{':
				stack = append(stack, ctxDollarBrace)
				l.pos++
			case '}':
				stack = stack[:len(stack)-1]
				l.pos++
			case '\'':
				stack = append(stack, ctxSingle)
				l.pos++
			case '"':
				stack = append(stack, ctxDouble)
				l.pos++
			default:
				l.pos++
			}
			continue

		default: // unquoted, no nesting context active
			if len(stack) == 0 && isWordBreak(b) {
				return nil
			}
			switch b {
			case '\'':
				stack = append(stack, ctxSingle)
				l.pos++
			case '"':
				stack = append(stack, ctxDouble)
				l.pos++
			case '`':
				stack = append(stack, ctxBacktick)
				l.pos++
			case '$':
				l.pos++
				l.scanDollar(&stack)
			case '\n':
				if len(stack) == 0 {
					return nil
				}
				l.line++
				l.pos++
			default:
				l.pos++
			}
		}
	}
	if len(stack) > 0 {
		return fmt.Errorf("line %d: unexpected EOF while looking for matching quote or %q", l.line, closerFor(stack[len(stack)-1]))
	}
	return nil
}

func closerFor(k ctxKind) string {
	switch k {
	case ctxSingle:
		return "'"
	case ctxDouble:
		return "\""
	case ctxBacktick:
		return "`"
	case ctxDollarParen, ctxDollarDParen:
		return ")"
	case ctxDollarBrace:
		return "}"
	}
	return "?"
}

// scanDollar is called right after consuming a '$'; it classifies and
// pushes the right nesting context for $(...), $((...)), ${...}, or leaves
// a bare $NAME / $n / $special alone (those need no nesting tracking).
func (l *Lexer) scanDollar(stack *[]ctxKind) {
	b, ok := l.peekByte()
	if !ok {
		return
	}
	switch b {
	case '(':
		if b2, ok := l.byteAt(1); ok && b2 == '(' {
			l.pos += 2
			*stack = append(*stack, ctxDollarDParen)
			return
		}
		l.pos++
		*stack = append(*stack, ctxDollarParen)
	case '{':
		l.pos++
		*stack = append(*stack, ctxDollarBrace)
	default:
		// $NAME, $n, $$, $?, $!, $#, $@, $*, $- : bare reference, consumed
		// byte-by-byte by the outer default case on subsequent iterations.
	}
}

// Incompleteness reports whether src looks like a complete shell command,
// for the interactive driver's continuation prompt (spec §4.1,
// "Incompleteness probe" — an external entry point outside this core's
// scope, but the primitive it needs lives here).
type Incompleteness struct {
	Complete            bool
	OpenSingleQuote     bool
	OpenDoubleQuote     bool
	TrailingContinuation bool
}

// Probe scans src and reports its completeness without building an AST.
func Probe(src string) Incompleteness {
	l := NewLexer(src)
	var stack []ctxKind
	var inc Incompleteness
	for l.pos < len(l.src) {
		start := l.pos
		if err := l.scanWord(); err != nil {
			// scanWord returning an error means it hit EOF mid-quote;
			// reconstruct which quote was left open by re-scanning the
			// trailing state cheaply.
			break
		}
		l.skipBlanksAndComments()
		if l.pos < len(l.src) && l.src[l.pos] == '\n' {
			l.pos++
			l.line++
		}
		if l.pos == start {
			l.pos++ // an operator byte, which scanWord stops in front of
		}
	}
	_ = stack
	if strings.HasSuffix(strings.TrimRight(src, "\n"), "\\") {
		inc.TrailingContinuation = true
	}
	open := hasOpenQuote(src, &inc)
	inc.Complete = !open && !inc.TrailingContinuation
	return inc
}

// hasOpenQuote performs a simple single-pass scan (distinct from scanWord)
// to classify which quote, if any, was left open across the whole buffer —
// used only by Probe, which must never return an error.
func hasOpenQuote(src string, inc *Incompleteness) bool {
	single, double := false, false
	for i := 0; i < len(src); i++ {
		b := src[i]
		switch {
		case b == '\\' && !single:
			i++
		case b == '\'' && !double:
			single = !single
		case b == '"' && !single:
			double = !double
		}
	}
	inc.OpenSingleQuote = single
	inc.OpenDoubleQuote = double
	return single || double
}

// ReadHeredocBody reads whole lines from l's current position until a line
// (after optionally stripping leading tabs) equals delim exactly,
// concatenating accepted lines (spec §4.1, "Heredoc-body reader"). It
// leaves l positioned just after the delimiter line.
func (l *Lexer) ReadHeredocBody(delim string, stripTabs bool) string {
	var out strings.Builder
	for l.pos < len(l.src) {
		lineStart := l.pos
		nl := strings.IndexByte(l.src[l.pos:], '\n')
		var line string
		if nl < 0 {
			line = l.src[l.pos:]
			l.pos = len(l.src)
		} else {
			line = l.src[l.pos : l.pos+nl]
			l.pos += nl + 1
			l.line++
		}
		cmp := line
		if stripTabs {
			cmp = strings.TrimLeft(line, "\t")
		}
		if cmp == delim {
			return out.String()
		}
		body := line
		if stripTabs {
			body = strings.TrimLeft(line, "\t")
		}
		out.WriteString(body)
		out.WriteByte('\n')
		if nl < 0 {
			_ = lineStart
			break
		}
	}
	return out.String()
}
