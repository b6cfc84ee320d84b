package syntax

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/xaonfc/posish/token"
)

func TestLexerWords(t *testing.T) {
	c := qt.New(t)
	cases := []struct {
		src  string
		kind token.Kind
		val  string
	}{
		{"echo", token.WORD, "echo"},
		{"if", token.KEYWORD, "if"},
		{"'single quoted'", token.WORD, "'single quoted'"},
		{`"double $x"`, token.WORD, `"double $x"`},
	}
	for _, tc := range cases {
		l := NewLexer(tc.src)
		tok, err := l.Next(true)
		c.Assert(err, qt.IsNil)
		c.Check(tok.Kind, qt.Equals, tc.kind)
		c.Check(tok.Value, qt.Equals, tc.val)
	}
}

func TestLexerOperators(t *testing.T) {
	c := qt.New(t)
	l := NewLexer("a && b || c")
	var kinds []token.Kind
	for {
		tok, err := l.Next(kinds == nil)
		c.Assert(err, qt.IsNil)
		if tok.Kind == token.EOF {
			break
		}
		kinds = append(kinds, tok.Kind)
	}
	c.Assert(len(kinds) > 0, qt.IsTrue)
	c.Check(kinds, qt.DeepEquals, []token.Kind{token.WORD, token.OPERATOR, token.WORD, token.OPERATOR, token.WORD})
}

func TestProbeIncompleteQuote(t *testing.T) {
	c := qt.New(t)
	inc := Probe("echo 'unterminated")
	c.Check(inc.Complete, qt.IsFalse)
	c.Check(inc.OpenSingleQuote, qt.IsTrue)

	inc2 := Probe("echo done\n")
	c.Check(inc2.Complete, qt.IsTrue)
}

func TestReadHeredocBody(t *testing.T) {
	c := qt.New(t)
	l := NewLexer("line one\nline two\nEOF\nrest")
	body := l.ReadHeredocBody("EOF", false)
	c.Check(body, qt.Equals, "line one\nline two\n")
}
