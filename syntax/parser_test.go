package syntax

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/xaonfc/posish/ast"
)

func parseOne(c *qt.C, src string) ast.Node {
	p := NewParser(src, "test", nil, nil)
	f, err := p.Parse()
	c.Assert(err, qt.IsNil)
	c.Assert(len(f.Stmts), qt.Equals, 1)
	return f.Stmts[0].Cmd
}

func TestParseSimpleCommand(t *testing.T) {
	c := qt.New(t)
	cmd, ok := parseOne(c, "echo hello world\n").(*ast.Command)
	c.Assert(ok, qt.IsTrue)
	c.Assert(len(cmd.Args), qt.Equals, 3)
	c.Check(cmd.Args[0].Raw, qt.Equals, "echo")
	c.Check(cmd.Args[1].Raw, qt.Equals, "hello")
	c.Check(cmd.Args[2].Raw, qt.Equals, "world")
}

func TestParseAssignmentOnly(t *testing.T) {
	c := qt.New(t)
	cmd, ok := parseOne(c, "FOO=bar\n").(*ast.Command)
	c.Assert(ok, qt.IsTrue)
	c.Assert(len(cmd.Assigns), qt.Equals, 1)
	c.Check(cmd.Assigns[0].Name, qt.Equals, "FOO")
	c.Check(cmd.Assigns[0].Value.Raw, qt.Equals, "bar")
	c.Check(len(cmd.Args), qt.Equals, 0)
}

func TestParsePipeline(t *testing.T) {
	c := qt.New(t)
	pl, ok := parseOne(c, "a | b | c\n").(*ast.Pipeline)
	c.Assert(ok, qt.IsTrue)
	c.Check(pl.Negated, qt.IsFalse)
	_, leftIsCmd := pl.Left.(*ast.Command)
	c.Check(leftIsCmd, qt.IsTrue)
	right, ok := pl.Right.(*ast.Pipeline)
	c.Assert(ok, qt.IsTrue)
	_, rightLeftIsCmd := right.Left.(*ast.Command)
	c.Check(rightLeftIsCmd, qt.IsTrue)
}

func TestParseAndOr(t *testing.T) {
	c := qt.New(t)
	ao, ok := parseOne(c, "a && b || c\n").(*ast.AndOr)
	c.Assert(ok, qt.IsTrue)
	c.Check(ao.Or, qt.IsTrue)
	left, ok := ao.Left.(*ast.AndOr)
	c.Assert(ok, qt.IsTrue)
	c.Check(left.Or, qt.IsFalse)
}

func TestParseIf(t *testing.T) {
	c := qt.New(t)
	src := "if a; then b; else c; fi\n"
	n, ok := parseOne(c, src).(*ast.If)
	c.Assert(ok, qt.IsTrue)
	c.Assert(n.Cond, qt.Not(qt.IsNil))
	c.Assert(n.Then, qt.Not(qt.IsNil))
	c.Assert(n.Else, qt.Not(qt.IsNil))
}

func TestParseWhile(t *testing.T) {
	c := qt.New(t)
	n, ok := parseOne(c, "while a; do b; done\n").(*ast.Loop)
	c.Assert(ok, qt.IsTrue)
	c.Check(n.Until, qt.IsFalse)
}

func TestParseFor(t *testing.T) {
	c := qt.New(t)
	n, ok := parseOne(c, "for x in a b c; do echo $x; done\n").(*ast.For)
	c.Assert(ok, qt.IsTrue)
	c.Check(n.VarName, qt.Equals, "x")
	c.Assert(len(n.Words), qt.Equals, 3)
	c.Check(n.Words[2].Raw, qt.Equals, "c")
}

func TestParseCase(t *testing.T) {
	c := qt.New(t)
	n, ok := parseOne(c, "case $x in a|b) echo ab ;; *) echo other ;; esac\n").(*ast.Case)
	c.Assert(ok, qt.IsTrue)
	c.Assert(len(n.Items), qt.Equals, 2)
	c.Check(len(n.Items[0].Patterns), qt.Equals, 2)
}

func TestParseSubshellAndGroup(t *testing.T) {
	c := qt.New(t)
	_, ok := parseOne(c, "( a; b )\n").(*ast.Subshell)
	c.Check(ok, qt.IsTrue)
	_, ok2 := parseOne(c, "{ a; b; }\n").(*ast.Group)
	c.Check(ok2, qt.IsTrue)
}

func TestParseFuncDecl(t *testing.T) {
	c := qt.New(t)
	n, ok := parseOne(c, "foo() { echo hi; }\n").(*ast.FuncDecl)
	c.Assert(ok, qt.IsTrue)
	c.Check(n.Name, qt.Equals, "foo")
}

func TestParseRedirections(t *testing.T) {
	c := qt.New(t)
	cmd, ok := parseOne(c, "cmd > out.txt < in.txt\n").(*ast.Command)
	c.Assert(ok, qt.IsTrue)
	c.Assert(len(cmd.Redirs), qt.Equals, 2)
	c.Check(cmd.Redirs[0].Kind, qt.Equals, ast.RedirFileOut)
	c.Check(cmd.Redirs[0].Target.Raw, qt.Equals, "out.txt")
	c.Check(cmd.Redirs[1].Kind, qt.Equals, ast.RedirFileIn)
}

func TestParseHeredoc(t *testing.T) {
	c := qt.New(t)
	src := "cat <<EOF\nhello ${x:-dflt}\nEOF\n"
	cmd, ok := parseOne(c, src).(*ast.Command)
	c.Assert(ok, qt.IsTrue)
	c.Assert(len(cmd.Redirs), qt.Equals, 1)
	c.Check(cmd.Redirs[0].Kind, qt.Equals, ast.RedirHeredoc)
	c.Check(cmd.Redirs[0].Hdoc, qt.Equals, "hello ${x:-dflt}\n")
}

func TestAliasSubstitution(t *testing.T) {
	c := qt.New(t)
	aliases := newFakeAliases(map[string]string{"ll": "ls -l "})
	p := NewParser("ll /tmp\n", "test", aliases, nil)
	f, err := p.Parse()
	c.Assert(err, qt.IsNil)
	cmd, ok := f.Stmts[0].Cmd.(*ast.Command)
	c.Assert(ok, qt.IsTrue)
	c.Assert(len(cmd.Args), qt.Equals, 3)
	c.Check(cmd.Args[0].Raw, qt.Equals, "ls")
	c.Check(cmd.Args[1].Raw, qt.Equals, "-l")
	c.Check(cmd.Args[2].Raw, qt.Equals, "/tmp")
}

type fakeAliases struct{ m map[string]string }

func newFakeAliases(m map[string]string) *fakeAliases { return &fakeAliases{m: m} }

func (f *fakeAliases) Lookup(name string) (string, bool) {
	v, ok := f.m[name]
	return v, ok
}
