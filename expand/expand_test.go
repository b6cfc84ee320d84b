package expand

import (
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/xaonfc/posish/ast"
)

// fakeEnv is a minimal in-memory Environ/WriteEnviron for expander tests,
// grounded on the shape interp.VarStore implements for real.
type fakeEnv struct {
	vars       map[string]Variable
	positional []string
	name0      string
	status     int
	bgPid      int
	flags      string
	pid        int
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{vars: map[string]Variable{}, name0: "sh"}
}

func (e *fakeEnv) Get(name string) Variable { return e.vars[name] }
func (e *fakeEnv) Positional() []string     { return e.positional }
func (e *fakeEnv) Name0() string            { return e.name0 }
func (e *fakeEnv) LastStatus() int          { return e.status }
func (e *fakeEnv) LastBackgroundPID() int   { return e.bgPid }
func (e *fakeEnv) Flags() string            { return e.flags }
func (e *fakeEnv) PID() int                 { return e.pid }
func (e *fakeEnv) Set(name, value string) error {
	e.vars[name] = Variable{Set: true, Str: value}
	return nil
}

func word(raw string) *ast.Word { return &ast.Word{Raw: raw} }

func cfgFor(env *fakeEnv) *Config {
	return &Config{Env: env}
}

func TestToStringLiteral(t *testing.T) {
	c := qt.New(t)
	cfg := cfgFor(newFakeEnv())
	got, err := ToString(cfg, word("hello world"))
	c.Assert(err, qt.IsNil)
	c.Check(got, qt.Equals, "hello world")
}

func TestParameterExpansionBasic(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnv()
	env.vars["FOO"] = Variable{Set: true, Str: "bar"}
	cfg := cfgFor(env)
	got, err := ToString(cfg, word("$FOO-${FOO}"))
	c.Assert(err, qt.IsNil)
	c.Check(got, qt.Equals, "bar-bar")
}

func TestParameterDefaultValue(t *testing.T) {
	c := qt.New(t)
	cfg := cfgFor(newFakeEnv())
	got, err := ToString(cfg, word("${x:-dflt}"))
	c.Assert(err, qt.IsNil)
	c.Check(got, qt.Equals, "dflt")
}

func TestParameterAssignDefault(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnv()
	cfg := cfgFor(env)
	got, err := ToString(cfg, word("${x:=dflt}"))
	c.Assert(err, qt.IsNil)
	c.Check(got, qt.Equals, "dflt")
	c.Check(env.vars["x"].Str, qt.Equals, "dflt")
}

func TestParameterPrefixSuffixTrim(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnv()
	env.vars["FILE"] = Variable{Set: true, Str: "foo.tar.gz"}
	cfg := cfgFor(env)

	got, err := ToString(cfg, word("${FILE%.gz}"))
	c.Assert(err, qt.IsNil)
	c.Check(got, qt.Equals, "foo.tar")

	got, err = ToString(cfg, word("${FILE%%.*}"))
	c.Assert(err, qt.IsNil)
	c.Check(got, qt.Equals, "foo")

	got, err = ToString(cfg, word("${FILE#*.}"))
	c.Assert(err, qt.IsNil)
	c.Check(got, qt.Equals, "tar.gz")
}

func TestParameterLength(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnv()
	env.vars["FOO"] = Variable{Set: true, Str: "hello"}
	cfg := cfgFor(env)
	got, err := ToString(cfg, word("${#FOO}"))
	c.Assert(err, qt.IsNil)
	c.Check(got, qt.Equals, "5")
}

func TestArithmeticExpansion(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnv()
	env.vars["x"] = Variable{Set: true, Str: "4"}
	cfg := cfgFor(env)
	got, err := ToString(cfg, word("$((x * 3 + 1))"))
	c.Assert(err, qt.IsNil)
	c.Check(got, qt.Equals, "13")
}

func TestCommandSubstitution(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnv()
	cfg := cfgFor(env)
	cfg.CmdSubst = func(src string) (string, error) {
		return fmt.Sprintf("ran:%s\n\n", src), nil
	}
	got, err := ToString(cfg, word("$(echo hi)"))
	c.Assert(err, qt.IsNil)
	c.Check(got, qt.Equals, "ran:echo hi")
}

func TestFieldSplittingDefaultIFS(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnv()
	env.vars["LIST"] = Variable{Set: true, Str: "a  b\tc"}
	cfg := cfgFor(env)
	fields, err := ToFields(cfg, word("$LIST"))
	c.Assert(err, qt.IsNil)
	c.Check(fields, qt.DeepEquals, []string{"a", "b", "c"})
}

func TestFieldSplittingQuotedIsNotSplit(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnv()
	env.vars["LIST"] = Variable{Set: true, Str: "a b c"}
	cfg := cfgFor(env)
	fields, err := ToFields(cfg, word(`"$LIST"`))
	c.Assert(err, qt.IsNil)
	c.Check(fields, qt.DeepEquals, []string{"a b c"})
}

func TestQuoteRemoval(t *testing.T) {
	c := qt.New(t)
	cfg := cfgFor(newFakeEnv())
	got, err := ToString(cfg, word(`'single' "double" plain`))
	c.Assert(err, qt.IsNil)
	c.Check(got, qt.Equals, "single double plain")
}

func TestTildeExpansionBareHome(t *testing.T) {
	c := qt.New(t)
	t.Setenv("HOME", "/home/tester")
	cfg := cfgFor(newFakeEnv())
	got, err := ToString(cfg, word("~/work"))
	c.Assert(err, qt.IsNil)
	c.Check(got, qt.Equals, "/home/tester/work")
}

func TestNounsetError(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnv()
	cfg := cfgFor(env)
	cfg.OnUnset = func(name string) error { return fmt.Errorf("%s: unbound variable", name) }
	_, err := ToString(cfg, word("$UNSET_VAR"))
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestPositionalDollarAt(t *testing.T) {
	c := qt.New(t)
	env := newFakeEnv()
	env.positional = []string{"one", "two three", "four"}
	cfg := cfgFor(env)
	fields, err := ToFields(cfg, word(`"$@"`))
	c.Assert(err, qt.IsNil)
	c.Check(fields, qt.DeepEquals, []string{"one", "two three", "four"})
}

func TestPathnameExpansionNoMatchStaysLiteral(t *testing.T) {
	c := qt.New(t)
	cfg := cfgFor(newFakeEnv())
	cfg.Dir = t.TempDir()
	fields, err := ToFields(cfg, word("*.nonexistent"))
	c.Assert(err, qt.IsNil)
	c.Check(fields, qt.DeepEquals, []string{"*.nonexistent"})
}
