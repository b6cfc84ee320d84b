package interp

import (
	"context"
	"os"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestEvalUnaryStringOperators(t *testing.T) {
	c := qt.New(t)

	ok, err := evalUnary("-z", "")
	c.Assert(err, qt.IsNil)
	c.Check(ok, qt.IsTrue)

	ok, err = evalUnary("-z", "x")
	c.Assert(err, qt.IsNil)
	c.Check(ok, qt.IsFalse)

	ok, err = evalUnary("-n", "x")
	c.Assert(err, qt.IsNil)
	c.Check(ok, qt.IsTrue)
}

func TestEvalUnaryFileOperators(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	file := dir + "/f.txt"
	c.Assert(os.WriteFile(file, []byte("hi"), 0o644), qt.IsNil)
	empty := dir + "/empty.txt"
	c.Assert(os.WriteFile(empty, nil, 0o644), qt.IsNil)

	ok, err := evalUnary("-f", file)
	c.Assert(err, qt.IsNil)
	c.Check(ok, qt.IsTrue)

	ok, err = evalUnary("-f", dir)
	c.Assert(err, qt.IsNil)
	c.Check(ok, qt.IsFalse)

	ok, err = evalUnary("-d", dir)
	c.Assert(err, qt.IsNil)
	c.Check(ok, qt.IsTrue)

	ok, err = evalUnary("-e", file)
	c.Assert(err, qt.IsNil)
	c.Check(ok, qt.IsTrue)

	ok, err = evalUnary("-e", dir+"/missing")
	c.Assert(err, qt.IsNil)
	c.Check(ok, qt.IsFalse)

	ok, err = evalUnary("-s", file)
	c.Assert(err, qt.IsNil)
	c.Check(ok, qt.IsTrue)

	ok, err = evalUnary("-s", empty)
	c.Assert(err, qt.IsNil)
	c.Check(ok, qt.IsFalse)
}

func TestEvalUnaryUnknownOperator(t *testing.T) {
	c := qt.New(t)
	_, err := evalUnary("-q", "x")
	c.Check(err, qt.Not(qt.IsNil))
}

func TestEvalBinaryStringComparisons(t *testing.T) {
	c := qt.New(t)

	ok, err := evalBinary("foo", "=", "foo")
	c.Assert(err, qt.IsNil)
	c.Check(ok, qt.IsTrue)

	ok, err = evalBinary("foo", "=", "bar")
	c.Assert(err, qt.IsNil)
	c.Check(ok, qt.IsFalse)

	ok, err = evalBinary("foo", "!=", "bar")
	c.Assert(err, qt.IsNil)
	c.Check(ok, qt.IsTrue)
}

func TestEvalBinaryNumericComparisons(t *testing.T) {
	c := qt.New(t)

	cases := []struct {
		lhs, op, rhs string
		want         bool
	}{
		{"3", "-eq", "3", true},
		{"3", "-eq", "4", false},
		{"3", "-ne", "4", true},
		{"3", "-lt", "4", true},
		{"4", "-lt", "3", false},
		{"3", "-le", "3", true},
		{"4", "-gt", "3", true},
		{"3", "-ge", "3", true},
	}
	for _, tc := range cases {
		ok, err := evalBinary(tc.lhs, tc.op, tc.rhs)
		c.Assert(err, qt.IsNil)
		c.Check(ok, qt.Equals, tc.want, qt.Commentf("%s %s %s", tc.lhs, tc.op, tc.rhs))
	}
}

func TestEvalBinaryNonNumericOperandErrors(t *testing.T) {
	c := qt.New(t)
	_, err := evalBinary("abc", "-eq", "3")
	c.Check(err, qt.Not(qt.IsNil))

	_, err = evalBinary("3", "-eq", "xyz")
	c.Check(err, qt.Not(qt.IsNil))
}

func TestEvalTestArity(t *testing.T) {
	c := qt.New(t)

	ok, err := evalTest(nil)
	c.Assert(err, qt.IsNil)
	c.Check(ok, qt.IsFalse)

	ok, err = evalTest([]string{"nonempty"})
	c.Assert(err, qt.IsNil)
	c.Check(ok, qt.IsTrue)

	ok, err = evalTest([]string{""})
	c.Assert(err, qt.IsNil)
	c.Check(ok, qt.IsFalse)

	ok, err = evalTest([]string{"-z", ""})
	c.Assert(err, qt.IsNil)
	c.Check(ok, qt.IsTrue)

	ok, err = evalTest([]string{"a", "=", "a"})
	c.Assert(err, qt.IsNil)
	c.Check(ok, qt.IsTrue)
}

func TestEvalTestNegation(t *testing.T) {
	c := qt.New(t)

	ok, err := evalTest([]string{"!", "-z", "x"})
	c.Assert(err, qt.IsNil)
	c.Check(ok, qt.IsFalse)

	ok, err = evalTest([]string{"!", "-n", ""})
	c.Assert(err, qt.IsNil)
	c.Check(ok, qt.IsTrue)
}

func TestEvalTestTooManyArgsErrors(t *testing.T) {
	c := qt.New(t)
	_, err := evalTest([]string{"a", "=", "b", "c", "d"})
	c.Check(err, qt.Not(qt.IsNil))
}

func TestBuiltinTestDispatch(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	r, _ := newBuiltinRunner(c)

	st, err := builtinTest(ctx, r, []string{"foo", "=", "foo"})
	c.Assert(err, qt.IsNil)
	c.Check(st, qt.Equals, 0)

	st, err = builtinTest(ctx, r, []string{"foo", "=", "bar"})
	c.Assert(err, qt.IsNil)
	c.Check(st, qt.Equals, 1)

	st, err = builtinTest(ctx, r, []string{"a", "=", "b", "c", "d"})
	c.Assert(err, qt.IsNil)
	c.Check(st, qt.Equals, 2)
}

func TestBuiltinBracketStripsTrailingBracket(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	r, _ := newBuiltinRunner(c)

	st, err := builtinBracket(ctx, r, []string{"1", "-lt", "2", "]"})
	c.Assert(err, qt.IsNil)
	c.Check(st, qt.Equals, 0)
}

func TestBuiltinBracketRequiresTrailingBracket(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	r, _ := newBuiltinRunner(c)

	st, err := builtinBracket(ctx, r, []string{"1", "-lt", "2"})
	c.Assert(err, qt.IsNil)
	c.Check(st, qt.Equals, 2)

	st, err = builtinBracket(ctx, r, nil)
	c.Assert(err, qt.IsNil)
	c.Check(st, qt.Equals, 2)
}
