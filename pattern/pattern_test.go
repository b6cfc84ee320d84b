package pattern

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestMatchStar(t *testing.T) {
	c := qt.New(t)
	ok, err := Match("foo*", "foobar")
	c.Assert(err, qt.IsNil)
	c.Check(ok, qt.IsTrue)

	ok, err = Match("foo*", "barfoo")
	c.Assert(err, qt.IsNil)
	c.Check(ok, qt.IsFalse)
}

func TestMatchQuestionMark(t *testing.T) {
	c := qt.New(t)
	ok, err := Match("a?c", "abc")
	c.Assert(err, qt.IsNil)
	c.Check(ok, qt.IsTrue)

	ok, err = Match("a?c", "ac")
	c.Assert(err, qt.IsNil)
	c.Check(ok, qt.IsFalse)
}

func TestMatchCharClass(t *testing.T) {
	c := qt.New(t)
	ok, err := Match("[abc]x", "bx")
	c.Assert(err, qt.IsNil)
	c.Check(ok, qt.IsTrue)

	ok, err = Match("[!abc]x", "dx")
	c.Assert(err, qt.IsNil)
	c.Check(ok, qt.IsTrue)

	ok, err = Match("[!abc]x", "ax")
	c.Assert(err, qt.IsNil)
	c.Check(ok, qt.IsFalse)
}

func TestMatchEscapedLiteral(t *testing.T) {
	c := qt.New(t)
	ok, err := Match(`\*literal`, "*literal")
	c.Assert(err, qt.IsNil)
	c.Check(ok, qt.IsTrue)
}

func TestTrimPrefixLongestVsShortest(t *testing.T) {
	c := qt.New(t)
	c.Check(TrimPrefix("aXbXc", "a*X", false), qt.Equals, "bXc")
	c.Check(TrimPrefix("aXbXc", "a*X", true), qt.Equals, "c")
}

func TestTrimSuffixLongestVsShortest(t *testing.T) {
	c := qt.New(t)
	c.Check(TrimSuffix("foo.tar.gz", ".*", false), qt.Equals, "foo.tar")
	c.Check(TrimSuffix("foo.tar.gz", ".*", true), qt.Equals, "foo")
}

func TestTrimNoMatchReturnsOriginal(t *testing.T) {
	c := qt.New(t)
	c.Check(TrimPrefix("hello", "xyz", false), qt.Equals, "hello")
	c.Check(TrimSuffix("hello", "xyz", true), qt.Equals, "hello")
}

func TestGlobRelative(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt", "c.log"} {
		c.Assert(os.WriteFile(filepath.Join(dir, name), []byte(""), 0o644), qt.IsNil)
	}
	matches, err := Glob(dir, "*.txt")
	c.Assert(err, qt.IsNil)
	sort.Strings(matches)
	c.Check(matches, qt.DeepEquals, []string{"a.txt", "b.txt"})
}

func TestGlobNoMatch(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	matches, err := Glob(dir, "*.nope")
	c.Assert(err, qt.IsNil)
	c.Check(len(matches), qt.Equals, 0)
}
