package interp

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestAliasTableDefineLookupUnset(t *testing.T) {
	c := qt.New(t)
	at := NewAliasTable()

	_, ok := at.Lookup("ll")
	c.Check(ok, qt.IsFalse)

	at.Define("ll", "ls -l ")
	repl, ok := at.Lookup("ll")
	c.Assert(ok, qt.IsTrue)
	c.Check(repl, qt.Equals, "ls -l ")

	at.Unset("ll")
	_, ok = at.Lookup("ll")
	c.Check(ok, qt.IsFalse)
}

func TestAliasTableEach(t *testing.T) {
	c := qt.New(t)
	at := NewAliasTable()
	at.Define("a", "1")
	at.Define("b", "2")
	seen := map[string]string{}
	at.Each(func(name, repl string) { seen[name] = repl })
	c.Check(seen, qt.DeepEquals, map[string]string{"a": "1", "b": "2"})
}
