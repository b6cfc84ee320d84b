package interp

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestVarStoreSetGet(t *testing.T) {
	c := qt.New(t)
	vs := NewVarStore("sh", nil)
	c.Assert(vs.Set("FOO", "bar"), qt.IsNil)
	v := vs.Get("FOO")
	c.Check(v.Set, qt.IsTrue)
	c.Check(v.Str, qt.Equals, "bar")
}

func TestVarStoreUnsetVsEmpty(t *testing.T) {
	c := qt.New(t)
	vs := NewVarStore("sh", nil)
	c.Check(vs.Get("NEVER_SET").IsSet(), qt.IsFalse)
	c.Assert(vs.Set("EMPTY", ""), qt.IsNil)
	c.Check(vs.Get("EMPTY").IsSet(), qt.IsTrue)
}

func TestVarStoreReadOnly(t *testing.T) {
	c := qt.New(t)
	vs := NewVarStore("sh", nil)
	c.Assert(vs.SetReadOnly("RO", true, "1"), qt.IsNil)
	err := vs.Set("RO", "2")
	c.Assert(err, qt.Not(qt.IsNil))
	err = vs.Unset("RO")
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestVarStoreLocalScoping(t *testing.T) {
	c := qt.New(t)
	vs := NewVarStore("sh", nil)
	c.Assert(vs.Set("X", "global"), qt.IsNil)

	vs.PushLocalScope()
	c.Assert(vs.SetLocal("X", "local"), qt.IsNil)
	c.Check(vs.Get("X").Str, qt.Equals, "local")
	vs.PopLocalScope()

	c.Check(vs.Get("X").Str, qt.Equals, "global")
}

func TestVarStoreSetFindsOuterScope(t *testing.T) {
	c := qt.New(t)
	vs := NewVarStore("sh", nil)
	c.Assert(vs.Set("X", "global"), qt.IsNil)

	vs.PushLocalScope()
	// plain Set (no `local`) updates the existing outer binding in place.
	c.Assert(vs.Set("X", "changed"), qt.IsNil)
	vs.PopLocalScope()

	c.Check(vs.Get("X").Str, qt.Equals, "changed")
}

func TestVarStorePositionalAndSpecials(t *testing.T) {
	c := qt.New(t)
	vs := NewVarStore("myscript", []string{"a", "b", "c"})
	c.Check(vs.Positional(), qt.DeepEquals, []string{"a", "b", "c"})
	c.Check(vs.Name0(), qt.Equals, "myscript")

	vs.SetPositional([]string{"x"})
	c.Check(vs.Positional(), qt.DeepEquals, []string{"x"})

	vs.SetLastStatus(7)
	c.Check(vs.LastStatus(), qt.Equals, 7)

	vs.SetLastBackgroundPID(1234)
	c.Check(vs.LastBackgroundPID(), qt.Equals, 1234)

	vs.SetFlags("ex")
	c.Check(vs.Flags(), qt.Equals, "ex")
}

func TestVarStoreExportedEnv(t *testing.T) {
	c := qt.New(t)
	vs := NewVarStore("sh", nil)
	c.Assert(vs.Set("NOTEXPORTED", "a"), qt.IsNil)
	c.Assert(vs.SetExported("EXPORTED", true, "b"), qt.IsNil)

	env := vs.ExportedEnv()
	found := false
	for _, kv := range env {
		if kv == "EXPORTED=b" {
			found = true
		}
		c.Check(kv != "NOTEXPORTED=a", qt.IsTrue)
	}
	c.Check(found, qt.IsTrue)
}

func TestVarStoreEachInnermostWins(t *testing.T) {
	c := qt.New(t)
	vs := NewVarStore("sh", nil)
	c.Assert(vs.Set("X", "outer"), qt.IsNil)
	vs.PushLocalScope()
	c.Assert(vs.SetLocal("X", "inner"), qt.IsNil)

	seen := map[string]string{}
	vs.Each(func(name, value string, exported, readOnly bool) {
		if _, ok := seen[name]; !ok {
			seen[name] = value
		}
	})
	c.Check(seen["X"], qt.Equals, "inner")
}
