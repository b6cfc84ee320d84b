// Package interp implements the executor (spec §4.4): a recursive walk of
// the ast.File/ast.Node tree that carries out commands, applies
// redirections, and tracks shell state (variables, functions, aliases,
// jobs, traps). Grounded on the teacher's (mvdan.cc/sh/v3) interp package:
// Runner holds the same kind of combined state the teacher's Runner does,
// constructed through functional RunnerOptions.
package interp

import (
	"fmt"
	"os"
	"strings"

	"github.com/xaonfc/posish/expand"
)

// variable is the interpreter's stored representation of a shell variable
// (spec §3, Variable): it tracks both whether a value was ever assigned and
// the export/readonly attributes, since "unset" and "set to empty" are
// distinct states (spec I1).
type variable struct {
	set      bool
	exported bool
	readOnly bool
	value    string
}

// scope is one level of the variable scope stack (spec §3, Scope stack):
// the global scope plus one per active function call (spec I3, "local").
type scope struct {
	vars map[string]*variable
}

func newScope() *scope { return &scope{vars: make(map[string]*variable)} }

// VarStore is the shell's variable store (spec §4.6): a global scope plus
// a stack of function-local scopes, with `local` saving and restoring
// values across calls (spec I3).
type VarStore struct {
	global *scope
	locals []*scope // top of stack is the innermost active function call

	positional []string
	name0      string

	lastStatus  int
	lastBGPid   int
	pid         int
	flags       string
}

// NewVarStore builds a store seeded from the process environment, mirroring
// the teacher's interp.New default of importing os.Environ (spec §6,
// "Environment variables read").
func NewVarStore(name0 string, args []string) *VarStore {
	vs := &VarStore{
		global:     newScope(),
		positional: args,
		name0:      name0,
		pid:        os.Getpid(),
	}
	for _, kv := range os.Environ() {
		i := strings.IndexByte(kv, '=')
		if i < 0 {
			continue
		}
		vs.global.vars[kv[:i]] = &variable{set: true, exported: true, value: kv[i+1:]}
	}
	return vs
}

// lookup walks from the innermost local scope outward to global, per the
// scope-stack shadowing rule (spec §3, Scope stack).
func (vs *VarStore) lookup(name string) (*variable, *scope) {
	for i := len(vs.locals) - 1; i >= 0; i-- {
		if v, ok := vs.locals[i].vars[name]; ok {
			return v, vs.locals[i]
		}
	}
	if v, ok := vs.global.vars[name]; ok {
		return v, vs.global
	}
	return nil, nil
}

// Get implements expand.Environ.
func (vs *VarStore) Get(name string) expand.Variable {
	v, _ := vs.lookup(name)
	if v == nil {
		return expand.Variable{}
	}
	return expand.Variable{Set: v.set, Exported: v.exported, ReadOnly: v.readOnly, Str: v.value}
}

// Set implements expand.WriteEnviron: assigns into the innermost scope that
// already has the name, or the global scope for a brand-new name (spec I3:
// assignment without `local` always reaches the nearest existing binding,
// falling back to global).
func (vs *VarStore) Set(name, value string) error {
	if v, _ := vs.lookup(name); v != nil {
		if v.readOnly {
			return fmt.Errorf("%s: readonly variable", name)
		}
		v.set = true
		v.value = value
		return nil
	}
	vs.global.vars[name] = &variable{set: true, value: value}
	return nil
}

// SetExported marks name for export into child process environments (spec
// §4.6, `export`). It creates the variable if absent.
func (vs *VarStore) SetExported(name string, hasValue bool, value string) error {
	v, _ := vs.lookup(name)
	if v == nil {
		v = &variable{}
		vs.global.vars[name] = v
	}
	if v.readOnly && hasValue {
		return fmt.Errorf("%s: readonly variable", name)
	}
	if hasValue {
		v.set = true
		v.value = value
	}
	v.exported = true
	return nil
}

// SetReadOnly marks name readonly (spec §4.6, `readonly`), optionally
// assigning a value at the same time.
func (vs *VarStore) SetReadOnly(name string, hasValue bool, value string) error {
	v, _ := vs.lookup(name)
	if v == nil {
		v = &variable{}
		vs.global.vars[name] = v
	}
	if hasValue {
		v.set = true
		v.value = value
	}
	v.readOnly = true
	return nil
}

// Unset removes name's binding from whichever scope currently holds it
// (spec §4.6, `unset`). Unsetting a readonly variable is an error (spec
// I2).
func (vs *VarStore) Unset(name string) error {
	v, sc := vs.lookup(name)
	if v == nil {
		return nil
	}
	if v.readOnly {
		return fmt.Errorf("%s: readonly variable", name)
	}
	delete(sc.vars, name)
	return nil
}

// PushLocalScope enters a new function-call scope (spec I3).
func (vs *VarStore) PushLocalScope() { vs.locals = append(vs.locals, newScope()) }

// PopLocalScope leaves the innermost function-call scope, discarding any
// `local` bindings made within it (spec I3).
func (vs *VarStore) PopLocalScope() {
	if len(vs.locals) == 0 {
		return
	}
	vs.locals = vs.locals[:len(vs.locals)-1]
}

// SetLocal creates or overwrites name in the innermost active scope (spec
// §4.6, `local`); at global scope (no function active) it behaves like
// Set.
func (vs *VarStore) SetLocal(name, value string) error {
	var sc *scope
	if len(vs.locals) > 0 {
		sc = vs.locals[len(vs.locals)-1]
	} else {
		sc = vs.global
	}
	if existing, ok := sc.vars[name]; ok && existing.readOnly {
		return fmt.Errorf("%s: readonly variable", name)
	}
	sc.vars[name] = &variable{set: true, value: value}
	return nil
}

// Positional implements expand.Environ.
func (vs *VarStore) Positional() []string { return vs.positional }

// SetPositional replaces $1.. (spec §4.6, "Positional parameters": pointer
// + count swap on function entry/exit and via `set`/`shift`).
func (vs *VarStore) SetPositional(args []string) { vs.positional = args }

// Name0 implements expand.Environ.
func (vs *VarStore) Name0() string { return vs.name0 }

// SetName0 changes $0 (spec §4.6; `exec` with a name argument).
func (vs *VarStore) SetName0(name string) { vs.name0 = name }

// LastStatus implements expand.Environ.
func (vs *VarStore) LastStatus() int { return vs.lastStatus }

// SetLastStatus records $? (spec §4.4, after every command).
func (vs *VarStore) SetLastStatus(status int) { vs.lastStatus = status }

// LastBackgroundPID implements expand.Environ.
func (vs *VarStore) LastBackgroundPID() int { return vs.lastBGPid }

// SetLastBackgroundPID records $! (spec §4.8, after launching an async
// job).
func (vs *VarStore) SetLastBackgroundPID(pid int) { vs.lastBGPid = pid }

// Flags implements expand.Environ ($-).
func (vs *VarStore) Flags() string { return vs.flags }

// SetFlags updates the single-letter option-flag string reported by $-
// (spec §6).
func (vs *VarStore) SetFlags(flags string) { vs.flags = flags }

// PID implements expand.Environ ($$): always the shell's own pid, even
// inside a subshell fork, matching POSIX ($$ is not updated by fork).
func (vs *VarStore) PID() int { return vs.pid }

// ExportedEnv builds the environment slice passed to exec'd children (spec
// §4.6, "Exported subset").
func (vs *VarStore) ExportedEnv() []string {
	seen := make(map[string]bool)
	var env []string
	collect := func(sc *scope) {
		for name, v := range sc.vars {
			if !v.exported || seen[name] {
				continue
			}
			seen[name] = true
			env = append(env, name+"="+v.value)
		}
	}
	for i := len(vs.locals) - 1; i >= 0; i-- {
		collect(vs.locals[i])
	}
	collect(vs.global)
	return env
}

// Each calls fn for every visible variable name (spec §4.6, `set`/`export
// -p`/`readonly -p` listing forms), innermost scope winning on shadowed
// names.
func (vs *VarStore) Each(fn func(name, value string, exported, readOnly bool)) {
	seen := make(map[string]bool)
	visit := func(sc *scope) {
		for name, v := range sc.vars {
			if seen[name] || !v.set {
				continue
			}
			seen[name] = true
			fn(name, v.value, v.exported, v.readOnly)
		}
	}
	for i := len(vs.locals) - 1; i >= 0; i-- {
		visit(vs.locals[i])
	}
	visit(vs.global)
}
