// Package expand implements the word expander (spec §4.3): the seven-stage
// pipeline from a lexed Word to zero or more expanded fields, fused into a
// single scanning pass per spec's performance note. Grounded on the
// teacher's (mvdan.cc/sh/v3) expand package: the Environ/Variable shape
// mirrors expand/environ.go, narrowed to the String/Unset kinds this core
// needs (no Indexed/Associative array kinds, since arrays are a Non-goal).
package expand

// Variable is the expander's view of a shell variable (spec §3, Variable).
type Variable struct {
	Set      bool
	Exported bool
	ReadOnly bool
	Str      string
}

// IsSet reports whether the variable has ever been assigned a value,
// mirroring spec §3's "unset-marker" flag (false IsSet means unset).
func (v Variable) IsSet() bool { return v.Set }

// Environ is the read side of the shell's variable store that the expander
// needs: by-name lookup plus the handful of special parameters (spec §4.3,
// "Special parameters").
type Environ interface {
	Get(name string) Variable
	// Positional returns $1..$N without $0.
	Positional() []string
	// Name0 returns $0.
	Name0() string
	// LastStatus returns $? — the exit status most recently set.
	LastStatus() int
	// LastBackgroundPID returns $! — the pid of the most recent async job.
	LastBackgroundPID() int
	// Flags returns $- — the currently active single-letter option flags.
	Flags() string
	// PID returns $$.
	PID() int
}

// WriteEnviron extends Environ with the mutation parameter expansion
// modifiers need (`:=` assigns a default, spec §4.3).
type WriteEnviron interface {
	Environ
	// Set assigns name=value. It returns an error if name is readonly
	// (spec I2).
	Set(name, value string) error
}
