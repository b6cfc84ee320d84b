package interp

import (
	"context"
	"io"
	"os"

	"github.com/xaonfc/posish/arena"
)

// Runner executes a parsed program (spec §4.4). It bundles every piece of
// mutable shell state the executor touches. Grounded on the teacher's
// interp.Runner + RunnerOption pattern: construction goes through New plus
// functional options rather than a struct literal, so zero-value fields
// get sane defaults.
type Runner struct {
	Vars    *VarStore
	Funcs   *FuncTable
	Aliases *AliasTable
	Signals *SignalTable
	Jobs    *JobTable
	FDs     *FDTable
	Redir   *Redirector
	Arena   *arena.Arena

	Dir string // $PWD, used to resolve relative paths and globs

	// Option flags (spec §6, the -o long names and their single-letter
	// equivalents).
	ErrExit  bool // -e
	NoExec   bool // -n
	NoGlob   bool // -f
	NoUnset  bool // -u
	Verbose  bool // -v
	XTrace   bool // -x
	Monitor  bool // -m, job-control / process-group messages

	bgCounter int // synthetic pgid source for backgrounded compound commands

	// errexitSuppress counts nested contexts where a non-zero status is
	// being tested rather than treated as a command's own outcome (spec
	// §4.4, "errexit suppressed counter"): if/while/until conditions and
	// non-final &&/|| operands. errexit only fires while this is zero.
	errexitSuppress int
}

// RunnerOption configures a Runner at construction time.
type RunnerOption func(*Runner)

// New builds a Runner with its tables initialized and stdio bound to the
// real process streams, then applies opts (spec §4.4, Runner
// construction).
func New(name string, args []string, opts ...RunnerOption) *Runner {
	dir, _ := os.Getwd()
	r := &Runner{
		Vars:    NewVarStore(name, args),
		Funcs:   NewFuncTable(),
		Aliases: NewAliasTable(),
		Signals: NewSignalTable(),
		Jobs:    NewJobTable(),
		FDs:     NewFDTable(),
		Dir:     dir,
	}
	r.Redir = NewRedirector(r.FDs)
	for _, o := range opts {
		o(r)
	}
	r.Vars.SetFlags(r.flagString())
	// A signal with default disposition must run the EXIT trap before the
	// process actually terminates, the same as a normal Run return does
	// (spec §4.8, "EXIT trap fires at normal or triggered shell exit").
	r.Signals.SetOnFatal(func(name string) {
		r.RunExitTrap(context.Background())
		os.Exit(128 + int(namedSignals[name]))
	})
	return r
}

// WithStdio overrides the Runner's fd 0/1/2 (spec §4.4, embedding a shell
// inside another program).
func WithStdio(in io.Reader, out, errw io.Writer) RunnerOption {
	return func(r *Runner) {
		if f, ok := in.(*os.File); ok {
			r.FDs.Set(0, f)
		}
		if f, ok := out.(*os.File); ok {
			r.FDs.Set(1, f)
		}
		if f, ok := errw.(*os.File); ok {
			r.FDs.Set(2, f)
		}
	}
}

// WithArena attaches the parser's arena so the Runner can Reset it between
// top-level commands (spec §3, arena-scoped parser output).
func WithArena(a *arena.Arena) RunnerOption {
	return func(r *Runner) { r.Arena = a }
}

// WithOptions seeds the -e/-n/-u/-f/-v/-x/-m flags from an invocation
// (spec §6, invocation flags / `set`).
func WithOptions(errexit, noexec, noglob, nounset, verbose, xtrace, monitor bool) RunnerOption {
	return func(r *Runner) {
		r.ErrExit, r.NoExec, r.NoGlob, r.NoUnset = errexit, noexec, noglob, nounset
		r.Verbose, r.XTrace, r.Monitor = verbose, xtrace, monitor
	}
}

// withFDs returns a shallow copy of r bound to a different FDTable (spec
// §4.5, per-pipeline-stage and per-subshell fd scoping).
func (r *Runner) withFDs(fds *FDTable) *Runner {
	c := *r
	c.FDs = fds
	c.Redir = NewRedirector(fds)
	return &c
}

// flagString renders the active single-letter option flags for $- (spec
// §4.6, Environment variables read).
func (r *Runner) flagString() string {
	s := ""
	if r.ErrExit {
		s += "e"
	}
	if r.NoExec {
		s += "n"
	}
	if r.NoGlob {
		s += "f"
	}
	if r.NoUnset {
		s += "u"
	}
	if r.Verbose {
		s += "v"
	}
	if r.XTrace {
		s += "x"
	}
	if r.Monitor {
		s += "m"
	}
	return s
}
