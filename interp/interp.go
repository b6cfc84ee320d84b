package interp

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/xaonfc/posish/arena"
	"github.com/xaonfc/posish/ast"
	"github.com/xaonfc/posish/expand"
	"github.com/xaonfc/posish/pattern"
	"github.com/xaonfc/posish/syntax"
)

// Control-flow sentinels (spec §4.4, "Loop control", "Function return",
// "Shell exit"): modeled as errors so the recursive walk can unwind
// through arbitrarily nested compound commands without threading extra
// return values through every exec* method.
type breakSignal struct{ n int }

func (breakSignal) Error() string { return "break" }

type continueSignal struct{ n int }

func (continueSignal) Error() string { return "continue" }

type returnSignal struct{ status int }

func (returnSignal) Error() string { return "return" }

type exitSignal struct{ status int }

func (exitSignal) Error() string { return "exit" }

// ExitStatus extracts the status an `exit` sentinel carries, if err is one
// (spec §4.4; used by cmd/posish to tell a true shell exit apart from a
// normal command's non-zero status).
func ExitStatus(err error) (int, bool) {
	if ex, ok := err.(exitSignal); ok {
		return ex.status, true
	}
	return 0, false
}

// Run executes every top-level statement of f in order (spec §4.4, main
// execution loop), Mark/Reset-ing the parser's arena between them (spec
// §3: "Lifetime is one top-level command (arena-scoped)") and draining
// pending traps and reaped jobs at each safe point (spec §4.8).
// Run's err return, when non-nil, is always one of the control-flow
// sentinels above: exitSignal propagates all the way out to the
// top-level caller (cmd/posish's main, or an interactive read-eval loop),
// which is the only place RunExitTrap should fire; a stray break/continue/
// return reaching here means one was used outside any loop/function, which
// real shells tolerate as a no-op. errexit itself is enforced below every
// simple command and pipeline (maybeErrExit), so a failure under `set -e`
// already arrives here as an exitSignal mid-statement; the status check
// below is just a backstop for a top-level statement that somehow returns
// non-zero without one (case/group/subshell un-nesting edge cases).
func (r *Runner) Run(ctx context.Context, f *ast.File) (status int, err error) {
	for _, stmt := range f.Stmts {
		r.safePoint(ctx)
		st, err := r.execStmt(ctx, stmt, false)
		if err != nil {
			return st, err
		}
		status = st
		r.Vars.SetLastStatus(status)
		if r.Arena != nil {
			r.Arena.ResetAll()
		}
		if r.ErrExit && status != 0 {
			return status, exitSignal{status: status}
		}
	}
	return status, nil
}

// safePoint is where asynchronous shell state (traps, finished jobs) is
// allowed to take effect (spec §4.8, "delivery timing").
func (r *Runner) safePoint(ctx context.Context) {
	r.Jobs.Reap()
	for _, cond := range r.Signals.TakePending() {
		if t, ok := r.Signals.Get(cond); ok && t.Disposition == TrapTrapped {
			r.runTrapAction(ctx, t.Action)
		}
	}
}

// RunExitTrap fires the EXIT trap, if one is set (spec §4.8). Call this
// exactly once, after the top-level Run has returned for the last time.
func (r *Runner) RunExitTrap(ctx context.Context) {
	if t, ok := r.Signals.Get("EXIT"); ok && t.Disposition == TrapTrapped {
		r.runTrapAction(ctx, t.Action)
	}
}

func (r *Runner) runTrapAction(ctx context.Context, src string) {
	p := syntax.NewParser(src, "trap", r.Aliases, nil)
	file, err := p.Parse()
	if err != nil {
		fmt.Fprintf(r.stderr(), "trap: %v\n", err)
		return
	}
	r.Run(ctx, file)
}

// execStmt applies redirs, handles the (currently always-false) Background
// flag, and dispatches Cmd (spec §4.4/§4.5).
func (r *Runner) execStmt(ctx context.Context, stmt *ast.Stmt, background bool) (int, error) {
	undo, err := r.Redir.Apply(stmt.Redirs, r.expandTarget(ctx))
	if err != nil {
		fmt.Fprintln(r.stderr(), err)
		return 1, nil
	}
	defer undo()

	background = background || stmt.Background
	return r.execNode(ctx, stmt.Cmd, background)
}

// execNode dispatches on the concrete node kind (spec §3, AST variants).
func (r *Runner) execNode(ctx context.Context, n ast.Node, background bool) (int, error) {
	switch x := n.(type) {
	case *ast.Stmt:
		return r.execStmt(ctx, x, background)
	case *ast.Command:
		return r.execCommand(ctx, x, background)
	case *ast.Pipeline:
		return r.execPipeline(ctx, x)
	case *ast.List:
		return r.execList(ctx, x)
	case *ast.AndOr:
		return r.execAndOr(ctx, x)
	case *ast.If:
		return r.execIf(ctx, x)
	case *ast.Loop:
		return r.execLoop(ctx, x)
	case *ast.For:
		return r.execFor(ctx, x)
	case *ast.Case:
		return r.execCase(ctx, x)
	case *ast.Subshell:
		return r.execSubshell(ctx, x)
	case *ast.Group:
		return r.execGroup(ctx, x)
	case *ast.FuncDecl:
		r.Funcs.Define(x.Name, x.Body)
		return 0, nil
	case nil:
		return 0, nil
	}
	return 1, fmt.Errorf("interp: unhandled node %T", n)
}

func (r *Runner) stdout() *os.File { return r.FDs.Get(1) }
func (r *Runner) stderr() *os.File { return r.FDs.Get(2) }

// expandConfig builds an expand.Config bound to this Runner's current
// state (spec §4.3, "Interface to executor").
func (r *Runner) expandConfig(ctx context.Context) *expand.Config {
	return &expand.Config{
		Env:    r.Vars,
		Dir:    r.Dir,
		NoGlob: r.NoGlob,
		Arena:  r.Arena,
		CmdSubst: func(src string) (string, error) {
			return r.captureOutput(ctx, src)
		},
		OnUnset: func(name string) error {
			if r.NoUnset {
				return fmt.Errorf("%s: unbound variable", name)
			}
			return nil
		},
	}
}

func (r *Runner) expandTarget(ctx context.Context) func(*ast.Word) (string, error) {
	cfg := r.expandConfig(ctx)
	return func(w *ast.Word) (string, error) { return expand.ToString(cfg, w) }
}

// captureOutput re-enters the lexer/parser/executor on src with stdout
// captured (spec §4.3 stage 4, command substitution): run in a subshell-like
// copy of the Runner so the substitution's own variable/cwd changes don't
// leak into the caller, matching Subshell semantics (spec §4.4, Subshell).
func (r *Runner) captureOutput(ctx context.Context, src string) (string, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return "", err
	}
	subFDs := r.FDs.Clone()
	subFDs.Set(1, pw)
	sub := r.withFDs(subFDs)
	sub.Arena = arena.New()
	sub.Vars = cloneVarStore(r.Vars)

	p := syntax.NewParser(src, "$()", r.Aliases, sub.Arena)
	file, perr := p.Parse()

	done := make(chan struct{})
	var out strings.Builder
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := pr.Read(buf)
			if n > 0 {
				out.Write(buf[:n])
			}
			if err != nil {
				break
			}
		}
		close(done)
	}()

	if perr != nil {
		pw.Close()
		<-done
		return "", perr
	}
	_, _ = sub.Run(ctx, file)
	pw.Close()
	<-done
	return out.String(), nil
}

// execCommand expands assignments/args/redirs and dispatches to a
// function, builtin, or external program (spec §4.4, simple command
// execution).
func (r *Runner) execCommand(ctx context.Context, cmd *ast.Command, background bool) (int, error) {
	undo, err := r.Redir.Apply(cmd.Redirs, r.expandTarget(ctx))
	if err != nil {
		fmt.Fprintln(r.stderr(), err)
		return 1, nil
	}
	defer undo()

	cfg := r.expandConfig(ctx)

	if len(cmd.Args) == 0 {
		for _, a := range cmd.Assigns {
			val := ""
			if a.Value != nil {
				val, err = expand.ToString(cfg, a.Value)
				if err != nil {
					fmt.Fprintln(r.stderr(), err)
					return 1, nil
				}
			}
			if err := r.Vars.Set(a.Name, val); err != nil {
				fmt.Fprintln(r.stderr(), err)
				return 1, nil
			}
		}
		return 0, nil
	}

	// Assignments preceding a command with args are scoped to that
	// command's execution only (POSIX "simple command environment").
	type savedVar struct {
		name string
		had  bool
		val  string
	}
	var saves []savedVar
	for _, a := range cmd.Assigns {
		val := ""
		if a.Value != nil {
			val, err = expand.ToString(cfg, a.Value)
			if err != nil {
				fmt.Fprintln(r.stderr(), err)
				return 1, nil
			}
		}
		prev := r.Vars.Get(a.Name)
		saves = append(saves, savedVar{name: a.Name, had: prev.Set, val: prev.Str})
		if err := r.Vars.SetExported(a.Name, true, val); err != nil {
			fmt.Fprintln(r.stderr(), err)
			return 1, nil
		}
	}
	restore := func() {
		for _, s := range saves {
			if s.had {
				r.Vars.Set(s.name, s.val)
			} else {
				r.Vars.Unset(s.name)
			}
		}
	}

	var argv []string
	for _, w := range cmd.Args {
		fields, err := expand.ToFields(cfg, w)
		if err != nil {
			restore()
			fmt.Fprintln(r.stderr(), err)
			return 1, nil
		}
		argv = append(argv, fields...)
	}
	defer restore()

	if len(argv) == 0 {
		return 0, nil
	}
	name, args := argv[0], argv[1:]

	if r.XTrace {
		fmt.Fprintln(r.stderr(), "+ "+strings.Join(argv, " "))
	}
	if r.NoExec {
		return 0, nil
	}

	if fn, ok := specialBuiltins[name]; ok {
		saves = nil // assignments before a special builtin persist
		status, err := fn(ctx, r, args)
		return r.maybeErrExit(status, err)
	}
	if body, ok := r.Funcs.Lookup(name); ok {
		status, err := r.callFunction(ctx, body, args)
		return r.maybeErrExit(status, err)
	}
	if fn, ok := regularBuiltins[name]; ok {
		status, err := fn(ctx, r, args)
		return r.maybeErrExit(status, err)
	}
	status, err := r.execExternal(ctx, name, args, background)
	return r.maybeErrExit(status, err)
}

func (r *Runner) callFunction(ctx context.Context, body ast.Node, args []string) (status int, err error) {
	savedPos := r.Vars.Positional()
	r.Vars.PushLocalScope()
	r.Vars.SetPositional(args)
	defer func() {
		r.Vars.PopLocalScope()
		r.Vars.SetPositional(savedPos)
	}()

	status, err = r.execNode(ctx, body, false)
	if rs, ok := err.(returnSignal); ok {
		return rs.status, nil
	}
	if _, ok := err.(breakSignal); ok {
		return status, nil
	}
	if _, ok := err.(continueSignal); ok {
		return status, nil
	}
	return status, err
}

// lookPath searches the shell's own $PATH (not the process environment's),
// per spec §4.4, command lookup.
func (r *Runner) lookPath(name string) (string, error) {
	if strings.Contains(name, "/") {
		if st, err := os.Stat(name); err == nil && !st.IsDir() {
			return name, nil
		}
		return "", fmt.Errorf("%s: not found", name)
	}
	pathVar := r.Vars.Get("PATH")
	path := pathVar.Str
	if !pathVar.Set {
		path = os.Getenv("PATH")
	}
	for _, dir := range strings.Split(path, ":") {
		if dir == "" {
			dir = "."
		}
		cand := filepath.Join(dir, name)
		if st, err := os.Stat(cand); err == nil && !st.IsDir() {
			return cand, nil
		}
	}
	return "", fmt.Errorf("%s: not found", name)
}

func (r *Runner) execExternal(ctx context.Context, name string, args []string, background bool) (int, error) {
	path, err := r.lookPath(name)
	if err != nil {
		fmt.Fprintf(r.stderr(), "%s: command not found\n", name)
		return 127, nil
	}
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Env = r.Vars.ExportedEnv()
	cmd.Dir = r.Dir
	cmd.Stdin = r.FDs.Get(0)
	cmd.Stdout = r.FDs.Get(1)
	cmd.Stderr = r.FDs.Get(2)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(r.stderr(), "%s: %v\n", name, err)
		return 126, nil
	}

	if background {
		pid := cmd.Process.Pid
		r.Jobs.Add(pid, name+" "+strings.Join(args, " "), []int{pid})
		r.Vars.SetLastBackgroundPID(pid)
		go cmd.Wait()
		return 0, nil
	}

	err = cmd.Wait()
	return exitStatusFrom(err), nil
}

func exitStatusFrom(err error) int {
	if err == nil {
		return 0
	}
	if ee, ok := err.(*exec.ExitError); ok {
		if ws, ok := ee.Sys().(syscall.WaitStatus); ok {
			if ws.Signaled() {
				return 128 + int(ws.Signal())
			}
			return ws.ExitStatus()
		}
	}
	return 1
}

func negate(status int) int {
	if status == 0 {
		return 1
	}
	return 0
}

// maybeErrExit converts a non-zero status into an exitSignal when errexit
// is active and not currently suppressed (spec §4.4, "errexit"): every
// simple-command and pipeline completion point funnels its result through
// this, rather than leaving the check to the top-level Run loop, so a
// failure stops execution immediately even mid-line (`cmd1; cmd2`,
// `cmd1 && cmd2`).
func (r *Runner) maybeErrExit(status int, err error) (int, error) {
	if err == nil && status != 0 && r.ErrExit && r.errexitSuppress == 0 {
		return status, exitSignal{status: status}
	}
	return status, err
}

// execSuppressed runs n with errexit checks disabled for its duration
// (spec §4.4, "errexit suppressed counter"): used for if/while/until
// conditions and non-final &&/|| operands, whose status is being tested
// rather than treated as the command's own outcome.
func (r *Runner) execSuppressed(ctx context.Context, n ast.Node, background bool) (int, error) {
	r.errexitSuppress++
	status, err := r.execNode(ctx, n, background)
	r.errexitSuppress--
	return status, err
}

// execPipeline runs a pipeline's stage(s) (spec §4.4, Pipeline). A `!`
// negation exempts the whole pipeline from errexit (spec §4.4, "errexit
// suppressed counter": a negated status is being tested, not treated as
// the command's own outcome), so every stage of a negated pipeline runs
// errexit-suppressed. In a non-negated multi-stage pipeline, only the
// final stage's status can trigger errexit — earlier stages run
// suppressed, matching a real shell's default (non-pipefail) behavior
// that only the last command's exit status is the pipeline's.
func (r *Runner) execPipeline(ctx context.Context, p *ast.Pipeline) (int, error) {
	if p.Right == nil {
		if p.Negated {
			status, err := r.execSuppressed(ctx, p.Left, false)
			return negate(status), err
		}
		status, err := r.execNode(ctx, p.Left, false)
		return r.maybeErrExit(status, err)
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return 1, err
	}
	leftFDs := r.FDs.Clone()
	leftFDs.Set(1, pw)
	rightFDs := r.FDs.Clone()
	rightFDs.Set(0, pr)
	left := r.withFDs(leftFDs)
	right := r.withFDs(rightFDs)

	var g errgroup.Group
	var rightStatus int
	g.Go(func() error {
		defer pw.Close()
		_, err := left.execSuppressed(ctx, p.Left, false)
		return err
	})
	g.Go(func() error {
		defer pr.Close()
		if p.Negated {
			st, err := right.execSuppressed(ctx, p.Right, false)
			rightStatus = st
			return err
		}
		st, err := right.execNode(ctx, p.Right, false)
		rightStatus = st
		return err
	})
	err = g.Wait()
	if p.Negated {
		return negate(rightStatus), err
	}
	return r.maybeErrExit(rightStatus, err)
}

func (r *Runner) execList(ctx context.Context, l *ast.List) (int, error) {
	if l.Async {
		r.runAsync(ctx, l.Left)
		if l.Right == nil {
			return 0, nil
		}
		return r.execNode(ctx, l.Right, false)
	}
	st, err := r.execNode(ctx, l.Left, false)
	if err != nil {
		return 0, err
	}
	r.Vars.SetLastStatus(st)
	if l.Right == nil {
		return 0, nil
	}
	return r.execNode(ctx, l.Right, false)
}

// runAsync launches n in the background (spec §4.4 "&"; spec §4.8, Job
// table). A simple command with no redirections wrapped around it goes
// through execCommand with background set: an external program is started
// without waiting and its real pid is registered in the job table through
// execExternal's background path, while a function call or builtin runs to
// completion before runAsync returns. Any other node kind (a pipeline, a
// compound command, or a command with wrapping redirections) is run in a
// goroutine under a synthetic negative pgid, since there is no single OS
// pid to wait on for it as a whole.
func (r *Runner) runAsync(ctx context.Context, n ast.Node) {
	if cmd, ok := unwrapToCommand(n); ok {
		bgFDs := r.FDs.Clone()
		bg := r.withFDs(bgFDs)
		bg.execCommand(ctx, cmd, true)
		return
	}
	r.bgCounter--
	pgid := r.bgCounter
	bgFDs := r.FDs.Clone()
	bg := r.withFDs(bgFDs)
	r.Jobs.Add(pgid, "", nil)
	r.Vars.SetLastBackgroundPID(0)
	go func() {
		st, _ := bg.execNode(ctx, n, false)
		r.Jobs.SetStatus(pgid, JobDone, st)
	}()
}

func unwrapToCommand(n ast.Node) (*ast.Command, bool) {
	switch x := n.(type) {
	case *ast.Command:
		return x, true
	case *ast.Stmt:
		if len(x.Redirs) == 0 {
			return unwrapToCommand(x.Cmd)
		}
	}
	return nil, false
}

func (r *Runner) execAndOr(ctx context.Context, a *ast.AndOr) (int, error) {
	// Left's status is being tested to decide whether Right runs, not
	// treated as a command outcome in its own right (spec §4.4, "errexit
	// suppressed counter", non-final &&/|| operands).
	status, err := r.execSuppressed(ctx, a.Left, false)
	if err != nil {
		return status, err
	}
	if a.Or {
		if status != 0 {
			return r.execNode(ctx, a.Right, false)
		}
		return status, nil
	}
	if status == 0 {
		return r.execNode(ctx, a.Right, false)
	}
	return status, nil
}

func (r *Runner) execIf(ctx context.Context, i *ast.If) (int, error) {
	// Cond's status is being tested, not treated as a command outcome
	// (spec §4.4, "errexit suppressed counter").
	status, err := r.execSuppressed(ctx, i.Cond, false)
	if err != nil {
		return status, err
	}
	if status == 0 {
		return r.execNode(ctx, i.Then, false)
	}
	if i.Else != nil {
		return r.execNode(ctx, i.Else, false)
	}
	return 0, nil
}

func (r *Runner) execLoop(ctx context.Context, l *ast.Loop) (int, error) {
	status := 0
	for {
		// One arena mark per iteration (spec §4.4: while/until push a mark
		// before the body and reset after, so a long-running loop's word
		// expansion scratch doesn't accumulate across iterations).
		var mark arena.Mark
		if r.Arena != nil {
			mark = r.Arena.Mark()
		}
		// Cond's status is being tested, not treated as a command outcome
		// (spec §4.4, "errexit suppressed counter").
		condStatus, err := r.execSuppressed(ctx, l.Cond, false)
		if err != nil {
			return status, err
		}
		want := condStatus == 0
		if l.Until {
			want = condStatus != 0
		}
		if !want {
			if r.Arena != nil {
				r.Arena.Reset(mark)
			}
			return status, nil
		}
		r.safePoint(ctx)
		status, err = r.execNode(ctx, l.Body, false)
		if r.Arena != nil {
			r.Arena.Reset(mark)
		}
		if err != nil {
			if bs, ok := err.(breakSignal); ok {
				if bs.n > 1 {
					return status, breakSignal{n: bs.n - 1}
				}
				return status, nil
			}
			if cs, ok := err.(continueSignal); ok {
				if cs.n > 1 {
					return status, continueSignal{n: cs.n - 1}
				}
				continue
			}
			return status, err
		}
	}
}

func (r *Runner) execFor(ctx context.Context, f *ast.For) (int, error) {
	cfg := r.expandConfig(ctx)
	var words []string
	if f.Words == nil {
		words = r.Vars.Positional()
	} else {
		for _, w := range f.Words {
			fields, err := expand.ToFields(cfg, w)
			if err != nil {
				return 1, err
			}
			words = append(words, fields...)
		}
	}
	status := 0
	for _, w := range words {
		// One arena mark per iteration (spec §4.4), matching execLoop.
		var mark arena.Mark
		if r.Arena != nil {
			mark = r.Arena.Mark()
		}
		r.Vars.Set(f.VarName, w)
		r.safePoint(ctx)
		var err error
		status, err = r.execNode(ctx, f.Body, false)
		if r.Arena != nil {
			r.Arena.Reset(mark)
		}
		if err != nil {
			if bs, ok := err.(breakSignal); ok {
				if bs.n > 1 {
					return status, breakSignal{n: bs.n - 1}
				}
				return status, nil
			}
			if cs, ok := err.(continueSignal); ok {
				if cs.n > 1 {
					return status, continueSignal{n: cs.n - 1}
				}
				continue
			}
			return status, err
		}
	}
	return status, nil
}

func (r *Runner) execCase(ctx context.Context, c *ast.Case) (int, error) {
	cfg := r.expandConfig(ctx)
	subject, err := expand.ToString(cfg, c.Word)
	if err != nil {
		return 1, err
	}
	for _, item := range c.Items {
		for _, pw := range item.Patterns {
			pat, err := expand.ToString(cfg, pw)
			if err != nil {
				return 1, err
			}
			matched, err := matchCasePattern(pat, subject)
			if err != nil {
				return 1, err
			}
			if matched {
				if item.Body == nil {
					return 0, nil
				}
				return r.execNode(ctx, item.Body, false)
			}
		}
	}
	return 0, nil
}

// execSubshell runs Body against an isolated copy of the shell's state
// (spec §4.4, Subshell: "forked child ... variable/cwd/trap changes do not
// escape"). An `exit` inside the subshell only terminates the subshell.
func (r *Runner) execSubshell(ctx context.Context, s *ast.Subshell) (int, error) {
	child := *r
	child.Vars = cloneVarStore(r.Vars)
	child.FDs = r.FDs.Clone()
	child.Redir = NewRedirector(child.FDs)
	child.Arena = arena.New()
	status, err := child.execNode(ctx, s.Body, false)
	if ex, ok := err.(exitSignal); ok {
		return ex.status, nil
	}
	return status, err
}

func (r *Runner) execGroup(ctx context.Context, g *ast.Group) (int, error) {
	return r.execNode(ctx, g.Body, false)
}

// cloneVarStore snapshots a variable store for subshell isolation (spec
// §4.4, Subshell: "variable/cwd/trap changes do not escape"). Exported
// attributes and values are copied; the clone is fully independent.
func cloneVarStore(vs *VarStore) *VarStore {
	c := &VarStore{
		global:     newScope(),
		positional: append([]string(nil), vs.positional...),
		name0:      vs.name0,
		lastStatus: vs.lastStatus,
		lastBGPid:  vs.lastBGPid,
		pid:        vs.pid,
		flags:      vs.flags,
	}
	vs.Each(func(name, value string, exported, readOnly bool) {
		c.global.vars[name] = &variable{set: true, exported: exported, readOnly: readOnly, value: value}
	})
	return c
}

func matchCasePattern(pat, subject string) (bool, error) { return pattern.Match(pat, subject) }
