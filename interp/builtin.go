package interp

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/xaonfc/posish/syntax"
)

// execReplace implements `exec`'s process-image replacement (spec §4.6).
func execReplace(path string, args []string, env []string) error {
	return syscall.Exec(path, args, env)
}

// formatPrintf implements the subset of POSIX printf(1) formatting this
// core needs: %s, %d, %%, and the \n/\t/\\ escapes, cycling the format
// string over any arguments left once it's been consumed once (spec §4.6,
// `printf`).
func formatPrintf(format string, args []string) string {
	var b strings.Builder
	ai := 0
	nextArg := func() string {
		if ai < len(args) {
			v := args[ai]
			ai++
			return v
		}
		return ""
	}
	apply := func(f string) {
		i := 0
		for i < len(f) {
			c := f[i]
			if c == '\\' && i+1 < len(f) {
				switch f[i+1] {
				case 'n':
					b.WriteByte('\n')
					i += 2
					continue
				case 't':
					b.WriteByte('\t')
					i += 2
					continue
				case '\\':
					b.WriteByte('\\')
					i += 2
					continue
				}
			}
			if c == '%' && i+1 < len(f) {
				switch f[i+1] {
				case 's':
					b.WriteString(nextArg())
					i += 2
					continue
				case 'd':
					n, err := strconv.Atoi(nextArg())
					if err != nil {
						n = 0
					}
					b.WriteString(strconv.Itoa(n))
					i += 2
					continue
				case '%':
					b.WriteByte('%')
					i += 2
					continue
				}
			}
			b.WriteByte(c)
			i++
		}
	}
	if len(args) == 0 {
		apply(format)
		return b.String()
	}
	for ai < len(args) {
		before := ai
		apply(format)
		if ai == before {
			break
		}
	}
	return b.String()
}

// builtinFunc is the dispatch contract every builtin implements (spec
// §4.4, "Command lookup order": special builtins, then function table,
// then regular builtins, then $PATH).
type builtinFunc func(ctx context.Context, r *Runner, args []string) (int, error)

// specialBuiltins cannot be overridden by a function of the same name and
// their assignments persist past the command (spec §4.4, Glossary
// "special builtin").
var specialBuiltins = map[string]builtinFunc{
	":":        builtinColon,
	".":        builtinDot,
	"eval":     builtinEval,
	"exec":     builtinExec,
	"exit":     builtinExit,
	"export":   builtinExport,
	"readonly": builtinReadonly,
	"return":   builtinReturn,
	"set":      builtinSet,
	"shift":    builtinShift,
	"trap":     builtinTrap,
	"unset":    builtinUnset,
	"break":    builtinBreak,
	"continue": builtinContinue,
}

// regularBuiltins behave like external commands for lookup-precedence
// purposes (a function of the same name wins over them).
var regularBuiltins = map[string]builtinFunc{
	"cd":      builtinCd,
	"echo":    builtinEcho,
	"test":    builtinTest,
	"[":       builtinBracket,
	"printf":  builtinPrintf,
	"true":    builtinTrue,
	"false":   builtinFalse,
	"read":    builtinRead,
	"local":   builtinLocal,
	"alias":   builtinAlias,
	"unalias": builtinUnalias,
	"wait":    builtinWait,
	"jobs":    builtinJobs,
}

func builtinColon(ctx context.Context, r *Runner, args []string) (int, error) { return 0, nil }
func builtinTrue(ctx context.Context, r *Runner, args []string) (int, error)  { return 0, nil }
func builtinFalse(ctx context.Context, r *Runner, args []string) (int, error) { return 1, nil }

func builtinExit(ctx context.Context, r *Runner, args []string) (int, error) {
	status := r.Vars.LastStatus()
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			status = n
		}
	}
	return status, exitSignal{status: status & 0xff}
}

func builtinReturn(ctx context.Context, r *Runner, args []string) (int, error) {
	status := r.Vars.LastStatus()
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			status = n
		}
	}
	return status, returnSignal{status: status}
}

func builtinBreak(ctx context.Context, r *Runner, args []string) (int, error) {
	n := 1
	if len(args) > 0 {
		if v, err := strconv.Atoi(args[0]); err == nil && v > 0 {
			n = v
		}
	}
	return 0, breakSignal{n: n}
}

func builtinContinue(ctx context.Context, r *Runner, args []string) (int, error) {
	n := 1
	if len(args) > 0 {
		if v, err := strconv.Atoi(args[0]); err == nil && v > 0 {
			n = v
		}
	}
	return 0, continueSignal{n: n}
}

func builtinShift(ctx context.Context, r *Runner, args []string) (int, error) {
	n := 1
	if len(args) > 0 {
		if v, err := strconv.Atoi(args[0]); err == nil {
			n = v
		}
	}
	pos := r.Vars.Positional()
	if n > len(pos) {
		return 1, nil
	}
	r.Vars.SetPositional(pos[n:])
	return 0, nil
}

func splitNameValue(s string) (name, value string, hasValue bool) {
	if i := strings.IndexByte(s, '='); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return s, "", false
}

func builtinExport(ctx context.Context, r *Runner, args []string) (int, error) {
	if len(args) == 0 {
		r.Vars.Each(func(name, value string, exported, _ bool) {
			if exported {
				fmt.Fprintf(r.stdout(), "export %s=%s\n", name, shellQuote(value))
			}
		})
		return 0, nil
	}
	for _, a := range args {
		name, value, hasValue := splitNameValue(a)
		if err := r.Vars.SetExported(name, hasValue, value); err != nil {
			fmt.Fprintln(r.stderr(), err)
			return 1, nil
		}
	}
	return 0, nil
}

func builtinReadonly(ctx context.Context, r *Runner, args []string) (int, error) {
	if len(args) == 0 {
		r.Vars.Each(func(name, value string, _, readOnly bool) {
			if readOnly {
				fmt.Fprintf(r.stdout(), "readonly %s=%s\n", name, shellQuote(value))
			}
		})
		return 0, nil
	}
	for _, a := range args {
		name, value, hasValue := splitNameValue(a)
		if err := r.Vars.SetReadOnly(name, hasValue, value); err != nil {
			fmt.Fprintln(r.stderr(), err)
			return 1, nil
		}
	}
	return 0, nil
}

func builtinUnset(ctx context.Context, r *Runner, args []string) (int, error) {
	funcsOnly := false
	if len(args) > 0 && args[0] == "-f" {
		funcsOnly = true
		args = args[1:]
	} else if len(args) > 0 && args[0] == "-v" {
		args = args[1:]
	}
	for _, name := range args {
		if funcsOnly {
			r.Funcs.Unset(name)
			continue
		}
		if err := r.Vars.Unset(name); err != nil {
			fmt.Fprintln(r.stderr(), err)
			return 1, nil
		}
	}
	return 0, nil
}

func builtinSet(ctx context.Context, r *Runner, args []string) (int, error) {
	i := 0
	for i < len(args) && len(args[i]) > 1 && (args[i][0] == '-' || args[i][0] == '+') {
		on := args[i][0] == '-'
		for _, c := range args[i][1:] {
			switch c {
			case 'e':
				r.ErrExit = on
			case 'n':
				r.NoExec = on
			case 'f':
				r.NoGlob = on
			case 'u':
				r.NoUnset = on
			case 'v':
				r.Verbose = on
			case 'x':
				r.XTrace = on
			case 'm':
				r.Monitor = on
			}
		}
		i++
	}
	r.Vars.SetFlags(r.flagString())
	if i < len(args) {
		r.Vars.SetPositional(args[i:])
	}
	return 0, nil
}

func builtinTrap(ctx context.Context, r *Runner, args []string) (int, error) {
	if len(args) == 0 || args[0] == "-p" {
		r.Signals.Each(func(cond string, t *Trap) {
			if t.Disposition == TrapTrapped {
				fmt.Fprintf(r.stdout(), "trap -- %s %s\n", shellQuote(t.Action), cond)
			}
		})
		return 0, nil
	}
	action, conds := args[0], args[1:]
	disposition := TrapTrapped
	switch action {
	case "-":
		disposition, action = TrapDefault, ""
	case "":
		disposition = TrapIgnored
	}
	for _, c := range conds {
		r.Signals.SetTrap(c, disposition, action)
	}
	return 0, nil
}

func builtinDot(ctx context.Context, r *Runner, args []string) (int, error) {
	if len(args) == 0 {
		fmt.Fprintln(r.stderr(), ".: filename argument required")
		return 2, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(r.stderr(), ".: %v\n", err)
		return 1, nil
	}
	return r.runSource(ctx, string(data), args[0], args[1:])
}

func builtinEval(ctx context.Context, r *Runner, args []string) (int, error) {
	return r.runSource(ctx, strings.Join(args, " "), "eval", nil)
}

// runSource parses src in the shell's own grammar and executes it against
// the CURRENT Runner (not a subshell), per `.` and `eval` semantics (spec
// §4.6). When extraArgs is non-nil the positional parameters are
// temporarily replaced for the duration (spec §4.6, `. file args...`).
func (r *Runner) runSource(ctx context.Context, src, name string, extraArgs []string) (int, error) {
	p := syntax.NewParser(src, name, r.Aliases, r.Arena)
	file, err := p.Parse()
	if err != nil {
		fmt.Fprintf(r.stderr(), "%s: %v\n", name, err)
		return 2, nil
	}
	if extraArgs != nil {
		saved := r.Vars.Positional()
		r.Vars.SetPositional(extraArgs)
		defer r.Vars.SetPositional(saved)
	}
	return r.Run(ctx, file)
}

func builtinExec(ctx context.Context, r *Runner, args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	path, err := r.lookPath(args[0])
	if err != nil {
		fmt.Fprintf(r.stderr(), "%s: command not found\n", args[0])
		return 127, nil
	}
	env := r.Vars.ExportedEnv()
	// exec replaces the current process image (spec §4.6, `exec`); there
	// is no return on success.
	execErr := execReplace(path, args, env)
	fmt.Fprintf(r.stderr(), "exec: %v\n", execErr)
	return 126, nil
}

func builtinCd(ctx context.Context, r *Runner, args []string) (int, error) {
	dir := r.Vars.Get("HOME").Str
	if len(args) > 0 {
		dir = args[0]
	}
	if dir == "" {
		fmt.Fprintln(r.stderr(), "cd: HOME not set")
		return 1, nil
	}
	if !strings_hasPrefixSlash(dir) {
		dir = joinPath(r.Dir, dir)
	}
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		fmt.Fprintf(r.stderr(), "cd: %s: not a directory\n", dir)
		return 1, nil
	}
	r.Dir = dir
	r.Vars.Set("OLDPWD", r.Vars.Get("PWD").Str)
	r.Vars.Set("PWD", dir)
	return 0, nil
}

func builtinEcho(ctx context.Context, r *Runner, args []string) (int, error) {
	noNewline := false
	i := 0
	for i < len(args) && args[i] == "-n" {
		noNewline = true
		i++
	}
	fmt.Fprint(r.stdout(), strings.Join(args[i:], " "))
	if !noNewline {
		fmt.Fprint(r.stdout(), "\n")
	}
	return 0, nil
}

func builtinPrintf(ctx context.Context, r *Runner, args []string) (int, error) {
	if len(args) == 0 {
		fmt.Fprintln(r.stderr(), "printf: usage: printf format [arguments]")
		return 2, nil
	}
	out := formatPrintf(args[0], args[1:])
	fmt.Fprint(r.stdout(), out)
	return 0, nil
}

func builtinRead(ctx context.Context, r *Runner, args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}
	reader := bufio.NewReader(r.FDs.Get(0))
	line, err := reader.ReadString('\n')
	line = strings.TrimRight(line, "\n")
	if err != nil && line == "" {
		return 1, nil
	}
	ifs := " \t"
	if vr := r.Vars.Get("IFS"); vr.IsSet() {
		ifs = vr.Str
	}
	fields := strings.FieldsFunc(line, func(c rune) bool { return strings.ContainsRune(ifs, c) })
	for i, name := range args {
		if i == len(args)-1 {
			r.Vars.Set(name, strings.Join(fields[min(i, len(fields)):], " "))
			break
		}
		val := ""
		if i < len(fields) {
			val = fields[i]
		}
		r.Vars.Set(name, val)
	}
	return 0, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func builtinLocal(ctx context.Context, r *Runner, args []string) (int, error) {
	for _, a := range args {
		name, value, hasValue := splitNameValue(a)
		val := value
		if !hasValue {
			val = ""
		}
		if err := r.Vars.SetLocal(name, val); err != nil {
			fmt.Fprintln(r.stderr(), err)
			return 1, nil
		}
	}
	return 0, nil
}

func builtinAlias(ctx context.Context, r *Runner, args []string) (int, error) {
	if len(args) == 0 {
		r.Aliases.Each(func(name, repl string) {
			fmt.Fprintf(r.stdout(), "alias %s=%s\n", name, shellQuote(repl))
		})
		return 0, nil
	}
	for _, a := range args {
		name, value, hasValue := splitNameValue(a)
		if !hasValue {
			if repl, ok := r.Aliases.Lookup(name); ok {
				fmt.Fprintf(r.stdout(), "alias %s=%s\n", name, shellQuote(repl))
			}
			continue
		}
		r.Aliases.Define(name, value)
	}
	return 0, nil
}

func builtinUnalias(ctx context.Context, r *Runner, args []string) (int, error) {
	for _, name := range args {
		r.Aliases.Unset(name)
	}
	return 0, nil
}

func builtinWait(ctx context.Context, r *Runner, args []string) (int, error) {
	status := 0
	for {
		r.Jobs.Reap()
		done := true
		r.Jobs.Each(func(j *Job) {
			if j.State != JobDone {
				done = false
			} else {
				status = j.ExitStatus
			}
		})
		if done {
			return status, nil
		}
	}
}

func builtinJobs(ctx context.Context, r *Runner, args []string) (int, error) {
	r.Jobs.Each(func(j *Job) {
		state := "Running"
		switch j.State {
		case JobStopped:
			state = "Stopped"
		case JobDone:
			state = "Done"
		}
		fmt.Fprintf(r.stdout(), "[%d] %s\t%s\n", j.ID, state, j.Cmdline)
	})
	return 0, nil
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func strings_hasPrefixSlash(s string) bool { return strings.HasPrefix(s, "/") }

func joinPath(base, rel string) string {
	if base == "" {
		return rel
	}
	return strings.TrimRight(base, "/") + "/" + rel
}
