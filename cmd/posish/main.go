// Command posish is a POSIX shell core (spec §5, "External interfaces").
// Invocation follows the teacher's cmd/gosh entrypoint: hand-rolled flag
// parsing with short-option aggregation, since the option set is small and
// fixed and doesn't need the flag package's machinery.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/xaonfc/posish/arena"
	"github.com/xaonfc/posish/interp"
	"github.com/xaonfc/posish/syntax"
)

type options struct {
	errexit, noexec, noglob, nounset, verbose, xtrace, monitor bool
	interactive, login                                         bool
	command                                                    string
	hasCommand                                                  bool
	script                                                      string
	name0                                                       string
	args                                                        []string
}

func main() { os.Exit(run(os.Args[1:])) }

func run(argv []string) int {
	opts, err := parseArgs(argv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	a := arena.New()
	r := interp.New(opts.name0, opts.args,
		interp.WithArena(a),
		interp.WithOptions(opts.errexit, opts.noexec, opts.noglob, opts.nounset, opts.verbose, opts.xtrace, opts.monitor),
	)
	ctx := context.Background()

	var status int
	switch {
	case opts.hasCommand:
		status = runSource(ctx, r, opts.command, opts.name0)
	case opts.script != "":
		data, ferr := os.ReadFile(opts.script)
		if ferr != nil {
			fmt.Fprintf(os.Stderr, "posish: %v\n", ferr)
			status = 127
		} else {
			status = runSource(ctx, r, string(data), opts.script)
		}
	default:
		interactive := opts.interactive || term.IsTerminal(int(os.Stdin.Fd()))
		status = runREPL(ctx, r, os.Stdin, interactive)
	}
	r.RunExitTrap(ctx)
	return status
}

func runSource(ctx context.Context, r *interp.Runner, src, name string) int {
	p := syntax.NewParser(src, name, r.Aliases, r.Arena)
	file, perr := p.Parse()
	if perr != nil {
		fmt.Fprintf(os.Stderr, "posish: %v\n", perr)
		return 2
	}
	status, err := r.Run(ctx, file)
	if s, ok := interp.ExitStatus(err); ok {
		return s
	}
	return status
}

// runREPL drives the interactive/script-via-stdin read-eval loop,
// accumulating lines until syntax.Probe reports a complete command (spec
// §4.1, "Incompleteness probe") before handing the buffer to the parser.
func runREPL(ctx context.Context, r *interp.Runner, in io.Reader, interactive bool) int {
	reader := bufio.NewReader(in)
	var status int
	var buf strings.Builder
	for {
		if interactive {
			if buf.Len() == 0 {
				fmt.Fprint(os.Stderr, "$ ")
			} else {
				fmt.Fprint(os.Stderr, "> ")
			}
		}
		line, err := reader.ReadString('\n')
		if line == "" && err != nil {
			break
		}
		buf.WriteString(line)
		if err != nil {
			break
		}
		probe := syntax.Probe(buf.String())
		if !probe.Complete {
			continue
		}
		src := buf.String()
		buf.Reset()
		if strings.TrimSpace(src) == "" {
			continue
		}
		p := syntax.NewParser(src, r.Vars.Name0(), r.Aliases, r.Arena)
		file, perr := p.Parse()
		if perr != nil {
			fmt.Fprintf(os.Stderr, "posish: %v\n", perr)
			status = 2
			continue
		}
		st, rerr := r.Run(ctx, file)
		if s, ok := interp.ExitStatus(rerr); ok {
			return s
		}
		status = st
	}
	return status
}

func parseArgs(argv []string) (*options, error) {
	opts := &options{name0: "posish"}
	i := 0
	for i < len(argv) {
		a := argv[i]
		switch {
		case a == "--login":
			opts.login = true
			i++
		case a == "-c":
			i++
			if i >= len(argv) {
				return nil, fmt.Errorf("posish: -c requires an argument")
			}
			opts.command = argv[i]
			opts.hasCommand = true
			i++
			if i < len(argv) {
				opts.name0 = argv[i]
				i++
			}
			opts.args = append(opts.args, argv[i:]...)
			return opts, nil
		case a == "-o":
			i++
			if i >= len(argv) {
				return nil, fmt.Errorf("posish: -o requires an argument")
			}
			if err := applyLongOption(opts, argv[i]); err != nil {
				return nil, err
			}
			i++
		case a == "--":
			i++
			if i < len(argv) {
				opts.script = argv[i]
				opts.name0 = argv[i]
				i++
			}
			opts.args = append(opts.args, argv[i:]...)
			return opts, nil
		case len(a) > 1 && a[0] == '-':
			if err := applyShortOptions(opts, a[1:]); err != nil {
				return nil, err
			}
			i++
		default:
			opts.script = a
			opts.name0 = a
			i++
			opts.args = append(opts.args, argv[i:]...)
			return opts, nil
		}
	}
	return opts, nil
}

func applyShortOptions(opts *options, letters string) error {
	for _, c := range letters {
		switch c {
		case 'e':
			opts.errexit = true
		case 'f':
			opts.noglob = true
		case 'u':
			opts.nounset = true
		case 'v':
			opts.verbose = true
		case 'x':
			opts.xtrace = true
		case 'n':
			opts.noexec = true
		case 'm':
			opts.monitor = true
		case 'i':
			opts.interactive = true
		case 'a', 'b', 'C', 'h', 's':
			// allexport/notify/noclobber/hashall/stdin-as-script: accepted,
			// not separately modeled by this core.
		default:
			return fmt.Errorf("posish: unknown option -%c", c)
		}
	}
	return nil
}

func applyLongOption(opts *options, name string) error {
	switch name {
	case "errexit":
		opts.errexit = true
	case "noexec":
		opts.noexec = true
	case "noglob":
		opts.noglob = true
	case "nounset":
		opts.nounset = true
	case "verbose":
		opts.verbose = true
	case "xtrace":
		opts.xtrace = true
	case "monitor":
		opts.monitor = true
	default:
		return fmt.Errorf("posish: unknown option -o %s", name)
	}
	return nil
}
