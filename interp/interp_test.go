package interp

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/xaonfc/posish/arena"
	"github.com/xaonfc/posish/syntax"
)

// newTestRunner builds a Runner with stdout/stderr bound to pipes so tests
// can capture builtin/external command output (the FDTable only accepts
// real *os.File values, matching how external commands are exec'd).
func newTestRunner(c *qt.C) (r *Runner, stdout func() string) {
	pr, pw, err := os.Pipe()
	c.Assert(err, qt.IsNil)
	r = New("posish-test", nil, WithArena(arena.New()), WithStdio(os.Stdin, pw, os.Stderr))

	done := make(chan string, 1)
	go func() {
		data, _ := io.ReadAll(pr)
		done <- string(data)
	}()

	return r, func() string {
		pw.Close()
		select {
		case s := <-done:
			return s
		case <-time.After(2 * time.Second):
			return "<timeout reading stdout>"
		}
	}
}

func runScript(c *qt.C, r *Runner, src string) (int, error) {
	p := syntax.NewParser(src, "test", r.Aliases, r.Arena)
	file, err := p.Parse()
	c.Assert(err, qt.IsNil)
	return r.Run(context.Background(), file)
}

func TestRunSequentialEcho(t *testing.T) {
	c := qt.New(t)
	r, stdout := newTestRunner(c)
	status, err := runScript(c, r, "echo hello; echo world\n")
	c.Assert(err, qt.IsNil)
	c.Check(status, qt.Equals, 0)
	c.Check(stdout(), qt.Equals, "hello\nworld\n")
}

func TestRunExitStatusPropagates(t *testing.T) {
	c := qt.New(t)
	r, stdout := newTestRunner(c)
	status, err := runScript(c, r, "false; echo after $?\n")
	c.Assert(err, qt.IsNil)
	c.Check(status, qt.Equals, 0)
	c.Check(stdout(), qt.Equals, "after 1\n")
}

func TestFunctionLocalScoping(t *testing.T) {
	c := qt.New(t)
	r, stdout := newTestRunner(c)
	src := `
x=outer
f() {
	local x=inner
	echo "in f: $x"
}
f
echo "after f: $x"
`
	status, err := runScript(c, r, src)
	c.Assert(err, qt.IsNil)
	c.Check(status, qt.Equals, 0)
	c.Check(stdout(), qt.Equals, "in f: inner\nafter f: outer\n")
}

func TestCommandSubstitutionStripsTrailingNewlines(t *testing.T) {
	c := qt.New(t)
	r, stdout := newTestRunner(c)
	status, err := runScript(c, r, "echo \"[$(echo hi)]\"\n")
	c.Assert(err, qt.IsNil)
	c.Check(status, qt.Equals, 0)
	c.Check(stdout(), qt.Equals, "[hi]\n")
}

func TestHeredocWithParamExpansion(t *testing.T) {
	c := qt.New(t)
	r, stdout := newTestRunner(c)
	src := "cat <<EOF\nvalue: ${x:-dflt}\nEOF\n"
	status, err := runScript(c, r, src)
	c.Assert(err, qt.IsNil)
	c.Check(status, qt.Equals, 0)
	c.Check(stdout(), qt.Equals, "value: dflt\n")
}

func TestPipeline(t *testing.T) {
	c := qt.New(t)
	r, stdout := newTestRunner(c)
	status, err := runScript(c, r, "echo hi | cat\n")
	c.Assert(err, qt.IsNil)
	c.Check(status, qt.Equals, 0)
	c.Check(stdout(), qt.Equals, "hi\n")
}

func TestIfElse(t *testing.T) {
	c := qt.New(t)
	r, stdout := newTestRunner(c)
	status, err := runScript(c, r, "if false; then echo yes; else echo no; fi\n")
	c.Assert(err, qt.IsNil)
	c.Check(status, qt.Equals, 0)
	c.Check(stdout(), qt.Equals, "no\n")
}

func TestWhileLoopWithBreak(t *testing.T) {
	c := qt.New(t)
	r, stdout := newTestRunner(c)
	src := `
i=0
while true; do
	i=$((i + 1))
	echo "i=$i"
	if [ "$i" -ge 3 ]; then
		break
	fi
done
`
	status, err := runScript(c, r, src)
	c.Assert(err, qt.IsNil)
	c.Check(status, qt.Equals, 0)
	c.Check(stdout(), qt.Equals, "i=1\ni=2\ni=3\n")
}

func TestForLoopOverWords(t *testing.T) {
	c := qt.New(t)
	r, stdout := newTestRunner(c)
	status, err := runScript(c, r, "for x in a b c; do echo $x; done\n")
	c.Assert(err, qt.IsNil)
	c.Check(status, qt.Equals, 0)
	c.Check(stdout(), qt.Equals, "a\nb\nc\n")
}

func TestCaseMatching(t *testing.T) {
	c := qt.New(t)
	r, stdout := newTestRunner(c)
	src := "x=foo\ncase $x in foo|bar) echo matched ;; *) echo other ;; esac\n"
	status, err := runScript(c, r, src)
	c.Assert(err, qt.IsNil)
	c.Check(status, qt.Equals, 0)
	c.Check(stdout(), qt.Equals, "matched\n")
}

func TestSubshellDoesNotLeakVariables(t *testing.T) {
	c := qt.New(t)
	r, stdout := newTestRunner(c)
	src := "x=outer\n(x=inner; echo \"in: $x\")\necho \"out: $x\"\n"
	status, err := runScript(c, r, src)
	c.Assert(err, qt.IsNil)
	c.Check(status, qt.Equals, 0)
	c.Check(stdout(), qt.Equals, "in: inner\nout: outer\n")
}

func TestSubshellExitDoesNotKillParent(t *testing.T) {
	c := qt.New(t)
	r, stdout := newTestRunner(c)
	src := "(exit 3)\necho \"after: $?\"\n"
	status, err := runScript(c, r, src)
	c.Assert(err, qt.IsNil)
	c.Check(status, qt.Equals, 0)
	c.Check(stdout(), qt.Equals, "after: 3\n")
}

func TestTopLevelExitPropagatesAsExitSignal(t *testing.T) {
	c := qt.New(t)
	r, _ := newTestRunner(c)
	_, err := runScript(c, r, "echo one\nexit 5\necho never\n")
	status, ok := ExitStatus(err)
	c.Assert(ok, qt.IsTrue)
	c.Check(status, qt.Equals, 5)
}

func TestAndOrShortCircuit(t *testing.T) {
	c := qt.New(t)
	r, stdout := newTestRunner(c)
	status, err := runScript(c, r, "true && echo a || echo b\n")
	c.Assert(err, qt.IsNil)
	c.Check(status, qt.Equals, 0)
	c.Check(stdout(), qt.Equals, "a\n")
}

func TestGroupRunsInCurrentShell(t *testing.T) {
	c := qt.New(t)
	r, stdout := newTestRunner(c)
	src := "{ x=set; echo $x; }\necho \"after: $x\"\n"
	status, err := runScript(c, r, src)
	c.Assert(err, qt.IsNil)
	c.Check(status, qt.Equals, 0)
	c.Check(stdout(), qt.Equals, "set\nafter: set\n")
}
