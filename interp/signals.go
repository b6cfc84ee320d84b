package interp

import (
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// TrapDisposition is the state of one signal's handling (spec §4.8,
// "Signal subsystem"): the default action, explicitly ignored, or
// replaced with shell command text.
type TrapDisposition int

const (
	TrapDefault TrapDisposition = iota
	TrapIgnored
	TrapTrapped
)

// Trap is one condition's current disposition (spec §4.8).
type Trap struct {
	Disposition TrapDisposition
	Action      string // shell source text to run when Trapped
}

// namedSignals maps the trap condition names the shell accepts (spec §4.8,
// "trap name") to the underlying OS signal.
var namedSignals = map[string]syscall.Signal{
	"HUP":  unix.SIGHUP,
	"INT":  unix.SIGINT,
	"QUIT": unix.SIGQUIT,
	"TERM": unix.SIGTERM,
	"USR1": unix.SIGUSR1,
	"USR2": unix.SIGUSR2,
	"PIPE": unix.SIGPIPE,
	"ALRM": unix.SIGALRM,
	"CHLD": unix.SIGCHLD,
	"TSTP": unix.SIGTSTP,
	"CONT": unix.SIGCONT,
}

// SignalTable is the shell's signal subsystem (spec §4.8). A signal.Notify
// goroutine is the only place that touches the OS signal stream; it can't
// safely run arbitrary shell commands itself (that requires the full
// interpreter, allocations, I/O — none of it async-signal-safe), so it
// only flips entries in a pending set. The interpreter drains that set at
// the safe points between top-level commands (spec §4.8, "delivery
// timing") and runs the recorded trap action there.
type SignalTable struct {
	mu      sync.Mutex
	traps   map[string]*Trap
	pending map[string]bool
	ch      chan os.Signal

	// onFatal is invoked, instead of exiting directly, when a signal with
	// default (untrapped) disposition arrives (spec §4.8: "EXIT trap fires
	// at normal or triggered shell exit" — a signal-triggered exit must run
	// the EXIT trap too, not just a normal return from Run). Set by New,
	// which has the owning Runner in scope; nil only in standalone tests of
	// this table, where falling back to a bare os.Exit is fine.
	onFatal func(name string)
}

// SetOnFatal installs the hook loop calls on a default-disposition signal.
func (st *SignalTable) SetOnFatal(fn func(name string)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.onFatal = fn
}

// NewSignalTable starts the notification goroutine and returns the table.
func NewSignalTable() *SignalTable {
	st := &SignalTable{
		traps:   make(map[string]*Trap),
		pending: make(map[string]bool),
		ch:      make(chan os.Signal, 16),
	}
	sigs := make([]os.Signal, 0, len(namedSignals))
	for _, s := range namedSignals {
		sigs = append(sigs, s)
	}
	signal.Notify(st.ch, sigs...)
	go st.loop()
	return st
}

func (st *SignalTable) loop() {
	for sig := range st.ch {
		name := nameForSignal(sig)
		if name == "" {
			continue
		}
		st.mu.Lock()
		t, trapped := st.traps[name]
		switch {
		case trapped && t.Disposition == TrapIgnored:
		case trapped && t.Disposition == TrapTrapped:
			st.pending[name] = true
		default:
			if name != "CHLD" {
				fatal := st.onFatal
				st.mu.Unlock()
				if fatal != nil {
					fatal(name)
				} else {
					os.Exit(128 + int(namedSignals[name]))
				}
				continue
			}
		}
		st.mu.Unlock()
	}
}

func nameForSignal(sig os.Signal) string {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return ""
	}
	for name, v := range namedSignals {
		if v == s {
			return name
		}
	}
	return ""
}

// normalizeCond accepts "INT", "SIGINT", or "0"/"EXIT" (spec §4.8, trap
// condition naming); "0" is EXIT's traditional alias.
func normalizeCond(cond string) string {
	if cond == "0" {
		return "EXIT"
	}
	return strings.TrimPrefix(strings.ToUpper(cond), "SIG")
}

// SetTrap records cond's disposition (spec §4.6, `trap`). EXIT is a
// pseudo-condition fired once by the interpreter on shell exit, not an OS
// signal (spec §4.8).
func (st *SignalTable) SetTrap(cond string, disposition TrapDisposition, action string) {
	cond = normalizeCond(cond)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.traps[cond] = &Trap{Disposition: disposition, Action: action}
}

// Get returns cond's current trap, if one was set.
func (st *SignalTable) Get(cond string) (*Trap, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	t, ok := st.traps[normalizeCond(cond)]
	return t, ok
}

// Each calls fn for every condition with a non-default trap (spec §4.6,
// `trap` with no arguments: listing form).
func (st *SignalTable) Each(fn func(cond string, t *Trap)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for cond, t := range st.traps {
		if t.Disposition == TrapDefault {
			continue
		}
		fn(cond, t)
	}
}

// TakePending drains and returns the conditions that fired since the last
// call, clearing them (spec §4.8, delivery at safe points).
func (st *SignalTable) TakePending() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.pending) == 0 {
		return nil
	}
	names := make([]string, 0, len(st.pending))
	for n := range st.pending {
		names = append(names, n)
	}
	for _, n := range names {
		delete(st.pending, n)
	}
	return names
}
