package interp

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/renameio/v2"

	"github.com/xaonfc/posish/ast"
)

// FDTable is the executor's view of the process's numbered file
// descriptors (spec §4.5, "Redirection engine"): a logical slot map backed
// by *os.File, since this core runs redirected external commands through
// os/exec rather than a real fork.
type FDTable struct {
	files map[int]*os.File
}

// NewFDTable returns a table seeded with the process's standard streams.
func NewFDTable() *FDTable {
	return &FDTable{files: map[int]*os.File{0: os.Stdin, 1: os.Stdout, 2: os.Stderr}}
}

// Get returns the file currently bound to fd n, or nil if n is closed.
func (t *FDTable) Get(n int) *os.File { return t.files[n] }

// Set binds fd n to f.
func (t *FDTable) Set(n int, f *os.File) { t.files[n] = f }

// Clone returns an independent copy of the table (spec §4.5, subshells
// inherit but don't share their parent's redirection scope).
func (t *FDTable) Clone() *FDTable {
	c := &FDTable{files: make(map[int]*os.File, len(t.files))}
	for n, f := range t.files {
		c.files[n] = f
	}
	return c
}

// Redirector applies and unwinds redirection lists against an FDTable
// (spec §4.5). Opened files are tracked so Apply's returned undo can close
// them again once the attached command/list finishes.
type Redirector struct {
	table *FDTable
}

// NewRedirector returns a Redirector operating on table.
func NewRedirector(table *FDTable) *Redirector { return &Redirector{table: table} }

// Apply opens and binds every redirection in redirs in order (spec §4.5:
// "later redirections in the same list override earlier ones on the same
// fd"), expanding each target word via expandTarget. It returns an undo
// function that restores the table to its pre-Apply state; the caller must
// invoke it once the attached command/list has finished (spec §4.5,
// "Redirection scope").
func (r *Redirector) Apply(redirs []*ast.Redirect, expandTarget func(*ast.Word) (string, error)) (func(), error) {
	type saved struct {
		fd   int
		prev *os.File
		had  bool
	}
	var saves []saved
	var opened []*os.File

	undo := func() {
		for i := len(saves) - 1; i >= 0; i-- {
			s := saves[i]
			if s.had {
				r.table.Set(s.fd, s.prev)
			} else {
				delete(r.table.files, s.fd)
			}
		}
		for _, f := range opened {
			f.Close()
		}
	}

	for _, rd := range redirs {
		fd := rd.IONumber
		if fd < 0 {
			fd = defaultFD(rd.Kind)
		}
		prev, had := r.table.files[fd]
		saves = append(saves, saved{fd: fd, prev: prev, had: had})

		switch rd.Kind {
		case ast.RedirFileIn:
			target, err := expandTarget(rd.Target)
			if err != nil {
				undo()
				return nil, err
			}
			f, err := os.Open(target)
			if err != nil {
				undo()
				return nil, fmt.Errorf("%s: %w", target, err)
			}
			opened = append(opened, f)
			r.table.Set(fd, f)

		case ast.RedirFileOut, ast.RedirFileOutClobber:
			target, err := expandTarget(rd.Target)
			if err != nil {
				undo()
				return nil, err
			}
			f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
			if err != nil {
				undo()
				return nil, fmt.Errorf("%s: %w", target, err)
			}
			opened = append(opened, f)
			r.table.Set(fd, f)

		case ast.RedirFileAppend:
			target, err := expandTarget(rd.Target)
			if err != nil {
				undo()
				return nil, err
			}
			f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
			if err != nil {
				undo()
				return nil, fmt.Errorf("%s: %w", target, err)
			}
			opened = append(opened, f)
			r.table.Set(fd, f)

		case ast.RedirRW:
			target, err := expandTarget(rd.Target)
			if err != nil {
				undo()
				return nil, err
			}
			f, err := os.OpenFile(target, os.O_RDWR|os.O_CREATE, 0o644)
			if err != nil {
				undo()
				return nil, fmt.Errorf("%s: %w", target, err)
			}
			opened = append(opened, f)
			r.table.Set(fd, f)

		case ast.RedirDupIn, ast.RedirDupOut:
			if rd.DupClose {
				delete(r.table.files, fd)
				continue
			}
			src := r.table.Get(rd.DupFD)
			if src == nil {
				undo()
				return nil, fmt.Errorf("%d: bad file descriptor", rd.DupFD)
			}
			r.table.Set(fd, src)

		case ast.RedirHeredoc, ast.RedirHeredocStripTabs:
			f, err := heredocFile(rd.Hdoc)
			if err != nil {
				undo()
				return nil, err
			}
			opened = append(opened, f)
			r.table.Set(fd, f)
		}
	}
	return undo, nil
}

func defaultFD(kind ast.RedirKind) int {
	switch kind {
	case ast.RedirFileOut, ast.RedirFileOutClobber, ast.RedirFileAppend, ast.RedirDupOut:
		return 1
	default:
		return 0
	}
}

// heredocFile returns a readable file holding a heredoc body (spec §4.1,
// "Heredoc body reading"; spec §4.5, heredoc redirection). A body of at
// most 4096 bytes (one atomic pipe write) is written into a pipe and the
// read end is returned. A larger body, or one for which the pipe cannot be
// created or written, is spilled into a temp file through renameio, for
// crash-consistent writes, then reopened read-only and unlinked so the fd
// is the only remaining reference.
func heredocFile(body string) (*os.File, error) {
	if len(body) <= 4096 {
		if pr, pw, err := os.Pipe(); err == nil {
			_, werr := pw.WriteString(body)
			pw.Close()
			if werr == nil {
				return pr, nil
			}
			pr.Close()
		}
	}
	target := filepath.Join(os.TempDir(), fmt.Sprintf("posish-heredoc-%d-%s", os.Getpid(), strconv.FormatInt(time.Now().UnixNano(), 36)))
	pf, err := renameio.NewPendingFile(target)
	if err != nil {
		return nil, err
	}
	if _, err := pf.Write([]byte(body)); err != nil {
		pf.Cleanup()
		return nil, err
	}
	if err := pf.CloseAtomically(); err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if err != nil {
		os.Remove(target)
		return nil, err
	}
	os.Remove(target)
	return f, nil
}
