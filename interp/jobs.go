package interp

import (
	"sync"

	"golang.org/x/sys/unix"
)

// JobState is a job's run state (spec §4.8, "Job table").
type JobState int

const (
	JobRunning JobState = iota
	JobStopped
	JobDone
)

// Job is one background or stopped pipeline (spec §4.8): its process
// group, the pids still outstanding within it, and its last known state.
type Job struct {
	ID         int
	PGID       int
	Cmdline    string
	State      JobState
	ExitStatus int
	Pids       []int
}

// JobTable tracks jobs keyed by process group id (spec §4.8).
type JobTable struct {
	mu     sync.Mutex
	jobs   map[int]*Job
	nextID int
}

// NewJobTable returns an empty job table.
func NewJobTable() *JobTable { return &JobTable{jobs: make(map[int]*Job), nextID: 1} }

// Add registers a new job (spec §4.8, launching an async pipeline).
func (jt *JobTable) Add(pgid int, cmdline string, pids []int) *Job {
	jt.mu.Lock()
	defer jt.mu.Unlock()
	j := &Job{ID: jt.nextID, PGID: pgid, Cmdline: cmdline, State: JobRunning, Pids: append([]int(nil), pids...)}
	jt.nextID++
	jt.jobs[pgid] = j
	return j
}

// Get returns the job with the given pgid.
func (jt *JobTable) Get(pgid int) (*Job, bool) {
	jt.mu.Lock()
	defer jt.mu.Unlock()
	j, ok := jt.jobs[pgid]
	return j, ok
}

// SetStatus updates a job's recorded state directly (spec §4.6, `wait`
// observing an already-reaped job).
func (jt *JobTable) SetStatus(pgid int, state JobState, exitStatus int) {
	jt.mu.Lock()
	defer jt.mu.Unlock()
	if j, ok := jt.jobs[pgid]; ok {
		j.State = state
		j.ExitStatus = exitStatus
	}
}

// Remove drops a job from the table (spec §4.8, after `wait` consumes a
// Done job).
func (jt *JobTable) Remove(pgid int) {
	jt.mu.Lock()
	defer jt.mu.Unlock()
	delete(jt.jobs, pgid)
}

// Each calls fn for every tracked job (spec §4.6, `jobs` builtin).
func (jt *JobTable) Each(fn func(*Job)) {
	jt.mu.Lock()
	defer jt.mu.Unlock()
	for _, j := range jt.jobs {
		fn(j)
	}
}

// Reap non-blockingly collects state changes for the pgids this table
// actually tracks (spec §4.8, "Job table": "a non-blocking wait4(WNOHANG)
// poll over tracked pgids"). It deliberately does not wait on pid -1 (any
// child): Reap runs at every safe point (interp.go's safePoint) while a
// foreground external command or pipeline stage may concurrently be
// blocked in its own cmd.Wait(), and a child's exit status can only be
// collected once — an indiscriminate wait4(-1, ...) could win that race
// and starve the foreground Wait() forever. Scoping each call to
// wait4(-pgid, ...) for a pgid this table put there itself (via a real
// os/exec Setpgid background launch) can never collide with an untracked
// foreground child's pid/pgid.
func (jt *JobTable) Reap() {
	jt.mu.Lock()
	pgids := make([]int, 0, len(jt.jobs))
	for pgid, j := range jt.jobs {
		if pgid > 0 && j.State == JobRunning {
			pgids = append(pgids, pgid)
		}
	}
	jt.mu.Unlock()

	for _, pgid := range pgids {
		for {
			var ws unix.WaitStatus
			pid, err := unix.Wait4(-pgid, &ws, unix.WNOHANG|unix.WUNTRACED, nil)
			if err != nil || pid <= 0 {
				break
			}
			jt.mu.Lock()
			if j, ok := jt.jobs[pgid]; ok {
				for i, p := range j.Pids {
					if p != pid {
						continue
					}
					j.Pids = append(j.Pids[:i], j.Pids[i+1:]...)
					switch {
					case ws.Exited():
						if len(j.Pids) == 0 {
							j.State = JobDone
							j.ExitStatus = ws.ExitStatus()
						}
					case ws.Signaled():
						if len(j.Pids) == 0 {
							j.State = JobDone
							j.ExitStatus = 128 + int(ws.Signal())
						}
					case ws.Stopped():
						j.State = JobStopped
					}
					break
				}
			}
			jt.mu.Unlock()
		}
	}
}
