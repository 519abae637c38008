// Package executor serializes external command execution behind a single
// slot. One dedicated worker goroutine runs at most one command at a time;
// submission is decoupled from result retrieval so callers can poll or block
// as they see fit. The most recent completed result is retained until a newer
// job completes or the slot is reset.
package executor

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// Status classifies how a job resolved.
type Status string

const (
	// StatusNone is the sentinel before any job has ever completed.
	StatusNone Status = "NONE"

	// StatusOK means the command ran to completion. The exit code may still
	// be non-zero; the tool's diagnostics are preserved in Stdout/Stderr.
	StatusOK Status = "OK"

	// StatusError means the process could not be run or failed unexpectedly.
	StatusError Status = "ERROR"

	// StatusTimeout means the command exceeded its run timeout and its
	// process group was killed.
	StatusTimeout Status = "TIMEOUT"

	// StatusNotFound means the executable could not be located.
	StatusNotFound Status = "NOT_FOUND"

	// StatusAborted means the job was terminated by Cancel.
	StatusAborted Status = "ABORTED"
)

// Job describes one external command invocation.
type Job struct {
	// Args is the command and its arguments.
	Args []string

	// RunTimeout bounds how long the process itself may execute before it
	// is killed and the job resolves as StatusTimeout. Zero means no bound.
	RunTimeout time.Duration

	// AdmitTimeout bounds how long Submit will poll-wait for the slot to
	// free before failing with ErrBusy. Zero or negative fails immediately.
	AdmitTimeout time.Duration
}

// Result captures the outcome of one completed job.
type Result struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
	Status   Status `json:"status"`
}

// Err maps a non-OK result to its normalized error. A StatusOK result never
// yields an error here even when the exit code is non-zero; whether that is
// a failure is the caller's call.
func (r Result) Err() error {
	switch r.Status {
	case StatusTimeout:
		return fmt.Errorf("%w: %s", ErrTimeout, r.Stderr)
	case StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, r.Stderr)
	case StatusAborted:
		return ErrAborted
	case StatusError:
		return fmt.Errorf("%w: %s", ErrExecution, r.Stderr)
	default:
		return nil
	}
}

// pending tracks one submitted job until its completion signal fires.
type pending struct {
	job     Job
	result  Result
	done    chan struct{}
	aborted atomic.Bool
	pgid    int
}

// Executor owns the single execution slot.
//
// The busy flag, the in-flight reference and the last result are updated
// atomically with respect to each other under mu, so no caller can observe
// an idle state with a dangling in-flight job or vice versa.
type Executor struct {
	mu      sync.Mutex
	busy    bool
	current *pending
	last    Result
	gen     uint64

	jobs chan *pending
	wg   sync.WaitGroup

	// admitInterval is the Submit poll cadence. Shortened in tests.
	admitInterval time.Duration
}

// New creates an executor and starts its worker goroutine.
func New() *Executor {
	e := &Executor{
		last:          Result{Status: StatusNone},
		jobs:          make(chan *pending, 1),
		admitInterval: time.Second,
	}
	e.wg.Add(1)
	go e.worker()
	return e
}

// Submit hands a job to the worker and returns without waiting for
// completion. If a job is already in flight the call fails with ErrBusy
// once the job's admission budget is exhausted; a positive AdmitTimeout
// poll-waits for the slot at a fixed cadence. Admission is cooperative,
// not a queue: a second waiter is not guaranteed the slot ahead of a third.
func (e *Executor) Submit(job Job) error {
	admit := job.AdmitTimeout
	for {
		e.mu.Lock()
		if !e.busy {
			p := &pending{job: job, done: make(chan struct{})}
			e.busy = true
			e.current = p
			e.mu.Unlock()
			// Capacity 1 and the busy flag guarantee this never blocks.
			e.jobs <- p
			return nil
		}
		e.mu.Unlock()

		if admit <= 0 {
			return ErrBusy
		}
		time.Sleep(e.admitInterval)
		admit -= e.admitInterval
	}
}

// Wait blocks until the in-flight job completes or timeout elapses. When no
// job is in flight it returns the last stored result immediately, including
// the StatusNone sentinel before any job has ever run. A wait timeout does
// NOT cancel the job; it keeps running and updates the last result on its
// own schedule.
func (e *Executor) Wait(timeout time.Duration) (Result, error) {
	e.mu.Lock()
	if !e.busy || e.current == nil {
		r := e.last
		e.mu.Unlock()
		return r, nil
	}
	p := e.current
	e.mu.Unlock()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-p.done:
		return p.result, nil
	case <-t.C:
		return Result{}, ErrTimeout
	}
}

// Last returns the most recently completed job's result without blocking.
// While a job is in flight this intentionally lags behind it.
func (e *Executor) Last() Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Generation returns the count of jobs completed so far. A caller that
// records the generation when it submits can later tell whether the slot's
// occupant and the last result are still its own: its job's completion is
// exactly one increment.
func (e *Executor) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen
}

// Busy reports whether a job is currently in flight.
func (e *Executor) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// Reset clears the stored last result. It fails with ErrBusy while a job is
// in flight: the pending result is about to be needed for status reporting.
func (e *Executor) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return ErrBusy
	}
	e.last = Result{Status: StatusNone}
	return nil
}

// Cancel terminates the in-flight job's process group and resolves its
// result as StatusAborted. With no job in flight it behaves as Reset.
func (e *Executor) Cancel() error {
	e.mu.Lock()
	if !e.busy || e.current == nil {
		e.last = Result{Status: StatusNone}
		e.mu.Unlock()
		return nil
	}
	p := e.current
	pgid := p.pgid
	p.aborted.Store(true)
	e.mu.Unlock()

	if pgid > 0 {
		// Negative pid addresses the whole process group so children
		// spawned by the tool are terminated as well.
		_ = unix.Kill(-pgid, unix.SIGKILL)
	}
	return nil
}

// Close stops accepting jobs and waits for the worker to drain. Submitting
// after Close panics.
func (e *Executor) Close() {
	close(e.jobs)
	e.wg.Wait()
}

func (e *Executor) worker() {
	defer e.wg.Done()
	for p := range e.jobs {
		p.result = e.run(p)

		e.mu.Lock()
		if p == e.current {
			e.last = p.result
			e.busy = false
			e.current = nil
		}
		e.gen++
		e.mu.Unlock()
		close(p.done)
	}
}

// run executes one job to completion. It always returns a terminal result;
// classification errors are folded into Stderr the way the device tool's
// own diagnostics would be.
func (e *Executor) run(p *pending) Result {
	if p.aborted.Load() {
		// Cancelled between admission and execution.
		return Result{Status: StatusAborted, ExitCode: -1}
	}
	if len(p.job.Args) == 0 {
		return Result{Status: StatusError, Stderr: "empty command", ExitCode: -1}
	}

	cmd := exec.Command(p.job.Args[0], p.job.Args[1:]...)
	// Deterministic text locale keeps the tool's output keys stable for
	// downstream parsing.
	cmd.Env = append(os.Environ(), "LANG=C.UTF-8")
	// Own process group, so timeout and cancellation can kill the whole
	// tree rather than just the direct child.
	cmd.SysProcAttr = &unix.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return Result{
				Status:   StatusNotFound,
				Stderr:   fmt.Sprintf("%s not found; is it installed and in PATH?", p.job.Args[0]),
				ExitCode: -1,
			}
		}
		return Result{Status: StatusError, Stderr: err.Error(), ExitCode: -1}
	}

	pgid := cmd.Process.Pid
	e.mu.Lock()
	p.pgid = pgid
	e.mu.Unlock()
	if p.aborted.Load() {
		// Cancel raced with Start and missed the pgid; finish the kill here.
		_ = unix.Kill(-pgid, unix.SIGKILL)
	}

	var timedOut atomic.Bool
	if p.job.RunTimeout > 0 {
		timer := time.AfterFunc(p.job.RunTimeout, func() {
			timedOut.Store(true)
			_ = unix.Kill(-pgid, unix.SIGKILL)
		})
		defer timer.Stop()
	}

	err := cmd.Wait()

	switch {
	case p.aborted.Load():
		return Result{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			ExitCode: -1,
			Status:   StatusAborted,
		}
	case timedOut.Load():
		return Result{
			Stderr:   "command timed out; is the camera connected and responsive?",
			ExitCode: -1,
			Status:   StatusTimeout,
		}
	case err == nil:
		return Result{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			ExitCode: cmd.ProcessState.ExitCode(),
			Status:   StatusOK,
		}
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Non-zero exit is still a completed run; the caller decides
			// what the exit code means.
			return Result{
				Stdout:   stdout.String(),
				Stderr:   stderr.String(),
				ExitCode: exitErr.ExitCode(),
				Status:   StatusOK,
			}
		}
		return Result{
			Stdout:   stdout.String(),
			Stderr:   err.Error(),
			ExitCode: -1,
			Status:   StatusError,
		}
	}
}
