// Package capture drives long-running capture sequences through the command
// executor. A sequence is one tool invocation shooting N frames; it occupies
// the executor's single slot for its whole duration, so settings traffic and
// a running capture contend on the same busy flag by construction.
package capture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/camera-control/ccc/internal/executor"
)

// Kind selects the capture sequence flavor.
const (
	KindLights  = "lights"
	KindDarks   = "darks"
	KindOffsets = "offsets"
)

// Capture states reported by Status.
const (
	StateIdle      = "idle"
	StateCapturing = "capturing"
	StateFinished  = "finished"
	StateFailed    = "failed"
	StateAborted   = "aborted"
)

var (
	// ErrInvalidKind indicates an unsupported capture kind.
	ErrInvalidKind = errors.New("INVALID_KIND")

	// ErrInvalidParams indicates a non-positive exposure or frame count.
	ErrInvalidParams = errors.New("INVALID_PARAMS")
)

// Runner is the executor-facing contract the controller needs. Generation
// counts completed jobs; it is how the controller tells whether the slot's
// occupant and the last result are still the capture's own.
type Runner interface {
	Submit(job executor.Job) error
	Busy() bool
	Last() executor.Result
	Generation() uint64
	Cancel() error
}

// Compile-time assertion that the executor satisfies Runner.
var _ Runner = (*executor.Executor)(nil)

// Status is the non-blocking capture status snapshot.
type Status struct {
	State   string           `json:"state"`
	Kind    string           `json:"kind,omitempty"`
	Frames  int              `json:"frames,omitempty"`
	Message string           `json:"message,omitempty"`
	Result  *executor.Result `json:"result,omitempty"`
}

// sequence records the capture currently attributed to the executor slot.
// gen is the runner generation observed at submission; the capture's own
// completion is exactly one increment past it.
type sequence struct {
	kind      string
	frames    int
	startedAt time.Time
	gen       uint64
}

// Controller builds capture command lines and tracks the active sequence.
type Controller struct {
	runner  Runner
	tool    string
	baseDir string
	margin  time.Duration

	mu     sync.Mutex
	active *sequence
}

// Options configures a Controller.
type Options struct {
	Tool    string
	BaseDir string

	// Margin pads the computed run timeout to absorb download and
	// inter-frame overhead. Defaults to 2 minutes.
	Margin time.Duration
}

// NewController creates a capture controller over the given runner.
func NewController(runner Runner, opts Options) *Controller {
	c := &Controller{
		runner:  runner,
		tool:    opts.Tool,
		baseDir: opts.BaseDir,
		margin:  opts.Margin,
	}
	if c.tool == "" {
		c.tool = "gphoto2"
	}
	if c.baseDir == "" {
		c.baseDir = filepath.Join(os.TempDir(), "captures")
	}
	if c.margin <= 0 {
		c.margin = 2 * time.Minute
	}
	return c
}

// Start submits a capture sequence with a zero admission timeout: if the
// slot is occupied, by another capture or by settings traffic, the caller
// gets ErrBusy immediately instead of queueing behind it.
func (c *Controller) Start(kind string, exposureSec, count int) error {
	args, runTimeout, err := c.buildSequence(kind, exposureSec, count)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	err = c.runner.Submit(executor.Job{
		Args:       args,
		RunTimeout: runTimeout,
		// AdmitTimeout left zero on purpose.
	})
	if err != nil {
		return err
	}
	c.active = &sequence{
		kind:      kind,
		frames:    count,
		startedAt: time.Now(),
		gen:       c.runner.Generation(),
	}
	return nil
}

// buildSequence constructs the tool invocation for one capture kind.
// The camera is told to download frames to the host (capturetarget=1) and
// files are named with a timestamp plus frame counter to avoid overwrites.
func (c *Controller) buildSequence(kind string, exposureSec, count int) ([]string, time.Duration, error) {
	if count <= 0 {
		return nil, 0, fmt.Errorf("%w: count must be positive", ErrInvalidParams)
	}

	dir := filepath.Join(c.baseDir, kind)
	filename := filepath.Join(dir, kind+"_%Y%m%d_%H%M%S_%C")

	args := []string{c.tool, "--set-config", "capturetarget=1"}

	switch kind {
	case KindLights, KindDarks:
		if exposureSec <= 0 {
			return nil, 0, fmt.Errorf("%w: exposure must be positive", ErrInvalidParams)
		}
		args = append(args,
			"--set-config", "shutterspeed="+strconv.Itoa(exposureSec),
			"--frames", strconv.Itoa(count),
			"--interval", "1",
			"--filename", filename,
		)
	case KindOffsets:
		// Bias frames want the fastest shutter; interval -1 shoots as fast
		// as the camera allows.
		args = append(args,
			"--set-config", "shutterspeed=0",
			"--frames", strconv.Itoa(count),
			"--interval", "-1",
			"--filename", filename,
		)
		exposureSec = 1
	default:
		return nil, 0, fmt.Errorf("%w: %s", ErrInvalidKind, kind)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, 0, fmt.Errorf("create capture directory: %w", err)
	}

	runTimeout := time.Duration(exposureSec*count)*time.Second + c.margin
	return args, runTimeout, nil
}

// Stop terminates the active capture's process group. Stopping with no
// active capture is a no-op reporting false, and so is stopping a capture
// that already finished: the slot may be occupied by an unrelated job by
// then, and that job must not be killed in the capture's name.
func (c *Controller) Stop() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return false, nil
	}
	if !c.runner.Busy() || c.runner.Generation() != c.active.gen {
		c.active = nil
		return false, nil
	}
	if err := c.runner.Cancel(); err != nil {
		return false, err
	}
	c.active = nil
	return true, nil
}

// Status reports the capture state without blocking. The first poll that
// observes a finished sequence consumes it: the terminal state is reported
// once, subsequent polls return idle. That mirrors how capture results are
// cleared after being read off.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return Status{State: StateIdle, Message: "no capture in progress"}
	}

	gen := c.runner.Generation()
	if c.runner.Busy() && gen == c.active.gen {
		return Status{
			State:   StateCapturing,
			Kind:    c.active.kind,
			Frames:  c.active.frames,
			Message: fmt.Sprintf("%s capture in progress", c.active.kind),
		}
	}

	// The sequence completed since the last poll; consume it.
	seq := c.active
	c.active = nil

	// The last result belongs to this capture only while no later job has
	// completed on top of it.
	if gen != seq.gen+1 {
		return Status{
			State:   StateFinished,
			Kind:    seq.kind,
			Frames:  seq.frames,
			Message: "capture completed; result superseded by a later command",
		}
	}
	res := c.runner.Last()

	status := Status{Kind: seq.kind, Frames: seq.frames, Result: &res}
	switch {
	case res.Status == executor.StatusAborted:
		status.State = StateAborted
		status.Message = "capture aborted"
	case res.Status == executor.StatusOK && res.ExitCode == 0:
		status.State = StateFinished
		status.Message = "capture completed successfully"
	default:
		status.State = StateFailed
		status.Message = "capture failed: " + firstNonEmpty(res.Stderr, string(res.Status))
	}
	return status
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
