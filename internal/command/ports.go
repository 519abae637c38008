// Ports (interfaces) the orchestrator needs from the layers below it.
package command

import (
	"context"
	"time"

	"github.com/camera-control/ccc/internal/camera"
	"github.com/camera-control/ccc/internal/capture"
	"github.com/camera-control/ccc/internal/executor"
	"github.com/camera-control/ccc/internal/system"
)

// Settings is the settings-store contract.
type Settings interface {
	Read(name string) (string, []camera.Choice, error)
	Apply(name, value string) error
	Reload() error
	Snapshot() []camera.SettingView
	Names() []string
}

// Capture is the capture-controller contract.
type Capture interface {
	Start(kind string, exposureSec, count int) error
	Stop() (bool, error)
	Status() capture.Status
}

// System is the host command contract.
type System interface {
	Run(name string) error
	Supported() []string
}

// Device exposes the executor slot for direct inspection and control.
type Device interface {
	Busy() bool
	Last() executor.Result
	Reset() error
	Cancel() error
}

// AuditLogger writes one audit record per action.
type AuditLogger interface {
	LogAction(ctx context.Context, action, target, outcome string, latency time.Duration)
}

// Compile-time assertions that the concrete implementations satisfy the
// ports.
var (
	_ Settings = (*camera.Store)(nil)
	_ Capture  = (*capture.Controller)(nil)
	_ System   = (*system.Manager)(nil)
	_ Device   = (*executor.Executor)(nil)
)
