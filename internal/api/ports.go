// Ports (interfaces) for the API server's dependencies.
package api

import (
	"context"
	"net/http"

	"github.com/camera-control/ccc/internal/camera"
	"github.com/camera-control/ccc/internal/capture"
	"github.com/camera-control/ccc/internal/command"
	"github.com/camera-control/ccc/internal/telemetry"
)

// OrchestratorPort is the minimal interface the API needs from the
// orchestrator.
type OrchestratorPort interface {
	ListSettings(ctx context.Context) []camera.SettingView
	GetSetting(ctx context.Context, name string) (*command.SettingState, error)
	SetSetting(ctx context.Context, name, value string) error
	ReloadSettings(ctx context.Context) error

	StartCapture(ctx context.Context, kind string, exposureSec, count int) error
	StopCapture(ctx context.Context) (bool, error)
	CaptureStatus(ctx context.Context) capture.Status

	DeviceStatus(ctx context.Context) command.DeviceState
	ResetDevice(ctx context.Context) error
	CancelCommand(ctx context.Context) error

	SystemCommands(ctx context.Context) []string
	RunSystemCommand(ctx context.Context, name string) error
}

// TelemetryPort is the minimal interface the API needs from the telemetry
// hub.
type TelemetryPort interface {
	Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// Compile-time assertions for port conformance.
var (
	_ OrchestratorPort = (*command.Orchestrator)(nil)
	_ TelemetryPort    = (*telemetry.Hub)(nil)
)
