package command

import (
	"context"
	"errors"
	"time"

	"github.com/camera-control/ccc/internal/camera"
	"github.com/camera-control/ccc/internal/capture"
	"github.com/camera-control/ccc/internal/executor"
	"github.com/camera-control/ccc/internal/system"
	"github.com/camera-control/ccc/internal/telemetry"
)

// SettingState is the API-facing view of one setting read.
type SettingState struct {
	Name    string          `json:"name"`
	Current string          `json:"current"`
	Choices []camera.Choice `json:"choices"`
}

// DeviceState is the API-facing view of the executor slot.
type DeviceState struct {
	Busy bool            `json:"busy"`
	Last executor.Result `json:"last"`
}

// Orchestrator routes validated API intents to the domain components.
type Orchestrator struct {
	settings Settings
	capture  Capture
	system   System
	device   Device

	telemetryHub *telemetry.Hub
	auditLogger  AuditLogger
}

// Options wires the orchestrator's collaborators. TelemetryHub and
// AuditLogger may be nil; the corresponding side effects are skipped.
type Options struct {
	Settings     Settings
	Capture      Capture
	System       System
	Device       Device
	TelemetryHub *telemetry.Hub
	AuditLogger  AuditLogger
}

// NewOrchestrator creates a command orchestrator.
func NewOrchestrator(opts Options) *Orchestrator {
	return &Orchestrator{
		settings:     opts.Settings,
		capture:      opts.Capture,
		system:       opts.System,
		device:       opts.Device,
		telemetryHub: opts.TelemetryHub,
		auditLogger:  opts.AuditLogger,
	}
}

// ListSettings returns the cached view of every mapped setting.
func (o *Orchestrator) ListSettings(ctx context.Context) []camera.SettingView {
	return o.settings.Snapshot()
}

// GetSetting returns the current value and choice set for one setting,
// loading the settings map from the device on first access.
func (o *Orchestrator) GetSetting(ctx context.Context, name string) (*SettingState, error) {
	start := time.Now()

	value, choices, err := o.settings.Read(name)
	latency := time.Since(start)

	if err != nil {
		o.logAudit(ctx, "getSetting", name, outcomeOf(err), latency)
		o.publishFaultEvent(err, "Failed to read setting "+name)
		return nil, err
	}

	o.logAudit(ctx, "getSetting", name, "SUCCESS", latency)
	return &SettingState{Name: name, Current: value, Choices: choices}, nil
}

// SetSetting writes one setting value to the device.
func (o *Orchestrator) SetSetting(ctx context.Context, name, value string) error {
	start := time.Now()

	err := o.settings.Apply(name, value)
	latency := time.Since(start)

	if err != nil {
		o.logAudit(ctx, "setSetting", name, outcomeOf(err), latency)
		o.publishFaultEvent(err, "Failed to apply setting "+name)
		return err
	}

	o.logAudit(ctx, "setSetting", name, "SUCCESS", latency)
	o.publishEvent("settingChanged", map[string]interface{}{
		"name":  name,
		"value": value,
	})
	return nil
}

// ReloadSettings refreshes the whole settings map from the device.
func (o *Orchestrator) ReloadSettings(ctx context.Context) error {
	start := time.Now()

	err := o.settings.Reload()
	latency := time.Since(start)

	if err != nil {
		o.logAudit(ctx, "reloadSettings", "", outcomeOf(err), latency)
		o.publishFaultEvent(err, "Settings reload failed")
		return err
	}

	o.logAudit(ctx, "reloadSettings", "", "SUCCESS", latency)
	o.publishEvent("reloadCompleted", map[string]interface{}{
		"settings": o.settings.Names(),
	})
	return nil
}

// StartCapture begins a capture sequence of the given kind.
func (o *Orchestrator) StartCapture(ctx context.Context, kind string, exposureSec, count int) error {
	start := time.Now()

	err := o.capture.Start(kind, exposureSec, count)
	latency := time.Since(start)

	if err != nil {
		o.logAudit(ctx, "startCapture", kind, outcomeOf(err), latency)
		o.publishFaultEvent(err, "Failed to start capture")
		return err
	}

	o.logAudit(ctx, "startCapture", kind, "SUCCESS", latency)
	o.publishEvent("captureStarted", map[string]interface{}{
		"kind":        kind,
		"frames":      count,
		"exposureSec": exposureSec,
	})
	return nil
}

// StopCapture terminates the active capture sequence, if any. The bool
// reports whether a capture was actually stopped.
func (o *Orchestrator) StopCapture(ctx context.Context) (bool, error) {
	start := time.Now()

	stopped, err := o.capture.Stop()
	latency := time.Since(start)

	if err != nil {
		o.logAudit(ctx, "stopCapture", "", outcomeOf(err), latency)
		o.publishFaultEvent(err, "Failed to stop capture")
		return false, err
	}

	o.logAudit(ctx, "stopCapture", "", "SUCCESS", latency)
	if stopped {
		o.publishEvent("captureStopped", map[string]interface{}{})
	}
	return stopped, nil
}

// CaptureStatus reports the capture state without blocking.
func (o *Orchestrator) CaptureStatus(ctx context.Context) capture.Status {
	return o.capture.Status()
}

// DeviceStatus reports the executor slot: busy flag and last finished
// result.
func (o *Orchestrator) DeviceStatus(ctx context.Context) DeviceState {
	return DeviceState{Busy: o.device.Busy(), Last: o.device.Last()}
}

// ResetDevice clears the last result. Fails busy while a command runs.
func (o *Orchestrator) ResetDevice(ctx context.Context) error {
	start := time.Now()

	err := o.device.Reset()
	o.logAudit(ctx, "resetDevice", "", outcomeOf(err), time.Since(start))
	return err
}

// CancelCommand kills the running command's process group, if any.
func (o *Orchestrator) CancelCommand(ctx context.Context) error {
	start := time.Now()

	err := o.device.Cancel()
	latency := time.Since(start)

	if err != nil {
		o.logAudit(ctx, "cancelCommand", "", outcomeOf(err), latency)
		return err
	}

	o.logAudit(ctx, "cancelCommand", "", "SUCCESS", latency)
	o.publishEvent("commandCancelled", map[string]interface{}{})
	return nil
}

// SystemCommands lists the configured host command names.
func (o *Orchestrator) SystemCommands(ctx context.Context) []string {
	return o.system.Supported()
}

// RunSystemCommand executes a configured host command (shutdown, restart).
func (o *Orchestrator) RunSystemCommand(ctx context.Context, name string) error {
	start := time.Now()

	err := o.system.Run(name)
	latency := time.Since(start)

	if err != nil {
		o.logAudit(ctx, "systemCommand", name, outcomeOf(err), latency)
		o.publishFaultEvent(err, "System command failed")
		return err
	}

	o.logAudit(ctx, "systemCommand", name, "SUCCESS", latency)
	o.publishEvent("systemCommand", map[string]interface{}{
		"name": name,
	})
	return nil
}

// logAudit writes one audit record when a logger is configured.
func (o *Orchestrator) logAudit(ctx context.Context, action, target, outcome string, latency time.Duration) {
	if o.auditLogger != nil {
		o.auditLogger.LogAction(ctx, action, target, outcome, latency)
	}
}

// outcomeOf maps an error to its audit outcome code.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "SUCCESS"
	case errors.Is(err, executor.ErrBusy):
		return "BUSY"
	case errors.Is(err, executor.ErrTimeout):
		return "TIMEOUT"
	case errors.Is(err, executor.ErrNotFound):
		return "TOOL_NOT_FOUND"
	case errors.Is(err, executor.ErrAborted):
		return "ABORTED"
	case errors.Is(err, camera.ErrUnknownSetting):
		return "UNKNOWN_SETTING"
	case errors.Is(err, camera.ErrRead):
		return "READ_FAILED"
	case errors.Is(err, camera.ErrWrite):
		return "WRITE_FAILED"
	case errors.Is(err, capture.ErrInvalidKind), errors.Is(err, capture.ErrInvalidParams):
		return "BAD_REQUEST"
	case errors.Is(err, system.ErrUnknownCommand):
		return "UNKNOWN_COMMAND"
	default:
		return "ERROR"
	}
}

// publishEvent publishes a telemetry event with a timestamp attached.
func (o *Orchestrator) publishEvent(eventType string, data map[string]interface{}) {
	if o.telemetryHub == nil {
		return
	}
	data["ts"] = time.Now().UTC().Format(time.RFC3339)
	o.telemetryHub.Publish(telemetry.Event{Type: eventType, Data: data})
}

// publishFaultEvent publishes a fault event for a failed action.
func (o *Orchestrator) publishFaultEvent(err error, message string) {
	if o.telemetryHub == nil {
		return
	}
	o.publishEvent("fault", map[string]interface{}{
		"code":    outcomeOf(err),
		"message": message,
	})
}
