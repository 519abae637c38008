package command

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camera-control/ccc/internal/camera"
	"github.com/camera-control/ccc/internal/capture"
	"github.com/camera-control/ccc/internal/config"
	"github.com/camera-control/ccc/internal/executor"
	"github.com/camera-control/ccc/internal/system"
	"github.com/camera-control/ccc/internal/telemetry"
)

type fakeSettings struct {
	values   map[string]string
	applyErr error
	readErr  error
	reloads  int
	applied  map[string]string
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{
		values:  map[string]string{"iso": "800", "aperture": "5.6"},
		applied: make(map[string]string),
	}
}

func (f *fakeSettings) Read(name string) (string, []camera.Choice, error) {
	if f.readErr != nil {
		return "", nil, f.readErr
	}
	v, ok := f.values[name]
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", camera.ErrUnknownSetting, name)
	}
	return v, []camera.Choice{{Value: v}}, nil
}

func (f *fakeSettings) Apply(name, value string) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied[name] = value
	return nil
}

func (f *fakeSettings) Reload() error {
	f.reloads++
	return nil
}

func (f *fakeSettings) Snapshot() []camera.SettingView {
	return []camera.SettingView{{Name: "aperture", Current: "5.6"}, {Name: "iso", Current: "800"}}
}

func (f *fakeSettings) Names() []string { return []string{"aperture", "iso"} }

type fakeCapture struct {
	startErr error
	stopped  bool
	status   capture.Status
	started  []string
}

func (f *fakeCapture) Start(kind string, exposureSec, count int) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, kind)
	return nil
}

func (f *fakeCapture) Stop() (bool, error) { return f.stopped, nil }

func (f *fakeCapture) Status() capture.Status { return f.status }

type fakeSystem struct {
	runErr error
	ran    []string
}

func (f *fakeSystem) Run(name string) error {
	if f.runErr != nil {
		return f.runErr
	}
	f.ran = append(f.ran, name)
	return nil
}

func (f *fakeSystem) Supported() []string { return []string{"restart", "shutdown"} }

type fakeDevice struct {
	busy      bool
	last      executor.Result
	resetErr  error
	cancelErr error
	resets    int
	cancels   int
}

func (f *fakeDevice) Busy() bool            { return f.busy }
func (f *fakeDevice) Last() executor.Result { return f.last }
func (f *fakeDevice) Reset() error {
	if f.resetErr != nil {
		return f.resetErr
	}
	f.resets++
	return nil
}
func (f *fakeDevice) Cancel() error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancels++
	return nil
}

type auditRecord struct {
	action  string
	target  string
	outcome string
}

type recordingAudit struct {
	records []auditRecord
}

func (r *recordingAudit) LogAction(ctx context.Context, action, target, outcome string, latency time.Duration) {
	r.records = append(r.records, auditRecord{action: action, target: target, outcome: outcome})
}

type fixture struct {
	orch     *Orchestrator
	settings *fakeSettings
	capture  *fakeCapture
	system   *fakeSystem
	device   *fakeDevice
	audit    *recordingAudit
}

func newFixture(t *testing.T, hub *telemetry.Hub) *fixture {
	t.Helper()
	f := &fixture{
		settings: newFakeSettings(),
		capture:  &fakeCapture{status: capture.Status{State: capture.StateIdle}},
		system:   &fakeSystem{},
		device:   &fakeDevice{last: executor.Result{Status: executor.StatusNone}},
		audit:    &recordingAudit{},
	}
	f.orch = NewOrchestrator(Options{
		Settings:     f.settings,
		Capture:      f.capture,
		System:       f.system,
		Device:       f.device,
		TelemetryHub: hub,
		AuditLogger:  f.audit,
	})
	return f
}

func lastRecord(t *testing.T, a *recordingAudit) auditRecord {
	t.Helper()
	require.NotEmpty(t, a.records)
	return a.records[len(a.records)-1]
}

func TestGetSettingReturnsValueAndAudits(t *testing.T) {
	f := newFixture(t, nil)

	state, err := f.orch.GetSetting(context.Background(), "iso")
	require.NoError(t, err)
	assert.Equal(t, "iso", state.Name)
	assert.Equal(t, "800", state.Current)

	rec := lastRecord(t, f.audit)
	assert.Equal(t, "getSetting", rec.action)
	assert.Equal(t, "iso", rec.target)
	assert.Equal(t, "SUCCESS", rec.outcome)
}

func TestGetSettingUnknownAuditsOutcome(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.orch.GetSetting(context.Background(), "whitebalance")
	require.ErrorIs(t, err, camera.ErrUnknownSetting)
	assert.Equal(t, "UNKNOWN_SETTING", lastRecord(t, f.audit).outcome)
}

func TestSetSettingAppliesValue(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.orch.SetSetting(context.Background(), "iso", "1600"))
	assert.Equal(t, "1600", f.settings.applied["iso"])

	rec := lastRecord(t, f.audit)
	assert.Equal(t, "setSetting", rec.action)
	assert.Equal(t, "SUCCESS", rec.outcome)
}

func TestSetSettingBusyMapsOutcome(t *testing.T) {
	f := newFixture(t, nil)
	f.settings.applyErr = executor.ErrBusy

	err := f.orch.SetSetting(context.Background(), "iso", "1600")
	require.ErrorIs(t, err, executor.ErrBusy)
	assert.Equal(t, "BUSY", lastRecord(t, f.audit).outcome)
}

func TestReloadSettingsAudits(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.orch.ReloadSettings(context.Background()))
	assert.Equal(t, 1, f.settings.reloads)
	assert.Equal(t, "reloadSettings", lastRecord(t, f.audit).action)
}

func TestStartCaptureInvalidParamsAudited(t *testing.T) {
	f := newFixture(t, nil)
	f.capture.startErr = capture.ErrInvalidParams

	err := f.orch.StartCapture(context.Background(), "lights", 0, 10)
	require.ErrorIs(t, err, capture.ErrInvalidParams)
	assert.Equal(t, "BAD_REQUEST", lastRecord(t, f.audit).outcome)
}

func TestStartAndStopCapture(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.orch.StartCapture(context.Background(), "darks", 30, 10))
	assert.Equal(t, []string{"darks"}, f.capture.started)

	f.capture.stopped = true
	stopped, err := f.orch.StopCapture(context.Background())
	require.NoError(t, err)
	assert.True(t, stopped)
}

func TestDeviceStatusReflectsExecutor(t *testing.T) {
	f := newFixture(t, nil)
	f.device.busy = true
	f.device.last = executor.Result{Status: executor.StatusOK, Stdout: "done"}

	state := f.orch.DeviceStatus(context.Background())
	assert.True(t, state.Busy)
	assert.Equal(t, executor.StatusOK, state.Last.Status)
}

func TestResetDeviceBusyMapsOutcome(t *testing.T) {
	f := newFixture(t, nil)
	f.device.resetErr = executor.ErrBusy

	err := f.orch.ResetDevice(context.Background())
	require.ErrorIs(t, err, executor.ErrBusy)
	assert.Equal(t, "BUSY", lastRecord(t, f.audit).outcome)
}

func TestCancelCommandAudits(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.orch.CancelCommand(context.Background()))
	assert.Equal(t, 1, f.device.cancels)
	assert.Equal(t, "cancelCommand", lastRecord(t, f.audit).action)
}

func TestRunSystemCommandUnknownMapsOutcome(t *testing.T) {
	f := newFixture(t, nil)
	f.system.runErr = fmt.Errorf("%w: reboot", system.ErrUnknownCommand)

	err := f.orch.RunSystemCommand(context.Background(), "reboot")
	require.ErrorIs(t, err, system.ErrUnknownCommand)
	assert.Equal(t, "UNKNOWN_COMMAND", lastRecord(t, f.audit).outcome)
}

func TestRunSystemCommandSuccess(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.orch.RunSystemCommand(context.Background(), "shutdown"))
	assert.Equal(t, []string{"shutdown"}, f.system.ran)
}

func TestEveryActionWritesOneAuditRecord(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, _ = f.orch.GetSetting(ctx, "iso")
	_ = f.orch.SetSetting(ctx, "iso", "1600")
	_ = f.orch.ReloadSettings(ctx)
	_ = f.orch.StartCapture(ctx, "lights", 30, 10)
	_, _ = f.orch.StopCapture(ctx)
	_ = f.orch.ResetDevice(ctx)
	_ = f.orch.CancelCommand(ctx)
	_ = f.orch.RunSystemCommand(ctx, "shutdown")

	require.Len(t, f.audit.records, 8)
	actions := make([]string, 0, len(f.audit.records))
	for _, rec := range f.audit.records {
		actions = append(actions, rec.action)
		assert.Equal(t, "SUCCESS", rec.outcome)
	}
	assert.Equal(t, []string{
		"getSetting", "setSetting", "reloadSettings", "startCapture",
		"stopCapture", "resetDevice", "cancelCommand", "systemCommand",
	}, actions)
}

func TestNilAuditLoggerIsSafe(t *testing.T) {
	f := newFixture(t, nil)
	f.orch = NewOrchestrator(Options{
		Settings: f.settings,
		Capture:  f.capture,
		System:   f.system,
		Device:   f.device,
	})

	require.NoError(t, f.orch.SetSetting(context.Background(), "iso", "1600"))
	require.NoError(t, f.orch.ReloadSettings(context.Background()))
	require.NoError(t, f.orch.ResetDevice(context.Background()))
}

func TestOutcomeOfMapsSentinels(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, "SUCCESS"},
		{executor.ErrTimeout, "TIMEOUT"},
		{executor.ErrNotFound, "TOOL_NOT_FOUND"},
		{executor.ErrAborted, "ABORTED"},
		{camera.ErrRead, "READ_FAILED"},
		{camera.ErrWrite, "WRITE_FAILED"},
		{capture.ErrInvalidKind, "BAD_REQUEST"},
		{errors.New("boom"), "ERROR"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, outcomeOf(tc.err))
	}
}

func TestSetSettingPublishesTelemetryEvent(t *testing.T) {
	hub := telemetry.NewHub(&config.TimingConfig{
		HeartbeatInterval: time.Minute,
		EventBufferSize:   10,
	})
	t.Cleanup(hub.Stop)
	f := newFixture(t, hub)

	require.NoError(t, f.orch.SetSetting(context.Background(), "iso", "1600"))
	require.NoError(t, f.orch.SetSetting(context.Background(), "aperture", "8"))

	// Replay from event 1 must surface the second settingChanged event.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/telemetry", nil)
	req.Header.Set("Last-Event-ID", "1")

	require.NoError(t, hub.Subscribe(ctx, rec, req))
	body := rec.Body.String()
	assert.Contains(t, body, "event: settingChanged")
	assert.Contains(t, body, `"name":"aperture"`)
}
