// Package camera presents named, typed camera settings backed by a device
// that only speaks a free-text get/set protocol through the command
// executor. Values and choice sets are cached; the device is round-tripped
// on reload and on writes only.
package camera

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/camera-control/ccc/internal/executor"
)

// Runner is the executor-facing contract the store needs.
type Runner interface {
	Submit(job executor.Job) error
	Wait(timeout time.Duration) (executor.Result, error)
}

// Compile-time assertion that the executor satisfies Runner.
var _ Runner = (*executor.Executor)(nil)

// Default device interaction budgets, matching the tool's observed worst
// cases: reads are quick, writes can stall while the camera commits.
const (
	DefaultGetTimeout      = 10 * time.Second
	DefaultSetTimeout      = 20 * time.Second
	DefaultSetAdmitTimeout = 10 * time.Second
)

// SettingSpec maps a friendly setting name to its device path.
type SettingSpec struct {
	Name string
	Path string

	// Action marks fire-and-forget triggers with no persisted value; their
	// cache is never updated by Apply and never populated by Reload reads.
	Action bool
}

// Choice is one allowed value, in the wire shape the API exposes.
type Choice struct {
	Value string `json:"value"`
}

// SettingView is the read-only snapshot of one setting.
type SettingView struct {
	Name    string   `json:"name"`
	Current string   `json:"current"`
	Choices []Choice `json:"choices"`
	Kind    Kind     `json:"kind,omitempty"`
	Action  bool     `json:"action,omitempty"`
}

// setting holds the cached state of one mapped setting. An empty value means
// never loaded.
type setting struct {
	path    string
	action  bool
	value   string
	choices []string
	kind    Kind
}

// Options configures a Store. Zero timeouts fall back to the defaults.
type Options struct {
	Tool            string
	Settings        []SettingSpec
	GetTimeout      time.Duration
	SetTimeout      time.Duration
	SetAdmitTimeout time.Duration
}

// Store maps friendly setting names to device paths and caches parsed
// responses. The reload lock serializes concurrent reload passes; it is
// distinct from the executor's busy slot, which reloads and unrelated
// submissions still contend on underneath.
type Store struct {
	runner Runner
	tool   string

	getTimeout      time.Duration
	setTimeout      time.Duration
	setAdmitTimeout time.Duration

	reloadMu sync.Mutex
	reloadSF singleflight.Group

	cacheMu  sync.Mutex
	settings map[string]*setting
	order    []string
}

// NewStore creates a settings store over the given runner.
func NewStore(runner Runner, opts Options) *Store {
	s := &Store{
		runner:          runner,
		tool:            opts.Tool,
		getTimeout:      opts.GetTimeout,
		setTimeout:      opts.SetTimeout,
		setAdmitTimeout: opts.SetAdmitTimeout,
		settings:        make(map[string]*setting),
	}
	if s.tool == "" {
		s.tool = "gphoto2"
	}
	if s.getTimeout <= 0 {
		s.getTimeout = DefaultGetTimeout
	}
	if s.setTimeout <= 0 {
		s.setTimeout = DefaultSetTimeout
	}
	if s.setAdmitTimeout <= 0 {
		s.setAdmitTimeout = DefaultSetAdmitTimeout
	}
	for _, spec := range opts.Settings {
		s.settings[spec.Name] = &setting{path: spec.Path, action: spec.Action}
		s.order = append(s.order, spec.Name)
	}
	// Deterministic reload order regardless of spec order in config.
	sort.Strings(s.order)
	return s
}

// Apply writes value to the named setting on the device and optimistically
// updates the cache; the device is not re-queried to confirm the value
// stuck. Action settings skip the cache update. The device signals refusal
// through an "error" marker on stderr, surfaced as ErrWrite.
func (s *Store) Apply(name, value string) error {
	s.cacheMu.Lock()
	st, ok := s.settings[name]
	s.cacheMu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSetting, name)
	}

	job := executor.Job{
		Args:         []string{s.tool, fmt.Sprintf("--set-config-value=%s=%s", st.path, value)},
		RunTimeout:   s.setTimeout,
		AdmitTimeout: s.setAdmitTimeout,
	}
	if err := s.runner.Submit(job); err != nil {
		return err
	}
	res, err := s.runner.Wait(s.setTimeout)
	if err != nil {
		return err
	}
	if err := res.Err(); err != nil {
		return err
	}
	if hasErrorMarker(res.Stderr) {
		return fmt.Errorf("%w: %s", ErrWrite, strings.TrimSpace(res.Stderr))
	}

	if st.action {
		return nil
	}
	s.cacheMu.Lock()
	st.value = value
	s.cacheMu.Unlock()
	return nil
}

// Reload refreshes every mapped setting from the device, one sequential
// round trip per setting. A failure at setting k aborts the pass: settings
// before k keep the values refreshed in this pass, settings after k are not
// attempted. Callers must treat a failed reload as partially applied.
func (s *Store) Reload() error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	for _, name := range s.order {
		s.cacheMu.Lock()
		st := s.settings[name]
		s.cacheMu.Unlock()
		if err := s.reloadOne(name, st); err != nil {
			return err
		}
	}
	return nil
}

// reloadOne round-trips one get-configuration query and overwrites the
// setting's cached value and choices on success.
func (s *Store) reloadOne(name string, st *setting) error {
	job := executor.Job{
		Args:       []string{s.tool, "--get-config=" + st.path},
		RunTimeout: s.getTimeout,
	}
	if err := s.runner.Submit(job); err != nil {
		return err
	}
	res, err := s.runner.Wait(s.getTimeout)
	if err != nil {
		return err
	}
	if err := res.Err(); err != nil {
		return err
	}
	if hasErrorMarker(res.Stderr) {
		return fmt.Errorf("%w: %s: %s", ErrRead, name, strings.TrimSpace(res.Stderr))
	}
	if strings.TrimSpace(res.Stdout) == "" {
		return fmt.Errorf("%w: %s: empty response", ErrRead, name)
	}

	report, err := ParseConfig(res.Stdout)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRead, name, err)
	}

	s.cacheMu.Lock()
	st.value = report.Current
	st.choices = report.Choices
	st.kind = report.Kind
	s.cacheMu.Unlock()
	return nil
}

// Read returns the cached current value and choice set for name. A setting
// that was never loaded triggers one full Reload first; the device protocol
// has no narrower query, so the whole map is refreshed on that first read.
// Concurrent first reads share a single reload pass.
func (s *Store) Read(name string) (string, []Choice, error) {
	s.cacheMu.Lock()
	st, ok := s.settings[name]
	if !ok {
		s.cacheMu.Unlock()
		return "", nil, fmt.Errorf("%w: %s", ErrUnknownSetting, name)
	}
	loaded := st.value != "" || st.action
	s.cacheMu.Unlock()

	if !loaded {
		if _, err, _ := s.reloadSF.Do("reload", func() (interface{}, error) {
			return nil, s.Reload()
		}); err != nil {
			return "", nil, err
		}
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return st.value, choiceViews(st.choices), nil
}

// Snapshot returns the cached view of every mapped setting in name order,
// without touching the device.
func (s *Store) Snapshot() []SettingView {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	views := make([]SettingView, 0, len(s.order))
	for _, name := range s.order {
		st := s.settings[name]
		views = append(views, SettingView{
			Name:    name,
			Current: st.value,
			Choices: choiceViews(st.choices),
			Kind:    st.kind,
			Action:  st.action,
		})
	}
	return views
}

// Names returns the mapped setting names in deterministic order.
func (s *Store) Names() []string {
	return append([]string(nil), s.order...)
}

func choiceViews(values []string) []Choice {
	choices := make([]Choice, 0, len(values))
	for _, v := range values {
		choices = append(choices, Choice{Value: v})
	}
	return choices
}

// hasErrorMarker reports whether the tool's stderr signals a device error.
// The tool prints human text, so this is a case-insensitive substring match
// on the word "error", exactly what its exit codes fail to convey.
func hasErrorMarker(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "error")
}
