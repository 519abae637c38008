package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/camera-control/ccc/internal/auth"
)

// RegisterRoutes registers all v1 endpoints.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	apiV1 := "/api/v1"

	// Health stays open even with auth enabled.
	mux.HandleFunc(apiV1+"/health", s.handleHealth)

	mux.HandleFunc(apiV1+"/capabilities", s.protect(auth.ScopeRead, s.handleCapabilities))

	mux.HandleFunc(apiV1+"/settings", s.protect(auth.ScopeRead, s.handleSettingsList))
	mux.HandleFunc(apiV1+"/settings/reload", s.protect(auth.ScopeControl, s.handleSettingsReload))
	mux.HandleFunc(apiV1+"/settings/", s.handleSettingByName)

	mux.HandleFunc(apiV1+"/camera", s.protect(auth.ScopeRead, s.handleCameraStatus))
	mux.HandleFunc(apiV1+"/camera/reset", s.protect(auth.ScopeControl, s.handleCameraReset))
	mux.HandleFunc(apiV1+"/camera/cancel", s.protect(auth.ScopeControl, s.handleCameraCancel))

	mux.HandleFunc(apiV1+"/capture/start", s.protect(auth.ScopeControl, s.handleCaptureStart))
	mux.HandleFunc(apiV1+"/capture/stop", s.protect(auth.ScopeControl, s.handleCaptureStop))
	mux.HandleFunc(apiV1+"/capture/status", s.protect(auth.ScopeRead, s.handleCaptureStatus))

	mux.HandleFunc(apiV1+"/telemetry", s.protect(auth.ScopeRead, s.handleTelemetry))

	mux.HandleFunc(apiV1+"/system/commands", s.protect(auth.ScopeRead, s.handleSystemCommands))
	mux.HandleFunc(apiV1+"/system/run", s.protect(auth.ScopeSystem, s.handleSystemRun))
}

// protect wraps a handler with auth and scope checks when auth is enabled.
func (s *Server) protect(scope string, next http.HandlerFunc) http.HandlerFunc {
	if s.authMiddleware == nil {
		return next
	}
	return s.authMiddleware.RequireAuth(s.authMiddleware.RequireScope(scope)(next))
}

// decodeStrict decodes a JSON request body rejecting unknown fields and
// trailing data.
func decodeStrict(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only "+method+" method is allowed", nil)
		return false
	}
	return true
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	subsystems := map[string]bool{
		"orchestrator": s.orchestrator != nil,
		"telemetry":    s.telemetryHub != nil,
	}

	status := "ok"
	for _, up := range subsystems {
		if !up {
			status = "degraded"
		}
	}

	health := map[string]interface{}{
		"status":     status,
		"uptimeSec":  time.Since(s.startTime).Seconds(),
		"version":    "1.0.0",
		"subsystems": subsystems,
	}

	if status != "ok" {
		WriteError(w, http.StatusServiceUnavailable, "SERVICE_DEGRADED",
			"One or more subsystems are unavailable", health)
		return
	}
	WriteSuccess(w, health)
}

// handleCapabilities handles GET /capabilities.
func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"telemetry": []string{"sse"},
		"commands":  []string{"http-json"},
		"captures":  []string{"lights", "darks", "offsets"},
		"version":   "1.0.0",
	})
}

// handleSettingsList handles GET /settings.
func (s *Server) handleSettingsList(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	WriteSuccess(w, map[string]interface{}{
		"settings": s.orchestrator.ListSettings(r.Context()),
	})
}

// handleSettingsReload handles POST /settings/reload.
func (s *Server) handleSettingsReload(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := s.orchestrator.ReloadSettings(r.Context()); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteSuccess(w, map[string]interface{}{
		"settings": s.orchestrator.ListSettings(r.Context()),
	})
}

// handleSettingByName handles GET and POST /settings/{name}.
func (s *Server) handleSettingByName(w http.ResponseWriter, r *http.Request) {
	name := extractSettingName(r.URL.Path)
	if name == "" {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Setting name is required", nil)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.protect(auth.ScopeRead, func(w http.ResponseWriter, r *http.Request) {
			s.handleGetSetting(w, r, name)
		})(w, r)
	case http.MethodPost:
		s.protect(auth.ScopeControl, func(w http.ResponseWriter, r *http.Request) {
			s.handleSetSetting(w, r, name)
		})(w, r)
	default:
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET and POST methods are allowed", nil)
	}
}

func (s *Server) handleGetSetting(w http.ResponseWriter, r *http.Request, name string) {
	state, err := s.orchestrator.GetSetting(r.Context(), name)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteSuccess(w, state)
}

func (s *Server) handleSetSetting(w http.ResponseWriter, r *http.Request, name string) {
	var req struct {
		Value string `json:"value"`
	}
	if err := decodeStrict(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Malformed JSON or unknown fields", nil)
		return
	}
	if req.Value == "" {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "value is required", nil)
		return
	}

	if err := s.orchestrator.SetSetting(r.Context(), name, req.Value); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteSuccess(w, map[string]string{"name": name, "value": req.Value})
}

// handleCameraStatus handles GET /camera.
func (s *Server) handleCameraStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	WriteSuccess(w, s.orchestrator.DeviceStatus(r.Context()))
}

// handleCameraReset handles POST /camera/reset.
func (s *Server) handleCameraReset(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := s.orchestrator.ResetDevice(r.Context()); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteSuccess(w, s.orchestrator.DeviceStatus(r.Context()))
}

// handleCameraCancel handles POST /camera/cancel.
func (s *Server) handleCameraCancel(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := s.orchestrator.CancelCommand(r.Context()); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteSuccess(w, s.orchestrator.DeviceStatus(r.Context()))
}

// handleCaptureStart handles POST /capture/start.
func (s *Server) handleCaptureStart(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Kind        string `json:"kind"`
		ExposureSec int    `json:"exposureSec"`
		Count       int    `json:"count"`
	}
	if err := decodeStrict(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Malformed JSON or unknown fields", nil)
		return
	}

	if err := s.orchestrator.StartCapture(r.Context(), req.Kind, req.ExposureSec, req.Count); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteSuccess(w, map[string]interface{}{
		"kind":        req.Kind,
		"frames":      req.Count,
		"exposureSec": req.ExposureSec,
	})
}

// handleCaptureStop handles POST /capture/stop.
func (s *Server) handleCaptureStop(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	stopped, err := s.orchestrator.StopCapture(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteSuccess(w, map[string]bool{"stopped": stopped})
}

// handleCaptureStatus handles GET /capture/status.
func (s *Server) handleCaptureStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	WriteSuccess(w, s.orchestrator.CaptureStatus(r.Context()))
}

// handleTelemetry handles GET /telemetry (SSE).
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if s.telemetryHub == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE",
			"Telemetry service not available", nil)
		return
	}

	// The stream outlives the server's write timeout; lift the deadline
	// for this connection only. Recorders in tests don't support
	// deadlines, which is fine to ignore.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})
	_ = rc.SetReadDeadline(time.Time{})

	// Subscribe blocks for the lifetime of the stream; errors after the
	// stream started cannot change the response status.
	_ = s.telemetryHub.Subscribe(r.Context(), w, r)
}

// handleSystemCommands handles GET /system/commands.
func (s *Server) handleSystemCommands(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	WriteSuccess(w, map[string]interface{}{
		"commands": s.orchestrator.SystemCommands(r.Context()),
	})
}

// handleSystemRun handles POST /system/run.
func (s *Server) handleSystemRun(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := decodeStrict(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Malformed JSON or unknown fields", nil)
		return
	}
	if req.Name == "" {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "name is required", nil)
		return
	}

	if err := s.orchestrator.RunSystemCommand(r.Context(), req.Name); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteSuccess(w, map[string]string{"name": req.Name})
}

// extractSettingName pulls the setting name out of /api/v1/settings/{name}.
// Nested paths are rejected.
func extractSettingName(path string) string {
	const prefix = "/api/v1/settings/"
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	name := path[len(prefix):]
	if name == "" || strings.Contains(name, "/") {
		return ""
	}
	return name
}
