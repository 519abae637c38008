// Package api implements the HTTP surface of the camera control container.
//
// All endpoints live under /api/v1 and answer with a unified JSON envelope.
// Commands are routed through the orchestrator; telemetry is served as SSE
// by the hub. Authentication is optional and scope-based when enabled.
package api
