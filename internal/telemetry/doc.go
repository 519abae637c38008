// Package telemetry implements the SSE event hub for the camera control
// container.
//
// The hub fans out events to all connected SSE clients and keeps a replay
// buffer of the last N events so a reconnecting client can resume from its
// Last-Event-ID header without losing state transitions.
package telemetry
