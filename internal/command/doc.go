// Package command implements the orchestrator for the camera control
// container.
//
// The orchestrator routes validated API intents to the settings store, the
// capture controller, the system command manager and the executor itself,
// wraps every action with an audit record and emits telemetry events for
// state changes.
package command
