package simlink

import "context"

// Simulator is the boundary interface to the simulator collaborator: a
// native library that produces telemetry frames and accepts opaque numeric
// event codes (spec.md §6). The core never interprets the wire protocol
// itself — only this interface.
type Simulator interface {
	// Connect establishes the link to the simulator process. Reconnection
	// after a transient outage is the implementation's responsibility.
	Connect(ctx context.Context) error

	// Connected reports whether the link is currently up.
	Connected() bool

	// Disconnect tears down the link. Safe to call on an already
	// disconnected simulator.
	Disconnect()

	// Frames delivers telemetry snapshots as they arrive (~30 Hz,
	// irregular). The channel is closed when the simulator disconnects.
	Frames() <-chan Frame

	// TransmitClientEvent sends a scaled integer value for a named
	// simulator event, mirroring transmitClientEvent(groupId, eventId,
	// value, priority, flags) from spec.md §6. Returns an error wrapping
	// apperr.KindSimulatorUnavailable if the link is down.
	TransmitClientEvent(ctx context.Context, eventName string, value int) error
}
