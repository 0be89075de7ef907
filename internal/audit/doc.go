// Package audit carries auth events from the engine to a sink without
// blocking the request path.
//
// [Dispatcher] owns the only background goroutine in the module. With
// DropIfFull set, a full buffer drops the event and counts it. Otherwise
// Emit waits for space or for ctx.
//
// The package decides nothing about which events exist; the engine does.
package audit
