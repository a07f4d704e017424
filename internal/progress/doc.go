// Package progress tracks the state of long-running generation sessions and
// publishes time-based progress snapshots to subscribers.
//
// Progress reporting is best-effort telemetry: no operation returns an error,
// unknown session ids are ignored and publish failures are only logged.
// Finalized sessions stay readable for a retention window and are then
// removed by a timer stored with the session, which re-initialization cancels.
package progress
