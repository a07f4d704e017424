// Package pubsub delivers progress snapshots from the tracker to whoever is
// following a session: an in-process Bus for single-node deployments and the
// terminal front-ends, and Redis pub/sub for multi-node API deployments.
package pubsub
