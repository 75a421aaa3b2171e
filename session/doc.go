// Package session manages ephemeral editor containers hosted by an external
// controller.
//
// A Manager starts a session by asking the controller's /start endpoint for a
// container, records the returned handle in the Registry and arms a one-shot
// expiry timer keyed by the container id. When the timer fires it runs exactly
// the same stop path that callers use: POST /stop, then drop the registry
// entry. Stopping is idempotent over the container id.
//
// Lifecycle states are Requested → Starting → Live → Stopping → Stopped, with
// Failed as the terminal state of a rejected start. A stop that fails leaves
// the entry in Stopping. Expiry-driven stops that fail for transient reasons
// (transport errors, controller 5xx) are re-scheduled with exponential backoff
// up to a retry budget; after that the Alerter is notified.
//
// Usage:
//
//	reg := session.NewRegistry()
//	mgr := session.NewManager(logger, cfg, gw, reg, session.WithMetrics(metrics))
//	url, err := mgr.Start(ctx, "alice")
//	...
//	msg, err := mgr.Stop(ctx, containerID)
package session
