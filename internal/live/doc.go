// Package live connects the gateway to an external live streaming
// platform. A signed control API opens and closes sessions, a binary
// websocket protocol delivers room events, and the Manager state machine
// guarantees at most one session with exactly one stop notification.
package live
