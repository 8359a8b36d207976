// Package events defines the gateway's outbound event model and the
// in-memory bus that fans events out to connected SSE clients.
//
// The bus gives every subscriber every event in the same order. Slow
// consumers never stall publishers: a subscriber that cannot keep up is
// disconnected and expected to reconnect.
package events
