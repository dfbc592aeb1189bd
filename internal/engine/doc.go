// Package engine owns one logical CSTA connection.
//
// Ownership boundary:
// - connect/disconnect lifecycle over internal/transport
// - per-engine sequence numbers and frame construction
// - inbound read loop, decode and dispatch to subscribers
// - login cleartext fallback and keepalive scheduling
//
// Inbound frames are decoded and delivered on the read goroutine in arrival
// order. Subscribers run synchronously on that goroutine and must not block.
package engine
