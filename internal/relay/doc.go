// Package relay owns the websocket session plane.
//
// Ownership boundary:
// - handshake gating and first-frame token auth
// - session registration and replacement
// - frame routing between controllers and agents
// - per-session outbound write queues
//
// The relay does not issue tokens and does not decide liveness; those
// belong to auth and the registry sweeper.
package relay
