// Package protocol owns the relay wire contract.
//
// Ownership boundary:
// - handshake and steady-state envelope shapes
// - acknowledgment and forward frame builders
// - envelope validation entry points
//
// Every frame on the wire is one JSON text message. Field names declared
// here are the contract; no other package spells them.
package protocol
