package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status values carried in server-originated frames.
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusConnected = "connected"
)

// Frame kinds with reserved routing semantics. KindUnknown stands in for a
// frame that omitted its discriminator.
const (
	KindHeartbeat = "heartbeat"
	KindCommand   = "command"
	KindUnknown   = "unknown"
)

// AckSuffix tags per-kind success acknowledgments, e.g. "camera_ack".
const AckSuffix = "_ack"

// DefaultDataKinds returns the stock agent report vocabulary. Heartbeat is
// not listed: it is always recognized and never forwarded.
func DefaultDataKinds() []string {
	return []string{"camera", "microphone", "screen", "directory", "files", "location"}
}

// Role labels one side of the relay conversation.
type Role string

const (
	RoleController Role = "controller"
	RoleAgent      Role = "agent"
)

// ParseRole resolves a wire role string.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleController:
		return RoleController, nil
	case RoleAgent:
		return RoleAgent, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
}

// Valid reports whether r is one of the two relay roles.
func (r Role) Valid() bool {
	return r == RoleController || r == RoleAgent
}

// Handshake is the first frame every connection must send.
type Handshake struct {
	Token string `json:"token"`
}

func (h Handshake) Validate() error {
	if strings.TrimSpace(h.Token) == "" {
		return ErrMissingToken
	}
	return nil
}

// DecodeHandshake parses and validates the opening credential frame.
func DecodeHandshake(data []byte) (Handshake, error) {
	var hs Handshake
	if err := json.Unmarshal(data, &hs); err != nil {
		return Handshake{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if err := hs.Validate(); err != nil {
		return Handshake{}, err
	}
	return hs, nil
}

// Connected confirms a successful handshake to the connecting client.
type Connected struct {
	Status   string `json:"status"`
	ClientID string `json:"client_id"`
	UserType Role   `json:"user_type"`
}

func NewConnected(clientID string, role Role) Connected {
	return Connected{Status: StatusConnected, ClientID: clientID, UserType: role}
}

// AgentEnvelope is one report frame from an agent connection.
type AgentEnvelope struct {
	Kind    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeAgentEnvelope parses one agent frame. A missing kind resolves to
// KindUnknown and a missing payload to an empty object, so downstream code
// never sees zero values.
func DecodeAgentEnvelope(data []byte) (AgentEnvelope, error) {
	var env AgentEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return AgentEnvelope{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if strings.TrimSpace(env.Kind) == "" {
		env.Kind = KindUnknown
	}
	env.Payload = normalizePayload(env.Payload)
	return env, nil
}

// CommandEnvelope is one command frame from a controller connection.
type CommandEnvelope struct {
	Command  string          `json:"command"`
	TargetID string          `json:"target_child"`
	Payload  json.RawMessage `json:"payload"`
}

// DecodeCommandEnvelope parses one controller frame. The target is left
// untouched for the router to judge; command and payload are normalized the
// same way agent frames are.
func DecodeCommandEnvelope(data []byte) (CommandEnvelope, error) {
	var env CommandEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return CommandEnvelope{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if strings.TrimSpace(env.Command) == "" {
		env.Command = KindUnknown
	}
	env.Payload = normalizePayload(env.Payload)
	return env, nil
}

// Ack is the single reply envelope returned for every inbound frame.
// Success acks to agents carry Type; success acks to controllers carry
// Message and Command; error acks carry Message only.
type Ack struct {
	Status  string `json:"status"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
	Command string `json:"command,omitempty"`
}

// SuccessAck acknowledges one agent frame of the given kind.
func SuccessAck(kind string) Ack {
	return Ack{Status: StatusSuccess, Type: kind + AckSuffix}
}

// CommandAck acknowledges a command accepted for delivery to targetID.
func CommandAck(command, targetID string) Ack {
	return Ack{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("Command %s sent to %s", command, targetID),
		Command: command,
	}
}

// ErrorAck reports a refused frame back to its sender.
func ErrorAck(message string) Ack {
	return Ack{Status: StatusError, Message: message}
}

// CommandForward is the frame relayed to a target agent.
type CommandForward struct {
	Type      string          `json:"type"`
	Command   string          `json:"command"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp string          `json:"timestamp"`
}

func NewCommandForward(command string, payload json.RawMessage, at time.Time) CommandForward {
	return CommandForward{
		Type:      KindCommand,
		Command:   command,
		Payload:   normalizePayload(payload),
		Timestamp: Timestamp(at),
	}
}

// DataForward is the frame relayed to a controller on behalf of an agent.
type DataForward struct {
	Type      string          `json:"type"`
	From      string          `json:"from"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp string          `json:"timestamp"`
}

func NewDataForward(kind, from string, payload json.RawMessage, at time.Time) DataForward {
	return DataForward{
		Type:      kind,
		From:      from,
		Payload:   normalizePayload(payload),
		Timestamp: Timestamp(at),
	}
}

// Timestamp renders the wire timestamp format.
func Timestamp(at time.Time) string {
	return at.UTC().Format(time.RFC3339)
}

func normalizePayload(payload json.RawMessage) json.RawMessage {
	if len(payload) == 0 || string(payload) == "null" {
		return json.RawMessage("{}")
	}
	return payload
}
