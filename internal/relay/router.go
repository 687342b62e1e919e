package relay

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/danmuck/wardctl/internal/observability"
	"github.com/danmuck/wardctl/internal/protocol"
	"github.com/danmuck/wardctl/internal/registry"
)

// liveSession is the routing view of the connection a frame arrived on.
type liveSession struct {
	id     string
	role   protocol.Role
	handle registry.Handle
}

// route dispatches one inbound frame by sender role. Every frame counts
// as activity and produces exactly one acknowledgment to the sender.
func (s *Service) route(sender liveSession, data []byte) {
	start := time.Now()
	s.reg.Touch(sender.id)

	var kind, outcome string
	switch sender.role {
	case protocol.RoleController:
		kind, outcome = s.routeController(sender, data)
	default:
		kind, outcome = s.routeAgent(sender, data)
	}
	observability.RecordFrame(string(sender.role), kind, outcome, time.Since(start))
}

func (s *Service) routeAgent(sender liveSession, data []byte) (string, string) {
	env, err := protocol.DecodeAgentEnvelope(data)
	if err != nil {
		s.reply(sender, protocol.ErrorAck(protocol.MsgProcessingError(err)))
		return protocol.KindUnknown, "error"
	}

	switch {
	case env.Kind == protocol.KindHeartbeat:
		s.reply(sender, protocol.SuccessAck(env.Kind))
		return env.Kind, "success"
	case s.recognizedKind(env.Kind):
		s.forwardToController(sender, env)
		s.reply(sender, protocol.SuccessAck(env.Kind))
		return env.Kind, "success"
	default:
		s.logger.Warn().Str("client_id", sender.id).Str("kind", env.Kind).Msg("unknown_data_type")
		s.reply(sender, protocol.ErrorAck(protocol.MsgUnknownKind(env.Kind)))
		return env.Kind, "error"
	}
}

// forwardToController relays one recognized data frame to the oldest
// connected controller. The sender's ack does not depend on the
// outcome here; delivery toward the controller is fire-and-forget.
func (s *Service) forwardToController(sender liveSession, env protocol.AgentEnvelope) {
	target, ok := s.reg.FirstByRole(protocol.RoleController)
	if !ok {
		s.logger.Warn().Str("client_id", sender.id).Str("kind", env.Kind).Msg("no_controller_online")
		observability.RecordForwardDrop("no_controller")
		return
	}

	frame, _ := json.Marshal(protocol.NewDataForward(env.Kind, sender.id, env.Payload, time.Now()))
	if err := target.Handle.Deliver(frame); err != nil {
		s.logger.Warn().
			Err(err).
			Str("from", sender.id).
			Str("to", target.ID).
			Str("kind", env.Kind).
			Msg("forward_dropped")
		observability.RecordForwardDrop(dropReason(err))
		return
	}
	observability.RecordForward("to_controller")
	s.logger.Info().
		Str("from", sender.id).
		Str("to", target.ID).
		Str("kind", env.Kind).
		Msg("data_forwarded")
}

func (s *Service) routeController(sender liveSession, data []byte) (string, string) {
	env, err := protocol.DecodeCommandEnvelope(data)
	if err != nil {
		s.reply(sender, protocol.ErrorAck(protocol.MsgCommandError(err)))
		return protocol.KindCommand, "error"
	}
	if env.TargetID == "" {
		s.reply(sender, protocol.ErrorAck(protocol.MsgTargetNotSpecified))
		return env.Command, "error"
	}

	sess, ok := s.reg.Get(env.TargetID)
	if !ok || sess.Role != protocol.RoleAgent {
		s.reply(sender, protocol.ErrorAck(protocol.MsgTargetNotFound(env.TargetID)))
		return env.Command, "error"
	}

	frame, _ := json.Marshal(protocol.NewCommandForward(env.Command, env.Payload, time.Now()))
	if err := sess.Handle.Deliver(frame); err != nil {
		s.logger.Warn().
			Err(err).
			Str("from", sender.id).
			Str("to", sess.ID).
			Str("command", env.Command).
			Msg("command_dropped")
		observability.RecordForwardDrop(dropReason(err))
		s.reply(sender, protocol.ErrorAck(protocol.MsgCommandError(err)))
		return env.Command, "error"
	}
	observability.RecordForward("to_agent")
	s.logger.Info().
		Str("from", sender.id).
		Str("to", sess.ID).
		Str("command", env.Command).
		Msg("command_forwarded")
	s.reply(sender, protocol.CommandAck(env.Command, sess.ID))
	return env.Command, "success"
}

// reply sends one ack back on the sender's own handle. A sender whose
// queue is already full simply misses the ack.
func (s *Service) reply(sender liveSession, ack protocol.Ack) {
	frame, _ := json.Marshal(ack)
	if err := sender.handle.Deliver(frame); err != nil {
		s.logger.Warn().Err(err).Str("client_id", sender.id).Msg("ack_dropped")
	}
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrQueueFull):
		return "queue_full"
	case errors.Is(err, ErrHandleClosed):
		return "handle_closed"
	default:
		return "write_failed"
	}
}
