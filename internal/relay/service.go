package relay

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/wardctl/internal/auth"
	"github.com/danmuck/wardctl/internal/observability"
	"github.com/danmuck/wardctl/internal/protocol"
	"github.com/danmuck/wardctl/internal/registry"
)

// Relay session endpoint configuration.
type ServiceConfig struct {
	ID               string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	SendQueueDepth   int
	MaxFrameBytes    int64
	AllowedOrigins   []string
	DataKinds        []string
}

// Relay service defaults for session endpoint configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ID:               "wardd.local",
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		SendQueueDepth:   256,
		MaxFrameBytes:    1 << 20,
		AllowedOrigins:   []string{"*"},
		DataKinds:        protocol.DefaultDataKinds(),
	}
}

// Relay runtime service owning the websocket session plane.
type Service struct {
	cfg      ServiceConfig
	verifier auth.Verifier
	reg      *registry.Registry
	upgrader websocket.Upgrader
	kinds    map[string]struct{}
	logger   zerolog.Logger

	connsMu sync.Mutex
	conns   map[*websocket.Conn]struct{}

	clientCount atomic.Int64
	draining    atomic.Bool
}

func NewService(cfg ServiceConfig, verifier auth.Verifier, reg *registry.Registry) *Service {
	def := DefaultServiceConfig()
	if strings.TrimSpace(cfg.ID) == "" {
		cfg.ID = def.ID
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.SendQueueDepth <= 0 {
		cfg.SendQueueDepth = def.SendQueueDepth
	}
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = def.MaxFrameBytes
	}
	if len(cfg.DataKinds) == 0 {
		cfg.DataKinds = def.DataKinds
	}

	kinds := make(map[string]struct{}, len(cfg.DataKinds))
	for _, kind := range cfg.DataKinds {
		kinds[strings.TrimSpace(kind)] = struct{}{}
	}

	return &Service{
		cfg:      cfg,
		verifier: verifier,
		reg:      reg,
		upgrader: newUpgrader(cfg.AllowedOrigins),
		kinds:    kinds,
		logger:   log.With().Str("component", "relay").Logger(),
		conns:    make(map[*websocket.Conn]struct{}),
	}
}

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowAll := len(allowedOrigins) == 0 ||
		(len(allowedOrigins) == 1 && allowedOrigins[0] == "*")
	originSet := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		originSet[origin] = true
	}

	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if allowAll {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return originSet[origin]
		},
	}
}

// HandleConnection upgrades one HTTP request and runs its session until
// the connection drops. clientID comes from the request path.
func (s *Service) HandleConnection(w http.ResponseWriter, r *http.Request, clientID string) {
	if s.draining.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("upgrade_failed")
		return
	}
	s.trackConn(conn)
	s.handleConn(conn, clientID)
}

// Relay connection handler covering the gate, registration and the read
// loop for one session.
func (s *Service) handleConn(conn *websocket.Conn, clientID string) {
	defer conn.Close()
	defer s.untrackConn(conn)
	remote := conn.RemoteAddr().String()
	active := s.clientCount.Add(1)
	s.logger.Info().Str("remote", remote).Int64("active_clients", active).Msg("client_connected")
	defer func() {
		remaining := s.clientCount.Add(-1)
		s.logger.Info().Str("remote", remote).Int64("active_clients", remaining).Msg("client_disconnected")
	}()

	conn.SetReadLimit(s.cfg.MaxFrameBytes)

	identity, err := s.gate(conn)
	if err != nil {
		s.logger.Warn().Err(err).Str("remote", remote).Msg("handshake_rejected")
		s.closePolicyViolation(conn)
		return
	}
	if clientID == "" {
		clientID = identity.Username
	}

	h := newSessionHandle(conn, s.cfg.SendQueueDepth, s.cfg.WriteTimeout)
	if displaced := s.reg.Register(clientID, identity.Role, h); displaced != nil {
		_ = displaced.Close()
		s.logger.Info().Str("client_id", clientID).Msg("session_replaced")
	}
	observability.RecordSessionOpen(string(identity.Role))
	defer observability.RecordSessionClose(string(identity.Role))
	defer h.Close()
	defer s.reg.RemoveHandle(clientID, h)

	s.logger.Info().
		Str("client_id", clientID).
		Str("user_type", string(identity.Role)).
		Str("remote", remote).
		Msg("session_registered")

	frame, _ := json.Marshal(protocol.NewConnected(clientID, identity.Role))
	if err := h.Deliver(frame); err != nil {
		return
	}

	sender := liveSession{id: clientID, role: identity.Role, handle: h}
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		s.route(sender, data)
	}
}

// Relay handshake gate. The first frame must carry a verifiable token
// before the deadline; nothing else is accepted on the wire until then.
func (s *Service) gate(conn *websocket.Conn) (auth.Identity, error) {
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	_, data, err := conn.ReadMessage()
	if err != nil {
		observability.RecordHandshakeFailure("read")
		return auth.Identity{}, fmt.Errorf("relay: handshake read: %w", err)
	}
	hs, err := protocol.DecodeHandshake(data)
	if err != nil {
		observability.RecordHandshakeFailure("bad_frame")
		return auth.Identity{}, err
	}
	identity, err := s.verifier.Verify(hs.Token)
	if err != nil {
		observability.RecordHandshakeFailure("bad_token")
		return auth.Identity{}, err
	}
	return identity, nil
}

func (s *Service) closePolicyViolation(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.cfg.WriteTimeout))
}

func (s *Service) recognizedKind(kind string) bool {
	_, ok := s.kinds[kind]
	return ok
}

// SetDraining flips connection admission for shutdown.
func (s *Service) SetDraining(v bool) {
	s.draining.Store(v)
}

// Ready reports whether new connections are being admitted.
func (s *Service) Ready() bool {
	return !s.draining.Load()
}

// ActiveClients returns the number of open websocket connections,
// including ones still in the handshake gate.
func (s *Service) ActiveClients() int64 {
	return s.clientCount.Load()
}

// Relay connection-tracking add operation for coordinated shutdown.
func (s *Service) trackConn(conn *websocket.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.conns[conn] = struct{}{}
}

// Relay connection-tracking remove operation after connection teardown.
func (s *Service) untrackConn(conn *websocket.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, conn)
}

// Close drops every tracked connection during shutdown.
func (s *Service) Close() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
		delete(s.conns, conn)
	}
}
