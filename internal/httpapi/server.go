// Package httpapi exposes the control surface around the relay: token
// issue/revoke, session listings, health and the websocket entrypoint.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/wardctl/internal/auth"
	"github.com/danmuck/wardctl/internal/observability"
	"github.com/danmuck/wardctl/internal/registry"
	"github.com/danmuck/wardctl/internal/relay"
)

type Config struct {
	ID          string
	CorsOrigins []string
}

type Server struct {
	cfg       Config
	authority *auth.Authority
	reg       *registry.Registry
	relay     *relay.Service
	router    *gin.Engine
	appeared  time.Time
}

func NewServer(cfg Config, authority *auth.Authority, reg *registry.Registry, relaySvc *relay.Service) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(cfg.ID))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CorsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		cfg:       cfg,
		authority: authority,
		reg:       reg,
		relay:     relaySvc,
		router:    r,
		appeared:  time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves until ctx is done, then drains the relay and shuts the
// listener down.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info().Str("addr", addr).Msg("http_listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.relay.SetDraining(true)
	s.relay.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
