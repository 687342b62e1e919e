package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danmuck/wardctl/internal/auth"
	"github.com/danmuck/wardctl/internal/protocol"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type revokeRequest struct {
	Token string `json:"token"`
}

func (s *Server) registerRoutes() {
	s.router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "wardd relay is running",
			"endpoints": gin.H{
				"auth":    "POST /auth",
				"revoke":  "POST /auth/revoke",
				"ws":      "GET /ws/{client_id}",
				"clients": "GET /clients",
				"health":  "GET /health",
				"metrics": "GET /metrics",
			},
			"timestamp": protocol.Timestamp(time.Now()),
		})
	})

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"uptime":    time.Since(s.appeared).String(),
			"timestamp": protocol.Timestamp(time.Now()),
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		if !s.relay.Ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"uptime": time.Since(s.appeared).String(),
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.POST("/auth", s.handleLogin)
	s.router.POST("/auth/revoke", s.handleRevoke)
	s.router.GET("/clients", s.handleClients)

	s.router.GET("/ws/:client_id", func(c *gin.Context) {
		s.relay.HandleConnection(c.Writer, c.Request, c.Param("client_id"))
	})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	grant, err := s.authority.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrBadCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": grant.Token,
		"token_type":   grant.TokenType,
		"user_type":    grant.Role,
		"client_id":    grant.ClientID,
	})
}

func (s *Server) handleRevoke(c *gin.Context) {
	var req revokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := s.authority.Revoke(req.Token); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token not recognized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}

func (s *Server) handleClients(c *gin.Context) {
	snapshot := s.reg.Snapshot()
	clients := make([]gin.H, 0, len(snapshot))
	for _, sess := range snapshot {
		clients = append(clients, gin.H{
			"client_id":      sess.ID,
			"user_type":      sess.Role,
			"last_heartbeat": protocol.Timestamp(sess.LastActivity),
		})
	}
	c.JSON(http.StatusOK, gin.H{"clients": clients})
}
