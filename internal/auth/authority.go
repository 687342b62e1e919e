package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/danmuck/wardctl/internal/protocol"
)

// Config for the token authority.
type Config struct {
	Secret             string
	AgentTokenTTL      time.Duration
	ControllerTokenTTL time.Duration
	RevokedPruneEvery  time.Duration
}

// DefaultConfig keeps agent tokens valid for a week and controller
// tokens for half a day.
func DefaultConfig() Config {
	return Config{
		AgentTokenTTL:      168 * time.Hour,
		ControllerTokenTTL: 12 * time.Hour,
		RevokedPruneEvery:  time.Hour,
	}
}

// Credential is one provisioned account the authority will sign for.
type Credential struct {
	Username     string
	PasswordHash []byte
	Role         protocol.Role
}

// HashPassword derives a bcrypt hash suitable for Credential.PasswordHash.
func HashPassword(plain string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
}

// Grant is one issued token with the session fields handed to the client.
type Grant struct {
	Token     string
	TokenType string
	ClientID  string
	Role      protocol.Role
	ExpiresAt time.Time
}

// Claims carried inside every issued token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authority signs, verifies and revokes HS256 bearer tokens for a fixed
// credential set. Revocation is tracked per token id until the token
// would have expired on its own.
type Authority struct {
	cfg    Config
	users  map[string]Credential
	logger zerolog.Logger

	mu      sync.Mutex
	revoked map[string]time.Time

	now func() time.Time
}

func NewAuthority(cfg Config, creds []Credential) (*Authority, error) {
	cfg.Secret = strings.TrimSpace(cfg.Secret)
	if cfg.Secret == "" {
		return nil, ErrNoSecret
	}
	def := DefaultConfig()
	if cfg.AgentTokenTTL <= 0 {
		cfg.AgentTokenTTL = def.AgentTokenTTL
	}
	if cfg.ControllerTokenTTL <= 0 {
		cfg.ControllerTokenTTL = def.ControllerTokenTTL
	}
	if cfg.RevokedPruneEvery <= 0 {
		cfg.RevokedPruneEvery = def.RevokedPruneEvery
	}

	users := make(map[string]Credential, len(creds))
	for _, cred := range creds {
		username := strings.TrimSpace(cred.Username)
		if username == "" {
			return nil, fmt.Errorf("auth: credential with empty username")
		}
		if !cred.Role.Valid() {
			return nil, fmt.Errorf("auth: credential %q: unknown role %q", username, cred.Role)
		}
		if len(cred.PasswordHash) == 0 {
			return nil, fmt.Errorf("auth: credential %q: empty password hash", username)
		}
		if _, ok := users[username]; ok {
			return nil, fmt.Errorf("auth: duplicate credential %q", username)
		}
		cred.Username = username
		users[username] = cred
	}

	return &Authority{
		cfg:     cfg,
		users:   users,
		logger:  log.With().Str("component", "auth").Logger(),
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}, nil
}

// Login checks username/password and issues a signed token. The client
// id is minted fresh per login so reconnecting clients never collide on
// a stale id.
func (a *Authority) Login(username, password string) (Grant, error) {
	cred, ok := a.users[strings.TrimSpace(username)]
	if !ok {
		return Grant{}, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(cred.PasswordHash, []byte(password)); err != nil {
		return Grant{}, ErrBadCredentials
	}

	now := a.now()
	expires := now.Add(a.ttlFor(cred.Role))
	claims := Claims{
		Role: string(cred.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   cred.Username,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.cfg.Secret))
	if err != nil {
		return Grant{}, fmt.Errorf("auth: sign token: %w", err)
	}

	return Grant{
		Token:     token,
		TokenType: "bearer",
		ClientID:  cred.Username + "_" + randomSuffix(),
		Role:      cred.Role,
		ExpiresAt: expires,
	}, nil
}

// Verify parses and validates a token and resolves its identity.
func (a *Authority) Verify(token string) (Identity, error) {
	claims, err := a.parse(token)
	if err != nil {
		return Identity{}, err
	}

	a.mu.Lock()
	_, revoked := a.revoked[claims.ID]
	a.mu.Unlock()
	if revoked {
		return Identity{}, ErrTokenRevoked
	}

	role, err := protocol.ParseRole(claims.Role)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return Identity{}, ErrUnauthorized
	}
	return Identity{Username: claims.Subject, Role: role}, nil
}

// Revoke invalidates a still-valid token for the rest of its lifetime.
func (a *Authority) Revoke(token string) error {
	claims, err := a.parse(token)
	if err != nil {
		return err
	}
	if claims.ID == "" {
		return ErrUnauthorized
	}
	until := a.now().Add(a.cfg.AgentTokenTTL)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}

	a.mu.Lock()
	a.revoked[claims.ID] = until
	a.mu.Unlock()

	a.logger.Info().Str("username", claims.Subject).Msg("token_revoked")
	return nil
}

// PruneRevoked drops revocation entries whose tokens have expired on
// their own. Reports how many entries were dropped.
func (a *Authority) PruneRevoked() int {
	now := a.now()

	a.mu.Lock()
	defer a.mu.Unlock()
	pruned := 0
	for id, until := range a.revoked {
		if until.Before(now) {
			delete(a.revoked, id)
			pruned++
		}
	}
	return pruned
}

// RunPruner blocks pruning expired revocations until ctx is done.
func (a *Authority) RunPruner(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.RevokedPruneEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.PruneRevoked(); n > 0 {
				a.logger.Debug().Int("pruned", n).Msg("revocations_pruned")
			}
		}
	}
}

func (a *Authority) parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (any, error) { return []byte(a.cfg.Secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return claims, nil
}

func (a *Authority) ttlFor(role protocol.Role) time.Duration {
	if role == protocol.RoleController {
		return a.cfg.ControllerTokenTTL
	}
	return a.cfg.AgentTokenTTL
}

func randomSuffix() string {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return uuid.NewString()[:8]
	}
	return hex.EncodeToString(buf[:])
}
