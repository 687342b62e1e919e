package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/wardctl/internal/logging"
)

func InitLogger(app string) zerolog.Logger {
	cfg := logging.Resolve(logging.ProfileRuntime)
	zerolog.SetGlobalLevel(cfg.Level)
	ctx := zerolog.New(logging.NewWriter(cfg)).With().Str("app", app)
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	logger := ctx.Logger()
	log.Logger = logger
	return logger
}
