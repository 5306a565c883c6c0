package auth

import (
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("auth",
	fx.Provide(func(cfg config.Config, clk clock.Clock, log *zap.Logger) *Verifier {
		if cfg.Auth.JWTSecret == "" {
			log.Named("auth").Warn("AUTH_JWT_SECRET not set, every authenticated route will reject requests")
		}
		return NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, clk)
	}),
)
