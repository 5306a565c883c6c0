package gateway

import (
	"fmt"

	"github.com/smallbiznis/atelier/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("gateway",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Cfg config.Config
	Log *zap.Logger
}

func New(p Params) (Gateway, error) {
	cfg := p.Cfg.Gateway
	switch cfg.Mode {
	case "", "fake":
		p.Log.Named("gateway").Info("using fake AI gateway")
		return NewFake(), nil
	case "http":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("GATEWAY_BASE_URL is required when GATEWAY_MODE=http")
		}
		// Per-stage deadlines come from the pipeline; the client timeout is a backstop.
		return NewHTTPClient(cfg.BaseURL, cfg.APIKey, 2*cfg.StageTimeout, p.Log), nil
	default:
		return nil, fmt.Errorf("unknown gateway mode %q", cfg.Mode)
	}
}
