package assetstore

import (
	"context"
	"fmt"

	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("assetstore",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Lc    fx.Lifecycle
	Cfg   config.Config
	Log   *zap.Logger
	Clock clock.Clock
}

// New selects the configured backend once at startup.
func New(p Params) (Store, error) {
	cfg := p.Cfg.Assets
	log := p.Log.Named("assetstore")

	switch cfg.Backend {
	case "", BackendLocal:
		if cfg.SigningKey == "" {
			log.Warn("ASSET_SIGNING_KEY not set, local signed URLs will not survive a restart")
		}
		return NewLocalStore(p.Clock, cfg.SigningKey, cfg.PublicBaseURL)
	case BackendS3:
		store, err := NewS3Store(context.Background(), p.Clock, cfg)
		if err != nil {
			return nil, fmt.Errorf("init s3 asset store: %w", err)
		}
		log.Info("asset store ready", zap.String("backend", BackendS3), zap.String("bucket", cfg.Bucket))
		return store, nil
	case BackendGCS:
		store, err := NewGCSStore(context.Background(), p.Clock, cfg)
		if err != nil {
			return nil, fmt.Errorf("init gcs asset store: %w", err)
		}
		p.Lc.Append(fx.Hook{
			OnStop: func(context.Context) error { return store.Close() },
		})
		log.Info("asset store ready", zap.String("backend", BackendGCS), zap.String("bucket", cfg.Bucket))
		return store, nil
	case BackendAzblob:
		store, err := NewAzblobStore(p.Clock, cfg)
		if err != nil {
			return nil, fmt.Errorf("init azblob asset store: %w", err)
		}
		log.Info("asset store ready", zap.String("backend", BackendAzblob), zap.String("container", cfg.Bucket))
		return store, nil
	default:
		return nil, fmt.Errorf("unknown asset backend %q", cfg.Backend)
	}
}
