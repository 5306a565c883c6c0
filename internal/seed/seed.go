package seed

import (
	"context"
	"errors"

	accountdomain "github.com/smallbiznis/atelier/internal/account/domain"
	"github.com/smallbiznis/atelier/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultAdminDisplay = "Atelier Admin"

var Module = fx.Module("seed",
	fx.Invoke(func(lc fx.Lifecycle, cfg config.Config, accounts accountdomain.Service, repo accountdomain.Repository, log *zap.Logger) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return EnsureAdmin(ctx, accounts, repo, cfg.Bootstrap, log)
			},
		})
	}),
)

// EnsureAdmin creates the bootstrap admin account once. It is a no-op when no
// admin email is configured or the account already exists.
func EnsureAdmin(ctx context.Context, accounts accountdomain.Service, repo accountdomain.Repository, cfg config.BootstrapConfig, log *zap.Logger) error {
	if cfg.AdminEmail == "" {
		return nil
	}
	if accounts == nil || repo == nil {
		return errors.New("seed account service is required")
	}

	existing, err := repo.GetAccountByEmail(ctx, cfg.AdminEmail)
	if err == nil {
		log.Debug("bootstrap admin already present", zap.String("account_id", existing.ID.String()))
		return nil
	}
	if !errors.Is(err, accountdomain.ErrNotFound) {
		return err
	}

	created, err := accounts.Create(ctx, accountdomain.CreateRequest{
		Email:        cfg.AdminEmail,
		DisplayName:  defaultAdminDisplay,
		Role:         string(accountdomain.RoleAdmin),
		InitialGrant: cfg.AdminGrant,
		Approved:     true,
	})
	if errors.Is(err, accountdomain.ErrEmailTaken) {
		return nil
	}
	if err != nil {
		return err
	}

	log.Info("bootstrap admin created", zap.String("account_id", created.ID))
	return nil
}
