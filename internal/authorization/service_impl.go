package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:embed model.conf
var modelText string

const (
	roleUser  = "role:user"
	rolePro   = "role:pro"
	roleAdmin = "role:admin"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer builds an in-memory enforcer seeded with the role hierarchy admin > pro > user.
func NewEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Allowed(role, capability string) bool {
	subject, ok := subjectFor(role)
	if !ok {
		return false
	}
	allowed, err := s.enforcer.Enforce(subject, ObjectCapability, strings.TrimSpace(capability))
	if err != nil {
		s.log.Error("capability evaluation failed",
			zap.String("role", role),
			zap.String("capability", capability),
			zap.Error(err),
		)
		return false
	}
	return allowed
}

func (s *ServiceImpl) Authorize(ctx context.Context, role, capability string) error {
	if _, ok := subjectFor(role); !ok {
		return ErrInvalidRole
	}
	if !s.Allowed(role, capability) {
		s.log.Info("capability denied",
			zap.String("role", role),
			zap.String("capability", capability),
		)
		return ErrForbidden
	}
	return nil
}

func subjectFor(role string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "user":
		return roleUser, true
	case "pro":
		return rolePro, true
	case "admin":
		return roleAdmin, true
	default:
		return "", false
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{roleUser, ObjectCapability, CapabilityChatStandard},
		{roleUser, ObjectCapability, CapabilityImageResearch},
		{roleUser, ObjectCapability, CapabilityImageEdit},

		{rolePro, ObjectCapability, CapabilityChatDeep},
		{rolePro, ObjectCapability, CapabilityImageStyle},

		{roleAdmin, ObjectCapability, CapabilityLedgerAdjust},
		{roleAdmin, ObjectCapability, CapabilityAccountManage},
	}
	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy[0], policy[1], policy[2]); err != nil {
			return err
		}
	}

	groupings := [][]string{
		{rolePro, roleUser},
		{roleAdmin, rolePro},
	}
	for _, g := range groupings {
		if _, err := enforcer.AddGroupingPolicy(g[0], g[1]); err != nil {
			return err
		}
	}
	return nil
}
