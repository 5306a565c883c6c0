package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	accountdomain "github.com/smallbiznis/atelier/internal/account/domain"
	"github.com/smallbiznis/atelier/internal/assetstore"
	"github.com/smallbiznis/atelier/internal/auth"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/config"
	historydomain "github.com/smallbiznis/atelier/internal/history/domain"
	ledgerdomain "github.com/smallbiznis/atelier/internal/ledger/domain"
	"github.com/smallbiznis/atelier/internal/observability"
	obsmiddleware "github.com/smallbiznis/atelier/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/atelier/internal/observability/metrics"
	obstracing "github.com/smallbiznis/atelier/internal/observability/tracing"
	"github.com/smallbiznis/atelier/internal/orchestrator"
	"github.com/smallbiznis/atelier/internal/ratelimit"
	"github.com/smallbiznis/atelier/internal/statement"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultHTTPAddr = ":8080"

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(obsmetrics.GinMiddleware(httpMetrics))
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = defaultHTTPAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

// ActionRunner is the metering entry point behind POST /api/actions.
type ActionRunner interface {
	PerformAction(ctx context.Context, accountID snowflake.ID, spec orchestrator.ActionSpec) (*orchestrator.ActionResult, error)
}

// StatementRenderer produces the PDF usage statement for an account.
type StatementRenderer interface {
	Render(ctx context.Context, accountID snowflake.ID) (io.Reader, error)
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	clock      clock.Clock
	db         *gorm.DB
	verifier   *auth.Verifier
	accounts   accountdomain.Service
	ledger     ledgerdomain.Service
	history    historydomain.Service
	actions    ActionRunner
	statements StatementRenderer
	assets     assetstore.Store
	limiter    *ratelimit.ActionLimiter
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	Clock        clock.Clock
	DB           *gorm.DB `optional:"true"`
	Verifier     *auth.Verifier
	Accounts     accountdomain.Service
	Ledger       ledgerdomain.Service
	History      historydomain.Service
	Orchestrator *orchestrator.Orchestrator
	Statements   *statement.Service
	Assets       assetstore.Store
	Limiter      *ratelimit.ActionLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("http.server"),
		clock:      p.Clock,
		db:         p.DB,
		verifier:   p.Verifier,
		accounts:   p.Accounts,
		ledger:     p.Ledger,
		history:    p.History,
		actions:    p.Orchestrator,
		statements: p.Statements,
		assets:     p.Assets,
		limiter:    p.Limiter,
	}
	svc.registerRoutes()
	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.Health)
	s.engine.GET("/assets/*key", s.ServeAsset)

	s.registerAPIRoutes()
	s.registerAdminRoutes()
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.verifier.Middleware())

	api.POST("/actions", s.ActionRateLimit(), s.PerformAction)

	// -------- Account --------
	api.GET("/account", s.GetOwnAccount)
	api.GET("/account/usage", s.ListOwnUsage)
	api.GET("/account/statement.pdf", s.DownloadStatement)

	// -------- Chat history --------
	api.GET("/chat/sessions", s.ListChatSessions)
	api.POST("/chat/sessions", s.CreateChatSession)
	api.GET("/chat/sessions/:id", s.GetChatSession)
	api.PATCH("/chat/sessions/:id", s.UpdateChatSessionTitle)
	api.DELETE("/chat/sessions/:id", s.DeleteChatSession)
	api.GET("/chat/sessions/:id/messages", s.ListChatMessages)

	// -------- Images --------
	api.GET("/images", s.ListImages)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin", s.verifier.Middleware(), auth.RequireRole(string(accountdomain.RoleAdmin)))

	admin.GET("/accounts", s.ListAccounts)
	admin.POST("/accounts", s.CreateAccount)
	admin.GET("/accounts/:id", s.GetAccount)
	admin.PATCH("/accounts/:id", s.UpdateAccount)
	admin.DELETE("/accounts/:id", s.DeleteAccount)
	admin.PUT("/accounts/:id/balance", s.AdjustBalance)
	admin.GET("/accounts/:id/reconcile", s.ReconcileAccount)
}
