package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/costbook/internal/auth"
	"github.com/smallbiznis/costbook/internal/budget"
	budgetdomain "github.com/smallbiznis/costbook/internal/budget/domain"
	"github.com/smallbiznis/costbook/internal/client"
	clientdomain "github.com/smallbiznis/costbook/internal/client/domain"
	"github.com/smallbiznis/costbook/internal/config"
	"github.com/smallbiznis/costbook/internal/inflight"
	obsmiddleware "github.com/smallbiznis/costbook/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/costbook/internal/observability/metrics"
	obstracing "github.com/smallbiznis/costbook/internal/observability/tracing"
	"github.com/smallbiznis/costbook/internal/pricetier"
	"github.com/smallbiznis/costbook/internal/render"
	"github.com/smallbiznis/costbook/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// maxUploadMemory bounds the multipart form kept in memory per request.
const maxUploadMemory = 32 << 20

var Module = fx.Module("http.server",
	auth.Module,
	storage.Module,
	inflight.Module,
	render.Module,
	pricetier.Module,
	client.Module,
	budget.Module,
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

type EngineParams struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Metrics *obsmetrics.Metrics `optional:"true"`
}

func NewEngine(p EngineParams) *gin.Engine {
	if !p.Cfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = maxUploadMemory
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(p.Log, obsmiddleware.MiddlewareConfig{
		Debug:           p.Cfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(p.Metrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine    *gin.Engine
	cfg       config.Config
	verifier  *auth.Verifier
	clientSvc clientdomain.Service
	budgetSvc budgetdomain.Service
}

type ServerParams struct {
	fx.In

	Gin       *gin.Engine
	Cfg       config.Config
	Verifier  *auth.Verifier
	ClientSvc clientdomain.Service
	BudgetSvc budgetdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:    p.Gin,
		cfg:       p.Cfg,
		verifier:  p.Verifier,
		clientSvc: p.ClientSvc,
		budgetSvc: p.BudgetSvc,
	}

	svc.registerFileRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerFileRoutes() {
	if s.cfg.StorageDir == "" {
		return
	}
	s.engine.StaticFS("/files", gin.Dir(s.cfg.StorageDir, false))
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	// -------- Clients --------
	api.GET("/clients", s.ListClients)
	api.POST("/clients", s.CreateClient)
	api.GET("/clients/:id", s.GetClientByID)
	api.PUT("/clients/:id", s.UpdateClient)
	api.DELETE("/clients/:id", s.DeleteClient)

	// -------- Budgets --------
	api.POST("/budgets/preview", s.PreviewBudget)
	api.GET("/budgets", s.ListBudgets)
	api.POST("/budgets", s.CreateBudget)
	api.GET("/budgets/:id", s.GetBudgetByID)
	api.PUT("/budgets/:id", s.UpdateBudget)
	api.PATCH("/budgets/:id/status", s.UpdateBudgetStatus)
	api.DELETE("/budgets/:id", s.DeleteBudget)
	api.GET("/budgets/:id/pdf", s.RenderBudget)
}
