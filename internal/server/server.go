package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	apikeydomain "github.com/smallbiznis/zapflow/internal/apikey/domain"
	appointmentdomain "github.com/smallbiznis/zapflow/internal/appointment/domain"
	billingdomain "github.com/smallbiznis/zapflow/internal/billing/domain"
	catalogdomain "github.com/smallbiznis/zapflow/internal/catalog/domain"
	"github.com/smallbiznis/zapflow/internal/config"
	"github.com/smallbiznis/zapflow/internal/inbound"
	notificationdomain "github.com/smallbiznis/zapflow/internal/notification/domain"
	"github.com/smallbiznis/zapflow/internal/observability"
	obslogger "github.com/smallbiznis/zapflow/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/zapflow/internal/observability/metrics"
	obstracing "github.com/smallbiznis/zapflow/internal/observability/tracing"
	"github.com/smallbiznis/zapflow/internal/providers/pdf"
	"github.com/smallbiznis/zapflow/internal/ratelimit"
	tenantdomain "github.com/smallbiznis/zapflow/internal/tenant/domain"
	templatedomain "github.com/smallbiznis/zapflow/internal/template/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewEngine builds the gin engine with the shared middleware chain and the
// operational endpoints every binary exposes.
func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug: obsCfg.Environment == "development",
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	log    *zap.Logger

	tenantSvc      tenantdomain.Service
	catalogSvc     catalogdomain.Service
	billingSvc     billingdomain.Tracker
	templateSvc    templatedomain.Service
	appointmentSvc appointmentdomain.Service
	queue          notificationdomain.Queue
	apiKeySvc      apikeydomain.Service
	orchestrator   *inbound.Orchestrator
	webhookLimiter *ratelimit.WebhookLimiter
	statements     *pdf.StatementRenderer
}

type ServerParams struct {
	fx.In

	Gin *gin.Engine
	Cfg config.Config
	Log *zap.Logger

	TenantSvc      tenantdomain.Service
	CatalogSvc     catalogdomain.Service
	BillingSvc     billingdomain.Tracker
	TemplateSvc    templatedomain.Service
	AppointmentSvc appointmentdomain.Service
	Queue          notificationdomain.Queue
	APIKeySvc      apikeydomain.Service
	Orchestrator   *inbound.Orchestrator
	WebhookLimiter *ratelimit.WebhookLimiter `optional:"true"`
	Statements     *pdf.StatementRenderer
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		log:            p.Log.Named("http.server"),
		tenantSvc:      p.TenantSvc,
		catalogSvc:     p.CatalogSvc,
		billingSvc:     p.BillingSvc,
		templateSvc:    p.TemplateSvc,
		appointmentSvc: p.AppointmentSvc,
		queue:          p.Queue,
		apiKeySvc:      p.APIKeySvc,
		orchestrator:   p.Orchestrator,
		webhookLimiter: p.WebhookLimiter,
		statements:     p.Statements,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// RegisterAPIRoutes mounts the whole HTTP surface: the inbound webhook and
// the tenant-scoped read/admin endpoints.
func (s *Server) RegisterAPIRoutes() {
	s.engine.POST("/webhooks/:tenant/messages",
		s.TenantContext(), s.WebhookAuthRequired(), s.WebhookRateLimited(), s.IngestWebhookMessage)

	api := s.engine.Group("/api")
	api.GET("/plans", s.ListPlans)

	tenant := api.Group("/tenants/:tenant", s.TenantContext())
	{
		tenant.GET("", s.GetTenant)
		tenant.GET("/services", s.ListServices)

		tenant.GET("/usage", s.GetCurrentUsage)
		tenant.GET("/usage/history", s.GetUsageHistory)
		tenant.GET("/usage/statement", s.GetUsageStatement)
		tenant.GET("/conversations/:conversationId/billing-events", s.ListBillingEvents)

		tenant.GET("/templates", s.ListTemplates)
		tenant.PUT("/templates/:key", s.UpdateTemplate)

		tenant.GET("/appointments", s.ListAppointments)
		tenant.POST("/appointments/:appointmentId/cancel", s.CancelAppointment)

		tenant.GET("/notifications", s.ListNotificationJobs)

		tenant.GET("/api-keys", s.ListAPIKeys)
		tenant.POST("/api-keys", s.CreateAPIKey)
		tenant.POST("/api-keys/:keyId/rotate", s.RotateAPIKey)
		tenant.DELETE("/api-keys/:keyId", s.RevokeAPIKey)
	}
}

// RunHTTP starts the HTTP listener under the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
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
