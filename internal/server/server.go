package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	catalogdomain "github.com/smallbiznis/tuitionledger/internal/catalog/domain"
	"github.com/smallbiznis/tuitionledger/internal/config"
	invoicedomain "github.com/smallbiznis/tuitionledger/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/tuitionledger/internal/ledger/domain"
	"github.com/smallbiznis/tuitionledger/internal/observability"
	obsmiddleware "github.com/smallbiznis/tuitionledger/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/tuitionledger/internal/observability/metrics"
	obstracing "github.com/smallbiznis/tuitionledger/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/tuitionledger/internal/payment/domain"
	reportdomain "github.com/smallbiznis/tuitionledger/internal/report/domain"
	studentdomain "github.com/smallbiznis/tuitionledger/internal/student/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type engineParams struct {
	fx.In

	ObsCfg      observability.Config
	HTTPMetrics *obsmetrics.HTTPMetrics `optional:"true"`
}

func registerGin(p engineParams) *gin.Engine {
	return NewEngine(p.ObsCfg, p.HTTPMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
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
	engine     *gin.Engine
	studentSvc studentdomain.Service
	catalogSvc catalogdomain.Service
	invoiceSvc invoicedomain.Service
	paymentSvc paymentdomain.Service
	ledgerSvc  ledgerdomain.Service
	reportSvc  reportdomain.Service
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	StudentSvc studentdomain.Service
	CatalogSvc catalogdomain.Service
	InvoiceSvc invoicedomain.Service
	PaymentSvc paymentdomain.Service
	LedgerSvc  ledgerdomain.Service
	ReportSvc  reportdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		studentSvc: p.StudentSvc,
		catalogSvc: p.CatalogSvc,
		invoiceSvc: p.InvoiceSvc,
		paymentSvc: p.PaymentSvc,
		ledgerSvc:  p.LedgerSvc,
		reportSvc:  p.ReportSvc,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Students --------
	api.POST("/students", s.CreateStudent)
	api.GET("/students", s.ListStudents)
	api.GET("/students/:id", s.GetStudentByID)
	api.PATCH("/students/:id/status", s.SetStudentStatus)

	// -------- Catalog --------
	api.POST("/catalog/items", s.CreateCatalogItem)
	api.GET("/catalog/items", s.ListCatalogItems)
	api.GET("/catalog/items/:id", s.GetCatalogItemByID)
	api.PATCH("/catalog/items/:id", s.UpdateCatalogItem)

	// -------- Charges --------
	api.POST("/charges/generate", s.GenerateCharges)
	api.GET("/students/:id/charges", s.ListStudentCharges)

	// -------- Payments --------
	api.POST("/payments", s.RecordPayment)
	api.GET("/students/:id/payments", s.ListStudentPayments)

	// -------- Balances --------
	api.GET("/students/:id/balances/:period", s.GetStudentBalance)
	api.POST("/students/:id/balances/:period/recalculate", s.RecalculateStudentBalance)
	api.POST("/students/:id/balances/:period/rebuild", s.RebuildStudentBalances)
	api.GET("/balances", s.ListBalances)

	// -------- Reports --------
	api.GET("/dashboard", s.GetDashboard)
	api.GET("/reports/item-sales", s.GetItemSalesReport)
	api.GET("/reports/item-sales/export", s.ExportItemSales)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
