package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/porbit/orbital-gateway/internal/chain"
	"github.com/porbit/orbital-gateway/internal/clock"
	"github.com/porbit/orbital-gateway/internal/config"
	"github.com/porbit/orbital-gateway/internal/facilitator"
	"github.com/porbit/orbital-gateway/internal/metering"
	meteringdomain "github.com/porbit/orbital-gateway/internal/metering/domain"
	"github.com/porbit/orbital-gateway/internal/observability"
	obsmiddleware "github.com/porbit/orbital-gateway/internal/observability/logger"
	obsmetrics "github.com/porbit/orbital-gateway/internal/observability/metrics"
	obstracing "github.com/porbit/orbital-gateway/internal/observability/tracing"
	"github.com/porbit/orbital-gateway/internal/pricefeed"
	pricefeeddomain "github.com/porbit/orbital-gateway/internal/pricefeed/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	config.Module,
	clock.Module,
	observability.Module,
	facilitator.Module,
	metering.Module,
	pricefeed.Module,
	chain.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, metrics *obsmetrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(metrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, metrics *obsmetrics.Metrics) *gin.Engine {
	return NewEngine(obsCfg, metrics)
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	clock       clock.Clock
	assets      config.AssetTable
	meteringSvc meteringdomain.Service
	priceSvc    pricefeeddomain.Service
	chainSvc    chain.Reader

	paymentsMu sync.Mutex
	payments   map[string]*verifiedPayment
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	Clock       clock.Clock
	Assets      config.AssetTable
	MeteringSvc meteringdomain.Service
	PriceSvc    pricefeeddomain.Service
	ChainSvc    chain.Reader
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http.server"),
		clock:       p.Clock,
		assets:      p.Assets,
		meteringSvc: p.MeteringSvc,
		priceSvc:    p.PriceSvc,
		chainSvc:    p.ChainSvc,
		payments:    make(map[string]*verifiedPayment),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")

	pool := api.Group("/pool")
	{
		pool.GET("/info", s.GetPoolInfo)
		pool.GET("/stats", s.GetPoolStats)
		pool.GET("/reserves", s.GetPoolReserves)
		pool.GET("/spot-price", s.GetSpotPrice)
		pool.GET("/tick-efficiency", s.GetTickEfficiency)
		pool.GET("/tick-info", s.GetTickInfo)
		pool.GET("/user-ticks", s.GetUserTicks)
		pool.POST("/liquidity/add", s.AddLiquidity)
		pool.POST("/liquidity/remove", s.RemoveLiquidity)
	}

	api.GET("/quote", s.GetQuote)
	api.POST("/swap/execute", s.PrepareSwap)
	api.POST("/swap", s.MeteredSwap)

	x402 := api.Group("/x402")
	{
		x402.POST("/authorize", s.AuthorizePayment)
		x402.GET("/status", s.PaymentStatus)
	}

	payment := api.Group("/payment")
	{
		payment.GET("/requirements", s.PaymentRequirements)
		payment.POST("/verify", s.VerifyPayment)
		payment.POST("/settle", s.SettlePayment)
	}

	session := api.Group("/session")
	{
		session.GET("/remaining", s.SessionRemaining)
		session.GET("/status/:id", s.SessionStatus)
	}

	api.GET("/prices", s.ListPrices)
	api.GET("/price/:asset", s.GetPrice)
	api.POST("/price/refresh", s.RefreshPrices)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
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
