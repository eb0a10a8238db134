package server

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/railzwaylabs/parkway/internal/config"
	facilitydomain "github.com/railzwaylabs/parkway/internal/facility/domain"
	parkingdomain "github.com/railzwaylabs/parkway/internal/parking/domain"
	transactiondomain "github.com/railzwaylabs/parkway/internal/transaction/domain"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Config   config.Config
	Log      *zap.Logger
	DB       *gorm.DB
	Redis    *redis.Client `optional:"true"`
	Registry *prometheus.Registry

	ParkingSvc     parkingdomain.Service
	FacilitySvc    facilitydomain.Service
	TransactionSvc transactiondomain.Recorder
}

type Server struct {
	engine   *gin.Engine
	cfg      config.Config
	log      *zap.Logger
	db       *gorm.DB
	redis    *redis.Client
	registry *prometheus.Registry
	limiter  *clientLimiter

	parkingSvc     parkingdomain.Service
	facilitySvc    facilitydomain.Service
	transactionSvc transactiondomain.Recorder
}

func NewServer(p Params) *Server {
	if p.Config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		engine:         gin.New(),
		cfg:            p.Config,
		log:            p.Log.Named("server"),
		db:             p.DB,
		redis:          p.Redis,
		registry:       p.Registry,
		parkingSvc:     p.ParkingSvc,
		facilitySvc:    p.FacilitySvc,
		transactionSvc: p.TransactionSvc,
	}
	if p.Config.HTTP.RateLimitPerSec > 0 {
		s.limiter = newClientLimiter(p.Config.HTTP.RateLimitPerSec, p.Config.HTTP.RateLimitBurst)
	}

	s.engine.Use(
		gin.Recovery(),
		otelgin.Middleware(p.Config.Observability.ServiceName),
		s.RequestLogger(),
	)
	s.RegisterSystemRoutes()
	s.RegisterAPIRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterSystemRoutes() {
	s.engine.GET("/healthz", s.GetHealth)
	s.engine.GET("/ready", s.GetReadiness)

	gatherers := prometheus.Gatherers{prometheus.DefaultGatherer}
	if s.registry != nil {
		gatherers = append(gatherers, s.registry)
	}
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{})))
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.RateLimit(), s.SimulatedTime())
	{
		api.POST("/park", s.Park)
		api.POST("/leave", s.Leave)

		api.POST("/facilities", s.CreateFacility)
		api.GET("/facilities/:id", s.GetFacility)
		api.PUT("/facilities/:id/rates", s.ReplaceFacilityRates)
		api.GET("/facilities/:id/quote", s.QuoteFacility)

		api.GET("/transactions/:id", s.GetTransaction)
		api.GET("/vehicles/:vehicle/transactions", s.ListVehicleTransactions)
	}
}

// RunHTTP binds the listener on start and drains in-flight requests on stop.
func RunHTTP(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:    s.cfg.HTTP.Addr,
		Handler: s.engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			s.log.Info("http server listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if s.cfg.HTTP.ShutdownTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, s.cfg.HTTP.ShutdownTimeout)
				defer cancel()
			}
			return srv.Shutdown(ctx)
		},
	})
}
