package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kerrizor/ckb/internal/anim"
	"github.com/kerrizor/ckb/internal/api/middleware"
	"github.com/kerrizor/ckb/internal/infrastructure/config"
	"github.com/kerrizor/ckb/internal/infrastructure/logging"
	"github.com/kerrizor/ckb/internal/infrastructure/monitoring"
	"github.com/kerrizor/ckb/internal/scheduler"
)

// Server exposes the engine's collaborator-facing surface over HTTP:
// catalog listing, instance lifecycle, key events and color streams.
type Server struct {
	router  *gin.Engine
	catalog *anim.Catalog
	sched   *scheduler.Scheduler
	keymap  anim.KeyMap
	cfg     *config.Config
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// New wires the HTTP surface around an already-built catalog and
// scheduler.
func New(cfg *config.Config, catalog *anim.Catalog, sched *scheduler.Scheduler, metrics *monitoring.Metrics, log *logging.Logger) *Server {
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		router:  gin.New(),
		catalog: catalog,
		sched:   sched,
		keymap:  anim.DefaultLayout(),
		cfg:     cfg,
		log:     log,
		metrics: metrics,
	}

	s.router.Use(gin.Recovery())
	s.router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		s.router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}
	if metrics != nil {
		s.router.Use(monitoring.Middleware(metrics))
	}

	s.routes()
	return s
}

// Router returns the underlying gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// shutdownWait bounds how long in-flight requests may linger once a
// shutdown begins.
const shutdownWait = 5 * time.Second

// Run serves HTTP on the given address until the listener fails or
// ctx is cancelled, then drains in-flight requests before returning.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errc // always http.ErrServerClosed after Shutdown
		return ctx.Err()
	}
}

func (s *Server) routes() {
	s.router.GET("/health", s.health)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/animations", s.listAnimations)
	s.router.POST("/animations/rescan", s.rescan)

	s.router.POST("/instances", s.createInstance)
	s.router.DELETE("/instances/:id", s.deleteInstance)
	s.router.PUT("/instances/:id/params", s.updateParams)
	s.router.POST("/instances/:id/retrigger", s.retrigger)
	s.router.POST("/instances/:id/keypress", s.keypress)
	s.router.GET("/instances/:id/colors", s.colors)
	s.router.GET("/instances/:id/stream", s.stream)
}
