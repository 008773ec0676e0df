package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/services/metrics"
)

type (
	Deps struct {
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		UserSvc    user.ServiceInterface
		SchoolSvc  school.ServiceInterface
		Resolver   access.ContextResolver
		// Gatherer serves /metrics; HTTPMetrics records requests. Both optional.
		Gatherer    prometheus.Gatherer
		HTTPMetrics *metrics.HTTPMetrics
	}

	Server struct {
		conf     *core.Config
		deps     *Deps
		app      *echo.Echo
		cache    *school.DirectoryCache
		shutdown chan os.Signal
		errors   chan error
	}
)

func NewServer(conf *core.Config, deps *Deps) *Server {
	s := &Server{
		conf:     conf,
		deps:     deps,
		app:      echo.New(),
		cache:    school.NewDirectoryCache(conf.Cache.DirectoryTTL, nil),
		shutdown: make(chan os.Signal, 1),
		errors:   make(chan error, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestID())
	if !s.conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	if s.deps.HTTPMetrics != nil {
		s.app.Use(s.deps.HTTPMetrics.Middleware())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = s.conf.Debug

	s.app.GET("/", s.home)
	if s.deps.Gatherer != nil {
		s.app.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := s.app.Group("/v1", principalMiddleware(s.deps.UserSvc))
	registerUserAPI(v1, s.deps)
	registerSchoolAPI(v1, s.deps, s.cache)
}

// Start blocks serving requests; failures are sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the app to shut down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

// DirectoryCache returns the cache of the school directory.
func (s *Server) DirectoryCache() *school.DirectoryCache {
	return s.cache
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.conf.AppName+" API!")
}
