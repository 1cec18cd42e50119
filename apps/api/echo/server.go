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

	"github.com/atomcode/atomq/core"
	"github.com/atomcode/atomq/core/activity"
	"github.com/atomcode/atomq/core/auth"
	"github.com/atomcode/atomq/core/question"
	"github.com/atomcode/atomq/core/quiz"
	"github.com/atomcode/atomq/core/settings"
	"github.com/atomcode/atomq/core/user"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		// Registry receives the API metrics; a private registry is used when nil.
		Registry *prometheus.Registry

		UserSvc     *user.Service
		AuthSvc     *auth.Service
		SettingsSvc *settings.Service
		QuestionSvc *question.Service
		ActivitySvc *activity.Service
		QuizSvc     *quiz.Service
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		tokens   tokenManager
		metrics  *metrics
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		tokens:   newTokenManager(deps.Conf),
		metrics:  newMetrics(deps.Registry),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.JSONSerializer = goccyJSONSerializer{}
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	if conf.Debug {
		s.app.Logger.SetLevel(log.DEBUG)
	}

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(s.metrics.middleware())

	s.app.GET("/", s.home)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.deps.Registry, promhttp.HandlerOpts{})))

	api := s.app.Group("/api")
	authed := s.authMiddleware()
	admin := api.Group("/admin", authed, adminMiddleware())

	registerUserAPI(api, authed, s)
	registerSettingsAPI(api, admin, s)
	registerActivityAPI(api, authed, admin, s)
	registerQuestionAPI(api, authed, admin, s)
	registerQuizAPI(api, authed, admin, s)
}

// Start listens until the server is shut down. Listening errors are sent to Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
