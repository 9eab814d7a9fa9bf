package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/metalearn/core"
	"github.com/trezcool/metalearn/core/file"
	"github.com/trezcool/metalearn/core/progress"
	"github.com/trezcool/metalearn/core/user"
	"github.com/trezcool/metalearn/storage/database"
)

type (
	Deps struct {
		Conf        *core.Config
		Logger      core.Logger
		DB          database.Pinger
		UserSvc     user.Service
		ProgressSvc progress.Service
		FileSvc     file.Service
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		address  string
		shutdown chan<- struct{}
		deps     *Deps
		app      *echo.Echo
	}
)

var _ Server = (*server)(nil)

// NewServer builds the API server.
// A struct{}{} is sent on shutdown when a handler fails with a core shutdown error.
func NewServer(address string, shutdown chan<- struct{}, deps *Deps) Server {
	s := &server{
		address:  address,
		shutdown: shutdown,
		deps:     deps,
		app:      echo.New(),
	}
	s.setup()
	return s
}

func (s *server) signalShutdown() {
	if s.shutdown == nil {
		return
	}
	select {
	case s.shutdown <- struct{}{}:
	default: // already signaled
	}
}

func (s *server) setup() {
	conf := s.deps.Conf

	// validators
	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(requestLogger(s.deps.Logger))
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if conf.Uploads.MaxSize > 0 {
		// leave room for the multipart envelope; the file service enforces the exact limit
		s.app.Use(middleware.BodyLimit(formatBytes(conf.Uploads.MaxSize + 1<<20)))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, translator, s.signalShutdown)

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	auth := NewAuthenticator(conf)
	jwt := auth.Middleware()

	registerHealthAPI(v1, s.deps.DB, s.deps.Logger)
	registerUserAPI(v1, jwt, auth, s.deps.UserSvc, validate, s.deps.Logger)
	registerTutorAPI(v1, jwt, s.deps.ProgressSvc, s.deps.UserSvc)
	registerProgressAPI(v1, jwt, s.deps.ProgressSvc, s.deps.UserSvc, validate)
	registerFileAPI(v1, jwt, s.deps.FileSvc, s.deps.UserSvc, s.deps.Logger)
}

// Start blocks until the server stops; http.ErrServerClosed is returned after Stop.
func (s *server) Start() error {
	return s.app.Start(s.address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to MetaLearn API!")
}
