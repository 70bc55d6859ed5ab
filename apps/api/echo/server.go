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

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/academics"
	"github.com/trezcool/chuo/core/admission"
	"github.com/trezcool/chuo/core/content"
	"github.com/trezcool/chuo/core/importer"
	"github.com/trezcool/chuo/core/library"
	"github.com/trezcool/chuo/core/mailbox"
	"github.com/trezcool/chuo/core/material"
	"github.com/trezcool/chuo/core/messaging"
	"github.com/trezcool/chuo/core/site"
	"github.com/trezcool/chuo/core/user"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		DisableReqLogs bool

		UserSvc      user.ServiceInterface
		AcademicsSvc academics.ServiceInterface
		AdmissionSvc admission.ServiceInterface
		MailboxSvc   mailbox.ServiceInterface
		ImporterSvc  importer.ServiceInterface
		MaterialSvc  material.ServiceInterface
		LibrarySvc   library.ServiceInterface
		MessagingSvc messaging.ServiceInterface
		ContentSvc   content.ServiceInterface
		SiteSvc      site.ServiceInterface
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		auth     *authenticator
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     newAuthenticator(deps.Conf),
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
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{conf.FrontendBaseURL},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	g := s.app.Group("/api")
	jwt := s.auth.middleware()
	optJWT := optional(jwt)

	registerUserAPI(g, jwt, s.auth, s.deps.UserSvc, s.deps.Validate)
	registerSiteAPI(g, jwt, s.deps.SiteSvc, s.deps.Validate)
	registerAcademicsAPI(g, jwt, optJWT, s.deps.AcademicsSvc, s.deps.Validate)
	registerAdmissionAPI(g, jwt, s.deps.AdmissionSvc, s.deps.UserSvc, s.deps.Validate)
	registerMailboxAPI(g, jwt, s.deps.MailboxSvc, s.deps.UserSvc, s.deps.Validate)
	registerImporterAPI(g, jwt, s.deps.ImporterSvc, s.deps.Validate)
	registerMaterialAPI(g, jwt, s.deps.MaterialSvc, s.deps.UserSvc, s.deps.Validate)
	registerLibraryAPI(g, jwt, s.deps.LibrarySvc, s.deps.Validate)
	registerMessagingAPI(g, jwt, s.auth.middleware("query:token"), s.deps.MessagingSvc, s.deps.UserSvc, s.deps.Validate, s.deps.Logger)
	registerContentAPI(g, jwt, s.deps.ContentSvc, s.deps.Validate)
}

// Start listens on the configured host. Listener errors are sent to Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

// ShutdownSignal receives SIGINT, SIGTERM and the shutdown requests of the error handler.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	signal.Stop(s.shutdown)
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
