package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/access"
	"github.com/trezcool/spadesk/core/appointment"
	"github.com/trezcool/spadesk/core/client"
	"github.com/trezcool/spadesk/core/employee"
	"github.com/trezcool/spadesk/core/quotation"
	"github.com/trezcool/spadesk/core/sale"
	"github.com/trezcool/spadesk/core/treatment"
	"github.com/trezcool/spadesk/core/user"
	metricsvc "github.com/trezcool/spadesk/services/metrics"
)

type (
	// ServerDeps holds everything the API handlers need.
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		Metrics        *metricsvc.PrometheusMetrics // optional
		Validate       *validator.Validate
		Translator     ut.Translator
		DisableReqLogs bool

		UserSvc        user.Service
		AccessSvc      access.Service
		ClientSvc      client.Service
		TreatmentSvc   treatment.Service
		EmployeeSvc    employee.Service
		AppointmentSvc appointment.Service
		QuotationSvc   quotation.Service
		SaleSvc        sale.Service
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

// NewServer builds the API. It panics when a dependency is missing.
func NewServer(deps ServerDeps) *Server {
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Conf, "Conf"),
		vala.IsNotNil(deps.Logger, "Logger"),
		vala.IsNotNil(deps.Validate, "Validate"),
		vala.IsNotNil(deps.Translator, "Translator"),
		vala.IsNotNil(deps.UserSvc, "UserSvc"),
		vala.IsNotNil(deps.AccessSvc, "AccessSvc"),
		vala.IsNotNil(deps.ClientSvc, "ClientSvc"),
		vala.IsNotNil(deps.TreatmentSvc, "TreatmentSvc"),
		vala.IsNotNil(deps.EmployeeSvc, "EmployeeSvc"),
		vala.IsNotNil(deps.AppointmentSvc, "AppointmentSvc"),
		vala.IsNotNil(deps.QuotationSvc, "QuotationSvc"),
		vala.IsNotNil(deps.SaleSvc, "SaleSvc"),
	).CheckAndPanic()

	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout
	if conf.Debug {
		s.app.Logger.SetLevel(log.DEBUG)
	} else {
		s.app.Logger.SetLevel(log.INFO)
	}

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if s.deps.Metrics != nil {
		s.app.Use(metricsMiddleware(s.deps.Metrics))
		s.app.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	s.app.GET("/healthz", healthz)

	v1 := s.app.Group("/v1")
	auth := newAuthenticator(conf, s.deps.UserSvc, s.deps.AccessSvc)
	authed := v1.Group("", auth.middleware)

	registerUserAPI(v1, authed, s.deps, auth)
	registerRoleAPI(authed, s.deps, auth)
	registerClientAPI(authed, s.deps, auth)
	registerTreatmentAPI(authed, s.deps, auth)
	registerEmployeeAPI(authed, s.deps, auth)
	registerAppointmentAPI(authed, s.deps, auth)
	registerQuotationAPI(authed, s.deps, auth)
	registerSaleAPI(authed, s.deps, auth)
}

// Start listens until the server is shut down; failures are sent to Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.deps.Conf.Server.Address()); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

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

// signalShutdown asks the process to stop gracefully.
func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}

func healthz(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
