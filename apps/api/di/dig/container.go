package dig_container

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/spadesk/apps/api/echo"
	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/access"
	"github.com/trezcool/spadesk/core/appointment"
	"github.com/trezcool/spadesk/core/billing"
	"github.com/trezcool/spadesk/core/client"
	"github.com/trezcool/spadesk/core/employee"
	"github.com/trezcool/spadesk/core/quotation"
	"github.com/trezcool/spadesk/core/sale"
	"github.com/trezcool/spadesk/core/treatment"
	"github.com/trezcool/spadesk/core/user"
	emailsvc "github.com/trezcool/spadesk/services/email"
	logsvc "github.com/trezcool/spadesk/services/logger"
	metricsvc "github.com/trezcool/spadesk/services/metrics"
	"github.com/trezcool/spadesk/storage/database"
	"github.com/trezcool/spadesk/storage/database/sqlxrepos"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) *logsvc.RollbarLogger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	access.InitValidators(validate, translator)
	treatment.InitValidators(validate, translator)
	appointment.InitValidators(validate, translator)
	sale.InitValidators(validate, translator)
	return validate
}

type serverParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Metrics    *metricsvc.PrometheusMetrics
	Validate   *validator.Validate
	Translator ut.Translator

	UserSvc        user.Service
	AccessSvc      access.Service
	ClientSvc      client.Service
	TreatmentSvc   treatment.Service
	EmployeeSvc    employee.Service
	AppointmentSvc appointment.Service
	QuotationSvc   quotation.Service
	SaleSvc        sale.Service
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:           p.Conf,
		Logger:         p.Logger,
		Metrics:        p.Metrics,
		Validate:       p.Validate,
		Translator:     p.Translator,
		UserSvc:        p.UserSvc,
		AccessSvc:      p.AccessSvc,
		ClientSvc:      p.ClientSvc,
		TreatmentSvc:   p.TreatmentSvc,
		EmployeeSvc:    p.EmployeeSvc,
		AppointmentSvc: p.AppointmentSvc,
		QuotationSvc:   p.QuotationSvc,
		SaleSvc:        p.SaleSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	// infrastructure
	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(func(l *logsvc.RollbarLogger) core.Logger { return l }))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(func(db *sqlx.DB) core.DB { return db }))
	must(c.Provide(func(db *sqlx.DB) core.DBExecutor { return db }))
	must(c.Provide(newEmailService))
	must(c.Provide(metricsvc.NewPrometheusMetrics))
	must(c.Provide(func(m *metricsvc.PrometheusMetrics) core.Metrics { return m }))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))

	// repositories
	must(c.Provide(sqlxrepos.NewUserRepository, dig.As(new(user.Repository))))
	must(c.Provide(sqlxrepos.NewRoleRepository, dig.As(new(access.Repository))))
	must(c.Provide(sqlxrepos.NewClientRepository, dig.As(new(client.Repository))))
	must(c.Provide(sqlxrepos.NewTreatmentRepository, dig.As(new(treatment.Repository))))
	must(c.Provide(sqlxrepos.NewEmployeeRepository, dig.As(new(employee.Repository))))
	must(c.Provide(sqlxrepos.NewAppointmentRepository, dig.As(new(appointment.Repository))))
	must(c.Provide(sqlxrepos.NewQuotationRepository, dig.As(new(quotation.Repository))))
	must(c.Provide(sqlxrepos.NewSaleRepository, dig.As(new(sale.Repository))))
	must(c.Provide(sqlxrepos.NewCounterRepository, dig.As(new(billing.Sequencer))))

	// services
	must(c.Provide(user.NewService))
	must(c.Provide(access.NewService))
	must(c.Provide(client.NewService))
	must(c.Provide(treatment.NewService))
	must(c.Provide(employee.NewService))
	must(c.Provide(appointment.NewService))
	must(c.Provide(sale.NewService))
	must(c.Provide(quotation.NewService))

	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
