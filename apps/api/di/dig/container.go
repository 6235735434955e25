package dig_container

import (
	"context"
	"fmt"
	"log"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/attendr/apps/api/echo"
	"github.com/trezcool/attendr/core"
	"github.com/trezcool/attendr/core/advisory"
	"github.com/trezcool/attendr/core/attendance"
	cachesvc "github.com/trezcool/attendr/services/cache"
	genaisvc "github.com/trezcool/attendr/services/genai"
	logsvc "github.com/trezcool/attendr/services/logger"
	"github.com/trezcool/attendr/storage/database"
	sqlxrepos "github.com/trezcool/attendr/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type ServerParams struct {
	dig.In
	Conf          *core.Config
	Logger        core.Logger
	AttendanceSvc *attendance.Service
	AdvisorySvc   *advisory.Service
	Validate      *validator.Validate
	Translator    ut.Translator
}

func newNamedLogger(name string) func(conf *core.Config) (core.Logger, error) {
	return func(conf *core.Config) (core.Logger, error) {
		sugar, err := logsvc.NewZap(name, conf.Debug)
		if err != nil {
			return nil, errors.Wrap(err, "building zap logger")
		}
		logger := logsvc.NewRollbarLogger(sugar, conf)
		logger.Enable(!conf.Debug && conf.RollbarToken != "")
		return logger, nil
	}
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

		if err = database.Migrate(context.Background(), db.DB); err != nil {
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

func newCache(conf *core.Config) (cachesvc.Cache, attendance.Cache, error) {
	c, err := cachesvc.New(context.Background(), conf)
	if err != nil {
		return nil, nil, err
	}
	return c, c, nil
}

func newModels(conf *core.Config) (genaisvc.Service, core.ModelService, error) {
	m, err := genaisvc.New(context.Background(), conf)
	if err != nil {
		return nil, nil, err
	}
	return m, m, nil
}

// newPolicy fails startup on a misconfigured policy.
func newPolicy(conf *core.Config, validate *validator.Validate) (attendance.Policy, error) {
	policy := attendance.PolicyFromConfig(conf.Policy)
	if err := policy.Validate(validate); err != nil {
		return attendance.Policy{}, errors.Wrap(err, "validating policy config")
	}
	return policy, nil
}

func newBuilder(conf *core.Config, policy attendance.Policy) advisory.Builder {
	return advisory.NewBuilder(policy, advisory.LimitsFromConfig(conf.Policy))
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)
	return validate
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:          p.Conf,
		Logger:        p.Logger,
		AttendanceSvc: p.AttendanceSvc,
		AdvisorySvc:   p.AdvisorySvc,
		Validate:      p.Validate,
		Translator:    p.Translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newNamedLogger("API")))
	must(c.Provide(newNamedLogger("DB"), dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newCache))
	must(c.Provide(newModels))
	must(c.Provide(newPolicy))
	must(c.Provide(newBuilder))
	must(c.Provide(sqlxrepos.NewUploadRepository))
	must(c.Provide(attendance.NewService))
	must(c.Provide(func(svc *attendance.Service) advisory.Records { return svc }))
	must(c.Provide(advisory.NewService))
	must(c.Provide(newValidator))
	must(c.Provide(newTranslator))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
