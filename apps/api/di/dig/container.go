package dig_container

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/benbjohnson/clock"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/services/identity"
	logsvc "github.com/trezcool/shule/services/logger"
	"github.com/trezcool/shule/services/metrics"
	"github.com/trezcool/shule/storage/database"
	memdbrepos "github.com/trezcool/shule/storage/database/memdb"
	sqlxrepos "github.com/trezcool/shule/storage/database/sqlx"
)

const setUpTimeout = time.Minute

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Storage is the persistence layer picked by the configured database engine.
type Storage struct {
	dig.Out
	Schools school.Repository
	Members access.MembershipRepository
	Writer  access.MembershipWriter
	Closer  io.Closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newLogger(conf *core.Config, zl *zap.Logger) core.Logger {
	logger := logsvc.NewRollbarLogger(zl.Named("api"), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config, zl *zap.Logger) core.Logger {
	logger := logsvc.NewRollbarLogger(zl.Named("db"), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) (Storage, error) {
	logger := loggerParam.Logger

	if conf.Database.InMemory() {
		store, err := memdbrepos.NewStore(clock.New())
		if err != nil {
			return Storage{}, errors.Wrap(err, "creating in-memory store")
		}
		members := memdbrepos.NewMembershipRepository(store)
		logger.Warn("using in-memory storage; data will not survive a restart")
		return Storage{
			Schools: memdbrepos.NewSchoolRepository(store),
			Members: members,
			Writer:  members,
			Closer:  nopCloser{},
		}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), setUpTimeout)
	defer cancel()

	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return Storage{}, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return Storage{}, err
	}
	if err = database.Ping(ctx, db); err != nil {
		_ = db.Close()
		return Storage{}, errors.Wrap(err, "pinging database")
	}
	if err = database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return Storage{}, err
	}
	logger.Info("database ready", map[string]interface{}{"address": conf.Database.Address(), "name": conf.Database.Name})

	members := sqlxrepos.NewMembershipRepository(db)
	return Storage{
		Schools: sqlxrepos.NewSchoolRepository(db),
		Members: members,
		Writer:  members,
		Closer:  db,
	}, nil
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newResolver(
	members access.MembershipRepository,
	schools school.ServiceInterface,
	reg *prometheus.Registry,
	clk clock.Clock,
) access.ContextResolver {
	return metrics.NewResolverMetrics(reg, access.NewResolver(members, schools), clk)
}

func newHTTPMetrics(reg *prometheus.Registry, clk clock.Clock) *metrics.HTTPMetrics {
	return metrics.NewHTTPMetrics(reg, clk)
}

type serverDeps struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	UserSvc    user.ServiceInterface
	SchoolSvc  school.ServiceInterface
	Resolver   access.ContextResolver
	Registry   *prometheus.Registry
	Metrics    *metrics.HTTPMetrics
}

func newServer(in serverDeps) *echoapi.Server {
	return echoapi.NewServer(in.Conf, &echoapi.Deps{
		Logger:      in.Logger,
		Validate:    in.Validate,
		Translator:  in.Translator,
		UserSvc:     in.UserSvc,
		SchoolSvc:   in.SchoolSvc,
		Resolver:    in.Resolver,
		Gatherer:    in.Registry,
		HTTPMetrics: in.Metrics,
	})
}

// New returns a new dependency injection dig.Container
func New(newConfig func() *core.Config) *dig.Container {
	c := dig.New()

	must(c.Provide(newConfig))
	must(c.Provide(logsvc.NewZapLogger))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(clock.New))
	must(c.Provide(newStorage))
	must(c.Provide(identity.NewSessionProvider, dig.As(new(user.IdentityProvider))))
	must(c.Provide(user.NewService, dig.As(new(user.ServiceInterface))))
	must(c.Provide(school.NewService, dig.As(new(school.ServiceInterface))))
	must(c.Provide(newRegistry))
	must(c.Provide(newResolver))
	must(c.Provide(newHTTPMetrics))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
