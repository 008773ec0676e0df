package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/benbjohnson/clock"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/services/identity"
	logsvc "github.com/trezcool/shule/services/logger"
	"github.com/trezcool/shule/storage/database"
	memdbrepos "github.com/trezcool/shule/storage/database/memdb"
	sqlxrepos "github.com/trezcool/shule/storage/database/sqlx"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZapLogger(conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setting up logger: %v\n", err)
		os.Exit(1)
	}
	rollbarLogger := logsvc.NewRollbarLogger(zl.Named("admin"), conf)
	rollbarLogger.Enable(!conf.Debug && conf.RollbarToken != "")
	logger = rollbarLogger

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	cli := commandLine{
		provider: identity.NewSessionProvider(conf),
		validate: validate,
		out:      os.Stdout,
	}

	// set up storage
	if conf.Database.InMemory() {
		store, err := memdbrepos.NewStore(clock.New())
		errAndDie(err)
		cli.schools = memdbrepos.NewSchoolRepository(store)
		cli.members = memdbrepos.NewMembershipRepository(store)
	} else {
		db, err := database.Open(conf)
		errAndDie(err)
		errAndDie(database.Ping(context.Background(), db))
		cli.db = db.DB
		cli.schools = sqlxrepos.NewSchoolRepository(db)
		cli.members = sqlxrepos.NewMembershipRepository(db)
	}

	code := 0
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %s", err), err)
		}
		code = 1
	}
	closeDB(cli.db)
	_ = rollbarLogger.Sync()
	os.Exit(code)
}

func closeDB(db *sql.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		logger.Error("closing database", errors.Wrap(err, "closing database"))
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
