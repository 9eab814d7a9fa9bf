package main

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/metalearn/core"
	"github.com/trezcool/metalearn/core/progress"
	"github.com/trezcool/metalearn/core/user"
	logsvc "github.com/trezcool/metalearn/services/logger"
	"github.com/trezcool/metalearn/storage/database"
	sqlxrepos "github.com/trezcool/metalearn/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZap(conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "building zap logger: %v\n", err)
		os.Exit(1)
	}
	logger := logsvc.New(zl.Named("admin"), conf)

	if err = run(conf, os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func run(conf *core.Config, args []string) error {
	if err := database.CreateIfNotExist(conf); err != nil {
		return err
	}
	db, err := database.Open(conf)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	progressRepo := sqlxrepos.NewProgressRepository(db)
	progressSvc, err := progress.NewService(progressRepo, conf.Tutor.Threshold)
	if err != nil {
		return errors.Wrap(err, "setting up progress service")
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	cli := commandLine{
		db:          db,
		usrRepo:     sqlxrepos.NewUserRepository(db),
		progressSvc: progressSvc,
		validate:    validate,
		out:         os.Stdout,
	}
	return cli.run(args)
}
