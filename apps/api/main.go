package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // /debug/pprof
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	echoapi "github.com/trezcool/metalearn/apps/api/echo"
	"github.com/trezcool/metalearn/core"
	"github.com/trezcool/metalearn/core/file"
	"github.com/trezcool/metalearn/core/progress"
	"github.com/trezcool/metalearn/core/user"
	appfs "github.com/trezcool/metalearn/fs"
	"github.com/trezcool/metalearn/services/digest"
	emailsvc "github.com/trezcool/metalearn/services/email"
	logsvc "github.com/trezcool/metalearn/services/logger"
	"github.com/trezcool/metalearn/storage/database"
	sqlxrepos "github.com/trezcool/metalearn/storage/database/sqlx"
	"github.com/trezcool/metalearn/storage/filestore"
)

func main() {
	if err := run(); err != nil {
		log.Printf("main: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	zl, err := logsvc.NewZap(conf)
	if err != nil {
		return errors.Wrap(err, "building zap logger")
	}
	logger := logsvc.New(zl, conf)
	defer logger.Sync()

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	db, err := setUpDB(conf)
	if err != nil {
		return errors.Wrap(err, "setting up database")
	}
	defer func() {
		if cErr := db.Close(); cErr != nil {
			logger.Error("closing database", cErr)
		}
	}()

	if err = core.ParseEmailTemplates(appfs.FS, conf.FrontendBaseURL, !conf.Debug); err != nil {
		return errors.Wrap(err, "parsing email templates")
	}

	var mailSvc core.EmailService
	if conf.Debug || conf.SendgridAPIKey == "" {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		sg := emailsvc.NewSendgridService(conf, logger)
		defer sg.Wait()
		mailSvc = sg
	}

	blobs, err := filestore.New(conf.Uploads.Dir)
	if err != nil {
		return errors.Wrap(err, "opening uploads store")
	}

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, conf)
	progressSvc, err := progress.NewService(sqlxrepos.NewProgressRepository(db), conf.Tutor.Threshold)
	if err != nil {
		return errors.Wrap(err, "setting up progress service")
	}
	fileSvc := file.NewService(sqlxrepos.NewFileRepository(db), blobs, conf.Uploads.MaxSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// =========================================================================
	// Start Remediation Digest

	digestSvc := digest.NewService(usrSvc, progressSvc, mailSvc, logger)
	digestErrors := make(chan error, 1)
	go func() {
		digestErrors <- digestSvc.Start(ctx, conf.Tutor.DigestSchedule)
	}()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if dErr := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); dErr != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", dErr), dErr)
		}
	}()

	// =========================================================================
	// Start API Service

	shutdown := make(chan struct{}, 1)
	server := echoapi.NewServer(conf.Server.Address(), shutdown, &echoapi.Deps{
		Conf:        conf,
		Logger:      logger,
		DB:          db,
		UserSvc:     usrSvc,
		ProgressSvc: progressSvc,
		FileSvc:     fileSvc,
	})

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("API listening on %s", conf.Server.Address()))
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	select {
	case err = <-serverErrors:
		return errors.Wrap(err, "server error")

	case err = <-digestErrors:
		if err != nil {
			return errors.Wrap(err, "remediation digest")
		}
		// digest disabled: keep serving
		return waitForShutdown(conf, logger, server, serverErrors, shutdown, signals)

	case <-shutdown:
		logger.Info("integrity issue: Start shutdown...")
		return stopServer(conf, logger, server)

	case sig := <-signals:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
		return stopServer(conf, logger, server)
	}
}

func waitForShutdown(
	conf *core.Config,
	logger core.Logger,
	server echoapi.Server,
	serverErrors <-chan error,
	shutdown <-chan struct{},
	signals <-chan os.Signal,
) error {
	select {
	case err := <-serverErrors:
		return errors.Wrap(err, "server error")
	case <-shutdown:
		logger.Info("integrity issue: Start shutdown...")
	case sig := <-signals:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
	}
	return stopServer(conf, logger, server)
}

// stopServer gives outstanding requests a deadline for completion.
func stopServer(conf *core.Config, logger core.Logger, server echoapi.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		return errors.Wrap(err, "stopping server")
	}
	return nil
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
