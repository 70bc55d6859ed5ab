package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"

	echoapi "github.com/trezcool/chuo/apps/api/echo"
	"github.com/trezcool/chuo/apps/shared"
	"github.com/trezcool/chuo/core"
	logsvc "github.com/trezcool/chuo/services/logger"
	storagesvc "github.com/trezcool/chuo/services/storage"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	zl, err := logsvc.NewZap(conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setting up logger: %v\n", err)
		os.Exit(1)
	}
	logger := logsvc.NewRollbarLogger(zl.Named("api"), conf)
	logger.Enable(!conf.Debug)
	defer logger.Sync()

	repos, closeDB, err := shared.OpenRepositories(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = closeDB(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	files, err := storagesvc.New(conf.Storage)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up file storage: %v", err), err)
	}

	svcs, err := shared.NewServices(shared.ServiceDeps{
		Conf:        conf,
		Logger:      logger,
		Repos:       repos,
		MailSvc:     shared.NewMailService(conf, logger),
		Files:       files,
		Provisioner: shared.NewProvisioner(conf, logger),
		Generator:   shared.NewGenerator(conf),
	})
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up services: %v", err), err)
	}
	defer svcs.Hub.Close()

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	if err = core.ParseEmailTemplates(); err != nil {
		logger.Fatal("parsing email templates", err)
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Content Worker

	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := svcs.Content.Run(workerCtx); err != nil {
			logger.Error("content worker stopped", err)
		}
	}()
	defer func() {
		stopWorker()
		<-workerDone
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:         conf,
			Logger:       logger,
			Validate:     svcs.Validate,
			Translator:   svcs.Translator,
			UserSvc:      svcs.Users,
			AcademicsSvc: svcs.Academics,
			AdmissionSvc: svcs.Admission,
			MailboxSvc:   svcs.Mailbox,
			ImporterSvc:  svcs.Importer,
			MaterialSvc:  svcs.Materials,
			LibrarySvc:   svcs.Library,
			MessagingSvc: svcs.Messaging,
			ContentSvc:   svcs.Content,
			SiteSvc:      svcs.Site,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
