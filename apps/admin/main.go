package main

import (
	"fmt"
	"os"

	"github.com/trezcool/chuo/apps/shared"
	"github.com/trezcool/chuo/core"
	logsvc "github.com/trezcool/chuo/services/logger"
	storagesvc "github.com/trezcool/chuo/services/storage"
	"github.com/trezcool/chuo/storage/database"
	inmemdb "github.com/trezcool/chuo/storage/database/inmem"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZap(conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setting up logger: %v\n", err)
		os.Exit(1)
	}
	logger := logsvc.NewRollbarLogger(zl.Named("admin"), conf)
	logger.Enable(!conf.Debug)

	cli := commandLine{out: os.Stdout}
	var repos shared.Repositories
	if conf.Database.Engine == "memory" {
		repos = shared.NewMemoryRepositories(inmemdb.Open())
	} else {
		if err = database.CreateIfNotExist(conf); err != nil {
			logger.Fatal("creating database", err)
		}
		db, err := database.Open(conf)
		if err != nil {
			logger.Fatal("opening database", err)
		}
		defer func() { _ = db.Close() }()
		cli.db = db.DB
		repos = shared.NewSQLRepositories(db)
	}
	cli.usrRepo = repos.Users

	files, err := storagesvc.New(conf.Storage)
	if err != nil {
		logger.Fatal("setting up file storage", err)
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
		logger.Fatal("setting up services", err)
	}
	cli.importSvc = svcs.Importer

	err = cli.run(os.Args)
	logger.Sync()
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
