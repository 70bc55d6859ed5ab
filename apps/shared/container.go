// Package shared wires the repositories and services used by both the API server and the admin CLI.
package shared

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

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
	appfs "github.com/trezcool/chuo/fs"
	emailsvc "github.com/trezcool/chuo/services/email"
	gensvc "github.com/trezcool/chuo/services/generator"
	provisionsvc "github.com/trezcool/chuo/services/provisioner"
	"github.com/trezcool/chuo/storage/database"
	inmemdb "github.com/trezcool/chuo/storage/database/inmem"
	sqlxrepos "github.com/trezcool/chuo/storage/database/sqlx"
)

const (
	pagesDir      = "assets/content"
	hubBufferSize = 64
)

type (
	Repositories struct {
		Users        user.Repository
		Academics    academics.Repository
		Applications admission.Repository
		Accounts     mailbox.Repository
		Materials    material.Repository
		Books        library.Repository
		Messaging    messaging.Repository
		Jobs         content.Repository
		Documents    site.Repository
	}

	ServiceDeps struct {
		Conf        *core.Config
		Logger      core.Logger
		Repos       Repositories
		MailSvc     core.EmailService
		Files       core.FileStorage
		Provisioner mailbox.Provisioner
		Generator   content.Generator
	}

	Services struct {
		Validate   *validator.Validate
		Translator ut.Translator
		Hub        *messaging.Hub

		Users     user.ServiceInterface
		Academics academics.ServiceInterface
		Admission admission.ServiceInterface
		Mailbox   mailbox.ServiceInterface
		Importer  importer.ServiceInterface
		Materials material.ServiceInterface
		Library   library.ServiceInterface
		Messaging messaging.ServiceInterface
		Content   content.ServiceInterface
		Site      site.ServiceInterface
	}
)

func NewSQLRepositories(db *sqlx.DB) Repositories {
	return Repositories{
		Users:        sqlxrepos.NewUserRepository(db),
		Academics:    sqlxrepos.NewAcademicsRepository(db),
		Applications: sqlxrepos.NewApplicationRepository(db),
		Accounts:     sqlxrepos.NewEmailAccountRepository(db),
		Materials:    sqlxrepos.NewMaterialRepository(db),
		Books:        sqlxrepos.NewBookRepository(db),
		Messaging:    sqlxrepos.NewMessagingRepository(db),
		Jobs:         sqlxrepos.NewJobRepository(db),
		Documents:    sqlxrepos.NewPublicDocumentRepository(db),
	}
}

func NewMemoryRepositories(db *inmemdb.DB) Repositories {
	return Repositories{
		Users:        inmemdb.NewUserRepository(db),
		Academics:    inmemdb.NewAcademicsRepository(db),
		Applications: inmemdb.NewApplicationRepository(db),
		Accounts:     inmemdb.NewEmailAccountRepository(db),
		Materials:    inmemdb.NewMaterialRepository(db),
		Books:        inmemdb.NewBookRepository(db),
		Messaging:    inmemdb.NewMessagingRepository(db),
		Jobs:         inmemdb.NewJobRepository(db),
		Documents:    inmemdb.NewPublicDocumentRepository(db),
	}
}

// OpenRepositories sets up the database of the configured engine.
// Postgres databases are created and migrated when needed. close releases the connections.
func OpenRepositories(conf *core.Config) (repos Repositories, close func() error, err error) {
	if conf.Database.Engine == "memory" {
		return NewMemoryRepositories(inmemdb.Open()), func() error { return nil }, nil
	}

	if err = database.CreateIfNotExist(conf); err != nil {
		return Repositories{}, nil, errors.Wrap(err, "creating database")
	}
	db, err := database.Open(conf)
	if err != nil {
		return Repositories{}, nil, err
	}
	if err = database.Migrate(db.DB); err != nil {
		_ = db.Close()
		return Repositories{}, nil, errors.Wrap(err, "migrating database")
	}
	return NewSQLRepositories(db), db.Close, nil
}

// NewValidator returns the validator with the custom validations of every package registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)
	academics.InitValidators(validate, translator)
	admission.InitValidators(validate, translator)
	mailbox.InitValidators(validate, translator)
	importer.InitValidators(validate, translator)
	material.InitValidators(validate, translator)
	library.InitValidators(validate, translator)
	messaging.InitValidators(validate, translator)
	content.InitValidators(validate, translator)
	site.InitValidators(validate, translator)
	return validate, translator
}

// NewMailService prints emails in debug mode and sends them through Sendgrid otherwise.
func NewMailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// NewProvisioner calls the mailbox provisioning function when one is configured.
func NewProvisioner(conf *core.Config, logger core.Logger) mailbox.Provisioner {
	if conf.Mailbox.ProvisionerURL == "" {
		return provisionsvc.NewConsoleProvisioner(logger)
	}
	return provisionsvc.NewHTTPProvisioner(conf)
}

// NewGenerator calls the content generation function when one is configured.
func NewGenerator(conf *core.Config) content.Generator {
	if conf.Content.GeneratorURL == "" {
		return gensvc.NewTemplateGenerator()
	}
	return gensvc.NewHTTPGenerator(conf)
}

func NewServices(deps ServiceDeps) (*Services, error) {
	pages, err := site.LoadPages(appfs.FS, pagesDir)
	if err != nil {
		return nil, errors.Wrap(err, "loading pages")
	}

	validate, translator := NewValidator()
	hub := messaging.NewHub(hubBufferSize)

	usrSvc := user.NewService(deps.Repos.Users, deps.MailSvc, deps.Conf)
	academicsSvc := academics.NewService(deps.Repos.Academics)
	librarySvc := library.NewService(deps.Repos.Books)

	return &Services{
		Validate:   validate,
		Translator: translator,
		Hub:        hub,

		Users:     usrSvc,
		Academics: academicsSvc,
		Admission: admission.NewService(deps.Repos.Applications, academicsSvc, deps.Files, deps.MailSvc, deps.Conf),
		Mailbox:   mailbox.NewService(deps.Repos.Accounts, deps.Provisioner, deps.MailSvc, deps.Conf),
		Importer:  importer.NewService(academicsSvc, librarySvc, usrSvc, validate, translator, deps.Conf),
		Materials: material.NewService(deps.Repos.Materials, academicsSvc, deps.Files, deps.Conf),
		Library:   librarySvc,
		Messaging: messaging.NewService(deps.Repos.Messaging, hub),
		Content:   content.NewService(deps.Repos.Jobs, deps.Generator, academicsSvc, deps.Logger, deps.Conf),
		Site:      site.NewService(pages, deps.Repos.Documents, deps.Files, deps.MailSvc, deps.Conf),
	}, nil
}
