package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trezcool/chuo/apps"
	"github.com/trezcool/chuo/apps/shared"
	"github.com/trezcool/chuo/core/user"
	emailsvc "github.com/trezcool/chuo/services/email"
	logsvc "github.com/trezcool/chuo/services/logger"
	provisionsvc "github.com/trezcool/chuo/services/provisioner"
	storagesvc "github.com/trezcool/chuo/services/storage"
	inmemdb "github.com/trezcool/chuo/storage/database/inmem"
	"github.com/trezcool/chuo/testutil"
)

var usrRepo user.Repository

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	t.Helper()
	conf := testutil.NewTestConfig()
	logger := logsvc.NewRollbarLogger(zap.NewNop(), conf)
	logger.Enable(false)

	files, err := storagesvc.NewLocalStorage(conf.Storage.Root)
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(conf.Storage.Root) })

	repos := shared.NewMemoryRepositories(inmemdb.Open())
	usrRepo = repos.Users
	svcs, err := shared.NewServices(shared.ServiceDeps{
		Conf:        conf,
		Logger:      logger,
		Repos:       repos,
		MailSvc:     emailsvc.NewConsoleServiceMock(conf, logger),
		Files:       files,
		Provisioner: provisionsvc.NewConsoleProvisioner(logger),
		Generator:   shared.NewGenerator(conf),
	})
	require.NoError(t, err)

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	out := new(bytes.Buffer)
	return &commandLine{
		db:        db,
		usrRepo:   usrRepo,
		importSvc: svcs.Importer,
		out:       out,
	}, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func checkErr(t *testing.T, tt cliTest, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_root(t *testing.T) {
	cli, out := setup(t)

	assert.Equal(t, errHelp, cli.run([]string{"admin"}))
	assert.Contains(t, out.String(), "migrate")
	assert.Contains(t, out.String(), "resetpassword")

	err := cli.run([]string{"admin", "lol"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "lol"`)
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}

	t.Run("memory engine", func(t *testing.T) {
		cli.db = nil
		err := cli.run([]string{"admin", "migrate", "up"})
		assert.IsType(t, &apps.ArgumentError{}, err)
	})
}

func Test_commandLine_addUser(t *testing.T) {
	cli, _ := setup(t)
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("Kx9#mQ2$vLz"), nil }

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no email", args: []string{"adduser", "-u", "root"}, wantErr: errHelp},
		{name: "bad email", args: []string{"adduser", "-u", "root", "-e", "root"}, wantErrStr: "invalid email address: root"},
		{name: "create", args: []string{"adduser", "-u", "Root", "-e", "root@chuo.ac", "-n", "Root"}},
		{name: "grant owner", args: []string{"adduser", "-u", "root", "-e", "root@chuo.ac", "--owner"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}

	usr, err := usrRepo.GetUser(context.Background(), user.GetFilter{Username: "root"})
	require.NoError(t, err)
	assert.Equal(t, "Root", usr.Name)
	assert.True(t, usr.IsActive)
	assert.Equal(t, []string{user.RoleAdminOwner}, usr.Roles)
	assert.NoError(t, usr.CheckPassword("Kx9#mQ2$vLz"))

	readPasswordFunc = func(fd int) ([]byte, error) { return nil, nil }
	err = cli.run([]string{"admin", "adduser", "-u", "other", "-e", "other@chuo.ac"})
	assert.IsType(t, &apps.ArgumentError{}, err)
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, _ := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.cd", "mdr", nil, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-u", "awe"}, wantErrStr: "password cannot be empty"},
		{name: "user not found", args: []string{"resetpassword", "-u", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-u", usr.Username}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "--username", usr.Email}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			checkErr(t, tt, err)
			if err == nil {
				refreshedUsr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
				require.NoError(t, err)
				assert.NotEqual(t, usr.PasswordHash, refreshedUsr.PasswordHash)
			}
		})
	}
}

func Test_commandLine_import(t *testing.T) {
	cli, out := setup(t)

	path := filepath.Join(t.TempDir(), "students.csv")
	csv := "Name,Email\nAda Lovelace,ada@chuo.ac\nNo Email,\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o600))

	tests := []cliTest{
		{name: "no args", args: []string{"import"}, wantErr: errHelp},
		{name: "no file", args: []string{"import", "-k", "students"}, wantErr: errHelp},
		{name: "missing file", args: []string{"import", "-k", "students", "-f", path + ".lol"}, wantErrStr: "opening file: open " + path + ".lol: no such file or directory"},
		{name: "bad kind", args: []string{"import", "-k", "grades", "-f", path}, wantErrStr: "invalid import kind"},
		{name: "import", args: []string{"import", "-k", "Students", "-f", path}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}

	assert.Contains(t, out.String(), "students: 2 rows, 1 inserted, 0 skipped, 1 failed")
	assert.Contains(t, out.String(), "row 3: email: this field is required")

	_, err := usrRepo.GetUser(context.Background(), user.GetFilter{Email: "ada@chuo.ac"})
	assert.NoError(t, err)
}
