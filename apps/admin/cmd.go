package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/chuo/apps"
	"github.com/trezcool/chuo/core/importer"
	"github.com/trezcool/chuo/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db        *sql.DB // nil with the memory engine
	usrRepo   user.Repository
	importSvc importer.ServiceInterface
	out       io.Writer
}

// rootCmd builds the command tree. Commands print to cli.out.
func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Chuo administration commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)

	root.AddCommand(
		cli.migrateCmd(),
		cli.addUserCmd(),
		cli.resetPasswordCmd(),
		cli.importCmd(),
	)
	return root
}

// run executes the command line. args[0] is the program name.
func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	if len(args) > 0 {
		args = args[1:]
	}
	root.SetArgs(args)
	return root.Execute()
}

// promptPassword reads a password without echoing it.
func (cli *commandLine) promptPassword(label string) (string, error) {
	_, _ = fmt.Fprintf(cli.out, "%s: ", label)
	pwd, err := readPasswordFunc(syscall.Stdin)
	_, _ = fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		return "", apps.NewArgumentError("password cannot be empty")
	}
	return string(pwd), nil
}
