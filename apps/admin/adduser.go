package main

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/spf13/cobra"

	"github.com/trezcool/chuo/apps"
	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	var (
		name, uname, email string
		owner              bool
	)
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user, or update the one with the same username or email",
		Long: `Create a user, or update the one with the same username or email.
The password is prompted next.

Example:
  admin adduser -u root -e root@chuo.ac --owner`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if uname == "" || email == "" {
				_ = cmd.Help()
				return errHelp
			}
			pwd, err := cli.promptPassword("Enter password")
			if err != nil {
				return err
			}
			usr, err := cli.addUser(name, uname, email, pwd, owner)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cli.out, "user %s saved (id %s)\n", usr.Username, usr.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&uname, "username", "u", "", "username")
	cmd.Flags().StringVarP(&email, "email", "e", "", "email address")
	cmd.Flags().StringVarP(&name, "name", "n", "", "full name")
	cmd.Flags().BoolVar(&owner, "owner", false, "grant the owner role")
	return cmd
}

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(name, uname, email, pwd string, owner bool) (user.User, error) {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	if _, err := mail.ParseAddress(email); err != nil {
		return user.User{}, apps.NewArgumentError("invalid email address: " + email)
	}

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: uname})
	if err == user.ErrNotFound {
		usr, err = cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	}
	exists := err == nil
	if err != nil && err != user.ErrNotFound {
		return user.User{}, err
	}

	now := core.Now()
	if !exists {
		usr = user.User{Username: uname, Email: email, CreatedAt: now}
	}
	if name = core.CleanString(name); name != "" {
		usr.Name = name
	}
	if owner && !core.StringInSlice(user.RoleAdminOwner, usr.Roles) {
		usr.Roles = append(usr.Roles, user.RoleAdminOwner)
	}
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return user.User{}, err
	}

	if exists {
		return cli.usrRepo.UpdateUser(ctx, usr)
	}
	return cli.usrRepo.CreateUser(ctx, usr)
}
