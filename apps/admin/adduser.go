package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/atomcode/atomq/core/user"
)

// addUser creates a user, or reactivates and resets an existing one.
func (cli *commandLine) addUser(name, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	role := user.RoleUser
	if isAdmin {
		role = user.RoleAdmin
	}

	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		_, err = cli.usrSvc.Create(ctx, cli.validate, user.NewUser{Name: name, Email: email, Password: pwd}, role)
		return err
	}

	usr.Name = name
	usr.Role = role
	usr.IsActive = true
	if _, err = cli.usrSvc.ResetPassword(ctx, usr, pwd); err != nil {
		return err
	}
	return nil
}
