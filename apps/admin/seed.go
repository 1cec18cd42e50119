package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/atomcode/atomq/core/user"
)

const (
	seedAdminName  = "Atom Q Admin"
	seedAdminEmail = "admin@atomcode.dev"
)

// seed creates the default settings row and the first admin. Existing data is left untouched.
func (cli *commandLine) seed() error {
	ctx := context.Background()

	if _, err := cli.settingsSvc.Get(ctx); err != nil {
		return err
	}

	_, err := cli.usrSvc.GetByEmail(ctx, seedAdminEmail)
	switch errors.Cause(err) {
	case nil:
		fmt.Printf("admin %s already exists\n", seedAdminEmail)
		return nil
	case user.ErrNotFound:
	default:
		return err
	}

	pwd, err := cli.readPassword(nil)
	if err != nil {
		return err
	}
	return cli.addUser(seedAdminName, seedAdminEmail, pwd, true)
}
