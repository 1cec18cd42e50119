package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomcode/atomq/core/settings"
	"github.com/atomcode/atomq/core/user"
	emailsvc "github.com/atomcode/atomq/services/email"
	sqlxrepos "github.com/atomcode/atomq/storage/database/sqlx"
	"github.com/atomcode/atomq/testutil"
)

var usrRepo user.Repository

func setup(t *testing.T) *commandLine {
	conf := testutil.Config()
	validate, _ := testutil.Validator()

	// set up DB & repos
	db := testutil.PrepareDB(t)
	usrRepo = sqlxrepos.NewUserRepository(db)

	// start CLI
	return &commandLine{
		db:          db,
		usrSvc:      user.NewService(usrRepo, emailsvc.NewConsoleServiceMock(conf, testutil.Logger(conf)), conf),
		settingsSvc: settings.NewService(sqlxrepos.NewSettingsRepository(db), conf),
		validate:    validate,
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, errors.Cause(err))
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	runMigrationsFunc = func(_ context.Context, _ *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
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
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "leaderboards", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	existing := testutil.CreateUser(t, usrRepo, "Old Name", "old@atomcode.dev", "secret", user.RoleUser, false)

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no name", args: []string{"adduser", "-email", "new@atomcode.dev"}, pwd: "Str0ngPass", wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-email", "new@atomcode.dev", "-name", "New"}, wantErr: errHelp},
		{name: "create admin", args: []string{"adduser", "-email", "new@atomcode.dev", "-name", "New Admin", "-admin"}, pwd: "Str0ngPass"},
		{name: "update existing", args: []string{"adduser", "-email", existing.Email, "-name", "New Name"}, pwd: "An0therPass"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		mockPassword(tt.pwd)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	admin, err := usrRepo.GetUserByEmail(ctx, "new@atomcode.dev")
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, admin.Role)
	assert.NoError(t, admin.CheckPassword("Str0ngPass"))

	updated, err := usrRepo.GetUserByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.Name)
	assert.True(t, updated.IsActive)
	assert.NoError(t, updated.CheckPassword("An0therPass"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "awe@atomcode.dev", "mdr", user.RoleUser, true)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@atomcode.dev"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@atomcode.dev"}, pwd: "lol", wantErr: user.ErrNotFound},
		{
			name: "password too long", args: []string{"resetpassword", "-email", usr.Email},
			pwd: strings.Repeat("x", user.PwdMaxLen+1), wantErrStr: user.ErrPwdTooLong.Error(),
		},
		{name: "reset", args: []string{"resetpassword", "-email", usr.Email}, pwd: "lmao"},
		{name: "reset (case-insensitive email)", args: []string{"resetpassword", "-email", "AWE@atomcode.dev"}, pwd: "lmao2"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		mockPassword(tt.pwd)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			tt.check(t, err)
			if err == nil && tt.pwd != "" {
				refreshedUsr, err := usrRepo.GetUserByID(context.Background(), usr.ID)
				require.NoError(t, err)
				assert.NoError(t, refreshedUsr.CheckPassword(tt.pwd))
			}
		})
	}
}

func Test_commandLine_seed(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	mockPassword("")
	assert.Equal(t, errHelp, cli.run([]string{"admin", "seed"}), "password required")

	mockPassword("S33dPassword")
	require.NoError(t, cli.run([]string{"admin", "seed"}))

	admin, err := usrRepo.GetUserByEmail(ctx, seedAdminEmail)
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, admin.Role)

	s, err := sqlxrepos.NewSettingsRepository(cli.db).GetSettings(ctx)
	require.NoError(t, err)
	assert.True(t, s.AllowRegistration)

	// seeding again keeps the existing admin
	mockPassword("")
	assert.NoError(t, cli.run([]string{"admin", "seed"}))
}
