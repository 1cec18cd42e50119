package auth

import (
	"context"

	"github.com/pkg/errors"

	"github.com/atomcode/atomq/core"
	"github.com/atomcode/atomq/core/settings"
	"github.com/atomcode/atomq/core/user"
)

var (
	ErrInvalidCredentials = errors.New("Invalid email or password")
	ErrMaintenance        = errors.New("Site is under maintenance. Only administrators can login.")
)

type Service struct {
	users    *user.Service
	settings *settings.Service
	limiter  *Limiter
	logger   core.Logger
}

func NewService(users *user.Service, settingsSvc *settings.Service, limiter *Limiter, logger core.Logger) *Service {
	return &Service{users: users, settings: settingsSvc, limiter: limiter, logger: logger}
}

// Login checks the credentials of an email/password pair.
// Possible errors: *LockedError, ErrMaintenance, ErrInvalidCredentials.
func (svc *Service) Login(ctx context.Context, email, pwd string) (user.User, error) {
	email = core.CleanString(email, true /* lower */)
	if err := svc.limiter.Check(ctx, email); err != nil {
		return user.User{}, err
	}

	usr, err := svc.users.GetByEmail(ctx, email)
	if err != nil && errors.Cause(err) != user.ErrNotFound {
		return user.User{}, errors.Wrap(err, "finding user by email")
	}
	found := err == nil

	if svc.settings.MaintenanceMode(ctx) && !(found && usr.IsAdmin() && usr.IsActive) {
		return user.User{}, ErrMaintenance
	}

	if !found || !usr.IsActive || usr.CheckPassword(pwd) != nil {
		if err := svc.limiter.Fail(ctx, email); err != nil {
			if _, locked := err.(*LockedError); locked {
				return user.User{}, err
			}
			return user.User{}, errors.Wrap(err, "recording failed login")
		}
		return user.User{}, ErrInvalidCredentials
	}

	if err := svc.limiter.Reset(ctx, email); err != nil {
		svc.logger.Warn("clearing login attempts", err, usr)
	}
	usr, err = svc.users.SetLastLogin(ctx, usr)
	if err != nil {
		return user.User{}, errors.Wrap(err, "setting lastLogin")
	}
	return usr, nil
}

// ClearAttempts unlocks email.
func (svc *Service) ClearAttempts(ctx context.Context, email string) error {
	return svc.limiter.Reset(ctx, core.CleanString(email, true /* lower */))
}
