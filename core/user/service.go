package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/atomcode/atomq/core"
)

var (
	// errors
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("User with this email already exists")
	ErrPwdTooLong  = errors.New(pwdMaxLenText)
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUserByID(ctx context.Context, id string, exec ...core.DBExecutor) (User, error)
		GetUserByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (User, error)
		GetUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on User.Name or User.Email.
		QueryUsers(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		SetLastLogin(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) error
	}

	Service struct {
		repo       Repository
		mailSvc    core.EmailService
		bcryptCost int
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, bcryptCost: conf.Auth.BcryptCost}
}

// Register creates a regular user and sends them a welcome email.
func (svc *Service) Register(ctx context.Context, validate *validator.Validate, nu NewUser) (User, error) {
	usr, err := svc.Create(ctx, validate, nu, RoleUser)
	if err != nil {
		return User{}, err
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Welcome to Atom Q",
		TemplateName: "welcome",
		TemplateData: usr,
	})
	return usr, nil
}

func (svc *Service) Create(ctx context.Context, validate *validator.Validate, nu NewUser, role string) (User, error) {
	nu.Clean()
	if err := validate.Struct(nu); err != nil {
		return User{}, err
	}
	if err := svc.CheckEmailUniqueness(ctx, nu.Email); err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Phone:     null.NewString(nu.Phone, nu.Phone != ""),
		Campus:    null.NewString(nu.Campus, nu.Campus != ""),
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password, svc.bcryptCost); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

// CheckEmailUniqueness returns a validation error wrapping ErrEmailExists when email is taken.
func (svc *Service) CheckEmailUniqueness(ctx context.Context, email string) error {
	_, err := svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	switch errors.Cause(err) {
	case nil:
		return core.NewValidationError(ErrEmailExists)
	case ErrNotFound:
		return nil
	default:
		return errors.Wrap(err, "checking email uniqueness")
	}
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) GetManyByID(ctx context.Context, ids []string) ([]User, error) {
	return svc.repo.GetUsersByID(ctx, ids)
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]User, error) {
	filter.Clean()
	return svc.repo.QueryUsers(ctx, filter)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	now := time.Now().UTC()
	if err := svc.repo.SetLastLogin(ctx, usr.ID, now); err != nil {
		return User{}, err
	}
	usr.LastLogin.SetValid(now)
	return usr, nil
}

// ResetPassword sets a new password without enforcing the registration policy,
// except for the bcrypt length limit.
func (svc *Service) ResetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if len(pwd) > PwdMaxLen {
		return User{}, core.NewValidationError(ErrPwdTooLong, core.FieldError{Field: "password", Error: pwdMaxLenText})
	}
	if err := usr.SetPassword(pwd, svc.bcryptCost); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// Save persists changes made to an existing user.
func (svc *Service) Save(ctx context.Context, usr User) (User, error) {
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}
