package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/atomcode/atomq/core/auth"
	"github.com/atomcode/atomq/core/settings"
	"github.com/atomcode/atomq/core/user"
)

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}

	RegisteredUser struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}

	RegisterResponse struct {
		Message string         `json:"message"`
		User    RegisteredUser `json:"user"`
	}
)

type userApi struct {
	svc         *user.Service
	authSvc     *auth.Service
	settingsSvc *settings.Service
	tokens      tokenManager
	metrics     *metrics
	validate    *validator.Validate
}

func registerUserAPI(g *echo.Group, authed echo.MiddlewareFunc, s *Server) {
	api := userApi{
		svc:         s.deps.UserSvc,
		authSvc:     s.deps.AuthSvc,
		settingsSvc: s.deps.SettingsSvc,
		tokens:      s.tokens,
		metrics:     s.metrics,
		validate:    s.deps.Validate,
	}

	ag := g.Group("/auth")
	ag.POST("/register", api.register)
	ag.POST("/login", api.login)
	ag.POST("/logout", api.logout)
	ag.GET("/me", api.me, authed)
}

// Handlers

func (api *userApi) register(ctx echo.Context) error {
	s, err := api.settingsSvc.Get(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "loading settings")
	}
	if !s.AllowRegistration {
		return errRegistrationDisabled
	}

	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	data.Campus = "" // set by admins only

	usr, err := api.svc.Register(ctx.Request().Context(), api.validate, data)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusCreated, RegisterResponse{
		Message: "User created successfully",
		User:    RegisteredUser{ID: usr.ID, Name: usr.Name, Email: usr.Email, Role: usr.Role},
	})
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	usr, err := api.authSvc.Login(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		api.recordLogin(err)
		return err
	}
	token, err := api.tokens.Generate(usr)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	api.recordLogin(nil)

	api.tokens.SetCookie(ctx, token)
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: usr})
}

func (api *userApi) recordLogin(err error) {
	switch e := errors.Cause(err).(type) {
	case nil:
		api.metrics.logins.WithLabelValues("success").Inc()
	case *auth.LockedError:
		api.metrics.lockedLogins.Inc()
		api.metrics.logins.WithLabelValues("locked").Inc()
	default:
		switch e {
		case auth.ErrInvalidCredentials:
			api.metrics.logins.WithLabelValues("invalid").Inc()
		case auth.ErrMaintenance:
			api.metrics.logins.WithLabelValues("maintenance").Inc()
		default:
			api.metrics.logins.WithLabelValues("error").Inc()
		}
	}
}

func (api *userApi) logout(ctx echo.Context) error {
	api.tokens.ClearCookie(ctx)
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Logged out successfully"})
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}
