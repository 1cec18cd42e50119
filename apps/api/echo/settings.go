package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/atomcode/atomq/core/auth"
	"github.com/atomcode/atomq/core/settings"
)

type ClearAttemptsRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type settingsApi struct {
	svc      *settings.Service
	authSvc  *auth.Service
	validate *validator.Validate
}

func registerSettingsAPI(g, admin *echo.Group, s *Server) {
	api := settingsApi{
		svc:      s.deps.SettingsSvc,
		authSvc:  s.deps.AuthSvc,
		validate: s.deps.Validate,
	}

	g.GET("/settings", api.retrieve)

	admin.GET("/settings", api.retrieve)
	admin.PUT("/settings", api.update)
	admin.POST("/login-attempts/clear", api.clearLoginAttempts)
}

// Handlers

func (api *settingsApi) retrieve(ctx echo.Context) error {
	s, err := api.svc.Get(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *settingsApi) update(ctx echo.Context) error {
	var data settings.UpdateSettings
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSettings")
	}
	s, err := api.svc.Update(ctx.Request().Context(), api.validate, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *settingsApi) clearLoginAttempts(ctx echo.Context) error {
	var data ClearAttemptsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ClearAttemptsRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	if err := api.authSvc.ClearAttempts(ctx.Request().Context(), data.Email); err != nil {
		return errors.Wrap(err, "clearing login attempts")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Login attempts cleared"})
}
