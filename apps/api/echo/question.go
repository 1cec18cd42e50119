package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/atomcode/atomq/core/question"
)

type questionApi struct {
	svc      *question.Service
	validate *validator.Validate
}

func registerQuestionAPI(g *echo.Group, authed echo.MiddlewareFunc, admin *echo.Group, s *Server) {
	api := questionApi{
		svc:      s.deps.QuestionSvc,
		validate: s.deps.Validate,
	}

	gg := admin.Group("/question-groups")
	gg.GET("", api.queryGroups)
	gg.POST("", api.createGroup)
	gg.GET("/:id/reported-questions", api.queryReports)
	gg.PATCH("/:id/reported-questions", api.updateReport)

	g.POST("/user/questions/:id/report", api.report, authed)
}

// Handlers

func (api *questionApi) queryGroups(ctx echo.Context) error {
	groups, err := api.svc.Groups(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing question groups")
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *questionApi) createGroup(ctx echo.Context) error {
	var data question.NewGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	grp, err := api.svc.CreateGroup(ctx.Request().Context(), api.validate, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, grp)
}

func (api *questionApi) queryReports(ctx echo.Context) error {
	reports, err := api.svc.GroupReports(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, reports)
}

func (api *questionApi) updateReport(ctx echo.Context) error {
	var data question.UpdateReport
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateReport")
	}
	rep, err := api.svc.UpdateReport(ctx.Request().Context(), api.validate, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *questionApi) report(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data question.NewReport
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewReport")
	}
	rep, err := api.svc.Report(ctx.Request().Context(), api.validate, ctx.Param("id"), claims.Subject, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, rep)
}
