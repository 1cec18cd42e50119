package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/atomcode/atomq/core/activity"
)

type JoinRequest struct {
	AccessKey string `json:"accessKey"`
}

type activityApi struct {
	svc      *activity.Service
	metrics  *metrics
	validate *validator.Validate
}

func registerActivityAPI(g *echo.Group, authed echo.MiddlewareFunc, admin *echo.Group, s *Server) {
	api := activityApi{
		svc:      s.deps.ActivitySvc,
		metrics:  s.metrics,
		validate: s.deps.Validate,
	}

	// admin endpoints
	ag := admin.Group("/activities")
	ag.GET("", api.query)
	ag.POST("", api.create)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update)
	ag.DELETE("/:id", api.destroy)
	ag.GET("/:id/questions", api.queryQuestions)
	ag.POST("/:id/questions", api.addQuestion)

	// player endpoints
	ug := g.Group("/user/activities", authed)
	ug.GET("", api.query)
	ug.POST("", api.join)

	pg := g.Group("/activity/:key")
	pg.GET("/session", api.session, authed)
	pg.POST("/session", api.play, authed)
	// public, for display screens
	pg.GET("/leaderboard", api.leaderboard)
	pg.GET("/participants", api.participants)
}

// Admin handlers

func (api *activityApi) query(ctx echo.Context) error {
	var filter activity.QueryFilter
	if err := (&echo.DefaultBinder{}).BindQueryParams(ctx, &filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	activities, err := api.svc.List(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing activities")
	}
	return ctx.JSON(http.StatusOK, activities)
}

func (api *activityApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data activity.NewActivity
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewActivity")
	}
	a, err := api.svc.Create(ctx.Request().Context(), api.validate, claims.Subject, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *activityApi) retrieve(ctx echo.Context) error {
	a, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *activityApi) update(ctx echo.Context) error {
	var data activity.UpdateActivity
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateActivity")
	}
	a, err := api.svc.Update(ctx.Request().Context(), api.validate, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *activityApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Activity deleted successfully"})
}

func (api *activityApi) queryQuestions(ctx echo.Context) error {
	aqs, err := api.svc.Questions(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, aqs)
}

func (api *activityApi) addQuestion(ctx echo.Context) error {
	var data activity.NewActivityQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewActivityQuestion")
	}
	aq, err := api.svc.AddQuestion(ctx.Request().Context(), api.validate, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, aq)
}

// Player handlers

func (api *activityApi) join(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data JoinRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to JoinRequest")
	}
	a, err := api.svc.Join(ctx.Request().Context(), data.AccessKey, claims.Subject)
	if err != nil {
		return err
	}
	api.metrics.joins.Inc()
	return ctx.JSON(http.StatusOK, a)
}

func (api *activityApi) session(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	s, err := api.svc.Session(ctx.Request().Context(), ctx.Param("key"), claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *activityApi) play(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data activity.SessionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SessionRequest")
	}
	res, err := api.svc.Play(ctx.Request().Context(), api.validate, ctx.Param("key"), claims.Subject, data)
	if err != nil {
		return err
	}
	if ans, ok := res.(activity.Answer); ok {
		api.metrics.answers.WithLabelValues(strconv.FormatBool(ans.IsCorrect)).Inc()
		api.metrics.points.Add(float64(ans.PointsEarned))
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *activityApi) leaderboard(ctx echo.Context) error {
	board, err := api.svc.Leaderboard(ctx.Request().Context(), ctx.Param("key"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, board)
}

func (api *activityApi) participants(ctx echo.Context) error {
	participants, err := api.svc.Participants(ctx.Request().Context(), ctx.Param("key"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, participants)
}
