package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/atomcode/atomq/core/quiz"
)

type quizApi struct {
	svc      *quiz.Service
	validate *validator.Validate
}

func registerQuizAPI(g *echo.Group, authed echo.MiddlewareFunc, admin *echo.Group, s *Server) {
	api := quizApi{
		svc:      s.deps.QuizSvc,
		validate: s.deps.Validate,
	}

	// admin endpoints
	ag := admin.Group("/quiz")
	ag.GET("", api.query)
	ag.POST("", api.create)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update)
	ag.DELETE("/:id", api.destroy)
	ag.GET("/:id/questions", api.queryQuestions)
	ag.POST("/:id/questions", api.addQuestions)
	ag.GET("/:id/users", api.queryEnrollments)
	ag.POST("/:id/users", api.enroll)
	ag.DELETE("/:id/users/:userId", api.unenroll)
	admin.GET("/students/available", api.availableStudents)

	// student endpoints
	ug := g.Group("/user/quiz", authed)
	ug.GET("", api.userQuizzes)
	ug.GET("/:id/attempt", api.attempt)
	ug.POST("/:id/submit", api.submit)
}

// Admin handlers

func (api *quizApi) query(ctx echo.Context) error {
	quizzes, err := api.svc.List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing quizzes")
	}
	return ctx.JSON(http.StatusOK, quizzes)
}

func (api *quizApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data quiz.NewQuiz
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuiz")
	}
	q, err := api.svc.Create(ctx.Request().Context(), api.validate, claims.Subject, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *quizApi) retrieve(ctx echo.Context) error {
	q, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *quizApi) update(ctx echo.Context) error {
	var data quiz.UpdateQuiz
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuiz")
	}
	q, err := api.svc.Update(ctx.Request().Context(), api.validate, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *quizApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Quiz deleted successfully"})
}

func (api *quizApi) queryQuestions(ctx echo.Context) error {
	qqs, err := api.svc.Questions(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, qqs)
}

func (api *quizApi) addQuestions(ctx echo.Context) error {
	var data quiz.NewQuizQuestions
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuizQuestions")
	}
	qqs, err := api.svc.AddQuestions(ctx.Request().Context(), api.validate, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, qqs)
}

func (api *quizApi) queryEnrollments(ctx echo.Context) error {
	enrollments, err := api.svc.Enrollments(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

func (api *quizApi) enroll(ctx echo.Context) error {
	var data quiz.NewEnrollments
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollments")
	}
	enrollments, err := api.svc.Enroll(ctx.Request().Context(), api.validate, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

func (api *quizApi) unenroll(ctx echo.Context) error {
	if err := api.svc.Unenroll(ctx.Request().Context(), ctx.Param("id"), ctx.Param("userId")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "User removed from quiz"})
}

func (api *quizApi) availableStudents(ctx echo.Context) error {
	var filter quiz.AvailableFilter
	if err := (&echo.DefaultBinder{}).BindQueryParams(ctx, &filter); err != nil {
		return errors.Wrap(err, "binding to AvailableFilter")
	}
	users, err := api.svc.AvailableStudents(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, users)
}

// Student handlers

func (api *quizApi) userQuizzes(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	quizzes, err := api.svc.UserQuizzes(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "listing user quizzes")
	}
	return ctx.JSON(http.StatusOK, quizzes)
}

func (api *quizApi) attempt(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	view, err := api.svc.Attempt(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *quizApi) submit(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data quiz.Submission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Submission")
	}
	res, err := api.svc.Submit(ctx.Request().Context(), api.validate, ctx.Param("id"), claims.Subject, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}
