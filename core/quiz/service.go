package quiz

import (
	"context"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/atomcode/atomq/core"
	"github.com/atomcode/atomq/core/question"
	"github.com/atomcode/atomq/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("Quiz not found")
	ErrNotPublished       = errors.New("Quiz is not available")
	ErrNotEnrolled        = errors.New("You are not enrolled in this quiz")
	ErrEnrollmentNotFound = errors.New("Enrollment not found")
	ErrAttemptNotFound    = errors.New("Attempt not found")
	ErrAlreadySubmitted   = errors.New("Attempt already submitted")
)

const defaultQuestionPoints = 1.0

type (
	Repository interface {
		CreateQuiz(ctx context.Context, q Quiz, exec ...core.DBExecutor) (Quiz, error)
		GetQuizByID(ctx context.Context, id string, exec ...core.DBExecutor) (Quiz, error)
		GetQuizDetail(ctx context.Context, id string, exec ...core.DBExecutor) (Detail, error)
		// QueryQuizzes lists quizzes newest first. A non-empty enrolledUserID keeps
		// only the quizzes that user is enrolled in, a non-empty status filters on it.
		QueryQuizzes(ctx context.Context, enrolledUserID, status string, exec ...core.DBExecutor) ([]Detail, error)
		UpdateQuiz(ctx context.Context, q Quiz, exec ...core.DBExecutor) (Quiz, error)
		DeleteQuiz(ctx context.Context, id string, exec ...core.DBExecutor) error

		// AddQuestion links a question; created is false when it was already linked.
		AddQuestion(ctx context.Context, qq QuizQuestion, exec ...core.DBExecutor) (created bool, err error)
		MaxQuestionOrder(ctx context.Context, quizID string, exec ...core.DBExecutor) (int, error)
		QueryQuestions(ctx context.Context, quizID string, exec ...core.DBExecutor) ([]QuizQuestion, error)

		// Enroll inserts e unless the user is already enrolled; created is false in that case.
		Enroll(ctx context.Context, e Enrollment, exec ...core.DBExecutor) (created bool, err error)
		Unenroll(ctx context.Context, quizID, userID string, exec ...core.DBExecutor) error
		IsEnrolled(ctx context.Context, quizID, userID string, exec ...core.DBExecutor) (bool, error)
		QueryEnrollments(ctx context.Context, quizID string, exec ...core.DBExecutor) ([]Enrollment, error)

		CreateAttempt(ctx context.Context, a Attempt, exec ...core.DBExecutor) (Attempt, error)
		GetAttemptByID(ctx context.Context, id string, exec ...core.DBExecutor) (Attempt, error)
		// GetInProgressAttempt returns the latest unsubmitted attempt, or ErrAttemptNotFound.
		GetInProgressAttempt(ctx context.Context, quizID, userID string, exec ...core.DBExecutor) (Attempt, error)
		// SubmitAttempt closes an in-progress attempt with its score, or returns ErrAlreadySubmitted.
		SubmitAttempt(ctx context.Context, a Attempt, exec ...core.DBExecutor) error
		CreateAttemptAnswers(ctx context.Context, answers []AttemptAnswer, exec ...core.DBExecutor) error
		QueryAttemptAnswers(ctx context.Context, attemptID string, exec ...core.DBExecutor) ([]AttemptAnswer, error)
	}

	Service struct {
		db        core.DB
		repo      Repository
		questions *question.Service
		users     *user.Service
		mailSvc   core.EmailService
		now       func() time.Time
	}
)

func NewService(db core.DB, repo Repository, questions *question.Service, users *user.Service, mailSvc core.EmailService) *Service {
	return &Service{
		db:        db,
		repo:      repo,
		questions: questions,
		users:     users,
		mailSvc:   mailSvc,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (svc *Service) List(ctx context.Context) ([]Detail, error) {
	return svc.repo.QueryQuizzes(ctx, "", "")
}

func (svc *Service) Get(ctx context.Context, id string) (Detail, error) {
	return svc.repo.GetQuizDetail(ctx, id)
}

func (svc *Service) Create(ctx context.Context, validate *validator.Validate, creatorID string, nq NewQuiz) (Detail, error) {
	nq.Clean()
	if err := validate.Struct(nq); err != nil {
		return Detail{}, err
	}
	now := svc.now()
	q, err := svc.repo.CreateQuiz(ctx, Quiz{
		Title:              nq.Title,
		Description:        null.NewString(nq.Description, nq.Description != ""),
		TimeLimit:          nq.TimeLimit,
		Difficulty:         nq.Difficulty,
		Status:             nq.Status,
		ShowAnswers:        nq.ShowAnswers,
		CheckAnswerEnabled: nq.CheckAnswerEnabled,
		CreatorID:          creatorID,
		CreatedAt:          now,
		UpdatedAt:          now,
	})
	if err != nil {
		return Detail{}, errors.Wrap(err, "creating quiz")
	}
	return svc.repo.GetQuizDetail(ctx, q.ID)
}

func (svc *Service) Update(ctx context.Context, validate *validator.Validate, id string, uq UpdateQuiz) (Detail, error) {
	uq.Clean()
	if err := validate.Struct(uq); err != nil {
		return Detail{}, err
	}
	q, err := svc.repo.GetQuizByID(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	q = uq.apply(q)
	q.UpdatedAt = svc.now()
	if _, err := svc.repo.UpdateQuiz(ctx, q); err != nil {
		return Detail{}, errors.Wrap(err, "updating quiz")
	}
	return svc.repo.GetQuizDetail(ctx, q.ID)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	if _, err := svc.repo.GetQuizByID(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteQuiz(ctx, id)
}

func (svc *Service) Questions(ctx context.Context, quizID string) ([]QuizQuestion, error) {
	if _, err := svc.repo.GetQuizByID(ctx, quizID); err != nil {
		return nil, err
	}
	return svc.repo.QueryQuestions(ctx, quizID)
}

// AddQuestions links existing questions to the quiz. Already linked questions are skipped.
func (svc *Service) AddQuestions(ctx context.Context, validate *validator.Validate, quizID string, nqq NewQuizQuestions) ([]QuizQuestion, error) {
	if err := validate.Struct(nqq); err != nil {
		return nil, err
	}
	if _, err := svc.repo.GetQuizByID(ctx, quizID); err != nil {
		return nil, err
	}

	ids := make([]string, len(nqq.Questions))
	for i, nq := range nqq.Questions {
		ids[i] = nq.QuestionID
	}
	found, err := svc.questions.GetManyByID(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "finding questions")
	}
	known := make(map[string]bool, len(found))
	for _, q := range found {
		known[q.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			return nil, core.NewValidationError(question.ErrNotFound, core.FieldError{Field: "questionId", Error: question.ErrNotFound.Error() + ": " + id})
		}
	}

	err = core.InTx(ctx, svc.db, func(tx core.DBTransactor) error {
		order, err := svc.repo.MaxQuestionOrder(ctx, quizID, tx)
		if err != nil {
			return errors.Wrap(err, "finding question order")
		}
		for _, nq := range nqq.Questions {
			points := defaultQuestionPoints
			if nq.Points != nil {
				points = *nq.Points
			}
			created, err := svc.repo.AddQuestion(ctx, QuizQuestion{
				QuizID:     quizID,
				QuestionID: nq.QuestionID,
				Order:      order + 1,
				Points:     points,
			}, tx)
			if err != nil {
				return errors.Wrap(err, "linking question")
			}
			if created {
				order++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryQuestions(ctx, quizID)
}

func (svc *Service) Enrollments(ctx context.Context, quizID string) ([]Enrollment, error) {
	if _, err := svc.repo.GetQuizByID(ctx, quizID); err != nil {
		return nil, err
	}
	return svc.repo.QueryEnrollments(ctx, quizID)
}

// Enroll enrolls users in the quiz and notifies the newly enrolled ones by email.
func (svc *Service) Enroll(ctx context.Context, validate *validator.Validate, quizID string, ne NewEnrollments) ([]Enrollment, error) {
	if err := validate.Struct(ne); err != nil {
		return nil, err
	}
	q, err := svc.repo.GetQuizByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	users, err := svc.users.GetManyByID(ctx, ne.UserIDs)
	if err != nil {
		return nil, errors.Wrap(err, "finding users")
	}
	if len(users) == 0 {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "userIds", Error: "no matching users"})
	}

	var enrolled []user.User
	err = core.InTx(ctx, svc.db, func(tx core.DBTransactor) error {
		for _, usr := range users {
			created, err := svc.repo.Enroll(ctx, Enrollment{QuizID: q.ID, UserID: usr.ID, EnrolledAt: svc.now()}, tx)
			if err != nil {
				return errors.Wrap(err, "enrolling user")
			}
			if created {
				enrolled = append(enrolled, usr)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(enrolled) > 0 {
		messages := make([]*core.EmailMessage, len(enrolled))
		for i, usr := range enrolled {
			messages[i] = &core.EmailMessage{
				To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
				Subject:      "You have been enrolled in " + q.Title,
				TemplateName: "quiz_enrollment",
				TemplateData: map[string]string{"Name": usr.Name, "QuizTitle": q.Title, "QuizID": q.ID},
			}
		}
		svc.mailSvc.SendMessages(messages...)
	}
	return svc.repo.QueryEnrollments(ctx, q.ID)
}

func (svc *Service) Unenroll(ctx context.Context, quizID, userID string) error {
	return svc.repo.Unenroll(ctx, quizID, userID)
}

// AvailableStudents lists active students not yet enrolled in filter.QuizID.
func (svc *Service) AvailableStudents(ctx context.Context, filter AvailableFilter) ([]user.User, error) {
	uf := user.QueryFilter{Search: filter.Search, Campus: filter.Campus, Role: user.RoleUser, IsActive: boolPtr(true)}
	if filter.QuizID != "" {
		enrollments, err := svc.Enrollments(ctx, filter.QuizID)
		if err != nil {
			return nil, err
		}
		for _, e := range enrollments {
			uf.ExcludeIDs = append(uf.ExcludeIDs, e.UserID)
		}
	}
	return svc.users.Filter(ctx, uf)
}

// UserQuizzes lists the published quizzes the user is enrolled in.
func (svc *Service) UserQuizzes(ctx context.Context, userID string) ([]Detail, error) {
	return svc.repo.QueryQuizzes(ctx, userID, StatusPublished)
}

// Attempt resumes the user's in-progress attempt or starts a new one.
func (svc *Service) Attempt(ctx context.Context, quizID, userID string) (AttemptView, error) {
	q, err := svc.playableQuiz(ctx, quizID, userID)
	if err != nil {
		return AttemptView{}, err
	}

	att, err := svc.repo.GetInProgressAttempt(ctx, q.ID, userID)
	switch errors.Cause(err) {
	case nil:
	case ErrAttemptNotFound:
		att, err = svc.repo.CreateAttempt(ctx, Attempt{
			QuizID:    q.ID,
			UserID:    userID,
			Status:    AttemptInProgress,
			StartedAt: svc.now(),
		})
		if err != nil {
			return AttemptView{}, errors.Wrap(err, "creating attempt")
		}
	default:
		return AttemptView{}, errors.Wrap(err, "finding attempt")
	}

	qqs, err := svc.repo.QueryQuestions(ctx, q.ID)
	if err != nil {
		return AttemptView{}, errors.Wrap(err, "loading questions")
	}
	for i := range qqs {
		qqs[i].Question = qqs[i].Question.Public()
	}
	answers, err := svc.repo.QueryAttemptAnswers(ctx, att.ID)
	if err != nil {
		return AttemptView{}, errors.Wrap(err, "loading answers")
	}
	answerMap := make(map[string]string, len(answers))
	for _, a := range answers {
		answerMap[a.QuestionID] = a.UserAnswer
	}

	return AttemptView{
		Quiz:          q,
		Questions:     qqs,
		AttemptID:     att.ID,
		TimeRemaining: timeRemaining(q, att, svc.now()),
		StartedAt:     att.StartedAt,
		Answers:       answerMap,
	}, nil
}

func timeRemaining(q Quiz, att Attempt, now time.Time) *int {
	if q.TimeLimit <= 0 {
		return nil
	}
	left := int((time.Duration(q.TimeLimit)*time.Minute - now.Sub(att.StartedAt)).Seconds())
	if left < 0 {
		left = 0
	}
	return &left
}

func (svc *Service) playableQuiz(ctx context.Context, quizID, userID string) (Quiz, error) {
	q, err := svc.repo.GetQuizByID(ctx, quizID)
	if err != nil {
		return Quiz{}, err
	}
	enrolled, err := svc.repo.IsEnrolled(ctx, q.ID, userID)
	if err != nil {
		return Quiz{}, errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return Quiz{}, ErrNotEnrolled
	}
	if !q.IsPublished() {
		return Quiz{}, core.NewValidationError(ErrNotPublished)
	}
	return q, nil
}

// Submit grades every question of the quiz against sub and closes the attempt.
func (svc *Service) Submit(ctx context.Context, validate *validator.Validate, quizID, userID string, sub Submission) (Result, error) {
	if err := validate.Struct(sub); err != nil {
		return Result{}, err
	}
	q, err := svc.playableQuiz(ctx, quizID, userID)
	if err != nil {
		return Result{}, err
	}
	qqs, err := svc.repo.QueryQuestions(ctx, q.ID)
	if err != nil {
		return Result{}, errors.Wrap(err, "loading questions")
	}

	var res Result
	err = core.InTx(ctx, svc.db, func(tx core.DBTransactor) error {
		att, err := svc.repo.GetAttemptByID(ctx, sub.AttemptID, tx)
		if err != nil {
			return err
		}
		if att.QuizID != q.ID || att.UserID != userID {
			return ErrAttemptNotFound
		}
		if att.IsSubmitted() {
			return core.NewValidationError(ErrAlreadySubmitted)
		}

		answers := grade(att.ID, qqs, sub.Answers)
		att.Score, att.TotalPoints = 0, 0
		for i, qq := range qqs {
			att.TotalPoints += qq.Points
			att.Score += answers[i].PointsEarned
		}
		att.Status = AttemptSubmitted
		att.SubmittedAt = null.TimeFrom(svc.now())

		// closing first makes a concurrent submit of the same attempt lose here
		// instead of on the answers' unique index
		if err := svc.repo.SubmitAttempt(ctx, att, tx); err != nil {
			if errors.Cause(err) == ErrAlreadySubmitted {
				return core.NewValidationError(ErrAlreadySubmitted)
			}
			return errors.Wrap(err, "closing attempt")
		}
		if err := svc.repo.CreateAttemptAnswers(ctx, answers, tx); err != nil {
			return errors.Wrap(err, "storing answers")
		}
		res = Result{Attempt: att, Answers: answers}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if q.ShowAnswers {
		res.Questions = qqs
	}
	return res, nil
}

// grade returns one answer per quiz question, unanswered ones scoring 0.
func grade(attemptID string, qqs []QuizQuestion, submitted map[string]AnswerValue) []AttemptAnswer {
	answers := make([]AttemptAnswer, len(qqs))
	for i, qq := range qqs {
		ans := AttemptAnswer{AttemptID: attemptID, QuestionID: qq.QuestionID}
		if val, ok := submitted[qq.QuestionID]; ok {
			ans.UserAnswer = string(val)
			ans.IsCorrect = qq.Question.CheckAnswer(ans.UserAnswer)
		}
		if ans.IsCorrect {
			ans.PointsEarned = qq.Points
		}
		answers[i] = ans
	}
	return answers
}

func boolPtr(b bool) *bool {
	return &b
}
