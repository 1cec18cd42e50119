package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/atomcode/atomq/core"
	"github.com/atomcode/atomq/core/quiz"
)

const quizColumns = `id, title, description, time_limit, difficulty, status, show_answers, check_answer_enabled, creator_id, created_at, updated_at`

const quizDetailQuery = `SELECT z.id, z.title, z.description, z.time_limit, z.difficulty, z.status, z.show_answers,
	z.check_answer_enabled, z.creator_id, z.created_at, z.updated_at,
	u.id AS "creator.id", u.name AS "creator.name", u.email AS "creator.email",
	(SELECT COUNT(*) FROM quiz_questions qq WHERE qq.quiz_id = z.id) AS "_count.questions",
	(SELECT COUNT(*) FROM quiz_users qu WHERE qu.quiz_id = z.id) AS "_count.users",
	(SELECT COUNT(*) FROM quiz_attempts qa WHERE qa.quiz_id = z.id) AS "_count.attempts"
	FROM quizzes z
	JOIN users u ON u.id = z.creator_id`

const attemptColumns = `id, quiz_id, user_id, status, score, total_points, started_at, submitted_at`

type quizRepository struct {
	repo
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(exec core.DBExecutor) *quizRepository {
	return &quizRepository{repo{exec: exec}}
}

func (r quizRepository) CreateQuiz(ctx context.Context, q quiz.Quiz, exec ...core.DBExecutor) (quiz.Quiz, error) {
	q.ID = uuid.NewString()
	_, err := execute(ctx, r.getExec(exec),
		`INSERT INTO quizzes (`+quizColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.Title, q.Description, q.TimeLimit, q.Difficulty, q.Status, q.ShowAnswers, q.CheckAnswerEnabled,
		q.CreatorID, q.CreatedAt.UTC(), q.UpdatedAt.UTC(),
	)
	if err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "inserting quiz")
	}
	return q, nil
}

func (r quizRepository) GetQuizByID(ctx context.Context, id string, exec ...core.DBExecutor) (quiz.Quiz, error) {
	var q quiz.Quiz
	err := get(ctx, r.getExec(exec), &q, `SELECT `+quizColumns+` FROM quizzes WHERE id = ?`, id)
	if err != nil {
		return quiz.Quiz{}, trapNoRowsErr(err, quiz.ErrNotFound, "selecting quiz by id")
	}
	return q, nil
}

func (r quizRepository) GetQuizDetail(ctx context.Context, id string, exec ...core.DBExecutor) (quiz.Detail, error) {
	var d quiz.Detail
	err := get(ctx, r.getExec(exec), &d, quizDetailQuery+` WHERE z.id = ?`, id)
	if err != nil {
		return quiz.Detail{}, trapNoRowsErr(err, quiz.ErrNotFound, "selecting quiz detail")
	}
	return d, nil
}

func (r quizRepository) QueryQuizzes(ctx context.Context, enrolledUserID, status string, exec ...core.DBExecutor) ([]quiz.Detail, error) {
	var (
		conds []string
		args  []interface{}
	)
	if enrolledUserID != "" {
		conds = append(conds, `EXISTS (SELECT 1 FROM quiz_users e WHERE e.quiz_id = z.id AND e.user_id = ?)`)
		args = append(args, enrolledUserID)
	}
	if status != "" {
		conds = append(conds, `z.status = ?`)
		args = append(args, status)
	}

	quizzes := make([]quiz.Detail, 0)
	q := quizDetailQuery + whereClause(conds) + ` ORDER BY z.created_at DESC`
	if err := selectAll(ctx, r.getExec(exec), &quizzes, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying quizzes")
	}
	return quizzes, nil
}

func (r quizRepository) UpdateQuiz(ctx context.Context, q quiz.Quiz, exec ...core.DBExecutor) (quiz.Quiz, error) {
	res, err := execute(ctx, r.getExec(exec),
		`UPDATE quizzes SET title = ?, description = ?, time_limit = ?, difficulty = ?, status = ?, show_answers = ?,
		check_answer_enabled = ?, updated_at = ? WHERE id = ?`,
		q.Title, q.Description, q.TimeLimit, q.Difficulty, q.Status, q.ShowAnswers, q.CheckAnswerEnabled,
		q.UpdatedAt.UTC(), q.ID,
	)
	if err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "updating quiz")
	}
	if err = mustAffect(res, quiz.ErrNotFound); err != nil {
		return quiz.Quiz{}, err
	}
	return q, nil
}

func (r quizRepository) DeleteQuiz(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := execute(ctx, r.getExec(exec), `DELETE FROM quizzes WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	return mustAffect(res, quiz.ErrNotFound)
}

func (r quizRepository) AddQuestion(ctx context.Context, qq quiz.QuizQuestion, exec ...core.DBExecutor) (bool, error) {
	created, err := insertIgnore(ctx, r.getExec(exec),
		`INSERT INTO quiz_questions (id, quiz_id, question_id, position, points) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (quiz_id, question_id) DO NOTHING`,
		uuid.NewString(), qq.QuizID, qq.QuestionID, qq.Order, qq.Points,
	)
	return created, errors.Wrap(err, "inserting quiz question")
}

func (r quizRepository) MaxQuestionOrder(ctx context.Context, quizID string, exec ...core.DBExecutor) (int, error) {
	var last int
	err := get(ctx, r.getExec(exec), &last, `SELECT COALESCE(MAX(position), 0) FROM quiz_questions WHERE quiz_id = ?`, quizID)
	return last, errors.Wrap(err, "selecting max question order")
}

func (r quizRepository) QueryQuestions(ctx context.Context, quizID string, exec ...core.DBExecutor) ([]quiz.QuizQuestion, error) {
	qqs := make([]quiz.QuizQuestion, 0)
	err := selectAll(ctx, r.getExec(exec), &qqs,
		`SELECT qq.id, qq.quiz_id, qq.question_id, qq.position, qq.points, `+questionColumnsAs("q")+`
		FROM quiz_questions qq
		JOIN questions q ON q.id = qq.question_id
		WHERE qq.quiz_id = ?
		ORDER BY qq.position`, quizID)
	if err != nil {
		return nil, errors.Wrap(err, "querying quiz questions")
	}
	return qqs, nil
}

func (r quizRepository) Enroll(ctx context.Context, e quiz.Enrollment, exec ...core.DBExecutor) (bool, error) {
	created, err := insertIgnore(ctx, r.getExec(exec),
		`INSERT INTO quiz_users (id, quiz_id, user_id, enrolled_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (quiz_id, user_id) DO NOTHING`,
		uuid.NewString(), e.QuizID, e.UserID, e.EnrolledAt.UTC(),
	)
	return created, errors.Wrap(err, "inserting enrollment")
}

func (r quizRepository) Unenroll(ctx context.Context, quizID, userID string, exec ...core.DBExecutor) error {
	res, err := execute(ctx, r.getExec(exec), `DELETE FROM quiz_users WHERE quiz_id = ? AND user_id = ?`, quizID, userID)
	if err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	return mustAffect(res, quiz.ErrEnrollmentNotFound)
}

func (r quizRepository) IsEnrolled(ctx context.Context, quizID, userID string, exec ...core.DBExecutor) (bool, error) {
	var n int
	err := get(ctx, r.getExec(exec), &n, `SELECT COUNT(*) FROM quiz_users WHERE quiz_id = ? AND user_id = ?`, quizID, userID)
	if err != nil {
		return false, errors.Wrap(err, "checking enrollment")
	}
	return n > 0, nil
}

func (r quizRepository) QueryEnrollments(ctx context.Context, quizID string, exec ...core.DBExecutor) ([]quiz.Enrollment, error) {
	enrollments := make([]quiz.Enrollment, 0)
	err := selectAll(ctx, r.getExec(exec), &enrollments,
		`SELECT e.id, e.quiz_id, e.user_id, e.enrolled_at, `+userSummaryAs("u", "user")+`
		FROM quiz_users e
		JOIN users u ON u.id = e.user_id
		WHERE e.quiz_id = ?
		ORDER BY u.name`, quizID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	return enrollments, nil
}

func (r quizRepository) CreateAttempt(ctx context.Context, a quiz.Attempt, exec ...core.DBExecutor) (quiz.Attempt, error) {
	a.ID = uuid.NewString()
	_, err := execute(ctx, r.getExec(exec),
		`INSERT INTO quiz_attempts (`+attemptColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.QuizID, a.UserID, a.Status, a.Score, a.TotalPoints, a.StartedAt.UTC(), a.SubmittedAt,
	)
	if err != nil {
		return quiz.Attempt{}, errors.Wrap(err, "inserting attempt")
	}
	return a, nil
}

func (r quizRepository) GetAttemptByID(ctx context.Context, id string, exec ...core.DBExecutor) (quiz.Attempt, error) {
	var a quiz.Attempt
	err := get(ctx, r.getExec(exec), &a, `SELECT `+attemptColumns+` FROM quiz_attempts WHERE id = ?`, id)
	if err != nil {
		return quiz.Attempt{}, trapNoRowsErr(err, quiz.ErrAttemptNotFound, "selecting attempt")
	}
	return a, nil
}

func (r quizRepository) GetInProgressAttempt(ctx context.Context, quizID, userID string, exec ...core.DBExecutor) (quiz.Attempt, error) {
	var a quiz.Attempt
	err := get(ctx, r.getExec(exec), &a,
		`SELECT `+attemptColumns+` FROM quiz_attempts
		WHERE quiz_id = ? AND user_id = ? AND status = ?
		ORDER BY started_at DESC LIMIT 1`, quizID, userID, quiz.AttemptInProgress)
	if err != nil {
		return quiz.Attempt{}, trapNoRowsErr(err, quiz.ErrAttemptNotFound, "selecting attempt in progress")
	}
	return a, nil
}

func (r quizRepository) SubmitAttempt(ctx context.Context, a quiz.Attempt, exec ...core.DBExecutor) error {
	res, err := execute(ctx, r.getExec(exec),
		`UPDATE quiz_attempts SET status = ?, score = ?, total_points = ?, submitted_at = ?
		WHERE id = ? AND status = ?`,
		quiz.AttemptSubmitted, a.Score, a.TotalPoints, a.SubmittedAt, a.ID, quiz.AttemptInProgress,
	)
	if err != nil {
		return errors.Wrap(err, "submitting attempt")
	}
	return mustAffect(res, quiz.ErrAlreadySubmitted)
}

func (r quizRepository) CreateAttemptAnswers(ctx context.Context, answers []quiz.AttemptAnswer, exec ...core.DBExecutor) error {
	ex := r.getExec(exec)
	for i := range answers {
		answers[i].ID = uuid.NewString()
		a := answers[i]
		_, err := execute(ctx, ex,
			`INSERT INTO quiz_answers (id, attempt_id, question_id, user_answer, is_correct, points_earned)
			VALUES (?, ?, ?, ?, ?, ?)`,
			a.ID, a.AttemptID, a.QuestionID, a.UserAnswer, a.IsCorrect, a.PointsEarned,
		)
		if err != nil {
			return errors.Wrap(err, "inserting attempt answer")
		}
	}
	return nil
}

func (r quizRepository) QueryAttemptAnswers(ctx context.Context, attemptID string, exec ...core.DBExecutor) ([]quiz.AttemptAnswer, error) {
	answers := make([]quiz.AttemptAnswer, 0)
	err := selectAll(ctx, r.getExec(exec), &answers,
		`SELECT id, attempt_id, question_id, user_answer, is_correct, points_earned FROM quiz_answers WHERE attempt_id = ?`, attemptID)
	if err != nil {
		return nil, errors.Wrap(err, "querying attempt answers")
	}
	return answers, nil
}
