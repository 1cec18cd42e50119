package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/atomcode/atomq/core"
	"github.com/atomcode/atomq/core/activity"
	"github.com/atomcode/atomq/core/question"
)

const activityColumns = `id, title, description, access_key, status, start_time, end_time, creator_id, created_at, updated_at`

const activityDetailQuery = `SELECT a.id, a.title, a.description, a.access_key, a.status, a.start_time, a.end_time,
	a.creator_id, a.created_at, a.updated_at, ` + `u.id AS "creator.id", u.name AS "creator.name", u.email AS "creator.email",
	(SELECT COUNT(*) FROM activity_questions aq WHERE aq.activity_id = a.id) AS "_count.questions",
	(SELECT COUNT(*) FROM activity_participants ap WHERE ap.activity_id = a.id) AS "_count.participants",
	(SELECT COUNT(*) FROM activity_sessions s WHERE s.activity_id = a.id) AS "_count.sessions"
	FROM activities a
	JOIN users u ON u.id = a.creator_id`

const participantQuery = `SELECT p.id, p.activity_id, p.user_id, p.score, p.joined_at, ` + `u.id AS "user.id", u.name AS "user.name", u.email AS "user.email", u.avatar AS "user.avatar"
	FROM activity_participants p
	JOIN users u ON u.id = p.user_id`

const sessionColumns = `id, activity_id, user_id, status, current_question, start_time, created_at, updated_at`

type activityRepository struct {
	repo
}

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(exec core.DBExecutor) *activityRepository {
	return &activityRepository{repo{exec: exec}}
}

func (r activityRepository) CreateActivity(ctx context.Context, a activity.Activity, exec ...core.DBExecutor) (activity.Activity, error) {
	a.ID = uuid.NewString()
	_, err := execute(ctx, r.getExec(exec),
		`INSERT INTO activities (`+activityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Title, a.Description, a.AccessKey, a.Status, a.StartTime, a.EndTime, a.CreatorID,
		a.CreatedAt.UTC(), a.UpdatedAt.UTC(),
	)
	if err != nil {
		return activity.Activity{}, errors.Wrap(err, "inserting activity")
	}
	return a, nil
}

func (r activityRepository) GetActivityByID(ctx context.Context, id string, exec ...core.DBExecutor) (activity.Activity, error) {
	var a activity.Activity
	err := get(ctx, r.getExec(exec), &a, `SELECT `+activityColumns+` FROM activities WHERE id = ?`, id)
	if err != nil {
		return activity.Activity{}, trapNoRowsErr(err, activity.ErrNotFound, "selecting activity by id")
	}
	return a, nil
}

func (r activityRepository) GetActivityByKey(ctx context.Context, key string, exec ...core.DBExecutor) (activity.Activity, error) {
	var a activity.Activity
	err := get(ctx, r.getExec(exec), &a, `SELECT `+activityColumns+` FROM activities WHERE access_key = ?`, key)
	if err != nil {
		return activity.Activity{}, trapNoRowsErr(err, activity.ErrNotFound, "selecting activity by key")
	}
	return a, nil
}

func (r activityRepository) GetActivityDetail(ctx context.Context, id string, exec ...core.DBExecutor) (activity.Detail, error) {
	var d activity.Detail
	err := get(ctx, r.getExec(exec), &d, activityDetailQuery+` WHERE a.id = ?`, id)
	if err != nil {
		return activity.Detail{}, trapNoRowsErr(err, activity.ErrNotFound, "selecting activity detail")
	}
	return d, nil
}

func (r activityRepository) QueryActivities(ctx context.Context, filter activity.QueryFilter, exec ...core.DBExecutor) ([]activity.Detail, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Status != "" {
		conds = append(conds, `a.status = ?`)
		args = append(args, filter.Status)
	}

	activities := make([]activity.Detail, 0)
	q := activityDetailQuery + whereClause(conds) + ` ORDER BY a.created_at DESC`
	if err := selectAll(ctx, r.getExec(exec), &activities, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying activities")
	}
	return activities, nil
}

func (r activityRepository) UpdateActivity(ctx context.Context, a activity.Activity, exec ...core.DBExecutor) (activity.Activity, error) {
	res, err := execute(ctx, r.getExec(exec),
		`UPDATE activities SET title = ?, description = ?, access_key = ?, status = ?, start_time = ?, end_time = ?,
		updated_at = ? WHERE id = ?`,
		a.Title, a.Description, a.AccessKey, a.Status, a.StartTime, a.EndTime, a.UpdatedAt.UTC(), a.ID,
	)
	if err != nil {
		return activity.Activity{}, errors.Wrap(err, "updating activity")
	}
	if err = mustAffect(res, activity.ErrNotFound); err != nil {
		return activity.Activity{}, err
	}
	return a, nil
}

func (r activityRepository) DeleteActivity(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := execute(ctx, r.getExec(exec), `DELETE FROM activities WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "deleting activity")
	}
	return mustAffect(res, activity.ErrNotFound)
}

func (r activityRepository) AccessKeyTaken(ctx context.Context, key, excludeID string, exec ...core.DBExecutor) (bool, error) {
	var n int
	err := get(ctx, r.getExec(exec), &n, `SELECT COUNT(*) FROM activities WHERE access_key = ? AND id <> ?`, key, excludeID)
	if err != nil {
		return false, errors.Wrap(err, "checking access key")
	}
	return n > 0, nil
}

func (r activityRepository) AddQuestion(ctx context.Context, aq activity.ActivityQuestion, exec ...core.DBExecutor) (activity.ActivityQuestion, error) {
	aq.ID = uuid.NewString()
	_, err := execute(ctx, r.getExec(exec),
		`INSERT INTO activity_questions (id, activity_id, question_id, position, points) VALUES (?, ?, ?, ?, ?)`,
		aq.ID, aq.ActivityID, aq.QuestionID, aq.Order, aq.Points,
	)
	if err != nil {
		return activity.ActivityQuestion{}, errors.Wrap(err, "inserting activity question")
	}
	return aq, nil
}

func (r activityRepository) MaxQuestionOrder(ctx context.Context, activityID string, exec ...core.DBExecutor) (int, error) {
	var last int
	err := get(ctx, r.getExec(exec), &last, `SELECT COALESCE(MAX(position), 0) FROM activity_questions WHERE activity_id = ?`, activityID)
	return last, errors.Wrap(err, "selecting max question order")
}

const activityQuestionQuery = `SELECT aq.id, aq.activity_id, aq.question_id, aq.position, aq.points, `

func (r activityRepository) QueryQuestions(ctx context.Context, activityID string, exec ...core.DBExecutor) ([]activity.ActivityQuestion, error) {
	aqs := make([]activity.ActivityQuestion, 0)
	err := selectAll(ctx, r.getExec(exec), &aqs,
		activityQuestionQuery+questionColumnsAs("q")+`
		FROM activity_questions aq
		JOIN questions q ON q.id = aq.question_id
		WHERE aq.activity_id = ?
		ORDER BY aq.position, q.created_at`, activityID)
	if err != nil {
		return nil, errors.Wrap(err, "querying activity questions")
	}
	return aqs, nil
}

func (r activityRepository) GetActivityQuestion(ctx context.Context, activityID, questionID string, exec ...core.DBExecutor) (activity.ActivityQuestion, error) {
	var aq activity.ActivityQuestion
	err := get(ctx, r.getExec(exec), &aq,
		activityQuestionQuery+questionColumnsAs("q")+`
		FROM activity_questions aq
		JOIN questions q ON q.id = aq.question_id
		WHERE aq.activity_id = ? AND aq.question_id = ?`, activityID, questionID)
	if err != nil {
		return activity.ActivityQuestion{}, trapNoRowsErr(err, question.ErrNotFound, "selecting activity question")
	}
	return aq, nil
}

func (r activityRepository) AddParticipant(ctx context.Context, p activity.Participant, exec ...core.DBExecutor) (bool, error) {
	created, err := insertIgnore(ctx, r.getExec(exec),
		`INSERT INTO activity_participants (id, activity_id, user_id, score, joined_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (activity_id, user_id) DO NOTHING`,
		uuid.NewString(), p.ActivityID, p.UserID, p.Score, p.JoinedAt.UTC(),
	)
	return created, errors.Wrap(err, "inserting participant")
}

func (r activityRepository) GetParticipant(ctx context.Context, activityID, userID string, exec ...core.DBExecutor) (activity.Participant, error) {
	var p activity.Participant
	err := get(ctx, r.getExec(exec), &p, participantQuery+` WHERE p.activity_id = ? AND p.user_id = ?`, activityID, userID)
	if err != nil {
		return activity.Participant{}, trapNoRowsErr(err, activity.ErrNotParticipant, "selecting participant")
	}
	return p, nil
}

func (r activityRepository) QueryParticipants(ctx context.Context, activityID string, exec ...core.DBExecutor) ([]activity.Participant, error) {
	participants := make([]activity.Participant, 0)
	err := selectAll(ctx, r.getExec(exec), &participants,
		participantQuery+` WHERE p.activity_id = ? ORDER BY p.score DESC, p.joined_at ASC`, activityID)
	if err != nil {
		return nil, errors.Wrap(err, "querying participants")
	}
	return participants, nil
}

func (r activityRepository) IncrementScore(ctx context.Context, participantID string, points int, exec ...core.DBExecutor) error {
	res, err := execute(ctx, r.getExec(exec), `UPDATE activity_participants SET score = score + ? WHERE id = ?`, points, participantID)
	if err != nil {
		return errors.Wrap(err, "incrementing score")
	}
	return mustAffect(res, activity.ErrNotParticipant)
}

func (r activityRepository) GetOrCreateSession(ctx context.Context, s activity.Session, exec ...core.DBExecutor) (activity.Session, error) {
	ex := r.getExec(exec)
	_, err := insertIgnore(ctx, ex,
		`INSERT INTO activity_sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (activity_id, user_id) DO NOTHING`,
		uuid.NewString(), s.ActivityID, s.UserID, s.Status, s.CurrentQuestion, s.StartTime, s.CreatedAt.UTC(), s.UpdatedAt.UTC(),
	)
	if err != nil {
		return activity.Session{}, errors.Wrap(err, "inserting session")
	}

	var curr activity.Session
	err = get(ctx, ex, &curr, `SELECT `+sessionColumns+` FROM activity_sessions WHERE activity_id = ? AND user_id = ?`, s.ActivityID, s.UserID)
	if err != nil {
		return activity.Session{}, trapNoRowsErr(err, activity.ErrSessionNotFound, "selecting session")
	}
	return curr, nil
}

func (r activityRepository) UpdateSession(ctx context.Context, s activity.Session, exec ...core.DBExecutor) error {
	res, err := execute(ctx, r.getExec(exec),
		`UPDATE activity_sessions SET status = ?, current_question = ?, start_time = ?, updated_at = ? WHERE id = ?`,
		s.Status, s.CurrentQuestion, s.StartTime, s.UpdatedAt.UTC(), s.ID,
	)
	if err != nil {
		return errors.Wrap(err, "updating session")
	}
	return mustAffect(res, activity.ErrSessionNotFound)
}

func (r activityRepository) CreateAnswer(ctx context.Context, a activity.Answer, exec ...core.DBExecutor) (activity.Answer, error) {
	a.ID = uuid.NewString()
	created, err := insertIgnore(ctx, r.getExec(exec),
		`INSERT INTO activity_answers (id, session_id, question_id, user_answer, is_correct, points_earned, time_spent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id, question_id) DO NOTHING`,
		a.ID, a.SessionID, a.QuestionID, a.UserAnswer, a.IsCorrect, a.PointsEarned, a.TimeSpent, a.CreatedAt.UTC(),
	)
	if err != nil {
		return activity.Answer{}, errors.Wrap(err, "inserting answer")
	}
	if !created {
		return activity.Answer{}, activity.ErrAlreadyAnswered
	}
	return a, nil
}

func (r activityRepository) QuerySessionAnswers(ctx context.Context, sessionID string, exec ...core.DBExecutor) ([]activity.AnswerDetail, error) {
	answers := make([]activity.AnswerDetail, 0)
	err := selectAll(ctx, r.getExec(exec), &answers,
		`SELECT aa.id, aa.session_id, aa.question_id, aa.user_answer, aa.is_correct, aa.points_earned, aa.time_spent, aa.created_at, `+
			questionColumnsAs("q")+`
		FROM activity_answers aa
		JOIN questions q ON q.id = aa.question_id
		WHERE aa.session_id = ?
		ORDER BY aa.created_at`, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "querying session answers")
	}
	return answers, nil
}
