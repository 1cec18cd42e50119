package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/atomcode/atomq/core/activity"
	"github.com/atomcode/atomq/core/question"
	"github.com/atomcode/atomq/core/quiz"
	"github.com/atomcode/atomq/core/settings"
	"github.com/atomcode/atomq/core/user"
	sqlxrepos "github.com/atomcode/atomq/storage/database/sqlx"
	"github.com/atomcode/atomq/testutil"
)

func TestRepositories_SQLite(t *testing.T) {
	testRepositories(t, testutil.PrepareDB(t))
}

// testRepositories runs against any migrated database.
func testRepositories(t *testing.T, db *sqlx.DB) {
	ctx := context.Background()
	usrRepo := sqlxrepos.NewUserRepository(db)
	questionRepo := sqlxrepos.NewQuestionRepository(db)
	quizRepo := sqlxrepos.NewQuizRepository(db)
	activityRepo := sqlxrepos.NewActivityRepository(db)
	settingsRepo := sqlxrepos.NewSettingsRepository(db)

	alice := testutil.CreateUser(t, usrRepo, "Alice", "alice@atomcode.dev", "", user.RoleAdmin, true)
	bob := testutil.CreateUser(t, usrRepo, "Bob", "bob@atomcode.dev", "", user.RoleUser, true)
	carol := testutil.CreateUser(t, usrRepo, "Carol 100%", "carol@atomcode.dev", "", user.RoleUser, false)

	t.Run("users", func(t *testing.T) {
		_, err := usrRepo.GetUserByEmail(ctx, "nobody@atomcode.dev")
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))

		got, err := usrRepo.GetUsersByID(ctx, []string{carol.ID, alice.ID, "lol"})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "Alice", got[0].Name)

		users, err := usrRepo.QueryUsers(ctx, user.QueryFilter{Search: "100%"})
		require.NoError(t, err)
		require.Len(t, users, 1, "LIKE wildcards are escaped")
		assert.Equal(t, carol.ID, users[0].ID)

		active := true
		users, err = usrRepo.QueryUsers(ctx, user.QueryFilter{Role: user.RoleUser, IsActive: &active, ExcludeIDs: []string{alice.ID}})
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, bob.ID, users[0].ID)

		at := time.Now().UTC().Truncate(time.Second)
		require.NoError(t, usrRepo.SetLastLogin(ctx, bob.ID, at))
		got1, err := usrRepo.GetUserByID(ctx, bob.ID)
		require.NoError(t, err)
		assert.True(t, got1.LastLogin.Valid)
		assert.True(t, at.Equal(got1.LastLogin.Time.UTC()))
	})

	t.Run("settings", func(t *testing.T) {
		_, err := settingsRepo.GetSettings(ctx)
		assert.Equal(t, settings.ErrNotFound, errors.Cause(err))

		s := settings.Defaults()
		_, err = settingsRepo.SaveSettings(ctx, s)
		require.NoError(t, err)
		s.MaintenanceMode = true
		_, err = settingsRepo.SaveSettings(ctx, s)
		require.NoError(t, err, "saving twice upserts the single row")

		got, err := settingsRepo.GetSettings(ctx)
		require.NoError(t, err)
		assert.True(t, got.MaintenanceMode)
	})

	q1 := testutil.CreateQuestion(t, questionRepo, "Capital", question.TypeMultipleChoice, "Kinshasa", "Kinshasa", "Goma")
	q2 := testutil.CreateQuestion(t, questionRepo, "River", question.TypeFillInBlank, "Congo")

	t.Run("questions", func(t *testing.T) {
		got, err := questionRepo.GetQuestionByID(ctx, q1.ID)
		require.NoError(t, err)
		assert.Equal(t, question.Options{"Kinshasa", "Goma"}, got.Options)

		many, err := questionRepo.GetQuestionsByID(ctx, []string{q1.ID, q2.ID})
		require.NoError(t, err)
		assert.Len(t, many, 2)

		_, err = questionRepo.GetGroupByID(ctx, "lol")
		assert.Equal(t, question.ErrGroupNotFound, errors.Cause(err))
	})

	t.Run("quizzes", func(t *testing.T) {
		now := time.Now().UTC()
		qz, err := quizRepo.CreateQuiz(ctx, quiz.Quiz{
			Title: "Geography", Difficulty: question.DifficultyEasy, Status: quiz.StatusPublished,
			CreatorID: alice.ID, CreatedAt: now, UpdatedAt: now,
		})
		require.NoError(t, err)

		created, err := quizRepo.AddQuestion(ctx, quiz.QuizQuestion{QuizID: qz.ID, QuestionID: q1.ID, Order: 1, Points: 2})
		require.NoError(t, err)
		assert.True(t, created)
		created, err = quizRepo.AddQuestion(ctx, quiz.QuizQuestion{QuizID: qz.ID, QuestionID: q1.ID, Order: 2, Points: 2})
		require.NoError(t, err)
		assert.False(t, created, "duplicate links are ignored")

		last, err := quizRepo.MaxQuestionOrder(ctx, qz.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, last)

		created, err = quizRepo.Enroll(ctx, quiz.Enrollment{QuizID: qz.ID, UserID: bob.ID, EnrolledAt: now})
		require.NoError(t, err)
		assert.True(t, created)
		created, err = quizRepo.Enroll(ctx, quiz.Enrollment{QuizID: qz.ID, UserID: bob.ID, EnrolledAt: now})
		require.NoError(t, err)
		assert.False(t, created)

		mine, err := quizRepo.QueryQuizzes(ctx, bob.ID, quiz.StatusPublished)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, quiz.Counts{Questions: 1, Users: 1}, mine[0].Count)
		assert.Equal(t, "Alice", mine[0].Creator.Name)

		att, err := quizRepo.CreateAttempt(ctx, quiz.Attempt{QuizID: qz.ID, UserID: bob.ID, Status: quiz.AttemptInProgress, StartedAt: now})
		require.NoError(t, err)
		inProgress, err := quizRepo.GetInProgressAttempt(ctx, qz.ID, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, att.ID, inProgress.ID)

		att.Status, att.Score, att.TotalPoints = quiz.AttemptSubmitted, 2, 2
		att.SubmittedAt = null.TimeFrom(now)
		require.NoError(t, quizRepo.CreateAttemptAnswers(ctx, []quiz.AttemptAnswer{
			{AttemptID: att.ID, QuestionID: q1.ID, UserAnswer: "Kinshasa", IsCorrect: true, PointsEarned: 2},
		}))
		require.NoError(t, quizRepo.SubmitAttempt(ctx, att))
		assert.Equal(t, quiz.ErrAlreadySubmitted, errors.Cause(quizRepo.SubmitAttempt(ctx, att)), "submitted attempts stay closed")
		_, err = quizRepo.GetInProgressAttempt(ctx, qz.ID, bob.ID)
		assert.Equal(t, quiz.ErrAttemptNotFound, errors.Cause(err))

		answers, err := quizRepo.QueryAttemptAnswers(ctx, att.ID)
		require.NoError(t, err)
		require.Len(t, answers, 1)
		assert.True(t, answers[0].IsCorrect)

		require.NoError(t, quizRepo.Unenroll(ctx, qz.ID, bob.ID))
		assert.Equal(t, quiz.ErrEnrollmentNotFound, errors.Cause(quizRepo.Unenroll(ctx, qz.ID, bob.ID)))

		require.NoError(t, quizRepo.DeleteQuiz(ctx, qz.ID))
		_, err = quizRepo.GetAttemptByID(ctx, att.ID)
		assert.Equal(t, quiz.ErrAttemptNotFound, errors.Cause(err), "attempts are deleted with their quiz")
	})

	t.Run("activities", func(t *testing.T) {
		a := testutil.CreateActivity(t, activityRepo, alice, "Quiz night", "NIGHT-1", activity.StatusActive)

		taken, err := activityRepo.AccessKeyTaken(ctx, "NIGHT-1", "")
		require.NoError(t, err)
		assert.True(t, taken)
		taken, err = activityRepo.AccessKeyTaken(ctx, "NIGHT-1", a.ID)
		require.NoError(t, err)
		assert.False(t, taken)

		got, err := activityRepo.GetActivityByKey(ctx, "NIGHT-1")
		require.NoError(t, err)
		assert.Equal(t, a.ID, got.ID)

		_, err = activityRepo.AddQuestion(ctx, activity.ActivityQuestion{ActivityID: a.ID, QuestionID: q2.ID, Order: 1, Points: 1})
		require.NoError(t, err)
		aq, err := activityRepo.GetActivityQuestion(ctx, a.ID, q2.ID)
		require.NoError(t, err)
		assert.Equal(t, "Congo", aq.Question.CorrectAnswer)

		for _, u := range []user.User{bob, carol} {
			created, err := activityRepo.AddParticipant(ctx, activity.Participant{ActivityID: a.ID, UserID: u.ID, JoinedAt: time.Now().UTC()})
			require.NoError(t, err)
			assert.True(t, created)
		}
		p, err := activityRepo.GetParticipant(ctx, a.ID, carol.ID)
		require.NoError(t, err)
		require.NoError(t, activityRepo.IncrementScore(ctx, p.ID, 850))
		require.NoError(t, activityRepo.IncrementScore(ctx, p.ID, 100))

		participants, err := activityRepo.QueryParticipants(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, participants, 2)
		assert.Equal(t, carol.ID, participants[0].UserID, "highest score first")
		assert.Equal(t, 950, participants[0].Score)

		s1, err := activityRepo.GetOrCreateSession(ctx, activity.Session{ActivityID: a.ID, UserID: bob.ID, Status: activity.SessionWaiting, CurrentQuestion: 1, CreatedAt: time.Now().UTC()})
		require.NoError(t, err)
		s2, err := activityRepo.GetOrCreateSession(ctx, activity.Session{ActivityID: a.ID, UserID: bob.ID, Status: activity.SessionWaiting, CurrentQuestion: 1, CreatedAt: time.Now().UTC()})
		require.NoError(t, err)
		assert.Equal(t, s1.ID, s2.ID)
	})
}
