package echoapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomcode/atomq/core/activity"
	"github.com/atomcode/atomq/core/question"
	"github.com/atomcode/atomq/core/user"
	"github.com/atomcode/atomq/testutil"
)

func Test_activityApi_admin(t *testing.T) {
	env := setup(t)
	admin := env.createUser(t, "Admin", "admin@atomcode.dev", user.RoleAdmin)
	player := env.createUser(t, "Player", "player@atomcode.dev", user.RoleUser)
	adminToken := env.token(t, admin)

	start := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	end := start.Add(-time.Minute)

	tests := []httpTest{
		{name: "auth required", path: "/api/admin/activities", wantCode: http.StatusUnauthorized, wantErr: "Unauthorized"},
		{name: "admin required", path: "/api/admin/activities", token: env.token(t, player), wantCode: http.StatusForbidden, wantErr: "Forbidden"},
		{name: "empty list", path: "/api/admin/activities", token: adminToken, wantData: []interface{}{}},
		{
			name: "title required", method: http.MethodPost, path: "/api/admin/activities", token: adminToken,
			body: echo.Map{"accessKey": "abc"}, wantCode: http.StatusBadRequest, wantErr: "this field is required",
		},
		{
			name: "invalid access key", method: http.MethodPost, path: "/api/admin/activities", token: adminToken,
			body: echo.Map{"title": "Quiz night", "accessKey": "no spaces!"}, wantCode: http.StatusBadRequest,
			wantErr: "access key may only contain letters, digits, '-' and '_' (3 to 32 characters)",
		},
		{
			name: "invalid status", method: http.MethodPost, path: "/api/admin/activities", token: adminToken,
			body: echo.Map{"title": "Quiz night", "accessKey": "night", "status": "lol"}, wantCode: http.StatusBadRequest,
			wantErr: "status must be one of DRAFT, ACTIVE, COMPLETED, CANCELLED",
		},
		{
			name: "end before start", method: http.MethodPost, path: "/api/admin/activities", token: adminToken,
			body: activity.NewActivity{Title: "Quiz night", AccessKey: "night", StartTime: &start, EndTime: &end},
			wantCode: http.StatusBadRequest, wantErr: "end time must be after start time",
		},
		{name: "not found", path: "/api/admin/activities/lol", token: adminToken, wantCode: http.StatusNotFound, wantErr: "Activity not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, env.app)
		})
	}

	var created activity.Detail
	t.Run("create", func(t *testing.T) {
		rec := httpTest{
			method: http.MethodPost, path: "/api/admin/activities", token: adminToken, wantCode: http.StatusCreated,
			body: echo.Map{"title": " Quiz night ", "description": "Friday", "accessKey": "night-1"},
		}.run(t, env.app)
		decode(t, rec, &created)

		assert.Equal(t, "Quiz night", created.Title)
		assert.Equal(t, "NIGHT-1", created.AccessKey)
		assert.Equal(t, activity.StatusDraft, created.Status)
		assert.Equal(t, admin.ID, created.Creator.ID)
		assert.Equal(t, activity.Counts{}, created.Count)
	})
	require.NotEmpty(t, created.ID)
	path := "/api/admin/activities/" + created.ID

	t.Run("duplicate access key", func(t *testing.T) {
		httpTest{
			method: http.MethodPost, path: "/api/admin/activities", token: adminToken,
			body:     echo.Map{"title": "Other", "accessKey": "Night-1"},
			wantCode: http.StatusBadRequest, wantErr: "Access key already exists",
		}.run(t, env.app)
	})

	t.Run("add questions", func(t *testing.T) {
		rec := httpTest{
			method: http.MethodPost, path: path + "/questions", token: adminToken, wantCode: http.StatusCreated,
			body: echo.Map{
				"title": "Capital", "content": "Capital of Congo?", "type": question.TypeMultipleChoice,
				"options": []string{"Kinshasa", "Lubumbashi"}, "correctAnswer": "Kinshasa",
			},
		}.run(t, env.app)
		var aq activity.ActivityQuestion
		decode(t, rec, &aq)
		assert.Equal(t, 1, aq.Order)
		assert.Equal(t, 1.0, aq.Points)
		assert.Equal(t, "Kinshasa", aq.Question.CorrectAnswer)

		rec = httpTest{
			method: http.MethodPost, path: path + "/questions", token: adminToken, wantCode: http.StatusCreated,
			body: echo.Map{
				"title": "Sky", "content": "The sky is blue", "type": question.TypeTrueFalse,
				"correctAnswer": "True", "points": 2.5,
			},
		}.run(t, env.app)
		decode(t, rec, &aq)
		assert.Equal(t, 2, aq.Order)
		assert.Equal(t, 2.5, aq.Points)

		httpTest{
			method: http.MethodPost, path: path + "/questions", token: adminToken, wantCode: http.StatusBadRequest,
			body: echo.Map{
				"title": "Bad", "content": "Bad", "type": question.TypeMultipleChoice,
				"options": []string{"a", "b"}, "correctAnswer": "c",
			},
			wantErr: "correct answer must match the options",
		}.run(t, env.app)

		rec = httpTest{path: path + "/questions", token: adminToken}.run(t, env.app)
		var aqs []activity.ActivityQuestion
		decode(t, rec, &aqs)
		require.Len(t, aqs, 2)
		assert.Equal(t, "Capital", aqs[0].Question.Title)
		assert.Equal(t, "Sky", aqs[1].Question.Title)
	})

	t.Run("update", func(t *testing.T) {
		rec := httpTest{
			method: http.MethodPut, path: path, token: adminToken,
			body: echo.Map{"status": "active", "accessKey": "night-2"},
		}.run(t, env.app)
		var d activity.Detail
		decode(t, rec, &d)
		assert.Equal(t, activity.StatusActive, d.Status)
		assert.Equal(t, "NIGHT-2", d.AccessKey)
		assert.Equal(t, 2, d.Count.Questions)

		testutil.CreateActivity(t, env.activityRepo, admin, "Taken", "TAKEN", activity.StatusDraft)
		httpTest{
			method: http.MethodPut, path: path, token: adminToken, body: echo.Map{"accessKey": "taken"},
			wantCode: http.StatusBadRequest, wantErr: "Access key already exists",
		}.run(t, env.app)
	})

	t.Run("filter by status", func(t *testing.T) {
		rec := httpTest{path: "/api/admin/activities?status=active", token: adminToken}.run(t, env.app)
		var list []activity.Detail
		decode(t, rec, &list)
		require.Len(t, list, 1)
		assert.Equal(t, created.ID, list[0].ID)
	})

	t.Run("delete", func(t *testing.T) {
		httpTest{
			method: http.MethodDelete, path: path, token: adminToken,
			wantData: echo.Map{"message": "Activity deleted successfully"},
		}.run(t, env.app)
		httpTest{path: path, token: adminToken, wantCode: http.StatusNotFound, wantErr: "Activity not found"}.run(t, env.app)
	})
}

func Test_activityApi_play(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	admin := env.createUser(t, "Admin", "admin@atomcode.dev", user.RoleAdmin)
	alice := env.createUser(t, "Alice", "alice@atomcode.dev", user.RoleUser)
	bob := env.createUser(t, "Bob", "bob@atomcode.dev", user.RoleUser)
	carol := env.createUser(t, "Carol", "carol@atomcode.dev", user.RoleUser)
	outsider := env.createUser(t, "Outsider", "out@atomcode.dev", user.RoleUser)

	act := testutil.CreateActivity(t, env.activityRepo, admin, "Live", "LIVE", activity.StatusActive)
	testutil.CreateActivity(t, env.activityRepo, admin, "Later", "LATER", activity.StatusDraft)
	q1 := testutil.CreateQuestion(t, env.questionRepo, "Capital", question.TypeMultipleChoice, "Kinshasa", "Kinshasa", "Goma")
	q2 := testutil.CreateQuestion(t, env.questionRepo, "Colors", question.TypeMultiSelect, "Red|Blue", "Red", "Blue", "Green")
	unlinked := testutil.CreateQuestion(t, env.questionRepo, "Unlinked", question.TypeFillInBlank, "x")
	for i, q := range []question.Question{q1, q2} {
		_, err := env.activityRepo.AddQuestion(ctx, activity.ActivityQuestion{ActivityID: act.ID, QuestionID: q.ID, Order: i + 1, Points: 1})
		require.NoError(t, err)
	}

	aliceToken, bobToken, carolToken := env.token(t, alice), env.token(t, bob), env.token(t, carol)
	sessionPath := "/api/activity/live/session"

	answer := func(questionID, ans string, timeSpent float64) activity.SessionRequest {
		return activity.SessionRequest{Action: activity.ActionAnswer, QuestionID: questionID, UserAnswer: strPtr(ans), TimeSpent: timeSpent}
	}

	tests := []httpTest{
		// joining
		{name: "join: auth required", method: http.MethodPost, path: "/api/user/activities", body: JoinRequest{AccessKey: "live"}, wantCode: http.StatusUnauthorized},
		{name: "join: key required", method: http.MethodPost, path: "/api/user/activities", token: aliceToken, body: JoinRequest{AccessKey: " "}, wantCode: http.StatusBadRequest, wantErr: "Access key is required"},
		{name: "join: unknown key", method: http.MethodPost, path: "/api/user/activities", token: aliceToken, body: JoinRequest{AccessKey: "nope"}, wantCode: http.StatusNotFound, wantErr: "Invalid access key"},
		{name: "join: not active", method: http.MethodPost, path: "/api/user/activities", token: aliceToken, body: JoinRequest{AccessKey: "later"}, wantCode: http.StatusBadRequest, wantErr: "Activity is not currently active"},
		{name: "join: alice", method: http.MethodPost, path: "/api/user/activities", token: aliceToken, body: JoinRequest{AccessKey: "live"}},
		{name: "join: alice again", method: http.MethodPost, path: "/api/user/activities", token: aliceToken, body: JoinRequest{AccessKey: "LIVE"}},
		{name: "join: bob", method: http.MethodPost, path: "/api/user/activities", token: bobToken, body: JoinRequest{AccessKey: "live"}},
		{name: "join: carol", method: http.MethodPost, path: "/api/user/activities", token: carolToken, body: JoinRequest{AccessKey: "live"}},

		// playing
		{name: "play: not a participant", method: http.MethodPost, path: sessionPath, token: env.token(t, outsider), body: activity.SessionRequest{Action: activity.ActionStart}, wantCode: http.StatusForbidden, wantErr: "Not a participant of this activity"},
		{name: "play: unknown activity", method: http.MethodPost, path: "/api/activity/nope/session", token: aliceToken, body: activity.SessionRequest{Action: activity.ActionStart}, wantCode: http.StatusNotFound, wantErr: "Activity not found"},
		{name: "play: invalid action", method: http.MethodPost, path: sessionPath, token: aliceToken, body: activity.SessionRequest{Action: "dance"}, wantCode: http.StatusBadRequest, wantErr: "Invalid action"},
		{name: "play: answer without question", method: http.MethodPost, path: sessionPath, token: aliceToken, body: activity.SessionRequest{Action: activity.ActionAnswer, UserAnswer: strPtr("x")}, wantCode: http.StatusBadRequest, wantErr: "Invalid action"},
		{name: "play: answer without answer", method: http.MethodPost, path: sessionPath, token: aliceToken, body: activity.SessionRequest{Action: activity.ActionAnswer, QuestionID: q1.ID}, wantCode: http.StatusBadRequest, wantErr: "Invalid action"},
		{name: "play: question not in activity", method: http.MethodPost, path: sessionPath, token: aliceToken, body: answer(unlinked.ID, "x", 1), wantCode: http.StatusNotFound, wantErr: "Question not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, env.app)
		})
	}

	t.Run("session lifecycle", func(t *testing.T) {
		rec := httpTest{path: sessionPath, token: aliceToken}.run(t, env.app)
		var s activity.Session
		decode(t, rec, &s)
		assert.Equal(t, activity.SessionWaiting, s.Status)
		assert.Empty(t, s.Answers)

		rec = httpTest{method: http.MethodPost, path: sessionPath, token: aliceToken, body: activity.SessionRequest{Action: activity.ActionStart}}.run(t, env.app)
		var started activity.Session
		decode(t, rec, &started)
		assert.Equal(t, s.ID, started.ID)
		assert.Equal(t, activity.SessionPlaying, started.Status)
		assert.True(t, started.StartTime.Valid)
		assert.Equal(t, 0, started.CurrentQuestion)
	})

	t.Run("answers and scoring", func(t *testing.T) {
		play := func(token string, req activity.SessionRequest) activity.Answer {
			rec := httpTest{method: http.MethodPost, path: sessionPath, token: token, body: req}.run(t, env.app)
			var ans activity.Answer
			decode(t, rec, &ans)
			return ans
		}

		// 1000 - floor(3.7)*50
		ans := play(aliceToken, answer(q1.ID, "Kinshasa", 3.7))
		assert.True(t, ans.IsCorrect)
		assert.Equal(t, 850, ans.PointsEarned)

		ans = play(aliceToken, answer(q2.ID, "Blue|Red", 0))
		assert.True(t, ans.IsCorrect)
		assert.Equal(t, 1000, ans.PointsEarned)

		httpTest{
			method: http.MethodPost, path: sessionPath, token: aliceToken, body: answer(q1.ID, "Kinshasa", 1),
			wantCode: http.StatusBadRequest, wantErr: "Question already answered",
		}.run(t, env.app)

		ans = play(bobToken, answer(q1.ID, "Goma", 1))
		assert.False(t, ans.IsCorrect)
		assert.Equal(t, 0, ans.PointsEarned)

		// negative time counts as zero
		ans = play(bobToken, answer(q2.ID, "Red|Blue", -3))
		assert.True(t, ans.IsCorrect)
		assert.Equal(t, 1000, ans.PointsEarned)

		// too slow
		ans = play(carolToken, answer(q1.ID, "Kinshasa", 25))
		assert.True(t, ans.IsCorrect)
		assert.Equal(t, 0, ans.PointsEarned)

		ans = play(carolToken, answer(q2.ID, "Red|Blue", 19.9))
		assert.Equal(t, 50, ans.PointsEarned)

		rec := httpTest{path: sessionPath, token: aliceToken}.run(t, env.app)
		var s activity.Session
		decode(t, rec, &s)
		assert.Equal(t, 2, s.CurrentQuestion)
		require.Len(t, s.Answers, 2)
		assert.Equal(t, "Capital", s.Answers[0].Question.Title)
	})

	t.Run("leaderboard", func(t *testing.T) {
		rec := httpTest{path: "/api/activity/live/leaderboard"}.run(t, env.app)
		var board []activity.LeaderboardEntry
		decode(t, rec, &board)
		require.Len(t, board, 3)

		wantOrder := []struct {
			usr   user.User
			score int
		}{{alice, 1850}, {bob, 1000}, {carol, 50}}
		for i, want := range wantOrder {
			assert.Equal(t, i+1, board[i].Rank)
			assert.Equal(t, want.usr.ID, board[i].User.ID)
			assert.Equal(t, want.usr.Name, board[i].User.Name)
			assert.Equal(t, want.score, board[i].Score)
		}
	})

	t.Run("public boards", func(t *testing.T) {
		httpTest{path: "/api/activity/nope/leaderboard", wantCode: http.StatusNotFound, wantErr: "Activity not found"}.run(t, env.app)
		httpTest{path: "/api/activity/nope/participants", wantCode: http.StatusNotFound, wantErr: "Activity not found"}.run(t, env.app)
		httpTest{path: sessionPath, wantCode: http.StatusUnauthorized}.run(t, env.app)
	})

	t.Run("leaderboard ties keep join order", func(t *testing.T) {
		tie := testutil.CreateActivity(t, env.activityRepo, admin, "Tie", "TIE", activity.StatusActive)
		for _, token := range []string{carolToken, aliceToken, bobToken} {
			httpTest{method: http.MethodPost, path: "/api/user/activities", token: token, body: JoinRequest{AccessKey: tie.AccessKey}}.run(t, env.app)
		}
		rec := httpTest{path: "/api/activity/tie/participants"}.run(t, env.app)
		var participants []activity.Participant
		decode(t, rec, &participants)
		require.Len(t, participants, 3)
		assert.Equal(t, carol.ID, participants[0].UserID)
		assert.Equal(t, alice.ID, participants[1].UserID)
		assert.Equal(t, bob.ID, participants[2].UserID)
	})

	t.Run("joined activity counts", func(t *testing.T) {
		rec := httpTest{path: "/api/admin/activities/" + act.ID, token: env.token(t, admin)}.run(t, env.app)
		var d activity.Detail
		decode(t, rec, &d)
		assert.Equal(t, activity.Counts{Questions: 2, Participants: 3, Sessions: 3}, d.Count)
	})
}
