package echoapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomcode/atomq/core"
	"github.com/atomcode/atomq/core/activity"
	"github.com/atomcode/atomq/core/auth"
	"github.com/atomcode/atomq/core/question"
	"github.com/atomcode/atomq/core/quiz"
	"github.com/atomcode/atomq/core/settings"
	"github.com/atomcode/atomq/core/user"
	emailsvc "github.com/atomcode/atomq/services/email"
	eventsvc "github.com/atomcode/atomq/services/events"
	sqlxrepos "github.com/atomcode/atomq/storage/database/sqlx"
	"github.com/atomcode/atomq/testutil"
)

// testEnv bundles a server backed by a fresh in-memory database.
type testEnv struct {
	app          *Server
	db           *sqlx.DB
	usrRepo      user.Repository
	questionRepo question.Repository
	activityRepo activity.Repository
	quizRepo     quiz.Repository
}

func setup(t *testing.T) *testEnv {
	conf := testutil.Config()
	logger := testutil.Logger(conf)
	validate, translator := testutil.Validator()
	require.NoError(t, core.ParseEmailTemplates(conf))

	// set up DB & repos
	db := testutil.PrepareDB(t)
	env := &testEnv{
		db:           db,
		usrRepo:      sqlxrepos.NewUserRepository(db),
		questionRepo: sqlxrepos.NewQuestionRepository(db),
		activityRepo: sqlxrepos.NewActivityRepository(db),
		quizRepo:     sqlxrepos.NewQuizRepository(db),
	}

	// set up services
	emailsvc.ResetSentMessages()
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	usrSvc := user.NewService(env.usrRepo, mailSvc, conf)
	settingsSvc := settings.NewService(sqlxrepos.NewSettingsRepository(db), conf)
	limiter := auth.NewLimiter(auth.NewMemoryStore(), auth.LimiterOptions{
		MaxAttempts: conf.Auth.MaxLoginAttempts,
		Window:      conf.Auth.AttemptWindow,
		Lockout:     conf.Auth.LockoutDuration,
	})
	questionSvc := question.NewService(env.questionRepo)

	env.app = NewServer(ServerDeps{
		Conf:        conf,
		Logger:      logger,
		Validate:    validate,
		Translator:  translator,
		UserSvc:     usrSvc,
		AuthSvc:     auth.NewService(usrSvc, settingsSvc, limiter, logger),
		SettingsSvc: settingsSvc,
		QuestionSvc: questionSvc,
		ActivitySvc: activity.NewService(db, env.activityRepo, questionSvc, eventsvc.NewLogPublisher(logger), logger),
		QuizSvc:     quiz.NewService(db, env.quizRepo, questionSvc, usrSvc, mailSvc),
	})
	t.Cleanup(func() { _ = env.app.Close() })
	return env
}

func (env *testEnv) createUser(t *testing.T, name, email, role string) user.User {
	return testutil.CreateUser(t, env.usrRepo, name, email, "P@ssw0rd!", role, true)
}

func (env *testEnv) createInactiveUser(t *testing.T) user.User {
	return testutil.CreateUser(t, env.usrRepo, "Gone", "gone@atomcode.dev", "P@ssw0rd!", user.RoleUser, false)
}

func (env *testEnv) token(t *testing.T, usr user.User) string {
	token, err := env.app.tokens.Generate(usr)
	require.NoError(t, err, "token()")
	return token
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     interface{}
	token    string
	wantCode int
	wantData interface{} // compared as JSON when set
	wantErr  string      // compared with the "error" field when set
}

func (tt httpTest) run(t *testing.T, app *Server) *httptest.ResponseRecorder {
	t.Helper()
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	var data []byte
	if tt.body != nil {
		data = marshal(t, tt.body)
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, data)
	app.ServeHTTP(rec, req)

	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	assert.Equal(t, wantCode, rec.Code, rec.Body.String())
	if tt.wantErr != "" {
		var herr httpErr
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &herr))
		assert.Equal(t, tt.wantErr, herr.Error)
	}
	if tt.wantData != nil {
		assert.JSONEq(t, string(marshal(t, tt.wantData)), rec.Body.String())
	}
	return rec
}

func newAuthRequest(method, path, token string, data []byte) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func marshal(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	require.NoError(t, err, "marshal()")
	return data
}

// decode reads a JSON response body into v.
func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func strPtr(s string) *string { return &s }
