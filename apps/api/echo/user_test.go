package echoapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomcode/atomq/core/user"
	emailsvc "github.com/atomcode/atomq/services/email"
)

const goodPassword = "Zq7!Xv2#Wk"

func Test_userApi_register(t *testing.T) {
	env := setup(t)
	admin := env.createUser(t, "Admin", "admin@atomcode.dev", user.RoleAdmin)
	existing := env.createUser(t, "Taken", "taken@atomcode.dev", user.RoleUser)

	tests := []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: "/api/auth/register",
			body: echo.Map{}, wantCode: http.StatusBadRequest, wantErr: "this field is required",
		},
		{
			name: "invalid email", method: http.MethodPost, path: "/api/auth/register",
			body:     user.NewUser{Name: "Jane", Email: "jane", Password: goodPassword},
			wantCode: http.StatusBadRequest, wantErr: "email must be a valid email address",
		},
		{
			name: "weak password", method: http.MethodPost, path: "/api/auth/register",
			body:     user.NewUser{Name: "Jane", Email: "jane@atomcode.dev", Password: "12345678"},
			wantCode: http.StatusBadRequest, wantErr: "password cannot be entirely numeric",
		},
		{
			name: "password too long", method: http.MethodPost, path: "/api/auth/register",
			body:     user.NewUser{Name: "Jane", Email: "jane@atomcode.dev", Password: strings.Repeat(goodPassword, 8)},
			wantCode: http.StatusBadRequest, wantErr: "password must not be longer than 72 bytes",
		},
		{
			name: "email taken", method: http.MethodPost, path: "/api/auth/register",
			body:     user.NewUser{Name: "Jane", Email: " TAKEN@atomcode.dev ", Password: goodPassword},
			wantCode: http.StatusBadRequest, wantErr: user.ErrEmailExists.Error(),
		},
		{
			name: "malformed body", method: http.MethodPost, path: "/api/auth/register",
			body: "lol", wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, env.app)
		})
	}
	assert.NotEmpty(t, existing.ID)

	t.Run("success", func(t *testing.T) {
		rec := httpTest{
			method: http.MethodPost, path: "/api/auth/register", wantCode: http.StatusCreated,
			body: user.NewUser{Name: " Jane Doe ", Email: "Jane@AtomCode.dev", Password: goodPassword, Campus: "North"},
		}.run(t, env.app)

		var resp RegisterResponse
		decode(t, rec, &resp)
		assert.Equal(t, "User created successfully", resp.Message)
		assert.Equal(t, "Jane Doe", resp.User.Name)
		assert.Equal(t, "jane@atomcode.dev", resp.User.Email)
		assert.Equal(t, user.RoleUser, resp.User.Role)

		usr, err := env.usrRepo.GetUserByID(context.Background(), resp.User.ID)
		require.NoError(t, err)
		assert.False(t, usr.Campus.Valid, "campus is set by admins only")
		assert.NoError(t, usr.CheckPassword(goodPassword))

		sent := emailsvc.SentMessages()
		if assert.Len(t, sent, 1) {
			assert.Equal(t, "welcome", sent[0].TemplateName)
			assert.Equal(t, "jane@atomcode.dev", sent[0].To[0].Address)
		}
	})

	t.Run("registration disabled", func(t *testing.T) {
		httpTest{
			method: http.MethodPut, path: "/api/admin/settings", token: env.token(t, admin),
			body: echo.Map{"allowRegistration": false},
		}.run(t, env.app)

		httpTest{
			method: http.MethodPost, path: "/api/auth/register", wantCode: http.StatusForbidden,
			body:    user.NewUser{Name: "Late", Email: "late@atomcode.dev", Password: goodPassword},
			wantErr: "Registration is currently disabled",
		}.run(t, env.app)
	})
}

func Test_userApi_login(t *testing.T) {
	env := setup(t)
	usr := env.createUser(t, "Player", "player@atomcode.dev", user.RoleUser)
	admin := env.createUser(t, "Admin", "admin@atomcode.dev", user.RoleAdmin)
	inactive := env.createInactiveUser(t)

	login := func(t *testing.T, email, pwd string, wantCode int, wantErr string) *httptest.ResponseRecorder {
		return httpTest{
			method: http.MethodPost, path: "/api/auth/login",
			body:     LoginRequest{Email: email, Password: pwd},
			wantCode: wantCode, wantErr: wantErr,
		}.run(t, env.app)
	}

	t.Run("validation", func(t *testing.T) {
		login(t, "", "", http.StatusBadRequest, "this field is required")
	})
	t.Run("unknown user", func(t *testing.T) {
		login(t, "nobody@atomcode.dev", goodPassword, http.StatusUnauthorized, "Invalid email or password")
	})
	t.Run("inactive user", func(t *testing.T) {
		login(t, inactive.Email, "P@ssw0rd!", http.StatusUnauthorized, "Invalid email or password")
	})
	t.Run("success", func(t *testing.T) {
		rec := login(t, " PLAYER@atomcode.dev", "P@ssw0rd!", http.StatusOK, "")
		var resp LoginResponse
		decode(t, rec, &resp)
		cookies := rec.Result().Cookies()
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, usr.ID, resp.User.ID)
		assert.True(t, resp.User.LastLogin.Valid)

		require.Len(t, cookies, 1)
		assert.Equal(t, "session", cookies[0].Name)
		assert.Equal(t, resp.Token, cookies[0].Value)
		assert.True(t, cookies[0].HttpOnly)

		// the cookie alone authenticates
		req, meRec := newAuthRequest(http.MethodGet, "/api/auth/me", "", nil)
		req.AddCookie(cookies[0])
		env.app.ServeHTTP(meRec, req)
		assert.Equal(t, http.StatusOK, meRec.Code)
	})

	t.Run("lockout", func(t *testing.T) {
		for i := 1; i < 5; i++ {
			login(t, usr.Email, "wrong-password", http.StatusUnauthorized, "Invalid email or password")
		}
		wantLocked := "Too many login attempts. Account locked for 15 minutes."
		login(t, usr.Email, "wrong-password", http.StatusTooManyRequests, wantLocked)
		login(t, usr.Email, "P@ssw0rd!", http.StatusTooManyRequests, wantLocked)

		// admin unlocks
		httpTest{
			method: http.MethodPost, path: "/api/admin/login-attempts/clear", token: env.token(t, usr),
			body: ClearAttemptsRequest{Email: usr.Email}, wantCode: http.StatusForbidden, wantErr: "Forbidden",
		}.run(t, env.app)
		httpTest{
			method: http.MethodPost, path: "/api/admin/login-attempts/clear", token: env.token(t, admin),
			body: ClearAttemptsRequest{Email: usr.Email},
		}.run(t, env.app)
		login(t, usr.Email, "P@ssw0rd!", http.StatusOK, "")
	})

	t.Run("maintenance mode", func(t *testing.T) {
		httpTest{
			method: http.MethodPut, path: "/api/admin/settings", token: env.token(t, admin),
			body: echo.Map{"maintenanceMode": true},
		}.run(t, env.app)

		login(t, usr.Email, "P@ssw0rd!", http.StatusForbidden, "Site is under maintenance. Only administrators can login.")
		login(t, admin.Email, "P@ssw0rd!", http.StatusOK, "")
	})
}

func Test_userApi_me_logout(t *testing.T) {
	env := setup(t)
	usr := env.createUser(t, "Player", "player@atomcode.dev", user.RoleUser)
	inactive := env.createInactiveUser(t)

	tests := []httpTest{
		{name: "auth required", path: "/api/auth/me", wantCode: http.StatusUnauthorized, wantErr: "Unauthorized"},
		{name: "bad token", path: "/api/auth/me", token: "lol", wantCode: http.StatusUnauthorized, wantErr: "Unauthorized"},
		{name: "inactive user", path: "/api/auth/me", token: env.token(t, inactive), wantCode: http.StatusUnauthorized},
		{name: "logout", method: http.MethodPost, path: "/api/auth/logout", wantData: echo.Map{"message": "Logged out successfully"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, env.app)
		})
	}

	t.Run("me", func(t *testing.T) {
		rec := httpTest{path: "/api/auth/me", token: env.token(t, usr)}.run(t, env.app)
		var got user.User
		decode(t, rec, &got)
		assert.Equal(t, usr.ID, got.ID)
		assert.Equal(t, usr.Email, got.Email)
		assert.NotContains(t, rec.Body.String(), "password")
	})
}
