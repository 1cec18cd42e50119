package echoapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/atomcode/atomq/core"
	"github.com/atomcode/atomq/core/user"
)

const (
	contextClaimsKey = "claims"
	contextUserKey   = "user"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

func (c Claims) IsAdmin() bool {
	return c.Role == user.RoleAdmin
}

// tokenManager signs session tokens and carries them in an HttpOnly cookie.
type tokenManager struct {
	key        []byte
	issuer     string
	maxAge     time.Duration
	cookieName string
	secure     bool
}

func newTokenManager(conf *core.Config) tokenManager {
	return tokenManager{
		key:        []byte(conf.SecretKey),
		issuer:     conf.AppName,
		maxAge:     conf.Server.SessionMaxAge,
		cookieName: conf.Server.SessionCookieName,
		secure:     conf.Server.SecureCookie,
	}
}

func (tm tokenManager) claims(usr user.User) *Claims {
	now := time.Now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tm.issuer,
			Subject:   usr.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.maxAge)),
		},
		Name:  usr.Name,
		Email: usr.Email,
		Role:  usr.Role,
	}
}

// Generate returns a signed HS256 token for usr.
func (tm tokenManager) Generate(usr user.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tm.claims(usr))
	ss, err := token.SignedString(tm.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (tm tokenManager) Parse(tokenStr string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(
		tokenStr, claims,
		func(*jwt.Token) (interface{}, error) { return tm.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tm.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (tm tokenManager) SetCookie(ctx echo.Context, token string) {
	ctx.SetCookie(&http.Cookie{
		Name:     tm.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(tm.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   tm.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (tm tokenManager) ClearCookie(ctx echo.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     tm.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   tm.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// extract reads the token from the session cookie, then from the Authorization header.
func (tm tokenManager) extract(ctx echo.Context) string {
	if c, err := ctx.Cookie(tm.cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	const prefix = "Bearer "
	if h := ctx.Request().Header.Get(echo.HeaderAuthorization); len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return h[len(prefix):]
	}
	return ""
}

// authMiddleware rejects requests without a valid session token.
func (s *Server) authMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			tokenStr := s.tokens.extract(ctx)
			if tokenStr == "" {
				return errUnauthorized
			}
			claims, err := s.tokens.Parse(tokenStr)
			if err != nil {
				return errUnauthorized.WithInternal(err)
			}
			ctx.Set(contextClaimsKey, *claims)
			return next(ctx)
		}
	}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(Claims); ok {
		return claims, nil
	}
	return Claims{}, errUnauthorized
}

// getContextUser loads the authenticated user once per request. Unknown or inactive users are unauthorized.
func getContextUser(ctx echo.Context, svc *user.Service) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, err
	}
	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive {
		return user.User{}, errUnauthorized
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}
