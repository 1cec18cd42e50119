package user

import (
	"time"

	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/atomcode/atomq/core"
)

// Roles
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

var AllRoles = []string{RoleUser, RoleAdmin}

type User struct {
	ID           string      `json:"id" db:"id"`
	Name         string      `json:"name" db:"name"`
	Email        string      `json:"email" db:"email"`
	Phone        null.String `json:"phone" db:"phone"`
	Avatar       null.String `json:"avatar" db:"avatar"`
	Campus       null.String `json:"campus" db:"campus"`
	Role         string      `json:"role" db:"role"`
	IsActive     bool        `json:"isActive" db:"is_active"`
	PasswordHash string      `json:"-" db:"password_hash"`
	CreatedAt    time.Time   `json:"createdAt" db:"created_at"` // UTC
	UpdatedAt    time.Time   `json:"updatedAt" db:"updated_at"` // UTC
	LastLogin    null.Time   `json:"lastLogin" db:"last_login"` // UTC
}

// SetPassword hashes pwd with bcrypt. cost defaults to bcrypt.DefaultCost.
func (u *User) SetPassword(pwd string, cost ...int) error {
	c := bcrypt.DefaultCost
	if len(cost) > 0 && cost[0] >= bcrypt.MinCost {
		c = cost[0]
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), c)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(pwd))
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u User) Summary() Summary {
	return Summary{ID: u.ID, Name: u.Name, Email: u.Email, Avatar: u.Avatar}
}

// Summary is the public subset of a User embedded in other resources.
type Summary struct {
	ID     string      `json:"id" db:"id"`
	Name   string      `json:"name" db:"name"`
	Email  string      `json:"email" db:"email"`
	Avatar null.String `json:"avatar,omitempty" db:"avatar"`
}

// NewUser contains information needed to register a new User.
type NewUser struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Phone    string `json:"phone"`
	Campus   string `json:"campus"`
}

func (nu *NewUser) Clean() {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Phone = core.CleanString(nu.Phone)
	nu.Campus = core.CleanString(nu.Campus)
}

type QueryFilter struct {
	Search     string   `query:"search"`
	Campus     string   `query:"campus"`
	Role       string   `query:"role"`
	IsActive   *bool    `query:"isActive"`
	ExcludeIDs []string `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Campus = core.CleanString(qf.Campus)
	qf.Role = core.CleanString(qf.Role)
}
