package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/atomcode/atomq/core"
	"github.com/atomcode/atomq/core/activity"
	"github.com/atomcode/atomq/core/question"
	"github.com/atomcode/atomq/core/quiz"
	"github.com/atomcode/atomq/core/user"
	logsvc "github.com/atomcode/atomq/services/logger"
	"github.com/atomcode/atomq/storage/database"
)

// Config returns the configuration used by test suites: SQLite in memory, cheap bcrypt.
func Config() *core.Config {
	conf := core.NewConfig()
	conf.TestMode = true
	conf.Debug = false
	conf.RollbarToken = ""
	conf.Server.DisableReqLogs = true
	conf.Database.Engine = "sqlite"
	conf.Database.Path = ":memory:"
	conf.Auth.BcryptCost = bcrypt.MinCost
	return conf
}

// Logger returns a logger that discards everything.
func Logger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
}

// Validator returns a validator with every domain rule registered.
func Validator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	question.InitValidators(validate, translator)
	activity.InitValidators(validate, translator)
	quiz.InitValidators(validate, translator)
	return validate, translator
}

// PrepareDB opens a fresh in-memory database with every migration applied.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Open(Config())
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("PrepareDB() failed to migrate: %v", err)
	}
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if role == "" {
		role = user.RoleUser
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd == "" {
		pwd = "unusable"
	}
	if err := usr.SetPassword(pwd, bcrypt.MinCost); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateQuestion(t *testing.T, repo question.Repository, title, qtype, correct string, options ...string) question.Question {
	t.Helper()
	now := time.Now().UTC()
	if options == nil {
		options = []string{}
	}
	q, err := repo.CreateQuestion(context.Background(), question.Question{
		Title:         title,
		Content:       title + "?",
		Type:          qtype,
		Options:       options,
		CorrectAnswer: correct,
		Difficulty:    question.DifficultyMedium,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		t.Fatalf("CreateQuestion() failed: %v", err)
	}
	return q
}

func CreateActivity(t *testing.T, repo activity.Repository, creator user.User, title, key, status string) activity.Activity {
	t.Helper()
	now := time.Now().UTC()
	a, err := repo.CreateActivity(context.Background(), activity.Activity{
		Title:       title,
		Description: null.StringFrom(title),
		AccessKey:   key,
		Status:      status,
		CreatorID:   creator.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateActivity() failed: %v", err)
	}
	return a
}
