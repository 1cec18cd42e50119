package question

import (
	"database/sql/driver"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/atomcode/atomq/core"
	"github.com/atomcode/atomq/core/user"
)

// Types
const (
	TypeMultipleChoice = "MULTIPLE_CHOICE"
	TypeTrueFalse      = "TRUE_FALSE"
	TypeFillInBlank    = "FILL_IN_BLANK"
	TypeMultiSelect    = "MULTI_SELECT"
)

// Difficulty levels
const (
	DifficultyEasy   = "EASY"
	DifficultyMedium = "MEDIUM"
	DifficultyHard   = "HARD"
)

// Report statuses
const (
	ReportPending  = "PENDING"
	ReportResolved = "RESOLVED"
)

// MultiSelectSeparator joins the options picked on a MULTI_SELECT question.
const MultiSelectSeparator = "|"

var (
	AllTypes          = []string{TypeMultipleChoice, TypeTrueFalse, TypeFillInBlank, TypeMultiSelect}
	AllDifficulties   = []string{DifficultyEasy, DifficultyMedium, DifficultyHard}
	AllReportStatuses = []string{ReportPending, ReportResolved}
)

// Options is a list of choices stored as a JSON array.
type Options []string

func (o Options) Value() (driver.Value, error) {
	if o == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(o))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (o *Options) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*o = Options{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errors.Errorf("question.Options: cannot scan %T", src)
	}
	var opts []string
	if err := json.Unmarshal(data, &opts); err != nil {
		return errors.Wrap(err, "question.Options")
	}
	*o = opts
	return nil
}

type Question struct {
	ID            string      `json:"id" db:"id"`
	GroupID       null.String `json:"groupId" db:"group_id"`
	Title         string      `json:"title" db:"title"`
	Content       string      `json:"content" db:"content"`
	Type          string      `json:"type" db:"type"`
	Options       Options     `json:"options" db:"options"`
	CorrectAnswer string      `json:"correctAnswer" db:"correct_answer"`
	Explanation   null.String `json:"explanation" db:"explanation"`
	Difficulty    string      `json:"difficulty" db:"difficulty"`
	IsActive      bool        `json:"isActive" db:"is_active"`
	CreatedAt     time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time   `json:"updatedAt" db:"updated_at"`
}

// CheckAnswer grades a user answer:
// MULTI_SELECT compares the "|" separated option sets ignoring order,
// FILL_IN_BLANK compares trimmed and case-insensitive, the rest must match exactly.
func (q Question) CheckAnswer(answer string) bool {
	switch q.Type {
	case TypeMultiSelect:
		return equalSets(splitSelection(answer), splitSelection(q.CorrectAnswer))
	case TypeFillInBlank:
		return strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(q.CorrectAnswer))
	default:
		return answer == q.CorrectAnswer
	}
}

// Public hides the correct answer and explanation from players.
func (q Question) Public() Question {
	q.CorrectAnswer = ""
	q.Explanation = null.String{}
	return q
}

func splitSelection(s string) []string {
	var out []string
	for _, part := range strings.Split(s, MultiSelectSeparator) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	sort.Strings(out)
	return out
}

func equalSets(a, b []string) bool {
	a, b = dedupSorted(a), dedupSorted(b)
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func dedupSorted(s []string) []string {
	out := s[:0:0]
	for i, v := range s {
		if i == 0 || v != s[i-1] {
			out = append(out, v)
		}
	}
	return out
}

// NewQuestion contains information needed to create a Question.
type NewQuestion struct {
	GroupID       string   `json:"groupId"`
	Title         string   `json:"title" validate:"required"`
	Content       string   `json:"content" validate:"required"`
	Type          string   `json:"type" validate:"required,questiontype"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer" validate:"required"`
	Explanation   string   `json:"explanation"`
	Difficulty    string   `json:"difficulty" validate:"omitempty,difficulty"`
	IsActive      *bool    `json:"isActive"`
}

func (nq *NewQuestion) Clean() {
	nq.GroupID = core.CleanString(nq.GroupID)
	nq.Title = core.CleanString(nq.Title)
	nq.Content = core.CleanString(nq.Content)
	nq.Type = strings.ToUpper(core.CleanString(nq.Type))
	nq.Explanation = core.CleanString(nq.Explanation)
	nq.Difficulty = strings.ToUpper(core.CleanString(nq.Difficulty))
	if nq.Difficulty == "" {
		nq.Difficulty = DifficultyMedium
	}
	opts := make([]string, 0, len(nq.Options))
	for _, o := range nq.Options {
		if o = core.CleanString(o); o != "" {
			opts = append(opts, o)
		}
	}
	nq.Options = opts
}

type Group struct {
	ID          string      `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	Description null.String `json:"description" db:"description"`
	CreatedAt   time.Time   `json:"createdAt" db:"created_at"`
}

type NewGroup struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
}

type Report struct {
	ID         string    `json:"id" db:"id"`
	QuestionID string    `json:"questionId" db:"question_id"`
	UserID     string    `json:"userId" db:"user_id"`
	Suggestion string    `json:"suggestion" db:"suggestion"`
	Status     string    `json:"status" db:"status"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}

// ReportDetail is a Report with its question (and the question's group) and reporter.
type ReportDetail struct {
	Report
	Question ReportedQuestion `json:"question"`
	User     user.Summary     `json:"user"`
}

type ReportedQuestion struct {
	Question
	Group *Group `json:"group"`
}

type NewReport struct {
	Suggestion string `json:"suggestion" validate:"required,max=2000"`
}

type UpdateReport struct {
	ReportID string `json:"reportId" validate:"required"`
	Status   string `json:"status" validate:"required,reportstatus"`
}
