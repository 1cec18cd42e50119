package quiz

import (
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/atomcode/atomq/core"
	"github.com/atomcode/atomq/core/question"
	"github.com/atomcode/atomq/core/user"
)

// Quiz statuses
const (
	StatusDraft     = "DRAFT"
	StatusPublished = "PUBLISHED"
	StatusArchived  = "ARCHIVED"
)

// Attempt statuses
const (
	AttemptInProgress = "IN_PROGRESS"
	AttemptSubmitted  = "SUBMITTED"
)

var AllStatuses = []string{StatusDraft, StatusPublished, StatusArchived}

type Quiz struct {
	ID                 string      `json:"id" db:"id"`
	Title              string      `json:"title" db:"title"`
	Description        null.String `json:"description" db:"description"`
	TimeLimit          int         `json:"timeLimit" db:"time_limit"` // minutes, 0 means unlimited
	Difficulty         string      `json:"difficulty" db:"difficulty"`
	Status             string      `json:"status" db:"status"`
	ShowAnswers        bool        `json:"showAnswers" db:"show_answers"`
	CheckAnswerEnabled bool        `json:"checkAnswerEnabled" db:"check_answer_enabled"`
	CreatorID          string      `json:"creatorId" db:"creator_id"`
	CreatedAt          time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time   `json:"updatedAt" db:"updated_at"`
}

func (q Quiz) IsPublished() bool {
	return q.Status == StatusPublished
}

type Counts struct {
	Questions int `json:"quizQuestions" db:"questions"`
	Users     int `json:"quizUsers" db:"users"`
	Attempts  int `json:"quizAttempts" db:"attempts"`
}

type Detail struct {
	Quiz
	Creator user.Summary `json:"creator" db:"creator"`
	Count   Counts       `json:"_count" db:"_count"`
}

type QuizQuestion struct {
	ID         string            `json:"id" db:"id"`
	QuizID     string            `json:"quizId" db:"quiz_id"`
	QuestionID string            `json:"questionId" db:"question_id"`
	Order      int               `json:"order" db:"position"`
	Points     float64           `json:"points" db:"points"`
	Question   question.Question `json:"question" db:"question"`
}

type Enrollment struct {
	ID         string       `json:"id" db:"id"`
	QuizID     string       `json:"quizId" db:"quiz_id"`
	UserID     string       `json:"userId" db:"user_id"`
	EnrolledAt time.Time    `json:"enrolledAt" db:"enrolled_at"`
	User       user.Summary `json:"user" db:"user"`
}

type Attempt struct {
	ID          string    `json:"id" db:"id"`
	QuizID      string    `json:"quizId" db:"quiz_id"`
	UserID      string    `json:"userId" db:"user_id"`
	Status      string    `json:"status" db:"status"`
	Score       float64   `json:"score" db:"score"`
	TotalPoints float64   `json:"totalPoints" db:"total_points"`
	StartedAt   time.Time `json:"startedAt" db:"started_at"`
	SubmittedAt null.Time `json:"submittedAt" db:"submitted_at"`
}

func (a Attempt) IsSubmitted() bool {
	return a.Status == AttemptSubmitted
}

type AttemptAnswer struct {
	ID           string  `json:"id" db:"id"`
	AttemptID    string  `json:"attemptId" db:"attempt_id"`
	QuestionID   string  `json:"questionId" db:"question_id"`
	UserAnswer   string  `json:"userAnswer" db:"user_answer"`
	IsCorrect    bool    `json:"isCorrect" db:"is_correct"`
	PointsEarned float64 `json:"pointsEarned" db:"points_earned"`
}

// AttemptView is what a student sees while taking a quiz.
type AttemptView struct {
	Quiz          Quiz              `json:"quiz"`
	Questions     []QuizQuestion    `json:"questions"`
	AttemptID     string            `json:"attemptId"`
	TimeRemaining *int              `json:"timeRemaining"` // seconds, nil when the quiz has no time limit
	StartedAt     time.Time         `json:"startedAt"`
	Answers       map[string]string `json:"answers"`
}

type Result struct {
	Attempt
	Answers []AttemptAnswer `json:"answers"`
	// Questions carries correct answers only when the quiz shows them.
	Questions []QuizQuestion `json:"questions,omitempty"`
}

// NewQuiz contains information needed to create a Quiz.
type NewQuiz struct {
	Title              string `json:"title" validate:"required,max=200"`
	Description        string `json:"description"`
	TimeLimit          int    `json:"timeLimit" validate:"gte=0"`
	Difficulty         string `json:"difficulty" validate:"omitempty,difficulty"`
	Status             string `json:"status" validate:"omitempty,quizstatus"`
	ShowAnswers        bool   `json:"showAnswers"`
	CheckAnswerEnabled bool   `json:"checkAnswerEnabled"`
}

func (nq *NewQuiz) Clean() {
	nq.Title = core.CleanString(nq.Title)
	nq.Description = core.CleanString(nq.Description)
	nq.Difficulty = strings.ToUpper(core.CleanString(nq.Difficulty))
	if nq.Difficulty == "" {
		nq.Difficulty = question.DifficultyMedium
	}
	nq.Status = strings.ToUpper(core.CleanString(nq.Status))
	if nq.Status == "" {
		nq.Status = StatusDraft
	}
}

// UpdateQuiz holds the optional changes to an existing Quiz.
type UpdateQuiz struct {
	Title              *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description        *string `json:"description"`
	TimeLimit          *int    `json:"timeLimit" validate:"omitempty,gte=0"`
	Difficulty         *string `json:"difficulty" validate:"omitempty,difficulty"`
	Status             *string `json:"status" validate:"omitempty,quizstatus"`
	ShowAnswers        *bool   `json:"showAnswers"`
	CheckAnswerEnabled *bool   `json:"checkAnswerEnabled"`
}

func (uq *UpdateQuiz) Clean() {
	if uq.Title != nil {
		t := core.CleanString(*uq.Title)
		uq.Title = &t
	}
	if uq.Description != nil {
		d := core.CleanString(*uq.Description)
		uq.Description = &d
	}
	if uq.Difficulty != nil {
		d := strings.ToUpper(core.CleanString(*uq.Difficulty))
		uq.Difficulty = &d
	}
	if uq.Status != nil {
		s := strings.ToUpper(core.CleanString(*uq.Status))
		uq.Status = &s
	}
}

func (uq UpdateQuiz) apply(q Quiz) Quiz {
	if uq.Title != nil {
		q.Title = *uq.Title
	}
	if uq.Description != nil {
		q.Description = null.NewString(*uq.Description, *uq.Description != "")
	}
	if uq.TimeLimit != nil {
		q.TimeLimit = *uq.TimeLimit
	}
	if uq.Difficulty != nil {
		q.Difficulty = *uq.Difficulty
	}
	if uq.Status != nil {
		q.Status = *uq.Status
	}
	if uq.ShowAnswers != nil {
		q.ShowAnswers = *uq.ShowAnswers
	}
	if uq.CheckAnswerEnabled != nil {
		q.CheckAnswerEnabled = *uq.CheckAnswerEnabled
	}
	return q
}

type NewQuizQuestion struct {
	QuestionID string   `json:"questionId" validate:"required"`
	Points     *float64 `json:"points" validate:"omitempty,gt=0"`
}

type NewQuizQuestions struct {
	Questions []NewQuizQuestion `json:"questions" validate:"required,min=1,dive"`
}

type NewEnrollments struct {
	UserIDs []string `json:"userIds" validate:"required,min=1,dive,required"`
}

// AvailableFilter narrows the students that may be enrolled in a quiz.
type AvailableFilter struct {
	QuizID string `query:"quizId"`
	Search string `query:"search"`
	Campus string `query:"campus"`
}

// AnswerValue accepts either a string or a list of strings (MULTI_SELECT),
// the latter being joined with question.MultiSelectSeparator.
type AnswerValue string

func (av *AnswerValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*av = AnswerValue(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return errors.New("answer must be a string or a list of strings")
	}
	*av = AnswerValue(strings.Join(list, question.MultiSelectSeparator))
	return nil
}

type Submission struct {
	AttemptID string                 `json:"attemptId" validate:"required"`
	Answers   map[string]AnswerValue `json:"answers"`
}
