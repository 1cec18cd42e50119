package activity

import (
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/atomcode/atomq/core"
	"github.com/atomcode/atomq/core/question"
	"github.com/atomcode/atomq/core/user"
)

// Activity statuses
const (
	StatusDraft     = "DRAFT"
	StatusActive    = "ACTIVE"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

// Session statuses
const (
	SessionWaiting = "WAITING"
	SessionPlaying = "PLAYING"
)

// Session actions
const (
	ActionStart  = "start"
	ActionAnswer = "answer"
)

var AllStatuses = []string{StatusDraft, StatusActive, StatusCompleted, StatusCancelled}

type Activity struct {
	ID          string      `json:"id" db:"id"`
	Title       string      `json:"title" db:"title"`
	Description null.String `json:"description" db:"description"`
	AccessKey   string      `json:"accessKey" db:"access_key"`
	Status      string      `json:"status" db:"status"`
	StartTime   null.Time   `json:"startTime" db:"start_time"`
	EndTime     null.Time   `json:"endTime" db:"end_time"`
	CreatorID   string      `json:"creatorId" db:"creator_id"`
	CreatedAt   time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time   `json:"updatedAt" db:"updated_at"`
}

func (a Activity) IsActive() bool {
	return a.Status == StatusActive
}

type Counts struct {
	Questions    int `json:"questions" db:"questions"`
	Participants int `json:"participants" db:"participants"`
	Sessions     int `json:"sessions" db:"sessions"`
}

// Detail is an Activity with its creator and related row counts.
type Detail struct {
	Activity
	Creator user.Summary `json:"creator" db:"creator"`
	Count   Counts       `json:"_count" db:"_count"`
}

type ActivityQuestion struct {
	ID         string            `json:"id" db:"id"`
	ActivityID string            `json:"activityId" db:"activity_id"`
	QuestionID string            `json:"questionId" db:"question_id"`
	Order      int               `json:"order" db:"position"`
	Points     float64           `json:"points" db:"points"`
	Question   question.Question `json:"question" db:"question"`
}

type Participant struct {
	ID         string       `json:"id" db:"id"`
	ActivityID string       `json:"activityId" db:"activity_id"`
	UserID     string       `json:"userId" db:"user_id"`
	Score      int          `json:"score" db:"score"`
	JoinedAt   time.Time    `json:"joinedAt" db:"joined_at"`
	User       user.Summary `json:"user" db:"user"`
}

type LeaderboardEntry struct {
	Participant
	Rank int `json:"rank"`
}

type Session struct {
	ID              string         `json:"id" db:"id"`
	ActivityID      string         `json:"activityId" db:"activity_id"`
	UserID          string         `json:"userId" db:"user_id"`
	Status          string         `json:"status" db:"status"`
	CurrentQuestion int            `json:"currentQuestion" db:"current_question"`
	StartTime       null.Time      `json:"startTime" db:"start_time"`
	CreatedAt       time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time      `json:"updatedAt" db:"updated_at"`
	Answers         []AnswerDetail `json:"answers" db:"-"`
}

type Answer struct {
	ID           string    `json:"id" db:"id"`
	SessionID    string    `json:"sessionId" db:"session_id"`
	QuestionID   string    `json:"questionId" db:"question_id"`
	UserAnswer   string    `json:"userAnswer" db:"user_answer"`
	IsCorrect    bool      `json:"isCorrect" db:"is_correct"`
	PointsEarned int       `json:"pointsEarned" db:"points_earned"`
	TimeSpent    float64   `json:"timeSpent" db:"time_spent"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

type AnswerDetail struct {
	Answer
	Question question.Question `json:"question" db:"question"`
}

// NewActivity contains information needed to create an Activity.
type NewActivity struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description"`
	AccessKey   string     `json:"accessKey" validate:"required,accesskey"`
	Status      string     `json:"status" validate:"omitempty,activitystatus"`
	StartTime   *time.Time `json:"startTime"`
	EndTime     *time.Time `json:"endTime"`
}

func (na *NewActivity) Clean() {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	na.AccessKey = core.CleanAccessKey(na.AccessKey)
	na.Status = strings.ToUpper(core.CleanString(na.Status))
	if na.Status == "" {
		na.Status = StatusDraft
	}
}

// UpdateActivity defines what information may be provided to modify an existing Activity.
// Nil fields are left untouched.
type UpdateActivity struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description"`
	AccessKey   *string    `json:"accessKey" validate:"omitempty,accesskey"`
	Status      *string    `json:"status" validate:"omitempty,activitystatus"`
	StartTime   *time.Time `json:"startTime"`
	EndTime     *time.Time `json:"endTime"`
}

func (ua *UpdateActivity) Clean() {
	if ua.Title != nil {
		t := core.CleanString(*ua.Title)
		ua.Title = &t
	}
	if ua.Description != nil {
		d := core.CleanString(*ua.Description)
		ua.Description = &d
	}
	if ua.AccessKey != nil {
		k := core.CleanAccessKey(*ua.AccessKey)
		ua.AccessKey = &k
	}
	if ua.Status != nil {
		s := strings.ToUpper(core.CleanString(*ua.Status))
		ua.Status = &s
	}
}

func (ua UpdateActivity) apply(a Activity) Activity {
	if ua.Title != nil {
		a.Title = *ua.Title
	}
	if ua.Description != nil {
		a.Description = null.NewString(*ua.Description, *ua.Description != "")
	}
	if ua.AccessKey != nil {
		a.AccessKey = *ua.AccessKey
	}
	if ua.Status != nil {
		a.Status = *ua.Status
	}
	if ua.StartTime != nil {
		a.StartTime = null.TimeFrom(ua.StartTime.UTC())
	}
	if ua.EndTime != nil {
		a.EndTime = null.TimeFrom(ua.EndTime.UTC())
	}
	return a
}

// NewActivityQuestion creates a question and links it to an activity.
type NewActivityQuestion struct {
	question.NewQuestion `validate:"-"`
	Order                *int     `json:"order" validate:"omitempty,gte=0"`
	Points               *float64 `json:"points" validate:"omitempty,gt=0"`
}

// SessionRequest is the body of a session action.
type SessionRequest struct {
	Action     string  `json:"action"`
	QuestionID string  `json:"questionId"`
	UserAnswer *string `json:"userAnswer"`
	TimeSpent  float64 `json:"timeSpent"`
}

type QueryFilter struct {
	Status string `query:"status"`
}

func (qf *QueryFilter) Clean() {
	qf.Status = strings.ToUpper(core.CleanString(qf.Status))
}
