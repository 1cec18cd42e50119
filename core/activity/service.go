package activity

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/atomcode/atomq/core"
	"github.com/atomcode/atomq/core/question"
)

var (
	// errors
	ErrNotFound          = errors.New("Activity not found")
	ErrAccessKeyRequired = errors.New("Access key is required")
	ErrInvalidAccessKey  = errors.New("Invalid access key")
	ErrNotActive         = errors.New("Activity is not currently active")
	ErrAccessKeyExists   = errors.New("Access key already exists")
	ErrInvalidAction     = errors.New("Invalid action")
	ErrAlreadyAnswered   = errors.New("Question already answered")
	ErrNotParticipant    = errors.New("Not a participant of this activity")
	ErrSessionNotFound   = errors.New("Session not found")
)

const defaultQuestionPoints = 1.0

type (
	Repository interface {
		CreateActivity(ctx context.Context, a Activity, exec ...core.DBExecutor) (Activity, error)
		GetActivityByID(ctx context.Context, id string, exec ...core.DBExecutor) (Activity, error)
		GetActivityByKey(ctx context.Context, key string, exec ...core.DBExecutor) (Activity, error)
		GetActivityDetail(ctx context.Context, id string, exec ...core.DBExecutor) (Detail, error)
		QueryActivities(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Detail, error)
		UpdateActivity(ctx context.Context, a Activity, exec ...core.DBExecutor) (Activity, error)
		DeleteActivity(ctx context.Context, id string, exec ...core.DBExecutor) error
		// AccessKeyTaken reports whether another activity than excludeID uses key.
		AccessKeyTaken(ctx context.Context, key, excludeID string, exec ...core.DBExecutor) (bool, error)

		AddQuestion(ctx context.Context, aq ActivityQuestion, exec ...core.DBExecutor) (ActivityQuestion, error)
		// MaxQuestionOrder returns the highest question order of the activity, 0 if it has none.
		MaxQuestionOrder(ctx context.Context, activityID string, exec ...core.DBExecutor) (int, error)
		QueryQuestions(ctx context.Context, activityID string, exec ...core.DBExecutor) ([]ActivityQuestion, error)
		GetActivityQuestion(ctx context.Context, activityID, questionID string, exec ...core.DBExecutor) (ActivityQuestion, error)

		// AddParticipant inserts p unless the user already joined; created is false in that case.
		AddParticipant(ctx context.Context, p Participant, exec ...core.DBExecutor) (created bool, err error)
		GetParticipant(ctx context.Context, activityID, userID string, exec ...core.DBExecutor) (Participant, error)
		// QueryParticipants lists participants ordered by score desc, joinedAt asc.
		QueryParticipants(ctx context.Context, activityID string, exec ...core.DBExecutor) ([]Participant, error)
		IncrementScore(ctx context.Context, participantID string, points int, exec ...core.DBExecutor) error

		// GetOrCreateSession returns the (activity, user) session, inserting s when missing.
		GetOrCreateSession(ctx context.Context, s Session, exec ...core.DBExecutor) (Session, error)
		UpdateSession(ctx context.Context, s Session, exec ...core.DBExecutor) error
		// CreateAnswer stores a; it returns ErrAlreadyAnswered when the session already answered the question.
		CreateAnswer(ctx context.Context, a Answer, exec ...core.DBExecutor) (Answer, error)
		QuerySessionAnswers(ctx context.Context, sessionID string, exec ...core.DBExecutor) ([]AnswerDetail, error)
	}

	Service struct {
		db        core.DB
		repo      Repository
		questions *question.Service
		events    core.EventPublisher
		logger    core.Logger
		now       func() time.Time
	}
)

func NewService(db core.DB, repo Repository, questions *question.Service, events core.EventPublisher, logger core.Logger) *Service {
	return &Service{
		db:        db,
		repo:      repo,
		questions: questions,
		events:    events,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Admin operations

func (svc *Service) List(ctx context.Context, filter QueryFilter) ([]Detail, error) {
	filter.Clean()
	return svc.repo.QueryActivities(ctx, filter)
}

func (svc *Service) Get(ctx context.Context, id string) (Detail, error) {
	return svc.repo.GetActivityDetail(ctx, id)
}

func (svc *Service) Create(ctx context.Context, validate *validator.Validate, creatorID string, na NewActivity) (Detail, error) {
	na.Clean()
	if err := validate.Struct(na); err != nil {
		return Detail{}, err
	}
	if err := svc.checkAccessKey(ctx, na.AccessKey, ""); err != nil {
		return Detail{}, err
	}

	now := svc.now()
	a := Activity{
		Title:       na.Title,
		Description: null.NewString(na.Description, na.Description != ""),
		AccessKey:   na.AccessKey,
		Status:      na.Status,
		CreatorID:   creatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if na.StartTime != nil {
		a.StartTime = null.TimeFrom(na.StartTime.UTC())
	}
	if na.EndTime != nil {
		a.EndTime = null.TimeFrom(na.EndTime.UTC())
	}

	a, err := svc.repo.CreateActivity(ctx, a)
	if err != nil {
		return Detail{}, errors.Wrap(err, "creating activity")
	}
	return svc.repo.GetActivityDetail(ctx, a.ID)
}

func (svc *Service) Update(ctx context.Context, validate *validator.Validate, id string, ua UpdateActivity) (Detail, error) {
	ua.Clean()
	if err := validate.Struct(ua); err != nil {
		return Detail{}, err
	}
	a, err := svc.repo.GetActivityByID(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if ua.AccessKey != nil && *ua.AccessKey != a.AccessKey {
		if err := svc.checkAccessKey(ctx, *ua.AccessKey, a.ID); err != nil {
			return Detail{}, err
		}
	}

	a = ua.apply(a)
	if a.StartTime.Valid && a.EndTime.Valid && !a.EndTime.Time.After(a.StartTime.Time) {
		return Detail{}, core.NewValidationError(nil, core.FieldError{Field: "endTime", Error: timeRangeText})
	}
	a.UpdatedAt = svc.now()
	if _, err := svc.repo.UpdateActivity(ctx, a); err != nil {
		return Detail{}, errors.Wrap(err, "updating activity")
	}
	return svc.repo.GetActivityDetail(ctx, a.ID)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	if _, err := svc.repo.GetActivityByID(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteActivity(ctx, id)
}

func (svc *Service) checkAccessKey(ctx context.Context, key, excludeID string) error {
	taken, err := svc.repo.AccessKeyTaken(ctx, key, excludeID)
	if err != nil {
		return errors.Wrap(err, "checking access key")
	}
	if taken {
		return core.NewValidationError(ErrAccessKeyExists)
	}
	return nil
}

func (svc *Service) Questions(ctx context.Context, activityID string) ([]ActivityQuestion, error) {
	if _, err := svc.repo.GetActivityByID(ctx, activityID); err != nil {
		return nil, err
	}
	return svc.repo.QueryQuestions(ctx, activityID)
}

// AddQuestion creates a question and links it to the activity in a single transaction.
func (svc *Service) AddQuestion(ctx context.Context, validate *validator.Validate, activityID string, naq NewActivityQuestion) (ActivityQuestion, error) {
	if err := validate.Struct(naq); err != nil {
		return ActivityQuestion{}, err
	}
	if _, err := svc.repo.GetActivityByID(ctx, activityID); err != nil {
		return ActivityQuestion{}, err
	}

	var aq ActivityQuestion
	err := core.InTx(ctx, svc.db, func(tx core.DBTransactor) error {
		q, err := svc.questions.Create(ctx, validate, naq.NewQuestion, tx)
		if err != nil {
			return err
		}

		order := 0
		if naq.Order != nil {
			order = *naq.Order
		} else {
			last, err := svc.repo.MaxQuestionOrder(ctx, activityID, tx)
			if err != nil {
				return errors.Wrap(err, "finding question order")
			}
			order = last + 1
		}
		points := defaultQuestionPoints
		if naq.Points != nil {
			points = *naq.Points
		}

		aq, err = svc.repo.AddQuestion(ctx, ActivityQuestion{
			ActivityID: activityID,
			QuestionID: q.ID,
			Order:      order,
			Points:     points,
		}, tx)
		if err != nil {
			return errors.Wrap(err, "linking question")
		}
		aq.Question = q
		return nil
	})
	return aq, err
}

// Play operations

// Join adds the user to the ACTIVE activity identified by key. Joining twice is a no-op.
func (svc *Service) Join(ctx context.Context, key, userID string) (Detail, error) {
	key = core.CleanAccessKey(key)
	if key == "" {
		return Detail{}, core.NewValidationError(ErrAccessKeyRequired)
	}
	a, err := svc.repo.GetActivityByKey(ctx, key)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Detail{}, ErrInvalidAccessKey
		}
		return Detail{}, err
	}
	if !a.IsActive() {
		return Detail{}, core.NewValidationError(ErrNotActive)
	}

	created, err := svc.repo.AddParticipant(ctx, Participant{
		ActivityID: a.ID,
		UserID:     userID,
		JoinedAt:   svc.now(),
	})
	if err != nil {
		return Detail{}, errors.Wrap(err, "adding participant")
	}
	if created {
		svc.publish(ctx, core.Event{Type: core.EventParticipantJoined, ActivityID: a.ID, UserID: userID})
	}
	return svc.repo.GetActivityDetail(ctx, a.ID)
}

// Session returns the caller's session in the activity, creating a WAITING one on first access.
func (svc *Service) Session(ctx context.Context, key, userID string) (Session, error) {
	a, err := svc.repo.GetActivityByKey(ctx, core.CleanAccessKey(key))
	if err != nil {
		return Session{}, err
	}
	s, err := svc.session(ctx, a.ID, userID)
	if err != nil {
		return Session{}, err
	}
	return svc.withAnswers(ctx, s)
}

func (svc *Service) session(ctx context.Context, activityID, userID string, exec ...core.DBExecutor) (Session, error) {
	now := svc.now()
	s, err := svc.repo.GetOrCreateSession(ctx, Session{
		ActivityID: activityID,
		UserID:     userID,
		Status:     SessionWaiting,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, exec...)
	return s, errors.Wrap(err, "loading session")
}

func (svc *Service) withAnswers(ctx context.Context, s Session) (Session, error) {
	answers, err := svc.repo.QuerySessionAnswers(ctx, s.ID)
	if err != nil {
		return Session{}, errors.Wrap(err, "loading session answers")
	}
	s.Answers = answers
	return s, nil
}

// Play dispatches a session action ("start" or "answer") for a participant.
// Answering returns the stored answer; starting returns the session.
func (svc *Service) Play(ctx context.Context, validate *validator.Validate, key, userID string, req SessionRequest) (interface{}, error) {
	a, err := svc.repo.GetActivityByKey(ctx, core.CleanAccessKey(key))
	if err != nil {
		return nil, err
	}
	p, err := svc.repo.GetParticipant(ctx, a.ID, userID)
	if err != nil {
		if errors.Cause(err) == ErrNotParticipant {
			return nil, err
		}
		return nil, errors.Wrap(err, "finding participant")
	}

	switch req.Action {
	case ActionStart:
		return svc.start(ctx, a, userID)
	case ActionAnswer:
		if err := validate.Struct(req); err != nil {
			return nil, err
		}
		return svc.answer(ctx, a, p, req)
	default:
		return nil, core.NewValidationError(ErrInvalidAction)
	}
}

func (svc *Service) start(ctx context.Context, a Activity, userID string) (Session, error) {
	s, err := svc.session(ctx, a.ID, userID)
	if err != nil {
		return Session{}, err
	}
	now := svc.now()
	s.Status = SessionPlaying
	s.StartTime = null.TimeFrom(now)
	s.CurrentQuestion = 0
	s.UpdatedAt = now
	if err := svc.repo.UpdateSession(ctx, s); err != nil {
		return Session{}, errors.Wrap(err, "starting session")
	}
	svc.publish(ctx, core.Event{Type: core.EventSessionStarted, ActivityID: a.ID, UserID: userID})
	return svc.withAnswers(ctx, s)
}

func (svc *Service) answer(ctx context.Context, a Activity, p Participant, req SessionRequest) (Answer, error) {
	if req.QuestionID == "" || req.UserAnswer == nil {
		return Answer{}, core.NewValidationError(ErrInvalidAction)
	}
	aq, err := svc.repo.GetActivityQuestion(ctx, a.ID, req.QuestionID)
	if err != nil {
		return Answer{}, err
	}

	correct := aq.Question.CheckAnswer(*req.UserAnswer)
	var ans Answer
	err = core.InTx(ctx, svc.db, func(tx core.DBTransactor) error {
		s, err := svc.session(ctx, a.ID, p.UserID, tx)
		if err != nil {
			return err
		}
		ans, err = svc.repo.CreateAnswer(ctx, Answer{
			SessionID:    s.ID,
			QuestionID:   aq.QuestionID,
			UserAnswer:   *req.UserAnswer,
			IsCorrect:    correct,
			PointsEarned: Points(correct, req.TimeSpent),
			TimeSpent:    req.TimeSpent,
			CreatedAt:    svc.now(),
		}, tx)
		if err != nil {
			if errors.Cause(err) == ErrAlreadyAnswered {
				return core.NewValidationError(ErrAlreadyAnswered)
			}
			return errors.Wrap(err, "storing answer")
		}
		if err := svc.repo.IncrementScore(ctx, p.ID, ans.PointsEarned, tx); err != nil {
			return errors.Wrap(err, "updating score")
		}
		s.CurrentQuestion++
		s.UpdatedAt = ans.CreatedAt
		return errors.Wrap(svc.repo.UpdateSession(ctx, s, tx), "advancing session")
	})
	if err != nil {
		return Answer{}, err
	}

	svc.publish(ctx, core.Event{
		Type:       core.EventAnswerRecorded,
		ActivityID: a.ID,
		UserID:     p.UserID,
		Data: map[string]interface{}{
			"questionId":   ans.QuestionID,
			"isCorrect":    ans.IsCorrect,
			"pointsEarned": ans.PointsEarned,
		},
	})
	return ans, nil
}

// Leaderboard ranks participants by score desc then joinedAt asc, starting at 1.
func (svc *Service) Leaderboard(ctx context.Context, key string) ([]LeaderboardEntry, error) {
	participants, err := svc.Participants(ctx, key)
	if err != nil {
		return nil, err
	}
	board := make([]LeaderboardEntry, len(participants))
	for i, p := range participants {
		board[i] = LeaderboardEntry{Participant: p, Rank: i + 1}
	}
	return board, nil
}

func (svc *Service) Participants(ctx context.Context, key string) ([]Participant, error) {
	a, err := svc.repo.GetActivityByKey(ctx, core.CleanAccessKey(key))
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryParticipants(ctx, a.ID)
}

func (svc *Service) publish(ctx context.Context, e core.Event) {
	if svc.events == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = svc.now()
	}
	if err := svc.events.Publish(ctx, e); err != nil {
		svc.logger.Warn("publishing activity event", err, map[string]interface{}{"type": e.Type, "activityId": e.ActivityID})
	}
}
