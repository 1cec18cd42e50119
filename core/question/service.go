package question

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/atomcode/atomq/core"
)

var (
	// errors
	ErrNotFound       = errors.New("Question not found")
	ErrGroupNotFound  = errors.New("Question group not found")
	ErrReportNotFound = errors.New("Report not found")
)

type (
	Repository interface {
		CreateQuestion(ctx context.Context, q Question, exec ...core.DBExecutor) (Question, error)
		GetQuestionByID(ctx context.Context, id string, exec ...core.DBExecutor) (Question, error)
		GetQuestionsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]Question, error)

		CreateGroup(ctx context.Context, g Group, exec ...core.DBExecutor) (Group, error)
		GetGroupByID(ctx context.Context, id string, exec ...core.DBExecutor) (Group, error)
		QueryGroups(ctx context.Context, exec ...core.DBExecutor) ([]Group, error)

		CreateReport(ctx context.Context, r Report, exec ...core.DBExecutor) (Report, error)
		GetReportByID(ctx context.Context, id string, exec ...core.DBExecutor) (Report, error)
		// QueryGroupReports lists reports on the questions of a group, newest first.
		QueryGroupReports(ctx context.Context, groupID string, exec ...core.DBExecutor) ([]ReportDetail, error)
		UpdateReportStatus(ctx context.Context, id, status string, at time.Time, exec ...core.DBExecutor) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates and stores a new question. exec lets callers create it inside their transaction.
func (svc *Service) Create(ctx context.Context, validate *validator.Validate, nq NewQuestion, exec ...core.DBExecutor) (Question, error) {
	nq.Clean()
	if nq.Type == TypeTrueFalse && len(nq.Options) == 0 {
		nq.Options = trueFalseOptions
	}
	if err := validate.Struct(nq); err != nil {
		return Question{}, err
	}
	if nq.GroupID != "" {
		if _, err := svc.repo.GetGroupByID(ctx, nq.GroupID, exec...); err != nil {
			if errors.Cause(err) == ErrGroupNotFound {
				return Question{}, core.NewValidationError(err, core.FieldError{Field: "groupId", Error: err.Error()})
			}
			return Question{}, errors.Wrap(err, "finding question group")
		}
	}

	isActive := true
	if nq.IsActive != nil {
		isActive = *nq.IsActive
	}
	now := time.Now().UTC()
	q := Question{
		GroupID:       null.NewString(nq.GroupID, nq.GroupID != ""),
		Title:         nq.Title,
		Content:       nq.Content,
		Type:          nq.Type,
		Options:       nq.Options,
		CorrectAnswer: nq.CorrectAnswer,
		Explanation:   null.NewString(nq.Explanation, nq.Explanation != ""),
		Difficulty:    nq.Difficulty,
		IsActive:      isActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return svc.repo.CreateQuestion(ctx, q, exec...)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Question, error) {
	return svc.repo.GetQuestionByID(ctx, id)
}

func (svc *Service) GetManyByID(ctx context.Context, ids []string) ([]Question, error) {
	return svc.repo.GetQuestionsByID(ctx, ids)
}

func (svc *Service) CreateGroup(ctx context.Context, validate *validator.Validate, ng NewGroup) (Group, error) {
	ng.Name = core.CleanString(ng.Name)
	ng.Description = core.CleanString(ng.Description)
	if err := validate.Struct(ng); err != nil {
		return Group{}, err
	}
	return svc.repo.CreateGroup(ctx, Group{
		Name:        ng.Name,
		Description: null.NewString(ng.Description, ng.Description != ""),
		CreatedAt:   time.Now().UTC(),
	})
}

func (svc *Service) Groups(ctx context.Context) ([]Group, error) {
	return svc.repo.QueryGroups(ctx)
}

// Report files a user suggestion against a question.
func (svc *Service) Report(ctx context.Context, validate *validator.Validate, questionID, userID string, nr NewReport) (Report, error) {
	nr.Suggestion = core.CleanString(nr.Suggestion)
	if err := validate.Struct(nr); err != nil {
		return Report{}, err
	}
	if _, err := svc.repo.GetQuestionByID(ctx, questionID); err != nil {
		return Report{}, err
	}
	now := time.Now().UTC()
	return svc.repo.CreateReport(ctx, Report{
		QuestionID: questionID,
		UserID:     userID,
		Suggestion: nr.Suggestion,
		Status:     ReportPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

func (svc *Service) GroupReports(ctx context.Context, groupID string) ([]ReportDetail, error) {
	if _, err := svc.repo.GetGroupByID(ctx, groupID); err != nil {
		return nil, err
	}
	return svc.repo.QueryGroupReports(ctx, groupID)
}

// UpdateReport changes the status of a report filed on one of the group's questions.
func (svc *Service) UpdateReport(ctx context.Context, validate *validator.Validate, groupID string, ur UpdateReport) (Report, error) {
	if err := validate.Struct(ur); err != nil {
		return Report{}, err
	}
	r, err := svc.repo.GetReportByID(ctx, ur.ReportID)
	if err != nil {
		return Report{}, err
	}
	q, err := svc.repo.GetQuestionByID(ctx, r.QuestionID)
	if err != nil {
		return Report{}, errors.Wrap(err, "finding reported question")
	}
	if q.GroupID.String != groupID {
		return Report{}, ErrReportNotFound
	}

	now := time.Now().UTC()
	if err := svc.repo.UpdateReportStatus(ctx, r.ID, ur.Status, now); err != nil {
		return Report{}, errors.Wrap(err, "updating report status")
	}
	r.Status = ur.Status
	r.UpdatedAt = now
	return r, nil
}
