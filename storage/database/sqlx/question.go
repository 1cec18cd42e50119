package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/atomcode/atomq/core"
	"github.com/atomcode/atomq/core/question"
	"github.com/atomcode/atomq/core/user"
)

const questionColumns = `id, group_id, title, content, type, options, correct_answer, explanation, difficulty, is_active, created_at, updated_at`

// questionColumnsAs selects the question columns of alias as a nested "question" struct.
func questionColumnsAs(alias string) string {
	return alias + `.id AS "question.id", ` +
		alias + `.group_id AS "question.group_id", ` +
		alias + `.title AS "question.title", ` +
		alias + `.content AS "question.content", ` +
		alias + `.type AS "question.type", ` +
		alias + `.options AS "question.options", ` +
		alias + `.correct_answer AS "question.correct_answer", ` +
		alias + `.explanation AS "question.explanation", ` +
		alias + `.difficulty AS "question.difficulty", ` +
		alias + `.is_active AS "question.is_active", ` +
		alias + `.created_at AS "question.created_at", ` +
		alias + `.updated_at AS "question.updated_at"`
}

// userSummaryAs selects the summary columns of the users alias as a nested struct named prefix.
func userSummaryAs(alias, prefix string) string {
	return alias + `.id AS "` + prefix + `.id", ` +
		alias + `.name AS "` + prefix + `.name", ` +
		alias + `.email AS "` + prefix + `.email", ` +
		alias + `.avatar AS "` + prefix + `.avatar"`
}

type questionRepository struct {
	repo
}

var _ question.Repository = (*questionRepository)(nil) // interface compliance check

func NewQuestionRepository(exec core.DBExecutor) *questionRepository {
	return &questionRepository{repo{exec: exec}}
}

func (r questionRepository) CreateQuestion(ctx context.Context, q question.Question, exec ...core.DBExecutor) (question.Question, error) {
	q.ID = uuid.NewString()
	if q.Options == nil {
		q.Options = question.Options{}
	}
	_, err := execute(ctx, r.getExec(exec),
		`INSERT INTO questions (`+questionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.GroupID, q.Title, q.Content, q.Type, q.Options, q.CorrectAnswer, q.Explanation,
		q.Difficulty, q.IsActive, q.CreatedAt.UTC(), q.UpdatedAt.UTC(),
	)
	if err != nil {
		return question.Question{}, errors.Wrap(err, "inserting question")
	}
	return q, nil
}

func (r questionRepository) GetQuestionByID(ctx context.Context, id string, exec ...core.DBExecutor) (question.Question, error) {
	var q question.Question
	err := get(ctx, r.getExec(exec), &q, `SELECT `+questionColumns+` FROM questions WHERE id = ?`, id)
	if err != nil {
		return question.Question{}, trapNoRowsErr(err, question.ErrNotFound, "selecting question by id")
	}
	return q, nil
}

func (r questionRepository) GetQuestionsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]question.Question, error) {
	qs := make([]question.Question, 0, len(ids))
	if len(ids) == 0 {
		return qs, nil
	}
	if err := selectIn(ctx, r.getExec(exec), &qs, `SELECT `+questionColumns+` FROM questions WHERE id IN (?)`, ids); err != nil {
		return nil, errors.Wrap(err, "selecting questions by id")
	}
	return qs, nil
}

func (r questionRepository) CreateGroup(ctx context.Context, g question.Group, exec ...core.DBExecutor) (question.Group, error) {
	g.ID = uuid.NewString()
	_, err := execute(ctx, r.getExec(exec),
		`INSERT INTO question_groups (id, name, description, created_at) VALUES (?, ?, ?, ?)`,
		g.ID, g.Name, g.Description, g.CreatedAt.UTC(),
	)
	if err != nil {
		return question.Group{}, errors.Wrap(err, "inserting question group")
	}
	return g, nil
}

func (r questionRepository) GetGroupByID(ctx context.Context, id string, exec ...core.DBExecutor) (question.Group, error) {
	var g question.Group
	err := get(ctx, r.getExec(exec), &g, `SELECT id, name, description, created_at FROM question_groups WHERE id = ?`, id)
	if err != nil {
		return question.Group{}, trapNoRowsErr(err, question.ErrGroupNotFound, "selecting question group")
	}
	return g, nil
}

func (r questionRepository) QueryGroups(ctx context.Context, exec ...core.DBExecutor) ([]question.Group, error) {
	groups := make([]question.Group, 0)
	err := selectAll(ctx, r.getExec(exec), &groups, `SELECT id, name, description, created_at FROM question_groups ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "querying question groups")
	}
	return groups, nil
}

func (r questionRepository) CreateReport(ctx context.Context, rep question.Report, exec ...core.DBExecutor) (question.Report, error) {
	rep.ID = uuid.NewString()
	_, err := execute(ctx, r.getExec(exec),
		`INSERT INTO question_reports (id, question_id, user_id, suggestion, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rep.ID, rep.QuestionID, rep.UserID, rep.Suggestion, rep.Status, rep.CreatedAt.UTC(), rep.UpdatedAt.UTC(),
	)
	if err != nil {
		return question.Report{}, errors.Wrap(err, "inserting report")
	}
	return rep, nil
}

func (r questionRepository) GetReportByID(ctx context.Context, id string, exec ...core.DBExecutor) (question.Report, error) {
	var rep question.Report
	err := get(ctx, r.getExec(exec), &rep,
		`SELECT id, question_id, user_id, suggestion, status, created_at, updated_at FROM question_reports WHERE id = ?`, id)
	if err != nil {
		return question.Report{}, trapNoRowsErr(err, question.ErrReportNotFound, "selecting report")
	}
	return rep, nil
}

type reportRow struct {
	question.Report
	Question question.Question `db:"question"`
	Group    struct {
		ID          null.String `db:"id"`
		Name        null.String `db:"name"`
		Description null.String `db:"description"`
		CreatedAt   null.Time   `db:"created_at"`
	} `db:"grp"`
	User user.Summary `db:"user"`
}

func (row reportRow) detail() question.ReportDetail {
	d := question.ReportDetail{
		Report:   row.Report,
		Question: question.ReportedQuestion{Question: row.Question},
		User:     row.User,
	}
	if row.Group.ID.Valid {
		d.Question.Group = &question.Group{
			ID:          row.Group.ID.String,
			Name:        row.Group.Name.String,
			Description: row.Group.Description,
			CreatedAt:   row.Group.CreatedAt.Time,
		}
	}
	return d
}

func (r questionRepository) QueryGroupReports(ctx context.Context, groupID string, exec ...core.DBExecutor) ([]question.ReportDetail, error) {
	var rows []reportRow
	err := selectAll(ctx, r.getExec(exec), &rows,
		`SELECT rp.id, rp.question_id, rp.user_id, rp.suggestion, rp.status, rp.created_at, rp.updated_at, `+
			questionColumnsAs("q")+`,
			g.id AS "grp.id", g.name AS "grp.name", g.description AS "grp.description", g.created_at AS "grp.created_at", `+
			userSummaryAs("u", "user")+`
		FROM question_reports rp
		JOIN questions q ON q.id = rp.question_id
		LEFT JOIN question_groups g ON g.id = q.group_id
		JOIN users u ON u.id = rp.user_id
		WHERE q.group_id = ?
		ORDER BY rp.created_at DESC`, groupID)
	if err != nil {
		return nil, errors.Wrap(err, "querying group reports")
	}

	reports := make([]question.ReportDetail, 0, len(rows))
	for _, row := range rows {
		reports = append(reports, row.detail())
	}
	return reports, nil
}

func (r questionRepository) UpdateReportStatus(ctx context.Context, id, status string, at time.Time, exec ...core.DBExecutor) error {
	res, err := execute(ctx, r.getExec(exec), `UPDATE question_reports SET status = ?, updated_at = ? WHERE id = ?`, status, at.UTC(), id)
	if err != nil {
		return errors.Wrap(err, "updating report status")
	}
	return mustAffect(res, question.ErrReportNotFound)
}
