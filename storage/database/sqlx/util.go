package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/atomcode/atomq/core"
)

// repo holds the default executor shared by every repository.
type repo struct {
	exec core.DBExecutor
}

func (r repo) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return r.exec
}

// trapNoRowsErr maps "no rows" to notFound.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func get(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	return sqlx.GetContext(ctx, exec, dest, exec.Rebind(query), args...)
}

func selectAll(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, exec, dest, exec.Rebind(query), args...)
}

func execute(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (sql.Result, error) {
	return exec.ExecContext(ctx, exec.Rebind(query), args...)
}

// selectIn expands the slice arguments of query with sqlx.In before running it.
func selectIn(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	q, inArgs, err := sqlx.In(query, args...)
	if err != nil {
		return err
	}
	return selectAll(ctx, exec, dest, q, inArgs...)
}

// insertIgnore runs an INSERT ... ON CONFLICT DO NOTHING and reports whether a row was written.
func insertIgnore(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (bool, error) {
	res, err := execute(ctx, exec, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// mustAffect returns notFound when res touched no row.
func mustAffect(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// likePattern builds a case-insensitive "contains" LIKE pattern; match it against LOWER(column).
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(s)) + "%"
}

// whereClause joins conditions with AND.
func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}
