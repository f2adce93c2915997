// Package sqlxrepos implements the core repositories over sqlx.
// Queries are written with `?` placeholders and rebound for the driver, so they run on postgres and sqlite.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/spadesk/core"
)

type baseRepo struct {
	exec core.DBExecutor
}

func (repo baseRepo) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

func isPgError(err error, code string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == code
	}
	return false
}

func isUniqueViolation(err error) bool {
	return isPgError(err, pgerrcode.UniqueViolation) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return isPgError(err, pgerrcode.ForeignKeyViolation) || strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// whereClause accumulates AND-ed conditions and their args.
type whereClause struct {
	conds []string
	args  []interface{}
}

func (w *whereClause) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

// search matches the lowered term against any of cols.
func (w *whereClause) search(term string, cols ...string) {
	if term == "" || len(cols) == 0 {
		return
	}
	pattern := "%" + strings.ToLower(term) + "%"
	likes := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	for i, col := range cols {
		likes[i] = "LOWER(" + col + ") LIKE ?"
		args[i] = pattern
	}
	w.add("("+strings.Join(likes, " OR ")+")", args...)
}

func (w *whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// orderBy renders the ordering, keeping only the fields present in columns ({field: column}).
func orderBy(ordering []core.DBOrdering, columns map[string]string, fallback string) string {
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if col, ok := columns[ord.Field]; ok {
			parts = append(parts, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	if len(parts) == 0 {
		return " ORDER BY " + fallback
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

// bind expands slice args and rebinds the placeholders for the driver of exec.
func bind(exec core.DBExecutor, query string, args ...interface{}) (string, []interface{}, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return exec.Rebind(query), args, nil
}

func selectContext(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	query, args, err := bind(exec, query, args...)
	if err != nil {
		return err
	}
	return sqlx.SelectContext(ctx, exec, dest, query, args...)
}

func getContext(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	query, args, err := bind(exec, query, args...)
	if err != nil {
		return err
	}
	return sqlx.GetContext(ctx, exec, dest, query, args...)
}

func execContext(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (sql.Result, error) {
	query, args, err := bind(exec, query, args...)
	if err != nil {
		return nil, err
	}
	return exec.ExecContext(ctx, query, args...)
}

// namedExec runs a named query (`:field` placeholders) with arg.
func namedExec(ctx context.Context, exec core.DBExecutor, query string, arg interface{}) error {
	query, args, err := sqlx.Named(query, arg)
	if err != nil {
		return err
	}
	_, err = exec.ExecContext(ctx, exec.Rebind(query), args...)
	return err
}

// queryPage counts the rows matching where then selects one page of them into dest.
func queryPage(
	ctx context.Context, exec core.DBExecutor, dest interface{},
	selectCols, from string, where whereClause, order string, page core.Page,
) (int, error) {
	var count int
	if err := getContext(ctx, exec, &count, "SELECT COUNT(*) FROM "+from+where.String(), where.args...); err != nil {
		return 0, errors.Wrap(err, "counting rows")
	}
	if count == 0 {
		return 0, nil
	}

	args := append(append([]interface{}(nil), where.args...), page.Limit(), page.Offset())
	query := "SELECT " + selectCols + " FROM " + from + where.String() + order + " LIMIT ? OFFSET ?"
	if err := selectContext(ctx, exec, dest, query, args...); err != nil {
		return 0, errors.Wrap(err, "selecting rows")
	}
	return count, nil
}

func exists(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (bool, error) {
	var n int
	if err := getContext(ctx, exec, &n, "SELECT COUNT(*) FROM ("+query+") sub", args...); err != nil {
		return false, err
	}
	return n > 0, nil
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return t.UTC()
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}
