package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/billing"
)

type counterRepository struct {
	baseRepo
}

var _ billing.Sequencer = (*counterRepository)(nil) // interface compliance check

func NewCounterRepository(exec core.DBExecutor) *counterRepository {
	return &counterRepository{baseRepo{exec: exec}}
}

// Next increments the counter first so concurrent transactions queue on the row lock.
func (repo counterRepository) Next(ctx context.Context, counter string, exec ...core.DBExecutor) (int64, error) {
	exe := repo.getExec(exec)
	res, err := execContext(ctx, exe, "UPDATE counter SET value = value + 1 WHERE name = ?", counter)
	if err != nil {
		return 0, errors.Wrapf(err, "incrementing %s counter", counter)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrapf(err, "incrementing %s counter", counter)
	}
	if n == 0 {
		if _, err = execContext(ctx, exe, "INSERT INTO counter (name, value) VALUES (?, 1)", counter); err != nil {
			return 0, errors.Wrapf(err, "creating %s counter", counter)
		}
		return 1, nil
	}

	var value int64
	if err = getContext(ctx, exe, &value, "SELECT value FROM counter WHERE name = ?", counter); err != nil {
		return 0, errors.Wrapf(err, "reading %s counter", counter)
	}
	return value, nil
}
