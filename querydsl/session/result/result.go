package result

import "errors"

var (
	ErrLastInsertIdNotSupported = errors.New("LastInsertId is not supported by this statement")
	ErrRowsAffectedNotSupported = errors.New("RowsAffected is not supported by INSERT ... RETURNING")
)

// Result is returned by DbConnection.Exec. An INSERT ... RETURNING statement
// carries the generated id, every other statement carries the affected row count.
type Result struct {
	lastInsertId int64
	rowsAffected int64
	isInsert     bool
}

func NewInsertResult(lastInsertId int64) Result {
	return Result{lastInsertId: lastInsertId, rowsAffected: 1, isInsert: true}
}

func NewAffectedResult(rowsAffected int64) Result {
	return Result{rowsAffected: rowsAffected}
}

func (r Result) LastInsertId() (int64, error) {
	if !r.isInsert {
		return 0, ErrLastInsertIdNotSupported
	}
	return r.lastInsertId, nil
}

func (r Result) RowsAffected() (int64, error) {
	if r.isInsert {
		return 0, ErrRowsAffectedNotSupported
	}
	return r.rowsAffected, nil
}
