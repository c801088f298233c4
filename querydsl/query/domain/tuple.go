package query

import (
	"database/sql"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-querydsl-go/querydsl/option"
)

// Tuple is one row of a multi-column projection. Entity projections occupy
// a single position holding the hydrated entity.
type Tuple struct {
	values []any
}

func NewTuple(values ...any) Tuple {
	return Tuple{values: values}
}

func (t Tuple) Len() int {
	return len(t.values)
}

func (t Tuple) Values() []any {
	return t.values
}

func (t Tuple) Value(i int) any {
	return t.values[i]
}

func (t Tuple) Int64(i int) (int64, error) {
	return Get[int64](t, i)
}

func (t Tuple) Float64(i int) (float64, error) {
	return Get[float64](t, i)
}

func (t Tuple) String(i int) (string, error) {
	return Get[string](t, i)
}

func (t Tuple) NullString(i int) (option.Option[string], error) {
	return Get[option.Option[string]](t, i)
}

func (t Tuple) Entity(i int) any {
	return t.values[i]
}

// Text renders the tuple as [v1, v2, ...].
func (t Tuple) Text() string {
	parts := make([]string, len(t.values))
	for i, v := range t.values {
		parts[i] = formatValue(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case pgtype.Numeric:
		if f, err := val.Float64Value(); err == nil && f.Valid {
			return fmt.Sprint(f.Float64)
		}
	case fmt.Stringer:
		return val.String()
	}
	return fmt.Sprint(v)
}

// Get converts the i-th value of t to T.
func Get[T any](t Tuple, i int) (T, error) {
	if i < 0 || i >= len(t.values) {
		var zero T
		return zero, errors.Errorf("tuple index %d out of range [0, %d)", i, len(t.values))
	}
	return Convert[T](t.values[i])
}

// Convert adapts a scanned database value to T. Integer widths and
// numeric are widened as needed; NULL converts to the zero value of
// nilable types and to Nothing for option.Option.
func Convert[T any](value any) (T, error) {
	var out T
	if v, ok := value.(T); ok {
		return v, nil
	}
	if scanner, ok := any(&out).(sql.Scanner); ok {
		err := scanner.Scan(value)
		return out, err
	}
	if value == nil {
		switch reflect.TypeOf((*T)(nil)).Elem().Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
			return out, nil
		}
		return out, ErrNullValue
	}

	var err error
	switch p := any(&out).(type) {
	case *int64:
		*p, err = toInt64(value)
	case *int:
		var n int64
		n, err = toInt64(value)
		*p = int(n)
	case *int32:
		var n int64
		n, err = toInt64(value)
		if err == nil && (n > math.MaxInt32 || n < math.MinInt32) {
			err = errors.Errorf("%d overflows int32", n)
		}
		*p = int32(n)
	case *float64:
		*p, err = toFloat64(value)
	case *string:
		*p, err = toString(value)
	default:
		err = errors.Errorf("cannot convert %T to %T", value, out)
	}
	return out, err
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v == math.Trunc(v) {
			return int64(v), nil
		}
	case pgtype.Numeric:
		n, err := v.Int64Value()
		if err != nil {
			return 0, errors.Wrap(err, "numeric to int64")
		}
		if !n.Valid {
			return 0, ErrNullValue
		}
		return n.Int64, nil
	}
	return 0, errors.Errorf("cannot convert %T to int64", value)
}

func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int, int16, int32, int64:
		n, err := toInt64(v)
		return float64(n), err
	case pgtype.Numeric:
		f, err := v.Float64Value()
		if err != nil {
			return 0, errors.Wrap(err, "numeric to float64")
		}
		if !f.Valid {
			return 0, ErrNullValue
		}
		return f.Float64, nil
	}
	return 0, errors.Errorf("cannot convert %T to float64", value)
}

func toString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	}
	return "", errors.Errorf("cannot convert %T to string", value)
}
