package option

import (
	"database/sql/driver"
	"fmt"
)

// Option represents an optional value: every Option is either Some (contains a value) or Nothing (does not).
type Option[T any] struct {
	val   T
	valid bool
}

// Some creates an Option containing the given value.
func Some[T any](val T) Option[T] {
	return Option[T]{val: val, valid: true}
}

// Nothing creates an empty Option.
func Nothing[T any]() Option[T] {
	return Option[T]{}
}

// IsSome returns true if the Option contains a value.
func (o Option[T]) IsSome() bool {
	return o.valid
}

// IsNothing returns true if the Option does not contain a value.
func (o Option[T]) IsNothing() bool {
	return !o.valid
}

// Unwrap returns the contained value.
// Panics if the Option is Nothing.
func (o Option[T]) Unwrap() T {
	if !o.valid {
		panic("called Unwrap on a Nothing Option")
	}
	return o.val
}

// UnwrapOr returns the contained value or the provided default.
func (o Option[T]) UnwrapOr(def T) T {
	if o.valid {
		return o.val
	}
	return def
}

// Map applies a function to the contained value (if Some), or returns Nothing (if Nothing).
func Map[T any, U any](o Option[T], f func(T) U) Option[U] {
	if o.valid {
		return Some(f(o.val))
	}
	return Nothing[U]()
}

// MapOr applies a function to the contained value (if Some), or returns the provided default (if Nothing).
func MapOr[T any, U any](o Option[T], def U, f func(T) U) U {
	if o.valid {
		return f(o.val)
	}
	return def
}

// String implements fmt.Stringer.
func (o Option[T]) String() string {
	if o.valid {
		return fmt.Sprintf("Some(%v)", o.val)
	}
	return "Nothing"
}

// FromPtr returns Nothing for a nil pointer and Some(*p) otherwise.
func FromPtr[T any](p *T) Option[T] {
	if p == nil {
		return Nothing[T]()
	}
	return Some(*p)
}

// Ptr returns nil for Nothing and a pointer to a copy of the value otherwise.
func (o Option[T]) Ptr() *T {
	if !o.valid {
		return nil
	}
	v := o.val
	return &v
}

// Scan implements sql.Scanner: NULL becomes Nothing.
func (o *Option[T]) Scan(src any) error {
	if src == nil {
		*o = Nothing[T]()
		return nil
	}
	if v, ok := src.(T); ok {
		*o = Some(v)
		return nil
	}
	if b, ok := src.([]byte); ok {
		if v, ok := any(string(b)).(T); ok {
			*o = Some(v)
			return nil
		}
	}
	var zero T
	return fmt.Errorf("option: cannot scan %T into Option[%T]", src, zero)
}

// Value implements driver.Valuer: Nothing becomes NULL.
func (o Option[T]) Value() (driver.Value, error) {
	if !o.valid {
		return nil, nil
	}
	return o.val, nil
}
