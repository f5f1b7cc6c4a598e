// Package result provides a generic success/failure outcome type.
//
// A [Result] holds either a value (Ok) or an error (Err). Steps are chained
// with [AndThen]: once a step fails no later step runs and the first error is
// carried to the end of the chain. Results are consumed with [Match], which
// requires a handler for both variants.
package result

import (
	"errors"
	"fmt"
)

// Result is an immutable outcome holding either a value or an error.
// The zero value is an Ok result holding the zero value of T.
type Result[T any] struct {
	value T
	err   error
}

// Ok returns a successful result holding value.
func Ok[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// Err returns a failed result. A nil err is replaced with a generic error so
// that an Err result can never be mistaken for Ok.
func Err[T any](err error) Result[T] {
	if err == nil {
		err = errors.New("unspecified error")
	}
	return Result[T]{err: err}
}

// Errorf returns a failed result with a formatted error.
func Errorf[T any](format string, args ...any) Result[T] {
	return Err[T](fmt.Errorf(format, args...))
}

// From converts a (value, error) pair into a Result.
func From[T any](value T, err error) Result[T] {
	if err != nil {
		return Err[T](err)
	}
	return Ok(value)
}

// IsOk reports whether the result holds a value.
func (r Result[T]) IsOk() bool {
	return r.err == nil
}

// IsErr reports whether the result holds an error.
func (r Result[T]) IsErr() bool {
	return r.err != nil
}

// Value returns the held value, or the zero value for an Err result.
func (r Result[T]) Value() T {
	return r.value
}

// Err returns the held error, or nil for an Ok result.
func (r Result[T]) Err() error {
	return r.err
}

// Unwrap returns the result as a conventional (value, error) pair.
func (r Result[T]) Unwrap() (T, error) {
	return r.value, r.err
}

// AndThen invokes f with the held value when r is Ok and returns its result.
// When r is Err, r is returned unchanged and f is never invoked.
func (r Result[T]) AndThen(f func(T) Result[T]) Result[T] {
	if r.err != nil {
		return r
	}
	return f(r.value)
}

// Match consumes the result by calling onOk or onErr. Both handlers must be
// supplied.
func (r Result[T]) Match(onOk func(T), onErr func(error)) {
	if onOk == nil || onErr == nil {
		panic("result: Match requires both handlers")
	}
	if r.err != nil {
		onErr(r.err)
		return
	}
	onOk(r.value)
}

// AndThen chains a step that may change the value type. When r is Err the
// error is carried into the new result and f is never invoked.
func AndThen[T, U any](r Result[T], f func(T) Result[U]) Result[U] {
	if r.err != nil {
		return Result[U]{err: r.err}
	}
	return f(r.value)
}

// Match consumes r and returns the value produced by the matching handler.
// Both handlers must be supplied.
func Match[T, R any](r Result[T], onOk func(T) R, onErr func(error) R) R {
	if onOk == nil || onErr == nil {
		panic("result: Match requires both handlers")
	}
	if r.err != nil {
		return onErr(r.err)
	}
	return onOk(r.value)
}

// Any returns the first Ok result. When none succeeded it returns an Err
// joining every individual error in order.
func Any[T any](results ...Result[T]) Result[T] {
	errs := make([]error, 0, len(results))
	for _, r := range results {
		if r.err == nil {
			return r
		}
		errs = append(errs, r.err)
	}
	if len(errs) == 0 {
		return Err[T](errors.New("no results"))
	}
	return Err[T](errors.Join(errs...))
}
