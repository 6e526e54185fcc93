// Package require provides minimal, dependency-free test assertions in the
// shape this module's tests need: a handful of functions taking a TestingT
// and failing it immediately on mismatch. It exists so test files do not
// need a third-party assertion library for a handful of equality and
// nil/error checks.
package require

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// TestingT is the subset of *testing.T these assertions need, so they can
// also run against a fake implementation.
type TestingT interface {
	Fatal(args ...interface{})
}

type helper interface {
	Helper()
}

func fail(t TestingT, msg string, expected interface{}, formatWithArgs ...interface{}) {
	if h, ok := t.(helper); ok {
		h.Helper()
	}
	if len(formatWithArgs) > 0 {
		format, ok := formatWithArgs[0].(string)
		if !ok {
			format = fmt.Sprint(formatWithArgs[0])
		}
		extra := fmt.Sprintf(format, formatWithArgs[1:]...)
		msg = fmt.Sprintf("%s: %s", msg, extra)
	}
	t.Fatal(msg)
}

// CapturePanic runs fn and returns the recovered panic value as an error, or
// nil if fn did not panic.
func CapturePanic(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("%v", r)
			}
		}
	}()
	fn()
	return
}

// Equal fails t unless expected and actual are deeply equal.
func Equal(t TestingT, expected, actual interface{}, formatWithArgs ...interface{}) {
	if h, ok := t.(helper); ok {
		h.Helper()
	}
	if !reflect.DeepEqual(expected, actual) {
		fail(t, fmt.Sprintf("expected %#v, but was %#v", expected, actual), expected, formatWithArgs...)
	}
}

// NotEqual fails t if expected and actual are deeply equal.
func NotEqual(t TestingT, expected, actual interface{}, formatWithArgs ...interface{}) {
	if h, ok := t.(helper); ok {
		h.Helper()
	}
	if reflect.DeepEqual(expected, actual) {
		fail(t, fmt.Sprintf("expected to not equal %#v", expected), expected, formatWithArgs...)
	}
}

// Nil fails t unless v is nil.
func Nil(t TestingT, v interface{}, formatWithArgs ...interface{}) {
	if h, ok := t.(helper); ok {
		h.Helper()
	}
	if !isNil(v) {
		fail(t, fmt.Sprintf("expected nil, but was %v", v), nil, formatWithArgs...)
	}
}

// NotNil fails t if v is nil.
func NotNil(t TestingT, v interface{}, formatWithArgs ...interface{}) {
	if h, ok := t.(helper); ok {
		h.Helper()
	}
	if isNil(v) {
		fail(t, "expected to not be nil", nil, formatWithArgs...)
	}
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Ptr, reflect.Slice:
		return rv.IsNil()
	default:
		return false
	}
}

// True fails t unless b is true.
func True(t TestingT, b bool, formatWithArgs ...interface{}) {
	if h, ok := t.(helper); ok {
		h.Helper()
	}
	if !b {
		fail(t, "expected true, but was false", true, formatWithArgs...)
	}
}

// False fails t unless b is false.
func False(t TestingT, b bool, formatWithArgs ...interface{}) {
	if h, ok := t.(helper); ok {
		h.Helper()
	}
	if b {
		fail(t, "expected false, but was true", false, formatWithArgs...)
	}
}

// Zero fails t unless v is the zero value of its type.
func Zero(t TestingT, v interface{}, formatWithArgs ...interface{}) {
	if h, ok := t.(helper); ok {
		h.Helper()
	}
	if !isNil(v) && !reflect.DeepEqual(v, reflect.Zero(reflect.TypeOf(v)).Interface()) {
		fail(t, fmt.Sprintf("expected zero, but was %v", v), nil, formatWithArgs...)
	}
}

// Error fails t unless err is non-nil.
func Error(t TestingT, err error, formatWithArgs ...interface{}) {
	if h, ok := t.(helper); ok {
		h.Helper()
	}
	if err == nil {
		fail(t, "expected an error, but was nil", nil, formatWithArgs...)
	}
}

// NoError fails t unless err is nil.
func NoError(t TestingT, err error, formatWithArgs ...interface{}) {
	if h, ok := t.(helper); ok {
		h.Helper()
	}
	if err != nil {
		fail(t, fmt.Sprintf("expected no error, but was %v", err), nil, formatWithArgs...)
	}
}

// EqualError fails t unless err is non-nil and err.Error() == msg.
func EqualError(t TestingT, err error, msg string, formatWithArgs ...interface{}) {
	if h, ok := t.(helper); ok {
		h.Helper()
	}
	if err == nil {
		fail(t, "expected an error, but was nil", nil, formatWithArgs...)
		return
	}
	if err.Error() != msg {
		fail(t, fmt.Sprintf("expected error %q, but was %q", msg, err.Error()), msg, formatWithArgs...)
	}
}

// ErrorIs fails t unless errors.Is(err, target).
func ErrorIs(t TestingT, err, target error, formatWithArgs ...interface{}) {
	if h, ok := t.(helper); ok {
		h.Helper()
	}
	if !errors.Is(err, target) {
		fail(t, fmt.Sprintf("expected errors.Is(%v, %v), but it wasn't", err, target), nil, formatWithArgs...)
	}
}

// Contains fails t unless haystack contains needle.
func Contains(t TestingT, haystack, needle string, formatWithArgs ...interface{}) {
	if h, ok := t.(helper); ok {
		h.Helper()
	}
	if !strings.Contains(haystack, needle) {
		fail(t, fmt.Sprintf("expected %q to contain %q", haystack, needle), nil, formatWithArgs...)
	}
}

// Same fails t unless a and b are the same pointer.
func Same(t TestingT, a, b interface{}, formatWithArgs ...interface{}) {
	if h, ok := t.(helper); ok {
		h.Helper()
	}
	if reflect.ValueOf(a).Pointer() != reflect.ValueOf(b).Pointer() {
		fail(t, fmt.Sprintf("expected %v and %v to point to the same object", a, b), nil, formatWithArgs...)
	}
}

// NotSame fails t if a and b are the same pointer.
func NotSame(t TestingT, a, b interface{}, formatWithArgs ...interface{}) {
	if h, ok := t.(helper); ok {
		h.Helper()
	}
	if reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer() {
		fail(t, fmt.Sprintf("expected %v to point to a different object", a), nil, formatWithArgs...)
	}
}
