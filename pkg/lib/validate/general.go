package validate

import (
	"fmt"
	"reflect"
)

func createError(msg string, args ...any) error {
	return fmt.Errorf(msg, args...)
}

// NotNil checks the provided value is not nil, including typed nil pointers,
// maps, slices and interfaces. It returns an error built from the provided
// message and arguments otherwise.
func NotNil(value any, msg string, args ...any) error {
	if value == nil {
		return createError(msg, args...)
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		if v.IsNil() {
			return createError(msg, args...)
		}
	}
	return nil
}

// NotBlank checks the provided string is not empty.
func NotBlank(value string, msg string, args ...any) error {
	if value == "" {
		return createError(msg, args...)
	}
	return nil
}
