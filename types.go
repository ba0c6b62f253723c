package nact

import (
	"reflect"
)

var (
	contextType = reflect.TypeOf((*Context)(nil)).Elem()
	resultType  = reflect.TypeOf((*Result)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

func isContextType(t reflect.Type) bool {
	return t.Implements(contextType)
}

func isResultType(t reflect.Type) bool {
	return t.Implements(resultType)
}

func isErrorType(t reflect.Type) bool {
	return t.Implements(errorType)
}

// canBeNil reports if reflect.Value.IsNil may be called on a kind
func canBeNil(k reflect.Kind) bool {
	switch k {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Ptr, reflect.Slice:
		return true
	default:
		return false
	}
}

// valueOf converts an interface{} to a reflect.Value of type t.  A
// nil interface becomes the zero value of t.  Only named types over
// the same kind are converted: an int never becomes a string and a
// float64 never becomes an int.
func valueOf(i interface{}, t reflect.Type) reflect.Value {
	if i == nil {
		return reflect.Zero(t)
	}
	v := reflect.ValueOf(i)
	if v.Type() != t && v.Kind() == t.Kind() && !v.Type().AssignableTo(t) && v.Type().ConvertibleTo(t) {
		return v.Convert(t)
	}
	return v
}

// interfaceOf converts a reflect.Value to interface{}, mapping typed
// nils to untyped nil.
func interfaceOf(v reflect.Value) interface{} {
	if !v.IsValid() {
		return nil
	}
	if canBeNil(v.Kind()) && v.IsNil() {
		return nil
	}
	return v.Interface()
}
