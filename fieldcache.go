package nact

import (
	"reflect"
	"sync"

	"github.com/muir/reflectutils"
	"github.com/pkg/errors"
)

// fieldSetter assigns the context to a field of a controller.  The
// controller must be a pointer to a struct.
type fieldSetter func(controller reflect.Value, ctx Context) error

var (
	fieldSetters = make(map[string]fieldSetter)
	fieldLock    sync.RWMutex
)

func fieldSetterKey(t reflect.Type, field string) string {
	return reflectutils.TypeName(t) + "." + field
}

// getFieldSetter returns the setter for t.field, building it if it is
// not yet cached.  Only one setter is ever stored per key.
func getFieldSetter(t reflect.Type, field string) (fieldSetter, error) {
	key := fieldSetterKey(t, field)
	fieldLock.RLock()
	fs, ok := fieldSetters[key]
	fieldLock.RUnlock()
	if ok {
		return fs, nil
	}

	fieldLock.Lock()
	defer fieldLock.Unlock()
	if fs, ok := fieldSetters[key]; ok {
		return fs, nil
	}
	fs, err := makeFieldSetter(t, field)
	if err != nil {
		return nil, err
	}
	fieldSetters[key] = fs
	return fs, nil
}

func makeFieldSetter(t reflect.Type, field string) (fieldSetter, error) {
	if t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
		return nil, errors.Wrapf(ErrFieldInjection, "%s is not a pointer to a struct", t)
	}
	var found *reflect.StructField
	reflectutils.WalkStructElements(t.Elem(), func(f reflect.StructField) bool {
		if found == nil && f.Name == field {
			f := f
			found = &f
			return false
		}
		return true
	})
	if found == nil {
		return nil, errors.Wrapf(ErrFieldInjection, "%s has no field %s", t, field)
	}
	if found.PkgPath != "" {
		return nil, errors.Wrapf(ErrFieldInjection, "%s.%s is not exported", t, field)
	}
	ft := found.Type
	if !isContextType(ft) && !(ft.Kind() == reflect.Interface && contextType.Implements(ft)) {
		return nil, errors.Wrapf(ErrFieldInjection, "%s.%s (%s) cannot hold a Context", t, field, ft)
	}
	index := found.Index
	return func(controller reflect.Value, ctx Context) error {
		cv := reflect.ValueOf(ctx)
		if !cv.Type().AssignableTo(ft) {
			return errors.Wrapf(ErrFieldInjection, "%s is not assignable to %s.%s", cv.Type(), t, field)
		}
		controller.Elem().FieldByIndex(index).Set(cv)
		return nil
	}, nil
}

// ClearFieldSetters empties the process-wide field setter cache
func ClearFieldSetters() {
	fieldLock.Lock()
	defer fieldLock.Unlock()
	fieldSetters = make(map[string]fieldSetter)
}

func fieldSetterCount() int {
	fieldLock.RLock()
	defer fieldLock.RUnlock()
	return len(fieldSetters)
}
