package nact

import (
	"reflect"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// ParamAnnotationHandler observes resolved parameter values that
// carry annotations it listens to.  Handle cannot change the value.
// Returning an error fails the binding of the parameter.  When the
// request has no value for the parameter, and there is no default,
// Handle is called with a nil value even though the handler receives
// the zero value of the parameter type.
type ParamAnnotationHandler interface {
	ListenTo() []string
	Handle(paramName string, value interface{}, anno Annotation, ctx Context) error
}

// ParamAnnotationHandlerFunc builds a ParamAnnotationHandler from a func
func ParamAnnotationHandlerFunc(
	kinds []string,
	f func(paramName string, value interface{}, anno Annotation, ctx Context) error,
) ParamAnnotationHandler {
	return funcHandler{kinds: kinds, f: f}
}

type funcHandler struct {
	kinds []string
	f     func(string, interface{}, Annotation, Context) error
}

func (h funcHandler) ListenTo() []string { return h.kinds }

func (h funcHandler) Handle(paramName string, value interface{}, anno Annotation, ctx Context) error {
	return h.f(paramName, value, anno, ctx)
}

// ParamAnnotationRegistry holds the available post-processors
type ParamAnnotationRegistry struct {
	lock     sync.RWMutex
	handlers []ParamAnnotationHandler
}

// Register adds a handler.  For each parameter, handlers run in the
// order of the parameter's annotations.  Handlers interested in the
// same annotation run in registration order.
func (r *ParamAnnotationRegistry) Register(h ParamAnnotationHandler) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.handlers = append(r.handlers, h)
}

// Handlers returns a snapshot of the registered handlers
func (r *ParamAnnotationRegistry) Handlers() []ParamAnnotationHandler {
	r.lock.RLock()
	defer r.lock.RUnlock()
	h := make([]ParamAnnotationHandler, len(r.handlers))
	copy(h, r.handlers)
	return h
}

type annotationHook struct {
	handler ParamAnnotationHandler
	anno    Annotation
}

// indexAnnotationHandlers intersects each parameter's annotations with
// each handler's interest set.
func indexAnnotationHandlers(params []ParameterDescriptor, handlers []ParamAnnotationHandler) [][]annotationHook {
	interest := make([]map[string]struct{}, len(handlers))
	for i, h := range handlers {
		interest[i] = make(map[string]struct{})
		for _, k := range h.ListenTo() {
			interest[i][k] = struct{}{}
		}
	}
	index := make([][]annotationHook, len(params))
	for i, p := range params {
		for _, a := range p.Annotations {
			for j, h := range handlers {
				if _, ok := interest[j][a.Kind]; ok {
					index[i] = append(index[i], annotationHook{handler: h, anno: a})
				}
			}
		}
	}
	return index
}

// ErrRequired is returned by RequiredCheck
var ErrRequired = errors.New("required value missing")

// RequiredCheck enforces NotNull, NotBlank, and NotEmpty.  An
// absent value fails all three.
//
//	NotNull   value must be present and not nil
//	NotBlank  string value must have non-space content
//	NotEmpty  string, slice, or map value must not be empty
var RequiredCheck ParamAnnotationHandler = requiredCheck{}

type requiredCheck struct{}

func (requiredCheck) ListenTo() []string {
	return []string{AnnoNotNull, AnnoNotBlank, AnnoNotEmpty}
}

func (requiredCheck) Handle(paramName string, value interface{}, anno Annotation, _ Context) error {
	if value == nil {
		return errors.Wrapf(ErrRequired, "%s is @%s", paramName, anno.Kind)
	}
	v := reflect.ValueOf(value)
	if canBeNil(v.Kind()) && v.IsNil() {
		return errors.Wrapf(ErrRequired, "%s is @%s", paramName, anno.Kind)
	}
	switch anno.Kind {
	case AnnoNotBlank:
		if v.Kind() == reflect.String && strings.TrimSpace(v.String()) == "" {
			return errors.Wrapf(ErrRequired, "%s is @%s", paramName, anno.Kind)
		}
	case AnnoNotEmpty:
		switch v.Kind() {
		case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
			if v.Len() == 0 {
				return errors.Wrapf(ErrRequired, "%s is @%s", paramName, anno.Kind)
			}
		}
	}
	return nil
}
