package nact

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// HandlerMetadata describes one handler method.  It is built once,
// typically when routes are compiled, and never changes afterwards.
type HandlerMetadata struct {
	// ClassName is the name the controller type was registered
	// under (see App.RegisterController and App.RegisterFunc).
	ClassName  string
	MethodName string
	// Static handlers are plain functions and need no controller
	// instance.
	Static           bool
	Params           []ParameterDescriptor
	ContextInjection ContextInjection
	// Priority orders interceptors of the same role.  Lower runs
	// first.
	Priority int
}

// String returns ClassName.MethodName
func (m HandlerMetadata) String() string {
	return m.ClassName + "." + m.MethodName
}

// ParamTypes returns the declared parameter types in order
func (m HandlerMetadata) ParamTypes() []reflect.Type {
	types := make([]reflect.Type, len(m.Params))
	for i, p := range m.Params {
		types[i] = p.Type
	}
	return types
}

// BindRef names a custom binder for a parameter.  Model, when set,
// replaces the bind name that is passed to the binder.
type BindRef struct {
	Binder string
	Model  string
}

// ParameterDescriptor describes how one handler parameter gets its
// value.
type ParameterDescriptor struct {
	Name string
	Type reflect.Type
	// ComponentType is the element type for slices, arrays and maps
	// when binding should consider it.
	ComponentType reflect.Type
	// BindName is the request value name.  When empty, Name is used.
	BindName string
	Bind     *BindRef
	// Resolver names a resolver registered with WithNamedResolver
	Resolver     string
	DefaultValue string
	HasDefault   bool
	Annotations  []Annotation
}

// Key returns the name used to look up request values
func (p ParameterDescriptor) Key() string {
	if p.BindName != "" {
		return p.BindName
	}
	return p.Name
}

// Annotation returns the first annotation of a kind
func (p ParameterDescriptor) Annotation(kind string) (Annotation, bool) {
	for _, a := range p.Annotations {
		if a.Kind == kind {
			return a, true
		}
	}
	return Annotation{}, false
}

// HasAnnotation reports if any annotation of kind is present
func (p ParameterDescriptor) HasAnnotation(kind string) bool {
	_, ok := p.Annotation(kind)
	return ok
}

// Param builds a ParameterDescriptor from annotation source.  Each
// annotation string may hold one or more newline separated
// annotations.  Some annotations also set descriptor fields:
//
//	@Param("q")                      BindName
//	@Default("0")                    DefaultValue
//	@Resolver("csv")                 Resolver
//	@Bind{Binder: "b", Model: "m"}   Bind
//
// ComponentType is set automatically for slices, arrays and maps.
func Param(name string, t reflect.Type, annotations ...string) (ParameterDescriptor, error) {
	p := ParameterDescriptor{
		Name: name,
		Type: t,
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		p.ComponentType = t.Elem()
	}
	annos, err := ParseAnnotations(strings.Join(annotations, "\n"))
	if err != nil {
		return p, errors.Wrap(err, name)
	}
	p.Annotations = annos
	for _, a := range annos {
		switch a.Kind {
		case AnnoParam:
			p.BindName = a.String()
		case AnnoDefault:
			p.DefaultValue = literalText(a.Value)
			p.HasDefault = true
		case AnnoResolver:
			p.Resolver = a.String()
		case AnnoBind:
			ref := &BindRef{}
			if s := a.String(); s != "" {
				ref.Binder = s
			} else {
				b, _ := a.Field("Binder")
				m, _ := a.Field("Model")
				ref.Binder, _ = b.(string)
				ref.Model, _ = m.(string)
			}
			if ref.Binder == "" {
				return p, errors.Errorf("%s: @Bind requires a binder name", name)
			}
			p.Bind = ref
		}
	}
	return p, nil
}

// MustParam is Param but panics on error
func MustParam(name string, t reflect.Type, annotations ...string) ParameterDescriptor {
	p, err := Param(name, t, annotations...)
	if err != nil {
		panic(err.Error())
	}
	return p
}

// ContextInjectionKind selects how a controller gets the request
// context.
type ContextInjectionKind int

const (
	// NoContextInjection is the zero value
	NoContextInjection ContextInjectionKind = iota
	FieldContextInjection
	ConstructorContextInjection
)

// ContextInjection describes how the request context reaches a
// controller instance.
type ContextInjection struct {
	Kind  ContextInjectionKind
	Field string
}

// FieldInjection assigns the context to an exported struct field of
// each new controller.
func FieldInjection(fieldName string) ContextInjection {
	return ContextInjection{Kind: FieldContextInjection, Field: fieldName}
}

// ConstructorInjection means the registered constructor takes the
// context.
func ConstructorInjection() ContextInjection {
	return ContextInjection{Kind: ConstructorContextInjection}
}

func NoInjection() ContextInjection {
	return ContextInjection{}
}

// literalText renders an annotation value the way it would be written
// in a request: @Default(0) and @Default("0") mean the same thing.
func literalText(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
