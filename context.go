package nact

import (
	"reflect"
)

// Context is the per-request state that flows through an invocation.
// Implementations are not expected to be safe for concurrent use: a
// request is handled by one goroutine at a time.
type Context interface {
	// ParamVal returns the raw value for a name.  The second return
	// is false when the request has no such value.
	ParamVal(name string) (string, bool)
	// ParamVals returns all values for a name
	ParamVals(name string) []string
	// ControllerInstance returns the controller already created for
	// this request, keyed by controller type name.
	ControllerInstance(className string) (interface{}, bool)
	SetControllerInstance(className string, instance interface{})
	// NewInstance creates a value of type t.  For registered
	// controllers the registered constructor is used.
	NewInstance(t reflect.Type) (interface{}, error)
}

// BaseContext implements the controller cache and instance creation
// parts of Context.  Embed it in request contexts and construct it
// with NewBaseContext once the outer context exists:
//
//	rc := &myContext{}
//	rc.BaseContext = nact.NewBaseContext(app, rc)
type BaseContext struct {
	app         *App
	self        Context
	controllers map[string]interface{}
}

// NewBaseContext creates a BaseContext.  self is the context that
// embeds it: it is what constructor-injected controllers receive.
func NewBaseContext(app *App, self Context) BaseContext {
	return BaseContext{
		app:  app,
		self: self,
	}
}

// App returns the application that the context was created for
func (b *BaseContext) App() *App { return b.app }

func (b *BaseContext) ControllerInstance(className string) (interface{}, bool) {
	i, ok := b.controllers[className]
	return i, ok
}

func (b *BaseContext) SetControllerInstance(className string, instance interface{}) {
	if b.controllers == nil {
		b.controllers = make(map[string]interface{})
	}
	b.controllers[className] = instance
}

func (b *BaseContext) NewInstance(t reflect.Type) (interface{}, error) {
	return b.app.NewInstance(t, b.self)
}

// MapContext is a Context whose request values come from a map.  It
// is useful outside of HTTP and in tests.
type MapContext struct {
	BaseContext
	Values map[string][]string
}

var _ Context = &MapContext{}

// NewMapContext creates a MapContext.  The values map is used directly.
func NewMapContext(app *App, values map[string][]string) *MapContext {
	mc := &MapContext{Values: values}
	mc.BaseContext = NewBaseContext(app, mc)
	return mc
}

func (mc *MapContext) ParamVal(name string) (string, bool) {
	v, ok := mc.Values[name]
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[0], true
}

func (mc *MapContext) ParamVals(name string) []string {
	return mc.Values[name]
}
