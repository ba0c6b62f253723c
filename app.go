package nact

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/muir/nact/nserve"
	"github.com/muir/reflectutils"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/muir/nact"

type controllerInfo struct {
	name     string
	t        reflect.Type
	ctor     reflect.Value // invalid when the zero value is used
	takesCtx bool
	hasErr   bool
}

// App is the application scope service locator that invokers are
// built against.  It knows the controller types and static handler
// functions, and holds the resolvers, binders, annotation handlers,
// result inference, logger, tracer and lifecycle hooks.
type App struct {
	lock        sync.RWMutex
	controllers map[string]*controllerInfo
	byType      map[reflect.Type]*controllerInfo
	funcs       map[string]reflect.Value

	Resolvers        *ResolverManager
	Binders          *BinderManager
	ParamAnnotations *ParamAnnotationRegistry

	inference ResultInference
	log       BasicLogger
	tracer    trace.Tracer
	lifecycle *nserve.App
}

// AppOpt are functional arguments for NewApp
type AppOpt func(*App)

// WithLogger sets the logger.  The default discards everything.
func WithLogger(log BasicLogger) AppOpt {
	return func(app *App) {
		app.log = log
	}
}

// WithTracer overrides the OpenTelemetry tracer used to create a span
// for every invocation.  The default comes from the global provider.
func WithTracer(tracer trace.Tracer) AppOpt {
	return func(app *App) {
		app.tracer = tracer
	}
}

// WithResultInference replaces InferResult
func WithResultInference(inference ResultInference) AppOpt {
	return func(app *App) {
		app.inference = inference
	}
}

// WithResolver registers a resolver for a type
func WithResolver(t reflect.Type, r StringValueResolver) AppOpt {
	return func(app *App) {
		app.Resolvers.Register(t, r)
	}
}

// WithNamedResolver registers a resolver that parameters reference
// with @Resolver("name")
func WithNamedResolver(name string, r StringValueResolver) AppOpt {
	return func(app *App) {
		app.Resolvers.RegisterNamed(name, r)
	}
}

// WithBinder registers a binder for a type and (optional) component type
func WithBinder(t reflect.Type, component reflect.Type, b Binder) AppOpt {
	return func(app *App) {
		app.Binders.Register(t, component, b)
	}
}

// WithNamedBinder registers a binder that parameters reference with
// @Bind("name")
func WithNamedBinder(name string, b Binder) AppOpt {
	return func(app *App) {
		app.Binders.RegisterNamed(name, b)
	}
}

// WithParamAnnotationHandler adds a post-processor
func WithParamAnnotationHandler(h ParamAnnotationHandler) AppOpt {
	return func(app *App) {
		app.ParamAnnotations.Register(h)
	}
}

// NewApp creates an App.  RequiredCheck is always registered.
func NewApp(opts ...AppOpt) *App {
	resolvers := NewResolverManager()
	app := &App{
		controllers:      make(map[string]*controllerInfo),
		byType:           make(map[reflect.Type]*controllerInfo),
		funcs:            make(map[string]reflect.Value),
		Resolvers:        resolvers,
		Binders:          NewBinderManager(resolvers),
		ParamAnnotations: &ParamAnnotationRegistry{},
		inference:        InferResult,
		log:              NoLogger(),
		tracer:           otel.Tracer(instrumentationName),
		lifecycle:        nserve.NewApp(),
	}
	app.ParamAnnotations.Register(RequiredCheck)
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// Log returns the application logger
func (app *App) Log() BasicLogger { return app.log }

// Lifecycle returns the hooks that run at start, stop, and shutdown
func (app *App) Lifecycle() *nserve.App { return app.lifecycle }

// Shutdown runs the shutdown hook.  Every invoker built from this
// App is destroyed.
func (app *App) Shutdown() error {
	return app.lifecycle.Do(nserve.Shutdown)
}

// RegisterController registers a controller type under the name
// reflectutils.TypeName gives it.  The name is returned; it is what
// HandlerMetadata.ClassName must be.  See RegisterControllerAs.
func (app *App) RegisterController(proto interface{}) string {
	t, _ := controllerType(proto)
	name := reflectutils.TypeName(t)
	app.RegisterControllerAs(name, proto)
	return name
}

// RegisterControllerAs registers a controller type under a name.
// proto is one of:
//
//	*T                          new instances are zero valued
//	func() *T
//	func() (*T, error)
//	func(nact.Context) *T       constructor injection
//	func(nact.Context) (*T, error)
//
// It panics if proto is none of those or the name is already used.
func (app *App) RegisterControllerAs(name string, proto interface{}) {
	t, ctor := controllerType(proto)
	info := &controllerInfo{
		name: name,
		t:    t,
		ctor: ctor,
	}
	if ctor.IsValid() {
		ft := ctor.Type()
		info.takesCtx = ft.NumIn() == 1
		info.hasErr = ft.NumOut() == 2
	}
	app.lock.Lock()
	defer app.lock.Unlock()
	if _, ok := app.controllers[name]; ok {
		panic(fmt.Sprintf("controller %s already registered", name))
	}
	app.controllers[name] = info
	app.byType[t] = info
}

func controllerType(proto interface{}) (reflect.Type, reflect.Value) {
	v := reflect.ValueOf(proto)
	if !v.IsValid() {
		panic("nil controller")
	}
	t := v.Type()
	if t.Kind() != reflect.Func {
		return t, reflect.Value{}
	}
	switch {
	case t.NumIn() > 1,
		t.NumIn() == 1 && !contextType.AssignableTo(t.In(0)),
		t.NumOut() == 0 || t.NumOut() > 2,
		t.NumOut() == 2 && t.Out(1) != errorType:
		panic(fmt.Sprintf("controller constructor %s must be func([nact.Context]) (T[, error])", t))
	}
	return t.Out(0), v
}

// RegisterFunc registers a static handler.  Metadata with Static set
// refers to it by ClassName and MethodName.
func (app *App) RegisterFunc(className string, methodName string, fn interface{}) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		panic(fmt.Sprintf("%s.%s is %T, not a function", className, methodName, fn))
	}
	key := className + "." + methodName
	app.lock.Lock()
	defer app.lock.Unlock()
	if _, ok := app.funcs[key]; ok {
		panic(fmt.Sprintf("function %s already registered", key))
	}
	app.funcs[key] = v
}

func (app *App) controller(name string) (*controllerInfo, bool) {
	app.lock.RLock()
	defer app.lock.RUnlock()
	c, ok := app.controllers[name]
	return c, ok
}

func (app *App) function(className, methodName string) (reflect.Value, bool) {
	app.lock.RLock()
	defer app.lock.RUnlock()
	f, ok := app.funcs[className+"."+methodName]
	return f, ok
}

// ControllerNames lists the registered controller names
func (app *App) ControllerNames() []string {
	app.lock.RLock()
	defer app.lock.RUnlock()
	names := make([]string, 0, len(app.controllers))
	for n := range app.controllers {
		names = append(names, n)
	}
	return names
}

// NewInstance creates an instance of t.  Registered controllers use
// their constructor, which gets ctx if it takes a Context.  Other
// pointer-to-struct and struct types are zero valued.
func (app *App) NewInstance(t reflect.Type, ctx Context) (interface{}, error) {
	app.lock.RLock()
	info, ok := app.byType[t]
	app.lock.RUnlock()
	if ok && info.ctor.IsValid() {
		var in []reflect.Value
		if info.takesCtx {
			in = []reflect.Value{reflect.ValueOf(ctx)}
		}
		out := info.ctor.Call(in)
		if info.hasErr && !out[1].IsNil() {
			return nil, errors.Wrapf(out[1].Interface().(error), "construct %s", info.name)
		}
		return out[0].Interface(), nil
	}
	switch {
	case t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct:
		return reflect.New(t.Elem()).Interface(), nil
	case t.Kind() == reflect.Struct:
		return reflect.New(t).Elem().Interface(), nil
	default:
		return nil, errors.Errorf("cannot create an instance of %s", t)
	}
}
