package nact

import (
	"context"
	"fmt"
	"reflect"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/muir/nact/nserve"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type paramKind int

const (
	dataParam paramKind = iota
	contextParam
	resultParam
	errorParam
)

type paramBinding struct {
	desc         ParameterDescriptor
	kind         paramKind
	binder       Binder
	bindName     string
	resolver     StringValueResolver
	defaultValue reflect.Value
}

// Visitor inspects the controller type and method of an invoker
type Visitor interface {
	Visit(controllerType reflect.Type, method MethodHandle)
}

// VisitorFunc adapts a func to be a Visitor
type VisitorFunc func(controllerType reflect.Type, method MethodHandle)

func (f VisitorFunc) Visit(controllerType reflect.Type, method MethodHandle) {
	f(controllerType, method)
}

// GoContext can be implemented by a Context to provide the
// context.Context that invocation spans are parented to.
type GoContext interface {
	GoContext() context.Context
}

// Invoker calls one handler method.  It is built once from
// HandlerMetadata and then used, concurrently, for every request.
type Invoker struct {
	meta       HandlerMetadata
	app        *App
	name       string
	ctrlType   reflect.Type
	invocable  Invocable
	method     MethodHandle
	params     []paramBinding
	hooks      [][]annotationHook
	injector   fieldSetter
	valueIndex int
	errIndex   int
	inference  ResultInference

	destroyed   int32
	destroyOnce sync.Once
}

// NewInvoker builds an invoker.  It returns a *ConfigError if the
// method cannot be found or its signature does not match the metadata.
//
// Each invoker adds a callback to the App's nserve.Shutdown hook that
// destroys it.  The callback stays registered for the life of the App,
// so build invokers once per endpoint, not per request.
func NewInvoker(meta HandlerMetadata, app *App) (*Invoker, error) {
	inv := &Invoker{
		meta:       meta,
		app:        app,
		name:       meta.String(),
		valueIndex: -1,
		errIndex:   -1,
		inference:  app.inference,
	}
	err := inv.findMethod()
	if err != nil {
		return nil, err
	}
	err = inv.checkSignature()
	if err != nil {
		return nil, err
	}
	if !meta.Static {
		switch meta.ContextInjection.Kind {
		case FieldContextInjection:
			inv.injector, err = getFieldSetter(inv.ctrlType, meta.ContextInjection.Field)
			if err != nil {
				return nil, configError(inv.name, err, "")
			}
		case ConstructorContextInjection:
			if info, _ := app.controller(meta.ClassName); !info.takesCtx {
				return nil, configError(inv.name, ErrConstructorInjection,
					"register a constructor that takes a nact.Context")
			}
		}
	}
	inv.params = make([]paramBinding, len(meta.Params))
	for i, p := range meta.Params {
		pb, err := inv.bindingFor(p)
		if err != nil {
			return nil, configError(inv.name, errors.Wrapf(err, "parameter %d (%s)", i, p.Name), "")
		}
		inv.params[i] = pb
	}
	inv.hooks = indexAnnotationHandlers(meta.Params, app.ParamAnnotations.Handlers())
	app.lifecycle.On(nserve.Shutdown, func() error {
		inv.Destroy()
		return nil
	})
	app.log.Debug("invoker created", map[string]interface{}{
		"handler":  inv.name,
		"static":   meta.Static,
		"params":   len(meta.Params),
		"priority": meta.Priority,
	})
	return inv, nil
}

// MustInvoker is NewInvoker but panics on error
func MustInvoker(meta HandlerMetadata, app *App) *Invoker {
	inv, err := NewInvoker(meta, app)
	if err != nil {
		panic(DetailedError(err))
	}
	return inv
}

func (inv *Invoker) findMethod() error {
	meta := inv.meta
	if meta.Static {
		fn, ok := inv.app.function(meta.ClassName, meta.MethodName)
		if !ok {
			return configError(inv.name, ErrMethodNotFound, "no function registered as "+inv.name)
		}
		inv.invocable = staticInvocable{Type: fn.Type(), fn: fn}
		inv.method = newMethodHandle(meta.MethodName, nil, inv.invocable)
		return nil
	}
	info, ok := inv.app.controller(meta.ClassName)
	if !ok {
		return configError(inv.name, ErrUnknownController,
			"registered controllers: "+strings.Join(sortedStrings(inv.app.ControllerNames()), ", "))
	}
	inv.ctrlType = info.t
	m, ok := info.t.MethodByName(meta.MethodName)
	if !ok {
		names := make([]string, info.t.NumMethod())
		for i := range names {
			names[i] = info.t.Method(i).Name
		}
		return configError(inv.name, ErrMethodNotFound,
			fmt.Sprintf("methods of %s: %s", info.t, strings.Join(names, ", ")))
	}
	inv.invocable = methodInvocable{method: m}
	inv.method = newMethodHandle(meta.MethodName, info.t, inv.invocable)
	return nil
}

func (inv *Invoker) checkSignature() error {
	ia := inv.invocable
	mismatch := func(why string) error {
		want := make([]string, len(inv.meta.Params))
		for i, p := range inv.meta.Params {
			want[i] = fmt.Sprint(p.Type)
		}
		return configError(inv.name, errors.Wrap(ErrSignature, why),
			"declared parameters: ("+strings.Join(want, ", ")+")\nactual signature: "+signature(ia))
	}
	if ia.NumIn() != len(inv.meta.Params) {
		return mismatch(fmt.Sprintf("method takes %d parameters, metadata has %d", ia.NumIn(), len(inv.meta.Params)))
	}
	for i, p := range inv.meta.Params {
		if p.Type == nil {
			return mismatch(fmt.Sprintf("parameter %d (%s) has no type", i, p.Name))
		}
		if ia.In(i) != p.Type {
			return mismatch(fmt.Sprintf("parameter %d (%s) is %s, not %s", i, p.Name, ia.In(i), p.Type))
		}
	}
	switch ia.NumOut() {
	case 0:
	case 1:
		if ia.Out(0) == errorType {
			inv.errIndex = 0
		} else {
			inv.valueIndex = 0
		}
	case 2:
		if ia.Out(1) != errorType {
			return mismatch("second return value must be error")
		}
		inv.valueIndex = 0
		inv.errIndex = 1
	default:
		return mismatch("too many return values")
	}
	return nil
}

func (inv *Invoker) bindingFor(p ParameterDescriptor) (paramBinding, error) {
	pb := paramBinding{
		desc:     p,
		bindName: p.Key(),
	}
	switch {
	case isContextType(p.Type):
		pb.kind = contextParam
		return pb, nil
	case isResultType(p.Type):
		pb.kind = resultParam
		return pb, nil
	case isErrorType(p.Type):
		pb.kind = errorParam
		return pb, nil
	}
	binder, bindName, err := inv.app.Binders.ForParam(p)
	if err != nil {
		return pb, err
	}
	if binder != nil {
		pb.binder = binder
		pb.bindName = bindName
		return pb, nil
	}
	if p.Resolver != "" {
		r, ok := inv.app.Resolvers.Named(p.Resolver)
		if !ok {
			return pb, errors.Wrapf(ErrNoResolver, "resolver '%s'", p.Resolver)
		}
		pb.resolver = r
	} else if !inv.app.Resolvers.CanResolve(p.Type) {
		return pb, errors.Wrapf(ErrNoResolver, "%s", p.Type)
	}
	if p.HasDefault {
		v, err := pb.resolve(p.DefaultValue, inv.app.Resolvers)
		if err != nil {
			return pb, errors.Wrapf(err, "default value '%s'", p.DefaultValue)
		}
		pb.defaultValue = v
	}
	return pb, nil
}

func (pb *paramBinding) resolve(raw string, resolvers *ResolverManager) (reflect.Value, error) {
	if pb.resolver != nil {
		i, err := pb.resolver(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return checkResolved(i, pb.desc.Type)
	}
	return resolvers.Resolve(raw, pb.desc.Type)
}

// Priority orders interceptors of the same role
func (inv *Invoker) Priority() int { return inv.meta.Priority }

// ControllerType is the controller type, nil for static handlers
func (inv *Invoker) ControllerType() reflect.Type { return inv.ctrlType }

// Method describes the handler method
func (inv *Invoker) Method() MethodHandle { return inv.method }

// App returns the App the invoker was built against
func (inv *Invoker) App() *App { return inv.app }

// Metadata returns the metadata the invoker was built from
func (inv *Invoker) Metadata() HandlerMetadata { return inv.meta }

// Accept calls the visitor with the controller type and method
func (inv *Invoker) Accept(v Visitor) {
	v.Visit(inv.ctrlType, inv.method)
}

// Destroy releases the invoker's reflective accessors and clears the
// shared field setter cache.  It may be called more than once but must
// not be called while invocations are in flight.
func (inv *Invoker) Destroy() {
	inv.destroyOnce.Do(func() {
		atomic.StoreInt32(&inv.destroyed, 1)
		inv.invocable = nil
		inv.params = nil
		inv.hooks = nil
		inv.injector = nil
		ClearFieldSetters()
	})
}

// Handle invokes the handler for a request
func (inv *Invoker) Handle(ctx Context) (Result, error) {
	return inv.handle(ctx, nil, nil, false)
}

// Intercept invokes the handler as a before interceptor.  Unlike
// Handle, a nil return value gives a nil Result.
func (inv *Invoker) Intercept(ctx Context) (Result, error) {
	return inv.handle(ctx, nil, nil, true)
}

// HandleResult invokes the handler as an after interceptor.  Parameters
// of Result type receive prior.  A nil return value gives a nil Result.
func (inv *Invoker) HandleResult(prior Result, ctx Context) (Result, error) {
	return inv.handle(ctx, prior, nil, true)
}

// HandleError invokes the handler as an exception interceptor.
// Parameters of error type receive priorErr.  A nil return value gives
// a nil Result.
func (inv *Invoker) HandleError(priorErr error, ctx Context) (Result, error) {
	return inv.handle(ctx, nil, priorErr, true)
}

func (inv *Invoker) handle(ctx Context, prior Result, priorErr error, intercepting bool) (result Result, err error) {
	if atomic.LoadInt32(&inv.destroyed) != 0 {
		return nil, errors.Wrap(ErrDestroyed, inv.name)
	}
	parent := context.Background()
	if gc, ok := ctx.(GoContext); ok {
		parent = gc.GoContext()
	}
	_, span := inv.app.tracer.Start(parent, inv.name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("nact.handler", inv.name),
			attribute.Bool("nact.static", inv.meta.Static),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else if result != nil {
			span.SetAttributes(attribute.Int("nact.status", result.StatusCode()))
		}
		span.End()
	}()

	var instance reflect.Value
	if !inv.meta.Static {
		instance, err = inv.controllerInstance(ctx)
		if err != nil {
			return nil, err
		}
	}
	args, err := inv.buildArgs(ctx, prior, priorErr)
	if err != nil {
		return nil, err
	}
	oc, err := inv.invoke(instance, args)
	if err != nil {
		return nil, err
	}
	switch oc := oc.(type) {
	case shortCircuit:
		span.SetAttributes(attribute.Bool("nact.short_circuit", true))
		return oc.result, nil
	case normalValue:
		v := interfaceOf(oc.value)
		if v == nil && intercepting {
			return nil, nil
		}
		return inv.inference(v, ctx), nil
	default:
		return nil, errors.Errorf("unknown outcome %T", oc)
	}
}

// controllerInstance returns the controller for this request,
// creating it on first use.
func (inv *Invoker) controllerInstance(ctx Context) (reflect.Value, error) {
	var v reflect.Value
	if c, ok := ctx.ControllerInstance(inv.meta.ClassName); ok {
		v = reflect.ValueOf(c)
	} else {
		c, err := ctx.NewInstance(inv.ctrlType)
		if err != nil {
			return v, &UnexpectedError{Handler: inv.name, err: err}
		}
		ctx.SetControllerInstance(inv.meta.ClassName, c)
		v = reflect.ValueOf(c)
	}
	if inv.injector != nil {
		if err := inv.injector(v, ctx); err != nil {
			return v, &UnexpectedError{Handler: inv.name, err: err}
		}
	}
	return v, nil
}

func (inv *Invoker) buildArgs(ctx Context, prior Result, priorErr error) ([]reflect.Value, error) {
	args := make([]reflect.Value, len(inv.params))
	for i := range inv.params {
		v, err := inv.bindParam(i, ctx, prior, priorErr)
		if err != nil {
			return nil, &BindError{Param: inv.params[i].desc.Name, Index: i, err: err}
		}
		args[i] = v
	}
	return args, nil
}

func (inv *Invoker) bindParam(i int, ctx Context, prior Result, priorErr error) (v reflect.Value, err error) {
	pb := &inv.params[i]
	t := pb.desc.Type
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()
	switch pb.kind {
	case contextParam:
		return assignable(ctx, t)
	case resultParam:
		if prior == nil {
			return reflect.Zero(t), nil
		}
		return assignable(prior, t)
	case errorParam:
		if priorErr == nil {
			return reflect.Zero(t), nil
		}
		return assignable(priorErr, t)
	}

	present := true
	if pb.binder != nil {
		var bound interface{}
		bound, err = pb.binder.Bind(pb.bindName, ctx)
		if err != nil {
			return v, err
		}
		present = bound != nil
		v, err = checkResolved(bound, t)
		if err != nil {
			return v, err
		}
	} else {
		raw, ok := ctx.ParamVal(pb.bindName)
		switch {
		case !ok && pb.desc.HasDefault:
			return pb.defaultValue, nil
		case !ok:
			present = false
			v = reflect.Zero(t)
		default:
			v, err = pb.resolve(raw, inv.app.Resolvers)
			if err != nil {
				return v, err
			}
		}
	}
	// hooks see nil for absent values, not the zero value
	var observed interface{}
	if present {
		observed = interfaceOf(v)
	}
	for _, hook := range inv.hooks[i] {
		err = hook.handler.Handle(pb.desc.Name, observed, hook.anno, ctx)
		if err != nil {
			return v, err
		}
	}
	return v, nil
}

func assignable(i interface{}, t reflect.Type) (reflect.Value, error) {
	v := reflect.ValueOf(i)
	if !v.Type().AssignableTo(t) {
		return v, errors.Errorf("%s is not assignable to %s", v.Type(), t)
	}
	return v, nil
}

// outcome is what calling the handler produced: a normalValue for
// result inference or a shortCircuit carrying the chosen Result.
type outcome interface {
	isOutcome()
}

type normalValue struct {
	value reflect.Value
}

type shortCircuit struct {
	result Result
}

func (normalValue) isOutcome()  {}
func (shortCircuit) isOutcome() {}

func (inv *Invoker) invoke(instance reflect.Value, args []reflect.Value) (oc outcome, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if res, ok := r.(Result); ok {
			oc, err = shortCircuit{result: res}, nil
			return
		}
		if e, ok := r.(error); ok {
			if res, ok := HaltResult(e); ok {
				oc, err = shortCircuit{result: res}, nil
				return
			}
		}
		oc = nil
		err = &UnexpectedError{
			Handler:   inv.name,
			err:       errors.Errorf("panic: %v", r),
			Recovered: r,
			Stack:     string(debug.Stack()),
		}
	}()
	out := inv.invocable.Invoke(instance, args)
	if inv.errIndex >= 0 && !out[inv.errIndex].IsNil() {
		e := out[inv.errIndex].Interface().(error)
		if res, ok := HaltResult(e); ok {
			return shortCircuit{result: res}, nil
		}
		return nil, &UnexpectedError{Handler: inv.name, err: e}
	}
	if inv.valueIndex >= 0 {
		return normalValue{value: out[inv.valueIndex]}, nil
	}
	return normalValue{}, nil
}

func sortedStrings(s []string) []string {
	sort.Strings(s)
	return s
}
