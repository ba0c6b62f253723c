package nact

// Interceptor is what every interceptor role has in common
type Interceptor interface {
	Priority() int
	Accept(Visitor)
	Destroy()
}

// BeforeInterceptor runs before the action.  A non-nil Result
// replaces the action.
type BeforeInterceptor interface {
	Interceptor
	Handle(ctx Context) (Result, error)
}

// AfterInterceptor runs after the action with its Result.  A non-nil
// Result replaces the one passed in.
type AfterInterceptor interface {
	Interceptor
	Handle(result Result, ctx Context) (Result, error)
}

// ExceptionInterceptor runs when the action (or a before interceptor)
// fails.  A non-nil Result recovers from the error.
type ExceptionInterceptor interface {
	Interceptor
	Handle(err error, ctx Context) (Result, error)
}

// FinallyInterceptor always runs last
type FinallyInterceptor interface {
	Interceptor
	Handle(ctx Context) error
}

// ActionHandler is the action itself
type ActionHandler interface {
	Interceptor
	Handle(ctx Context) (Result, error)
}

type invokerRole struct {
	inv *Invoker
}

func (r invokerRole) Priority() int    { return r.inv.Priority() }
func (r invokerRole) Accept(v Visitor) { r.inv.Accept(v) }
func (r invokerRole) Destroy()         { r.inv.Destroy() }

type beforeRole struct{ invokerRole }
type afterRole struct{ invokerRole }
type exceptionRole struct{ invokerRole }
type finallyRole struct{ invokerRole }

func (b beforeRole) Handle(ctx Context) (Result, error) {
	return b.inv.Intercept(ctx)
}

func (a afterRole) Handle(result Result, ctx Context) (Result, error) {
	return a.inv.HandleResult(result, ctx)
}

func (e exceptionRole) Handle(err error, ctx Context) (Result, error) {
	return e.inv.HandleError(err, ctx)
}

func (f finallyRole) Handle(ctx Context) error {
	_, err := f.inv.Handle(ctx)
	return err
}

// NewBefore exposes an invoker as a before interceptor
func NewBefore(inv *Invoker) BeforeInterceptor {
	return beforeRole{invokerRole{inv}}
}

// NewAfter exposes an invoker as an after interceptor
func NewAfter(inv *Invoker) AfterInterceptor {
	return afterRole{invokerRole{inv}}
}

// NewException exposes an invoker as an exception interceptor
func NewException(inv *Invoker) ExceptionInterceptor {
	return exceptionRole{invokerRole{inv}}
}

// NewFinally exposes an invoker as a finally interceptor.  The Result
// of the handler is discarded.
func NewFinally(inv *Invoker) FinallyInterceptor {
	return finallyRole{invokerRole{inv}}
}

var (
	_ ActionHandler        = &Invoker{}
	_ BeforeInterceptor    = beforeRole{}
	_ AfterInterceptor     = afterRole{}
	_ ExceptionInterceptor = exceptionRole{}
	_ FinallyInterceptor   = finallyRole{}
)
