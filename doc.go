/*
Package nact builds reflective invokers for handler methods.

A handler is a method on a registered controller type, or a function
registered with App.RegisterFunc.  HandlerMetadata describes the
handler: its name, its parameters, and how the per-request Context
reaches the controller.  NewInvoker checks the metadata against the
real method signature once, when routes are compiled, and the
resulting Invoker can then be called concurrently for any number of
requests.

# Parameters

Each parameter gets its value in one of these ways:

	nact.Context                     the request context itself
	nact.Result                      the prior result (after interceptors)
	error                            the prior error (exception interceptors)
	@Bind("name")                    a binder registered by name
	registered type                  a binder registered for the exact type
	anything else                    ctx.ParamVal(key) and a resolver

Raw request strings are converted by a ResolverManager.  Integers,
floats, complex numbers, booleans, strings, durations, pointers,
slices, TextUnmarshalers, and JSON for structs and maps are handled
without registration.

Annotations are written as Go-like source and parsed with annogo:

	nact.MustParam("limit", reflect.TypeOf(0), `@Default("10")`, `@Param("n")`)

Annotation kinds that are not built in are passed to registered
ParamAnnotationHandlers after the value is bound.

# Chains

Invokers also act as interceptors.  NewBefore, NewAfter, NewException
and NewFinally wrap an Invoker in one of the four roles and NewChain
combines them with an action:

	chain, err := nact.NewChain(app, action, nact.NewBefore(auth), nact.NewFinally(audit))
	result, err := chain.Handle(ctx)

A before interceptor that returns a non-nil Result ends the request
with that Result.  Halt() does the same from any handler.

# Results

Whatever a handler returns is turned into a Result by the App's
ResultInference.  The default, InferResult, sends nil as 204, strings
as text, and everything else as the body of a 200.

Packages npoint and nvelope bind chains to gorilla/mux and HTTP.
Package ndoc describes endpoints with sample requests.
*/
package nact
