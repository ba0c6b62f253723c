/*
Package npoint binds nact actions to a gorilla mux.Router.

Each endpoint is an action (described by nact.HandlerMetadata) plus
interceptors.  When the endpoint is bound, its invoker and chain are
built; configuration errors panic with nact.DetailedError so that they
show up at startup rather than on the first request.

# Services

A service is a group of endpoints that share an nact.App, encoders,
decoders, interceptors and middleware.

Pre-registered services are not initialized until they are Start()ed.
This allows endpoints to be registered next to the code that implements
them, even when that is spread over several packages:

	var Service = npoint.PreregisterServiceWithMux("users", app)

	func init() {
		Service.RegisterAction("/users/{id}", getUser).Methods("GET")
	}

	func main() {
		r := mux.NewRouter()
		Service.Start(r)
		log.Fatal(http.ListenAndServe(":8080", r))
	}

Started services (RegisterServiceWithMux) bind endpoints as soon as
they are registered.

# Requests

For each request, the endpoint creates an nvelope.RequestContext, runs
the chain and writes the Result (or error) with content negotiation.
The response is buffered in an nvelope.DeferredWriter so that a failure
part way through replaces, rather than corrupts, the response.  Panics
become 500 responses.  Every response carries an X-Request-Id header.

# Documentation

Endpoints() describes every bound endpoint with ndoc and
RegisterAPIDoc serves that description.
*/
package npoint
