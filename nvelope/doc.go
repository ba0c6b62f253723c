/*
Package nvelope connects nact invokers to net/http.

RequestContext is the nact.Context for an HTTP request.  Handler
parameters are found by name in the path variables (gorilla mux), the
query, the form, and the top level fields of a JSON or YAML body.

BodyBinder decodes the whole body into a parameter.  ModelBinder fills
a struct from tagged fields:

	type Lookup struct {
		ID     int      `nvelope:"path,name=id"`
		Fields []string `nvelope:"query,name=field"`
		Trace  string   `nvelope:"header,name=X-Trace"`
		Filter Filter   `nvelope:"model"`
	}

The response side is WriteResult and WriteError: the body model is
encoded as JSON, XML, or YAML depending on the Accept header.

NotFound, Forbidden, and BadRequest provide easy ways to annotate
an error return to cause a specific HTTP error code to be sent.

DeferredWriter allows output to be buffered and then abandoned.

CatchPanic and SetErrorOnPanic make it easy to turn panics into
error returns.
*/
package nvelope
