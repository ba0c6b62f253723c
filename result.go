package nact

import (
	"net/http"
)

// Result is what a handler invocation produces: the response the
// transport layer should send.
type Result interface {
	StatusCode() int
	Body() interface{}
}

// Response is the standard Result
type Response struct {
	Code        int
	Payload     interface{}
	ContentType string
	Header      http.Header
}

var _ Result = &Response{}

func (r *Response) StatusCode() int   { return r.Code }
func (r *Response) Body() interface{} { return r.Payload }

// WithHeader adds a header to the response
func (r *Response) WithHeader(key, value string) *Response {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	r.Header.Add(key, value)
	return r
}

// Ok is a 200 response carrying body
func Ok(body interface{}) *Response {
	return &Response{Code: http.StatusOK, Payload: body}
}

// Created is a 201 response carrying body
func Created(body interface{}) *Response {
	return &Response{Code: http.StatusCreated, Payload: body}
}

// NoContent is a 204 response
func NoContent() *Response {
	return &Response{Code: http.StatusNoContent}
}

// Status is a response with an arbitrary code
func Status(code int, body interface{}) *Response {
	return &Response{Code: code, Payload: body}
}

// Text is a 200 text/plain response
func Text(s string) *Response {
	return &Response{Code: http.StatusOK, Payload: s, ContentType: "text/plain; charset=utf-8"}
}

// Redirect is a 303 response to url
func Redirect(url string) *Response {
	return (&Response{Code: http.StatusSeeOther}).WithHeader("Location", url)
}

// ResultInference turns the value returned by a handler method into
// a Result.
type ResultInference func(value interface{}, ctx Context) Result

// InferResult is the default ResultInference.  A nil value becomes
// NoContent, Results pass through, strings become text, everything
// else is sent as a 200 with the value as the body.
func InferResult(value interface{}, _ Context) Result {
	switch v := value.(type) {
	case nil:
		return NoContent()
	case Result:
		return v
	case string:
		return Text(v)
	case []byte:
		return &Response{Code: http.StatusOK, Payload: v, ContentType: "application/octet-stream"}
	default:
		return Ok(v)
	}
}
