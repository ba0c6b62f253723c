package nvelope

import (
	"encoding/json"
	"encoding/xml"
	"mime"
	"net/http"
	"sort"
	"strings"

	"github.com/muir/nact"
	"gopkg.in/yaml.v2"
)

// Encoder turns a response body model into bytes
type Encoder func(interface{}) ([]byte, error)

// ErrorResponse is the model sent for errors
type ErrorResponse struct {
	XMLName xml.Name `json:"-" yaml:"-" xml:"error"`
	Status  int      `json:"status" yaml:"status" xml:"status"`
	Message string   `json:"error" yaml:"error" xml:"message"`
}

type encoderOptions struct {
	encoders           map[string]Encoder
	defaultContentType string
	errorModel         func(err error, status int) interface{}
}

// EncodeOpt are functional arguments for NewEncoders
type EncodeOpt func(*encoderOptions)

// WithEncoder maps a content type to an encoder.  Content types are
// chosen by the request Accept header.
func WithEncoder(contentType string, encoder Encoder) EncodeOpt {
	return func(o *encoderOptions) {
		o.encoders[contentType] = encoder
	}
}

// WithDefaultEncoding sets the content type used when the Accept
// header does not pick one.  The default is JSON.
func WithDefaultEncoding(contentType string) EncodeOpt {
	return func(o *encoderOptions) {
		o.defaultContentType = contentType
	}
}

// WithErrorModel overrides how errors are turned into response
// models.  The default is an ErrorResponse.
func WithErrorModel(f func(err error, status int) interface{}) EncodeOpt {
	return func(o *encoderOptions) {
		o.errorModel = f
	}
}

// Encoders writes Results and errors with content negotiation
type Encoders struct {
	o     encoderOptions
	types []string
}

// NewEncoders creates Encoders with JSON, XML, and YAML support
func NewEncoders(opts ...EncodeOpt) *Encoders {
	o := encoderOptions{
		encoders: map[string]Encoder{
			"application/json":   json.Marshal,
			"application/xml":    xml.Marshal,
			"text/xml":           xml.Marshal,
			"application/yaml":   yaml.Marshal,
			"application/x-yaml": yaml.Marshal,
			"text/yaml":          yaml.Marshal,
		},
		defaultContentType: "application/json",
		errorModel: func(err error, status int) interface{} {
			return ErrorResponse{Status: status, Message: err.Error()}
		},
	}
	for _, opt := range opts {
		opt(&o)
	}
	types := make([]string, 0, len(o.encoders))
	for ct := range o.encoders {
		types = append(types, ct)
	}
	sort.Strings(types)
	return &Encoders{o: o, types: types}
}

var defaultEncoders = NewEncoders()

// WriteResult writes a Result using the default Encoders
func WriteResult(w http.ResponseWriter, r *http.Request, result nact.Result, log nact.BasicLogger) {
	defaultEncoders.WriteResult(w, r, result, log)
}

// WriteError writes an error using the default Encoders
func WriteError(w http.ResponseWriter, r *http.Request, err error, log nact.BasicLogger) {
	defaultEncoders.WriteError(w, r, err, log)
}

// negotiate picks a content type from the Accept header.  Quality
// values are ignored: the first acceptable type listed wins.
func (e *Encoders) negotiate(r *http.Request) (string, Encoder) {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if enc, ok := e.o.encoders[mt]; ok {
			return mt, enc
		}
		if mt == "*/*" {
			break
		}
		if strings.HasSuffix(mt, "/*") {
			prefix := strings.TrimSuffix(mt, "*")
			for _, ct := range e.types {
				if strings.HasPrefix(ct, prefix) {
					return ct, e.o.encoders[ct]
				}
			}
		}
	}
	return e.o.defaultContentType, e.o.encoders[e.o.defaultContentType]
}

// WriteResult writes a Result.  Bodies of *nact.Response values that
// set a ContentType and hold a string or []byte are sent as is.
// Other bodies are encoded with the negotiated encoder.
func (e *Encoders) WriteResult(w http.ResponseWriter, r *http.Request, result nact.Result, log nact.BasicLogger) {
	if result == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	status := result.StatusCode()
	if status == 0 {
		status = http.StatusOK
	}
	var contentType string
	if resp, ok := result.(*nact.Response); ok {
		for k, v := range resp.Header {
			w.Header()[k] = append(w.Header()[k], v...)
		}
		contentType = resp.ContentType
	}
	body := result.Body()
	if body == nil {
		w.WriteHeader(status)
		return
	}
	var enc []byte
	switch raw := body.(type) {
	case string:
		if contentType != "" {
			enc = []byte(raw)
		}
	case []byte:
		if contentType != "" {
			enc = raw
		}
	}
	if enc == nil {
		var encoder Encoder
		contentType, encoder = e.negotiate(r)
		var err error
		enc, err = encoder(body)
		if err != nil {
			log.Error("Cannot marshal response",
				map[string]interface{}{
					"error":  err.Error(),
					"method": r.Method,
					"uri":    r.URL.String(),
				})
			writeText(w, http.StatusInternalServerError, "cannot encode response: "+err.Error())
			return
		}
	}
	e.write(w, r, status, contentType, enc, log)
}

// WriteError writes an error.  The status comes from GetReturnCode.
func (e *Encoders) WriteError(w http.ResponseWriter, r *http.Request, err error, log nact.BasicLogger) {
	status := GetReturnCode(err)
	if status >= 500 {
		log.Error("request failed",
			map[string]interface{}{
				"error":  err.Error(),
				"method": r.Method,
				"uri":    r.URL.String(),
			})
	}
	contentType, encoder := e.negotiate(r)
	enc, encErr := encoder(e.o.errorModel(err, status))
	if encErr != nil {
		writeText(w, status, err.Error())
		return
	}
	e.write(w, r, status, contentType, enc, log)
}

func (e *Encoders) write(w http.ResponseWriter, r *http.Request, status int, contentType string, enc []byte, log nact.BasicLogger) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, err := w.Write(enc)
	if err != nil {
		log.Warn("Cannot write response",
			map[string]interface{}{
				"error":  err.Error(),
				"method": r.Method,
				"uri":    r.URL.String(),
			})
	}
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	// nolint:errcheck
	w.Write([]byte(msg))
}
