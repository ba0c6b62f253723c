package nvelope

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/muir/nact"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// RequestIDHeader is the header that supplies request ids.  When a
// request does not have one, a random uuid is used.
const RequestIDHeader = "X-Request-Id"

// RequestContext is the nact.Context for HTTP requests.  Parameter
// values are looked up, in order, in the mux path variables, the
// query, the form and the top-level fields of a JSON or YAML body.
type RequestContext struct {
	nact.BaseContext
	w     http.ResponseWriter
	r     *http.Request
	id    string
	vars  map[string]string
	query url.Values
	o     eigo

	body    []byte
	bodyErr error

	form       url.Values
	formDone   bool
	fields     map[string][]string
	fieldsDone bool
}

var (
	_ nact.Context   = &RequestContext{}
	_ nact.GoContext = &RequestContext{}
)

// NewRequestContext reads the request body and creates a context for
// one request.
func NewRequestContext(app *nact.App, w http.ResponseWriter, r *http.Request, opts ...DecodeOpt) *RequestContext {
	rc := &RequestContext{
		w:     w,
		r:     r,
		id:    r.Header.Get(RequestIDHeader),
		vars:  mux.Vars(r),
		query: r.URL.Query(),
		o:     decodeOptions(opts),
	}
	if rc.id == "" {
		rc.id = uuid.NewString()
	}
	rc.BaseContext = nact.NewBaseContext(app, rc)
	rc.body, rc.bodyErr = readBody(r)
	return rc
}

func (rc *RequestContext) Request() *http.Request              { return rc.r }
func (rc *RequestContext) ResponseWriter() http.ResponseWriter { return rc.w }
func (rc *RequestContext) RequestID() string                   { return rc.id }
func (rc *RequestContext) GoContext() context.Context          { return rc.r.Context() }

// Body returns the request body
func (rc *RequestContext) Body() ([]byte, error) {
	return rc.body, rc.bodyErr
}

// Log returns the App logger with request fields added
func (rc *RequestContext) Log() nact.BasicLogger {
	return RequestLogger(rc.App().Log(), rc.r, rc.id)
}

func (rc *RequestContext) ParamVal(name string) (string, bool) {
	values := rc.ParamVals(name)
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func (rc *RequestContext) ParamVals(name string) []string {
	if v, ok := rc.vars[name]; ok {
		return []string{v}
	}
	if v, ok := rc.query[name]; ok {
		return v
	}
	if v, ok := rc.formValues()[name]; ok {
		return v
	}
	return rc.bodyFields()[name]
}

func (rc *RequestContext) formValues() url.Values {
	if rc.formDone {
		return rc.form
	}
	rc.formDone = true
	mt, err := rc.o.contentType(rc.r)
	if err != nil {
		return nil
	}
	switch mt {
	case "application/x-www-form-urlencoded":
		rc.form, _ = url.ParseQuery(string(rc.body))
	case "multipart/form-data":
		if err := rc.r.ParseMultipartForm(32 << 20); err == nil {
			rc.form = rc.r.MultipartForm.Value
		}
	}
	return rc.form
}

// bodyFields exposes the top-level fields of a JSON or YAML object
// body as request values.
func (rc *RequestContext) bodyFields() map[string][]string {
	if rc.fieldsDone {
		return rc.fields
	}
	rc.fieldsDone = true
	if len(rc.body) == 0 {
		return nil
	}
	mt, err := rc.o.contentType(rc.r)
	if err != nil {
		return nil
	}
	var top map[string]interface{}
	switch mt {
	case "application/json":
		dec := json.NewDecoder(bytes.NewReader(rc.body))
		dec.UseNumber()
		err = dec.Decode(&top)
	case "application/yaml", "application/x-yaml", "text/yaml":
		rc.fields, _ = yamlFields(rc.body)
		return rc.fields
	default:
		return nil
	}
	if err != nil {
		return nil
	}
	rc.fields = make(map[string][]string, len(top))
	for k, v := range top {
		if values, err := fieldValues(v); err == nil && values != nil {
			rc.fields[k] = values
		}
	}
	return rc.fields
}

func fieldValues(v interface{}) ([]string, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []interface{}:
		values := make([]string, 0, len(v))
		for _, e := range v {
			s, err := scalarOrJSON(e)
			if err != nil {
				return nil, err
			}
			values = append(values, s)
		}
		return values, nil
	default:
		s, err := scalarOrJSON(v)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
}

// yamlFields works on the node tree so that scalars keep the text
// they were written with: "no" stays "no" and "01234" stays "01234".
func yamlFields(body []byte) (map[string][]string, error) {
	var doc yaml.Node
	err := yaml.Unmarshal(body, &doc)
	if err != nil {
		return nil, errors.Wrap(err, "decode yaml body")
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, nil
	}
	top := resolveAlias(doc.Content[0])
	if top.Kind != yaml.MappingNode {
		return nil, nil
	}
	fields := make(map[string][]string, len(top.Content)/2)
	for i := 0; i+1 < len(top.Content); i += 2 {
		values, err := yamlValues(resolveAlias(top.Content[i+1]))
		if err != nil {
			return nil, err
		}
		if values != nil {
			fields[top.Content[i].Value] = values
		}
	}
	return fields, nil
}

func yamlValues(n *yaml.Node) ([]string, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil, nil
		}
		return []string{n.Value}, nil
	case yaml.SequenceNode:
		values := make([]string, 0, len(n.Content))
		for _, e := range n.Content {
			s, err := yamlText(resolveAlias(e))
			if err != nil {
				return nil, err
			}
			values = append(values, s)
		}
		return values, nil
	default:
		s, err := yamlText(n)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
}

// yamlText is the scalar text, or JSON for collections
func yamlText(n *yaml.Node) (string, error) {
	if n.Kind == yaml.ScalarNode {
		return n.Value, nil
	}
	var v interface{}
	err := n.Decode(&v)
	if err != nil {
		return "", errors.Wrap(err, "decode body field")
	}
	return scalarOrJSON(v)
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

// scalarOrJSON renders scalars as text and anything else as JSON so
// that the struct and map resolvers can decode it.
func scalarOrJSON(v interface{}) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case map[string]interface{}, map[interface{}]interface{}, []interface{}:
		enc, err := json.Marshal(jsonSafe(v))
		return string(enc), errors.Wrap(err, "encode body field")
	default:
		return fmt.Sprint(v), nil
	}
}

// jsonSafe converts map[interface{}]interface{} values, which YAML
// produces for non-string keys, into map[string]interface{}.
func jsonSafe(v interface{}) interface{} {
	switch v := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(v))
		for k, e := range v {
			m[fmt.Sprint(k)] = jsonSafe(e)
		}
		return m
	case map[string]interface{}:
		m := make(map[string]interface{}, len(v))
		for k, e := range v {
			m[k] = jsonSafe(e)
		}
		return m
	case []interface{}:
		a := make([]interface{}, len(v))
		for i, e := range v {
			a[i] = jsonSafe(e)
		}
		return a
	default:
		return v
	}
}
