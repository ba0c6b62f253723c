package nvelope

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/muir/nact"
	"github.com/muir/reflectutils"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Decoder is the signature for decoders: take bytes and
// a pointer to something and deserialize it.
type Decoder func([]byte, interface{}) error

type eigo struct {
	tag                string
	decoders           map[string]Decoder
	defaultContentType string
}

// DecodeOpt are functional arguments for request decoding
type DecodeOpt func(*eigo)

// WithDecoder maps conent types (eg "application/json") to
// decode functions (eg json.Unmarshal).  If a Content-Type header
// is used in the requet, then the value of that header will be
// used to pick a decoder.
func WithDecoder(contentType string, decoder Decoder) DecodeOpt {
	return func(o *eigo) {
		o.decoders[contentType] = decoder
	}
}

// WithDefaultContentType specifies which model decoder to use when
// no "Content-Type" header was sent.  The default is JSON.
func WithDefaultContentType(contentType string) DecodeOpt {
	return func(o *eigo) {
		o.defaultContentType = contentType
	}
}

// WithTag overrides the tag for specifying fields to be filled
// from the http request.  The default is "nvelope"
func WithTag(tag string) DecodeOpt {
	return func(o *eigo) {
		o.tag = tag
	}
}

func decodeOptions(opts []DecodeOpt) eigo {
	o := eigo{
		tag: "nvelope",
		decoders: map[string]Decoder{
			"application/json":   json.Unmarshal,
			"application/xml":    xml.Unmarshal,
			"text/xml":           xml.Unmarshal,
			"application/yaml":   yaml.Unmarshal,
			"application/x-yaml": yaml.Unmarshal,
			"text/yaml":          yaml.Unmarshal,
		},
		defaultContentType: "application/json",
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o eigo) contentType(r *http.Request) (string, error) {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		ct = o.defaultContentType
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return "", errors.Wrapf(err, "content type '%s'", ct)
	}
	return mt, nil
}

func (o eigo) decoderFor(r *http.Request) (Decoder, string, error) {
	mt, err := o.contentType(r)
	if err != nil {
		return nil, "", err
	}
	d, ok := o.decoders[mt]
	if !ok {
		return nil, mt, errors.Errorf("no body decoder for content type %s", mt)
	}
	return d, mt, nil
}

// readBody reads the whole request body and leaves a fresh reader
// in its place.
func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	// nolint:errcheck
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, errors.Wrap(err, "read body")
}

func requestContext(ctx nact.Context) (*RequestContext, error) {
	if rc, ok := ctx.(*RequestContext); ok {
		return rc, nil
	}
	return nil, errors.Errorf("%T is not an http request context", ctx)
}

// BodyBinder decodes the request body into a new value of type t
// using the decoder for the request Content-Type.  An empty body
// binds the zero value.
func BodyBinder(t reflect.Type, opts ...DecodeOpt) nact.Binder {
	o := decodeOptions(opts)
	return nact.BinderFunc(func(_ string, ctx nact.Context) (interface{}, error) {
		rc, err := requestContext(ctx)
		if err != nil {
			return nil, err
		}
		body, err := rc.Body()
		if err != nil {
			return nil, err
		}
		if len(body) == 0 {
			return reflect.Zero(t).Interface(), nil
		}
		decode, ct, err := o.decoderFor(rc.Request())
		if err != nil {
			return nil, err
		}
		target := newTarget(t)
		err = decode(body, target.Addr().Interface())
		if err != nil {
			return nil, errors.Wrapf(err, "decode %s into %s", ct, t)
		}
		return target.Interface(), nil
	})
}

// newTarget returns an addressable value of type t.  Pointer types
// get an allocated element.
func newTarget(t reflect.Type) reflect.Value {
	v := reflect.New(t).Elem()
	if t.Kind() == reflect.Ptr {
		v.Set(reflect.New(t.Elem()))
	}
	return v
}

// RegisterBody registers a BodyBinder for the type of proto.  Handler
// parameters of exactly that type are then decoded from the body.
func RegisterBody(app *nact.App, proto interface{}, opts ...DecodeOpt) {
	t := reflect.TypeOf(proto)
	app.Binders.Register(t, nil, BodyBinder(t, opts...))
}

type modelFiller func(model reflect.Value, rc *RequestContext) error

// ModelBinder creates a binder that fills a struct (or pointer to
// struct) from several parts of the request.  Fields are chosen with
// struct tags:
//
//	`nvelope:"model"`               the body, decoded by Content-Type
//	`nvelope:"path,name=id"`        a mux path variable
//	`nvelope:"query,name=q"`        query parameters
//	`nvelope:"header,name=X-Foo"`   a header
//	`nvelope:"cookie,name=session"` a cookie
//
// Path, query, header, and cookie accept these options:
//
//	explode=true                    # default for query
//	explode=false                   # default for path, header, cookie
//	delimiter=comma                 # default
//	delimiter=space                 # query parameters only
//	delimiter=pipe                  # query parameters only
//	content=application/json        # decode the value with a body decoder
//
// Values are converted with the App's resolvers.
func ModelBinder(app *nact.App, t reflect.Type, opts ...DecodeOpt) (nact.Binder, error) {
	o := decodeOptions(opts)
	nonPointer := t
	returnAddress := false
	if t.Kind() == reflect.Ptr {
		nonPointer = t.Elem()
		returnAddress = true
	}
	if nonPointer.Kind() != reflect.Struct {
		return nil, errors.Errorf("%s is not a struct", t)
	}
	var fillers []modelFiller
	var returnError error
	reflectutils.WalkStructElements(nonPointer, func(field reflect.StructField) bool {
		if returnError != nil {
			return false
		}
		tag, ok := field.Tag.Lookup(o.tag)
		if !ok {
			return true
		}
		base, tags, err := parseTag(tag)
		if err != nil {
			returnError = errors.Wrap(err, field.Name)
			return false
		}
		if base == "model" {
			fillers = append(fillers, func(model reflect.Value, rc *RequestContext) error {
				body, err := rc.Body()
				if err != nil || len(body) == 0 {
					return err
				}
				decode, ct, err := o.decoderFor(rc.Request())
				if err != nil {
					return err
				}
				f := model.FieldByIndex(field.Index)
				return errors.Wrapf(decode(body, f.Addr().Interface()),
					"could not decode %s into %s", ct, field.Type)
			})
			return false
		}
		name := field.Name
		if tags.name != "" {
			name = tags.name
		}
		unpack, err := fieldUnpacker(app.Resolvers, field.Type, tags, o.decoders)
		if err != nil {
			returnError = errors.Wrap(err, field.Name)
			return false
		}
		get := sourceValues(base, name)
		fillers = append(fillers, func(model reflect.Value, rc *RequestContext) error {
			values, err := get(rc)
			if err != nil || len(values) == 0 {
				return err
			}
			return errors.Wrapf(
				unpack(model.FieldByIndex(field.Index), values),
				"%s %s into field %s", base, name, field.Name)
		})
		return true
	})
	if returnError != nil {
		return nil, returnError
	}
	return nact.BinderFunc(func(_ string, ctx nact.Context) (interface{}, error) {
		rc, err := requestContext(ctx)
		if err != nil {
			return nil, err
		}
		mp := reflect.New(nonPointer)
		model := mp.Elem()
		for _, f := range fillers {
			if err := f(model, rc); err != nil {
				return nil, err
			}
		}
		if returnAddress {
			return mp.Interface(), nil
		}
		return model.Interface(), nil
	}), nil
}

// RegisterModel registers a ModelBinder for the type of proto
func RegisterModel(app *nact.App, proto interface{}, opts ...DecodeOpt) error {
	t := reflect.TypeOf(proto)
	b, err := ModelBinder(app, t, opts...)
	if err != nil {
		return err
	}
	app.Binders.Register(t, nil, b)
	return nil
}

func sourceValues(base string, name string) func(*RequestContext) ([]string, error) {
	switch base {
	case "path":
		return func(rc *RequestContext) ([]string, error) {
			if v, ok := rc.vars[name]; ok {
				return []string{v}, nil
			}
			return nil, nil
		}
	case "query":
		return func(rc *RequestContext) ([]string, error) {
			return rc.query[name], nil
		}
	case "header":
		return func(rc *RequestContext) ([]string, error) {
			return rc.r.Header.Values(name), nil
		}
	default:
		return func(rc *RequestContext) ([]string, error) {
			cookie, err := rc.r.Cookie(name)
			if err != nil {
				if errors.Is(err, http.ErrNoCookie) {
					return nil, nil
				}
				return nil, errors.Wrapf(err, "cookie %s", name)
			}
			return []string{cookie.Value}, nil
		}
	}
}

// fieldUnpacker sets a field from one or more raw values
func fieldUnpacker(
	resolvers *nact.ResolverManager,
	fieldType reflect.Type,
	tags tags,
	decoders map[string]Decoder,
) (func(target reflect.Value, values []string) error, error) {
	if tags.content != "" {
		decoder, ok := decoders[tags.content]
		if !ok {
			return nil, errors.Errorf("no decoder provided for content type '%s'", tags.content)
		}
		return func(target reflect.Value, values []string) error {
			return decoder([]byte(values[0]), target.Addr().Interface())
		}, nil
	}
	if fieldType.Kind() == reflect.Slice && fieldType.Elem().Kind() != reflect.Uint8 {
		elem := fieldType.Elem()
		if !resolvers.CanResolve(elem) {
			return nil, errors.Wrapf(nact.ErrNoResolver, "%s", elem)
		}
		return func(target reflect.Value, values []string) error {
			if !tags.explode {
				values = strings.Split(values[0], tags.delimiter)
			}
			a := reflect.MakeSlice(fieldType, len(values), len(values))
			for i, value := range values {
				v, err := resolvers.Resolve(value, elem)
				if err != nil {
					return err
				}
				a.Index(i).Set(v)
			}
			target.Set(a)
			return nil
		}, nil
	}
	if !resolvers.CanResolve(fieldType) {
		return nil, errors.Wrapf(nact.ErrNoResolver, "%s", fieldType)
	}
	return func(target reflect.Value, values []string) error {
		v, err := resolvers.Resolve(values[0], fieldType)
		if err != nil {
			return err
		}
		target.Set(v)
		return nil
	}, nil
}

var delimiters = map[string]string{
	"comma": ",",
	"pipe":  "|",
	"space": " ",
}

type tags struct {
	name      string
	explode   bool
	delimiter string
	content   string
}

func parseTag(s string) (string, tags, error) {
	a := strings.Split(s, ",")
	var tags tags
	tags.delimiter = ","
	switch a[0] {
	case "query":
		tags.explode = true
	case "path", "header", "cookie", "model":
	default:
		return "", tags, errors.Errorf("'%s' is not a valid source of the data use ('model', 'path', 'query', etc)", a[0])
	}
	for _, v := range a[1:] {
		kvs := strings.SplitN(v, "=", 2)
		k := kvs[0]
		var val string
		if len(kvs) == 2 {
			val = kvs[1]
		}
		var err error
		switch k {
		case "name":
			tags.name = val
		case "explode":
			tags.explode, err = strconv.ParseBool(val)
		case "delimiter":
			var ok bool
			tags.delimiter, ok = delimiters[val]
			if !ok {
				err = errors.Errorf("invalid delimiter value (must be 'comma', 'space', or 'pipe')")
			} else if a[0] != "query" && tags.delimiter != "," {
				err = errors.New("delimiter setting is only allowed for 'query' parameters")
			}
		case "content":
			tags.content = val
		default:
			err = errors.Errorf("unknown option")
		}
		if err != nil {
			return "", tags, errors.Wrap(err, k)
		}
	}
	return a[0], tags, nil
}
