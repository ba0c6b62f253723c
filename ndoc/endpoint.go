package ndoc

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/muir/nact"
	"github.com/muir/reflectutils"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// ParamInfo documents one handler parameter
type ParamInfo struct {
	Name         string   `json:"name" yaml:"name"`
	Type         string   `json:"type" yaml:"type"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	DefaultValue string   `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	Required     bool     `json:"required" yaml:"required"`
	Options      []string `json:"options,omitempty" yaml:"options,omitempty"`
}

// Endpoint documents one route
type Endpoint struct {
	ID             string      `json:"id" yaml:"id"`
	URL            string      `json:"url" yaml:"url"`
	Port           int         `json:"port" yaml:"port"`
	HTTPMethod     string      `json:"http_method" yaml:"http_method"`
	Path           string      `json:"path" yaml:"path"`
	Handler        string      `json:"handler" yaml:"handler"`
	Description    string      `json:"description" yaml:"description"`
	Params         []ParamInfo `json:"params,omitempty" yaml:"params,omitempty"`
	ReturnType     string      `json:"return_type,omitempty" yaml:"return_type,omitempty"`
	SampleJSONPost string      `json:"sample_json_post,omitempty" yaml:"sample_json_post,omitempty"`
	SampleQuery    string      `json:"sample_query,omitempty" yaml:"sample_query,omitempty"`
	ReturnSample   string      `json:"return_sample,omitempty" yaml:"return_sample,omitempty"`
}

// NewEndpoint documents the route that calls inv.  GET endpoints get a
// sample query; other methods get a sample JSON body keyed by the
// parameter names.  Path variables appear in neither.
func NewEndpoint(port int, httpMethod string, path string, inv *nact.Invoker, cfg Config) Endpoint {
	meta := inv.Metadata()
	method := inv.Method()
	s := newSampler(cfg)
	path = cfg.ContextPath + path
	e := Endpoint{
		ID:         endpointID(inv),
		URL:        "http://" + cfg.Host + ":" + strconv.Itoa(port) + path,
		Port:       port,
		HTTPMethod: httpMethod,
		Path:       path,
		Handler:    method.String(),
	}
	e.Description = e.ID

	var queries []string
	var lastStruct reflect.Type
	postData := make(map[string]interface{})
	for i, p := range meta.Params {
		t := p.Type
		if method.Type != nil && i < method.Type.NumIn() {
			t = method.Type.In(i)
		}
		if !documented(t) {
			continue
		}
		e.Params = append(e.Params, paramInfo(p, t))
		if isPathVariable(path, p.Key()) {
			continue
		}
		if httpMethod == "GET" {
			if q := s.query(p.Key(), t, typeChain{}); q != "" {
				queries = append(queries, q)
			}
			continue
		}
		if p.HasDefault {
			if v, err := inv.App().Resolvers.Resolve(p.DefaultValue, t); err == nil {
				postData[p.Key()] = v.Interface()
			} else {
				postData[p.Key()] = p.DefaultValue
			}
			continue
		}
		postData[p.Key()] = s.sample(p.Key(), t, typeChain{})
		lastStruct = nil
		if base := deref(t); base.Kind() == reflect.Struct && base != timeType {
			lastStruct = t
		}
	}
	e.SampleQuery = strings.Join(queries, "&")
	switch {
	case len(postData) == 1 && lastStruct != nil:
		for _, v := range postData {
			e.SampleJSONPost = indentJSON(v)
		}
	case len(postData) > 0:
		e.SampleJSONPost = indentJSON(postData)
	}

	if rt := method.ReturnType(); rt != nil && !rt.Implements(resultType) {
		e.ReturnType = reflectutils.TypeName(rt)
		sample := s.sample("result", rt, typeChain{})
		if base := deref(rt); isSimple(base) || base == timeType {
			sample = map[string]interface{}{"result": sample}
		}
		e.ReturnSample = indentJSON(sample)
	}
	return e
}

func endpointID(inv *nact.Invoker) string {
	meta := inv.Metadata()
	t := inv.ControllerType()
	if t == nil {
		return meta.ClassName + "." + meta.MethodName
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.PkgPath() == "" || t.Name() == "" {
		return meta.ClassName + "." + meta.MethodName
	}
	return t.PkgPath() + "." + t.Name() + "." + meta.MethodName
}

func documented(t reflect.Type) bool {
	if t == nil {
		return false
	}
	return !t.Implements(contextType) && !t.Implements(resultType) && !t.Implements(errorType)
}

func paramInfo(p nact.ParameterDescriptor, t reflect.Type) ParamInfo {
	info := ParamInfo{
		Name:     p.Key(),
		Type:     reflectutils.TypeName(t),
		Required: p.HasAnnotation(nact.AnnoNotNull) || p.HasAnnotation(nact.AnnoNotBlank) || p.HasAnnotation(nact.AnnoNotEmpty),
	}
	if a, ok := p.Annotation(nact.AnnoDescription); ok {
		info.Description = a.String()
	}
	base := deref(t)
	switch {
	case p.HasDefault:
		info.DefaultValue = p.DefaultValue
	case base.Kind() == reflect.Bool || (isSimple(base) && base.Kind() != reflect.String && !isEnum(base)):
		info.DefaultValue = fmt.Sprint(reflect.Zero(base).Interface())
	}
	if isEnum(base) {
		info.Options = enumValues(base)
	}
	return info
}

func deref(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func isPathVariable(path string, name string) bool {
	return strings.Contains(path, "{"+name+"}") || strings.Contains(path, "{"+name+":")
}

func indentJSON(v interface{}) string {
	enc, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "cannot encode sample: " + err.Error()
	}
	return string(enc)
}

// YAML renders the endpoint as YAML
func (e Endpoint) YAML() (string, error) {
	enc, err := yaml.Marshal(e)
	if err != nil {
		return "", errors.Wrapf(err, "encode endpoint %s", e.ID)
	}
	return string(enc), nil
}

// SortEndpoints orders endpoints by path and then method
func SortEndpoints(endpoints []Endpoint) {
	sort.SliceStable(endpoints, func(i, j int) bool {
		if endpoints[i].Path != endpoints[j].Path {
			return endpoints[i].Path < endpoints[j].Path
		}
		return endpoints[i].HTTPMethod < endpoints[j].HTTPMethod
	})
}
