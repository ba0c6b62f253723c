package ndoc

import (
	"fmt"
	"math/rand"
	"reflect"
	"strings"
	"time"

	"github.com/muir/nact"
	"github.com/muir/reflectutils"
)

// Enum is implemented by types with a fixed set of values.  The
// values become the parameter options and samples pick from them.
type Enum interface {
	Values() []string
}

var (
	enumType    = reflect.TypeOf((*Enum)(nil)).Elem()
	timeType    = reflect.TypeOf(time.Time{})
	contextType = reflect.TypeOf((*nact.Context)(nil)).Elem()
	resultType  = reflect.TypeOf((*nact.Result)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

type sampler struct {
	rand     *rand.Rand
	maxDepth int
	now      time.Time
}

func newSampler(cfg Config) *sampler {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultConfig().MaxDepth
	}
	return &sampler{
		rand:     rand.New(rand.NewSource(seed)),
		maxDepth: maxDepth,
		now:      time.Now(),
	}
}

// typeChain is the set of types on the path from the root of a
// sample to the current value.  Each branch gets its own copy so
// that siblings of the same type are not mistaken for cycles.
type typeChain map[reflect.Type]struct{}

func (c typeChain) with(t reflect.Type) typeChain {
	n := make(typeChain, len(c)+1)
	for k := range c {
		n[k] = struct{}{}
	}
	n[t] = struct{}{}
	return n
}

func isCollection(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return true
	}
	return false
}

// isEnum is false for interface types: there is no value to ask
func isEnum(t reflect.Type) bool {
	return t.Kind() != reflect.Interface && t.Implements(enumType)
}

// enumValues asks a zero value for its options.  Pointer enums get a
// pointer to a zero value so that the method can read its receiver.
func enumValues(t reflect.Type) []string {
	if t.Kind() == reflect.Ptr {
		return reflect.New(t.Elem()).Interface().(Enum).Values()
	}
	return reflect.Zero(t).Interface().(Enum).Values()
}

func isSimple(t reflect.Type) bool {
	if isEnum(t) {
		return true
	}
	switch t.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func (s *sampler) randomString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[s.rand.Intn(len(letters))]
	}
	return string(b)
}

// sample generates example data for t.  A type that is already on
// the chain (collections excepted) produces "name:type" instead of
// recursing.
func (s *sampler) sample(name string, t reflect.Type, chain typeChain) interface{} {
	if t == nil {
		return nil
	}
	if _, ok := chain[t]; ok && !isCollection(t) {
		return name + ":" + reflectutils.TypeName(t)
	}
	if len(chain) >= s.maxDepth {
		return nil
	}
	chain = chain.with(t)
	switch {
	case t.Kind() != reflect.Interface && (t.Implements(resultType) || t.Implements(errorType)):
		return nil
	case t == timeType:
		return s.now
	case isEnum(t):
		values := enumValues(t)
		if len(values) == 0 {
			return nil
		}
		return values[s.rand.Intn(len(values))]
	}
	switch t.Kind() {
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return "<Any>"
		}
		return nil
	case reflect.Ptr:
		return s.sample(name, t.Elem(), chain)
	case reflect.String:
		return s.randomString(5)
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return reflect.Zero(t).Interface()
	case reflect.Slice, reflect.Array:
		return []interface{}{
			s.sample(name, t.Elem(), chain),
			s.sample(name, t.Elem(), chain),
		}
	case reflect.Map:
		m := make(map[string]interface{}, 2)
		for i := 0; i < 2; i++ {
			m[fmt.Sprint(s.sample(name, t.Key(), chain))] = s.sample(name, t.Elem(), chain)
		}
		return m
	case reflect.Struct:
		m := make(map[string]interface{})
		reflectutils.WalkStructElements(t, func(field reflect.StructField) bool {
			if field.Anonymous && field.Type.Kind() == reflect.Struct {
				return true
			}
			jsonName, skip := jsonFieldName(field)
			if !skip {
				m[jsonName] = s.sample(field.Name, field.Type, chain)
			}
			return false
		})
		return m
	default:
		return nil
	}
}

// query generates a sample query string for a parameter.  Maps
// are not supported.
func (s *sampler) query(bindName string, t reflect.Type, chain typeChain) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch {
	case isSimple(t):
		return bindName + "=" + fmt.Sprint(s.sample(bindName, t, chain))
	case t == timeType:
		return bindName + "=<datetime>"
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		if isSimple(t.Elem()) {
			return bindName + "=" + fmt.Sprint(s.sample(bindName, t.Elem(), chain)) +
				"&" + bindName + "=" + fmt.Sprint(s.sample(bindName, t.Elem(), chain))
		}
		return ""
	case reflect.Struct:
		if _, ok := chain[t]; ok {
			return ""
		}
		chain = chain.with(t)
		var pairs []string
		reflectutils.WalkStructElements(t, func(field reflect.StructField) bool {
			if field.Anonymous && field.Type.Kind() == reflect.Struct {
				return true
			}
			if field.PkgPath == "" {
				if pair := s.query(bindName+"."+field.Name, field.Type, chain); pair != "" {
					pairs = append(pairs, pair)
				}
			}
			return false
		})
		return strings.Join(pairs, "&")
	default:
		return ""
	}
}

func jsonFieldName(field reflect.StructField) (string, bool) {
	if field.PkgPath != "" {
		return "", true
	}
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", true
	}
	name := strings.Split(tag, ",")[0]
	if name == "" {
		name = field.Name
	}
	return name, false
}
