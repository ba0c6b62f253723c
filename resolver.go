package nact

import (
	"encoding"
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/muir/reflectutils"
	"github.com/pkg/errors"
)

// StringValueResolver converts a raw request string into a value
type StringValueResolver func(raw string) (interface{}, error)

type unpacker func(target reflect.Value, value string) error

// ResolverManager holds the string to value resolvers.  Resolvers can
// be registered by type or by name.  For types without a registered
// resolver a predefined resolver is built from the type's kind.
type ResolverManager struct {
	lock       sync.RWMutex
	byType     map[reflect.Type]StringValueResolver
	byName     map[string]StringValueResolver
	predefined map[reflect.Type]unpacker
}

// NewResolverManager returns a manager with only predefined resolvers
func NewResolverManager() *ResolverManager {
	return &ResolverManager{
		byType:     make(map[reflect.Type]StringValueResolver),
		byName:     make(map[string]StringValueResolver),
		predefined: make(map[reflect.Type]unpacker),
	}
}

// Register a resolver for a specific type.  It takes precedence over
// the predefined resolver for that type.
func (m *ResolverManager) Register(t reflect.Type, r StringValueResolver) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.byType[t] = r
}

// RegisterNamed registers a resolver that parameters can reference
// by name.
func (m *ResolverManager) RegisterNamed(name string, r StringValueResolver) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.byName[name] = r
}

// Named returns a named resolver
func (m *ResolverManager) Named(name string) (StringValueResolver, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	r, ok := m.byName[name]
	return r, ok
}

func (m *ResolverManager) forType(t reflect.Type) (StringValueResolver, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	r, ok := m.byType[t]
	return r, ok
}

// Resolve converts raw into a value of type t.  Registered type
// resolvers are used first, then predefined ones.
func (m *ResolverManager) Resolve(raw string, t reflect.Type) (reflect.Value, error) {
	if r, ok := m.forType(t); ok {
		i, err := r(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return checkResolved(i, t)
	}
	u, err := m.predefinedFor(t)
	if err != nil {
		return reflect.Value{}, err
	}
	target := reflect.New(t).Elem()
	err = u(target, raw)
	if err != nil {
		return reflect.Value{}, err
	}
	return target, nil
}

// CanResolve reports whether Resolve has any chance of success for t
func (m *ResolverManager) CanResolve(t reflect.Type) bool {
	if _, ok := m.forType(t); ok {
		return true
	}
	_, err := m.predefinedFor(t)
	return err == nil
}

func checkResolved(i interface{}, t reflect.Type) (reflect.Value, error) {
	v := valueOf(i, t)
	if !v.Type().AssignableTo(t) {
		return reflect.Value{}, errors.Errorf("resolver returned %s, not assignable to %s", v.Type(), t)
	}
	return v, nil
}

func (m *ResolverManager) predefinedFor(t reflect.Type) (unpacker, error) {
	m.lock.RLock()
	u, ok := m.predefined[t]
	m.lock.RUnlock()
	if ok {
		return u, nil
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	if u, ok := m.predefined[t]; ok {
		return u, nil
	}
	u, err := getUnpacker(t)
	if err != nil {
		return nil, err
	}
	m.predefined[t] = u
	return u, nil
}

var (
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
	jsonUnmarshalerType = reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()
	durationType        = reflect.TypeOf(time.Duration(0))
)

func getUnpacker(fieldType reflect.Type) (unpacker, error) {
	name := reflectutils.TypeName(fieldType)
	if fieldType.Kind() == reflect.Ptr && fieldType.Implements(textUnmarshalerType) {
		return func(target reflect.Value, value string) error {
			p := reflect.New(fieldType.Elem())
			target.Set(p)
			return errors.Wrapf(
				p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(value)),
				"resolve %s", name)
		}, nil
	}
	if reflect.PtrTo(fieldType).Implements(textUnmarshalerType) {
		return func(target reflect.Value, value string) error {
			return errors.Wrapf(
				target.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(value)),
				"resolve %s", name)
		}, nil
	}
	if reflect.PtrTo(fieldType).Implements(jsonUnmarshalerType) {
		return jsonUnpacker(name), nil
	}
	if fieldType == durationType {
		return func(target reflect.Value, value string) error {
			d, err := time.ParseDuration(value)
			if err != nil {
				return errors.Wrapf(err, "resolve %s", name)
			}
			target.SetInt(int64(d))
			return nil
		}, nil
	}

	switch fieldType.Kind() {
	case reflect.Ptr:
		inner, err := getUnpacker(fieldType.Elem())
		if err != nil {
			return nil, err
		}
		return func(target reflect.Value, value string) error {
			p := reflect.New(fieldType.Elem())
			target.Set(p)
			return inner(target.Elem(), value)
		}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return func(target reflect.Value, value string) error {
			i, err := strconv.ParseInt(value, 10, fieldType.Bits())
			if err != nil {
				return errors.Wrapf(err, "resolve %s", name)
			}
			target.SetInt(i)
			return nil
		}, nil
	case reflect.Uint, reflect.Uintptr, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return func(target reflect.Value, value string) error {
			i, err := strconv.ParseUint(value, 10, fieldType.Bits())
			if err != nil {
				return errors.Wrapf(err, "resolve %s", name)
			}
			target.SetUint(i)
			return nil
		}, nil
	case reflect.Float32, reflect.Float64:
		return func(target reflect.Value, value string) error {
			f, err := strconv.ParseFloat(value, fieldType.Bits())
			if err != nil {
				return errors.Wrapf(err, "resolve %s", name)
			}
			target.SetFloat(f)
			return nil
		}, nil
	case reflect.String:
		return func(target reflect.Value, value string) error {
			target.SetString(value)
			return nil
		}, nil
	case reflect.Complex64, reflect.Complex128:
		return func(target reflect.Value, value string) error {
			c, err := strconv.ParseComplex(value, fieldType.Bits())
			if err != nil {
				return errors.Wrapf(err, "resolve %s", name)
			}
			target.SetComplex(c)
			return nil
		}, nil
	case reflect.Bool:
		return func(target reflect.Value, value string) error {
			b, err := strconv.ParseBool(value)
			if err != nil {
				return errors.Wrapf(err, "resolve %s", name)
			}
			target.SetBool(b)
			return nil
		}, nil
	case reflect.Slice:
		if fieldType.Elem().Kind() == reflect.Uint8 {
			return func(target reflect.Value, value string) error {
				target.SetBytes([]byte(value))
				return nil
			}, nil
		}
		single, err := getUnpacker(fieldType.Elem())
		if err != nil {
			return nil, err
		}
		return func(target reflect.Value, value string) error {
			if value == "" {
				target.Set(reflect.MakeSlice(fieldType, 0, 0))
				return nil
			}
			values := strings.Split(value, ",")
			a := reflect.MakeSlice(fieldType, len(values), len(values))
			for i, v := range values {
				err := single(a.Index(i), strings.TrimSpace(v))
				if err != nil {
					return err
				}
			}
			target.Set(a)
			return nil
		}, nil
	case reflect.Struct, reflect.Map:
		return jsonUnpacker(name), nil
	case reflect.Interface:
		if fieldType.NumMethod() == 0 {
			return func(target reflect.Value, value string) error {
				target.Set(reflect.ValueOf(value))
				return nil
			}, nil
		}
		fallthrough
	case reflect.Array, reflect.Chan, reflect.UnsafePointer, reflect.Func, reflect.Invalid:
		fallthrough
	default:
		return nil, errors.Wrapf(ErrNoResolver, "%s does not implement UnmarshalText", name)
	}
}

func jsonUnpacker(name string) unpacker {
	return func(target reflect.Value, value string) error {
		return errors.Wrapf(
			json.Unmarshal([]byte(value), target.Addr().Interface()),
			"resolve %s", name)
	}
}
