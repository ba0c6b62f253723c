package nact

import (
	"reflect"
	"sync"

	"github.com/pkg/errors"
)

// Binder produces a parameter value directly from the request context,
// bypassing raw string resolution.
type Binder interface {
	Bind(bindName string, ctx Context) (interface{}, error)
}

// BinderFunc adapts a function to be a Binder
type BinderFunc func(bindName string, ctx Context) (interface{}, error)

func (f BinderFunc) Bind(bindName string, ctx Context) (interface{}, error) {
	return f(bindName, ctx)
}

// BinderFactory creates a binder for a (type, component type) pair.
// It returns nil if it cannot handle the pair.
type BinderFactory func(t reflect.Type, component reflect.Type, resolvers *ResolverManager) Binder

type typePair struct {
	t         reflect.Type
	component reflect.Type
}

// BinderManager looks up binders by name, by type, and by
// (type, component type).
type BinderManager struct {
	lock      sync.RWMutex
	byName    map[string]Binder
	byType    map[typePair]Binder
	factories map[reflect.Kind]BinderFactory
	resolvers *ResolverManager
}

// NewBinderManager creates a BinderManager with the built-in factories
// for slices and arrays of resolvable elements.
func NewBinderManager(resolvers *ResolverManager) *BinderManager {
	m := &BinderManager{
		byName:    make(map[string]Binder),
		byType:    make(map[typePair]Binder),
		factories: make(map[reflect.Kind]BinderFactory),
		resolvers: resolvers,
	}
	m.factories[reflect.Slice] = multiValueBinder
	m.factories[reflect.Array] = multiValueBinder
	return m
}

// RegisterNamed registers a binder that parameters can reference by
// name (with @Bind) or that is found by bind name.
func (m *BinderManager) RegisterNamed(name string, b Binder) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.byName[name] = b
}

// Register registers a binder for a type.  component may be nil.
func (m *BinderManager) Register(t reflect.Type, component reflect.Type, b Binder) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.byType[typePair{t: t, component: component}] = b
}

// RegisterFactory registers a binder factory for a kind of type
func (m *BinderManager) RegisterFactory(kind reflect.Kind, f BinderFactory) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.factories[kind] = f
}

// Named returns a binder registered with RegisterNamed
func (m *BinderManager) Named(name string) (Binder, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	b, ok := m.byName[name]
	return b, ok
}

// ForType looks up a binder for (t, component).  Exact registrations
// come first, then the factory for t's kind.  A nil component only
// matches exact registrations.
func (m *BinderManager) ForType(t reflect.Type, component reflect.Type) Binder {
	m.lock.RLock()
	b, ok := m.byType[typePair{t: t, component: component}]
	f := m.factories[t.Kind()]
	m.lock.RUnlock()
	if ok {
		return b
	}
	if component == nil || f == nil {
		return nil
	}
	return f(t, component, m.resolvers)
}

// ForParam finds the binder for a parameter descriptor.  An explicit
// @Bind reference wins.  Otherwise, with a component type, the
// (type, component) lookup is tried with a fallback to a binder named
// like the bind name.  Without a component type only a binder
// registered for the exact type is used.
func (m *BinderManager) ForParam(p ParameterDescriptor) (Binder, string, error) {
	if p.Bind != nil {
		b, ok := m.Named(p.Bind.Binder)
		if !ok {
			return nil, "", errors.Wrapf(ErrNoBinder, "binder '%s'", p.Bind.Binder)
		}
		if p.Bind.Model != "" {
			return b, p.Bind.Model, nil
		}
		return b, p.Key(), nil
	}
	if p.ComponentType != nil {
		if b := m.ForType(p.Type, p.ComponentType); b != nil {
			return b, p.Key(), nil
		}
		if b, ok := m.Named(p.Key()); ok {
			return b, p.Key(), nil
		}
		return nil, p.Key(), nil
	}
	return m.ForType(p.Type, nil), p.Key(), nil
}

// multiValueBinder binds slices and arrays from every value supplied
// for the bind name.  A single comma separated value is also accepted.
func multiValueBinder(t reflect.Type, component reflect.Type, resolvers *ResolverManager) Binder {
	if t.Elem() != component || !resolvers.CanResolve(component) {
		return nil
	}
	return BinderFunc(func(bindName string, ctx Context) (interface{}, error) {
		values := ctx.ParamVals(bindName)
		if len(values) == 1 && t.Kind() == reflect.Slice {
			v, err := resolvers.Resolve(values[0], t)
			if err != nil {
				return nil, err
			}
			return v.Interface(), nil
		}
		var a reflect.Value
		if t.Kind() == reflect.Array {
			if len(values) > t.Len() {
				return nil, errors.Errorf("%d values for %s, but array length is %d", len(values), bindName, t.Len())
			}
			a = reflect.New(t).Elem()
		} else {
			if len(values) == 0 {
				return reflect.Zero(t).Interface(), nil
			}
			a = reflect.MakeSlice(t, len(values), len(values))
		}
		for i, s := range values {
			v, err := resolvers.Resolve(s, component)
			if err != nil {
				return nil, err
			}
			a.Index(i).Set(v)
		}
		return a.Interface(), nil
	})
}
