package nact

import (
	"reflect"
	"strings"
)

// ReflectiveArgs describes the inputs and outputs of a handler, not
// counting any receiver.
type ReflectiveArgs interface {
	In(i int) reflect.Type
	NumIn() int
	Out(i int) reflect.Type
	NumOut() int
}

// Invocable is a handler that can be called.  For static handlers
// the instance is ignored.
type Invocable interface {
	ReflectiveArgs
	Invoke(instance reflect.Value, args []reflect.Value) []reflect.Value
}

type staticInvocable struct {
	reflect.Type
	fn reflect.Value
}

var _ Invocable = staticInvocable{}

func (s staticInvocable) Invoke(_ reflect.Value, args []reflect.Value) []reflect.Value {
	return s.fn.Call(args)
}

// methodInvocable calls a method by its index in the method set of
// the receiver type.
type methodInvocable struct {
	method reflect.Method
}

var _ Invocable = methodInvocable{}

func (m methodInvocable) In(i int) reflect.Type  { return m.method.Type.In(i + 1) }
func (m methodInvocable) NumIn() int             { return m.method.Type.NumIn() - 1 }
func (m methodInvocable) Out(i int) reflect.Type { return m.method.Type.Out(i) }
func (m methodInvocable) NumOut() int            { return m.method.Type.NumOut() }

func (m methodInvocable) Invoke(instance reflect.Value, args []reflect.Value) []reflect.Value {
	return instance.Method(m.method.Index).Call(args)
}

// MethodHandle is a read-only description of the method an invoker
// calls.  Type is the signature without the receiver.
type MethodHandle struct {
	Name     string
	Receiver reflect.Type
	Static   bool
	Type     reflect.Type
}

func newMethodHandle(name string, receiver reflect.Type, args ReflectiveArgs) MethodHandle {
	in := make([]reflect.Type, args.NumIn())
	for i := range in {
		in[i] = args.In(i)
	}
	out := make([]reflect.Type, args.NumOut())
	for i := range out {
		out[i] = args.Out(i)
	}
	return MethodHandle{
		Name:     name,
		Receiver: receiver,
		Static:   receiver == nil,
		Type:     reflect.FuncOf(in, out, false),
	}
}

// ReturnType is the first non-error output, or nil
func (m MethodHandle) ReturnType() reflect.Type {
	if m.Type == nil {
		return nil
	}
	for i := 0; i < m.Type.NumOut(); i++ {
		if m.Type.Out(i) != errorType {
			return m.Type.Out(i)
		}
	}
	return nil
}

func (m MethodHandle) String() string {
	var prefix string
	if m.Receiver != nil {
		prefix = "(" + m.Receiver.String() + ") "
	}
	if m.Type == nil {
		return prefix + m.Name
	}
	return prefix + m.Name + strings.TrimPrefix(m.Type.String(), "func")
}

func signature(args ReflectiveArgs) string {
	in := make([]string, args.NumIn())
	for i := range in {
		in[i] = args.In(i).String()
	}
	out := make([]string, args.NumOut())
	for i := range out {
		out[i] = args.Out(i).String()
	}
	switch len(out) {
	case 0:
		return "(" + strings.Join(in, ", ") + ")"
	case 1:
		return "(" + strings.Join(in, ", ") + ") " + out[0]
	default:
		return "(" + strings.Join(in, ", ") + ") (" + strings.Join(out, ", ") + ")"
	}
}
