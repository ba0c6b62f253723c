package nact

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

type argsWrapper struct {
	t reflect.Type
}

var _ ReflectiveArgs = argsWrapper{}

func (f argsWrapper) NumIn() int             { return f.t.NumIn() }
func (f argsWrapper) In(i int) reflect.Type  { return f.t.In(i) }
func (f argsWrapper) NumOut() int            { return f.t.NumOut() }
func (f argsWrapper) Out(i int) reflect.Type { return f.t.Out(i) }

func TestSignature(t *testing.T) {
	cases := []struct {
		fn   interface{}
		want string
	}{
		{func() {}, "()"},
		{func(int, string) {}, "(int, string)"},
		{func(int) error { return nil }, "(int) error"},
		{func(Context) (Result, error) { return nil, nil }, "(nact.Context) (nact.Result, error)"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, signature(argsWrapper{t: reflect.TypeOf(tc.fn)}))
	}
}

func TestMethodHandle(t *testing.T) {
	gt := reflect.TypeOf(&greeter{})
	m, ok := gt.MethodByName("Three")
	if !assert.True(t, ok) {
		return
	}
	inv := methodInvocable{method: m}
	assert.Equal(t, 3, inv.NumIn(), "receiver is not counted")
	assert.Equal(t, intType, inv.In(1))

	h := newMethodHandle("Three", gt, inv)
	assert.False(t, h.Static)
	assert.Equal(t, stringType, h.ReturnType())
	assert.Equal(t, "(*nact.greeter) Three(nact.Context, int, string) (string, error)", h.String())

	out := inv.Invoke(reflect.ValueOf(&greeter{}), []reflect.Value{
		reflect.Zero(reflect.TypeOf((*Context)(nil)).Elem()),
		reflect.ValueOf(7),
		reflect.ValueOf("x"),
	})
	assert.Equal(t, "7x", out[0].Interface())

	fn := func(a int) error { return fmt.Errorf("%d", a) }
	static := staticInvocable{Type: reflect.TypeOf(fn), fn: reflect.ValueOf(fn)}
	sh := newMethodHandle("fn", nil, static)
	assert.True(t, sh.Static)
	assert.Nil(t, sh.ReturnType(), "only an error")
	assert.Equal(t, "fn(int) error", sh.String())
	out = static.Invoke(reflect.Value{}, []reflect.Value{reflect.ValueOf(3)})
	assert.EqualError(t, out[0].Interface().(error), "3")

	assert.Equal(t, "named", MethodHandle{Name: "named"}.String())
	assert.Nil(t, MethodHandle{}.ReturnType())
}
