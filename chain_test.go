package nact

import (
	"reflect"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type audit struct {
	events []string
}

type auditController struct{}

func (auditController) Mark(ctx Context, label string) {
	ctx.(*auditContext).trail.events = append(ctx.(*auditContext).trail.events, label)
}

func (auditController) Gate(ctx Context) Result {
	if v, _ := ctx.ParamVal("block"); v != "" {
		return Status(403, "blocked")
	}
	return nil
}

func (auditController) Act(ctx Context) (string, error) {
	ctx.(*auditContext).trail.events = append(ctx.(*auditContext).trail.events, "action")
	if v, _ := ctx.ParamVal("fail"); v != "" {
		return "", errors.New(v)
	}
	return "done", nil
}

func (auditController) Recover(err error) Result {
	return Status(500, "recovered "+err.Error())
}

func (auditController) Wrap(r Result) Result {
	return Status(r.StatusCode(), "wrapped "+r.Body().(string))
}

type auditContext struct {
	*MapContext
	trail *audit
}

func newAuditContext(app *App, values map[string][]string) *auditContext {
	return &auditContext{
		MapContext: NewMapContext(app, values),
		trail:      &audit{},
	}
}

func TestChainOrdering(t *testing.T) {
	app := NewApp()
	app.RegisterControllerAs("audit", auditController{})
	strType := reflect.TypeOf("")
	mark := func(label string, priority int) *Invoker {
		return MustInvoker(HandlerMetadata{
			ClassName:  "audit",
			MethodName: "Mark",
			Priority:   priority,
			Params: []ParameterDescriptor{
				MustParam("ctx", contextType),
				MustParam("label", strType, `@Default("`+label+`")`),
			},
		}, app)
	}
	gate := MustInvoker(HandlerMetadata{
		ClassName:  "audit",
		MethodName: "Gate",
		Priority:   5,
		Params:     []ParameterDescriptor{MustParam("ctx", contextType)},
	}, app)
	act := MustInvoker(HandlerMetadata{
		ClassName:  "audit",
		MethodName: "Act",
		Params:     []ParameterDescriptor{MustParam("ctx", contextType)},
	}, app)
	recoverer := MustInvoker(HandlerMetadata{
		ClassName:  "audit",
		MethodName: "Recover",
		Params:     []ParameterDescriptor{MustParam("err", errorType)},
	}, app)
	wrap := MustInvoker(HandlerMetadata{
		ClassName:  "audit",
		MethodName: "Wrap",
		Params:     []ParameterDescriptor{MustParam("r", resultType)},
	}, app)

	chain, err := NewChain(app, act,
		NewBefore(mark("second", 2)),
		NewBefore(mark("first", 1)),
		NewBefore(gate),
		NewFinally(mark("finally", 0)),
		NewException(recoverer),
		NewAfter(wrap),
	)
	require.NoError(t, err)

	ctx := newAuditContext(app, nil)
	result, err := chain.Handle(ctx)
	require.NoError(t, err)
	assert.Equal(t, "wrapped done", result.Body())
	assert.Equal(t, []string{"first", "second", "action", "finally"}, ctx.trail.events)

	ctx = newAuditContext(app, map[string][]string{"block": {"yes"}})
	result, err = chain.Handle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 403, result.StatusCode(), "gate short-circuits")
	assert.Equal(t, "wrapped blocked", result.Body())
	assert.Equal(t, []string{"first", "second", "finally"}, ctx.trail.events)

	ctx = newAuditContext(app, map[string][]string{"fail": {"bad"}})
	result, err = chain.Handle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 500, result.StatusCode())
	assert.Equal(t, "wrapped recovered audit.Act: bad", result.Body())

	var visited int
	chain.Accept(VisitorFunc(func(reflect.Type, MethodHandle) { visited++ }))
	assert.Equal(t, 7, visited)

	chain.Destroy()
	_, err = chain.Handle(newAuditContext(app, nil))
	assert.True(t, errors.Is(err, ErrDestroyed))
}

func TestChainUnrecoveredError(t *testing.T) {
	app := NewApp()
	app.RegisterControllerAs("audit", auditController{})
	act := MustInvoker(HandlerMetadata{
		ClassName:  "audit",
		MethodName: "Act",
		Params:     []ParameterDescriptor{MustParam("ctx", contextType)},
	}, app)
	chain, err := NewChain(app, act)
	require.NoError(t, err)
	_, err = chain.Handle(newAuditContext(app, map[string][]string{"fail": {"bad"}}))
	var ue *UnexpectedError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "bad", errors.Cause(err).Error())
}

type notAnInterceptor struct{}

func (notAnInterceptor) Priority() int  { return 0 }
func (notAnInterceptor) Accept(Visitor) {}
func (notAnInterceptor) Destroy()       {}

func TestChainRejectsUnknownRole(t *testing.T) {
	app := NewApp()
	_, err := NewChain(app, nil, notAnInterceptor{})
	assert.Error(t, err)
}
