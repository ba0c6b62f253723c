package nact

import (
	"bytes"
	"log"
	"reflect"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type injectable struct {
	Ctx    Context
	Other  string
	hidden Context
}

func (i *injectable) Touch() {}

func TestFieldSetterCachedOnce(t *testing.T) {
	ClearFieldSetters()
	typ := reflect.TypeOf(&injectable{})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fs, err := getFieldSetter(typ, "Ctx")
			assert.NoError(t, err)
			assert.NotNil(t, fs)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, fieldSetterCount())

	app := NewApp()
	ctx := NewMapContext(app, nil)
	fs, err := getFieldSetter(typ, "Ctx")
	require.NoError(t, err)
	target := &injectable{}
	require.NoError(t, fs(reflect.ValueOf(target), ctx))
	assert.Same(t, ctx, target.Ctx)

	ClearFieldSetters()
	assert.Zero(t, fieldSetterCount())
}

func TestFieldSetterRejects(t *testing.T) {
	typ := reflect.TypeOf(&injectable{})
	for _, field := range []string{"Other", "hidden", "Missing"} {
		_, err := getFieldSetter(typ, field)
		assert.True(t, errors.Is(err, ErrFieldInjection), field)
	}
	_, err := getFieldSetter(reflect.TypeOf(injectable{}), "Ctx")
	assert.True(t, errors.Is(err, ErrFieldInjection), "not a pointer")
}

func TestInvocationSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	app, class := newGreeterApp(t, WithTracer(provider.Tracer("test")))

	greet := MustInvoker(greetMeta(class), app)
	_, err := greet.Handle(NewMapContext(app, map[string][]string{"name": {"Al"}}))
	require.NoError(t, err)

	fail := MustInvoker(HandlerMetadata{ClassName: class, MethodName: "Fail"}, app)
	_, err = fail.Handle(NewMapContext(app, nil))
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, class+".Greet", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.Int("nact.status", 200))
	assert.Contains(t, spans[0].Attributes(), attribute.String("nact.handler", class+".Greet"))
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestLogrusLogger(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	l := LoggerFromLogrus(logger)
	l.Warn("careful", map[string]interface{}{"a": 1}, map[string]interface{}{"b": "x"})
	l.Debug("detail")
	l.Error("broken")
	entries := hook.AllEntries()
	require.Len(t, entries, 3)
	assert.Equal(t, logrus.WarnLevel, entries[0].Level)
	assert.Equal(t, logrus.Fields{"a": 1, "b": "x"}, entries[0].Data)
	assert.Equal(t, logrus.DebugLevel, entries[1].Level)
	assert.Equal(t, "broken", entries[2].Message)
}

func TestStdLogger(t *testing.T) {
	var buf bytes.Buffer
	l := LoggerFromStd(log.New(&buf, "", 0))
	l.Error("oops", map[string]interface{}{"code": 7})
	assert.Equal(t, "oops code=7\n", buf.String())
	NoLogger().Error("ignored")
}

func TestInvokerLogsCreation(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	app, class := newGreeterApp(t, WithLogger(LoggerFromLogrus(logger)))
	MustInvoker(greetMeta(class), app)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "invoker created", entry.Message)
	assert.Equal(t, class+".Greet", entry.Data["handler"])
}

func TestInferResult(t *testing.T) {
	assert.Equal(t, 204, InferResult(nil, nil).StatusCode())
	r := Created("x")
	assert.Same(t, r, InferResult(r, nil))
	text := InferResult("hi", nil).(*Response)
	assert.Equal(t, "text/plain; charset=utf-8", text.ContentType)
	raw := InferResult([]byte("b"), nil).(*Response)
	assert.Equal(t, "application/octet-stream", raw.ContentType)
	assert.Equal(t, 200, InferResult(3, nil).StatusCode())
	redirect := Redirect("/x")
	assert.Equal(t, "/x", redirect.Header.Get("Location"))
}

func TestHaltResult(t *testing.T) {
	r := Status(401, "no")
	res, ok := HaltResult(errors.Wrap(Halt(r), "wrapped"))
	require.True(t, ok)
	assert.Same(t, r, res)
	_, ok = HaltResult(errors.New("plain"))
	assert.False(t, ok)
}
