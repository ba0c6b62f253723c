package nserve_test

import (
	"testing"

	"github.com/muir/nact/nserve"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func recorder(log *[]string, name string, err error) nserve.Callback {
	return func() error {
		*log = append(*log, name)
		return err
	}
}

func TestHookOrder(t *testing.T) {
	forward := nserve.NewHook("forward", nserve.ForwardOrder)
	reverse := nserve.NewHook("reverse", nserve.ReverseOrder)
	app := nserve.NewApp()
	var log []string
	app.On(forward, recorder(&log, "f1", nil), recorder(&log, "f2", nil))
	app.On(reverse, recorder(&log, "r1", nil), recorder(&log, "r2", nil))
	assert.Equal(t, 2, app.Count(forward))
	assert.False(t, app.Done(forward))

	assert.NoError(t, app.Do(forward))
	assert.NoError(t, app.Do(reverse))
	assert.Equal(t, []string{"f1", "f2", "r2", "r1"}, log)
	assert.True(t, app.Done(forward))
	assert.Equal(t, "hook forward", forward.String())
}

func TestHookErrors(t *testing.T) {
	cleanup := nserve.NewHook("cleanup", nserve.ForwardOrder)
	stopAtFirst := nserve.NewHook("first", nserve.ForwardOrder).OnError(cleanup)
	keepGoing := nserve.NewHook("all", nserve.ForwardOrder).
		ContinuePastError(true).
		SetErrorCombiner(func(first, second error) error {
			return errors.New(first.Error() + "+" + second.Error())
		})

	app := nserve.NewApp()
	var log []string
	app.On(cleanup, recorder(&log, "cleaned", nil))
	app.On(stopAtFirst, recorder(&log, "a", errors.New("a failed")), recorder(&log, "b", nil))
	app.On(keepGoing, recorder(&log, "c", errors.New("c")), recorder(&log, "d", errors.New("d")))

	assert.EqualError(t, app.Do(stopAtFirst), "a failed")
	assert.Equal(t, []string{"a", "cleaned"}, log)

	log = nil
	assert.EqualError(t, app.Do(keepGoing), "c+d")
	assert.Equal(t, []string{"c", "d"}, log)

	log = nil
	stopAtFirst.OnError(nil)
	assert.Error(t, app.Do(stopAtFirst))
	assert.Equal(t, []string{"a"}, log, "cleanup cleared")
}

func TestCallbacksRegisterCallbacks(t *testing.T) {
	open := nserve.NewHook("open", nserve.ForwardOrder)
	closing := nserve.NewHook("close", nserve.ReverseOrder)
	app := nserve.NewApp()
	var log []string
	for _, name := range []string{"x", "y"} {
		name := name
		app.On(open, func() error {
			app.On(closing, recorder(&log, "close "+name, nil))
			return nil
		})
	}
	assert.NoError(t, app.Do(open))
	assert.NoError(t, app.Do(closing))
	assert.Equal(t, []string{"close y", "close x"}, log)
}
