package nserve

import (
	"sync"
	"sync/atomic"
)

type hookOrder string

const (
	ForwardOrder hookOrder = "forward"
	ReverseOrder hookOrder = "reverse"
)

type hookId int32

var lastHookId int32

// Hook names a list of callbacks.  Callbacks are stored per App, the
// Hook only says how they are run: in which order, whether to keep
// going after an error, how errors combine, and which hooks follow a
// failure.
type Hook struct {
	Name string
	id   hookId

	lock          sync.Mutex
	order         hookOrder
	continuePast  bool
	errorCombiner func(first, second error) error
	onError       []*Hook
}

type hookSettings struct {
	order         hookOrder
	continuePast  bool
	errorCombiner func(first, second error) error
	onError       []*Hook
}

// NewHook creates a new category of callbacks
func NewHook(name string, order hookOrder) *Hook {
	return &Hook{
		Name:  name,
		id:    hookId(atomic.AddInt32(&lastHookId, 1)),
		order: order,
	}
}

// OnError adds a hook to invoke when this hook returns an error.
// Call with nil to clear the list.
func (h *Hook) OnError(e *Hook) *Hook {
	h.lock.Lock()
	defer h.lock.Unlock()
	if e == nil {
		h.onError = nil
	} else {
		h.onError = append(h.onError, e)
	}
	return h
}

// SetErrorCombiner sets how two errors become one when more than one
// callback fails.  Without a combiner the first error is kept.
func (h *Hook) SetErrorCombiner(f func(first, second error) error) *Hook {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.errorCombiner = f
	return h
}

// ContinuePastError sets if the remaining callbacks run after one
// has failed.
func (h *Hook) ContinuePastError(b bool) *Hook {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.continuePast = b
	return h
}

func (h *Hook) settings() hookSettings {
	h.lock.Lock()
	defer h.lock.Unlock()
	s := hookSettings{
		order:         h.order,
		continuePast:  h.continuePast,
		errorCombiner: h.errorCombiner,
		onError:       make([]*Hook, len(h.onError)),
	}
	copy(s.onError, h.onError)
	if s.errorCombiner == nil {
		s.errorCombiner = func(first, _ error) error { return first }
	}
	return s
}

func (h *Hook) String() string {
	return "hook " + h.Name
}

// Shutdown runs in reverse registration order and does not stop at
// the first error.  nact.App destroys its invokers with it.
var Shutdown = NewHook("shutdown", ReverseOrder).ContinuePastError(true)

// Stop runs when Start fails and is followed by Shutdown
var Stop = NewHook("stop", ReverseOrder).OnError(Shutdown).ContinuePastError(true)

// Start stops at the first failure
var Start = NewHook("start", ForwardOrder).OnError(Stop)
