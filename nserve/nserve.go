package nserve

import (
	"sync"
)

// Callback is what gets registered to run when a hook is invoked
type Callback func() error

// App holds the callbacks for each hook.  Components register their
// teardown with On(Shutdown, ...) and the owner runs Do(Shutdown)
// when exiting.
type App struct {
	lock    sync.Mutex // held when adding hooks
	runLock sync.Mutex // held when running hooks
	hooks   map[hookId][]Callback
	done    map[hookId]bool
}

// NewApp creates an App with no callbacks
func NewApp() *App {
	return &App{
		hooks: make(map[hookId][]Callback),
		done:  make(map[hookId]bool),
	}
}

// On registers callbacks for a hook.  Callbacks may register more
// callbacks: a start callback can register the matching stop.
func (app *App) On(h *Hook, callbacks ...Callback) {
	app.lock.Lock()
	defer app.lock.Unlock()
	app.hooks[h.id] = append(app.hooks[h.id], callbacks...)
}

// Count returns the number of callbacks registered for a hook
func (app *App) Count(h *Hook) int {
	app.lock.Lock()
	defer app.lock.Unlock()
	return len(app.hooks[h.id])
}

// Done reports if a hook has been invoked at least once
func (app *App) Done(h *Hook) bool {
	app.lock.Lock()
	defer app.lock.Unlock()
	return app.done[h.id]
}

// Do invokes the callbacks for a hook.  If any fail, the hooks listed
// with OnError run next and their errors are combined with the first.
// Callbacks must not call Do.
func (app *App) Do(h *Hook) error {
	app.runLock.Lock()
	defer app.runLock.Unlock()
	return app.do(h)
}

func (app *App) do(h *Hook) error {
	s := h.settings()
	combine := func(e1, e2 error) error {
		switch {
		case e1 == nil:
			return e2
		case e2 == nil:
			return e1
		default:
			return s.errorCombiner(e1, e2)
		}
	}

	app.lock.Lock()
	callbacks := make([]Callback, len(app.hooks[h.id]))
	copy(callbacks, app.hooks[h.id])
	app.done[h.id] = true
	app.lock.Unlock()

	if s.order == ReverseOrder {
		for i, j := 0, len(callbacks)-1; i < j; i, j = i+1, j-1 {
			callbacks[i], callbacks[j] = callbacks[j], callbacks[i]
		}
	}
	var err error
	for _, cb := range callbacks {
		err = combine(err, cb())
		if err != nil && !s.continuePast {
			break
		}
	}
	if err != nil {
		for _, next := range s.onError {
			err = combine(err, app.do(next))
		}
	}
	return err
}
