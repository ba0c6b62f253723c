package nact

import (
	"sort"

	"github.com/pkg/errors"
)

// Chain runs an action with its interceptors.  Each role is sorted by
// priority, lower first:
//
//	befores      the first non-nil Result short-circuits the rest and the action
//	action       skipped when a before produced a Result
//	exceptions   on error, the first non-nil Result recovers
//	afters       a non-nil Result replaces the current one
//	finallies    always run; their errors are logged
type Chain struct {
	Action     ActionHandler
	Befores    []BeforeInterceptor
	Afters     []AfterInterceptor
	Exceptions []ExceptionInterceptor
	Finallies  []FinallyInterceptor
	log        BasicLogger
}

// NewChain builds a chain around an action.  Interceptors can be any
// mix of the four interceptor roles.
func NewChain(app *App, action ActionHandler, interceptors ...Interceptor) (*Chain, error) {
	c := &Chain{
		Action: action,
		log:    app.log,
	}
	for _, i := range interceptors {
		switch i := i.(type) {
		case BeforeInterceptor:
			c.Befores = append(c.Befores, i)
		case AfterInterceptor:
			c.Afters = append(c.Afters, i)
		case ExceptionInterceptor:
			c.Exceptions = append(c.Exceptions, i)
		case FinallyInterceptor:
			c.Finallies = append(c.Finallies, i)
		default:
			return nil, errors.Errorf("%T is not an interceptor role", i)
		}
	}
	sort.SliceStable(c.Befores, func(a, b int) bool { return c.Befores[a].Priority() < c.Befores[b].Priority() })
	sort.SliceStable(c.Afters, func(a, b int) bool { return c.Afters[a].Priority() < c.Afters[b].Priority() })
	sort.SliceStable(c.Exceptions, func(a, b int) bool { return c.Exceptions[a].Priority() < c.Exceptions[b].Priority() })
	sort.SliceStable(c.Finallies, func(a, b int) bool { return c.Finallies[a].Priority() < c.Finallies[b].Priority() })
	return c, nil
}

// Handle runs the chain for one request
func (c *Chain) Handle(ctx Context) (result Result, err error) {
	defer c.finally(ctx)
	for _, b := range c.Befores {
		result, err = b.Handle(ctx)
		if err != nil || result != nil {
			break
		}
	}
	if result == nil && err == nil {
		result, err = c.Action.Handle(ctx)
	}
	if err != nil {
		for _, e := range c.Exceptions {
			r, err2 := e.Handle(err, ctx)
			if err2 != nil {
				return nil, err2
			}
			if r != nil {
				result, err = r, nil
				break
			}
		}
		if err != nil {
			return nil, err
		}
	}
	for _, a := range c.Afters {
		r, err := a.Handle(result, ctx)
		if err != nil {
			return nil, err
		}
		if r != nil {
			result = r
		}
	}
	return result, nil
}

func (c *Chain) finally(ctx Context) {
	for _, f := range c.Finallies {
		if err := f.Handle(ctx); err != nil {
			c.log.Warn("finally interceptor failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}

// Accept visits the action and every interceptor
func (c *Chain) Accept(v Visitor) {
	c.Action.Accept(v)
	for _, i := range c.interceptors() {
		i.Accept(v)
	}
}

// Destroy destroys the action and every interceptor
func (c *Chain) Destroy() {
	c.Action.Destroy()
	for _, i := range c.interceptors() {
		i.Destroy()
	}
}

func (c *Chain) interceptors() []Interceptor {
	all := make([]Interceptor, 0, len(c.Befores)+len(c.Afters)+len(c.Exceptions)+len(c.Finallies))
	for _, i := range c.Befores {
		all = append(all, i)
	}
	for _, i := range c.Afters {
		all = append(all, i)
	}
	for _, i := range c.Exceptions {
		all = append(all, i)
	}
	for _, i := range c.Finallies {
		all = append(all, i)
	}
	return all
}
