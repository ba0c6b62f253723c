package npoint

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"github.com/muir/nact"
	"github.com/pkg/errors"
)

// add queues a route modifier.  If the endpoint is already bound, the
// modifier is applied right away.
func (r *EndpointRegistration) add(f func(m *mux.Route) *mux.Route) {
	r.svc.lock.Lock()
	defer r.svc.lock.Unlock()
	if r.bound {
		r.route = f(r.route)
		r.err = r.route.GetError()
		return
	}
	r.muxroutes = append(r.muxroutes, f)
}

// Route returns the *mux.Route that has been registered to this endpoint, if possible.
func (r *EndpointRegistration) Route() (*mux.Route, error) {
	if !r.bound {
		return nil, errors.Errorf("Registration is not complete for %s", r.path)
	}
	return r.route, nil
}

// Invoker returns the invoker built for this endpoint, if it has been bound
func (r *EndpointRegistration) Invoker() (*nact.Invoker, error) {
	if !r.bound {
		return nil, errors.Errorf("Registration is not complete for %s", r.path)
	}
	return r.invoker, nil
}

// Description replaces the endpoint id as the documented description
func (r *EndpointRegistration) Description(text string) *EndpointRegistration {
	r.svc.lock.Lock()
	defer r.svc.lock.Unlock()
	r.description = text
	return r
}

// Methods applies the mux.Route method of the same name to this
// endpoint.  It should be called at most once.  Registering a path and
// method that another endpoint of the service already serves panics.
func (r *EndpointRegistration) Methods(methods ...string) *EndpointRegistration {
	upper := make([]string, len(methods))
	for i, m := range methods {
		upper[i] = strings.ToUpper(m)
	}
	f := func(m *mux.Route) *mux.Route { return m.Methods(upper...) }
	r.svc.lock.Lock()
	defer r.svc.lock.Unlock()
	r.methods = upper
	if r.bound {
		r.svc.claim(r, r.methods)
		r.route = f(r.route)
		r.err = r.route.GetError()
		return r
	}
	r.muxroutes = append(r.muxroutes, f)
	return r
}

// BuildOnly applies the mux.Route method of the same name to this endpoint when the endpoint is initialized.
func (r *EndpointRegistration) BuildOnly() *EndpointRegistration {
	r.add(func(m *mux.Route) *mux.Route { return m.BuildOnly() })
	return r
}

// BuildVarsFunc applies the mux.Route method of the same name to this endpoint when the endpoint is initialized.
func (r *EndpointRegistration) BuildVarsFunc(f mux.BuildVarsFunc) *EndpointRegistration {
	r.add(func(m *mux.Route) *mux.Route { return m.BuildVarsFunc(f) })
	return r
}

// Headers applies the mux.Route method of the same name to this endpoint when the endpoint is initialized.
func (r *EndpointRegistration) Headers(pairs ...string) *EndpointRegistration {
	r.add(func(m *mux.Route) *mux.Route { return m.Headers(pairs...) })
	return r
}

// HeadersRegexp applies the mux.Route method of the same name to this endpoint when the endpoint is initialized.
func (r *EndpointRegistration) HeadersRegexp(pairs ...string) *EndpointRegistration {
	r.add(func(m *mux.Route) *mux.Route { return m.HeadersRegexp(pairs...) })
	return r
}

// Host applies the mux.Route method of the same name to this endpoint when the endpoint is initialized.
func (r *EndpointRegistration) Host(tpl string) *EndpointRegistration {
	r.add(func(m *mux.Route) *mux.Route { return m.Host(tpl) })
	return r
}

// MatcherFunc applies the mux.Route method of the same name to this endpoint when the endpoint is initialized.
func (r *EndpointRegistration) MatcherFunc(f mux.MatcherFunc) *EndpointRegistration {
	r.add(func(m *mux.Route) *mux.Route { return m.MatcherFunc(f) })
	return r
}

// Name applies the mux.Route method of the same name to this endpoint when the endpoint is initialized.
func (r *EndpointRegistration) Name(name string) *EndpointRegistration {
	r.add(func(m *mux.Route) *mux.Route { return m.Name(name) })
	return r
}

// Queries applies the mux.Route method of the same name to this endpoint when the endpoint is initialized.
func (r *EndpointRegistration) Queries(pairs ...string) *EndpointRegistration {
	r.add(func(m *mux.Route) *mux.Route { return m.Queries(pairs...) })
	return r
}

// Schemes applies the mux.Route method of the same name to this endpoint when the endpoint is initialized.
func (r *EndpointRegistration) Schemes(schemes ...string) *EndpointRegistration {
	r.add(func(m *mux.Route) *mux.Route { return m.Schemes(schemes...) })
	return r
}

// GetError calls the mux.Route method of the same name on the route created for this endpoint.
func (r *EndpointRegistration) GetError() error {
	return r.err
}

// GetName calls the mux.Route method of the same name on the route created for this endpoint.
func (r *EndpointRegistration) GetName() string {
	return r.route.GetName()
}

// GetPathTemplate calls the mux.Route method of the same name on the route created for this endpoint.
func (r *EndpointRegistration) GetPathTemplate() (string, error) {
	return r.route.GetPathTemplate()
}

// Match calls the mux.Route method of the same name on the route created for this endpoint.
func (r *EndpointRegistration) Match(req *http.Request, match *mux.RouteMatch) bool {
	return r.route.Match(req, match)
}

// URL calls the mux.Route method of the same name on the route created for this endpoint.
func (r *EndpointRegistration) URL(pairs ...string) (*url.URL, error) {
	return r.route.URL(pairs...)
}

// URLPath calls the mux.Route method of the same name on the route created for this endpoint.
func (r *EndpointRegistration) URLPath(pairs ...string) (*url.URL, error) {
	return r.route.URLPath(pairs...)
}
