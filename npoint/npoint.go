package npoint

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/muir/nact"
	"github.com/muir/nact/ndoc"
	"github.com/muir/nact/nvelope"
)

const anyMethod = "ANY"

type serviceOptions struct {
	decodeOpts   []nvelope.DecodeOpt
	encodeOpts   []nvelope.EncodeOpt
	interceptors []nact.Interceptor
	middleware   []nvelope.Middleware
	docConfig    ndoc.Config
	port         int
}

// ServiceOpt are functional arguments for services
type ServiceOpt func(*serviceOptions)

// WithEncoder adds a response encoder for a content type.  See
// nvelope.WithEncoder.
func WithEncoder(contentType string, encoder nvelope.Encoder) ServiceOpt {
	return func(o *serviceOptions) {
		o.encodeOpts = append(o.encodeOpts, nvelope.WithEncoder(contentType, encoder))
	}
}

// WithEncodeOpts passes options through to nvelope.NewEncoders
func WithEncodeOpts(opts ...nvelope.EncodeOpt) ServiceOpt {
	return func(o *serviceOptions) {
		o.encodeOpts = append(o.encodeOpts, opts...)
	}
}

// WithDecoder adds a request body decoder for a content type.  See
// nvelope.WithDecoder.
func WithDecoder(contentType string, decoder nvelope.Decoder) ServiceOpt {
	return func(o *serviceOptions) {
		o.decodeOpts = append(o.decodeOpts, nvelope.WithDecoder(contentType, decoder))
	}
}

// WithInterceptors adds interceptors to every action in the service.
// They are merged with the interceptors given to RegisterAction and
// sorted by priority.
func WithInterceptors(interceptors ...nact.Interceptor) ServiceOpt {
	return func(o *serviceOptions) {
		o.interceptors = append(o.interceptors, interceptors...)
	}
}

// WithMiddleware wraps every endpoint handler.  The first middleware
// listed is the outermost.
func WithMiddleware(middleware ...nvelope.Middleware) ServiceOpt {
	return func(o *serviceOptions) {
		o.middleware = append(o.middleware, middleware...)
	}
}

// WithDocConfig controls Endpoints()
func WithDocConfig(cfg ndoc.Config) ServiceOpt {
	return func(o *serviceOptions) {
		o.docConfig = cfg
	}
}

// WithPort is the port reported by Endpoints()
func WithPort(port int) ServiceOpt {
	return func(o *serviceOptions) {
		o.port = port
	}
}

type service struct {
	Name      string
	app       *nact.App
	o         serviceOptions
	encoders  *nvelope.Encoders
	wrap      nvelope.Middleware
	lock      sync.Mutex
	endpoints []*EndpointRegistration
	claimed   map[string]*EndpointRegistration
	router    *mux.Router
}

// Service is a group of endpoints that are bound to a gorilla
// mux.Router.  Endpoints registered with a started service are
// bound immediately.
type Service struct {
	*service
}

// ServiceRegistration is a group of endpoints that will be bound
// to a router when Start() is called.  Until then, no invokers are
// built.
type ServiceRegistration struct {
	*service
	started *Service
}

// EndpointRegistration is one action registered with a service.
// Most of the gorilla mux.Route methods can be used with it.
type EndpointRegistration struct {
	svc          *service
	path         string
	meta         nact.HandlerMetadata
	interceptors []nact.Interceptor
	methods      []string
	description  string
	muxroutes    []func(*mux.Route) *mux.Route

	invoker *nact.Invoker
	chain   *nact.Chain
	route   *mux.Route
	err     error
	bound   bool
}

// PreregisterServiceWithMux creates a service that must be Start()ed
// later.  The name of the service is used for error messages.
func PreregisterServiceWithMux(name string, app *nact.App, opts ...ServiceOpt) *ServiceRegistration {
	o := serviceOptions{
		docConfig: ndoc.DefaultConfig(),
		port:      80,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &ServiceRegistration{
		service: &service{
			Name:     name,
			app:      app,
			o:        o,
			encoders: nvelope.NewEncoders(o.encodeOpts...),
			wrap:     nvelope.CombineMiddleware(o.middleware...),
			claimed:  make(map[string]*EndpointRegistration),
		},
	}
}

// RegisterServiceWithMux creates a service and starts it immediately
func RegisterServiceWithMux(name string, router *mux.Router, app *nact.App, opts ...ServiceOpt) *Service {
	return PreregisterServiceWithMux(name, app, opts...).Start(router)
}

// Start builds the invokers for every endpoint and binds them to the
// router.  Start() may only be called once.
func (s *ServiceRegistration) Start(router *mux.Router) *Service {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.started != nil {
		panic("duplicate call to Start()")
	}
	s.router = router
	for _, endpoint := range s.endpoints {
		endpoint.start()
	}
	s.started = &Service{service: s.service}
	return s.started
}

// RegisterAction pre-registers an action.  meta describes the
// handler; the interceptors wrap it in a chain along with those
// given by WithInterceptors.
//
// The return value does not need to be retained.  It can be used to
// add mux.Route-like modifiers.  They take effect when the service is
// started.
func (s *ServiceRegistration) RegisterAction(path string, meta nact.HandlerMetadata, interceptors ...nact.Interceptor) *EndpointRegistration {
	return s.register(path, meta, interceptors)
}

// RegisterAction registers and immediately binds an action.  Route
// modifiers on the return value apply to the bound route.
func (s *Service) RegisterAction(path string, meta nact.HandlerMetadata, interceptors ...nact.Interceptor) *EndpointRegistration {
	return s.register(path, meta, interceptors)
}

func (s *service) register(path string, meta nact.HandlerMetadata, interceptors []nact.Interceptor) *EndpointRegistration {
	s.lock.Lock()
	defer s.lock.Unlock()
	r := &EndpointRegistration{
		svc:          s,
		path:         path,
		meta:         meta,
		interceptors: interceptors,
	}
	s.endpoints = append(s.endpoints, r)
	if s.router != nil {
		r.start()
	}
	return r
}

// start builds the invoker and chain and binds the endpoint.  It
// panics if the handler cannot be built or the path and methods are
// already taken.  The service lock must be held.
func (r *EndpointRegistration) start() {
	if r.bound {
		return
	}
	s := r.svc
	inv, err := nact.NewInvoker(r.meta, s.app)
	if err != nil {
		panic(fmt.Sprintf("Cannot bind %s %s: %s", s.Name, r.path, nact.DetailedError(err)))
	}
	all := make([]nact.Interceptor, 0, len(s.o.interceptors)+len(r.interceptors))
	all = append(all, s.o.interceptors...)
	all = append(all, r.interceptors...)
	chain, err := nact.NewChain(s.app, inv, all...)
	if err != nil {
		panic(fmt.Sprintf("Cannot bind %s %s: %s", s.Name, r.path, err))
	}
	s.claim(r, r.methods)
	r.invoker = inv
	r.chain = chain
	r.route = s.router.HandleFunc(r.path, s.wrap(r.serveHTTP))
	for _, mod := range r.muxroutes {
		r.route = mod(r.route)
	}
	r.err = r.route.GetError()
	r.bound = true
}

func (r *EndpointRegistration) methodList() []string {
	if len(r.methods) == 0 {
		return []string{anyMethod}
	}
	return r.methods
}

func claimKey(path, method string) string {
	return method + " " + path
}

// claim records that r serves path for methods.  Two endpoints may
// not serve the same path and method.  Endpoints that accept any
// method are not checked.  The service lock must be held.
func (s *service) claim(r *EndpointRegistration, methods []string) {
	for _, m := range methods {
		if other, ok := s.claimed[claimKey(r.path, m)]; ok && other != r {
			panic(fmt.Sprintf("endpoint path already registered: %s %s in %s", m, r.path, s.Name))
		}
	}
	for key, other := range s.claimed {
		if other == r {
			delete(s.claimed, key)
		}
	}
	for _, m := range methods {
		s.claimed[claimKey(r.path, m)] = r
	}
}

// Endpoints documents the bound endpoints, sorted by path and method.
// Endpoints that accept any method are reported with method "ANY".
func (s *service) Endpoints() []ndoc.Endpoint {
	s.lock.Lock()
	defer s.lock.Unlock()
	var endpoints []ndoc.Endpoint
	for _, r := range s.endpoints {
		if !r.bound {
			continue
		}
		for _, m := range r.methodList() {
			e := ndoc.NewEndpoint(s.o.port, m, r.path, r.invoker, s.o.docConfig)
			if r.description != "" {
				e.Description = r.description
			}
			endpoints = append(endpoints, e)
		}
	}
	ndoc.SortEndpoints(endpoints)
	return endpoints
}

// Destroy destroys the chains of every bound endpoint.  Requests that
// arrive afterwards fail.
func (s *service) Destroy() {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, r := range s.endpoints {
		if r.bound {
			r.chain.Destroy()
		}
	}
}

func (r *EndpointRegistration) serveHTTP(w http.ResponseWriter, req *http.Request) {
	s := r.svc
	dw := nvelope.NewDeferredWriter(w)
	rc := nvelope.NewRequestContext(s.app, dw, req, s.o.decodeOpts...)
	log := rc.Log()
	dw.Header().Set(nvelope.RequestIDHeader, rc.RequestID())
	dw.PreserveHeader()

	result, err := r.run(rc, log)
	if err != nil {
		dw.Reset()
		s.encoders.WriteError(dw, req, err, log)
	} else {
		s.encoders.WriteResult(dw, req, result, log)
	}
	if err := dw.Flush(); err != nil {
		log.Warn("Cannot flush response", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (r *EndpointRegistration) run(rc *nvelope.RequestContext, log nact.BasicLogger) (result nact.Result, err error) {
	defer nvelope.SetErrorOnPanic(&err, log)
	return r.chain.Handle(rc)
}
