package npoint_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/muir/nact"
	"github.com/muir/nact/npoint"
	"github.com/muir/nact/nvelope"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	// Use a custom Transport because httptest "helpfully" kills idle
	// connections on the default transport when a httptest server shuts
	// down.
	tr = &http.Transport{
		// Disable keepalives to avoid the hassle of closing idle
		// connections after each test.
		DisableKeepAlives: true,
	}
	client = &http.Client{Transport: tr}
)

type user struct {
	ID   int    `json:"id" xml:"id"`
	Name string `json:"name" xml:"name"`
}

type users struct {
	Ctx nact.Context
}

func (c *users) Get(id int) (*user, error) {
	if id == 0 {
		return nil, nvelope.NotFound(errors.New("no such user"))
	}
	return &user{ID: id, Name: "u" + strconv.Itoa(id)}, nil
}

func (c *users) Create(u user) nact.Result {
	return nact.Created(u)
}

func (c *users) Tag() string {
	c.Ctx.(*nvelope.RequestContext).ResponseWriter().Header().Set("X-Tag", "tagged")
	return "ok"
}

func (c *users) Gate(ctx nact.Context) nact.Result {
	if ctx.(*nvelope.RequestContext).Request().Header.Get("X-Token") == "" {
		return nact.Status(http.StatusUnauthorized, "no token")
	}
	return nil
}

func newApp(t *testing.T) (*nact.App, string) {
	app := nact.NewApp()
	class := app.RegisterController(&users{})
	nvelope.RegisterBody(app, user{})
	return app, class
}

func action(class string, method string, params ...nact.ParameterDescriptor) nact.HandlerMetadata {
	return nact.HandlerMetadata{
		ClassName:        class,
		MethodName:       method,
		Params:           params,
		ContextInjection: nact.FieldInjection("Ctx"),
	}
}

var idParam = nact.MustParam("id", reflect.TypeOf(0))

func do(t *testing.T, req *http.Request) (*http.Response, string) {
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func get(t *testing.T, url string, header ...string) (*http.Response, string) {
	// nolint:noctx
	req, err := http.NewRequest("GET", url, nil)
	require.NoError(t, err)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	return do(t, req)
}

func startService(t *testing.T, opts ...npoint.ServiceOpt) (*npoint.Service, *httptest.Server) {
	app, class := newApp(t)
	router := mux.NewRouter()
	s := npoint.RegisterServiceWithMux(t.Name(), router, app, opts...)
	s.RegisterAction("/users/{id}", action(class, "Get", idParam)).Methods("GET")
	s.RegisterAction("/users", action(class, "Create", nact.MustParam("u", reflect.TypeOf(user{})))).Methods("POST")
	s.RegisterAction("/tag", action(class, "Tag"))
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return s, server
}

func TestServeJSON(t *testing.T) {
	t.Parallel()
	_, server := startService(t)

	resp, body := get(t, server.URL+"/users/7")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"id":7,"name":"u7"}`, body)
	assert.NotEmpty(t, resp.Header.Get(nvelope.RequestIDHeader))

	resp, _ = get(t, server.URL+"/users/7", nvelope.RequestIDHeader, "abc-123")
	assert.Equal(t, "abc-123", resp.Header.Get(nvelope.RequestIDHeader))
}

func TestServeNegotiated(t *testing.T) {
	t.Parallel()
	_, server := startService(t)

	resp, body := get(t, server.URL+"/users/3", "Accept", "application/xml")
	assert.Equal(t, "application/xml", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, "<id>3</id>")

	resp, body = get(t, server.URL+"/users/3", "Accept", "text/html, application/yaml")
	assert.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, "name: u3")
}

func TestServeErrors(t *testing.T) {
	t.Parallel()
	_, server := startService(t)

	resp, body := get(t, server.URL+"/users/0")
	assert.Equal(t, 404, resp.StatusCode)
	var er nvelope.ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(body), &er), body)
	assert.Equal(t, 404, er.Status)
	assert.Contains(t, er.Message, "no such user")
	assert.NotEmpty(t, resp.Header.Get(nvelope.RequestIDHeader), "kept through Reset")

	resp, _ = get(t, server.URL+"/users/abc")
	assert.Equal(t, 400, resp.StatusCode, "bind errors")

	resp, _ = get(t, server.URL+"/nowhere")
	assert.Equal(t, 404, resp.StatusCode)

	// nolint:noctx
	req, err := http.NewRequest("DELETE", server.URL+"/users/1", nil)
	require.NoError(t, err)
	resp, _ = do(t, req)
	assert.Equal(t, 405, resp.StatusCode)
}

func TestServePost(t *testing.T) {
	t.Parallel()
	_, server := startService(t)
	// nolint:noctx
	req, err := http.NewRequest("POST", server.URL+"/users", strings.NewReader(`{"id":9,"name":"nine"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, body := do(t, req)
	assert.Equal(t, 201, resp.StatusCode)
	assert.JSONEq(t, `{"id":9,"name":"nine"}`, body)
}

func TestServeHeadersFromHandler(t *testing.T) {
	t.Parallel()
	_, server := startService(t)
	resp, body := get(t, server.URL+"/tag")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "tagged", resp.Header.Get("X-Tag"))
	assert.Equal(t, "ok", body)
}

type panicky struct{}

func (panicky) Priority() int                                { return 0 }
func (panicky) Accept(nact.Visitor)                          {}
func (panicky) Destroy()                                     {}
func (panicky) Handle(ctx nact.Context) (nact.Result, error) { panic("interceptor exploded") }

func TestServePanic(t *testing.T) {
	t.Parallel()
	_, server := startService(t, npoint.WithInterceptors(panicky{}))
	resp, body := get(t, server.URL+"/users/1")
	assert.Equal(t, 500, resp.StatusCode)
	assert.Contains(t, body, "interceptor exploded")
}

func TestServiceInterceptors(t *testing.T) {
	t.Parallel()
	app, class := newApp(t)
	router := mux.NewRouter()
	gate := nact.NewBefore(nact.MustInvoker(action(class, "Gate",
		nact.MustParam("ctx", reflect.TypeOf((*nact.Context)(nil)).Elem())), app))
	s := npoint.RegisterServiceWithMux("gated", router, app, npoint.WithInterceptors(gate))
	s.RegisterAction("/users/{id}", action(class, "Get", idParam))
	server := httptest.NewServer(router)
	defer server.Close()

	resp, body := get(t, server.URL+"/users/5")
	assert.Equal(t, 401, resp.StatusCode)
	assert.Contains(t, body, "no token")

	resp, _ = get(t, server.URL+"/users/5", "X-Token", "t")
	assert.Equal(t, 200, resp.StatusCode)
}

func TestServiceMiddleware(t *testing.T) {
	t.Parallel()
	var order []string
	mw := func(name string) nvelope.Middleware {
		return func(inner http.HandlerFunc) http.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				inner(w, r)
			}
		}
	}
	_, server := startService(t, npoint.WithMiddleware(mw("outer"), mw("inner")))
	resp, _ := get(t, server.URL+"/users/1")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestPreregisterWaitsForStart(t *testing.T) {
	t.Parallel()
	app, class := newApp(t)
	s := npoint.PreregisterServiceWithMux("later", app)
	ep := s.RegisterAction("/broken", action(class, "NoSuchMethod"))
	_, err := ep.Invoker()
	assert.Error(t, err, "not built before Start")
	_, err = ep.Route()
	assert.Error(t, err)
	assert.Panics(t, func() { s.Start(mux.NewRouter()) })
}

func TestStartTwice(t *testing.T) {
	t.Parallel()
	app, class := newApp(t)
	s := npoint.PreregisterServiceWithMux("twice", app)
	ep := s.RegisterAction("/users/{id}", action(class, "Get", idParam)).Name("user")
	s.Start(mux.NewRouter())
	inv, err := ep.Invoker()
	require.NoError(t, err)
	assert.Equal(t, "Get", inv.Method().Name)
	assert.Equal(t, "user", ep.GetName())
	tpl, err := ep.GetPathTemplate()
	require.NoError(t, err)
	assert.Equal(t, "/users/{id}", tpl)
	u, err := ep.URL("id", "4")
	require.NoError(t, err)
	assert.Equal(t, "/users/4", u.String())
	assert.Panics(t, func() { s.Start(mux.NewRouter()) })
}

func TestDuplicateEndpoints(t *testing.T) {
	t.Parallel()
	app, class := newApp(t)
	router := mux.NewRouter()
	s := npoint.RegisterServiceWithMux("dups", router, app)
	s.RegisterAction("/users/{id}", action(class, "Get", idParam)).Methods("GET")
	s.RegisterAction("/users/{id}", action(class, "Get", idParam)).Methods("PUT")
	assert.Panics(t, func() {
		s.RegisterAction("/users/{id}", action(class, "Get", idParam)).Methods("get")
	}, "same path and method")
	s.RegisterAction("/users/{id}", action(class, "Get", idParam)).Methods("POST", "PATCH")
	assert.Panics(t, func() {
		s.RegisterAction("/users/{id}", action(class, "Get", idParam)).Methods("DELETE", "PATCH")
	})
	s.RegisterAction("/tag", action(class, "Tag"))
	s.RegisterAction("/tag", action(class, "Tag")).Methods("GET")

	p := npoint.PreregisterServiceWithMux("predups", app)
	p.RegisterAction("/x", action(class, "Tag")).Methods("GET")
	p.RegisterAction("/x", action(class, "Tag")).Methods("GET")
	assert.Panics(t, func() { p.Start(mux.NewRouter()) })
}

func TestRegisterAfterStart(t *testing.T) {
	t.Parallel()
	app, class := newApp(t)
	s := npoint.PreregisterServiceWithMux("after", app)
	router := mux.NewRouter()
	started := s.Start(router)
	ep := s.RegisterAction("/users/{id}", action(class, "Get", idParam))
	_, err := ep.Invoker()
	assert.NoError(t, err, "bound immediately")
	started.RegisterAction("/tag", action(class, "Tag")).Methods("GET")
	server := httptest.NewServer(router)
	defer server.Close()

	resp, _ := get(t, server.URL+"/users/2")
	assert.Equal(t, 200, resp.StatusCode)
	resp, _ = get(t, server.URL+"/tag")
	assert.Equal(t, 200, resp.StatusCode)
}

func TestDestroy(t *testing.T) {
	t.Parallel()
	s, server := startService(t)
	s.Destroy()
	resp, _ := get(t, server.URL+"/users/1")
	assert.Equal(t, 500, resp.StatusCode)
}

func TestEndpointsAndAPIDoc(t *testing.T) {
	t.Parallel()
	s, server := startService(t, npoint.WithPort(8080))
	s.RegisterAPIDoc("/api")

	eps := s.Endpoints()
	require.Len(t, eps, 3)
	assert.Equal(t, "ANY", eps[0].HTTPMethod)
	assert.Equal(t, "/tag", eps[0].Path)
	assert.Equal(t, "POST", eps[1].HTTPMethod)
	assert.Equal(t, "/users", eps[1].Path)
	assert.Equal(t, "GET", eps[2].HTTPMethod)
	assert.Equal(t, "/users/{id}", eps[2].Path)
	assert.Equal(t, "github.com/muir/nact/npoint_test.users.Get", eps[2].ID)
	assert.Equal(t, 8080, eps[2].Port)

	resp, body := get(t, server.URL+"/api")
	assert.Equal(t, 200, resp.StatusCode)
	var doc struct {
		Service   string `json:"service"`
		Endpoints []struct {
			ID         string `json:"id"`
			HTTPMethod string `json:"http_method"`
		} `json:"endpoints"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &doc), body)
	assert.Equal(t, t.Name(), doc.Service)
	assert.Len(t, doc.Endpoints, 3)
}

func TestEndpointDescription(t *testing.T) {
	t.Parallel()
	app, class := newApp(t)
	s := npoint.RegisterServiceWithMux("described", mux.NewRouter(), app)
	s.RegisterAction("/users/{id}", action(class, "Get", idParam)).Methods("GET").Description("look up a user")
	eps := s.Endpoints()
	require.Len(t, eps, 1)
	assert.Equal(t, "look up a user", eps[0].Description)
}
