package nvelope_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gorilla/mux"
	"github.com/muir/nact"
	"github.com/muir/nact/npoint"
)

type testServer struct {
	*httptest.Server
}

// startTestServer serves f, registered as a static handler, at path
// for POST requests.
func startTestServer(path string, app *nact.App, f interface{}, params ...nact.ParameterDescriptor) testServer {
	app.RegisterFunc("test", "handler", f)
	router := mux.NewRouter()
	service := npoint.RegisterServiceWithMux("example", router, app)
	service.RegisterAction(path, nact.HandlerMetadata{
		ClassName:  "test",
		MethodName: "handler",
		Static:     true,
		Params:     params,
	}).Methods("POST")
	return testServer{Server: httptest.NewServer(router)}
}

// do returns "status->body"
func (ts testServer) do(req *http.Request) string {
	res, err := ts.Client().Do(req)
	if err != nil {
		return fmt.Sprint("response error: ", err)
	}
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Sprint("read error: ", err)
	}
	res.Body.Close()
	return fmt.Sprint(res.StatusCode, "->"+string(b))
}

func (ts testServer) request(url, contentType, body string, headers ...string) string {
	// nolint:noctx
	req, err := http.NewRequest("POST", ts.URL+url, strings.NewReader(body))
	if err != nil {
		return fmt.Sprint("request error: ", err)
	}
	req.Header.Set("Content-Type", contentType)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Add(headers[i], headers[i+1])
	}
	return ts.do(req)
}

func captureOutput(path string, app *nact.App, f interface{}, params ...nact.ParameterDescriptor) func(url, body string) string {
	ts := startTestServer(path, app, f, params...)
	return func(url string, body string) string {
		return ts.request(url, "application/json", body)
	}
}
