package nvelope_test

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http/httptest"
	"reflect"
	"strings"

	"github.com/gorilla/mux"
	"github.com/muir/nact"
	"github.com/muir/nact/npoint"
	"github.com/muir/nact/nvelope"
)

type PostBodyModel struct {
	Use      string `json:"use"`
	Exported string `json:"exported"`
	Names    string `json:"names"`
}

type ExampleRequestBundle struct {
	Request     PostBodyModel `nvelope:"model"`
	With        string        `nvelope:"path,name=with"`
	Parameters  int64         `nvelope:"path,name=parameters"`
	Friends     []int         `nvelope:"query,name=friends"`
	ContentType string        `nvelope:"header,name=Content-Type"`
}

type ExampleResponse struct {
	Stuff string `json:"stuff"`
	Here  string `json:"here,omitempty"`
}

func HandleExampleEndpoint(req ExampleRequestBundle) (ExampleResponse, error) {
	if req.ContentType != "application/json" {
		return ExampleResponse{}, nvelope.BadRequest(errors.New("content type must be application/json"))
	}
	return ExampleResponse{
		Stuff: fmt.Sprintf("%s %d %v %s", req.With, req.Parameters, req.Friends, req.Request.Use),
	}, nil
}

func Service(router *mux.Router) {
	app := nact.NewApp(nact.WithLogger(nact.LoggerFromStd(log.Default())))
	if err := nvelope.RegisterModel(app, ExampleRequestBundle{}); err != nil {
		panic(err)
	}
	app.RegisterFunc("example", "handle", HandleExampleEndpoint)
	service := npoint.RegisterServiceWithMux("example", router, app)
	service.RegisterAction("/a/path/{with}/{parameters}", nact.HandlerMetadata{
		ClassName:  "example",
		MethodName: "handle",
		Static:     true,
		Params: []nact.ParameterDescriptor{
			nact.MustParam("req", reflect.TypeOf(ExampleRequestBundle{})),
		},
	}).Methods("POST")
}

// Example shows a request model filled from the path, the query,
// a header, and the body.
func Example() {
	r := mux.NewRouter()
	Service(r)
	ts := httptest.NewServer(r)
	defer ts.Close()
	client := ts.Client()
	// nolint:noctx
	res, err := client.Post(ts.URL+"/a/path/joe/37?friends=3&friends=5", "application/json",
		strings.NewReader(`{"use":"yeah","exported":"uh hu"}`))
	fmt.Println("response error", err)
	if err != nil {
		return
	}
	b, err := io.ReadAll(res.Body)
	res.Body.Close()
	fmt.Println("read body error", err)
	fmt.Println("response:", string(b))
	// Output: response error <nil>
	// read body error <nil>
	// response: {"stuff":"joe 37 [3 5] yeah"}
}
