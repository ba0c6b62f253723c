package npoint

import (
	"encoding/xml"
	"net/http"

	"github.com/muir/nact"
	"github.com/muir/nact/ndoc"
	"github.com/muir/nact/nvelope"
)

type apiDoc struct {
	XMLName   xml.Name        `json:"-" yaml:"-" xml:"api"`
	Service   string          `json:"service" yaml:"service" xml:"service,attr"`
	Endpoints []ndoc.Endpoint `json:"endpoints" yaml:"endpoints" xml:"endpoint"`
}

// RegisterAPIDoc serves Endpoints() with GET on path.  The response
// is encoded like any other Result, so the Accept header picks JSON,
// XML or YAML.
func (s *Service) RegisterAPIDoc(path string) {
	s.lock.Lock()
	router := s.router
	s.lock.Unlock()
	router.HandleFunc(path, s.wrap(func(w http.ResponseWriter, r *http.Request) {
		log := nvelope.RequestLogger(s.app.Log(), r, r.Header.Get(nvelope.RequestIDHeader))
		s.encoders.WriteResult(w, r, nact.Ok(apiDoc{Service: s.Name, Endpoints: s.Endpoints()}), log)
	})).Methods("GET")
}
