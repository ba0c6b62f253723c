package nvelope

import (
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// DeferredWriter buffers a response so that it can be replaced
// before anything is sent.  Headers, the status code and the body are
// held until Flush.  Reset throws away what has been buffered so that
// an error response can be written instead of a half encoded one.
type DeferredWriter struct {
	base        http.ResponseWriter
	header      http.Header
	resetHeader http.Header
	buffer      []byte
	status      int
	done        bool
}

var _ http.ResponseWriter = &DeferredWriter{}

// NewDeferredWriter wraps w
func NewDeferredWriter(w http.ResponseWriter) *DeferredWriter {
	header := w.Header().Clone()
	if header == nil {
		header = make(http.Header)
	}
	return &DeferredWriter{
		base:        w,
		header:      header,
		resetHeader: header.Clone(),
		buffer:      make([]byte, 0, 4*1024),
	}
}

// UnderlyingWriter returns the wrapped http.ResponseWriter
func (w *DeferredWriter) UnderlyingWriter() http.ResponseWriter {
	return w.base
}

func (w *DeferredWriter) Header() http.Header {
	if w.done {
		return w.base.Header()
	}
	return w.header
}

func (w *DeferredWriter) Write(b []byte) (int, error) {
	if w.done {
		return w.base.Write(b)
	}
	w.buffer = append(w.buffer, b...)
	return len(b), nil
}

func (w *DeferredWriter) WriteHeader(statusCode int) {
	if w.done {
		w.base.WriteHeader(statusCode)
		return
	}
	w.status = statusCode
}

// Done reports if Flush has been called.  After Flush, writes go
// straight to the underlying writer.
func (w *DeferredWriter) Done() bool {
	return w.done
}

// Reset discards the buffered body, status and any header changes
// made since the last PreserveHeader.
func (w *DeferredWriter) Reset() {
	w.buffer = w.buffer[:0]
	w.status = 0
	w.header = w.resetHeader.Clone()
}

// PreserveHeader makes the current headers survive Reset
func (w *DeferredWriter) PreserveHeader() {
	w.resetHeader = w.header.Clone()
}

// Flush sends everything that has been buffered
func (w *DeferredWriter) Flush() error {
	if w.done {
		return nil
	}
	w.done = true
	base := w.base.Header()
	for k := range base {
		if _, ok := w.header[k]; !ok {
			delete(base, k)
		}
	}
	for k, v := range w.header {
		base[k] = v
	}
	if w.status != 0 {
		w.base.WriteHeader(w.status)
	}
	for len(w.buffer) > 0 {
		n, err := w.base.Write(w.buffer)
		w.buffer = w.buffer[n:]
		if err != nil && !errors.Is(err, io.ErrShortWrite) {
			return errors.Wrap(err, "write response")
		}
		if n == 0 && err != nil {
			return errors.Wrap(err, "write response")
		}
	}
	return nil
}
