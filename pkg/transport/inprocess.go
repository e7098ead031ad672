package transport

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/blackcoderx/conform/pkg/model"
	"github.com/blackcoderx/conform/pkg/schema"
)

// InProcessTransport drives an in-process http.Handler directly, with no
// socket round-trip. The originating spec names two such backends (a
// synchronous WSGI-style callable and an async ASGI-style callable);
// idiomatic Go has one handler interface for both, since net/http already
// makes no synchronous/asynchronous distinction at the handler boundary —
// this is the collapse-to-one-adapter decision recorded in DESIGN.md.
type InProcessTransport struct {
	Handler http.Handler
}

// NewInProcessTransport wraps handler for direct in-process execution —
// useful for testing the engine itself against a fake server, or for a
// user embedding conform against their own Go service without a network
// hop.
func NewInProcessTransport(handler http.Handler) *InProcessTransport {
	return &InProcessTransport{Handler: handler}
}

func (t *InProcessTransport) Call(op *schema.APIOperation, c *model.Case, opts CallOptions) (*model.Response, error) {
	spec, err := BuildRequestSpec(op, c, opts)
	if err != nil {
		return nil, err
	}

	var bodyReader *bytes.Reader
	if len(spec.Body) > 0 {
		bodyReader = bytes.NewReader(spec.Body)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(spec.Method, spec.URL, bodyReader)
	for name, values := range spec.Headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	for name, v := range spec.Cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: v})
	}

	rec := httptest.NewRecorder()
	start := time.Now()
	t.Handler.ServeHTTP(rec, req)
	duration := time.Since(start)

	result := rec.Result()
	defer result.Body.Close()

	body := rec.Body.Bytes()

	return &model.Response{
		StatusCode: result.StatusCode,
		Headers:    result.Header,
		Body:       body,
		Duration:   duration,
	}, nil
}
