package test

import (
	"encoding/json"
	"github.com/go-resty/resty/v2"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
)

type RoundTripFunc func(req *http.Request) *http.Response

func (r RoundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return r(req), nil }

// NewTestServer returns a client whose requests are all served in-process by
// handler, whatever host they are addressed to. Handlers always see a
// non-nil body, as with a real server.
func NewTestServer(handler http.Handler) *http.Client {
	return &http.Client{
		Transport: RoundTripFunc(func(req *http.Request) *http.Response {
			if req.Body == nil {
				req.Body = http.NoBody
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			return rec.Result()
		}),
	}
}

func NewTestClient(handler http.Handler) *resty.Client {
	return resty.NewWithClient(NewTestServer(handler))
}

// Counter wraps a handler and counts the requests reaching it.
type Counter struct {
	Handler http.Handler
	n       atomic.Int64
}

func (c *Counter) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	c.n.Add(1)
	c.Handler.ServeHTTP(rw, req)
}

func (c *Counter) Count() int64 { return c.n.Load() }

func (c *Counter) Reset() { c.n.Store(0) }

func WriteJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
