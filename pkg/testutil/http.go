package testutil

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

// JSONResponse builds an *http.Response carrying body with the given status.
func JSONResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

// RecordingDoer is an HTTP transport stub that records every request it
// receives, including the request body, and answers with Respond.
type RecordingDoer struct {
	Respond func(req *http.Request) (*http.Response, error)

	mu       sync.Mutex
	requests []*http.Request
	bodies   [][]byte
}

// StaticDoer returns a RecordingDoer that always answers status and body.
func StaticDoer(status int, body string) *RecordingDoer {
	return &RecordingDoer{
		Respond: func(*http.Request) (*http.Response, error) {
			return JSONResponse(status, body), nil
		},
	}
}

// Do records req and delegates to Respond.
func (d *RecordingDoer) Do(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
		_ = req.Body.Close()
	}

	d.mu.Lock()
	d.requests = append(d.requests, req)
	d.bodies = append(d.bodies, body)
	d.mu.Unlock()

	return d.Respond(req)
}

// Calls returns the number of requests received so far.
func (d *RecordingDoer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.requests)
}

// Request returns the i-th recorded request and its body.
func (d *RecordingDoer) Request(i int) (*http.Request, []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.requests[i], d.bodies[i]
}
