// ABOUTME: Background decode worker
// ABOUTME: Fetches and decodes payloads off the control path, one response per request
package session

import (
	"context"
	"fmt"

	"github.com/clipdeck/clipdeck-go/pkg/audio"
)

// decodeRequest asks the worker to fetch and decode one payload.
type decodeRequest struct {
	name string
	url  string
}

// decodeResult is the worker's single response per request, correlated
// back to the session purely by name.
type decodeResult struct {
	name string
	clip *audio.Clip
	err  error
}

// worker runs fetch+decode off the main control path. Each request is
// handled on its own goroutine, so responses complete in any order; the
// session must route them by name, never by arrival position.
type worker struct {
	requests chan decodeRequest
	results  chan decodeResult
	fetch    func(ctx context.Context, locator string) ([]byte, error)
	decode   func(data []byte) (*audio.Clip, error)
	ctx      context.Context
	cancel   context.CancelFunc
}

func newWorker(fetchFn func(context.Context, string) ([]byte, error), decodeFn func([]byte) (*audio.Clip, error)) *worker {
	ctx, cancel := context.WithCancel(context.Background())

	w := &worker{
		requests: make(chan decodeRequest, 16),
		results:  make(chan decodeResult, 16),
		fetch:    fetchFn,
		decode:   decodeFn,
		ctx:      ctx,
		cancel:   cancel,
	}

	go w.run()
	return w
}

// run dispatches each request onto its own goroutine.
func (w *worker) run() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case req := <-w.requests:
			go w.handle(req)
		}
	}
}

// handle produces exactly one result for the request.
func (w *worker) handle(req decodeRequest) {
	res := decodeResult{name: req.name}

	data, err := w.fetch(w.ctx, req.url)
	if err != nil {
		res.err = fmt.Errorf("fetch %q failed: %w", req.url, err)
	} else {
		res.clip, res.err = w.decode(data)
		if res.err != nil {
			res.err = fmt.Errorf("decode %q failed: %w", req.name, res.err)
		}
	}

	select {
	case w.results <- res:
	case <-w.ctx.Done():
	}
}

// submit enqueues a request. There is no cancellation primitive for an
// in-flight decode; a later unload or dispose discards the response
// instead of retracting the request.
func (w *worker) submit(name, url string) {
	select {
	case w.requests <- decodeRequest{name: name, url: url}:
	case <-w.ctx.Done():
	}
}

// close stops the dispatch loop and abandons in-flight work.
func (w *worker) close() {
	w.cancel()
}
