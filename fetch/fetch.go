// Package fetch downloads artifacts with a hard size ceiling.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MaxSize is the largest artifact that will be downloaded (1 MiB).
const MaxSize = 1 << 20

var (
	ErrStatus    = errors.New("fetch: unexpected status")
	ErrSize      = errors.New("fetch: invalid declared size")
	ErrAlloc     = errors.New("fetch: allocation failed")
	ErrShortRead = errors.New("fetch: short read")
)

// Fetcher retrieves the bytes at url. The returned slice is exactly the
// declared length; partial downloads are never returned.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Artifact is a downloaded image owned by a single wake cycle.
type Artifact struct {
	Name string
	URL  string
	Data []byte
}

func (a *Artifact) Len() int {
	if a == nil {
		return 0
	}
	return len(a.Data)
}

// Release drops the buffer. It is safe to call more than once.
func (a *Artifact) Release() {
	if a != nil {
		a.Data = nil
	}
}

// HTTP fetches over HTTP. The server must declare a Content-Length.
type HTTP struct {
	Client *http.Client
	// MaxSize defaults to the package MaxSize and cannot exceed it.
	MaxSize int64
	// Timeout bounds the whole request, body included. Zero leaves it to
	// the client and the context.
	Timeout time.Duration

	alloc func(n int64) ([]byte, error)
}

func (h *HTTP) limit() int64 {
	if h.MaxSize <= 0 || h.MaxSize > MaxSize {
		return MaxSize
	}
	return h.MaxSize
}

func (h *HTTP) allocate(n int64) ([]byte, error) {
	if h.alloc != nil {
		return h.alloc(n)
	}
	return make([]byte, n), nil
}

func (h *HTTP) Fetch(ctx context.Context, url string) ([]byte, error) {
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}
	n := resp.ContentLength
	if n <= 0 || n > h.limit() {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrSize, n, h.limit())
	}

	buf, err := h.allocate(n)
	if err != nil || int64(len(buf)) != n {
		return nil, fmt.Errorf("%w: %d bytes: %v", ErrAlloc, n, err)
	}
	read, err := io.ReadFull(resp.Body, buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %d/%d bytes: %v", ErrShortRead, read, n, err)
	}
	return buf, nil
}
