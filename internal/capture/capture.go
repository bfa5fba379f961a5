package capture

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Source is a camera the recognition loop pulls frames from. A source is a
// scoped resource: acquired at the start of a scan, released on every exit
// path. A leaked source blocks subsequent scans, so the session layer
// defers Close unconditionally.
type Source interface {
	// Open acquires the device. A camera that cannot be reached is a
	// recoverable condition the operator sees once; the scan aborts.
	Open(ctx context.Context) error
	// Frame returns the next encoded frame. Blocking is bounded only by ctx.
	Frame(ctx context.Context) ([]byte, error)
	Close() error
}

// HTTPCamera pulls JPEG snapshots from a camera exposing an HTTP snapshot
// endpoint (IP-webcam style). Each Frame call fetches one image.
type HTTPCamera struct {
	url    string
	http   *http.Client
	opened bool
}

// NewHTTPCamera creates a camera over the given snapshot URL.
func NewHTTPCamera(snapshotURL string) *HTTPCamera {
	return &HTTPCamera{
		url: snapshotURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Open verifies the camera is reachable by fetching one frame.
func (c *HTTPCamera) Open(ctx context.Context) error {
	if _, err := c.fetch(ctx); err != nil {
		return fmt.Errorf("camera not reachable: %w", err)
	}
	c.opened = true
	return nil
}

// Frame fetches the next snapshot.
func (c *HTTPCamera) Frame(ctx context.Context) ([]byte, error) {
	if !c.opened {
		return nil, fmt.Errorf("camera not open")
	}
	frame, err := c.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture frame: %w", err)
	}
	return frame, nil
}

// Close releases the camera.
func (c *HTTPCamera) Close() error {
	c.opened = false
	return nil
}

func (c *HTTPCamera) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("camera returned %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
