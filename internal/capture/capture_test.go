package capture_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"smartattend/internal/capture"
)

func TestHTTPCamera(t *testing.T) {
	frame := []byte("jpeg-frame")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(frame)
	}))
	defer srv.Close()

	cam := capture.NewHTTPCamera(srv.URL)
	if err := cam.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := cam.Frame(context.Background())
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if !bytes.Equal(got, frame) {
		t.Errorf("unexpected frame: %q", got)
	}
	if err := cam.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reads after Close must fail; the handle is gone.
	if _, err := cam.Frame(context.Background()); err == nil {
		t.Error("expected an error reading from a closed camera")
	}
}

func TestHTTPCamera_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	srv.Close() // camera gone before we open it

	cam := capture.NewHTTPCamera(srv.URL)
	if err := cam.Open(context.Background()); err == nil {
		t.Fatal("expected open to fail for an unreachable camera")
	}
}

func TestHTTPCamera_FrameBeforeOpen(t *testing.T) {
	cam := capture.NewHTTPCamera("http://localhost:0")
	if _, err := cam.Frame(context.Background()); err == nil {
		t.Fatal("expected an error before Open")
	}
}
