package faceclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"smartattend/internal/faceclient"
)

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"faces":[{"embedding":[0.1,0.2]},{"embedding":[0.3,0.4]}]}`))
	}))
	defer srv.Close()

	c := faceclient.New(srv.URL, false)
	embeddings, err := c.Embed(context.Background(), []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(embeddings) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(embeddings))
	}
	if embeddings[1][1] != 0.4 {
		t.Errorf("unexpected embedding: %v", embeddings[1])
	}
}

func TestEmbed_ZeroFaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"faces":[]}`))
	}))
	defer srv.Close()

	c := faceclient.New(srv.URL, false)
	embeddings, err := c.Embed(context.Background(), []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("zero faces must not be an error, got %v", err)
	}
	if len(embeddings) != 0 {
		t.Errorf("expected no embeddings, got %d", len(embeddings))
	}
}

func TestEmbed_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := faceclient.New(srv.URL, false)
	if _, err := c.Embed(context.Background(), []byte("jpeg-bytes")); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}

func TestSkipMode(t *testing.T) {
	c := faceclient.New("http://unreachable.invalid", true)

	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health in skip mode: %v", err)
	}
	embeddings, err := c.Embed(context.Background(), []byte("ignored"))
	if err != nil {
		t.Fatalf("Embed in skip mode: %v", err)
	}
	if len(embeddings) != 1 {
		t.Fatalf("expected one canned embedding, got %d", len(embeddings))
	}
}
