package index

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeEmbeddingServer answers /embeddings with a 3-d vector chosen by keyword.
func fakeEmbeddingServer(t *testing.T) *httptest.Server {
	t.Helper()
	vectorFor := func(text string) []float32 {
		switch {
		case strings.Contains(text, "git"):
			return []float32{1, 0, 0}
		case strings.Contains(text, "docker"):
			return []float32{0, 1, 0}
		default:
			return []float32{0, 0, 1}
		}
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Input any `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var inputs []string
		switch v := req.Input.(type) {
		case string:
			inputs = []string{v}
		case []any:
			for _, s := range v {
				inputs = append(inputs, s.(string))
			}
		}
		var resp embeddingResponse
		for i, in := range inputs {
			resp.Data = append(resp.Data, embeddingDataItem{Index: i, Embedding: vectorFor(in)})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbedderCreationTrimsSlash(t *testing.T) {
	e := NewEmbedder("http://localhost:8080/v1/", "test-key", "test-model")
	if e.baseURL != "http://localhost:8080/v1" {
		t.Errorf("unexpected baseURL %s", e.baseURL)
	}
	if e.Model() != "test-model" {
		t.Errorf("unexpected model %s", e.Model())
	}
}

func TestEmbedBatchEmpty(t *testing.T) {
	e := NewEmbedder("http://localhost:8080", "test-key", "test-model")
	result, err := e.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error for empty batch: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil for empty batch, got %v", result)
	}
}

func TestEmbedAndBatch(t *testing.T) {
	srv := fakeEmbeddingServer(t)
	e := NewEmbedder(srv.URL, "k", "m")

	vec, err := e.Embed(context.Background(), "git status")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 3 || vec[0] != 1 {
		t.Errorf("unexpected vector %v", vec)
	}

	vecs, err := e.EmbedBatch(context.Background(), []string{"docker ps", "ls"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 2 || vecs[0][1] != 1 || vecs[1][2] != 1 {
		t.Errorf("unexpected vectors %v", vecs)
	}
}

func TestEmbedHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewEmbedder(srv.URL, "k", "m").Embed(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("expected status error, got %v", err)
	}
}
