package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

type embeddingsRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions"`
}

func fakeOpenAI(t *testing.T, failures int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if n <= failures {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		var req embeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		data := make([]map[string]interface{}, len(req.Input))
		// reply in reverse order to exercise index mapping
		for i := range req.Input {
			j := len(req.Input) - 1 - i
			vec := make([]float32, req.Dimensions)
			vec[j%req.Dimensions] = float32(j + 1)
			data[i] = map[string]interface{}{"object": "embedding", "index": j, "embedding": vec}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"model":  req.Model,
			"data":   data,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestOpenAIEmbedder_EmbedBatch(t *testing.T) {
	srv, _ := fakeOpenAI(t, 0)
	e, err := NewOpenAIEmbedder("test-key", "", 4, WithBaseURL(srv.URL+"/v1"), WithRetry(fastRetry(1)))
	if err != nil {
		t.Fatal(err)
	}
	out, err := e.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d vectors", len(out))
	}
	if out[0][0] != 1 || out[1][1] != 1 {
		t.Errorf("vectors not mapped by index or not normalized: %v", out)
	}
	if e.Dimensions() != 4 {
		t.Errorf("Dimensions = %d", e.Dimensions())
	}
}

func TestOpenAIEmbedder_RetriesServerErrors(t *testing.T) {
	srv, calls := fakeOpenAI(t, 2)
	e, err := NewOpenAIEmbedder("test-key", "m", 3, WithBaseURL(srv.URL+"/v1"), WithRetry(fastRetry(3)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Embed(context.Background(), "hello"); err != nil {
		t.Fatalf("Embed after transient failures: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestOpenAIEmbedder_Validation(t *testing.T) {
	if _, err := NewOpenAIEmbedder("", "m", 3); err == nil {
		t.Error("missing API key should fail")
	}
	srv, calls := fakeOpenAI(t, 0)
	e, _ := NewOpenAIEmbedder("k", "m", 3, WithBaseURL(srv.URL+"/v1"))
	if _, err := e.Embed(context.Background(), " "); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("err = %v, want ErrEmptyInput", err)
	}
	if calls.Load() != 0 {
		t.Error("blank input must not reach the API")
	}
}
