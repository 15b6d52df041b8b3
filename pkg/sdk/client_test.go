package vecembed

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// lengthEmbedder maps every text to [len(text)] and records batch sizes.
type lengthEmbedder struct {
	mu      sync.Mutex
	batches []int
	err     error
}

func (m *lengthEmbedder) BatchEmbed(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
	m.mu.Lock()
	m.batches = append(m.batches, len(texts))
	m.mu.Unlock()
	if m.err != nil {
		return BatchEmbeddingResult{}, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return BatchEmbeddingResult{Embeddings: out}, nil
}

func newTestClient(t *testing.T, emb BatchEmbedder, opts ...Option) *Client {
	t.Helper()
	c, err := New(context.Background(), append([]Option{WithEmbedder(emb)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestNew_NoBackend(t *testing.T) {
	if _, err := New(context.Background()); err == nil {
		t.Fatal("expected error when no backend configured")
	}
}

func TestNew_MissingAPIKey(t *testing.T) {
	_, err := New(context.Background(), WithOpenAI(""))
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
}

func TestNew_NegativeBatchSize(t *testing.T) {
	_, err := New(context.Background(), WithEmbedder(&lengthEmbedder{}), WithBatchSize(-1))
	if err == nil {
		t.Fatal("expected error for negative batch size")
	}
}

func TestCreateBackend_Precedence(t *testing.T) {
	tests := []struct {
		name     string
		cfg      clientConfig
		provider string
	}{
		{"custom wins", clientConfig{embedder: &lengthEmbedder{}, localModel: "m", remote: true, apiKey: "k"}, "custom"},
		{"local over remote", clientConfig{localModel: "m", remote: true, apiKey: "k"}, "local"},
		{"remote", clientConfig{remote: true, apiKey: "k"}, "openai"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, provider, _, closeFn, err := createBackend(&tt.cfg)
			if err != nil {
				t.Fatalf("createBackend: %v", err)
			}
			if closeFn != nil {
				closeFn()
			}
			if provider != tt.provider {
				t.Errorf("provider = %q, want %q", provider, tt.provider)
			}
		})
	}
}

func TestClient_ConvertJSON(t *testing.T) {
	emb := &lengthEmbedder{}
	c := newTestClient(t, emb, WithBatchSize(2))

	in := strings.NewReader(`[{"a":"x"},{"a":"yy"},{"a":"zzz"}]`)
	var out bytes.Buffer
	if err := c.ConvertJSON(context.Background(), in, &out, []string{"a"}, StylePointList); err != nil {
		t.Fatalf("ConvertJSON: %v", err)
	}

	want := `{
  "points": [
    {
      "id": 0,
      "vector": [
        2
      ],
      "payload": {
        "a": "x"
      }
    },
    {
      "id": 1,
      "vector": [
        3
      ],
      "payload": {
        "a": "yy"
      }
    },
    {
      "id": 2,
      "vector": [
        4
      ],
      "payload": {
        "a": "zzz"
      }
    }
  ]
}
`
	if out.String() != want {
		t.Errorf("output mismatch:\n%s", out.String())
	}
	if len(emb.batches) != 2 || emb.batches[0] != 2 || emb.batches[1] != 1 {
		t.Errorf("batches = %v, want [2 1]", emb.batches)
	}
}

func TestClient_ConvertJSON_InvalidInput(t *testing.T) {
	c := newTestClient(t, &lengthEmbedder{})

	var out bytes.Buffer
	err := c.ConvertJSON(context.Background(), strings.NewReader(`{"a":1}`), &out, []string{"a"}, StyleAugmentedDocument)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("expected no output, got %q", out.String())
	}
}

func TestClient_Convert_BackendError(t *testing.T) {
	c := newTestClient(t, &lengthEmbedder{err: ErrTooManyRetries})

	docs, err := DecodeDocuments(strings.NewReader(`[{"a":"x"}]`))
	if err != nil {
		t.Fatalf("DecodeDocuments: %v", err)
	}
	out, err := c.Convert(context.Background(), docs, []string{"a"}, StyleAugmentedDocument)
	if !errors.Is(err, ErrTooManyRetries) {
		t.Fatalf("expected ErrTooManyRetries, got %v", err)
	}
	if out != nil {
		t.Errorf("expected nil output, got %v", out)
	}
}

func TestClient_Query(t *testing.T) {
	c := newTestClient(t, &lengthEmbedder{})

	vec, err := c.Query(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(vec) != 1 || vec[0] != 5 {
		t.Errorf("vector = %v, want [5]", vec)
	}
}

func TestClient_Health(t *testing.T) {
	c := newTestClient(t, &lengthEmbedder{})

	status := c.Health(context.Background())
	if status.Status != "ok" {
		t.Errorf("status = %q, want ok", status.Status)
	}
	if status.Checks["embedding"] != "ok" {
		t.Errorf("embedding check = %q, want ok", status.Checks["embedding"])
	}
	if _, ok := status.Checks["cache"]; ok {
		t.Error("cache check reported without a cache")
	}
}

func TestClient_Observability(t *testing.T) {
	reg := prometheus.NewRegistry()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	emb := &lengthEmbedder{}
	c := newTestClient(t, emb, WithPrometheus(reg), WithLogger(logger))

	if _, err := c.Query(context.Background(), "a"); err != nil {
		t.Fatalf("Query: %v", err)
	}
	emb.err = errors.New("boom")
	if _, err := c.Query(context.Background(), "a"); err == nil {
		t.Fatal("expected error")
	}

	if got := testutil.ToFloat64(c.obs.metrics.operations.WithLabelValues("query", "ok")); got != 1 {
		t.Errorf("ok count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.obs.metrics.operations.WithLabelValues("query", "error")); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
	docs, err := DecodeDocuments(strings.NewReader(`[{"a":"x"},{"a":"y"}]`))
	if err != nil {
		t.Fatalf("DecodeDocuments: %v", err)
	}
	if _, err := c.Convert(context.Background(), docs, []string{"a"}, StylePointList); err == nil {
		t.Fatal("expected error")
	}
	if got := testutil.ToFloat64(c.obs.metrics.documents.WithLabelValues("failed")); got != 2 {
		t.Errorf("failed documents = %v, want 2", got)
	}
	if !strings.Contains(logs.String(), "operation failed") {
		t.Errorf("expected failure log, got %q", logs.String())
	}
}

func TestNewObserver_ReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("first observer: %v", err)
	}
	second, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("second observer: %v", err)
	}
	if first.metrics.operations != second.metrics.operations {
		t.Error("expected the registered counter to be reused")
	}
}
