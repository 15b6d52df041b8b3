package local

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecembed/internal/domain"
)

// fakeModel returns [len(text), position] for every text.
type fakeModel struct {
	err    error
	short  bool
	closed atomic.Bool
}

func (m *fakeModel) Embed(texts []string) ([][]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	n := len(texts)
	if m.short {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{float32(len(texts[i])), float32(i)}
	}
	return out, nil
}

func (m *fakeModel) Close() { m.closed.Store(true) }

type countingLoader struct {
	calls atomic.Int32
	model *fakeModel
	err   error
}

func (l *countingLoader) load(name string) (Model, error) {
	l.calls.Add(1)
	if l.err != nil {
		return nil, l.err
	}
	return l.model, nil
}

func TestEmbedder_LazyLoadOnce(t *testing.T) {
	loader := &countingLoader{model: &fakeModel{}}
	emb := NewEmbedder(&Config{Model: "test-model", Loader: loader.load, Logger: zap.NewNop()})

	if emb.model != nil {
		t.Fatal("model must not load before the first call")
	}
	if loader.calls.Load() != 0 {
		t.Fatalf("loader called %d times before use", loader.calls.Load())
	}

	for range 3 {
		res, err := emb.BatchEmbed(context.Background(), []string{"ab", "cde"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(res.Embeddings) != 2 || res.Embeddings[1][0] != 3 {
			t.Fatalf("unexpected embeddings: %v", res.Embeddings)
		}
	}

	if loader.calls.Load() != 1 {
		t.Errorf("loader called %d times, want 1", loader.calls.Load())
	}
}

func TestEmbedder_ConcurrentCallsLoadOnce(t *testing.T) {
	loader := &countingLoader{model: &fakeModel{}}
	emb := NewEmbedder(&Config{Loader: loader.load})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := emb.BatchEmbed(context.Background(), []string{"x"}); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if loader.calls.Load() != 1 {
		t.Errorf("loader called %d times, want 1", loader.calls.Load())
	}
}

func TestEmbedder_LoadFailureIsRetriedNextCall(t *testing.T) {
	loader := &countingLoader{err: errors.New("no network")}
	emb := NewEmbedder(&Config{Loader: loader.load})

	_, err := emb.BatchEmbed(context.Background(), []string{"x"})
	if !errors.Is(err, domain.ErrModelLoad) {
		t.Fatalf("expected ErrModelLoad, got %v", err)
	}

	loader.err = nil
	loader.model = &fakeModel{}
	if _, err := emb.BatchEmbed(context.Background(), []string{"x"}); err != nil {
		t.Fatalf("unexpected error after recovery: %v", err)
	}
	if loader.calls.Load() != 2 {
		t.Errorf("loader called %d times, want 2", loader.calls.Load())
	}
}

func TestEmbedder_ModelErrorIsFatal(t *testing.T) {
	modelErr := errors.New("tensor shape")
	emb := NewEmbedder(&Config{Loader: (&countingLoader{model: &fakeModel{err: modelErr}}).load})

	_, err := emb.BatchEmbed(context.Background(), []string{"x"})
	if !errors.Is(err, modelErr) {
		t.Fatalf("expected model error, got %v", err)
	}
}

func TestEmbedder_MisalignedOutput(t *testing.T) {
	emb := NewEmbedder(&Config{Loader: (&countingLoader{model: &fakeModel{short: true}}).load})

	_, err := emb.BatchEmbed(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestEmbedder_EmptyBatchSkipsLoad(t *testing.T) {
	loader := &countingLoader{model: &fakeModel{}}
	emb := NewEmbedder(&Config{Loader: loader.load})

	res, err := emb.BatchEmbed(context.Background(), nil)
	if err != nil || len(res.Embeddings) != 0 {
		t.Fatalf("unexpected result: %v, %v", res, err)
	}
	if loader.calls.Load() != 0 {
		t.Error("empty batch must not load the model")
	}
}

func TestEmbedder_Close(t *testing.T) {
	model := &fakeModel{}
	loader := &countingLoader{model: model}
	emb := NewEmbedder(&Config{Loader: loader.load})

	if err := emb.Close(); err != nil {
		t.Fatalf("close before load: %v", err)
	}
	if _, err := emb.BatchEmbed(context.Background(), []string{"x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := emb.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !model.closed.Load() {
		t.Error("model not closed")
	}
	if _, err := emb.BatchEmbed(context.Background(), []string{"x"}); err != nil {
		t.Fatalf("embed after close: %v", err)
	}
	if got := loader.calls.Load(); got != 2 {
		t.Errorf("loader calls = %d, want 2 (reload after close)", got)
	}
}

func TestNewEmbedder_DefaultModel(t *testing.T) {
	emb := NewEmbedder(&Config{})
	if emb.name != domain.DefaultLocalVectorConfig().Model {
		t.Errorf("model = %q", emb.name)
	}
}
