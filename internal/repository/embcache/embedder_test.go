package embcache

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/domain"
)

func TestEmbed_MissThenHit(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    domain.Vector{0.1, 0.2, 0.3},
		PromptTokens: 10,
		TotalTokens:  10,
	}}
	ce, ms := newTestEmbedder(t, inner, "text-embedding-3-small")
	ctx := context.Background()

	first, err := ce.Embed(ctx, "go developer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.TotalTokens != 10 {
		t.Fatalf("expected TotalTokens=10 on miss, got %d", first.TotalTokens)
	}
	if len(ms.data) != 1 {
		t.Fatalf("expected one cache entry, got %d", len(ms.data))
	}
	for _, ttl := range ms.ttls {
		if ttl != time.Hour {
			t.Errorf("ttl = %v", ttl)
		}
	}

	second, err := ce.Embed(ctx, "go developer")
	if err != nil {
		t.Fatal(err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected provider called once, got %d", inner.calls)
	}
	if second.TotalTokens != 0 || second.Embedding[2] != 0.3 {
		t.Fatalf("unexpected cached result: %+v", second)
	}
}

func TestEmbed_KeyDependsOnModel(t *testing.T) {
	a, _ := newTestEmbedder(t, &mockEmbedder{}, "model-a")
	b, _ := newTestEmbedder(t, &mockEmbedder{}, "model-b")
	if a.key("same text") == b.key("same text") {
		t.Fatal("cache keys must differ across models")
	}
	if a.key("one") == a.key("two") {
		t.Fatal("cache keys must differ across texts")
	}
}

func TestEmbed_InnerErrorKeepsKind(t *testing.T) {
	inner := &mockEmbedder{err: domain.NewTransientError(http.StatusTooManyRequests, errors.New("slow down"))}
	ce, ms := newTestEmbedder(t, inner, "m")

	_, err := ce.Embed(context.Background(), "text")
	if !domain.IsTransient(err) {
		t.Fatalf("expected transient provider error, got %v", err)
	}
	if len(ms.data) != 0 {
		t.Fatal("failed embeddings must not be cached")
	}
}

func TestEmbed_StoreErrorsDegrade(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: domain.Vector{1}}}
	ce, ms := newTestEmbedder(t, inner, "m")
	ms.getFn = func(context.Context, string) ([]byte, error) { return nil, errors.New("timeout") }
	ms.setFn = func(context.Context, string, []byte) error { return errors.New("readonly") }

	res, err := ce.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("cache failures should not surface: %v", err)
	}
	if len(res.Embedding) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestEmbed_CorruptEntryIsMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: domain.Vector{1, 2}}}
	ce, ms := newTestEmbedder(t, inner, "m")
	ms.data[ce.key("text")] = []byte{1, 2, 3}

	res, err := ce.Embed(context.Background(), "text")
	if err != nil {
		t.Fatal(err)
	}
	if inner.calls != 1 || len(res.Embedding) != 2 {
		t.Fatalf("expected provider fallback, calls=%d res=%+v", inner.calls, res)
	}
}

func TestEmbed_CountsLookups(t *testing.T) {
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"result"})
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: domain.Vector{1}}}
	ms := &mockKVStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
	ce := New(inner, ms, "m", 0, lookups, zap.NewNop())

	_, _ = ce.Embed(context.Background(), "a")
	_, _ = ce.Embed(context.Background(), "a")
	_, _ = ce.Embed(context.Background(), "b")

	if got := testutil.ToFloat64(lookups.WithLabelValues("hit")); got != 1 {
		t.Errorf("hits = %v", got)
	}
	if got := testutil.ToFloat64(lookups.WithLabelValues("miss")); got != 2 {
		t.Errorf("misses = %v", got)
	}
}

func TestDecode_Invalid(t *testing.T) {
	if _, err := decode([]byte{1}); err == nil {
		t.Fatal("expected error")
	}
}
