package match

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/domain"
)

// --- Mocks ---

type mockStore struct {
	mu         sync.Mutex
	candidates map[string][]domain.CategoryEmbedding
	vacancies  map[string]map[domain.Category]domain.Vector

	bulkCalls int
	bulkSizes []int
	listCalls int
	bulkErr   error
	bulkHook  func()
	getErr    error
}

func newMockStore() *mockStore {
	return &mockStore{
		candidates: map[string][]domain.CategoryEmbedding{},
		vacancies:  map[string]map[domain.Category]domain.Vector{},
	}
}

func (m *mockStore) addCandidate(id string, c domain.Category, v domain.Vector) {
	m.candidates[id] = append(m.candidates[id], domain.CategoryEmbedding{
		EntityID: id, EntityType: domain.EntityCandidate, Category: c, Vector: v,
	})
}

func (m *mockStore) addVacancy(id string, c domain.Category, v domain.Vector) {
	if m.vacancies[id] == nil {
		m.vacancies[id] = map[domain.Category]domain.Vector{}
	}
	m.vacancies[id][c] = v
}

func (m *mockStore) GetEntity(_ context.Context, _ domain.EntityType, id string) ([]domain.CategoryEmbedding, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.candidates[id], nil
}

func (m *mockStore) BulkGet(
	_ context.Context, _ domain.EntityType, ids []string, c domain.Category,
) (map[string]domain.CategoryEmbedding, error) {
	m.mu.Lock()
	m.bulkCalls++
	m.bulkSizes = append(m.bulkSizes, len(ids))
	hook := m.bulkHook
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	if m.bulkErr != nil {
		return nil, m.bulkErr
	}
	out := map[string]domain.CategoryEmbedding{}
	for _, id := range ids {
		if v, ok := m.vacancies[id][c]; ok {
			out[id] = domain.CategoryEmbedding{EntityID: id, Category: c, Vector: v}
		}
	}
	return out, nil
}

func (m *mockStore) ListAll(_ context.Context, _ domain.EntityType) ([]string, error) {
	m.listCalls++
	ids := make([]string, 0, len(m.vacancies))
	for id := range m.vacancies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

type fixedWeights struct{ w domain.WeightSet }

func (f fixedWeights) Get() domain.WeightSet { return f.w }

// --- Helpers ---

// unitAt returns a 2-d unit vector whose cosine with (1,0) is cos.
func unitAt(cos float64) domain.Vector {
	return domain.Vector{float32(cos), float32(math.Sqrt(1 - cos*cos))}
}

func newTestService(t *testing.T, ms *mockStore, opts Options) *Service {
	t.Helper()
	return New(ms, fixedWeights{domain.DefaultWeights()}, opts, Metrics{}, zap.NewNop())
}

func ptr[T any](v T) *T { return &v }

func ids(r domain.Ranking) []string {
	out := make([]string, len(r.Matches))
	for i, m := range r.Matches {
		out[i] = m.VacancyID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --- Tests ---

func TestRank_FiltersByMinScore(t *testing.T) {
	ms := newMockStore()
	ms.addCandidate("c-1", domain.CategorySkills, domain.Vector{1, 0})
	ms.addVacancy("v-a", domain.CategorySkills, unitAt(0.9))
	ms.addVacancy("v-b", domain.CategorySkills, unitAt(0.5))
	ms.addVacancy("v-c", domain.CategorySkills, unitAt(0.72))
	svc := newTestService(t, ms, Options{})

	r, err := svc.Rank(context.Background(), Query{
		CandidateID: "c-1",
		Pool:        []string{"v-a", "v-b", "v-c"},
		MinScore:    ptr(0.7),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !equalIDs(ids(r), []string{"v-a", "v-c"}) {
		t.Fatalf("got %v", ids(r))
	}
	if math.Abs(r.Matches[0].OverallScore-0.9) > 1e-6 || math.Abs(r.Matches[1].OverallScore-0.72) > 1e-6 {
		t.Errorf("scores: %v, %v", r.Matches[0].OverallScore, r.Matches[1].OverallScore)
	}
	if r.TotalFound != 2 {
		t.Errorf("TotalFound = %d", r.TotalFound)
	}
	if r.Weights != domain.DefaultWeights() {
		t.Errorf("weights used = %+v", r.Weights)
	}
}

func TestRank_TiesBreakByVacancyID(t *testing.T) {
	ms := newMockStore()
	ms.addCandidate("c-1", domain.CategorySkills, domain.Vector{1, 0})
	for _, id := range []string{"v-3", "v-1", "v-2"} {
		ms.addVacancy(id, domain.CategorySkills, domain.Vector{2, 0})
	}
	svc := newTestService(t, ms, Options{})

	for range 3 {
		r, err := svc.Rank(context.Background(), Query{CandidateID: "c-1", Pool: []string{"v-3", "v-2", "v-1"}})
		if err != nil {
			t.Fatal(err)
		}
		if !equalIDs(ids(r), []string{"v-1", "v-2", "v-3"}) {
			t.Fatalf("unstable order: %v", ids(r))
		}
	}
}

func TestRank_TruncatesToTopK(t *testing.T) {
	ms := newMockStore()
	ms.addCandidate("c-1", domain.CategorySkills, domain.Vector{1, 0})
	ms.addVacancy("v-1", domain.CategorySkills, unitAt(0.95))
	ms.addVacancy("v-2", domain.CategorySkills, unitAt(0.85))
	ms.addVacancy("v-3", domain.CategorySkills, unitAt(0.75))
	svc := newTestService(t, ms, Options{})

	r, err := svc.Rank(context.Background(), Query{CandidateID: "c-1", TopK: ptr(2)})
	if err != nil {
		t.Fatal(err)
	}
	if !equalIDs(ids(r), []string{"v-1", "v-2"}) {
		t.Fatalf("got %v", ids(r))
	}
	if r.TotalFound != 3 {
		t.Errorf("TotalFound = %d, want 3 (before truncation)", r.TotalFound)
	}
	if ms.listCalls != 1 {
		t.Errorf("empty pool should enumerate vacancies, ListAll calls = %d", ms.listCalls)
	}
}

func TestRank_SkipsPairsWithoutSharedCategory(t *testing.T) {
	ms := newMockStore()
	ms.addCandidate("c-1", domain.CategorySkills, domain.Vector{1, 0})
	ms.addVacancy("v-1", domain.CategorySkills, domain.Vector{1, 0})
	ms.addVacancy("v-2", domain.CategorySalary, domain.Vector{1, 0})

	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_skipped_total"})
	svc := New(ms, fixedWeights{domain.DefaultWeights()}, Options{}, Metrics{SkippedPairs: skipped}, zap.NewNop())

	r, err := svc.Rank(context.Background(), Query{CandidateID: "c-1", Pool: []string{"v-1", "v-2"}})
	if err != nil {
		t.Fatal(err)
	}
	if r.Skipped != 1 || !equalIDs(ids(r), []string{"v-1"}) {
		t.Fatalf("skipped=%d matches=%v", r.Skipped, ids(r))
	}
	if got := testutil.ToFloat64(skipped); got != 1 {
		t.Errorf("skipped counter = %v", got)
	}
}

func TestRank_WeightsOverride(t *testing.T) {
	ms := newMockStore()
	ms.addCandidate("c-1", domain.CategorySkills, domain.Vector{1, 0})
	ms.addCandidate("c-1", domain.CategoryCareer, domain.Vector{1, 0})
	ms.addVacancy("v-1", domain.CategorySkills, domain.Vector{1, 0})
	ms.addVacancy("v-1", domain.CategoryCareer, domain.Vector{0, 1})
	svc := newTestService(t, ms, Options{})

	w, err := domain.NewWeightSet(map[domain.Category]float64{
		domain.CategorySkills: 1, domain.CategoryCareer: 1, domain.CategoryCulture: 0, domain.CategorySalary: 0,
	})
	if err != nil {
		t.Fatal(err)
	}
	r, err := svc.Rank(context.Background(), Query{CandidateID: "c-1", MinScore: ptr(-1.0), Weights: &w})
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Matches) != 1 || math.Abs(r.Matches[0].OverallScore-0.5) > 1e-9 {
		t.Fatalf("expected 0.5, got %+v", r.Matches)
	}
}

func TestRank_InvalidArguments(t *testing.T) {
	ms := newMockStore()
	ms.addCandidate("c-1", domain.CategorySkills, domain.Vector{1})
	svc := newTestService(t, ms, Options{})
	zero := domain.WeightSet{}

	tests := []struct {
		name string
		q    Query
	}{
		{"zero top_k", Query{CandidateID: "c-1", TopK: ptr(0)}},
		{"negative top_k", Query{CandidateID: "c-1", TopK: ptr(-3)}},
		{"top_k too large", Query{CandidateID: "c-1", TopK: ptr(MaxTopK + 1)}},
		{"min_score NaN", Query{CandidateID: "c-1", MinScore: ptr(math.NaN())}},
		{"min_score inf", Query{CandidateID: "c-1", MinScore: ptr(math.Inf(1))}},
		{"min_score below -1", Query{CandidateID: "c-1", MinScore: ptr(-1.5)}},
		{"all-zero override", Query{CandidateID: "c-1", Weights: &zero}},
		{"empty candidate", Query{}},
		{"empty pool id", Query{CandidateID: "c-1", Pool: []string{""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Rank(context.Background(), tt.q)
			if !errors.Is(err, domain.ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestRank_CandidateNotFound(t *testing.T) {
	svc := newTestService(t, newMockStore(), Options{})
	_, err := svc.Rank(context.Background(), Query{CandidateID: "ghost"})
	if !errors.Is(err, domain.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}
}

func TestRank_ExplicitPoolVacancyNotFound(t *testing.T) {
	ms := newMockStore()
	ms.addCandidate("c-1", domain.CategorySkills, domain.Vector{1})
	ms.addVacancy("v-1", domain.CategorySkills, domain.Vector{1})
	svc := newTestService(t, ms, Options{})

	_, err := svc.Rank(context.Background(), Query{CandidateID: "c-1", Pool: []string{"v-1", "v-missing"}})
	if !errors.Is(err, domain.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}
}

func TestRank_OneBulkCallPerCategoryPerChunk(t *testing.T) {
	ms := newMockStore()
	ms.addCandidate("c-1", domain.CategorySkills, domain.Vector{1})
	pool := make([]string, 0, 25)
	for i := range 25 {
		id := string(rune('a' + i))
		ms.addVacancy(id, domain.CategorySkills, domain.Vector{1})
		pool = append(pool, id)
	}
	svc := newTestService(t, ms, Options{ChunkSize: 10})

	r, err := svc.Rank(context.Background(), Query{CandidateID: "c-1", Pool: pool, TopK: ptr(100)})
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Matches) != 25 {
		t.Fatalf("matches = %d", len(r.Matches))
	}
	// 3 chunks (10, 10, 5) x 4 categories.
	if ms.bulkCalls != 12 {
		t.Fatalf("bulk calls = %d, want 12", ms.bulkCalls)
	}
	for _, n := range ms.bulkSizes {
		if n > 10 {
			t.Errorf("chunk of %d exceeds chunk size", n)
		}
	}
}

func TestRank_StoreErrorFailsCall(t *testing.T) {
	ms := newMockStore()
	ms.addCandidate("c-1", domain.CategorySkills, domain.Vector{1})
	ms.addVacancy("v-1", domain.CategorySkills, domain.Vector{1})
	ms.bulkErr = errors.New("connection refused")
	svc := newTestService(t, ms, Options{})

	if _, err := svc.Rank(context.Background(), Query{CandidateID: "c-1"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestRank_CancelledContext(t *testing.T) {
	ms := newMockStore()
	ms.addCandidate("c-1", domain.CategorySkills, domain.Vector{1})
	for i := range 50 {
		ms.addVacancy(string(rune('A'+i)), domain.CategorySkills, domain.Vector{1})
	}
	ctx, cancel := context.WithCancel(context.Background())
	ms.bulkHook = cancel
	svc := newTestService(t, ms, Options{ChunkSize: 5, FetchParallel: 1})

	_, err := svc.Rank(ctx, Query{CandidateID: "c-1"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ms.bulkCalls >= 40 {
		t.Errorf("expected remaining chunks to be skipped, got %d calls", ms.bulkCalls)
	}
}

func TestRankBatch(t *testing.T) {
	ms := newMockStore()
	ms.addCandidate("c-1", domain.CategorySkills, domain.Vector{1, 0})
	ms.addCandidate("c-2", domain.CategorySkills, domain.Vector{0, 1})
	ms.addVacancy("v-1", domain.CategorySkills, domain.Vector{1, 0})
	svc := newTestService(t, ms, Options{})

	items, err := svc.RankBatch(context.Background(), []string{"c-1", "ghost", "c-2"}, Query{Pool: []string{"v-1"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d", len(items))
	}
	if items[0].Err != nil || len(items[0].Ranking.Matches) != 1 {
		t.Errorf("c-1: %+v", items[0])
	}
	if !errors.Is(items[1].Err, domain.ErrEntityNotFound) {
		t.Errorf("ghost: expected ErrEntityNotFound, got %v", items[1].Err)
	}
	if items[2].Err != nil || len(items[2].Ranking.Matches) != 0 {
		t.Errorf("c-2 should have no match above default min score: %+v", items[2])
	}
	// 1 chunk x 4 categories, shared by all candidates.
	if ms.bulkCalls != 4 {
		t.Errorf("pool fetched %d times", ms.bulkCalls)
	}
}

func TestRankBatch_TooManyCandidates(t *testing.T) {
	svc := newTestService(t, newMockStore(), Options{})
	_, err := svc.RankBatch(context.Background(), make([]string, MaxBatchCandidates+1), Query{})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
