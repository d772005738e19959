package app

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/config"
	"github.com/kailas-cloud/vecmatch/internal/domain"
	matchuc "github.com/kailas-cloud/vecmatch/internal/usecase/match"
)

func memoryConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(`
http:
  port: 8001
database:
  driver: memory
embedding:
  api_key: sk-test
matching:
  weights:
    skills: 0.7
    career: 0.1
    culture: 0.1
    salary: 0.1
`))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return cfg
}

func TestBuild_Memory(t *testing.T) {
	s, err := Build(context.Background(), memoryConfig(t), zap.NewNop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer s.Close()

	if s.Store == nil || s.Embeddings == nil || s.Matches == nil ||
		s.Explanations == nil || s.Weights == nil || s.Health == nil {
		t.Fatalf("incomplete services: %+v", s)
	}
	if got := s.Weights.Get().Of(domain.CategorySkills); got != 0.7 {
		t.Errorf("skills weight = %v, want the configured 0.7", got)
	}
	if s.Embeddings.MaxBatchSize() != 100 {
		t.Errorf("max batch size = %d", s.Embeddings.MaxBatchSize())
	}

	_, err = s.Matches.Rank(context.Background(), matchuc.Query{CandidateID: "c-404"})
	if !errors.Is(err, domain.ErrEntityNotFound) {
		t.Errorf("rank on empty store: %v, want ErrEntityNotFound", err)
	}
}

func TestBuild_UnknownDriver(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Database.Driver = "sqlite"
	if _, err := Build(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Fatal("expected an error for an unknown driver")
	}
}

func TestBuildEmbedder_BadInstructions(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Embedding.Instructions = map[string]string{"hobbies": "Hobbies: "}
	if _, err := BuildEmbedder(cfg.Embedding, nil, zap.NewNop()); err == nil {
		t.Fatal("expected an error for an unknown instruction category")
	}
}

func TestClose_RunsInReverse(t *testing.T) {
	var order []int
	s := &Services{closers: []func(){
		func() { order = append(order, 1) },
		func() { order = append(order, 2) },
	}}
	s.Close()
	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Errorf("close order = %v", order)
	}
}
