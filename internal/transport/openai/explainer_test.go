package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/domain"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func chatServer(t *testing.T, reply string, seen *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 50, "completion_tokens": 20, "total_tokens": 70},
		})
	}))
}

func newTestExplainer(url string) *Explainer {
	return NewExplainer(&Config{APIKey: "k", BaseURL: url, Model: "gpt-4o-mini", Provider: "test", Logger: zap.NewNop()})
}

func TestExplainer_Explain(t *testing.T) {
	var seen chatRequest
	server := chatServer(t, "  Strong overlap in backend skills.  ", &seen)
	defer server.Close()

	text, err := newTestExplainer(server.URL).Explain(context.Background(), domain.ExplanationRequest{
		CandidateID: "c-1",
		VacancyID:   "v-1",
		CategoryScores: map[domain.Category]float64{
			domain.CategorySalary: 0.2,
			domain.CategorySkills: 0.95,
		},
		OverallScore: 0.81,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Strong overlap in backend skills." {
		t.Errorf("text = %q", text)
	}
	if seen.Model != "gpt-4o-mini" || len(seen.Messages) != 2 || seen.Messages[0].Role != "system" {
		t.Fatalf("unexpected request: %+v", seen)
	}
	prompt := seen.Messages[1].Content
	for _, want := range []string{"c-1", "v-1", "0.81", "skills and technical competencies: 0.95 (excellent match)", "very weak match"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt lacks %q:\n%s", want, prompt)
		}
	}
	if strings.Index(prompt, "skills and technical") > strings.Index(prompt, "compensation") {
		t.Error("categories should be listed in category order")
	}
}

func TestExplainer_Suggest(t *testing.T) {
	server := chatServer(t, "Here are some tips:\n- Learn Kubernetes\n\n2. Contribute to open source\n• Mentor juniors\nThanks!", nil)
	defer server.Close()

	got, err := newTestExplainer(server.URL).Suggest(context.Background(), []domain.Category{domain.CategorySkills})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"- Learn Kubernetes", "2. Contribute to open source", "• Mentor juniors"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v", got)
	}
}

func TestExplainer_SuggestNoWeakCategories(t *testing.T) {
	got, err := newTestExplainer("http://unused").Suggest(context.Background(), nil)
	if err != nil || got != nil {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestExplainer_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer server.Close()

	_, err := newTestExplainer(server.URL).Explain(context.Background(), domain.ExplanationRequest{})
	if !errors.Is(err, domain.ErrExplanationUnavailable) {
		t.Fatalf("expected ErrExplanationUnavailable, got %v", err)
	}
}

func TestExplainer_EmptyCompletion(t *testing.T) {
	server := chatServer(t, "   ", nil)
	defer server.Close()

	_, err := newTestExplainer(server.URL).Explain(context.Background(), domain.ExplanationRequest{})
	if !errors.Is(err, domain.ErrExplanationUnavailable) {
		t.Fatalf("expected ErrExplanationUnavailable, got %v", err)
	}
}

func TestQuality(t *testing.T) {
	tests := map[float64]string{
		0.95: "excellent match",
		0.7:  "good match",
		0.5:  "moderate match",
		0.3:  "weak match",
		-0.2: "very weak match",
	}
	for score, want := range tests {
		if got := quality(score); got != want {
			t.Errorf("quality(%v) = %q, want %q", score, got, want)
		}
	}
}

func TestIsNumbered(t *testing.T) {
	for line, want := range map[string]bool{"1. a": true, "12. b": true, "1 a": false, ".a": false, "3": false} {
		if got := isNumbered(line); got != want {
			t.Errorf("isNumbered(%q) = %v", line, got)
		}
	}
}
