package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/metrics"
)

const (
	explainSystemPrompt = "You are an HR and recruiting expert. Explain why a candidate fits a vacancy " +
		"based on the per-category similarity scores you are given."
	suggestSystemPrompt = "You are an HR consultant. Give concrete, practical advice for improving a candidate profile."

	explainMaxTokens = 500
	suggestMaxTokens = 300
)

var categoryDescriptions = map[domain.Category]string{
	domain.CategorySkills:  "skills and technical competencies",
	domain.CategoryCareer:  "career goals and experience",
	domain.CategoryCulture: "cultural values and work style",
	domain.CategorySalary:  "compensation expectations and conditions",
}

// Explainer generates match rationales through the chat completions API.
type Explainer struct {
	client   *openai.Client
	model    string
	provider string
	logger   *zap.Logger
}

// NewExplainer creates an OpenAI-compatible explanation provider.
func NewExplainer(cfg *Config) *Explainer {
	return &Explainer{
		client:   newClient(cfg),
		model:    cfg.Model,
		provider: cfg.Provider,
		logger:   cfg.Logger,
	}
}

// Explain asks the model for a short rationale. The answer is returned verbatim.
func (x *Explainer) Explain(ctx context.Context, req domain.ExplanationRequest) (string, error) {
	return x.complete(ctx, explainSystemPrompt, explainPrompt(req), 0.7, explainMaxTokens)
}

// Suggest asks for improvement tips for the weak categories, one per line starting with "-".
func (x *Explainer) Suggest(ctx context.Context, weak []domain.Category) ([]string, error) {
	if len(weak) == 0 {
		return nil, nil
	}
	text, err := x.complete(ctx, suggestSystemPrompt, suggestPrompt(weak), 0.5, suggestMaxTokens)
	if err != nil {
		return nil, err
	}
	return parseSuggestions(text), nil
}

// HealthCheck verifies API availability via ListModels.
func (x *Explainer) HealthCheck(ctx context.Context) error {
	if _, err := x.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func (x *Explainer) complete(
	ctx context.Context, system, user string, temperature float32, maxTokens int,
) (string, error) {
	start := time.Now()
	resp, err := x.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: x.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(x.provider, x.model, "error").Inc()
		return "", classifyError(err, domain.ErrExplanationUnavailable)
	}
	metrics.ProviderRequestsTotal.WithLabelValues(x.provider, x.model, "success").Inc()
	metrics.ProviderRequestDuration.WithLabelValues(x.provider, x.model).Observe(time.Since(start).Seconds())
	metrics.ProviderTokensTotal.WithLabelValues(x.provider, x.model, "total").Add(float64(resp.Usage.TotalTokens))

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in completion: %w", domain.ErrExplanationUnavailable)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty completion: %w", domain.ErrExplanationUnavailable)
	}
	return text, nil
}

func explainPrompt(req domain.ExplanationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Candidate ID: %s\nVacancy ID: %s\nOverall match score: %.2f\n\nScores by category:\n",
		req.CandidateID, req.VacancyID, req.OverallScore)
	for _, c := range domain.AllCategories {
		s, ok := req.CategoryScores[c]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- %s: %.2f (%s)\n", categoryDescriptions[c], s, quality(s))
	}
	b.WriteString("\nWrite a short explanation (2-3 sentences) for an HR manager of why this candidate fits " +
		"the vacancy. Focus on the main strengths of the match and keep a professional tone.")
	return b.String()
}

func suggestPrompt(weak []domain.Category) string {
	areas := make([]string, 0, len(weak))
	for _, c := range weak {
		areas = append(areas, categoryDescriptions[c])
	}
	return "The candidate scores low in: " + strings.Join(areas, ", ") + ".\n" +
		"Give 3-5 specific, actionable tips to improve the profile in these areas. " +
		"Keep each tip to 1-2 sentences. Put every tip on its own line starting with \"-\"."
}

func quality(score float64) string {
	switch {
	case score >= 0.9:
		return "excellent match"
	case score >= 0.7:
		return "good match"
	case score >= 0.5:
		return "moderate match"
	case score >= 0.3:
		return "weak match"
	default:
		return "very weak match"
	}
}

// parseSuggestions keeps lines that look like list items.
func parseSuggestions(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "-") || strings.HasPrefix(line, "•") || isNumbered(line) {
			out = append(out, line)
		}
	}
	return out
}

func isNumbered(line string) bool {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	return i > 0 && i < len(line) && line[i] == '.'
}
