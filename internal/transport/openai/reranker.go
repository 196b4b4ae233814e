package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/modeldex/internal/domain"
	"github.com/kailas-cloud/modeldex/internal/domain/rerank"
)

const rerankInstruction = `You rank AI models for a user's search query.
Return a JSON object {"ranking":[{"id":"<candidate id>","score":<0..1>}]} ordered from
most to least relevant. Use only ids from the candidate list. Consider the user's domain
and task type when given.`

// RerankerConfig holds the chat-completion reranker settings.
type RerankerConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// RPS and Burst throttle outgoing requests. RPS <= 0 disables throttling.
	RPS    float64
	Burst  int
	Logger *zap.Logger
}

// Reranker orders search candidates through a chat-completion model.
type Reranker struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewReranker creates a chat-completion reranker.
func NewReranker(cfg *RerankerConfig) *Reranker {
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Reranker{
		client:  newClient(cfg.APIKey, cfg.BaseURL),
		model:   cfg.Model,
		limiter: rate.NewLimiter(limit, burst),
		logger:  cfg.Logger,
	}
}

type rerankPrompt struct {
	Query      string             `json:"query"`
	Context    rerank.Context     `json:"context"`
	Candidates []rerank.Candidate `json:"candidates"`
}

type rerankReply struct {
	Ranking []rerank.Ranked `json:"ranking"`
}

// Rank asks the model to order candidates. Ids the model invents are dropped.
func (r *Reranker) Rank(
	ctx context.Context, query string, candidates []rerank.Candidate, rc rerank.Context,
) ([]rerank.Ranked, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rerank throttle: %w", errors.Join(domain.ErrRateLimited, err))
	}

	payload, err := json.Marshal(rerankPrompt{Query: query, Context: rc, Candidates: candidates})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank prompt: %w", err)
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: rerankInstruction},
			{Role: openai.ChatMessageRoleUser, Content: string(payload)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, apiError("rerank", err, domain.ErrRerankerError)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty rerank response: %w", domain.ErrRerankerError)
	}

	ranked, err := parseRanking(resp.Choices[0].Message.Content, candidates)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Rerank completed",
		zap.String("model", r.model),
		zap.Int("candidates", len(candidates)),
		zap.Int("ranked", len(ranked)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)
	return ranked, nil
}

func parseRanking(content string, candidates []rerank.Candidate) ([]rerank.Ranked, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimSuffix(strings.TrimPrefix(content, "```"), "```")

	var reply rerankReply
	if err := json.Unmarshal([]byte(content), &reply); err != nil {
		return nil, fmt.Errorf("decode rerank reply: %v: %w", err, domain.ErrRerankerError)
	}

	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		known[c.ID] = true
	}
	out := make([]rerank.Ranked, 0, len(reply.Ranking))
	for _, rk := range reply.Ranking {
		if !known[rk.ID] {
			continue
		}
		known[rk.ID] = false
		out = append(out, rk)
	}
	return out, nil
}
