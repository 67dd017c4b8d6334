package semantic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/worklens/backend/pkg/circuitbreaker"
	"github.com/worklens/backend/pkg/logger"
)

const adjudicationSystemPrompt = `You analyze pairs of developer activity records and decide whether they describe the same piece of work.
Respond with a single JSON object and nothing else:
{"is_related": bool, "confidence": float between 0 and 1, "relationship_type": "solves"|"references"|"related_to"|"sequential"|"causal", "reasoning": "one sentence"}`

// OpenAIProvider implements Embedder and Adjudicator against the OpenAI API.
// Calls are wrapped in a circuit breaker and a per-call timeout. There is no
// automatic retry: each call is billed, so a failure surfaces immediately and
// the caller decides what to degrade to.
type OpenAIProvider struct {
	client         *openai.Client
	model          string
	embeddingModel string
	maxTokens      int
	callTimeout    time.Duration
	cb             *circuitbreaker.CircuitBreaker
}

func NewOpenAIProvider(apiKey, model, embeddingModel string) *OpenAIProvider {
	cb := circuitbreaker.NewCircuitBreaker("semantic-openai", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	logger.Info("Semantic provider initialized",
		zap.String("model", model),
		zap.String("embedding_model", embeddingModel),
	)

	return &OpenAIProvider{
		client:         openai.NewClient(apiKey),
		model:          model,
		embeddingModel: embeddingModel,
		maxTokens:      200,
		callTimeout:    30 * time.Second,
		cb:             cb,
	}
}

func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	var embeddings [][]float32

	err := p.cb.Execute(ctx, func() error {
		resp, err := p.client.CreateEmbeddings(
			ctx,
			openai.EmbeddingRequest{
				Input: texts,
				Model: openai.EmbeddingModel(p.embeddingModel),
			},
		)
		if err != nil {
			return fmt.Errorf("failed to generate embeddings: %w", err)
		}

		embeddings = make([][]float32, 0, len(resp.Data))
		for _, data := range resp.Data {
			embedding := make([]float32, len(data.Embedding))
			copy(embedding, data.Embedding)
			embeddings = append(embeddings, embedding)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return embeddings, nil
}

func (p *OpenAIProvider) Adjudicate(ctx context.Context, pair PairContext) (*Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	userPrompt := fmt.Sprintf(
		"Record A (%s, %s):\nTitle: %s\nDescription: %s\n\nRecord B (%s, %s):\nTitle: %s\nDescription: %s",
		pair.A.Platform, pair.A.EvidenceDate.Format("2006-01-02"), pair.A.Title, pair.A.Description,
		pair.B.Platform, pair.B.EvidenceDate.Format("2006-01-02"), pair.B.Title, pair.B.Description,
	)

	var verdict *Verdict

	err := p.cb.Execute(ctx, func() error {
		resp, err := p.client.CreateChatCompletion(
			ctx,
			openai.ChatCompletionRequest{
				Model: p.model,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleSystem, Content: adjudicationSystemPrompt},
					{Role: openai.ChatMessageRoleUser, Content: userPrompt},
				},
				Temperature: 0.1,
				MaxTokens:   p.maxTokens,
			},
		)
		if err != nil {
			return fmt.Errorf("failed to adjudicate pair: %w", err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("adjudication returned no choices")
		}

		verdict, err = parseVerdict(resp.Choices[0].Message.Content)
		if err != nil {
			return err
		}

		logger.Debug("Pair adjudicated",
			zap.Bool("is_related", verdict.IsRelated),
			zap.Float64("confidence", verdict.Confidence),
		)
		return nil
	})

	if err != nil {
		return nil, err
	}
	return verdict, nil
}

// parseVerdict tolerates markdown code fences around the JSON body.
func parseVerdict(content string) (*Verdict, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var verdict Verdict
	if err := json.Unmarshal([]byte(trimmed), &verdict); err != nil {
		return nil, fmt.Errorf("failed to parse adjudication verdict: %w", err)
	}
	return &verdict, nil
}
