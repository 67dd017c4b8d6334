package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/worklens/backend/internal/semantic"
	"github.com/worklens/backend/pkg/logger"
	"github.com/worklens/backend/pkg/retry"
)

const ledgerKey = "semantic:cost_ledger"

type Client struct {
	client      *redis.Client
	retryConfig retry.Config
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{
		client: client,
		retryConfig: retry.Config{
			MaxAttempts:    3,
			InitialDelay:   100 * time.Millisecond,
			MaxDelay:       2 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.1,
			Logger:         logger.GetLogger(),
		},
	}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Load implements semantic.LedgerStore. A missing key means no spend yet.
func (c *Client) Load(ctx context.Context) (semantic.LedgerRecord, error) {
	var record semantic.LedgerRecord

	err := retry.Do(ctx, c.retryConfig, func() error {
		data, err := c.client.Get(ctx, ledgerKey).Bytes()
		if err == redis.Nil {
			record = semantic.LedgerRecord{}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get cost ledger: %w", err)
		}
		return json.Unmarshal(data, &record)
	})

	if err != nil {
		return semantic.LedgerRecord{}, err
	}
	return record, nil
}

// Save implements semantic.LedgerStore.
func (c *Client) Save(ctx context.Context, record semantic.LedgerRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal cost ledger: %w", err)
	}

	return retry.Do(ctx, c.retryConfig, func() error {
		if err := c.client.Set(ctx, ledgerKey, data, 0).Err(); err != nil {
			return fmt.Errorf("failed to set cost ledger: %w", err)
		}
		return nil
	})
}

func (c *Client) SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	err = c.client.Set(ctx, fmt.Sprintf("embedding:%s", textHash), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set embedding cache: %w", err)
	}

	logger.Debug("Embedding cached", zap.String("text_hash", textHash))
	return nil
}

func (c *Client) GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("embedding:%s", textHash)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get embedding cache: %w", err)
	}

	var embedding []float32
	err = json.Unmarshal(data, &embedding)
	if err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal embedding: %w", err)
	}

	logger.Debug("Embedding cache hit", zap.String("text_hash", textHash))
	return embedding, true, nil
}
