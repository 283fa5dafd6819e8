package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/feedback-insights/backend/pkg/logger"
)

const answerPrefix = "answer:"

type Client struct {
	client    *redis.Client
	answerTTL time.Duration
}

func NewClient(addr, password string, db int, answerTTL time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", addr))

	return &Client{client: client, answerTTL: answerTTL}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Client) SetAnswer(ctx context.Context, key, answer string) error {
	err := c.client.Set(ctx, answerPrefix+key, answer, c.answerTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to set answer cache: %w", err)
	}

	logger.Debug("Answer cached", zap.String("key", key), zap.Duration("ttl", c.answerTTL))
	return nil
}

func (c *Client) GetAnswer(ctx context.Context, key string) (string, bool, error) {
	answer, err := c.client.Get(ctx, answerPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get answer cache: %w", err)
	}

	logger.Debug("Answer cache hit", zap.String("key", key))
	return answer, true, nil
}

// InvalidateAnswers drops every cached answer. Called when a new batch is published.
func (c *Client) InvalidateAnswers(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, answerPrefix+"*", 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	for start := 0; start < len(keys); start += 100 {
		end := start + 100
		if end > len(keys) {
			end = len(keys)
		}
		if err := c.client.Del(ctx, keys[start:end]...).Err(); err != nil {
			logger.Warn("Failed to delete cache keys", zap.Error(err))
		}
	}

	logger.Info("Answer cache invalidated", zap.Int("keys", len(keys)))
	return nil
}
