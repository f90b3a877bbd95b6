package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/embedding/openai"
	einoembedding "github.com/cloudwego/eino/components/embedding"

	"doc-qa-api/internal/config"
)

// NewEinoEmbedder 创建基于 Eino OpenAI 适配器的 Embedder
func NewEinoEmbedder(ctx context.Context, cfg *config.EmbeddingConfig) (einoembedding.Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding api_key is required")
	}

	embedder, err := openai.NewEmbedder(ctx, &openai.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.Endpoint,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino embedder: %w", err)
	}

	return embedder, nil
}

// NewEmbedder 按配置选择 Embedder 实现：
// openai 走 Eino 适配器，http 走自托管批量接口。
func NewEmbedder(ctx context.Context, cfg *config.EmbeddingConfig) (einoembedding.Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		return NewEinoEmbedder(ctx, cfg)
	case "http":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("embedding endpoint is required for http provider")
		}
		return NewClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}
