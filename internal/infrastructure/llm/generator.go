package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"
)

// Generator 基于 Eino ChatModel 的答案生成器，
// 实现 retrieval.Generator 端口。
type Generator struct {
	factory  *EinoFactory
	provider string
}

// NewGenerator 创建答案生成器；provider 为空时使用默认提供商
func NewGenerator(factory *EinoFactory, provider string) *Generator {
	return &Generator{factory: factory, provider: provider}
}

// Generate 用单轮对话生成答案
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	chatModel, err := g.factory.Get(ctx, g.provider)
	if err != nil {
		return "", err
	}

	msg, err := chatModel.Generate(ctx, []*schema.Message{
		schema.UserMessage(prompt),
	})
	if err != nil {
		return "", fmt.Errorf("chat model generate failed: %w", err)
	}
	if msg == nil {
		return "", fmt.Errorf("chat model returned empty message")
	}
	return msg.Content, nil
}
