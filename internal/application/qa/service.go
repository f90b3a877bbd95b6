// Package qa 提供问答查询的应用服务
package qa

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"doc-qa-api/internal/application/retrieval"
	apperrors "doc-qa-api/pkg/errors"
	"doc-qa-api/pkg/logger"
	"doc-qa-api/pkg/metrics"
)

// AnswerCache 答案缓存端口；Get 未命中时返回 (nil, nil)
type AnswerCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	InvalidateAnswers(ctx context.Context) error
}

// Service 问答应用服务
type Service struct {
	registry *retrieval.Registry
	indexer  *retrieval.Indexer
	engine   *retrieval.Engine
	composer *retrieval.Composer
	cache    AnswerCache
	cacheTTL time.Duration

	group singleflight.Group
}

// NewService 创建问答应用服务
func NewService(registry *retrieval.Registry, indexer *retrieval.Indexer, engine *retrieval.Engine, composer *retrieval.Composer, cache AnswerCache, cacheTTL time.Duration) *Service {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Service{
		registry: registry,
		indexer:  indexer,
		engine:   engine,
		composer: composer,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// QueryInput 一次问答请求
type QueryInput struct {
	Question string
	Strategy string // 为空时使用最近一次成功构建的策略
	TopK     int
	// IncludeDiagnostics 是否在结果中返回检索/生成诊断信息
	IncludeDiagnostics bool
}

// Query 回答问题。相同 (question, strategy, top_k) 的结果短暂缓存，
// 并发的相同请求通过 singleflight 合并为一次检索与生成。
func (s *Service) Query(ctx context.Context, in QueryInput) (*retrieval.QueryResult, error) {
	in.Question = strings.TrimSpace(in.Question)
	if in.Question == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("question is required")
	}
	strategyName := strings.TrimSpace(in.Strategy)
	if strategyName == "" {
		strategyName = s.indexer.Current()
		if strategyName == "" {
			return nil, apperrors.ErrStrategyNotBuilt.WithDetail("no index has been built yet")
		}
	}
	ctx = logger.WithContext(ctx, logger.StrategyKey, strategyName)

	key := answerCacheKey(in.Question, strategyName, in.TopK)
	if cached := s.fromCache(ctx, key); cached != nil {
		metrics.CacheHitsTotal.WithLabelValues("hit").Inc()
		return s.trimDiagnostics(cached, in.IncludeDiagnostics), nil
	}
	metrics.CacheHitsTotal.WithLabelValues("miss").Inc()

	v, err, shared := s.group.Do(key, func() (any, error) {
		// 并发请求可能已填充缓存
		if cached := s.fromCache(ctx, key); cached != nil {
			return cached, nil
		}
		return s.answer(ctx, in.Question, strategyName, in.TopK, key)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.Debug(ctx, "query merged with in-flight request")
	}
	return s.trimDiagnostics(v.(*retrieval.QueryResult), in.IncludeDiagnostics), nil
}

// answer 执行检索 + 生成，并在生成成功时写入缓存
func (s *Service) answer(ctx context.Context, question, strategyName string, topK int, cacheKey string) (*retrieval.QueryResult, error) {
	chunks, diag, err := s.engine.Retrieve(ctx, question, strategyName, topK)
	if err != nil {
		return nil, err
	}

	result := s.composer.Compose(ctx, question, strategyName, chunks, diag)

	// 降级回答不缓存，避免把故障固化进 TTL 窗口
	if result.Error == "" {
		if err := s.cache.Set(ctx, cacheKey, result, s.cacheTTL); err != nil {
			logger.Warn(ctx, "cache answer failed", "error", err.Error())
		}
	}
	return result, nil
}

func (s *Service) fromCache(ctx context.Context, key string) *retrieval.QueryResult {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		logger.Warn(ctx, "answer cache read failed", "error", err.Error())
		return nil
	}
	if raw == nil {
		return nil
	}
	var result retrieval.QueryResult
	if err := json.Unmarshal(raw, &result); err != nil {
		logger.Warn(ctx, "answer cache decode failed", "error", err.Error())
		return nil
	}
	return &result
}

// trimDiagnostics 返回副本，按调用方要求裁剪诊断信息
func (s *Service) trimDiagnostics(result *retrieval.QueryResult, include bool) *retrieval.QueryResult {
	clone := *result
	if !include {
		clone.Diagnostics = nil
	}
	return &clone
}

// answerCacheKey 缓存键：问题归一化后与策略、top_k 一起散列
func answerCacheKey(question, strategy string, topK int) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(question), " "))
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", normalized, strategy, topK)))
	return "qa:answer:" + hex.EncodeToString(sum[:])
}

// CompareEntry 单策略的对比结果
type CompareEntry struct {
	Strategy string                 `json:"strategy"`
	Result   *retrieval.QueryResult `json:"result,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// CompareSummary 对比汇总
type CompareSummary struct {
	Fastest     string `json:"fastest,omitempty"`
	MostSources string `json:"most_sources,omitempty"`
}

// CompareResult 多策略对比结果
type CompareResult struct {
	Question string         `json:"question"`
	Entries  []CompareEntry `json:"entries"`
	Summary  CompareSummary `json:"summary"`
}

// CompareStrategies 用多个策略并发回答同一问题并汇总对比。
// strategies 为空时使用全部已建索引的策略；单策略失败不影响其余策略。
func (s *Service) CompareStrategies(ctx context.Context, question string, strategies []string, topK int) (*CompareResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("question is required")
	}
	if len(strategies) == 0 {
		strategies = s.indexer.BuiltStrategies()
	}
	if len(strategies) == 0 {
		return nil, apperrors.ErrStrategyNotBuilt.WithDetail("no index has been built yet")
	}
	for _, name := range strategies {
		if _, err := s.registry.Get(name); err != nil {
			return nil, err
		}
	}

	entries := make([]CompareEntry, len(strategies))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range strategies {
		i, name := i, name
		g.Go(func() error {
			result, err := s.Query(gctx, QueryInput{
				Question:           question,
				Strategy:           name,
				TopK:               topK,
				IncludeDiagnostics: true,
			})
			entries[i] = CompareEntry{Strategy: name}
			if err != nil {
				entries[i].Error = err.Error()
				return nil
			}
			entries[i].Result = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &CompareResult{
		Question: question,
		Entries:  entries,
		Summary:  summarize(entries),
	}, nil
}

// summarize 选出最快与引用最多的策略
func summarize(entries []CompareEntry) CompareSummary {
	var summary CompareSummary
	bestMs := int64(-1)
	bestSources := -1
	for _, e := range entries {
		if e.Result == nil {
			continue
		}
		if d := e.Result.Diagnostics; d != nil {
			total := d.RetrievalMs + d.GenerationMs
			if bestMs < 0 || total < bestMs {
				bestMs = total
				summary.Fastest = e.Strategy
			}
		}
		if n := len(e.Result.Sources); n > bestSources {
			bestSources = n
			summary.MostSources = e.Strategy
		}
	}
	return summary
}

// StrategiesInfo 策略概览
type StrategiesInfo struct {
	Available []string `json:"available"`
	Built     []string `json:"built"`
	Current   string   `json:"current,omitempty"`
}

// ListStrategies 返回可用策略、已建索引策略与当前默认策略
func (s *Service) ListStrategies(ctx context.Context) *StrategiesInfo {
	return &StrategiesInfo{
		Available: s.registry.Names(),
		Built:     s.indexer.BuiltStrategies(),
		Current:   s.indexer.Current(),
	}
}
