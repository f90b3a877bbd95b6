// Package main 文档问答服务入口
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"doc-qa-api/internal/application/document"
	"doc-qa-api/internal/application/qa"
	"doc-qa-api/internal/application/retrieval"
	"doc-qa-api/internal/config"
	"doc-qa-api/internal/infrastructure/embedding"
	"doc-qa-api/internal/infrastructure/llm"
	"doc-qa-api/internal/infrastructure/persistence/milvus"
	"doc-qa-api/internal/infrastructure/persistence/postgres"
	"doc-qa-api/internal/infrastructure/persistence/redis"
	"doc-qa-api/internal/interfaces/http/handler"
	"doc-qa-api/internal/interfaces/http/router"
	einoobs "doc-qa-api/internal/observability/eino"
	"doc-qa-api/pkg/logger"
	"doc-qa-api/pkg/tracer"

	"github.com/joho/godotenv"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件（如果存在）
	_ = godotenv.Load()

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	ctx := context.Background()
	log := logger.FromContext(ctx)
	log.Info("starting doc-qa-api",
		"version", Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
	)

	// 初始化追踪
	shutdownTracer, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		log.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracer(ctx); err != nil {
			log.Error("failed to shutdown tracer", "error", err)
		}
	}()

	// 初始化 Eino 全局 callbacks（模型调用指标/追踪）
	einoobs.Init()

	// 数据层：PostgreSQL（文档元数据）
	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		logger.Fatal(ctx, "failed to init postgres", err)
	}
	defer func() { _ = pgClient.Close() }()

	if err := pgClient.Migrate(); err != nil {
		logger.Fatal(ctx, "failed to migrate postgres schema", err)
	}

	// 数据层：Redis（答案缓存 + 限流）
	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Fatal(ctx, "failed to init redis", err)
	}
	defer func() { _ = redisClient.Close() }()

	answerCache := redis.NewCache(redisClient)
	rateLimiter := redis.NewRateLimiter(redisClient)

	// 数据层：Milvus（向量索引）
	milvusClient, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		logger.Fatal(ctx, "failed to init milvus", err)
	}
	defer func() { _ = milvusClient.Close() }()

	vectorStore := milvus.NewRepository(milvusClient, cfg.Embedding.Dimension)

	// 模型层：Embedder 与 LLM
	embedder, err := embedding.NewEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		logger.Fatal(ctx, "failed to init embedder", err)
	}

	llmFactory := llm.NewEinoFactory(cfg)
	generator := llm.NewGenerator(llmFactory, cfg.LLM.DefaultProvider)

	// 检索层
	registry, err := retrieval.NewRegistry(cfg.Chunking)
	if err != nil {
		logger.Fatal(ctx, "invalid chunking config", err)
	}

	metaRepo := postgres.NewDocumentMetadataRepository(pgClient)
	indexer := retrieval.NewIndexer(registry, embedder, vectorStore, metaRepo, cfg.Embedding.BatchSize)
	engine := retrieval.NewEngine(registry, indexer, embedder, vectorStore,
		cfg.Retrieval.SimilarityTopK, cfg.Retrieval.MaxTopK)
	composer := retrieval.NewComposer(generator)

	// 从元数据恢复已建索引状态，重启后无需重新索引
	if err := indexer.RestoreState(ctx); err != nil {
		log.Warn("failed to restore index state", "error", err)
	}

	// 应用层
	documentSvc := document.NewService(cfg.Upload, registry, indexer, metaRepo, vectorStore, answerCache)
	qaSvc := qa.NewService(registry, indexer, engine, composer, answerCache, cfg.Cache.AnswerTTL)

	// 接口层
	r := router.New(cfg, router.Handlers{
		Health:   handler.NewHealthHandler(pgClient, redisClient, milvusClient),
		Document: handler.NewDocumentHandler(documentSvc),
		QA:       handler.NewQAHandler(qaSvc),
	}, rateLimiter)

	// 创建 HTTP 服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.HTTP.Host, cfg.Server.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
	}

	// 启动服务器
	go func() {
		log.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// 优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}
