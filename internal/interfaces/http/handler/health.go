package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"doc-qa-api/internal/infrastructure/persistence/milvus"
	"doc-qa-api/internal/infrastructure/persistence/postgres"
	"doc-qa-api/internal/infrastructure/persistence/redis"
)

// HealthHandler 健康检查处理器
type HealthHandler struct {
	pg     *postgres.Client
	redis  *redis.Client
	milvus *milvus.Client
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(pg *postgres.Client, redisClient *redis.Client, milvusClient *milvus.Client) *HealthHandler {
	return &HealthHandler{
		pg:     pg,
		redis:  redisClient,
		milvus: milvusClient,
	}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type readinessCheck struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

type readinessResponse struct {
	Status string                     `json:"status"`
	Checks map[string]*readinessCheck `json:"checks,omitempty"`
}

// Health 健康检查接口
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
	})
}

// Ready 就绪检查接口。Postgres/Redis/Milvus 任一不可用即不就绪。
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]*readinessCheck{
		"postgres": {Status: "unknown"},
		"redis":    {Status: "unknown"},
		"milvus":   {Status: "unknown"},
	}

	ready := true

	check := func(name string, fn func(context.Context) error) {
		if fn == nil {
			checks[name].Status = "missing"
			checks[name].Error = name + " client not configured"
			ready = false
			return
		}
		start := time.Now()
		err := fn(ctx)
		checks[name].LatencyMs = time.Since(start).Milliseconds()
		if err != nil {
			checks[name].Status = "error"
			checks[name].Error = err.Error()
			ready = false
			return
		}
		checks[name].Status = "ok"
	}

	var pgCheck, redisCheck, milvusCheck func(context.Context) error
	if h.pg != nil {
		pgCheck = h.pg.HealthCheck
	}
	if h.redis != nil {
		redisCheck = h.redis.HealthCheck
	}
	if h.milvus != nil {
		milvusCheck = h.milvus.HealthCheck
	}

	check("postgres", pgCheck)
	check("redis", redisCheck)
	check("milvus", milvusCheck)

	resp := readinessResponse{
		Status: "ok",
		Checks: checks,
	}
	if !ready {
		resp.Status = "not_ready"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Live 存活检查接口
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
	})
}
