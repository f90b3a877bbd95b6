package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDetailReturnsCopy(t *testing.T) {
	detailed := ErrUnknownStrategy.WithDetail("bm25")

	assert.Equal(t, "bm25", detailed.Detail)
	// 预定义错误保持只读
	assert.Empty(t, ErrUnknownStrategy.Detail)
	assert.Equal(t, ErrUnknownStrategy.Code, detailed.Code)
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{CodeInvalidParam, http.StatusBadRequest},
		{CodeUnknownStrategy, http.StatusBadRequest},
		{CodeChunkingFailed, http.StatusBadRequest},
		{CodeDocumentNotFound, http.StatusNotFound},
		{CodeStrategyNotBuilt, http.StatusConflict},
		{CodeTooManyRequests, http.StatusTooManyRequests},
		{CodeServiceUnavailable, http.StatusServiceUnavailable},
		{CodeEmbeddingFailed, http.StatusInternalServerError},
		{CodeVectorStoreError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.code, "msg").HTTPStatus)
		})
	}
}

func TestWrapAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	wrapped := Wrap(cause, CodeVectorStoreError, "vector upsert failed")

	assert.True(t, errors.Is(wrapped, cause))
	assert.Contains(t, wrapped.Error(), "vector upsert failed")
	assert.Contains(t, wrapped.Error(), "connection refused")
}

func TestAsAppError(t *testing.T) {
	appErr := AsAppError(ErrDocumentNotFound.WithDetail("doc-1"))
	require.NotNil(t, appErr)
	assert.Equal(t, CodeDocumentNotFound, appErr.Code)

	// 包装过的 AppError 也能提取
	wrapped := fmt.Errorf("outer: %w", ErrStrategyNotBuilt)
	appErr = AsAppError(wrapped)
	assert.Equal(t, CodeStrategyNotBuilt, appErr.Code)

	// 普通错误归为 unknown
	appErr = AsAppError(errors.New("boom"))
	assert.Equal(t, CodeUnknown, appErr.Code)
}

func TestIsCode(t *testing.T) {
	assert.True(t, IsCode(ErrEmbeddingFailed.WithDetail("timeout"), CodeEmbeddingFailed))
	assert.False(t, IsCode(ErrEmbeddingFailed, CodeGenerationFailed))
	assert.False(t, IsCode(errors.New("plain"), CodeEmbeddingFailed))
}

func TestRetryable(t *testing.T) {
	retryable := []error{
		ErrEmbeddingFailed,
		ErrGenerationFailed,
		New(CodeVectorStoreError, "milvus down"),
		New(CodeMetadataStoreError, "pg down"),
		New(CodeCacheError, "redis down"),
		ErrServiceUnavailable,
		ErrTooManyRequests,
	}
	for _, err := range retryable {
		assert.True(t, Retryable(err), "expected retryable: %v", err)
	}

	terminal := []error{
		ErrInvalidParam,
		ErrUnknownStrategy,
		ErrStrategyNotBuilt,
		ErrDocumentNotFound,
		ErrChunkingFailed,
		errors.New("plain error"),
	}
	for _, err := range terminal {
		assert.False(t, Retryable(err), "expected terminal: %v", err)
	}
}
