package dto

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "doc-qa-api/pkg/errors"
)

func testContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestSuccess(t *testing.T) {
	c, w := testContext()
	c.Set("trace_id", "trace-123")

	Success(c, gin.H{"answer": "42"})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(200), resp["code"])
	assert.Equal(t, "success", resp["message"])
	assert.Equal(t, "trace-123", resp["trace_id"])
}

func TestAppError_StatusFromErrorCode(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unknown strategy", apperrors.ErrUnknownStrategy.WithDetail("bm25"), http.StatusBadRequest, "3003"},
		{"strategy not built", apperrors.ErrStrategyNotBuilt.WithDetail("vector_store"), http.StatusConflict, "3002"},
		{"document not found", apperrors.ErrDocumentNotFound, http.StatusNotFound, "3001"},
		{"plain error maps to 500", errors.New("boom"), http.StatusInternalServerError, "1000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := testContext()

			AppError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.ErrorCode)
		})
	}
}

func TestBadRequest(t *testing.T) {
	c, w := testContext()

	BadRequest(c, "invalid request body")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}
