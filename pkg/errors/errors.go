// Package errors 提供统一的错误定义
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误 (1xxx)
	CodeSuccess            ErrorCode = "0"
	CodeUnknown            ErrorCode = "1000"
	CodeInvalidParam       ErrorCode = "1001"
	CodeNotFound           ErrorCode = "1004"
	CodeConflict           ErrorCode = "1005"
	CodeTooManyRequests    ErrorCode = "1006"
	CodeInternalError      ErrorCode = "1007"
	CodeServiceUnavailable ErrorCode = "1008"

	// 资源错误 (3xxx)
	CodeDocumentNotFound ErrorCode = "3001"
	CodeStrategyNotBuilt ErrorCode = "3002"
	CodeUnknownStrategy  ErrorCode = "3003"

	// 业务错误 (4xxx)
	CodeChunkingFailed   ErrorCode = "4001"
	CodeEmbeddingFailed  ErrorCode = "4002"
	CodeGenerationFailed ErrorCode = "4003"
	CodeIngestionFailed  ErrorCode = "4004"
	CodeQueryFailed      ErrorCode = "4005"

	// 外部服务错误 (5xxx)
	CodeMetadataStoreError ErrorCode = "5001"
	CodeCacheError         ErrorCode = "5002"
	CodeVectorStoreError   ErrorCode = "5003"
)

// AppError 应用错误
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Err        error     `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail 添加详细信息（返回副本，预定义错误保持只读）
func (e *AppError) WithDetail(detail string) *AppError {
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithError 添加底层错误（返回副本，预定义错误保持只读）
func (e *AppError) WithError(err error) *AppError {
	clone := *e
	clone.Err = err
	return &clone
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Err:        err,
	}
}

// codeToHTTPStatus 错误码转 HTTP 状态码
func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidParam, CodeUnknownStrategy, CodeChunkingFailed:
		return http.StatusBadRequest
	case CodeNotFound, CodeDocumentNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeStrategyNotBuilt:
		return http.StatusConflict
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// 预定义错误
var (
	ErrInvalidParam       = New(CodeInvalidParam, "invalid parameter")
	ErrNotFound           = New(CodeNotFound, "resource not found")
	ErrTooManyRequests    = New(CodeTooManyRequests, "too many requests")
	ErrInternalError      = New(CodeInternalError, "internal server error")
	ErrServiceUnavailable = New(CodeServiceUnavailable, "service unavailable")

	ErrDocumentNotFound = New(CodeDocumentNotFound, "document not found")
	ErrStrategyNotBuilt = New(CodeStrategyNotBuilt, "no index built for strategy")
	ErrUnknownStrategy  = New(CodeUnknownStrategy, "unknown indexing strategy")

	ErrChunkingFailed   = New(CodeChunkingFailed, "document chunking failed")
	ErrEmbeddingFailed  = New(CodeEmbeddingFailed, "embedding call failed")
	ErrGenerationFailed = New(CodeGenerationFailed, "answer generation failed")
)

// IsAppError 检查是否为 AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError 将错误转换为 AppError
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeUnknown, "unknown error")
}

// IsCode 检查错误是否携带指定错误码
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Retryable 判断错误是否可重试。
// 嵌入/生成/存储类故障视为暂时性；参数与策略类错误为终态。
func Retryable(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case CodeEmbeddingFailed, CodeGenerationFailed,
		CodeVectorStoreError, CodeMetadataStoreError, CodeCacheError,
		CodeServiceUnavailable, CodeTooManyRequests:
		return true
	default:
		return false
	}
}
