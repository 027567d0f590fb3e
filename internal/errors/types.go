package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind 错误类别
type Kind string

// 预定义错误类别
const (
	// 配置错误（启动期校验失败，不可恢复）
	KindInvalidConfiguration Kind = "INVALID_CONFIGURATION"

	// 文档解析错误（单文档级别，不影响其他文档）
	KindUnsupportedFormat Kind = "UNSUPPORTED_FORMAT"

	// 外部服务错误
	KindEmbeddingService  Kind = "EMBEDDING_SERVICE_ERROR"
	KindIndexUnavailable  Kind = "INDEX_UNAVAILABLE"
	KindGenerationService Kind = "GENERATION_SERVICE_ERROR"

	// 提示词超出模型上下文预算（本地截断后仍超出才上报）
	KindContextTooLarge Kind = "CONTEXT_TOO_LARGE"
)

// AppError 应用错误结构体
type AppError struct {
	Kind      Kind   `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"-"`
	Cause     error  `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is 按Kind匹配，支持errors.Is
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// WithCause 附加底层错误
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// NewInvalidConfiguration 创建配置错误
func NewInvalidConfiguration(message string) *AppError {
	return &AppError{Kind: KindInvalidConfiguration, Message: message}
}

// NewUnsupportedFormat 创建文档格式错误
func NewUnsupportedFormat(message string) *AppError {
	return &AppError{Kind: KindUnsupportedFormat, Message: message}
}

// NewEmbeddingServiceError 创建向量化服务错误
func NewEmbeddingServiceError(message string, retryable bool) *AppError {
	return &AppError{Kind: KindEmbeddingService, Message: message, Retryable: retryable}
}

// NewIndexUnavailable 创建向量索引不可用错误
func NewIndexUnavailable(message string, retryable bool) *AppError {
	return &AppError{Kind: KindIndexUnavailable, Message: message, Retryable: retryable}
}

// NewGenerationServiceError 创建生成服务错误
func NewGenerationServiceError(message string, retryable bool) *AppError {
	return &AppError{Kind: KindGenerationService, Message: message, Retryable: retryable}
}

// NewContextTooLarge 创建上下文超限错误
func NewContextTooLarge(message string) *AppError {
	return &AppError{Kind: KindContextTooLarge, Message: message}
}

// IsKind 检查错误是否属于指定类别
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// IsRetryable 检查错误是否为瞬时故障（限流、超时、上游5xx）
func IsRetryable(err error) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetAppError 提取AppError，非AppError时包装为内部错误
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return &AppError{Kind: KindGenerationService, Message: "internal error", Cause: err}
}

// UserMessage 将错误翻译为面向用户的提示
func UserMessage(err error) string {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return "处理请求时发生内部错误，请稍后重试"
	}

	switch appErr.Kind {
	case KindUnsupportedFormat:
		return "无法从该文档提取文本（可能是扫描版PDF或空文件）"
	case KindEmbeddingService:
		return "向量化服务暂时不可用，请稍后重试"
	case KindIndexUnavailable:
		return "向量索引暂时不可用，请稍后重试"
	case KindGenerationService:
		return "回答生成服务暂时不可用，请稍后重试"
	case KindContextTooLarge:
		return "检索到的内容超出模型处理能力，请尝试更具体的问题"
	case KindInvalidConfiguration:
		return "系统配置错误，请联系管理员"
	default:
		return "处理请求时发生内部错误，请稍后重试"
	}
}
