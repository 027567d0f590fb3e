package rag

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	apperrors "github.com/docuhub/backend-go/internal/errors"
)

// Embedder 定义批量文本向量化接口
type Embedder interface {
	// EmbedBatch 对一批文本做向量化，返回与输入等长且同序的向量
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Ready() bool
}

// NoopEmbedder 默认占位实现
type NoopEmbedder struct{}

func (n *NoopEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, apperrors.NewEmbeddingServiceError("embedding provider not configured", false)
}

func (n *NoopEmbedder) Dimensions() int {
	return 0
}

func (n *NoopEmbedder) Ready() bool {
	return false
}

var embeddingDimensions = map[string]int{
	"text-embedding-3-large": 3072,
	"text-embedding-3-small": 1536,
	"text-embedding-ada-002": 1536,
}

// embeddingCreator 便于测试的窄接口
type embeddingCreator interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIEmbedder 使用OpenAI Embedding API，一批文本一次请求
type OpenAIEmbedder struct {
	client     embeddingCreator
	model      string
	dimensions int
	timeout    time.Duration
}

// OpenAIEmbedderOptions OpenAI向量化配置
type OpenAIEmbedderOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// NewOpenAIEmbedder 创建OpenAI嵌入向量生成器
func NewOpenAIEmbedder(opts OpenAIEmbedderOptions) Embedder {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return &NoopEmbedder{}
	}
	if opts.Model == "" {
		opts.Model = "text-embedding-3-small"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	dims := opts.Dimensions
	if dims == 0 {
		if known, ok := embeddingDimensions[opts.Model]; ok {
			dims = known
		} else {
			dims = 1536
		}
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if opts.BaseURL != "" {
		clientConfig.BaseURL = opts.BaseURL
	}

	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      opts.Model,
		dimensions: dims,
		timeout:    opts.Timeout,
	}
}

// EmbedBatch 批量向量化，一个批次只发起一次API调用
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if e.client == nil {
		return nil, apperrors.NewEmbeddingServiceError("openai client not initialized", false)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, classifyEmbeddingError(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, apperrors.NewEmbeddingServiceError(
			fmt.Sprintf("embedding response size mismatch: sent %d, got %d", len(texts), len(resp.Data)), false)
	}

	// API按Index字段标注顺序，按其还原输入顺序
	results := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(results) {
			return nil, apperrors.NewEmbeddingServiceError(
				fmt.Sprintf("embedding response index out of range: %d", item.Index), false)
		}
		vec := make([]float32, len(item.Embedding))
		copy(vec, item.Embedding)
		results[item.Index] = vec
	}
	for i, vec := range results {
		if vec == nil {
			return nil, apperrors.NewEmbeddingServiceError(
				fmt.Sprintf("embedding response missing vector for input %d", i), false)
		}
		if e.dimensions > 0 && len(vec) != e.dimensions {
			return nil, apperrors.NewEmbeddingServiceError(
				fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", e.dimensions, len(vec)), false)
		}
	}
	return results, nil
}

func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *OpenAIEmbedder) Ready() bool {
	return e.client != nil
}

// classifyEmbeddingError 将上游错误映射为向量化服务错误并标注可重试性
func classifyEmbeddingError(err error) error {
	return apperrors.NewEmbeddingServiceError("embedding request failed", isTransientOpenAIError(err)).WithCause(err)
}

// isTransientOpenAIError 限流、超时与上游5xx可重试，鉴权与配额错误不可重试
func isTransientOpenAIError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			// insufficient_quota也返回429，但重试无意义
			if code, ok := apiErr.Code.(string); ok && code == "insufficient_quota" {
				return false
			}
			return true
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusBadRequest:
			return false
		}
		return apiErr.HTTPStatusCode >= 500
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode >= 500 || reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}

	// 网络层错误按瞬时处理
	return true
}
