package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	apperrors "github.com/docuhub/backend-go/internal/errors"
	"github.com/docuhub/backend-go/internal/logger"
)

// NoInformationAnswer 检索为空或资料不足时的固定回答
const NoInformationAnswer = "Not enough information in the database to answer the question."

const answerSystemPrompt = "You are a document question answering assistant. " +
	"Answer the question using ONLY the provided passages. " +
	"Do not use outside knowledge. " +
	"If the passages do not contain enough information to answer, reply exactly: " +
	"\"" + NoInformationAnswer + "\""

const reformulatePrompt = "Rewrite the user question as a standalone search query for document retrieval. " +
	"Resolve pronouns using the conversation history. Reply with the rewritten query only."

// Answer 生成的回答及其引用
type Answer struct {
	Text string
	// Cited 为进入提示词的切片，按检索顺序
	Cited []Chunk
	// NoContext 表示未调用生成模型，返回了固定无资料回答
	NoContext bool
}

// ChatCompleter 回答生成所需的最小聊天接口
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// SynthesizerOptions 回答生成配置
type SynthesizerOptions struct {
	Model           string
	Temperature     float32
	MaxContextChars int
	Timeout         time.Duration
}

// Synthesizer 基于检索结果生成有依据的回答
type Synthesizer struct {
	client          ChatCompleter
	model           string
	temperature     float32
	maxContextChars int
	timeout         time.Duration
}

// NewSynthesizer 创建回答生成器
func NewSynthesizer(client ChatCompleter, opts SynthesizerOptions) *Synthesizer {
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = 12000
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Synthesizer{
		client:          client,
		model:           opts.Model,
		temperature:     opts.Temperature,
		maxContextChars: opts.MaxContextChars,
		timeout:         opts.Timeout,
	}
}

// NewOpenAISynthesizer 创建使用OpenAI Chat API的回答生成器
func NewOpenAISynthesizer(apiKey, baseURL string, opts SynthesizerOptions) *Synthesizer {
	clientConfig := openai.DefaultConfig(strings.TrimSpace(apiKey))
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	return NewSynthesizer(openai.NewClientWithConfig(clientConfig), opts)
}

// Answer 基于检索切片生成回答
// 检索为空时直接返回固定无资料回答，不调用生成模型。
func (s *Synthesizer) Answer(ctx context.Context, question string, retrieved []ScoredChunk, history []ConversationTurn) (*Answer, error) {
	if len(retrieved) == 0 {
		return &Answer{Text: NoInformationAnswer, NoContext: true}, nil
	}

	kept, err := s.fitPassages(question, history, retrieved)
	if err != nil {
		return nil, err
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)*2+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: answerSystemPrompt,
	})
	for _, turn := range history {
		messages = append(messages,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: turn.Question},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: turn.Answer},
		)
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: buildAnswerPrompt(question, kept),
	})

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: s.temperature,
		Messages:    messages,
	})
	if err != nil {
		return nil, classifyGenerationError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperrors.NewGenerationServiceError("chat completion returned no choices", false)
	}

	cited := make([]Chunk, len(kept))
	for i, sc := range kept {
		cited[i] = sc.Chunk
	}
	return &Answer{
		Text:  strings.TrimSpace(resp.Choices[0].Message.Content),
		Cited: cited,
	}, nil
}

// Reformulate 用LLM将问题改写为独立检索语句，失败时静默回退原问题
func (s *Synthesizer) Reformulate(ctx context.Context, question string, history []ConversationTurn) string {
	if len(history) == 0 {
		return question
	}

	var b strings.Builder
	for _, turn := range history {
		b.WriteString("User: ")
		b.WriteString(turn.Question)
		b.WriteString("\nAssistant: ")
		b.WriteString(turn.Answer)
		b.WriteString("\n")
	}
	b.WriteString("Question: ")
	b.WriteString(question)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: reformulatePrompt},
			{Role: openai.ChatMessageRoleUser, Content: b.String()},
		},
	})
	if err != nil || len(resp.Choices) == 0 {
		logger.Warn("query reformulation failed, using raw question", zap.Error(err))
		return question
	}
	rewritten := strings.TrimSpace(resp.Choices[0].Message.Content)
	if rewritten == "" {
		return question
	}
	return rewritten
}

// fitPassages 在字符预算内保留相似度最高的切片
// 预算覆盖问题、历史与切片的总字符数；retrieved已按得分降序，
// 从尾部丢弃直到放得下，一条都放不下时报上下文超限。
func (s *Synthesizer) fitPassages(question string, history []ConversationTurn, retrieved []ScoredChunk) ([]ScoredChunk, error) {
	budget := s.maxContextChars - len([]rune(question))
	for _, turn := range history {
		budget -= len([]rune(turn.Question)) + len([]rune(turn.Answer))
	}

	kept := retrieved
	for len(kept) > 0 {
		total := 0
		for _, sc := range kept {
			total += len([]rune(sc.Chunk.Text))
		}
		if total <= budget {
			break
		}
		kept = kept[:len(kept)-1]
	}
	if len(kept) == 0 {
		return nil, apperrors.NewContextTooLarge(
			fmt.Sprintf("question, history and passages exceed context budget of %d chars", s.maxContextChars))
	}
	if len(kept) < len(retrieved) {
		logger.Warn("dropped passages to fit context budget",
			zap.Int("retrieved", len(retrieved)), zap.Int("kept", len(kept)))
	}
	return kept, nil
}

// buildAnswerPrompt 组装提示词，切片按检索顺序列在问题之前
func buildAnswerPrompt(question string, kept []ScoredChunk) string {
	var b strings.Builder
	b.WriteString("Passages:\n")
	for i, sc := range kept {
		b.WriteString(fmt.Sprintf("[%d] (document %s, chunk %d)\n", i+1, sc.Chunk.DocumentID, sc.Chunk.Index))
		b.WriteString(sc.Chunk.Text)
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

// classifyGenerationError 将上游错误映射为生成服务错误并标注可重试性
func classifyGenerationError(err error) error {
	return apperrors.NewGenerationServiceError("chat completion request failed", isTransientOpenAIError(err)).WithCause(err)
}
