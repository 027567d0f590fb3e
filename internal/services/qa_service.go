package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/docuhub/backend-go/internal/logger"
	"github.com/docuhub/backend-go/internal/metrics"
	"github.com/docuhub/backend-go/internal/rag"
	"github.com/docuhub/backend-go/internal/repository"
)

// AskOptions 单次提问的可选参数
type AskOptions struct {
	// TopK 覆盖默认检索条数，0表示用配置值
	TopK int
	// DocumentIDs 限定检索范围，为空表示全库
	DocumentIDs []string
}

// QAService 问答流水线：改写(可选) -> 检索 -> 生成 -> 记录历史
type QAService struct {
	retriever   *rag.Retriever
	synthesizer *rag.Synthesizer
	sessions    *SessionService
	docRepo     repository.DocumentRepository
	retry       rag.RetryPolicy
	topK        int
	reformulate bool
}

// NewQAService 创建问答服务
func NewQAService(
	retriever *rag.Retriever,
	synthesizer *rag.Synthesizer,
	sessions *SessionService,
	docRepo repository.DocumentRepository,
	retry rag.RetryPolicy,
	topK int,
	reformulate bool,
) *QAService {
	if topK <= 0 {
		topK = 5
	}
	return &QAService{
		retriever:   retriever,
		synthesizer: synthesizer,
		sessions:    sessions,
		docRepo:     docRepo,
		retry:       retry,
		topK:        topK,
		reformulate: reformulate,
	}
}

// Ask 回答一个问题并在成功后追加会话历史
// 失败或取消时不写历史，检索为空时返回固定无资料回答。
func (s *QAService) Ask(ctx context.Context, sessionID, question string, opts AskOptions) (*rag.Answer, error) {
	conversation := s.sessions.Conversation(sessionID)
	history := conversation.History()

	searchQuery := question
	if s.reformulate {
		searchQuery = s.synthesizer.Reformulate(ctx, question, history)
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = s.topK
	}

	scope, nothingIndexed, err := s.resolveScope(ctx, opts.DocumentIDs)
	if err != nil {
		metrics.QuestionsAnswered.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}

	var retrieved []rag.ScoredChunk
	if !nothingIndexed {
		retrievalStart := time.Now()
		err = s.retry.Do(ctx, "retrieve", func(ctx context.Context) error {
			var retrieveErr error
			retrieved, retrieveErr = s.retriever.Retrieve(ctx, searchQuery, topK, scope)
			return retrieveErr
		})
		metrics.RetrievalDuration.Observe(time.Since(retrievalStart).Seconds())
		if err != nil {
			metrics.QuestionsAnswered.WithLabelValues(metrics.OutcomeError).Inc()
			return nil, err
		}
	}

	generationStart := time.Now()
	answer, err := s.synthesizer.Answer(ctx, question, retrieved, history)
	if err != nil {
		metrics.QuestionsAnswered.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}
	if !answer.NoContext {
		metrics.GenerationDuration.Observe(time.Since(generationStart).Seconds())
	}

	// 取消的请求不落历史
	if ctx.Err() != nil {
		metrics.QuestionsAnswered.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, ctx.Err()
	}

	s.sessions.AppendTurn(ctx, sessionID, rag.ConversationTurn{
		Question:  question,
		Answer:    answer.Text,
		Cited:     answer.Cited,
		CreatedAt: time.Now(),
	})

	if answer.NoContext {
		metrics.QuestionsAnswered.WithLabelValues(metrics.OutcomeNoInformation).Inc()
	} else {
		metrics.QuestionsAnswered.WithLabelValues(metrics.OutcomeAnswered).Inc()
	}

	logger.Info("question answered",
		zap.String("session_id", sessionID),
		zap.Int("retrieved", len(retrieved)),
		zap.Bool("no_context", answer.NoContext))
	return answer, nil
}

// resolveScope 将请求范围与已完成文档集合求交集
// 未配置状态表时原样使用请求范围；交集为空时直接短路为无资料。
func (s *QAService) resolveScope(ctx context.Context, requested []string) ([]string, bool, error) {
	if s.docRepo == nil {
		return requested, false, nil
	}
	completed, err := s.docRepo.ListCompletedIDs(ctx)
	if err != nil {
		return nil, false, err
	}
	if len(completed) == 0 {
		return nil, true, nil
	}
	if len(requested) == 0 {
		return completed, false, nil
	}

	completedSet := make(map[string]bool, len(completed))
	for _, id := range completed {
		completedSet[id] = true
	}
	scope := make([]string, 0, len(requested))
	for _, id := range requested {
		if completedSet[id] {
			scope = append(scope, id)
		}
	}
	if len(scope) == 0 {
		return nil, true, nil
	}
	return scope, false, nil
}
