package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/docuhub/backend-go/internal/errors"
	"github.com/docuhub/backend-go/internal/rag"
)

// scriptedChatClient 按问题返回固定回答
type scriptedChatClient struct {
	calls    int
	response string
	err      error
}

func (c *scriptedChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.calls++
	if c.err != nil {
		return openai.ChatCompletionResponse{}, c.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: c.response}},
		},
	}, nil
}

type qaFixture struct {
	store     rag.VectorStore
	repo      *memoryDocRepo
	sessions  *SessionService
	chat      *scriptedChatClient
	ingestion *IngestionService
	qa        *QAService
}

func newQAFixture(t *testing.T, topK int) *qaFixture {
	t.Helper()
	store := rag.NewMemoryVectorStore(3)
	repo := newMemoryDocRepo()
	sessions := NewSessionService(nil, time.Hour)
	chat := &scriptedChatClient{response: "The sky is blue."}

	embedder := &keywordEmbedder{}
	retriever := rag.NewRetriever(embedder, store)
	synthesizer := rag.NewSynthesizer(chat, rag.SynthesizerOptions{
		MaxContextChars: 1000,
		Timeout:         5 * time.Second,
	})

	return &qaFixture{
		store:     store,
		repo:      repo,
		sessions:  sessions,
		chat:      chat,
		ingestion: newTestIngestion(t, store, repo),
		qa: NewQAService(retriever, synthesizer, sessions, repo,
			rag.RetryPolicy{MaxAttempts: 1}, topK, false),
	}
}

// TestAskEndToEnd 测试入库后提问返回有依据的回答
func TestAskEndToEnd(t *testing.T) {
	f := newQAFixture(t, 1)
	ctx := context.Background()

	_, err := f.ingestion.Ingest(ctx, Upload{
		Filename: "facts.txt",
		Data:     []byte("The sky is blue. Grass is green."),
	})
	require.NoError(t, err)

	answer, err := f.qa.Ask(ctx, "session-1", "What color is the sky?", AskOptions{})
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue.", answer.Text)
	assert.False(t, answer.NoContext)
	require.Len(t, answer.Cited, 1)
	assert.Contains(t, answer.Cited[0].Text, "sky")

	history := f.sessions.History("session-1")
	require.Len(t, history, 1)
	assert.Equal(t, "What color is the sky?", history[0].Question)
	assert.Equal(t, "The sky is blue.", history[0].Answer)
}

// TestAskEmptyIndexNoLLMCall 测试空库提问不调用生成模型
func TestAskEmptyIndexNoLLMCall(t *testing.T) {
	f := newQAFixture(t, 5)

	answer, err := f.qa.Ask(context.Background(), "session-1", "anything?", AskOptions{})
	require.NoError(t, err)
	assert.Equal(t, rag.NoInformationAnswer, answer.Text)
	assert.True(t, answer.NoContext)
	assert.Empty(t, answer.Cited)
	assert.Equal(t, 0, f.chat.calls)

	// 无资料回答同样记入历史
	history := f.sessions.History("session-1")
	require.Len(t, history, 1)
	assert.Equal(t, rag.NoInformationAnswer, history[0].Answer)
}

// TestAskScopeExcludesFailedDocs 测试检索范围只含已完成文档
func TestAskScopeExcludesFailedDocs(t *testing.T) {
	f := newQAFixture(t, 5)
	ctx := context.Background()

	_, err := f.ingestion.Ingest(ctx, Upload{Filename: "good.txt", Data: []byte("The sky is blue.")})
	require.NoError(t, err)
	_, _ = f.ingestion.Ingest(ctx, Upload{Filename: "bad.txt", Data: []byte("")})

	answer, err := f.qa.Ask(ctx, "s", "sky?", AskOptions{})
	require.NoError(t, err)
	require.Len(t, answer.Cited, 1)
}

// TestAskScopeFilter 测试指定文档范围
func TestAskScopeFilter(t *testing.T) {
	f := newQAFixture(t, 5)
	ctx := context.Background()

	skyDoc, err := f.ingestion.Ingest(ctx, Upload{Filename: "sky.txt", Data: []byte("The sky is blue.")})
	require.NoError(t, err)
	grassDoc, err := f.ingestion.Ingest(ctx, Upload{Filename: "grass.txt", Data: []byte("Grass is green.")})
	require.NoError(t, err)

	answer, err := f.qa.Ask(ctx, "s", "What color is the sky?", AskOptions{
		DocumentIDs: []string{grassDoc.DocumentID},
	})
	require.NoError(t, err)
	for _, cited := range answer.Cited {
		assert.NotEqual(t, skyDoc.DocumentID, cited.DocumentID)
	}
}

// TestAskScopeOnlyUnknownDocs 测试范围均未完成时返回无资料回答
func TestAskScopeOnlyUnknownDocs(t *testing.T) {
	f := newQAFixture(t, 5)
	ctx := context.Background()

	_, err := f.ingestion.Ingest(ctx, Upload{Filename: "sky.txt", Data: []byte("The sky is blue.")})
	require.NoError(t, err)

	answer, err := f.qa.Ask(ctx, "s", "sky?", AskOptions{DocumentIDs: []string{"nonexistent"}})
	require.NoError(t, err)
	assert.True(t, answer.NoContext)
	assert.Equal(t, 0, f.chat.calls)
}

// TestAskGenerationFailureNoTurn 测试生成失败不写历史
func TestAskGenerationFailureNoTurn(t *testing.T) {
	f := newQAFixture(t, 5)
	ctx := context.Background()

	_, err := f.ingestion.Ingest(ctx, Upload{Filename: "facts.txt", Data: []byte("The sky is blue.")})
	require.NoError(t, err)

	f.chat.err = &openai.APIError{HTTPStatusCode: http.StatusServiceUnavailable}
	_, err = f.qa.Ask(ctx, "session-1", "sky?", AskOptions{})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindGenerationService))
	assert.Empty(t, f.sessions.History("session-1"))
}

// TestAskCanceledNoTurn 测试取消的请求不写历史
func TestAskCanceledNoTurn(t *testing.T) {
	f := newQAFixture(t, 5)
	ctx := context.Background()

	_, err := f.ingestion.Ingest(ctx, Upload{Filename: "facts.txt", Data: []byte("The sky is blue.")})
	require.NoError(t, err)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = f.qa.Ask(canceled, "session-1", "sky?", AskOptions{})
	require.Error(t, err)
	assert.Empty(t, f.sessions.History("session-1"))
}

// TestAskMultiTurnHistory 测试多轮问答顺序
func TestAskMultiTurnHistory(t *testing.T) {
	f := newQAFixture(t, 5)
	ctx := context.Background()

	_, err := f.ingestion.Ingest(ctx, Upload{Filename: "facts.txt", Data: []byte("The sky is blue. Grass is green.")})
	require.NoError(t, err)

	questions := []string{"What color is the sky?", "And the grass?", "Anything else?"}
	for _, q := range questions {
		_, err := f.qa.Ask(ctx, "session-1", q, AskOptions{})
		require.NoError(t, err)
	}

	history := f.sessions.History("session-1")
	require.Len(t, history, 3)
	for i, q := range questions {
		assert.Equal(t, q, history[i].Question)
	}

	// 其他会话互不影响
	assert.Empty(t, f.sessions.History("session-2"))
}
