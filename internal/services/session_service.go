package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/docuhub/backend-go/internal/logger"
	"github.com/docuhub/backend-go/internal/rag"
)

const sessionKeyPrefix = "docqa:session:"

// SessionService 按会话ID管理问答历史
// 内存中的Conversation是历史的唯一可信来源；Redis归档为可选，
// 仅用于进程重启后恢复，写入失败不影响问答。
type SessionService struct {
	mu            sync.Mutex
	conversations map[string]*rag.Conversation
	redisClient   *redis.Client
	ttl           time.Duration
}

// NewSessionService 创建会话服务，redisClient可为nil
func NewSessionService(redisClient *redis.Client, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionService{
		conversations: make(map[string]*rag.Conversation),
		redisClient:   redisClient,
		ttl:           ttl,
	}
}

func buildSessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

// Conversation 取会话历史，不存在时先尝试从归档恢复再新建
func (s *SessionService) Conversation(sessionID string) *rag.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.conversations[sessionID]; ok {
		return c
	}

	c := rag.NewConversation()
	if turns := s.loadArchive(sessionID); len(turns) > 0 {
		for _, turn := range turns {
			c.Append(turn)
		}
	}
	s.conversations[sessionID] = c
	return c
}

// AppendTurn 追加一轮问答并异步归档
func (s *SessionService) AppendTurn(ctx context.Context, sessionID string, turn rag.ConversationTurn) {
	c := s.Conversation(sessionID)
	c.Append(turn)
	s.archive(ctx, sessionID, c)
}

// History 返回会话历史副本
func (s *SessionService) History(sessionID string) []rag.ConversationTurn {
	return s.Conversation(sessionID).History()
}

// ClearHistory 清空会话历史，会话本身保留
func (s *SessionService) ClearHistory(ctx context.Context, sessionID string) {
	s.Conversation(sessionID).Clear()
	s.dropArchive(ctx, sessionID)
}

// EndSession 登出时移除会话及其归档
func (s *SessionService) EndSession(ctx context.Context, sessionID string) {
	s.mu.Lock()
	delete(s.conversations, sessionID)
	s.mu.Unlock()
	s.dropArchive(ctx, sessionID)
}

// archive 将历史JSON写入Redis，失败只告警
func (s *SessionService) archive(ctx context.Context, sessionID string, c *rag.Conversation) {
	if s.redisClient == nil {
		return
	}
	payload, err := json.Marshal(c.History())
	if err != nil {
		logger.Warn("failed to encode session history", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	if err := s.redisClient.Set(ctx, buildSessionKey(sessionID), payload, s.ttl).Err(); err != nil {
		logger.Warn("failed to archive session history", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// loadArchive 从Redis恢复历史，失败视为无归档
func (s *SessionService) loadArchive(sessionID string) []rag.ConversationTurn {
	if s.redisClient == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	payload, err := s.redisClient.Get(ctx, buildSessionKey(sessionID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("failed to load session archive", zap.String("session_id", sessionID), zap.Error(err))
		}
		return nil
	}
	var turns []rag.ConversationTurn
	if err := json.Unmarshal(payload, &turns); err != nil {
		logger.Warn("corrupt session archive", zap.String("session_id", sessionID), zap.Error(err))
		return nil
	}
	return turns
}

func (s *SessionService) dropArchive(ctx context.Context, sessionID string) {
	if s.redisClient == nil {
		return
	}
	if err := s.redisClient.Del(ctx, buildSessionKey(sessionID)).Err(); err != nil {
		logger.Warn("failed to drop session archive", zap.String("session_id", sessionID), zap.Error(err))
	}
}
