package rag

import (
	"sync"
	"time"
)

// ConversationTurn 一轮问答记录
type ConversationTurn struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Cited     []Chunk   `json:"cited,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation 单会话的问答历史，仅追加且保持顺序，不做任何外部调用
type Conversation struct {
	mu    sync.RWMutex
	turns []ConversationTurn
}

// NewConversation 创建空会话
func NewConversation() *Conversation {
	return &Conversation{}
}

// Append 追加一轮问答
func (c *Conversation) Append(turn ConversationTurn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, turn)
}

// History 返回按时间顺序的历史副本
func (c *Conversation) History() []ConversationTurn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ConversationTurn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Clear 清空历史
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = nil
}

// Len 返回历史轮数
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}
