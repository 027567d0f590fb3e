package models

import "time"

// 文档索引状态
const (
	DocumentStatusPending    = "pending"
	DocumentStatusProcessing = "processing"
	DocumentStatusCompleted  = "completed"
	DocumentStatusFailed     = "failed"
)

// QADocument 已上传文档的索引状态记录
type QADocument struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	DocumentID string    `gorm:"size:128;uniqueIndex;not null" json:"document_id"`
	Filename   string    `gorm:"size:512;not null" json:"filename"`
	Type       string    `gorm:"size:32;not null" json:"type"`
	Status     string    `gorm:"size:32;not null;default:pending;index" json:"status"`
	ChunkCount int       `gorm:"default:0" json:"chunk_count"`
	FailReason string    `gorm:"type:text" json:"fail_reason,omitempty"`
	CreateTime time.Time `gorm:"autoCreateTime" json:"create_time"`
	UpdateTime time.Time `gorm:"autoUpdateTime" json:"update_time"`
}

// TableName 指定表名
func (QADocument) TableName() string {
	return "qa_documents"
}
