package rag

import (
	"path/filepath"
	"strings"
	"time"
)

// DocumentType 文档格式类型
type DocumentType string

const (
	DocumentTypePDF  DocumentType = "pdf"
	DocumentTypeText DocumentType = "text"
	DocumentTypeWord DocumentType = "docx"
)

// Document 已上传文档的领域对象
type Document struct {
	ID         string
	Filename   string
	Type       DocumentType
	Text       string
	UploadedAt time.Time
}

// Chunk 文本切片，偏移量为原文中的rune区间[Start,End)
type Chunk struct {
	DocumentID string
	Index      int
	Text       string
	Start      int
	End        int
}

// DetectType 根据文件名与声明的MIME类型推断文档格式
func DetectType(filename, mimeType string) (DocumentType, bool) {
	switch mimeType {
	case "application/pdf":
		return DocumentTypePDF, true
	case "text/plain", "text/markdown":
		return DocumentTypeText, true
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return DocumentTypeWord, true
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return DocumentTypePDF, true
	case ".txt", ".md", ".text":
		return DocumentTypeText, true
	case ".docx":
		return DocumentTypeWord, true
	}
	return "", false
}
