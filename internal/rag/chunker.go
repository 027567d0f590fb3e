package rag

import (
	"fmt"

	apperrors "github.com/docuhub/backend-go/internal/errors"
)

// Chunker 按rune滑动窗口切分文本
type Chunker struct {
	size    int
	overlap int
}

// NewChunker 创建切分器，参数非法时返回配置错误
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, apperrors.NewInvalidConfiguration(
			fmt.Sprintf("chunk size must be positive, got %d", size))
	}
	if overlap < 0 {
		return nil, apperrors.NewInvalidConfiguration(
			fmt.Sprintf("chunk overlap must be non-negative, got %d", overlap))
	}
	if overlap >= size {
		return nil, apperrors.NewInvalidConfiguration(
			fmt.Sprintf("chunk overlap %d must be smaller than size %d", overlap, size))
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size 返回窗口大小
func (c *Chunker) Size() int {
	return c.size
}

// Overlap 返回窗口重叠
func (c *Chunker) Overlap() int {
	return c.overlap
}

// Split 切分文本为带偏移量的切片
// 窗口按 size-overlap 步进，末尾不足一个窗口时保留余量，空文本返回空切片。
// 文本内容不做任何规整，保证按偏移量可精确还原原文。
func (c *Chunker) Split(documentID, text string) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := c.size - c.overlap
	chunks := make([]Chunk, 0, (len(runes)+step-1)/step)

	for start, index := 0, 0; start < len(runes); start, index = start+step, index+1 {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			DocumentID: documentID,
			Index:      index,
			Text:       string(runes[start:end]),
			Start:      start,
			End:        end,
		})
		if end == len(runes) {
			break
		}
	}
	return chunks
}
