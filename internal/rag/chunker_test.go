package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/docuhub/backend-go/internal/errors"
)

// TestNewChunkerValidation 测试切分参数校验
func TestNewChunkerValidation(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		wantErr bool
	}{
		{"valid", 20, 5, false},
		{"zero overlap", 20, 0, false},
		{"zero size", 0, 0, true},
		{"negative size", -1, 0, true},
		{"negative overlap", 20, -1, true},
		{"overlap equals size", 20, 20, true},
		{"overlap exceeds size", 20, 30, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewChunker(tt.size, tt.overlap)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidConfiguration))
				assert.Nil(t, c)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, c)
			}
		})
	}
}

// TestSplitEmpty 测试空文本
func TestSplitEmpty(t *testing.T) {
	c, err := NewChunker(20, 5)
	require.NoError(t, err)
	assert.Empty(t, c.Split("doc-1", ""))
}

// TestSplitShortText 测试不足一个窗口的文本
func TestSplitShortText(t *testing.T) {
	c, err := NewChunker(100, 10)
	require.NoError(t, err)

	chunks := c.Split("doc-1", "hello world")
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 11, chunks[0].End)
	assert.Equal(t, 0, chunks[0].Index)
}

// TestSplitWindowing 测试窗口步进与偏移量
func TestSplitWindowing(t *testing.T) {
	// 32个字符，size=20 overlap=5 -> 步进15，两个切片
	text := "The sky is blue. Grass is green."
	c, err := NewChunker(20, 5)
	require.NoError(t, err)

	chunks := c.Split("doc-1", text)
	require.Len(t, chunks, 2)

	assert.Equal(t, "The sky is blue. Gra", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 20, chunks[0].End)

	assert.Equal(t, 15, chunks[1].Start)
	assert.Equal(t, 32, chunks[1].End)
	assert.Equal(t, 1, chunks[1].Index)

	// 相邻切片重叠部分一致
	r := []rune(text)
	assert.Equal(t, string(r[15:20]), string([]rune(chunks[1].Text)[:5]))
}

// TestSplitReconstruction 测试按偏移量还原原文
func TestSplitReconstruction(t *testing.T) {
	texts := []string{
		strings.Repeat("abcdefghij", 37),
		"短文本，包含中文字符与标点。还有第二句话！以及emoji😀结尾",
		"line one\nline two\n\ttabbed\n" + strings.Repeat("x", 95),
	}
	c, err := NewChunker(30, 7)
	require.NoError(t, err)

	for _, text := range texts {
		runes := []rune(text)
		chunks := c.Split("doc-1", text)
		require.NotEmpty(t, chunks)

		// 每个切片的文本与原文对应区间一致
		for _, ch := range chunks {
			assert.Equal(t, string(runes[ch.Start:ch.End]), ch.Text)
		}

		// 去掉重叠后拼接还原原文
		var b strings.Builder
		prevEnd := 0
		for _, ch := range chunks {
			require.LessOrEqual(t, ch.Start, prevEnd)
			b.WriteString(string(runes[prevEnd:ch.End]))
			prevEnd = ch.End
		}
		assert.Equal(t, text, b.String())
		assert.Equal(t, len(runes), chunks[len(chunks)-1].End)
	}
}

// TestSplitDeterministic 测试同一输入结果稳定
func TestSplitDeterministic(t *testing.T) {
	c, err := NewChunker(20, 5)
	require.NoError(t, err)

	text := strings.Repeat("determinism ", 20)
	first := c.Split("doc-1", text)
	second := c.Split("doc-1", text)
	assert.Equal(t, first, second)
}

// TestSplitUnicodeOffsets 测试多字节字符的rune偏移
func TestSplitUnicodeOffsets(t *testing.T) {
	text := strings.Repeat("中文字符测试", 10) // 60 runes
	c, err := NewChunker(25, 5)
	require.NoError(t, err)

	chunks := c.Split("doc-1", text)
	runes := []rune(text)
	for _, ch := range chunks {
		assert.Equal(t, string(runes[ch.Start:ch.End]), ch.Text)
		assert.Equal(t, ch.End-ch.Start, len([]rune(ch.Text)))
	}
	assert.Equal(t, 60, chunks[len(chunks)-1].End)
}
