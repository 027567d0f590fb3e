package rag

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/unidoc/unioffice/document"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	apperrors "github.com/docuhub/backend-go/internal/errors"
)

// Extractor 文档文本提取器接口
type Extractor interface {
	Supports(docType DocumentType) bool
	Extract(data []byte) (string, error)
}

// TextExtractor 纯文本提取器
type TextExtractor struct{}

func (e *TextExtractor) Supports(docType DocumentType) bool {
	return docType == DocumentTypeText
}

func (e *TextExtractor) Extract(data []byte) (string, error) {
	// 去除UTF-8 BOM
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if !utf8.Valid(data) {
		return "", apperrors.NewUnsupportedFormat("text file is not valid UTF-8")
	}
	return string(data), nil
}

// PDFExtractor PDF文本层提取器
type PDFExtractor struct{}

func (e *PDFExtractor) Supports(docType DocumentType) bool {
	return docType == DocumentTypePDF
}

func (e *PDFExtractor) Extract(data []byte) (string, error) {
	pdfReader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", apperrors.NewUnsupportedFormat("failed to parse pdf").WithCause(err)
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", apperrors.NewUnsupportedFormat("failed to read pdf pages").WithCause(err)
	}

	var textBuilder strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			continue
		}
		ex, err := extractor.New(page)
		if err != nil {
			continue
		}
		text, err := ex.ExtractText()
		if err != nil {
			continue
		}
		textBuilder.WriteString(text)
		textBuilder.WriteString("\n")
	}
	return textBuilder.String(), nil
}

// WordExtractor Word文档提取器（仅.docx）
type WordExtractor struct{}

func (e *WordExtractor) Supports(docType DocumentType) bool {
	return docType == DocumentTypeWord
}

func (e *WordExtractor) Extract(data []byte) (string, error) {
	doc, err := document.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", apperrors.NewUnsupportedFormat("failed to parse docx").WithCause(err)
	}
	defer doc.Close()

	var textBuilder strings.Builder
	for _, para := range doc.Paragraphs() {
		for _, run := range para.Runs() {
			textBuilder.WriteString(run.Text())
		}
		textBuilder.WriteString("\n")
	}
	return textBuilder.String(), nil
}

// ExtractorManager 按文档类型分发提取器
type ExtractorManager struct {
	extractors []Extractor
}

// NewExtractorManager 创建提取器管理器
func NewExtractorManager() *ExtractorManager {
	return &ExtractorManager{
		extractors: []Extractor{
			&PDFExtractor{},
			&WordExtractor{},
			&TextExtractor{},
		},
	}
}

// Extract 提取文档文本，无可用文本时返回格式错误
func (m *ExtractorManager) Extract(docType DocumentType, data []byte) (string, error) {
	for _, ex := range m.extractors {
		if !ex.Supports(docType) {
			continue
		}
		text, err := ex.Extract(data)
		if err != nil {
			return "", err
		}
		// 扫描版PDF或空文件没有可用文本
		if strings.TrimSpace(text) == "" {
			return "", apperrors.NewUnsupportedFormat("document contains no extractable text")
		}
		return text, nil
	}
	return "", apperrors.NewUnsupportedFormat(fmt.Sprintf("unsupported document type: %s", docType))
}
