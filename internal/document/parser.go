package document

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Parser 文档解析器接口
// 负责将不同格式的文档解析为纯文本
type Parser interface {
	// Parse 解析文档，返回文本内容
	Parse(filePath string) (string, error)

	// ParseReader 从Reader解析文档，filename用于确定文档类型
	ParseReader(r io.Reader, filename string) (string, error)
}

// FileType 文档文件类型
type FileType string

const (
	// TypePDF PDF文档
	TypePDF FileType = "pdf"
	// TypeDocx Word文档
	TypeDocx FileType = "docx"
	// TypeMarkdown Markdown文档
	TypeMarkdown FileType = "markdown"
	// TypePlainText 纯文本
	TypePlainText FileType = "plaintext"
	// TypeUnknown 未知类型
	TypeUnknown FileType = "unknown"
)

// ErrUnsupportedFileType 不支持的文档类型错误
type ErrUnsupportedFileType struct {
	Ext string
}

// Error 实现error接口
func (e ErrUnsupportedFileType) Error() string {
	return fmt.Sprintf("unsupported document type: %s", e.Ext)
}

// ParserFactory 根据文件类型创建对应的解析器
func ParserFactory(filePath string) (Parser, error) {
	switch DetectFileType(filePath) {
	case TypePDF:
		return NewPDFParser(), nil
	case TypeDocx:
		return NewDocxParser(), nil
	case TypeMarkdown:
		return NewMarkdownParser(), nil
	case TypePlainText:
		return NewPlainTextParser(), nil
	default:
		return nil, ErrUnsupportedFileType{Ext: filepath.Ext(filePath)}
	}
}

// DetectFileType 根据文件扩展名检测文档类型
// pptx在原始语料里存在，但没有合适的解析库，归入unknown
func DetectFileType(filePath string) FileType {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".pdf":
		return TypePDF
	case ".docx", ".doc":
		return TypeDocx
	case ".md", ".markdown":
		return TypeMarkdown
	case ".txt":
		return TypePlainText
	default:
		return TypeUnknown
	}
}

// Document 解析后的文档结构
type Document struct {
	Content string            // 文档文本内容
	Title   string            // 文档标题（可选）
	Source  string            // 源文件信息
	Meta    map[string]string // 元数据（可选）
}

// Content 表示文档的一个文本块
type Content struct {
	Text  string      // 块文本内容
	Index int         // 块索引
	Kind  ContentKind // 产生该块时使用的内容分类
}

// Splitter 文本分段器接口
// 负责将长文本分割成适合向量化的小段
type Splitter interface {
	// Split 将文本分割成文本块
	Split(text string) ([]Content, error)
}
