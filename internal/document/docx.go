package document

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fumiama/go-docx"
)

// DocxParser Word文档解析器
type DocxParser struct{}

// NewDocxParser 创建新的Word文档解析器
func NewDocxParser() Parser {
	return &DocxParser{}
}

// Parse 解析docx文件并提取文本内容
func (p *DocxParser) Parse(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open docx file: %v", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat docx file: %v", err)
	}

	return p.parse(file, info.Size())
}

// ParseReader 从Reader解析docx内容
// go-docx需要ReadSeeker和文件大小，先落盘到临时文件
func (p *DocxParser) ParseReader(r io.Reader, filename string) (string, error) {
	tmpFile, err := os.CreateTemp("", "docx_upload_*.docx")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())
	defer tmpFile.Close()

	size, err := io.Copy(tmpFile, r)
	if err != nil {
		return "", fmt.Errorf("failed to buffer docx content: %v", err)
	}
	if _, err := tmpFile.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to seek temp file: %v", err)
	}

	return p.parse(tmpFile, size)
}

// parse 逐段提取文本，段落之间用换行分隔
func (p *DocxParser) parse(r io.ReaderAt, size int64) (string, error) {
	doc, err := docx.Parse(r, size)
	if err != nil {
		return "", fmt.Errorf("failed to parse docx: %v", err)
	}

	var text strings.Builder
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		line := paragraphText(para)
		if line == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n")
		}
		text.WriteString(line)
	}

	result := strings.TrimSpace(text.String())
	if result == "" {
		return "", fmt.Errorf("no text content found in docx")
	}
	return result, nil
}

// paragraphText 拼接段落里所有run的文本
func paragraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
