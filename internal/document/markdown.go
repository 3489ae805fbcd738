package document

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// MarkdownParser Markdown文档解析器
type MarkdownParser struct{}

// NewMarkdownParser 创建新的Markdown解析器
func NewMarkdownParser() Parser {
	return &MarkdownParser{}
}

// Parse 解析Markdown文件并提取文本内容
func (p *MarkdownParser) Parse(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open markdown file: %v", err)
	}
	defer file.Close()

	return p.ParseReader(file, filePath)
}

// ParseReader 从Reader解析Markdown内容
// 遍历AST收集文本节点，块级节点之间补空行，
// 保留段落边界供分段器使用
func (p *MarkdownParser) ParseReader(r io.Reader, filename string) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read markdown content: %v", err)
	}

	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	mdParser := parser.NewWithExtensions(extensions)
	doc := mdParser.Parse(content)

	var text strings.Builder
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}

		switch n := node.(type) {
		case *ast.Text:
			text.Write(n.Literal)
		case *ast.Code:
			text.Write(n.Literal)
		case *ast.CodeBlock:
			text.Write(n.Literal)
		case *ast.Softbreak, *ast.Hardbreak:
			text.WriteString("\n")
		case *ast.Paragraph, *ast.Heading, *ast.ListItem, *ast.TableRow, *ast.BlockQuote:
			if text.Len() > 0 {
				text.WriteString("\n\n")
			}
		case *ast.TableCell:
			if text.Len() > 0 {
				text.WriteString(" ")
			}
		}
		return ast.GoToNext
	})

	return normalizeWhitespace(text.String()), nil
}

// normalizeWhitespace 规范化文本中的空白符
func normalizeWhitespace(text string) string {
	// 换行符统一为\n
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	// 连续空行压缩到最多一个
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(text)
}
