package document

import (
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// PlainTextParser 纯文本解析器
// 旧的泰语文档常以TIS-620（Windows下叫cp874）编码保存，
// 不是合法UTF-8时按cp874解码兜底
type PlainTextParser struct{}

// NewPlainTextParser 创建一个新的纯文本解析器
func NewPlainTextParser() Parser {
	return &PlainTextParser{}
}

// Parse 解析纯文本文件
func (p *PlainTextParser) Parse(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open text file: %v", err)
	}
	defer file.Close()

	return p.ParseReader(file, filePath)
}

// ParseReader 从Reader解析纯文本内容
func (p *PlainTextParser) ParseReader(r io.Reader, filename string) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read text content: %v", err)
	}

	if utf8.Valid(content) {
		return string(content), nil
	}

	// TIS-620与ISO-8859-11的泰文区布局相同，Windows874是其超集
	decoded, err := charmap.Windows874.NewDecoder().Bytes(content)
	if err != nil {
		return "", fmt.Errorf("failed to decode legacy thai encoding: %v", err)
	}
	return string(decoded), nil
}
