package document

import (
	"strings"
	"unicode/utf8"
)

// ChunkingStrategy 分块策略
// 按内容类型配置分块大小、重叠和分隔符优先级
type ChunkingStrategy struct {
	ChunkSize    int      // 分块大小（按rune计数，泰文一个字符占3字节）
	ChunkOverlap int      // 分块重叠大小（rune数）
	Separators   []string // 分隔符，按优先级从高到低排列
}

// DefaultSeparators 通用内容的分隔符优先级
func DefaultSeparators() []string {
	return []string{"\n\n", "\n", ". ", "。", " ", ""}
}

// RecursiveSplitter 递归字符分段器
// 优先在高优先级分隔符处断开，片段过长时降级到下一个分隔符，
// 最后按rune硬切
type RecursiveSplitter struct {
	strategy ChunkingStrategy
}

// NewRecursiveSplitter 创建递归字符分段器
func NewRecursiveSplitter(strategy ChunkingStrategy) *RecursiveSplitter {
	if strategy.ChunkSize <= 0 {
		strategy.ChunkSize = 1000
	}
	if strategy.ChunkOverlap < 0 || strategy.ChunkOverlap >= strategy.ChunkSize {
		strategy.ChunkOverlap = strategy.ChunkSize / 5
	}
	if len(strategy.Separators) == 0 {
		strategy.Separators = DefaultSeparators()
	}
	return &RecursiveSplitter{strategy: strategy}
}

// Split 将文本分割成有序的文本块
// 非空输入至少产生一个块；相同输入总是产生相同输出
func (s *RecursiveSplitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	pieces := s.splitRecursive(text, s.strategy.Separators)
	chunks := s.mergePieces(pieces)

	// 去掉合并后产生的空块
	var result []string
	for _, chunk := range chunks {
		chunk = strings.TrimSpace(chunk)
		if chunk != "" {
			result = append(result, chunk)
		}
	}
	return result
}

// splitRecursive 递归分割文本
// 选择第一个在文本中出现的分隔符分割；分割出的片段仍然超长时，
// 使用剩余的低优先级分隔符继续分割
func (s *RecursiveSplitter) splitRecursive(text string, separators []string) []string {
	if utf8.RuneCountInString(text) <= s.strategy.ChunkSize {
		return []string{text}
	}

	// 选择当前文本适用的分隔符
	separator := ""
	var remaining []string
	found := false
	for i, sep := range separators {
		if sep == "" {
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			remaining = separators[i+1:]
			found = true
			break
		}
	}

	// 没有可用分隔符：按rune硬切
	if !found {
		return s.splitByLength(text)
	}

	var pieces []string
	for _, part := range splitKeepSeparator(text, separator) {
		if utf8.RuneCountInString(part) > s.strategy.ChunkSize {
			pieces = append(pieces, s.splitRecursive(part, remaining)...)
		} else {
			pieces = append(pieces, part)
		}
	}
	return pieces
}

// splitKeepSeparator 按分隔符分割，分隔符保留在后一个片段的开头
// 表格策略的分隔符是章节/学期标题前缀，断点必须落在标题之前，
// 这样标题和它的表格内容落在同一个块里
func splitKeepSeparator(text, separator string) []string {
	parts := strings.Split(text, separator)
	result := make([]string, 0, len(parts))
	for i, part := range parts {
		if i > 0 {
			part = separator + part
		}
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

// mergePieces 将片段贪心合并成不超过ChunkSize的块，并保持配置的重叠
func (s *RecursiveSplitter) mergePieces(pieces []string) []string {
	var chunks []string
	var current []string
	currentLen := 0

	for _, piece := range pieces {
		pieceLen := utf8.RuneCountInString(piece)

		if currentLen+pieceLen > s.strategy.ChunkSize && currentLen > 0 {
			chunks = append(chunks, strings.Join(current, ""))

			// 从当前块尾部回收重叠内容作为下一个块的开头
			for currentLen > s.strategy.ChunkOverlap ||
				(currentLen+pieceLen > s.strategy.ChunkSize && currentLen > 0) {
				currentLen -= utf8.RuneCountInString(current[0])
				current = current[1:]
			}
		}

		current = append(current, piece)
		currentLen += pieceLen
	}

	if currentLen > 0 {
		chunks = append(chunks, strings.Join(current, ""))
	}

	return chunks
}

// splitByLength 按固定rune长度硬切，保留重叠
func (s *RecursiveSplitter) splitByLength(text string) []string {
	runes := []rune(text)
	step := s.strategy.ChunkSize - s.strategy.ChunkOverlap
	if step <= 0 {
		step = s.strategy.ChunkSize
	}

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + s.strategy.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
