package document

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// 行内连续空白（不含换行）
var inlineSpacePattern = regexp.MustCompile(`[ \t]+`)

// 只含空白的行
var blankLinePattern = regexp.MustCompile(`\n[ \t]*\n[ \t]*\n+`)

// CleanThaiText 清理提取出的泰语文本
// PDF提取的文本常带有重复空格、控制字符和大量空行；
// 只收敛空白，不移动断行位置，分类器和分段器都依赖换行结构
func CleanThaiText(text string) string {
	// 换行符统一为\n
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	// 去掉除换行/制表符外的控制字符
	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, text)

	// 行内空白收敛为单个空格
	text = inlineSpacePattern.ReplaceAllString(text, " ")

	// 三个以上连续换行压缩为两个（保留段落边界）
	text = blankLinePattern.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// TextStats 文本统计信息
type TextStats struct {
	TotalRunes int // 总字符数（rune）
	ThaiRunes  int // 泰文字符数
	Lines      int // 行数
	Words      int // 以空白分隔的词数（泰文不分词，仅供参考）
}

// ComputeTextStats 统计文本信息，用于处理日志和进度上报
func ComputeTextStats(text string) TextStats {
	stats := TextStats{
		Words: len(strings.Fields(text)),
	}

	for _, r := range text {
		stats.TotalRunes++
		if unicode.Is(unicode.Thai, r) {
			stats.ThaiRunes++
		}
	}

	if text != "" {
		stats.Lines = strings.Count(text, "\n") + 1
	}

	return stats
}
