package document

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRecursiveSplitterSmallInput 测试不超过块大小的输入
func TestRecursiveSplitterSmallInput(t *testing.T) {
	splitter := NewRecursiveSplitter(ChunkingStrategy{ChunkSize: 100, ChunkOverlap: 20})

	t.Run("single chunk round trip", func(t *testing.T) {
		text := "ประเทศไทยมีชื่อเป็นทางการว่า ราชอาณาจักรไทย"
		chunks := splitter.Split(text)

		require.Len(t, chunks, 1, "不超过块大小的文本应作为单个块返回")
		assert.Equal(t, text, chunks[0], "单个块必须完整保留原文")
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, splitter.Split(""))
		assert.Empty(t, splitter.Split("   \n\t  "))
	})

	t.Run("single character", func(t *testing.T) {
		chunks := splitter.Split("ก")
		require.Len(t, chunks, 1)
		assert.Equal(t, "ก", chunks[0])
	})
}

// TestRecursiveSplitterParagraphs 测试按段落优先分割
func TestRecursiveSplitterParagraphs(t *testing.T) {
	splitter := NewRecursiveSplitter(ChunkingStrategy{
		ChunkSize:    60,
		ChunkOverlap: 10,
		Separators:   DefaultSeparators(),
	})

	text := strings.Join([]string{
		"ย่อหน้าที่หนึ่งของเอกสารทดสอบการแบ่งข้อความ",
		"ย่อหน้าที่สองของเอกสารทดสอบการแบ่งข้อความ",
		"ย่อหน้าที่สามของเอกสารทดสอบการแบ่งข้อความ",
	}, "\n\n")

	chunks := splitter.Split(text)
	require.Greater(t, len(chunks), 1, "超过块大小的文本应被分割")

	for i, chunk := range chunks {
		t.Logf("chunk %d (%d runes): %q", i, utf8.RuneCountInString(chunk), chunk)
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 60,
			"每个块不应超过配置的ChunkSize")
	}

	// 断点应落在段落边界：每个块都以完整的段落开头
	for _, chunk := range chunks {
		assert.True(t, strings.HasPrefix(chunk, "ย่อหน้า"),
			"块应从段落边界开始: %q", chunk)
	}
}

// TestRecursiveSplitterHardCut 测试没有分隔符时的硬切
func TestRecursiveSplitterHardCut(t *testing.T) {
	splitter := NewRecursiveSplitter(ChunkingStrategy{
		ChunkSize:    30,
		ChunkOverlap: 10,
		Separators:   DefaultSeparators(),
	})

	// 没有任何分隔符的长字符串
	text := strings.Repeat("กขคงจฉชซ", 10)
	chunks := splitter.Split(text)

	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 30)
	}

	t.Run("overlap between consecutive chunks", func(t *testing.T) {
		first := []rune(chunks[0])
		second := []rune(chunks[1])
		overlap := string(first[len(first)-10:])
		assert.Equal(t, overlap, string(second[:10]), "相邻块之间应有配置的重叠")
	})
}

// TestRecursiveSplitterRuneCounting 测试泰文按rune计数
func TestRecursiveSplitterRuneCounting(t *testing.T) {
	splitter := NewRecursiveSplitter(ChunkingStrategy{
		ChunkSize:    50,
		ChunkOverlap: 0,
		Separators:   []string{" ", ""},
	})

	// 泰文字符每个占3字节；按字节计数会把50个字符的文本错误地切成多块
	text := strings.Repeat("ก", 50)
	chunks := splitter.Split(text)

	require.Len(t, chunks, 1, "50个泰文字符应按rune计数放进一个50字符的块")
	assert.Equal(t, 50, utf8.RuneCountInString(chunks[0]))
}

// TestRecursiveSplitterDeterminism 测试分割的确定性
func TestRecursiveSplitterDeterminism(t *testing.T) {
	splitter := NewRecursiveSplitter(ChunkingStrategy{ChunkSize: 80, ChunkOverlap: 16})

	text := strings.Repeat("เนื้อหาทดสอบสำหรับการแบ่งข้อความ ", 20)
	first := splitter.Split(text)
	second := splitter.Split(text)

	assert.Equal(t, first, second, "相同输入必须产生相同的分割结果")
}

// TestRecursiveSplitterDefaults 测试配置默认值兜底
func TestRecursiveSplitterDefaults(t *testing.T) {
	splitter := NewRecursiveSplitter(ChunkingStrategy{})

	assert.Equal(t, 1000, splitter.strategy.ChunkSize)
	assert.Equal(t, 200, splitter.strategy.ChunkOverlap)
	assert.NotEmpty(t, splitter.strategy.Separators)

	t.Run("overlap larger than chunk size", func(t *testing.T) {
		s := NewRecursiveSplitter(ChunkingStrategy{ChunkSize: 100, ChunkOverlap: 200})
		assert.Equal(t, 20, s.strategy.ChunkOverlap, "非法重叠值应退回到块大小的1/5")
	})
}
