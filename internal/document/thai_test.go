package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestCleanThaiText 测试泰语文本清理
func TestCleanThaiText(t *testing.T) {
	t.Run("normalize line endings", func(t *testing.T) {
		text := "บรรทัด1\r\nบรรทัด2\rบรรทัด3"
		assert.Equal(t, "บรรทัด1\nบรรทัด2\nบรรทัด3", CleanThaiText(text))
	})

	t.Run("collapse inline whitespace", func(t *testing.T) {
		text := "ปีที่   1   ภาคการศึกษาที่   2"
		assert.Equal(t, "ปีที่ 1 ภาคการศึกษาที่ 2", CleanThaiText(text))
	})

	t.Run("keep paragraph breaks", func(t *testing.T) {
		// 分类器和分段器依赖换行结构，清理不能合并段落
		text := "ย่อหน้าแรก\n\n\n\n\nย่อหน้าที่สอง"
		assert.Equal(t, "ย่อหน้าแรก\n\nย่อหน้าที่สอง", CleanThaiText(text))
	})

	t.Run("strip control characters", func(t *testing.T) {
		text := "ข้อความ\x00\x07ปกติ"
		assert.Equal(t, "ข้อความปกติ", CleanThaiText(text))
	})

	t.Run("trim surrounding whitespace", func(t *testing.T) {
		assert.Equal(t, "ทดสอบ", CleanThaiText("  \t\n ทดสอบ \n\t "))
	})
}

// TestComputeTextStats 测试文本统计
func TestComputeTextStats(t *testing.T) {
	t.Run("thai rune counting", func(t *testing.T) {
		stats := ComputeTextStats("ไทย ABC 123")

		assert.Equal(t, 11, stats.TotalRunes)
		assert.Equal(t, 3, stats.ThaiRunes)
		assert.Equal(t, 3, stats.Words)
		assert.Equal(t, 1, stats.Lines)
	})

	t.Run("multiline", func(t *testing.T) {
		stats := ComputeTextStats("บรรทัดแรก\nบรรทัดที่สอง")
		assert.Equal(t, 2, stats.Lines)
	})

	t.Run("empty input", func(t *testing.T) {
		stats := ComputeTextStats("")
		assert.Equal(t, 0, stats.TotalRunes)
		assert.Equal(t, 0, stats.Lines)
	})
}
