package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// 完整的学习计划表样例：年级、学期、课程代码、学分齐全
const fullTableText = `ปีที่ 1 ภาคการศึกษาที่ 1
05506001 คณิตศาสตร์วิศวกรรม 1 3 หน่วยกิต
05506002 ฟิสิกส์ทั่วไป 3 หน่วยกิต
05506003 การเขียนโปรแกรมคอมพิวเตอร์ 3 หน่วยกิต
05506004 ภาษาอังกฤษพื้นฐาน 3 หน่วยกิต
รวม 12 หน่วยกิต`

// 只有课程行的样例：年级/学期标题落在前一个文本块里
const headlessTableText = `05506231 โครงสร้างข้อมูลและอัลกอริทึม 3 หน่วยกิต
05506232 ระบบฐานข้อมูล 3 หน่วยกิต
05506233 วิศวกรรมซอฟต์แวร์ 3 หน่วยกิต`

// TestClassifyCurriculumTable 测试学习计划表分类
func TestClassifyCurriculumTable(t *testing.T) {
	classifier := NewClassifier(DefaultClassifierConfig())

	t.Run("all four signals", func(t *testing.T) {
		result := classifier.Classify(fullTableText, 0)

		assert.Equal(t, ContentCurriculumTable, result.Kind)
		assert.Equal(t, 4, result.Score, "年级、学期、课程代码、学分应各计1分")
		assert.GreaterOrEqual(t, result.CourseCodes, 3)
		assert.ElementsMatch(t,
			[]string{SignalYear, SignalSemester, SignalCourseCodes, SignalCredits},
			result.Signals)
	})

	t.Run("course code override without headers", func(t *testing.T) {
		// 回归测试：只有课程代码和学分、没有年级/学期标记的块
		// 必须依靠课程代码数量兜底判定为表格
		result := classifier.Classify(headlessTableText, 0)

		assert.Equal(t, ContentCurriculumTable, result.Kind)
		assert.Equal(t, 2, result.Score)
		assert.Equal(t, 3, result.CourseCodes)
	})

	t.Run("year and semester on separate lines", func(t *testing.T) {
		// PDF提取会把标题断成多行，两个标记必须独立检测
		text := "ปีที่ 2\nแผนการศึกษา\nภาคการศึกษาที่ 1\n" + headlessTableText
		result := classifier.Classify(text, 0)

		assert.Equal(t, ContentCurriculumTable, result.Kind)
		assert.Equal(t, 4, result.Score)
		assert.Contains(t, result.Signals, SignalYear)
		assert.Contains(t, result.Signals, SignalSemester)
	})

	t.Run("irregular whitespace in markers", func(t *testing.T) {
		text := "ปี ที่  1\nภาค การศึกษา ที่ 2\n" + headlessTableText
		result := classifier.Classify(text, 0)

		assert.Equal(t, ContentCurriculumTable, result.Kind)
		assert.Contains(t, result.Signals, SignalYear)
		assert.Contains(t, result.Signals, SignalSemester)
	})

	t.Run("alternate marker spellings", func(t *testing.T) {
		text := "ชั้นปี 3 เทอม 2\n" + headlessTableText
		result := classifier.Classify(text, 0)

		assert.Equal(t, ContentCurriculumTable, result.Kind)
		assert.Contains(t, result.Signals, SignalYear)
		assert.Contains(t, result.Signals, SignalSemester)
	})

	t.Run("two codes are not enough", func(t *testing.T) {
		text := `05506231 โครงสร้างข้อมูล 3 หน่วยกิต
05506232 ระบบฐานข้อมูล 3 หน่วยกิต`
		result := classifier.Classify(text, 0)

		assert.NotEqual(t, ContentCurriculumTable, result.Kind,
			"课程代码不足时不应触发兜底规则")
		assert.Equal(t, 2, result.CourseCodes)
	})
}

// TestClassifyGeneral 测试一般内容分类
func TestClassifyGeneral(t *testing.T) {
	classifier := NewClassifier(DefaultClassifierConfig())

	t.Run("no signals at all", func(t *testing.T) {
		text := "มหาวิทยาลัยก่อตั้งขึ้นเมื่อปี พ.ศ. 2503 ตั้งอยู่ในกรุงเทพมหานคร มีพันธกิจด้านการเรียนการสอนและการวิจัย"
		result := classifier.Classify(text, 0)

		assert.Equal(t, ContentGeneral, result.Kind)
		assert.Equal(t, 0, result.Score)
		assert.Empty(t, result.Signals)
	})

	t.Run("empty input", func(t *testing.T) {
		result := classifier.Classify("", 0)
		assert.Equal(t, ContentGeneral, result.Kind)
	})

	t.Run("english prose", func(t *testing.T) {
		result := classifier.Classify("This handbook describes the engineering program in general terms.", 0)
		assert.Equal(t, ContentGeneral, result.Kind)
	})
}

// TestClassifyCourseDescription 测试课程描述分类
func TestClassifyCourseDescription(t *testing.T) {
	classifier := NewClassifier(DefaultClassifierConfig())

	t.Run("code with english name", func(t *testing.T) {
		text := `05506232 ระบบฐานข้อมูล (Database Systems)
ศึกษาแบบจำลองข้อมูล การออกแบบฐานข้อมูลเชิงสัมพันธ์ ภาษา SQL`
		result := classifier.Classify(text, 0)

		assert.Equal(t, ContentCourseDescription, result.Kind)
	})

	t.Run("code with objective keyword", func(t *testing.T) {
		text := `05506233 วิศวกรรมซอฟต์แวร์
วัตถุประสงค์ เพื่อให้นักศึกษาเข้าใจกระบวนการพัฒนาซอฟต์แวร์`
		result := classifier.Classify(text, 0)

		assert.Equal(t, ContentCourseDescription, result.Kind)
	})

	t.Run("code without supporting evidence", func(t *testing.T) {
		result := classifier.Classify("05506232 ระบบฐานข้อมูล", 0)
		assert.Equal(t, ContentGeneral, result.Kind)
	})
}

// TestClassifyAppendix 测试附录分类
func TestClassifyAppendix(t *testing.T) {
	classifier := NewClassifier(DefaultClassifierConfig())

	t.Run("appendix keyword", func(t *testing.T) {
		result := classifier.Classify("ภาคผนวก ก แผนที่หลักสูตร", 0)
		assert.Equal(t, ContentAppendix, result.Kind)
	})

	t.Run("late page without keyword", func(t *testing.T) {
		result := classifier.Classify("รายละเอียดเพิ่มเติมสำหรับนักศึกษา", 60)
		assert.Equal(t, ContentAppendix, result.Kind)
	})

	t.Run("course codes veto appendix", func(t *testing.T) {
		// 表格可能含有附录关键词，课程代码多时必须判为表格
		text := "ภาคผนวก\n" + fullTableText
		result := classifier.Classify(text, 50)
		assert.Equal(t, ContentCurriculumTable, result.Kind)
	})

	t.Run("page threshold disabled", func(t *testing.T) {
		classifier := NewClassifier(ClassifierConfig{MinCourseCodes: 3})
		result := classifier.Classify("รายละเอียดเพิ่มเติมสำหรับนักศึกษา", 60)
		assert.Equal(t, ContentGeneral, result.Kind)
	})
}

// TestClassifyDeterministic 测试分类的确定性
func TestClassifyDeterministic(t *testing.T) {
	classifier := NewClassifier(DefaultClassifierConfig())

	first := classifier.Classify(fullTableText, 3)
	second := classifier.Classify(fullTableText, 3)

	assert.Equal(t, first, second, "相同输入必须产生相同分类结果")
}
