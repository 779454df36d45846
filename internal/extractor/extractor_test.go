package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"course-smart-go/pkg/tika"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestDetectFormat(t *testing.T) {
	cases := map[string]Format{
		"lecture.pdf":   FormatPdf,
		"notes.DOCX":    FormatDocx,
		"slides.pptx":   FormatPptx,
		"grades.xlsx":   FormatXlsx,
		"readme.txt":    FormatText,
		"diagram.png":   FormatImage,
		"photo.JPG":     FormatImage,
		"scan.jpeg":     FormatImage,
		"archive.zip":   FormatUnknown,
		"no_extension":  FormatUnknown,
		"weird.pdf.exe": FormatUnknown,
	}
	for name, want := range cases {
		assert.Equal(t, want, DetectFormat(name), "filename: %s", name)
	}
}

// writeZip 在内存中构造一个 zip 包。
func writeZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestExtractDocx(t *testing.T) {
	documentXML := `<?xml version="1.0"?>
<document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <body>
    <p><r><t>第一段内容</t></r></p>
    <p><r><t></t></r></p>
    <p><r><t>Second </t></r><r><t>paragraph</t></r></p>
    <tbl>
      <tr>
        <tc><p><r><t>学号</t></r></p></tc>
        <tc><p><r><t>成绩</t></r></p></tc>
      </tr>
      <tr>
        <tc><p><r><t>001</t></r></p></tc>
        <tc><p><r><t>95</t></r></p></tc>
      </tr>
    </tbl>
  </body>
</document>`
	data := writeZip(t, map[string]string{"word/document.xml": documentXML})

	text := extractDocx(data, "notes.docx")
	assert.Contains(t, text, "第一段内容")
	assert.Contains(t, text, "Second paragraph")
	assert.Contains(t, text, "学号\t成绩")
	assert.Contains(t, text, "001\t95")
}

func TestExtractDocx_Corrupt(t *testing.T) {
	assert.Empty(t, extractDocx([]byte("not a zip"), "broken.docx"))
}

func TestExtractPptx_SlideOrder(t *testing.T) {
	slide := func(text string) string {
		return `<?xml version="1.0"?><sld><p><r><t>` + text + `</t></r></p></sld>`
	}
	// 条目乱序且包含两位数编号，输出必须按数字序排列
	data := writeZip(t, map[string]string{
		"ppt/slides/slide10.xml":         slide("tenth"),
		"ppt/slides/slide2.xml":          slide("second"),
		"ppt/slides/slide1.xml":          slide("first"),
		"ppt/slides/_rels/slide1.rels":   "ignored",
		"ppt/notesSlides/notesSlide1.xml": slide("speaker notes"),
	})

	text := extractPptx(data, "slides.pptx")
	posFirst := bytes.Index([]byte(text), []byte("first"))
	posSecond := bytes.Index([]byte(text), []byte("second"))
	posTenth := bytes.Index([]byte(text), []byte("tenth"))
	require.True(t, posFirst >= 0 && posSecond >= 0 && posTenth >= 0)
	assert.Less(t, posFirst, posSecond)
	assert.Less(t, posSecond, posTenth)

	assert.Contains(t, text, "--- Slide 1 ---")
	assert.Contains(t, text, "--- Slide 3 ---")
	assert.NotContains(t, text, "speaker notes")
}

func TestExtractXlsx(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "科目"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "学分"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "数据库"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 4))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	text := extractXlsx(buf.Bytes(), "grades.xlsx")
	assert.Contains(t, text, "--- Sheet: Sheet1 ---")
	assert.Contains(t, text, "科目\t学分")
	assert.Contains(t, text, "数据库\t4")
}

func TestExtractText_Encodings(t *testing.T) {
	assert.Equal(t, "plain utf-8 文本", extractText([]byte("plain utf-8 文本"), "a.txt"))

	// 0xE9 在 Latin-1 中是 é，不是合法 UTF-8
	latin1 := []byte{'c', 'a', 'f', 0xE9}
	assert.Equal(t, "café", extractText(latin1, "b.txt"))
}

// writeTempFile 把内容写到临时目录并返回路径。
func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestExtract_UnknownExtension(t *testing.T) {
	e := New(tika.NewClient("http://127.0.0.1:0"))
	path := writeTempFile(t, "data.bin", []byte("binary"))

	text, err := e.Extract(context.Background(), path, "data.bin")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestExtract_MissingFile(t *testing.T) {
	e := New(tika.NewClient("http://127.0.0.1:0"))
	_, err := e.Extract(context.Background(), "/nonexistent/file.txt", "file.txt")
	assert.Error(t, err)
}

func TestExtractImage_Placeholder(t *testing.T) {
	// OCR 任何模式下都识别不出文字时返回占位文本
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("   "))
	}))
	defer srv.Close()

	e := New(tika.NewClient(srv.URL))
	text := e.extractImage(context.Background(), []byte("png-bytes"), "diagram.png")
	assert.Equal(t, "[Image file: diagram.png]", text)
}

func TestExtractImage_PsmRetry(t *testing.T) {
	// 默认模式结果过短，带分割模式的重试返回更长文本时取后者
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Tika-OCRTesseractPageSegMode") == "6" {
			w.Write([]byte("recognized blackboard text"))
			return
		}
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	e := New(tika.NewClient(srv.URL))
	text := e.extractImage(context.Background(), []byte("png-bytes"), "board.png")
	assert.Equal(t, "recognized blackboard text", text)
}

func TestExtractImage_OcrUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // 连接将被拒绝

	e := New(tika.NewClient(srv.URL))
	text := e.extractImage(context.Background(), []byte("png-bytes"), "photo.jpg")
	assert.Equal(t, "[Image file: photo.jpg - OCR failed]", text)
}

// buildPdfWithTextLayer 在内存中生成带内嵌文本层的单页 PDF，交叉引用表偏移实时计算。
func buildPdfWithTextLayer(t *testing.T, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	offsets := make([]int, 6)
	write := func(n int, s string) {
		offsets[n] = buf.Len()
		buf.WriteString(s)
	}

	buf.WriteString("%PDF-1.4\n")
	write(1, "1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	write(2, "2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	write(3, "3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>\nendobj\n")
	write(4, "4 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")
	content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	write(5, fmt.Sprintf("5 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(content), content))

	xrefOffset := buf.Len()
	buf.WriteString("xref\n0 6\n0000000000 65535 f \n")
	for i := 1; i <= 5; i++ {
		buf.WriteString(fmt.Sprintf("%010d 00000 n \n", offsets[i]))
	}
	buf.WriteString(fmt.Sprintf("trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xrefOffset))
	return buf.Bytes()
}

func TestExtractPdf_TextLayerSkipsOcr(t *testing.T) {
	// 文本层达到阈值时不得触发任何 OCR 请求
	var ocrCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ocrCalls++
		w.Write([]byte("ocr output"))
	}))
	defer srv.Close()

	layerText := strings.Repeat("Course material text layer sentence here and more filler words ", 3)
	data := buildPdfWithTextLayer(t, layerText)

	e := New(tika.NewClient(srv.URL))
	text := e.extractPdf(context.Background(), data, "lecture.pdf")
	assert.Contains(t, text, "Course material text layer")
	assert.GreaterOrEqual(t, len(strings.TrimSpace(text)), 100)
	assert.Zero(t, ocrCalls)
}

func TestExtractPdf_OcrFallback(t *testing.T) {
	// 无文本层的数据触发 OCR 兜底，且必须携带整册 OCR 策略头
	var gotStrategy string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotStrategy = r.Header.Get("X-Tika-PDFOcrStrategy")
		w.Write([]byte("scanned page content"))
	}))
	defer srv.Close()

	e := New(tika.NewClient(srv.URL))
	text := e.extractPdf(context.Background(), []byte("%PDF-1.4 garbage"), "scan.pdf")
	assert.Equal(t, "scanned page content", text)
	assert.Equal(t, "ocr_only", gotStrategy)
}
