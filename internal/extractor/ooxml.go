package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"course-smart-go/pkg/log"
)

// docx 与 pptx 本质都是 zip 包里的 OOXML，这里直接用标准库解包解析。

type docxDocument struct {
	Body docxBody `xml:"body"`
}

type docxBody struct {
	Paragraphs []docxParagraph `xml:"p"`
	Tables     []docxTable     `xml:"tbl"`
}

type docxParagraph struct {
	Texts []string `xml:"r>t"`
}

func (p docxParagraph) text() string {
	return strings.Join(p.Texts, "")
}

type docxTable struct {
	Rows []docxRow `xml:"tr"`
}

type docxRow struct {
	Cells []docxCell `xml:"tc"`
}

type docxCell struct {
	Paragraphs []docxParagraph `xml:"p"`
}

// extractDocx 提取 Word 文档：先按文档顺序拼接非空段落，再把表格内容
// 逐行追加在段落之后，单元格之间以制表符分隔。
func extractDocx(data []byte, filename string) string {
	content, err := readZipEntry(data, "word/document.xml")
	if err != nil {
		log.Warnf("[Extractor] 解析 DOCX 失败: %s, err=%v", filename, err)
		return ""
	}

	var doc docxDocument
	if err := xml.Unmarshal(content, &doc); err != nil {
		log.Warnf("[Extractor] 解析 DOCX XML 失败: %s, err=%v", filename, err)
		return ""
	}

	var lines []string
	for _, p := range doc.Body.Paragraphs {
		if t := strings.TrimSpace(p.text()); t != "" {
			lines = append(lines, p.text())
		}
	}

	for _, tbl := range doc.Body.Tables {
		for _, row := range tbl.Rows {
			cells := make([]string, 0, len(row.Cells))
			nonEmpty := false
			for _, cell := range row.Cells {
				parts := make([]string, 0, len(cell.Paragraphs))
				for _, p := range cell.Paragraphs {
					parts = append(parts, p.text())
				}
				cellText := strings.TrimSpace(strings.Join(parts, " "))
				if cellText != "" {
					nonEmpty = true
				}
				cells = append(cells, cellText)
			}
			if nonEmpty {
				lines = append(lines, strings.Join(cells, "\t"))
			}
		}
	}

	return strings.Join(lines, "\n")
}

var slideNameRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// extractPptx 提取演示文稿：幻灯片按序号升序，每页前加 "--- Slide N ---" 标记，
// 页内拼接所有携带文本的形状。
func extractPptx(data []byte, filename string) string {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		log.Warnf("[Extractor] 打开 PPTX 失败: %s, err=%v", filename, err)
		return ""
	}

	type slideFile struct {
		num  int
		file *zip.File
	}
	var slides []slideFile
	for _, f := range reader.File {
		m := slideNameRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		slides = append(slides, slideFile{num: num, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var lines []string
	for i, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			log.Warnf("[Extractor] 打开幻灯片 %d 失败: %s, err=%v", s.num, filename, err)
			continue
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			log.Warnf("[Extractor] 读取幻灯片 %d 失败: %s, err=%v", s.num, filename, err)
			continue
		}

		lines = append(lines, fmt.Sprintf("\n--- Slide %d ---\n", i+1))
		lines = append(lines, slideParagraphs(content)...)
	}

	return strings.Join(lines, "\n")
}

// slideParagraphs 以流式方式扫描幻灯片 XML，按 DrawingML 段落聚合文本 run。
func slideParagraphs(content []byte) []string {
	dec := xml.NewDecoder(bytes.NewReader(content))
	var paragraphs []string
	var current strings.Builder

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				var s string
				if err := dec.DecodeElement(&s, &t); err == nil {
					current.WriteString(s)
				}
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				if text := strings.TrimSpace(current.String()); text != "" {
					paragraphs = append(paragraphs, text)
				}
				current.Reset()
			}
		}
	}
	if text := strings.TrimSpace(current.String()); text != "" {
		paragraphs = append(paragraphs, text)
	}
	return paragraphs
}

// readZipEntry 从 zip 包中读出指定条目的完整内容。
func readZipEntry(data []byte, name string) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	for _, f := range reader.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("zip 包中不存在条目 %s", name)
}
