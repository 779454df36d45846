package extractor

import (
	"bytes"
	"context"
	"strings"

	"course-smart-go/pkg/log"

	"github.com/ledongthuc/pdf"
)

// 文本层短于该字符数时认为是扫描件，转入 OCR 兜底。
const pdfOcrThreshold = 100

// extractPdf 先逐页提取 PDF 内嵌文本层；结果过短时退回 Tika OCR。
func (e *Extractor) extractPdf(ctx context.Context, data []byte, filename string) string {
	text := pdfTextLayer(data, filename)

	if len(strings.TrimSpace(text)) < pdfOcrThreshold {
		log.Infof("[Extractor] PDF 文本层过短(%d 字符)，转入 OCR: %s", len(strings.TrimSpace(text)), filename)
		ocrText, err := e.tikaClient.OCRPdf(ctx, bytes.NewReader(data), filename)
		if err != nil {
			log.Warnf("[Extractor] PDF OCR 失败: %s, err=%v", filename, err)
			return text
		}
		return ocrText
	}

	return text
}

// pdfTextLayer 逐页提取内嵌文本，页与页之间以空行分隔。
// 解析库对损坏文件会 panic，这里统一收敛为空结果。
func pdfTextLayer(data []byte, filename string) (text string) {
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("[Extractor] PDF 文本层解析异常: %s, panic=%v", filename, r)
			text = ""
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		log.Warnf("[Extractor] 打开 PDF 失败: %s, err=%v", filename, err)
		return ""
	}

	var sb strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			log.Warnf("[Extractor] PDF 第 %d 页提取失败: %s, err=%v", pageNum, filename, err)
			continue
		}
		if pageText != "" {
			sb.WriteString(pageText)
			sb.WriteString("\n\n")
		}
	}
	return sb.String()
}
