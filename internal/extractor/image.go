package extractor

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"course-smart-go/pkg/log"
)

// OCR 结果短于该字符数时，按候选分割模式逐一重试并保留最长结果。
const imageOcrMinChars = 10

// 默认分割模式之外的 tesseract 页面分割模式候选序列。
var ocrPsmCandidates = []int{3, 4, 6, 8, 11, 13}

// extractImage 对图片做 OCR；先用默认分割模式识别，结果过短时按候选
// 分割模式重试并保留最长的非空结果。始终不返回空串：完全识别不出文字时
// 返回带文件名的占位文本，让该文档仍然留在语料跟踪里。
func (e *Extractor) extractImage(ctx context.Context, data []byte, filename string) string {
	text, err := e.tikaClient.OCRImage(ctx, bytes.NewReader(data), filename, -1)
	if err != nil {
		log.Warnf("[Extractor] 图片 OCR 失败: %s, err=%v", filename, err)
		return fmt.Sprintf("[Image file: %s - OCR failed]", filename)
	}
	text = strings.TrimSpace(text)

	if len(text) < imageOcrMinChars {
		for _, psm := range ocrPsmCandidates {
			alt, err := e.tikaClient.OCRImage(ctx, bytes.NewReader(data), filename, psm)
			if err != nil {
				continue
			}
			if alt = strings.TrimSpace(alt); len(alt) > len(text) {
				text = alt
			}
		}
	}

	if text == "" {
		return fmt.Sprintf("[Image file: %s]", filename)
	}
	return text
}
