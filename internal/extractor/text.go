package extractor

import (
	"unicode/utf8"

	"course-smart-go/pkg/log"

	"golang.org/x/text/encoding/charmap"
)

// extractText 按 UTF-8 读取纯文本；非法 UTF-8 时退回 Latin-1 解码，
// 再失败则返回空串并记录日志。
func extractText(data []byte, filename string) string {
	if utf8.Valid(data) {
		return string(data)
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		log.Warnf("[Extractor] 文本文件解码失败: %s, err=%v", filename, err)
		return ""
	}
	return string(decoded)
}
