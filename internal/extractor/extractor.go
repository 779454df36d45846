// Package extractor 将各种格式的课程文件转换为纯文本。
package extractor

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"course-smart-go/pkg/log"
	"course-smart-go/pkg/tika"
)

// Format 是受支持文件格式的封闭集合，按文件扩展名判定。
type Format int

const (
	FormatUnknown Format = iota
	FormatPdf
	FormatDocx
	FormatPptx
	FormatXlsx
	FormatText
	FormatImage
)

// DetectFormat 根据文件名的扩展名返回对应的格式变体。
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FormatPdf
	case ".docx":
		return FormatDocx
	case ".pptx":
		return FormatPptx
	case ".xlsx":
		return FormatXlsx
	case ".txt":
		return FormatText
	case ".jpg", ".jpeg", ".png":
		return FormatImage
	default:
		return FormatUnknown
	}
}

// Extractor 按格式分派到具体的提取例程，扫描件与图片通过 Tika 做 OCR。
type Extractor struct {
	tikaClient *tika.Client
}

// New 创建一个新的 Extractor 实例。
func New(tikaClient *tika.Client) *Extractor {
	return &Extractor{tikaClient: tikaClient}
}

// Extract 读取 path 指向的文件并提取纯文本。
// 只有读取文件本身的 I/O 错误会返回 error；已知格式解析失败时返回空串并记录日志，
// 由上游把空文本当作提取失败处理。未知扩展名同样返回空串。
func (e *Extractor) Extract(ctx context.Context, path, filename string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	switch DetectFormat(filename) {
	case FormatPdf:
		return e.extractPdf(ctx, data, filename), nil
	case FormatDocx:
		return extractDocx(data, filename), nil
	case FormatPptx:
		return extractPptx(data, filename), nil
	case FormatXlsx:
		return extractXlsx(data, filename), nil
	case FormatText:
		return extractText(data, filename), nil
	case FormatImage:
		return e.extractImage(ctx, data, filename), nil
	default:
		log.Warnf("[Extractor] 不支持的文件类型: %s", filename)
		return "", nil
	}
}
