package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"course-smart-go/pkg/log"

	"github.com/xuri/excelize/v2"
)

// extractXlsx 提取表格文件：每个工作表前加 "--- Sheet: <name> ---" 标记，
// 行内单元格以制表符分隔，缺失单元格渲染为空串。
func extractXlsx(data []byte, filename string) string {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		log.Warnf("[Extractor] 打开 XLSX 失败: %s, err=%v", filename, err)
		return ""
	}
	defer f.Close()

	var lines []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			log.Warnf("[Extractor] 读取工作表 '%s' 失败: %s, err=%v", sheet, filename, err)
			continue
		}

		lines = append(lines, fmt.Sprintf("\n--- Sheet: %s ---\n", sheet))
		for _, row := range rows {
			lines = append(lines, strings.Join(row, "\t"))
		}
	}

	return strings.Join(lines, "\n")
}
