// Package chunker 将提取出的长文本切分为带重叠的定长分块。
package chunker

import "strings"

// 默认的分块大小与重叠（按字符计）。
const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// Split 是确定性的纯函数：以 size 个字符为窗口切分 text，相邻窗口重叠 overlap 个字符。
// 若窗口末尾之前存在句号且其位置超过窗口的 80%，则把窗口收缩到该句号之后（句界对齐），
// 此时重叠从收缩后的末尾起算。每个分块去除首尾空白，空分块被丢弃。
// 当 end-overlap 不能推进窗口时强制前进一个字符，保证 overlap >= size 时依然终止。
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = 0
	}

	runes := []rune(text)
	n := len(runes)
	var chunks []string

	start := 0
	for start < n {
		end := start + size
		if end < n {
			// 从窗口末尾向前找最后一个句号
			lastPeriod := -1
			for i := end - 1; i >= start; i-- {
				if runes[i] == '.' {
					lastPeriod = i
					break
				}
			}
			if lastPeriod >= 0 && float64(lastPeriod-start) > float64(size)*0.8 {
				end = lastPeriod + 1
			}
		}

		sliceEnd := end
		if sliceEnd > n {
			sliceEnd = n
		}
		chunk := strings.TrimSpace(string(runes[start:sliceEnd]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}
