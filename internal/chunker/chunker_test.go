package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_ShortText(t *testing.T) {
	chunks := Split("hello world", 1000, 200)
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0])
}

func TestSplit_EmptyText(t *testing.T) {
	assert.Empty(t, Split("", 1000, 200))
	assert.Empty(t, Split("   \n\t ", 1000, 200))
}

func TestSplit_OverlapWindow(t *testing.T) {
	// 1200 个字符的句子流，首块在句界对齐后收缩，次块从 end-overlap 处起
	var b strings.Builder
	for b.Len() < 1200 {
		b.WriteString("abcdefgh. ")
	}
	text := b.String()[:1200]

	chunks := Split(text, 1000, 200)
	require.Len(t, chunks, 2)

	// 首块末尾落在句号上
	assert.True(t, strings.HasSuffix(chunks[0], "."), "首块应在句界结束: %q", chunks[0])

	// 次块起点与首块末尾重叠约 overlap 个字符
	firstEnd := len(chunks[0])
	secondStart := firstEnd - 200
	assert.Equal(t, strings.TrimSpace(text[secondStart:]), chunks[1])
}

func TestSplit_SentenceSnapOnlyPastThreshold(t *testing.T) {
	// 句号位于窗口前 80% 以内时不做句界对齐
	text := strings.Repeat("a", 100) + "." + strings.Repeat("b", 900) + strings.Repeat("c", 200)
	chunks := Split(text, 1000, 200)
	require.NotEmpty(t, chunks)
	assert.Len(t, []rune(chunks[0]), 1000)
}

func TestSplit_SentenceSnap(t *testing.T) {
	// 句号位于窗口后 80% 之后时收缩到句号之后
	text := strings.Repeat("a", 900) + "." + strings.Repeat("b", 300)
	chunks := Split(text, 1000, 200)
	require.NotEmpty(t, chunks)
	assert.Equal(t, strings.Repeat("a", 900)+".", chunks[0])
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 100)
	first := Split(text, 1000, 200)
	second := Split(text, 1000, 200)
	assert.Equal(t, first, second)
}

func TestSplit_TerminatesWhenOverlapExceedsSize(t *testing.T) {
	text := strings.Repeat("x", 500)
	done := make(chan []string, 1)
	go func() { done <- Split(text, 100, 100) }()

	chunks := <-done
	assert.NotEmpty(t, chunks)
}

func TestSplit_CoversWholeText(t *testing.T) {
	text := strings.Repeat("segment without any period separator ", 60)
	chunks := Split(text, 1000, 200)
	require.NotEmpty(t, chunks)

	// 末块必须覆盖到文本结尾
	last := chunks[len(chunks)-1]
	assert.True(t, strings.HasSuffix(strings.TrimSpace(text), last))
	for _, c := range chunks {
		assert.NotEmpty(t, c)
	}
}

func TestSplit_Unicode(t *testing.T) {
	text := strings.Repeat("数据库系统概念。", 300)
	chunks := Split(text, 1000, 200)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 1000)
	}
}
