package embedding

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeVocab 生成测试词表文件，行号即 token id。
func writeVocab(t *testing.T, tokens ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(tokens, "\n")+"\n"), 0o644))
	return path
}

func newTestTokenizer(t *testing.T) *wordPieceTokenizer {
	t.Helper()
	// ids: 0=[PAD] 1=[UNK] 2=[CLS] 3=[SEP] 4=play 5=##ing 6=hello 7=世 8=界
	path := writeVocab(t, "[PAD]", "[UNK]", "[CLS]", "[SEP]", "play", "##ing", "hello", "世", "界")
	tok, err := newWordPieceTokenizer(path)
	require.NoError(t, err)
	return tok
}

func TestTokenizer_MissingReservedTokens(t *testing.T) {
	path := writeVocab(t, "[PAD]", "hello")
	_, err := newWordPieceTokenizer(path)
	assert.Error(t, err)
}

func TestTokenizer_Encode(t *testing.T) {
	tok := newTestTokenizer(t)

	// 子词贪心切分: playing → play + ##ing
	ids := tok.Encode("Hello playing", 32)
	assert.Equal(t, []int64{2, 6, 4, 5, 3}, ids)
}

func TestTokenizer_UnknownWord(t *testing.T) {
	tok := newTestTokenizer(t)
	ids := tok.Encode("zzzz", 32)
	assert.Equal(t, []int64{2, 1, 3}, ids)
}

func TestTokenizer_HanCharactersSplit(t *testing.T) {
	tok := newTestTokenizer(t)
	ids := tok.Encode("世界", 32)
	assert.Equal(t, []int64{2, 7, 8, 3}, ids)
}

func TestTokenizer_Truncation(t *testing.T) {
	tok := newTestTokenizer(t)
	ids := tok.Encode("hello hello hello hello hello", 4)
	require.Len(t, ids, 4)
	assert.Equal(t, int64(2), ids[0])
	assert.Equal(t, int64(3), ids[len(ids)-1])
}
