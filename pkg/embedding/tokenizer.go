package embedding

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// BERT 系模型的保留 token。
const (
	tokenUnknown = "[UNK]"
	tokenCLS     = "[CLS]"
	tokenSEP     = "[SEP]"
)

// wordPieceTokenizer 实现 BERT 词表的 WordPiece 切分，
// 供本地句向量模型使用。
type wordPieceTokenizer struct {
	vocab map[string]int64
}

// newWordPieceTokenizer 从 vocab.txt 加载词表，每行一个 token，行号即 id。
func newWordPieceTokenizer(vocabPath string) (*wordPieceTokenizer, error) {
	f, err := os.Open(vocabPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	vocab := make(map[string]int64)
	scanner := bufio.NewScanner(f)
	var id int64
	for scanner.Scan() {
		vocab[strings.TrimSpace(scanner.Text())] = id
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	for _, required := range []string{tokenUnknown, tokenCLS, tokenSEP} {
		if _, ok := vocab[required]; !ok {
			return nil, fmt.Errorf("词表缺少保留 token %s", required)
		}
	}
	return &wordPieceTokenizer{vocab: vocab}, nil
}

// Encode 将文本切分为 token id 序列，包含 [CLS]/[SEP]，总长不超过 maxLen。
func (t *wordPieceTokenizer) Encode(text string, maxLen int) []int64 {
	ids := []int64{t.vocab[tokenCLS]}

	for _, word := range basicTokenize(text) {
		for _, piece := range t.wordPiece(word) {
			if len(ids) >= maxLen-1 {
				break
			}
			ids = append(ids, piece)
		}
	}

	return append(ids, t.vocab[tokenSEP])
}

// wordPiece 对单个词做贪心最长匹配切分，匹配不到任何子词时整词归为 [UNK]。
func (t *wordPieceTokenizer) wordPiece(word string) []int64 {
	runes := []rune(word)
	var pieces []int64
	start := 0
	for start < len(runes) {
		end := len(runes)
		var match int64 = -1
		for end > start {
			candidate := string(runes[start:end])
			if start > 0 {
				candidate = "##" + candidate
			}
			if id, ok := t.vocab[candidate]; ok {
				match = id
				break
			}
			end--
		}
		if match < 0 {
			return []int64{t.vocab[tokenUnknown]}
		}
		pieces = append(pieces, match)
		start = end
	}
	return pieces
}

// basicTokenize 做小写化，按空白切词并把标点与中日韩字符拆成独立 token。
func basicTokenize(text string) []string {
	var words []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.Is(unicode.Han, r):
			flush()
			words = append(words, string(r))
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return words
}
