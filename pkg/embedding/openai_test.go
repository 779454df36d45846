package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"course-smart-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbeddingServer 模拟 OpenAI 兼容 Embedding API，
// 对每条输入按首字符生成可区分的定长向量。
func fakeEmbeddingServer(t *testing.T, dims int, batchSizes *[]int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if batchSizes != nil {
			*batchSizes = append(*batchSizes, len(req.Input))
		}

		var resp embeddingResponse
		for _, text := range req.Input {
			vec := make([]float32, dims)
			if len(text) > 0 {
				vec[0] = float32(text[0])
			}
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
			}{Embedding: vec})
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestConfig(baseURL string, dims int) config.EmbeddingConfig {
	return config.EmbeddingConfig{
		Provider:   "openai",
		APIKey:     "test-key",
		BaseURL:    baseURL,
		Model:      "text-embedding-3-small",
		Dimensions: dims,
	}
}

func TestOpenAIEmbed_PreservesOrderAcrossBatches(t *testing.T) {
	var batchSizes []int
	srv := fakeEmbeddingServer(t, 8, &batchSizes)
	defer srv.Close()

	p := newOpenAIProvider(newTestConfig(srv.URL, 8))

	// 超过单批上限，必须拆成 100 + 50 两批且顺序不变
	texts := make([]string, 150)
	for i := range texts {
		texts[i] = fmt.Sprintf("%c-text", 'A'+i%26)
	}

	vectors, err := p.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, 150)
	assert.Equal(t, []int{100, 50}, batchSizes)

	for i, vec := range vectors {
		assert.Equal(t, float32(texts[i][0]), vec[0], "向量 %d 的顺序错位", i)
	}
}

func TestOpenAIEmbed_Empty(t *testing.T) {
	p := newOpenAIProvider(newTestConfig("http://127.0.0.1:0", 8))
	vectors, err := p.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestOpenAIEmbed_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 永远只返回一条向量
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{"embedding": []float32{1, 2, 3}}},
		})
	}))
	defer srv.Close()

	p := newOpenAIProvider(newTestConfig(srv.URL, 3))
	_, err := p.Embed(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestOpenAIEmbed_DimensionMismatch(t *testing.T) {
	// 服务端返回 1536 维，配置要求 384 维，整次调用必须失败
	srv := fakeEmbeddingServer(t, 1536, nil)
	defer srv.Close()

	p := newOpenAIProvider(newTestConfig(srv.URL, 384))
	_, err := p.Embed(context.Background(), []string{"dimension check"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "384")
}

func TestOpenAIEmbed_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := newOpenAIProvider(newTestConfig(srv.URL, 8))
	_, err := p.Embed(context.Background(), []string{"a"})
	assert.Error(t, err)
}

func TestNewProvider_UnknownProvider(t *testing.T) {
	_, err := NewProvider(config.EmbeddingConfig{Provider: "bogus"})
	assert.Error(t, err)
}

func TestValidateVectors(t *testing.T) {
	ok := [][]float32{{1, 2}, {3, 4}}
	assert.NoError(t, validateVectors(ok, 2, 2))
	assert.Error(t, validateVectors(ok, 3, 2), "条数不符")
	assert.Error(t, validateVectors(ok, 2, 4), "维度不符")
}
