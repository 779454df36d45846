package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"course-smart-go/internal/config"
	"course-smart-go/pkg/log"
)

// 单次 API 调用最多携带的文本条数。
const openAIBatchSize = 100

type openAIProvider struct {
	cfg    config.EmbeddingConfig
	client *http.Client
}

// newOpenAIProvider 创建 OpenAI 兼容 API 的向量化后端。
func newOpenAIProvider(cfg config.EmbeddingConfig) *openAIProvider {
	return &openAIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *openAIProvider) Dimensions() int {
	return p.cfg.Dimensions
}

func (p *openAIProvider) Model() string {
	return p.cfg.Model
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed 按每批最多 100 条调用 Embedding API，跨批保持输入顺序。
// 任何一批返回条数不符或含空向量时，整次调用失败。
func (p *openAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += openAIBatchSize {
		end := start + openAIBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := p.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("第 %d 批向量化失败: %w", start/openAIBatchSize+1, err)
		}
		vectors = append(vectors, batch...)
	}

	if err := validateVectors(vectors, len(texts), p.cfg.Dimensions); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (p *openAIProvider) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := embeddingRequest{
		Model:      p.cfg.Model,
		Input:      texts,
		Dimensions: p.cfg.Dimensions,
	}
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/embeddings", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		log.Errorf("[EmbeddingProvider] 调用 Embedding API 失败, error: %v", err)
		return nil, fmt.Errorf("failed to call embedding api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Errorf("[EmbeddingProvider] Embedding API 返回非 200 状态码: %s", resp.Status)
		return nil, fmt.Errorf("embedding api returned non-200 status: %s", resp.Status)
	}

	var embeddingResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		log.Errorf("[EmbeddingProvider] 解析 Embedding API 响应失败, error: %v", err)
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}

	if len(embeddingResp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding api 返回 %d 条向量, 输入为 %d 条", len(embeddingResp.Data), len(texts))
	}

	vectors := make([][]float32, len(embeddingResp.Data))
	for i, item := range embeddingResp.Data {
		if len(item.Embedding) == 0 {
			return nil, fmt.Errorf("embedding api 返回了空向量 (第 %d 条)", i)
		}
		vectors[i] = item.Embedding
	}
	return vectors, nil
}
