// Package embedding 提供文本向量化能力，支持本地 ONNX 模型与 OpenAI 兼容 API 两种后端。
package embedding

import (
	"context"
	"fmt"

	"course-smart-go/internal/config"
)

// Provider 定义了向量化后端的接口。Embed 保证按输入顺序逐一返回向量，
// 每个向量的长度等于 Dimensions()，否则整次调用失败。
// Dimensions 在首次 Embed 之前即可用，供向量索引建立与校验维度。
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Model() string
}

// NewProvider 根据配置创建向量化后端。
// 配置声明的维度与后端实际输出不一致属于启动期的致命配置错误。
func NewProvider(cfg config.EmbeddingConfig) (Provider, error) {
	switch cfg.Provider {
	case "local":
		return newLocalProvider(cfg)
	case "openai", "":
		return newOpenAIProvider(cfg), nil
	default:
		return nil, fmt.Errorf("未知的 embedding provider: %s", cfg.Provider)
	}
}

// validateVectors 校验返回的向量条数与每条的维度。
// 条数不匹配、空向量或维度错误都让整次调用失败，绝不静默填充或截断。
func validateVectors(vectors [][]float32, wantCount, wantDims int) error {
	if len(vectors) != wantCount {
		return fmt.Errorf("向量条数不匹配: 期望 %d, 实际 %d", wantCount, len(vectors))
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("第 %d 条向量为空", i)
		}
		if len(v) != wantDims {
			return fmt.Errorf("第 %d 条向量维度不匹配: 期望 %d, 实际 %d", i, wantDims, len(v))
		}
	}
	return nil
}
