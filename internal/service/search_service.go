package service

import (
	"context"
	"fmt"

	"course-smart-go/internal/config"
	"course-smart-go/internal/model"
	"course-smart-go/pkg/embedding"
)

// SearchService 提供课程分区内的原始向量检索，不经过生成环节。
type SearchService struct {
	provider embedding.Provider
	searcher VectorSearcher
	cfg      config.RAGConfig
}

// NewSearchService 创建检索服务。
func NewSearchService(provider embedding.Provider, searcher VectorSearcher, cfg config.RAGConfig) *SearchService {
	return &SearchService{provider: provider, searcher: searcher, cfg: cfg}
}

// Search 在指定课程内检索与查询最相关的分块。
// limit <= 0 时使用配置默认值；threshold < 0 时使用配置默认值。
func (s *SearchService) Search(ctx context.Context, courseID, query string, limit int, threshold float64) ([]model.RetrievedChunk, error) {
	if limit <= 0 {
		limit = s.cfg.SearchLimit
	}
	if threshold < 0 {
		threshold = s.cfg.ScoreThreshold
	}

	vectors, err := s.provider.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("查询向量化失败: %w", err)
	}
	return s.searcher.SearchChunks(ctx, vectors[0], courseID, limit, threshold)
}
