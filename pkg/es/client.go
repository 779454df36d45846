// Package es 基于 Elasticsearch dense_vector 实现按课程分区的向量索引。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"course-smart-go/internal/config"
	"course-smart-go/internal/model"
	"course-smart-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Index 封装了向量条目的写入、过滤检索与级联删除。
// 所有检索都强制按 course_id 过滤，不会出现跨课程命中。
type Index struct {
	client    *elasticsearch.Client
	indexName string
}

// NewIndex 创建 Elasticsearch 客户端。
func NewIndex(esCfg config.ElasticsearchConfig) (*Index, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Index{client: client, indexName: esCfg.IndexName}, nil
}

// EnsureIndex 幂等地创建索引：已存在则不动，不存在则以 provider 声明的
// 向量维度与 cosine 相似度建立映射。
func (x *Index) EnsureIndex(dims int) error {
	res, err := x.client.Indices.Exists([]string{x.indexName})
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", x.indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("检查索引 '%s' 是否存在时收到意外的状态码: %d", x.indexName, res.StatusCode)
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"vector_id": { "type": "keyword" },
				"course_id": { "type": "keyword" },
				"document_id": { "type": "keyword" },
				"chunk_index": { "type": "integer" },
				"content": { "type": "text" },
				"filename": { "type": "keyword" },
				"section": { "type": "keyword" },
				"chunk_type": { "type": "keyword" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"model_version": { "type": "keyword" }
			}
		}
	}`, dims)

	res, err = x.client.Indices.Create(
		x.indexName,
		x.client.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", x.indexName, err)
		return err
	}
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", x.indexName, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功, 向量维度: %d", x.indexName, dims)
	return nil
}

// UpsertChunk 写入单个向量条目，以 vector_id 作为 _id 保证幂等。
func (x *Index) UpsertChunk(ctx context.Context, doc model.ChunkDocument) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      x.indexName,
		DocumentID: doc.VectorID,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, x.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引向量条目到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index chunk document")
	}
	return nil
}

// SearchChunks 对查询向量做 kNN 检索，严格按 course_id 过滤，
// 低于 threshold 的命中被排除，结果按得分降序返回。
func (x *Index) SearchChunks(ctx context.Context, queryVector []float32, courseID string, limit int, threshold float64) ([]model.RetrievedChunk, error) {
	esQuery := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   queryVector,
			"k":              limit,
			"num_candidates": limit * 10,
			"filter": map[string]interface{}{
				"term": map[string]interface{}{"course_id": courseID},
			},
		},
		"min_score": threshold,
		"size":      limit,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := x.client.Search(
		x.client.Search.WithContext(ctx),
		x.client.Search.WithIndex(x.indexName),
		x.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("Elasticsearch 检索返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.ChunkDocument `json:"_source"`
				Score  float64             `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	results := make([]model.RetrievedChunk, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		results = append(results, model.RetrievedChunk{
			VectorID:   hit.Source.VectorID,
			DocumentID: hit.Source.DocumentID,
			ChunkIndex: hit.Source.ChunkIndex,
			Content:    hit.Source.Content,
			Filename:   hit.Source.Filename,
			Section:    hit.Source.Section,
			ChunkType:  hit.Source.ChunkType,
			Score:      hit.Score,
		})
	}
	return results, nil
}

// DeleteByDocument 级联删除某文档的全部向量条目，零命中时为安全的空操作。
func (x *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	return x.deleteByTerm(ctx, "document_id", documentID)
}

// DeleteByCourse 级联删除某课程的全部向量条目，零命中时为安全的空操作。
func (x *Index) DeleteByCourse(ctx context.Context, courseID string) error {
	return x.deleteByTerm(ctx, "course_id", courseID)
}

func (x *Index) deleteByTerm(ctx context.Context, field, value string) error {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{field: value},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return fmt.Errorf("failed to encode delete query: %w", err)
	}

	res, err := x.client.DeleteByQuery(
		[]string{x.indexName},
		&buf,
		x.client.DeleteByQuery.WithContext(ctx),
		x.client.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch delete_by_query failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("Elasticsearch 删除返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}
	log.Infof("已删除 %s=%s 的向量条目", field, value)
	return nil
}
