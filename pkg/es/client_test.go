package es

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"course-smart-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeES 启动一个伪 Elasticsearch，记录收到的请求体。
// 响应头必须带 X-Elastic-Product，否则 v8 客户端会拒绝响应。
func newFakeES(t *testing.T, body string, captured *[]byte) *Index {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		*captured = data
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	index, err := NewIndex(config.ElasticsearchConfig{
		Addresses: srv.URL,
		IndexName: "course_chunks_test",
	})
	require.NoError(t, err)
	return index
}

func TestSearchChunks_FiltersByCourse(t *testing.T) {
	response := `{"hits":{"hits":[{"_score":0.91,"_source":{"vector_id":"doc-1_0","course_id":"course-a","document_id":"doc-1","chunk_index":0,"content":"事务的隔离级别决定并发行为","filename":"db.pdf","section":"第三章","chunk_type":"text"}}]}}`
	var captured []byte
	index := newFakeES(t, response, &captured)

	results, err := index.SearchChunks(context.Background(), []float32{0.1, 0.2, 0.3}, "course-a", 5, 0.6)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-1", results[0].DocumentID)
	assert.Equal(t, 0.91, results[0].Score)

	var sent struct {
		Knn struct {
			Field         string    `json:"field"`
			QueryVector   []float32 `json:"query_vector"`
			K             int       `json:"k"`
			NumCandidates int       `json:"num_candidates"`
			Filter        struct {
				Term map[string]string `json:"term"`
			} `json:"filter"`
		} `json:"knn"`
		MinScore float64 `json:"min_score"`
		Size     int     `json:"size"`
	}
	require.NoError(t, json.Unmarshal(captured, &sent))

	assert.Equal(t, "vector", sent.Knn.Field)
	assert.Equal(t, 5, sent.Knn.K)
	assert.Equal(t, 50, sent.Knn.NumCandidates)
	assert.Equal(t, "course-a", sent.Knn.Filter.Term["course_id"])
	assert.Equal(t, 0.6, sent.MinScore)
	assert.Equal(t, 5, sent.Size)
}

func TestDeleteByCourse_UsesTermQuery(t *testing.T) {
	var captured []byte
	index := newFakeES(t, `{"deleted":3}`, &captured)

	err := index.DeleteByCourse(context.Background(), "course-b")
	require.NoError(t, err)

	var sent struct {
		Query struct {
			Term map[string]string `json:"term"`
		} `json:"query"`
	}
	require.NoError(t, json.Unmarshal(captured, &sent))
	assert.Equal(t, "course-b", sent.Query.Term["course_id"])
}
