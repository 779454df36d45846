package model

// ChunkDocument 定义了存储在 Elasticsearch 中的向量条目结构。
// VectorID 形如 "{documentID}_{chunkIndex}"，作为 ES 文档 _id 保证幂等写入。
// 负载中必须携带 course_id（租户过滤）与 document_id（级联删除）。
type ChunkDocument struct {
	VectorID     string    `json:"vector_id"`
	CourseID     string    `json:"course_id"`
	DocumentID   string    `json:"document_id"`
	ChunkIndex   int       `json:"chunk_index"`
	Content      string    `json:"content"`
	Filename     string    `json:"filename"`
	Section      string    `json:"section,omitempty"`
	ChunkType    string    `json:"chunk_type"`
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
}

// RetrievedChunk 是一次相似度检索返回的单个命中结果，仅在请求期间存在。
type RetrievedChunk struct {
	VectorID   string  `json:"vectorId"`
	DocumentID string  `json:"documentId"`
	ChunkIndex int     `json:"chunkIndex"`
	Content    string  `json:"content"`
	Filename   string  `json:"filename"`
	Section    string  `json:"section,omitempty"`
	ChunkType  string  `json:"chunkType"`
	Score      float64 `json:"score"`
}

// QueryResult 是检索问答引擎返回给调用方的结构。
// 无论内部发生什么错误，调用方拿到的始终是一个完整的 QueryResult。
type QueryResult struct {
	Response   string   `json:"response"`
	Sources    []string `json:"sources"`
	Confidence float64  `json:"confidence"`
	ChunksUsed int      `json:"chunks_used"`
}
