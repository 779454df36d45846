package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"course-smart-go/internal/config"
	"course-smart-go/internal/model"
	"course-smart-go/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	dims      int
	panicking bool
}

func (p *fakeProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if p.panicking {
		panic("embedding backend exploded")
	}
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = make([]float32, p.dims)
	}
	return vectors, nil
}

func (p *fakeProvider) Dimensions() int { return p.dims }
func (p *fakeProvider) Model() string   { return "fake-model" }

type fakeSearcher struct {
	chunks []model.RetrievedChunk
	err    error
}

func (s *fakeSearcher) SearchChunks(ctx context.Context, queryVector []float32, courseID string, limit int, threshold float64) ([]model.RetrievedChunk, error) {
	return s.chunks, s.err
}

type fakeLLM struct {
	answer   string
	err      error
	messages []llm.Message
}

func (f *fakeLLM) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	f.messages = messages
	return f.answer, f.err
}

func (f *fakeLLM) StreamChatMessages(ctx context.Context, messages []llm.Message, writer llm.MessageWriter) error {
	f.messages = messages
	if f.err != nil {
		return f.err
	}
	return writer.WriteMessage(1, []byte(f.answer))
}

type fakeConvRepo struct {
	history  []model.ChatMessage
	appended [][2]string
}

func (r *fakeConvRepo) GetHistory(ctx context.Context, courseID, sessionID string) ([]model.ChatMessage, error) {
	return r.history, nil
}

func (r *fakeConvRepo) AppendExchange(ctx context.Context, courseID, sessionID, question, answer string) error {
	r.appended = append(r.appended, [2]string{question, answer})
	return nil
}

func testRAGConfig() config.RAGConfig {
	return config.RAGConfig{
		ChunkSize:      1000,
		ChunkOverlap:   200,
		ChatLimit:      8,
		SearchLimit:    10,
		ScoreThreshold: 0.6,
		Fallback:       config.FallbackConfig{MinOverlap: 2, SignalWordLen: 4},
	}
}

func newTestQueryService(searcher VectorSearcher, llmClient llm.Client, convRepo *fakeConvRepo) *QueryService {
	return NewQueryService(&fakeProvider{dims: 4}, searcher, llmClient, convRepo, testRAGConfig())
}

func TestQuery_NoRelevantChunks(t *testing.T) {
	svc := newTestQueryService(&fakeSearcher{}, &fakeLLM{answer: "unused"}, &fakeConvRepo{})

	result := svc.Query(context.Background(), "course-1", "数据库系统", "", "什么是范式?")
	assert.Equal(t, noInfoResponse, result.Response)
	assert.Empty(t, result.Sources)
	assert.Zero(t, result.Confidence)
	assert.Zero(t, result.ChunksUsed)
}

func TestQuery_AnswersWithSourcesAndConfidence(t *testing.T) {
	searcher := &fakeSearcher{chunks: []model.RetrievedChunk{
		{Filename: "db.pdf", Content: "Normalization reduces redundancy.", Score: 0.8},
		{Filename: "db.pdf", Content: "Third normal form removes transitive dependencies.", Score: 0.9},
		{Filename: "notes.txt", Content: "BCNF is stricter than 3NF.", Score: 0.7},
	}}
	convRepo := &fakeConvRepo{}
	llmClient := &fakeLLM{answer: "Normalization organizes tables to reduce redundancy."}
	svc := newTestQueryService(searcher, llmClient, convRepo)

	result := svc.Query(context.Background(), "course-1", "数据库系统", "sess-1", "What is normalization?")
	assert.Equal(t, "Normalization organizes tables to reduce redundancy.", result.Response)
	assert.Equal(t, []string{"db.pdf", "notes.txt"}, result.Sources)
	assert.InDelta(t, 0.8, result.Confidence, 1e-9)
	assert.Equal(t, 3, result.ChunksUsed)

	// 课程名进入系统提示
	require.NotEmpty(t, llmClient.messages)
	assert.Contains(t, llmClient.messages[0].Content, "数据库系统")

	// 会话历史落盘一问一答
	require.Len(t, convRepo.appended, 1)
	assert.Equal(t, "What is normalization?", convRepo.appended[0][0])
}

func TestQuery_ConfidenceClampedToOne(t *testing.T) {
	searcher := &fakeSearcher{chunks: []model.RetrievedChunk{
		{Filename: "a.pdf", Content: "x.", Score: 1.4},
		{Filename: "a.pdf", Content: "y.", Score: 1.2},
	}}
	svc := newTestQueryService(searcher, &fakeLLM{answer: "ok"}, &fakeConvRepo{})

	result := svc.Query(context.Background(), "course-1", "数据库系统", "", "q")
	assert.Equal(t, 1.0, result.Confidence)
}

func TestQuery_ExtractiveFallbackOnLLMFailure(t *testing.T) {
	searcher := &fakeSearcher{chunks: []model.RetrievedChunk{
		{Filename: "db.pdf", Content: "Normalization reduces redundancy in relational databases. The weather is nice today. Indexes speed up lookups.", Score: 0.9},
	}}
	svc := newTestQueryService(searcher, &fakeLLM{err: errors.New("llm unavailable")}, &fakeConvRepo{})

	result := svc.Query(context.Background(), "course-1", "数据库系统", "", "What is normalization in databases")
	assert.Contains(t, result.Response, "Normalization reduces redundancy in relational databases")
	assert.NotContains(t, result.Response, "weather")
	assert.Contains(t, result.Response, "This information is based on your course materials.")
	assert.Equal(t, []string{"db.pdf"}, result.Sources)
}

func TestQuery_FallbackRequiresWholeWordOverlap(t *testing.T) {
	// 查询词只作为其他单词的子串出现时不计入交集
	searcher := &fakeSearcher{chunks: []model.RetrievedChunk{
		{Filename: "a.pdf", Content: "The concatenation dogma persists here.", Score: 0.9},
	}}
	svc := newTestQueryService(searcher, &fakeLLM{err: errors.New("llm unavailable")}, &fakeConvRepo{})

	result := svc.Query(context.Background(), "course-1", "数据库系统", "", "cat dog")
	assert.Equal(t, needMoreResponse, result.Response)
}

func TestQuery_FallbackKeepsContextOrder(t *testing.T) {
	// 命中句按原文顺序取前 3 句，不按命中数重排
	searcher := &fakeSearcher{chunks: []model.RetrievedChunk{
		{Filename: "a.pdf", Content: "ab cd here. xx yy zz. ab cd ef gh now. cd ef also. ab gh too.", Score: 0.9},
	}}
	svc := newTestQueryService(searcher, &fakeLLM{err: errors.New("llm unavailable")}, &fakeConvRepo{})

	result := svc.Query(context.Background(), "course-1", "数据库系统", "", "ab cd ef gh")

	first := strings.Index(result.Response, "ab cd here")
	second := strings.Index(result.Response, "ab cd ef gh now")
	third := strings.Index(result.Response, "cd ef also")
	require.True(t, first >= 0 && second >= 0 && third >= 0, "response: %q", result.Response)
	assert.Less(t, first, second)
	assert.Less(t, second, third)
	assert.NotContains(t, result.Response, "ab gh too")
	assert.NotContains(t, result.Response, "xx yy zz")
}

func TestQuery_FallbackWithoutRelevantSentences(t *testing.T) {
	searcher := &fakeSearcher{chunks: []model.RetrievedChunk{
		{Filename: "db.pdf", Content: "短句. 另一短句.", Score: 0.9},
	}}
	svc := newTestQueryService(searcher, &fakeLLM{err: errors.New("llm unavailable")}, &fakeConvRepo{})

	result := svc.Query(context.Background(), "course-1", "数据库系统", "", "quantum entanglement")
	assert.Equal(t, needMoreResponse, result.Response)
}

func TestQuery_PanicYieldsApology(t *testing.T) {
	svc := NewQueryService(&fakeProvider{dims: 4, panicking: true}, &fakeSearcher{}, &fakeLLM{}, &fakeConvRepo{}, testRAGConfig())

	result := svc.Query(context.Background(), "course-1", "数据库系统", "", "anything")
	require.NotNil(t, result)
	assert.Equal(t, apologyResponse, result.Response)
	assert.Zero(t, result.Confidence)
}

func TestQuery_HistoryWindowLimited(t *testing.T) {
	history := make([]model.ChatMessage, 10)
	for i := range history {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		history[i] = model.ChatMessage{Role: role, Content: "turn"}
	}
	searcher := &fakeSearcher{chunks: []model.RetrievedChunk{
		{Filename: "a.pdf", Content: "content.", Score: 0.9},
	}}
	llmClient := &fakeLLM{answer: "ok"}
	svc := newTestQueryService(searcher, llmClient, &fakeConvRepo{history: history})

	svc.Query(context.Background(), "course-1", "数据库系统", "sess-1", "q")

	// system + 最近 6 轮历史 + 当前问题
	require.Len(t, llmClient.messages, 8)
	assert.Equal(t, "system", llmClient.messages[0].Role)
	assert.Equal(t, "user", llmClient.messages[len(llmClient.messages)-1].Role)
}

func TestBuildContext_SectionAnnotations(t *testing.T) {
	chunks := []model.RetrievedChunk{
		{Filename: "a.pdf", Section: "第一章", Content: "内容一"},
		{Filename: "b.pdf", Content: "内容二"},
	}
	text := buildContext(chunks)
	assert.Contains(t, text, "[From a.pdf] [Section: 第一章] 内容一")
	assert.Contains(t, text, "[From b.pdf] 内容二")
}

type collectingWriter struct {
	frames [][]byte
}

func (w *collectingWriter) WriteMessage(messageType int, data []byte) error {
	w.frames = append(w.frames, data)
	return nil
}

func TestStreamQuery_NoChunks(t *testing.T) {
	svc := newTestQueryService(&fakeSearcher{}, &fakeLLM{}, &fakeConvRepo{})

	writer := &collectingWriter{}
	require.NoError(t, svc.StreamQuery(context.Background(), "course-1", "数据库系统", "", "q", writer))
	require.Len(t, writer.frames, 1)
	assert.Equal(t, noInfoResponse, string(writer.frames[0]))
}

func TestStreamQuery_RecordsHistory(t *testing.T) {
	searcher := &fakeSearcher{chunks: []model.RetrievedChunk{
		{Filename: "a.pdf", Content: "content.", Score: 0.9},
	}}
	convRepo := &fakeConvRepo{}
	svc := newTestQueryService(searcher, &fakeLLM{answer: "streamed answer"}, convRepo)

	writer := &collectingWriter{}
	require.NoError(t, svc.StreamQuery(context.Background(), "course-1", "数据库系统", "sess-1", "q", writer))

	require.Len(t, convRepo.appended, 1)
	assert.Equal(t, "streamed answer", convRepo.appended[0][1])
}
