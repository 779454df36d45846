// Package service 实现课程问答系统的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"strings"

	"course-smart-go/internal/config"
	"course-smart-go/internal/model"
	"course-smart-go/internal/repository"
	"course-smart-go/pkg/embedding"
	"course-smart-go/pkg/es"
	"course-smart-go/pkg/llm"
	"course-smart-go/pkg/log"

	"github.com/gorilla/websocket"
)

const (
	// 组装到生成请求中的历史轮次上限
	historyWindow = 6

	noInfoResponse = "I don't have enough information about this topic in your course materials. Could you try rephrasing your question or ask about something else?"

	apologyResponse = "I'm sorry, I encountered an error while processing your question. Please try again."

	fallbackSuffix = "\n\nThis information is based on your course materials. Would you like me to elaborate on any specific aspect?"

	needMoreResponse = "I found some relevant course materials, but I need more specific information to answer your question accurately. Could you please rephrase your question or provide more context?"

	systemPrompt = `You are a helpful assistant for the course "%s". Answer the student's question using ONLY the provided course materials below. If the materials do not contain the answer, say so honestly instead of guessing.

Course materials:
%s

Guidelines:
- Base your answer strictly on the materials above.
- Cite which file the information comes from when relevant.
- Keep answers clear and suited to a student audience.`
)

// VectorSearcher 是查询侧对向量索引的依赖抽象。
type VectorSearcher interface {
	SearchChunks(ctx context.Context, queryVector []float32, courseID string, limit int, threshold float64) ([]model.RetrievedChunk, error)
}

var _ VectorSearcher = (*es.Index)(nil)

// QueryService 实现检索增强问答：召回、置信度评估、生成与降级回退。
type QueryService struct {
	provider embedding.Provider
	searcher VectorSearcher
	llm      llm.Client
	convRepo repository.ConversationRepository
	cfg      config.RAGConfig

	// 置信度计算策略，默认取召回得分均值并截断到 1.0
	confidenceFn func(chunks []model.RetrievedChunk) float64
}

// NewQueryService 创建问答服务。
func NewQueryService(
	provider embedding.Provider,
	searcher VectorSearcher,
	llmClient llm.Client,
	convRepo repository.ConversationRepository,
	cfg config.RAGConfig,
) *QueryService {
	return &QueryService{
		provider:     provider,
		searcher:     searcher,
		llm:          llmClient,
		convRepo:     convRepo,
		cfg:          cfg,
		confidenceFn: meanConfidence,
	}
}

// Query 执行一次课程范围内的问答。任何内部 panic 都被兜底为道歉响应。
func (s *QueryService) Query(ctx context.Context, courseID, courseName, sessionID, question string) (result *model.QueryResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[QueryService] 处理问题时发生严重错误, CourseID: %s, panic: %v", courseID, r)
			result = &model.QueryResult{
				Response:   apologyResponse,
				Sources:    []string{},
				Confidence: 0,
				ChunksUsed: 0,
			}
		}
	}()

	chunks, err := s.retrieve(ctx, courseID, question)
	if err != nil {
		log.Errorf("[QueryService] 检索失败, CourseID: %s, Error: %v", courseID, err)
		return &model.QueryResult{Response: apologyResponse, Sources: []string{}, Confidence: 0}
	}

	if len(chunks) == 0 {
		log.Infof("[QueryService] 课程 %s 未召回任何相关内容", courseID)
		return &model.QueryResult{Response: noInfoResponse, Sources: []string{}, Confidence: 0}
	}

	confidence := s.confidenceFn(chunks)
	contextText := buildContext(chunks)
	sources := collectSources(chunks)

	answer, err := s.generate(ctx, courseID, courseName, sessionID, question, contextText)
	if err != nil {
		log.Warnf("[QueryService] 生成失败，使用抽取式回退, CourseID: %s, Error: %v", courseID, err)
		answer = s.extractiveFallback(question, contextText)
	}

	if sessionID != "" {
		if err := s.convRepo.AppendExchange(ctx, courseID, sessionID, question, answer); err != nil {
			log.Warnf("[QueryService] 保存会话历史失败, CourseID: %s, SessionID: %s, err=%v", courseID, sessionID, err)
		}
	}

	return &model.QueryResult{
		Response:   answer,
		Sources:    sources,
		Confidence: confidence,
		ChunksUsed: len(chunks),
	}
}

// StreamQuery 以流式方式回答问题，逐段写入 writer。
// 召回为空或生成失败时退化为一次性写入兜底答案。
func (s *QueryService) StreamQuery(ctx context.Context, courseID, courseName, sessionID, question string, writer llm.MessageWriter) error {
	chunks, err := s.retrieve(ctx, courseID, question)
	if err != nil {
		log.Errorf("[QueryService] 检索失败, CourseID: %s, Error: %v", courseID, err)
		return writer.WriteMessage(websocket.TextMessage, []byte(apologyResponse))
	}
	if len(chunks) == 0 {
		return writer.WriteMessage(websocket.TextMessage, []byte(noInfoResponse))
	}

	contextText := buildContext(chunks)
	messages := s.buildMessages(ctx, courseID, courseName, sessionID, question, contextText)

	recorder := &recordingWriter{inner: writer}
	if err := s.llm.StreamChatMessages(ctx, messages, recorder); err != nil {
		log.Warnf("[QueryService] 流式生成失败，使用抽取式回退, CourseID: %s, Error: %v", courseID, err)
		return writer.WriteMessage(websocket.TextMessage, []byte(s.extractiveFallback(question, contextText)))
	}
	if sessionID != "" {
		if err := s.convRepo.AppendExchange(ctx, courseID, sessionID, question, recorder.answer.String()); err != nil {
			log.Warnf("[QueryService] 保存会话历史失败, CourseID: %s, SessionID: %s, err=%v", courseID, sessionID, err)
		}
	}
	return nil
}

// recordingWriter 在透传流式输出的同时累积完整答案，用于会话历史落盘。
type recordingWriter struct {
	inner  llm.MessageWriter
	answer strings.Builder
}

func (w *recordingWriter) WriteMessage(messageType int, data []byte) error {
	w.answer.Write(data)
	return w.inner.WriteMessage(messageType, data)
}

// retrieve 将问题向量化后在课程分区内召回。
func (s *QueryService) retrieve(ctx context.Context, courseID, question string) ([]model.RetrievedChunk, error) {
	vectors, err := s.provider.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("查询向量化失败: %w", err)
	}
	return s.searcher.SearchChunks(ctx, vectors[0], courseID, s.cfg.ChatLimit, s.cfg.ScoreThreshold)
}

// buildMessages 组装系统提示（含课程名与召回上下文）、历史窗口与当前问题。
func (s *QueryService) buildMessages(ctx context.Context, courseID, courseName, sessionID, question, contextText string) []llm.Message {
	name := courseName
	if name == "" {
		name = "this course"
	}
	messages := []llm.Message{
		{Role: "system", Content: fmt.Sprintf(systemPrompt, name, contextText)},
	}

	if sessionID != "" {
		history, err := s.convRepo.GetHistory(ctx, courseID, sessionID)
		if err != nil {
			log.Warnf("[QueryService] 读取会话历史失败, SessionID: %s, err=%v", sessionID, err)
		} else {
			if len(history) > historyWindow {
				history = history[len(history)-historyWindow:]
			}
			for _, msg := range history {
				messages = append(messages, llm.Message{Role: msg.Role, Content: msg.Content})
			}
		}
	}

	return append(messages, llm.Message{Role: "user", Content: question})
}

// generate 调用生成模型并拒绝空响应。
func (s *QueryService) generate(ctx context.Context, courseID, courseName, sessionID, question, contextText string) (string, error) {
	messages := s.buildMessages(ctx, courseID, courseName, sessionID, question, contextText)

	answer, err := s.llm.Generate(ctx, messages)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(answer) == "" {
		return "", fmt.Errorf("生成模型返回空响应")
	}
	return answer, nil
}

// 切词时剥除的首尾标点。
const wordPunct = ".,!?;:\"'()"

// wordSet 小写切词并剥除首尾标点，返回词集合。
func wordSet(text string) map[string]bool {
	words := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if w = strings.Trim(w, wordPunct); w != "" {
			words[w] = true
		}
	}
	return words
}

// extractiveFallback 在生成不可用时直接从召回内容中抽取相关句子。
// 句子相关的判定：与问题的整词交集达到阈值，或包含任一长查询词（子串命中，
// 覆盖词形变化）。命中句按原文顺序取前 3 句。
func (s *QueryService) extractiveFallback(question, contextText string) string {
	queryWords := wordSet(question)

	var relevant []string
	for _, raw := range strings.Split(contextText, ".") {
		sentence := strings.TrimSpace(raw)
		if sentence == "" {
			continue
		}
		lower := strings.ToLower(sentence)
		sentenceWords := wordSet(sentence)

		overlap := 0
		signal := false
		for w := range queryWords {
			if sentenceWords[w] {
				overlap++
			}
			if len([]rune(w)) > s.cfg.Fallback.SignalWordLen && strings.Contains(lower, w) {
				signal = true
			}
		}
		if overlap >= s.cfg.Fallback.MinOverlap || signal {
			relevant = append(relevant, sentence)
		}
	}

	if len(relevant) == 0 {
		return needMoreResponse
	}
	if len(relevant) > 3 {
		relevant = relevant[:3]
	}

	answer := strings.Join(relevant, ". ")
	if runes := []rune(answer); len(runes) > 500 {
		answer = string(runes[:500]) + "..."
	}
	return answer + fallbackSuffix
}

// buildContext 把召回分块拼接为带出处标注的上下文文本。
func buildContext(chunks []model.RetrievedChunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c.Section != "" {
			parts = append(parts, fmt.Sprintf("[From %s] [Section: %s] %s", c.Filename, c.Section, c.Content))
		} else {
			parts = append(parts, fmt.Sprintf("[From %s] %s", c.Filename, c.Content))
		}
	}
	return strings.Join(parts, "\n\n")
}

// collectSources 去重收集召回分块的来源文件名，保持首次出现顺序。
func collectSources(chunks []model.RetrievedChunk) []string {
	seen := map[string]bool{}
	sources := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if !seen[c.Filename] {
			seen[c.Filename] = true
			sources = append(sources, c.Filename)
		}
	}
	return sources
}

// meanConfidence 取召回得分均值并截断到 [0, 1]。
func meanConfidence(chunks []model.RetrievedChunk) float64 {
	if len(chunks) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range chunks {
		sum += c.Score
	}
	confidence := sum / float64(len(chunks))
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}
