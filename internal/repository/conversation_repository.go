package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"course-smart-go/internal/model"

	"github.com/go-redis/redis/v8"
)

// ConversationRepository 定义了按课程会话维度存取对话历史的接口。
// 历史记录存在 Redis 中，仅作为提示词的上下文窗口来源，不承诺持久。
type ConversationRepository interface {
	GetHistory(ctx context.Context, courseID, sessionID string) ([]model.ChatMessage, error)
	AppendExchange(ctx context.Context, courseID, sessionID, question, answer string) error
}

type redisConversationRepository struct {
	redisClient *redis.Client
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
func NewConversationRepository(redisClient *redis.Client) ConversationRepository {
	return &redisConversationRepository{redisClient: redisClient}
}

func historyKey(courseID, sessionID string) string {
	return fmt.Sprintf("course:%s:session:%s:history", courseID, sessionID)
}

// GetHistory 从 Redis 获取对话历史记录，不存在时返回空切片。
func (r *redisConversationRepository) GetHistory(ctx context.Context, courseID, sessionID string) ([]model.ChatMessage, error) {
	jsonData, err := r.redisClient.Get(ctx, historyKey(courseID, sessionID)).Result()
	if err == redis.Nil {
		return []model.ChatMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}
	var messages []model.ChatMessage
	if err := json.Unmarshal([]byte(jsonData), &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation history: %w", err)
	}
	return messages, nil
}

// AppendExchange 追加一轮问答并写回 Redis，只保留最近 20 条。
func (r *redisConversationRepository) AppendExchange(ctx context.Context, courseID, sessionID, question, answer string) error {
	messages, err := r.GetHistory(ctx, courseID, sessionID)
	if err != nil {
		return err
	}
	now := time.Now()
	messages = append(messages,
		model.ChatMessage{Role: "user", Content: question, Timestamp: now},
		model.ChatMessage{Role: "assistant", Content: answer, Timestamp: now},
	)
	if len(messages) > 20 {
		messages = messages[len(messages)-20:]
	}
	jsonData, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation history: %w", err)
	}
	if err := r.redisClient.Set(ctx, historyKey(courseID, sessionID), jsonData, 7*24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to set conversation history: %w", err)
	}
	return nil
}
