// Package llm 提供了与大语言模型交互的客户端。
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"course-smart-go/internal/config"

	"github.com/gorilla/websocket"
)

// MessageWriter 定义了写出 WebSocket 消息的接口，
// 标准的 websocket.Conn 与各种拦截器都可以作为 writer 传入。
type MessageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// Message 表示一条角色消息。
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client 定义了 LLM 客户端的接口。
// Generate 同步返回完整回答；StreamChatMessages 将流式分块写入 writer。
// 两者的任何错误都被上层视为可恢复（触发本地抽取式兜底）。
type Client interface {
	Generate(ctx context.Context, messages []Message) (string, error)
	StreamChatMessages(ctx context.Context, messages []Message, writer MessageWriter) error
}

type openAICompatibleClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewClient 创建一个新的 LLM 客户端实例。
func NewClient(cfg config.LLMConfig) Client {
	return &openAICompatibleClient{
		cfg:    cfg,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type chatStreamResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *openAICompatibleClient) buildRequest(ctx context.Context, messages []Message, stream bool) (*http.Request, error) {
	reqBody := chatRequest{
		Model:    c.cfg.Model,
		Messages: messages,
		Stream:   stream,
	}
	// 从配置注入生成参数（若非零值）
	if c.cfg.Temperature != 0 {
		t := c.cfg.Temperature
		reqBody.Temperature = &t
	}
	if c.cfg.MaxTokens != 0 {
		m := c.cfg.MaxTokens
		reqBody.MaxTokens = &m
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	return req, nil
}

// Generate 调用 chat completions 接口并同步返回完整回答文本。
func (c *openAICompatibleClient) Generate(ctx context.Context, messages []Message) (string, error) {
	req, err := c.buildRequest(ctx, messages, false)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call chat api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("chat api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat api returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// StreamChatMessages 以 SSE 流式调用聊天接口，把分块内容写入 writer。
func (c *openAICompatibleClient) StreamChatMessages(ctx context.Context, messages []Message, writer MessageWriter) error {
	req, err := c.buildRequest(ctx, messages, true)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call chat api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chat api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read from stream: %w", err)
		}

		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if strings.TrimSpace(data) == "[DONE]" {
			break
		}

		var chunk chatStreamResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) > 0 {
			content := chunk.Choices[0].Delta.Content
			if err := writer.WriteMessage(websocket.TextMessage, []byte(content)); err != nil {
				return fmt.Errorf("failed to write message to websocket: %w", err)
			}
		}
	}
	return nil
}
