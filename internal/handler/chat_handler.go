package handler

import (
	"encoding/json"
	"net/http"

	"course-smart-go/internal/service"
	"course-smart-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// ChatHandler 负责处理问答请求，包括一次性查询与 WebSocket 流式对话。
type ChatHandler struct {
	queryService  *service.QueryService
	courseService *service.CourseService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(queryService *service.QueryService, courseService *service.CourseService) *ChatHandler {
	return &ChatHandler{queryService: queryService, courseService: courseService}
}

// QueryRequest 定义了问答 API 的请求体结构。
type QueryRequest struct {
	Question  string `json:"question" binding:"required"`
	SessionID string `json:"session_id"`
}

// Query 处理一次性问答请求，返回答案、来源与置信度。
func (h *ChatHandler) Query(c *gin.Context) {
	courseID := c.Param("courseId")

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Query: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}

	course, err := h.courseService.GetCourse(courseID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "课程不存在", "data": nil})
		return
	}

	result := h.queryService.Query(c.Request.Context(), courseID, course.Name, req.SessionID, req.Question)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": result})
}

// wsChatMessage 是 WebSocket 聊天中客户端发送的消息结构。
type wsChatMessage struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

// HandleWebSocket 处理一个传入的 WebSocket 聊天连接。
// 每条入站消息携带一个问题，答案以流式文本帧返回，以 [DONE] 帧结束。
func (h *ChatHandler) HandleWebSocket(c *gin.Context) {
	courseID := c.Param("courseId")

	course, err := h.courseService.GetCourse(courseID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "课程不存在", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立, CourseID: %s", courseID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}

		var msg wsChatMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.Question == "" {
			if writeErr := conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid message"}`)); writeErr != nil {
				break
			}
			continue
		}

		if err := h.queryService.StreamQuery(c.Request.Context(), courseID, course.Name, msg.SessionID, msg.Question, conn); err != nil {
			log.Warnf("WebSocket 流式问答失败, CourseID: %s, err=%v", courseID, err)
			break
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte("[DONE]")); err != nil {
			break
		}
	}
}
