package handler

import (
	"net/http"
	"strconv"

	"course-smart-go/internal/service"
	"course-smart-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// SearchHandler 负责处理课程内向量检索的 API 请求。
type SearchHandler struct {
	searchService *service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService *service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// Search 处理课程内检索请求。
// 查询参数: q (必填), limit (可选), threshold (可选)。
func (h *SearchHandler) Search(c *gin.Context) {
	courseID := c.Param("courseId")
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "缺少查询参数 q", "data": nil})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	threshold, err := strconv.ParseFloat(c.DefaultQuery("threshold", "-1"), 64)
	if err != nil {
		threshold = -1
	}

	results, err := h.searchService.Search(c.Request.Context(), courseID, query, limit, threshold)
	if err != nil {
		log.Error("Search: Failed to search chunks", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "检索失败", "data": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": results})
}
