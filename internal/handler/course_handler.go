// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"course-smart-go/internal/service"
	"course-smart-go/pkg/log"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CourseHandler 负责处理课程相关的 API 请求。
type CourseHandler struct {
	courseService *service.CourseService
}

// NewCourseHandler 创建一个新的 CourseHandler 实例。
func NewCourseHandler(courseService *service.CourseService) *CourseHandler {
	return &CourseHandler{courseService: courseService}
}

// CreateCourseRequest 定义了创建课程 API 的请求体结构。
type CreateCourseRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// CreateCourse 处理创建课程的请求。
func (h *CourseHandler) CreateCourse(c *gin.Context) {
	var req CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("CreateCourse: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}

	course, err := h.courseService.CreateCourse(req.Name, req.Description)
	if err != nil {
		log.Error("CreateCourse: Failed to create course", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "创建课程失败", "data": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": course})
}

// ListCourses 处理获取课程列表的请求。
func (h *CourseHandler) ListCourses(c *gin.Context) {
	courses, err := h.courseService.ListCourses()
	if err != nil {
		log.Error("ListCourses: Failed to list courses", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取课程列表失败", "data": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": courses})
}

// GetCourse 处理获取单个课程详情的请求。
func (h *CourseHandler) GetCourse(c *gin.Context) {
	course, err := h.courseService.GetCourse(c.Param("courseId"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "课程不存在", "data": nil})
			return
		}
		log.Error("GetCourse: Failed to get course", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取课程失败", "data": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": course})
}

// DeleteCourse 处理删除课程的请求，级联清理课程下全部数据。
func (h *CourseHandler) DeleteCourse(c *gin.Context) {
	courseID := c.Param("courseId")
	if err := h.courseService.DeleteCourse(c.Request.Context(), courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "课程不存在", "data": nil})
			return
		}
		log.Error("DeleteCourse: Failed to delete course", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "删除课程失败", "data": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": nil})
}
