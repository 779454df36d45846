package handler

import (
	"errors"
	"net/http"

	"course-smart-go/internal/service"
	"course-smart-go/pkg/log"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// DocumentHandler 负责处理文档上传与管理相关的 API 请求。
type DocumentHandler struct {
	documentService *service.DocumentService
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(documentService *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// Upload 处理文件上传请求，文件入库后异步处理。
func (h *DocumentHandler) Upload(c *gin.Context) {
	courseID := c.Param("courseId")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		log.Warnf("Upload: Missing file in request, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "请求中缺少文件", "data": nil})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Error("Upload: Failed to open uploaded file", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "读取上传文件失败", "data": nil})
		return
	}
	defer file.Close()

	doc, err := h.documentService.Upload(c.Request.Context(), courseID, fileHeader.Filename, file, fileHeader.Size)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "课程不存在", "data": nil})
			return
		}
		log.Error("Upload: Failed to upload document", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "文档上传失败", "data": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": doc})
}

// ListDocuments 处理获取课程文档列表的请求。
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	docs, err := h.documentService.ListDocuments(c.Param("courseId"))
	if err != nil {
		log.Error("ListDocuments: Failed to list documents", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取文档列表失败", "data": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": docs})
}

// GetDocument 处理获取文档详情的请求，用于查询处理状态。
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	doc, err := h.documentService.GetDocument(c.Param("documentId"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "文档不存在", "data": nil})
			return
		}
		log.Error("GetDocument: Failed to get document", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取文档失败", "data": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": doc})
}

// ListChunks 处理获取文档分块列表的请求。
func (h *DocumentHandler) ListChunks(c *gin.Context) {
	chunks, err := h.documentService.ListChunks(c.Param("documentId"))
	if err != nil {
		log.Error("ListChunks: Failed to list chunks", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取分块列表失败", "data": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": chunks})
}

// DeleteDocument 处理删除文档的请求，级联清理分块与向量。
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	if err := h.documentService.DeleteDocument(c.Request.Context(), c.Param("documentId")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "文档不存在", "data": nil})
			return
		}
		log.Error("DeleteDocument: Failed to delete document", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "删除文档失败", "data": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": nil})
}
