package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"course-smart-go/internal/config"
	"course-smart-go/internal/model"
	"course-smart-go/internal/repository"
	"course-smart-go/pkg/es"
	"course-smart-go/pkg/kafka"
	"course-smart-go/pkg/log"
	"course-smart-go/pkg/storage"
	"course-smart-go/pkg/tasks"

	"github.com/google/uuid"
)

// DocumentService 负责文档的上传入队、查询与级联删除。
type DocumentService struct {
	courseRepo repository.CourseRepository
	docRepo    repository.DocumentRepository
	index      *es.Index
	minioCfg   config.MinIOConfig
}

// NewDocumentService 创建文档服务。
func NewDocumentService(courseRepo repository.CourseRepository, docRepo repository.DocumentRepository, index *es.Index, minioCfg config.MinIOConfig) *DocumentService {
	return &DocumentService{courseRepo: courseRepo, docRepo: docRepo, index: index, minioCfg: minioCfg}
}

// Upload 把文件写入对象存储、创建 pending 文档记录并投递处理任务。
// 处理是异步的，调用方通过文档状态跟踪进度。
func (s *DocumentService) Upload(ctx context.Context, courseID, filename string, reader io.Reader, size int64) (*model.Document, error) {
	if _, err := s.courseRepo.FindByID(courseID); err != nil {
		return nil, fmt.Errorf("课程不存在: %w", err)
	}

	docID := uuid.New().String()
	objectName := fmt.Sprintf("%s/%s_%s", courseID, docID, filename)
	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := storage.PutObject(ctx, s.minioCfg.BucketName, objectName, reader, size, contentType); err != nil {
		return nil, fmt.Errorf("上传文件到对象存储失败: %w", err)
	}

	doc := &model.Document{
		ID:           docID,
		CourseID:     courseID,
		Filename:     filename,
		OriginalPath: objectName,
		FileType:     strings.ToLower(filepath.Ext(filename)),
		FileSize:     size,
		Status:       model.DocStatusPending,
	}
	if err := s.docRepo.Create(doc); err != nil {
		return nil, fmt.Errorf("创建文档记录失败: %w", err)
	}

	task := tasks.DocumentProcessingTask{
		DocumentID: docID,
		CourseID:   courseID,
		ObjectName: objectName,
		FileName:   filename,
	}
	if err := kafka.ProduceDocumentTask(task); err != nil {
		markErr := s.docRepo.UpdateStatus(docID, model.DocStatusFailed, fmt.Sprintf("投递处理任务失败: %v", err))
		if markErr != nil {
			log.Errorf("[DocumentService] 标记文档失败状态出错, DocumentID: %s, Error: %v", docID, markErr)
		}
		return nil, fmt.Errorf("投递处理任务失败: %w", err)
	}

	log.Infof("[DocumentService] 文档上传成功并已入队, CourseID: %s, DocumentID: %s, FileName: %s", courseID, docID, filename)
	return doc, nil
}

// GetDocument 按 ID 查询文档。
func (s *DocumentService) GetDocument(id string) (*model.Document, error) {
	return s.docRepo.FindByID(id)
}

// ListDocuments 返回课程下全部文档。
func (s *DocumentService) ListDocuments(courseID string) ([]*model.Document, error) {
	return s.docRepo.FindByCourse(courseID)
}

// ListChunks 返回文档的分块记录，按 chunk_index 升序。
func (s *DocumentService) ListChunks(documentID string) ([]*model.DocumentChunk, error) {
	return s.docRepo.FindChunks(documentID)
}

// DeleteDocument 删除文档并级联清理其分块、向量与对象存储中的源文件。
func (s *DocumentService) DeleteDocument(ctx context.Context, id string) error {
	doc, err := s.docRepo.FindByID(id)
	if err != nil {
		return err
	}

	if err := s.index.DeleteByDocument(ctx, id); err != nil {
		return fmt.Errorf("清理文档向量失败: %w", err)
	}
	if err := storage.RemoveObject(ctx, s.minioCfg.BucketName, doc.OriginalPath); err != nil {
		log.Warnf("[DocumentService] 删除对象存储文件失败, ObjectName: %s, err=%v", doc.OriginalPath, err)
	}
	if err := s.docRepo.Delete(id); err != nil {
		return fmt.Errorf("删除文档记录失败: %w", err)
	}

	log.Infof("[DocumentService] 文档删除成功, DocumentID: %s, CourseID: %s", id, doc.CourseID)
	return nil
}
