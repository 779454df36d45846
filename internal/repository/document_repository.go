package repository

import (
	"course-smart-go/internal/model"

	"gorm.io/gorm"
)

// DocumentRepository 定义了对 documents 与 document_chunks 表的数据操作接口。
type DocumentRepository interface {
	Create(doc *model.Document) error
	FindByID(id string) (*model.Document, error)
	FindByCourse(courseID string) ([]*model.Document, error)
	UpdateStatus(id, status, errMsg string) error
	MarkCompleted(id, rawText string, chunkCount int) error
	BatchCreateChunks(chunks []*model.DocumentChunk) error
	FindChunks(documentID string) ([]*model.DocumentChunk, error)
	DeleteChunksByDocument(documentID string) error
	Delete(id string) error
	DeleteByCourse(courseID string) error
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建一个新的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// Create 创建一条文档记录。
func (r *documentRepository) Create(doc *model.Document) error {
	return r.db.Create(doc).Error
}

// FindByID 根据 ID 查找文档。
func (r *documentRepository) FindByID(id string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("id = ?", id).First(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindByCourse 返回某课程下的全部文档。
func (r *documentRepository) FindByCourse(courseID string) ([]*model.Document, error) {
	var docs []*model.Document
	err := r.db.Where("course_id = ?", courseID).Order("created_at desc").Find(&docs).Error
	return docs, err
}

// UpdateStatus 更新文档的处理状态与错误信息。
func (r *documentRepository) UpdateStatus(id, status, errMsg string) error {
	return r.db.Model(&model.Document{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "error_message": errMsg}).Error
}

// MarkCompleted 将文档标记为 completed，并记录提取文本与分块数量。
func (r *documentRepository) MarkCompleted(id, rawText string, chunkCount int) error {
	return r.db.Model(&model.Document{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        model.DocStatusCompleted,
			"error_message": "",
			"raw_text":      rawText,
			"chunk_count":   chunkCount,
		}).Error
}

// BatchCreateChunks 批量创建分块记录，每 100 条一批。
func (r *documentRepository) BatchCreateChunks(chunks []*model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return r.db.CreateInBatches(chunks, 100).Error
}

// FindChunks 按块序号升序返回某文档的全部分块。
func (r *documentRepository) FindChunks(documentID string) ([]*model.DocumentChunk, error) {
	var chunks []*model.DocumentChunk
	err := r.db.Where("document_id = ?", documentID).Order("chunk_index asc").Find(&chunks).Error
	return chunks, err
}

// DeleteChunksByDocument 删除某文档的全部分块记录（幂等，重复处理前调用）。
func (r *documentRepository) DeleteChunksByDocument(documentID string) error {
	return r.db.Where("document_id = ?", documentID).Delete(&model.DocumentChunk{}).Error
}

// Delete 删除文档记录及其分块记录。
func (r *documentRepository) Delete(id string) error {
	if err := r.DeleteChunksByDocument(id); err != nil {
		return err
	}
	return r.db.Where("id = ?", id).Delete(&model.Document{}).Error
}

// DeleteByCourse 删除某课程下的全部文档与分块记录。
func (r *documentRepository) DeleteByCourse(courseID string) error {
	if err := r.db.Where("course_id = ?", courseID).Delete(&model.DocumentChunk{}).Error; err != nil {
		return err
	}
	return r.db.Where("course_id = ?", courseID).Delete(&model.Document{}).Error
}
