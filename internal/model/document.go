package model

import "time"

// 文档处理状态。文档在上传时以 processing 创建，
// 处理结束时必须落到 completed 或 failed 两个终态之一。
const (
	DocStatusPending    = "pending"
	DocStatusProcessing = "processing"
	DocStatusCompleted  = "completed"
	DocStatusFailed     = "failed"
)

// Document 对应于数据库中的 documents 表，记录一个源文件及其处理状态。
type Document struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CourseID     string    `gorm:"type:varchar(36);not null;index" json:"courseId"`
	Filename     string    `gorm:"type:varchar(255);not null" json:"filename"`
	OriginalPath string    `gorm:"type:varchar(512)" json:"originalPath"`
	FileType     string    `gorm:"type:varchar(16)" json:"fileType"`
	FileSize     int64     `gorm:"not null;default:0" json:"fileSize"`
	Status       string    `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`
	ErrorMessage string    `gorm:"type:text" json:"errorMessage"`
	RawText      string    `gorm:"type:longtext" json:"-"`
	ChunkCount   int       `gorm:"not null;default:0" json:"chunkCount"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Document) TableName() string {
	return "documents"
}

// DocumentChunk 对应于数据库中的 document_chunks 表。
// 块序号在文档内从 0 开始连续编号。
type DocumentChunk struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	DocumentID string `gorm:"type:varchar(36);not null;index" json:"documentId"`
	CourseID   string `gorm:"type:varchar(36);not null;index" json:"courseId"`
	ChunkIndex int    `gorm:"not null" json:"chunkIndex"`
	Content    string `gorm:"type:text;not null" json:"content"`
	Filename   string `gorm:"type:varchar(255)" json:"filename"`
	Section    string `gorm:"type:varchar(255)" json:"section"`
	ChunkType  string `gorm:"type:varchar(32);default:'semantic'" json:"chunkType"`
	VectorID   string `gorm:"type:varchar(64)" json:"vectorId"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (DocumentChunk) TableName() string {
	return "document_chunks"
}
