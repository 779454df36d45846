// Package pipeline 实现了文档摄取的核心流程：提取 → 分块 → 向量化 → 索引。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"course-smart-go/internal/chunker"
	"course-smart-go/internal/config"
	"course-smart-go/internal/extractor"
	"course-smart-go/internal/model"
	"course-smart-go/internal/repository"
	"course-smart-go/pkg/embedding"
	"course-smart-go/pkg/es"
	"course-smart-go/pkg/log"
	"course-smart-go/pkg/storage"
	"course-smart-go/pkg/tasks"

	"github.com/google/uuid"
)

// 提取文本的非空白字符少于该值时，文档按提取失败处理。
const minExtractedChars = 10

// ChunkIndexer 是摄取侧对向量索引的依赖抽象。
type ChunkIndexer interface {
	UpsertChunk(ctx context.Context, doc model.ChunkDocument) error
}

var _ ChunkIndexer = (*es.Index)(nil)

// Processor 封装了文档摄取的所有依赖和逻辑。
// 同一文档的并发摄取不保证安全，由调用方（Kafka 按 document_id 分区）串行化。
type Processor struct {
	extractor  *extractor.Extractor
	provider   embedding.Provider
	index      ChunkIndexer
	minioCfg   config.MinIOConfig
	ragCfg     config.RAGConfig
	courseRepo repository.CourseRepository
	docRepo    repository.DocumentRepository
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(
	ext *extractor.Extractor,
	provider embedding.Provider,
	index ChunkIndexer,
	minioCfg config.MinIOConfig,
	ragCfg config.RAGConfig,
	courseRepo repository.CourseRepository,
	docRepo repository.DocumentRepository,
) *Processor {
	return &Processor{
		extractor:  ext,
		provider:   provider,
		index:      index,
		minioCfg:   minioCfg,
		ragCfg:     ragCfg,
		courseRepo: courseRepo,
		docRepo:    docRepo,
	}
}

// Process 消费 Kafka 任务：把对象存储中的文件落到临时路径后走摄取主流程。
func (p *Processor) Process(ctx context.Context, task tasks.DocumentProcessingTask) error {
	doc, err := p.docRepo.FindByID(task.DocumentID)
	if err != nil {
		return fmt.Errorf("查找文档记录失败: %w", err)
	}

	tempPath := filepath.Join(os.TempDir(), fmt.Sprintf("ingest_%s_%s", doc.ID, task.FileName))
	if err := storage.FGetObject(ctx, p.minioCfg.BucketName, task.ObjectName, tempPath); err != nil {
		markErr := p.docRepo.UpdateStatus(doc.ID, model.DocStatusFailed, fmt.Sprintf("下载源文件失败: %v", err))
		if markErr != nil {
			log.Errorf("[Processor] 标记文档失败状态出错, DocumentID: %s, Error: %v", doc.ID, markErr)
		}
		return fmt.Errorf("从 MinIO 下载文件失败: %w", err)
	}
	defer os.Remove(tempPath)

	return p.run(ctx, doc, tempPath)
}

// ProcessFile 是摄取的入站契约：为 course_id 下的本地文件创建文档记录并处理。
// 返回前文档记录一定处于 completed 或 failed 终态；成功后源文件被删除。
func (p *Processor) ProcessFile(ctx context.Context, courseID, filePath, filename string) bool {
	var fileSize int64
	if info, err := os.Stat(filePath); err == nil {
		fileSize = info.Size()
	}

	doc := &model.Document{
		ID:           uuid.New().String(),
		CourseID:     courseID,
		Filename:     filename,
		OriginalPath: filePath,
		FileType:     strings.ToLower(filepath.Ext(filename)),
		FileSize:     fileSize,
		Status:       model.DocStatusProcessing,
	}
	if err := p.docRepo.Create(doc); err != nil {
		log.Errorf("[Processor] 创建文档记录失败, CourseID: %s, FileName: %s, Error: %v", courseID, filename, err)
		return false
	}

	if err := p.run(ctx, doc, filePath); err != nil {
		log.Errorf("[Processor] 文档处理失败, CourseID: %s, DocumentID: %s, Error: %v", courseID, doc.ID, err)
		return false
	}

	// 处理成功后源文件不再需要
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		log.Warnf("[Processor] 清理源文件失败: %s, err=%v", filePath, err)
	}
	return true
}

// run 是摄取主流程。任何失败都会把文档落到 failed 终态并保留错误信息。
func (p *Processor) run(ctx context.Context, doc *model.Document, path string) error {
	fail := func(stage, msg string) error {
		log.Errorf("[Processor] 摄取失败, CourseID: %s, DocumentID: %s, 阶段: %s, 原因: %s",
			doc.CourseID, doc.ID, stage, msg)
		if err := p.docRepo.UpdateStatus(doc.ID, model.DocStatusFailed, msg); err != nil {
			log.Errorf("[Processor] 标记文档失败状态出错, DocumentID: %s, Error: %v", doc.ID, err)
		}
		return errors.New(msg)
	}

	// 1. 提取文本
	log.Infof("[Processor] 步骤1: 提取文本, DocumentID: %s, FileName: %s", doc.ID, doc.Filename)
	text, err := p.extractor.Extract(ctx, path, doc.Filename)
	if err != nil {
		return fail("extract", fmt.Sprintf("读取文件失败: %v", err))
	}
	if countNonSpace(text) < minExtractedChars {
		return fail("extract", "No text extracted")
	}

	// 2. 文本分块
	chunks := chunker.Split(text, p.ragCfg.ChunkSize, p.ragCfg.ChunkOverlap)
	log.Infof("[Processor] 步骤2: 文本分块完成, DocumentID: %s, 共 %d 块", doc.ID, len(chunks))
	if len(chunks) == 0 {
		return fail("chunk", "未生成任何文本分块")
	}

	// 3. 分块记录入库（先清理旧记录保证重复处理幂等）
	if err := p.docRepo.DeleteChunksByDocument(doc.ID); err != nil {
		log.Warnf("[Processor] 清理既有分块记录失败 (document_id=%s): %v", doc.ID, err)
	}
	records := make([]*model.DocumentChunk, 0, len(chunks))
	for i, content := range chunks {
		records = append(records, &model.DocumentChunk{
			DocumentID: doc.ID,
			CourseID:   doc.CourseID,
			ChunkIndex: i,
			Content:    content,
			Filename:   doc.Filename,
			ChunkType:  "semantic",
			VectorID:   fmt.Sprintf("%s_%d", doc.ID, i),
		})
	}
	if err := p.docRepo.BatchCreateChunks(records); err != nil {
		return fail("persist", fmt.Sprintf("批量保存分块失败: %v", err))
	}

	// 4. 批量向量化
	log.Infof("[Processor] 步骤3: 向量化 %d 个分块, DocumentID: %s", len(chunks), doc.ID)
	vectors, err := p.provider.Embed(ctx, chunks)
	if err != nil {
		return fail("embed", fmt.Sprintf("向量化失败: %v", err))
	}

	// 5. 写入向量索引，逐条校验维度；维度异常的分块跳过并记录
	stored := 0
	for i, vector := range vectors {
		if len(vector) != p.provider.Dimensions() {
			log.Errorf("[Processor] 分块 %d 维度异常 (got %d, want %d), 跳过, DocumentID: %s",
				i, len(vector), p.provider.Dimensions(), doc.ID)
			continue
		}
		chunkDoc := model.ChunkDocument{
			VectorID:     fmt.Sprintf("%s_%d", doc.ID, i),
			CourseID:     doc.CourseID,
			DocumentID:   doc.ID,
			ChunkIndex:   i,
			Content:      chunks[i],
			Filename:     doc.Filename,
			ChunkType:    "semantic",
			Vector:       vector,
			ModelVersion: p.provider.Model(),
		}
		if err := p.index.UpsertChunk(ctx, chunkDoc); err != nil {
			return fail("index", fmt.Sprintf("索引分块 %d 失败: %v", i, err))
		}
		stored++
	}
	if stored == 0 {
		// 全部分块被跳过时绝不能把文档标成 completed
		return fail("index", "没有可写入的有效向量")
	}

	// 6. 落终态
	if err := p.docRepo.MarkCompleted(doc.ID, text, len(chunks)); err != nil {
		return fail("finalize", fmt.Sprintf("更新文档状态失败: %v", err))
	}
	if err := p.courseRepo.IncrementFileCount(doc.CourseID); err != nil {
		log.Warnf("[Processor] 更新课程文件计数失败, CourseID: %s, err=%v", doc.CourseID, err)
	}

	log.Infof("[Processor] 文档处理成功, DocumentID: %s, 分块数: %d", doc.ID, len(chunks))
	return nil
}

// countNonSpace 统计非空白字符数。
func countNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
