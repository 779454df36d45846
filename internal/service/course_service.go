package service

import (
	"context"
	"fmt"

	"course-smart-go/internal/model"
	"course-smart-go/internal/repository"
	"course-smart-go/pkg/es"
	"course-smart-go/pkg/log"

	"github.com/google/uuid"
)

// CourseService 负责课程的创建、查询与级联删除。
type CourseService struct {
	courseRepo repository.CourseRepository
	docRepo    repository.DocumentRepository
	index      *es.Index
}

// NewCourseService 创建课程服务。
func NewCourseService(courseRepo repository.CourseRepository, docRepo repository.DocumentRepository, index *es.Index) *CourseService {
	return &CourseService{courseRepo: courseRepo, docRepo: docRepo, index: index}
}

// CreateCourse 新建课程，课程 ID 由服务端生成。
func (s *CourseService) CreateCourse(name, description string) (*model.Course, error) {
	course := &model.Course{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
	}
	if err := s.courseRepo.Create(course); err != nil {
		return nil, fmt.Errorf("创建课程失败: %w", err)
	}
	log.Infof("[CourseService] 课程创建成功, CourseID: %s, Name: %s", course.ID, course.Name)
	return course, nil
}

// GetCourse 按 ID 查询课程。
func (s *CourseService) GetCourse(id string) (*model.Course, error) {
	return s.courseRepo.FindByID(id)
}

// ListCourses 返回全部课程。
func (s *CourseService) ListCourses() ([]*model.Course, error) {
	return s.courseRepo.FindAll()
}

// DeleteCourse 删除课程并级联清理其全部文档、分块与向量。
func (s *CourseService) DeleteCourse(ctx context.Context, id string) error {
	if _, err := s.courseRepo.FindByID(id); err != nil {
		return err
	}

	if err := s.index.DeleteByCourse(ctx, id); err != nil {
		return fmt.Errorf("清理课程向量失败: %w", err)
	}
	if err := s.docRepo.DeleteByCourse(id); err != nil {
		return fmt.Errorf("清理课程文档记录失败: %w", err)
	}
	if err := s.courseRepo.Delete(id); err != nil {
		return fmt.Errorf("删除课程失败: %w", err)
	}

	log.Infof("[CourseService] 课程删除成功, CourseID: %s", id)
	return nil
}
