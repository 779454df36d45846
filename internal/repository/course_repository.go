// Package repository 提供了数据访问层的实现。
package repository

import (
	"course-smart-go/internal/model"

	"gorm.io/gorm"
)

// CourseRepository 定义了对 courses 表的数据操作接口。
type CourseRepository interface {
	Create(course *model.Course) error
	FindByID(id string) (*model.Course, error)
	FindAll() ([]*model.Course, error)
	IncrementFileCount(id string) error
	Delete(id string) error
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository 创建一个新的 CourseRepository 实例。
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

// Create 创建一条课程记录。
func (r *courseRepository) Create(course *model.Course) error {
	return r.db.Create(course).Error
}

// FindByID 根据 ID 查找课程。
func (r *courseRepository) FindByID(id string) (*model.Course, error) {
	var course model.Course
	if err := r.db.Where("id = ?", id).First(&course).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

// FindAll 返回所有课程。
func (r *courseRepository) FindAll() ([]*model.Course, error) {
	var courses []*model.Course
	err := r.db.Order("created_at desc").Find(&courses).Error
	return courses, err
}

// IncrementFileCount 将课程的文件计数加一。
func (r *courseRepository) IncrementFileCount(id string) error {
	return r.db.Model(&model.Course{}).
		Where("id = ?", id).
		UpdateColumn("file_count", gorm.Expr("file_count + 1")).Error
}

// Delete 删除课程记录本身，关联数据的级联清理由上层服务编排。
func (r *courseRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.Course{}).Error
}
