// Package model 定义了与数据库表对应的 Go 结构体以及各层之间传递的 DTO。
package model

import "time"

// Course 对应于数据库中的 courses 表，是所有摄取与检索操作的租户边界。
type Course struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	FileCount   int       `gorm:"not null;default:0" json:"fileCount"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Course) TableName() string {
	return "courses"
}
