// Package storage 提供了与对象存储服务（MinIO）交互的功能。
package storage

import (
	"context"
	"io"

	"course-smart-go/internal/config"
	"course-smart-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient 是一个全局的 MinIO 客户端实例。
var MinioClient *minio.Client

// InitMinIO 初始化 MinIO 客户端并确保指定的存储桶存在。
func InitMinIO(cfg config.MinIOConfig) {
	var err error
	MinioClient, err = minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		log.Fatal("初始化 MinIO 客户端失败", err)
	}
	log.Info("MinIO 客户端初始化成功")

	ctx := context.Background()
	exists, err := MinioClient.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		log.Fatal("检查 MinIO 存储桶失败", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := MinioClient.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			log.Fatal("创建 MinIO 存储桶失败", err)
		}
		log.Infof("存储桶 '%s' 创建成功", cfg.BucketName)
	}
}

// PutObject 将上传的文件流写入对象存储。
func PutObject(ctx context.Context, bucket, objectName string, reader io.Reader, size int64, contentType string) error {
	_, err := MinioClient.PutObject(ctx, bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

// FGetObject 将对象下载到本地文件，供摄取管道按路径读取。
func FGetObject(ctx context.Context, bucket, objectName, filePath string) error {
	return MinioClient.FGetObject(ctx, bucket, objectName, filePath, minio.GetObjectOptions{})
}

// RemoveObject 删除对象，不存在时由 MinIO 视为空操作。
func RemoveObject(ctx context.Context, bucket, objectName string) error {
	return MinioClient.RemoveObject(ctx, bucket, objectName, minio.RemoveObjectOptions{})
}
