// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"course-smart-go/internal/config"
	"course-smart-go/internal/extractor"
	"course-smart-go/internal/handler"
	"course-smart-go/internal/middleware"
	"course-smart-go/internal/pipeline"
	"course-smart-go/internal/repository"
	"course-smart-go/internal/service"
	"course-smart-go/pkg/database"
	"course-smart-go/pkg/embedding"
	"course-smart-go/pkg/es"
	"course-smart-go/pkg/kafka"
	"course-smart-go/pkg/llm"
	"course-smart-go/pkg/log"
	"course-smart-go/pkg/storage"
	"course-smart-go/pkg/tika"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis 与对象存储
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化向量化服务，配置的维度与模型不符时在启动阶段直接失败
	provider, err := embedding.NewProvider(cfg.Embedding)
	if err != nil {
		log.Fatal("向量化服务初始化失败", err)
	}
	log.Infof("向量化服务初始化成功, Model: %s, Dimensions: %d", provider.Model(), provider.Dimensions())

	// 5. 初始化向量索引
	index, err := es.NewIndex(cfg.Elasticsearch)
	if err != nil {
		log.Fatal("Elasticsearch 初始化失败", err)
	}
	if err := index.EnsureIndex(provider.Dimensions()); err != nil {
		log.Fatal("向量索引初始化失败", err)
	}

	// 6. 初始化 Repository
	courseRepo := repository.NewCourseRepository(database.DB)
	docRepo := repository.NewDocumentRepository(database.DB)
	conversationRepo := repository.NewConversationRepository(database.RDB)

	// 7. 初始化 Service (依赖注入)
	tikaClient := tika.NewClient(cfg.Tika.ServerURL)
	llmClient := llm.NewClient(cfg.LLM)
	ext := extractor.New(tikaClient)
	courseService := service.NewCourseService(courseRepo, docRepo, index)
	documentService := service.NewDocumentService(courseRepo, docRepo, index, cfg.MinIO)
	searchService := service.NewSearchService(provider, index, cfg.RAG)
	queryService := service.NewQueryService(provider, index, llmClient, conversationRepo, cfg.RAG)

	// 8. 初始化文档处理管道并启动后台 Kafka 消费者
	processor := pipeline.NewProcessor(ext, provider, index, cfg.MinIO, cfg.RAG, courseRepo, docRepo)
	go kafka.StartConsumer(cfg.Kafka, processor)

	// 9. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 10. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		courses := apiV1.Group("/courses")
		{
			courseHandler := handler.NewCourseHandler(courseService)
			courses.POST("", courseHandler.CreateCourse)
			courses.GET("", courseHandler.ListCourses)
			courses.GET("/:courseId", courseHandler.GetCourse)
			courses.DELETE("/:courseId", courseHandler.DeleteCourse)

			documentHandler := handler.NewDocumentHandler(documentService)
			courses.POST("/:courseId/documents", documentHandler.Upload)
			courses.GET("/:courseId/documents", documentHandler.ListDocuments)

			searchHandler := handler.NewSearchHandler(searchService)
			courses.GET("/:courseId/search", searchHandler.Search)

			chatHandler := handler.NewChatHandler(queryService, courseService)
			courses.POST("/:courseId/query", chatHandler.Query)
			courses.GET("/:courseId/chat", chatHandler.HandleWebSocket)
		}

		documents := apiV1.Group("/documents")
		{
			documentHandler := handler.NewDocumentHandler(documentService)
			documents.GET("/:documentId", documentHandler.GetDocument)
			documents.GET("/:documentId/chunks", documentHandler.ListChunks)
			documents.DELETE("/:documentId", documentHandler.DeleteDocument)
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("服务启动失败", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("服务关闭失败", err)
	}
	log.Info("服务已退出")
}
