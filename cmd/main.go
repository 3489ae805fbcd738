package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/fyerfyer/thai-curriculum-rag/api"
	"github.com/fyerfyer/thai-curriculum-rag/api/handler"
	"github.com/fyerfyer/thai-curriculum-rag/api/middleware"
	appconfig "github.com/fyerfyer/thai-curriculum-rag/config"
	"github.com/fyerfyer/thai-curriculum-rag/internal/cache"
	"github.com/fyerfyer/thai-curriculum-rag/internal/database"
	"github.com/fyerfyer/thai-curriculum-rag/internal/document"
	"github.com/fyerfyer/thai-curriculum-rag/internal/embedding"
	"github.com/fyerfyer/thai-curriculum-rag/internal/llm"
	"github.com/fyerfyer/thai-curriculum-rag/internal/repository"
	"github.com/fyerfyer/thai-curriculum-rag/internal/services"
	"github.com/fyerfyer/thai-curriculum-rag/internal/vectordb"
	"github.com/fyerfyer/thai-curriculum-rag/pkg/storage"
	"github.com/fyerfyer/thai-curriculum-rag/pkg/taskqueue"
)

func main() {
	configFile := flag.String("config", "", "Path to config file")
	mode := flag.String("mode", "release", "Run mode (debug/release)")
	logLevel := flag.String("log-level", "info", "Log level (debug/info/warn/error)")
	flag.Parse()

	// .env文件存在时加载，用于本地开发注入密钥
	_ = godotenv.Load()

	cfg, err := appconfig.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	gin.SetMode(*mode)

	logger := setupLogger(*logLevel)
	logger.Info("Starting Thai curriculum RAG service...")

	// 初始化数据库
	if err := database.Setup(&database.Config{
		Type:         cfg.Database.Type,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		MaxLifetime:  time.Hour,
	}, logger); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	// 创建文件存储服务
	fileStorage, err := storage.NewStorage(storage.Config{
		Type:      cfg.Storage.Type,
		LocalPath: cfg.Storage.Path,
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		Bucket:    cfg.Storage.Bucket,
	})
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	// 创建向量数据库
	vectorDB, err := setupVectorDB(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize vector database: %v", err)
	}
	defer vectorDB.Close()

	// 创建嵌入客户端
	embedder, err := embedding.NewClient(
		embedding.WithProvider(cfg.Embed.Provider),
		embedding.WithBaseURL(cfg.Embed.Endpoint),
		embedding.WithModel(cfg.Embed.Model),
		embedding.WithAPIKey(cfg.Embed.APIKey),
		embedding.WithDimensions(cfg.Embed.Dim),
		embedding.WithBatchSize(cfg.Embed.BatchSize),
		embedding.WithTimeout(cfg.EmbedTimeout()),
	)
	if err != nil {
		logger.Fatalf("Failed to initialize embedding client: %v", err)
	}

	// 创建大语言模型客户端
	llmClient, err := llm.NewClient(cfg.LLM.Provider,
		llm.WithBaseURL(cfg.LLM.Endpoint),
		llm.WithModel(cfg.LLM.Model),
		llm.WithMaxTokens(cfg.LLM.MaxTokens),
		llm.WithTemperature(cfg.LLM.Temperature),
		llm.WithTimeout(cfg.LLMTimeout()),
	)
	if err != nil {
		logger.Fatalf("Failed to initialize LLM client: %v", err)
	}

	// 初始化RAG服务
	ragService, err := llm.NewRAG(llmClient,
		llm.WithRAGMaxTokens(cfg.LLM.MaxTokens),
		llm.WithRAGTemperature(cfg.LLM.Temperature),
		llm.WithRAGTimeout(cfg.LLMTimeout()),
	)
	if err != nil {
		logger.Fatalf("Failed to initialize RAG service: %v", err)
	}

	// 初始化任务队列（如果启用）
	var queue taskqueue.Queue
	var worker taskqueue.Worker
	if cfg.Queue.Enable {
		queueConfig := &taskqueue.Config{
			RedisAddr:     cfg.Queue.RedisAddr,
			RedisPassword: cfg.Queue.RedisPassword,
			RedisDB:       cfg.Queue.RedisDB,
			Concurrency:   cfg.Queue.Concurrency,
			RetryLimit:    cfg.Queue.RetryLimit,
			RetryDelay:    time.Duration(cfg.Queue.RetryDelay) * time.Second,
		}
		queue, err = taskqueue.NewRedisQueue(queueConfig)
		if err != nil {
			logger.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer queue.Close()
		logger.WithField("redis_addr", cfg.Queue.RedisAddr).Info("Task queue initialized")
	}

	// 创建内容分类器和动态分段器
	classifier := document.NewClassifier(document.ClassifierConfig{
		MinCourseCodes:        cfg.Document.MinCourseCodes,
		AppendixPageThreshold: cfg.Document.AppendixPageThreshold,
	})
	splitter := document.NewDynamicSplitter(classifier,
		document.WithSplitterLogger(logger),
		document.WithStrategies(chunkStrategies(cfg.Document.Chunks)),
	)

	// 初始化业务服务
	docRepo := repository.NewDocumentRepository()
	statusManager := services.NewDocumentStatusManager(docRepo, logger)

	documentOptions := []services.DocumentOption{
		services.WithDocumentRepository(docRepo),
		services.WithStatusManager(statusManager),
		services.WithBatchSize(cfg.Document.BatchSize),
		services.WithTimeout(time.Duration(cfg.Document.ProcessTimeout) * time.Second),
		services.WithLogger(logger),
	}
	if queue != nil {
		documentOptions = append(documentOptions, services.WithTaskQueue(queue))
		logger.Info("Document processing will use async task queue")
	}

	documentService := services.NewDocumentService(
		fileStorage,
		splitter,
		embedder,
		vectorDB,
		documentOptions...,
	)
	if err := documentService.Init(); err != nil {
		logger.Fatalf("Failed to initialize document service: %v", err)
	}

	chatService := services.NewChatService(repository.NewChatRepository(), logger)

	qaOptions := []services.QAOption{
		services.WithChatService(chatService),
		services.WithSearchLimit(cfg.Search.Limit),
		services.WithMinScore(cfg.Search.MinScore),
		services.WithQALogger(logger),
	}
	if cfg.Cache.Enable {
		cacheService, err := cache.NewCache(cache.Config{
			Type:            cfg.Cache.Type,
			RedisAddr:       cfg.Cache.Address,
			RedisPassword:   cfg.Cache.Password,
			RedisDB:         cfg.Cache.DB,
			DefaultTTL:      cfg.CacheTTL(),
			CleanupInterval: 10 * time.Minute,
		})
		if err != nil {
			logger.Fatalf("Failed to initialize cache: %v", err)
		}
		qaOptions = append(qaOptions, services.WithQACache(cacheService, cfg.CacheTTL()))
	}

	qaService := services.NewQAService(embedder, vectorDB, ragService, qaOptions...)

	// 启动任务队列工作者
	var taskHandler *handler.TaskHandler
	if queue != nil {
		pipeline := taskqueue.NewPipelineHandler(queue, services.NewDocumentProcessorAdapter(documentService), logger)
		worker = taskqueue.NewRedisWorker(queue.(*taskqueue.RedisQueue), nil)
		for _, taskType := range pipeline.GetTaskTypes() {
			worker.RegisterHandler(taskType, pipeline)
		}
		if err := worker.Start(); err != nil {
			logger.Fatalf("Failed to start task queue worker: %v", err)
		}
		taskHandler = handler.NewTaskHandler(queue)
	}

	// 设置路由
	router := api.SetupRouter(
		handler.NewDocumentHandler(documentService),
		handler.NewQAHandler(qaService),
		handler.NewChatHandler(chatService),
		taskHandler,
	)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		logger.Infof("Server is running on %s", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 等待终止信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	if worker != nil {
		worker.Stop()
	}

	logger.Info("Server exited")
}

// setupLogger 设置日志系统
// 日志同时写到标准输出和滚动日志文件
func setupLogger(level string) *logrus.Logger {
	logger := middleware.GetLogger()

	fileWriter := &lumberjack.Logger{
		Filename:   "logs/curriculum-rag.log",
		MaxSize:    50, // MB
		MaxBackups: 5,
		MaxAge:     30, // 天
		Compress:   true,
	}
	logger.SetOutput(io.MultiWriter(os.Stdout, fileWriter))

	switch level {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "info":
		logger.SetLevel(logrus.InfoLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	return logger
}

// chunkStrategies 把配置中的分块表转换为分段器策略
// 未配置的内容类型沿用默认策略的分隔符和大小
func chunkStrategies(chunks map[string]appconfig.ChunkConfig) map[document.ContentKind]document.ChunkingStrategy {
	strategies := make(map[document.ContentKind]document.ChunkingStrategy)
	defaults := document.DefaultStrategies()

	for name, chunk := range chunks {
		kind := document.ContentKind(name)
		strategy, ok := defaults[kind]
		if !ok {
			continue
		}
		if chunk.Size > 0 {
			strategy.ChunkSize = chunk.Size
		}
		if chunk.Overlap > 0 {
			strategy.ChunkOverlap = chunk.Overlap
		}
		strategies[kind] = strategy
	}

	return strategies
}

// setupVectorDB 设置向量数据库
// FAISS初始化失败时回退到内存实现，服务仍可启动
func setupVectorDB(cfg *appconfig.Config, logger *logrus.Logger) (vectordb.Repository, error) {
	distance := vectordb.Cosine
	switch cfg.VectorDB.Distance {
	case "l2":
		distance = vectordb.Euclidean
	case "dot":
		distance = vectordb.DotProduct
	}

	repo, err := vectordb.NewRepository(vectordb.Config{
		Type:              cfg.VectorDB.Type,
		Path:              cfg.VectorDB.Path,
		Dimension:         cfg.VectorDB.Dim,
		DistanceType:      distance,
		CreateIfNotExists: true,
	})
	if err != nil {
		logger.WithError(err).Warn("Failed to initialize configured vector database, falling back to in-memory")
		return vectordb.NewRepository(vectordb.Config{
			Type:         "memory",
			Dimension:    cfg.VectorDB.Dim,
			DistanceType: distance,
			InMemory:     true,
		})
	}

	return repo, nil
}
