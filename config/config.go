package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用程序配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	VectorDB VectorDBConfig `mapstructure:"vectordb"`
	Embed    EmbedConfig    `mapstructure:"embed"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Document DocumentConfig `mapstructure:"document"`
	Search   SearchConfig   `mapstructure:"search"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"` // 服务器主机
	Port int    `mapstructure:"port"` // 服务器端口
}

// StorageConfig 存储配置
type StorageConfig struct {
	Type      string `mapstructure:"type"`     // 存储类型：local 或 minio
	Path      string `mapstructure:"path"`     // 本地存储路径
	Bucket    string `mapstructure:"bucket"`   // MinIO桶名称
	Endpoint  string `mapstructure:"endpoint"` // MinIO端点
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"` // 是否使用SSL
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // 数据库类型，目前支持sqlite
	DSN  string `mapstructure:"dsn"`  // 数据源名称
}

// VectorDBConfig 向量数据库配置
type VectorDBConfig struct {
	Type     string `mapstructure:"type"`     // 向量数据库类型：memory 或 faiss
	Path     string `mapstructure:"path"`     // 数据库文件路径
	Dim      int    `mapstructure:"dim"`      // 向量维度
	Distance string `mapstructure:"distance"` // 距离度量方式：cosine, l2, dot
}

// EmbedConfig 向量嵌入模型配置
type EmbedConfig struct {
	Provider  string `mapstructure:"provider"`   // 提供商：ollama 或 openai
	Model     string `mapstructure:"model"`      // 模型名称
	APIKey    string `mapstructure:"api_key"`    // API密钥（Ollama不需要）
	Endpoint  string `mapstructure:"endpoint"`   // API端点
	BatchSize int    `mapstructure:"batch_size"` // 批处理大小
	Dim       int    `mapstructure:"dim"`        // 向量维度
	Timeout   int    `mapstructure:"timeout"`    // 请求超时（秒）
}

// LLMConfig 大语言模型配置
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`    // 提供商，目前支持ollama
	Model       string  `mapstructure:"model"`       // 模型名称
	Endpoint    string  `mapstructure:"endpoint"`    // API端点
	MaxTokens   int     `mapstructure:"max_tokens"`  // 最大生成token数量
	Temperature float32 `mapstructure:"temperature"` // 采样温度
	Timeout     int     `mapstructure:"timeout"`     // 请求超时（秒）
}

// CacheConfig 问答缓存配置
type CacheConfig struct {
	Enable   bool   `mapstructure:"enable"`   // 是否启用缓存
	Type     string `mapstructure:"type"`     // 缓存类型：memory 或 redis
	Address  string `mapstructure:"address"`  // Redis地址
	Password string `mapstructure:"password"` // Redis密码
	DB       int    `mapstructure:"db"`       // Redis数据库
	TTL      int    `mapstructure:"ttl"`      // 缓存TTL（秒）
}

// QueueConfig 异步任务队列配置
type QueueConfig struct {
	Enable        bool   `mapstructure:"enable"`         // 是否启用异步处理
	RedisAddr     string `mapstructure:"redis_addr"`     // Redis地址
	RedisPassword string `mapstructure:"redis_password"` // Redis密码
	RedisDB       int    `mapstructure:"redis_db"`       // Redis数据库编号
	Concurrency   int    `mapstructure:"concurrency"`    // 任务处理并发数
	RetryLimit    int    `mapstructure:"retry_limit"`    // 任务最大重试次数
	RetryDelay    int    `mapstructure:"retry_delay"`    // 重试延迟(秒)
}

// DocumentConfig 文档处理配置
type DocumentConfig struct {
	MinCourseCodes        int                    `mapstructure:"min_course_codes"`        // 判定学习计划表所需的最少课程代码数
	AppendixPageThreshold int                    `mapstructure:"appendix_page_threshold"` // 超过该页码倾向判定为附录
	BatchSize             int                    `mapstructure:"batch_size"`              // 向量化批处理大小
	ProcessTimeout        int                    `mapstructure:"process_timeout"`         // 单文档处理超时（秒）
	Chunks                map[string]ChunkConfig `mapstructure:"chunks"`                  // 按内容类型覆盖分块策略
}

// ChunkConfig 单个内容类型的分块策略
// 键为内容类型名：general, curriculum_table, course_description, appendix
type ChunkConfig struct {
	Size    int `mapstructure:"size"`    // 分块大小（rune数）
	Overlap int `mapstructure:"overlap"` // 分块重叠（rune数）
}

// SearchConfig 检索配置
type SearchConfig struct {
	Limit    int     `mapstructure:"limit"`     // 检索结果数量限制
	MinScore float32 `mapstructure:"min_score"` // 最低相似度分数
}

// Load 从文件和环境变量加载配置
func Load(configPath string) (*Config, error) {
	var config Config

	// 设置默认配置路径
	if configPath == "" {
		configPath = "config.yaml" // 默认在当前目录寻找config.yaml
	}

	// 初始化viper
	v := viper.New()

	// 设置配置文件路径和类型
	v.SetConfigFile(configPath)

	// 尝试读取配置文件
	if err := v.ReadInConfig(); err != nil {
		// 如果找不到配置文件，创建一个默认配置文件
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found at %s, using defaults", configPath)
			setDefaults(v)
			// 创建默认配置文件
			dir := filepath.Dir(configPath)
			if err := os.MkdirAll(dir, 0755); err == nil {
				if err := v.WriteConfigAs(configPath); err != nil {
					log.Printf("Warning: Could not write default config to %s: %v", configPath, err)
				}
			}
		} else {
			return nil, fmt.Errorf("failed to read config file: %v", err)
		}
	} else {
		log.Printf("Using config file: %s", v.ConfigFileUsed())
	}

	// 设置默认值
	setDefaults(v)

	// 支持环境变量覆盖
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 解析配置到结构体
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %v", err)
	}

	// 处理配置中的环境变量占位符
	resConfig := processEnvironmentVariables(&config)

	return resConfig, nil
}

// processEnvironmentVariables 处理配置项中的 ${VAR} 环境变量引用
func processEnvironmentVariables(cfg *Config) *Config {
	// 处理嵌入API密钥
	if strings.HasPrefix(cfg.Embed.APIKey, "${") && strings.HasSuffix(cfg.Embed.APIKey, "}") {
		envVar := cfg.Embed.APIKey[2 : len(cfg.Embed.APIKey)-1]
		if envVal := os.Getenv(envVar); envVal != "" {
			cfg.Embed.APIKey = envVal
		}
	}

	// 处理MinIO秘密密钥
	if strings.HasPrefix(cfg.Storage.SecretKey, "${") && strings.HasSuffix(cfg.Storage.SecretKey, "}") {
		envVar := cfg.Storage.SecretKey[2 : len(cfg.Storage.SecretKey)-1]
		if envVal := os.Getenv(envVar); envVal != "" {
			cfg.Storage.SecretKey = envVal
		}
	}

	return cfg
}

// EmbedTimeout 返回嵌入请求超时时间
func (c *Config) EmbedTimeout() time.Duration {
	return time.Duration(c.Embed.Timeout) * time.Second
}

// LLMTimeout 返回大模型请求超时时间
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.Timeout) * time.Second
}

// CacheTTL 返回缓存过期时间
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTL) * time.Second
}

// Addr 返回服务器监听地址
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	// 存储默认配置
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "data/uploads")
	v.SetDefault("storage.bucket", "curriculum")
	v.SetDefault("storage.use_ssl", false)

	// 数据库默认配置
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/curriculum.db")

	// 向量数据库默认配置
	v.SetDefault("vectordb.type", "faiss")
	v.SetDefault("vectordb.path", "data/vectordb")
	v.SetDefault("vectordb.dim", 768) // nomic-embed-text 维度
	v.SetDefault("vectordb.distance", "cosine")

	// Embedding默认配置
	v.SetDefault("embed.provider", "ollama")
	v.SetDefault("embed.model", "nomic-embed-text")
	v.SetDefault("embed.endpoint", "http://localhost:11434")
	v.SetDefault("embed.batch_size", 16)
	v.SetDefault("embed.dim", 768)
	v.SetDefault("embed.timeout", 60)

	// LLM默认配置
	v.SetDefault("llm.provider", "ollama")
	v.SetDefault("llm.model", "llama3.1:8b")
	v.SetDefault("llm.endpoint", "http://localhost:11434")
	v.SetDefault("llm.max_tokens", 512)
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.timeout", 120)

	// 缓存默认配置
	v.SetDefault("cache.enable", true)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", 86400) // 24小时

	// 队列默认配置
	v.SetDefault("queue.enable", false)
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("queue.retry_limit", 3)
	v.SetDefault("queue.retry_delay", 60)

	// 文档处理默认配置
	v.SetDefault("document.min_course_codes", 3)
	v.SetDefault("document.appendix_page_threshold", 45)
	v.SetDefault("document.batch_size", 16)
	v.SetDefault("document.process_timeout", 300)
	v.SetDefault("document.chunks.general.size", 1000)
	v.SetDefault("document.chunks.general.overlap", 200)
	v.SetDefault("document.chunks.curriculum_table.size", 3000)
	v.SetDefault("document.chunks.curriculum_table.overlap", 500)
	v.SetDefault("document.chunks.course_description.size", 1500)
	v.SetDefault("document.chunks.course_description.overlap", 300)
	v.SetDefault("document.chunks.appendix.size", 800)
	v.SetDefault("document.chunks.appendix.overlap", 150)

	// 检索默认配置
	v.SetDefault("search.limit", 5)
	v.SetDefault("search.min_score", 0)
}
