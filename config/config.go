package config

import (
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 支持的存储驱动
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// 资源存储后端
const (
	AssetLocal = "local"
	AssetMinio = "minio"
)

// Config stores the application configuration.
type Config struct {
	HTTPAddr      string        `yaml:"http_addr"`
	PublicBaseURL string        `yaml:"public_base_url"`
	JWTSecret     string        `yaml:"jwt_secret"`
	JWTTTL        time.Duration `yaml:"jwt_ttl"`

	DBDriver   string `yaml:"db_driver"`
	DBHost     string `yaml:"db_host"`
	DBPort     string `yaml:"db_port"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBName     string `yaml:"db_name"`
	SQLitePath string `yaml:"sqlite_path"`

	MongoURI          string `yaml:"mongo_uri"`
	MongoDB           string `yaml:"mongo_db"`
	MongoTransactions bool   `yaml:"mongo_transactions"`

	AssetBackend   string `yaml:"asset_backend"`
	UploadDir      string `yaml:"upload_dir"`
	MinioEndpoint  string `yaml:"minio_endpoint"`
	MinioAccessKey string `yaml:"minio_access_key"`
	MinioSecretKey string `yaml:"minio_secret_key"`
	MinioBucket    string `yaml:"minio_bucket"`
	MinioUseSSL    bool   `yaml:"minio_use_ssl"`
	MinioRegion    string `yaml:"minio_region"`

	MaxAudioMB        int      `yaml:"max_audio_mb"`
	AllowedAudioTypes []string `yaml:"allowed_audio_types"`

	// Redis配置，CacheTTL 为 0 时不启用列表缓存
	RedisHost     string        `yaml:"redis_host"`
	RedisPort     string        `yaml:"redis_port"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`

	LogLevel string `yaml:"log_level"`
	LogPath  string `yaml:"log_path"`

	AdminSeed     bool   `yaml:"admin_seed"`
	AdminName     string `yaml:"admin_name"`
	AdminLogin    string `yaml:"admin_login"`
	AdminPassword string `yaml:"admin_password"`

	ResetTokenTTL time.Duration `yaml:"reset_token_ttl"`
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration 接受 "1h"、"90s" 这类写法，纯数字按秒处理
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() 不会覆盖已存在的环境变量
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}
	return FromEnv()
}

// FromEnv 只读取当前环境变量，不加载 .env
func FromEnv() *Config {
	driver := strings.ToLower(getEnv("DB_DRIVER", DriverSQLite))
	defaultPort := "3306"
	if driver == DriverPostgres {
		defaultPort = "5432"
	}

	return &Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":5000"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:5000"), "/"),
		JWTSecret:     getEnv("JWT_SECRET", "change-me"),
		JWTTTL:        getEnvDuration("JWT_TTL", time.Hour),

		DBDriver:   driver,
		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", defaultPort),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "romaly"),
		SQLitePath: getEnv("SQLITE_PATH", "romaly.db"),

		MongoURI:          getEnv("MONGO_URI", "mongodb://127.0.0.1:27017"),
		MongoDB:           getEnv("MONGO_DB", "romaly"),
		MongoTransactions: getEnvBool("MONGO_TRANSACTIONS", false),

		AssetBackend:   strings.ToLower(getEnv("ASSET_BACKEND", AssetLocal)),
		UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "romaly"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		MinioRegion:    getEnv("MINIO_REGION", ""),

		MaxAudioMB:        getEnvInt("MAX_AUDIO_MB", 20),
		AllowedAudioTypes: getEnvList("ALLOWED_AUDIO_TYPES", []string{"audio/mpeg", "audio/mp3"}),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      getEnvDuration("CACHE_TTL", 0),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogPath:  getEnv("LOG_PATH", ""),

		AdminSeed:     getEnvBool("ADMIN_SEED", false),
		AdminName:     getEnv("ADMIN_NAME", "admin"),
		AdminLogin:    getEnv("ADMIN_LOGIN", "admin@example.com"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		ResetTokenTTL: getEnvDuration("RESET_TOKEN_TTL", time.Hour),
	}
}

// UsesMongo 判断是否走文档存储
func (c *Config) UsesMongo() bool {
	return c.DBDriver == DriverMongo
}

// CacheEnabled 是否启用 Redis 列表缓存
func (c *Config) CacheEnabled() bool {
	return c.CacheTTL > 0
}

const masked = "******"

// Write 以 YAML 输出当前配置，敏感字段打码
func (c *Config) Write(dst io.Writer) error {
	cp := *c
	for _, s := range []*string{&cp.JWTSecret, &cp.DBPassword, &cp.MinioSecretKey, &cp.RedisPassword, &cp.AdminPassword} {
		if *s != "" {
			*s = masked
		}
	}
	enc := yaml.NewEncoder(dst)
	enc.SetIndent(2)
	if err := enc.Encode(&cp); err != nil {
		return err
	}
	return enc.Close()
}
