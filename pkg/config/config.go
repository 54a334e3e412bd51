package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Storage    StorageConfig
	OCR        OCRConfig
	GigaChat   GigaChatConfig
	Gateway    GatewayConfig
	Services   ServicesConfig
	Documents  DocumentsConfig
	Logger     LoggerConfig
	Repository RepositoryConfig
}

type LoggerConfig struct {
	Level string
}

type ServerConfig struct {
	GatewayPort   string
	AuthPort      string
	DocumentsPort string
	FinancialPort string
	OCRPort       string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
}

type DatabaseConfig struct {
	Host        string
	Port        string
	User        string
	Password    string
	DBName      string
	SSLMode     string
	MaxConns    int32
	AutoMigrate bool
}

// RepositoryConfig selects the persistence backend at startup.
type RepositoryConfig struct {
	Backend string // "postgres" or "memory"
}

// DefaultJWTSecret is the placeholder used when JWT_SECRET_KEY is unset.
const DefaultJWTSecret = "your-secret-key-change-in-production"

type JWTConfig struct {
	SecretKey  string
	Expiration time.Duration
}

// UsesDefaultSecret reports whether tokens are signed with the placeholder.
func (c JWTConfig) UsesDefaultSecret() bool {
	return c.SecretKey == DefaultJWTSecret
}

type StorageConfig struct {
	Endpoint        string
	Region          string
	AccessKey       string
	SecretKey       string
	Bucket          string
	ConnectAttempts uint64
	BaseBackoff     time.Duration
	MaxBackoff      time.Duration
}

type OCRConfig struct {
	ServiceURL string
	InProcess  bool // run the OCR pipeline inside the document service
	Timeout    time.Duration
	Provider   string // "tesseract" or "gigachat"
	Language   string
	Workers    int
	QueueSize  int
}

type GigaChatConfig struct {
	APIKey             string
	Scope              string
	InsecureSkipVerify bool
}

type GatewayConfig struct {
	AuthURL         string
	DocumentsURL    string
	FinancialURL    string
	OCRURL          string
	DefaultTimeout  time.Duration
	ProcessTimeout  time.Duration
	RateLimitMax    int
	RateLimitWindow time.Duration
	AllowedOrigins  string
}

type ServicesConfig struct {
	LedgerURL     string
	LedgerTimeout time.Duration
}

type DocumentsConfig struct {
	MaxUploadSize int64
}

func Load() (*Config, error) {
	// .env is optional; plain environment variables work for containers.
	for _, envFile := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	return &Config{
		Server: ServerConfig{
			GatewayPort:   getEnv("GATEWAY_PORT", "3000"),
			AuthPort:      getEnv("AUTH_PORT", "3001"),
			DocumentsPort: getEnv("DOCUMENTS_PORT", "3002"),
			FinancialPort: getEnv("FINANCIAL_PORT", "3003"),
			OCRPort:       getEnv("OCR_PORT", "8000"),
			ReadTimeout:   getSeconds("SERVER_READ_TIMEOUT", 30),
			WriteTimeout:  getSeconds("SERVER_WRITE_TIMEOUT", 120),
		},
		Database: DatabaseConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnv("DB_PORT", "5432"),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", "postgres"),
			DBName:      getEnv("DB_NAME", "gestor_financiero"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			MaxConns:    int32(getInt("DB_MAX_CONNS", 10)),
			AutoMigrate: getBool("DB_AUTO_MIGRATE", true),
		},
		Repository: RepositoryConfig{
			Backend: strings.ToLower(getEnv("REPOSITORY_BACKEND", "postgres")),
		},
		JWT: JWTConfig{
			SecretKey:  getEnv("JWT_SECRET_KEY", DefaultJWTSecret),
			Expiration: time.Duration(getInt("JWT_EXPIRATION_HOURS", 24)) * time.Hour,
		},
		Storage: StorageConfig{
			Endpoint:        getEnv("MINIO_ENDPOINT", "http://minio:9000"),
			Region:          getEnv("MINIO_REGION", "us-east-1"),
			AccessKey:       getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey:       getEnv("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:          getEnv("MINIO_BUCKET", "documents"),
			ConnectAttempts: uint64(getInt("MINIO_CONNECT_ATTEMPTS", 30)),
			BaseBackoff:     time.Duration(getInt("MINIO_BASE_BACKOFF_MS", 1000)) * time.Millisecond,
			MaxBackoff:      getSeconds("MINIO_MAX_BACKOFF", 30),
		},
		OCR: OCRConfig{
			ServiceURL: getEnv("OCR_SERVICE_URL", "http://ocr-service:8000"),
			InProcess:  getBool("OCR_IN_PROCESS", false),
			Timeout:    getSeconds("OCR_TIMEOUT", 60),
			Provider:   strings.ToLower(getEnv("OCR_PROVIDER", "tesseract")),
			Language:   getEnv("OCR_LANGUAGE", "spa"),
			Workers:    getInt("OCR_WORKERS", 4),
			QueueSize:  getInt("OCR_QUEUE_SIZE", 64),
		},
		GigaChat: GigaChatConfig{
			APIKey:             getEnv("GIGACHAT_API_KEY", ""),
			Scope:              getEnv("GIGACHAT_SCOPE", "GIGACHAT_API_PERS"),
			InsecureSkipVerify: getBool("GIGACHAT_INSECURE_SKIP_VERIFY", false),
		},
		Gateway: GatewayConfig{
			AuthURL:         getEnv("AUTH_SERVICE_URL", "http://auth-service:3001"),
			DocumentsURL:    getEnv("DOCUMENT_SERVICE_URL", "http://document-service:3002"),
			FinancialURL:    getEnv("FINANCIAL_SERVICE_URL", "http://financial-service:3003"),
			OCRURL:          getEnv("OCR_SERVICE_URL", "http://ocr-service:8000"),
			DefaultTimeout:  getSeconds("GATEWAY_TIMEOUT", 30),
			ProcessTimeout:  getSeconds("GATEWAY_PROCESS_TIMEOUT", 60),
			RateLimitMax:    getInt("GATEWAY_RATE_LIMIT_MAX", 100),
			RateLimitWindow: getSeconds("GATEWAY_RATE_LIMIT_WINDOW", 15*60),
			AllowedOrigins:  getEnv("GATEWAY_ALLOWED_ORIGINS", "*"),
		},
		Services: ServicesConfig{
			LedgerURL:     getEnv("FINANCIAL_SERVICE_URL", "http://financial-service:3003"),
			LedgerTimeout: getSeconds("LEDGER_TIMEOUT", 30),
		},
		Documents: DocumentsConfig{
			MaxUploadSize: int64(getInt("MAX_UPLOAD_SIZE_MB", 10)) * 1024 * 1024,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getInt(key, defaultSeconds)) * time.Second
}
