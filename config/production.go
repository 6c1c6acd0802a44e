// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database          DatabaseConfig          `json:"database"`
	Server            ServerConfig            `json:"server"`
	Security          SecurityConfig          `json:"security"`
	JWT               JWTConfig               `json:"jwt"`
	Logging           LoggingConfig           `json:"logging"`
	Metrics           MetricsConfig           `json:"metrics"`
	Cache             CacheConfig             `json:"cache"`
	Storage           StorageConfig           `json:"storage"`
	Generation        GenerationConfig        `json:"generation"`
	BackgroundRemoval BackgroundRemovalConfig `json:"background_removal"`
	Pipeline          PipelineConfig          `json:"pipeline"`
	Deployment        DeploymentConfig        `json:"deployment"`
}

type DatabaseConfig struct {
	Driver          string        `json:"driver"` // postgres, sqlite
	SQLitePath      string        `json:"sqlite_path"`
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryLog    bool          `json:"slow_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
	AutoMigrate     bool          `json:"auto_migrate"`
}

type ServerConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	ReadTimeout       time.Duration `json:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout"`
	RequestTimeout    time.Duration `json:"request_timeout"`
	BodyLimit         int           `json:"body_limit"`
	EnableMetrics     bool          `json:"enable_metrics"`
	TrustedProxies    []string      `json:"trusted_proxies"`
	ProxyHeader       string        `json:"proxy_header"`
	EnableCompression bool          `json:"enable_compression"`
	CompressionLevel  int           `json:"compression_level"`
}

type SecurityConfig struct {
	// TLS/HTTPS
	TLSEnabled  bool   `json:"tls_enabled"`
	TLSCertFile string `json:"tls_cert_file"`
	TLSKeyFile  string `json:"tls_key_file"`
	HSTSMaxAge  int    `json:"hsts_max_age"`

	// CORS
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	CORSMaxAge       int      `json:"cors_max_age"`

	// Rate Limiting
	AdminRateLimit  int           `json:"admin_rate_limit"`  // requests per minute
	GlobalRateLimit int           `json:"global_rate_limit"` // requests per minute
	RateLimitWindow time.Duration `json:"rate_limit_window"`

	// Content Security
	CSPPolicy      string `json:"csp_policy"`
	XFrameOptions  string `json:"x_frame_options"`
	ReferrerPolicy string `json:"referrer_policy"`
}

// JWTConfig configures reviewer access tokens
type JWTConfig struct {
	SecretKey      string        `json:"secret_key"`
	PrivateKey     string        `json:"private_key"`  // RSA private key in PEM format
	PublicKey      string        `json:"public_key"`   // RSA public key in PEM format
	UseRSAKeys     bool          `json:"use_rsa_keys"` // Whether to use RSA keys instead of secret key
	AccessTokenTTL time.Duration `json:"access_token_ttl"`
	Issuer         string        `json:"issuer"`
	Audience       string        `json:"audience"`
}

type LoggingConfig struct {
	Level            string `json:"level"`  // debug, info, warn, error
	Format           string `json:"format"` // json, console
	Output           string `json:"output"` // stdout, file, both
	FilePath         string `json:"file_path"`
	MaxSize          int    `json:"max_size"` // MB
	MaxBackups       int    `json:"max_backups"`
	MaxAge           int    `json:"max_age"` // days
	Compress         bool   `json:"compress"`
	EnableCaller     bool   `json:"enable_caller"`
	EnableStacktrace bool   `json:"enable_stacktrace"`
	EnableAccessLog  bool   `json:"enable_access_log"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	Enabled     bool          `json:"enabled"`
	Provider    string        `json:"provider"` // redis, none
	RedisURL    string        `json:"redis_url"`
	RedisDB     int           `json:"redis_db"`
	RedisPrefix string        `json:"redis_prefix"`
	DefaultTTL  time.Duration `json:"default_ttl"`
}

// StorageConfig selects the private and public blob stores
type StorageConfig struct {
	Provider        string        `json:"provider"` // gcs, local, memory
	PrivateBucket   string        `json:"private_bucket"`
	PublicBucket    string        `json:"public_bucket"`
	CDNDomain       string        `json:"cdn_domain"`
	CredentialsJSON string        `json:"-"`
	CredentialsFile string        `json:"credentials_file"`
	EmulatorHost    string        `json:"emulator_host"`
	LocalRoot       string        `json:"local_root"`
	PublicBaseURL   string        `json:"public_base_url"`
	PrivateBaseURL  string        `json:"private_base_url"`
	Timeout         time.Duration `json:"timeout"`
}

// GenerationConfig configures the external image generation service
type GenerationConfig struct {
	Provider string        `json:"provider"` // openai, mock
	BaseURL  string        `json:"base_url"`
	APIKey   string        `json:"-"`
	Model    string        `json:"model"`
	Size     string        `json:"size"`
	Timeout  time.Duration `json:"timeout"`
}

// BackgroundRemovalConfig configures the external background removal service
type BackgroundRemovalConfig struct {
	Provider string        `json:"provider"` // http, mock
	URL      string        `json:"url"`
	APIKey   string        `json:"-"`
	Timeout  time.Duration `json:"timeout"`
}

// PipelineConfig tunes generation bookkeeping and composite caching
type PipelineConfig struct {
	MaxGenerationAttempts   int           `json:"max_generation_attempts"`
	DefaultQueuePriority    int           `json:"default_queue_priority"`
	GenerationLockTTL       time.Duration `json:"generation_lock_ttl"`
	ServerCompositorEnabled bool          `json:"server_compositor_enabled"`
	CompositorParallelism   int           `json:"compositor_parallelism"`
	AvatarWidth             int           `json:"avatar_width"`
	AvatarHeight            int           `json:"avatar_height"`
	SceneCacheTTL           time.Duration `json:"scene_cache_ttl"`
	SceneEvictionInterval   time.Duration `json:"scene_eviction_interval"`
	SceneEvictionEnabled    bool          `json:"scene_eviction_enabled"`
}

type DeploymentConfig struct {
	Domain      string `json:"domain"`
	APIDomain   string `json:"api_domain"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
	BuildTime   string `json:"build_time"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// Load environment variables from .env file
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Driver:          getEnvString("DB_DRIVER", "postgres"),
			SQLitePath:      getEnvString("DB_SQLITE_PATH", "asset-forge.db"),
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "asset_forge"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    getEnvBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Host:              getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:       getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      getEnvDuration("SERVER_WRITE_TIMEOUT", 3*time.Minute),
			IdleTimeout:       getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			RequestTimeout:    getEnvDuration("SERVER_REQUEST_TIMEOUT", 3*time.Minute),
			BodyLimit:         getEnvInt("SERVER_BODY_LIMIT", 32*1024*1024), // 32MB, composites arrive inline
			EnableMetrics:     getEnvBool("SERVER_ENABLE_METRICS", true),
			TrustedProxies:    getEnvStringSlice("SERVER_TRUSTED_PROXIES", []string{"127.0.0.1"}),
			ProxyHeader:       getEnvString("SERVER_PROXY_HEADER", "X-Real-IP"),
			EnableCompression: getEnvBool("SERVER_ENABLE_COMPRESSION", true),
			CompressionLevel:  getEnvInt("SERVER_COMPRESSION_LEVEL", 6),
		},
		Security: SecurityConfig{
			TLSEnabled:       getEnvBool("TLS_ENABLED", false),
			TLSCertFile:      getEnvString("TLS_CERT_FILE", ""),
			TLSKeyFile:       getEnvString("TLS_KEY_FILE", ""),
			HSTSMaxAge:       getEnvInt("HSTS_MAX_AGE", 31536000), // 1 year
			AllowedOrigins:   getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:   getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders:   getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			CORSMaxAge:       getEnvInt("CORS_MAX_AGE", 86400),
			AdminRateLimit:   getEnvInt("ADMIN_RATE_LIMIT", 120),
			GlobalRateLimit:  getEnvInt("GLOBAL_RATE_LIMIT", 2000),
			RateLimitWindow:  getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
			CSPPolicy:        getEnvString("CSP_POLICY", "default-src 'self'"),
			XFrameOptions:    getEnvString("X_FRAME_OPTIONS", "DENY"),
			ReferrerPolicy:   getEnvString("REFERRER_POLICY", "strict-origin-when-cross-origin"),
		},
		JWT: JWTConfig{
			SecretKey:      getEnvString("JWT_SECRET_KEY", ""),
			PrivateKey:     getEnvString("JWT_PRIVATE_KEY", ""),
			PublicKey:      getEnvString("JWT_PUBLIC_KEY", ""),
			UseRSAKeys:     getEnvBool("JWT_USE_RSA_KEYS", false),
			AccessTokenTTL: getEnvDuration("JWT_ACCESS_TOKEN_TTL", 12*time.Hour),
			Issuer:         getEnvString("JWT_ISSUER", "asset-forge"),
			Audience:       getEnvString("JWT_AUDIENCE", "asset-forge-admin"),
		},
		Logging: LoggingConfig{
			Level:            getEnvString("LOG_LEVEL", "info"),
			Format:           getEnvString("LOG_FORMAT", "json"),
			Output:           getEnvString("LOG_OUTPUT", "stdout"),
			FilePath:         getEnvString("LOG_FILE_PATH", "/var/log/asset-forge/app.log"),
			MaxSize:          getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups:       getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:           getEnvInt("LOG_MAX_AGE", 30),
			Compress:         getEnvBool("LOG_COMPRESS", true),
			EnableCaller:     getEnvBool("LOG_ENABLE_CALLER", true),
			EnableStacktrace: getEnvBool("LOG_ENABLE_STACKTRACE", false),
			EnableAccessLog:  getEnvBool("LOG_ENABLE_ACCESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:     getEnvBool("CACHE_ENABLED", false),
			Provider:    getEnvString("CACHE_PROVIDER", "redis"),
			RedisURL:    getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:     getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix: getEnvString("CACHE_REDIS_PREFIX", "asset-forge:"),
			DefaultTTL:  getEnvDuration("CACHE_DEFAULT_TTL", 1*time.Hour),
		},
		Storage: StorageConfig{
			Provider:        getEnvString("STORAGE_PROVIDER", "local"),
			PrivateBucket:   getEnvString("STORAGE_PRIVATE_BUCKET", ""),
			PublicBucket:    getEnvString("STORAGE_PUBLIC_BUCKET", ""),
			CDNDomain:       getEnvString("STORAGE_CDN_DOMAIN", ""),
			CredentialsJSON: getEnvString("STORAGE_CREDENTIALS_JSON", ""),
			CredentialsFile: getEnvString("STORAGE_CREDENTIALS_FILE", ""),
			EmulatorHost:    getEnvString("STORAGE_EMULATOR_HOST", ""),
			LocalRoot:       getEnvString("STORAGE_LOCAL_ROOT", "./data/blobs"),
			PublicBaseURL:   getEnvString("STORAGE_PUBLIC_BASE_URL", "http://localhost:8080/static/public"),
			PrivateBaseURL:  getEnvString("STORAGE_PRIVATE_BASE_URL", "http://localhost:8080/static/private"),
			Timeout:         getEnvDuration("STORAGE_TIMEOUT", 2*time.Minute),
		},
		Generation: GenerationConfig{
			Provider: getEnvString("GENERATION_PROVIDER", "mock"),
			BaseURL:  getEnvString("GENERATION_BASE_URL", "https://api.openai.com"),
			APIKey:   getEnvString("GENERATION_API_KEY", ""),
			Model:    getEnvString("GENERATION_MODEL", "gpt-image-1"),
			Size:     getEnvString("GENERATION_SIZE", "1024x1024"),
			Timeout:  getEnvDuration("GENERATION_TIMEOUT", 2*time.Minute),
		},
		BackgroundRemoval: BackgroundRemovalConfig{
			Provider: getEnvString("BG_REMOVAL_PROVIDER", "mock"),
			URL:      getEnvString("BG_REMOVAL_URL", ""),
			APIKey:   getEnvString("BG_REMOVAL_API_KEY", ""),
			Timeout:  getEnvDuration("BG_REMOVAL_TIMEOUT", 1*time.Minute),
		},
		Pipeline: PipelineConfig{
			MaxGenerationAttempts:   getEnvInt("PIPELINE_MAX_GENERATION_ATTEMPTS", 3),
			DefaultQueuePriority:    getEnvInt("PIPELINE_DEFAULT_QUEUE_PRIORITY", 0),
			GenerationLockTTL:       getEnvDuration("PIPELINE_GENERATION_LOCK_TTL", 5*time.Minute),
			ServerCompositorEnabled: getEnvBool("PIPELINE_SERVER_COMPOSITOR_ENABLED", true),
			CompositorParallelism:   getEnvInt("PIPELINE_COMPOSITOR_PARALLELISM", 4),
			AvatarWidth:             getEnvInt("PIPELINE_AVATAR_WIDTH", 512),
			AvatarHeight:            getEnvInt("PIPELINE_AVATAR_HEIGHT", 512),
			SceneCacheTTL:           getEnvDuration("PIPELINE_SCENE_CACHE_TTL", 30*24*time.Hour),
			SceneEvictionInterval:   getEnvDuration("PIPELINE_SCENE_EVICTION_INTERVAL", 6*time.Hour),
			SceneEvictionEnabled:    getEnvBool("PIPELINE_SCENE_EVICTION_ENABLED", true),
		},
		Deployment: DeploymentConfig{
			Domain:      getEnvString("DOMAIN", "localhost"),
			APIDomain:   getEnvString("API_DOMAIN", "localhost"),
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
			CommitHash:  getEnvString("COMMIT_HASH", "unknown"),
			BuildTime:   getEnvString("BUILD_TIME", "unknown"),
		},
	}

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads environment variables from .env file if it exists
func loadEnvFile() error {
	envFile := ".env"

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return nil
	}

	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		// Remove quotes if present
		if len(value) >= 2 && ((strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
			(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`))) {
			value = value[1 : len(value)-1]
		}

		// Set environment variable if not already set
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate database configuration
	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.Host == "" {
			errors = append(errors, "DB_HOST is required")
		}
		if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
			errors = append(errors, "DB_PORT must be between 1 and 65535")
		}
		if cfg.Database.Name == "" {
			errors = append(errors, "DB_NAME is required")
		}
		if cfg.Database.User == "" {
			errors = append(errors, "DB_USER is required")
		}
		if cfg.Database.Password == "" {
			errors = append(errors, "DB_PASSWORD is required")
		}
	case "sqlite":
		if cfg.Database.SQLitePath == "" {
			errors = append(errors, "DB_SQLITE_PATH is required for the sqlite driver")
		}
	default:
		errors = append(errors, "DB_DRIVER must be one of: postgres, sqlite")
	}

	// Validate JWT configuration
	if cfg.JWT.UseRSAKeys {
		if cfg.JWT.PrivateKey == "" || cfg.JWT.PublicKey == "" {
			errors = append(errors, "JWT_PRIVATE_KEY and JWT_PUBLIC_KEY are required when JWT_USE_RSA_KEYS is set")
		}
	} else if len(cfg.JWT.SecretKey) < 32 {
		errors = append(errors, "JWT_SECRET_KEY must be at least 32 characters long")
	}
	if cfg.JWT.AccessTokenTTL <= 0 {
		errors = append(errors, "JWT_ACCESS_TOKEN_TTL must be positive")
	}
	if cfg.JWT.Issuer == "" {
		errors = append(errors, "JWT_ISSUER is required")
	}
	if cfg.JWT.Audience == "" {
		errors = append(errors, "JWT_AUDIENCE is required")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}
	if cfg.Server.IdleTimeout <= 0 {
		errors = append(errors, "SERVER_IDLE_TIMEOUT must be positive")
	}

	// Validate TLS configuration if enabled
	if cfg.Security.TLSEnabled {
		if cfg.Security.TLSCertFile == "" {
			errors = append(errors, "TLS_CERT_FILE is required when TLS is enabled")
		}
		if cfg.Security.TLSKeyFile == "" {
			errors = append(errors, "TLS_KEY_FILE is required when TLS is enabled")
		}
	}

	// Validate logging configuration
	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		if !slices.Contains(validLevels, cfg.Logging.Level) {
			errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}
	if cfg.Logging.Output != "stdout" && cfg.Logging.FilePath == "" {
		errors = append(errors, "LOG_FILE_PATH is required when logging to a file")
	}

	// Validate cache configuration if enabled
	if cfg.Cache.Enabled {
		if cfg.Cache.Provider == "redis" && cfg.Cache.RedisURL == "" {
			errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled with redis provider")
		}
	}

	// Validate storage configuration
	switch cfg.Storage.Provider {
	case "gcs":
		if cfg.Storage.PrivateBucket == "" {
			errors = append(errors, "STORAGE_PRIVATE_BUCKET is required for the gcs provider")
		}
		if cfg.Storage.PublicBucket == "" {
			errors = append(errors, "STORAGE_PUBLIC_BUCKET is required for the gcs provider")
		}
	case "local":
		if cfg.Storage.LocalRoot == "" {
			errors = append(errors, "STORAGE_LOCAL_ROOT is required for the local provider")
		}
	case "memory":
	default:
		errors = append(errors, "STORAGE_PROVIDER must be one of: gcs, local, memory")
	}

	// Validate external services
	switch cfg.Generation.Provider {
	case "openai":
		if cfg.Generation.APIKey == "" {
			errors = append(errors, "GENERATION_API_KEY is required for the openai provider")
		}
		if cfg.Generation.Model == "" {
			errors = append(errors, "GENERATION_MODEL is required for the openai provider")
		}
	case "mock":
	default:
		errors = append(errors, "GENERATION_PROVIDER must be one of: openai, mock")
	}
	if cfg.Generation.Timeout <= 0 {
		errors = append(errors, "GENERATION_TIMEOUT must be positive")
	}

	switch cfg.BackgroundRemoval.Provider {
	case "http":
		if cfg.BackgroundRemoval.URL == "" {
			errors = append(errors, "BG_REMOVAL_URL is required for the http provider")
		}
	case "mock":
	default:
		errors = append(errors, "BG_REMOVAL_PROVIDER must be one of: http, mock")
	}
	if cfg.BackgroundRemoval.Timeout <= 0 {
		errors = append(errors, "BG_REMOVAL_TIMEOUT must be positive")
	}
	if cfg.Server.RequestTimeout <= cfg.Generation.Timeout {
		errors = append(errors, "SERVER_REQUEST_TIMEOUT must be longer than GENERATION_TIMEOUT")
	}
	if cfg.Server.RequestTimeout <= cfg.BackgroundRemoval.Timeout {
		errors = append(errors, "SERVER_REQUEST_TIMEOUT must be longer than BG_REMOVAL_TIMEOUT")
	}

	// Validate pipeline configuration
	if cfg.Pipeline.MaxGenerationAttempts < 1 {
		errors = append(errors, "PIPELINE_MAX_GENERATION_ATTEMPTS must be at least 1")
	}
	if cfg.Pipeline.AvatarWidth <= 0 || cfg.Pipeline.AvatarHeight <= 0 {
		errors = append(errors, "PIPELINE_AVATAR_WIDTH and PIPELINE_AVATAR_HEIGHT must be positive")
	}
	if cfg.Pipeline.SceneEvictionEnabled {
		if cfg.Pipeline.SceneCacheTTL <= 0 {
			errors = append(errors, "PIPELINE_SCENE_CACHE_TTL must be positive when eviction is enabled")
		}
		if cfg.Pipeline.SceneEvictionInterval <= 0 {
			errors = append(errors, "PIPELINE_SCENE_EVICTION_INTERVAL must be positive when eviction is enabled")
		}
	}

	// Return validation errors if any
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
