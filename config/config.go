package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AppConfig holds environment driven configuration values.
// Secrets (database, redis and minio credentials) have no defaults and must come from the config file or the environment.
type AppConfig struct {
	AppPort            string
	RateLimitPerMinute int
	AllowedOrigins     []string
	// PublicOrigin prefixes share links (<origin>/resource/<id>); empty means "derive from request".
	PublicOrigin string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Catalog store
	StoreBackend    string // memory | redis | mysql
	CatalogKey      string
	ThemeKey        string
	DisableSeed     bool
	CollationLocale string
	QueryCacheSize  int
	QueryCacheTTL   int // seconds
	StorageQuotaGB  float64
	// MySQL (store backend "mysql")
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Redis (store backend "redis")
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Blob storage for uploaded bytes
	BlobBackend     string // local | minio
	UploadDir       string
	UploadURLPrefix string
	MaxUploadMB     int
	// MinIO (blob backend "minio")
	MinIOEndpoint      string
	MinIOAccessKey     string
	MinIOSecretKey     string
	MinIOUseSSL        bool
	MinIORegion        string
	MinIOBucket        string
	MinIOPublicBaseURL string
	// Upload pipeline
	ThumbnailMaxSize int
	ThumbnailQuality int
	ThumbnailMaxMP   int // decoded size limit in megapixels
	ProgressTickMS   int
	ProgressMaxStep  int
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	// Precedence: config file -> defaults -> environment variable overrides
	path := getEnv("CONFIG_FILE", filepath.Join("config", "config.json"))
	if err := loadJSONConfig(path, &cfg); err != nil {
		log.Fatalf("invalid config file %s: %v", path, err)
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads a grouped JSON file into out if present. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	getString := func(m map[string]any, key string) string {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}
	getFloat := func(m map[string]any, key string) float64 {
		if v, ok := m[key]; ok {
			if f, ok := v.(float64); ok {
				return f
			}
		}
		return 0
	}
	getInt := func(m map[string]any, key string) int {
		return int(getFloat(m, key))
	}
	getBool := func(m map[string]any, key string) bool {
		if v, ok := m[key]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
		return false
	}
	getStringSlice := func(m map[string]any, key string) []string {
		if v, ok := m[key]; ok {
			if arr, ok := v.([]any); ok {
				res := make([]string, 0, len(arr))
				for _, it := range arr {
					if s, ok := it.(string); ok {
						res = append(res, s)
					}
				}
				return res
			}
		}
		return nil
	}

	if app, ok := raw["app"].(map[string]any); ok {
		out.AppPort = getString(app, "AppPort")
		out.RateLimitPerMinute = getInt(app, "RateLimitPerMinute")
		out.AllowedOrigins = getStringSlice(app, "AllowedOrigins")
		out.PublicOrigin = getString(app, "PublicOrigin")
	}

	if g, ok := raw["gin"].(map[string]any); ok {
		out.GinMode = getString(g, "Mode")
		out.GinPath = getString(g, "LogPath")
	}

	if st, ok := raw["store"].(map[string]any); ok {
		out.StoreBackend = getString(st, "Backend")
		out.CatalogKey = getString(st, "CatalogKey")
		out.ThemeKey = getString(st, "ThemeKey")
		out.DisableSeed = getBool(st, "DisableSeed")
	}

	if cat, ok := raw["catalog"].(map[string]any); ok {
		out.CollationLocale = getString(cat, "CollationLocale")
		out.QueryCacheSize = getInt(cat, "QueryCacheSize")
		out.QueryCacheTTL = getInt(cat, "QueryCacheTTLSec")
		out.StorageQuotaGB = getFloat(cat, "StorageQuotaGB")
	}

	if dbs, ok := raw["database"].(map[string]any); ok {
		out.DatabaseURI = getString(dbs, "DatabaseURI")
		out.DBHost = getString(dbs, "DBHost")
		out.DBPort = getString(dbs, "DBPort")
		out.DBUser = getString(dbs, "DBUser")
		out.DBPassword = getString(dbs, "DBPassword")
		out.DBName = getString(dbs, "DBName")
	}

	if rds, ok := raw["redis"].(map[string]any); ok {
		out.RedisHost = getString(rds, "RedisHost")
		out.RedisPort = getInt(rds, "RedisPort")
		out.RedisDB = getInt(rds, "RedisDB")
		out.RedisPassword = getString(rds, "RedisPassword")
	}

	if bl, ok := raw["blob"].(map[string]any); ok {
		out.BlobBackend = getString(bl, "Backend")
		out.UploadDir = getString(bl, "UploadDir")
		out.UploadURLPrefix = getString(bl, "URLPrefix")
		out.MaxUploadMB = getInt(bl, "MaxUploadMB")
	}

	if mn, ok := raw["minio"].(map[string]any); ok {
		out.MinIOEndpoint = getString(mn, "Endpoint")
		out.MinIOAccessKey = getString(mn, "AccessKey")
		out.MinIOSecretKey = getString(mn, "SecretKey")
		out.MinIOUseSSL = getBool(mn, "UseSSL")
		out.MinIORegion = getString(mn, "Region")
		out.MinIOBucket = getString(mn, "Bucket")
		out.MinIOPublicBaseURL = getString(mn, "PublicBaseURL")
	}

	if up, ok := raw["upload"].(map[string]any); ok {
		out.ThumbnailMaxSize = getInt(up, "ThumbnailMaxSize")
		out.ThumbnailQuality = getInt(up, "ThumbnailQuality")
		out.ThumbnailMaxMP = getInt(up, "ThumbnailMaxMegapixels")
		out.ProgressTickMS = getInt(up, "ProgressTickMS")
		out.ProgressMaxStep = getInt(up, "ProgressMaxStep")
	}

	if lg, ok := raw["log"].(map[string]any); ok {
		out.LogLevel = getString(lg, "Level")
		out.LogPath = getString(lg, "Path")
		out.LogMaxSizeMB = getInt(lg, "MaxSizeMB")
		out.LogMaxBackups = getInt(lg, "MaxBackups")
		out.LogMaxAgeDays = getInt(lg, "MaxAgeDays")
		out.LogCompress = getBool(lg, "Compress")
	}

	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.StoreBackend == "" {
		c.StoreBackend = "redis"
	}
	if c.CatalogKey == "" {
		c.CatalogKey = "resources"
	}
	if c.ThemeKey == "" {
		c.ThemeKey = "theme"
	}
	if c.CollationLocale == "" {
		c.CollationLocale = "zh"
	}
	if c.QueryCacheSize == 0 {
		c.QueryCacheSize = 128
	}
	if c.QueryCacheTTL == 0 {
		c.QueryCacheTTL = 30
	}
	if c.StorageQuotaGB == 0 {
		c.StorageQuotaGB = 10
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "myresource"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.BlobBackend == "" {
		c.BlobBackend = "local"
	}
	if c.UploadDir == "" {
		c.UploadDir = filepath.Join("static", "uploads")
	}
	if c.UploadURLPrefix == "" {
		c.UploadURLPrefix = "/static/uploads"
	}
	if c.MaxUploadMB == 0 {
		c.MaxUploadMB = 500
	}
	if c.MinIOBucket == "" {
		c.MinIOBucket = "resources"
	}
	if c.ThumbnailMaxSize == 0 {
		c.ThumbnailMaxSize = 200
	}
	if c.ThumbnailQuality == 0 {
		c.ThumbnailQuality = 70
	}
	if c.ThumbnailMaxMP == 0 {
		c.ThumbnailMaxMP = 50
	}
	if c.ProgressTickMS == 0 {
		c.ProgressTickMS = 200
	}
	if c.ProgressMaxStep == 0 {
		c.ProgressMaxStep = 10
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	if v := getEnv("APP_PORT", ""); v != "" {
		c.AppPort = v
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		c.RateLimitPerMinute = mustParseInt(v)
	}
	if v := getEnv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = readListEnv("CORS_ALLOWED_ORIGINS", c.AllowedOrigins)
	}
	if v := getEnv("PUBLIC_ORIGIN", ""); v != "" {
		c.PublicOrigin = v
	}
	if v := getEnv("GIN_MODE", ""); v != "" {
		c.GinMode = v
	}
	if v := getEnv("GIN_PATH", ""); v != "" {
		c.GinPath = v
	}
	if v := getEnv("STORE_BACKEND", ""); v != "" {
		c.StoreBackend = strings.ToLower(v)
	}
	if v := getEnv("STORE_CATALOG_KEY", ""); v != "" {
		c.CatalogKey = v
	}
	if v := getEnv("STORE_THEME_KEY", ""); v != "" {
		c.ThemeKey = v
	}
	if v := getEnv("STORE_DISABLE_SEED", ""); v != "" {
		c.DisableSeed = v == "true"
	}
	if v := getEnv("COLLATION_LOCALE", ""); v != "" {
		c.CollationLocale = v
	}
	if v := getEnv("QUERY_CACHE_SIZE", ""); v != "" {
		c.QueryCacheSize = mustParseInt(v)
	}
	if v := getEnv("QUERY_CACHE_TTL_SEC", ""); v != "" {
		c.QueryCacheTTL = mustParseInt(v)
	}
	if v := getEnv("STORAGE_QUOTA_GB", ""); v != "" {
		c.StorageQuotaGB = mustParseFloat(v)
	}
	if v := getEnv("DATABASE_URI", ""); v != "" {
		c.DatabaseURI = v
	}
	if v := getEnv("DB_HOST", ""); v != "" {
		c.DBHost = v
	}
	if v := getEnv("DB_PORT", ""); v != "" {
		c.DBPort = v
	}
	if v := getEnv("DB_USER", ""); v != "" {
		c.DBUser = v
	}
	if v := getEnv("DB_PASSWORD", ""); v != "" {
		c.DBPassword = v
	}
	if v := getEnv("DB_NAME", ""); v != "" {
		c.DBName = v
	}
	if v := getEnv("REDIS_HOST", ""); v != "" {
		c.RedisHost = v
	}
	if v := getEnv("REDIS_PORT", ""); v != "" {
		c.RedisPort = mustParseInt(v)
	}
	if v := getEnv("REDIS_DB", ""); v != "" {
		c.RedisDB = mustParseInt(v)
	}
	if v := getEnv("REDIS_PASSWORD", ""); v != "" {
		c.RedisPassword = v
	}
	if v := getEnv("BLOB_BACKEND", ""); v != "" {
		c.BlobBackend = strings.ToLower(v)
	}
	if v := getEnv("UPLOAD_DIR", ""); v != "" {
		c.UploadDir = v
	}
	if v := getEnv("UPLOAD_URL_PREFIX", ""); v != "" {
		c.UploadURLPrefix = v
	}
	if v := getEnv("MAX_UPLOAD_MB", ""); v != "" {
		c.MaxUploadMB = mustParseInt(v)
	}
	if v := getEnv("MINIO_ENDPOINT", ""); v != "" {
		c.MinIOEndpoint = v
	}
	if v := getEnv("MINIO_ACCESS_KEY", ""); v != "" {
		c.MinIOAccessKey = v
	}
	if v := getEnv("MINIO_SECRET_KEY", ""); v != "" {
		c.MinIOSecretKey = v
	}
	if v := getEnv("MINIO_USE_SSL", ""); v != "" {
		c.MinIOUseSSL = v == "true"
	}
	if v := getEnv("MINIO_REGION", ""); v != "" {
		c.MinIORegion = v
	}
	if v := getEnv("MINIO_BUCKET", ""); v != "" {
		c.MinIOBucket = v
	}
	if v := getEnv("MINIO_PUBLIC_BASE_URL", ""); v != "" {
		c.MinIOPublicBaseURL = v
	}
	if v := getEnv("THUMBNAIL_MAX_SIZE", ""); v != "" {
		c.ThumbnailMaxSize = mustParseInt(v)
	}
	if v := getEnv("THUMBNAIL_QUALITY", ""); v != "" {
		c.ThumbnailQuality = mustParseInt(v)
	}
	if v := getEnv("THUMBNAIL_MAX_MEGAPIXELS", ""); v != "" {
		c.ThumbnailMaxMP = mustParseInt(v)
	}
	if v := getEnv("PROGRESS_TICK_MS", ""); v != "" {
		c.ProgressTickMS = mustParseInt(v)
	}
	if v := getEnv("PROGRESS_MAX_STEP", ""); v != "" {
		c.ProgressMaxStep = mustParseInt(v)
	}
	// Logging env overrides
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("LOG_PATH", ""); v != "" {
		c.LogPath = v
	}
	if v := getEnv("LOG_MAX_SIZE_MB", ""); v != "" {
		c.LogMaxSizeMB = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_BACKUPS", ""); v != "" {
		c.LogMaxBackups = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_AGE_DAYS", ""); v != "" {
		c.LogMaxAgeDays = mustParseInt(v)
	}
	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = v == "true"
	}
}

func mustParseInt(val string) int {
	i, err := strconv.Atoi(val)
	if err != nil {
		log.Fatalf("invalid integer value %s: %v", val, err)
	}
	return i
}

func mustParseFloat(val string) float64 {
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		log.Fatalf("invalid number value %s: %v", val, err)
	}
	return f
}

func readListEnv(key string, defaults []string) []string {
	if raw := os.Getenv(key); raw != "" {
		return splitAndTrim(raw)
	}
	return defaults
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
