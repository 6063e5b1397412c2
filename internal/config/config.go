package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/langchou/chargegazer/internal/analytics"
)

type Config struct {
	// Server
	ServerPort     string
	Debug          bool
	MaxUploadBytes int64

	// Database，为空时车队数据只保存在内存中
	DatabaseURL string

	// 演示数据文件，为空时使用内置数据
	DemoDataFile string

	// Analytics
	SimilarityThreshold  float64
	MinGroupSessions     int
	TopProviders         int
	LocationPrecision    int
	CapacityMinSocChange float64
	CapacityMinEnergyKwh float64

	// Workspace
	WorkspaceTTL             time.Duration
	WorkspaceCleanupInterval time.Duration

	// Geocoder
	GeocoderEnabled bool
	AmapAPIKey      string
}

func Load() (*Config, error) {
	// 尝试加载 .env 文件（可选）
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:               getEnv("PORT", "8050"),
		Debug:                    getEnvBool("DEBUG", false),
		MaxUploadBytes:           int64(getEnvInt("MAX_UPLOAD_BYTES", 32<<20)),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		DemoDataFile:             getEnv("DEMO_DATA_FILE", ""),
		SimilarityThreshold:      getEnvFloat("SIMILARITY_THRESHOLD", analytics.DefaultSimilarityThreshold),
		MinGroupSessions:         getEnvInt("MIN_GROUP_SESSIONS", analytics.DefaultMinGroupSessions),
		TopProviders:             getEnvInt("TOP_PROVIDERS", analytics.DefaultTopProviders),
		LocationPrecision:        getEnvInt("LOCATION_PRECISION", analytics.DefaultLocationPrecision),
		CapacityMinSocChange:     getEnvFloat("CAPACITY_MIN_SOC_CHANGE", 0),
		CapacityMinEnergyKwh:     getEnvFloat("CAPACITY_MIN_ENERGY_KWH", 0),
		WorkspaceTTL:             getEnvDuration("WORKSPACE_TTL", 30*time.Minute),
		WorkspaceCleanupInterval: getEnvDuration("WORKSPACE_CLEANUP_INTERVAL", 5*time.Minute),
		GeocoderEnabled:          getEnvBool("GEOCODER_ENABLED", false),
		AmapAPIKey:               getEnv("AMAP_API_KEY", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate 检查配置
func (c *Config) Validate() error {
	if err := analytics.ValidateThreshold(c.SimilarityThreshold); err != nil {
		return fmt.Errorf("SIMILARITY_THRESHOLD: %w", err)
	}
	if c.MinGroupSessions < 0 {
		return errors.New("MIN_GROUP_SESSIONS must not be negative")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}
	if c.WorkspaceTTL <= 0 || c.WorkspaceCleanupInterval <= 0 {
		return errors.New("workspace durations must be positive")
	}
	return nil
}

// AnalyticsOptions 分析引擎参数
func (c *Config) AnalyticsOptions() analytics.Options {
	return analytics.Options{
		SimilarityThreshold:  c.SimilarityThreshold,
		MinGroupSessions:     c.MinGroupSessions,
		TopProviders:         c.TopProviders,
		LocationPrecision:    c.LocationPrecision,
		CapacityMinSocChange: c.CapacityMinSocChange,
		CapacityMinEnergyKwh: c.CapacityMinEnergyKwh,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
