package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	LLM        LLMConfig
	Generation GenerationConfig
	Outline    OutlineConfig
	Credits    CreditsConfig
	App        AppConfig
}

type ServerConfig struct {
	Port   string
	APIKey string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

// DSN builds a pgx-compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	ReviewModel    string
	RequestTimeout time.Duration
	MaxRetries     int
	RequestsPerSec float64
}

// GenerationConfig holds pipeline policy. Wave size and the slide-count
// ceiling factor are policy knobs, not protocol constants.
type GenerationConfig struct {
	WaveSize           int
	CeilingFactor      float64
	MaxSlidesFree      int
	MaxSlidesPro       int
	ImageTierThreshold int
	ThemeTimeout       time.Duration
	LayoutTimeout      time.Duration
	AutoApprove        bool
	ExportURL          string
	ImageServiceURL    string
}

// MaxSlides returns the tier-dependent absolute slide cap.
func (g GenerationConfig) MaxSlides(tier int) int {
	if tier >= g.ImageTierThreshold {
		return g.MaxSlidesPro
	}
	return g.MaxSlidesFree
}

type OutlineConfig struct {
	TTL        time.Duration
	MaxEntries int
	MinSlides  int
	MaxSlides  int
}

type CreditsConfig struct {
	OutlineCost       int64
	DeckCost          int64
	SlideEditCost     int64
	ChatMessageCost   int64
	FreeChatAllowance int
}

type AppConfig struct {
	Environment string
	LogLevel    string
	Version     string
	SnippetsDir string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:   getEnv("PORT", "8080"),
			APIKey: getEnv("API_KEY", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "slideforge"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		LLM: LLMConfig{
			APIKey:         getEnv("LLM_API_KEY", ""),
			BaseURL:        getEnv("LLM_BASE_URL", ""),
			Model:          getEnv("LLM_MODEL", "gpt-4o-mini"),
			ReviewModel:    getEnv("LLM_REVIEW_MODEL", "gpt-4o-mini"),
			RequestTimeout: getEnvAsDuration("LLM_REQUEST_TIMEOUT", 120*time.Second),
			MaxRetries:     getEnvAsInt("LLM_MAX_RETRIES", 2),
			RequestsPerSec: getEnvAsFloat("LLM_REQUESTS_PER_SEC", 4),
		},
		Generation: GenerationConfig{
			WaveSize:           getEnvAsInt("GEN_WAVE_SIZE", 4),
			CeilingFactor:      getEnvAsFloat("GEN_CEILING_FACTOR", 1.25),
			MaxSlidesFree:      getEnvAsInt("GEN_MAX_SLIDES_FREE", 15),
			MaxSlidesPro:       getEnvAsInt("GEN_MAX_SLIDES_PRO", 30),
			ImageTierThreshold: getEnvAsInt("GEN_IMAGE_TIER_THRESHOLD", 1),
			ThemeTimeout:       getEnvAsDuration("GEN_THEME_TIMEOUT", 15*time.Second),
			LayoutTimeout:      getEnvAsDuration("GEN_LAYOUT_TIMEOUT", 20*time.Second),
			AutoApprove:        getEnvAsBool("GEN_AUTO_APPROVE", false),
			ExportURL:          getEnv("EXPORT_SERVICE_URL", ""),
			ImageServiceURL:    getEnv("IMAGE_SERVICE_URL", ""),
		},
		Outline: OutlineConfig{
			TTL:        getEnvAsDuration("OUTLINE_TTL", 30*time.Minute),
			MaxEntries: getEnvAsInt("OUTLINE_MAX_ENTRIES", 500),
			MinSlides:  getEnvAsInt("OUTLINE_MIN_SLIDES", 8),
			MaxSlides:  getEnvAsInt("OUTLINE_MAX_SLIDES", 12),
		},
		Credits: CreditsConfig{
			OutlineCost:       getEnvAsInt64("CREDIT_OUTLINE_COST", 5),
			DeckCost:          getEnvAsInt64("CREDIT_DECK_COST", 40),
			SlideEditCost:     getEnvAsInt64("CREDIT_SLIDE_EDIT_COST", 2),
			ChatMessageCost:   getEnvAsInt64("CREDIT_CHAT_MESSAGE_COST", 1),
			FreeChatAllowance: getEnvAsInt("CREDIT_FREE_CHAT_ALLOWANCE", 20),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			SnippetsDir: getEnv("SNIPPETS_DIR", "snippets"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}

	if c.Generation.WaveSize < 1 {
		return fmt.Errorf("GEN_WAVE_SIZE must be >= 1")
	}

	if c.Generation.CeilingFactor < 1.0 {
		return fmt.Errorf("GEN_CEILING_FACTOR must be >= 1.0")
	}

	if c.Outline.MinSlides > c.Outline.MaxSlides {
		return fmt.Errorf("OUTLINE_MIN_SLIDES must not exceed OUTLINE_MAX_SLIDES")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid float for %s, using default: %f", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid boolean for %s, using default: %t", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration for %s, using default: %s", key, defaultValue)
		return defaultValue
	}

	return value
}
