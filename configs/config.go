package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	Port        string
	Environment string

	// データセット
	DataPath   string
	ReloadCron string

	// Azure OpenAI（テキスト補完依存）
	AzureOpenAIEndpoint           string
	AzureOpenAIAPIKey             string
	AzureOpenAIAPIVersion         string
	AzureOpenAIChatDeploymentName string
	LLMTimeout                    time.Duration
	NLUMaxRetries                 int
	UseLLMNarrative               bool
	PromptsPath                   string

	// 認証・管理
	APIKey        string
	AdminUsername string
	AdminPassword string

	// クエリキャッシュ
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DataPath:   getEnv("DATA_PATH", "data/sample_agri_prices.csv"),
		ReloadCron: getEnv("RELOAD_CRON", ""),

		AzureOpenAIEndpoint:           getEnv("AZURE_OPENAI_ENDPOINT", ""),
		AzureOpenAIAPIKey:             getEnv("AZURE_OPENAI_API_KEY", ""),
		AzureOpenAIAPIVersion:         getEnv("AZURE_OPENAI_API_VERSION", "2024-02-01"),
		AzureOpenAIChatDeploymentName: getEnv("AZURE_OPENAI_CHAT_DEPLOYMENT_NAME", "gpt-4o-mini"),
		LLMTimeout:                    getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),
		NLUMaxRetries:                 getEnvAsInt("NLU_MAX_RETRIES", 1),
		UseLLMNarrative:               getEnvAsBool("USE_LLM_NARRATIVE", false),
		PromptsPath:                   getEnv("PROMPTS_PATH", ""),

		APIKey:        getEnv("API_KEY", ""),
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		CacheTTL:      getEnvAsDuration("CACHE_TTL", 10*time.Minute),
	}
}

// LLMEnabled はAzure OpenAIの接続情報が揃っているかを返します。
func (c *Config) LLMEnabled() bool {
	return c.AzureOpenAIEndpoint != "" && c.AzureOpenAIAPIKey != ""
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("⚠️ [config] %s の値が整数ではありません (%q)。デフォルト値 %d を使用します", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("⚠️ [config] %s の値が真偽値ではありません (%q)。デフォルト値 %t を使用します", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("⚠️ [config] %s の値が期間として不正です (%q)。デフォルト値 %s を使用します", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}
