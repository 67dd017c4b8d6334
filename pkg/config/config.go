package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	SQLite      SQLiteConfig
	Redis       RedisConfig
	Correlation CorrelationConfig
	Semantic    SemanticConfig
	LLM         LLMConfig
	Logging     LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CorrelationConfig struct {
	ConfidenceThreshold float64
	MaxWorkStories      int
	MinEvidencePerStory int

	IssueKeyConfidence       float64
	BranchNameConfidence     float64
	ContentSimilarityMin     float64
	ContentConfidenceScale   float64
	TemporalBonusWindowDays  int
	GroupingConfidenceMin    float64
	RecentActivityWindowDays int
	OrphanWindowDays         int
	SprintGapDays            int
	SprintMinItems           int
	LongCycleDays            int
	QuickTurnDays            int
}

type SemanticConfig struct {
	Enabled           bool
	MonthlyBudgetUSD  float64
	EmbeddingTTLHours int
}

type LLMConfig struct {
	Provider       string
	Model          string
	APIKey         string
	Temperature    float32
	MaxTokens      int
	TimeoutSec     int
	EmbeddingModel string
	EmbeddingDim   int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/worklens")

	viper.SetEnvPrefix("WORKLENS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("sqlite.path", "./data/worklens.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("correlation.confidenceThreshold", 0.3)
	viper.SetDefault("correlation.maxWorkStories", 50)
	viper.SetDefault("correlation.minEvidencePerStory", 2)
	viper.SetDefault("correlation.issueKeyConfidence", 0.9)
	viper.SetDefault("correlation.branchNameConfidence", 0.7)
	viper.SetDefault("correlation.contentSimilarityMin", 0.3)
	viper.SetDefault("correlation.contentConfidenceScale", 0.6)
	viper.SetDefault("correlation.temporalBonusWindowDays", 7)
	viper.SetDefault("correlation.groupingConfidenceMin", 0.5)
	viper.SetDefault("correlation.recentActivityWindowDays", 7)
	viper.SetDefault("correlation.orphanWindowDays", 7)
	viper.SetDefault("correlation.sprintGapDays", 3)
	viper.SetDefault("correlation.sprintMinItems", 3)
	viper.SetDefault("correlation.longCycleDays", 30)
	viper.SetDefault("correlation.quickTurnDays", 3)

	viper.SetDefault("semantic.enabled", false)
	viper.SetDefault("semantic.monthlyBudgetUSD", 15.0)
	viper.SetDefault("semantic.embeddingTTLHours", 24)

	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.1)
	viper.SetDefault("llm.maxTokens", 200)
	viper.SetDefault("llm.timeoutSec", 30)
	viper.SetDefault("llm.embeddingModel", "text-embedding-3-small")
	viper.SetDefault("llm.embeddingDim", 1536)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
