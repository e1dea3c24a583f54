package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App     AppConfig
	Recall  RecallConfig
	LLM     LLMConfig
	Tangent TangentConfig
	Topic   TopicConfig
	QA      QAConfig
	Archive ArchiveConfig
}

type AppConfig struct {
	Port               string
	PublicBaseURL      string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type RecallConfig struct {
	APIKey         string
	BaseURL        string
	WebhookToken   string
	BotName        string
	BotAliases     []string
	JoinMessage    string
	ChatMessageCap int
}

type LLMConfig struct {
	Provider    string // "ollama" or "gemini"
	Model       string
	BaseURL     string // ollama only
	APIKey      string // gemini only
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

type TangentConfig struct {
	Enabled             bool
	CheckEvery          time.Duration
	ConfidenceThreshold float64
	StrikeWindow        time.Duration
	StrikeThreshold     int
	Cooldown            time.Duration
	RecentUtterances    int
}

type TopicConfig struct {
	Enabled             bool
	CheckEvery          time.Duration
	MinConfidence       float64
	SimilarityThreshold float64
	MinContextChars     int
	RecentUtterances    int
}

type QAConfig struct {
	Enabled         bool
	MaxExcerpts     int
	MinScore        float64
	MinContextChars int
}

type ArchiveConfig struct {
	Dir       string
	Topic     string // watermill topic name for finalized utterances
	Retention time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8000"),
			PublicBaseURL:      strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Recall: RecallConfig{
			APIKey:         getEnv("RECALL_API_KEY", ""),
			BaseURL:        strings.TrimRight(getEnv("RECALL_BASE_URL", "https://us-west-2.recall.ai"), "/"),
			WebhookToken:   getEnv("WEBHOOK_TOKEN", ""),
			BotName:        getEnv("BOT_NAME", "Meeting Moderator"),
			BotAliases:     splitCSV(getEnv("BOT_MENTION_ALIASES", "")),
			JoinMessage:    getEnv("BOT_JOIN_MESSAGE", "I'm here. I'll be taking notes and am open to answering any questions you may have."),
			ChatMessageCap: getEnvAsInt("CHAT_MESSAGE_CAP", 380),
		},
		LLM: LLMConfig{
			Provider:    getEnv("LLM_PROVIDER", "ollama"),
			Model:       getEnv("LLM_MODEL", "llama3"),
			BaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			APIKey:      getEnv("GOOGLE_GEMINI_API_KEY", ""),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", 20*time.Second),
			Temperature: getEnvAsFloat("LLM_TEMPERATURE", 0.2),
			MaxTokens:   getEnvAsInt("LLM_MAX_TOKENS", 500),
		},
		Tangent: TangentConfig{
			Enabled:             getEnvAsBool("TANGENT_DETECTOR_ENABLED", true),
			CheckEvery:          getEnvAsDuration("TANGENT_CHECK_EVERY", 5*time.Second),
			ConfidenceThreshold: getEnvAsFloat("TANGENT_CONFIDENCE_THRESHOLD", 0.7),
			StrikeWindow:        getEnvAsDuration("TANGENT_STRIKE_WINDOW", 20*time.Second),
			StrikeThreshold:     getEnvAsInt("TANGENT_STRIKE_THRESHOLD", 2),
			Cooldown:            getEnvAsDuration("TANGENT_COOLDOWN", 45*time.Second),
			RecentUtterances:    getEnvAsInt("TANGENT_RECENT_UTTERANCES", 10),
		},
		Topic: TopicConfig{
			Enabled:             getEnvAsBool("TOPIC_CHECK_ENABLED", true),
			CheckEvery:          getEnvAsDuration("TOPIC_CHECK_EVERY", 60*time.Second),
			MinConfidence:       getEnvAsFloat("TOPIC_MIN_CONFIDENCE", 0.5),
			SimilarityThreshold: getEnvAsFloat("TOPIC_SIMILARITY_THRESHOLD", 0.72),
			MinContextChars:     getEnvAsInt("TOPIC_MIN_CONTEXT_CHARS", 80),
			RecentUtterances:    getEnvAsInt("TOPIC_RECENT_UTTERANCES", 10),
		},
		QA: QAConfig{
			Enabled:         getEnvAsBool("QA_ENABLED", true),
			MaxExcerpts:     getEnvAsInt("QA_MAX_EXCERPTS", 8),
			MinScore:        getEnvAsFloat("QA_MIN_SCORE", 0.18),
			MinContextChars: getEnvAsInt("QA_MIN_CONTEXT_CHARS", 40),
		},
		Archive: ArchiveConfig{
			Dir:       getEnv("TRANSCRIPTS_DIR", "transcripts"),
			Topic:     getEnv("ARCHIVE_TOPIC_NAME", "ARCHIVE_FINAL_UTTERANCE"),
			Retention: getEnvAsDuration("SESSION_RETENTION", 1*time.Hour),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
