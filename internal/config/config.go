package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
)

type StoreBackend string

const (
	BackendFile     StoreBackend = "file"
	BackendDynamoDB StoreBackend = "dynamodb"
)

type QuestionSource string

const (
	SourceBank QuestionSource = "bank"
	SourceLLM  QuestionSource = "llm"
)

type Config struct {
	TelegramBotToken string  `env:"TELEGRAM_BOT_TOKEN,required"`
	AllowedUsers     []int64 `env:"ALLOWED_USERS" envSeparator:":"`
	AdminUserID      int64   `env:"ADMIN_USER"`

	// Bot identity and rooms
	BotName         string        `env:"BOT_NAME" envDefault:"Koko"`
	PraiseChatID    int64         `env:"PRAISE_CHAT_ID"`
	AnswersChatID   int64         `env:"ANSWERS_CHAT_ID"`
	ServerBaseURL   string        `env:"SERVER_BASE_URL" envDefault:"https://t.me"`
	MeetingBaseURL  string        `env:"MEETING_BASE_URL" envDefault:"https://meet.jit.si"`
	MembersCacheTTL time.Duration `env:"MEMBERS_CACHE_TTL" envDefault:"5m"`

	// Storage
	StoreBackend    StoreBackend `env:"STORE_BACKEND" envDefault:"file"`
	StoreFilePath   string       `env:"STORE_FILE_PATH" envDefault:"data/store.json"`
	DynamoDBTable   string       `env:"DYNAMODB_TABLE" envDefault:"team-pulse"`
	MembersFilePath string       `env:"MEMBERS_FILE_PATH" envDefault:"data/members.json"`
	PendingFilePath string       `env:"PENDING_FILE_PATH" envDefault:"data/pending.json"`

	// Schedules (standard 5-field cron, evaluated in Timezone)
	Timezone       string `env:"TIMEZONE" envDefault:"UTC"`
	PraiseCron     string `env:"PRAISE_CRON" envDefault:"15 14 * * 1"`
	ScoreboardCron string `env:"SCOREBOARD_CRON" envDefault:"0 14 * * 5"`
	QuestionCron   string `env:"QUESTION_CRON" envDefault:"0 15 * * 1,4"`
	OneOnOneCron   string `env:"ONE_ON_ONE_CRON" envDefault:"0 17 * * 4"`
	WellnessCron   string `env:"WELLNESS_CRON" envDefault:"0 13 * * 1,3,5"`
	ValuesCron     string `env:"VALUES_CRON" envDefault:"0 16 * * 5"`

	// Workflows
	Values         []string       `env:"VALUES" envSeparator:":" envDefault:"Dream:Own:Trust:Share"`
	QuestionSource QuestionSource `env:"QUESTION_SOURCE" envDefault:"bank"`
	QuestionPrompt string         `env:"QUESTION_PROMPT" envDefault:"Generate a random, fun, thought-provoking question for a team of coworkers to discuss."`

	// LLM settings
	LLMProvider      LLMProvider `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey     string      `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string      `env:"OPENAI_BASE_URL"`
	OpenAIModel      string      `env:"OPENAI_MODEL" envDefault:"gpt-3.5-turbo"`
	YandexOAuthToken string      `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string      `env:"YANDEX_FOLDER_ID"`

	// Formatting
	MessageParseMode string `env:"MESSAGE_PARSE_MODE" envDefault:"Markdown"`
}

func New() *Config {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}

// Parse reads the configuration from the environment.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Location resolves Timezone for schedules and dates typed by users.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
