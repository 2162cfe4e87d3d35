package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "Europe/Moscow"

	configPathEnv     = "ECONOMY_MONITOR_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	analysisAPIKeyEnv = "ANALYSIS_API_KEY"
	analysisModelEnv  = "ANALYSIS_MODEL"
	messagingTokenEnv = "MESSAGING_TOKEN"
	messagingChatEnv  = "MESSAGING_CHANNEL_ID"
)

// Config holds every setting required across the application. Loaded once at
// startup, immutable afterwards.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Run       RunConfig       `yaml:"run"`
	Dedup     DedupConfig     `yaml:"dedup"`
	Database  DatabaseConfig  `yaml:"database"`
	Messaging MessagingConfig `yaml:"messaging"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Extract   ExtractConfig   `yaml:"extract"`
	Sources   []SourceConfig  `yaml:"sources"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// RunConfig bounds a single pass and configures the optional watch schedule.
type RunConfig struct {
	Workers        int            `yaml:"workers"`
	Timeout        string         `yaml:"timeout"`
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// TimeoutDuration parses the run deadline, falling back to 10 minutes.
func (r RunConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(r.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// Location resolves the configured timezone.
func (r RunConfig) Location() *time.Location {
	if r.location != nil {
		return r.location
	}
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DedupConfig points at the seen-set file and the bypass switch.
type DedupConfig struct {
	Path   string `yaml:"path"`
	Bypass bool   `yaml:"bypass"`
}

// DatabaseConfig describes the optional Postgres delivery archive.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// MessagingConfig wires the Telegram bot credentials.
type MessagingConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether delivery credentials are present.
func (m MessagingConfig) Enabled() bool {
	return m.BotToken != "" && m.ChatID != ""
}

// AnalysisConfig defines how to contact the chat-completions API.
type AnalysisConfig struct {
	Endpoint      string `yaml:"endpoint"`
	Model         string `yaml:"model"`
	APIKey        string `yaml:"apiKey"`
	SystemPrompt  string `yaml:"systemPrompt"`
	MaxInputChars int    `yaml:"maxInputChars"`
}

// FetchConfig scopes the deliberate TLS exception for legacy endpoints.
type FetchConfig struct {
	InsecureHosts []string `yaml:"insecureHosts"`
}

// ExtractConfig bounds document text extraction.
type ExtractConfig struct {
	MaxPages int `yaml:"maxPages"`
}

// SourceConfig describes one watched publication source.
type SourceConfig struct {
	Name          string   `yaml:"name"`
	DisplayName   string   `yaml:"displayName"`
	Header        string   `yaml:"header"`
	BaseURL       string   `yaml:"baseUrl"`
	ListingURLs   []string `yaml:"listingUrls"`
	TopicPatterns []string `yaml:"topicPatterns"`
	Extensions    []string `yaml:"extensions"`
}

// Load reads .env, YAML configuration addressed by path (or, when empty, by
// the ECONOMY_MONITOR_CONFIG variable) and applies environment overrides.
func Load(path string) Config {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		cfg = loadFile(cfg, path)
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	return cfg
}

func loadFile(cfg Config, path string) Config {
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		return cfg
	}

	var fileCfg Config
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
		return cfg
	}

	return mergeConfig(cfg, fileCfg)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(messagingTokenEnv); v != "" {
		c.Messaging.BotToken = v
	}

	if v := os.Getenv(messagingChatEnv); v != "" {
		c.Messaging.ChatID = v
	}

	if v := os.Getenv(analysisAPIKeyEnv); v != "" {
		c.Analysis.APIKey = v
	}

	if v := os.Getenv(analysisModelEnv); v != "" {
		c.Analysis.Model = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Run.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Run.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Run.Workers > 0 {
		base.Run.Workers = override.Run.Workers
	}
	if override.Run.Timeout != "" {
		base.Run.Timeout = override.Run.Timeout
	}
	if override.Run.CronExpression != "" {
		base.Run.CronExpression = override.Run.CronExpression
	}
	if override.Run.Timezone != "" {
		base.Run.Timezone = override.Run.Timezone
	}

	if override.Dedup.Path != "" {
		base.Dedup.Path = override.Dedup.Path
	}
	if override.Dedup.Bypass {
		base.Dedup.Bypass = true
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Messaging.BotToken != "" {
		base.Messaging.BotToken = override.Messaging.BotToken
	}
	if override.Messaging.ChatID != "" {
		base.Messaging.ChatID = override.Messaging.ChatID
	}

	if override.Analysis.Endpoint != "" {
		base.Analysis.Endpoint = override.Analysis.Endpoint
	}
	if override.Analysis.Model != "" {
		base.Analysis.Model = override.Analysis.Model
	}
	if override.Analysis.APIKey != "" {
		base.Analysis.APIKey = override.Analysis.APIKey
	}
	if override.Analysis.SystemPrompt != "" {
		base.Analysis.SystemPrompt = override.Analysis.SystemPrompt
	}
	if override.Analysis.MaxInputChars > 0 {
		base.Analysis.MaxInputChars = override.Analysis.MaxInputChars
	}

	if len(override.Fetch.InsecureHosts) > 0 {
		base.Fetch.InsecureHosts = override.Fetch.InsecureHosts
	}

	if override.Extract.MaxPages > 0 {
		base.Extract.MaxPages = override.Extract.MaxPages
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	loc, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Run: RunConfig{
			Workers:        1,
			Timeout:        "10m",
			CronExpression: "0 * * * *",
			Timezone:       defaultTimezone,
			location:       loc,
		},
		Dedup:    DedupConfig{Path: "history.json"},
		Database: DatabaseConfig{DSN: ""},
		Analysis: AnalysisConfig{
			Endpoint:      "https://api.openai.com/v1/chat/completions",
			Model:         "gpt-4o",
			APIKey:        "",
			SystemPrompt:  defaultSystemPrompt,
			MaxInputChars: 12000,
		},
		Fetch:   FetchConfig{InsecureHosts: []string{"www.cbr.ru", "cbr.ru", "www.economy.gov.ru", "economy.gov.ru"}},
		Extract: ExtractConfig{MaxPages: 7},
		Sources: defaultSources(),
	}
}

const defaultSystemPrompt = "Ты — опытный макроэкономист и трейдер облигациями (ОФЗ). " +
	"Анализируй свежие документы регуляторов и давай сухую выжимку для принятия инвестиционных решений: " +
	"риторика (жесткая/мягкая/нейтральная), главные цифры, влияние на ОФЗ, риски."

func defaultSources() []SourceConfig {
	return []SourceConfig{
		{
			Name:        "cbr",
			DisplayName: "Банка России",
			Header:      "🏦 **ЦБ РФ: НОВЫЙ ОТЧЕТ**",
			BaseURL:     "https://www.cbr.ru",
			ListingURLs: []string{"https://www.cbr.ru/calendar"},
			TopicPatterns: []string{
				"Обзор рисков финансовых рынков",
				"Региональная экономика",
				"Макроэкономический опрос",
				"Денежно-кредитные условия",
				"Мониторинг отраслевых финансовых потоков",
				"Доклад о денежно-кредитной политике",
			},
			Extensions: []string{".pdf"},
		},
		{
			Name:        "minec",
			DisplayName: "Минэкономразвития",
			Header:      "📉 **МИНЭК (ДАННЫЕ РОССТАТА)**",
			BaseURL:     "https://www.economy.gov.ru",
			ListingURLs: []string{"https://www.economy.gov.ru/material/directions/makroec/ekonomicheskie_obzory/"},
			TopicPatterns: []string{
				"О текущей ситуации",
				"Картина деловой активности",
				"Экономический обзор",
			},
			Extensions: []string{".pdf"},
		},
	}
}
