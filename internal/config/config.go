package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxHistory        = 100
	DefaultMemoryLimit       = 24 * 7 // hours
	DefaultSearchModel       = "openai/gpt-4o-mini-search-preview"
	DefaultDBPath            = "botka.db"
	DefaultWebListenAddr     = ":8080"
	DefaultOpenAIBaseURL     = "https://api.openai.com/v1"
	DefaultMaxToolIterations = 6
)

type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	NLP      NLPConfig      `yaml:"nlp"`
	Services ServicesConfig `yaml:"services"`
	DB       DBConfig       `yaml:"db"`
	Web      WebConfig      `yaml:"web"`
}

type TelegramConfig struct {
	Token       string `yaml:"token"`
	PassiveMode bool   `yaml:"passive_mode"`
}

type NLPConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxHistory int  `yaml:"max_history"`
	// Models is the ordered list of chat models; index 0 answers the
	// cheapest HANDLE 1 tier.
	Models              []string `yaml:"models"`
	SearchModel         string   `yaml:"search_model"`
	ClassificationModel string   `yaml:"classification_model"`
	TriggerWords        []string `yaml:"trigger_words"`
	// MemoryLimit caps the TTL in hours a non-resident may request for
	// a memory.
	MemoryLimit             int64   `yaml:"memory_limit"`
	RandomAnswerProbability float64 `yaml:"random_answer_probability"`
	// ClassifyNullAsHandle1 restores the legacy mapping of a null
	// classification to HANDLE 1 instead of IGNORE.
	ClassifyNullAsHandle1 bool `yaml:"classify_null_as_handle1"`
	MaxToolIterations     int  `yaml:"max_tool_iterations"`
}

type ServicesConfig struct {
	OpenAI   OpenAIConfig    `yaml:"openai"`
	Butler   *ButlerConfig   `yaml:"butler"`
	MikroTik *MikroTikConfig `yaml:"mikrotik"`
}

type OpenAIConfig struct {
	Disable bool   `yaml:"disable"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type ButlerConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

type MikroTikConfig struct {
	Host     string `yaml:"host"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type WebConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Load reads and strictly parses the YAML config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML config document. Unknown options fail the decode.
func Parse(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.NLP.MaxHistory == 0 {
		c.NLP.MaxHistory = DefaultMaxHistory
	}
	if c.NLP.MemoryLimit == 0 {
		c.NLP.MemoryLimit = DefaultMemoryLimit
	}
	if c.NLP.SearchModel == "" {
		c.NLP.SearchModel = DefaultSearchModel
	}
	if c.NLP.MaxToolIterations == 0 {
		c.NLP.MaxToolIterations = DefaultMaxToolIterations
	}
	if c.DB.Path == "" {
		c.DB.Path = DefaultDBPath
	}
	if c.Web.ListenAddr == "" {
		c.Web.ListenAddr = DefaultWebListenAddr
	}
	if c.Services.OpenAI.BaseURL == "" {
		c.Services.OpenAI.BaseURL = DefaultOpenAIBaseURL
	}
}

func (c *Config) validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if c.NLP.Enabled && len(c.NLP.Models) < 3 {
		return fmt.Errorf("nlp.models must list at least 3 models, got %d", len(c.NLP.Models))
	}
	if p := c.NLP.RandomAnswerProbability; p < 0 || p > 100 {
		return fmt.Errorf("nlp.random_answer_probability must be in [0,100], got %v", p)
	}
	if c.NLP.MaxHistory < 0 {
		return fmt.Errorf("nlp.max_history must not be negative")
	}
	if c.NLP.MemoryLimit < 0 {
		return fmt.Errorf("nlp.memory_limit must not be negative")
	}
	return nil
}

// BotID returns the numeric id part of the Telegram token ("<id>:<secret>").
func (c *Config) BotID() string {
	id, _, _ := strings.Cut(c.Telegram.Token, ":")
	return id
}
