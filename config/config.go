package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const ENV_FILE = ".env"
const CONFIG_FILE = "config.yaml"

type AppConfig struct {
	Logging     LoggingConfig    `yaml:"logging"`
	Providers   ProvidersConfig  `yaml:"providers"`
	Session     SessionConfig    `yaml:"session"`
	Generation  GenerationConfig `yaml:"generation"`
	Admins      []AdminEntry     `yaml:"admins"`
	ImageSearch ImageSearch      `yaml:"image_search"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ProvidersConfig 는 LLM 호출의 우선순위와 모델 이름을 정의한다.
// fallback 순서는 설정에 적힌 순서 그대로 사용한다 (결정적 fallback).
type ProvidersConfig struct {
	// Primary 는 우선 사용할 provider 이름이다. ("gemini" | "perplexity")
	Primary string `yaml:"primary"`

	// Fallbacks 는 primary 실패 시 순서대로 시도할 provider 목록이다.
	Fallbacks []string `yaml:"fallbacks"`

	// TimeoutSeconds 는 단일 provider 호출의 타임아웃이다.
	// 초과 시 unavailable 로 간주하고 다음 provider 로 넘어간다.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	GeminiModel             string `yaml:"gemini_model"`
	PerplexityModel         string `yaml:"perplexity_model"`
	PerplexityResearchModel string `yaml:"perplexity_research_model"`
}

type SessionConfig struct {
	// ContextWindowSize 는 한 대화 세션이 유지하는 최대 turn 수이다.
	ContextWindowSize int `yaml:"context_window_size"`

	// IdleTimeoutMinutes 이상 비활성인 세션은 sweep 시 제거된다.
	IdleTimeoutMinutes int `yaml:"idle_timeout_minutes"`

	// SweepIntervalMinutes 는 백그라운드 sweep 주기이다.
	SweepIntervalMinutes int `yaml:"sweep_interval_minutes"`
}

type GenerationConfig struct {
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TopP        float64 `yaml:"top_p"`
}

// AdminEntry is a single privileged-user configuration item.
type AdminEntry struct {
	UserID   int64    `yaml:"user_id"`
	Nickname string   `yaml:"nickname"`
	Aliases  []string `yaml:"aliases"`
}

type ImageSearch struct {
	// AllowedDomains 밖의 이미지 URL 은 결과에서 제외한다.
	AllowedDomains []string `yaml:"allowed_domains"`
	MaxResults     int      `yaml:"max_results"`
}

var config *AppConfig

func InitApp() {
	// load environment variables
	godotenv.Load(filepath.Join(GetBasePath(), ENV_FILE))

	// load configuration file
	data, err := os.ReadFile(filepath.Join(GetBasePath(), CONFIG_FILE))
	if err != nil {
		panic(err)
	}

	var c AppConfig
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		panic(err)
	}
	c.applyDefaults()
	config = &c
}

func GetConfig() AppConfig {
	if config == nil {
		InitApp()
	}

	return *config
}

func (c *AppConfig) applyDefaults() {
	if c.Providers.Primary == "" {
		c.Providers.Primary = "gemini"
	}
	if c.Providers.TimeoutSeconds <= 0 {
		c.Providers.TimeoutSeconds = 30
	}
	if c.Providers.GeminiModel == "" {
		c.Providers.GeminiModel = "gemini-2.5-flash"
	}
	if c.Providers.PerplexityModel == "" {
		c.Providers.PerplexityModel = "sonar"
	}
	if c.Providers.PerplexityResearchModel == "" {
		c.Providers.PerplexityResearchModel = "sonar-pro"
	}
	if c.Session.ContextWindowSize <= 0 {
		c.Session.ContextWindowSize = 20
	}
	if c.Session.IdleTimeoutMinutes <= 0 {
		c.Session.IdleTimeoutMinutes = 30
	}
	if c.Session.SweepIntervalMinutes <= 0 {
		c.Session.SweepIntervalMinutes = 5
	}
	if c.Generation.Temperature <= 0 {
		c.Generation.Temperature = 0.7
	}
	if c.Generation.MaxTokens <= 0 {
		c.Generation.MaxTokens = 1024
	}
	if c.Generation.TopP <= 0 {
		c.Generation.TopP = 0.9
	}
	if c.ImageSearch.MaxResults <= 0 {
		c.ImageSearch.MaxResults = 5
	}
}

// ProviderTimeout 은 설정된 provider 호출 타임아웃을 Duration 으로 돌려준다.
func (c AppConfig) ProviderTimeout() time.Duration {
	return time.Duration(c.Providers.TimeoutSeconds) * time.Second
}

func (c AppConfig) SessionIdleTimeout() time.Duration {
	return time.Duration(c.Session.IdleTimeoutMinutes) * time.Minute
}

func (c AppConfig) SweepInterval() time.Duration {
	return time.Duration(c.Session.SweepIntervalMinutes) * time.Minute
}

// Secrets are sourced from the process environment only, never from config.yaml.

func TelegramToken() string {
	return os.Getenv("TELEGRAM_TOKEN")
}

func GeminiAPIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

func PerplexityAPIKey() string {
	return os.Getenv("PERPLEXITY_API_KEY")
}

// GoogleCSEKeys 는 콤마로 구분된 Custom Search API 키 목록을 돌려준다.
// 이미지 검색은 호출마다 키를 순환시켜 일일 쿼터를 분산한다.
func GoogleCSEKeys() []string {
	raw := os.Getenv("GOOGLE_CSE_KEYS")
	if raw == "" {
		return nil
	}
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func GoogleCSEID() string {
	return os.Getenv("GOOGLE_CSE_ID")
}

func GetBasePath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		cfgPath := filepath.Join(dir, CONFIG_FILE)
		if info, err := os.Stat(cfgPath); err == nil && !info.IsDir() {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
