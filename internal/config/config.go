package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultAPIEndpoint = "https://api.telegram.org/bot%s/%s"

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token        string  `yaml:"token"`
	APIEndpoint  string  `yaml:"api_endpoint"` // tgbotapi format: https://host/bot%s/%s
	Mode         string  `yaml:"mode"`         // polling only
	Workers      int     `yaml:"workers"`      // update workers
	PollTimeout  int     `yaml:"poll_timeout"` // seconds
	RateLimit    int     `yaml:"rate_limit"`   // messages per minute per chat; 0 means 20, negative disables
	AgencyChatID int64   `yaml:"agency_chat_id"`
	StaffChatIDs []int64 `yaml:"staff_chat_ids"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port int `yaml:"port"`
}

type RedisConfig struct {
	URL      string `yaml:"url"` // empty: in-memory state store
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type OCRConfig struct {
	Engine        string        `yaml:"engine"` // tesseract|gemini
	TesseractPath string        `yaml:"tesseract_path"`
	Languages     string        `yaml:"languages"`
	TessdataDir   string        `yaml:"tessdata_dir"`
	PSM           int           `yaml:"psm"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxConcurrent int           `yaml:"max_concurrent"`
	MaxImageBytes int64         `yaml:"max_image_bytes"`
	GeminiKey     string        `yaml:"gemini_key"`
	GeminiModel   string        `yaml:"gemini_model"`
	GeminiURL     string        `yaml:"gemini_url"`
}

type StateConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type Config struct {
	Bot   BotConfig   `yaml:"bot"`
	Log   LogConfig   `yaml:"log"`
	Admin AdminConfig `yaml:"admin"`
	Redis RedisConfig `yaml:"redis"`
	OCR   OCRConfig   `yaml:"ocr"`
	State StateConfig `yaml:"state"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies env overrides and defaults,
// and validates the result. A missing file is fine when the environment
// supplies the token.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg, os.Getenv)
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv keeps the variable names the bot has always been deployed with.
func applyEnv(cfg *Config, getenv func(string) string) {
	if v := strings.TrimSpace(getenv("BOT_TOKEN")); v != "" {
		cfg.Bot.Token = v
	}
	if v := strings.TrimSpace(getenv("URL_TELEGRAM_GETME")); v != "" {
		cfg.Bot.APIEndpoint = v
	}
	if v := strings.TrimSpace(getenv("CAMINHO_TESSERACT")); v != "" {
		cfg.OCR.TesseractPath = v
	}
	if v := strings.TrimSpace(getenv("REDIS_URL")); v != "" {
		cfg.Redis.URL = v
	}
	if v := strings.TrimSpace(getenv("GEMINI_API_KEY")); v != "" {
		cfg.OCR.GeminiKey = v
	}
}

func applyDefaults(cfg *Config) {
	cfg.Bot.APIEndpoint = normalizeEndpoint(cfg.Bot.APIEndpoint)
	if cfg.Bot.Mode == "" {
		cfg.Bot.Mode = "polling"
	}
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.PollTimeout <= 0 {
		cfg.Bot.PollTimeout = 60
	}
	if cfg.Bot.RateLimit == 0 {
		cfg.Bot.RateLimit = 20
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Admin.Port == 0 {
		cfg.Admin.Port = 8080
	}
	cfg.OCR.Engine = strings.ToLower(strings.TrimSpace(cfg.OCR.Engine))
	if cfg.OCR.Engine == "" {
		cfg.OCR.Engine = "tesseract"
	}
	if cfg.OCR.TesseractPath == "" {
		cfg.OCR.TesseractPath = "tesseract"
	}
	if cfg.OCR.Languages == "" {
		cfg.OCR.Languages = "por+eng"
	}
	if cfg.OCR.Timeout <= 0 {
		cfg.OCR.Timeout = 60 * time.Second
	}
	if cfg.OCR.MaxConcurrent <= 0 {
		cfg.OCR.MaxConcurrent = 2
	}
	if cfg.OCR.MaxImageBytes <= 0 {
		cfg.OCR.MaxImageBytes = 10 << 20
	}
	if cfg.OCR.GeminiModel == "" {
		cfg.OCR.GeminiModel = "gemini-2.0-flash"
	}
	if cfg.State.TTL <= 0 {
		cfg.State.TTL = 15 * time.Minute
	}
}

// normalizeEndpoint accepts both the tgbotapi format and the plain
// "https://api.telegram.org/bot" prefix used by older deployments.
func normalizeEndpoint(ep string) string {
	ep = strings.TrimSpace(ep)
	if ep == "" {
		return defaultAPIEndpoint
	}
	if strings.Contains(ep, "%s") {
		return ep
	}
	return ep + "%s/%s"
}

func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return errors.New("bot.token is required (or set BOT_TOKEN)")
	}
	if strings.ToLower(c.Bot.Mode) != "polling" {
		return fmt.Errorf("bot.mode %q not supported", c.Bot.Mode)
	}
	if strings.Count(c.Bot.APIEndpoint, "%s") != 2 {
		return fmt.Errorf("bot.api_endpoint %q must contain two %%s verbs", c.Bot.APIEndpoint)
	}
	switch c.OCR.Engine {
	case "tesseract":
	case "gemini":
		if c.OCR.GeminiKey == "" {
			return errors.New("ocr.gemini_key is required for the gemini engine")
		}
	default:
		return fmt.Errorf("ocr.engine %q not supported", c.OCR.Engine)
	}
	return nil
}
