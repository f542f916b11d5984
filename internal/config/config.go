package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	DataDir  string `yaml:"data_dir"`
	DBPath   string `yaml:"db_path"`
	WebDir   string `yaml:"web_dir"`

	// Timezone slots are reasoned and rendered in when a request does not
	// say otherwise.
	Timezone string `yaml:"timezone"`

	// BotUserID is this service's own identity on the chat surface, excluded
	// from mention scans.
	BotUserID string `yaml:"bot_user_id"`

	LLMBaseURL   string `yaml:"llm_base_url"`
	LLMModel     string `yaml:"llm_model"`
	LLMAPIKey    string `yaml:"llm_api_key"`
	RestartToken string `yaml:"restart_token"`
}

// Load reads the optional YAML config file, then lets environment variables
// (and .env entries) override individual fields.
func Load() Config {
	loadDotEnv(".env")

	cfg := Config{}
	path := getEnv("SCHEDD_CONFIG", "schedd.yaml")
	if data, err := os.ReadFile(path); err == nil {
		_ = yaml.Unmarshal(data, &cfg)
	}

	cfg.HTTPAddr = getEnv("SCHEDD_HTTP_ADDR", fallback(cfg.HTTPAddr, ":8080"))
	cfg.DataDir = getEnv("SCHEDD_DATA_DIR", fallback(cfg.DataDir, "data"))
	cfg.DBPath = getEnv("SCHEDD_DB_PATH", fallback(cfg.DBPath, filepath.Join(cfg.DataDir, "schedd.db")))
	cfg.WebDir = getEnv("SCHEDD_WEB_DIR", fallback(cfg.WebDir, "web"))
	cfg.Timezone = getEnv("SCHEDD_TIMEZONE", fallback(cfg.Timezone, "Asia/Manila"))
	cfg.BotUserID = getEnv("SCHEDD_BOT_USER_ID", cfg.BotUserID)

	cfg.LLMBaseURL = getEnv("SCHEDD_LLM_BASE_URL", fallback(cfg.LLMBaseURL, "https://openrouter.ai/api/v1"))
	cfg.LLMModel = getEnv("SCHEDD_LLM_MODEL", cfg.LLMModel)
	cfg.LLMAPIKey = getEnv("SCHEDD_LLM_API_KEY", cfg.LLMAPIKey)
	cfg.RestartToken = getEnv("SCHEDD_RESTART_TOKEN", cfg.RestartToken)
	return cfg
}

func fallback(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func loadDotEnv(path string) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, value)
	}
}
