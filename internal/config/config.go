package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AppEnv        string `yaml:"app_env"`
	HTTPAddr      string `yaml:"http_addr"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	DataDir       string `yaml:"data_dir"`

	// Local browser control API that hands out CDP endpoints per window.
	ControlAPIURL string `yaml:"control_api_url"`
	// Entry URL of the AI studio app the engine drives.
	StudioURL string `yaml:"studio_url"`

	TaskMaxRetries int `yaml:"task_max_retries"`
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func Load() Config {
	// .env is optional; env vars already set take precedence.
	_ = godotenv.Load()

	cfg := Config{
		AppEnv:        getenv("APP_ENV", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8082"),
		RedisAddr:     getenv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		DataDir:       getenv("DATA_DIR", "./data"),

		ControlAPIURL: getenv("CONTROL_API_URL", "http://127.0.0.1:54345"),
		StudioURL:     getenv("STUDIO_URL", "https://aistudio.google.com/prompts/new_chat"),

		TaskMaxRetries: getenvInt("TASK_MAX_RETRIES", 3),
	}

	// Optional YAML overlay for deployments that prefer a file over env vars.
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			panic(fmt.Errorf("read CONFIG_FILE %s: %w", path, err))
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			panic(fmt.Errorf("parse CONFIG_FILE %s: %w", path, err))
		}
	}

	if cfg.RedisAddr == "" {
		panic(fmt.Errorf("REDIS_ADDR is required"))
	}
	return cfg
}
