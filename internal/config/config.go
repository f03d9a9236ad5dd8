package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DBPath      string
	ModelPath   string
	DatasetPath string
	OllamaURL   string
	OllamaModel string
	APIToken    string
	Timezone    string
	TrainDays   int
	TrainSeed   int64
}

func Load() (*Config, error) {
	// Optional .env file for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	trainDays, err := getEnvInt("EQUILIBRI_TRAIN_DAYS", 1500)
	if err != nil {
		return nil, err
	}
	trainSeed, err := getEnvInt("EQUILIBRI_TRAIN_SEED", 42)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:        getEnv("EQUILIBRI_PORT", "8080"),
		DBPath:      getEnv("EQUILIBRI_DB_PATH", ""),
		ModelPath:   getEnv("EQUILIBRI_MODEL_PATH", ""),
		DatasetPath: getEnv("EQUILIBRI_DATASET_PATH", ""),
		OllamaURL:   getEnv("EQUILIBRI_OLLAMA_URL", "http://localhost:11434"),
		OllamaModel: getEnv("EQUILIBRI_OLLAMA_MODEL", "llama3:8b"),
		APIToken:    getEnv("EQUILIBRI_API_TOKEN", ""),
		Timezone:    getEnv("EQUILIBRI_TIMEZONE", "Europe/London"),
		TrainDays:   trainDays,
		TrainSeed:   int64(trainSeed),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("EQUILIBRI_DB_PATH is required")
	}
	if c.ModelPath == "" {
		return fmt.Errorf("EQUILIBRI_MODEL_PATH is required")
	}
	if c.APIToken == "" {
		return fmt.Errorf("EQUILIBRI_API_TOKEN is required")
	}
	if c.TrainDays < 1 {
		return fmt.Errorf("EQUILIBRI_TRAIN_DAYS must be positive")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
