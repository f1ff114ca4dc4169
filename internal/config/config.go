package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Addr          string
	SessionSecret string
	RulesScript   string
	TranscriptDir string

	DBUrl  string
	DBNs   string
	DBDb   string
	DBUser string
	DBPass string
}

// New loads configuration from environment variables. A .env file is
// honored when present so local development does not need exported vars.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		Addr:          getEnv("DICELINK_ADDR", ":8080"),
		SessionSecret: os.Getenv("DICELINK_SESSION_SECRET"),
		RulesScript:   getEnv("DICELINK_RULES_SCRIPT", ""),
		TranscriptDir: getEnv("DICELINK_TRANSCRIPT_DIR", "transcripts"),
		DBUrl:         os.Getenv("SURREAL_URL"),
		DBUser:        os.Getenv("SURREAL_USER"),
		DBPass:        os.Getenv("SURREAL_PASS"),
		DBNs:          getEnv("SURREAL_NS", "dicelink"),
		DBDb:          getEnv("SURREAL_DB", "dicelink"),
	}

	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("required environment variable DICELINK_SESSION_SECRET is not set")
	}
	if cfg.DBUrl == "" {
		return nil, fmt.Errorf("required environment variable SURREAL_URL is not set")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
