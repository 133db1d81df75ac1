package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

type Config struct {
	Host      string
	Port      string
	AuthToken string
	DataDir   string
	BackupDir string
	GinMode   string
}

// Load reads configuration from the environment, after loading a .env file
// if one is present in the working directory.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Host:      getEnv("HOST", "127.0.0.1"),
		Port:      getEnv("PORT", "7700"),
		AuthToken: getEnv("AUTH_TOKEN", ""),
		DataDir:   getEnv("DATA_DIR", "data"),
		BackupDir: getEnv("BACKUP_DIR", ""),
		GinMode:   getEnv("GIN_MODE", "debug"),
	}
	if cfg.BackupDir == "" {
		cfg.BackupDir = filepath.Join(cfg.DataDir, "backups")
	}
	return cfg
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
