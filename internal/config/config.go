package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

type Config struct {
	GeminiAPIKey    string
	FlashModel      string
	ProModel        string
	Port            string
	DataPath        string
	ProjectID       string
	DefaultInterval int
	LogRetention    int
}

func Load() (*Config, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required but not set")
	}

	flashModel := os.Getenv("GEMINI_FLASH_MODEL")
	if flashModel == "" {
		flashModel = "gemini-2.5-flash"
	}

	proModel := os.Getenv("GEMINI_PRO_MODEL")
	if proModel == "" {
		proModel = "gemini-2.5-pro"
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
		slog.Info("Defaulting to port", "port", port)
	}

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = "data/bot.json"
	}

	// When set, Firestore is used for persistence instead of the local file.
	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")

	defaultInterval := 30
	if v := os.Getenv("DEFAULT_INTERVAL_MINUTES"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("invalid DEFAULT_INTERVAL_MINUTES %q", v)
		}
		defaultInterval = parsed
	}

	logRetention := 200
	if v := os.Getenv("LOG_RETENTION"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("invalid LOG_RETENTION %q", v)
		}
		logRetention = parsed
	}

	return &Config{
		GeminiAPIKey:    apiKey,
		FlashModel:      flashModel,
		ProModel:        proModel,
		Port:            port,
		DataPath:        dataPath,
		ProjectID:       projectID,
		DefaultInterval: defaultInterval,
		LogRetention:    logRetention,
	}, nil
}
