package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the defaults that flags fall back to.
type Config struct {
	OutputRoot string
	RembgBin   string
	RembgModel string
	ONNXModel  string
	Parallel   int
	LogFormat  string
	EnvFile    string
}

// Load reads the .env file (if present) and populates Config from environment variables.
func Load() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}

	// Load .env file if it exists; ignore error if missing
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	parallel := 1
	if v := os.Getenv("SHEET2FRAMES_PARALLEL"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("invalid SHEET2FRAMES_PARALLEL %q: want a positive integer", v)
		}
		parallel = parsed
	}

	logFormat := getenv("SHEET2FRAMES_LOG_FORMAT", "text")
	if logFormat != "text" && logFormat != "json" {
		return nil, fmt.Errorf("invalid SHEET2FRAMES_LOG_FORMAT %q: want text or json", logFormat)
	}

	return &Config{
		OutputRoot: getenv("SHEET2FRAMES_OUTPUT", "./frames"),
		RembgBin:   getenv("SHEET2FRAMES_REMBG_BIN", "rembg"),
		RembgModel: getenv("SHEET2FRAMES_REMBG_MODEL", "u2net"),
		ONNXModel:  os.Getenv("SHEET2FRAMES_ONNX_MODEL"),
		Parallel:   parallel,
		LogFormat:  logFormat,
		EnvFile:    envFile,
	}, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
