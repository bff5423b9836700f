package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr            string
	LogLevel            string
	Symbols             []string
	ExpirySweepInterval time.Duration
	DepthLevels         int
	AllowedOrigins      []string

	// SettlementURL empty disables trade forwarding.
	SettlementURL       string
	SettlementQueueSize int
	SettlementTimeout   time.Duration
}

func Default() Config {
	return Config{
		HTTPAddr:            ":8080",
		LogLevel:            "info",
		Symbols:             []string{"ETH/USDC", "BTC/USDC"},
		ExpirySweepInterval: time.Second,
		DepthLevels:         20,
		AllowedOrigins:      []string{"*"},
		SettlementQueueSize: 1024,
		SettlementTimeout:   5 * time.Second,
	}
}

// Load reads an optional .env file, then lets environment variables override the defaults.
// Priority: ENV > .env file > defaults. Malformed values keep the default.
func Load(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		cfg.Symbols = splitList(v)
	}
	if v := os.Getenv("EXPIRY_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ExpirySweepInterval = d
		}
	}
	if v := os.Getenv("DEPTH_LEVELS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DepthLevels = n
		}
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("SETTLEMENT_URL"); v != "" {
		cfg.SettlementURL = v
	}
	if v := os.Getenv("SETTLEMENT_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SettlementQueueSize = n
		}
	}
	if v := os.Getenv("SETTLEMENT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SettlementTimeout = d
		}
	}

	return cfg
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
