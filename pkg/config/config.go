package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the trading core.
type Config struct {
	Port string

	// Database
	DBPath string

	// Auth
	JWTSecret        string
	OperatorPassword string

	// Logging
	LogLevel string

	// Binance USDT-M futures
	EnableBinance    bool
	BinanceTestnet   bool
	BinanceAPIKey    string
	BinanceAPISecret string

	// BitMEX
	EnableBitmex    bool
	BitmexTestnet   bool
	BitmexAPIKey    string
	BitmexAPISecret string

	// Strategy defaults file (YAML); empty means built-in defaults.
	StrategyDefaultsPath string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:                 getEnv("PORT", "8080"),
		DBPath:               getEnv("DB_PATH", "./data/tradeking.db"),
		JWTSecret:            getEnv("JWT_SECRET", "dev-secret"),
		OperatorPassword:     getEnv("OPERATOR_PASSWORD", ""),
		LogLevel:             strings.ToLower(getEnv("LOG_LEVEL", "info")),
		EnableBinance:        getEnv("ENABLE_BINANCE", "true") == "true",
		BinanceTestnet:       getEnv("BINANCE_TESTNET", "true") == "true",
		BinanceAPIKey:        os.Getenv("BINANCE_API_KEY"),
		BinanceAPISecret:     os.Getenv("BINANCE_API_SECRET"),
		EnableBitmex:         getEnv("ENABLE_BITMEX", "true") == "true",
		BitmexTestnet:        getEnv("BITMEX_TESTNET", "true") == "true",
		BitmexAPIKey:         os.Getenv("BITMEX_API_KEY"),
		BitmexAPISecret:      os.Getenv("BITMEX_API_SECRET"),
		StrategyDefaultsPath: getEnv("STRATEGY_DEFAULTS_PATH", ""),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
