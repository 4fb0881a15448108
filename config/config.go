package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/gueripep/brainflash-server/pkg/constant"
)

type Config struct {
	Env                    string
	Port                   string
	DBURL                  string
	AccessTokenSecret      string
	RefreshTokenSecret     string
	APIKey                 string
	AccessExpiryMin        int
	RefreshExpiryMin       int
	ResetExpiryMin         int
	VerifyExpiryMin        int
	MaxActiveRefreshTokens int
}

// Load reads configuration from the environment, with a best-effort .env
// file on top. Secrets are required; everything else has a default.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Env:                    getEnv("ENV", "development"),
		Port:                   getEnv("PORT", "8080"),
		DBURL:                  mustGetEnv("DB_URL"),
		AccessTokenSecret:      mustGetEnv("ACCESS_TOKEN_SECRET"),
		RefreshTokenSecret:     mustGetEnv("REFRESH_TOKEN_SECRET"),
		APIKey:                 getEnv("API_KEY", ""),
		AccessExpiryMin:        getEnvAsInt("ACCESS_TOKEN_EXPIRY", constant.DefaultAccessTokenExpiryMin),
		RefreshExpiryMin:       getEnvAsInt("REFRESH_TOKEN_EXPIRY", constant.DefaultRefreshTokenExpiryMin),
		ResetExpiryMin:         getEnvAsInt("RESET_TOKEN_EXPIRY", constant.DefaultResetTokenExpiryMin),
		VerifyExpiryMin:        getEnvAsInt("VERIFY_TOKEN_EXPIRY", constant.DefaultVerifyTokenExpiryMin),
		MaxActiveRefreshTokens: getEnvAsInt("MAX_ACTIVE_REFRESH_TOKENS", constant.DefaultMaxActiveRefreshTokens),
	}
}

func getEnv(key string, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func mustGetEnv(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	log.Fatalf("Missing required environment variable: %s", key)
	return ""
}

func getEnvAsInt(key string, defaultVal int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		log.Printf("Invalid value for %s, using default %d", key, defaultVal)
		return defaultVal
	}
	return val
}
