package config

import (
	"os"
	"strconv"
)

const (
	appNameVar     = "APP_NAME"
	apiBaseURLVar  = "API_BASE_URL"
	procBaseURLVar = "PROCESSOR_BASE_URL"
	procAPIKeyVar  = "PROCESSOR_API_KEY"
	currencyVar    = "CURRENCY"
	storageVar     = "STORAGE_BACKEND"
	folderEnvVar   = "FOLDER"
	redisAddrVar   = "REDIS_ADDR"
	redisPassVar   = "REDIS_PASSWORD"
	redisDBVar     = "REDIS_DB"
	pricingVar     = "PRICING_POLICY"
	stepTimeoutVar = "STEP_TIMEOUT_SECONDS"
)

type EnvVars struct{}

var _ Config = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Kinnstay")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func (EnvVars) GetAPIBaseURL() string {
	return GetEnv(apiBaseURLVar, "http://localhost:8080")
}

func (EnvVars) GetStepTimeoutSeconds() int {
	return getEnvInt(stepTimeoutVar, 30)
}

func (EnvVars) GetProcessorBaseURL() string {
	return GetEnv(procBaseURLVar, "https://api.stripe.com")
}

func (EnvVars) GetProcessorAPIKey() string {
	return GetEnv(procAPIKeyVar, "")
}

func (EnvVars) GetCurrency() string {
	return GetEnv(currencyVar, "usd")
}

func (EnvVars) GetStorageBackend() string {
	return GetEnv(storageVar, "file")
}

func (EnvVars) GetDataFolder() string {
	return GetEnv(folderEnvVar, "./data")
}

func (EnvVars) GetRedisAddr() string {
	return GetEnv(redisAddrVar, "localhost:6379")
}

func (EnvVars) GetRedisPassword() string {
	return GetEnv(redisPassVar, "")
}

func (EnvVars) GetRedisDB() int {
	return getEnvInt(redisDBVar, 0)
}

func (EnvVars) GetPricingPolicy() string {
	return GetEnv(pricingVar, "per-stay")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(envVar string, defaultValue int) int {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
