package config

type Config interface {
	EnvConfig
	APIConfig
	ProcessorConfig
	StorageConfig
	PricingConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
}

type APIConfig interface {
	GetAPIBaseURL() string
	GetStepTimeoutSeconds() int
}

type ProcessorConfig interface {
	GetProcessorBaseURL() string
	GetProcessorAPIKey() string
	GetCurrency() string
}

type StorageConfig interface {
	GetStorageBackend() string // "file" or "redis"
	GetDataFolder() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
}

type PricingConfig interface {
	GetPricingPolicy() string
}

type mainConfig struct {
	EnvVars
}

func New() Config {
	return mainConfig{}
}
