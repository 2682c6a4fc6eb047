package config

import "github.com/caarlos0/env/v11"

type ServerConfig struct {
	PostgresDSN string `env:"POSTGRES_DSN,required,notEmpty"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`

	// RedisAddr is optional; when empty the config cache runs on the
	// in-process fallback only.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	AdminAPIKey string `env:"ADMIN_API_KEY"`

	SeedConfigPath string `env:"SEED_CONFIG_PATH"`

	OfflineCapHours      int   `env:"OFFLINE_CAP_HOURS" envDefault:"12"`
	OfflineGoldCap       int64 `env:"OFFLINE_GOLD_CAP" envDefault:"100000"`
	StarterGold          int64 `env:"STARTER_GOLD" envDefault:"1000"`
	StarterGems          int64 `env:"STARTER_GEMS" envDefault:"10"`
	DailyAdSpinLimit     int   `env:"DAILY_AD_SPIN_LIMIT" envDefault:"3"`
	PaidSpinGemCost      int64 `env:"PAID_SPIN_GEM_COST" envDefault:"50"`
	CacheBreakerFailures int   `env:"CACHE_BREAKER_FAILURES" envDefault:"5"`
	CacheBreakerCooldown int   `env:"CACHE_BREAKER_COOLDOWN_SECONDS" envDefault:"30"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
