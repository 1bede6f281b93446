package config

import (
	"github.com/spf13/viper"
	"sync"
)

var once sync.Once

func InitConfig() {
	once.Do(func() {
		viper.AutomaticEnv()

		viper.BindEnv("metrics_port", "METRICS_PORT")
		viper.BindEnv("telegram_bot_token", "TELEGRAM_BOT_TOKEN")
		viper.BindEnv("db_path", "DB_PATH")
		viper.BindEnv("check_interval", "CHECK_INTERVAL")
		viper.BindEnv("check_delay", "CHECK_DELAY")
		viper.BindEnv("price_timeout", "PRICE_TIMEOUT")
		viper.BindEnv("session_ttl", "SESSION_TTL")
		viper.BindEnv("debug", "DEBUG")
		viper.BindEnv("lang", "BOT_LANG")

		viper.SetDefault("metrics_port", 9090)
		viper.SetDefault("db_path", "/app/data/vigia.db")
		viper.SetDefault("check_interval", 300)
		viper.SetDefault("check_delay", 10)
		viper.SetDefault("price_timeout", 10)
		viper.SetDefault("session_ttl", 600)
		viper.SetDefault("debug", false)
		viper.SetDefault("lang", "es")
	})
}

func GetString(key string) string {
	InitConfig()
	return viper.GetString(key)
}

func GetInt(key string) int {
	InitConfig()
	return viper.GetInt(key)
}

func GetBool(key string) bool {
	InitConfig()
	return viper.GetBool(key)
}
