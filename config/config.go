package config

import (
	"strings"

	"TurnMatch/internal/utils"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	JWT struct {
		Secret string
		TTL    int // seconds
	}
	Matchmaking struct {
		Pool         string
		MaxSupported int // 平台允许的最大人数
		PlayerTTL    int // seconds，对局记录保留时间
	}
	Log struct {
		Level string
	}
}

var C Config

const defaultPath = "config/config.yaml"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.ttl", 24*3600)
	v.SetDefault("matchmaking.pool", "default")
	v.SetDefault("matchmaking.maxsupported", 16)
	v.SetDefault("matchmaking.playerttl", 7*24*3600)
	v.SetDefault("log.level", "info")
}

// Read loads path on top of the defaults. TURNMATCH_* environment variables
// (for example TURNMATCH_REDIS_ADDR) override file values.
func Read(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("turnmatch")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if err := v.ReadInConfig(); err != nil {
		return c, err
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, nil
}

func Load() {
	logger := utils.Named("config")
	c, err := LoadFile(defaultPath, logger)
	if err != nil {
		logger.Fatal("Failed to read config", "path", defaultPath, "err", err)
	}
	C = c
}

// LoadFile 先读当前目录的 .env（可选），再读 path
func LoadFile(path string, logger *log.Logger) (Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Warn(".env not loaded", "err", err)
	}
	return Read(path)
}
