package core

import (
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env          string
		Debug        bool
		TestMode     bool
		AppName      string
		Build        string
		RollbarToken string

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
		GenAI    GenAIConfig
		Policy   PolicyConfig
	}

	ServerConfig struct {
		Host            string
		Address         string
		DebugHost       string
		ShutdownTimeout time.Duration
		BodyLimit       string
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		Addr     string
		Password string
		DB       int
		TTL      time.Duration
	}

	GenAIConfig struct {
		Provider    string // gemini, rest, console
		APIKey      string
		Model       string
		Endpoint    string
		Timeout     time.Duration
		Temperature float32
	}

	// PolicyConfig holds the attendance policy defaults and the advisory context bounds.
	PolicyConfig struct {
		DefaultMinPercent   float64
		ZeroClassesEligible bool
		MaxAttendanceChars  int
		MaxTimetableChars   int
		MaxQueryChars       int
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("testMode", false)
	conf.SetDefault("appName", "Attendr")
	conf.SetDefault("build", "develop")
	conf.SetDefault("rollbarToken", "")

	conf.SetDefault("server.host", "localhost")
	conf.SetDefault("server.address", ":8000")
	conf.SetDefault("server.debugHost", ":8001")
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.bodyLimit", "10M")

	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", "5432")
	conf.SetDefault("database.name", "attendr")
	conf.SetDefault("database.user", "attendr")
	conf.SetDefault("database.password", "attendr")
	conf.SetDefault("database.adminUser", "postgres")
	conf.SetDefault("database.adminPassword", "postgres")
	conf.SetDefault("database.disableTLS", true)

	conf.SetDefault("redis.addr", "")
	conf.SetDefault("redis.password", "")
	conf.SetDefault("redis.db", 0)
	conf.SetDefault("redis.ttl", 24*time.Hour)

	conf.SetDefault("genai.provider", "console")
	conf.SetDefault("genai.apiKey", "")
	conf.SetDefault("genai.model", "gemini-2.0-flash")
	conf.SetDefault("genai.endpoint", "https://generativelanguage.googleapis.com/v1beta")
	conf.SetDefault("genai.timeout", 60*time.Second)
	conf.SetDefault("genai.temperature", 0.2)

	conf.SetDefault("policy.defaultMinPercent", 75.0)
	conf.SetDefault("policy.zeroClassesEligible", false)
	conf.SetDefault("policy.maxAttendanceChars", 4000)
	conf.SetDefault("policy.maxTimetableChars", 2000)
	conf.SetDefault("policy.maxQueryChars", 1000)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
	case "PROD":
		conf.SetDefault("debug", false)
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	confDir := os.Getenv("CONFIG_DIR")
	if confDir == "" {
		confDir = "config"
	}
	dotEnvPath := filepath.Join(confDir, ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		Env:          env,
		Debug:        conf.GetBool("debug"),
		TestMode:     conf.GetBool("testMode"),
		AppName:      conf.GetString("appName"),
		Build:        conf.GetString("build"),
		RollbarToken: conf.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:            conf.GetString("server.host"),
			Address:         conf.GetString("server.address"),
			DebugHost:       conf.GetString("server.debugHost"),
			ShutdownTimeout: conf.GetDuration("server.shutdownTimeout"),
			BodyLimit:       conf.GetString("server.bodyLimit"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("database.engine"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetString("database.port"),
			Name:          conf.GetString("database.name"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
		},
		Redis: RedisConfig{
			Addr:     conf.GetString("redis.addr"),
			Password: conf.GetString("redis.password"),
			DB:       conf.GetInt("redis.db"),
			TTL:      conf.GetDuration("redis.ttl"),
		},
		GenAI: GenAIConfig{
			Provider:    conf.GetString("genai.provider"),
			APIKey:      conf.GetString("genai.apiKey"),
			Model:       conf.GetString("genai.model"),
			Endpoint:    conf.GetString("genai.endpoint"),
			Timeout:     conf.GetDuration("genai.timeout"),
			Temperature: float32(conf.GetFloat64("genai.temperature")),
		},
		Policy: PolicyConfig{
			DefaultMinPercent:   conf.GetFloat64("policy.defaultMinPercent"),
			ZeroClassesEligible: conf.GetBool("policy.zeroClassesEligible"),
			MaxAttendanceChars:  conf.GetInt("policy.maxAttendanceChars"),
			MaxTimetableChars:   conf.GetInt("policy.maxTimetableChars"),
			MaxQueryChars:       conf.GetInt("policy.maxQueryChars"),
		},
	}
}

// String is safe to log: secrets are masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"env=%s debug=%t build=%s server=%s db=%s/%s redis=%q genai=%s/%s policy.min=%.2f",
		c.Env, c.Debug, c.Build, c.Server.Address, c.Database.Address(), c.Database.Name,
		c.Redis.Addr, c.GenAI.Provider, c.GenAI.Model, c.Policy.DefaultMinPercent,
	)
}
