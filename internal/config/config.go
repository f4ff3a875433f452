package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	S3       S3Config       `mapstructure:"s3"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Session  SessionConfig  `mapstructure:"session"`
	Program  ProgramConfig  `mapstructure:"program"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Admin    AdminConfig    `mapstructure:"admin"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	// Driver is "mongo" or "memory". The memory driver loses all data on exit.
	Driver string `mapstructure:"driver"`
	URI    string `mapstructure:"uri"`
	Name   string `mapstructure:"name"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// RedisConfig points at the session revocation store. An empty address
// keeps revocations in process memory.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode"` // "development" or "production"
}

// SessionConfig tunes the session router.
type SessionConfig struct {
	// LookupTimeout bounds each profile / partner-application lookup.
	LookupTimeout time.Duration `mapstructure:"lookup_timeout"`
	// RequireConfirmedEmail rejects sign-in until the confirmation link was used.
	RequireConfirmedEmail bool `mapstructure:"require_confirmed_email"`
}

// ProgramConfig shapes the program seeded for new customers.
type ProgramConfig struct {
	PlanName   string `mapstructure:"plan_name"`
	TotalWeeks int    `mapstructure:"total_weeks"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// AdminConfig bootstraps the first admin account when Email is set.
type AdminConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

// LoadConfig reads configuration from file or environment variables.
// A .env file in the working directory, when present, is loaded into the
// process environment first.
func LoadConfig(path string) (config Config, err error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS, jwt.expiration -> JWT_EXPIRATION
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	err = v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil // env vars and defaults are enough
	} else if err != nil {
		return
	}

	err = v.Unmarshal(&config)
	if err != nil {
		return
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("database.driver", "mongo")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "wellness_portal")
	// Keys without a default are invisible to AutomaticEnv during Unmarshal,
	// so every env-only key is registered here.
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.bucket_name", "wellness-uploads")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiration", "1h")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("log.mode", "development")
	v.SetDefault("session.lookup_timeout", "5s")
	v.SetDefault("session.require_confirmed_email", true)
	v.SetDefault("program.plan_name", "12-Week Wellness Reset")
	v.SetDefault("program.total_weeks", 12)
	v.SetDefault("admin.email", "")
	v.SetDefault("admin.password", "")
	v.SetDefault("admin.name", "Administrator")
	v.SetDefault("cors.allow_origins", []string{"http://localhost:3000", "http://localhost:5173"})
}
