package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures runtime configuration for the API server.
type Config struct {
	Port                    string
	Env                     string
	LogLevel                string
	PostgresConnStr         string
	MongoURI                string
	MongoDatabase           string
	JWTSecret               string
	FirebaseCredentialsPath string
	StorageBucket           string
	SignedURLTTL            time.Duration
}

// Load reads configuration from the environment with defaults applied.
func Load() *Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MONGO_DB", "threadloom")
	v.SetDefault("JWT_SECRET", "supersecretjwtkey")
	v.SetDefault("SIGNED_URL_TTL", "15m")

	return &Config{
		Port:                    v.GetString("PORT"),
		Env:                     v.GetString("ENV"),
		LogLevel:                v.GetString("LOG_LEVEL"),
		PostgresConnStr:         v.GetString("POSTGRES_CONN_STR"),
		MongoURI:                v.GetString("MONGO_URI"),
		MongoDatabase:           v.GetString("MONGO_DB"),
		JWTSecret:               v.GetString("JWT_SECRET"),
		FirebaseCredentialsPath: v.GetString("FIREBASE_CREDENTIALS_PATH"),
		StorageBucket:           v.GetString("STORAGE_BUCKET"),
		SignedURLTTL:            v.GetDuration("SIGNED_URL_TTL"),
	}
}
