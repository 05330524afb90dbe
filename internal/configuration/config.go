package configuration

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type MongoConfig struct {
	URI      string `json:"uri"`
	Database string `json:"database"`
}

type ServerConfig struct {
	Port           int      `json:"port"`
	AllowedOrigins []string `json:"allowed_origins"`
}

type AuthConfig struct {
	JWTSecret string `json:"jwt_secret"`
}

type PresenceConfig struct {
	SweepIntervalMinutes int `json:"sweep_interval_minutes"`
	StalenessMinutes     int `json:"staleness_minutes"`
}

type Config struct {
	Mongo    MongoConfig    `json:"mongo"`
	Server   ServerConfig   `json:"server"`
	Auth     AuthConfig     `json:"auth"`
	Presence PresenceConfig `json:"presence"`
}

func (p PresenceConfig) SweepInterval() time.Duration {
	return time.Duration(p.SweepIntervalMinutes) * time.Minute
}

func (p PresenceConfig) Staleness() time.Duration {
	return time.Duration(p.StalenessMinutes) * time.Minute
}

// LoadConfig reads the JSON config file, then applies environment
// overrides. A missing file is not an error; everything can come from
// the environment. `.env` is loaded first if present.
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	config := Config{
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "webchat",
		},
		Server: ServerConfig{
			Port:           3001,
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		},
		Presence: PresenceConfig{
			SweepIntervalMinutes: 5,
			StalenessMinutes:     10,
		},
	}

	if file, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(file, &config); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if v := os.Getenv("MONGO_URI"); v != "" {
		config.Mongo.URI = v
	}
	if v := os.Getenv("MONGO_DATABASE"); v != "" {
		config.Mongo.Database = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		config.Server.AllowedOrigins = origins
	}

	return &config, nil
}
