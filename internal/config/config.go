package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"lumen-backend/internal/lumen"
)

// Config holds application configuration (env + Viper). Economy values here
// are only seeds/fallbacks: the live rebirth amount and vessel capacity are
// read from the Settings table inside each transaction that needs them.
type Config struct {
	Env                 string
	Port                string
	SessionSecret       string
	DatabaseURL         string
	RedisURL            string
	FrontendURLEndsWith string
	DevPassword         string
	AdminKey            string

	DecayRatePerHour    int64 // whole Lm per hour
	CycleLengthDays     int
	RebirthAmount       int64 // whole Lm
	VesselCapacity      int64 // whole Lm
	ReconcileTolerance  int64 // whole Lm
	ReconcileInterval   time.Duration
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	port := viper.GetString("PORT")
	if port == "" {
		port = "8080"
	}
	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL")
	if env == "test" && viper.GetString("DATABASE_URL_TEST") != "" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}

	return &Config{
		Env:                 env,
		Port:                port,
		SessionSecret:       viper.GetString("SESSION_SECRET"),
		DatabaseURL:         dbURL,
		RedisURL:            viper.GetString("REDIS_URL"),
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         viper.GetString("DEV_PASSWORD"),
		AdminKey:            viper.GetString("ADMIN_KEY"),
		DecayRatePerHour:    int64OrDefault("DECAY_RATE_PER_HOUR", lumen.DefaultRatePerHour),
		CycleLengthDays:     int(int64OrDefault("CYCLE_LENGTH_DAYS", 10)),
		RebirthAmount:       int64OrDefault("REBIRTH_AMOUNT", 2400),
		VesselCapacity:      int64OrDefault("VESSEL_CAPACITY", 2400),
		ReconcileTolerance:  int64OrDefault("RECONCILE_TOLERANCE", 1),
		ReconcileInterval:   durationOrDefault("RECONCILE_INTERVAL", 5*time.Minute),
	}, nil
}

func int64OrDefault(key string, def int64) int64 {
	if !viper.IsSet(key) || viper.GetString(key) == "" {
		return def
	}
	return viper.GetInt64(key)
}

func durationOrDefault(key string, def time.Duration) time.Duration {
	if !viper.IsSet(key) || viper.GetString(key) == "" {
		return def
	}
	if d := viper.GetDuration(key); d > 0 {
		return d
	}
	return def
}

// RatePerHourMicros returns the decay rate in micro-Lm per hour.
func (c *Config) RatePerHourMicros() int64 {
	return lumen.UnitsToMicros(c.DecayRatePerHour)
}
