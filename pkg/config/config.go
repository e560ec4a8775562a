package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/pflag"
)

// Config holds the configuration for the ALS lighting agent
type Config struct {
	// MQTT configuration
	MQTTBroker   string
	MQTTPort     int
	MQTTUser     string
	MQTTPassword string
	MQTTClientID string

	// Redis configuration
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Service configuration
	ServiceName string
	HealthPort  int
	LogLevel    string

	// Learned sample store configuration
	SQLitePath        string
	SQLiteBusyTimeout int // milliseconds
	RetentionDays     int
	MinKelvin         int
	MaxKelvin         int

	// Location for sunrise calculation
	Latitude  float64
	Longitude float64

	// Mode resolution configuration
	DayElevationThreshold     float64
	EveningElevationThreshold float64
	EveningCutoff             string // HH:MM clock time
	MorningWindowStart        string // HH:MM clock time
	MorningWindowEnd          string // HH:MM clock time

	// Ramp configuration
	WorkdayRampMinutes  int
	OffdayRampMinutes   int
	RampStartBrightness int
	RampEndBrightness   int
	RampStartKelvin     int
	RampEndKelvin       int

	// Decision loop configuration
	DecisionIntervalSec   int
	ManualOverrideMinutes int
	MinDecisionIntervalMs int
	RoomPreferencesPath   string
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		MQTTBroker:    "localhost",
		MQTTPort:      1883,
		MQTTUser:      "",
		MQTTPassword:  "",
		MQTTClientID:  "",
		RedisHost:     "localhost",
		RedisPort:     6379,
		RedisPassword: "",
		RedisDB:       0,
		ServiceName:   "lighting-agent",
		HealthPort:    8080,
		LogLevel:      "info",
		// Store defaults
		SQLitePath:        "als.db",
		SQLiteBusyTimeout: 10000,
		RetentionDays:     90,
		MinKelvin:         2000,
		MaxKelvin:         7000,
		// Location defaults (Helsinki coordinates)
		Latitude:  60.1695,
		Longitude: 24.9354,
		// Mode defaults
		DayElevationThreshold:     10.0,
		EveningElevationThreshold: 4.0,
		EveningCutoff:             "22:00",
		MorningWindowStart:        "04:45",
		MorningWindowEnd:          "08:00",
		// Ramp defaults
		WorkdayRampMinutes:  50,
		OffdayRampMinutes:   75,
		RampStartBrightness: 10,
		RampEndBrightness:   100,
		RampStartKelvin:     2000,
		RampEndKelvin:       4000,
		// Decision loop defaults
		DecisionIntervalSec:   30,
		ManualOverrideMinutes: 30,
		MinDecisionIntervalMs: 10000,
		RoomPreferencesPath:   "rooms.yaml",
	}
}

// LoadFromEnv loads configuration from environment variables with ALS_ prefix
func (c *Config) LoadFromEnv() {
	// MQTT configuration
	if v := os.Getenv("ALS_MQTT_BROKER"); v != "" {
		c.MQTTBroker = v
	}
	if v := os.Getenv("ALS_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.MQTTPort = port
		}
	}
	if v := os.Getenv("ALS_MQTT_USER"); v != "" {
		c.MQTTUser = v
	}
	if v := os.Getenv("ALS_MQTT_PASSWORD"); v != "" {
		c.MQTTPassword = v
	}
	if v := os.Getenv("ALS_MQTT_CLIENT_ID"); v != "" {
		c.MQTTClientID = v
	}

	// Redis configuration
	if v := os.Getenv("ALS_REDIS_HOST"); v != "" {
		c.RedisHost = v
	}
	if v := os.Getenv("ALS_REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.RedisPort = port
		}
	}
	if v := os.Getenv("ALS_REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("ALS_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.RedisDB = db
		}
	}

	// Service configuration
	if v := os.Getenv("ALS_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv("ALS_HEALTH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HealthPort = port
		}
	}
	if v := os.Getenv("ALS_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	// Store configuration
	if v := os.Getenv("ALS_SQLITE_PATH"); v != "" {
		c.SQLitePath = v
	}
	if v := os.Getenv("ALS_SQLITE_BUSY_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.SQLiteBusyTimeout = ms
		}
	}
	if v := os.Getenv("ALS_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil {
			c.RetentionDays = days
		}
	}
	if v := os.Getenv("ALS_MIN_KELVIN"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			c.MinKelvin = k
		}
	}
	if v := os.Getenv("ALS_MAX_KELVIN"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			c.MaxKelvin = k
		}
	}

	// Location configuration
	if v := os.Getenv("ALS_LATITUDE"); v != "" {
		if lat, err := strconv.ParseFloat(v, 64); err == nil {
			c.Latitude = lat
		}
	}
	if v := os.Getenv("ALS_LONGITUDE"); v != "" {
		if lon, err := strconv.ParseFloat(v, 64); err == nil {
			c.Longitude = lon
		}
	}

	// Mode configuration
	if v := os.Getenv("ALS_DAY_ELEVATION_THRESHOLD"); v != "" {
		if deg, err := strconv.ParseFloat(v, 64); err == nil {
			c.DayElevationThreshold = deg
		}
	}
	if v := os.Getenv("ALS_EVENING_ELEVATION_THRESHOLD"); v != "" {
		if deg, err := strconv.ParseFloat(v, 64); err == nil {
			c.EveningElevationThreshold = deg
		}
	}
	if v := os.Getenv("ALS_EVENING_CUTOFF"); v != "" {
		c.EveningCutoff = v
	}
	if v := os.Getenv("ALS_MORNING_WINDOW_START"); v != "" {
		c.MorningWindowStart = v
	}
	if v := os.Getenv("ALS_MORNING_WINDOW_END"); v != "" {
		c.MorningWindowEnd = v
	}

	// Ramp configuration
	if v := os.Getenv("ALS_WORKDAY_RAMP_MINUTES"); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			c.WorkdayRampMinutes = m
		}
	}
	if v := os.Getenv("ALS_OFFDAY_RAMP_MINUTES"); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			c.OffdayRampMinutes = m
		}
	}
	if v := os.Getenv("ALS_RAMP_START_BRIGHTNESS"); v != "" {
		if b, err := strconv.Atoi(v); err == nil {
			c.RampStartBrightness = b
		}
	}
	if v := os.Getenv("ALS_RAMP_END_BRIGHTNESS"); v != "" {
		if b, err := strconv.Atoi(v); err == nil {
			c.RampEndBrightness = b
		}
	}
	if v := os.Getenv("ALS_RAMP_START_KELVIN"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			c.RampStartKelvin = k
		}
	}
	if v := os.Getenv("ALS_RAMP_END_KELVIN"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			c.RampEndKelvin = k
		}
	}

	// Decision loop configuration
	if v := os.Getenv("ALS_DECISION_INTERVAL_SEC"); v != "" {
		if interval, err := strconv.Atoi(v); err == nil {
			c.DecisionIntervalSec = interval
		}
	}
	if v := os.Getenv("ALS_MANUAL_OVERRIDE_MINUTES"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil {
			c.ManualOverrideMinutes = minutes
		}
	}
	if v := os.Getenv("ALS_MIN_DECISION_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.MinDecisionIntervalMs = ms
		}
	}
	if v := os.Getenv("ALS_ROOM_PREFERENCES_PATH"); v != "" {
		c.RoomPreferencesPath = v
	}
}

// LoadFromFlags parses command-line flags and overrides config values
func (c *Config) LoadFromFlags() {
	// MQTT flags
	pflag.StringVar(&c.MQTTBroker, "mqtt-broker", c.MQTTBroker, "MQTT broker hostname")
	pflag.IntVar(&c.MQTTPort, "mqtt-port", c.MQTTPort, "MQTT broker port")
	pflag.StringVar(&c.MQTTUser, "mqtt-user", c.MQTTUser, "MQTT username")
	pflag.StringVar(&c.MQTTPassword, "mqtt-password", c.MQTTPassword, "MQTT password")
	pflag.StringVar(&c.MQTTClientID, "mqtt-client-id", c.MQTTClientID, "MQTT client ID")

	// Redis flags
	pflag.StringVar(&c.RedisHost, "redis-host", c.RedisHost, "Redis hostname")
	pflag.IntVar(&c.RedisPort, "redis-port", c.RedisPort, "Redis port")
	pflag.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	pflag.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")

	// Service flags
	pflag.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Service name")
	pflag.IntVar(&c.HealthPort, "health-port", c.HealthPort, "Health check HTTP port")
	pflag.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")

	// Store flags
	pflag.StringVar(&c.SQLitePath, "sqlite-path", c.SQLitePath, "Path to learned sample database")
	pflag.IntVar(&c.SQLiteBusyTimeout, "sqlite-busy-timeout-ms", c.SQLiteBusyTimeout, "SQLite busy timeout in milliseconds")
	pflag.IntVar(&c.RetentionDays, "retention-days", c.RetentionDays, "Learned sample retention in days")
	pflag.IntVar(&c.MinKelvin, "min-kelvin", c.MinKelvin, "Minimum accepted color temperature")
	pflag.IntVar(&c.MaxKelvin, "max-kelvin", c.MaxKelvin, "Maximum accepted color temperature")

	// Location flags
	pflag.Float64Var(&c.Latitude, "latitude", c.Latitude, "Geographic latitude for sunrise calculation")
	pflag.Float64Var(&c.Longitude, "longitude", c.Longitude, "Geographic longitude for sunrise calculation")

	// Mode flags
	pflag.Float64Var(&c.DayElevationThreshold, "day-elevation-threshold", c.DayElevationThreshold, "Sun elevation in degrees required for Day mode")
	pflag.Float64Var(&c.EveningElevationThreshold, "evening-elevation-threshold", c.EveningElevationThreshold, "Sun elevation in degrees below which afternoon becomes Evening")
	pflag.StringVar(&c.EveningCutoff, "evening-cutoff", c.EveningCutoff, "Clock time (HH:MM) after which mode is Evening")
	pflag.StringVar(&c.MorningWindowStart, "morning-window-start", c.MorningWindowStart, "Earliest clock time (HH:MM) a morning ramp may start")
	pflag.StringVar(&c.MorningWindowEnd, "morning-window-end", c.MorningWindowEnd, "Latest clock time (HH:MM) a morning ramp may start")

	// Ramp flags
	pflag.IntVar(&c.WorkdayRampMinutes, "workday-ramp-minutes", c.WorkdayRampMinutes, "Base ramp duration on workdays")
	pflag.IntVar(&c.OffdayRampMinutes, "offday-ramp-minutes", c.OffdayRampMinutes, "Base ramp duration on off days")
	pflag.IntVar(&c.RampStartBrightness, "ramp-start-brightness", c.RampStartBrightness, "Ramp starting brightness percent")
	pflag.IntVar(&c.RampEndBrightness, "ramp-end-brightness", c.RampEndBrightness, "Ramp ending brightness percent")
	pflag.IntVar(&c.RampStartKelvin, "ramp-start-kelvin", c.RampStartKelvin, "Ramp starting color temperature")
	pflag.IntVar(&c.RampEndKelvin, "ramp-end-kelvin", c.RampEndKelvin, "Ramp ending color temperature")

	// Decision loop flags
	pflag.IntVar(&c.DecisionIntervalSec, "decision-interval", c.DecisionIntervalSec, "Decision loop interval in seconds")
	pflag.IntVar(&c.ManualOverrideMinutes, "manual-override-minutes", c.ManualOverrideMinutes, "Manual override duration in minutes")
	pflag.IntVar(&c.MinDecisionIntervalMs, "min-decision-interval-ms", c.MinDecisionIntervalMs, "Minimum time between decisions per room (ms)")
	pflag.StringVar(&c.RoomPreferencesPath, "room-preferences", c.RoomPreferencesPath, "Path to room preferences YAML file")

	pflag.Parse()
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT broker is required")
	}
	if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
		return fmt.Errorf("MQTT port must be between 1 and 65535")
	}
	if c.RedisHost == "" {
		return fmt.Errorf("Redis host is required")
	}
	if c.RedisPort <= 0 || c.RedisPort > 65535 {
		return fmt.Errorf("Redis port must be between 1 and 65535")
	}
	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("Health port must be between 1 and 65535")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("Service name is required")
	}
	if c.SQLitePath == "" {
		return fmt.Errorf("SQLite database path is required")
	}
	if c.MinKelvin >= c.MaxKelvin {
		return fmt.Errorf("min kelvin (%d) must be below max kelvin (%d)", c.MinKelvin, c.MaxKelvin)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// MQTTAddress returns the full MQTT broker address
func (c *Config) MQTTAddress() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTBroker, c.MQTTPort)
}

// RedisAddress returns the full Redis address
func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// SQLiteDSN returns the SQLite connection string with reliability pragmas applied
func (c *Config) SQLiteDSN() string {
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL",
		c.SQLitePath, c.SQLiteBusyTimeout)
}
