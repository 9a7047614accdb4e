package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverNATS     = "nats"
)

type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	MQTT       MQTTConfig
	Presence   PresenceConfig
	Timeouts   TimeoutConfig
	Retry      RetryConfig
	Inventory  InventoryConfig
	Attendance AttendanceConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	CORS       CORSConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	Environment     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxRequestBytes int64
}

type StoreConfig struct {
	Driver   string
	Postgres DatabaseConfig
	Redis    RedisConfig
	NATS     NATSConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type NATSConfig struct {
	URL    string
	Bucket string
}

type MQTTConfig struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	HeartbeatTopic string
	ScanTopic      string
	StatusTopic    string
	QoS            byte
	Workers        int
	QueueSize      int
}

// Enabled reports whether MQTT ingestion should be started.
func (c MQTTConfig) Enabled() bool {
	return c.Broker != ""
}

type PresenceConfig struct {
	Enabled   bool
	Interval  time.Duration
	Threshold time.Duration
}

// TimeoutConfig holds per-operation-class deadlines for store calls.
type TimeoutConfig struct {
	Default time.Duration
	Store   time.Duration
	Device  time.Duration
}

type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
}

type InventoryConfig struct {
	RefreshInterval time.Duration
	MinRefreshGap   time.Duration
}

type AttendanceConfig struct {
	EventName       string
	SessionID       string
	Location        string
	Timezone        string
	DuplicateWindow time.Duration
	MinNIMLength    int
}

type AuthConfig struct {
	JWTSecret  string
	CronSecret string
}

type RateLimitConfig struct {
	GeneralRPS   float64 // Requests per second for general endpoints
	GeneralBurst int     // Burst size for general endpoints
}

type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("SERVER_READ_TIMEOUT", "15s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "15s")
	v.SetDefault("SERVER_IDLE_TIMEOUT", "60s")
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", "30s")
	v.SetDefault("SERVER_MAX_REQUEST_BYTES", 1<<20)

	v.SetDefault("STORE_DRIVER", DriverMemory)
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_KEY_PREFIX", "stokmanager:")
	v.SetDefault("NATS_URL", "nats://localhost:4222")
	v.SetDefault("NATS_BUCKET", "stokmanager")

	v.SetDefault("MQTT_CLIENT_ID", "stokmanager")
	v.SetDefault("MQTT_HEARTBEAT_TOPIC", "scanners/+/heartbeat")
	v.SetDefault("MQTT_SCAN_TOPIC", "scanners/+/scan")
	v.SetDefault("MQTT_STATUS_TOPIC", "scanners/%s/status")
	v.SetDefault("MQTT_QOS", 1)
	v.SetDefault("MQTT_WORKERS", 4)
	v.SetDefault("MQTT_QUEUE_SIZE", 256)

	v.SetDefault("PRESENCE_ENABLED", true)
	v.SetDefault("PRESENCE_INTERVAL", "30s")
	v.SetDefault("PRESENCE_THRESHOLD", "30s")

	v.SetDefault("TIMEOUT_DEFAULT", "10s")
	v.SetDefault("TIMEOUT_STORE", "15s")
	v.SetDefault("TIMEOUT_DEVICE", "8s")

	v.SetDefault("RETRY_MAX_RETRIES", 3)
	v.SetDefault("RETRY_INITIAL_DELAY", "1s")

	v.SetDefault("INVENTORY_REFRESH_INTERVAL", "60s")
	v.SetDefault("INVENTORY_MIN_REFRESH_GAP", "5s")

	v.SetDefault("ATTENDANCE_EVENT_NAME", "Seminar Teknologi 2025")
	v.SetDefault("ATTENDANCE_SESSION_ID", "seminar-2025")
	v.SetDefault("ATTENDANCE_LOCATION", "Auditorium Utama")
	v.SetDefault("ATTENDANCE_TIMEZONE", "Asia/Jakarta")
	v.SetDefault("ATTENDANCE_DUPLICATE_WINDOW", "15s")
	v.SetDefault("ATTENDANCE_MIN_NIM_LENGTH", 8)

	v.SetDefault("RATE_LIMIT_GENERAL_RPS", 50)
	v.SetDefault("RATE_LIMIT_GENERAL_BURST", 100)

	v.SetDefault("CORS_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization", "X-Request-ID"})
	v.SetDefault("CORS_EXPOSED_HEADERS", []string{"X-Request-ID", "Content-Disposition"})
	v.SetDefault("CORS_MAX_AGE", 86400)
}

// Load reads configuration from an optional .env file, the environment and
// command line flags, in increasing order of precedence.
func Load(args []string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	flags := pflag.NewFlagSet("stokmanager", pflag.ContinueOnError)
	configFile := flags.String("config", ".env", "path to a dotenv config file")
	flags.String("env", "", "environment name (development, production)")
	flags.String("port", "", "HTTP listen port")
	flags.String("store", "", "store driver (memory, postgres, redis, nats)")
	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	v.SetConfigFile(*configFile)
	v.SetConfigType("env")
	v.AddConfigPath(".")
	if homeDir, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(homeDir)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		log.Printf("Warning: config file not found: %v. Falling back to environment variables only.", err)
	}

	for key, flag := range map[string]string{
		"ENVIRONMENT":  "env",
		"SERVER_PORT":  "port",
		"STORE_DRIVER": "store",
	} {
		if f := flags.Lookup(flag); f != nil && f.Changed {
			v.Set(key, f.Value.String())
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port:            v.GetString("SERVER_PORT"),
			Host:            v.GetString("SERVER_HOST"),
			Environment:     v.GetString("ENVIRONMENT"),
			ReadTimeout:     v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:     v.GetDuration("SERVER_IDLE_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
			MaxRequestBytes: v.GetInt64("SERVER_MAX_REQUEST_BYTES"),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(v.GetString("STORE_DRIVER")),
			Postgres: DatabaseConfig{
				Host:     v.GetString("DB_HOST"),
				Port:     v.GetString("DB_PORT"),
				User:     v.GetString("DB_USER"),
				Password: v.GetString("DB_PASSWORD"),
				DBName:   v.GetString("DB_NAME"),
				SSLMode:  v.GetString("DB_SSLMODE"),
			},
			Redis: RedisConfig{
				Addr:      v.GetString("REDIS_ADDR"),
				Password:  v.GetString("REDIS_PASSWORD"),
				DB:        v.GetInt("REDIS_DB"),
				KeyPrefix: v.GetString("REDIS_KEY_PREFIX"),
			},
			NATS: NATSConfig{
				URL:    v.GetString("NATS_URL"),
				Bucket: v.GetString("NATS_BUCKET"),
			},
		},
		MQTT: MQTTConfig{
			Broker:         v.GetString("MQTT_BROKER"),
			ClientID:       v.GetString("MQTT_CLIENT_ID"),
			Username:       v.GetString("MQTT_USERNAME"),
			Password:       v.GetString("MQTT_PASSWORD"),
			HeartbeatTopic: v.GetString("MQTT_HEARTBEAT_TOPIC"),
			ScanTopic:      v.GetString("MQTT_SCAN_TOPIC"),
			StatusTopic:    v.GetString("MQTT_STATUS_TOPIC"),
			QoS:            byte(v.GetUint("MQTT_QOS")),
			Workers:        v.GetInt("MQTT_WORKERS"),
			QueueSize:      v.GetInt("MQTT_QUEUE_SIZE"),
		},
		Presence: PresenceConfig{
			Enabled:   v.GetBool("PRESENCE_ENABLED"),
			Interval:  v.GetDuration("PRESENCE_INTERVAL"),
			Threshold: v.GetDuration("PRESENCE_THRESHOLD"),
		},
		Timeouts: TimeoutConfig{
			Default: v.GetDuration("TIMEOUT_DEFAULT"),
			Store:   v.GetDuration("TIMEOUT_STORE"),
			Device:  v.GetDuration("TIMEOUT_DEVICE"),
		},
		Retry: RetryConfig{
			MaxRetries:   v.GetInt("RETRY_MAX_RETRIES"),
			InitialDelay: v.GetDuration("RETRY_INITIAL_DELAY"),
		},
		Inventory: InventoryConfig{
			RefreshInterval: v.GetDuration("INVENTORY_REFRESH_INTERVAL"),
			MinRefreshGap:   v.GetDuration("INVENTORY_MIN_REFRESH_GAP"),
		},
		Attendance: AttendanceConfig{
			EventName:       v.GetString("ATTENDANCE_EVENT_NAME"),
			SessionID:       v.GetString("ATTENDANCE_SESSION_ID"),
			Location:        v.GetString("ATTENDANCE_LOCATION"),
			Timezone:        v.GetString("ATTENDANCE_TIMEZONE"),
			DuplicateWindow: v.GetDuration("ATTENDANCE_DUPLICATE_WINDOW"),
			MinNIMLength:    v.GetInt("ATTENDANCE_MIN_NIM_LENGTH"),
		},
		Auth: AuthConfig{
			JWTSecret:  v.GetString("AUTH_JWT_SECRET"),
			CronSecret: v.GetString("CRON_SECRET"),
		},
		RateLimit: RateLimitConfig{
			GeneralRPS:   v.GetFloat64("RATE_LIMIT_GENERAL_RPS"),
			GeneralBurst: v.GetInt("RATE_LIMIT_GENERAL_BURST"),
		},
		CORS: CORSConfig{
			AllowedOrigins:   v.GetStringSlice("CORS_ALLOWED_ORIGINS"),
			AllowedMethods:   v.GetStringSlice("CORS_ALLOWED_METHODS"),
			AllowedHeaders:   v.GetStringSlice("CORS_ALLOWED_HEADERS"),
			ExposedHeaders:   v.GetStringSlice("CORS_EXPOSED_HEADERS"),
			AllowCredentials: v.GetBool("CORS_ALLOW_CREDENTIALS"),
			MaxAge:           v.GetInt("CORS_MAX_AGE"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverMemory, DriverRedis, DriverNATS:
	case DriverPostgres:
		if c.Store.Postgres.Host == "" || c.Store.Postgres.DBName == "" {
			errs = append(errs, errors.New("postgres store requires DB_HOST and DB_NAME"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}

	if c.Presence.Interval <= 0 {
		errs = append(errs, errors.New("PRESENCE_INTERVAL must be positive"))
	}
	if c.Presence.Threshold <= 0 {
		errs = append(errs, errors.New("PRESENCE_THRESHOLD must be positive"))
	}
	if c.Retry.MaxRetries < 0 {
		errs = append(errs, errors.New("RETRY_MAX_RETRIES must not be negative"))
	}
	if c.MQTT.Enabled() && c.MQTT.Workers <= 0 {
		errs = append(errs, errors.New("MQTT_WORKERS must be positive"))
	}
	if _, err := time.LoadLocation(c.Attendance.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid ATTENDANCE_TIMEZONE: %w", err))
	}

	return errors.Join(errs...)
}

// TimeLocation returns the attendance timezone, falling back to UTC.
func (c AttendanceConfig) TimeLocation() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}
