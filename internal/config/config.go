// backend-go/internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Cache    CacheConfig
	Storage  StorageConfig
	Drive    DriveConfig
	Events   EventsConfig
	Analysis AnalysisConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

// DatabaseConfig selects one of the supported drivers: postgres (lib/pq),
// pgx (pgx stdlib) or sqlite (modernc).
type DatabaseConfig struct {
	Driver     string
	URL        string
	Host       string
	Port       string
	User       string
	Password   string
	DBName     string
	SSLMode    string
	SQLitePath string
	MaxConns   int
}

type AppConfig struct {
	UploadDir string
	DataDir   string
	LogLevel  string
	LogFormat string
}

type CacheConfig struct {
	Enabled          bool
	RedisURL         string
	RedisHost        string
	RedisPort        string
	RedisPassword    string
	RedisDB          int
	BufferTTLSeconds int
	StatsTTLSeconds  int
}

type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

type DriveConfig struct {
	CredentialsFile string
	FolderID        string
}

type EventsConfig struct {
	Brokers []string
	Topic   string
}

// AnalysisConfig tunes the periodicity, buffer and suggestion engines.
type AnalysisConfig struct {
	MinPatients        int
	DefaultRiskLevel   string
	MinLag             int
	MaxLag             int
	MaxMonthlyUsage    float64
	DiscontinuedMonths int
	DrugType           string
	RecomputeWorkers   int
	Neighbours         int
}

const (
	DriverPostgres = "postgres"
	DriverPGX      = "pgx"
	DriverSQLite   = "sqlite"
)

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		setDefaults(viper.GetViper())

		// Read from environment variables
		viper.AutomaticEnv()

		cfg := FromViper(viper.GetViper())

		// Ensure upload and data directories exist
		ensureDir(cfg.App.UploadDir)
		ensureDir(cfg.App.DataDir)

		instance = cfg
	})

	return instance
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 15)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 30)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})

	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "rxstock")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_SQLITE_PATH", "./data/rxstock.db")
	v.SetDefault("DB_MAX_CONNS", 25)

	v.SetDefault("APP_UPLOAD_DIR", "./data/uploads")
	v.SetDefault("APP_DATA_DIR", "./data/output")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_BUFFER_TTL_SECONDS", 300)
	v.SetDefault("CACHE_STATS_TTL_SECONDS", 60)

	v.SetDefault("STORAGE_ENABLED", false)
	v.SetDefault("STORAGE_ENDPOINT", "localhost:9000")
	v.SetDefault("STORAGE_ACCESS_KEY", "")
	v.SetDefault("STORAGE_SECRET_KEY", "")
	v.SetDefault("STORAGE_BUCKET", "rxstock")
	v.SetDefault("STORAGE_REGION", "")
	v.SetDefault("STORAGE_USE_SSL", false)

	v.SetDefault("DRIVE_CREDENTIALS_FILE", "")
	v.SetDefault("DRIVE_FOLDER_ID", "")

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC_PERIODICITY", "periodicity.updated")

	v.SetDefault("ANALYSIS_MIN_PATIENTS", 5)
	v.SetDefault("ANALYSIS_DEFAULT_RISK_LEVEL", "safe")
	v.SetDefault("ANALYSIS_MIN_LAG", 2)
	v.SetDefault("ANALYSIS_MAX_LAG", 6)
	v.SetDefault("ANALYSIS_MAX_MONTHLY_USAGE", 200.0)
	v.SetDefault("ANALYSIS_DISCONTINUED_MONTHS", 9)
	v.SetDefault("ANALYSIS_DRUG_TYPE", "")
	v.SetDefault("ANALYSIS_RECOMPUTE_WORKERS", 4)
	v.SetDefault("ANALYSIS_NEIGHBOURS", 3)
}

// FromViper builds a Config from v. Defaults must already be registered.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: splitList(v.GetStringSlice("SERVER_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
			URL:        v.GetString("DATABASE_URL"),
			Host:       v.GetString("DB_HOST"),
			Port:       v.GetString("DB_PORT"),
			User:       v.GetString("DB_USER"),
			Password:   v.GetString("DB_PASSWORD"),
			DBName:     v.GetString("DB_NAME"),
			SSLMode:    v.GetString("DB_SSLMODE"),
			SQLitePath: v.GetString("DB_SQLITE_PATH"),
			MaxConns:   v.GetInt("DB_MAX_CONNS"),
		},
		App: AppConfig{
			UploadDir: v.GetString("APP_UPLOAD_DIR"),
			DataDir:   v.GetString("APP_DATA_DIR"),
			LogLevel:  v.GetString("LOG_LEVEL"),
			LogFormat: v.GetString("LOG_FORMAT"),
		},
		Cache: CacheConfig{
			Enabled:          v.GetBool("CACHE_ENABLED"),
			RedisURL:         v.GetString("REDIS_URL"),
			RedisHost:        v.GetString("REDIS_HOST"),
			RedisPort:        v.GetString("REDIS_PORT"),
			RedisPassword:    v.GetString("REDIS_PASSWORD"),
			RedisDB:          v.GetInt("REDIS_DB"),
			BufferTTLSeconds: v.GetInt("CACHE_BUFFER_TTL_SECONDS"),
			StatsTTLSeconds:  v.GetInt("CACHE_STATS_TTL_SECONDS"),
		},
		Storage: StorageConfig{
			Enabled:   v.GetBool("STORAGE_ENABLED"),
			Endpoint:  v.GetString("STORAGE_ENDPOINT"),
			AccessKey: v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: v.GetString("STORAGE_SECRET_KEY"),
			Bucket:    v.GetString("STORAGE_BUCKET"),
			Region:    v.GetString("STORAGE_REGION"),
			UseSSL:    v.GetBool("STORAGE_USE_SSL"),
		},
		Drive: DriveConfig{
			CredentialsFile: v.GetString("DRIVE_CREDENTIALS_FILE"),
			FolderID:        v.GetString("DRIVE_FOLDER_ID"),
		},
		Events: EventsConfig{
			Brokers: splitList(v.GetStringSlice("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC_PERIODICITY"),
		},
		Analysis: AnalysisConfig{
			MinPatients:        v.GetInt("ANALYSIS_MIN_PATIENTS"),
			DefaultRiskLevel:   v.GetString("ANALYSIS_DEFAULT_RISK_LEVEL"),
			MinLag:             v.GetInt("ANALYSIS_MIN_LAG"),
			MaxLag:             v.GetInt("ANALYSIS_MAX_LAG"),
			MaxMonthlyUsage:    v.GetFloat64("ANALYSIS_MAX_MONTHLY_USAGE"),
			DiscontinuedMonths: v.GetInt("ANALYSIS_DISCONTINUED_MONTHS"),
			DrugType:           v.GetString("ANALYSIS_DRUG_TYPE"),
			RecomputeWorkers:   v.GetInt("ANALYSIS_RECOMPUTE_WORKERS"),
			Neighbours:         v.GetInt("ANALYSIS_NEIGHBOURS"),
		},
	}
}

// Defaults returns a Config populated only from defaults, ignoring the
// environment.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)
	return FromViper(v)
}

// DSN returns the data source name for the configured driver.
func (c DatabaseConfig) DSN() string {
	switch c.Driver {
	case DriverSQLite:
		return c.SQLitePath
	}

	if c.URL != "" {
		return c.URL
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%s", c.Host, c.Port),
		Path:   c.DBName,
	}
	q := u.Query()
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// splitList accepts both repeated values and a single comma separated value,
// which is how list env vars arrive.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func ensureDir(dir string) {
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("failed to create directory")
		}
	}
}
