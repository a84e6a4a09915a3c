package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	Port        string `mapstructure:"port"`
	BindAddress string `mapstructure:"bind_address"`

	DBHost     string `mapstructure:"db_host"`
	DBPort     string `mapstructure:"db_port"`
	DBUser     string `mapstructure:"db_user"`
	DBPassword string `mapstructure:"db_password"`
	DBName     string `mapstructure:"db_name"`

	RedisHost string `mapstructure:"redis_host"`
	RedisPort string `mapstructure:"redis_port"`

	JWTSecret       string        `mapstructure:"jwt_secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`

	SendGridKey string `mapstructure:"sendgrid_key"`
	FromEmail   string `mapstructure:"from_email"`
	AppName     string `mapstructure:"app_name"`

	// Leaderboard tuning. The minimum-attempts threshold and the result
	// limit apply to every leaderboard endpoint.
	LeaderboardMinAttempts int `mapstructure:"leaderboard_min_attempts"`
	LeaderboardLimit       int `mapstructure:"leaderboard_limit"`

	ExportDir string `mapstructure:"export_dir"`

	ReminderCron string `mapstructure:"reminder_cron"`
	ReportCron   string `mapstructure:"report_cron"`
}

// Load reads configuration from config.yaml (if present) and environment
// variables, with sane defaults for local development.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("port", "8080")
	v.SetDefault("bind_address", "localhost")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "quizmaster")
	v.SetDefault("db_password", "quizmaster123")
	v.SetDefault("db_name", "quizmaster")
	v.SetDefault("redis_host", "localhost")
	v.SetDefault("redis_port", "6379")
	v.SetDefault("jwt_secret", "your-secret-key-change-in-production")
	v.SetDefault("access_token_ttl", "1h")
	v.SetDefault("refresh_token_ttl", "720h")
	v.SetDefault("from_email", "noreply@quizmaster.local")
	v.SetDefault("app_name", "Quiz Master")
	v.SetDefault("leaderboard_min_attempts", 1)
	v.SetDefault("leaderboard_limit", 10)
	v.SetDefault("export_dir", "exports")
	v.SetDefault("reminder_cron", "0 18 * * *")
	v.SetDefault("report_cron", "0 6 1 * *")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	// TranslateError makes unique-constraint violations surface as
	// gorm.ErrDuplicatedKey so services can map them to conflicts.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

func InitRedis(cfg *Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
	})
}
