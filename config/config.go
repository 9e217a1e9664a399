package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultPath is where Load looks for the JSON config file when no path is given.
const DefaultPath = "config/config.json"

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	RateLimitPerMinute int
	AllowedOrigins     []string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Database: "mysql" in production, "sqlite" for local runs
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Redis backs the verification rate limits and captcha answers.
	// An empty RedisHost falls back to in-process stores (single instance only).
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// SMTP for verification and milestone emails. Without SMTPHost mails are only logged.
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	SMTPTLS      bool
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// One-time verification codes
	OTP OTPConfig
	// Admin emails skip email verification entirely.
	AdminEmails []string
	// SeedAchievements installs the default achievement catalog at boot.
	SeedAchievements bool
	// WeeklyReadingGoal is the number of articles a reader aims to finish per seven days.
	WeeklyReadingGoal int
}

// OTPConfig groups the verification code policy.
type OTPConfig struct {
	CodeLength      int
	TTL             time.Duration
	Cooldown        time.Duration
	DailyLimit      int
	HashCost        int
	CaptchaEnabled  bool
	Retention       time.Duration
	CleanupInterval time.Duration
}

// Load reads the configuration once during boot.
// Precedence: defaults -> JSON file -> environment variables (.env is honoured when present).
func Load(path string) (*AppConfig, error) {
	if path == "" {
		path = DefaultPath
	}
	_ = godotenv.Load()

	v := viper.New()
	applyDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := fromViper(v)
	if cfg.JWTSecret == "" {
		return nil, errors.New("APP_JWTSECRET must be set in config or environment")
	}
	return cfg, nil
}

// applyDefaults sets sane defaults. Every key gets one so AutomaticEnv can resolve it.
func applyDefaults(v *viper.Viper) {
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.jwtsecret", "")
	v.SetDefault("app.ratelimitperminute", 60)
	v.SetDefault("app.allowedorigins", []string{"*"})
	v.SetDefault("app.adminemails", []string{})
	v.SetDefault("app.seedachievements", true)
	v.SetDefault("app.weeklyreadinggoal", 5)

	v.SetDefault("gin.mode", "release")
	v.SetDefault("gin.path", "logs/go_gin.log")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.uri", "")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "smartreader")

	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("smtp.fromname", "SmartReader")
	v.SetDefault("smtp.tls", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", "")
	v.SetDefault("log.maxsizemb", 100)
	v.SetDefault("log.maxbackups", 3)
	v.SetDefault("log.maxagedays", 7)
	v.SetDefault("log.compress", false)

	v.SetDefault("otp.codelength", 6)
	v.SetDefault("otp.ttlminutes", 10)
	v.SetDefault("otp.cooldownseconds", 60)
	v.SetDefault("otp.dailylimit", 5)
	v.SetDefault("otp.hashcost", 10)
	v.SetDefault("otp.captchaenabled", false)
	v.SetDefault("otp.retentionhours", 24)
	v.SetDefault("otp.cleanupintervalminutes", 30)
}

func fromViper(v *viper.Viper) *AppConfig {
	return &AppConfig{
		AppPort:            v.GetString("app.port"),
		JWTSecret:          v.GetString("app.jwtsecret"),
		RateLimitPerMinute: v.GetInt("app.ratelimitperminute"),
		AllowedOrigins:     readList(v, "app.allowedorigins"),
		AdminEmails:        normalizeEmails(readList(v, "app.adminemails")),
		SeedAchievements:   v.GetBool("app.seedachievements"),
		WeeklyReadingGoal:  v.GetInt("app.weeklyreadinggoal"),

		GinMode: v.GetString("gin.mode"),
		GinPath: v.GetString("gin.path"),

		DBDriver:    strings.ToLower(v.GetString("database.driver")),
		DatabaseURI: v.GetString("database.uri"),
		DBHost:      v.GetString("database.host"),
		DBPort:      v.GetString("database.port"),
		DBUser:      v.GetString("database.user"),
		DBPassword:  v.GetString("database.password"),
		DBName:      v.GetString("database.name"),

		RedisHost:     v.GetString("redis.host"),
		RedisPort:     v.GetInt("redis.port"),
		RedisDB:       v.GetInt("redis.db"),
		RedisPassword: v.GetString("redis.password"),

		SMTPHost:     v.GetString("smtp.host"),
		SMTPPort:     v.GetInt("smtp.port"),
		SMTPUsername: v.GetString("smtp.username"),
		SMTPPassword: v.GetString("smtp.password"),
		SMTPFrom:     v.GetString("smtp.from"),
		SMTPFromName: v.GetString("smtp.fromname"),
		SMTPTLS:      v.GetBool("smtp.tls"),

		LogLevel:      v.GetString("log.level"),
		LogPath:       v.GetString("log.path"),
		LogMaxSizeMB:  v.GetInt("log.maxsizemb"),
		LogMaxBackups: v.GetInt("log.maxbackups"),
		LogMaxAgeDays: v.GetInt("log.maxagedays"),
		LogCompress:   v.GetBool("log.compress"),

		OTP: OTPConfig{
			CodeLength:      v.GetInt("otp.codelength"),
			TTL:             time.Duration(v.GetInt("otp.ttlminutes")) * time.Minute,
			Cooldown:        time.Duration(v.GetInt("otp.cooldownseconds")) * time.Second,
			DailyLimit:      v.GetInt("otp.dailylimit"),
			HashCost:        v.GetInt("otp.hashcost"),
			CaptchaEnabled:  v.GetBool("otp.captchaenabled"),
			Retention:       time.Duration(v.GetInt("otp.retentionhours")) * time.Hour,
			CleanupInterval: time.Duration(v.GetInt("otp.cleanupintervalminutes")) * time.Minute,
		},
	}
}

// readList accepts JSON arrays from the file and comma separated strings from the environment.
func readList(v *viper.Viper, key string) []string {
	if raw, ok := v.Get(key).(string); ok {
		return splitAndTrim(raw)
	}
	items := []string{}
	for _, item := range v.GetStringSlice(key) {
		items = append(items, splitAndTrim(item)...)
	}
	return items
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

func normalizeEmails(list []string) []string {
	out := make([]string, 0, len(list))
	for _, e := range list {
		out = append(out, strings.ToLower(strings.TrimSpace(e)))
	}
	return out
}
