package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port                string   `mapstructure:"PORT"`
	Env                 string   `mapstructure:"ENV"`
	DatabaseURL         string   `mapstructure:"DATABASE_URL"`
	DBMaxConns          int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns          int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins         []string `mapstructure:"CORS_ORIGINS"`
	JWTSecret           string   `mapstructure:"JWT_SECRET"`
	AccessTokenTTLMin   int      `mapstructure:"ACCESS_TOKEN_TTL_MIN"`
	RefreshTokenTTLHrs  int      `mapstructure:"REFRESH_TOKEN_TTL_HOURS"`
	ApptMinLeadDays     int      `mapstructure:"APPOINTMENT_MIN_LEAD_DAYS"`
	AuditRetentionDays  int      `mapstructure:"AUDIT_RETENTION_DAYS"`
	RateLimitRPS        float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst      int      `mapstructure:"RATE_LIMIT_BURST"`
	MaxFailedLogins     int      `mapstructure:"MAX_FAILED_LOGINS"`
	LockoutMinutes      int      `mapstructure:"LOCKOUT_MINUTES"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("ACCESS_TOKEN_TTL_MIN", 30)
	v.SetDefault("REFRESH_TOKEN_TTL_HOURS", 168)
	v.SetDefault("APPOINTMENT_MIN_LEAD_DAYS", 2)
	v.SetDefault("AUDIT_RETENTION_DAYS", 365)
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("MAX_FAILED_LOGINS", 5)
	v.SetDefault("LOCKOUT_MINUTES", 15)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("ACCESS_TOKEN_TTL_MIN")
	v.BindEnv("REFRESH_TOKEN_TTL_HOURS")
	v.BindEnv("APPOINTMENT_MIN_LEAD_DAYS")
	v.BindEnv("AUDIT_RETENTION_DAYS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("MAX_FAILED_LOGINS")
	v.BindEnv("LOCKOUT_MINUTES")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() && cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret-do-not-use-in-production"
		log.Println("WARNING: JWT_SECRET not set; using insecure development secret")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is safe to run. Outside development
// a real JWT_SECRET is mandatory and the scheduling lead time must be sane.
func (c *Config) Validate() error {
	if !c.IsDev() && (c.JWTSecret == "" || c.JWTSecret == "dev-secret-do-not-use-in-production") {
		return fmt.Errorf("JWT_SECRET must be set when ENV=%q", c.Env)
	}
	if c.ApptMinLeadDays < 0 {
		return fmt.Errorf("APPOINTMENT_MIN_LEAD_DAYS must not be negative, got %d", c.ApptMinLeadDays)
	}
	if c.AuditRetentionDays <= 0 {
		return fmt.Errorf("AUDIT_RETENTION_DAYS must be positive, got %d", c.AuditRetentionDays)
	}
	if c.AccessTokenTTLMin <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL_MIN must be positive, got %d", c.AccessTokenTTLMin)
	}
	return nil
}
