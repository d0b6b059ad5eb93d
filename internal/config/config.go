package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/eventoh/service-booking/internal/platform/config"
)

// StripeConfig holds payment gateway settings.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

// SMTPConfig holds mail relay settings. An empty Host logs reminders instead of mailing them.
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	ReplyTo     string
	ImplicitTLS bool
}

// SweepConfig controls the overdue payment reminder job.
type SweepConfig struct {
	Enabled    bool
	Schedule   string
	RunOnStart bool
	BatchSize  int
}

// ServiceConfig holds all configuration for the booking service.
type ServiceConfig struct {
	Port   string
	AppEnv string
	// DBDriver is "postgres" or "sqlite". SQLitePath is used only with sqlite.
	DBDriver      string
	SQLitePath    string
	DBConfig      config.DatabaseConfig
	JWTConfig     config.JWTConfig
	KafkaConfig   config.KafkaConfig
	RedisConfig   config.RedisConfig
	Stripe        StripeConfig
	CloudinaryURL string
	MediaBaseURL  string
	SMTP          SMTPConfig
	Sweep         SweepConfig
	OTLPEndpoint  string
	CORSOrigins   []string
	LockTTL       time.Duration
}

// Load reads configuration from environment variables prefixed with BOOKING_.
func Load() (*ServiceConfig, error) {
	v, err := config.Load("BOOKING")
	if err != nil {
		return nil, err
	}
	setDefaults(v)

	cfg := &ServiceConfig{
		Port:        config.GetServicePort(v, "SERVICE_PORT"),
		AppEnv:      config.GetAppEnv(v),
		DBDriver:    v.GetString("DB_DRIVER"),
		SQLitePath:  v.GetString("SQLITE_PATH"),
		DBConfig:    config.LoadDatabaseConfig(v, "DB_NAME"),
		JWTConfig:   config.LoadJWTConfig(v),
		KafkaConfig: config.LoadKafkaConfig(v),
		RedisConfig: config.LoadRedisConfig(v),
		Stripe: StripeConfig{
			SecretKey:     v.GetString("STRIPE_SECRET_KEY"),
			WebhookSecret: v.GetString("STRIPE_WEBHOOK_SECRET"),
			SuccessURL:    v.GetString("CHECKOUT_SUCCESS_URL"),
			CancelURL:     v.GetString("CHECKOUT_CANCEL_URL"),
		},
		CloudinaryURL: v.GetString("CLOUDINARY_URL"),
		MediaBaseURL:  v.GetString("MEDIA_BASE_URL"),
		SMTP: SMTPConfig{
			Host:        v.GetString("SMTP_HOST"),
			Port:        v.GetInt("SMTP_PORT"),
			Username:    v.GetString("SMTP_USERNAME"),
			Password:    v.GetString("SMTP_PASSWORD"),
			From:        v.GetString("SMTP_FROM"),
			ReplyTo:     v.GetString("SMTP_REPLY_TO"),
			ImplicitTLS: v.GetBool("SMTP_IMPLICIT_TLS"),
		},
		Sweep: SweepConfig{
			Enabled:    v.GetBool("SWEEP_ENABLED"),
			Schedule:   v.GetString("SWEEP_SCHEDULE"),
			RunOnStart: v.GetBool("SWEEP_RUN_ON_START"),
			BatchSize:  v.GetInt("SWEEP_BATCH_SIZE"),
		},
		OTLPEndpoint: v.GetString("OTLP_ENDPOINT"),
		CORSOrigins:  splitOrigins(v.GetStringSlice("CORS_ORIGINS")),
		LockTTL:      v.GetDuration("LOCK_TTL"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that are only acceptable in development.
func (c *ServiceConfig) Validate() error {
	if !c.IsDevelopment() && c.JWTConfig.UsesDefaultSecret() {
		return errors.New("BOOKING_JWT_SECRET must be set to a non-default value or BOOKING_OIDC_ISSUER configured outside development")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_NAME", "eventoh_booking")
	v.SetDefault("SQLITE_PATH", "booking.db")
	v.SetDefault("CHECKOUT_SUCCESS_URL", "http://localhost:3000/payment/success")
	v.SetDefault("CHECKOUT_CANCEL_URL", "http://localhost:3000/payment/cancel")
	v.SetDefault("MEDIA_BASE_URL", "http://localhost:8080/media")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SWEEP_ENABLED", true)
	v.SetDefault("SWEEP_SCHEDULE", "0 0 * * *")
	v.SetDefault("SWEEP_BATCH_SIZE", 100)
	v.SetDefault("LOCK_TTL", "10s")
}

// IsDevelopment reports whether the service runs in the development environment.
func (c *ServiceConfig) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// splitOrigins accepts both a comma separated env value and a viper list.
func splitOrigins(raw []string) []string {
	var out []string
	for _, item := range raw {
		for _, o := range strings.Split(item, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}
