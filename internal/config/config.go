package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	DB        DBConfig
	JWT       JWTConfig
	Portal    PortalConfig
	S3        S3Config
	Email     EmailConfig
	SMS       SMSConfig
	Log       LogConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Session   SessionConfig
	Realtime  RealtimeConfig
	Delivery  DeliveryConfig
	Business  BusinessConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        string        `mapstructure:"port"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	Environment string        `mapstructure:"environment"`
}

// IsProduction reports whether the server runs with production settings.
func (s *ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// JWTConfig holds settings for staff access tokens issued by the identity provider.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// PortalConfig holds client portal settings.
type PortalConfig struct {
	TokenExpiry   time.Duration `mapstructure:"token_expiry"`
	FrontendURL   string        `mapstructure:"frontend_url"`
	LoginPerMin   int           `mapstructure:"login_per_min"`
	LoginBurst    int           `mapstructure:"login_burst"`
	TokenAudience string        `mapstructure:"token_audience"`
}

// S3Config holds AWS S3 settings for published document copies.
type S3Config struct {
	Enabled       bool   `mapstructure:"enabled"`
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// EmailConfig holds email delivery settings. Provider is ses, resend or noop.
type EmailConfig struct {
	Provider     string `mapstructure:"provider"`
	Region       string `mapstructure:"region"`
	FromAddress  string `mapstructure:"from_address"`
	FromName     string `mapstructure:"from_name"`
	ResendAPIKey string `mapstructure:"resend_api_key"`
}

// SMSConfig holds SMS hand-off settings. Provider is sqs or noop.
type SMSConfig struct {
	Provider string `mapstructure:"provider"`
	Region   string `mapstructure:"region"`
	QueueURL string `mapstructure:"queue_url"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitConfig holds per-client API rate limit settings.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"rps"`
	Burst             int     `mapstructure:"burst"`
}

// SessionConfig holds builder session settings.
type SessionConfig struct {
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	ReapInterval   time.Duration `mapstructure:"reap_interval"`
	DefaultTaxRate float64       `mapstructure:"default_tax_rate"`
}

// RealtimeConfig holds conversation refresh settings.
type RealtimeConfig struct {
	Channel        string        `mapstructure:"channel"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
}

// DeliveryConfig holds retry settings for outbound sends.
type DeliveryConfig struct {
	MaxRetries      int           `mapstructure:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// BusinessConfig holds the details printed on customer documents.
type BusinessConfig struct {
	Name string `mapstructure:"name"`
}

// Load reads configuration from environment variables with the FIELDWORKS_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FIELDWORKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "fieldworks")
	v.SetDefault("db.password", "fieldworks_secret")
	v.SetDefault("db.name", "fieldworks_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// JWT defaults
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.issuer", "fieldworks")

	// Portal defaults
	v.SetDefault("portal.token_expiry", "24h")
	v.SetDefault("portal.frontend_url", "http://localhost:3000/portal")
	v.SetDefault("portal.login_per_min", 10)
	v.SetDefault("portal.login_burst", 5)
	v.SetDefault("portal.token_audience", "portal")

	// S3 defaults
	v.SetDefault("s3.enabled", false)
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "fieldworks-documents")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.presign_expiry", 7*24*3600)

	// Email defaults
	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.region", "us-east-1")
	v.SetDefault("email.from_address", "office@fieldworks.local")
	v.SetDefault("email.from_name", "Fieldworks")
	v.SetDefault("email.resend_api_key", "")

	// SMS defaults
	v.SetDefault("sms.provider", "noop")
	v.SetDefault("sms.region", "us-east-1")
	v.SetDefault("sms.queue_url", "")

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	// CORS defaults (localhost origins for development)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000,http://localhost:5173")

	// Rate limit defaults
	v.SetDefault("ratelimit.rps", 20)
	v.SetDefault("ratelimit.burst", 40)

	// Session defaults
	v.SetDefault("session.idle_timeout", "30m")
	v.SetDefault("session.reap_interval", "1m")
	v.SetDefault("session.default_tax_rate", 13)

	// Realtime defaults
	v.SetDefault("realtime.channel", "conversations_changed")
	v.SetDefault("realtime.poll_interval", "15s")
	v.SetDefault("realtime.reconnect_delay", "5s")

	// Delivery defaults
	v.SetDefault("delivery.max_retries", 3)
	v.SetDefault("delivery.initial_interval", "500ms")
	v.SetDefault("delivery.max_interval", "5s")
	v.SetDefault("delivery.timeout", "30s")

	v.SetDefault("business.name", "Fieldworks Services")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":               "FIELDWORKS_SERVER_PORT",
		"server.read_timeout":       "FIELDWORKS_SERVER_READ_TIMEOUT",
		"server.environment":        "FIELDWORKS_SERVER_ENVIRONMENT",
		"db.host":                   "FIELDWORKS_DB_HOST",
		"db.port":                   "FIELDWORKS_DB_PORT",
		"db.user":                   "FIELDWORKS_DB_USER",
		"db.password":               "FIELDWORKS_DB_PASSWORD",
		"db.name":                   "FIELDWORKS_DB_NAME",
		"db.sslmode":                "FIELDWORKS_DB_SSLMODE",
		"db.max_open":               "FIELDWORKS_DB_MAX_OPEN",
		"db.max_idle":               "FIELDWORKS_DB_MAX_IDLE",
		"jwt.secret":                "FIELDWORKS_JWT_SECRET",
		"jwt.issuer":                "FIELDWORKS_JWT_ISSUER",
		"portal.token_expiry":       "FIELDWORKS_PORTAL_TOKEN_EXPIRY",
		"portal.frontend_url":       "FIELDWORKS_PORTAL_FRONTEND_URL",
		"portal.login_per_min":      "FIELDWORKS_PORTAL_LOGIN_PER_MIN",
		"portal.login_burst":        "FIELDWORKS_PORTAL_LOGIN_BURST",
		"portal.token_audience":     "FIELDWORKS_PORTAL_TOKEN_AUDIENCE",
		"s3.enabled":                "FIELDWORKS_S3_ENABLED",
		"s3.region":                 "FIELDWORKS_S3_REGION",
		"s3.bucket":                 "FIELDWORKS_S3_BUCKET",
		"s3.endpoint":               "FIELDWORKS_S3_ENDPOINT",
		"s3.access_key":             "FIELDWORKS_S3_ACCESS_KEY",
		"s3.secret_key":             "FIELDWORKS_S3_SECRET_KEY",
		"s3.presign_expiry":         "FIELDWORKS_S3_PRESIGN_EXPIRY",
		"email.provider":            "FIELDWORKS_EMAIL_PROVIDER",
		"email.region":              "FIELDWORKS_EMAIL_REGION",
		"email.from_address":        "FIELDWORKS_EMAIL_FROM_ADDRESS",
		"email.from_name":           "FIELDWORKS_EMAIL_FROM_NAME",
		"email.resend_api_key":      "FIELDWORKS_EMAIL_RESEND_API_KEY",
		"sms.provider":              "FIELDWORKS_SMS_PROVIDER",
		"sms.region":                "FIELDWORKS_SMS_REGION",
		"sms.queue_url":             "FIELDWORKS_SMS_QUEUE_URL",
		"log.level":                 "FIELDWORKS_LOG_LEVEL",
		"log.format":                "FIELDWORKS_LOG_FORMAT",
		"cors.allowed_origins":      "FIELDWORKS_CORS_ALLOWED_ORIGINS",
		"ratelimit.rps":             "FIELDWORKS_RATELIMIT_RPS",
		"ratelimit.burst":           "FIELDWORKS_RATELIMIT_BURST",
		"session.idle_timeout":      "FIELDWORKS_SESSION_IDLE_TIMEOUT",
		"session.reap_interval":     "FIELDWORKS_SESSION_REAP_INTERVAL",
		"session.default_tax_rate":  "FIELDWORKS_SESSION_DEFAULT_TAX_RATE",
		"realtime.channel":          "FIELDWORKS_REALTIME_CHANNEL",
		"realtime.poll_interval":    "FIELDWORKS_REALTIME_POLL_INTERVAL",
		"realtime.reconnect_delay":  "FIELDWORKS_REALTIME_RECONNECT_DELAY",
		"delivery.max_retries":      "FIELDWORKS_DELIVERY_MAX_RETRIES",
		"delivery.initial_interval": "FIELDWORKS_DELIVERY_INITIAL_INTERVAL",
		"delivery.max_interval":     "FIELDWORKS_DELIVERY_MAX_INTERVAL",
		"delivery.timeout":          "FIELDWORKS_DELIVERY_TIMEOUT",
		"business.name":             "FIELDWORKS_BUSINESS_NAME",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if FIELDWORKS_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("FIELDWORKS_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:        serverPort,
		ReadTimeout: v.GetDuration("server.read_timeout"),
		Environment: v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.JWT = JWTConfig{
		Secret: v.GetString("jwt.secret"),
		Issuer: v.GetString("jwt.issuer"),
	}
	cfg.Portal = PortalConfig{
		TokenExpiry:   v.GetDuration("portal.token_expiry"),
		FrontendURL:   v.GetString("portal.frontend_url"),
		LoginPerMin:   v.GetInt("portal.login_per_min"),
		LoginBurst:    v.GetInt("portal.login_burst"),
		TokenAudience: v.GetString("portal.token_audience"),
	}
	cfg.S3 = S3Config{
		Enabled:       v.GetBool("s3.enabled"),
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.Email = EmailConfig{
		Provider:     v.GetString("email.provider"),
		Region:       v.GetString("email.region"),
		FromAddress:  v.GetString("email.from_address"),
		FromName:     v.GetString("email.from_name"),
		ResendAPIKey: v.GetString("email.resend_api_key"),
	}
	cfg.SMS = SMSConfig{
		Provider: v.GetString("sms.provider"),
		Region:   v.GetString("sms.region"),
		QueueURL: v.GetString("sms.queue_url"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	// Parse CORS allowed origins from comma-separated string
	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: corsOrigins,
	}
	cfg.RateLimit = RateLimitConfig{
		RequestsPerSecond: v.GetFloat64("ratelimit.rps"),
		Burst:             v.GetInt("ratelimit.burst"),
	}
	cfg.Session = SessionConfig{
		IdleTimeout:    v.GetDuration("session.idle_timeout"),
		ReapInterval:   v.GetDuration("session.reap_interval"),
		DefaultTaxRate: v.GetFloat64("session.default_tax_rate"),
	}
	cfg.Realtime = RealtimeConfig{
		Channel:        v.GetString("realtime.channel"),
		PollInterval:   v.GetDuration("realtime.poll_interval"),
		ReconnectDelay: v.GetDuration("realtime.reconnect_delay"),
	}
	cfg.Delivery = DeliveryConfig{
		MaxRetries:      v.GetInt("delivery.max_retries"),
		InitialInterval: v.GetDuration("delivery.initial_interval"),
		MaxInterval:     v.GetDuration("delivery.max_interval"),
		Timeout:         v.GetDuration("delivery.timeout"),
	}
	cfg.Business = BusinessConfig{
		Name: v.GetString("business.name"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.IsProduction() && c.JWT.Secret == "change-me-in-production" {
		return fmt.Errorf("config: FIELDWORKS_JWT_SECRET must be set in production")
	}
	switch c.Email.Provider {
	case "ses", "noop":
	case "resend":
		if c.Email.ResendAPIKey == "" {
			return fmt.Errorf("config: FIELDWORKS_EMAIL_RESEND_API_KEY is required for the resend provider")
		}
	default:
		return fmt.Errorf("config: unknown email provider %q", c.Email.Provider)
	}
	switch c.SMS.Provider {
	case "noop":
	case "sqs":
		if c.SMS.QueueURL == "" {
			return fmt.Errorf("config: FIELDWORKS_SMS_QUEUE_URL is required for the sqs provider")
		}
	default:
		return fmt.Errorf("config: unknown sms provider %q", c.SMS.Provider)
	}
	return nil
}
