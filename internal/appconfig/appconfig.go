// Package appconfig loads the eduauth binary's settings from an optional YAML
// file and EDUAUTH_* environment variables.
package appconfig

import (
	"fmt"
	"strings"
	"time"

	eduAuth "github.com/MrEthical07/eduAuth"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// RefreshTransport is "cookie" or "header".
	RefreshTransport string `mapstructure:"refresh_transport"`
}

// Addr is host:port for http.Server.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StoreConfig selects the durable user store. Driver is one of "mongo",
// "postgres" or "memory".
type StoreConfig struct {
	Driver        string `mapstructure:"driver"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SendGridConfig struct {
	APIKey   string `mapstructure:"api_key"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
}

// KafkaConfig enables the Kafka audit sink when Brokers is non-empty.
type KafkaConfig struct {
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	ClientID string   `mapstructure:"client_id"`
}

type AdminConfig struct {
	Name     string `mapstructure:"name"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// AuthConfig is the subset of eduAuth.Config an operator is expected to tune.
type AuthConfig struct {
	AccessSecret       string        `mapstructure:"access_secret"`
	AccessTTL          time.Duration `mapstructure:"access_ttl"`
	Issuer             string        `mapstructure:"issuer"`
	Audience           string        `mapstructure:"audience"`
	RefreshTTL         time.Duration `mapstructure:"refresh_ttl"`
	RefreshTokenLength int           `mapstructure:"refresh_token_length"`
	OTPTTL             time.Duration `mapstructure:"otp_ttl"`
	ResendCooldown     time.Duration `mapstructure:"resend_cooldown"`
	MaxLoginAttempts   int           `mapstructure:"max_login_attempts"`
	LoginWindow        time.Duration `mapstructure:"login_window"`
	MaxRefreshCalls    int           `mapstructure:"max_refresh_calls"`
	RefreshWindow      time.Duration `mapstructure:"refresh_window"`
	RevokeOnChange     bool          `mapstructure:"revoke_on_change"`
	AuditEnabled       bool          `mapstructure:"audit_enabled"`
}

// App is the full binary configuration.
type App struct {
	Env      string         `mapstructure:"env"`
	LogLevel string         `mapstructure:"log_level"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Store    StoreConfig    `mapstructure:"store"`
	Redis    RedisConfig    `mapstructure:"redis"`
	SendGrid SendGridConfig `mapstructure:"sendgrid"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

// IsProduction reports whether cookies must be Secure.
func (a *App) IsProduction() bool {
	return strings.EqualFold(a.Env, "production")
}

// Load reads path (skipped when empty) and then overlays EDUAUTH_* variables,
// e.g. EDUAUTH_AUTH_ACCESS_SECRET or EDUAUTH_HTTP_PORT.
func Load(path string) (*App, error) {
	v := viper.New()
	v.SetEnvPrefix("EDUAUTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg App
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Every key needs a default so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	def := eduAuth.DefaultConfig()

	v.SetDefault("env", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 3000)
	v.SetDefault("http.read_timeout", "5s")
	v.SetDefault("http.write_timeout", "10s")
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("http.shutdown_timeout", "10s")
	v.SetDefault("http.refresh_transport", "cookie")

	v.SetDefault("store.driver", "mongo")
	v.SetDefault("store.mongo_uri", "mongodb://localhost:27017/enterprise-db")
	v.SetDefault("store.mongo_database", "enterprise-db")
	v.SetDefault("store.postgres_dsn", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("sendgrid.api_key", "")
	v.SetDefault("sendgrid.from", "no-reply@academix.com")
	v.SetDefault("sendgrid.from_name", "Edunova")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "eduauth.audit")
	v.SetDefault("kafka.client_id", "eduauth")

	v.SetDefault("admin.name", "System Administrator")
	v.SetDefault("admin.email", "admin@company.com")
	v.SetDefault("admin.password", "Admin@123456")

	v.SetDefault("auth.access_secret", "")
	v.SetDefault("auth.access_ttl", def.JWT.AccessTTL.String())
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")
	v.SetDefault("auth.refresh_ttl", def.Token.RefreshTTL.String())
	v.SetDefault("auth.refresh_token_length", def.Token.RefreshTokenLength)
	v.SetDefault("auth.otp_ttl", def.OTP.TTL.String())
	v.SetDefault("auth.resend_cooldown", def.OTP.ResendCooldown.String())
	v.SetDefault("auth.max_login_attempts", def.RateLimit.MaxLoginAttempts)
	v.SetDefault("auth.login_window", def.RateLimit.LoginWindow.String())
	v.SetDefault("auth.max_refresh_calls", def.RateLimit.MaxRefreshCalls)
	v.SetDefault("auth.refresh_window", def.RateLimit.RefreshWindow.String())
	v.SetDefault("auth.revoke_on_change", def.Password.RevokeOnChange)
	v.SetDefault("auth.audit_enabled", true)
}

// EngineConfig maps the operator settings onto eduAuth defaults.
func (a *App) EngineConfig() eduAuth.Config {
	cfg := eduAuth.DefaultConfig()
	cfg.JWT.Secret = []byte(a.Auth.AccessSecret)
	cfg.JWT.AccessTTL = a.Auth.AccessTTL
	cfg.JWT.Issuer = a.Auth.Issuer
	cfg.JWT.Audience = a.Auth.Audience
	cfg.Token.RefreshTTL = a.Auth.RefreshTTL
	cfg.Token.RefreshTokenLength = a.Auth.RefreshTokenLength
	cfg.OTP.TTL = a.Auth.OTPTTL
	cfg.OTP.VerifiedTTL = a.Auth.OTPTTL
	cfg.OTP.ResendCooldown = a.Auth.ResendCooldown
	cfg.RateLimit.MaxLoginAttempts = a.Auth.MaxLoginAttempts
	cfg.RateLimit.LoginWindow = a.Auth.LoginWindow
	cfg.RateLimit.MaxRefreshCalls = a.Auth.MaxRefreshCalls
	cfg.RateLimit.RefreshWindow = a.Auth.RefreshWindow
	cfg.Password.RevokeOnChange = a.Auth.RevokeOnChange
	cfg.Audit.Enabled = a.Auth.AuditEnabled
	return cfg
}

// AdminSeed returns the administrator to create at startup.
func (a *App) AdminSeed() eduAuth.AdminSeed {
	return eduAuth.AdminSeed{Name: a.Admin.Name, Email: a.Admin.Email, Password: a.Admin.Password}
}
