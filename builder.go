package eduAuth

import (
	"errors"
	"time"

	internalaudit "github.com/MrEthical07/eduAuth/internal/audit"
	"github.com/MrEthical07/eduAuth/internal/rate"
	"github.com/MrEthical07/eduAuth/internal/stores"
	"github.com/MrEthical07/eduAuth/jwt"
	"github.com/MrEthical07/eduAuth/password"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an Engine. Configure it once during startup; Build may
// be called only once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users     UserStore
	mailer    Mailer
	auditSink AuditSink
	log       *zap.Logger

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client for every ephemeral store and the rate limiter.
// Any redis.UniversalClient works: a single node, a cluster or a failover
// client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserStore(users UserStore) *Builder {
	b.users = users
	return b
}

func (b *Builder) WithMailer(mailer Mailer) *Builder {
	b.mailer = mailer
	return b
}

// WithLogger sets the logger for internal failures. The default discards.
func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	b.log = log
	return b
}

// WithAuditSink sets the sink the audit dispatcher writes to. Audit.Enabled
// must also be set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if b.mailer == nil {
		return nil, errors.New("mailer required")
	}

	log := b.log
	if log == nil {
		log = zap.NewNop()
	}
	for _, w := range cfg.Lint() {
		log.Warn("config lint",
			zap.String("code", w.Code),
			zap.String("severity", w.Severity.String()),
			zap.String("detail", w.Message),
		)
	}

	// -------- EPHEMERAL STORES --------
	kv := stores.NewKV(b.redis)

	engine := &Engine{
		config:    cloneConfig(cfg),
		users:     b.users,
		mailer:    b.mailer,
		signups:   stores.NewSignupStore(kv, cfg.OTP.TTL),
		resets:    stores.NewResetStore(kv, cfg.OTP.TTL, cfg.OTP.VerifiedTTL),
		otps:      stores.NewOTPStore(kv, cfg.OTP.ResendCooldown, cfg.OTP.ResendCooldown),
		blacklist: stores.NewBlacklist(kv),
		limiter: rate.New(b.redis, rate.Config{
			MaxLoginAttempts: cfg.RateLimit.MaxLoginAttempts,
			LoginWindow:      cfg.RateLimit.LoginWindow,
			MaxRefreshCalls:  cfg.RateLimit.MaxRefreshCalls,
			RefreshWindow:    cfg.RateLimit.RefreshWindow,
		}),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		log:     log,
		now:     time.Now,
	}

	// -------- CREDENTIALS --------
	ph, err := password.New(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		engine.Close()
		return nil, err
	}
	engine.hasher = ph

	dummy, err := ph.Hash("eduauth-dummy-password")
	if err != nil {
		engine.Close()
		return nil, err
	}
	engine.dummyHash = dummy

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.Secret),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		engine.Close()
		return nil, err
	}
	engine.jwtManager = jm

	b.built = true

	return engine, nil
}
