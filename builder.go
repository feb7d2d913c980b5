package campusauth

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/campusnet/campusauth/internal/otp"
	"github.com/campusnet/campusauth/internal/rate"
	"github.com/campusnet/campusauth/mailer"
	"github.com/campusnet/campusauth/password"
	"github.com/campusnet/campusauth/token"
)

// Builder assembles an Engine. Wiring mistakes (missing secrets, missing
// stores) surface as Build errors at startup, never as per-request faults.
type Builder struct {
	config   Config
	redis    redis.UniversalClient
	accounts AccountProvider
	mail     mailer.Sender
}

// New starts a builder with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the entire configuration tree.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the Redis client backing the OTP store and login limiter.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccounts sets the credential store.
func (b *Builder) WithAccounts(p AccountProvider) *Builder {
	b.accounts = p
	return b
}

// WithMailer sets the outbound mail transport. Omitting it wires a
// log-only sender, which is acceptable in development only.
func (b *Builder) WithMailer(s mailer.Sender) *Builder {
	b.mail = s
	return b
}

// Build validates the wiring and returns the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.redis == nil {
		return nil, fmt.Errorf("campusauth: redis client is required")
	}
	if b.accounts == nil {
		return nil, fmt.Errorf("campusauth: account provider is required")
	}
	if b.config.Student.EmailDomain == "" {
		return nil, fmt.Errorf("campusauth: student email domain is required")
	}

	tokens, err := token.NewManager(b.config.Token)
	if err != nil {
		return nil, fmt.Errorf("campusauth: %w", err)
	}

	hasher, err := password.New(b.config.Password)
	if err != nil {
		return nil, fmt.Errorf("campusauth: %w", err)
	}

	mail := b.mail
	if mail == nil {
		mail = mailer.LogSender{}
	}

	e := &Engine{
		config: b.config,
		tokens: tokens,
		otpStore: otp.New(b.redis, otp.Config{
			TTL:            b.config.OTP.TTL,
			ResendInterval: b.config.OTP.ResendInterval,
			Digits:         b.config.OTP.Digits,
			Prefix:         b.config.OTP.RedisPrefix,
		}),
		accounts: b.accounts,
		mail:     mail,
		hasher:   hasher,
		metrics:  NewMetrics(b.config.Metrics),
	}

	if b.config.Login.EnableRateLimit {
		e.loginLimiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle: b.config.Login.EnableIPThrottle,
			MaxAttempts:      b.config.Login.MaxAttempts,
			Window:           b.config.Login.AttemptWindow,
		})
	}

	return e, nil
}
