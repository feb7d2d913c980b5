package campusauth

import (
	"time"

	"github.com/campusnet/campusauth/cookie"
	"github.com/campusnet/campusauth/password"
	"github.com/campusnet/campusauth/token"
)

// Config is the full engine configuration tree. Construct it once at process
// start (normally via [DefaultConfig] plus overrides) and hand it to the
// [Builder]; the engine treats it as immutable afterwards.
type Config struct {
	Token    token.Config
	OTP      OTPConfig
	Login    LoginConfig
	Password password.Config
	Cookie   cookie.Config
	Student  StudentConfig
	Metrics  MetricsConfig
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig tunes the one-time-passcode challenge engine.
type OTPConfig struct {
	TTL            time.Duration
	ResendInterval time.Duration
	Digits         int
	RedisPrefix    string
}

/*
====================================
LOGIN CONFIG
====================================
*/

// LoginConfig tunes the failed-login rate limiter.
type LoginConfig struct {
	EnableRateLimit  bool
	EnableIPThrottle bool
	MaxAttempts      int
	AttemptWindow    time.Duration
}

/*
====================================
STUDENT CONFIG
====================================
*/

// StudentConfig carries the institutional email contract. Student emails
// must match localpart_<branch><yy>@EmailDomain; alumni emails are
// unconstrained.
type StudentConfig struct {
	EmailDomain string
}

// MetricsConfig enables the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the production defaults: 40-minute access tokens,
// 15-day refresh tokens, 6-digit OTP with a 5-minute validity and 60-second
// resend window. Token secrets have no default and must be supplied.
func DefaultConfig() Config {
	return Config{
		Token: token.Config{
			AccessTTL:    40 * time.Minute,
			RefreshTTL:   15 * 24 * time.Hour,
			AllowedRoles: []string{string(RoleStudent), string(RoleAlumni)},
		},
		OTP: OTPConfig{
			TTL:            5 * time.Minute,
			ResendInterval: 60 * time.Second,
			Digits:         6,
			RedisPrefix:    "caotp",
		},
		Login: LoginConfig{
			EnableRateLimit:  true,
			EnableIPThrottle: true,
			MaxAttempts:      10,
			AttemptWindow:    15 * time.Minute,
		},
		Password: password.DefaultConfig(),
		Cookie: cookie.Config{
			SameSite: "lax",
		},
		Student: StudentConfig{
			EmailDomain: "gsv.ac.in",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}
