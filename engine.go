package campusauth

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/campusnet/campusauth/internal/otp"
	"github.com/campusnet/campusauth/internal/rate"
	"github.com/campusnet/campusauth/mailer"
	"github.com/campusnet/campusauth/password"
	"github.com/campusnet/campusauth/token"
)

// Engine coordinates the credential store, OTP challenge store, token
// service, and mail delivery into one session abstraction. Build it through
// [Builder]; all methods are safe for concurrent use afterwards.
type Engine struct {
	config       Config
	tokens       *token.Manager
	otpStore     *otp.Store
	loginLimiter *rate.Limiter
	accounts     AccountProvider
	mail         mailer.Sender
	hasher       *password.Hasher
	metrics      *Metrics
}

// Tokens exposes the engine's token manager for HTTP-layer TTL lookups.
func (e *Engine) Tokens() *token.Manager { return e.tokens }

// MetricsSnapshot copies the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

// normalizeEmail is applied at every lookup boundary: comparison is
// case-insensitive even though stored emails preserve case.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// issuePair mints the token pair for an account and wraps the result with
// its principal.
func (e *Engine) issuePair(acct *Account) (token.Pair, *Principal, error) {
	pair, err := e.tokens.IssuePair(acct.ID, acct.Email, string(acct.Role))
	if err != nil {
		return token.Pair{}, nil, err
	}
	return pair, newPrincipal(acct), nil
}

// sendOTP generates a challenge for the normalized email and dispatches
// exactly one message per successful call.
func (e *Engine) sendOTP(ctx context.Context, email string) error {
	code, err := e.otpStore.Issue(ctx, normalizeEmail(email))
	if err != nil {
		switch {
		case errors.Is(err, otp.ErrRateLimited):
			e.metricInc(MetricOTPRateLimited)
			return ErrOTPRateLimited
		default:
			return ErrOTPUnavailable
		}
	}

	if err := e.mail.Send(ctx, email, mailer.OTPSubject, mailer.OTPBody(code, e.config.OTP.TTL)); err != nil {
		log.Print("campusauth: otp email dispatch failed")
		return ErrMailUnavailable
	}

	e.metricInc(MetricOTPIssued)
	return nil
}

// Authenticate validates an access credential and resolves its principal
// from the collection matching the token's role. It is the core of the auth
// gate: every failure except expiry collapses to ErrTokenInvalid, and expiry
// is distinguished only so clients can attempt a silent refresh.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*Principal, error) {
	if e == nil || e.tokens == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.tokens.ParseAccess(accessToken)
	if err != nil {
		e.metricInc(MetricAuthenticateFailure)
		if errors.Is(err, token.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	role := Role(claims.Role)
	if !role.Valid() {
		e.metricInc(MetricAuthenticateFailure)
		return nil, ErrTokenInvalid
	}

	// Role scoping: an alumni token must never resolve a student record,
	// even under an id collision across collections.
	acct, err := e.accounts.FindByID(ctx, role, claims.ID)
	if err != nil {
		// Token outlived the account (e.g. deletion after issuance).
		e.metricInc(MetricAuthenticateFailure)
		return nil, ErrTokenInvalid
	}

	return newPrincipal(acct), nil
}

// Refresh validates a refresh credential and re-mints the pair with the same
// id/email/role payload. No server-side state is consulted: the refresh
// token is self-contained and remains valid for its full lifetime.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (token.Pair, error) {
	if e == nil || e.tokens == nil {
		return token.Pair{}, ErrEngineNotReady
	}

	claims, err := e.tokens.ParseRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		if errors.Is(err, token.ErrExpired) {
			return token.Pair{}, ErrTokenExpired
		}
		return token.Pair{}, ErrTokenInvalid
	}

	pair, err := e.tokens.IssuePair(claims.ID, claims.Email, claims.Role)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return token.Pair{}, err
	}

	e.metricInc(MetricRefreshSuccess)
	return pair, nil
}
