package campusauth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/campusnet/campusauth/internal/rate"
	"github.com/campusnet/campusauth/token"
)

// Login authenticates a password credential against the role's collection
// and mints a token pair. Lookup misses, wrong passwords, and federated-only
// accounts (no password set) all collapse to ErrInvalidCredentials.
// Unverified accounts are refused with ErrAccountUnverified only after the
// password checks out, so the error does not become an account oracle.
func (e *Engine) Login(ctx context.Context, role Role, email, password string) (token.Pair, *Principal, error) {
	if e == nil || e.accounts == nil {
		return token.Pair{}, nil, ErrEngineNotReady
	}
	if !role.Valid() {
		return token.Pair{}, nil, fmt.Errorf("%w: unknown role", ErrValidation)
	}

	email = normalizeEmail(email)
	if email == "" || password == "" {
		return token.Pair{}, nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	ip := clientIPFromContext(ctx)

	if e.loginLimiter != nil {
		if err := e.loginLimiter.Check(ctx, email, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricLoginRateLimited)
				return token.Pair{}, nil, ErrLoginRateLimited
			}
			// Limiter backend down: fail open for availability, log it.
			log.Print("campusauth: login limiter unavailable")
		}
	}

	acct, err := e.accounts.FindByEmail(ctx, role, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return token.Pair{}, nil, e.failLogin(ctx, email, ip)
		}
		return token.Pair{}, nil, err
	}

	if strings.TrimSpace(acct.PasswordHash) == "" {
		// Federated-only account: no password to compare against.
		return token.Pair{}, nil, e.failLogin(ctx, email, ip)
	}

	ok, err := e.hasher.Verify(password, acct.PasswordHash)
	if err != nil || !ok {
		return token.Pair{}, nil, e.failLogin(ctx, email, ip)
	}

	if !acct.EmailVerified {
		return token.Pair{}, nil, ErrAccountUnverified
	}

	if e.loginLimiter != nil {
		if err := e.loginLimiter.Reset(ctx, email, ip); err != nil {
			log.Print("campusauth: login limiter reset failed")
		}
	}

	pair, principal, err := e.issuePair(acct)
	if err != nil {
		return token.Pair{}, nil, err
	}

	e.metricInc(MetricLoginSuccess)
	return pair, principal, nil
}

// failLogin records the failed attempt and returns the uniform credential
// error, upgraded to ErrLoginRateLimited when this attempt exhausts the
// window budget.
func (e *Engine) failLogin(ctx context.Context, email, ip string) error {
	e.metricInc(MetricLoginFailure)

	if e.loginLimiter != nil {
		if err := e.loginLimiter.Increment(ctx, email, ip); errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			return ErrLoginRateLimited
		}
	}
	return ErrInvalidCredentials
}
