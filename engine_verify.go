package campusauth

import (
	"context"
	"fmt"

	"github.com/campusnet/campusauth/token"
)

// VerifyEmail consumes the OTP challenge for the email. On a match the
// account is marked verified and the user is logged straight in: the pair is
// minted without requiring a separate password login. Missing, expired, and
// mismatched codes are indistinguishable to the caller.
func (e *Engine) VerifyEmail(ctx context.Context, role Role, email, code string) (token.Pair, *Principal, error) {
	if e == nil || e.accounts == nil {
		return token.Pair{}, nil, ErrEngineNotReady
	}
	if !role.Valid() {
		return token.Pair{}, nil, fmt.Errorf("%w: unknown role", ErrValidation)
	}

	normalized := normalizeEmail(email)
	acct, err := e.accounts.FindByEmail(ctx, role, normalized)
	if err != nil {
		return token.Pair{}, nil, err
	}

	ok, err := e.otpStore.Verify(ctx, normalized, code)
	if err != nil {
		// Backend failure: fail closed, never accept the code.
		return token.Pair{}, nil, ErrOTPUnavailable
	}
	if !ok {
		e.metricInc(MetricOTPVerifyFailure)
		return token.Pair{}, nil, ErrOTPInvalid
	}

	if !acct.EmailVerified {
		acct, err = e.accounts.Update(ctx, role, acct.ID, Fields{"emailVerified": true})
		if err != nil {
			return token.Pair{}, nil, err
		}
	}

	pair, principal, err := e.issuePair(acct)
	if err != nil {
		return token.Pair{}, nil, err
	}

	e.metricInc(MetricOTPVerifySuccess)
	return pair, principal, nil
}
