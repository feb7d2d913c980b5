package campusauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/campusnet/campusauth/token"
)

// FederatedLogin resolves or provisions an account from an identity
// assertion the upstream provider has already verified, then mints a token
// pair. No OTP challenge is involved: the provider's email verification is
// trusted.
//
// Students must present an institutional address; an assertion outside the
// localpart_branchYY@domain contract fails with ErrStudentEmailInvalid so
// the HTTP layer can bounce the user back to the provider picker. Alumni
// addresses are unconstrained.
//
// Existing accounts are backfilled, never overwritten: fields the assertion
// can supply (federated subject, display name, branch/year for students) are
// written only where the stored value is empty, and the account is marked
// verified if it was not already.
func (e *Engine) FederatedLogin(ctx context.Context, role Role, profile FederatedProfile) (token.Pair, *Principal, error) {
	if e == nil || e.accounts == nil {
		return token.Pair{}, nil, ErrEngineNotReady
	}
	if !role.Valid() {
		return token.Pair{}, nil, fmt.Errorf("%w: unknown role", ErrValidation)
	}
	if strings.TrimSpace(profile.Email) == "" {
		e.metricInc(MetricFederatedRejected)
		return token.Pair{}, nil, ErrFederatedEmailMissing
	}

	email := strings.TrimSpace(profile.Email)
	var student *StudentProfile
	if role == RoleStudent {
		parsed, err := parseStudentEmail(email, e.config.Student.EmailDomain)
		if err != nil {
			e.metricInc(MetricFederatedRejected)
			return token.Pair{}, nil, err
		}
		student = &StudentProfile{Branch: parsed.Branch, Year: parsed.Year}
	}

	acct, err := e.accounts.FindByEmail(ctx, role, normalizeEmail(email))
	switch {
	case err == nil:
		acct, err = e.backfill(ctx, acct, profile, student)
		if err != nil {
			return token.Pair{}, nil, err
		}
	case errors.Is(err, ErrAccountNotFound):
		fresh := &Account{
			Role:          role,
			Name:          strings.TrimSpace(profile.Name),
			Email:         email,
			FederatedID:   profile.SubjectID,
			EmailVerified: true,
			Student:       student,
		}
		if role == RoleAlumni {
			fresh.Alumni = &AlumniProfile{}
		}
		acct, err = e.accounts.Create(ctx, fresh)
		if err != nil {
			return token.Pair{}, nil, err
		}
	default:
		return token.Pair{}, nil, err
	}

	pair, principal, err := e.issuePair(acct)
	if err != nil {
		return token.Pair{}, nil, err
	}

	e.metricInc(MetricFederatedLogin)
	return pair, principal, nil
}

// backfill fills gaps in an existing account from the assertion without
// touching populated fields. Password hashes are never modified here, so a
// password account gains a federated link without losing password login.
func (e *Engine) backfill(ctx context.Context, acct *Account, profile FederatedProfile, student *StudentProfile) (*Account, error) {
	fields := Fields{}

	if acct.FederatedID == "" && profile.SubjectID != "" {
		fields["federatedID"] = profile.SubjectID
	}
	if acct.Name == "" && strings.TrimSpace(profile.Name) != "" {
		fields["name"] = strings.TrimSpace(profile.Name)
	}
	if !acct.EmailVerified {
		fields["emailVerified"] = true
	}
	if student != nil {
		if acct.Student == nil || acct.Student.Branch == "" {
			fields["branch"] = student.Branch
		}
		if acct.Student == nil || acct.Student.Year == 0 {
			fields["year"] = student.Year
		}
	}

	if len(fields) == 0 {
		return acct, nil
	}
	return e.accounts.Update(ctx, acct.Role, acct.ID, fields)
}
