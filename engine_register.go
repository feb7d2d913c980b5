package campusauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// RegisterStudentInput is the student sign-up payload. Email must follow the
// institutional localpart_branchYY@domain contract.
type RegisterStudentInput struct {
	Name     string
	Email    string
	Password string
}

// RegisterAlumniInput is the alumni sign-up payload. Email is unconstrained.
type RegisterAlumniInput struct {
	Name     string
	Email    string
	Password string
}

// RegisterStudent creates an unverified student account and dispatches an
// OTP challenge to the email. Registering an email that already belongs to
// an unverified account updates the pending record in place and re-sends the
// challenge; a verified account yields ErrAccountExists.
func (e *Engine) RegisterStudent(ctx context.Context, in RegisterStudentInput) error {
	if e == nil || e.accounts == nil {
		return ErrEngineNotReady
	}

	parsed, err := parseStudentEmail(in.Email, e.config.Student.EmailDomain)
	if err != nil {
		return err
	}

	hash, err := e.validateAndHash(in.Name, in.Password)
	if err != nil {
		return err
	}

	acct := &Account{
		Role:         RoleStudent,
		Name:         strings.TrimSpace(in.Name),
		Email:        parsed.Email,
		PasswordHash: hash,
		Student: &StudentProfile{
			Branch: parsed.Branch,
			Year:   parsed.Year,
		},
	}
	return e.register(ctx, acct, Fields{
		"name":         acct.Name,
		"passwordHash": hash,
		"branch":       parsed.Branch,
		"year":         parsed.Year,
	})
}

// RegisterAlumni creates an unverified alumni account and dispatches an OTP
// challenge. Re-registration semantics match RegisterStudent.
func (e *Engine) RegisterAlumni(ctx context.Context, in RegisterAlumniInput) error {
	if e == nil || e.accounts == nil {
		return ErrEngineNotReady
	}

	email := strings.TrimSpace(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: a valid email is required", ErrValidation)
	}

	hash, err := e.validateAndHash(in.Name, in.Password)
	if err != nil {
		return err
	}

	acct := &Account{
		Role:         RoleAlumni,
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		Alumni:       &AlumniProfile{},
	}
	return e.register(ctx, acct, Fields{
		"name":         acct.Name,
		"passwordHash": hash,
	})
}

func (e *Engine) validateAndHash(name, pw string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: name is required", ErrValidation)
	}
	hash, err := e.hasher.Hash(pw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return hash, nil
}

// register runs the shared create-or-reregister path. The two collections
// carry no cross-collection uniqueness constraint, so the email is checked
// in both before an insert.
func (e *Engine) register(ctx context.Context, acct *Account, reregister Fields) error {
	email := normalizeEmail(acct.Email)

	existing, err := e.accounts.FindByEmail(ctx, acct.Role, email)
	switch {
	case err == nil:
		if existing.EmailVerified {
			return ErrAccountExists
		}
		// Pending registration: refresh the record and re-challenge.
		if _, err := e.accounts.Update(ctx, acct.Role, existing.ID, reregister); err != nil {
			return err
		}
	case errors.Is(err, ErrAccountNotFound):
		other := RoleAlumni
		if acct.Role == RoleAlumni {
			other = RoleStudent
		}
		if _, err := e.accounts.FindByEmail(ctx, other, email); err == nil {
			return ErrAccountExists
		} else if !errors.Is(err, ErrAccountNotFound) {
			return err
		}

		if _, err := e.accounts.Create(ctx, acct); err != nil {
			return err
		}
	default:
		return err
	}

	if err := e.sendOTP(ctx, acct.Email); err != nil {
		return err
	}

	e.metricInc(MetricRegistration)
	return nil
}

// ResendOTP re-issues the challenge for a pending registration. The resend
// throttle applies; verified accounts have nothing to verify.
func (e *Engine) ResendOTP(ctx context.Context, role Role, email string) error {
	if e == nil || e.accounts == nil {
		return ErrEngineNotReady
	}
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role", ErrValidation)
	}

	acct, err := e.accounts.FindByEmail(ctx, role, normalizeEmail(email))
	if err != nil {
		return err
	}
	if acct.EmailVerified {
		return fmt.Errorf("%w: email already verified", ErrValidation)
	}

	return e.sendOTP(ctx, acct.Email)
}
