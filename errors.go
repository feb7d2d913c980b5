package campusauth

import "errors"

var (
	// ErrEngineNotReady reports use of an Engine whose dependencies were not wired.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrInvalidCredentials covers wrong email/password pairs without revealing which.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrLoginRateLimited reports too many failed login attempts for an identifier or IP.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrAccountNotFound reports a lookup miss in the role's collection.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists reports a registration attempt for an already verified email.
	ErrAccountExists = errors.New("account with this email already exists")
	// ErrAccountUnverified blocks password login until the email is verified.
	ErrAccountUnverified = errors.New("email not verified")
	// ErrOTPInvalid covers missing, expired, and mismatched passcodes alike.
	ErrOTPInvalid = errors.New("invalid or expired otp")
	// ErrOTPRateLimited reports an OTP requested before the resend window elapsed.
	ErrOTPRateLimited = errors.New("otp requested too soon")
	// ErrOTPUnavailable reports an OTP store backend failure.
	ErrOTPUnavailable = errors.New("otp backend unavailable")
	// ErrTokenInvalid is the single outcome for malformed, forged, wrong-type,
	// and unknown-role tokens. Causes are deliberately not distinguished.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is surfaced distinctly from ErrTokenInvalid only so the
	// HTTP layer can signal clients to attempt a silent refresh.
	ErrTokenExpired = errors.New("token expired")
	// ErrForbidden reports a valid credential used outside its role's surface.
	ErrForbidden = errors.New("forbidden")
	// ErrStudentEmailInvalid reports an email outside the institutional
	// name_branchYY@domain contract. Federated student flows fail soft with it.
	ErrStudentEmailInvalid = errors.New("invalid student email format")
	// ErrFederatedEmailMissing reports an identity assertion without an email claim.
	ErrFederatedEmailMissing = errors.New("federated profile did not include an email")
	// ErrValidation reports malformed request input.
	ErrValidation = errors.New("invalid input")
	// ErrMailUnavailable reports an outbound email delivery failure.
	ErrMailUnavailable = errors.New("email delivery unavailable")
)
