package campusauth

import "context"

// Role tags which of the two parallel account collections an identity
// belongs to. The set is closed; tokens carrying any other value are
// rejected at validation.
type Role string

const (
	// RoleStudent is an account in the student collection.
	RoleStudent Role = "student"
	// RoleAlumni is an account in the alumni collection.
	RoleAlumni Role = "alumni"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleAlumni
}

// Account is the domain view of a record from either collection, tagged with
// its role. Exactly one of Student/Alumni is non-nil, matching the role.
//
// Email is stored case-preserving; all lookups compare case-insensitively.
// PasswordHash is empty for federated-only accounts.
type Account struct {
	ID            string
	Role          Role
	Name          string
	Email         string
	PasswordHash  string
	FederatedID   string
	EmailVerified bool

	Student *StudentProfile
	Alumni  *AlumniProfile
}

// StudentProfile carries the student-only attributes. Branch and Year are
// derived from the institutional email on registration and federated login.
type StudentProfile struct {
	Branch       string
	Year         int
	Degree       string
	CGPA         float64
	Phone        string
	Address      string
	PortfolioURL string
	LinkedinID   string
	ProfileImage string
	Skills       []string
}

// AlumniProfile carries the alumni-only attributes.
type AlumniProfile struct {
	CompanyName  string
	Phone        string
	Address      string
	Website      string
	PortfolioURL string
	ProfileImage string
	Skills       []string
	Verification AlumniVerification
}

// AlumniVerification is the manual-review sub-record for alumni identity proof.
type AlumniVerification struct {
	Status         string
	LinkedinURL    string
	LinkedinID     string
	Degree         string
	GraduationYear int
	ProofURL       string
}

// Principal is the resolved identity attached to an authenticated request.
// It is the account minus the password hash; it is request-scoped and never
// persisted.
type Principal struct {
	ID            string
	Role          Role
	Name          string
	Email         string
	EmailVerified bool
	Student       *StudentProfile
	Alumni        *AlumniProfile
}

// IsStudent reports whether the principal resolved from the student collection.
func (p *Principal) IsStudent() bool { return p != nil && p.Role == RoleStudent }

// IsAlumni reports whether the principal resolved from the alumni collection.
func (p *Principal) IsAlumni() bool { return p != nil && p.Role == RoleAlumni }

func newPrincipal(acct *Account) *Principal {
	return &Principal{
		ID:            acct.ID,
		Role:          acct.Role,
		Name:          acct.Name,
		Email:         acct.Email,
		EmailVerified: acct.EmailVerified,
		Student:       acct.Student,
		Alumni:        acct.Alumni,
	}
}

// Fields is a partial update applied to an account. Keys are the domain
// field names understood by the provider: "name", "passwordHash",
// "emailVerified", "federatedID", "branch", "year".
type Fields map[string]any

// AccountProvider abstracts the two parallel identity collections behind one
// role-tagged interface. Implementations must compare emails
// case-insensitively and must never merge the collections: a student lookup
// must not observe alumni records, and vice versa.
//
// The platform does not enforce a shared uniqueness constraint across the two
// collections, so registration paths consult both roles through this
// interface before creating an account.
type AccountProvider interface {
	// FindByEmail returns the account for the email within the role's
	// collection, or ErrAccountNotFound.
	FindByEmail(ctx context.Context, role Role, email string) (*Account, error)
	// FindByID returns the account by identifier within the role's
	// collection, or ErrAccountNotFound.
	FindByID(ctx context.Context, role Role, id string) (*Account, error)
	// Create inserts a new account into the collection matching acct.Role
	// and returns it with its assigned ID.
	Create(ctx context.Context, acct *Account) (*Account, error)
	// Update applies a partial field update and returns the updated account,
	// or ErrAccountNotFound.
	Update(ctx context.Context, role Role, id string, fields Fields) (*Account, error)
}

// FederatedProfile is the identity assertion handed over by an upstream
// identity provider after it has verified the user. Email is the only claim
// this subsystem trusts for account resolution; SubjectID links the local
// account back to the provider.
type FederatedProfile struct {
	Provider  string
	SubjectID string
	Email     string
	Name      string
}
