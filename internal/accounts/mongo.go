// Package accounts implements the credential store on MongoDB: two parallel
// collections (students, alumni) with the same account shape, addressed
// through the role-tagged provider interface. Emails are stored
// case-preserving and matched with a strength-2 collation, so lookups are
// case-insensitive without a normalized shadow column.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/campusnet/campusauth"
)

const (
	studentCollection = "students"
	alumniCollection  = "alumni"
)

var emailCollation = options.Collation{Locale: "en", Strength: 2}

// Store implements campusauth.AccountProvider on a Mongo database.
type Store struct {
	students *mongo.Collection
	alumni   *mongo.Collection
}

// New wires the store to the database's students and alumni collections.
func New(db *mongo.Database) *Store {
	return &Store{
		students: db.Collection(studentCollection),
		alumni:   db.Collection(alumniCollection),
	}
}

// EnsureIndexes creates the per-collection unique email index with the same
// collation used by lookups. Call once at startup.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	model := mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetCollation(&emailCollation),
	}
	for _, c := range []*mongo.Collection{s.students, s.alumni} {
		if _, err := c.Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("accounts: create email index on %s: %w", c.Name(), err)
		}
	}
	return nil
}

func (s *Store) collection(role campusauth.Role) (*mongo.Collection, error) {
	switch role {
	case campusauth.RoleStudent:
		return s.students, nil
	case campusauth.RoleAlumni:
		return s.alumni, nil
	default:
		return nil, fmt.Errorf("accounts: unknown role %q", role)
	}
}

// accountDoc is the persisted shape shared by both collections. Role-specific
// profile fields are embedded flat, matching how the platform's other
// services read these documents.
type accountDoc struct {
	ID            bson.ObjectID `bson:"_id,omitempty"`
	Name          string        `bson:"name"`
	Email         string        `bson:"email"`
	PasswordHash  string        `bson:"passwordHash,omitempty"`
	FederatedID   string        `bson:"federatedID,omitempty"`
	EmailVerified bool          `bson:"emailVerified"`
	CreatedAt     time.Time     `bson:"createdAt"`
	UpdatedAt     time.Time     `bson:"updatedAt"`

	// Student-only.
	Branch       string  `bson:"branch,omitempty"`
	Year         int     `bson:"passoutYear,omitempty"`
	Degree       string  `bson:"degree,omitempty"`
	CGPA         float64 `bson:"cgpa,omitempty"`
	PortfolioURL string  `bson:"portfolioUrl,omitempty"`
	LinkedinID   string  `bson:"linkedinId,omitempty"`

	// Alumni-only.
	CompanyName  string           `bson:"companyName,omitempty"`
	Website      string           `bson:"website,omitempty"`
	Verification *verificationDoc `bson:"verification,omitempty"`

	// Shared profile extras.
	Phone        string   `bson:"phoneNumber,omitempty"`
	Address      string   `bson:"address,omitempty"`
	ProfileImage string   `bson:"profileImage,omitempty"`
	Skills       []string `bson:"skills,omitempty"`
}

type verificationDoc struct {
	Status         string `bson:"status,omitempty"`
	LinkedinURL    string `bson:"linkedinUrl,omitempty"`
	LinkedinID     string `bson:"linkedinId,omitempty"`
	Degree         string `bson:"degree,omitempty"`
	GraduationYear int    `bson:"graduationYear,omitempty"`
	ProofURL       string `bson:"proofUrl,omitempty"`
}

func (d *accountDoc) toAccount(role campusauth.Role) *campusauth.Account {
	acct := &campusauth.Account{
		ID:            d.ID.Hex(),
		Role:          role,
		Name:          d.Name,
		Email:         d.Email,
		PasswordHash:  d.PasswordHash,
		FederatedID:   d.FederatedID,
		EmailVerified: d.EmailVerified,
	}

	switch role {
	case campusauth.RoleStudent:
		acct.Student = &campusauth.StudentProfile{
			Branch:       d.Branch,
			Year:         d.Year,
			Degree:       d.Degree,
			CGPA:         d.CGPA,
			Phone:        d.Phone,
			Address:      d.Address,
			PortfolioURL: d.PortfolioURL,
			LinkedinID:   d.LinkedinID,
			ProfileImage: d.ProfileImage,
			Skills:       d.Skills,
		}
	case campusauth.RoleAlumni:
		p := &campusauth.AlumniProfile{
			CompanyName:  d.CompanyName,
			Phone:        d.Phone,
			Address:      d.Address,
			Website:      d.Website,
			PortfolioURL: d.PortfolioURL,
			ProfileImage: d.ProfileImage,
			Skills:       d.Skills,
		}
		if d.Verification != nil {
			p.Verification = campusauth.AlumniVerification{
				Status:         d.Verification.Status,
				LinkedinURL:    d.Verification.LinkedinURL,
				LinkedinID:     d.Verification.LinkedinID,
				Degree:         d.Verification.Degree,
				GraduationYear: d.Verification.GraduationYear,
				ProofURL:       d.Verification.ProofURL,
			}
		}
		acct.Alumni = p
	}

	return acct
}

func fromAccount(acct *campusauth.Account, now time.Time) *accountDoc {
	d := &accountDoc{
		Name:          acct.Name,
		Email:         acct.Email,
		PasswordHash:  acct.PasswordHash,
		FederatedID:   acct.FederatedID,
		EmailVerified: acct.EmailVerified,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if sp := acct.Student; sp != nil {
		d.Branch = sp.Branch
		d.Year = sp.Year
		d.Degree = sp.Degree
		d.CGPA = sp.CGPA
		d.Phone = sp.Phone
		d.Address = sp.Address
		d.PortfolioURL = sp.PortfolioURL
		d.LinkedinID = sp.LinkedinID
		d.ProfileImage = sp.ProfileImage
		d.Skills = sp.Skills
	}
	if ap := acct.Alumni; ap != nil {
		d.CompanyName = ap.CompanyName
		d.Website = ap.Website
		d.Phone = ap.Phone
		d.Address = ap.Address
		d.PortfolioURL = ap.PortfolioURL
		d.ProfileImage = ap.ProfileImage
		d.Skills = ap.Skills
	}
	return d
}

// fieldPaths maps provider field names to document paths. Update rejects
// names outside this map rather than writing arbitrary paths.
var fieldPaths = map[string]string{
	"name":          "name",
	"passwordHash":  "passwordHash",
	"emailVerified": "emailVerified",
	"federatedID":   "federatedID",
	"branch":        "branch",
	"year":          "passoutYear",
}

// FindByEmail implements campusauth.AccountProvider.
func (s *Store) FindByEmail(ctx context.Context, role campusauth.Role, email string) (*campusauth.Account, error) {
	c, err := s.collection(role)
	if err != nil {
		return nil, err
	}

	var doc accountDoc
	err = c.FindOne(ctx,
		bson.M{"email": email},
		options.FindOne().SetCollation(&emailCollation),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, campusauth.ErrAccountNotFound
		}
		return nil, fmt.Errorf("accounts: find by email: %w", err)
	}

	return doc.toAccount(role), nil
}

// FindByID implements campusauth.AccountProvider.
func (s *Store) FindByID(ctx context.Context, role campusauth.Role, id string) (*campusauth.Account, error) {
	c, err := s.collection(role)
	if err != nil {
		return nil, err
	}

	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, campusauth.ErrAccountNotFound
	}

	var doc accountDoc
	if err := c.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, campusauth.ErrAccountNotFound
		}
		return nil, fmt.Errorf("accounts: find by id: %w", err)
	}

	return doc.toAccount(role), nil
}

// Create implements campusauth.AccountProvider.
func (s *Store) Create(ctx context.Context, acct *campusauth.Account) (*campusauth.Account, error) {
	c, err := s.collection(acct.Role)
	if err != nil {
		return nil, err
	}

	doc := fromAccount(acct, time.Now().UTC())
	res, err := c.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, campusauth.ErrAccountExists
		}
		return nil, fmt.Errorf("accounts: insert: %w", err)
	}

	oid, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return nil, fmt.Errorf("accounts: unexpected inserted id type %T", res.InsertedID)
	}
	doc.ID = oid

	return doc.toAccount(acct.Role), nil
}

// Update implements campusauth.AccountProvider.
func (s *Store) Update(ctx context.Context, role campusauth.Role, id string, fields campusauth.Fields) (*campusauth.Account, error) {
	c, err := s.collection(role)
	if err != nil {
		return nil, err
	}

	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, campusauth.ErrAccountNotFound
	}

	set := bson.M{"updatedAt": time.Now().UTC()}
	for name, value := range fields {
		path, ok := fieldPaths[name]
		if !ok {
			return nil, fmt.Errorf("accounts: unknown update field %q", name)
		}
		set[path] = value
	}

	var doc accountDoc
	err = c.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, campusauth.ErrAccountNotFound
		}
		return nil, fmt.Errorf("accounts: update: %w", err)
	}

	return doc.toAccount(role), nil
}
