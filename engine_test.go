package campusauth

import (
	"context"
	"regexp"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/campusnet/campusauth/token"
)

// stubAccounts is an in-memory AccountProvider with the same contract as the
// Mongo store: role-scoped collections, case-insensitive email matching.
type stubAccounts struct {
	mu   sync.Mutex
	data map[Role]map[string]*Account // role → id → account
}

func newStubAccounts() *stubAccounts {
	return &stubAccounts{data: map[Role]map[string]*Account{
		RoleStudent: {},
		RoleAlumni:  {},
	}}
}

func (s *stubAccounts) FindByEmail(_ context.Context, role Role, email string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.data[role] {
		if normalizeEmail(acct.Email) == normalizeEmail(email) {
			return cloneAccount(acct), nil
		}
	}
	return nil, ErrAccountNotFound
}

func (s *stubAccounts) FindByID(_ context.Context, role Role, id string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct, ok := s.data[role][id]; ok {
		return cloneAccount(acct), nil
	}
	return nil, ErrAccountNotFound
}

func (s *stubAccounts) Create(_ context.Context, acct *Account) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := cloneAccount(acct)
	stored.ID = uuid.NewString()
	s.data[acct.Role][stored.ID] = stored
	return cloneAccount(stored), nil
}

func (s *stubAccounts) Update(_ context.Context, role Role, id string, fields Fields) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.data[role][id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	for name, value := range fields {
		switch name {
		case "name":
			acct.Name = value.(string)
		case "passwordHash":
			acct.PasswordHash = value.(string)
		case "emailVerified":
			acct.EmailVerified = value.(bool)
		case "federatedID":
			acct.FederatedID = value.(string)
		case "branch":
			if acct.Student == nil {
				acct.Student = &StudentProfile{}
			}
			acct.Student.Branch = value.(string)
		case "year":
			if acct.Student == nil {
				acct.Student = &StudentProfile{}
			}
			acct.Student.Year = value.(int)
		}
	}
	return cloneAccount(acct), nil
}

// seed inserts an account directly, bypassing registration.
func (s *stubAccounts) seed(acct *Account) *Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := cloneAccount(acct)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	s.data[acct.Role][stored.ID] = stored
	return cloneAccount(stored)
}

func (s *stubAccounts) remove(role Role, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[role], id)
}

func (s *stubAccounts) count(role Role) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data[role])
}

func cloneAccount(acct *Account) *Account {
	c := *acct
	if acct.Student != nil {
		sp := *acct.Student
		c.Student = &sp
	}
	if acct.Alumni != nil {
		ap := *acct.Alumni
		c.Alumni = &ap
	}
	return &c
}

type recordedMail struct {
	to, subject, html string
}

// recordingSender captures outbound mail instead of delivering it.
type recordingSender struct {
	mu   sync.Mutex
	sent []recordedMail
}

func (r *recordingSender) Send(_ context.Context, to, subject, html string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, recordedMail{to: to, subject: subject, html: html})
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func (r *recordingSender) last(t *testing.T) recordedMail {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		t.Fatal("no mail was sent")
	}
	return r.sent[len(r.sent)-1]
}

var otpPattern = regexp.MustCompile(`\b\d{6}\b`)

func (r *recordingSender) lastOTP(t *testing.T) string {
	t.Helper()
	code := otpPattern.FindString(r.last(t).html)
	if code == "" {
		t.Fatal("no passcode found in last mail body")
	}
	return code
}

type testEngine struct {
	engine   *Engine
	accounts *stubAccounts
	mail     *recordingSender
	redis    *miniredis.Miniredis
}

func newTestEngine(t *testing.T, mutate func(*Config)) *testEngine {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := DefaultConfig()
	cfg.Token.AccessSecret = []byte("test-access-secret")
	cfg.Token.RefreshSecret = []byte("test-refresh-secret")
	// Minimum hashing costs; production costs make the suite crawl.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	if mutate != nil {
		mutate(&cfg)
	}

	accounts := newStubAccounts()
	mail := &recordingSender{}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithAccounts(accounts).
		WithMailer(mail).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	return &testEngine{engine: engine, accounts: accounts, mail: mail, redis: mr}
}

// seedVerified creates a verified password account directly.
func (te *testEngine) seedVerified(t *testing.T, role Role, name, email, pass string) *Account {
	t.Helper()
	hash, err := te.engine.hasher.Hash(pass)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	acct := &Account{
		Role:          role,
		Name:          name,
		Email:         email,
		PasswordHash:  hash,
		EmailVerified: true,
	}
	if role == RoleStudent {
		acct.Student = &StudentProfile{Branch: "cse", Year: 2023}
	} else {
		acct.Alumni = &AlumniProfile{}
	}
	return te.accounts.seed(acct)
}

func mustPair(t *testing.T, pair token.Pair, err error) token.Pair {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("incomplete token pair")
	}
	return pair
}

func TestBuilderRequiresWiring(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := DefaultConfig()
	cfg.Token.AccessSecret = []byte("a")
	cfg.Token.RefreshSecret = []byte("b")

	if _, err := New().WithConfig(cfg).WithAccounts(newStubAccounts()).Build(); err == nil {
		t.Error("Build succeeded without redis")
	}
	if _, err := New().WithConfig(cfg).WithRedis(client).Build(); err == nil {
		t.Error("Build succeeded without accounts")
	}

	noSecrets := DefaultConfig()
	if _, err := New().WithConfig(noSecrets).WithRedis(client).WithAccounts(newStubAccounts()).Build(); err == nil {
		t.Error("Build succeeded without token secrets")
	}
}

func TestMetricsSnapshotCounts(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	te.seedVerified(t, RoleStudent, "Alice", "alice_cse23@gsv.ac.in", "password123")
	if _, _, err := te.engine.Login(ctx, RoleStudent, "alice_cse23@gsv.ac.in", "password123"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	_, _, _ = te.engine.Login(ctx, RoleStudent, "alice_cse23@gsv.ac.in", "wrong-password")

	snap := te.engine.MetricsSnapshot()
	if snap.Counters[MetricLoginSuccess] != 1 {
		t.Errorf("login success = %d, want 1", snap.Counters[MetricLoginSuccess])
	}
	if snap.Counters[MetricLoginFailure] != 1 {
		t.Errorf("login failure = %d, want 1", snap.Counters[MetricLoginFailure])
	}
}
