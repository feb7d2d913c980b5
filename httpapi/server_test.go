package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/campusnet/campusauth"
	"github.com/campusnet/campusauth/cookie"
)

// memAccounts is a minimal in-memory provider for wiring the engine under
// httptest.
type memAccounts struct {
	mu   sync.Mutex
	data map[campusauth.Role]map[string]*campusauth.Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{data: map[campusauth.Role]map[string]*campusauth.Account{
		campusauth.RoleStudent: {},
		campusauth.RoleAlumni:  {},
	}}
}

func (s *memAccounts) FindByEmail(_ context.Context, role campusauth.Role, email string) (*campusauth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.data[role] {
		if strings.EqualFold(acct.Email, email) {
			copied := *acct
			return &copied, nil
		}
	}
	return nil, campusauth.ErrAccountNotFound
}

func (s *memAccounts) FindByID(_ context.Context, role campusauth.Role, id string) (*campusauth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct, ok := s.data[role][id]; ok {
		copied := *acct
		return &copied, nil
	}
	return nil, campusauth.ErrAccountNotFound
}

func (s *memAccounts) Create(_ context.Context, acct *campusauth.Account) (*campusauth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *acct
	copied.ID = uuid.NewString()
	s.data[acct.Role][copied.ID] = &copied
	out := copied
	return &out, nil
}

func (s *memAccounts) Update(_ context.Context, role campusauth.Role, id string, fields campusauth.Fields) (*campusauth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.data[role][id]
	if !ok {
		return nil, campusauth.ErrAccountNotFound
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
				acct.Student = &campusauth.StudentProfile{}
			}
			acct.Student.Branch = value.(string)
		case "year":
			if acct.Student == nil {
				acct.Student = &campusauth.StudentProfile{}
			}
			acct.Student.Year = value.(int)
		}
	}
	copied := *acct
	return &copied, nil
}

type capturingSender struct {
	mu   sync.Mutex
	html []string
}

func (c *capturingSender) Send(_ context.Context, _, _, html string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.html = append(c.html, html)
	return nil
}

var digitRun = regexp.MustCompile(`\b\d{6}\b`)

func (c *capturingSender) lastOTP(t *testing.T) string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.html) == 0 {
		t.Fatal("no mail captured")
	}
	code := digitRun.FindString(c.html[len(c.html)-1])
	if code == "" {
		t.Fatal("no passcode in mail body")
	}
	return code
}

func newTestServer(t *testing.T, mutate func(*campusauth.Config)) (*httptest.Server, *http.Client, *capturingSender) {
	t.Helper()

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	cfg := campusauth.DefaultConfig()
	cfg.Token.AccessSecret = []byte("httpapi-access-secret")
	cfg.Token.RefreshSecret = []byte("httpapi-refresh-secret")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	if mutate != nil {
		mutate(&cfg)
	}

	sender := &capturingSender{}
	engine, err := campusauth.New().
		WithConfig(cfg).
		WithRedis(rc).
		WithAccounts(newMemAccounts()).
		WithMailer(sender).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	srv := httptest.NewServer(New(engine, cookie.NewPolicy(cfg.Cookie)))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return srv, &http.Client{Jar: jar}, sender
}

func postJSON(t *testing.T, client *http.Client, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestRegisterVerifyMeFlow(t *testing.T) {
	srv, client, sender := newTestServer(t, nil)

	resp := postJSON(t, client, srv.URL+"/api/v1/students/register", map[string]string{
		"name": "Alice", "email": "alice_cse23@gsv.ac.in", "password": "password123",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, client, srv.URL+"/api/v1/students/verify-otp", map[string]string{
		"email": "alice_cse23@gsv.ac.in", "otp": sender.lastOTP(t),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status = %d", resp.StatusCode)
	}
	cookies := resp.Cookies()
	resp.Body.Close()

	var haveAccess, haveRefresh bool
	for _, c := range cookies {
		switch c.Name {
		case accessCookie:
			haveAccess = c.Value != "" && c.HttpOnly
		case refreshCookie:
			haveRefresh = c.Value != "" && c.HttpOnly
		}
	}
	if !haveAccess || !haveRefresh {
		t.Fatalf("verify did not set both session cookies: %+v", cookies)
	}

	// The jar carries the cookies into the guarded endpoint.
	getResp, err := client.Get(srv.URL + "/api/v1/students/me")
	if err != nil {
		t.Fatalf("GET /me: %v", err)
	}
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("/me status = %d", getResp.StatusCode)
	}
	body := decodeJSON(t, getResp)
	user, _ := body["user"].(map[string]any)
	if user == nil || user["email"] != "alice_cse23@gsv.ac.in" || user["role"] != "student" {
		t.Fatalf("unexpected /me body: %v", body)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	srv, client, sender := newTestServer(t, nil)

	resp := postJSON(t, client, srv.URL+"/api/v1/alumni/register", map[string]string{
		"name": "Bob", "email": "bob@example.com", "password": "password123",
	})
	resp.Body.Close()
	resp = postJSON(t, client, srv.URL+"/api/v1/alumni/verify-otp", map[string]string{
		"email": "bob@example.com", "otp": sender.lastOTP(t),
	})
	resp.Body.Close()

	fresh := &http.Client{}
	resp = postJSON(t, fresh, srv.URL+"/api/v1/alumni/login", map[string]string{
		"email": "bob@example.com", "password": "wrong-password",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("login status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestMeWithoutSession(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/api/v1/students/me")
	if err != nil {
		t.Fatalf("GET /me: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("/me status = %d, want 401", resp.StatusCode)
	}
	body := decodeJSON(t, resp)
	if _, hasCode := body["code"]; hasCode {
		t.Errorf("missing token must not carry an expiry code: %v", body)
	}
}

func TestExpiredAccessTokenSignalsRefresh(t *testing.T) {
	srv, client, sender := newTestServer(t, func(cfg *campusauth.Config) {
		cfg.Token.AccessTTL = time.Nanosecond
	})

	resp := postJSON(t, client, srv.URL+"/api/v1/alumni/register", map[string]string{
		"name": "Bob", "email": "bob@example.com", "password": "password123",
	})
	resp.Body.Close()
	resp = postJSON(t, client, srv.URL+"/api/v1/alumni/verify-otp", map[string]string{
		"email": "bob@example.com", "otp": sender.lastOTP(t),
	})
	resp.Body.Close()

	time.Sleep(10 * time.Millisecond)

	getResp, err := client.Get(srv.URL + "/api/v1/alumni/me")
	if err != nil {
		t.Fatalf("GET /me: %v", err)
	}
	if getResp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("/me status = %d, want 401", getResp.StatusCode)
	}
	body := decodeJSON(t, getResp)
	if body["code"] != "TOKEN_EXPIRED" {
		t.Fatalf("body = %v, want TOKEN_EXPIRED code", body)
	}
}

func TestRefreshIsCookieOnly(t *testing.T) {
	srv, client, sender := newTestServer(t, nil)

	// Without the cookie the endpoint refuses, whatever the body says.
	resp := postJSON(t, &http.Client{}, srv.URL+"/api/v1/auth/refresh", map[string]string{
		"refreshToken": "some-token-in-body",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bodyless-cookie refresh status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, client, srv.URL+"/api/v1/alumni/register", map[string]string{
		"name": "Bob", "email": "bob@example.com", "password": "password123",
	})
	resp.Body.Close()
	resp = postJSON(t, client, srv.URL+"/api/v1/alumni/verify-otp", map[string]string{
		"email": "bob@example.com", "otp": sender.lastOTP(t),
	})
	resp.Body.Close()

	refreshResp, err := client.Post(srv.URL+"/api/v1/auth/refresh", "application/json", nil)
	if err != nil {
		t.Fatalf("POST refresh: %v", err)
	}
	if refreshResp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d", refreshResp.StatusCode)
	}
	cookies := refreshResp.Cookies()
	body := decodeJSON(t, refreshResp)
	if body["ok"] != true {
		t.Fatalf("refresh body = %v, want {ok:true}", body)
	}

	var reset int
	for _, c := range cookies {
		if (c.Name == accessCookie || c.Name == refreshCookie) && c.Value != "" {
			reset++
		}
	}
	if reset != 2 {
		t.Fatalf("refresh re-set %d session cookies, want 2", reset)
	}
}

func TestLogoutClearsBothCookies(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	resp, err := http.Post(srv.URL+"/api/v1/auth/logout", "application/json", nil)
	if err != nil {
		t.Fatalf("POST logout: %v", err)
	}
	defer resp.Body.Close()

	var cleared int
	for _, c := range resp.Cookies() {
		if (c.Name == accessCookie || c.Name == refreshCookie) && c.MaxAge < 0 && c.Value == "" {
			cleared++
		}
	}
	if cleared != 2 {
		t.Fatalf("logout cleared %d cookies, want 2", cleared)
	}
}

func TestBearerHeaderAccepted(t *testing.T) {
	srv, client, sender := newTestServer(t, nil)

	resp := postJSON(t, client, srv.URL+"/api/v1/alumni/register", map[string]string{
		"name": "Bob", "email": "bob@example.com", "password": "password123",
	})
	resp.Body.Close()
	resp = postJSON(t, client, srv.URL+"/api/v1/alumni/verify-otp", map[string]string{
		"email": "bob@example.com", "otp": sender.lastOTP(t),
	})

	var access string
	for _, c := range resp.Cookies() {
		if c.Name == accessCookie {
			access = c.Value
		}
	}
	resp.Body.Close()
	if access == "" {
		t.Fatal("no access cookie from verify")
	}

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/alumni/me", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+access)

	getResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /me: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("/me via bearer status = %d", getResp.StatusCode)
	}
}

func TestMeIsRoleFenced(t *testing.T) {
	srv, client, sender := newTestServer(t, nil)

	resp := postJSON(t, client, srv.URL+"/api/v1/alumni/register", map[string]string{
		"name": "Bob", "email": "bob@example.com", "password": "password123",
	})
	resp.Body.Close()
	resp = postJSON(t, client, srv.URL+"/api/v1/alumni/verify-otp", map[string]string{
		"email": "bob@example.com", "otp": sender.lastOTP(t),
	})
	resp.Body.Close()

	// A valid alumni session must not open the student surface.
	getResp, err := client.Get(srv.URL + "/api/v1/students/me")
	if err != nil {
		t.Fatalf("GET students/me: %v", err)
	}
	getResp.Body.Close()
	if getResp.StatusCode != http.StatusForbidden {
		t.Fatalf("cross-role /me status = %d, want 403", getResp.StatusCode)
	}
}

func TestFederatedStartAndCallback(t *testing.T) {
	srv, client, _ := newTestServer(t, nil)

	startResp, err := client.Get(srv.URL + "/api/v1/auth/federated/alumni/start")
	if err != nil {
		t.Fatalf("GET start: %v", err)
	}
	startBody := decodeJSON(t, startResp)
	state, _ := startBody["state"].(string)
	if state == "" {
		t.Fatal("start returned no state")
	}

	resp := postJSON(t, client, srv.URL+"/api/v1/auth/federated/alumni/callback", map[string]string{
		"state": state, "provider": "google", "subjectId": "sub-1",
		"email": "bob@example.com", "name": "Bob",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("callback status = %d", resp.StatusCode)
	}
	body := decodeJSON(t, resp)
	user, _ := body["user"].(map[string]any)
	if user == nil || user["emailVerified"] != true {
		t.Fatalf("callback body = %v", body)
	}

	// The session is live straight away.
	meResp, err := client.Get(srv.URL + "/api/v1/alumni/me")
	if err != nil {
		t.Fatalf("GET /me: %v", err)
	}
	meResp.Body.Close()
	if meResp.StatusCode != http.StatusOK {
		t.Fatalf("/me after federated login status = %d", meResp.StatusCode)
	}
}

func TestFederatedCallbackStateMismatch(t *testing.T) {
	srv, client, _ := newTestServer(t, nil)

	startResp, err := client.Get(srv.URL + "/api/v1/auth/federated/alumni/start")
	if err != nil {
		t.Fatalf("GET start: %v", err)
	}
	startResp.Body.Close()

	resp := postJSON(t, client, srv.URL+"/api/v1/auth/federated/alumni/callback", map[string]string{
		"state": "not-the-issued-state", "provider": "google", "subjectId": "sub-1",
		"email": "bob@example.com", "name": "Bob",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("callback status = %d, want 400", resp.StatusCode)
	}
}
