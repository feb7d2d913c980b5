// Package otp implements the one-time-passcode challenge store on Redis.
//
// At most one active challenge exists per email: a challenge lives under a
// single key, so issuing a new one supersedes any predecessor. Both the
// issue throttle and the consume path run as Lua scripts, which makes the
// resend window and the single-use guarantee strict under concurrent
// callers rather than best-effort read-then-write.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited reports an issue attempt inside the resend window.
	ErrRateLimited = errors.New("otp rate limited")
	// ErrRedisUnavailable reports a backend failure; verification fails closed.
	ErrRedisUnavailable = errors.New("otp redis unavailable")
)

// Config tunes challenge lifetime and issue throttling.
type Config struct {
	TTL            time.Duration // challenge validity, default 5 minutes
	ResendInterval time.Duration // minimum gap between issues, default 60 seconds
	Digits         int           // passcode length, default 6
	Prefix         string        // redis key prefix
}

// Store persists challenges keyed by normalized email.
type Store struct {
	redis  redis.UniversalClient
	config Config
}

// Challenge records are stored as "1:<createdAtUnix>:<code>" so the issue
// script can read the creation time without a second round-trip. Expiry is
// carried by the key TTL.
const recordVersion = "1"

// issueLua enforces the resend window and writes the new challenge in one
// atomic step, superseding any previous challenge for the email.
// KEYS[1] = challenge key
// ARGV[1] = new record, ARGV[2] = now unix, ARGV[3] = resend window seconds,
// ARGV[4] = ttl millis
var issueLua = redis.NewScript(`
local existing = redis.call('GET', KEYS[1])
if existing then
  local created = tonumber(string.match(existing, "^1:(%d+):"))
  if created and (tonumber(ARGV[2]) - created) < tonumber(ARGV[3]) then
    return {err='rate_limited'}
  end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[4])
return 1
`)

// consumeLua compares and deletes in one atomic step so a code verifies at
// most once. Returns 1 on match, 0 on any miss; expired challenges are gone
// from Redis already.
// KEYS[1] = challenge key
// ARGV[1] = supplied code
var consumeLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return 0
end
local code = string.match(data, "^1:%d+:(.+)$")
if not code then
  redis.call('DEL', KEYS[1])
  return 0
end
if code ~= ARGV[1] then
  return 0
end
redis.call('DEL', KEYS[1])
return 1
`)

// New creates a challenge Store backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.ResendInterval <= 0 {
		cfg.ResendInterval = 60 * time.Second
	}
	if cfg.Digits == 0 {
		cfg.Digits = 6
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "caotp"
	}
	return &Store{redis: redisClient, config: cfg}
}

func (s *Store) key(email string) string {
	return s.config.Prefix + ":" + email
}

// Issue generates a fresh passcode for the email and stores it, replacing
// any prior challenge. It fails with ErrRateLimited when the most recent
// challenge is younger than the resend window. The email must already be
// normalized by the caller.
func (s *Store) Issue(ctx context.Context, email string) (string, error) {
	code, err := newCode(s.config.Digits)
	if err != nil {
		return "", err
	}

	record := recordVersion + ":" + strconv.FormatInt(time.Now().Unix(), 10) + ":" + code
	_, err = issueLua.Run(ctx, s.redis,
		[]string{s.key(email)},
		record,
		time.Now().Unix(),
		int64(s.config.ResendInterval.Seconds()),
		s.config.TTL.Milliseconds(),
	).Result()
	if err != nil {
		if err.Error() == "rate_limited" {
			return "", ErrRateLimited
		}
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return code, nil
}

// Verify consumes the challenge for the email. It returns true only when an
// unexpired challenge exists and the supplied code, after trimming,
// matches it exactly as a string. A successful verify deletes the
// challenge; a second verify with the same code must fail.
func (s *Store) Verify(ctx context.Context, email, suppliedCode string) (bool, error) {
	code := strings.TrimSpace(suppliedCode)
	if code == "" {
		return false, nil
	}

	result, err := consumeLua.Run(ctx, s.redis, []string{s.key(email)}, code).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	matched, ok := result.(int64)
	return ok && matched == 1, nil
}

// newCode draws each digit independently from crypto/rand, preserving
// leading zeros. Codes are compared as strings, never numerically.
func newCode(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	return b.String(), nil
}
