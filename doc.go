// Package campusauth is the credential and session subsystem of a two-tenant
// campus community platform. It authenticates students and alumni through two
// channels (password plus emailed one-time passcode, or a federated identity
// assertion) and issues role-scoped access/refresh token pairs delivered as
// httpOnly cookies.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// campusauth is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (Account, Principal, MetricsSnapshot, etc.). Internal
// coordination (the OTP challenge store, login rate limiting, the mongo
// account adapter) lives under internal/ and is never exported. The token
// service, cookie policy, HTTP surface, and session-continuity client live in
// their own packages (token, cookie, httpapi, client).
//
// # What this package must NOT do
//
//   - Expose Redis or Mongo clients, internal stores, or key layouts in its
//     public API.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//   - Distinguish credential-failure causes to callers beyond what silent
//     refresh requires: token validation failures collapse to one
//     unauthenticated outcome, with expiry surfaced separately.
//
// # Trust model
//
// Two account collections (students, alumni) share shape but are never
// merged; a token's role claim selects the collection an identity resolves
// from. Access tokens live 40 minutes, refresh tokens 15 days, and each kind
// is signed with its own secret so one can never validate as the other.
package campusauth
