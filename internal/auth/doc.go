// Package auth gates every command behind a static whitelist and per-user
// sessions.
//
// The whitelist is loaded once at startup and never mutated. Sessions are
// opaque random tokens with a sliding TTL: activity extends expiry, idleness
// past the TTL invalidates the session. Token comparison is constant-time.
//
// Each user's session record is guarded by its own lock, so concurrent
// requests from one user never race to create two sessions and unrelated
// users never contend.
//
// For HTTP transport the opaque session is wrapped in a signed JWT carrying
// the user ID and session token, validated by signature before the session
// lookup.
package auth
