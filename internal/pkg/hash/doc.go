// Package hash provides helpers for hashing and verifying secrets.
//
// Passwords go through a slow, salted hasher (bcrypt or Argon2id) so two hashes
// of the same password differ and brute force stays expensive. Short-lived
// codes that only need to be compared, not recovered, go through the keyed
// HMAC-SHA256 digest instead.
package hash
