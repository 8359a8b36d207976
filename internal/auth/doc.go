// Package auth provides signature-based request authentication for the
// gateway's HTTP boundary.
//
// Every request carries four query parameters: access_key, timestamp
// (unix seconds), nonce, and signature. The signature is the hex HMAC-SHA256
// digest of "access_key:timestamp:nonce" under the shared secret. The Guard
// verifies the digest in constant time, enforces a freshness window, and
// records consumed nonces in a TTL cache so a captured request cannot be
// replayed.
package auth
