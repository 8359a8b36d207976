// ABOUTME: Tests for signature verification, TTL enforcement, and replay rejection
// ABOUTME: Covers the fixed verification order and nonce consumption semantics

package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGuard(t *testing.T) *Guard {
	t.Helper()
	g := NewGuard("client-1", "s3cret", 60*time.Second, 100)
	t.Cleanup(g.Close)
	return g
}

func TestGuard_ValidSignatureVerifiesOnce(t *testing.T) {
	g := newTestGuard(t)

	ts := time.Now().Unix()
	sig := g.Sign("client-1", ts, "nonce-1")

	require.NoError(t, g.Verify("client-1", ts, "nonce-1", sig))

	// Same nonce again is a replay even though the signature is valid
	err := g.Verify("client-1", ts, "nonce-1", sig)
	assert.ErrorIs(t, err, ErrReplayed)
}

func TestGuard_WrongSecret(t *testing.T) {
	g := newTestGuard(t)
	other := NewGuard("client-1", "different", 60*time.Second, 100)
	defer other.Close()

	ts := time.Now().Unix()
	sig := other.Sign("client-1", ts, "nonce-1")

	err := g.Verify("client-1", ts, "nonce-1", sig)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGuard_WrongAccessKey(t *testing.T) {
	g := newTestGuard(t)

	ts := time.Now().Unix()
	sig := g.Sign("client-2", ts, "nonce-1")

	err := g.Verify("client-2", ts, "nonce-1", sig)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGuard_NonHexSignature(t *testing.T) {
	g := newTestGuard(t)

	err := g.Verify("client-1", time.Now().Unix(), "nonce-1", "not-hex!")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGuard_ExpiredTimestamp(t *testing.T) {
	g := newTestGuard(t)

	// Timestamp 90s in the past with a 60s TTL
	ts := time.Now().Add(-90 * time.Second).Unix()
	sig := g.Sign("client-1", ts, "nonce-1")

	err := g.Verify("client-1", ts, "nonce-1", sig)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestGuard_FutureTimestampRejected(t *testing.T) {
	g := newTestGuard(t)

	ts := time.Now().Add(90 * time.Second).Unix()
	sig := g.Sign("client-1", ts, "nonce-1")

	err := g.Verify("client-1", ts, "nonce-1", sig)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestGuard_FailedVerificationDoesNotConsumeNonce(t *testing.T) {
	g := newTestGuard(t)

	ts := time.Now().Unix()

	// Bad signature with a fresh nonce must not mark the nonce as seen
	err := g.Verify("client-1", ts, "nonce-1", "deadbeef")
	require.ErrorIs(t, err, ErrUnauthorized)

	// The same nonce still works with a valid signature
	sig := g.Sign("client-1", ts, "nonce-1")
	assert.NoError(t, g.Verify("client-1", ts, "nonce-1", sig))
}

func TestGuard_SignatureCheckedBeforeFreshness(t *testing.T) {
	g := newTestGuard(t)

	// Expired timestamp and bad signature: signature error wins
	ts := time.Now().Add(-90 * time.Second).Unix()
	err := g.Verify("client-1", ts, "nonce-1", "deadbeef")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGuard_ClockSkewWithinTTL(t *testing.T) {
	g := newTestGuard(t)
	g.now = func() time.Time { return time.Unix(1_000_000, 0) }

	// 30s of skew in either direction is inside the 60s window
	for _, ts := range []int64{1_000_000 - 30, 1_000_000 + 30} {
		nonce := "nonce-" + strconv.FormatInt(ts, 10)
		sig := g.Sign("client-1", ts, nonce)
		assert.NoError(t, g.Verify("client-1", ts, nonce, sig))
	}
}

func signedQuery(g *Guard, accessKey, nonce string, ts int64) string {
	q := url.Values{}
	q.Set("access_key", accessKey)
	q.Set("timestamp", strconv.FormatInt(ts, 10))
	q.Set("nonce", nonce)
	q.Set("signature", g.Sign(accessKey, ts, nonce))
	return q.Encode()
}

func TestMiddleware_AllowsValidRequest(t *testing.T) {
	g := newTestGuard(t)

	called := false
	handler := Middleware(g)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/events?"+signedQuery(g, "client-1", "n1", time.Now().Unix()), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_RejectsMissingParams(t *testing.T) {
	g := newTestGuard(t)

	handler := Middleware(g)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing auth parameters")
}

func TestMiddleware_RejectsMalformedTimestamp(t *testing.T) {
	g := newTestGuard(t)

	handler := Middleware(g)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	q := url.Values{}
	q.Set("access_key", "client-1")
	q.Set("timestamp", "yesterday")
	q.Set("nonce", "n1")
	q.Set("signature", "deadbeef")

	req := httptest.NewRequest(http.MethodGet, "/events?"+q.Encode(), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid timestamp")
}

func TestMiddleware_RejectsReplay(t *testing.T) {
	g := newTestGuard(t)

	handler := Middleware(g)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	query := signedQuery(g, "client-1", "n1", time.Now().Unix())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events?"+query, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events?"+query, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "nonce already used")
}
