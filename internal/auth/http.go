// ABOUTME: HTTP middleware for signature authentication on gateway endpoints
// ABOUTME: Extracts the four auth query parameters and rejects invalid requests

package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
)

// Params holds the four authentication query parameters carried by every
// gateway request.
type Params struct {
	AccessKey string
	Timestamp int64
	Nonce     string
	Signature string
}

// ParamsFromRequest extracts auth parameters from the request query string.
// Returns an error message (empty if successful).
func ParamsFromRequest(r *http.Request) (Params, string) {
	q := r.URL.Query()

	p := Params{
		AccessKey: q.Get("access_key"),
		Nonce:     q.Get("nonce"),
		Signature: q.Get("signature"),
	}
	if p.AccessKey == "" || p.Nonce == "" || p.Signature == "" {
		return p, "missing auth parameters"
	}

	ts, err := strconv.ParseInt(q.Get("timestamp"), 10, 64)
	if err != nil {
		return p, "invalid timestamp"
	}
	p.Timestamp = ts
	return p, ""
}

// Middleware creates an HTTP middleware that verifies the signature query
// parameters against the guard. All auth failures map to 401: the error
// class is reported in the JSON body, never leaked as distinct status codes.
func Middleware(guard *Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			params, errMsg := ParamsFromRequest(r)
			if errMsg != "" {
				unauthorized(w, errMsg)
				return
			}

			err := guard.Verify(params.AccessKey, params.Timestamp, params.Nonce, params.Signature)
			switch {
			case errors.Is(err, ErrExpired):
				unauthorized(w, "signature expired")
			case errors.Is(err, ErrReplayed):
				unauthorized(w, "nonce already used")
			case err != nil:
				unauthorized(w, "invalid signature")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
