// ABOUTME: Tests for the signed control API client
// ABOUTME: Verifies header signing and response handling against a fake server

package live

import (
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/musehq/muse-gateway/internal/config"
)

func verifySignature(t *testing.T, r *http.Request, secret string) {
	t.Helper()

	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)

	digest := md5.Sum(body)
	assert.Equal(t, hex.EncodeToString(digest[:]), r.Header.Get("x-bili-content-md5"))
	assert.Equal(t, "HMAC-SHA256", r.Header.Get("x-bili-signature-method"))
	assert.Equal(t, "1.0", r.Header.Get("x-bili-signature-version"))
	assert.NotEmpty(t, r.Header.Get("x-bili-signature-nonce"))
	assert.NotEmpty(t, r.Header.Get("x-bili-timestamp"))

	canonical := fmt.Sprintf(
		"x-bili-accesskeyid:%s\nx-bili-content-md5:%s\nx-bili-signature-method:HMAC-SHA256\nx-bili-signature-nonce:%s\nx-bili-signature-version:1.0\nx-bili-timestamp:%s",
		r.Header.Get("x-bili-accesskeyid"),
		r.Header.Get("x-bili-content-md5"),
		r.Header.Get("x-bili-signature-nonce"),
		r.Header.Get("x-bili-timestamp"),
	)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonical))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), r.Header.Get("Authorization"))
}

func testLiveConfig(host string) config.LiveConfig {
	return config.LiveConfig{
		Enabled:      true,
		Host:         host,
		AppID:        9000,
		AccessKey:    "ak",
		AccessSecret: "sk",
		IDCode:       "CODE123",
	}
}

func TestControlClient_Start(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/app/start", r.URL.Path)
		assert.Equal(t, "ak", r.Header.Get("x-bili-accesskeyid"))
		verifySignature(t, r, "sk")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"code": 0,
			"data": {
				"game_info": {"game_id": "g-1"},
				"websocket_info": {"auth_body": "{\"token\":\"t\"}", "wss_link": ["wss://feed.example.com"]},
				"anchor_info": {"room_id": 77, "uname": "host", "open_id": "o-1"}
			}
		}`)
	}))
	defer srv.Close()

	c := NewControlClient(testLiveConfig(srv.URL))
	result, err := c.Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "g-1", result.GameID)
	assert.Equal(t, int64(77), result.RoomID)
	assert.Equal(t, "host", result.Streamer)
	assert.Equal(t, []string{"wss://feed.example.com"}, result.WSSLinks)
	assert.Equal(t, `{"token":"t"}`, result.AuthBody)
}

func TestControlClient_StartApplicationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"code": 7007, "message": "invalid id code"}`)
	}))
	defer srv.Close()

	c := NewControlClient(testLiveConfig(srv.URL))
	_, err := c.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "7007")
}

func TestControlClient_HeartbeatAndEnd(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		verifySignature(t, r, "sk")
		paths = append(paths, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"code": 0}`)
	}))
	defer srv.Close()

	c := NewControlClient(testLiveConfig(srv.URL))
	require.NoError(t, c.Heartbeat(context.Background(), "g-1"))
	require.NoError(t, c.End(context.Background(), "g-1"))
	assert.Equal(t, []string{"/v2/app/heartbeat", "/v2/app/end"}, paths)
}

func TestControlClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewControlClient(testLiveConfig(srv.URL))
	err := c.Heartbeat(context.Background(), "g-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}
