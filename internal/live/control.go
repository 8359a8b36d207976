// ABOUTME: Signed HTTP client for the live platform control API
// ABOUTME: Handles session start, keepalive heartbeats, and session end

package live

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/musehq/muse-gateway/internal/config"
)

const defaultControlHost = "https://live-open.biliapi.com"

// ControlClient talks to the live platform's signed REST API. Every
// request carries an MD5 content digest and an HMAC-SHA256 signature over
// the canonical x-bili headers.
type ControlClient struct {
	http    *http.Client
	baseURL string
	cfg     config.LiveConfig
}

// StartResult is the useful subset of the session start response.
type StartResult struct {
	GameID   string
	WSSLinks []string
	AuthBody string
	RoomID   int64
	Streamer string
}

type startResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		GameInfo struct {
			GameID string `json:"game_id"`
		} `json:"game_info"`
		WebsocketInfo struct {
			AuthBody string   `json:"auth_body"`
			WSSLink  []string `json:"wss_link"`
		} `json:"websocket_info"`
		AnchorInfo struct {
			RoomID int64  `json:"room_id"`
			Uname  string `json:"uname"`
			OpenID string `json:"open_id"`
		} `json:"anchor_info"`
	} `json:"data"`
}

type emptyResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewControlClient creates a control client from the live configuration.
func NewControlClient(cfg config.LiveConfig) *ControlClient {
	baseURL := cfg.Host
	if baseURL == "" {
		baseURL = defaultControlHost
	}
	return &ControlClient{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		cfg:     cfg,
	}
}

// Start opens a live session for the configured identity code.
func (c *ControlClient) Start(ctx context.Context) (*StartResult, error) {
	body, _ := json.Marshal(map[string]any{
		"code":   c.cfg.IDCode,
		"app_id": c.cfg.AppID,
	})

	var resp startResponse
	if err := c.post(ctx, "/v2/app/start", body, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("start returned code %d: %s", resp.Code, resp.Message)
	}
	if len(resp.Data.WebsocketInfo.WSSLink) == 0 {
		return nil, fmt.Errorf("start returned no wss_link")
	}

	streamer := resp.Data.AnchorInfo.Uname
	if streamer == "" {
		streamer = "Unknown"
	}

	return &StartResult{
		GameID:   resp.Data.GameInfo.GameID,
		WSSLinks: resp.Data.WebsocketInfo.WSSLink,
		AuthBody: resp.Data.WebsocketInfo.AuthBody,
		RoomID:   resp.Data.AnchorInfo.RoomID,
		Streamer: streamer,
	}, nil
}

// Heartbeat keeps the session alive. A non-zero application code is
// returned as an error but is not fatal to the session.
func (c *ControlClient) Heartbeat(ctx context.Context, gameID string) error {
	body, _ := json.Marshal(map[string]any{"game_id": gameID})

	var resp emptyResponse
	if err := c.post(ctx, "/v2/app/heartbeat", body, &resp); err != nil {
		return err
	}
	if resp.Code != 0 {
		return fmt.Errorf("heartbeat returned code %d: %s", resp.Code, resp.Message)
	}
	return nil
}

// End closes the session.
func (c *ControlClient) End(ctx context.Context, gameID string) error {
	body, _ := json.Marshal(map[string]any{
		"app_id":  c.cfg.AppID,
		"game_id": gameID,
	})

	var resp emptyResponse
	if err := c.post(ctx, "/v2/app/end", body, &resp); err != nil {
		return err
	}
	if resp.Code != 0 {
		return fmt.Errorf("end returned code %d: %s", resp.Code, resp.Message)
	}
	return nil
}

func (c *ControlClient) post(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building %s request: %w", path, err)
	}
	c.signRequest(req, body)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// signRequest attaches the x-bili auth headers. The signature covers the
// canonical header string in field order, newline separated.
func (c *ControlClient) signRequest(req *http.Request, body []byte) {
	digest := md5.Sum(body)
	contentMD5 := hex.EncodeToString(digest[:])
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	nonce := uuid.New().String()

	canonical := fmt.Sprintf(
		"x-bili-accesskeyid:%s\nx-bili-content-md5:%s\nx-bili-signature-method:HMAC-SHA256\nx-bili-signature-nonce:%s\nx-bili-signature-version:1.0\nx-bili-timestamp:%s",
		c.cfg.AccessKey, contentMD5, nonce, timestamp,
	)

	mac := hmac.New(sha256.New, []byte(c.cfg.AccessSecret))
	mac.Write([]byte(canonical))
	signature := hex.EncodeToString(mac.Sum(nil))

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-bili-accesskeyid", c.cfg.AccessKey)
	req.Header.Set("x-bili-content-md5", contentMD5)
	req.Header.Set("x-bili-signature-method", "HMAC-SHA256")
	req.Header.Set("x-bili-signature-nonce", nonce)
	req.Header.Set("x-bili-signature-version", "1.0")
	req.Header.Set("x-bili-timestamp", timestamp)
	req.Header.Set("Authorization", signature)
}
