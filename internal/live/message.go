// ABOUTME: Live feed message model and extraction from event frame bodies
// ABOUTME: Frame bodies hold NUL-separated JSON documents with cmd and data

package live

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/musehq/muse-gateway/internal/events"
)

// Feed commands the gateway reacts to. Other commands are forwarded to
// subscribers untouched.
const (
	cmdChat      = "LIVE_OPEN_PLATFORM_DM"
	cmdGift      = "LIVE_OPEN_PLATFORM_SEND_GIFT"
	cmdSuperChat = "LIVE_OPEN_PLATFORM_SUPER_CHAT"
	cmdEnter     = "LIVE_OPEN_PLATFORM_LIVE_ROOM_ENTER"
	cmdLike      = "LIVE_OPEN_PLATFORM_LIKE"
)

// Message is one event from the live feed.
type Message struct {
	Cmd  string          `json:"cmd"`
	Data json.RawMessage `json:"data"`
}

// field resolves a dotted path inside the message data.
func (m *Message) field(path string) gjson.Result {
	return gjson.GetBytes(m.Data, path)
}

// User returns the sender name, or "anonymous" when absent.
func (m *Message) User() string {
	if u := m.field("uname").String(); u != "" {
		return u
	}
	if u := m.field("user_info.uname").String(); u != "" {
		return u
	}
	return "anonymous"
}

// ChatText returns the chat body for chat and super chat messages.
func (m *Message) ChatText() string {
	if m.Cmd == cmdSuperChat {
		return m.field("message").String()
	}
	return m.field("msg").String()
}

// Payload converts the message into the outbound event payload.
func (m *Message) Payload() *events.LiveEventPayload {
	p := &events.LiveEventPayload{User: m.User()}

	switch m.Cmd {
	case cmdChat:
		p.Type = "chat"
		p.Text = m.ChatText()
	case cmdGift:
		p.Type = "gift"
		p.Gift = m.field("gift_name").String()
		p.Num = int(m.field("gift_num").Int())
		if p.Num == 0 {
			p.Num = 1
		}
	case cmdSuperChat:
		p.Type = "super_chat"
		p.Text = m.ChatText()
		p.Num = int(m.field("rmb").Int())
	case cmdEnter:
		p.Type = "enter"
	case cmdLike:
		p.Type = "like"
		p.Num = int(m.field("like_count").Int())
	default:
		p.Type = strings.ToLower(m.Cmd)
	}
	return p
}

// parseMessages extracts messages from an event frame body. Bodies carry
// one or more JSON documents separated by NUL bytes; chunks that fail to
// parse are skipped.
func parseMessages(body []byte) []*Message {
	var messages []*Message
	for _, chunk := range bytes.Split(body, []byte{0}) {
		if len(chunk) == 0 {
			continue
		}
		var msg Message
		if err := json.Unmarshal(chunk, &msg); err != nil || msg.Cmd == "" {
			continue
		}
		messages = append(messages, &msg)
	}
	return messages
}
