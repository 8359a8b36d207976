// ABOUTME: Console rendering of live feed messages for operators
// ABOUTME: Colorizes chat, gifts, super chats, and room traffic

package live

import (
	"fmt"

	"github.com/fatih/color"
)

// Renderer prints live feed messages to the console. It exists for
// operators running the gateway in a terminal; SSE clients get the same
// messages as live.event payloads.
type Renderer struct {
	chat  *color.Color
	gift  *color.Color
	super *color.Color
	faint *color.Color
}

// NewRenderer creates a console renderer.
func NewRenderer() *Renderer {
	return &Renderer{
		chat:  color.New(color.FgCyan),
		gift:  color.New(color.FgYellow),
		super: color.New(color.FgMagenta, color.Bold),
		faint: color.New(color.Faint),
	}
}

// Render prints one message.
func (r *Renderer) Render(msg *Message) {
	switch msg.Cmd {
	case cmdChat:
		r.chat.Printf("[chat] %s: %s\n", msg.User(), msg.ChatText())
	case cmdGift:
		gift := msg.field("gift_name").String()
		num := msg.field("gift_num").Int()
		if num == 0 {
			num = 1
		}
		r.gift.Printf("[gift] %s sent %s x%d\n", msg.User(), gift, num)
	case cmdSuperChat:
		amount := msg.field("rmb").Int()
		r.super.Printf("[super chat] %s (%d): %s\n", msg.User(), amount, msg.ChatText())
	case cmdEnter:
		r.faint.Printf("[enter] %s joined the room\n", msg.User())
	case cmdLike:
		r.faint.Printf("[like] %s x%d\n", msg.User(), msg.field("like_count").Int())
	default:
		fmt.Printf("[%s]\n", msg.Cmd)
	}
}
