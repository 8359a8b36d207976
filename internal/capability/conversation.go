// ABOUTME: Conversational capability backed by an OpenAI-compatible chat model
// ABOUTME: Maintains bounded in-memory history shared across command origins

package capability

import (
	"context"
	"fmt"
	"sync"

	"github.com/openai/openai-go"
)

// maxHistoryMessages bounds the conversation memory. Oldest turns are
// dropped first.
const maxHistoryMessages = 24

type historyMessage struct {
	role    string // "user" or "assistant"
	content string
}

// Conversation is the chat capability. History is shared across all
// origins so live viewers and API clients talk to the same persona.
type Conversation struct {
	client   openai.Client
	model    string
	preamble string

	mu      sync.Mutex
	history []historyMessage
}

// NewConversation creates the chat capability with the given model and
// optional system preamble.
func NewConversation(client openai.Client, model, preamble string) *Conversation {
	return &Conversation{
		client:   client,
		model:    model,
		preamble: preamble,
	}
}

// Execute sends the input to the chat model along with the recorded
// history and returns the reply as text output.
func (c *Conversation) Execute(ctx context.Context, input string) (*Output, error) {
	c.mu.Lock()
	snapshot := make([]historyMessage, len(c.history))
	copy(snapshot, c.history)
	c.mu.Unlock()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(snapshot)+2)
	if c.preamble != "" {
		messages = append(messages, openai.SystemMessage(c.preamble))
	}
	for _, msg := range snapshot {
		if msg.role == "assistant" {
			messages = append(messages, openai.AssistantMessage(msg.content))
		} else {
			messages = append(messages, openai.UserMessage(msg.content))
		}
	}
	messages = append(messages, openai.UserMessage(input))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: no choices returned")
	}
	reply := resp.Choices[0].Message.Content

	c.mu.Lock()
	c.history = append(c.history,
		historyMessage{role: "user", content: input},
		historyMessage{role: "assistant", content: reply},
	)
	if overflow := len(c.history) - maxHistoryMessages; overflow > 0 {
		c.history = c.history[overflow:]
	}
	c.mu.Unlock()

	return &Output{Text: reply}, nil
}
