// ABOUTME: LLM-backed intent routing via an OpenAI-compatible chat model
// ABOUTME: Parses the model's JSON answer, tolerating markdown code fences

package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
)

const routerPreamble = `You are a strict router. Answer only with JSON of the form {"intent": "..."}. ` +
	`The intent must be one of conversation, image_generation, music_generation, video_generation, or help.`

// ModelClassifier routes input through a chat model that answers with a
// single-field JSON object. An unparseable answer is reported as an error
// so the caller can fall back to keywords.
type ModelClassifier struct {
	client openai.Client
	model  string
}

// NewModelClassifier creates an LLM-backed classifier using the given
// client and model name.
func NewModelClassifier(client openai.Client, model string) *ModelClassifier {
	return &ModelClassifier{client: client, model: model}
}

// Classify asks the model for the intent of the input.
func (c *ModelClassifier) Classify(ctx context.Context, input string) (Intent, error) {
	prompt := fmt.Sprintf(
		"Read the user input and decide its intent. Output only JSON of the form {\"intent\": \"...\"} with no extra content.\nUser input: ```%s```",
		strings.TrimSpace(input),
	)

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(routerPreamble),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return Unknown, fmt.Errorf("intent completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Unknown, fmt.Errorf("intent completion: no choices returned")
	}

	result, ok := parseIntentResponse(resp.Choices[0].Message.Content)
	if !ok {
		return Unknown, fmt.Errorf("unparseable intent response: %q", resp.Choices[0].Message.Content)
	}
	return result, nil
}

// parseIntentResponse extracts the intent from a model answer, stripping
// markdown code fences if the model wrapped its JSON despite instructions.
func parseIntentResponse(response string) (Intent, bool) {
	sanitized := strings.TrimSpace(response)
	if after, ok := strings.CutPrefix(sanitized, "```json"); ok {
		sanitized = after
	} else if after, ok := strings.CutPrefix(sanitized, "```"); ok {
		sanitized = after
	}
	sanitized = strings.TrimSuffix(strings.TrimSpace(sanitized), "```")
	sanitized = strings.TrimSpace(sanitized)

	var parsed struct {
		Intent string `json:"intent"`
	}
	if err := json.Unmarshal([]byte(sanitized), &parsed); err != nil || parsed.Intent == "" {
		return Unknown, false
	}
	return parseLabel(parsed.Intent), true
}
