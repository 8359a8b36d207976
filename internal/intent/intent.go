// ABOUTME: Intent taxonomy and keyword fallback classification
// ABOUTME: Maps free-form user input onto the gateway's capability routes

package intent

import "strings"

// Intent identifies which capability a command should be routed to. The
// string value doubles as the artifact filename prefix.
type Intent string

const (
	Conversation Intent = "chat"
	Image        Intent = "image"
	Music        Intent = "music"
	Video        Intent = "video"
	Help         Intent = "help"
	Unknown      Intent = "unknown"
)

// parseLabel maps a model-produced label onto an Intent. Models answer
// with varying vocabulary, so several synonyms fold into each intent.
func parseLabel(value string) Intent {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "conversation", "chat", "dialogue", "text":
		return Conversation
	case "image_generation", "image", "drawing", "paint", "art":
		return Image
	case "music_generation", "music", "song", "audio":
		return Music
	case "video_generation", "video", "animation", "film":
		return Video
	case "help", "support":
		return Help
	default:
		return Unknown
	}
}

var (
	chatKeywords  = []string{"聊", "chat", "问", "explain", "说", "help"}
	imageKeywords = []string{"画", "image", "绘", "图", "picture", "logo", "design"}
	musicKeywords = []string{"music", "旋律", "歌曲", "歌", "伴奏", "和弦", "曲"}
	videoKeywords = []string{"视频", "video", "动画", "片段", "mv", "剪辑"}
)

// fallbackIntent classifies input by keyword matching. Chat keywords are
// checked first so ambiguous inputs default to conversation, which is
// also the final fallback.
func fallbackIntent(input string) Intent {
	normalized := strings.ToLower(input)

	for _, kw := range chatKeywords {
		if strings.Contains(normalized, kw) {
			return Conversation
		}
	}
	for _, kw := range imageKeywords {
		if strings.Contains(normalized, kw) {
			return Image
		}
	}
	for _, kw := range musicKeywords {
		if strings.Contains(normalized, kw) {
			return Music
		}
	}
	for _, kw := range videoKeywords {
		if strings.Contains(normalized, kw) {
			return Video
		}
	}
	return Conversation
}
