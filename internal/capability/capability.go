// ABOUTME: Capability executor contract and the binary artifact value type
// ABOUTME: Executors turn user input into text replies or binary outputs

package capability

import "context"

// Binary is a generated binary payload awaiting persistence. MediaType
// and FileExt drive the artifact filename; Summary is a human-readable
// description surfaced in artifact events.
type Binary struct {
	Data      []byte
	MediaType string
	FileExt   string
	Summary   string
	Metadata  map[string]any
}

// Output is the result of a capability execution. Exactly one of Text or
// Binary is set.
type Output struct {
	Text   string
	Binary *Binary
}

// Executor runs a single capability against user input.
type Executor interface {
	Execute(ctx context.Context, input string) (*Output, error)
}
