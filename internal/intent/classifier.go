// ABOUTME: Classifier interface and the resolving strategy around it
// ABOUTME: Empty input means help; model failures degrade to keyword matching

package intent

import (
	"context"
	"log/slog"
	"strings"
)

// Classifier decides the intent of a piece of user input.
type Classifier interface {
	Classify(ctx context.Context, input string) (Intent, error)
}

// Resolver is the gateway's classification entry point. It short-circuits
// empty input to Help, consults the configured provider if any, and falls
// back to keyword matching when the provider fails or answers nonsense.
// Resolution never fails: the caller always gets a routable intent.
type Resolver struct {
	provider Classifier
	logger   *slog.Logger
}

// NewResolver creates a resolver. provider may be nil, in which case only
// keyword matching is used.
func NewResolver(provider Classifier, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		provider: provider,
		logger:   logger.With("component", "intent"),
	}
}

// Classify resolves the intent of input.
func (r *Resolver) Classify(ctx context.Context, input string) Intent {
	if strings.TrimSpace(input) == "" {
		return Help
	}

	if r.provider != nil {
		result, err := r.provider.Classify(ctx, input)
		if err != nil {
			r.logger.Warn("model classification failed, using keyword fallback", "error", err)
		} else if result != Unknown {
			return result
		} else {
			r.logger.Warn("model returned unknown intent, using keyword fallback")
		}
	}

	return fallbackIntent(input)
}
