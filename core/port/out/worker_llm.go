package out

import "context"

// Completer runs a single system+user chat completion that must answer with
// one JSON object.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
