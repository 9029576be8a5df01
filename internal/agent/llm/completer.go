package llm

import "context"

// Completer is the single seam to the hosted LLM: one system prompt, one user
// message, one text reply. Classification, reason composition and operation
// selection all go through it, so tests can swap in deterministic stubs.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}
