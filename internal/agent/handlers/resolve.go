package handlers

import (
	"fmt"

	"github.com/curiopass/support-agent/internal/kb"
)

// Retriever is the slice of the knowledge base the resolver needs.
// *kb.Retriever satisfies it.
type Retriever interface {
	Retrieve(query string) (*kb.Match, bool)
}

// KnowledgeResolver answers knowledge-intent turns from the article corpus.
// A miss is reported via ok == false; the router escalates it.
type KnowledgeResolver struct {
	retriever Retriever
}

func NewKnowledgeResolver(retriever Retriever) *KnowledgeResolver {
	return &KnowledgeResolver{retriever: retriever}
}

// Resolve returns a reply built from the best-matching article together with
// the retrieval confidence. The article body is included verbatim so the
// answer never drifts from the documented policy.
func (r *KnowledgeResolver) Resolve(query string) (reply string, score float64, ok bool) {
	match, ok := r.retriever.Retrieve(query)
	if !ok {
		return "", 0, false
	}
	return fmt.Sprintf("%s\n\n%s", match.Article.Title, match.Article.Body), match.Score, true
}
