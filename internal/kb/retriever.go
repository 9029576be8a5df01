package kb

import (
	"regexp"
	"strings"

	logx "github.com/curiopass/support-agent/pkg/logger"
)

// Match is the highest-scoring article for a query together with its score.
type Match struct {
	Article Article
	Score   float64
}

// Retriever performs similarity-scored lookup over a corpus loaded at startup.
// The corpus is never mutated, so a Retriever is safe for concurrent use.
type Retriever struct {
	articles []Article
	keys     []articleKey
	minScore float64
}

type articleKey struct {
	title tokenSet
	body  tokenSet
	tags  tokenSet
}

// NewRetriever builds a retriever with precomputed token sets for each article.
// minScore is the confidence threshold below which Retrieve reports no match.
func NewRetriever(articles []Article, minScore float64) *Retriever {
	keys := make([]articleKey, len(articles))
	for i, a := range articles {
		keys[i] = articleKey{
			title: tokenize(a.Title),
			body:  tokenize(a.Body),
			tags:  tokenize(strings.Join(a.Tags, " ")),
		}
	}
	return &Retriever{articles: articles, keys: keys, minScore: minScore}
}

// Retrieve scores every article against the query and returns the best match
// when its score meets the threshold. Ties keep the first-seen article, so
// results are deterministic for a given corpus ordering.
func (r *Retriever) Retrieve(query string) (*Match, bool) {
	qtokens := tokenize(query)
	if len(qtokens) == 0 {
		return nil, false
	}

	best := -1
	bestScore := 0.0
	for i, k := range r.keys {
		score := max3(
			overlap(k.title, qtokens),
			overlap(k.body, qtokens),
			overlap(k.tags, qtokens),
		)
		if score > bestScore {
			best = i
			bestScore = score
		}
	}

	if best < 0 || bestScore < r.minScore {
		logx.Debug().Float64("best_score", bestScore).Float64("min_score", r.minScore).
			Msg("no knowledge match above threshold")
		return nil, false
	}

	logx.Debug().Str("article_id", r.articles[best].ID).Float64("score", bestScore).
		Msg("knowledge match")
	return &Match{Article: r.articles[best], Score: bestScore}, true
}

// ================ scoring ================

type tokenSet map[string]struct{}

var tokenPattern = regexp.MustCompile(`[a-zA-Z0-9]+`)

func tokenize(s string) tokenSet {
	set := tokenSet{}
	for _, t := range tokenPattern.FindAllString(strings.ToLower(s), -1) {
		set[t] = struct{}{}
	}
	return set
}

// overlap scores |text ∩ query| / |query| in [0,1].
func overlap(text, query tokenSet) float64 {
	if len(text) == 0 || len(query) == 0 {
		return 0
	}
	inter := 0
	for t := range query {
		if _, ok := text[t]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(query))
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
