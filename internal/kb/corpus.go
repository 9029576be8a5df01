package kb

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	logx "github.com/curiopass/support-agent/pkg/logger"
)

// Article is one knowledge-base entry. Articles are immutable once loaded.
type Article struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags"`
}

// LoadCorpus reads a JSONL corpus, one article object per line. Blank lines are
// skipped; a malformed line fails the load with its line number.
func LoadCorpus(path string) ([]Article, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus %s: %w", path, err)
	}
	defer f.Close()

	var articles []Article
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var a Article
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, fmt.Errorf("corpus %s line %d: %w", path, line, err)
		}
		if a.ID == "" {
			return nil, fmt.Errorf("corpus %s line %d: missing article id", path, line)
		}
		articles = append(articles, a)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}

	logx.Info().Str("path", path).Int("articles", len(articles)).Msg("knowledge corpus loaded")
	return articles, nil
}
