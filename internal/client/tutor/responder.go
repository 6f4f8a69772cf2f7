// Package tutor answers free-text study questions from a local table of
// patterns. It needs no connectivity.
package tutor

import (
	"context"
	"strings"
	"unicode"

	patterns "github.com/dmitrijs2005/smartyedu/internal/client/repositories/tutor"
	"github.com/dmitrijs2005/smartyedu/internal/logging"
)

// Fallback is returned when no stored pattern is close enough.
const Fallback = "I am not sure yet. Try rephrasing the question or pick a subject."

// DefaultThreshold is the minimum score a pattern needs to be used.
const DefaultThreshold = 0.55

// Message is one turn of a conversation.
type Message struct {
	FromUser bool
	Text     string
}

// Responder maps a conversation and a new message to a reply.
type Responder interface {
	Respond(ctx context.Context, history []Message, message string) (string, error)
}

// PatternResponder scores stored patterns by edit distance and word overlap.
type PatternResponder struct {
	repo      patterns.Repository
	subject   string
	threshold float64
	log       logging.Logger
}

func NewPatternResponder(repo patterns.Repository, subject string, log logging.Logger) *PatternResponder {
	return &PatternResponder{repo: repo, subject: subject, threshold: DefaultThreshold, log: log.With("module", "tutor")}
}

// Respond returns the best matching canned reply, or Fallback. An empty
// message is answered by repeating the last bot reply, if any.
func (r *PatternResponder) Respond(ctx context.Context, history []Message, message string) (string, error) {
	q := normalize(message)
	if q == "" {
		for i := len(history) - 1; i >= 0; i-- {
			if !history[i].FromUser {
				return history[i].Text, nil
			}
		}
		return Fallback, nil
	}

	list, err := r.repo.List(ctx, r.subject)
	if err != nil {
		return "", err
	}

	best, bestScore := "", 0.0
	for _, p := range list {
		if s := Score(q, normalize(p.Pattern)); s > bestScore {
			best, bestScore = p.Response, s
		}
	}
	r.log.Debug(ctx, "tutor match", "score", bestScore)
	if bestScore < r.threshold {
		return Fallback, nil
	}
	return best, nil
}

// Score combines normalized edit similarity and token overlap into [0,1].
func Score(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	return 0.6*editSimilarity(a, b) + 0.4*tokenOverlap(a, b)
}

func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func editSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// tokenOverlap is the Jaccard index of the word sets.
func tokenOverlap(a, b string) float64 {
	sa := make(map[string]struct{})
	for _, w := range strings.Fields(a) {
		sa[w] = struct{}{}
	}
	sb := make(map[string]struct{})
	for _, w := range strings.Fields(b) {
		sb[w] = struct{}{}
	}
	if len(sa) == 0 && len(sb) == 0 {
		return 1
	}
	inter := 0
	for w := range sa {
		if _, ok := sb[w]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(sa)+len(sb)-inter)
}
