// Package category counts vocabulary terms in text, scores them and resolves primary categories.
package category

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
)

// Match is the count and normalized score of one category in one unit of text.
type Match struct {
	Count int
	Score float64
}

type compiledCategory struct {
	name    string
	pattern *regexp2.Regexp
}

// Scorer holds one compiled alternation per category. It is immutable and safe for
// concurrent use. Word boundaries treat any Unicode letter or digit as part of a word.
type Scorer struct {
	vocab      *Vocabulary
	categories []compiledCategory
}

func NewScorer(vocab *Vocabulary) *Scorer {
	s := &Scorer{vocab: vocab}
	for _, c := range vocab.Categories() {
		alternatives := make([]string, 0, len(c.Terms))
		for _, term := range c.Terms {
			term = strings.TrimSpace(term)
			if term == "" {
				continue
			}
			alternatives = append(alternatives, regexp2.Escape(term))
		}
		if len(alternatives) == 0 {
			continue
		}
		s.categories = append(s.categories, compiledCategory{
			name:    c.Name,
			pattern: regexp2.MustCompile(`\b(?:`+strings.Join(alternatives, "|")+`)\b`, regexp2.IgnoreCase),
		})
	}
	return s
}

func (s *Scorer) Vocabulary() *Vocabulary { return s.vocab }

// Score counts non-overlapping term matches per category. Categories without a match are
// absent from the result.
func (s *Scorer) Score(text string) map[string]Match {
	result := make(map[string]Match)
	length := utf8.RuneCountInString(text)

	for _, c := range s.categories {
		count := countMatches(c.pattern, text)
		if count == 0 {
			continue
		}
		result[c.name] = Match{Count: count, Score: Normalize(count, length)}
	}
	return result
}

func countMatches(re *regexp2.Regexp, text string) int {
	n := 0
	m, err := re.FindStringMatch(text)
	for err == nil && m != nil {
		n++
		m, err = re.FindNextMatch(m)
	}
	return n
}

// Normalize is min(count / sqrt(max(length,1) / 100), 1).
func Normalize(count, length int) float64 {
	if count <= 0 {
		return 0
	}
	denom := math.Sqrt(float64(max(length, 1)) / 100)
	return math.Min(float64(count)/denom, 1)
}
