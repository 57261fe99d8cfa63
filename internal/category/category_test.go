package category

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVocabulary(t *testing.T) *Vocabulary {
	t.Helper()
	v, err := NewVocabulary([]Category{
		{Name: "Integration", Terms: []string{"api", "webhook"}},
		{Name: "Data", Terms: []string{"database", "schema"}},
		{Name: "UI", Terms: []string{"button"}},
	})
	require.NoError(t, err)
	return v
}

func TestScore_ClampedScenario(t *testing.T) {
	scorer := NewScorer(testVocabulary(t))

	got := scorer.Score("api api api")

	require.Contains(t, got, "Integration")
	assert.Equal(t, 3, got["Integration"].Count)
	assert.Equal(t, 1.0, got["Integration"].Score)
	assert.NotContains(t, got, "Data")
	assert.NotContains(t, got, "UI")
}

func TestScore_CaseInsensitiveWordBoundary(t *testing.T) {
	scorer := NewScorer(testVocabulary(t))

	got := scorer.Score("The API exposes a Webhook. rapid apis are not counted; api.")

	assert.Equal(t, 3, got["Integration"].Count)
}

func TestScore_UnicodeWordBoundary(t *testing.T) {
	v, err := NewVocabulary([]Category{
		{Name: "Cafe", Terms: []string{"café"}},
		{Name: "Api", Terms: []string{"api"}},
		{Name: "Users", Terms: []string{"user", "users"}},
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		text string
		want map[string]int
	}{
		{name: "trailing accent", text: "le café est fermé. apié", want: map[string]int{"Cafe": 1}},
		{name: "uppercase accent", text: "CAFÉ, Café!", want: map[string]int{"Cafe": 2}},
		{name: "inside longer word", text: "cafés und über-api", want: map[string]int{"Api": 1}},
		{name: "longer alternative", text: "users and user", want: map[string]int{"Users": 2}},
	}

	scorer := NewScorer(v)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.Score(tt.text)
			counts := make(map[string]int, len(got))
			for name, m := range got {
				counts[name] = m.Count
			}
			assert.Equal(t, tt.want, counts)
		})
	}
}

func TestScore_Unscaled(t *testing.T) {
	scorer := NewScorer(testVocabulary(t))
	text := "database " + strings.Repeat("x", 9991)
	require.Equal(t, 10000, len(text))

	got := scorer.Score(text)

	// sqrt(10000/100) = 10
	assert.InDelta(t, 0.1, got["Data"].Score, 1e-9)
}

func TestNormalize_BoundsAndMonotonic(t *testing.T) {
	for _, length := range []int{0, 1, 11, 100, 5000, 250000} {
		prev := 0.0
		for count := 1; count <= 4096; count *= 2 {
			s := Normalize(count, length)
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
			assert.GreaterOrEqual(t, s, prev, "count=%d length=%d", count, length)
			prev = s
		}
	}
	assert.Equal(t, 0.0, Normalize(0, 100))
	assert.InDelta(t, math.Min(3/math.Sqrt(0.11), 1), Normalize(3, 11), 1e-12)
}

func TestScore_EmptyTermsIgnored(t *testing.T) {
	v, err := NewVocabulary([]Category{{Name: "Empty", Terms: []string{" ", ""}}, {Name: "UI", Terms: []string{"form"}}})
	require.NoError(t, err)

	got := NewScorer(v).Score("form form")

	assert.Len(t, got, 1)
	assert.Equal(t, 2, got["UI"].Count)
}

func TestResolve_PrimaryAndTieBreak(t *testing.T) {
	vocab := testVocabulary(t)
	scores := []NodeScore{
		{NodeID: "a.md", Category: "Data", Count: 2, Score: 0.2},
		{NodeID: "a.md", Category: "Integration", Count: 2, Score: 0.3},
		{NodeID: "a.md", Category: "UI", Count: 1, Score: 0.1},
		{NodeID: "b.md", Category: "UI", Count: 4, Score: 0.5},
		{NodeID: "b.md", Category: "Data", Count: 1, Score: 0.1},
		{NodeID: "c.md", Category: "Data", Count: 0, Score: 0},
	}

	got := Resolve(scores, vocab)

	require.Len(t, got, 2)
	assert.Equal(t, "Integration", got["a.md"].Primary)
	assert.Equal(t, []string{"Integration", "Data", "UI"}, got["a.md"].Names())
	assert.Equal(t, "UI", got["b.md"].Primary)
	assert.Equal(t, 0.5, got["b.md"].Score)
	assert.NotContains(t, got, "c.md")
}

func TestResolve_SumsDuplicateObservations(t *testing.T) {
	vocab := testVocabulary(t)
	got := Resolve([]NodeScore{
		{NodeID: "n", Category: "UI", Count: 2, Score: 0.4},
		{NodeID: "n", Category: "UI", Count: 2, Score: 0.1},
		{NodeID: "n", Category: "Integration", Count: 3, Score: 0.9},
	}, vocab)

	assert.Equal(t, "UI", got["n"].Primary)
	assert.Equal(t, 4, got["n"].Categories[0].Count)
	assert.Equal(t, 0.4, got["n"].Categories[0].Score)
}

func TestResolve_Deterministic(t *testing.T) {
	vocab := DefaultVocabulary()
	scores := []NodeScore{
		{NodeID: "x", Category: "System", Count: 1},
		{NodeID: "x", Category: "User", Count: 1},
		{NodeID: "x", Category: "Data", Count: 1},
	}
	for i := 0; i < 20; i++ {
		assert.Equal(t, "User", Resolve(scores, vocab)["x"].Primary)
	}
}

func TestVocabulary_Duplicate(t *testing.T) {
	_, err := NewVocabulary([]Category{{Name: "A"}, {Name: "A"}})
	assert.Error(t, err)
}

func TestDefaultVocabulary(t *testing.T) {
	v := DefaultVocabulary()
	assert.Equal(t, []string{"User", "Integration", "Process", "Data", "UI", "System"}, v.Names())
	assert.Equal(t, 6, v.Rank("Unknown"))
}

func TestLoadVocabulary_PreservesOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.yaml")
	content := "Zeta:\n  - zebra\nAlpha: [apple, apricot]\nMid:\n  - melon\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v, fromDefault, err := LoadVocabulary(path)
	require.NoError(t, err)

	assert.False(t, fromDefault)
	assert.Equal(t, []string{"Zeta", "Alpha", "Mid"}, v.Names())
	assert.Equal(t, []string{"apple", "apricot"}, v.Categories()[1].Terms)
}

func TestLoadVocabulary_MissingFallsBack(t *testing.T) {
	v, fromDefault, err := LoadVocabulary(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.True(t, fromDefault)
	assert.Equal(t, 6, v.Len())
}

func TestLoadVocabulary_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- just\n- a list\n"), 0o644))

	_, _, err := LoadVocabulary(path)
	assert.Error(t, err)
}
