package section

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_GuideScenario(t *testing.T) {
	parsed := Parse("guide.md", "# Guide\n## Setup\ncontent\n## Usage\ncontent")

	assert.Equal(t, "Guide", parsed.Title)
	require.Len(t, parsed.Sections, 2)

	setup, usage := parsed.Sections[0], parsed.Sections[1]
	assert.Equal(t, "Setup", setup.Title)
	assert.Equal(t, "Usage", usage.Title)
	assert.Equal(t, 2, setup.Level)
	assert.Equal(t, 2, usage.Level)
	assert.Nil(t, setup.ParentID)
	assert.Nil(t, usage.ParentID)
	assert.Equal(t, "guide.md#setup", setup.ID)
	assert.Equal(t, "guide.md#usage", usage.ID)
	assert.Equal(t, "Guide > Setup", setup.Path())
	assert.Equal(t, "content", usage.Content)
	assert.Equal(t, "Setup, Usage", parsed.SectionPath())
}

func TestParse_NoHeaders(t *testing.T) {
	parsed := Parse("plain.md", "just some text\nwith two lines\n")

	assert.Empty(t, parsed.Title)
	assert.Empty(t, parsed.Sections)
}

func TestParse_Nesting(t *testing.T) {
	text := `# Manual
intro
## Install
install body
### Linux
apt get
### macOS
brew
## Configure
settings
# Appendix
extra`

	parsed := Parse("manual.md", text)
	require.Len(t, parsed.Sections, 6)

	byTitle := map[string]Section{}
	for _, s := range parsed.Sections {
		byTitle[s.Title] = s
	}

	tests := []struct {
		title  string
		level  int
		parent string
		path   string
	}{
		{"Manual", 1, "", "Manual"},
		{"Install", 2, "manual.md#manual", "Manual > Install"},
		{"Linux", 3, "manual.md#install", "Manual > Install > Linux"},
		{"macOS", 3, "manual.md#install", "Manual > Install > macOS"},
		{"Configure", 2, "manual.md#manual", "Manual > Configure"},
		{"Appendix", 1, "", "Appendix"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			s, ok := byTitle[tt.title]
			require.True(t, ok)
			assert.Equal(t, tt.level, s.Level)
			assert.Equal(t, tt.path, s.Path())
			if tt.parent == "" {
				assert.Nil(t, s.ParentID)
			} else {
				require.NotNil(t, s.ParentID)
				assert.Equal(t, tt.parent, *s.ParentID)
			}
		})
	}
	assert.Equal(t, "Manual", parsed.Title)
}

func TestParse_ParentAlwaysEarlierAndShallower(t *testing.T) {
	text := "# A\na\n### B\nb\n## C\nc\n#### D\nd\n## E\ne\n"
	parsed := Parse("x.md", text)

	index := map[string]int{}
	for i, s := range parsed.Sections {
		index[s.ID] = i
		assert.GreaterOrEqual(t, s.Level, 1)
		assert.LessOrEqual(t, s.Level, 6)
		if s.ParentID == nil {
			continue
		}
		pi, ok := index[*s.ParentID]
		require.True(t, ok, "parent %s must appear before %s", *s.ParentID, s.ID)
		assert.Less(t, pi, i)
		assert.Less(t, parsed.Sections[pi].Level, s.Level)
	}
}

func TestParse_EmptyTitleHeader(t *testing.T) {
	parsed := Parse("e.md", "#   \nbody text\n")

	require.Len(t, parsed.Sections, 1)
	assert.Equal(t, "", parsed.Sections[0].Title)
	assert.Equal(t, "e.md#section", parsed.Sections[0].ID)
	assert.Equal(t, "body text", parsed.Sections[0].Content)
}

func TestParse_NotHeaders(t *testing.T) {
	parsed := Parse("n.md", "# Top\n#hashtag line\n####### seven\ntext\n")

	require.Len(t, parsed.Sections, 1)
	assert.Equal(t, "#hashtag line\n####### seven\ntext", parsed.Sections[0].Content)
}

func TestParse_DuplicateTitles(t *testing.T) {
	parsed := Parse("d.md", "## Notes\none\n## Notes\ntwo\n## Notes 2\nthree\n")

	require.Len(t, parsed.Sections, 3)
	assert.Equal(t, "d.md#notes", parsed.Sections[0].ID)
	assert.Equal(t, "d.md#notes-2", parsed.Sections[1].ID)
	assert.Equal(t, "d.md#notes-2-2", parsed.Sections[2].ID)
}

func TestParse_CRLF(t *testing.T) {
	parsed := Parse("w.md", "# Win\r\nline one\r\nline two\r\n")

	require.Len(t, parsed.Sections, 1)
	assert.Equal(t, "line one\nline two", parsed.Sections[0].Content)
}

func TestParse_FencedCodeIsContent(t *testing.T) {
	text := "# Install\n```sh\n# fetch deps\nmake deps\n```\n~~~~\n## not a header\n~~~\nstill fenced\n~~~~\n## Usage\nrun it\n"

	parsed := Parse("i.md", text)

	require.Len(t, parsed.Sections, 2)
	assert.Equal(t, "Install", parsed.Sections[0].Title)
	assert.Equal(t, "```sh\n# fetch deps\nmake deps\n```\n~~~~\n## not a header\n~~~\nstill fenced\n~~~~", parsed.Sections[0].Content)
	assert.Equal(t, "Usage", parsed.Sections[1].Title)
	assert.Equal(t, "run it", parsed.Sections[1].Content)
}

func TestParse_UnclosedFenceRunsToEnd(t *testing.T) {
	parsed := Parse("u.md", "# Top\n```\n# comment\n")

	require.Len(t, parsed.Sections, 1)
	assert.Equal(t, "```\n# comment", parsed.Sections[0].Content)
}
