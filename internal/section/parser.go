// Package section splits markdown text into a forest of header-delimited sections.
package section

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/gosimple/slug"
)

// BreadcrumbSeparator joins the titles of a section path.
const BreadcrumbSeparator = " > "

var (
	headerPattern = regexp.MustCompile(`^(#{1,6})(?:[ \t]+(.*?))?[ \t]*$`)
	fencePattern  = regexp.MustCompile("^ {0,3}(`{3,}|~{3,})")
)

// Section is one parsed header block. ParentID is nil at the top level.
type Section struct {
	ID         string
	Title      string
	Level      int
	Content    string
	ParentID   *string
	Breadcrumb []string
}

// Path renders the breadcrumb as "Doc > Parent > Self".
func (s Section) Path() string {
	return strings.Join(s.Breadcrumb, BreadcrumbSeparator)
}

// Parsed is the result of parsing a single document.
type Parsed struct {
	Title    string
	Sections []Section
}

// SectionPath is the concatenation of section titles stored on the document record.
func (p Parsed) SectionPath() string {
	titles := make([]string, 0, len(p.Sections))
	for _, s := range p.Sections {
		titles = append(titles, s.Title)
	}
	return strings.Join(titles, ", ")
}

type openHeader struct {
	title   string
	level   int
	id      string
	emitted bool
}

// Parse scans text line by line. A header closes the current section and opens a new one;
// sections that never accumulate content are dropped but still appear in descendants'
// breadcrumbs. A section's parent is the nearest open ancestor of lower level that was emitted.
// Lines inside fenced code blocks are always content.
func Parse(docPath, text string) Parsed {
	var (
		result  Parsed
		stack   []*openHeader
		current *Section
		body    []string
		used    = map[string]bool{}
	)

	titleFound := false
	fence := ""

	flush := func() {
		if current == nil {
			return
		}
		content := strings.TrimSpace(strings.Join(body, "\n"))
		if content != "" {
			current.Content = content
			current.ID = sectionID(docPath, current.Title, used)
			stack[len(stack)-1].emitted = true
			stack[len(stack)-1].id = current.ID
			result.Sections = append(result.Sections, *current)
		}
		current = nil
		body = body[:0]
	}

	for _, line := range strings.Split(normalizeNewlines(text), "\n") {
		inFence := fence != ""
		fence = updateFence(fence, line)

		var m []string
		if !inFence {
			m = headerPattern.FindStringSubmatch(line)
		}
		if m == nil {
			if current != nil {
				body = append(body, line)
			}
			continue
		}

		flush()

		level := len(m[1])
		title := strings.TrimSpace(m[2])
		if level == 1 && !titleFound {
			result.Title = title
			titleFound = true
		}

		for len(stack) > 0 && stack[len(stack)-1].level >= level {
			stack = stack[:len(stack)-1]
		}

		var parentID *string
		breadcrumb := make([]string, 0, len(stack)+1)
		for _, h := range stack {
			breadcrumb = append(breadcrumb, h.title)
		}
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i].emitted {
				id := stack[i].id
				parentID = &id
				break
			}
		}
		breadcrumb = append(breadcrumb, title)

		stack = append(stack, &openHeader{title: title, level: level})
		current = &Section{
			Title:      title,
			Level:      level,
			ParentID:   parentID,
			Breadcrumb: breadcrumb,
		}
	}
	flush()

	return result
}

// updateFence returns the fence still open after line. A closing fence repeats the opening
// character at least as many times and carries no info string.
func updateFence(open, line string) string {
	m := fencePattern.FindStringSubmatch(line)
	if m == nil {
		return open
	}
	if open == "" {
		return m[1]
	}
	if m[1][0] == open[0] && len(m[1]) >= len(open) && strings.TrimSpace(line[len(m[0]):]) == "" {
		return ""
	}
	return open
}

// sectionID derives "<doc>#<slug>"; repeated slugs in one document get "-2", "-3", ...
func sectionID(docPath, title string, used map[string]bool) string {
	base := slug.Make(title)
	if base == "" {
		base = "section"
	}
	candidate := base
	for n := 2; used[candidate]; n++ {
		candidate = base + "-" + strconv.Itoa(n)
	}
	used[candidate] = true
	return docPath + "#" + candidate
}

func normalizeNewlines(text string) string {
	return strings.ReplaceAll(text, "\r\n", "\n")
}
