package relations

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var markdownLinkPattern = regexp.MustCompile(`\[[^\]]*\]\(\s*([^)\s]+)(?:\s+"[^"]*")?\s*\)`)

// ExtractLinks returns the distinct document targets referenced from content, in order of
// first appearance. Targets are resolved against the directory of docPath.
func ExtractLinks(docPath, content, extension string, includeHTML bool) []string {
	var raw []string
	for _, m := range markdownLinkPattern.FindAllStringSubmatch(content, -1) {
		raw = append(raw, m[1])
	}
	if includeHTML {
		raw = append(raw, htmlAnchors(content)...)
	}

	seen := make(map[string]bool, len(raw))
	var targets []string
	for _, href := range raw {
		target, ok := resolveTarget(docPath, href, extension)
		if !ok || seen[target] {
			continue
		}
		seen[target] = true
		targets = append(targets, target)
	}
	return targets
}

func htmlAnchors(content string) []string {
	if !strings.Contains(content, "<a") {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil
	}

	var hrefs []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			hrefs = append(hrefs, strings.TrimSpace(href))
		}
	})
	return hrefs
}

func resolveTarget(docPath, href, extension string) (string, bool) {
	href = strings.Trim(href, "<>")
	if href == "" || strings.HasPrefix(href, "//") {
		return "", false
	}
	if u, err := url.Parse(href); err != nil || u.Scheme != "" {
		return "", false
	}
	if !strings.HasSuffix(strings.ToLower(href), strings.ToLower(extension)) {
		return "", false
	}
	if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}

	if strings.HasPrefix(href, "/") {
		return path.Clean(strings.TrimPrefix(href, "/")), true
	}
	return path.Clean(path.Join(path.Dir(docPath), href)), true
}
