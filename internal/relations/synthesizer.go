// Package relations derives typed edges between documents and sections.
package relations

import (
	"sort"

	"github.com/docgraph/backend/internal/category"
	"github.com/docgraph/backend/internal/storage/models"
)

const (
	DefaultDocumentCap      = 10
	DefaultSectionBridgeCap = 5
)

type Options struct {
	Extension        string
	DocumentCap      int
	SectionBridgeCap int
	HTMLLinks        bool
}

func DefaultOptions() Options {
	return Options{
		Extension:        ".md",
		DocumentCap:      DefaultDocumentCap,
		SectionBridgeCap: DefaultSectionBridgeCap,
	}
}

type DocumentNode struct {
	Path    string
	Content string
}

type SectionNode struct {
	ID       string
	DocPath  string
	ParentID *string
}

// Input is everything synthesis reads. Categories must already be resolved for the whole
// corpus.
type Input struct {
	Documents  []DocumentNode
	Sections   []SectionNode
	Categories map[string]category.Resolution
	Vocabulary *category.Vocabulary
}

type Synthesizer struct {
	opts Options
}

func NewSynthesizer(opts Options) *Synthesizer {
	if opts.Extension == "" {
		opts.Extension = ".md"
	}
	return &Synthesizer{opts: opts}
}

// Synthesize emits link, contains, parent-child and category edges, in that order.
func (s *Synthesizer) Synthesize(in Input) []models.Relationship {
	docs := make([]DocumentNode, len(in.Documents))
	copy(docs, in.Documents)
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })

	var rels []models.Relationship
	rels = append(rels, s.linkEdges(docs)...)
	rels = append(rels, containsEdges(in.Sections)...)
	rels = append(rels, hierarchyEdges(in.Sections)...)
	rels = append(rels, s.categoryEdges(docs, in)...)
	return rels
}

func (s *Synthesizer) linkEdges(docs []DocumentNode) []models.Relationship {
	var rels []models.Relationship
	for _, d := range docs {
		for _, target := range ExtractLinks(d.Path, d.Content, s.opts.Extension, s.opts.HTMLLinks) {
			rels = append(rels, models.Relationship{SourceID: d.Path, TargetID: target, Type: models.RelLink})
		}
	}
	return rels
}

func containsEdges(sections []SectionNode) []models.Relationship {
	rels := make([]models.Relationship, 0, 2*len(sections))
	for _, sec := range sections {
		rels = append(rels, bidirectional(sec.DocPath, sec.ID, models.RelContains)...)
	}
	return rels
}

func hierarchyEdges(sections []SectionNode) []models.Relationship {
	var rels []models.Relationship
	for _, sec := range sections {
		if sec.ParentID == nil {
			continue
		}
		rels = append(rels, models.Relationship{SourceID: *sec.ParentID, TargetID: sec.ID, Type: models.RelParentChild})
	}
	return rels
}

// categoryEdges links up to DocumentCap documents per primary category pairwise, then bridges
// each of them to at most SectionBridgeCap same-category sections of other documents.
func (s *Synthesizer) categoryEdges(docs []DocumentNode, in Input) []models.Relationship {
	docsByCategory := make(map[string][]string)
	for _, d := range docs {
		if r, ok := in.Categories[d.Path]; ok && r.Primary != "" {
			docsByCategory[r.Primary] = append(docsByCategory[r.Primary], d.Path)
		}
	}

	sectionsByCategory := make(map[string][]SectionNode)
	for _, sec := range in.Sections {
		if r, ok := in.Categories[sec.ID]; ok && r.Primary != "" {
			sectionsByCategory[r.Primary] = append(sectionsByCategory[r.Primary], sec)
		}
	}

	names := make([]string, 0, len(docsByCategory))
	for name := range docsByCategory {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if in.Vocabulary != nil {
			ri, rj := in.Vocabulary.Rank(names[i]), in.Vocabulary.Rank(names[j])
			if ri != rj {
				return ri < rj
			}
		}
		return names[i] < names[j]
	})

	var rels []models.Relationship
	for _, name := range names {
		group := docsByCategory[name]
		if len(group) > s.opts.DocumentCap {
			group = group[:s.opts.DocumentCap]
		}

		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				rels = append(rels, bidirectional(group[i], group[j], models.RelCategory)...)
			}
		}

		for _, docPath := range group {
			bridged := 0
			for _, sec := range sectionsByCategory[name] {
				if bridged >= s.opts.SectionBridgeCap {
					break
				}
				if sec.DocPath == docPath {
					continue
				}
				rels = append(rels, bidirectional(docPath, sec.ID, models.RelCategory)...)
				bridged++
			}
		}
	}
	return rels
}

func bidirectional(a, b, relType string) []models.Relationship {
	return []models.Relationship{
		{SourceID: a, TargetID: b, Type: relType},
		{SourceID: b, TargetID: a, Type: relType},
	}
}
