// Package graph projects the persisted index into the node/edge payload served to the viewer.
package graph

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/docgraph/backend/internal/storage"
	"github.com/docgraph/backend/internal/storage/models"
	"github.com/docgraph/backend/pkg/logger"
)

type Options struct {
	DocumentSize int
	SectionSize  int
}

func DefaultOptions() Options {
	return Options{DocumentSize: 10, SectionSize: 5}
}

// Export reads the whole current index. Documents come first in path order, then sections in
// document order, then edges in insertion order. When r can pin a snapshot all reads go through
// it, so a rebuild committing mid-export never yields a graph mixing two corpora.
func Export(ctx context.Context, r storage.Reader, opts Options) (*models.Graph, error) {
	if sn, ok := r.(storage.Snapshotter); ok {
		snap, err := sn.Snapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot: %w", err)
		}
		defer func() {
			if err := snap.Close(); err != nil {
				logger.Warn("Failed to close snapshot", zap.Error(err))
			}
		}()
		r = snap
	}

	docs, err := r.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	sections, err := r.ListSections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	rels, err := r.ListRelationships(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	cats, err := r.NodeCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list node categories: %w", err)
	}

	byNode := make(map[string][]models.NodeCategory)
	for _, c := range cats {
		byNode[c.NodeID] = append(byNode[c.NodeID], c)
	}

	g := &models.Graph{
		Nodes: make([]models.GraphNode, 0, len(docs)+len(sections)),
		Edges: make([]models.GraphEdge, 0, len(rels)),
	}

	for _, d := range docs {
		label := d.Title
		if label == "" {
			label = d.Path
		}
		g.Nodes = append(g.Nodes, node(d.Path, label, models.NodeDocument, opts.DocumentSize, byNode[d.Path]))
	}
	for _, s := range sections {
		label := s.Title
		if label == "" {
			label = s.ID
		}
		g.Nodes = append(g.Nodes, node(s.ID, label, models.NodeSection, opts.SectionSize, byNode[s.ID]))
	}
	for _, rel := range rels {
		g.Edges = append(g.Edges, models.GraphEdge{Source: rel.SourceID, Target: rel.TargetID, Type: rel.Type})
	}

	return g, nil
}

// node takes the primary category from the first aggregated row, which the view already
// orders by count and catalog position.
func node(id, label, kind string, size int, cats []models.NodeCategory) models.GraphNode {
	n := models.GraphNode{ID: id, Label: label, Kind: kind, Size: size}
	if len(cats) == 0 {
		return n
	}
	n.Category = cats[0].Category
	n.Score = cats[0].Score
	n.Categories = make([]string, len(cats))
	for i, c := range cats {
		n.Categories[i] = c.Category
	}
	return n
}
