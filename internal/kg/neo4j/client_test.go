package neo4j

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docgraph/backend/internal/storage/models"
)

func TestParams(t *testing.T) {
	g := &models.Graph{
		Nodes: []models.GraphNode{
			{ID: "a.md", Label: "A", Kind: models.NodeDocument, Category: "UI", Categories: []string{"UI"}, Score: 0.5},
			{ID: "a.md#x", Label: "X", Kind: models.NodeSection},
		},
		Edges: []models.GraphEdge{{Source: "a.md", Target: "a.md#x", Type: models.RelContains}},
	}

	nodes := nodeParams(g)
	require.Len(t, nodes, 2)
	assert.Equal(t, "a.md", nodes[0]["id"])
	assert.Equal(t, []string{"UI"}, nodes[0]["categories"])
	assert.Equal(t, []string{}, nodes[1]["categories"])

	edges := edgeParams(g)
	require.Len(t, edges, 1)
	assert.Equal(t, map[string]any{"source": "a.md", "target": "a.md#x", "type": "contains"}, edges[0])
}
