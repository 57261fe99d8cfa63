package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/docgraph/backend/internal/storage/models"
	"github.com/docgraph/backend/pkg/circuitbreaker"
	"github.com/docgraph/backend/pkg/logger"
	"github.com/docgraph/backend/pkg/retry"
)

// Client mirrors the exported document graph into Neo4j. The SQLite index
// stays authoritative; the mirror is replaced wholesale on every sync.
type Client struct {
	driver      neo4j.DriverWithContext
	database    string
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewClient(ctx context.Context, uri, username, password, database string) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(
		uri,
		neo4j.BasicAuth(username, password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify connectivity: %w", err)
	}

	if database == "" {
		database = "neo4j"
	}

	cb := circuitbreaker.New("neo4j", circuitbreaker.Config{
		FailureThreshold: 3,
		OpenTimeout:      30 * time.Second,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       3 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("Neo4j client initialized", zap.String("uri", uri), zap.String("database", database))

	return &Client{
		driver:      driver,
		database:    database,
		cb:          cb,
		retryConfig: retryConfig,
	}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func (c *Client) executeWrite(ctx context.Context, work neo4j.ManagedTransactionWork) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return c.cb.Execute(ctx, func(ctx context.Context) error {
		return retry.Do(ctx, c.retryConfig, func() error {
			session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
			defer session.Close(ctx)
			_, err := session.ExecuteWrite(ctx, work)
			return err
		})
	})
}

const (
	clearQuery = `MATCH (n:MdNode) DETACH DELETE n`

	nodesQuery = `
		UNWIND $nodes AS node
		MERGE (n:MdNode {id: node.id})
		SET n.label = node.label,
		    n.kind = node.kind,
		    n.category = node.category,
		    n.categories = node.categories,
		    n.score = node.score
	`

	edgesQuery = `
		UNWIND $edges AS edge
		MATCH (s:MdNode {id: edge.source})
		MATCH (t:MdNode {id: edge.target})
		CREATE (s)-[:RELATES {type: edge.type}]->(t)
	`
)

// Sync replaces the mirrored graph with g in a single write transaction.
func (c *Client) Sync(ctx context.Context, g *models.Graph) error {
	nodes := nodeParams(g)
	edges := edgeParams(g)

	err := c.executeWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, clearQuery, nil); err != nil {
			return nil, fmt.Errorf("failed to clear mirror: %w", err)
		}
		if _, err := tx.Run(ctx, nodesQuery, map[string]any{"nodes": nodes}); err != nil {
			return nil, fmt.Errorf("failed to merge nodes: %w", err)
		}
		if _, err := tx.Run(ctx, edgesQuery, map[string]any{"edges": edges}); err != nil {
			return nil, fmt.Errorf("failed to create edges: %w", err)
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to sync graph mirror: %w", err)
	}

	logger.Info("Graph mirrored to neo4j",
		zap.Int("nodes", len(nodes)),
		zap.Int("edges", len(edges)),
	)
	return nil
}

func nodeParams(g *models.Graph) []map[string]any {
	out := make([]map[string]any, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		cats := n.Categories
		if cats == nil {
			cats = []string{}
		}
		out = append(out, map[string]any{
			"id":         n.ID,
			"label":      n.Label,
			"kind":       n.Kind,
			"category":   n.Category,
			"categories": cats,
			"score":      n.Score,
		})
	}
	return out
}

func edgeParams(g *models.Graph) []map[string]any {
	out := make([]map[string]any, 0, len(g.Edges))
	for _, e := range g.Edges {
		out = append(out, map[string]any{
			"source": e.Source,
			"target": e.Target,
			"type":   e.Type,
		})
	}
	return out
}
