// Package storage declares the contract between the indexing core and the persistent index.
package storage

import (
	"context"
	"errors"

	"github.com/docgraph/backend/internal/storage/models"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrBatchClosed = errors.New("batch already committed or rolled back")
	ErrEmptyQuery  = errors.New("search query is empty")
)

// Batch is one atomic unit of work. Beginning a batch discards the previous index inside the
// same transaction, so readers see either the old corpus or the new one.
type Batch interface {
	InsertDocument(ctx context.Context, doc *models.Document) error
	InsertSection(ctx context.Context, sec *models.Section) error
	InsertRelationship(ctx context.Context, rel *models.Relationship) error
	// InsertKeyword is idempotent per category.
	InsertKeyword(ctx context.Context, kw *models.Keyword) error
	InsertNodeCategoryScore(ctx context.Context, score *models.NodeCategoryScore) error
	Commit() error
	// Rollback after Commit is a no-op.
	Rollback() error
}

// Index is the write side used by the indexer.
type Index interface {
	BeginBatch(ctx context.Context) (Batch, error)
}

// Reader is the read side used by search, lookups and graph export.
type Reader interface {
	Search(ctx context.Context, query string, limit int) ([]models.SearchHit, error)
	GetDocument(ctx context.Context, path string) (*models.Document, error)
	GetSection(ctx context.Context, id string) (*models.Section, error)
	ListDocuments(ctx context.Context) ([]models.Document, error)
	ListSections(ctx context.Context) ([]models.Section, error)
	ListRelationships(ctx context.Context) ([]models.Relationship, error)
	ListKeywords(ctx context.Context) ([]models.Keyword, error)
	// NodeCategories lists, per node, categories with summed counts ordered by count
	// descending then catalog order.
	NodeCategories(ctx context.Context) ([]models.NodeCategory, error)
}

// Snapshot is a Reader whose reads all observe one committed state of the index.
type Snapshot interface {
	Reader
	Close() error
}

// Snapshotter is implemented by readers that can pin a consistent view across several reads.
type Snapshotter interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}
