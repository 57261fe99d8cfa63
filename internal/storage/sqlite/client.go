package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/docgraph/backend/internal/storage"
	"github.com/docgraph/backend/internal/storage/models"
	"github.com/docgraph/backend/pkg/logger"
	"github.com/docgraph/backend/pkg/retry"
)

type Client struct {
	reader
	db          *sql.DB
	retryConfig retry.Config
}

var (
	_ storage.Index       = (*Client)(nil)
	_ storage.Reader      = (*Client)(nil)
	_ storage.Snapshotter = (*Client)(nil)
)

func NewClient(dbPath string, busyTimeoutMS int) (*Client, error) {
	if busyTimeoutMS <= 0 {
		busyTimeoutMS = 5000
	}
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=%d&_txlock=immediate", dbPath, busyTimeoutMS)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{
		reader: reader{q: db},
		db:     db,
		retryConfig: retry.Config{
			MaxAttempts:    5,
			InitialDelay:   50 * time.Millisecond,
			MaxDelay:       time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.1,
			RetryIf:        isBusy,
			Logger:         logger.GetLogger(),
		},
	}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// BeginBatch opens a write transaction and clears the previous index inside it.
func (c *Client) BeginBatch(ctx context.Context) (storage.Batch, error) {
	tx, err := retry.DoWithResult(ctx, c.retryConfig, func() (*sql.Tx, error) {
		return c.db.BeginTx(ctx, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin batch: %w", err)
	}

	for _, table := range []string{
		"relationships",
		"node_category_scores",
		"sections_fts",
		"documents_fts",
		"sections",
		"documents",
		"keywords",
	} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	return &batch{tx: tx}, nil
}

type batch struct {
	tx     *sql.Tx
	closed bool
}

func (b *batch) exec(ctx context.Context, what, query string, args ...any) error {
	if b.closed {
		return storage.ErrBatchClosed
	}
	if _, err := b.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert %s: %w", what, err)
	}
	return nil
}

func (b *batch) InsertDocument(ctx context.Context, doc *models.Document) error {
	if err := b.exec(ctx, "document",
		`INSERT INTO documents (path, title, content, section_path) VALUES (?, ?, ?, ?)`,
		doc.Path, doc.Title, doc.Content, doc.SectionPath,
	); err != nil {
		return err
	}
	return b.exec(ctx, "document search row",
		`INSERT INTO documents_fts (path, title, body) VALUES (?, ?, ?)`,
		doc.Path, doc.Title, doc.Content,
	)
}

func (b *batch) InsertSection(ctx context.Context, sec *models.Section) error {
	var parent sql.NullString
	if sec.ParentID != nil {
		parent = sql.NullString{String: *sec.ParentID, Valid: true}
	}

	if err := b.exec(ctx, "section",
		`INSERT INTO sections (id, doc_path, title, content, level, parent_id, path) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sec.ID, sec.DocPath, sec.Title, sec.Content, sec.Level, parent, sec.Path,
	); err != nil {
		return err
	}
	return b.exec(ctx, "section search row",
		`INSERT INTO sections_fts (section_id, doc_path, title, body, breadcrumb) VALUES (?, ?, ?, ?, ?)`,
		sec.ID, sec.DocPath, sec.Title, sec.Content, sec.Path,
	)
}

func (b *batch) InsertRelationship(ctx context.Context, rel *models.Relationship) error {
	return b.exec(ctx, "relationship",
		`INSERT INTO relationships (source_id, target_id, type) VALUES (?, ?, ?)`,
		rel.SourceID, rel.TargetID, rel.Type,
	)
}

func (b *batch) InsertKeyword(ctx context.Context, kw *models.Keyword) error {
	term := kw.Term
	if term == "" {
		term = kw.Category
	}
	return b.exec(ctx, "keyword",
		`INSERT OR IGNORE INTO keywords (term, category) VALUES (?, ?)`,
		term, kw.Category,
	)
}

// InsertNodeCategoryScore skips zero counts; absence of a row means a zero score.
func (b *batch) InsertNodeCategoryScore(ctx context.Context, s *models.NodeCategoryScore) error {
	if s.Count <= 0 || s.Score <= 0 {
		return nil
	}
	return b.exec(ctx, "node category score",
		`INSERT INTO node_category_scores (node_id, category, count, score) VALUES (?, ?, ?, ?)`,
		s.NodeID, s.Category, s.Count, s.Score,
	)
}

func (b *batch) Commit() error {
	if b.closed {
		return storage.ErrBatchClosed
	}
	b.closed = true
	if err := b.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

func (b *batch) Rollback() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if err := b.tx.Rollback(); err != nil {
		return fmt.Errorf("failed to roll back batch: %w", err)
	}
	return nil
}

func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}
