package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/docgraph/backend/internal/storage"
	"github.com/docgraph/backend/internal/storage/models"
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// reader runs the read queries against either the pool or a pinned snapshot connection.
type reader struct {
	q querier
}

type snapshot struct {
	reader
	conn *sql.Conn
}

// Snapshot pins one connection inside a deferred read transaction. Under WAL every read made
// through it sees the index as of its first read, whatever batches commit meanwhile.
// BeginTx is not used because the DSN makes every driver transaction take the write lock.
func (c *Client) Snapshot(ctx context.Context) (storage.Snapshot, error) {
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "BEGIN DEFERRED"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to begin snapshot: %w", err)
	}
	return &snapshot{reader: reader{q: conn}, conn: conn}, nil
}

func (s *snapshot) Close() error {
	_, err := s.conn.ExecContext(context.Background(), "ROLLBACK")
	if cerr := s.conn.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	return nil
}

// Search runs a full-text match over documents and sections. Every whitespace-separated
// token must match; tokens are quoted so user input never reaches the MATCH grammar. Document
// hits come before section hits and limit caps the merged list.
func (r reader) Search(ctx context.Context, query string, limit int) ([]models.SearchHit, error) {
	match := matchExpression(query)
	if match == "" {
		return nil, storage.ErrEmptyQuery
	}
	if limit <= 0 {
		limit = 20
	}

	hits := make([]models.SearchHit, 0)

	docRows, err := r.q.QueryContext(ctx, `
		SELECT path, title, snippet(documents_fts, '[', ']', '...', -1, 12)
		FROM documents_fts
		WHERE documents_fts MATCH ?
		ORDER BY path
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	defer docRows.Close()

	for docRows.Next() {
		h := models.SearchHit{Kind: models.NodeDocument}
		if err := docRows.Scan(&h.ID, &h.Title, &h.Snippet); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		h.DocPath = h.ID
		hits = append(hits, h)
	}
	if err := docRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}

	secRows, err := r.q.QueryContext(ctx, `
		SELECT section_id, doc_path, title, breadcrumb, snippet(sections_fts, '[', ']', '...', -1, 12)
		FROM sections_fts
		WHERE sections_fts MATCH ?
		ORDER BY section_id
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search sections: %w", err)
	}
	defer secRows.Close()

	for secRows.Next() {
		h := models.SearchHit{Kind: models.NodeSection}
		if err := secRows.Scan(&h.ID, &h.DocPath, &h.Title, &h.Breadcrumb, &h.Snippet); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		hits = append(hits, h)
	}
	if err := secRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sections: %w", err)
	}

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func matchExpression(query string) string {
	var terms []string
	for _, f := range strings.Fields(query) {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " ")
}

func (r reader) GetDocument(ctx context.Context, path string) (*models.Document, error) {
	var doc models.Document
	err := r.q.QueryRowContext(ctx,
		`SELECT path, title, content, section_path FROM documents WHERE path = ?`, path,
	).Scan(&doc.Path, &doc.Title, &doc.Content, &doc.SectionPath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

func (r reader) GetSection(ctx context.Context, id string) (*models.Section, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT id, doc_path, title, content, level, parent_id, path FROM sections WHERE id = ?`, id)

	sec, err := scanSection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get section: %w", err)
	}
	return sec, nil
}

func (r reader) ListDocuments(ctx context.Context) ([]models.Document, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT path, title, content, section_path FROM documents ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.Path, &d.Title, &d.Content, &d.SectionPath); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// ListSections returns sections grouped by document in document order.
func (r reader) ListSections(ctx context.Context) ([]models.Section, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, doc_path, title, content, level, parent_id, path FROM sections ORDER BY doc_path, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	defer rows.Close()

	var sections []models.Section
	for rows.Next() {
		sec, err := scanSection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		sections = append(sections, *sec)
	}
	return sections, rows.Err()
}

func (r reader) ListRelationships(ctx context.Context) ([]models.Relationship, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT source_id, target_id, type FROM relationships ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	defer rows.Close()

	var rels []models.Relationship
	for rows.Next() {
		var r models.Relationship
		if err := rows.Scan(&r.SourceID, &r.TargetID, &r.Type); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

func (r reader) ListKeywords(ctx context.Context) ([]models.Keyword, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, term, category FROM keywords ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list keywords: %w", err)
	}
	defer rows.Close()

	var keywords []models.Keyword
	for rows.Next() {
		var k models.Keyword
		if err := rows.Scan(&k.ID, &k.Term, &k.Category); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		keywords = append(keywords, k)
	}
	return keywords, rows.Err()
}

func (r reader) NodeCategories(ctx context.Context) ([]models.NodeCategory, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT node_id, category, count, score
		FROM node_categories
		ORDER BY node_id, count DESC, keyword_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query node categories: %w", err)
	}
	defer rows.Close()

	var out []models.NodeCategory
	for rows.Next() {
		var nc models.NodeCategory
		if err := rows.Scan(&nc.NodeID, &nc.Category, &nc.Count, &nc.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, nc)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSection(row rowScanner) (*models.Section, error) {
	var (
		sec    models.Section
		parent sql.NullString
	)
	if err := row.Scan(&sec.ID, &sec.DocPath, &sec.Title, &sec.Content, &sec.Level, &parent, &sec.Path); err != nil {
		return nil, err
	}
	if parent.Valid {
		p := parent.String
		sec.ParentID = &p
	}
	return &sec, nil
}
