package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	path TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	section_path TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sections (
	id TEXT PRIMARY KEY,
	doc_path TEXT NOT NULL,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	level INTEGER NOT NULL CHECK (level BETWEEN 1 AND 6),
	parent_id TEXT,
	path TEXT NOT NULL,
	FOREIGN KEY (doc_path) REFERENCES documents(path) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_sections_doc ON sections(doc_path);
CREATE INDEX IF NOT EXISTS idx_sections_parent ON sections(parent_id);

CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts4(
	path,
	title,
	body
);

CREATE VIRTUAL TABLE IF NOT EXISTS sections_fts USING fts4(
	section_id,
	doc_path,
	title,
	body,
	breadcrumb,
	notindexed=section_id,
	notindexed=doc_path
);

CREATE TABLE IF NOT EXISTS relationships (
	id INTEGER PRIMARY KEY,
	source_id TEXT NOT NULL,
	target_id TEXT NOT NULL,
	type TEXT NOT NULL CHECK (type IN ('link', 'contains', 'parent-child', 'category'))
);
CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(source_id);
CREATE INDEX IF NOT EXISTS idx_relationships_target ON relationships(target_id);
CREATE INDEX IF NOT EXISTS idx_relationships_type ON relationships(type);

CREATE TABLE IF NOT EXISTS keywords (
	id INTEGER PRIMARY KEY,
	term TEXT NOT NULL UNIQUE,
	category TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS node_category_scores (
	node_id TEXT NOT NULL,
	category TEXT NOT NULL,
	count INTEGER NOT NULL CHECK (count > 0),
	score REAL NOT NULL CHECK (score > 0 AND score <= 1),
	PRIMARY KEY (node_id, category),
	FOREIGN KEY (category) REFERENCES keywords(category)
);
CREATE INDEX IF NOT EXISTS idx_node_category_scores_category ON node_category_scores(category);

CREATE VIEW IF NOT EXISTS node_categories AS
	SELECT s.node_id AS node_id,
	       s.category AS category,
	       SUM(s.count) AS count,
	       MAX(s.score) AS score,
	       k.id AS keyword_id
	FROM node_category_scores s
	JOIN keywords k ON k.category = s.category
	GROUP BY s.node_id, s.category;
`
