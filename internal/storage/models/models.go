package models

// Relationship types.
const (
	RelLink        = "link"
	RelContains    = "contains"
	RelParentChild = "parent-child"
	RelCategory    = "category"
)

// Node kinds used by the graph export.
const (
	NodeDocument = "document"
	NodeSection  = "section"
)

type Document struct {
	Path        string
	Title       string
	Content     string
	SectionPath string
}

type Section struct {
	ID       string
	DocPath  string
	Title    string
	Content  string
	Level    int
	ParentID *string
	Path     string
}

type Relationship struct {
	SourceID string
	TargetID string
	Type     string
}

// Keyword is one catalog row; the category name doubles as its term.
type Keyword struct {
	ID       int64
	Term     string
	Category string
}

type NodeCategoryScore struct {
	NodeID   string
	Category string
	Count    int
	Score    float64
}

// NodeCategory is one row of the aggregated node_categories view.
type NodeCategory struct {
	NodeID   string
	Category string
	Count    int
	Score    float64
}

type SearchHit struct {
	Kind       string `json:"kind"`
	ID         string `json:"id"`
	DocPath    string `json:"doc_path"`
	Title      string `json:"title"`
	Breadcrumb string `json:"breadcrumb,omitempty"`
	Snippet    string `json:"snippet"`
}

type GraphNode struct {
	ID         string   `json:"id"`
	Label      string   `json:"label"`
	Kind       string   `json:"kind"`
	Size       int      `json:"size"`
	Category   string   `json:"category"`
	Categories []string `json:"categories,omitempty"`
	Score      float64  `json:"score"`
}

type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}
