package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docgraph/backend/internal/category"
	"github.com/docgraph/backend/internal/graph"
	"github.com/docgraph/backend/internal/indexer"
	"github.com/docgraph/backend/internal/middleware/validation"
	"github.com/docgraph/backend/internal/relations"
	"github.com/docgraph/backend/internal/storage"
	"github.com/docgraph/backend/internal/storage/models"
	"github.com/docgraph/backend/internal/storage/sqlite"
)

type testEnv struct {
	app     *fiber.App
	docs    string
	store   *sqlite.Client
	indexer *indexer.Indexer
	cache   *memoryCache
}

type searchEntry struct {
	gen   int64
	query string
}

// memoryCache mirrors the generation keying of the redis cache.
type memoryCache struct {
	mu       sync.Mutex
	gen      int64
	graphs   map[int64]*models.Graph
	search   map[searchEntry][]models.SearchHit
	graphHit int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{graphs: map[int64]*models.Graph{}, search: map[searchEntry][]models.SearchHit{}}
}

func (m *memoryCache) Generation(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen, nil
}

func (m *memoryCache) GetGraph(_ context.Context, gen int64) (*models.Graph, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.graphs[gen]
	if ok {
		m.graphHit++
	}
	return g, ok, nil
}

func (m *memoryCache) SetGraph(_ context.Context, gen int64, g *models.Graph) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graphs[gen] = g
	return nil
}

func (m *memoryCache) GetSearch(_ context.Context, gen int64, q string, _ int) ([]models.SearchHit, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hits, ok := m.search[searchEntry{gen, q}]
	return hits, ok, nil
}

func (m *memoryCache) SetSearch(_ context.Context, gen int64, q string, _ int, hits []models.SearchHit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.search[searchEntry{gen, q}] = hits
	return nil
}

func (m *memoryCache) Invalidate(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	return nil
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	docs := t.TempDir()
	files := map[string]string{
		"guide.md":      "# Guide\nUsers configure the webhook.\n## Setup\nRun the installer.\nSee [API](api.md).\n",
		"api.md":        "# API\nWebhook payloads carry data.\n",
		"nested/faq.md": "# FAQ\nAsk the api team.\n",
	}
	for name, content := range files {
		path := filepath.Join(docs, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	store, err := sqlite.NewClient(filepath.Join(t.TempDir(), "index.db"), 1000)
	require.NoError(t, err)
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { store.Close() })

	cache := newMemoryCache()
	ix := indexer.New(indexer.NewDirSource(docs, ".md"), store, category.DefaultVocabulary(), relations.DefaultOptions(),
		indexer.WithCache(cache))

	app := fiber.New()
	graphHandler := NewGraphHandler(store, cache, graph.DefaultOptions())
	documentHandler := NewDocumentHandler(store)
	indexHandler := NewIndexHandler(ix)

	api := app.Group("/api/v1")
	api.Get("/graph", graphHandler.GetGraph)
	api.Get("/search", validation.SearchQuery(validation.Config{}), graphHandler.Search)
	api.Get("/documents", documentHandler.ListDocuments)
	api.Get("/documents/*", documentHandler.GetDocument)
	api.Get("/sections/:id", documentHandler.GetSection)
	api.Post("/index", indexHandler.Rebuild)
	api.Get("/index", indexHandler.Status)

	return &testEnv{app: app, docs: docs, store: store, indexer: ix, cache: cache}
}

func (e *testEnv) do(t *testing.T, method, target string, out any) int {
	t.Helper()
	resp, err := e.app.Test(httptest.NewRequest(method, target, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, out), string(body))
	}
	return resp.StatusCode
}

func TestIndexThenRead(t *testing.T) {
	env := newTestEnv(t)

	var report indexer.Report
	require.Equal(t, fiber.StatusOK, env.do(t, "POST", "/api/v1/index", &report))
	assert.Equal(t, 3, report.Documents)
	assert.Equal(t, 4, report.Sections)

	var g models.Graph
	require.Equal(t, fiber.StatusOK, env.do(t, "GET", "/api/v1/graph", &g))
	assert.Len(t, g.Nodes, 7)
	assert.Len(t, g.Edges, report.Relationships)
	assert.Equal(t, "api.md", g.Nodes[0].ID)
	assert.Equal(t, "API", g.Nodes[0].Label)

	require.Equal(t, fiber.StatusOK, env.do(t, "GET", "/api/v1/graph", &g))
	assert.Equal(t, 1, env.cache.graphHit)

	var doc map[string]any
	require.Equal(t, fiber.StatusOK, env.do(t, "GET", "/api/v1/documents/nested/faq.md", &doc))
	assert.Equal(t, "FAQ", doc["title"])

	var sec map[string]any
	require.Equal(t, fiber.StatusOK, env.do(t, "GET", "/api/v1/sections/guide.md%23setup", &sec))
	assert.Equal(t, "Guide > Setup", sec["path"])
	assert.Equal(t, "guide.md#guide", sec["parent_id"])

	var list struct {
		Documents []map[string]string `json:"documents"`
	}
	require.Equal(t, fiber.StatusOK, env.do(t, "GET", "/api/v1/documents", &list))
	assert.Len(t, list.Documents, 3)
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.indexer.Rebuild(context.Background())
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusNotFound, env.do(t, "GET", "/api/v1/documents/missing.md", nil))
	assert.Equal(t, fiber.StatusNotFound, env.do(t, "GET", "/api/v1/sections/guide.md%23nope", nil))
}

func TestSearchEndpoint(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.indexer.Rebuild(context.Background())
	require.NoError(t, err)

	var resp struct {
		Query   string             `json:"query"`
		Results []models.SearchHit `json:"results"`
	}
	require.Equal(t, fiber.StatusOK, env.do(t, "GET", "/api/v1/search?q=webhook", &resp))
	assert.Equal(t, "webhook", resp.Query)
	assert.NotEmpty(t, resp.Results)
	assert.Contains(t, env.cache.search, searchEntry{env.cache.gen, "webhook"})

	require.Equal(t, fiber.StatusOK, env.do(t, "GET", "/api/v1/search?q=zzzunmatched", &resp))
	assert.Empty(t, resp.Results)

	assert.Equal(t, fiber.StatusBadRequest, env.do(t, "GET", "/api/v1/search", nil))
}

// rebuildingReader commits a rebuild right after its first full read of node categories,
// which is the last read of an export.
type rebuildingReader struct {
	storage.Reader
	once    sync.Once
	rebuild func()
}

func (r *rebuildingReader) NodeCategories(ctx context.Context) ([]models.NodeCategory, error) {
	cats, err := r.Reader.NodeCategories(ctx)
	r.once.Do(r.rebuild)
	return cats, err
}

func TestGraphCache_RebuildDuringExport(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.indexer.Rebuild(ctx)
	require.NoError(t, err)

	racing := &rebuildingReader{Reader: env.store, rebuild: func() {
		assert.NoError(t, os.WriteFile(filepath.Join(env.docs, "extra.md"), []byte("# Extra\nMore data.\n"), 0o644))
		_, err := env.indexer.Rebuild(ctx)
		assert.NoError(t, err)
	}}
	app := fiber.New()
	app.Get("/graph", NewGraphHandler(racing, env.cache, graph.DefaultOptions()).GetGraph)

	resp, err := app.Test(httptest.NewRequest("GET", "/graph", nil), -1)
	require.NoError(t, err)
	var old models.Graph
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&old))
	resp.Body.Close()
	assert.Len(t, old.Nodes, 7)

	var fresh models.Graph
	require.Equal(t, fiber.StatusOK, env.do(t, "GET", "/api/v1/graph", &fresh))
	assert.Len(t, fresh.Nodes, 9)
	assert.Equal(t, 0, env.cache.graphHit)
}

func TestIndexStatus(t *testing.T) {
	env := newTestEnv(t)
	var status map[string]bool
	require.Equal(t, fiber.StatusOK, env.do(t, "GET", "/api/v1/index", &status))
	assert.False(t, status["running"])
}

type busyRebuilder struct{}

func (busyRebuilder) Rebuild(context.Context) (*indexer.Report, error) {
	return nil, indexer.ErrIndexInProgress
}

func (busyRebuilder) Running() bool { return true }

func TestRebuildConflict(t *testing.T) {
	app := fiber.New()
	app.Post("/index", NewIndexHandler(busyRebuilder{}).Rebuild)

	resp, err := app.Test(httptest.NewRequest("POST", "/index", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestProgressUpgradeRequired(t *testing.T) {
	app := fiber.New()
	h := NewProgressHandler(indexer.NewBroadcaster())
	app.Get("/stream", h.Upgrade)

	resp, err := app.Test(httptest.NewRequest("GET", "/stream", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}
