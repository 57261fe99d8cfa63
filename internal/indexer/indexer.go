// Package indexer runs a full rebuild: load, parse and score in parallel, resolve categories,
// synthesize relationships and persist everything in one batch.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/docgraph/backend/internal/category"
	"github.com/docgraph/backend/internal/graph"
	"github.com/docgraph/backend/internal/metrics"
	"github.com/docgraph/backend/internal/relations"
	"github.com/docgraph/backend/internal/section"
	"github.com/docgraph/backend/internal/storage"
	"github.com/docgraph/backend/internal/storage/models"
	"github.com/docgraph/backend/pkg/logger"
)

var ErrIndexInProgress = errors.New("an index rebuild is already running")

type Store interface {
	storage.Index
	storage.Reader
}

type Cache interface {
	Invalidate(ctx context.Context) error
}

type Mirror interface {
	Sync(ctx context.Context, g *models.Graph) error
}

type Report struct {
	RunID         string        `json:"run_id"`
	Documents     int           `json:"documents"`
	Sections      int           `json:"sections"`
	Scores        int           `json:"scores"`
	Relationships int           `json:"relationships"`
	Skipped       []Skipped     `json:"skipped,omitempty"`
	Duration      time.Duration `json:"duration"`
}

type Indexer struct {
	source    Source
	store     Store
	vocab     *category.Vocabulary
	scorer    *category.Scorer
	synth     *relations.Synthesizer
	workers   int
	graphOpts graph.Options
	cache     Cache
	mirror    Mirror
	events    *Broadcaster

	running atomic.Bool
}

type Option func(*Indexer)

func WithWorkers(n int) Option {
	return func(ix *Indexer) { ix.workers = n }
}

func WithCache(c Cache) Option {
	return func(ix *Indexer) { ix.cache = c }
}

func WithMirror(m Mirror, opts graph.Options) Option {
	return func(ix *Indexer) {
		ix.mirror = m
		ix.graphOpts = opts
	}
}

func WithBroadcaster(b *Broadcaster) Option {
	return func(ix *Indexer) { ix.events = b }
}

func New(source Source, store Store, vocab *category.Vocabulary, synthOpts relations.Options, opts ...Option) *Indexer {
	ix := &Indexer{
		source:    source,
		store:     store,
		vocab:     vocab,
		scorer:    category.NewScorer(vocab),
		synth:     relations.NewSynthesizer(synthOpts),
		workers:   4,
		graphOpts: graph.DefaultOptions(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	if ix.workers < 1 {
		ix.workers = 1
	}
	return ix
}

func (ix *Indexer) Running() bool {
	return ix.running.Load()
}

// analysis is everything derived from one document's own text.
type analysis struct {
	doc      models.Document
	sections []models.Section
	scores   []category.NodeScore
}

// Rebuild replaces the whole index. On any persistence error the batch is rolled back and
// the previously committed index stays visible.
func (ix *Indexer) Rebuild(ctx context.Context) (*Report, error) {
	if !ix.running.CompareAndSwap(false, true) {
		return nil, ErrIndexInProgress
	}
	defer ix.running.Store(false)

	start := time.Now()
	report := &Report{RunID: uuid.NewString()}
	log := logger.GetLogger().With(zap.String("run_id", report.RunID))

	ix.publish(Event{RunID: report.RunID, Stage: StageStarted})
	log.Info("Index rebuild started")

	if err := ix.rebuild(ctx, report, log); err != nil {
		metrics.RebuildTotal.WithLabelValues("failed").Inc()
		ix.publish(Event{RunID: report.RunID, Stage: StageFailed, Error: err.Error()})
		log.Error("Index rebuild failed", zap.Error(err))
		return nil, err
	}

	report.Duration = time.Since(start)
	metrics.RebuildTotal.WithLabelValues("success").Inc()
	metrics.RebuildDuration.Observe(report.Duration.Seconds())

	ix.afterCommit(ctx, report, log)

	ix.publish(Event{
		RunID:         report.RunID,
		Stage:         StageCompleted,
		Documents:     report.Documents,
		Sections:      report.Sections,
		Relationships: report.Relationships,
	})
	log.Info("Index rebuild completed",
		zap.Int("documents", report.Documents),
		zap.Int("sections", report.Sections),
		zap.Int("relationships", report.Relationships),
		zap.Int("skipped", len(report.Skipped)),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func (ix *Indexer) rebuild(ctx context.Context, report *Report, log *zap.Logger) error {
	raw, skipped, err := ix.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load documents: %w", err)
	}
	report.Skipped = skipped
	metrics.DocumentsSkipped.Add(float64(len(skipped)))
	ix.publish(Event{RunID: report.RunID, Stage: StageLoaded, Documents: len(raw)})

	results := make([]analysis, len(raw))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)
	for i := range raw {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = ix.analyze(raw[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to analyze documents: %w", err)
	}

	var (
		docs     []models.Document
		sections []models.Section
		scores   []category.NodeScore
		docNodes []relations.DocumentNode
		secNodes []relations.SectionNode
	)
	for _, a := range results {
		docs = append(docs, a.doc)
		docNodes = append(docNodes, relations.DocumentNode{Path: a.doc.Path, Content: a.doc.Content})
		for _, s := range a.sections {
			sections = append(sections, s)
			secNodes = append(secNodes, relations.SectionNode{ID: s.ID, DocPath: s.DocPath, ParentID: s.ParentID})
		}
		scores = append(scores, a.scores...)
	}
	ix.publish(Event{RunID: report.RunID, Stage: StageAnalyzed, Documents: len(docs), Sections: len(sections)})

	resolved := category.Resolve(scores, ix.vocab)
	rels := ix.synth.Synthesize(relations.Input{
		Documents:  docNodes,
		Sections:   secNodes,
		Categories: resolved,
		Vocabulary: ix.vocab,
	})
	ix.publish(Event{RunID: report.RunID, Stage: StageSynthesized, Relationships: len(rels)})

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := ix.persist(ctx, docs, sections, scores, rels); err != nil {
		return err
	}
	log.Info("Index batch committed")
	ix.publish(Event{RunID: report.RunID, Stage: StageCommitted})

	report.Documents = len(docs)
	report.Sections = len(sections)
	report.Scores = len(scores)
	report.Relationships = len(rels)

	metrics.DocumentsIndexed.Add(float64(len(docs)))
	metrics.SectionsIndexed.Add(float64(len(sections)))
	for _, rel := range rels {
		metrics.RelationshipsCreated.WithLabelValues(rel.Type).Inc()
	}
	metrics.GraphNodes.Set(float64(len(docs) + len(sections)))
	metrics.GraphEdges.Set(float64(len(rels)))
	return nil
}

// analyze parses one document and scores the document and each of its sections. It reads only
// its argument and the immutable vocabulary.
func (ix *Indexer) analyze(raw RawDocument) analysis {
	parsed := section.Parse(raw.Path, raw.Text)

	a := analysis{
		doc: models.Document{
			Path:        raw.Path,
			Title:       parsed.Title,
			Content:     raw.Text,
			SectionPath: parsed.SectionPath(),
		},
		sections: make([]models.Section, 0, len(parsed.Sections)),
	}
	a.scores = ix.appendScores(a.scores, raw.Path, raw.Text)

	for _, s := range parsed.Sections {
		a.sections = append(a.sections, models.Section{
			ID:       s.ID,
			DocPath:  raw.Path,
			Title:    s.Title,
			Content:  s.Content,
			Level:    s.Level,
			ParentID: s.ParentID,
			Path:     s.Path(),
		})
		a.scores = ix.appendScores(a.scores, s.ID, s.Title+"\n"+s.Content)
	}
	return a
}

func (ix *Indexer) appendScores(dst []category.NodeScore, nodeID, text string) []category.NodeScore {
	matches := ix.scorer.Score(text)
	for _, name := range ix.vocab.Names() {
		m, ok := matches[name]
		if !ok {
			continue
		}
		dst = append(dst, category.NodeScore{NodeID: nodeID, Category: name, Count: m.Count, Score: m.Score})
	}
	return dst
}

func (ix *Indexer) persist(
	ctx context.Context,
	docs []models.Document,
	sections []models.Section,
	scores []category.NodeScore,
	rels []models.Relationship,
) (err error) {
	batch, err := ix.store.BeginBatch(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin batch: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := batch.Rollback(); rbErr != nil {
				logger.Error("Failed to roll back batch", zap.Error(rbErr))
			}
		}
	}()

	for _, name := range ix.vocab.Names() {
		if err = batch.InsertKeyword(ctx, &models.Keyword{Term: name, Category: name}); err != nil {
			return err
		}
	}
	for i := range docs {
		if err = batch.InsertDocument(ctx, &docs[i]); err != nil {
			return err
		}
	}
	for i := range sections {
		if err = batch.InsertSection(ctx, &sections[i]); err != nil {
			return err
		}
	}
	for _, s := range scores {
		if err = batch.InsertNodeCategoryScore(ctx, &models.NodeCategoryScore{
			NodeID:   s.NodeID,
			Category: s.Category,
			Count:    s.Count,
			Score:    s.Score,
		}); err != nil {
			return err
		}
	}
	for i := range rels {
		if err = batch.InsertRelationship(ctx, &rels[i]); err != nil {
			return err
		}
	}

	return batch.Commit()
}

// afterCommit runs the best-effort side effects of a successful rebuild.
func (ix *Indexer) afterCommit(ctx context.Context, report *Report, log *zap.Logger) {
	if ix.cache != nil {
		if err := ix.cache.Invalidate(ctx); err != nil {
			log.Warn("Failed to invalidate graph cache", zap.Error(err))
		}
	}

	if ix.mirror == nil {
		return
	}
	g, err := graph.Export(ctx, ix.store, ix.graphOpts)
	if err == nil {
		err = ix.mirror.Sync(ctx, g)
	}
	if err != nil {
		metrics.MirrorFailures.Inc()
		log.Warn("Failed to mirror graph", zap.Error(err))
	}
}

func (ix *Indexer) publish(e Event) {
	if ix.events == nil {
		return
	}
	e.Time = time.Now().UTC()
	ix.events.Publish(e)
}
