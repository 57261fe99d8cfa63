package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/docgraph/backend/pkg/logger"
)

// RawDocument is one source file as handed to the indexer.
type RawDocument struct {
	Path string
	Text string
}

// Skipped records a document that could not be read. It never fails a run.
type Skipped struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

type Source interface {
	Load(ctx context.Context) ([]RawDocument, []Skipped, error)
}

// DirSource walks Dir recursively and returns every file ending in Extension, keyed by its
// slash-separated path relative to Dir. Unreadable entries below Dir are skipped.
type DirSource struct {
	Dir       string
	Extension string

	fsys fs.FS
}

func NewDirSource(dir, extension string) *DirSource {
	if extension == "" {
		extension = ".md"
	}
	return &DirSource{Dir: dir, Extension: extension, fsys: os.DirFS(dir)}
}

func (s *DirSource) filesystem() fs.FS {
	if s.fsys != nil {
		return s.fsys
	}
	return os.DirFS(s.Dir)
}

func (s *DirSource) Load(ctx context.Context) ([]RawDocument, []Skipped, error) {
	fsys := s.filesystem()

	var (
		paths   []string
		docs    []RawDocument
		skipped []Skipped
	)
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == "." {
				return err
			}
			logger.Warn("Skipping unreadable path", zap.String("path", path), zap.Error(err))
			skipped = append(skipped, Skipped{Path: path, Reason: err.Error()})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), s.Extension) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to walk %s: %w", s.Dir, err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			logger.Warn("Skipping unreadable document", zap.String("path", path), zap.Error(err))
			skipped = append(skipped, Skipped{Path: path, Reason: err.Error()})
			continue
		}
		if !utf8.Valid(data) {
			logger.Warn("Skipping document with invalid UTF-8", zap.String("path", path))
			skipped = append(skipped, Skipped{Path: path, Reason: "invalid UTF-8"})
			continue
		}
		docs = append(docs, RawDocument{Path: path, Text: string(data)})
	}

	return docs, skipped, nil
}
