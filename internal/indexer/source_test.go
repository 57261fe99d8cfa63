package indexer

import (
	"context"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirSource_Load(t *testing.T) {
	dir := writeDocs(t, map[string]string{
		"b.md":       "# B",
		"a.md":       "# A",
		"sub/c.md":   "# C",
		"readme.txt": "nope",
		"sub/bad.md": string([]byte{0xc3, 0x28}),
	})

	docs, skipped, err := NewDirSource(dir, ".md").Load(context.Background())
	require.NoError(t, err)

	paths := make([]string, len(docs))
	for i, d := range docs {
		paths[i] = d.Path
	}
	assert.Equal(t, []string{"a.md", "b.md", "sub/c.md"}, paths)
	assert.Equal(t, "# A", docs[0].Text)
	assert.Equal(t, []Skipped{{Path: "sub/bad.md", Reason: "invalid UTF-8"}}, skipped)
}

func TestDirSource_MissingDir(t *testing.T) {
	_, _, err := NewDirSource("/does/not/exist", ".md").Load(context.Background())
	assert.Error(t, err)
}

type lockedDirFS struct {
	fstest.MapFS
	locked string
}

func (f lockedDirFS) ReadDir(name string) ([]fs.DirEntry, error) {
	if name == f.locked {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
	}
	return f.MapFS.ReadDir(name)
}

func TestDirSource_SkipsUnreadableDirectory(t *testing.T) {
	src := &DirSource{Dir: "docs", Extension: ".md", fsys: lockedDirFS{
		MapFS: fstest.MapFS{
			"a.md":          {Data: []byte("# A")},
			"locked/b.md":   {Data: []byte("# B")},
			"open/c.md":     {Data: []byte("# C")},
			"open/skip.txt": {Data: []byte("nope")},
		},
		locked: "locked",
	}}

	docs, skipped, err := src.Load(context.Background())
	require.NoError(t, err)

	paths := make([]string, len(docs))
	for i, d := range docs {
		paths[i] = d.Path
	}
	assert.Equal(t, []string{"a.md", "open/c.md"}, paths)
	require.Len(t, skipped, 1)
	assert.Equal(t, "locked", skipped[0].Path)
	assert.Contains(t, skipped[0].Reason, "permission denied")
}

func TestDirSource_UnreadableRootFails(t *testing.T) {
	src := &DirSource{Dir: "docs", Extension: ".md", fsys: lockedDirFS{
		MapFS:  fstest.MapFS{"a.md": {Data: []byte("# A")}},
		locked: ".",
	}}

	_, _, err := src.Load(context.Background())
	assert.ErrorIs(t, err, fs.ErrPermission)
}

func TestBroadcaster(t *testing.T) {
	b := NewBroadcaster()
	ch, unsubscribe := b.Subscribe(1)

	b.Publish(Event{Stage: StageStarted})
	b.Publish(Event{Stage: StageLoaded})

	e := <-ch
	assert.Equal(t, StageStarted, e.Stage)
	assert.Len(t, ch, 0)

	unsubscribe()
	unsubscribe()
	_, open := <-ch
	assert.False(t, open)
	b.Publish(Event{Stage: StageCompleted})
}
