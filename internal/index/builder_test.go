package index_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catseek/catseek/internal/catalogtest"
	"github.com/catseek/catseek/internal/index"
	"github.com/catseek/catseek/internal/source"
)

func build(t *testing.T, cat *catalogtest.Catalog, cfg index.Config) *index.Generation {
	t.Helper()
	store, err := source.Open(cat.Path())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	g, err := index.NewBuilder(store, cfg).Build(context.Background(), 1)
	require.NoError(t, err)
	t.Cleanup(g.Retire)
	return g
}

func fullPath(t *testing.T, g *index.Generation, id int64) sql.NullString {
	t.Helper()
	var p sql.NullString
	err := g.DB().QueryRow(`SELECT full_path FROM entries WHERE id = ?`, id).Scan(&p)
	require.NoError(t, err)
	return p
}

func entrySize(t *testing.T, g *index.Generation, id int64) sql.NullInt64 {
	t.Helper()
	var s sql.NullInt64
	err := g.DB().QueryRow(`SELECT size FROM entries WHERE id = ?`, id).Scan(&s)
	require.NoError(t, err)
	return s
}

func countWhere(t *testing.T, g *index.Generation, where string, args ...interface{}) int {
	t.Helper()
	var n int
	err := g.DB().QueryRow(`SELECT COUNT(*) FROM entries WHERE `+where, args...).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestBuildFullPaths(t *testing.T) {
	cat := catalogtest.New(t)
	vol := cat.AddVolume("Media", "media", "/volume1")
	root := cat.AddFolder("root", vol)
	file := cat.AddFile("config", root, 10)

	g := build(t, cat, index.Config{})

	// The volume's own name never appears in paths.
	p := fullPath(t, g, file)
	require.True(t, p.Valid)
	assert.Equal(t, "root/config", p.String)

	p = fullPath(t, g, root)
	require.True(t, p.Valid)
	assert.Equal(t, "root", p.String)

	var label, volumePath sql.NullString
	err := g.DB().QueryRow(`SELECT volume_label, volume_path FROM entries WHERE id = ?`, file).
		Scan(&label, &volumePath)
	require.NoError(t, err)
	assert.Equal(t, "media", label.String)
	assert.Equal(t, "/volume1", volumePath.String)
}

func TestVolumeEntry(t *testing.T) {
	cat := catalogtest.New(t)
	vol := cat.AddVolume("Media", "media", "/volume1")

	g := build(t, cat, index.Config{})

	var typ string
	var size sql.NullInt64
	var path, label sql.NullString
	err := g.DB().QueryRow(`SELECT type, size, full_path, volume_label FROM entries WHERE id = ?`, vol).
		Scan(&typ, &size, &path, &label)
	require.NoError(t, err)

	assert.Equal(t, "volume", typ)
	assert.False(t, size.Valid)
	assert.False(t, path.Valid)
	assert.Equal(t, "media", label.String)
}

func TestFileMetaNameOverride(t *testing.T) {
	cat := catalogtest.New(t)
	vol := cat.AddVolume("Media", "", "")
	dir := cat.AddFolder("docs", vol)
	file := cat.AddFile("placeholder", dir, 10)
	cat.SetFileName(file, "report.pdf")

	g := build(t, cat, index.Config{})

	var name string
	err := g.DB().QueryRow(`SELECT name FROM entries WHERE id = ?`, file).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", name)

	p := fullPath(t, g, file)
	require.True(t, p.Valid)
	assert.Equal(t, "docs/report.pdf", p.String)
}

func TestFolderSizes(t *testing.T) {
	cat := catalogtest.New(t)
	vol := cat.AddVolume("Media", "", "")
	a := cat.AddFolder("a", vol)
	b := cat.AddFolder("b", a)
	empty := cat.AddFolder("empty", vol)
	cat.AddFile("f1", b, 100)
	cat.AddFile("f2", a, 50)
	cat.AddFile("f3", vol, 7)

	g := build(t, cat, index.Config{})

	// Recursive sum of descendant file sizes per folder; 0 when none.
	assert.Equal(t, int64(100), entrySize(t, g, b).Int64)
	assert.Equal(t, int64(150), entrySize(t, g, a).Int64)
	assert.Equal(t, int64(0), entrySize(t, g, empty).Int64)

	stats := g.Stats()
	assert.Equal(t, int64(157), stats.TotalSizeBytes)
	assert.Equal(t, 3, stats.TotalFiles)
	assert.Equal(t, 3, stats.TotalFolders)
	assert.Equal(t, 1, stats.TotalVolumes)
	assert.Equal(t, 7, stats.TotalItems)
}

func TestFolderSizesIgnoreExcludedFiles(t *testing.T) {
	cat := catalogtest.New(t)
	vol := cat.AddVolume("Media", "", "")
	dir := cat.AddFolder("cache", vol)
	cat.AddFile("keep.log", dir, 100)
	cat.AddFile("drop.tmp", dir, 999)

	g := build(t, cat, index.Config{ExcludePatterns: []string{"*.tmp"}})

	// Sizes reflect only files present in the same generation.
	assert.Equal(t, int64(100), entrySize(t, g, dir).Int64)
}

func TestFilenameExclude(t *testing.T) {
	cat := catalogtest.New(t)
	vol := cat.AddVolume("Media", "", "")
	cat.AddFile("notes.txt", vol, 10)
	cat.AddFile("notes.log", vol, 10)

	g := build(t, cat, index.Config{ExcludePatterns: []string{"*.txt"}})

	assert.Equal(t, 0, countWhere(t, g, `name LIKE '%.txt'`))
	assert.Equal(t, 1, countWhere(t, g, `name LIKE '%.log'`))
}

func TestDirectoryExclude(t *testing.T) {
	cat := catalogtest.New(t)
	vol := cat.AddVolume("Media", "", "")
	ea := cat.AddFolder("@eaDir", vol)
	thumb := cat.AddFile("thumb.jpg", ea, 10)
	nested := cat.AddFolder("@eaDir", cat.AddFolder("photos", vol))
	nestedSub := cat.AddFolder("cache", nested)
	nestedFile := cat.AddFile("preview.jpg", nestedSub, 10)
	docs := cat.AddFolder("docs", vol)
	keep := cat.AddFile("keep.pdf", docs, 10)

	g := build(t, cat, index.Config{ExcludePatterns: []string{"@eaDir/"}})

	// The whole subtree goes, including descendants of a nested match.
	for _, gone := range []int64{ea, thumb, nested, nestedSub, nestedFile} {
		assert.Equal(t, 0, countWhere(t, g, `id = ?`, gone), "entry %d should be excluded", gone)
	}
	assert.Equal(t, 1, countWhere(t, g, `id = ?`, keep))
	assert.Equal(t, 1, countWhere(t, g, `id = ?`, docs))
}

func TestInvalidExcludeSkipped(t *testing.T) {
	cat := catalogtest.New(t)
	vol := cat.AddVolume("Media", "", "")
	cat.AddFile("a.txt", vol, 10)
	cat.AddFile("b.log", vol, 10)

	// The malformed pattern is skipped; the valid one still applies.
	g := build(t, cat, index.Config{ExcludePatterns: []string{"a/b/c", "*.txt"}})

	assert.Equal(t, 0, countWhere(t, g, `name LIKE '%.txt'`))
	assert.Equal(t, 1, countWhere(t, g, `name LIKE '%.log'`))
}

func TestAmbiguousAncestryPrefersVolume(t *testing.T) {
	cat := catalogtest.New(t)
	orphan := cat.AddFolder("orphan", 0)
	vol := cat.AddVolume("Media", "media", "")
	homed := cat.AddFolder("homed", vol)
	file := cat.AddFile("shared", orphan, 10)
	cat.AddParent(file, homed)

	g := build(t, cat, index.Config{})

	// A chain that reaches a volume wins over one that dead-ends at root.
	p := fullPath(t, g, file)
	require.True(t, p.Valid)
	assert.Equal(t, "homed/shared", p.String)

	var label sql.NullString
	err := g.DB().QueryRow(`SELECT volume_label FROM entries WHERE id = ?`, file).Scan(&label)
	require.NoError(t, err)
	assert.Equal(t, "media", label.String)
}

func TestAmbiguousAncestryPrefersDeepest(t *testing.T) {
	cat := catalogtest.New(t)
	shallow := cat.AddVolume("V1", "v1", "")
	deep := cat.AddVolume("V2", "v2", "")
	d1 := cat.AddFolder("d1", deep)
	d2 := cat.AddFolder("d2", d1)
	file := cat.AddFile("shared", shallow, 10)
	cat.AddParent(file, d2)

	g := build(t, cat, index.Config{})

	p := fullPath(t, g, file)
	require.True(t, p.Valid)
	assert.Equal(t, "d1/d2/shared", p.String)

	var label sql.NullString
	err := g.DB().QueryRow(`SELECT volume_label FROM entries WHERE id = ?`, file).Scan(&label)
	require.NoError(t, err)
	assert.Equal(t, "v2", label.String)
}

func TestMultiParentLatticeBuildsQuickly(t *testing.T) {
	cat := catalogtest.New(t)
	vol := cat.AddVolume("Media", "media", "")

	// Two parent edges per level: naive chain enumeration would explore
	// 2^34 chains, memoized resolution touches each item once.
	prev := cat.AddFolder("d0", vol)
	for i := 1; i < 34; i++ {
		f := cat.AddFolder(fmt.Sprintf("d%d", i), prev)
		cat.AddParent(f, prev)
		prev = f
	}
	file := cat.AddFile("leaf", prev, 10)
	cat.AddParent(file, prev)

	g := build(t, cat, index.Config{})

	p := fullPath(t, g, file)
	require.True(t, p.Valid)
	segments := strings.Split(p.String, "/")
	require.Len(t, segments, 35)
	assert.Equal(t, "d0", segments[0])
	assert.Equal(t, "leaf", segments[34])

	var label sql.NullString
	err := g.DB().QueryRow(`SELECT volume_label FROM entries WHERE id = ?`, file).Scan(&label)
	require.NoError(t, err)
	assert.Equal(t, "media", label.String)
}

func TestCyclicParentLinksDoNotHang(t *testing.T) {
	cat := catalogtest.New(t)
	a := cat.AddFolder("a", 0)
	b := cat.AddFolder("b", a)
	cat.Exec(`UPDATE parent_links SET parent_id = ? WHERE item_id = ?`, b, a)
	file := cat.AddFile("trapped", a, 10)

	g := build(t, cat, index.Config{})

	// The cycle guard terminates the walk; the entry lands with no volume.
	p := fullPath(t, g, file)
	require.True(t, p.Valid)
	assert.Equal(t, "b/a/trapped", p.String)

	var label sql.NullString
	err := g.DB().QueryRow(`SELECT volume_label FROM entries WHERE id = ?`, file).Scan(&label)
	require.NoError(t, err)
	assert.False(t, label.Valid)
}

func TestRootMarkerStopsWalk(t *testing.T) {
	cat := catalogtest.New(t)
	rootItem := cat.AddItem("system root", source.TypeRoot, 0)
	dir := cat.AddFolder("top", rootItem)
	file := cat.AddFile("file", dir, 10)

	g := build(t, cat, index.Config{})

	// Root-marker items terminate the walk and never appear in paths.
	p := fullPath(t, g, file)
	require.True(t, p.Valid)
	assert.Equal(t, "top/file", p.String)
}
