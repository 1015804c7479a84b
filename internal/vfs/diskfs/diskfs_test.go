package diskfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemimi2525-star/super-platform-sub003/internal/vfs"
)

func newTestFS(t *testing.T) *FS {
	t.Helper()
	fs, err := New(vfs.SchemeUser, t.TempDir())
	require.NoError(t, err)
	return fs
}

func TestWriteReadSurvivesRemount(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	p := vfs.MustParse("user://documents/notes.txt")

	first, err := New(vfs.SchemeUser, root)
	require.NoError(t, err)
	require.NoError(t, first.Write(ctx, p, []byte("remember me")))

	// A fresh mount over the same root sees the data: durability is the
	// whole point of this backend.
	second, err := New(vfs.SchemeUser, root)
	require.NoError(t, err)
	got, err := second.Read(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, []byte("remember me"), got)
}

func TestWriteIsAtomicOnDisk(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()
	p := vfs.MustParse("user://a.txt")

	require.NoError(t, fs.Write(ctx, p, []byte("one")))
	require.NoError(t, fs.Write(ctx, p, []byte("two")))

	// No temp artifacts survive a completed write.
	children, err := os.ReadDir(fs.Root())
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "a.txt", children[0].Name())
}

func TestLazyParentMaterialization(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	require.NoError(t, fs.Write(ctx, vfs.MustParse("user://deep/nested/tree/file.txt"), []byte("x")))

	info, err := os.Stat(filepath.Join(fs.Root(), "deep", "nested", "tree"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestStatAndListMetadata(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	require.NoError(t, fs.Write(ctx, vfs.MustParse("user://docs/readme.md"), []byte("# hi\n")))
	require.NoError(t, fs.Mkdir(ctx, vfs.MustParse("user://docs/img")))

	entry, err := fs.Stat(ctx, vfs.MustParse("user://docs/readme.md"))
	require.NoError(t, err)
	assert.Equal(t, vfs.KindFile, entry.Kind)
	assert.Equal(t, int64(5), entry.Size)
	assert.NotEmpty(t, entry.MIME)

	entries, err := fs.List(ctx, vfs.MustParse("user://docs"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Sorted by name: img, readme.md
	assert.Equal(t, "img", entries[0].Name)
	assert.True(t, entries[0].IsDir())
	assert.Equal(t, "readme.md", entries[1].Name)
}

func TestErrorMapping(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	_, err := fs.Read(ctx, vfs.MustParse("user://absent.txt"))
	assert.Equal(t, vfs.CodeNotFound, vfs.CodeOf(err))

	require.NoError(t, fs.Mkdir(ctx, vfs.MustParse("user://dir")))
	err = fs.Mkdir(ctx, vfs.MustParse("user://dir"))
	assert.Equal(t, vfs.CodeAlreadyExists, vfs.CodeOf(err))

	_, err = fs.Read(ctx, vfs.MustParse("user://dir"))
	assert.Equal(t, vfs.CodeInvalidPath, vfs.CodeOf(err))

	err = fs.Delete(ctx, vfs.MustParse("user://absent"))
	assert.Equal(t, vfs.CodeNotFound, vfs.CodeOf(err))
}

func TestRenameAndMove(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	require.NoError(t, fs.Write(ctx, vfs.MustParse("user://inbox/a.txt"), []byte("a")))

	// Rename must not change directories.
	err := fs.Rename(ctx, vfs.MustParse("user://inbox/a.txt"), vfs.MustParse("user://outbox/a.txt"))
	assert.Equal(t, vfs.CodeInvalidPath, vfs.CodeOf(err))

	require.NoError(t, fs.Rename(ctx, vfs.MustParse("user://inbox/a.txt"), vfs.MustParse("user://inbox/b.txt")))
	require.NoError(t, fs.Move(ctx, vfs.MustParse("user://inbox/b.txt"), vfs.MustParse("user://archive/b.txt")))

	got, err := fs.Read(ctx, vfs.MustParse("user://archive/b.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), got)
}

func TestWipeKeepsMountUsable(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	require.NoError(t, fs.Write(ctx, vfs.MustParse("user://x.txt"), []byte("x")))
	require.NoError(t, fs.Write(ctx, vfs.MustParse("user://dir/y.txt"), []byte("y")))

	// x.txt + dir + y.txt
	removed, err := fs.Wipe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	ok, err := fs.Exists(ctx, vfs.MustParse("user://x.txt"))
	require.NoError(t, err)
	assert.False(t, ok)

	// Still writable after the wipe.
	require.NoError(t, fs.Write(ctx, vfs.MustParse("user://fresh.txt"), []byte("f")))
}

func TestUsage(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	require.NoError(t, fs.Write(ctx, vfs.MustParse("user://a.txt"), []byte("12345")))
	require.NoError(t, fs.Write(ctx, vfs.MustParse("user://d/b.txt"), []byte("123")))

	files, bytes, err := fs.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, files)
	assert.Equal(t, int64(8), bytes)
}
