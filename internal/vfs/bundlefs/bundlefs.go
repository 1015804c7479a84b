// Package bundlefs implements the read-only-system backend. Assets are
// sealed at construction (built-in defaults plus an optional operator
// manifest), and every mutating capability is refused at this boundary,
// even for callers that never went through the policy layer.
package bundlefs

import (
	"context"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pelletier/go-toml/v2"

	"github.com/gemimi2525-star/super-platform-sub003/internal/vfs"
)

// Asset is one sealed file, addressed below system://.
type Asset struct {
	Path    string `toml:"path"`
	Content string `toml:"content"`
	MIME    string `toml:"mime,omitempty"`
}

// Manifest is the operator-supplied bundle description (bundle.toml).
type Manifest struct {
	Version int     `toml:"version"`
	Assets  []Asset `toml:"asset"`
}

// FromManifest reads and parses a bundle.toml.
func FromManifest(path string) ([]Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, vfs.WrapError(vfs.CodeStorageError, "bundle", path, err)
	}
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, vfs.WrapError(vfs.CodeStorageError, "bundle", path, err)
	}
	return m.Assets, nil
}

// DefaultAssets returns the files every installation ships with.
func DefaultAssets() []Asset {
	return []Asset{
		{
			Path: "etc/os-release",
			Content: "NAME=\"Super Platform\"\n" +
				"ID=super-platform\n" +
				"VERSION_ID=\"1.0\"\n" +
				"PRETTY_NAME=\"Super Platform 1.0\"\n",
			MIME: "text/plain; charset=utf-8",
		},
		{
			Path:    "etc/motd",
			Content: "Welcome to Super Platform.\n",
			MIME:    "text/plain; charset=utf-8",
		},
		{
			Path: "defaults/settings.toml",
			Content: "theme = \"dark\"\n" +
				"locale = \"en-US\"\n" +
				"autosave = true\n",
			MIME: "application/toml",
		},
	}
}

type file struct {
	data []byte
	mime string
}

// FS is the sealed adapter. All state is immutable after New, so reads
// need no locking.
type FS struct {
	sealed time.Time
	files  map[string]*file
	dirs   map[string]bool
}

// New validates every asset path and seals the bundle. Later assets
// with the same path win, which lets a manifest override a default.
func New(assets []Asset) (*FS, error) {
	f := &FS{
		sealed: time.Now(),
		files:  make(map[string]*file, len(assets)),
		dirs:   map[string]bool{"": true},
	}
	for _, a := range assets {
		p, err := vfs.Parse(string(vfs.SchemeSystem) + "://" + a.Path)
		if err != nil {
			return nil, err
		}
		data := []byte(a.Content)
		mt := a.MIME
		if mt == "" {
			mt = mimetype.Detect(data).String()
		}
		segs := p.Segments()
		f.files[strings.Join(segs, "/")] = &file{data: data, mime: mt}
		for i := 1; i < len(segs); i++ {
			f.dirs[strings.Join(segs[:i], "/")] = true
		}
	}
	return f, nil
}

func (f *FS) Scheme() vfs.Scheme { return vfs.SchemeSystem }

// Len reports how many files the bundle holds.
func (f *FS) Len() int { return len(f.files) }

func key(p vfs.Path) string { return strings.Join(p.Segments(), "/") }

func (f *FS) denied(op string, p vfs.Path) error {
	return vfs.NewError(vfs.CodeAccessDenied, op, p.String())
}

func (f *FS) fileEntry(p vfs.Path, fl *file) vfs.Entry {
	return vfs.Entry{
		Name:     p.Base(),
		Path:     p.String(),
		Kind:     vfs.KindFile,
		Size:     int64(len(fl.data)),
		MIME:     fl.mime,
		Created:  f.sealed,
		Modified: f.sealed,
	}
}

func (f *FS) dirEntry(p vfs.Path) vfs.Entry {
	return vfs.Entry{
		Name:     p.Base(),
		Path:     p.String(),
		Kind:     vfs.KindDirectory,
		Created:  f.sealed,
		Modified: f.sealed,
	}
}

func (f *FS) List(ctx context.Context, p vfs.Path) ([]vfs.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, vfs.WrapError(vfs.CodeStorageError, "list", p.String(), err)
	}
	k := key(p)
	if !f.dirs[k] {
		if _, isFile := f.files[k]; isFile {
			return nil, vfs.NewError(vfs.CodeInvalidPath, "list", p.String())
		}
		return nil, vfs.NewError(vfs.CodeNotFound, "list", p.String())
	}

	prefix := k
	if prefix != "" {
		prefix += "/"
	}
	seen := make(map[string]bool)
	var entries []vfs.Entry

	collect := func(candidate string, isDir bool) {
		if !strings.HasPrefix(candidate, prefix) || candidate == k {
			return
		}
		rest := candidate[len(prefix):]
		if idx := strings.Index(rest, "/"); idx >= 0 {
			return // not a direct child
		}
		if seen[rest] {
			return
		}
		seen[rest] = true
		childPath, err := p.Join(rest)
		if err != nil {
			return
		}
		if isDir {
			entries = append(entries, f.dirEntry(childPath))
		} else {
			entries = append(entries, f.fileEntry(childPath, f.files[candidate]))
		}
	}

	for name := range f.dirs {
		collect(name, true)
	}
	for name := range f.files {
		collect(name, false)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (f *FS) Stat(ctx context.Context, p vfs.Path) (vfs.Entry, error) {
	if err := ctx.Err(); err != nil {
		return vfs.Entry{}, vfs.WrapError(vfs.CodeStorageError, "stat", p.String(), err)
	}
	k := key(p)
	if fl, ok := f.files[k]; ok {
		return f.fileEntry(p, fl), nil
	}
	if f.dirs[k] {
		return f.dirEntry(p), nil
	}
	return vfs.Entry{}, vfs.NewError(vfs.CodeNotFound, "stat", p.String())
}

func (f *FS) Read(ctx context.Context, p vfs.Path) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, vfs.WrapError(vfs.CodeStorageError, "read", p.String(), err)
	}
	fl, ok := f.files[key(p)]
	if !ok {
		if f.dirs[key(p)] {
			return nil, vfs.NewError(vfs.CodeInvalidPath, "read", p.String())
		}
		return nil, vfs.NewError(vfs.CodeNotFound, "read", p.String())
	}
	out := make([]byte, len(fl.data))
	copy(out, fl.data)
	return out, nil
}

func (f *FS) Exists(ctx context.Context, p vfs.Path) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, vfs.WrapError(vfs.CodeStorageError, "exists", p.String(), err)
	}
	k := key(p)
	_, isFile := f.files[k]
	return isFile || f.dirs[k], nil
}

// The deep read-only guard: every mutator refuses, unconditionally.

func (f *FS) Write(ctx context.Context, p vfs.Path, data []byte) error {
	return f.denied("write", p)
}

func (f *FS) Mkdir(ctx context.Context, p vfs.Path) error {
	return f.denied("mkdir", p)
}

func (f *FS) Delete(ctx context.Context, p vfs.Path) error {
	return f.denied("delete", p)
}

func (f *FS) Rename(ctx context.Context, src, dst vfs.Path) error {
	return f.denied("rename", src)
}

func (f *FS) Move(ctx context.Context, src, dst vfs.Path) error {
	return f.denied("move", src)
}

func (f *FS) Wipe(ctx context.Context) (int, error) {
	return 0, vfs.NewError(vfs.CodeAccessDenied, "wipe", string(vfs.SchemeSystem)+"://")
}
