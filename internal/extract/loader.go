package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"schemaextract/internal/pyast"
	"schemaextract/internal/safeio"
)

// DefaultCacheSize bounds the number of parsed files kept between batches.
const DefaultCacheSize = 4096

// loader parses each file once. Concurrent callers for the same path share
// one parse; results stay cached until evicted.
type loader struct {
	fs     *safeio.SafeFS
	cache  *lru.Cache[string, *pyast.File]
	group  singleflight.Group
	parses atomic.Int64
}

func newLoader(fs *safeio.SafeFS, size int) *loader {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *pyast.File](size)
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	return &loader{fs: fs, cache: cache}
}

func (l *loader) load(ctx context.Context, path string) (*pyast.File, error) {
	if f, ok := l.cache.Get(path); ok {
		return f, nil
	}
	v, err, _ := l.group.Do(path, func() (any, error) {
		if f, ok := l.cache.Get(path); ok {
			return f, nil
		}
		src, err := l.fs.SafeReadFile(filepath.FromSlash(path))
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		l.parses.Add(1)
		f, err := pyast.Parse(ctx, path, src)
		if err != nil {
			return nil, err
		}
		l.cache.Add(path, f)
		return f, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*pyast.File), nil
}
