package webserve

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
)

// ResolvePath joins root with the path portion of a request url and
// lexically normalizes the result (resolving "." and ".." without touching
// the filesystem). The caller must still check that the result begins with
// root (see PathInSandbox) before trusting it.
func ResolvePath(root, urlPath string) string {
	return filepath.Join(root, filepath.FromSlash(urlPath))
}

// PathInSandbox reports whether resolvedPath lies under root after lexical
// normalization.
func PathInSandbox(root, resolvedPath string) bool {
	if resolvedPath == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(resolvedPath, prefix)
}

// MimeForPath extracts the trailing, dot-prefixed extension of path and
// looks it up in table, defaulting to "text/html" (and logging a warning via
// logger, if non-nil) when the extension is unknown or absent.
func MimeForPath(table map[string]string, path string, logger *Logger) string {
	ext := filepath.Ext(path)
	if ext == "" {
		if logger != nil {
			logger.Warnf("can't determine mime type for %s", path)
		}
		return "text/html"
	}

	if mt, ok := table[ext]; ok {
		return mt
	}

	if logger != nil {
		logger.Warnf("couldn't find a static-type entry for %s", path)
	}
	return "text/html"
}

// DefaultStaticTypeTable is the extension-to-MIME table installed by
// InitializeConfig, and by ConfigToConn when the Config's table is nil.
func DefaultStaticTypeTable() map[string]string {
	return map[string]string{
		".html": "text/html",
		".htm":  "text/html",
		".css":  "text/css",
		".js":   "application/javascript",
		".json": "application/json",
		".xml":  "application/xml",
		".svg":  "image/svg+xml",
		".png":  "image/png",
		".gif":  "image/gif",
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".txt":  "text/plain",
		".csv":  "text/csv",
	}
}

// ResourceCache is an in-memory resource file manager that reduces disk I/O
// pressure: file contents are content-addressed into a fastcache-backed
// store, keyed by an xxhash digest of the bytes, and invalidated on
// filesystem change notifications.
type ResourceCache struct {
	root     string
	logger   *Logger
	minify   bool
	minMIMEs map[string]bool
	types    map[string]string

	once    sync.Once
	cache   *fastcache.Cache
	index   sync.Map // path -> cache key ([8]byte)
	watcher *fsnotify.Watcher
	m       *minify.M
}

// NewResourceCache returns a ResourceCache rooted at root. When minifyHTML is
// true, resources whose MIME type (per types) is "text/html" are minified
// before being cached.
func NewResourceCache(root string, types map[string]string, logger *Logger, minifyHTML bool) *ResourceCache {
	c := &ResourceCache{
		root:     root,
		logger:   logger,
		minify:   minifyHTML,
		minMIMEs: map[string]bool{"text/html": true},
		types:    types,
	}

	if minifyHTML {
		c.m = minify.New()
		c.m.AddFunc("text/html", html.Minify)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		if logger != nil {
			logger.Errorf("resource cache: failed to build watcher: %v", err)
		}
	} else {
		c.watcher = watcher
		go c.watchLoop()
	}

	return c
}

func (c *ResourceCache) watchLoop() {
	for {
		select {
		case e, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			c.invalidate(e.Name)
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			if c.logger != nil {
				c.logger.Errorf("resource cache watcher error: %v", err)
			}
		}
	}
}

func (c *ResourceCache) invalidate(path string) {
	if keyI, ok := c.index.Load(path); ok {
		key := keyI.([8]byte)
		c.cache.Del(key[:])
		c.index.Delete(path)
	}
}

// Load reads path, serving a cached copy when available.
func (c *ResourceCache) Load(path string) ([]byte, error) {
	c.once.Do(func() {
		c.cache = fastcache.New(32 << 20)
	})

	if keyI, ok := c.index.Load(path); ok {
		key := keyI.([8]byte)
		if b := c.cache.Get(nil, key[:]); b != nil {
			return b, nil
		}
		c.index.Delete(path)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if c.minify {
		if mt, ok := c.types[filepath.Ext(path)]; ok && c.minMIMEs[mt] {
			if mb, err := c.m.Bytes(mt, b); err == nil {
				b = mb
			} else if c.logger != nil {
				c.logger.Warnf("resource cache: failed to minify %s: %v", path, err)
			}
		}
	}

	var key [8]byte
	binary.LittleEndian.PutUint64(key[:], xxhash.Sum64(b))
	c.cache.Set(key[:], b)
	c.index.Store(path, key)

	if c.watcher != nil {
		if err := c.watcher.Add(path); err != nil && c.logger != nil {
			c.logger.Debugf("resource cache: could not watch %s: %v", path, err)
		}
	}

	return b, nil
}

// Valid reports whether path exists and is not a directory. It does not
// check that the file is readable.
func (c *ResourceCache) Valid(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
