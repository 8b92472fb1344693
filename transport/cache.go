package transport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"github.com/oklog/ulid/v2"
	"gitlab.com/tozd/go/errors"
	"gitlab.com/tozd/identifier"

	"gitlab.com/orlodrimbot/mwbot/errs"
)

// CacheFlags is a bitwise combination of cache behaviors.
type CacheFlags int

const (
	CacheDisabled CacheFlags = 0
	// CacheReadEnabled returns the response from the cache if possible.
	CacheReadEnabled CacheFlags = 1
	// CacheWriteEnabled writes a response back to the cache on a miss.
	CacheWriteEnabled CacheFlags = 2
	// CacheEnabled is the normal read+write mode.
	CacheEnabled CacheFlags = CacheReadEnabled | CacheWriteEnabled
	// CacheOfflineMode makes every uncached query fail with
	// errs.PageNotInCache instead of reaching the network. Requires
	// CacheReadEnabled.
	CacheOfflineMode CacheFlags = 4
	// CachePost also caches POST requests, keyed on (url, body).
	CachePost CacheFlags = 8
)

// CachingClient wraps a Client with an on-disk response cache. Cache
// entries are bucketed into subdirectories named from a ulid.Make() run
// identifier so a single directory of a long-lived
// crawl never accumulates millions of siblings, and each fingerprint is
// salted with a fixed per-cache tozd/identifier.Identifier so cache
// directories from unrelated runs never collide even if cleared and reused.
type CachingClient struct {
	*Client
	dir  string
	mode CacheFlags
	salt string

	mu            sync.Mutex
	bucket        string
	lastCacheFile string
}

// NewCachingClient wraps client with a disk cache rooted at dir, which must
// already exist.
func NewCachingClient(client *Client, dir string, mode CacheFlags) *CachingClient {
	salt := identifier.New().String()
	return &CachingClient{
		Client: client,
		dir:    dir,
		mode:   mode,
		salt:   salt,
		bucket: ulid.Make().String(),
	}
}

// SetCacheMode changes the active cache flags.
func (c *CachingClient) SetCacheMode(mode CacheFlags) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
}

// DoNotCacheLastResponse deletes the cache file written (or that would have
// been read) by the most recent Get/Post.
func (c *CachingClient) DoNotCacheLastResponse() error {
	c.mu.Lock()
	path := c.lastCacheFile
	c.mu.Unlock()
	if path == "" {
		return nil
	}
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Get issues a cached GET request.
func (c *CachingClient) Get(ctx context.Context, url string) ([]byte, errors.E) {
	return c.do(ctx, "GET", url, nil)
}

// Post issues a POST request, cached only when CachePost is set.
func (c *CachingClient) Post(ctx context.Context, url string, body []byte) ([]byte, errors.E) {
	return c.do(ctx, "POST", url, body)
}

func (c *CachingClient) do(ctx context.Context, method, url string, body []byte) ([]byte, errors.E) {
	c.mu.Lock()
	mode := c.mode
	c.mu.Unlock()

	cacheable := mode != CacheDisabled && (method == "GET" || mode&CachePost != 0)
	var cacheFile string
	if cacheable {
		cacheFile = c.cacheFilePath(method, url, body)
		c.mu.Lock()
		c.lastCacheFile = cacheFile
		c.mu.Unlock()
	}

	if cacheable && mode&CacheReadEnabled != 0 {
		if data, err := os.ReadFile(cacheFile); err == nil {
			return data, nil
		} else if !os.IsNotExist(err) {
			return nil, errors.WrapWith(errors.Wrap(err, "reading cache file"), errs.System)
		}
		if mode&CacheOfflineMode != 0 {
			return nil, errors.WrapWith(errors.Errorf("%s %s", method, url), errs.PageNotInCache)
		}
	}

	var data []byte
	var reqErr errors.E
	if method == "GET" {
		data, reqErr = c.Client.Get(ctx, url)
	} else {
		data, reqErr = c.Client.Post(ctx, url, body)
	}
	if reqErr != nil {
		return nil, reqErr
	}

	if cacheable && mode&CacheWriteEnabled != 0 {
		if err := c.writeCacheFile(cacheFile, data); err != nil {
			return nil, errors.WrapWith(errors.Wrap(err, "writing cache file"), errs.System)
		}
	}
	return data, nil
}

func (c *CachingClient) writeCacheFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	// Atomic write via a run-scoped temp name, avoiding readers observing a
	// half-written cache file.
	tmp := path + ".tmp." + ulid.Make().String()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func (c *CachingClient) cacheFilePath(method, url string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(c.salt))
	h.Write([]byte{0})
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(url))
	if method == "POST" {
		h.Write([]byte{0})
		h.Write(body)
	}
	fingerprint := hex.EncodeToString(h.Sum(nil))
	return filepath.Join(c.dir, c.bucket, fingerprint[:2], fingerprint)
}
