package processor

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultCacheSize is the number of declarations whose outputs are retained
// in memory by default.
const DefaultCacheSize = 4096

// bump when the key or entry encoding changes
const cacheKeyVersion = 1

// Digest is the cache key of one annotated declaration.
type Digest [sha256.Size]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// cacheEntry is everything computed for one declaration. Diagnostic positions
// are relative to the declaration's name, so the entry stays valid when the
// declaration moves.
type cacheEntry struct {
	Info        *ValidatedProxyInfo
	Diagnostics []Diagnostic
	Artifact    *Artifact
}

type keyRecord struct {
	Version  int
	Settings Settings
	Decl     DeclInput
}

// computeKey returns the structural key of a declaration under the given
// settings. Declarations that differ only in where they appear in the file
// have the same key.
func computeKey(settings Settings, in DeclInput) (Digest, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	rec := keyRecord{Version: cacheKeyVersion, Settings: settings, Decl: in.relativeTo(in.Pos)}
	if err := enc.Encode(&rec); err != nil {
		return Digest{}, fmt.Errorf("failed to encode cache key for %s: %w", in.QualifiedName(), err)
	}
	return sha256.Sum256(buf.Bytes()), nil
}

// Cache memoizes the outputs of declarations across passes. It is safe for
// concurrent use, so parallel workers of a single pass can share it. A Cache
// may be backed by a DiskCache, in which case entries also survive the
// process.
type Cache struct {
	mem  *lru.Cache[Digest, *cacheEntry]
	disk *DiskCache

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache creates a cache that retains up to size entries in memory. The
// disk cache is optional and may be nil.
func NewCache(size int, disk *DiskCache) (*Cache, error) {
	mem, err := lru.New[Digest, *cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	return &Cache{mem: mem, disk: disk}, nil
}

func (c *Cache) get(key Digest) (*cacheEntry, bool) {
	if e, ok := c.mem.Get(key); ok {
		c.hits.Add(1)
		return e, true
	}
	if c.disk != nil {
		var e cacheEntry
		// unreadable entries are treated as misses and overwritten later
		if ok, err := c.disk.Get(key, &e); err == nil && ok {
			c.mem.Add(key, &e)
			c.hits.Add(1)
			return &e, true
		}
	}
	c.misses.Add(1)
	return nil, false
}

func (c *Cache) put(key Digest, e *cacheEntry) error {
	c.mem.Add(key, e)
	if c.disk != nil {
		return c.disk.Put(key, e)
	}
	return nil
}

// Len returns the number of entries held in memory.
func (c *Cache) Len() int {
	return c.mem.Len()
}

// Purge drops all in-memory entries. The disk cache is left alone.
func (c *Cache) Purge() {
	c.mem.Purge()
}

// Hits returns how many lookups found an entry.
func (c *Cache) Hits() int64 {
	return c.hits.Load()
}

// Misses returns how many lookups found nothing.
func (c *Cache) Misses() int64 {
	return c.misses.Load()
}

// newEntry builds a cache entry from a freshly computed outcome, making
// diagnostic positions relative to the declaration.
func newEntry(in DeclInput, v Validation[ValidatedProxyInfo], artifact *Artifact) *cacheEntry {
	e := &cacheEntry{Artifact: artifact}
	if info, ok := v.Value(); ok {
		e.Info = &info
		return e
	}
	for _, d := range v.Diagnostics() {
		d.Pos = relativePosition(d.Pos, in.Pos)
		e.Diagnostics = append(e.Diagnostics, d)
	}
	return e
}

// diagnostics returns the entry's diagnostics positioned relative to the
// declaration's current location.
func (e *cacheEntry) diagnostics(anchor DeclInput) []Diagnostic {
	if len(e.Diagnostics) == 0 {
		return nil
	}
	diags := make([]Diagnostic, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		d.Pos = rebasePosition(d.Pos, anchor.Pos)
		diags[i] = d
	}
	return diags
}
