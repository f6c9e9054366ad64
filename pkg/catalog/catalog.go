// Package catalog owns the course index and serves lookups to the front ends.
//
// The index engines in pkg/core are not synchronized. Catalog guards the
// current index with a RWMutex and never mutates it after publication: a
// load builds a fresh index off-lock and swaps it in, which also releases
// the previous one.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"catalogdb/pkg/common"
	"catalogdb/pkg/config"
	"catalogdb/pkg/core"
	"catalogdb/pkg/core/memory"
	"catalogdb/pkg/core/structure"
	"catalogdb/pkg/core/tree"
	"catalogdb/pkg/loader"
	"catalogdb/pkg/monitor"
	"catalogdb/pkg/storage"
)

var (
	ErrNotLoaded      = errors.New("catalog: no courses loaded")
	ErrPathNotAllowed = errors.New("catalog: path outside the data directory")
)

type Catalog struct {
	cfg    config.CatalogConfig
	loader *loader.Loader
	stats  *monitor.WorkloadStats
	log    *logrus.Entry

	mu       sync.RWMutex
	index    core.Index
	bloom    *structure.BloomFilter
	loaded   []common.Record // source order, kept for Export
	source   string
	loadedAt time.Time
}

type Stats struct {
	Engine     string    `json:"engine"`
	KeyCase    string    `json:"key_case"`
	Source     string    `json:"source"`
	LoadedAt   time.Time `json:"loaded_at"`
	Records    int       `json:"records"`
	TreeHeight int       `json:"tree_height"`
	Lookups    uint64    `json:"lookups"`
	Hits       uint64    `json:"hits"`
	HitRatio   float64   `json:"hit_ratio"`
	Loads      uint64    `json:"loads"`
}

func New(cfg config.CatalogConfig, fs afero.Fs) *Catalog {
	cfg.ApplyDefaults()
	c := &Catalog{
		cfg:   cfg,
		stats: monitor.NewWorkloadStats(),
		log:   logrus.WithField("component", "catalog"),
	}
	c.loader = loader.New(fs, c.normalizer())
	c.index = c.newIndex()
	c.bloom = structure.NewBloomFilter(c.bloomSize(0), c.cfg.BloomFalseProb)
	return c
}

func (c *Catalog) newIndex() core.Index {
	if c.cfg.Engine == config.EngineBTree {
		degree := c.cfg.BTreeDegree
		if degree < 2 {
			degree = 32
		}
		return memory.NewBTreeIndex(degree)
	}
	return tree.New()
}

func (c *Catalog) normalizer() func(string) string {
	if c.cfg.KeyCase == config.KeyCaseExact {
		return nil
	}
	return strings.ToUpper
}

// Normalize applies the configured key policy to an identifier.
func (c *Catalog) Normalize(id string) string {
	id = strings.TrimSpace(id)
	if fn := c.normalizer(); fn != nil {
		return fn(id)
	}
	return id
}

func (c *Catalog) bloomSize(n int) uint {
	if uint(n) > c.cfg.BloomSize {
		return uint(n)
	}
	if c.cfg.BloomSize == 0 {
		return 1
	}
	return c.cfg.BloomSize
}

// Resolve maps a source name from a remote caller onto the data directory.
// An empty name selects the configured path. Absolute names and names that
// climb out of the directory are rejected with ErrPathNotAllowed.
func (c *Catalog) Resolve(name string) (string, error) {
	if name == "" {
		return c.cfg.Path, nil
	}
	if filepath.IsAbs(name) || !filepath.IsLocal(name) {
		return "", ErrPathNotAllowed
	}
	dir := c.cfg.DataDir
	if dir == "" {
		dir = filepath.Dir(c.cfg.Path)
	}
	return filepath.Join(dir, name), nil
}

// Describe turns a Load error into a message for remote callers. File
// contents and paths never appear in it.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPathNotAllowed):
		return ErrPathNotAllowed.Error()
	case errors.Is(err, loader.ErrInvalidRecord):
		return loader.ErrInvalidRecord.Error()
	case errors.Is(err, loader.ErrDanglingPrerequisite):
		return loader.ErrDanglingPrerequisite.Error()
	case errors.Is(err, ErrNotLoaded):
		return ErrNotLoaded.Error()
	default:
		return "catalog: load failed"
	}
}

// Load replaces the catalog with the courses in path (or the configured
// path when empty). Files ending in .db or .sqlite are read from a SQLite
// store, anything else as comma separated text.
//
// When the file parses but fails validation, the records read so far are
// still published and the validation error is returned. I/O errors, and
// invalid files that yield no record at all, leave the current catalog
// untouched.
func (c *Catalog) Load(path string) (int, error) {
	if path == "" {
		path = c.cfg.Path
	}
	c.log.WithField("path", path).Info("Loading course file")
	start := time.Now()

	var (
		records []common.Record
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite":
		records, err = c.loadSQLite(path)
	default:
		records, err = c.loader.Load(path)
	}

	dataErr := errors.Is(err, loader.ErrInvalidRecord) || errors.Is(err, loader.ErrDanglingPrerequisite)
	if err != nil && (!dataErr || len(records) == 0) {
		c.stats.RecordLoad(err)
		c.log.WithError(err).WithField("path", path).Warn("Load failed, keeping current catalog")
		return 0, err
	}

	n := c.publish(records, path)
	c.stats.RecordLoad(err)
	c.stats.RecordIndex(n, c.height())
	c.log.WithFields(logrus.Fields{
		"path":     path,
		"courses":  n,
		"duration": time.Since(start),
	}).Info("Loaded courses")
	if err != nil {
		c.log.WithError(err).Warn("Course file has invalid data")
	}
	return n, err
}

func (c *Catalog) loadSQLite(path string) ([]common.Record, error) {
	// sql.Open would create a missing file
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	b, err := storage.NewSQLiteBackend(path)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	records, err := b.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	for i := range records {
		records[i].ID = c.Normalize(records[i].ID)
		for j, p := range records[i].Prerequisites {
			records[i].Prerequisites[j] = c.Normalize(p)
		}
	}
	return records, loader.Validate(records)
}

// LoadRecords publishes records as the new catalog, in the given order.
func (c *Catalog) LoadRecords(records []common.Record, source string) int {
	n := c.publish(records, source)
	c.stats.RecordLoad(nil)
	c.stats.RecordIndex(n, c.height())
	return n
}

func (c *Catalog) publish(records []common.Record, source string) int {
	idx := c.newIndex()
	bloom := structure.NewBloomFilter(c.bloomSize(len(records)), c.cfg.BloomFalseProb)
	kept := make([]common.Record, 0, len(records))
	for _, rec := range records {
		idx.Insert(rec)
		bloom.Add(rec.ID)
		kept = append(kept, rec.Clone())
	}

	c.mu.Lock()
	old := c.index
	c.index = idx
	c.bloom = bloom
	c.loaded = kept
	c.source = source
	c.loadedAt = time.Now()
	c.mu.Unlock()

	if released := old.Clear(); released > 0 {
		c.log.WithField("released", released).Debug("Released previous index")
	}
	return idx.Len()
}

// Find looks up one course. The query is normalized with the key policy.
func (c *Catalog) Find(id string) (common.Record, bool) {
	key := c.Normalize(id)

	c.mu.RLock()
	var (
		rec common.Record
		ok  bool
	)
	if c.bloom.Contains(key) {
		rec, ok = c.index.Find(key)
	}
	c.mu.RUnlock()

	c.stats.RecordLookup(ok)
	return rec, ok
}

// Ascend walks all courses in ascending id order until fn returns false.
// fn must not call back into the catalog's load methods.
func (c *Catalog) Ascend(fn func(rec common.Record) bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.index.Ascend(fn)
}

func (c *Catalog) List() []common.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.Records()
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.Len()
}

func (c *Catalog) height() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.Height()
}

// Export writes the loaded courses to b in their source order, so loading
// the export rebuilds a tree of the same shape.
func (c *Catalog) Export(b storage.Backend) (int, error) {
	c.mu.RLock()
	records := c.loaded
	c.mu.RUnlock()
	if len(records) == 0 {
		return 0, ErrNotLoaded
	}
	if err := b.Save(records); err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	return len(records), nil
}

func (c *Catalog) Stats() Stats {
	c.mu.RLock()
	st := Stats{
		Engine:     c.index.Type(),
		KeyCase:    c.cfg.KeyCase,
		Source:     c.source,
		LoadedAt:   c.loadedAt,
		Records:    c.index.Len(),
		TreeHeight: c.index.Height(),
	}
	c.mu.RUnlock()

	st.Lookups = atomic.LoadUint64(&c.stats.LookupCount)
	st.Hits = atomic.LoadUint64(&c.stats.HitCount)
	st.HitRatio = c.stats.GetHitRatio()
	st.Loads = atomic.LoadUint64(&c.stats.LoadCount)
	return st
}

func (c *Catalog) Monitor() *monitor.WorkloadStats {
	return c.stats
}

// Close releases the current index.
func (c *Catalog) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index.Clear()
	c.loaded = nil
	c.source = ""
}
