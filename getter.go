package kjsonl

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// GetterOptions define getter specific options.
type GetterOptions struct {
	// CacheSize is the maximum number of decoded values kept in memory.
	// Default: 1000.
	CacheSize int

	// NoWatch disables automatic refreshes when the file is modified.
	NoWatch bool

	// Scanner configures the scans used to build the index.
	Scanner ScannerOptions

	// Logger receives watch and refresh diagnostics.
	// Default: slog.Default().
	Logger *slog.Logger
}

func (o *GetterOptions) norm() *GetterOptions {
	var oo GetterOptions
	if o != nil {
		oo = *o
	}

	if oo.CacheSize < 1 {
		oo.CacheSize = 1000
	}
	if oo.Logger == nil {
		oo.Logger = slog.Default()
	}

	return &oo
}

// GetterStats contains getter counters.
type GetterStats struct {
	Hits      uint64 // lookups served from cache
	Misses    uint64 // lookups which missed the cache
	Reads     uint64 // values read from disk
	Scans     uint64 // completed index scans
	Refreshes uint64 // refreshes, manual or triggered by the watcher
}

// Getter serves random access lookups from a single file. It builds an
// index of value offsets with a single scan and reads values on demand.
// Getters are safe for concurrent use.
type Getter struct {
	path string
	o    *GetterOptions

	mu       sync.RWMutex // read-locked by lookups, locked by refresh and release
	gen      atomic.Pointer[generation]
	genMu    sync.Mutex // serializes replacement of failed generations
	watch    *watcher
	released bool

	queue chan struct{} // pending refresh requests
	quit  chan struct{}
	done  chan struct{}

	hits, misses, reads, scans, refreshes atomic.Uint64
}

// Open opens a getter for path. The index is built in the background, the
// first lookup waits for it to complete. Open fails only if the file cannot
// be watched; all other errors are reported by Get.
func Open(path string, o *GetterOptions) (*Getter, error) {
	if CompressionOf(path) != NoCompression {
		return nil, errCompressed
	}

	g := &Getter{path: path, o: o.norm()}
	if !g.o.NoWatch {
		g.queue = make(chan struct{}, 1)
		g.quit = make(chan struct{})
		g.done = make(chan struct{})

		w, err := newWatcher(path, g.o.Logger, g.enqueue)
		if err != nil {
			return nil, fmt.Errorf("kjsonl: failed to watch %s: %w", path, err)
		}
		g.watch = w
		go g.loop()
	}
	g.gen.Store(g.load())
	return g, nil
}

// Path returns the file path.
func (g *Getter) Path() string { return g.path }

// Get returns the decoded value for key. It returns ErrNotFound if key does
// not exist. Returned maps and slices are shared with the cache and must not
// be modified.
func (g *Getter) Get(key string) (interface{}, error) {
	ent, err := g.get(key)
	if err != nil {
		return nil, err
	}
	return ent.result()
}

// GetInto decodes the value for key into v. The original JSON text is
// decoded, so numbers keep their full precision.
func (g *Getter) GetInto(key string, v interface{}) error {
	ent, err := g.get(key)
	if err != nil {
		return err
	}
	if !ent.found {
		return ErrNotFound
	}
	return json.Unmarshal(ent.raw, v)
}

func (g *Getter) get(key string) (cached, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.released {
		return cached{}, ErrReleased
	}

	gen := g.gen.Load()
	if ent, ok := gen.cache.Get(key); ok {
		g.hits.Add(1)
		return ent, nil
	}
	g.misses.Add(1)

	v, err, _ := gen.calls.Do(key, func() (interface{}, error) {
		return g.lookup(gen, key)
	})
	if err != nil {
		return cached{}, err
	}
	return v.(cached), nil
}

// Len returns the number of distinct keys.
func (g *Getter) Len() (int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.released {
		return 0, ErrReleased
	}

	gen := g.gen.Load()
	if err := g.wait(gen); err != nil {
		return 0, err
	}
	return len(gen.index), nil
}

// Refresh discards the index and all cached values and rebuilds them from
// scratch. It waits for pending scans and lookups to complete first.
func (g *Getter) Refresh() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return ErrReleased
	}

	err := g.closeAll()
	g.gen.Store(g.load())
	g.refreshes.Add(1)

	if !g.o.NoWatch {
		w, werr := newWatcher(g.path, g.o.Logger, g.enqueue)
		if werr != nil {
			return fmt.Errorf("kjsonl: failed to watch %s: %w", g.path, werr)
		}
		g.watch = w
	}
	return err
}

// Release permanently releases all resources. The getter must not be used
// after this method is called.
func (g *Getter) Release() error {
	g.mu.Lock()
	if g.released {
		g.mu.Unlock()
		return nil
	}
	g.released = true
	err := g.closeAll()
	g.gen.Store(nil)
	g.mu.Unlock()

	if g.quit != nil {
		close(g.quit)
		<-g.done
	}
	return err
}

// Stats returns a snapshot of the getter counters.
func (g *Getter) Stats() GetterStats {
	return GetterStats{
		Hits:      g.hits.Load(),
		Misses:    g.misses.Load(),
		Reads:     g.reads.Load(),
		Scans:     g.scans.Load(),
		Refreshes: g.refreshes.Load(),
	}
}

func (g *Getter) lookup(gen *generation, key string) (cached, error) {
	if ent, ok := gen.cache.Get(key); ok {
		return ent, nil
	}
	if err := g.wait(gen); err != nil {
		return cached{}, err
	}

	span, ok := gen.index[key]
	if !ok {
		gen.cache.Add(key, cached{})
		return cached{}, nil
	}

	buf := fetchBuffer(span.Len())
	defer releaseBuffer(buf)

	if n, err := gen.file.ReadAt(buf, span.Start); n < len(buf) {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return cached{}, fmt.Errorf("kjsonl: failed to read %q from %s: %w", key, g.path, err)
	}
	g.reads.Add(1)

	var value interface{}
	if err := json.Unmarshal(buf, &value); err != nil {
		return cached{}, fmt.Errorf("kjsonl: failed to decode %q from %s: %w", key, g.path, err)
	}

	ent := cached{value: value, raw: append(json.RawMessage(nil), buf...), found: true}
	gen.cache.Add(key, ent)
	return ent, nil
}

// wait blocks until gen is ready. Failed generations are replaced, so the
// next caller starts a new scan.
func (g *Getter) wait(gen *generation) error {
	g.scan(gen)
	<-gen.ready
	if gen.err == nil {
		return nil
	}

	g.genMu.Lock()
	if g.gen.Load() == gen {
		g.gen.Store(newGeneration(g.o.CacheSize))
	}
	g.genMu.Unlock()
	return gen.err
}

// load returns a new generation with its scan already started.
func (g *Getter) load() *generation {
	gen := newGeneration(g.o.CacheSize)
	g.scan(gen)
	return gen
}

// scan starts the scan of gen, unless it was started already.
func (g *Getter) scan(gen *generation) {
	gen.once.Do(func() {
		go g.build(gen)
	})
}

func (g *Getter) build(gen *generation) {
	defer close(gen.ready)

	f, err := os.Open(g.path)
	if err != nil {
		gen.err = err
		return
	}

	index, err := BuildIndex(f, &g.o.Scanner)
	if err != nil {
		_ = f.Close()
		gen.err = fmt.Errorf("kjsonl: failed to index %s: %w", g.path, err)
		return
	}

	gen.file, gen.index = f, index
	g.scans.Add(1)
}

func (g *Getter) closeAll() error {
	var err error
	if g.watch != nil {
		err = g.watch.Close()
		g.watch = nil
	}
	if gen := g.gen.Load(); gen != nil {
		if cerr := gen.close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (g *Getter) enqueue() {
	select {
	case g.queue <- struct{}{}:
	default:
	}
}

func (g *Getter) loop() {
	defer close(g.done)

	for {
		select {
		case <-g.quit:
			return
		case <-g.queue:
			if err := g.Refresh(); err != nil && err != ErrReleased {
				g.o.Logger.Warn("kjsonl: refresh failed", "path", g.path, "err", err)
			}
		}
	}
}

// --------------------------------------------------------------------

// generation holds the state derived from one scan of the file.
type generation struct {
	once  sync.Once     // starts the scan
	ready chan struct{} // closed when the scan is complete
	file  *os.File
	index Index
	err   error

	cache *lru.Cache[string, cached]
	calls singleflight.Group
}

func newGeneration(cacheSize int) *generation {
	cache, _ := lru.New[string, cached](cacheSize)
	return &generation{
		ready: make(chan struct{}),
		cache: cache,
	}
}

// close waits for a started scan and closes the file, scan errors are
// ignored. A scan that was never started is cancelled.
func (gen *generation) close() error {
	gen.once.Do(func() { close(gen.ready) })
	<-gen.ready
	if gen.file == nil {
		return nil
	}
	return gen.file.Close()
}

type cached struct {
	value interface{}
	raw   json.RawMessage // undecoded value
	found bool
}

func (c cached) result() (interface{}, error) {
	if !c.found {
		return nil, ErrNotFound
	}
	return c.value, nil
}

// --------------------------------------------------------------------

var bufPool sync.Pool

func fetchBuffer(sz int) []byte {
	if v := bufPool.Get(); v != nil {
		if p := v.([]byte); sz <= cap(p) {
			return p[:sz]
		}
	}
	return make([]byte, sz)
}

func releaseBuffer(p []byte) {
	if cap(p) != 0 {
		bufPool.Put(p)
	}
}
