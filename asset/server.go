package asset

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/depotengine/depot"
	"github.com/depotengine/depot/depotlog"
	"github.com/depotengine/depot/depotmetrics"
)

// pathUUIDNamespace seeds the deterministic UUIDs AssetServer derives
// from a (type, path) pair, so the same path always dedups to the same
// identifier across process restarts -- an arbitrary fixed namespace,
// per RFC 4122's NewSHA1 convention for name-based UUIDs.
var pathUUIDNamespace = uuid.MustParse("2f6e9c3e-9b8a-4a7a-9c1e-9b6b9b6b9b6b")

// pathUUID derives the stable identifier AssetServer addresses a
// (T, path) load by: Assets[T]'s UUID side-lane (BindUUID/GetByUUID)
// and AssetServer's own dedup map both key off this rather than the
// raw path string, so a caller holding only the UUID (e.g. from a save
// file) can still resolve the same asset a path-based Load reserved.
func pathUUID(t reflect.Type, path string) uuid.UUID {
	return uuid.NewSHA1(pathUUIDNamespace, []byte(t.String()+"|"+path))
}

// Loader decodes raw bytes read from path into an asset value, for
// every extension it declares.
type Loader interface {
	Load(path string, data []byte) (any, error)
	Extensions() []string
}

// LoaderFunc adapts a bare decode function to a Loader for a fixed
// extension set.
type LoaderFunc struct {
	Exts []string
	Fn   func(path string, data []byte) (any, error)
}

// Load implements Loader.
func (f LoaderFunc) Load(path string, data []byte) (any, error) { return f.Fn(path, data) }

// Extensions implements Loader.
func (f LoaderFunc) Extensions() []string { return f.Exts }

type loadResult struct {
	id    AssetIndex
	value any
}

type dedupKey struct {
	id  uuid.UUID
	typ reflect.Type
}

// AssetServer dedups repeated Load[T](path) calls through a
// (path, type) -> UntypedHandle map, routes decode work to a per-type
// extension loader registry, and runs load tasks on a bounded
// background worker pool (golang.org/x/sync/semaphore, per
// SPEC_FULL.md §B), per spec §4.o.
type AssetServer struct {
	mu      sync.Mutex
	handles map[dedupKey]UntypedHandle
	loaders map[reflect.Type]map[string]Loader
	results map[reflect.Type]chan loadResult

	sem *semaphore.Weighted

	logger  depotlog.Logger
	metrics *depotmetrics.AssetCollector
}

// ServerOption configures an AssetServer.
type ServerOption func(*AssetServer)

// WithLogger attaches a depotlog.Logger for load diagnostics.
func WithLogger(l depotlog.Logger) ServerOption {
	return func(s *AssetServer) { s.logger = l }
}

// WithMetrics attaches a depotmetrics.AssetCollector, fed one
// AssetSummary per load task.
func WithMetrics(m *depotmetrics.AssetCollector) ServerOption {
	return func(s *AssetServer) { s.metrics = m }
}

// NewAssetServer builds an AssetServer whose background I/O executor
// runs at most workers load tasks concurrently.
func NewAssetServer(workers int, opts ...ServerOption) *AssetServer {
	if workers < 1 {
		workers = 1
	}
	s := &AssetServer{
		handles: make(map[dedupKey]UntypedHandle),
		loaders: make(map[reflect.Type]map[string]Loader),
		results: make(map[reflect.Type]chan loadResult),
		sem:     semaphore.NewWeighted(int64(workers)),
		logger:  depotlog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterLoader registers l against T for every extension l declares.
func RegisterLoader[T any](s *AssetServer, l Loader) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	s.mu.Lock()
	defer s.mu.Unlock()
	byExt, ok := s.loaders[t]
	if !ok {
		byExt = make(map[string]Loader)
		s.loaders[t] = byExt
	}
	for _, ext := range l.Extensions() {
		byExt[strings.ToLower(ext)] = l
	}
}

func (s *AssetServer) resultsChanFor(t reflect.Type) chan loadResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.results[t]
	if !ok {
		ch = make(chan loadResult, 256)
		s.results[t] = ch
	}
	return ch
}

// Load looks up or reserves a handle for (path, T), deduplicating
// repeated calls against the same pair, and on first call enqueues a
// background task that reads path, dispatches to the loader matching
// its extension, and delivers the decoded value for a later
// HandleResults[T] call to insert. The returned handle is valid
// immediately; its value becomes observable once that insert happens.
func Load[T any](s *AssetServer, assets *Assets[T], path string) *StrongHandle {
	t := reflect.TypeOf((*T)(nil)).Elem()
	pathID := pathUUID(t, path)
	key := dedupKey{id: pathID, typ: t}

	s.mu.Lock()
	if existing, ok := s.handles[key]; ok {
		s.mu.Unlock()
		if h, ok := existing.Strong(); ok {
			return h
		}
	}
	id := assets.allocator.Reserve()
	handle := newStrongHandle(id, assets.destroyed, true, path, pathID)
	s.handles[key] = StrongUntyped(handle)
	s.mu.Unlock()

	assets.BindUUID(pathID, id)

	go s.loadTask(t, id, path)
	return handle
}

func (s *AssetServer) loadTask(t reflect.Type, id AssetIndex, path string) {
	ctx := context.Background()
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer s.sem.Release(1)

	start := time.Now()
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))

	value, err := s.decode(t, ext, path)

	if s.metrics != nil {
		s.metrics.Observe(depotmetrics.AssetSummary{
			Extension:       ext,
			DurationSeconds: time.Since(start).Seconds(),
			Err:             err,
		})
	}
	if err != nil {
		s.logger.Error("asset load failed", "path", path, "error", err)
		return
	}

	ch := s.resultsChanFor(t)
	select {
	case ch <- loadResult{id: id, value: value}:
	default:
		s.logger.Warn("asset results channel full, dropping completed load", "path", path)
	}
}

// decode reads path and runs it through the loader registered for
// (t, ext). Failure modes match spec §4.o: a missing loader or a
// loader error both leave the handle's index permanently reserved
// (observable as "never loaded") -- nothing here releases it; only
// the handle's own eventual destruction does that.
func (s *AssetServer) decode(t reflect.Type, ext, path string) (any, error) {
	s.mu.Lock()
	byExt, ok := s.loaders[t]
	var loader Loader
	if ok {
		loader, ok = byExt[ext]
	}
	s.mu.Unlock()
	if !ok {
		return nil, depot.LoaderMissingError{Extension: ext}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, depot.LoadFailedError{Path: path, Cause: err}
	}
	v, err := loader.Load(path, data)
	if err != nil {
		return nil, depot.LoadFailedError{Path: path, Cause: err}
	}
	return v, nil
}

// HandleResults drains every completed load task for T queued since
// the last call, inserting each into assets and publishing
// AssetLoadedWithDependencies. Intended to be called once per frame
// from a main-world handle_events system, the same way
// Assets[T].HandleEvents processes destructions (spec §4.o).
func HandleResults[T any](s *AssetServer, assets *Assets[T]) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	ch := s.resultsChanFor(t)
	for {
		select {
		case res := <-ch:
			if v, ok := res.value.(T); ok {
				if _, ok := assets.Insert(res.id, v); ok {
					assets.publish(AssetLoadedWithDependencies, res.id)
				}
			}
		default:
			return
		}
	}
}
