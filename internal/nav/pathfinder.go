package nav

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"menagerie/server/internal/grid"
	"menagerie/server/logging"
	loggingnavigation "menagerie/server/logging/navigation"
)

const (
	DefaultWorkers   = 2
	DefaultQueueSize = 256
)

// Status is the outcome of a path request.
type Status uint8

const (
	StatusPending Status = iota
	StatusFound
	StatusNoPath
	StatusCancelled
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFound:
		return "found"
	case StatusNoPath:
		return "no_path"
	case StatusCancelled:
		return "cancelled"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Result is the resolved state of a handle. Path runs from start to end
// inclusive; a request whose start equals its end resolves Found with an
// empty path.
type Result struct {
	Status     Status
	Path       []grid.Tile
	Expanded   int
	Generation uint64
}

// AreaOracle lets the pathfinder refuse requests between disconnected areas
// without searching.
type AreaOracle interface {
	Reachable(from, to grid.Tile) bool
}

// Config sizes the worker pool and registers custom profiles.
type Config struct {
	Workers   int
	QueueSize int
	Profiles  map[AccessibilityType]Profile
}

func (cfg Config) normalized() Config {
	normalized := cfg
	if normalized.Workers <= 0 {
		normalized.Workers = DefaultWorkers
	}
	if normalized.QueueSize <= 0 {
		normalized.QueueSize = DefaultQueueSize
	}
	return normalized
}

// Deps carries the collaborators of a Pathfinder.
type Deps struct {
	Areas     AreaOracle
	Publisher logging.Publisher
}

// Stats counts request outcomes since construction.
type Stats struct {
	Requests     uint64 `json:"requests"`
	Computations uint64 `json:"computations"`
	DedupHits    uint64 `json:"dedupHits"`
	Found        uint64 `json:"found"`
	NoPath       uint64 `json:"noPath"`
	Cancelled    uint64 `json:"cancelled"`
	Rejected     uint64 `json:"rejected"`
	EarlyRejects uint64 `json:"earlyRejects"`
	InFlight     int    `json:"inFlight"`
}

type requestKey struct {
	start      grid.Tile
	end        grid.Tile
	access     AccessibilityType
	generation uint64
}

// Handle is shared by every caller that issued the same request. Callers
// poll IsComplete and Result from the update thread or block on Wait. Each
// caller holds the handle until it cancels; the search is only abandoned
// once the last holder lets go.
type Handle struct {
	key       requestKey
	traceID   string
	done      chan struct{}
	once      sync.Once
	result    Result
	cancelled atomic.Bool

	// guarded by Pathfinder.mu
	holders int
}

func newHandle(key requestKey) *Handle {
	return &Handle{key: key, traceID: uuid.NewString(), done: make(chan struct{}), holders: 1}
}

func (h *Handle) resolve(result Result) bool {
	resolved := false
	h.once.Do(func() {
		h.result = result
		close(h.done)
		resolved = true
	})
	return resolved
}

// TraceID correlates log events for this request.
func (h *Handle) TraceID() string { return h.traceID }

// Start returns the requested start tile.
func (h *Handle) Start() grid.Tile { return h.key.start }

// End returns the requested goal tile.
func (h *Handle) End() grid.Tile { return h.key.end }

// Accessibility returns the requested profile.
func (h *Handle) Accessibility() AccessibilityType { return h.key.access }

// Done is closed once the handle resolves.
func (h *Handle) Done() <-chan struct{} { return h.done }

// IsComplete reports whether the handle has resolved.
func (h *Handle) IsComplete() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Result returns the outcome once complete.
func (h *Handle) Result() (Result, bool) {
	if !h.IsComplete() {
		return Result{Status: StatusPending}, false
	}
	return h.result, true
}

// Wait blocks until the handle resolves or ctx ends.
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		return Result{Status: StatusPending}, ctx.Err()
	}
}

// Pathfinder runs A* searches on a fixed pool of workers. RequestPath and
// Cancel are called from the update thread; workers only read the current
// Grid snapshot.
type Pathfinder struct {
	cfg       Config
	profiles  map[AccessibilityType]Profile
	areas     AreaOracle
	publisher logging.Publisher

	grid atomic.Pointer[Grid]
	jobs chan *Handle

	mu       sync.Mutex
	inflight map[requestKey]*Handle
	closed   bool

	startOnce sync.Once
	closeOnce sync.Once
	stop      context.CancelFunc
	wg        sync.WaitGroup

	requests     atomic.Uint64
	computations atomic.Uint64
	dedupHits    atomic.Uint64
	found        atomic.Uint64
	noPath       atomic.Uint64
	cancelled    atomic.Uint64
	rejected     atomic.Uint64
	earlyRejects atomic.Uint64
}

// New builds a pathfinder. Workers do not run until Start.
func New(cfg Config, deps Deps) *Pathfinder {
	normalized := cfg.normalized()
	profiles := DefaultProfiles()
	for access, profile := range normalized.Profiles {
		profiles[access] = profile
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Pathfinder{
		cfg:       normalized,
		profiles:  profiles,
		areas:     deps.Areas,
		publisher: publisher,
		jobs:      make(chan *Handle, normalized.QueueSize),
		inflight:  make(map[requestKey]*Handle),
	}
}

// SetGrid publishes a new snapshot. Requests issued afterwards search it.
func (p *Pathfinder) SetGrid(g *Grid) {
	p.grid.Store(g)
}

// Grid returns the current snapshot.
func (p *Pathfinder) Grid() *Grid {
	return p.grid.Load()
}

// Profile returns the rules for access, falling back to AvoidWater.
func (p *Pathfinder) Profile(access AccessibilityType) Profile {
	if profile, ok := p.profiles[access]; ok {
		return profile
	}
	return p.profiles[AvoidWater]
}

// Start launches the worker pool.
func (p *Pathfinder) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		workerCtx, cancel := context.WithCancel(ctx)
		p.stop = cancel
		for i := 0; i < p.cfg.Workers; i++ {
			p.wg.Add(1)
			go p.worker(workerCtx)
		}
	})
}

// Close stops the workers. Requests still queued resolve as cancelled.
func (p *Pathfinder) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		if p.stop != nil {
			p.stop()
		}
		p.wg.Wait()
		for {
			select {
			case h := <-p.jobs:
				p.forget(h)
				h.resolve(Result{Status: StatusCancelled, Generation: h.key.generation})
			default:
				return
			}
		}
	})
}

// RequestPath returns a handle for the route from start to end. Identical
// in-flight requests share one handle; trivial and impossible requests come
// back already resolved.
func (p *Pathfinder) RequestPath(start, end grid.Tile, access AccessibilityType) *Handle {
	p.requests.Add(1)
	snapshot := p.grid.Load()
	var generation uint64
	if snapshot != nil {
		generation = snapshot.Generation()
	}
	key := requestKey{start: start, end: end, access: access, generation: generation}

	if result, ok := p.immediate(snapshot, key); ok {
		h := newHandle(key)
		p.settle(h, result)
		return h
	}

	p.mu.Lock()
	if existing, ok := p.inflight[key]; ok {
		existing.holders++
		p.mu.Unlock()
		p.dedupHits.Add(1)
		return existing
	}
	h := newHandle(key)
	if p.closed {
		p.mu.Unlock()
		h.cancelled.Store(true)
		p.cancelled.Add(1)
		h.resolve(Result{Status: StatusCancelled, Generation: generation})
		return h
	}
	queued := false
	select {
	case p.jobs <- h:
		p.inflight[key] = h
		queued = true
	default:
	}
	p.mu.Unlock()
	if !queued {
		p.rejected.Add(1)
		h.resolve(Result{Status: StatusRejected, Generation: generation})
		loggingnavigation.PathRejected(context.Background(), p.publisher, h.traceID, p.payload(h, h.result))
	}
	return h
}

// immediate resolves requests that never need a search: no snapshot,
// inaccessible endpoints, start equal to end, or goals in another area.
func (p *Pathfinder) immediate(snapshot *Grid, key requestKey) (Result, bool) {
	if snapshot == nil {
		return Result{Status: StatusNoPath}, true
	}
	profile := p.Profile(key.access)
	if profile.cost(snapshot.Flags(key.start)) <= 0 || profile.cost(snapshot.Flags(key.end)) <= 0 {
		return Result{Status: StatusNoPath, Generation: key.generation}, true
	}
	if key.start == key.end {
		return Result{Status: StatusFound, Generation: key.generation}, true
	}
	if p.areas != nil && !p.areas.Reachable(key.start, key.end) {
		p.earlyRejects.Add(1)
		return Result{Status: StatusNoPath, Generation: key.generation}, true
	}
	return Result{}, false
}

// Cancel releases one caller's hold on h. When the last holder cancels, h
// resolves as cancelled and its key is freed so an identical request starts
// fresh; a worker already searching drops its result.
func (p *Pathfinder) Cancel(h *Handle) {
	if h == nil {
		return
	}
	p.mu.Lock()
	if h.holders > 1 {
		h.holders--
		p.mu.Unlock()
		return
	}
	h.holders = 0
	if current, ok := p.inflight[h.key]; ok && current == h {
		delete(p.inflight, h.key)
	}
	p.mu.Unlock()
	h.cancelled.Store(true)
	result := Result{Status: StatusCancelled, Generation: h.key.generation}
	if h.resolve(result) {
		p.cancelled.Add(1)
		loggingnavigation.PathCancelled(context.Background(), p.publisher, h.traceID, p.payload(h, result))
	}
}

// Nearest finds the closest tile access can stand on in the current
// snapshot.
func (p *Pathfinder) Nearest(t grid.Tile, access AccessibilityType) (grid.Tile, bool) {
	snapshot := p.grid.Load()
	if snapshot == nil {
		return grid.Tile{}, false
	}
	return snapshot.Nearest(t, p.Profile(access))
}

// Stats returns a point-in-time copy of the counters.
func (p *Pathfinder) Stats() Stats {
	p.mu.Lock()
	inflight := len(p.inflight)
	p.mu.Unlock()
	return Stats{
		Requests:     p.requests.Load(),
		Computations: p.computations.Load(),
		DedupHits:    p.dedupHits.Load(),
		Found:        p.found.Load(),
		NoPath:       p.noPath.Load(),
		Cancelled:    p.cancelled.Load(),
		Rejected:     p.rejected.Load(),
		EarlyRejects: p.earlyRejects.Load(),
		InFlight:     inflight,
	}
}

func (p *Pathfinder) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case h := <-p.jobs:
			p.run(ctx, h)
		}
	}
}

func (p *Pathfinder) run(ctx context.Context, h *Handle) {
	if h.cancelled.Load() {
		return
	}
	snapshot := p.grid.Load()
	if snapshot == nil {
		p.finish(h, Result{Status: StatusNoPath, Generation: h.key.generation})
		return
	}
	p.computations.Add(1)
	outcome := snapshot.search(h.key.start, h.key.end, p.Profile(h.key.access), func() bool {
		return h.cancelled.Load() || ctx.Err() != nil
	})
	if outcome.cancelled {
		if !h.cancelled.Load() {
			// stopped by Close
			p.forget(h)
			h.resolve(Result{Status: StatusCancelled, Generation: snapshot.Generation()})
		}
		return
	}
	result := Result{Status: StatusNoPath, Expanded: outcome.expanded, Generation: snapshot.Generation()}
	if outcome.found {
		result.Status = StatusFound
		result.Path = outcome.path
	}
	p.finish(h, result)
}

func (p *Pathfinder) finish(h *Handle, result Result) {
	p.forget(h)
	if h.cancelled.Load() {
		return
	}
	if !h.resolve(result) {
		return
	}
	if result.Status == StatusFound {
		p.found.Add(1)
	} else {
		p.noPath.Add(1)
	}
	loggingnavigation.PathResolved(context.Background(), p.publisher, h.traceID, p.payload(h, result))
}

// settle resolves a handle that never reached the queue.
func (p *Pathfinder) settle(h *Handle, result Result) {
	h.resolve(result)
	if result.Status == StatusFound {
		p.found.Add(1)
	} else {
		p.noPath.Add(1)
	}
}

func (p *Pathfinder) forget(h *Handle) {
	p.mu.Lock()
	if current, ok := p.inflight[h.key]; ok && current == h {
		delete(p.inflight, h.key)
	}
	p.mu.Unlock()
}

func (p *Pathfinder) payload(h *Handle, result Result) loggingnavigation.PathPayload {
	return loggingnavigation.PathPayload{
		StartX:     h.key.start.X,
		StartY:     h.key.start.Y,
		EndX:       h.key.end.X,
		EndY:       h.key.end.Y,
		Profile:    h.key.access.String(),
		Status:     result.Status.String(),
		Length:     len(result.Path),
		Expanded:   result.Expanded,
		Generation: result.Generation,
	}
}
