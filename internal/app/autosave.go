package app

import (
	"context"
	"fmt"

	"menagerie/server/internal/config"
	"menagerie/server/internal/persistence"
	"menagerie/server/internal/telemetry"
	"menagerie/server/internal/world"
	"menagerie/server/logging"
	logginglifecycle "menagerie/server/logging/lifecycle"
)

type pendingSave struct {
	snapshot *world.Snapshot
	tick     uint64
	areas    int
}

// autosaver writes snapshots off the loop goroutine. Snapshots are taken on
// the loop goroutine; at most one waits while a save is in flight and newer
// ones replace it.
type autosaver struct {
	store     persistence.Storage
	cfg       config.StorageConfig
	publisher logging.Publisher
	logger    telemetry.Logger

	queue chan pendingSave
	done  chan struct{}
}

func newAutosaver(store persistence.Storage, cfg config.StorageConfig, publisher logging.Publisher, logger telemetry.Logger) *autosaver {
	if logger == nil {
		logger = telemetry.Discard()
	}
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &autosaver{
		store:     store,
		cfg:       cfg,
		publisher: publisher,
		logger:    logger,
		queue:     make(chan pendingSave, 1),
		done:      make(chan struct{}),
	}
}

func (a *autosaver) enabled() bool {
	return a != nil && a.store != nil
}

// afterStep runs on the loop goroutine.
func (a *autosaver) afterStep(w *world.World, tick uint64) {
	if !a.enabled() || a.cfg.AutosaveTicks <= 0 || tick == 0 || tick%uint64(a.cfg.AutosaveTicks) != 0 {
		return
	}
	next := pendingSave{snapshot: w.Snapshot(), tick: tick, areas: len(w.Regions().Areas())}
	for {
		select {
		case a.queue <- next:
			return
		default:
		}
		select {
		case <-a.queue:
		default:
		}
	}
}

func (a *autosaver) run() {
	for {
		select {
		case <-a.done:
			return
		case job := <-a.queue:
			if err := a.save(context.Background(), job.snapshot, job.tick, job.areas); err != nil {
				a.logger.Printf("autosave failed: %v", err)
			}
		}
	}
}

func (a *autosaver) stop() {
	close(a.done)
}

func (a *autosaver) save(ctx context.Context, snapshot *world.Snapshot, tick uint64, areas int) error {
	if !a.enabled() {
		return nil
	}
	if err := a.store.SaveWorld(ctx, a.cfg.WorldName, snapshot); err != nil {
		return fmt.Errorf("save world %q: %w", a.cfg.WorldName, err)
	}
	logginglifecycle.WorldSaved(ctx, a.publisher, tick, logginglifecycle.WorldPayload{
		Name:          a.cfg.WorldName,
		Areas:         areas,
		StorageDriver: persistence.Driver(a.cfg.URL),
	})
	return nil
}
