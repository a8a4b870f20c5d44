package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"menagerie/server/internal/config"
	servernet "menagerie/server/internal/net"
	"menagerie/server/internal/net/ws"
	"menagerie/server/internal/observability"
	"menagerie/server/internal/persistence"
	"menagerie/server/internal/sim"
	"menagerie/server/internal/telemetry"
	"menagerie/server/internal/world"
	"menagerie/server/logging"
	logginglifecycle "menagerie/server/logging/lifecycle"
	loggingSinks "menagerie/server/logging/sinks"
)

const shutdownTimeout = 5 * time.Second

// Run serves the zoo until ctx is cancelled. The world is loaded from
// storage when one is configured and saved again on the way out.
func Run(ctx context.Context, cfg config.Config, logger telemetry.Logger) error {
	telemetryLogger := logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}

	fallbackLogger := log.Default()
	if provider, ok := telemetryLogger.(interface{ StandardLogger() *log.Logger }); ok {
		if candidate := provider.StandardLogger(); candidate != nil {
			fallbackLogger = candidate
		}
	}

	inspector := ws.NewHandler(nil, ws.HandlerConfig{Logger: telemetryLogger})
	sinks, closeSinks, err := buildSinks(cfg.Logging, inspector)
	if err != nil {
		return err
	}
	defer closeSinks()

	router, err := logging.NewRouter(cfg.Logging, logging.SystemClock{}, fallbackLogger, sinks)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()
	inspector.SetPublisher(router)

	w, err := world.New(cfg.World, world.Deps{Publisher: router, Logger: telemetryLogger})
	if err != nil {
		return fmt.Errorf("failed to construct world: %w", err)
	}
	w.Start(ctx)
	defer w.Close()

	store, err := openStorage(ctx, cfg.Storage, w, router, telemetryLogger)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() {
			if cerr := store.Close(); cerr != nil {
				telemetryLogger.Printf("failed to close storage: %v", cerr)
			}
		}()
	}

	counters := &telemetry.Counters{}
	engine := sim.NewEngine(w, sim.Deps{
		Logger:    telemetryLogger,
		Metrics:   counters,
		Clock:     logging.SystemClock{},
		Publisher: router,
	})
	defer engine.Close()

	saver := newAutosaver(store, cfg.Storage, router, telemetryLogger)
	loop := sim.NewLoop(engine, sim.LoopConfig{
		TickRate:        cfg.Loop.TickRate,
		CatchupMaxTicks: cfg.Loop.CatchupMaxTicks,
		CommandCapacity: cfg.Loop.CommandCapacity,
		PerActorLimit:   cfg.Loop.PerActorLimit,
		WarningStep:     cfg.Loop.WarningStep,
	}, sim.LoopHooks{
		AfterStep: func(result sim.LoopStepResult) {
			saver.afterStep(w, result.Tick)
		},
	})
	inspector.SetCommands(loop)

	stop := make(chan struct{})
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop.Run(stop)
	}()
	saverDone := make(chan struct{})
	go func() {
		defer close(saverDone)
		saver.run()
	}()

	handler := servernet.NewHTTPHandler(loop, servernet.HTTPHandlerConfig{
		Logger:        telemetryLogger,
		Observability: observability.Config{EnablePprofTrace: cfg.HTTP.EnablePprof},
		Inspector:     inspector,
		Counters:      counters,
		Router:        router,
		TickRate:      cfg.Loop.TickRate,
	})
	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}
	serveErr := make(chan error, 1)
	go func() {
		telemetryLogger.Printf("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		telemetryLogger.Printf("http shutdown: %v", err)
	}
	inspector.Close(shutdownCtx)

	close(stop)
	<-loopDone
	saver.stop()
	<-saverDone

	// The loop has stopped, so the world can be read from here.
	if err := saver.save(shutdownCtx, w.Snapshot(), w.Tick(), len(w.Regions().Areas())); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func buildSinks(cfg logging.Config, inspector *ws.Handler) (map[string]logging.Sink, func(), error) {
	sinks := map[string]logging.Sink{
		"inspector": inspector,
	}
	var files []io.Closer
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}
	if cfg.HasSink("console") {
		sinks["console"] = loggingSinks.NewConsole(os.Stdout, cfg.Console)
	}
	if cfg.HasSink("json") {
		var out io.Writer = os.Stdout
		if cfg.JSON.FilePath != "" {
			f, err := os.OpenFile(cfg.JSON.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return nil, closeAll, fmt.Errorf("open json log %s: %w", cfg.JSON.FilePath, err)
			}
			files = append(files, f)
			out = f
		}
		sinks["json"] = loggingSinks.NewJSON(out, cfg.JSON.FlushInterval)
	}
	return sinks, closeAll, nil
}

// openStorage restores the named world when a store is configured. A
// missing world is not an error; the fresh world is kept.
func openStorage(ctx context.Context, cfg config.StorageConfig, w *world.World, pub logging.Publisher, logger telemetry.Logger) (persistence.Storage, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	store, err := persistence.Open(cfg.URL, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	snapshot, err := store.LoadWorld(ctx, cfg.WorldName)
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		logger.Printf("no saved world %q, starting fresh", cfg.WorldName)
		return store, nil
	case err != nil:
		store.Close()
		return nil, fmt.Errorf("load world %q: %w", cfg.WorldName, err)
	}
	rebuilt, err := w.Restore(snapshot)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("restore world %q: %w", cfg.WorldName, err)
	}
	logginglifecycle.WorldLoaded(ctx, pub, w.Tick(), logginglifecycle.WorldPayload{
		Name:          cfg.WorldName,
		Areas:         len(w.Regions().Areas()),
		RebuiltAreas:  rebuilt,
		StorageDriver: persistence.Driver(cfg.URL),
	})
	return store, nil
}
