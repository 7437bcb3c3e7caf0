package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"pkg.world.dev/world-engine/inspector/codec"
	"pkg.world.dev/world-engine/inspector/ecs"
	"pkg.world.dev/world-engine/inspector/inspector"
	"pkg.world.dev/world-engine/inspector/server"
	"pkg.world.dev/world-engine/inspector/snapshot"
	"pkg.world.dev/world-engine/inspector/telemetry"
	"pkg.world.dev/world-engine/inspector/tracker"
)

const shutdownTimeout = 10 * time.Second

func serve(ctx context.Context, opts serveOptions) error {
	tel, err := telemetry.New("inspector")
	if err != nil {
		return eris.Wrap(err, "failed to initialize telemetry")
	}
	tel.Install()
	logger := tel.Component("inspectord")
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("telemetry shutdown error")
		}
	}()

	world, err := ecs.NewWorld(nil)
	if err != nil {
		return err
	}
	kinds, err := registerDemo(world)
	if err != nil {
		return eris.Wrap(err, "failed to register demo components")
	}

	var store *snapshot.Redis
	if opts.RedisAddress != "" {
		client := redis.NewClient(&redis.Options{Addr: opts.RedisAddress})
		defer client.Close()
		store = snapshot.NewRedis(client, opts.RedisNamespace, tel.Component("snapshot"))
	}
	if err := populate(ctx, world, kinds, store, logger); err != nil {
		return err
	}

	inspectorLogger := tel.Logger
	insp, err := inspector.New(world, inspector.Options{
		TickRate: opts.TickRate,
		Logger:   &inspectorLogger,
		Tracer:   tel.Tracer,
	})
	if err != nil {
		return eris.Wrap(err, "failed to create inspector")
	}
	insp.RegisterSystem("spin", kinds.spin(opts.TickRate))
	if store != nil {
		insp.RegisterSystem("snapshot", snapshotSystem(ctx, store, opts.SnapshotEvery, logger))
	}

	serverLogger := tel.Logger
	srv, err := server.New(insp, server.Options{
		Address:      opts.Address,
		StreamBuffer: opts.StreamBuffer,
		Logger:       &serverLogger,
	})
	if err != nil {
		return eris.Wrap(err, "failed to create server")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return insp.Run(gctx) })
	g.Go(func() error { return srv.Serve(gctx) })
	runErr := g.Wait()

	// The step loop has stopped, so the world can be read from here.
	if store != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := store.Save(saveCtx, world); err != nil {
			logger.Error().Err(err).Msg("failed to save final snapshot")
		}
	}
	logger.Info().Msg("inspectord stopped")
	return runErr
}

// populate restores the last snapshot, or spawns the demo entities when there is none.
func populate(ctx context.Context, w *ecs.World, k demoKinds, store *snapshot.Redis, logger zerolog.Logger) error {
	if store != nil {
		err := store.Load(ctx, w)
		if err == nil {
			return nil
		}
		if !eris.Is(err, snapshot.ErrNoSnapshot) {
			return eris.Wrap(err, "failed to restore snapshot")
		}
		logger.Info().Msg("no snapshot found, spawning demo world")
	}
	return spawnDemo(w, k)
}

// snapshotSystem saves the world every n steps. Failures are logged and don't stop the loop.
func snapshotSystem(ctx context.Context, store *snapshot.Redis, n uint32, logger zerolog.Logger) inspector.System {
	return func(w *ecs.World) error {
		if uint32(w.Tick())%n != 0 {
			return nil
		}
		if err := store.Save(ctx, w); err != nil {
			logger.Warn().Err(err).Msg("failed to save snapshot")
		}
		return nil
	}
}

// exportSchema returns the type registry of an empty demo world.
func exportSchema() ([]byte, error) {
	w, err := ecs.NewWorld(nil)
	if err != nil {
		return nil, err
	}
	if _, err := registerDemo(w); err != nil {
		return nil, err
	}
	registry := tracker.NewTypeRegistry(w.Catalog(), w, zerolog.Nop())
	return codec.Marshal(registry.Export())
}
