package snapshot

import (
	"bytes"
	"context"
	"errors"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"pkg.world.dev/world-engine/inspector/ecs"
)

// Redis saves world snapshots under a key namespace.
type Redis struct {
	client    redis.Cmdable
	namespace string
	tracer    trace.Tracer
	logger    zerolog.Logger
}

func NewRedis(client redis.Cmdable, namespace string, logger zerolog.Logger) *Redis {
	return &Redis{
		client:    client,
		namespace: namespace,
		tracer:    otel.Tracer("snapshot"),
		logger:    logger,
	}
}

// Save writes the snapshot of w and its tick in one transaction.
func (r *Redis) Save(ctx context.Context, w *ecs.World) error {
	ctx, span := r.tracer.Start(ctx, "snapshot.save")
	defer span.End()

	if err := r.save(ctx, w); err != nil {
		span.SetStatus(codes.Error, eris.ToString(err, true))
		span.RecordError(err)
		return err
	}
	span.SetAttributes(attribute.Int("entities", w.Len()), attribute.Int64("tick", int64(w.Tick())))
	return nil
}

func (r *Redis) save(ctx context.Context, w *ecs.World) error {
	doc, err := Capture(w, r.logger)
	if err != nil {
		return eris.Wrap(err, "failed to capture world")
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return eris.Wrap(err, "failed to marshal snapshot")
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, worldKey(r.namespace), data, 0)
	pipe.Set(ctx, tickKey(r.namespace), uint64(w.Tick()), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return eris.Wrap(err, "failed to write snapshot")
	}
	r.logger.Debug().Int("entities", len(doc.Entities)).Uint32("tick", uint32(w.Tick())).Msg("saved snapshot")
	return nil
}

// Load restores the saved snapshot into the empty world w, including its tick. It returns
// ErrNoSnapshot when nothing has been saved.
func (r *Redis) Load(ctx context.Context, w *ecs.World) error {
	ctx, span := r.tracer.Start(ctx, "snapshot.load")
	defer span.End()

	if err := r.load(ctx, w); err != nil {
		if !eris.Is(err, ErrNoSnapshot) {
			span.SetStatus(codes.Error, eris.ToString(err, true))
			span.RecordError(err)
		}
		return err
	}
	return nil
}

func (r *Redis) load(ctx context.Context, w *ecs.World) error {
	data, err := r.client.Get(ctx, worldKey(r.namespace)).Bytes()
	if errors.Is(err, redis.Nil) {
		return eris.Wrapf(ErrNoSnapshot, "namespace %s", r.namespace)
	}
	if err != nil {
		return eris.Wrap(err, "failed to read snapshot")
	}
	tick, err := r.client.Get(ctx, tickKey(r.namespace)).Uint64()
	if err != nil {
		return eris.Wrap(err, "failed to read snapshot tick")
	}

	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return eris.Wrap(err, "failed to unmarshal snapshot")
	}
	if w.Len() != 0 {
		return eris.Wrapf(ErrWorldNotEmpty, "world has %d entities", w.Len())
	}
	w.SetTick(ecs.Tick(tick))
	if err := Apply(w, doc, r.logger); err != nil {
		return err
	}
	r.logger.Info().Int("entities", len(doc.Entities)).Uint64("tick", tick).Msg("restored snapshot")
	return nil
}

// Clear deletes the saved snapshot.
func (r *Redis) Clear(ctx context.Context) error {
	return eris.Wrap(r.client.Del(ctx, worldKey(r.namespace), tickKey(r.namespace)).Err(), "failed to clear snapshot")
}
