// Package inspector runs the step loop that ties the Store, the change tracker and the command
// executor together. One step applies deferred disconnects, drains the mailbox (connects, calls and
// commands in arrival order), runs the registered systems, scans every connected client and
// advances the Store tick. Everything except the Mailbox is owned by the goroutine calling Step.
package inspector

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"pkg.world.dev/world-engine/inspector/command"
	"pkg.world.dev/world-engine/inspector/ecs"
	"pkg.world.dev/world-engine/inspector/shadow"
	"pkg.world.dev/world-engine/inspector/tracker"
)

// System mutates the world once per step, after commands and before scans.
type System func(w *ecs.World) error

type system struct {
	name string
	fn   System
}

type Inspector struct {
	world    *ecs.World
	registry *tracker.TypeRegistry
	shadow   *shadow.State
	tracker  *tracker.Tracker
	executor *command.Executor
	sessions SessionStore
	mailbox  *Mailbox

	subscribers map[ClientID]Deliver
	closing     []ClientID // Disconnected clients whose sessions go at the next step boundary
	systems     []system

	running atomic.Bool
	options Options
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// New creates an inspector over world. Visibility propagation is always registered as the first
// system, and ViewVisibility is always deduplicated by value.
func New(world *ecs.World, opts Options) (*Inspector, error) {
	options := newDefaultOptions()
	options.apply(opts)
	if err := options.validate(); err != nil {
		return nil, eris.Wrap(err, "invalid inspector options")
	}

	volatile := append([]ecs.ComponentID{world.Builtins().ViewVisibility}, options.Volatile...)
	state := shadow.NewState(volatile...)
	registry := tracker.NewTypeRegistry(world.Catalog(), world, options.logger("registry"))

	i := &Inspector{
		world:       world,
		registry:    registry,
		shadow:      state,
		tracker:     tracker.New(world, registry, state, options.logger("tracker")),
		executor:    command.NewExecutor(world, state, options.logger("command")),
		sessions:    NewSessionStore(),
		mailbox:     newMailbox(),
		subscribers: make(map[ClientID]Deliver),
		closing:     make([]ClientID, 0),
		systems:     make([]system, 0),
		options:     options,
		logger:      options.logger("inspector"),
		tracer:      options.tracer(),
	}
	i.RegisterSystem("visibility", func(w *ecs.World) error { return w.PropagateVisibility() })
	return i, nil
}

func (i *Inspector) World() *ecs.World { return i.world }
func (i *Inspector) Registry() *tracker.TypeRegistry { return i.registry }
func (i *Inspector) Shadow() *shadow.State { return i.shadow }
func (i *Inspector) Mailbox() *Mailbox { return i.mailbox }
func (i *Inspector) Sessions() *SessionStore { return &i.sessions }

// RegisterSystem adds a system. Systems run in registration order.
func (i *Inspector) RegisterSystem(name string, fn System) {
	i.systems = append(i.systems, system{name: name, fn: fn})
}

// Tick scans the world for a client and returns the events it has not seen. The session is created
// on the first call. Calling Tick twice in the same step returns nothing the second time.
func (i *Inspector) Tick(client ClientID) []tracker.Event {
	session, created := i.sessions.GetOrCreate(client)
	if created {
		i.logger.Info().Str("client", string(client)).Msg("session opened")
	}
	since := session.LastRun()
	events := i.tracker.Scan(session)
	i.logger.Trace().
		Str("client", string(client)).
		Uint32("since", uint32(since)).
		Int("events", len(events)).
		Int("entities", session.Entities()).
		Msg("scanned world")
	return events
}

// Execute applies a command on behalf of a client.
func (i *Inspector) Execute(client ClientID, cmd command.Command) (any, error) {
	result, err := i.executor.Execute(cmd)
	if err != nil {
		return nil, err
	}
	i.logger.Debug().Str("client", string(client)).Str("method", cmd.Method()).Msg("command applied")
	return result, nil
}

// Disconnect stops delivering events to a client. Its session is removed at the next step
// boundary.
func (i *Inspector) Disconnect(client ClientID) {
	delete(i.subscribers, client)
	for _, c := range i.closing {
		if c == client {
			return
		}
	}
	i.closing = append(i.closing, client)
}

// Step runs one step of the loop.
func (i *Inspector) Step(ctx context.Context) error {
	_, span := i.tracer.Start(ctx, "inspector.step", trace.WithAttributes(
		attribute.Int64("tick", int64(i.world.Tick())),
	))
	defer span.End()

	i.closeSessions()

	commands := 0
	for _, msg := range i.mailbox.drain() {
		switch msg.kind {
		case messageConnect:
			i.subscribers[msg.client] = msg.deliver
			i.logger.Info().Str("client", string(msg.client)).Msg("client connected")
		case messageCall:
			msg.call(i)
		case messageCommand:
			commands++
			result, err := i.Execute(msg.client, msg.command)
			if msg.reply != nil {
				msg.reply(result, err)
			}
		case messageDisconnect:
			i.Disconnect(msg.client)
		}
	}

	for _, s := range i.systems {
		if err := s.fn(i.world); err != nil {
			err = eris.Wrapf(err, "system %s failed", s.name)
			span.SetStatus(codes.Error, eris.ToString(err, true))
			span.RecordError(err)
			return err
		}
	}

	i.shadow.Sweep(i.world)

	for _, client := range i.subscriberIDs() {
		events := i.Tick(client)
		if len(events) == 0 {
			continue
		}
		if err := i.subscribers[client](events); err != nil {
			i.logger.Warn().Err(err).Str("client", string(client)).Msg("dropping client that failed to receive events")
			i.Disconnect(client)
		}
	}

	span.SetAttributes(
		attribute.Int("sessions", i.sessions.Len()),
		attribute.Int("commands", commands),
	)

	tick := i.world.Tick()
	i.world.Advance()
	if i.options.OnStep != nil {
		i.options.OnStep(tick)
	}
	return nil
}

// Run steps at the configured rate until ctx is cancelled.
func (i *Inspector) Run(ctx context.Context) error {
	tickCh := i.options.TickChannel
	if tickCh == nil {
		ticker := time.NewTicker(time.Duration(float64(time.Second) / i.options.TickRate))
		defer ticker.Stop()
		tickCh = ticker.C
	}

	i.running.Store(true)
	defer i.running.Store(false)

	i.logger.Info().Float64("tick_rate", i.options.TickRate).Msg("starting step loop")
	for {
		select {
		case <-ctx.Done():
			i.closeAll()
			i.logger.Info().Msg("step loop stopped")
			return nil
		case <-tickCh:
			if err := i.Step(ctx); err != nil {
				return eris.Wrap(err, "failed to run step")
			}
		}
	}
}

// IsRunning reports whether Run is driving the step loop. It is safe for concurrent use.
func (i *Inspector) IsRunning() bool {
	return i.running.Load()
}

func (i *Inspector) closeSessions() {
	for _, client := range i.closing {
		if i.sessions.Remove(client) {
			i.logger.Info().Str("client", string(client)).Msg("session closed")
		}
	}
	i.closing = i.closing[:0]
}

// closeAll drops every subscriber and session.
func (i *Inspector) closeAll() {
	for _, client := range i.subscriberIDs() {
		i.Disconnect(client)
	}
	for _, client := range i.sessions.Clients() {
		i.Disconnect(client)
	}
	i.closeSessions()
}

func (i *Inspector) subscriberIDs() []ClientID {
	out := make([]ClientID, 0, len(i.subscribers))
	for client := range i.subscribers {
		out = append(out, client)
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}
