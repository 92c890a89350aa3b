package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/roach88/supercollider/internal/classify"
	"github.com/roach88/supercollider/internal/engine"
	"github.com/roach88/supercollider/internal/handler"
	"github.com/roach88/supercollider/internal/object"
	"github.com/roach88/supercollider/internal/store"
)

// Option configures a scenario run.
type Option func(*runConfig)

type runConfig struct {
	workers    int
	logger     *slog.Logger
	runIDs     RunIDGenerator
	store      *store.Store
	registry   *classify.Registry
	engineOpts []engine.Option
}

// WithWorkers overrides the scenario's worker count.
func WithWorkers(n int) Option {
	return func(c *runConfig) { c.workers = n }
}

// WithLogger sets the logger passed to the engine and world.
//
// Default: discards everything
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRunIDGenerator sets how run IDs are issued when the scenario has none.
//
// Default: UUIDv7Generator
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(c *runConfig) { c.runIDs = g }
}

// WithStore persists the run and its trace.
func WithStore(s *store.Store) Option {
	return func(c *runConfig) { c.store = s }
}

// WithRegistry replaces the built-in handler registry.
func WithRegistry(r *classify.Registry) Option {
	return func(c *runConfig) { c.registry = r }
}

// WithEngineOptions passes extra options to the engine. They are applied
// before the scenario's worker count.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(c *runConfig) { c.engineOpts = append(c.engineOpts, opts...) }
}

// Harness steps one scenario through the collision engine.
//
// Per frame:
//  1. advance the clock by frame_ms
//  2. remove objects whose kill_frame is reached, spawn scheduled ones
//  3. integrate motion (LastPos = Pos; Pos += Vel*dt)
//  4. age weapons; remove expired ones
//  5. Step the engine over every live object
//  6. remove objects the execute phase destroyed
type Harness struct {
	scenario *Scenario
	arena    *object.Arena
	world    *handler.World
	engine   *engine.Engine
	logger   *slog.Logger

	handles map[string]object.Handle
	names   map[object.Handle]string

	result *Result
}

// Run executes a scenario and returns the result.
//
// Each run uses a fresh arena, world and engine. The trace is identical for
// any worker count of two or more; with one worker every pair takes the
// sequential path and the path column differs.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs by default
		runIDs: UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.registry == nil {
		cfg.registry = classify.Default()
	}

	capacity := scenario.Capacity
	if capacity == 0 {
		capacity = len(scenario.Objects)
	}

	h := &Harness{
		scenario: scenario,
		arena:    object.NewArena(capacity),
		world:    handler.NewWorld(cfg.logger),
		logger:   cfg.logger,
		handles:  make(map[string]object.Handle, len(scenario.Objects)),
		names:    make(map[object.Handle]string, len(scenario.Objects)),
		result:   NewResult(),
	}

	engOpts := []engine.Option{
		engine.WithLogger(cfg.logger),
		engine.WithMutator(h.world),
		engine.WithObserver(engine.ObserverFunc(h.observe)),
	}
	engOpts = append(engOpts, cfg.engineOpts...)
	if scenario.Workers > 0 {
		engOpts = append(engOpts, engine.WithWorkers(scenario.Workers))
	}
	if cfg.workers > 0 {
		engOpts = append(engOpts, engine.WithWorkers(cfg.workers))
	}

	eng, err := engine.New(h.arena, cfg.registry, engOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	defer eng.Close()
	h.engine = eng

	runID := scenario.RunID
	if runID == "" {
		runID = cfg.runIDs.Generate()
	}
	h.result.RunID = runID
	h.result.Workers = eng.Workers()

	if cfg.store != nil {
		_, err := cfg.store.WriteRun(ctx, store.Run{
			ID:       runID,
			Scenario: scenario.Name,
			Workers:  eng.Workers(),
			Frames:   scenario.Frames,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to record run: %w", err)
		}
	}

	for i := 0; i < scenario.Frames; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mark := len(h.result.Trace)
		if err := h.stepFrame(); err != nil {
			return nil, err
		}
		if cfg.store != nil {
			if err := cfg.store.WriteCollisions(ctx, collisionRows(runID, h.result.Trace[mark:])); err != nil {
				return nil, fmt.Errorf("failed to record frame %d: %w", eng.Clock().Frame(), err)
			}
		}
	}

	h.collectFinal()
	h.result.WorkersRecord = eng.WorkersRecord()
	h.result.Digest = Digest(h.result.Lines())

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}

	if cfg.store != nil {
		if err := cfg.store.FinishRun(ctx, runID, h.result.Digest); err != nil {
			return nil, fmt.Errorf("failed to finish run: %w", err)
		}
	}

	h.logger.Info("scenario completed",
		"scenario", scenario.Name,
		"run_id", runID,
		"frames", scenario.Frames,
		"events", len(h.result.Trace),
		"workers_record", h.result.WorkersRecord,
		"digest", h.result.Digest,
	)

	return h.result, nil
}

func (h *Harness) stepFrame() error {
	frame := h.engine.Clock().Advance(h.scenario.FrameMs)
	dt := float64(h.scenario.FrameMs) / 1000

	if err := h.schedule(int(frame)); err != nil {
		return fmt.Errorf("frame %d: %w", frame, err)
	}
	h.integrate(dt)
	h.expire(frame, dt)

	h.engine.Step(h.arena.Live())
	if h.engine.Halted() {
		return fmt.Errorf("frame %d: collision engine halted", frame)
	}

	h.reap(frame)

	stats := h.engine.Stats()
	h.logger.Debug("frame stepped",
		"frame", frame,
		"live", h.arena.Len(),
		"admitted", stats.Admitted,
		"executed", stats.Executed,
		"applied", stats.Applied,
	)
	return nil
}

// schedule applies kill_frame removals, then spawn_frame spawns.
func (h *Harness) schedule(frame int) error {
	for i := range h.scenario.Objects {
		spec := &h.scenario.Objects[i]
		if spec.KillFrame != frame {
			continue
		}
		if hd, ok := h.handles[spec.Name]; ok {
			h.arena.Kill(hd)
		}
	}

	for i := range h.scenario.Objects {
		spec := &h.scenario.Objects[i]
		if spawnFrame(spec) != frame {
			continue
		}
		hd, err := h.arena.Spawn(h.build(spec))
		if err != nil {
			return fmt.Errorf("spawn %s: %w", spec.Name, err)
		}
		h.handles[spec.Name] = hd
		h.names[hd] = spec.Name
	}
	return nil
}

// build converts a spec into an arena object. A parent that has not
// spawned yet leaves Parent zero.
func (h *Harness) build(spec *ObjectSpec) object.Object {
	kind, _ := object.ParseKind(spec.Kind) // validated on load

	o := object.Object{
		Kind:    kind,
		Name:    spec.Name,
		Pos:     spec.Pos,
		LastPos: spec.Pos,
		Vel:     spec.Vel,
		Forward: heading(spec),
		Radius:  spec.Radius,
		Hull:    spec.Hull,
		Team:    spec.Team,
		Parent:  h.handles[spec.Parent],
	}
	if !spec.NoCollide {
		o.Flags |= object.FlagCollides
	}
	if spec.Player {
		o.Flags |= object.FlagPlayerShip
	}
	if spec.Small {
		o.Flags |= object.FlagSmallShip
	}
	if w := spec.Weapon; w != nil {
		o.Weapon = &object.WeaponState{
			Damage:     w.Damage,
			HitPoints:  w.HitPoints,
			Lifetime:   w.Lifetime,
			LifeLeft:   w.Lifetime,
			ArmDelay:   w.ArmDelay,
			Homing:     w.Homing,
			Laser:      w.Laser,
			Bomb:       w.Bomb,
			HardTarget: w.HardTarget,
		}
	}
	if b := spec.Beam; b != nil {
		o.Beam = &object.BeamState{
			LastStart: b.Start,
			LastShot:  b.End,
			Width:     b.Width,
			Damage:    b.Damage,
		}
	}
	return o
}

// heading is the explicit forward vector if given, else the direction of travel.
func heading(spec *ObjectSpec) mgl64.Vec3 {
	if spec.Forward.Len() > 0 {
		return spec.Forward.Normalize()
	}
	if spec.Vel.Len() > 0 {
		return spec.Vel.Normalize()
	}
	return mgl64.Vec3{}
}

func (h *Harness) integrate(dt float64) {
	for _, idx := range h.arena.Live() {
		o := h.arena.Get(idx)
		if o.Kind == object.KindBeam {
			continue
		}
		o.LastPos = o.Pos
		o.Pos = o.Pos.Add(o.Vel.Mul(dt))
	}
}

// expire ages weapons with a finite lifetime and removes the ones that ran out.
func (h *Harness) expire(frame int64, dt float64) {
	for _, idx := range h.arena.Live() {
		o := h.arena.Get(idx)
		if o.Weapon == nil || o.Weapon.Lifetime <= 0 {
			continue
		}
		o.Weapon.LifeLeft -= dt
		if o.Weapon.LifeLeft > 0 {
			continue
		}
		h.result.Trace = append(h.result.Trace, TraceEvent{
			Type:   EventExpired,
			Frame:  frame,
			Object: h.names[o.Handle],
		})
		h.arena.Kill(o.Handle)
	}
}

// reap removes objects destroyed by this frame's execute phase, in
// destruction order.
func (h *Harness) reap(frame int64) {
	for _, hd := range h.world.Destroyed() {
		h.result.Trace = append(h.result.Trace, TraceEvent{
			Type:   EventDestroyed,
			Frame:  frame,
			Object: h.names[hd],
		})
		h.arena.Kill(hd)
	}
	h.world.Reset()
}

// observe records one executed pair. It runs on the frame goroutine.
func (h *Harness) observe(r engine.Record) {
	h.result.Trace = append(h.result.Trace, TraceEvent{
		Type:     EventCollision,
		Frame:    r.Frame,
		Position: r.Position,
		Pair:     r.Pair.String(),
		A:        h.names[r.A],
		B:        h.names[r.B],
		Path:     r.Path.String(),
		Result:   r.Result.String(),
		Applied:  r.Applied,
		AHandle:  r.A,
		BHandle:  r.B,
		Effect:   r.Effect,
	})
}

func (h *Harness) collectFinal() {
	teams := map[int]bool{}
	for i := range h.scenario.Objects {
		spec := &h.scenario.Objects[i]
		teams[spec.Team] = true
		hd, ok := h.handles[spec.Name]
		if !ok {
			continue // scheduled after the last frame
		}
		fs := FinalState{Name: spec.Name, Kind: spec.Kind}
		if o := h.arena.Resolve(hd); o != nil {
			fs.Alive = true
			fs.Hull = o.Hull
		}
		h.result.Final = append(h.result.Final, fs)
	}

	ids := make([]int, 0, len(teams))
	for t := range teams {
		ids = append(ids, t)
	}
	sort.Ints(ids)
	for _, t := range ids {
		h.result.Scores = append(h.result.Scores, TeamScore{Team: t, Score: h.world.Score(t)})
	}
}

// collisionRows converts the collision events of a frame to store rows.
func collisionRows(runID string, events []TraceEvent) []store.Collision {
	rows := make([]store.Collision, 0, len(events))
	for _, e := range events {
		if e.Type != EventCollision {
			continue
		}
		rows = append(rows, store.Collision{
			RunID:    runID,
			Frame:    e.Frame,
			Position: e.Position,
			Pair:     e.Pair,
			A:        e.AHandle,
			B:        e.BHandle,
			AName:    e.A,
			BName:    e.B,
			Path:     e.Path,
			Result:   e.Result,
			Applied:  e.Applied,
			Effect:   e.Effect,
		})
	}
	return rows
}
