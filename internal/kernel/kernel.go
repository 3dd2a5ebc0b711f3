// Package kernel wires the chunked store, event bus/accumulator,
// synchronization providers, and the frame scheduler into the single
// frame-tick-driven simulation loop of spec section 5: a driver thread
// that owns the Live World exclusively during synchronous phases and
// hands off to worker threads for frame-synced-parallel and asynchronous
// modules.
//
// Kernel does not itself know what components or events a simulation
// uses — that is supplied once, by the host, as a TypeRegistrar run
// against the master World/Bus at construction and again (Bus omitted)
// against every replica a provider builds, the same "one registration
// sequence, replayed" discipline the provider package's own tests use to
// keep master and replica type ids in lockstep.
package kernel

import (
	"fmt"
	"log/slog"
	"time"

	"simkernel/internal/kernel/ecs"
	"simkernel/internal/kernel/event"
	"simkernel/internal/kernel/provider"
	"simkernel/internal/kernel/scheduler"
	"simkernel/internal/kernel/store"

	"simkernel/internal/logging"
)

// TypeRegistrar registers every component and event type a Kernel instance
// will use. Called once against the master World and Bus at New, and again
// with bus == nil against every replica World a provider builds: a
// replica never publishes, so it never needs its own event queues, only
// the same store column layout as master.
type TypeRegistrar func(w *store.World, bus *event.Bus) error

// Config configures a Kernel, filling in defaults the same way
// scheduler.Config and the teacher's chunk/memory.Config do.
type Config struct {
	// FrameRateHz is passed to the scheduler and sets the MinHistoryFrames
	// default. Module timer clauses run on the wall clock and do not use
	// it. Default 60.
	FrameRateHz float64
	// Workers bounds the asynchronous module worker pool, and doubles as
	// the default SoD provider pool size per convoy. Default 4.
	Workers int
	// CircuitResetMS is the scheduler's Open -> HalfOpen cooldown. Default 500.
	CircuitResetMS int
	// EventCompactionInterval drives the periodic accumulator Compact
	// sweep. Default 1s.
	EventCompactionInterval time.Duration

	// MinHistoryFrames is the accumulator's floor (spec section 6,
	// min_history_frames). Default FrameRateHz*3 ("3 s worth").
	MinHistoryFrames int
	// MaxHistoryFrames is the accumulator's eviction ceiling (spec
	// section 6, max_history_frames). Default MinHistoryFrames*4.
	MaxHistoryFrames int

	// ChunkCapacity is the slot count per chunk shared by every table in
	// the master World and its replicas (spec section 6, chunk_capacity).
	// Default store.DefaultWorldCapacity.
	ChunkCapacity int

	Logger *slog.Logger
	// Clock defaults to time.Now; tests supply a fixed/steppable clock to
	// make the scheduler's timer clause and circuit breaker deterministic.
	Clock func() time.Time
}

func (c Config) withDefaults() Config {
	if c.FrameRateHz <= 0 {
		c.FrameRateHz = 60
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.CircuitResetMS <= 0 {
		c.CircuitResetMS = 500
	}
	if c.EventCompactionInterval <= 0 {
		c.EventCompactionInterval = time.Second
	}
	if c.MinHistoryFrames <= 0 {
		c.MinHistoryFrames = int(c.FrameRateHz * 3)
	}
	if c.MaxHistoryFrames <= 0 {
		c.MaxHistoryFrames = c.MinHistoryFrames * 4
	}
	if c.ChunkCapacity <= 0 {
		c.ChunkCapacity = store.DefaultWorldCapacity
	}
	return c
}

// Kernel is the top-level simulation instance: one Live World, one event
// Bus/Accumulator pair, and the Scheduler that drives them through the
// frame phase order. RunFrame is not safe for concurrent use — like the
// teacher's orchestrator loop, exactly one driver thread calls it.
type Kernel struct {
	cfg    Config
	logger *slog.Logger

	live *store.World
	bus  *event.Bus
	acc  *event.Accumulator

	registerTypes TypeRegistrar
	sched         *scheduler.Scheduler

	tick    uint64
	timeSec float64
}

// New builds a Kernel: a master World with registerTypes applied, an empty
// event bus/accumulator, and a Scheduler wired to build replica providers
// through registerTypes.
func New(cfg Config, registerTypes TypeRegistrar) (*Kernel, error) {
	cfg = cfg.withDefaults()
	logger := logging.Default(cfg.Logger).With("component", "kernel")

	live := store.NewWorld(cfg.ChunkCapacity)
	bus := event.NewBus()
	if registerTypes != nil {
		if err := registerTypes(live, bus); err != nil {
			return nil, fmt.Errorf("kernel: register types: %w", err)
		}
	}

	k := &Kernel{
		cfg:           cfg,
		logger:        logger,
		live:          live,
		bus:           bus,
		acc:           event.NewAccumulator(cfg.MinHistoryFrames, cfg.MaxHistoryFrames),
		registerTypes: registerTypes,
	}
	schedCfg := scheduler.Config{
		FrameRateHz:             cfg.FrameRateHz,
		Workers:                 cfg.Workers,
		CircuitResetMS:          cfg.CircuitResetMS,
		EventCompactionInterval: cfg.EventCompactionInterval,
		Logger:                  cfg.Logger,
	}
	k.sched = scheduler.New(schedCfg, k.buildProvider, cfg.Clock)
	return k, nil
}

// Live exposes the master World for synchronous systems and host-side
// setup (entity creation, direct component writes before the loop starts).
func (k *Kernel) Live() *store.World { return k.live }

// Bus exposes the current-frame event bus, for synchronous systems that
// publish directly rather than through a command buffer.
func (k *Kernel) Bus() *event.Bus { return k.bus }

// Tick returns the frame counter as of the last completed RunFrame.
func (k *Kernel) Tick() uint64 { return k.tick }

// RegisterSystem adds a synchronous system to a phase. Must be called
// before Start.
func (k *Kernel) RegisterSystem(phase scheduler.Phase, name string, fn scheduler.SyncFunc, before, after []string) error {
	return k.sched.RegisterSystem(phase, name, fn, before, after)
}

// RegisterModule adds a frame-synced-parallel or asynchronous module. Must
// be called before Start.
func (k *Kernel) RegisterModule(spec scheduler.ModuleSpec) (scheduler.ModuleID, error) {
	return k.sched.RegisterModule(spec)
}

// Start finalizes phase ordering, builds convoy providers, and starts the
// scheduler's gocron instance (circuit half-open trials, event compaction).
func (k *Kernel) Start() error {
	return k.sched.Start(k.acc.Compact)
}

// Stop shuts down the scheduler's gocron instance. In-flight asynchronous
// modules are not interrupted.
func (k *Kernel) Stop() error {
	return k.sched.Stop()
}

// RunFrame advances the simulation by one frame, running the seven-step
// phase order of spec section 5: NetworkIngest, Input, Simulation (with
// any frame-synced-parallel fork/join), PostSimulation, Retirement & Sync
// Point, Harvest, Export.
func (k *Kernel) RunFrame(dt float64) error {
	tick := k.tick
	timeSec := k.timeSec

	if err := k.sched.RunPhase(scheduler.NetworkIngest, k.live, tick, dt); err != nil {
		return err
	}
	if err := k.sched.RunPhase(scheduler.Input, k.live, tick, dt); err != nil {
		return err
	}
	if err := k.sched.RunPhase(scheduler.Simulation, k.live, tick, dt); err != nil {
		return err
	}
	if err := k.sched.RunFrameSyncedParallel(tick, timeSec, k.live, k.bus, k.eventsSince); err != nil {
		return err
	}
	if err := k.sched.RunPhase(scheduler.PostSimulation, k.live, tick, dt); err != nil {
		return err
	}

	// Retirement & Sync Point: retire the current frame's publishes,
	// advance the global tick, then evaluate the due predicate for
	// asynchronous modules against the new tick.
	batch := k.bus.Retire(tick, event.NewBatchID())
	if evicted := k.acc.Push(batch); evicted {
		k.logger.Debug("event history evicted its oldest retained frame", "tick", tick)
	}
	k.tick++
	k.timeSec += dt
	newTick := k.tick

	if _, err := k.sched.DispatchAsync(newTick, k.timeSec, k.live, k.eventsSince); err != nil {
		return err
	}

	// Harvest: completed asynchronous work from prior frames is played
	// back onto Live before Export observes it.
	k.sched.Harvest(newTick, k.live, k.bus)

	return k.sched.RunPhase(scheduler.Export, k.live, newTick, dt)
}

// eventsSince reports whether any batch retired after sinceTick carries an
// event of typeID, the due predicate's event clause (spec section 4.6).
func (k *Kernel) eventsSince(typeID int, sinceTick uint64) bool {
	batches, _, _ := k.acc.Flush(sinceTick)
	for _, b := range batches {
		if _, ok := b.Events[typeID]; ok {
			return true
		}
	}
	return false
}

// buildProvider is the scheduler.ProviderFactory: it builds a replica
// World via registerTypes and wraps it in the provider matching strategy.
func (k *Kernel) buildProvider(strategy scheduler.DataStrategy, mask ecs.Bitmask) (provider.Provider, error) {
	switch strategy {
	case scheduler.DataGDB:
		replica, err := k.newReplica()
		if err != nil {
			return nil, err
		}
		return provider.NewGDB(k.live, replica, k.acc, k.cfg.Logger), nil

	case scheduler.DataSoD:
		buildOne := func() *store.World {
			w, err := k.newReplica()
			if err != nil {
				k.logger.Error("failed building SoD pool replica", "error", err)
				return store.NewWorld(k.cfg.ChunkCapacity)
			}
			return w
		}
		return provider.NewSoD(k.live, mask, buildOne, k.cfg.Workers, k.acc, k.cfg.Logger), nil

	case scheduler.DataShared:
		replica, err := k.newReplica()
		if err != nil {
			return nil, err
		}
		return provider.NewShared(k.live, replica, mask, k.acc, k.cfg.Logger), nil

	default:
		return nil, fmt.Errorf("kernel: unsupported provider strategy %v", strategy)
	}
}

func (k *Kernel) newReplica() (*store.World, error) {
	w := store.NewWorld(k.cfg.ChunkCapacity)
	if k.registerTypes != nil {
		if err := k.registerTypes(w, nil); err != nil {
			return nil, fmt.Errorf("kernel: register replica types: %w", err)
		}
	}
	return w, nil
}

// Stats is a read-only snapshot of kernel state, for a host CLI or
// diagnostics endpoint.
type Stats struct {
	Tick            uint64
	TimeSec         float64
	EventHistoryLen int
	Modules         []scheduler.ModuleStatus
}

// Stats returns a snapshot of the kernel's current frame counter, clock,
// event history depth, and every registered module's status.
func (k *Kernel) Stats() Stats {
	return Stats{
		Tick:            k.tick,
		TimeSec:         k.timeSec,
		EventHistoryLen: k.acc.Len(),
		Modules:         k.sched.ListModules(),
	}
}
