package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"simkernel/internal/kernel/cmdbuffer"
	"simkernel/internal/kernel/ecs"
	"simkernel/internal/kernel/event"
	"simkernel/internal/kernel/provider"
	"simkernel/internal/kernel/store"
	"simkernel/internal/kernel/view"

	"simkernel/internal/logging"
)

// ProviderFactory builds the provider backing one convoy group, given the
// strategy its members agreed on and the union mask of everything the
// group watches or requires. Supplied by the Kernel, which alone knows how
// to build a replica World pre-registered to match the master.
type ProviderFactory func(strategy DataStrategy, mask ecs.Bitmask) (provider.Provider, error)

// Config configures a Scheduler, filling in defaults for zero values the
// same way chunk/memory.Config does.
type Config struct {
	// FrameRateHz is the frame rate PeriodPerTick is computed from. The
	// timer-clause limiters do not use it: they are built from each
	// module's FrequencyHz and run on the wall clock. Default 60.
	FrameRateHz float64
	// Workers bounds concurrent asynchronous module executions. Default 4.
	Workers int
	// CircuitResetMS is the Open -> HalfOpen cooldown. Default 500.
	CircuitResetMS int
	// EventCompactionInterval drives the gocron retention sweep that calls
	// the Kernel's event accumulator Compact. Default 1s.
	EventCompactionInterval time.Duration

	Logger *slog.Logger
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
	return c
}

// Scheduler implements spec section 4.6: module registration, due
// predicate evaluation, circuit breaking, convoy grouping, dispatch, and
// harvesting. It does not own the Live World or event Bus; the Kernel
// passes them in on every call, the same separation the teacher's
// orchestrator.Scheduler keeps from the chunk managers it triggers.
type Scheduler struct {
	mu              sync.Mutex
	cfg             Config
	logger          *slog.Logger
	providerFactory ProviderFactory

	phases [numPhases]map[string]*syncSystem
	order  [numPhases][]*syncSystem

	modules []*moduleEntry
	byID    map[ModuleID]*moduleEntry
	convoys map[convoyKey]*convoyGroup

	sem   *semaphore.Weighted
	cron  gocron.Scheduler
	clock func() time.Time

	started bool
}

// New creates a Scheduler. clock defaults to time.Now; tests supply a
// fixed or steppable clock to make timer-clause and circuit-breaker
// behavior deterministic.
func New(cfg Config, providerFactory ProviderFactory, clock func() time.Time) *Scheduler {
	cfg = cfg.withDefaults()
	if clock == nil {
		clock = time.Now
	}
	var phases [numPhases]map[string]*syncSystem
	for i := range phases {
		phases[i] = make(map[string]*syncSystem)
	}
	return &Scheduler{
		cfg:             cfg,
		logger:          logging.Default(cfg.Logger).With("component", "scheduler"),
		providerFactory: providerFactory,
		phases:          phases,
		byID:            make(map[ModuleID]*moduleEntry),
		convoys:         make(map[convoyKey]*convoyGroup),
		sem:             semaphore.NewWeighted(int64(cfg.Workers)),
		clock:           clock,
	}
}

// PeriodPerTick is 1/FrameRateHz. The due predicate's timer clause does
// not use it; that clause is decided by per-module wall-clock limiters.
func (s *Scheduler) PeriodPerTick() float64 { return 1 / s.cfg.FrameRateHz }

// RegisterSystem adds a synchronous system to a phase. before/after name
// other systems registered in the same phase; ordering across phases is
// implicit in phase order (spec section 5). Must be called before Start.
func (s *Scheduler) RegisterSystem(phase Phase, name string, fn SyncFunc, before, after []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	if phase < 0 || phase >= numPhases {
		return fmt.Errorf("scheduler: invalid phase %d", phase)
	}
	systems := s.phases[phase]
	if _, exists := systems[name]; exists {
		return fmt.Errorf("%w: %q in phase %s", ErrDuplicateSystem, name, phase)
	}
	systems[name] = &syncSystem{name: name, fn: fn, before: before, after: after}
	return nil
}

// RegisterModule adds a frequency-driven module (frame-synced-parallel or
// asynchronous; synchronous logic belongs in RegisterSystem) and assigns
// it to its convoy group. Must be called before Start.
func (s *Scheduler) RegisterModule(spec ModuleSpec) (ModuleID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ModuleID{}, ErrAlreadyStarted
	}
	if spec.Run == nil {
		return ModuleID{}, fmt.Errorf("scheduler: module %q has no Run function", spec.Name)
	}
	id := NewModuleID()
	entry := newModuleEntry(id, spec, s.onCircuitOpen)
	s.modules = append(s.modules, entry)
	s.byID[id] = entry

	key := keyFor(spec)
	grp, ok := s.convoys[key]
	if !ok {
		grp = newConvoyGroup(key)
		s.convoys[key] = grp
	}
	grp.add(entry)
	return id, nil
}

// Start topologically sorts every phase's systems, builds one provider per
// convoy group whose strategy is not DataDirect, and starts the scheduler's
// gocron instance (circuit half-open trials, periodic event compaction).
// compactEvents is called on the compaction sweep; pass the Kernel's event
// accumulator Compact method.
func (s *Scheduler) Start(compactEvents func() int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}

	for p := range s.phases {
		order, err := topoSortPhase(s.phases[p])
		if err != nil {
			return fmt.Errorf("phase %s: %w", Phase(p), err)
		}
		s.order[p] = order
	}

	for key, grp := range s.convoys {
		if key.strategy == DataDirect {
			continue
		}
		if s.providerFactory == nil {
			return fmt.Errorf("scheduler: convoy %v requires a provider but no ProviderFactory was given", key)
		}
		p, err := s.providerFactory(key.strategy, grp.mask)
		if err != nil {
			return fmt.Errorf("build provider for convoy %v: %w", key, err)
		}
		grp.provider = p
	}

	cron, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("scheduler: create gocron instance: %w", err)
	}
	s.cron = cron

	if compactEvents != nil {
		_, err := cron.NewJob(
			gocron.DurationJob(s.cfg.EventCompactionInterval),
			gocron.NewTask(func() {
				if n := compactEvents(); n > 0 {
					s.logger.Debug("event history compacted", "evicted_candidates", n)
				}
			}),
			gocron.WithName("event-compaction-sweep"),
		)
		if err != nil {
			return fmt.Errorf("scheduler: schedule event compaction sweep: %w", err)
		}
	}

	cron.Start()
	s.started = true
	s.logger.Info("scheduler started", "modules", len(s.modules), "convoys", len(s.convoys))
	return nil
}

// Stop shuts down the gocron instance. Modules with in-flight asynchronous
// tasks are not interrupted (spec section 5: "worker modules cannot be
// preempted").
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	if s.cron == nil {
		return nil
	}
	return s.cron.Shutdown()
}

// onCircuitOpen is the moduleEntry.onOpen callback: it schedules a one-shot
// gocron job that flips the breaker to half-open after CircuitResetMS,
// the wall-clock side of the circuit breaker's reset_timeout.
func (s *Scheduler) onCircuitOpen(e *moduleEntry) {
	s.mu.Lock()
	cron := s.cron
	s.mu.Unlock()
	if cron == nil {
		return
	}
	at := s.clock().Add(time.Duration(s.cfg.CircuitResetMS) * time.Millisecond)
	_, err := cron.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(at)),
		gocron.NewTask(func() {
			e.setHalfOpen()
			s.logger.Info("circuit half-open trial admitted", "module", e.spec.Name, "id", e.id.String())
		}),
		gocron.WithName("circuit-half-open:"+e.id.String()),
	)
	if err != nil {
		s.logger.Error("failed to schedule half-open trial", "module", e.spec.Name, "error", err)
		return
	}
	s.logger.Warn("circuit breaker opened", "module", e.spec.Name, "id", e.id.String(), "reset_ms", s.cfg.CircuitResetMS)
}

// RunPhase runs phase's synchronous systems in topological order against
// the Live World. The first system error stops the phase and is returned
// to the caller wrapped with the phase and system name (spec section 7:
// synchronous caller errors are returned, not swallowed).
func (s *Scheduler) RunPhase(phase Phase, world *store.World, tick uint64, dt float64) error {
	s.mu.Lock()
	order := s.order[phase]
	s.mu.Unlock()
	for _, sys := range order {
		if err := sys.fn(world, tick, dt); err != nil {
			return fmt.Errorf("phase %s: system %s: %w", phase, sys.name, err)
		}
	}
	return nil
}

func (s *Scheduler) dueContext(world *store.World, eventsSince func(int, uint64) bool) dueContext {
	return dueContext{now: s.clock(), world: world, eventsSince: eventsSince}
}

// RunFrameSyncedParallel runs every due frame-synced-parallel convoy group
// on a fork-join pool against its (just-refreshed) replica, then plays
// every participant's command buffer back onto Live before returning — the
// driver thread blocks for the whole call (spec section 5).
func (s *Scheduler) RunFrameSyncedParallel(tick uint64, timeSec float64, world *store.World, bus *event.Bus, eventsSince func(int, uint64) bool) error {
	s.mu.Lock()
	groups := s.groupsByMode(FrameSyncedParallel)
	s.mu.Unlock()

	dc := s.dueContext(world, eventsSince)
	for _, grp := range groups {
		due := s.dueMembers(grp, dc)
		if len(due) == 0 {
			continue
		}
		if fs, ok := grp.provider.(frameSyncer); ok {
			if _, err := fs.SyncForFrame(tick); err != nil {
				s.abortGroup(due, tick, err)
				continue
			}
		}
		v, err := grp.provider.Acquire(tick, timeSec)
		if err != nil {
			s.abortGroup(due, tick, err)
			continue
		}

		bufs := make([]*cmdbuffer.Buffer, len(due))
		errs := make([]error, len(due))
		var grp2 errgroup.Group
		for i, m := range due {
			i, m := i, m
			buf := cmdbuffer.New()
			bufs[i] = buf
			grp2.Go(func() error {
				errs[i] = runModule(m.spec.Run, v, buf)
				return nil
			})
		}
		_ = grp2.Wait()
		grp.provider.Release(v)

		combined := cmdbuffer.New()
		for i := range due {
			combined.Merge(bufs[i])
		}
		cmdbuffer.Playback(combined, world, bus, tick)

		for i, m := range due {
			m.completeHarvest(tick, errs[i] == nil)
			if errs[i] != nil {
				s.logger.Warn("frame-synced-parallel module failed", "module", m.spec.Name, "error", errs[i])
			}
		}
	}
	return nil
}

// DispatchAsync spawns every due, idle, circuit-permitted asynchronous
// module in a provider-acquired view, bounded by the worker pool. It
// returns immediately; results are collected by a later Harvest call.
func (s *Scheduler) DispatchAsync(tick uint64, timeSec float64, world *store.World, eventsSince func(int, uint64) bool) (int, error) {
	s.mu.Lock()
	groups := s.groupsByMode(Asynchronous)
	s.mu.Unlock()

	dc := s.dueContext(world, eventsSince)
	dispatched := 0
	for _, grp := range groups {
		due := s.dueMembers(grp, dc)
		if len(due) == 0 {
			continue
		}
		if fs, ok := grp.provider.(frameSyncer); ok {
			if _, err := fs.SyncForFrame(tick); err != nil {
				s.abortGroup(due, tick, err)
				continue
			}
		}
		start := s.clock()
		for _, m := range due {
			v, err := grp.provider.Acquire(tick, timeSec)
			if err != nil {
				s.abortGroup([]*moduleEntry{m}, tick, err)
				continue
			}
			buf := cmdbuffer.New()
			m.beginRun(buf, v)
			s.spawn(m, v, buf, start)
			dispatched++
		}
	}
	return dispatched, nil
}

// Harvest collects completed asynchronous modules: plays back their
// command buffer onto Live and releases their view lease. Modules whose
// task is still running are skipped and keep their lease; modules that
// timed out last frame but completed late have their buffer discarded
// (spec section 4.6, "Harvesting").
func (s *Scheduler) Harvest(tick uint64, world *store.World, bus *event.Bus) int {
	s.mu.Lock()
	groups := s.groupsByMode(Asynchronous)
	s.mu.Unlock()

	harvested := 0
	for _, grp := range groups {
		for _, m := range grp.members {
			snap, ok := m.pollHarvest()
			if !ok {
				continue
			}
			switch {
			case snap.timedOut:
				s.logger.Warn("discarding late result from timed-out module", "module", m.spec.Name)
			case snap.err != nil:
				s.logger.Warn("asynchronous module failed", "module", m.spec.Name, "error", snap.err)
			default:
				cmdbuffer.Playback(snap.buf, world, bus, tick)
			}
			if snap.lease != nil {
				grp.provider.Release(snap.lease)
			}
			m.completeHarvest(tick, snap.err == nil && !snap.timedOut)
			harvested++
		}
	}
	return harvested
}

func (s *Scheduler) spawn(m *moduleEntry, v *view.View, buf *cmdbuffer.Buffer, start time.Time) {
	go func() {
		if err := s.sem.Acquire(context.Background(), 1); err != nil {
			m.finishRun(err)
			return
		}
		defer s.sem.Release(1)

		resultCh := make(chan error, 1)
		go func() { resultCh <- runModule(m.spec.Run, v, buf) }()

		deadline := m.watchdogDeadline(start)
		if deadline.IsZero() {
			m.finishRun(<-resultCh)
			return
		}
		select {
		case err := <-resultCh:
			m.finishRun(err)
			return
		case <-time.After(time.Until(deadline)):
			m.markTimedOut(m.spec.CircuitBreakerThreshold)
		}
		// Task continues to completion on this worker (spec section 5);
		// the late result still closes `done` so Harvest can eventually
		// discard it instead of leaving the module stuck Running forever.
		m.finishRun(<-resultCh)
	}()
}

func runModule(fn ModuleFunc, v *view.View, buf *cmdbuffer.Buffer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("module panic: %v", r)
		}
	}()
	return fn(v, buf)
}

func (s *Scheduler) groupsByMode(mode ExecutionMode) []*convoyGroup {
	groups := make([]*convoyGroup, 0, len(s.convoys))
	for _, g := range s.convoys {
		if g.key.mode == mode {
			groups = append(groups, g)
		}
	}
	return groups
}

func (s *Scheduler) dueMembers(grp *convoyGroup, dc dueContext) []*moduleEntry {
	due := make([]*moduleEntry, 0, len(grp.members))
	for _, m := range grp.members {
		if m.tryBeginDispatch(dc) {
			due = append(due, m)
		}
	}
	return due
}

func (s *Scheduler) abortGroup(members []*moduleEntry, tick uint64, err error) {
	for _, m := range members {
		s.logger.Warn("convoy sync/acquire failed, skipping dispatch", "module", m.spec.Name, "error", err)
		m.completeHarvest(tick, false)
	}
}

// ModuleStatus is a read-only snapshot for Kernel.Stats()/a host CLI,
// mirroring the teacher's orchestrator.JobInfo shape.
type ModuleStatus struct {
	ID            ModuleID
	Name          string
	ExecutionMode ExecutionMode
	DataStrategy  DataStrategy
	LastRunTick   uint64
	CircuitState  CircuitState
	FailureCount  int
	Running       bool
}

// ListModules returns a status snapshot of every registered module.
func (s *Scheduler) ListModules() []ModuleStatus {
	s.mu.Lock()
	modules := append([]*moduleEntry(nil), s.modules...)
	s.mu.Unlock()

	out := make([]ModuleStatus, 0, len(modules))
	for _, m := range modules {
		snap := m.circuitSnapshot()
		out = append(out, ModuleStatus{
			ID:            m.id,
			Name:          m.spec.Name,
			ExecutionMode: m.spec.ExecutionMode,
			DataStrategy:  m.spec.DataStrategy,
			LastRunTick:   m.lastRunTick(),
			CircuitState:  snap.State,
			FailureCount:  snap.FailureCount,
			Running:       m.isRunning(),
		})
	}
	return out
}

// GetModule returns the status of a single module by id, mirroring the
// teacher's orchestrator.Scheduler.GetJob.
func (s *Scheduler) GetModule(id ModuleID) (ModuleStatus, bool) {
	s.mu.Lock()
	m, ok := s.byID[id]
	s.mu.Unlock()
	if !ok {
		return ModuleStatus{}, false
	}
	snap := m.circuitSnapshot()
	return ModuleStatus{
		ID:            m.id,
		Name:          m.spec.Name,
		ExecutionMode: m.spec.ExecutionMode,
		DataStrategy:  m.spec.DataStrategy,
		LastRunTick:   m.lastRunTick(),
		CircuitState:  snap.State,
		FailureCount:  snap.FailureCount,
		Running:       m.isRunning(),
	}, true
}
