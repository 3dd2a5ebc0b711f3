package main

import (
	"context"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"simkernel/internal/kernel"
	"simkernel/internal/kernel/cmdbuffer"
	"simkernel/internal/kernel/ecs"
	"simkernel/internal/kernel/event"
	"simkernel/internal/kernel/scheduler"
	"simkernel/internal/kernel/store"
	"simkernel/internal/kernel/view"
)

// position and velocity are the only two component types the demo
// registers, just enough to exercise a synchronous integrator (which also
// bounces entities off the walls) and an asynchronous telemetry module
// against the same World.
type position struct{ X, Y float64 }
type velocity struct{ X, Y float64 }

// demoTypes holds the type ids registerDemoTypes assigns, filled in once
// against the master World and shared by every system/module closure built
// afterward.
type demoTypes struct {
	position int
	velocity int
}

func registerDemoTypes(types *demoTypes) kernel.TypeRegistrar {
	return func(w *store.World, bus *event.Bus) error {
		posID, err := store.RegisterBlittable[position](w, "position")
		if err != nil {
			return err
		}
		velID, err := store.RegisterBlittable[velocity](w, "velocity")
		if err != nil {
			return err
		}
		types.position, types.velocity = posID, velID
		return nil
	}
}

func newRunCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the demo simulation",
		Long:  "Builds a kernel with a handful of moving entities and drives it through RunFrame, exercising a synchronous system and an asynchronous module together.",
		RunE: func(cmd *cobra.Command, args []string) error {
			frames, _ := cmd.Flags().GetInt("frames")
			entities, _ := cmd.Flags().GetInt("entities")
			frameRate, _ := cmd.Flags().GetFloat64("frame-rate")
			width, _ := cmd.Flags().GetFloat64("width")
			height, _ := cmd.Flags().GetFloat64("height")

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return runDemo(ctx, logger, frames, entities, frameRate, width, height)
		},
	}
	cmd.Flags().Int("frames", 0, "number of frames to run, 0 = run until interrupted")
	cmd.Flags().Int("entities", 50, "number of simulated entities")
	cmd.Flags().Float64("frame-rate", 60, "simulation frame rate, in Hz")
	cmd.Flags().Float64("width", 800, "simulation bounds width")
	cmd.Flags().Float64("height", 600, "simulation bounds height")
	return cmd
}

func runDemo(ctx context.Context, logger *slog.Logger, frames, entityCount int, frameRate, width, height float64) error {
	types := &demoTypes{}
	k, err := kernel.New(kernel.Config{FrameRateHz: frameRate, Logger: logger}, registerDemoTypes(types))
	if err != nil {
		return err
	}

	seedEntities(k, types, entityCount, width, height)
	registerIntegrator(k, types, width, height)
	registerTelemetry(k, types, logger)

	if err := k.Start(); err != nil {
		return err
	}
	defer func() {
		if err := k.Stop(); err != nil {
			logger.Error("stopping scheduler", "error", err)
		}
	}()

	dt := 1 / frameRate
	period := time.Duration(dt * float64(time.Second))
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for frames <= 0 || int(k.Tick()) < frames {
		select {
		case <-ctx.Done():
			logger.Info("shutting down", "tick", k.Tick())
			return nil
		case <-ticker.C:
			if err := k.RunFrame(dt); err != nil {
				return err
			}
		}
	}
	stats := k.Stats()
	logger.Info("run complete", "tick", stats.Tick, "event_history_len", stats.EventHistoryLen)
	return nil
}

func seedEntities(k *kernel.Kernel, types *demoTypes, count int, width, height float64) {
	rng := rand.New(rand.NewSource(1))
	w := k.Live()
	for i := 0; i < count; i++ {
		e := w.CreateEntity()
		_ = store.Set(w, types.position, e, position{X: rng.Float64() * width, Y: rng.Float64() * height}, 0)
		_ = store.Set(w, types.velocity, e, velocity{X: rng.Float64()*40 - 20, Y: rng.Float64()*40 - 20}, 0)
	}
}

// registerIntegrator adds the synchronous system that advances position by
// velocity*dt and reflects velocity off the simulation bounds, in the
// Simulation phase.
func registerIntegrator(k *kernel.Kernel, types *demoTypes, width, height float64) {
	mask := ecs.NewBitmask(types.position, types.velocity)
	_ = k.RegisterSystem(scheduler.Simulation, "integrate", func(world *store.World, tick uint64, dt float64) error {
		cur := world.Query(mask)
		for {
			e, ok := cur.Next()
			if !ok {
				break
			}
			pos, _, err := store.Get[position](world, types.position, e)
			if err != nil {
				return err
			}
			vel, _, err := store.Get[velocity](world, types.velocity, e)
			if err != nil {
				return err
			}
			pos.X += vel.X * dt
			pos.Y += vel.Y * dt
			if pos.X < 0 || pos.X > width {
				vel.X = -vel.X
			}
			if pos.Y < 0 || pos.Y > height {
				vel.Y = -vel.Y
			}
			if err := store.Set(world, types.position, e, pos, tick); err != nil {
				return err
			}
			if err := store.Set(world, types.velocity, e, vel, tick); err != nil {
				return err
			}
		}
		return nil
	}, nil, nil)
}

// registerTelemetry adds a 1Hz asynchronous snapshot-on-demand module that
// reports the average entity position, never blocking the driver thread.
func registerTelemetry(k *kernel.Kernel, types *demoTypes, logger *slog.Logger) {
	mask := ecs.NewBitmask(types.position)
	_, _ = k.RegisterModule(scheduler.ModuleSpec{
		Name:               "telemetry",
		FrequencyHz:        1,
		ExecutionMode:      scheduler.Asynchronous,
		DataStrategy:       scheduler.DataSoD,
		RequiredComponents: mask,
		Run: func(v *view.View, buf *cmdbuffer.Buffer) error {
			cur := v.Query(mask)
			var sumX, sumY float64
			var n int
			for {
				e, ok := cur.Next()
				if !ok {
					break
				}
				pos, ok, err := view.GetBlittable[position](v, types.position, e)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				sumX += pos.X
				sumY += pos.Y
				n++
			}
			if n > 0 {
				logger.Info("telemetry", "component", "telemetry", "tick", v.Tick(), "entities", n, "avg_x", sumX/float64(n), "avg_y", sumY/float64(n))
			}
			return nil
		},
	})
}
