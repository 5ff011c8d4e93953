// Package sched implements the 120Hz tick scheduler: the Engine loop that
// drives per-tick device data collection, ring-buffer publication,
// pipeline execution, and module ticking (§4.3, grounded on
// original_source/engine/engine.py and stream/throttle.go's ticker
// pacing idiom).
package sched

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"ephys.tools/engine/databuffer"
	"ephys.tools/engine/step"
)

// TickRate is the engine's nominal tick frequency (§4.3).
const TickRate = 120

// TickInterval is the nominal period between ticks.
const TickInterval = time.Second / TickRate

// Updates is one tick's device data collection result.
type Updates struct {
	// Samples maps a published step name (an electrode's "<n>_ac"/"<n>_dc"
	// name) to the samples collected for it this tick.
	Samples map[string][]float32
	// WasReset reports whether the device reported a reset this tick.
	WasReset bool
	// DeviceState carries any device status lines to surface this tick.
	DeviceState []string
}

// DataSource collects one tick's device updates. The production
// implementation is cmd/ephys-engine's deviceSource, which drains an
// ingest.Queue.
type DataSource interface {
	CollectUpdates() (Updates, error)
}

// OutboundSink delivers a tick's pipeline and module results downstream.
type OutboundSink interface {
	SendGeneral(message map[string]any) error
	SendModule(name string, payload any) error
}

// Module is the generalized extension point for per-tick side logic
// (mirroring the original's OpenMEAModule dynamic loader, minus the
// filesystem plugin discovery — an explicit Non-goal).
type Module interface {
	Name() string
	HandleCommand(cmd json.RawMessage) error
	DoStep() (any, error)
}

// Engine runs the tick loop: collect, publish, run every pipeline, tick
// every module, emit, and pace to the next deadline.
type Engine struct {
	mu sync.Mutex

	registry *databuffer.Registry
	source   DataSource
	sink     OutboundSink
	logger   *slog.Logger
	now      func() time.Time

	pipelines     map[string]*step.Pipeline
	pipelineOrder []string
	modules       map[string]Module

	aggregate map[string][]float32

	nextDeadline time.Time
}

// Config configures an Engine.
type Config struct {
	Registry *databuffer.Registry
	Source   DataSource
	Sink     OutboundSink
	Logger   *slog.Logger
	// Now overrides time.Now for tests; defaults to time.Now.
	Now func() time.Time
}

// New constructs an Engine from config.
func New(config Config) *Engine {
	now := config.Now
	if now == nil {
		now = time.Now
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		registry:  config.Registry,
		source:    config.Source,
		sink:      config.Sink,
		logger:    logger,
		now:       now,
		pipelines: make(map[string]*step.Pipeline),
		modules:   make(map[string]Module),
	}
}

// RegisterPipeline adds a pipeline under id, overwriting any existing
// pipeline with the same id.
func (e *Engine) RegisterPipeline(id string, p *step.Pipeline) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.pipelines[id]; !exists {
		e.pipelineOrder = append(e.pipelineOrder, id)
	}
	e.pipelines[id] = p
}

// DeletePipeline finalizes and removes the pipeline registered under id.
func (e *Engine) DeletePipeline(id string) error {
	e.mu.Lock()
	p, ok := e.pipelines[id]
	if ok {
		delete(e.pipelines, id)
		for i, pid := range e.pipelineOrder {
			if pid == id {
				e.pipelineOrder = append(e.pipelineOrder[:i], e.pipelineOrder[i+1:]...)
				break
			}
		}
	}
	e.mu.Unlock()

	if !ok {
		return fmt.Errorf("sched: no pipeline registered with id %q", id)
	}
	return p.Finalize()
}

// RegisterModule adds m, keyed by its Name().
func (e *Engine) RegisterModule(m Module) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.modules[m.Name()] = m
}

// HandleModuleCommand routes cmd to the named module.
func (e *Engine) HandleModuleCommand(name string, cmd json.RawMessage) error {
	e.mu.Lock()
	m, ok := e.modules[name]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("sched: no module registered with name %q", name)
	}
	return m.HandleCommand(cmd)
}

// Aggregate returns the most recent tick's full per-channel update
// dictionary (the synthetic "electrodes" published step, §3 Data Model).
func (e *Engine) Aggregate() map[string][]float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.aggregate
}

// Run drives the tick loop until ctx is canceled (§4.3). The first tick
// fires immediately; subsequent ticks are paced to
// max(prevDeadline+TickInterval, now), so a delayed tick never triggers a
// catch-up burst.
func (e *Engine) Run(ctx context.Context) error {
	e.nextDeadline = e.now()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		if err := e.tick(); err != nil {
			e.logger.Error("sched: tick failed", "error", err)
		}

		now := e.now()
		next := nextDeadline(e.nextDeadline, now)
		e.nextDeadline = next

		sleepDur := next.Sub(now)
		if sleepDur <= 0 {
			continue
		}

		timer := time.NewTimer(sleepDur)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// nextDeadline computes the next tick deadline per §4.3 step 6:
// max(prevDeadline+TickInterval, now). A late tick's slippage does not
// accumulate — the next deadline is computed from the reset point `now`,
// not from the missed deadline plus however many intervals were skipped.
func nextDeadline(prevDeadline, now time.Time) time.Time {
	next := prevDeadline.Add(TickInterval)
	if next.Before(now) {
		return now
	}
	return next
}

// tick runs steps 1-5 of §4.3 once.
func (e *Engine) tick() error {
	updates, err := e.source.CollectUpdates()
	if err != nil {
		return fmt.Errorf("sched: collect updates: %w", err)
	}

	e.registry.ResetTick()

	message := make(map[string]any)

	if updates.WasReset {
		e.registry.ClearAll()
		message["deviceState"] = append(append([]string(nil), updates.DeviceState...),
			fmt.Sprintf("lastResetTime:%d", e.now().UnixNano()))
	} else if len(updates.DeviceState) > 0 {
		message["deviceState"] = updates.DeviceState
	}

	for name, samples := range updates.Samples {
		if err := e.registry.Append(name, samples); err != nil {
			e.logger.Warn("sched: dropping update for unregistered step", "name", name, "error", err)
		}
	}

	e.mu.Lock()
	e.aggregate = updates.Samples
	pipelineOrder := append([]string(nil), e.pipelineOrder...)
	pipelines := make(map[string]*step.Pipeline, len(e.pipelines))
	for id, p := range e.pipelines {
		pipelines[id] = p
	}
	modules := make([]Module, 0, len(e.modules))
	for _, m := range e.modules {
		modules = append(modules, m)
	}
	e.mu.Unlock()

	sort.Strings(pipelineOrder)
	for _, id := range pipelineOrder {
		p := pipelines[id]
		result, err := p.Run()
		if err != nil {
			e.logger.Error("sched: pipeline failed", "pipeline", id, "error", err)
			continue
		}
		if result != nil {
			message[id] = result
		}
	}

	if len(message) > 0 && e.sink != nil {
		if err := e.sink.SendGeneral(message); err != nil {
			e.logger.Error("sched: send general failed", "error", err)
		}
	}

	sort.Slice(modules, func(i, j int) bool { return modules[i].Name() < modules[j].Name() })
	for _, m := range modules {
		result, err := m.DoStep()
		if err != nil {
			e.logger.Error("sched: module failed", "module", m.Name(), "error", err)
			continue
		}
		if result != nil && e.sink != nil {
			if err := e.sink.SendModule(m.Name(), result); err != nil {
				e.logger.Error("sched: send module failed", "module", m.Name(), "error", err)
			}
		}
	}

	return nil
}
