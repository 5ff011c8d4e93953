package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ephys.tools/engine/stim"
)

// ControllerState is the Controller's own connect/init state machine,
// distinct from the raw InitState a status poll reports (Initializing and
// Initialized roll the device-reported code into the same shape).
type ControllerState int

const (
	Disconnected ControllerState = iota
	ConnectedUninit
	StateInitializing
	StateInitialized
	StateInitFailed
)

func (s ControllerState) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case ConnectedUninit:
		return "CONNECTED_UNINIT"
	case StateInitializing:
		return "INITIALIZING"
	case StateInitialized:
		return "INITIALIZED"
	case StateInitFailed:
		return "INIT_FAILED"
	default:
		return "UNKNOWN"
	}
}

// InitProgress is one progress message emitted during Initialize.
type InitProgress struct {
	Step, Total int
	Output      string
}

// Config parametrizes a Controller.
type Config struct {
	InitCommands  []string
	ChipPaths     map[int]string // chip index -> remote FIFO path
	ReconnectEvery time.Duration  // default 5s
	Logger        *slog.Logger
}

// Controller owns one physical device's lifecycle: connect/reconnect,
// initialization, state polling, command dispatch and the stim tick.
// Sampling and stimulating are orthogonal flags, observable once
// Initialized — modeled as plain booleans, not nested state machines
// (§9 Design Notes).
type Controller struct {
	cfg       Config
	transport Transport

	mu            sync.Mutex
	state         ControllerState
	isSampling    bool
	isStimulating bool
	lastResetTime time.Time

	stimGen stim.Generator

	stopReconnect chan struct{}
}

// NewController constructs a disconnected Controller bound to transport.
func NewController(transport Transport, cfg Config) *Controller {
	if cfg.ReconnectEvery == 0 {
		cfg.ReconnectEvery = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Controller{
		cfg:       cfg,
		transport: transport,
		state:     Disconnected,
	}
}

// State returns the current controller state and sampling/stimulating
// flags under lock.
func (c *Controller) State() (ControllerState, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.isSampling, c.isStimulating
}

// Connect marks the controller connected-but-uninitialized if a liveness
// ping succeeds.
func (c *Controller) Connect(ctx context.Context) error {
	if err := c.transport.Ping(ctx); err != nil {
		c.setState(Disconnected)
		return fmt.Errorf("device: connect: %w", err)
	}
	c.setState(ConnectedUninit)
	return nil
}

// Initialize runs the configured command sequence, reporting progress on
// progress (which may be nil). On any command failure the controller
// transitions to InitFailed and the caller must reissue Initialize.
func (c *Controller) Initialize(ctx context.Context, progress func(InitProgress)) error {
	c.setState(StateInitializing)
	total := len(c.cfg.InitCommands)
	for i, cmd := range c.cfg.InitCommands {
		out, err := c.transport.RunCommand(ctx, cmd)
		if progress != nil {
			progress(InitProgress{Step: i + 1, Total: total, Output: out})
		}
		if err != nil {
			c.setState(StateInitFailed)
			return fmt.Errorf("device: initialize step %d/%d: %w", i+1, total, err)
		}
	}
	c.setState(StateInitialized)
	return nil
}

func (c *Controller) setState(s ControllerState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// PollStatus runs a status command, parses it with parse, and updates the
// sampling flag. was_reset is true exactly when the poll observes a
// transition out of Disconnected back into a connected state.
func (c *Controller) PollStatus(ctx context.Context, statusCmd string, parse func(string) (Status, error)) (Status, bool, error) {
	out, err := c.transport.RunCommand(ctx, statusCmd)
	if err != nil {
		c.setState(Disconnected)
		return Status{}, false, fmt.Errorf("device: poll status: %w", err)
	}
	st, err := parse(out)
	if err != nil {
		return Status{}, false, fmt.Errorf("device: parse status: %w", err)
	}

	c.mu.Lock()
	wasReset := st.IsConnected && c.state == Disconnected
	switch {
	case wasReset:
		c.state = ConnectedUninit
	case !st.IsConnected:
		c.state = Disconnected
	}
	c.isSampling = st.IsSampling
	if wasReset {
		c.lastResetTime = time.Now()
	}
	c.mu.Unlock()

	return st, wasReset, nil
}

// StartReconnectLoop runs a background reconnect probe every
// cfg.ReconnectEvery until StopReconnectLoop is called. On a
// reconnect-from-down transition, onReconnect is invoked. Callers should
// run this in its own goroutine, per the spec's "detached worker" model.
func (c *Controller) StartReconnectLoop(ctx context.Context, onReconnect func()) {
	c.stopReconnect = make(chan struct{})
	ticker := time.NewTicker(c.cfg.ReconnectEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopReconnect:
			return
		case <-ticker.C:
			c.mu.Lock()
			down := c.state == Disconnected
			c.mu.Unlock()
			if !down {
				continue
			}
			pingCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
			err := c.transport.Ping(pingCtx)
			cancel()
			if err == nil {
				c.setState(ConnectedUninit)
				if onReconnect != nil {
					onReconnect()
				}
			}
		}
	}
}

// StopReconnectLoop stops a running StartReconnectLoop.
func (c *Controller) StopReconnectLoop() {
	if c.stopReconnect != nil {
		close(c.stopReconnect)
	}
}

// ErrTransportDown names the condition of a command that cannot be
// dispatched because the controller is not connected; no Controller method
// currently returns it.
var ErrTransportDown = fmt.Errorf("device: transport is down")

// ErrNotInitialized is returned when sampling/stimulation is requested
// before the device reaches StateInitialized.
var ErrNotInitialized = fmt.Errorf("device: not initialized")

// StartStimulation arms gen as the active stimulation generator and marks
// isStimulating. The device must be Initialized.
func (c *Controller) StartStimulation(gen stim.Generator) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateInitialized {
		return ErrNotInitialized
	}
	if err := gen.OnStimulationStarting(); err != nil {
		return fmt.Errorf("device: starting stimulation: %w", err)
	}
	c.stimGen = gen
	c.isStimulating = true
	return nil
}

// StopStimulation requests the active generator wind down.
func (c *Controller) StopStimulation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stimGen != nil {
		c.stimGen.StopStimulation()
	}
}

// StimTick asks the active stimulation generator for its next command
// chunk and uploads it to every participating chip's FIFO. It clears
// isStimulating once the generator reports done.
func (c *Controller) StimTick(ctx context.Context) error {
	c.mu.Lock()
	gen := c.stimGen
	c.mu.Unlock()
	if gen == nil {
		return nil
	}

	chips, err := gen.EmitNextCommands()
	if err != nil {
		return fmt.Errorf("device: stim tick: %w", err)
	}
	for chip, words := range chips {
		path, ok := c.cfg.ChipPaths[chip]
		if !ok {
			continue
		}
		if err := c.transport.WriteChipWords(ctx, path, words); err != nil {
			return fmt.Errorf("device: stim tick: writing chip %d: %w", chip, err)
		}
	}

	if gen.IsDone() {
		c.mu.Lock()
		c.isStimulating = false
		c.mu.Unlock()
		if err := gen.OnStimulationDone(); err != nil {
			return fmt.Errorf("device: stim tick: finalizing generator: %w", err)
		}
	}
	return nil
}

// SetSampling flips the sampling flag via a device command, mirroring the
// start/stopSampling dispatch messages.
func (c *Controller) SetSampling(ctx context.Context, cmd string, on bool) error {
	if _, err := c.transport.RunCommand(ctx, cmd); err != nil {
		return fmt.Errorf("device: set sampling: %w", err)
	}
	c.mu.Lock()
	c.isSampling = on
	c.mu.Unlock()
	return nil
}
