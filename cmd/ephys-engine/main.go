// Command ephys-engine wires the acquisition/stimulation engine together
// and runs its 120 Hz tick loop (grounded on
// original_source/engine/main.py's service-wiring order; the HTTP
// control surface, WebSocket fan-out, and YAML config loading it also
// wires are external collaborators this binary does not implement —
// see SPEC_FULL.md §1).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/crypto/ssh"

	"ephys.tools/engine"
	"ephys.tools/engine/archive"
	"ephys.tools/engine/databuffer"
	"ephys.tools/engine/device"
	"ephys.tools/engine/ingest"
	"ephys.tools/engine/sched"
	"ephys.tools/engine/step"
	"ephys.tools/engine/stim"
)

func main() {
	var (
		sshAddr       = pflag.StringP("ssh-addr", "a", "", "Device SSH address, host:port (required)")
		sshUser       = pflag.StringP("ssh-user", "u", "root", "Device SSH username")
		sshPassword   = pflag.String("ssh-password", "", "Device SSH password (prefer -ssh-key)")
		sshKeyPath    = pflag.String("ssh-key", "", "Path to the SSH private key")
		aggregator    = pflag.String("aggregator-tool", "/usr/local/bin/write_evenly", "Remote path to the chip FIFO aggregator tool")
		numChips      = pflag.IntP("num-chips", "n", 4, "Number of headstage chips (one UDP port each)")
		canSampleDC   = pflag.Bool("dc", true, "Whether the device samples DC in addition to AC")
		udpPortBase   = pflag.Int("udp-port-base", 5051, "First UDP ingest port (one per chip)")
		statusKind    = pflag.String("status-format", "openmea", "Device status line format: openmea or neuroprobe")
		statusCmd     = pflag.String("status-cmd", "cat /proc/openmea/status", "Remote command that prints the device status line")
		archiveDir    = pflag.String("archive-dir", "", "Directory to archive acquired samples into (disabled if empty)")
		parentPID     = pflag.Int("parent-pid", 0, "Non-zero enables the watchdog, which exits when this process's parent exits; 0 to disable")
		verbose       = pflag.BoolP("verbose", "v", false, "Enable debug logging")
		help          = pflag.Bool("help", false, "Display help text")
	)
	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: ephys-engine -a HOST:PORT [flags]")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *sshAddr == "" {
		fmt.Fprintln(os.Stderr, "ephys-engine: -ssh-addr is required")
		pflag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *parentPID > 0 {
		go ingest.RunWatchdog(ctx, func() {
			logger.Error("ephys-engine: parent process exited, shutting down", "parentPid", *parentPID)
			cancel()
		})
	}

	if err := run(ctx, logger, runConfig{
		sshAddr:        *sshAddr,
		sshUser:        *sshUser,
		sshPassword:    *sshPassword,
		sshKeyPath:     *sshKeyPath,
		aggregatorTool: *aggregator,
		numChips:       *numChips,
		canSampleDC:    *canSampleDC,
		udpPortBase:    *udpPortBase,
		statusKind:     *statusKind,
		statusCmd:      *statusCmd,
		archiveDir:     *archiveDir,
	}); err != nil {
		logger.Error("ephys-engine: fatal", "error", err)
		os.Exit(1)
	}
}

type runConfig struct {
	sshAddr, sshUser, sshPassword, sshKeyPath string
	aggregatorTool                            string
	numChips                                  int
	canSampleDC                               bool
	udpPortBase                               int
	statusKind, statusCmd                     string
	archiveDir                                string
}

func run(ctx context.Context, logger *slog.Logger, cfg runConfig) error {
	sshClientConfig, err := buildSSHClientConfig(cfg)
	if err != nil {
		return fmt.Errorf("ssh auth: %w", err)
	}

	transport, err := device.DialSSHTransport(device.SSHConfig{
		Addr:           cfg.sshAddr,
		ClientConfig:   sshClientConfig,
		AggregatorTool: cfg.aggregatorTool,
		DeleteStaged:   true,
	})
	if err != nil {
		return fmt.Errorf("dial device transport: %w", err)
	}
	defer transport.Close()

	chipPaths := make(map[int]string, cfg.numChips)
	for i := 0; i < cfg.numChips; i++ {
		chipPaths[i] = fmt.Sprintf("/dev/openmea/chip%d", i)
	}
	controller := device.NewController(transport, device.Config{
		InitCommands: []string{"openmea_init --reset", "openmea_init --calibrate"},
		ChipPaths:    chipPaths,
		Logger:       logger,
	})
	if err := controller.Connect(ctx); err != nil {
		return fmt.Errorf("connect device: %w", err)
	}
	if err := controller.Initialize(ctx, func(p device.InitProgress) {
		logger.Info("ephys-engine: initializing device", "step", p.Step, "total", p.Total)
	}); err != nil {
		return fmt.Errorf("initialize device: %w", err)
	}
	go controller.StartReconnectLoop(ctx, func() {
		logger.Info("ephys-engine: device reconnected")
	})

	parseStatus := device.ParseOpenMEAStatus
	if cfg.statusKind == "neuroprobe" {
		parseStatus = device.ParseNeuroprobeStatus
	}
	poller := &statusPoller{}
	go poller.run(ctx, controller, cfg.statusCmd, parseStatus, logger)

	registry := databuffer.NewRegistry()
	numElectrodes := cfg.numChips * engine.ChannelsPerChip
	for i := 0; i < numElectrodes; i++ {
		registry.RegisterElectrode(engine.Electrode(i))
	}

	queue := ingest.NewQueue()
	ports := make([]int, cfg.numChips)
	for i := range ports {
		ports[i] = cfg.udpPortBase + i
	}
	receiver, err := ingest.NewReceiver(ingest.Config{
		Ports:           ports,
		ChannelsPerPort: engine.ChannelsPerChip,
		DwordsPerBatch:  engine.DefaultDwordsPerBatch,
		Logger:          logger,
	}, queue)
	if err != nil {
		return fmt.Errorf("start udp ingestor: %w", err)
	}
	defer receiver.Close()

	go receiver.Run(ctx)

	eng := sched.New(sched.Config{
		Registry: registry,
		Source:   &deviceSource{queue: queue, poller: poller},
		Sink:     &logSink{logger: logger},
		Logger:   logger,
	})

	eng.RegisterModule(stim.NewModule(ctx, controller.StimTick))

	if cfg.archiveDir != "" {
		notes, _ := json.Marshal(device.Properties{
			Name:           "ephys-engine",
			CanSampleDC:    cfg.canSampleDC,
			CanStimulate:   true,
			ElectrodeCount: numElectrodes,
		})
		writer, err := archive.NewWriter("archive", archive.WriterConfig{
			Dir:           cfg.archiveDir,
			NumElectrodes: numElectrodes,
			CanSampleDC:   cfg.canSampleDC,
			SamplesPerSec: 20000,
			Resolution:    1,
			Conversion:    1,
			DeviceNotes:   notes,
		})
		if err != nil {
			return fmt.Errorf("start archive writer: %w", err)
		}
		defer writer.Finalize()

		archivePipeline := step.NewPipeline("archive", []step.Step{
			&aggregateStep{eng: eng},
			writer,
		})
		eng.RegisterPipeline("archive", archivePipeline)
	}

	logger.Info("ephys-engine: starting tick loop", "tickRate", sched.TickRate)
	return eng.Run(ctx)
}

func buildSSHClientConfig(cfg runConfig) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if cfg.sshKeyPath != "" {
		key, err := os.ReadFile(cfg.sshKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read ssh key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse ssh key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.sshPassword != "" {
		auth = append(auth, ssh.Password(cfg.sshPassword))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("either -ssh-key or -ssh-password must be set")
	}
	return &ssh.ClientConfig{
		User:            cfg.sshUser,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	}, nil
}

// deviceSource adapts the ingestor's decoded-batch queue and the device
// status poller into the scheduler's DataSource contract.
type deviceSource struct {
	queue  *ingest.Queue
	poller *statusPoller
}

func (d *deviceSource) CollectUpdates() (sched.Updates, error) {
	samples := make(map[string][]float32)

drain:
	for {
		select {
		case batch, ok := <-d.queue.Chan():
			if !ok {
				break drain
			}
			for e, s := range batch.Decoded.AC {
				samples[e.ACName()] = append(samples[e.ACName()], s...)
			}
			for e, s := range batch.Decoded.DC {
				samples[e.DCName()] = append(samples[e.DCName()], s...)
			}
		default:
			break drain
		}
	}

	wasReset, state := d.poller.drain()
	return sched.Updates{Samples: samples, WasReset: wasReset, DeviceState: state}, nil
}

// statusPoller runs a background device status poll and hands its
// observations (was_reset, state lines) to the next tick's
// deviceSource.CollectUpdates call, since the scheduler's DataSource
// contract is pull-based at tick cadence while status polling runs on its
// own, slower cadence.
type statusPoller struct {
	mu       sync.Mutex
	wasReset bool
	state    []string
}

func (p *statusPoller) run(ctx context.Context, controller *device.Controller, statusCmd string, parse func(string) (device.Status, error), logger *slog.Logger) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st, wasReset, err := controller.PollStatus(ctx, statusCmd, parse)
			if err != nil {
				logger.Debug("ephys-engine: status poll failed", "error", err)
				continue
			}
			p.mu.Lock()
			if wasReset {
				p.wasReset = true
			}
			p.state = []string{fmt.Sprintf("sampling:%v,init:%s", st.IsSampling, st.Init)}
			p.mu.Unlock()
		}
	}
}

func (p *statusPoller) drain() (bool, []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	wasReset := p.wasReset
	state := p.state
	p.wasReset = false
	p.state = nil
	return wasReset, state
}

// aggregateStep republishes the engine's per-tick "electrodes" aggregate
// (set by sched.Engine.tick) as a Step result, feeding the archive
// pipeline's first position.
type aggregateStep struct {
	eng *sched.Engine
}

func (a *aggregateStep) ID() string { return databuffer.ElectrodesStepName }

func (a *aggregateStep) DoStep(_ any) (any, error) {
	agg := a.eng.Aggregate()
	if len(agg) == 0 {
		return nil, nil
	}
	return agg, nil
}

// logSink is the default OutboundSink when no WebSocket fan-out is wired
// (an external collaborator, SPEC_FULL.md §1): it logs tick results at
// debug level instead of dropping them silently.
type logSink struct {
	logger *slog.Logger
}

func (s *logSink) SendGeneral(message map[string]any) error {
	keys := make([]string, 0, len(message))
	for k := range message {
		keys = append(keys, k)
	}
	s.logger.Debug("ephys-engine: tick result", "keys", strings.Join(keys, ","))
	return nil
}

func (s *logSink) SendModule(name string, payload any) error {
	s.logger.Debug("ephys-engine: module result", "module", name, "payload", payload)
	return nil
}
