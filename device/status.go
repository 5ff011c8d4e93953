package device

import (
	"fmt"
	"strconv"
	"strings"
)

// InitState is the device's initialization state, one leg of the
// orthogonal (init, sampling, stimulating) state triple.
type InitState int

const (
	NotInitialized InitState = iota
	Initializing
	Initialized
	InitFailed
)

func (s InitState) String() string {
	switch s {
	case NotInitialized:
		return "NOT_INITIALIZED"
	case Initializing:
		return "INITIALIZING"
	case Initialized:
		return "INITIALIZED"
	case InitFailed:
		return "INIT_FAILED"
	default:
		return "UNKNOWN"
	}
}

// Status is the decoded form of a device status poll.
type Status struct {
	IsConnected   bool
	Init          InitState
	IsSampling    bool
	SamplesPerSec float64
}

// sclkFreq is the device master clock, in Hz, used to derive a sample rate
// from the status line's sample-duration field.
const sclkFreq = 200e6

// ParseOpenMEAStatus parses the OpenMEA status line format:
// "hex,hex,int,bit,bit" — connected flag (hex bit), init-state code (hex),
// sample-duration in SCLK ticks, a sampling flag bit, a reserved flag bit.
func ParseOpenMEAStatus(line string) (Status, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 5 {
		return Status{}, fmt.Errorf("device: openmea status: expected 5 fields, got %d", len(fields))
	}

	connected, err := parseHexBit(fields[0])
	if err != nil {
		return Status{}, fmt.Errorf("device: openmea status: connected flag: %w", err)
	}
	initCode, err := strconv.ParseInt(fields[1], 16, 64)
	if err != nil {
		return Status{}, fmt.Errorf("device: openmea status: init code: %w", err)
	}
	duration, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return Status{}, fmt.Errorf("device: openmea status: sample duration: %w", err)
	}
	sampling, err := parseBit(fields[3])
	if err != nil {
		return Status{}, fmt.Errorf("device: openmea status: sampling flag: %w", err)
	}

	return Status{
		IsConnected:   connected,
		Init:          initStateFromCode(initCode),
		IsSampling:    sampling,
		SamplesPerSec: samplesPerSec(duration),
	}, nil
}

// ParseNeuroprobeStatus parses the Neuroprobe status line format:
// "hex,hex,bit,bit,bit,bit,bit,bit,hex,bit,bit".
func ParseNeuroprobeStatus(line string) (Status, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 11 {
		return Status{}, fmt.Errorf("device: neuroprobe status: expected 11 fields, got %d", len(fields))
	}

	connected, err := parseHexBit(fields[0])
	if err != nil {
		return Status{}, fmt.Errorf("device: neuroprobe status: connected flag: %w", err)
	}
	initCode, err := strconv.ParseInt(fields[1], 16, 64)
	if err != nil {
		return Status{}, fmt.Errorf("device: neuroprobe status: init code: %w", err)
	}
	sampling, err := parseBit(fields[2])
	if err != nil {
		return Status{}, fmt.Errorf("device: neuroprobe status: sampling flag: %w", err)
	}
	duration, err := strconv.ParseInt(fields[8], 16, 64)
	if err != nil {
		return Status{}, fmt.Errorf("device: neuroprobe status: sample duration: %w", err)
	}

	return Status{
		IsConnected:   connected,
		Init:          initStateFromCode(initCode),
		IsSampling:    sampling,
		SamplesPerSec: samplesPerSec(duration),
	}, nil
}

func samplesPerSec(durationSclkTicks int64) float64 {
	if durationSclkTicks <= 0 {
		return 0
	}
	return sclkFreq / float64(durationSclkTicks)
}

func initStateFromCode(code int64) InitState {
	switch code {
	case 0:
		return NotInitialized
	case 1:
		return Initializing
	case 2:
		return Initialized
	default:
		return InitFailed
	}
}

func parseBit(s string) (bool, error) {
	switch s {
	case "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, fmt.Errorf("expected 0 or 1, got %q", s)
	}
}

func parseHexBit(s string) (bool, error) {
	v, err := strconv.ParseInt(s, 16, 64)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}
