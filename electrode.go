package engine

import "fmt"

// Electrode identifies one global channel: chip*ChannelsPerChip + local.
type Electrode int

// NewElectrode builds an Electrode from a chip index and a chip-local
// channel index in [0, ChannelsPerChip).
func NewElectrode(chip, local int) Electrode {
	return Electrode(chip*ChannelsPerChip + local)
}

// Chip returns which chip this electrode belongs to.
func (e Electrode) Chip() int {
	return int(e) / ChannelsPerChip
}

// Local returns the chip-local channel index.
func (e Electrode) Local() int {
	return int(e) % ChannelsPerChip
}

// ACName returns the published-step registry name for this electrode's AC
// series, e.g. "3_ac".
func (e Electrode) ACName() string {
	return fmt.Sprintf("%d_ac", int(e))
}

// DCName returns the published-step registry name for this electrode's DC
// series, e.g. "3_dc".
func (e Electrode) DCName() string {
	return fmt.Sprintf("%d_dc", int(e))
}
