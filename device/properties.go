// Package device implements the remote headstage controller: its
// connect/initialize/sample/stimulate state machine, status parsing, and
// the SSH/SFTP command transport used to reach the physical chip.
package device

// ElectrodePosition is a (i, 0, 0, 1) style 4-tuple describing one
// electrode's physical placement, carried through to the archival file's
// device-properties metadata untouched.
type ElectrodePosition [4]int

// Properties describes a device's fixed capabilities and electrode layout,
// serialized to JSON for the archival writer's file-level notes field and
// the (external) HTTP device-state surface.
type Properties struct {
	Name string `json:"name"`

	CanControlReplay   bool `json:"canControlReplay"`
	CanControlSampling bool `json:"canControlSampling"`
	CanRecordToFile    bool `json:"canRecordToFile"`
	CanStimulate       bool `json:"canStimulate"`
	CanSampleDC        bool `json:"canSampleDC"`

	ElectrodeCount int                       `json:"electrodeCount"`
	RowCount       int                       `json:"rowCount"`
	ElectrodeNames []string                  `json:"electrodeNames"`
	ElectrodeMap   map[int]ElectrodePosition `json:"electrodeMap"`
}
