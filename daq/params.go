package daq

import "fmt"

// DaqParams selects and connects to a board
type DaqParams struct {
	// InterfaceType restricts the inventory search to these transports
	InterfaceType InterfaceType `json:"interfaceType"`

	// ConnectionCode is used only by network boards with a non-default code
	ConnectionCode int64 `json:"connectionCode"`
}

func (p DaqParams) String() string {
	return fmt.Sprintf("{interface_type:%v connection_code:%d}", p.InterfaceType, p.ConnectionCode)
}

// AnalogParams holds the parameters common to both analog directions
type AnalogParams struct {
	// SampleRate is the requested pacer rate in Hz
	SampleRate int `json:"sampleRate"`

	// RangeID selects the voltage range; see AiParams and AoParams for
	// how each direction interprets it
	RangeID int `json:"rangeId"`

	// LowChannel is the first channel of the scan
	LowChannel int `json:"lowChannel"`

	// HighChannel is the last channel of the scan, inclusive
	HighChannel int `json:"highChannel"`

	// ScanFlags modify how data is scaled and calibrated
	ScanFlags ScanFlag `json:"scanFlags"`

	// Options modify how the scan is paced and transferred
	Options ScanOption `json:"options"`

	// SamplesPerChannel is the number of time steps in one buffer
	SamplesPerChannel int `json:"samplesPerChannel"`
}

// ChannelCount is the number of channels spanned by the scan
func (p AnalogParams) ChannelCount() int {
	return p.HighChannel - p.LowChannel + 1
}

// BufferLen is the number of samples in an interleaved buffer for the scan
func (p AnalogParams) BufferLen() int {
	return p.ChannelCount() * p.SamplesPerChannel
}

// AiParams are the analog-input parameters.  RangeID is used directly as a
// Range value.
type AiParams struct {
	AnalogParams

	// InputMode is the input wiring
	InputMode InputMode `json:"inputMode"`
}

func (p AiParams) String() string {
	return fmt.Sprintf("{sample_rate:%d range_id:%d channels:%d-%d input_mode:%v scan_flags:%d options:%d samples_per_channel:%d}",
		p.SampleRate, p.RangeID, p.LowChannel, p.HighChannel, p.InputMode, p.ScanFlags, p.Options, p.SamplesPerChannel)
}

// AoParams are the analog-output parameters.  RangeID is an index into the
// board's table of output ranges.
//
// Amplitude, Offset and Period describe the sine written to the buffer when
// no temperature profile is supplied.
type AoParams struct {
	AnalogParams

	// Amplitude of the sine, volts
	Amplitude float64 `json:"amplitude"`

	// Offset of the sine, volts
	Offset float64 `json:"offset"`

	// Period divides SampleRate to give the samples per cycle
	Period float64 `json:"period"`
}

func (p AoParams) String() string {
	return fmt.Sprintf("{sample_rate:%d range_id:%d channels:%d-%d scan_flags:%d options:%d samples_per_channel:%d amplitude:%g offset:%g period:%g}",
		p.SampleRate, p.RangeID, p.LowChannel, p.HighChannel, p.ScanFlags, p.Options, p.SamplesPerChannel, p.Amplitude, p.Offset, p.Period)
}
