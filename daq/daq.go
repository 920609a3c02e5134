/*Package daq describes the parameters, hardware contract, and errors shared by
every piece of the fast-heating acquisition stack.

The enumerated values (input modes, ranges, scan options and flags, interface
types) mirror the integers used by MCC's libuldaq so that a settings file
written for the vendor tools can be consumed unchanged.

Nothing in this package talks to hardware.  A concrete driver (package mccdaq)
or a simulator (package sim) satisfies the Driver, Board and Scanner
interfaces, and the scan and device packages depend only on those.
*/
package daq

import (
	"fmt"
	"strings"
)

// MaxScanSampleRate is the largest sample rate, in Hz, accepted from a
// settings file.  Larger values are clamped to it.
const MaxScanSampleRate = 100000

// Direction is the direction of an analog subsystem
type Direction int

const (
	// Input is the analog-input (ADC) subsystem
	Input Direction = iota

	// Output is the analog-output (DAC) subsystem
	Output
)

func (d Direction) String() string {
	switch d {
	case Input:
		return "analog input"
	case Output:
		return "analog output"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// InterfaceType is a bitmask of the transports a board may be attached by
type InterfaceType int

const (
	// USB boards
	USB InterfaceType = 1 << iota
	// Bluetooth boards
	Bluetooth
	// Ethernet boards
	Ethernet

	// AnyInterface matches every transport
	AnyInterface = USB | Bluetooth | Ethernet
)

func (t InterfaceType) String() string {
	if t == 0 {
		return "none"
	}
	var parts []string
	if t&USB != 0 {
		parts = append(parts, "usb")
	}
	if t&Bluetooth != 0 {
		parts = append(parts, "bluetooth")
	}
	if t&Ethernet != 0 {
		parts = append(parts, "ethernet")
	}
	return strings.Join(parts, "|")
}

// InputMode is the wiring of the analog inputs
type InputMode int

const (
	// Differential measures the difference between a channel pair
	Differential InputMode = 1

	// SingleEnded measures each channel against ground
	SingleEnded InputMode = 2

	// PseudoDifferential measures against a common reference
	PseudoDifferential InputMode = 3
)

func (m InputMode) String() string {
	switch m {
	case Differential:
		return "differential"
	case SingleEnded:
		return "single-ended"
	case PseudoDifferential:
		return "pseudo-differential"
	default:
		return fmt.Sprintf("InputMode(%d)", int(m))
	}
}

// ValidInputMode returns true if m is one of the known input modes
func ValidInputMode(m InputMode) bool {
	return m == Differential || m == SingleEnded || m == PseudoDifferential
}

// Range is a hardware voltage range, e.g. ±10V.  Values are the driver's
// enumeration, not indices.
type Range int

const (
	// Bip60Volts is -60 to +60 V
	Bip60Volts Range = 1
	// Bip30Volts is -30 to +30 V
	Bip30Volts Range = 2
	// Bip15Volts is -15 to +15 V
	Bip15Volts Range = 3
	// Bip20Volts is -20 to +20 V
	Bip20Volts Range = 4
	// Bip10Volts is -10 to +10 V
	Bip10Volts Range = 5
	// Bip5Volts is -5 to +5 V
	Bip5Volts Range = 6
	// Bip4Volts is -4 to +4 V
	Bip4Volts Range = 7
	// Bip2Pt5Volts is -2.5 to +2.5 V
	Bip2Pt5Volts Range = 8
	// Bip2Volts is -2 to +2 V
	Bip2Volts Range = 9
	// Bip1Pt25Volts is -1.25 to +1.25 V
	Bip1Pt25Volts Range = 10
	// Bip1Volt is -1 to +1 V
	Bip1Volt Range = 11

	// Uni10Volts is 0 to 10 V
	Uni10Volts Range = 1005
	// Uni5Volts is 0 to 5 V
	Uni5Volts Range = 1006
)

// ScanOption is a bitmask of scan behaviors
type ScanOption int

const (
	// DefaultIO lets the driver pick the transfer mode
	DefaultIO ScanOption = 0
	// SingleIO transfers one sample per interrupt
	SingleIO ScanOption = 1 << (iota - 1)
	// BlockIO transfers in blocks
	BlockIO
	// BurstIO buffers on the board and transfers at the end
	BurstIO
	// Continuous runs until stopped, wrapping the buffer
	Continuous
	// ExtClock paces from an external clock
	ExtClock
	// ExtTrigger holds the scan until an external trigger
	ExtTrigger
	// Retrigger re-arms the trigger after each block
	Retrigger
	// BurstMode samples all channels back to back per pacer tick
	BurstMode
	// PacerOut exports the pacer clock
	PacerOut
)

// ScanFlag is a bitmask of data-handling modifiers
type ScanFlag int

const (
	// FlagDefault returns scaled, calibrated data
	FlagDefault ScanFlag = 0
	// FlagNoScaleData returns raw counts
	FlagNoScaleData ScanFlag = 1
	// FlagNoCalibrateData skips the calibration factors
	FlagNoCalibrateData ScanFlag = 2
)

// ScanStatus is the state of a hardware scan as reported by one poll
type ScanStatus int

const (
	// StatusIdle means no scan is in progress
	StatusIdle ScanStatus = iota
	// StatusRunning means a scan is in progress
	StatusRunning
	// StatusError means the poll itself failed
	StatusError
)

func (s ScanStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("ScanStatus(%d)", int(s))
	}
}

// TransferStatus is the progress of a scan
type TransferStatus struct {
	// ScanCount is the number of samples per channel transferred
	ScanCount int64 `json:"scanCount"`

	// TotalCount is the number of samples transferred over all channels
	TotalCount int64 `json:"totalCount"`

	// Index is the buffer position of the most recent sample, -1 if none
	Index int64 `json:"index"`
}
