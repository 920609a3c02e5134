package daq

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is wrapped by every error produced while loading settings
	ErrConfiguration = errors.New("configuration error")

	// ErrUnsupportedDirection is generated when the board lacks the requested
	// analog subsystem
	ErrUnsupportedDirection = errors.New("direction not supported by the board")

	// ErrNoHardwarePacing is generated when the board cannot run pacer-timed scans
	ErrNoHardwarePacing = errors.New("board does not support hardware paced scans")

	// ErrAlreadyRunning is generated when a scan is started on a session that
	// is already running one
	ErrAlreadyRunning = errors.New("scan already running")

	// ErrInvalidState is generated when an operation is not legal in the
	// current state
	ErrInvalidState = errors.New("invalid state for operation")

	// ErrNoDevices is generated when the inventory is empty
	ErrNoDevices = errors.New("no DAQ devices found")
)

// HardwareFault is a failure reported by the driver.  Code and Message are
// kept exactly as the driver reported them.
type HardwareFault struct {
	// Op is the driver call that failed
	Op string

	// Code is the driver's error code
	Code int

	// Message is the driver's error text
	Message string
}

func (e *HardwareFault) Error() string {
	return fmt.Sprintf("hardware fault in %s: code %d: %s", e.Op, e.Code, e.Message)
}

// IsHardwareFault returns true if err is or wraps a *HardwareFault
func IsHardwareFault(err error) bool {
	var hf *HardwareFault
	return errors.As(err, &hf)
}
