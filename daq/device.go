package daq

// Info is the capability query of one analog subsystem
type Info interface {
	// HasPacer returns true if the subsystem supports hardware paced scans
	HasPacer() (bool, error)

	// NumChansByMode returns the number of channels available in an input mode.
	// Output subsystems may ignore the mode.
	NumChansByMode(InputMode) (int, error)

	// Ranges returns the voltage ranges supported, in the board's order
	Ranges() ([]Range, error)
}

// ScanRequest is the full description of one hardware paced scan
type ScanRequest struct {
	LowChannel  int
	HighChannel int

	// InputMode is used by input scans only
	InputMode InputMode

	Range Range

	// SamplesPerChannel is the length of the buffer in time steps.  With the
	// Continuous option the buffer is used as a ring.
	SamplesPerChannel int

	// Rate is the requested rate in Hz
	Rate float64

	Options ScanOption
	Flags   ScanFlag
}

// Scanner is one analog subsystem (input or output) of a board.
//
// StartScan is non-blocking: it arms the scan and returns the rate the
// hardware actually achieved.  The buffer passed to StartScan must have been
// obtained from NewBuffer and must not be reallocated while the scan runs;
// the driver reads (output) or writes (input) it asynchronously.  FreeBuffer
// returns a buffer to the driver; it must not be called while a scan using
// the buffer runs.
type Scanner interface {
	Info() (Info, error)
	NewBuffer(n int) ([]float64, error)
	FreeBuffer(buf []float64) error
	StartScan(req ScanRequest, buf []float64) (float64, error)
	ScanStatus() (ScanStatus, TransferStatus, error)

	// StopScan halts a scan.  It is idempotent.
	StopScan() error
}

// Descriptor identifies a board found in the inventory
type Descriptor struct {
	ProductName string        `json:"productName"`
	ProductID   int           `json:"productId"`
	Interface   InterfaceType `json:"interface"`
	DevString   string        `json:"devString"`
	UniqueID    string        `json:"uniqueId"`
}

// Board is one opened DAQ device.
//
// AnalogInput and AnalogOutput return nil when the board lacks that subsystem.
type Board interface {
	Descriptor() Descriptor
	Connect(connectionCode int64) error
	IsConnected() (bool, error)
	Disconnect() error
	Release() error
	AnalogInput() Scanner
	AnalogOutput() Scanner
}

// Driver discovers and opens boards
type Driver interface {
	Inventory(InterfaceType) ([]Descriptor, error)
	Open(Descriptor) (Board, error)
}
