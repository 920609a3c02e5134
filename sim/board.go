package sim

import (
	"sync"

	"github.com/nanocal/nanocontrol/daq"
)

// BoardConfig describes one simulated board
type BoardConfig struct {
	Descriptor daq.Descriptor

	// Input and Output are nil for a board without that subsystem
	Input  *ScannerConfig
	Output *ScannerConfig

	// ConnectFailures is the number of Connect calls that fail before one
	// succeeds
	ConnectFailures int
}

// DefaultBoard looks like a USB-1608GX-2AO
func DefaultBoard() BoardConfig {
	in, out := DefaultInput(), DefaultOutput()
	return BoardConfig{
		Descriptor: daq.Descriptor{
			ProductName: "USB-1608GX-2AO",
			ProductID:   0x0136,
			Interface:   daq.USB,
			DevString:   "USB-1608GX-2AO",
			UniqueID:    "01D4E6A1",
		},
		Input:  &in,
		Output: &out,
	}
}

// Board is a simulated daq.Board
type Board struct {
	Rec *Recorder

	mu        sync.Mutex
	desc      daq.Descriptor
	failures  int
	connected bool
	released  bool
	code      int64

	ai *Scanner
	ao *Scanner
}

// NewBoard creates a board.  The Recorder may be shared between boards.
func NewBoard(cfg BoardConfig, rec *Recorder) *Board {
	if rec == nil {
		rec = &Recorder{}
	}
	b := &Board{Rec: rec, desc: cfg.Descriptor, failures: cfg.ConnectFailures}
	if cfg.Input != nil {
		b.ai = newScanner("ai", daq.Input, *cfg.Input, rec)
	}
	if cfg.Output != nil {
		b.ao = newScanner("ao", daq.Output, *cfg.Output, rec)
	}
	return b
}

// Descriptor implements daq.Board
func (b *Board) Descriptor() daq.Descriptor { return b.desc }

// Connect implements daq.Board
func (b *Board) Connect(code int64) error {
	b.Rec.record("board", "Connect")
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return &daq.HardwareFault{Op: "Connect", Code: 1, Message: "Invalid device handle"}
	}
	if b.failures > 0 {
		b.failures--
		return &daq.HardwareFault{Op: "Connect", Code: 80, Message: "Device not responding"}
	}
	b.connected = true
	b.code = code
	return nil
}

// IsConnected implements daq.Board
func (b *Board) IsConnected() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected, nil
}

// Disconnect implements daq.Board
func (b *Board) Disconnect() error {
	b.Rec.record("board", "Disconnect")
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
	return nil
}

// Release implements daq.Board
func (b *Board) Release() error {
	b.Rec.record("board", "Release")
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
	b.released = true
	return nil
}

// ConnectionCode is the code passed to the last successful Connect
func (b *Board) ConnectionCode() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.code
}

// Released reports whether Release has been called
func (b *Board) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}

// AnalogInput implements daq.Board.  The nil check keeps a typed nil out of
// the interface.
func (b *Board) AnalogInput() daq.Scanner {
	if b.ai == nil {
		return nil
	}
	return b.ai
}

// AnalogOutput implements daq.Board
func (b *Board) AnalogOutput() daq.Scanner {
	if b.ao == nil {
		return nil
	}
	return b.ao
}

// AI is the concrete input subsystem, or nil
func (b *Board) AI() *Scanner { return b.ai }

// AO is the concrete output subsystem, or nil
func (b *Board) AO() *Scanner { return b.ao }

// Driver is a simulated daq.Driver over a fixed set of boards
type Driver struct {
	Boards []*Board

	// InventoryFault, if not nil, is returned by Inventory
	InventoryFault *daq.HardwareFault
}

// NewDriver returns a driver holding a single DefaultBoard
func NewDriver() (*Driver, *Board) {
	b := NewBoard(DefaultBoard(), nil)
	return &Driver{Boards: []*Board{b}}, b
}

// Inventory implements daq.Driver
func (d *Driver) Inventory(ifc daq.InterfaceType) ([]daq.Descriptor, error) {
	if d.InventoryFault != nil {
		return nil, d.InventoryFault
	}
	var out []daq.Descriptor
	for _, b := range d.Boards {
		if b.desc.Interface&ifc != 0 {
			out = append(out, b.desc)
		}
	}
	return out, nil
}

// Open implements daq.Driver.  Opening a released board hands out a fresh
// handle to it.
func (d *Driver) Open(desc daq.Descriptor) (daq.Board, error) {
	for _, b := range d.Boards {
		if b.desc == desc {
			b.Rec.record("board", "Open")
			b.mu.Lock()
			b.released = false
			b.mu.Unlock()
			return b, nil
		}
	}
	return nil, &daq.HardwareFault{Op: "Open", Code: 2, Message: "Device not found"}
}
