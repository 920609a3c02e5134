/*Package device owns the single connection to the DAQ board.

A Handler walks

	New (inventory, open first board) -> Connect -> Disconnect -> Release

and rejects calls out of that order with daq.ErrInvalidState.  Scans run
through Exclusive, which holds the handler's scan lock; Disconnect, Reset and
Release refuse to run while it is held.
*/
package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/nanocal/nanocontrol/daq"
)

// State is the connection state of a Handler
type State int

const (
	// Opened means the board was found and opened but not connected
	Opened State = iota

	// Connected means Connect succeeded
	Connected

	// Disconnected means the board was disconnected and may be reconnected
	Disconnected

	// Released means the handle is gone
	Released
)

func (s State) String() string {
	switch s {
	case Opened:
		return "opened"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case Released:
		return "released"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrScanInProgress is generated when the connection is changed while
// Exclusive is running
var ErrScanInProgress = fmt.Errorf("%w: scan in progress", daq.ErrInvalidState)

// DefaultBackOff is the policy Connect retries with
func DefaultBackOff() backoff.BackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock}
}

// Handler is the session context for one board
type Handler struct {
	// BackOff is the retry policy of Connect.  New sets DefaultBackOff.
	BackOff func() backoff.BackOff

	params daq.DaqParams
	log    *zap.Logger

	mu    sync.Mutex
	state State
	board daq.Board

	// scan is held for the duration of Exclusive
	scan sync.Mutex
}

// New takes the inventory of boards on the interfaces in p and opens the
// first one found
func New(driver daq.Driver, p daq.DaqParams, log *zap.Logger) (*Handler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	descs, err := driver.Inventory(p.InterfaceType)
	if err != nil {
		return nil, err
	}
	if len(descs) == 0 {
		return nil, fmt.Errorf("%w on %v", daq.ErrNoDevices, p.InterfaceType)
	}
	desc := descs[0]
	log.Info("Found DAQ device",
		zap.String("product", desc.ProductName),
		zap.String("unique_id", desc.UniqueID),
		zap.Int("available", len(descs)))
	board, err := driver.Open(desc)
	if err != nil {
		return nil, err
	}
	return &Handler{
		BackOff: DefaultBackOff,
		params:  p,
		log:     log,
		board:   board,
	}, nil
}

// State returns the connection state
func (h *Handler) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Params returns the parameters the handler was created with
func (h *Handler) Params() daq.DaqParams { return h.params }

// Descriptor describes the opened board
func (h *Handler) Descriptor() daq.Descriptor { return h.board.Descriptor() }

// Connect connects to the board with the configured connection code,
// retrying hardware faults with BackOff
func (h *Handler) Connect() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connect()
}

func (h *Handler) connect() error {
	if h.state != Opened && h.state != Disconnected {
		return fmt.Errorf("%w: connect while %v", daq.ErrInvalidState, h.state)
	}
	attempts := 0
	op := func() error {
		attempts++
		err := h.board.Connect(h.params.ConnectionCode)
		if err != nil && !daq.IsHardwareFault(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	err := backoff.Retry(op, h.BackOff())
	if err != nil {
		h.log.Error("Failed to connect to DAQ device",
			zap.String("product", h.board.Descriptor().ProductName),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return err
	}
	h.state = Connected
	h.log.Info("Connected to DAQ device",
		zap.String("product", h.board.Descriptor().ProductName),
		zap.Int64("connection_code", h.params.ConnectionCode),
		zap.Int("attempts", attempts))
	return nil
}

// IsConnected asks the board whether it is connected
func (h *Handler) IsConnected() (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == Released {
		return false, nil
	}
	return h.board.IsConnected()
}

// Disconnect disconnects from the board.  It fails while a scan holds the
// handler.
func (h *Handler) Disconnect() error {
	if !h.scan.TryLock() {
		return ErrScanInProgress
	}
	defer h.scan.Unlock()
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.disconnect()
}

func (h *Handler) disconnect() error {
	if h.state != Connected {
		return fmt.Errorf("%w: disconnect while %v", daq.ErrInvalidState, h.state)
	}
	if err := h.board.Disconnect(); err != nil {
		return err
	}
	h.state = Disconnected
	h.log.Info("Disconnected from DAQ device", zap.String("product", h.board.Descriptor().ProductName))
	return nil
}

// Reset disconnects, if connected, and connects again
func (h *Handler) Reset() error {
	if !h.scan.TryLock() {
		return ErrScanInProgress
	}
	defer h.scan.Unlock()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == Connected {
		if err := h.disconnect(); err != nil {
			return err
		}
	}
	return h.connect()
}

// Release disconnects, if connected, and releases the board.  The handler
// cannot be used afterward.
func (h *Handler) Release() error {
	if !h.scan.TryLock() {
		return ErrScanInProgress
	}
	defer h.scan.Unlock()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == Released {
		return fmt.Errorf("%w: already released", daq.ErrInvalidState)
	}
	var errs error
	if h.state == Connected {
		errs = h.disconnect()
	}
	if err := h.board.Release(); err != nil {
		return multierr.Append(errs, err)
	}
	h.state = Released
	h.log.Info("Released DAQ device", zap.String("product", h.board.Descriptor().ProductName))
	return errs
}

// Exclusive runs fn with the board while holding the scan lock.  The board
// must be connected.
func (h *Handler) Exclusive(fn func(daq.Board) error) error {
	h.scan.Lock()
	defer h.scan.Unlock()
	h.mu.Lock()
	state, board := h.state, h.board
	h.mu.Unlock()
	if state != Connected {
		return fmt.Errorf("%w: scan while %v", daq.ErrInvalidState, state)
	}
	return fn(board)
}

// Busy reports whether Exclusive is running
func (h *Handler) Busy() bool {
	if h.scan.TryLock() {
		h.scan.Unlock()
		return false
	}
	return true
}
