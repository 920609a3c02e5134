/*Package sim provides an in-memory DAQ board that satisfies the daq interfaces.

It is used by the tests of every package above daq and by the Mock mode of
the server.  Every call a board receives is recorded in order, so callers can
assert on sequencing (e.g. that output starts before input).
*/
package sim

import (
	"fmt"
	"sync"

	"github.com/nanocal/nanocontrol/daq"
)

// Event is one recorded call
type Event struct {
	// Subsystem is "board", "ai" or "ao"
	Subsystem string
	Op        string
}

func (e Event) String() string {
	return e.Subsystem + "." + e.Op
}

// Recorder is a goroutine safe, append only log of Events
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) record(subsystem, op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Subsystem: subsystem, Op: op})
}

// Events returns a copy of the log
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Index returns the position of the first event matching subsystem and op,
// or -1
func (r *Recorder) Index(subsystem, op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.events {
		if e.Subsystem == subsystem && e.Op == op {
			return i
		}
	}
	return -1
}

// Count returns the number of events matching subsystem and op
func (r *Recorder) Count(subsystem, op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Subsystem == subsystem && e.Op == op {
			n++
		}
	}
	return n
}

// ScannerConfig shapes the behavior of one simulated subsystem
type ScannerConfig struct {
	NoPacer bool

	// SingleEndedChannels and DifferentialChannels are reported by NumChansByMode
	SingleEndedChannels  int
	DifferentialChannels int

	Ranges []daq.Range

	// RateFactor scales the requested rate to give the achieved rate.
	// Zero means the request is achieved exactly.
	RateFactor float64

	// StepsPerPoll is how far ScanCount advances on each status poll.
	// Zero finishes a scan on the first poll.
	StepsPerPoll int64

	// StartFault, if not nil, is returned by StartScan
	StartFault *daq.HardwareFault

	// StatusFault, if not nil, is returned by ScanStatus while running
	StatusFault *daq.HardwareFault

	// Signal produces the value written for a time step and channel of an
	// input scan.  Nil uses DefaultSignal.
	Signal func(step, channel int) float64
}

// DefaultSignal is channel + step/1000
func DefaultSignal(step, channel int) float64 {
	return float64(channel) + float64(step)/1000
}

// DefaultInput is a board-like input subsystem: 8 single ended or 4
// differential channels and the usual bipolar ranges
func DefaultInput() ScannerConfig {
	return ScannerConfig{
		SingleEndedChannels:  8,
		DifferentialChannels: 4,
		Ranges:               []daq.Range{daq.Bip10Volts, daq.Bip5Volts, daq.Bip2Volts, daq.Bip1Volt},
	}
}

// DefaultOutput is a two channel ±10V output subsystem
func DefaultOutput() ScannerConfig {
	return ScannerConfig{
		SingleEndedChannels: 2,
		Ranges:              []daq.Range{daq.Bip10Volts},
	}
}

// info implements daq.Info
type info struct {
	cfg ScannerConfig
}

func (i info) HasPacer() (bool, error) { return !i.cfg.NoPacer, nil }

func (i info) NumChansByMode(m daq.InputMode) (int, error) {
	switch m {
	case daq.SingleEnded:
		return i.cfg.SingleEndedChannels, nil
	case daq.Differential:
		return i.cfg.DifferentialChannels, nil
	default:
		return 0, &daq.HardwareFault{Op: "NumChansByMode", Code: 12, Message: "Invalid input mode"}
	}
}

func (i info) Ranges() ([]daq.Range, error) {
	out := make([]daq.Range, len(i.cfg.Ranges))
	copy(out, i.cfg.Ranges)
	return out, nil
}

// Scanner is one simulated subsystem
type Scanner struct {
	name string
	dir  daq.Direction
	rec  *Recorder

	mu       sync.Mutex
	cfg      ScannerConfig
	requests []daq.ScanRequest
	buf      []float64
	played   []float64
	running  bool
	count    int64

	// live holds the first element of every buffer not yet freed
	live map[*float64]struct{}
}

func newScanner(name string, dir daq.Direction, cfg ScannerConfig, rec *Recorder) *Scanner {
	return &Scanner{name: name, dir: dir, cfg: cfg, rec: rec, live: map[*float64]struct{}{}}
}

// Info implements daq.Scanner
func (s *Scanner) Info() (daq.Info, error) {
	s.rec.record(s.name, "Info")
	s.mu.Lock()
	defer s.mu.Unlock()
	return info{cfg: s.cfg}, nil
}

// NewBuffer implements daq.Scanner
func (s *Scanner) NewBuffer(n int) ([]float64, error) {
	if n <= 0 {
		return nil, &daq.HardwareFault{Op: "NewBuffer", Code: 11, Message: fmt.Sprintf("invalid buffer length %d", n)}
	}
	buf := make([]float64, n)
	s.mu.Lock()
	s.live[&buf[0]] = struct{}{}
	s.mu.Unlock()
	return buf, nil
}

// FreeBuffer implements daq.Scanner.  Freeing a buffer that is not live, or
// the buffer of a running scan, is a fault.
func (s *Scanner) FreeBuffer(buf []float64) error {
	s.rec.record(s.name, "FreeBuffer")
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(buf) == 0 {
		return &daq.HardwareFault{Op: "FreeBuffer", Code: 11, Message: "empty buffer"}
	}
	p := &buf[0]
	if _, ok := s.live[p]; !ok {
		return &daq.HardwareFault{Op: "FreeBuffer", Code: 11, Message: "buffer is not allocated"}
	}
	if s.running && len(s.buf) > 0 && &s.buf[0] == p {
		return &daq.HardwareFault{Op: "FreeBuffer", Code: 19, Message: "buffer is in use by a running scan"}
	}
	delete(s.live, p)
	return nil
}

// LiveBuffers is the number of buffers handed out and not yet freed
func (s *Scanner) LiveBuffers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// StartScan implements daq.Scanner.  Input scans fill buf immediately from
// the configured Signal; output scans keep a copy of buf as it was played.
func (s *Scanner) StartScan(req daq.ScanRequest, buf []float64) (float64, error) {
	s.rec.record(s.name, "StartScan")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.cfg.StartFault != nil {
		return 0, s.cfg.StartFault
	}
	if s.running {
		return 0, &daq.HardwareFault{Op: "StartScan", Code: 19, Message: "Device is already active"}
	}
	chans := req.HighChannel - req.LowChannel + 1
	if chans*req.SamplesPerChannel > len(buf) {
		return 0, &daq.HardwareFault{Op: "StartScan", Code: 11, Message: "Buffer too small"}
	}
	s.buf = buf
	if s.dir == daq.Input {
		sig := s.cfg.Signal
		if sig == nil {
			sig = DefaultSignal
		}
		for step := 0; step < req.SamplesPerChannel; step++ {
			for ch := 0; ch < chans; ch++ {
				buf[step*chans+ch] = sig(step, req.LowChannel+ch)
			}
		}
	} else {
		s.played = make([]float64, len(buf))
		copy(s.played, buf)
	}
	s.running = true
	s.count = 0
	rate := req.Rate
	if s.cfg.RateFactor != 0 {
		rate *= s.cfg.RateFactor
	}
	return rate, nil
}

// ScanStatus implements daq.Scanner.  Every poll of a running scan advances
// it by StepsPerPoll.  A finite scan goes idle once a full buffer has been
// transferred; a continuous scan wraps and runs until stopped.
func (s *Scanner) ScanStatus() (daq.ScanStatus, daq.TransferStatus, error) {
	s.rec.record(s.name, "ScanStatus")
	s.mu.Lock()
	defer s.mu.Unlock()
	var xfer daq.TransferStatus
	if len(s.requests) == 0 {
		return daq.StatusIdle, xfer, nil
	}
	req := s.requests[len(s.requests)-1]
	spc := int64(req.SamplesPerChannel)
	chans := int64(req.HighChannel - req.LowChannel + 1)
	if s.running {
		if s.cfg.StatusFault != nil {
			return daq.StatusError, xfer, s.cfg.StatusFault
		}
		step := s.cfg.StepsPerPoll
		if step <= 0 {
			step = spc
		}
		s.count += step
		if req.Options&daq.Continuous == 0 && s.count >= spc {
			s.count = spc
			s.running = false
		}
	}
	xfer.ScanCount = s.count
	xfer.TotalCount = s.count * chans
	if s.count > 0 {
		xfer.Index = ((s.count - 1) % spc) * chans
	} else {
		xfer.Index = -1
	}
	if s.running {
		return daq.StatusRunning, xfer, nil
	}
	return daq.StatusIdle, xfer, nil
}

// StopScan implements daq.Scanner
func (s *Scanner) StopScan() error {
	s.rec.record(s.name, "StopScan")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

// Running reports whether a scan is in progress
func (s *Scanner) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Requests returns every ScanRequest StartScan has received
func (s *Scanner) Requests() []daq.ScanRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]daq.ScanRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// Played returns the output buffer as it was when the last output scan started
func (s *Scanner) Played() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.played))
	copy(out, s.played)
	return out
}

// Configure replaces the subsystem configuration
func (s *Scanner) Configure(cfg ScannerConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}
