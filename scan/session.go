/*Package scan runs hardware paced analog scans.

A Session owns one buffer on one analog subsystem and walks the states

	Idle -> Armed -> Running -> Stopped

with Error reachable from any of them.  Scan only arms the hardware and
returns; completion is observed by polling Status, or with Wait.

A Session does not order itself against other sessions.  A caller driving
output and input together must issue the output Scan before the input Scan.
*/
package scan

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/nanocal/nanocontrol/daq"
	"github.com/nanocal/nanocontrol/waveform"
)

// State is the state of a Session
type State int

const (
	// Idle means the buffer is ready but no scan has been issued
	Idle State = iota

	// Armed means the session was explicitly readied for a scan
	Armed

	// Running means the hardware accepted the scan
	Running

	// Stopped means a scan was halted
	Stopped

	// Error means the hardware rejected a scan or faulted while running
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status is the result of a single hardware poll
type Status struct {
	Scan     daq.ScanStatus     `json:"scan"`
	Transfer daq.TransferStatus `json:"transfer"`
}

// Session is one scan on one analog subsystem.  It is not safe for
// concurrent use.
type Session struct {
	dir    daq.Direction
	dev    daq.Scanner
	params daq.AnalogParams
	req    daq.ScanRequest
	buf    []float64

	state  State
	rate   float64
	fault  error
	closed bool
}

// NewInput gates dev for input, allocates the capture buffer and returns an
// Idle session
func NewInput(dev daq.Scanner, p daq.AiParams) (*Session, error) {
	p, err := GateInput(dev, p)
	if err != nil {
		return nil, err
	}
	s, err := newSession(daq.Input, dev, p.AnalogParams)
	if err != nil {
		return nil, err
	}
	s.req.InputMode = p.InputMode
	s.req.Range = daq.Range(p.RangeID)
	return s, nil
}

// NewOutput gates dev for output, allocates the buffer and fills it with the
// sine described by p.  SamplesPerChannel must be a whole number of cycles.
func NewOutput(dev daq.Scanner, p daq.AoParams) (*Session, error) {
	p, err := GateOutput(dev, p)
	if err != nil {
		return nil, err
	}
	sine := waveform.Sine{
		Amplitude:         p.Amplitude,
		Offset:            p.Offset,
		Period:            p.Period,
		SampleRate:        p.SampleRate,
		SamplesPerChannel: p.SamplesPerChannel,
		Channels:          p.ChannelCount(),
	}
	if err := sine.Whole(); err != nil {
		return nil, fmt.Errorf("%w: %v", daq.ErrConfiguration, err)
	}
	s, err := newOutput(dev, p)
	if err != nil {
		return nil, err
	}
	if _, err := sine.Fill(s.buf); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// NewOutputWaveform is NewOutput with caller supplied samples in place of the
// sine.  SamplesPerChannel is taken from the length of samples.
func NewOutputWaveform(dev daq.Scanner, p daq.AoParams, samples []float64) (*Session, error) {
	p, err := GateOutput(dev, p)
	if err != nil {
		return nil, err
	}
	chans := p.ChannelCount()
	if chans <= 0 || len(samples) == 0 || len(samples)%chans != 0 {
		return nil, fmt.Errorf("%w: %d samples do not divide into %d channels", daq.ErrConfiguration, len(samples), chans)
	}
	p.SamplesPerChannel = len(samples) / chans
	s, err := newOutput(dev, p)
	if err != nil {
		return nil, err
	}
	copy(s.buf, samples)
	return s, nil
}

// newOutput expects p to have been gated
func newOutput(dev daq.Scanner, p daq.AoParams) (*Session, error) {
	rng, err := outputRange(dev, p.RangeID)
	if err != nil {
		return nil, err
	}
	s, err := newSession(daq.Output, dev, p.AnalogParams)
	if err != nil {
		return nil, err
	}
	s.req.Range = rng
	return s, nil
}

// Close returns the buffer to the driver.  A running scan must be stopped
// first.  Data and Channel are empty afterwards and Scan is refused.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	if s.state == Running {
		return daq.ErrAlreadyRunning
	}
	if err := s.dev.FreeBuffer(s.buf); err != nil {
		return err
	}
	s.buf = nil
	s.closed = true
	return nil
}

func newSession(dir daq.Direction, dev daq.Scanner, p daq.AnalogParams) (*Session, error) {
	if p.SamplesPerChannel <= 0 || p.ChannelCount() <= 0 {
		return nil, fmt.Errorf("%w: empty scan of %d channels x %d samples", daq.ErrConfiguration, p.ChannelCount(), p.SamplesPerChannel)
	}
	buf, err := dev.NewBuffer(p.BufferLen())
	if err != nil {
		return nil, err
	}
	return &Session{
		dir:    dir,
		dev:    dev,
		params: p,
		buf:    buf,
		req: daq.ScanRequest{
			LowChannel:        p.LowChannel,
			HighChannel:       p.HighChannel,
			SamplesPerChannel: p.SamplesPerChannel,
			Rate:              float64(p.SampleRate),
			Options:           p.Options,
			Flags:             p.ScanFlags,
		},
	}, nil
}

// Direction is the subsystem the session drives
func (s *Session) Direction() daq.Direction { return s.dir }

// State is the current state
func (s *Session) State() State { return s.state }

// Params are the parameters after gating
func (s *Session) Params() daq.AnalogParams { return s.params }

// Request is the scan request Scan issues
func (s *Session) Request() daq.ScanRequest { return s.req }

// Rate is the rate achieved by the last successful Scan, or zero
func (s *Session) Rate() float64 { return s.rate }

// Fault is the error that put the session into Error, or nil
func (s *Session) Fault() error { return s.fault }

// Arm readies the session for Scan
func (s *Session) Arm() error {
	if s.closed {
		return fmt.Errorf("%w: arm after close", daq.ErrInvalidState)
	}
	switch s.state {
	case Running:
		return daq.ErrAlreadyRunning
	case Error:
		return fmt.Errorf("%w: arm in %v", daq.ErrInvalidState, s.state)
	}
	s.state = Armed
	return nil
}

// Scan starts the paced scan and returns the rate the hardware achieved.
// Use the returned rate, not the requested one, for any timing.
func (s *Session) Scan() (float64, error) {
	if s.closed {
		return 0, fmt.Errorf("%w: scan after close", daq.ErrInvalidState)
	}
	switch s.state {
	case Running:
		return 0, daq.ErrAlreadyRunning
	case Error:
		return 0, fmt.Errorf("%w: scan in %v", daq.ErrInvalidState, s.state)
	}
	r, err := s.dev.StartScan(s.req, s.buf)
	if err != nil {
		s.state = Error
		s.fault = err
		return 0, err
	}
	s.state = Running
	s.rate = r
	s.fault = nil
	return r, nil
}

// Status polls the hardware once.  It never changes the session state.
func (s *Session) Status() (Status, error) {
	st, xfer, err := s.dev.ScanStatus()
	return Status{Scan: st, Transfer: xfer}, err
}

// Stop halts a running or faulted scan.  In any other state it does nothing.
func (s *Session) Stop() error {
	switch s.state {
	case Running, Error:
	default:
		return nil
	}
	if err := s.dev.StopScan(); err != nil {
		s.state = Error
		s.fault = err
		return err
	}
	s.state = Stopped
	return nil
}

// Wait polls Status every interval until the hardware is idle or a full
// buffer has been transferred.  If ctx ends first the scan is stopped and the
// context error returned.  A hardware fault moves the session to Error.
func (s *Session) Wait(ctx context.Context, interval time.Duration) (Status, error) {
	return s.Watch(ctx, interval, nil)
}

// Watch is Wait, calling fn with every poll
func (s *Session) Watch(ctx context.Context, interval time.Duration, fn func(Status)) (Status, error) {
	if s.state != Running {
		return Status{}, fmt.Errorf("%w: wait in %v", daq.ErrInvalidState, s.state)
	}
	if interval <= 0 {
		interval = time.Millisecond
	}
	lim := rate.NewLimiter(rate.Every(interval), 1)
	for {
		if err := lim.Wait(ctx); err != nil {
			if serr := s.Stop(); serr != nil {
				return Status{}, serr
			}
			if ctx.Err() != nil {
				return Status{}, ctx.Err()
			}
			// the limiter refuses early when the next poll would pass the deadline
			return Status{}, fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		st, err := s.Status()
		if fn != nil {
			fn(st)
		}
		if err != nil {
			s.state = Error
			s.fault = err
			return st, err
		}
		if st.Scan == daq.StatusError {
			s.state = Error
			s.fault = &daq.HardwareFault{Op: "ScanStatus", Message: "scan reported an error"}
			return st, s.fault
		}
		if st.Scan == daq.StatusIdle || st.Transfer.ScanCount >= int64(s.params.SamplesPerChannel) {
			return st, nil
		}
	}
}

// Data returns a copy of the whole interleaved buffer
func (s *Session) Data() []float64 {
	out := make([]float64, len(s.buf))
	copy(out, s.buf)
	return out
}

// Channel returns a copy of channel k, counted from LowChannel
func (s *Session) Channel(k int) ([]float64, error) {
	n := s.params.ChannelCount()
	if k < 0 || k >= n {
		return nil, fmt.Errorf("channel %d outside scan of %d channels", k, n)
	}
	return waveform.Deinterleave(s.buf, n, k), nil
}

// Load replaces the contents of the output buffer.  It is rejected while a
// scan is running.
func (s *Session) Load(samples []float64) error {
	if s.dir != daq.Output {
		return fmt.Errorf("%w: load on %v", daq.ErrInvalidState, s.dir)
	}
	if s.state == Running {
		return daq.ErrAlreadyRunning
	}
	if s.closed {
		return fmt.Errorf("%w: load after close", daq.ErrInvalidState)
	}
	if len(samples) != len(s.buf) {
		return fmt.Errorf("%w: %d samples for a buffer of %d", daq.ErrConfiguration, len(samples), len(s.buf))
	}
	copy(s.buf, samples)
	return nil
}
