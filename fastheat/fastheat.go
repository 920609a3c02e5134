/*Package fastheat runs fast heating experiments.

An experiment heats a sample along a time/temperature profile.  Arm renders
the profile through the calibration into output voltages.  Run then plays
them on the analog output while capturing the analog input, always starting
the output scan first so that the input scan sees the drive from its first
sample.
*/
package fastheat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nanocal/nanocontrol/daq"
	"github.com/nanocal/nanocontrol/device"
	"github.com/nanocal/nanocontrol/scan"
	"github.com/nanocal/nanocontrol/settings"
	"github.com/nanocal/nanocontrol/waveform"
)

// State of an experiment
type State string

const (
	// Idle means no profile has been armed
	Idle State = "idle"

	// Armed means voltages are rendered and ready to play
	Armed State = "armed"

	// Running means scans are in progress
	Running State = "running"

	// Finished means the last run completed
	Finished State = "finished"

	// Failed means the last arm or run failed
	Failed State = "failed"
)

var (
	// ErrNotArmed is generated when Run is called before Arm
	ErrNotArmed = errors.New("fast heating is not armed")

	// ErrRunning is generated when Arm or Run is called during a run
	ErrRunning = errors.New("fast heating is running")
)

// Config holds the tunables of a run
type Config struct {
	// PollInterval is the time between scan status polls
	PollInterval time.Duration

	// Timeout is added to the profile duration to bound a run
	Timeout time.Duration
}

// Progress is a snapshot of an experiment
type Progress struct {
	State State     `json:"state"`
	RunID uuid.UUID `json:"runId"`

	AO scan.Status `json:"ao"`
	AI scan.Status `json:"ai"`

	// Error is the failure of the last arm or run
	Error string `json:"error,omitempty"`
}

// Result is the capture of one run
type Result struct {
	ID      uuid.UUID `json:"id"`
	Started time.Time `json:"started"`

	// AORate and AIRate are the rates the hardware achieved
	AORate float64 `json:"aoRate"`
	AIRate float64 `json:"aiRate"`

	// LowChannel is the board channel of Channels[0]
	LowChannel int `json:"lowChannel"`

	// Channels holds the AI capture, one slice per channel
	Channels [][]float64 `json:"channels"`

	Profile waveform.Profile `json:"profile"`
}

// Samples is the number of time steps captured
func (r *Result) Samples() int {
	if len(r.Channels) == 0 {
		return 0
	}
	return len(r.Channels[0])
}

// FastHeat is one experiment on one board
type FastHeat struct {
	dev    *device.Handler
	params settings.Parameters
	cfg    Config
	log    *zap.Logger

	// Observer, if not nil, is called with every progress update
	Observer func(Progress)

	mu       sync.Mutex
	progress Progress
	profile  waveform.Profile
	voltages []float64
	aiParams daq.AiParams
	result   *Result
}

// New creates an Idle experiment
func New(dev *device.Handler, params settings.Parameters, cfg Config, log *zap.Logger) *FastHeat {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &FastHeat{dev: dev, params: params, cfg: cfg, log: log, progress: Progress{State: Idle}}
}

// Progress returns the latest snapshot
func (f *FastHeat) Progress() Progress {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.progress
}

// Result returns the capture of the last finished run, or nil
func (f *FastHeat) Result() *Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result
}

// Voltages returns a copy of the armed output buffer
func (f *FastHeat) Voltages() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]float64, len(f.voltages))
	copy(out, f.voltages)
	return out
}

// update changes the snapshot under the lock and notifies the observer
func (f *FastHeat) update(fn func(*Progress)) {
	f.mu.Lock()
	fn(&f.progress)
	p := f.progress
	obs := f.Observer
	f.mu.Unlock()
	if obs != nil {
		obs(p)
	}
}

func (f *FastHeat) fail(err error) error {
	f.update(func(p *Progress) {
		p.State = Failed
		p.Error = err.Error()
	})
	return err
}

// Arm renders profile through cal into the output buffer, interleaved across
// the configured output channels, and sizes the input capture to the same
// duration
func (f *FastHeat) Arm(profile waveform.Profile, cal waveform.Calibration) error {
	if f.Progress().State == Running {
		return ErrRunning
	}
	ao := f.params.AO
	volts, err := profile.Render(ao.SampleRate, ao.ChannelCount(), cal)
	if err != nil {
		return f.fail(err)
	}
	ai := f.params.AI
	ai.SamplesPerChannel = profile.Samples(ai.SampleRate)
	ai.Options &^= daq.Continuous
	if ai.SamplesPerChannel == 0 {
		return f.fail(fmt.Errorf("%w: %g ms is shorter than one input sample", waveform.ErrInvalidProfile, profile.Duration()))
	}

	f.mu.Lock()
	if f.progress.State == Running {
		f.mu.Unlock()
		return ErrRunning
	}
	f.profile = profile
	f.voltages = volts
	f.aiParams = ai
	f.progress = Progress{State: Armed}
	p, obs := f.progress, f.Observer
	f.mu.Unlock()
	if obs != nil {
		obs(p)
	}
	f.log.Info("Fast heating armed",
		zap.Float64("duration_ms", profile.Duration()),
		zap.Int("ao_samples_per_channel", len(volts)/ao.ChannelCount()),
		zap.Int("ai_samples_per_channel", ai.SamplesPerChannel))
	return nil
}

// Run plays the armed voltages and captures the input.  It blocks until both
// scans complete, ctx ends, or the profile duration plus Config.Timeout
// passes.
func (f *FastHeat) Run(ctx context.Context) (*Result, error) {
	return f.RunAs(ctx, uuid.New())
}

// RunAs is Run with a caller chosen run ID
func (f *FastHeat) RunAs(ctx context.Context, id uuid.UUID) (*Result, error) {
	// the check and the move to Running share one hold of f.mu so that only
	// one caller can claim the run
	f.mu.Lock()
	volts, ai, profile := f.voltages, f.aiParams, f.profile
	switch {
	case f.progress.State == Running:
		f.mu.Unlock()
		return nil, ErrRunning
	case volts == nil:
		f.mu.Unlock()
		return nil, ErrNotArmed
	}
	f.progress = Progress{State: Running, RunID: id}
	p, obs := f.progress, f.Observer
	f.mu.Unlock()
	if obs != nil {
		obs(p)
	}
	budget := time.Duration(profile.Duration()*float64(time.Millisecond)) + f.cfg.Timeout
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	f.log.Info("Fast heating started", zap.Stringer("run_id", id))
	res := &Result{ID: id, Started: time.Now(), Profile: profile, LowChannel: ai.LowChannel}
	err := f.dev.Exclusive(func(b daq.Board) error {
		return f.run(ctx, b, volts, ai, res)
	})
	if err != nil {
		f.log.Error("Fast heating failed", zap.Stringer("run_id", id), zap.Error(err))
		return nil, f.fail(err)
	}

	f.mu.Lock()
	f.result = res
	f.mu.Unlock()
	f.update(func(p *Progress) {
		p.State = Finished
	})
	f.log.Info("Fast heating finished",
		zap.Stringer("run_id", id),
		zap.Float64("ao_rate", res.AORate),
		zap.Float64("ai_rate", res.AIRate),
		zap.Int("samples", res.Samples()))
	return res, nil
}

func (f *FastHeat) run(ctx context.Context, b daq.Board, volts []float64, aiParams daq.AiParams, res *Result) error {
	aoParams := f.params.AO
	aoParams.Options &^= daq.Continuous
	ao, err := scan.NewOutputWaveform(b.AnalogOutput(), aoParams, volts)
	if err != nil {
		return err
	}
	defer f.release(ao)
	ai, err := scan.NewInput(b.AnalogInput(), aiParams)
	if err != nil {
		return err
	}
	defer f.release(ai)
	if err := ao.Arm(); err != nil {
		return err
	}
	if err := ai.Arm(); err != nil {
		return err
	}

	// output first: the input must see the drive from t=0
	if res.AORate, err = ao.Scan(); err != nil {
		return err
	}
	if res.AIRate, err = ai.Scan(); err != nil {
		stopBoth(ao, ai)
		return err
	}
	defer stopBoth(ao, ai)

	if _, err := ao.Watch(ctx, f.cfg.PollInterval, func(st scan.Status) {
		f.update(func(p *Progress) { p.AO = st })
	}); err != nil {
		return err
	}
	if _, err := ai.Watch(ctx, f.cfg.PollInterval, func(st scan.Status) {
		f.update(func(p *Progress) { p.AI = st })
	}); err != nil {
		return err
	}

	n := ai.Params().ChannelCount()
	res.Channels = make([][]float64, n)
	for k := 0; k < n; k++ {
		if res.Channels[k], err = ai.Channel(k); err != nil {
			return err
		}
	}
	return nil
}

// release frees the session buffer once its scan is stopped
func (f *FastHeat) release(s *scan.Session) {
	if err := s.Close(); err != nil {
		f.log.Warn("Scan buffer not freed", zap.Stringer("direction", s.Direction()), zap.Error(err))
	}
}

func stopBoth(ao, ai *scan.Session) {
	// errors here are secondary to whatever ended the run
	_ = ao.Stop()
	_ = ai.Stop()
}
