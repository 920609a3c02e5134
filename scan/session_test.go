package scan

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/nanocal/nanocontrol/daq"
	"github.com/nanocal/nanocontrol/sim"
)

func defaultBoard() *sim.Board {
	return sim.NewBoard(sim.DefaultBoard(), nil)
}

func TestStopWhileIdleIsNoop(t *testing.T) {
	b := defaultBoard()
	s, err := NewInput(b.AnalogInput(), aiParams())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("expected no error stopping an idle session, got %v", err)
	}
	if s.State() != Idle {
		t.Errorf("expected idle, got %v", s.State())
	}
	if n := b.Rec.Count("ai", "StopScan"); n != 0 {
		t.Errorf("expected no hardware stop, got %d", n)
	}
}

func TestSecondScanAlreadyRunning(t *testing.T) {
	b := defaultBoard()
	s, err := NewInput(b.AnalogInput(), aiParams())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Scan(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Scan(); !errors.Is(err, daq.ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
	if s.State() != Running {
		t.Errorf("expected running, got %v", s.State())
	}
	if n := b.Rec.Count("ai", "StartScan"); n != 1 {
		t.Errorf("expected one hardware start, got %d", n)
	}
}

func TestScanReturnsAchievedRate(t *testing.T) {
	cfg := sim.DefaultBoard()
	cfg.Input.RateFactor = 0.99
	b := sim.NewBoard(cfg, nil)
	s, err := NewInput(b.AnalogInput(), aiParams())
	if err != nil {
		t.Fatal(err)
	}
	r, err := s.Scan()
	if err != nil {
		t.Fatal(err)
	}
	if r != 19800 || s.Rate() != r {
		t.Errorf("expected achieved rate 19800, got %g (Rate() %g)", r, s.Rate())
	}
}

func TestScanFaultMovesToError(t *testing.T) {
	cfg := sim.DefaultBoard()
	cfg.Output.StartFault = &daq.HardwareFault{Op: "StartScan", Code: 19, Message: "Device is already active"}
	b := sim.NewBoard(cfg, nil)
	s, err := NewOutput(b.AnalogOutput(), aoParams())
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.Scan()
	var hf *daq.HardwareFault
	if !errors.As(err, &hf) || hf.Code != 19 {
		t.Fatalf("expected the driver fault, got %v", err)
	}
	if s.State() != Error {
		t.Errorf("expected error state, got %v", s.State())
	}
	if _, err := s.Scan(); !errors.Is(err, daq.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState scanning from error, got %v", err)
	}
	if err := s.Arm(); !errors.Is(err, daq.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState arming from error, got %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if s.State() != Stopped {
		t.Errorf("expected stop to leave error, got %v", s.State())
	}
}

func TestLifecycle(t *testing.T) {
	b := defaultBoard()
	s, err := NewInput(b.AnalogInput(), aiParams())
	if err != nil {
		t.Fatal(err)
	}
	steps := []struct {
		do       func() error
		expected State
	}{
		{s.Arm, Armed},
		{func() error { _, err := s.Scan(); return err }, Running},
		{s.Arm, Running},
		{s.Stop, Stopped},
		{s.Stop, Stopped},
		{s.Arm, Armed},
		{func() error { _, err := s.Scan(); return err }, Running},
	}
	for i, step := range steps {
		err := step.do()
		if step.expected == Running && i == 2 {
			if !errors.Is(err, daq.ErrAlreadyRunning) {
				t.Errorf("step %d: expected ErrAlreadyRunning, got %v", i, err)
			}
		} else if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if s.State() != step.expected {
			t.Errorf("step %d: expected %v got %v", i, step.expected, s.State())
		}
	}
}

func TestStatusDoesNotChangeState(t *testing.T) {
	b := defaultBoard()
	s, err := NewInput(b.AnalogInput(), aiParams())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Scan(); err != nil {
		t.Fatal(err)
	}
	st, err := s.Status()
	if err != nil {
		t.Fatal(err)
	}
	if st.Scan != daq.StatusIdle || st.Transfer.ScanCount != 200 {
		t.Errorf("expected a finished transfer, got %+v", st)
	}
	if s.State() != Running {
		t.Errorf("expected status to leave the session running, got %v", s.State())
	}
}

func TestScanRequestCarriesParams(t *testing.T) {
	b := defaultBoard()
	p := aiParams()
	p.Options = daq.Continuous
	p.ScanFlags = daq.FlagNoScaleData
	s, err := NewInput(b.AnalogInput(), p)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Scan(); err != nil {
		t.Fatal(err)
	}
	reqs := b.AI().Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected one request, got %d", len(reqs))
	}
	r := reqs[0]
	if r.LowChannel != 0 || r.HighChannel != 3 || r.InputMode != daq.SingleEnded || r.Range != daq.Bip10Volts ||
		r.SamplesPerChannel != 200 || r.Rate != 20000 || r.Options != daq.Continuous || r.Flags != daq.FlagNoScaleData {
		t.Errorf("unexpected request %+v", r)
	}
}

func TestOutputUsesRangeFromTable(t *testing.T) {
	cfg := sim.DefaultBoard()
	cfg.Output.Ranges = []daq.Range{daq.Bip10Volts, daq.Uni5Volts}
	b := sim.NewBoard(cfg, nil)
	p := aoParams()
	p.RangeID = 7
	s, err := NewOutput(b.AnalogOutput(), p)
	if err != nil {
		t.Fatal(err)
	}
	if s.Params().RangeID != 1 || s.Request().Range != daq.Uni5Volts {
		t.Errorf("expected clamped index 1 and Uni5Volts, got %d and %v", s.Params().RangeID, s.Request().Range)
	}
}

func TestOutputPlaysSine(t *testing.T) {
	b := defaultBoard()
	s, err := NewOutput(b.AnalogOutput(), aoParams())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Scan(); err != nil {
		t.Fatal(err)
	}
	played := b.AO().Played()
	if len(played) != 200 {
		t.Fatalf("expected 200 samples, got %d", len(played))
	}
	if math.Abs(played[50]-5) > 1e-12 || played[50] != played[51] {
		t.Errorf("expected peak of 5 on both channels at step 25, got %g %g", played[50], played[51])
	}
}

func TestOutputRejectsPartialCycle(t *testing.T) {
	b := defaultBoard()
	p := aoParams()
	p.SamplesPerChannel = 150
	if _, err := NewOutput(b.AnalogOutput(), p); !errors.Is(err, daq.ErrConfiguration) {
		t.Errorf("expected a configuration error, got %v", err)
	}
}

func TestOutputWaveform(t *testing.T) {
	b := defaultBoard()
	samples := []float64{1, 1, 2, 2, 3, 3}
	s, err := NewOutputWaveform(b.AnalogOutput(), aoParams(), samples)
	if err != nil {
		t.Fatal(err)
	}
	if s.Params().SamplesPerChannel != 3 {
		t.Errorf("expected 3 samples per channel, got %d", s.Params().SamplesPerChannel)
	}
	if _, err := NewOutputWaveform(b.AnalogOutput(), aoParams(), []float64{1, 2, 3}); !errors.Is(err, daq.ErrConfiguration) {
		t.Errorf("expected odd sample count on two channels to fail, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	b := defaultBoard()
	s, err := NewOutputWaveform(b.AnalogOutput(), aoParams(), []float64{0, 0, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Load([]float64{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Scan(); err != nil {
		t.Fatal(err)
	}
	if got := b.AO().Played(); got[3] != 4 {
		t.Errorf("expected loaded samples to be played, got %v", got)
	}
	if err := s.Load([]float64{5, 6, 7, 8}); !errors.Is(err, daq.ErrAlreadyRunning) {
		t.Errorf("expected load to be rejected while running, got %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := s.Load([]float64{1}); !errors.Is(err, daq.ErrConfiguration) {
		t.Errorf("expected a length mismatch to fail, got %v", err)
	}
}

func TestInputChannelData(t *testing.T) {
	b := defaultBoard()
	p := aiParams()
	p.LowChannel, p.HighChannel = 2, 3
	s, err := NewInput(b.AnalogInput(), p)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Scan(); err != nil {
		t.Fatal(err)
	}
	ch, err := s.Channel(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(ch) != 200 || ch[0] != 3 || math.Abs(ch[10]-3.01) > 1e-12 {
		t.Errorf("expected channel 3 signal, got len %d, %g, %g", len(ch), ch[0], ch[10])
	}
	if _, err := s.Channel(2); err == nil {
		t.Error("expected an out of range channel to fail")
	}
	if len(s.Data()) != 400 {
		t.Errorf("expected 400 interleaved samples, got %d", len(s.Data()))
	}
}

func TestWaitCompletes(t *testing.T) {
	cfg := sim.DefaultBoard()
	cfg.Input.StepsPerPoll = 50
	b := sim.NewBoard(cfg, nil)
	s, err := NewInput(b.AnalogInput(), aiParams())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Scan(); err != nil {
		t.Fatal(err)
	}
	st, err := s.Wait(context.Background(), time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if st.Transfer.ScanCount != 200 {
		t.Errorf("expected a full buffer, got %+v", st)
	}
	if n := b.Rec.Count("ai", "ScanStatus"); n != 4 {
		t.Errorf("expected 4 polls, got %d", n)
	}
}

func TestWaitStopsOnTimeout(t *testing.T) {
	cfg := sim.DefaultBoard()
	cfg.Input.StepsPerPoll = 1
	b := sim.NewBoard(cfg, nil)
	p := aiParams()
	p.Options = daq.Continuous
	s, err := NewInput(b.AnalogInput(), p)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Scan(); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Wait(ctx, 5*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected a deadline error, got %v", err)
	}
	if s.State() != Stopped {
		t.Errorf("expected the scan to be stopped, got %v", s.State())
	}
	if b.AI().Running() {
		t.Error("expected the hardware scan to be halted")
	}
}

func TestWaitRequiresRunning(t *testing.T) {
	b := defaultBoard()
	s, err := NewInput(b.AnalogInput(), aiParams())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Wait(context.Background(), time.Millisecond); !errors.Is(err, daq.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

func TestWaitStatusFault(t *testing.T) {
	cfg := sim.DefaultBoard()
	cfg.Input.StatusFault = &daq.HardwareFault{Op: "ScanStatus", Code: 37, Message: "Overrun"}
	b := sim.NewBoard(cfg, nil)
	s, err := NewInput(b.AnalogInput(), aiParams())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Scan(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Wait(context.Background(), time.Millisecond); !daq.IsHardwareFault(err) {
		t.Errorf("expected a hardware fault, got %v", err)
	}
	if s.State() != Error {
		t.Errorf("expected error state, got %v", s.State())
	}
}

func TestCloseFreesBuffer(t *testing.T) {
	b := defaultBoard()
	s, err := NewInput(b.AnalogInput(), aiParams())
	if err != nil {
		t.Fatal(err)
	}
	if n := b.AI().LiveBuffers(); n != 1 {
		t.Fatalf("expected one live buffer, got %d", n)
	}
	if _, err := s.Scan(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); !errors.Is(err, daq.ErrAlreadyRunning) {
		t.Errorf("expected close to be refused while running, got %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("expected a second close to do nothing, got %v", err)
	}
	if n := b.AI().LiveBuffers(); n != 0 {
		t.Errorf("expected no live buffers after close, got %d", n)
	}
	if _, err := s.Scan(); !errors.Is(err, daq.ErrInvalidState) {
		t.Errorf("expected scan after close to fail, got %v", err)
	}
	if len(s.Data()) != 0 {
		t.Error("expected no data after close")
	}
}
