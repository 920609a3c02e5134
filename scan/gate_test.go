package scan

import (
	"errors"
	"testing"

	"github.com/nanocal/nanocontrol/daq"
	"github.com/nanocal/nanocontrol/sim"
)

func aiParams() daq.AiParams {
	return daq.AiParams{
		AnalogParams: daq.AnalogParams{
			SampleRate:        20000,
			RangeID:           int(daq.Bip10Volts),
			LowChannel:        0,
			HighChannel:       3,
			SamplesPerChannel: 200,
		},
		InputMode: daq.SingleEnded,
	}
}

func aoParams() daq.AoParams {
	return daq.AoParams{
		AnalogParams: daq.AnalogParams{
			SampleRate:        1000,
			RangeID:           0,
			LowChannel:        0,
			HighChannel:       1,
			SamplesPerChannel: 100,
		},
		Amplitude: 5,
		Period:    10,
	}
}

func board(in, out *sim.ScannerConfig) *sim.Board {
	cfg := sim.DefaultBoard()
	cfg.Input, cfg.Output = in, out
	return sim.NewBoard(cfg, nil)
}

func TestGateUnsupportedDirection(t *testing.T) {
	b := board(nil, nil)
	if _, err := GateInput(b.AnalogInput(), aiParams()); !errors.Is(err, daq.ErrUnsupportedDirection) {
		t.Errorf("expected ErrUnsupportedDirection for input, got %v", err)
	}
	if _, err := GateOutput(b.AnalogOutput(), aoParams()); !errors.Is(err, daq.ErrUnsupportedDirection) {
		t.Errorf("expected ErrUnsupportedDirection for output, got %v", err)
	}
}

func TestGateNoPacer(t *testing.T) {
	in, out := sim.DefaultInput(), sim.DefaultOutput()
	in.NoPacer, out.NoPacer = true, true
	b := board(&in, &out)
	if _, err := GateInput(b.AnalogInput(), aiParams()); !errors.Is(err, daq.ErrNoHardwarePacing) {
		t.Errorf("expected ErrNoHardwarePacing for input, got %v", err)
	}
	if _, err := GateOutput(b.AnalogOutput(), aoParams()); !errors.Is(err, daq.ErrNoHardwarePacing) {
		t.Errorf("expected ErrNoHardwarePacing for output, got %v", err)
	}
}

func TestGateInputModeFallback(t *testing.T) {
	in := sim.DefaultInput()
	in.SingleEndedChannels = 0
	b := board(&in, nil)
	p, err := GateInput(b.AnalogInput(), aiParams())
	if err != nil {
		t.Fatal(err)
	}
	if p.InputMode != daq.Differential {
		t.Errorf("expected fallback to differential, got %v", p.InputMode)
	}
}

func TestGateInputModeKept(t *testing.T) {
	in := sim.DefaultInput()
	b := board(&in, nil)
	p, err := GateInput(b.AnalogInput(), aiParams())
	if err != nil {
		t.Fatal(err)
	}
	if p.InputMode != daq.SingleEnded {
		t.Errorf("expected single ended to be kept, got %v", p.InputMode)
	}
}

func TestGateClampRangeID(t *testing.T) {
	out := sim.DefaultOutput()
	out.Ranges = []daq.Range{daq.Bip10Volts, daq.Bip5Volts, daq.Uni10Volts}
	b := board(nil, &out)
	n := len(out.Ranges)
	cases := map[int]int{
		0:     0,
		n - 1: n - 1,
		n:     n - 1,
		n + 5: n - 1,
	}
	for in, expected := range cases {
		p := aoParams()
		p.RangeID = in
		got, err := GateOutput(b.AnalogOutput(), p)
		if err != nil {
			t.Fatal(err)
		}
		if got.RangeID != expected {
			t.Errorf("range id %d: expected %d got %d", in, expected, got.RangeID)
		}
	}
}

func TestGateEmptyRangeTable(t *testing.T) {
	out := sim.DefaultOutput()
	out.Ranges = nil
	b := board(nil, &out)
	if _, err := GateOutput(b.AnalogOutput(), aoParams()); !daq.IsHardwareFault(err) {
		t.Errorf("expected a hardware fault, got %v", err)
	}
}

func TestOutputGatedBeforeWaveform(t *testing.T) {
	p := aoParams()
	p.SamplesPerChannel = 150 // not a whole number of periods
	if _, err := NewOutput(board(nil, nil).AnalogOutput(), p); !errors.Is(err, daq.ErrUnsupportedDirection) {
		t.Errorf("expected ErrUnsupportedDirection without an output subsystem, got %v", err)
	}
	out := sim.DefaultOutput()
	out.NoPacer = true
	in := sim.DefaultInput()
	if _, err := NewOutput(board(&in, &out).AnalogOutput(), p); !errors.Is(err, daq.ErrNoHardwarePacing) {
		t.Errorf("expected ErrNoHardwarePacing without a pacer, got %v", err)
	}
	if _, err := NewOutputWaveform(board(&in, &out).AnalogOutput(), p, []float64{1}); !errors.Is(err, daq.ErrNoHardwarePacing) {
		t.Errorf("expected ErrNoHardwarePacing for a waveform without a pacer, got %v", err)
	}
}
