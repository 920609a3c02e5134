package scan

import (
	"fmt"

	"github.com/nanocal/nanocontrol/daq"
)

// GateInput checks that dev can run a paced input scan with p and returns p
// adjusted to what the hardware supports.  When the board reports no single
// ended channels the input mode falls back to differential.
func GateInput(dev daq.Scanner, p daq.AiParams) (daq.AiParams, error) {
	info, err := gate(dev, daq.Input)
	if err != nil {
		return p, err
	}
	n, err := info.NumChansByMode(daq.SingleEnded)
	if err != nil {
		return p, err
	}
	if n <= 0 {
		p.InputMode = daq.Differential
	}
	return p, nil
}

// GateOutput checks that dev can run a paced output scan with p and returns
// p with RangeID clamped to the last entry of the board's range table
func GateOutput(dev daq.Scanner, p daq.AoParams) (daq.AoParams, error) {
	info, err := gate(dev, daq.Output)
	if err != nil {
		return p, err
	}
	ranges, err := info.Ranges()
	if err != nil {
		return p, err
	}
	if len(ranges) == 0 {
		return p, &daq.HardwareFault{Op: "Ranges", Message: "board reports no output ranges"}
	}
	if p.RangeID >= len(ranges) {
		p.RangeID = len(ranges) - 1
	}
	return p, nil
}

func gate(dev daq.Scanner, dir daq.Direction) (daq.Info, error) {
	if dev == nil {
		return nil, fmt.Errorf("%w: %v", daq.ErrUnsupportedDirection, dir)
	}
	info, err := dev.Info()
	if err != nil {
		return nil, err
	}
	paced, err := info.HasPacer()
	if err != nil {
		return nil, err
	}
	if !paced {
		return nil, fmt.Errorf("%w: %v", daq.ErrNoHardwarePacing, dir)
	}
	return info, nil
}

// outputRange maps a gated RangeID to the board's Range
func outputRange(dev daq.Scanner, id int) (daq.Range, error) {
	info, err := dev.Info()
	if err != nil {
		return 0, err
	}
	ranges, err := info.Ranges()
	if err != nil {
		return 0, err
	}
	if id < 0 || id >= len(ranges) {
		return 0, &daq.HardwareFault{Op: "Ranges", Message: fmt.Sprintf("range index %d outside table of %d", id, len(ranges))}
	}
	return ranges[id], nil
}
