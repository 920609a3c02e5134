package device

import (
	"go.uber.org/zap"

	"github.com/nanocal/nanocontrol/daq"
	"github.com/nanocal/nanocontrol/util"
)

// SubsystemInfo is the capability report of one analog subsystem
type SubsystemInfo struct {
	HasPacer             bool        `json:"hasPacer"`
	SingleEndedChannels  int         `json:"singleEndedChannels"`
	DifferentialChannels int         `json:"differentialChannels"`
	Ranges               []daq.Range `json:"ranges"`
}

// Info is the capability report of the board
type Info struct {
	Descriptor daq.Descriptor `json:"descriptor"`
	Connected  bool           `json:"connected"`
	State      string         `json:"state"`

	// AI and AO are nil when the board lacks the subsystem
	AI *SubsystemInfo `json:"ai"`
	AO *SubsystemInfo `json:"ao"`
}

func querySubsystem(s daq.Scanner) (*SubsystemInfo, error) {
	if s == nil {
		return nil, nil
	}
	info, err := s.Info()
	if err != nil {
		return nil, err
	}
	out := &SubsystemInfo{}
	if out.HasPacer, err = info.HasPacer(); err != nil {
		return nil, err
	}
	if out.SingleEndedChannels, err = info.NumChansByMode(daq.SingleEnded); err != nil {
		return nil, err
	}
	if out.DifferentialChannels, err = info.NumChansByMode(daq.Differential); err != nil {
		return nil, err
	}
	if out.Ranges, err = info.Ranges(); err != nil {
		return nil, err
	}
	return out, nil
}

// Info queries the board's capabilities and logs them
func (h *Handler) Info() (Info, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := Info{Descriptor: h.board.Descriptor(), State: h.state.String()}
	if h.state == Released {
		return out, nil
	}
	var err error
	if out.Connected, err = h.board.IsConnected(); err != nil {
		return out, err
	}
	if out.AI, err = querySubsystem(h.board.AnalogInput()); err != nil {
		return out, err
	}
	if out.AO, err = querySubsystem(h.board.AnalogOutput()); err != nil {
		return out, err
	}
	fields := []zap.Field{
		zap.String("product", out.Descriptor.ProductName),
		zap.Int("product_id", out.Descriptor.ProductID),
		zap.Stringer("interface", out.Descriptor.Interface),
		zap.String("unique_id", out.Descriptor.UniqueID),
		zap.Bool("connected", out.Connected),
	}
	if out.AI != nil {
		fields = append(fields,
			zap.Bool("ai_pacer", out.AI.HasPacer),
			zap.Int("ai_single_ended", out.AI.SingleEndedChannels),
			zap.String("ai_ranges", rangeList(out.AI.Ranges)))
	}
	if out.AO != nil {
		fields = append(fields,
			zap.Bool("ao_pacer", out.AO.HasPacer),
			zap.String("ao_ranges", rangeList(out.AO.Ranges)))
	}
	h.log.Info("DAQ device info", fields...)
	return out, nil
}

// rangeList formats range codes as "5,6,7"
func rangeList(rs []daq.Range) string {
	is := make([]int, len(rs))
	for i, r := range rs {
		is[i] = int(r)
	}
	return util.IntSliceToCSV(is)
}
