package mccdaq

/*
#include <uldaq.h>
*/
import "C"
import (
	"unsafe"

	"github.com/nanocal/nanocontrol/daq"
)

// Scanner is the analog input or output subsystem of a Board
type Scanner struct {
	board *Board
	dir   daq.Direction
}

// Info implements daq.Scanner
func (s *Scanner) Info() (daq.Info, error) {
	return &info{board: s.board, dir: s.dir}, nil
}

// NewBuffer implements daq.Scanner.  The buffer lives until FreeBuffer or
// until the board is released.
func (s *Scanner) NewBuffer(n int) ([]float64, error) {
	return s.board.newBuffer(n)
}

// FreeBuffer implements daq.Scanner
func (s *Scanner) FreeBuffer(buf []float64) error {
	return s.board.freeBuffer(buf)
}

// StartScan implements daq.Scanner
func (s *Scanner) StartScan(req daq.ScanRequest, buf []float64) (float64, error) {
	rate := C.double(req.Rate)
	data := (*C.double)(unsafe.Pointer(&buf[0]))
	var code C.UlError
	if s.dir == daq.Input {
		code = C.ulAInScan(s.board.handle, C.int(req.LowChannel), C.int(req.HighChannel),
			C.AiInputMode(req.InputMode), C.Range(req.Range), C.int(req.SamplesPerChannel),
			&rate, C.ScanOption(req.Options), C.AInScanFlag(req.Flags), data)
		if err := enrich("ulAInScan", code); err != nil {
			return 0, err
		}
	} else {
		code = C.ulAOutScan(s.board.handle, C.int(req.LowChannel), C.int(req.HighChannel),
			C.Range(req.Range), C.int(req.SamplesPerChannel),
			&rate, C.ScanOption(req.Options), C.AOutScanFlag(req.Flags), data)
		if err := enrich("ulAOutScan", code); err != nil {
			return 0, err
		}
	}
	return float64(rate), nil
}

// ScanStatus implements daq.Scanner
func (s *Scanner) ScanStatus() (daq.ScanStatus, daq.TransferStatus, error) {
	var (
		status C.ScanStatus
		xfer   C.TransferStatus
		code   C.UlError
		op     string
	)
	if s.dir == daq.Input {
		op, code = "ulAInScanStatus", C.ulAInScanStatus(s.board.handle, &status, &xfer)
	} else {
		op, code = "ulAOutScanStatus", C.ulAOutScanStatus(s.board.handle, &status, &xfer)
	}
	if err := enrich(op, code); err != nil {
		return daq.StatusError, daq.TransferStatus{}, err
	}
	out := daq.TransferStatus{
		ScanCount:  int64(xfer.currentScanCount),
		TotalCount: int64(xfer.currentTotalCount),
		Index:      int64(xfer.currentIndex),
	}
	if status == C.SS_RUNNING {
		return daq.StatusRunning, out, nil
	}
	return daq.StatusIdle, out, nil
}

// StopScan implements daq.Scanner
func (s *Scanner) StopScan() error {
	if s.dir == daq.Input {
		return enrich("ulAInScanStop", C.ulAInScanStop(s.board.handle))
	}
	return enrich("ulAOutScanStop", C.ulAOutScanStop(s.board.handle))
}

// info implements daq.Info with ulAIGetInfo / ulAOGetInfo
type info struct {
	board *Board
	dir   daq.Direction
}

func (i *info) ai(item C.AiInfoItem, index int) (int64, error) {
	var v C.longlong
	err := enrich("ulAIGetInfo", C.ulAIGetInfo(i.board.handle, item, C.uint(index), &v))
	return int64(v), err
}

func (i *info) ao(item C.AoInfoItem, index int) (int64, error) {
	var v C.longlong
	err := enrich("ulAOGetInfo", C.ulAOGetInfo(i.board.handle, item, C.uint(index), &v))
	return int64(v), err
}

func (i *info) HasPacer() (bool, error) {
	var (
		v   int64
		err error
	)
	if i.dir == daq.Input {
		v, err = i.ai(C.AI_INFO_HAS_PACER, 0)
	} else {
		v, err = i.ao(C.AO_INFO_HAS_PACER, 0)
	}
	return v != 0, err
}

func (i *info) NumChansByMode(m daq.InputMode) (int, error) {
	if i.dir == daq.Output {
		v, err := i.ao(C.AO_INFO_NUM_CHANS, 0)
		return int(v), err
	}
	v, err := i.ai(C.AI_INFO_NUM_CHANS_BY_MODE, int(m))
	return int(v), err
}

// Ranges returns the output range table, or for input the single ended
// ranges followed by any differential ones not already listed
func (i *info) Ranges() ([]daq.Range, error) {
	if i.dir == daq.Output {
		return i.table(func(idx int) (int64, error) { return i.ao(C.AO_INFO_NUM_RANGES, idx) },
			func(idx int) (int64, error) { return i.ao(C.AO_INFO_RANGE, idx) })
	}
	se, err := i.table(func(idx int) (int64, error) { return i.ai(C.AI_INFO_NUM_SE_RANGES, idx) },
		func(idx int) (int64, error) { return i.ai(C.AI_INFO_SE_RANGE, idx) })
	if err != nil {
		return nil, err
	}
	diff, err := i.table(func(idx int) (int64, error) { return i.ai(C.AI_INFO_NUM_DIFF_RANGES, idx) },
		func(idx int) (int64, error) { return i.ai(C.AI_INFO_DIFF_RANGE, idx) })
	if err != nil {
		return nil, err
	}
	seen := make(map[daq.Range]bool, len(se))
	for _, r := range se {
		seen[r] = true
	}
	for _, r := range diff {
		if !seen[r] {
			se = append(se, r)
		}
	}
	return se, nil
}

func (i *info) table(count, entry func(int) (int64, error)) ([]daq.Range, error) {
	n, err := count(0)
	if err != nil {
		return nil, err
	}
	out := make([]daq.Range, 0, n)
	for idx := 0; idx < int(n); idx++ {
		r, err := entry(idx)
		if err != nil {
			return nil, err
		}
		out = append(out, daq.Range(r))
	}
	return out, nil
}
