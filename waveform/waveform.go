/*Package waveform synthesizes analog-output sample buffers.

Buffers are interleaved by channel within each time step:

	[t0c0, t0c1, ..., t0cN, t1c0, t1c1, ...]

Every channel receives the same instantaneous value.  No clamping to the
selected output range is done here; the driver owns that once it knows the
range at scan start.
*/
package waveform

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNoSamplesPerCycle is generated when sampleRate / period truncates to zero
	ErrNoSamplesPerCycle = errors.New("sample rate / period yields zero samples per cycle")

	// ErrPartialCycle is generated when a buffer does not hold a whole number of cycles
	ErrPartialCycle = errors.New("samples per channel is not a whole number of cycles")

	// ErrBufferTooSmall is generated when a buffer cannot hold the requested samples
	ErrBufferTooSmall = errors.New("buffer too small")
)

// Sine describes a sine repeated over a buffer
type Sine struct {
	Amplitude float64
	Offset    float64

	// Period divides SampleRate to give the samples per cycle
	Period float64

	SampleRate        int
	SamplesPerChannel int
	Channels          int
}

// SamplesPerCycle is floor(SampleRate / Period)
func (s Sine) SamplesPerCycle() int {
	if s.Period <= 0 {
		return 0
	}
	return int(float64(s.SampleRate) / s.Period)
}

// CyclesPerBuffer is floor(SamplesPerChannel / SamplesPerCycle)
func (s Sine) CyclesPerBuffer() int {
	spc := s.SamplesPerCycle()
	if spc == 0 {
		return 0
	}
	return s.SamplesPerChannel / spc
}

// Whole returns ErrPartialCycle if the buffer does not end on a cycle boundary
func (s Sine) Whole() error {
	spc := s.SamplesPerCycle()
	if spc == 0 {
		return ErrNoSamplesPerCycle
	}
	if s.SamplesPerChannel%spc != 0 {
		return fmt.Errorf("%w: %d samples per channel, %d samples per cycle", ErrPartialCycle, s.SamplesPerChannel, spc)
	}
	return nil
}

// Fill writes whole cycles of the sine into buf and returns the number of
// positions written.  Positions after the last whole cycle are left untouched.
func (s Sine) Fill(buf []float64) (int, error) {
	spc := s.SamplesPerCycle()
	if spc == 0 {
		return 0, ErrNoSamplesPerCycle
	}
	if s.Channels < 1 {
		return 0, fmt.Errorf("channel count %d must be positive", s.Channels)
	}
	cycles := s.CyclesPerBuffer()
	if need := cycles * spc * s.Channels; need > len(buf) {
		return 0, fmt.Errorf("%w: need %d, have %d", ErrBufferTooSmall, need, len(buf))
	}
	i := 0
	for c := 0; c < cycles; c++ {
		for sample := 0; sample < spc; sample++ {
			v := s.Amplitude*math.Sin(2*math.Pi*float64(sample)/float64(spc)) + s.Offset
			for ch := 0; ch < s.Channels; ch++ {
				buf[i] = v
				i++
			}
		}
	}
	return i, nil
}

// Interleave repeats each value of a single-channel series across channels
func Interleave(series []float64, channels int) []float64 {
	out := make([]float64, len(series)*channels)
	i := 0
	for _, v := range series {
		for ch := 0; ch < channels; ch++ {
			out[i] = v
			i++
		}
	}
	return out
}

// Deinterleave extracts one channel from an interleaved buffer
func Deinterleave(buf []float64, channels, channel int) []float64 {
	if channels < 1 || channel < 0 || channel >= channels {
		return nil
	}
	out := make([]float64, len(buf)/channels)
	for i := range out {
		out[i] = buf[i*channels+channel]
	}
	return out
}
