package waveform

import (
	"errors"
	"fmt"
)

// ErrInvalidProfile is wrapped by every profile validation failure
var ErrInvalidProfile = errors.New("invalid time/temperature profile")

// Calibration maps a temperature to the voltage that produces it
type Calibration func(temperature float64) float64

// Profile is a piecewise linear temperature program.  Time is in
// milliseconds from the start of the scan.
type Profile struct {
	Time        []float64 `json:"time"`
	Temperature []float64 `json:"temperature"`
}

// Validate checks that the profile has at least two points of equal length,
// starts at t=0, and has strictly increasing time
func (p Profile) Validate() error {
	if len(p.Time) != len(p.Temperature) {
		return fmt.Errorf("%w: %d time values but %d temperature values", ErrInvalidProfile, len(p.Time), len(p.Temperature))
	}
	if len(p.Time) < 2 {
		return fmt.Errorf("%w: need at least two points", ErrInvalidProfile)
	}
	if p.Time[0] != 0 {
		return fmt.Errorf("%w: must start at t=0, starts at %g", ErrInvalidProfile, p.Time[0])
	}
	for i := 1; i < len(p.Time); i++ {
		if p.Time[i] <= p.Time[i-1] {
			return fmt.Errorf("%w: time must increase, t[%d]=%g <= t[%d]=%g", ErrInvalidProfile, i, p.Time[i], i-1, p.Time[i-1])
		}
	}
	return nil
}

// Duration is the length of the profile in ms
func (p Profile) Duration() float64 {
	if len(p.Time) == 0 {
		return 0
	}
	return p.Time[len(p.Time)-1]
}

// Samples is the number of time steps needed to play the profile at sampleRate
func (p Profile) Samples(sampleRate int) int {
	return int(p.Duration() * float64(sampleRate) / 1000)
}

// At returns the linearly interpolated temperature at t ms.  Times outside the
// profile hold the end values.
func (p Profile) At(t float64) float64 {
	n := len(p.Time)
	if t <= p.Time[0] {
		return p.Temperature[0]
	}
	if t >= p.Time[n-1] {
		return p.Temperature[n-1]
	}
	// profiles are short (tens of points); a linear walk is fine
	i := 1
	for p.Time[i] < t {
		i++
	}
	t0, t1 := p.Time[i-1], p.Time[i]
	y0, y1 := p.Temperature[i-1], p.Temperature[i]
	return y0 + (y1-y0)*(t-t0)/(t1-t0)
}

// Render converts the profile into an interleaved voltage buffer of
// Samples(sampleRate) time steps across channels
func (p Profile) Render(sampleRate, channels int, cal Calibration) ([]float64, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate %d must be positive", sampleRate)
	}
	if channels < 1 {
		return nil, fmt.Errorf("channel count %d must be positive", channels)
	}
	if cal == nil {
		return nil, errors.New("no calibration supplied")
	}
	n := p.Samples(sampleRate)
	if n == 0 {
		return nil, fmt.Errorf("%w: %g ms is shorter than one sample at %d Hz", ErrInvalidProfile, p.Duration(), sampleRate)
	}
	series := make([]float64, n)
	dt := 1000 / float64(sampleRate)
	for i := range series {
		series[i] = cal(p.At(float64(i) * dt))
	}
	return Interleave(series, channels), nil
}
