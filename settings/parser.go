package settings

import (
	"encoding/json"
	"math"

	"github.com/knadh/koanf"
	"go.uber.org/multierr"

	"github.com/nanocal/nanocontrol/daq"
	"github.com/nanocal/nanocontrol/util"
)

type parser struct {
	k *koanf.Koanf

	// missing accumulates *missingField
	missing error
}

// lookup returns the raw value of section.field.  An absent field is
// recorded and ok is false.
func (p *parser) lookup(section, field string) (key string, v interface{}, ok bool) {
	key = section + "." + field
	if !p.k.Exists(key) {
		p.missing = multierr.Append(p.missing, &missingField{field: key})
		return key, nil, false
	}
	return key, p.k.Get(key), true
}

func (p *parser) intField(section, field string) (int, bool, error) {
	key, v, ok := p.lookup(section, field)
	if !ok {
		return 0, false, nil
	}
	i, isInt := toInt(v)
	if !isInt {
		return 0, true, &FieldError{Field: key, Value: v, Reason: "expected an integer"}
	}
	return i, true, nil
}

// flagsField accepts an integer or a list of integers, which are OR'd together
func (p *parser) flagsField(section, field string) (int, bool, error) {
	key, v, ok := p.lookup(section, field)
	if !ok {
		return 0, false, nil
	}
	if i, isInt := toInt(v); isInt {
		return i, true, nil
	}
	var list []interface{}
	switch l := v.(type) {
	case []interface{}:
		list = l
	case []int:
		return util.BitwiseOr(l), true, nil
	default:
		return 0, true, &FieldError{Field: key, Value: v, Reason: "expected an integer or a list of integers"}
	}
	ints := make([]int, len(list))
	for idx, elem := range list {
		i, isInt := toInt(elem)
		if !isInt {
			return 0, true, &FieldError{Field: key, Value: v, Reason: "expected an integer or a list of integers"}
		}
		ints[idx] = i
	}
	return util.BitwiseOr(ints), true, nil
}

func (p *parser) floatField(section, field string) (float64, bool, error) {
	key, v, ok := p.lookup(section, field)
	if !ok {
		return 0, false, nil
	}
	f, isNum := toFloat(v)
	if !isNum {
		return 0, true, &FieldError{Field: key, Value: v, Reason: "expected a number"}
	}
	return f, true, nil
}

func (p *parser) parseDAQ() (daq.DaqParams, error) {
	var out daq.DaqParams
	ifc, ok, err := p.flagsField(DAQSection, InterfaceTypeField)
	if err != nil {
		return out, err
	}
	if ok {
		out.InterfaceType = daq.InterfaceType(ifc)
	}
	code, ok, err := p.intField(DAQSection, ConnectionCodeField)
	if err != nil {
		return out, err
	}
	if ok {
		out.ConnectionCode = int64(code)
	}
	return out, nil
}

// parseAnalog parses the fields shared by the ai and ao sections
func (p *parser) parseAnalog(section string) (daq.AnalogParams, error) {
	var out daq.AnalogParams

	rate, ok, err := p.intField(section, SampleRateField)
	if err != nil {
		return out, err
	}
	if ok {
		if rate <= 0 {
			return out, &FieldError{Field: section + "." + SampleRateField, Value: rate, Reason: "must be positive"}
		}
		out.SampleRate = util.ClampInt(rate, 1, daq.MaxScanSampleRate)
	}

	rng, ok, err := p.intField(section, RangeIDField)
	if err != nil {
		return out, err
	}
	if ok {
		if rng < 0 {
			return out, &FieldError{Field: section + "." + RangeIDField, Value: rng, Reason: "must not be negative"}
		}
		out.RangeID = rng
	}

	low, lowOK, err := p.intField(section, LowChannelField)
	if err != nil {
		return out, err
	}
	if lowOK {
		if low < 0 {
			return out, &FieldError{Field: section + "." + LowChannelField, Value: low, Reason: "must not be negative"}
		}
		out.LowChannel = low
	}

	high, highOK, err := p.intField(section, HighChannelField)
	if err != nil {
		return out, err
	}
	if highOK {
		if high < 0 {
			return out, &FieldError{Field: section + "." + HighChannelField, Value: high, Reason: "must not be negative"}
		}
		if lowOK && high < low {
			return out, &FieldError{Field: section + "." + HighChannelField, Value: high, Reason: "must not be below low_channel"}
		}
		out.HighChannel = high
	}

	flags, ok, err := p.flagsField(section, ScanFlagsField)
	if err != nil {
		return out, err
	}
	if ok {
		out.ScanFlags = daq.ScanFlag(flags)
	}

	opts, ok, err := p.flagsField(section, OptionsField)
	if err != nil {
		return out, err
	}
	if ok {
		out.Options = daq.ScanOption(opts)
	}

	spc, ok, err := p.intField(section, SamplesPerChannelField)
	if err != nil {
		return out, err
	}
	if ok {
		if spc <= 0 {
			return out, &FieldError{Field: section + "." + SamplesPerChannelField, Value: spc, Reason: "must be positive"}
		}
		out.SamplesPerChannel = spc
	}
	return out, nil
}

func (p *parser) parseAI() (daq.AiParams, error) {
	var out daq.AiParams
	common, err := p.parseAnalog(AISection)
	if err != nil {
		return out, err
	}
	out.AnalogParams = common
	mode, ok, err := p.intField(AISection, InputModeField)
	if err != nil {
		return out, err
	}
	if ok {
		m := daq.InputMode(mode)
		if !daq.ValidInputMode(m) {
			return out, &FieldError{Field: AISection + "." + InputModeField, Value: mode, Reason: "unknown input mode"}
		}
		out.InputMode = m
	}
	return out, nil
}

func (p *parser) parseAO() (daq.AoParams, error) {
	var out daq.AoParams
	common, err := p.parseAnalog(AOSection)
	if err != nil {
		return out, err
	}
	out.AnalogParams = common

	amp, ok, err := p.floatField(AOSection, AmplitudeField)
	if err != nil {
		return out, err
	}
	if ok {
		out.Amplitude = amp
	}
	off, ok, err := p.floatField(AOSection, OffsetField)
	if err != nil {
		return out, err
	}
	if ok {
		out.Offset = off
	}
	period, ok, err := p.floatField(AOSection, PeriodField)
	if err != nil {
		return out, err
	}
	if ok {
		if period <= 0 {
			return out, &FieldError{Field: AOSection + "." + PeriodField, Value: period, Reason: "must be positive"}
		}
		out.Period = period
	}
	return out, nil
}

// toInt accepts any Go integer, or a float / json.Number with no fractional
// part.  Bools and strings are not integers.
func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return uintToInt(uint64(n)), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return uintToInt(n), true
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	default:
		return 0, false
	}
}

// floatToInt saturates at the int range so that an oversized value is
// still large (and gets clamped) instead of wrapping negative
func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	switch {
	case f >= float64(math.MaxInt):
		return math.MaxInt, true
	case f <= float64(math.MinInt):
		return math.MinInt, true
	}
	return int(f), true
}

func uintToInt(u uint64) int {
	if u > math.MaxInt {
		return math.MaxInt
	}
	return int(u)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	if i, ok := toInt(v); ok {
		return float64(i), true
	}
	return 0, false
}
