package settings_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nanocal/nanocontrol/daq"
	"github.com/nanocal/nanocontrol/settings"
)

const validJSON = `{
  "daq": {"interface_type": [1, 4], "connection_code": 0},
  "ai": {"sample_rate": 20000, "range_id": 5, "low_channel": 0, "high_channel": 3,
         "input_mode": 2, "scan_flags": 0, "options": 8, "samples_per_channel": 20000},
  "ao": {"sample_rate": 1000, "range_id": 0, "low_channel": 0, "high_channel": 1,
         "scan_flags": [0, 2], "options": 0, "samples_per_channel": 100,
         "amplitude": 5, "offset": 0, "period": 10, "unknown": "ignored"}
}`

// valid returns a fresh, fully populated settings object as decoded JSON would be
func valid() map[string]interface{} {
	return map[string]interface{}{
		"daq": map[string]interface{}{
			"interface_type":  []interface{}{1.0, 4.0},
			"connection_code": 0.0,
		},
		"ai": map[string]interface{}{
			"sample_rate":         20000.0,
			"range_id":            5.0,
			"low_channel":         0.0,
			"high_channel":        3.0,
			"input_mode":          2.0,
			"scan_flags":          0.0,
			"options":             8.0,
			"samples_per_channel": 20000.0,
		},
		"ao": map[string]interface{}{
			"sample_rate":         1000.0,
			"range_id":            0.0,
			"low_channel":         0.0,
			"high_channel":        1.0,
			"scan_flags":          []interface{}{0.0, 2.0},
			"options":             0.0,
			"samples_per_channel": 100.0,
			"amplitude":           5.0,
			"offset":              0.0,
			"period":              10.0,
		},
	}
}

func section(m map[string]interface{}, name string) map[string]interface{} {
	return m[name].(map[string]interface{})
}

func TestParseValid(t *testing.T) {
	p, err := settings.Parse(valid())
	if err != nil {
		t.Fatal(err)
	}
	if p.DAQ.InterfaceType != daq.USB|daq.Ethernet {
		t.Errorf("expected interface type 5, got %d", p.DAQ.InterfaceType)
	}
	if p.AI.SampleRate != 20000 || p.AI.InputMode != daq.SingleEnded || p.AI.Options != daq.Continuous {
		t.Errorf("unexpected ai params %v", p.AI)
	}
	if p.AI.ChannelCount() != 4 {
		t.Errorf("expected 4 ai channels, got %d", p.AI.ChannelCount())
	}
	if p.AO.ScanFlags != daq.FlagNoCalibrateData {
		t.Errorf("expected OR of flag list to be 2, got %d", p.AO.ScanFlags)
	}
	if p.AO.Amplitude != 5 || p.AO.Period != 10 {
		t.Errorf("unexpected ao params %v", p.AO)
	}
}

func TestParseSatisfiesInvariants(t *testing.T) {
	p, err := settings.Parse(valid())
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range []daq.AnalogParams{p.AI.AnalogParams, p.AO.AnalogParams} {
		if a.LowChannel > a.HighChannel {
			t.Errorf("low channel %d above high channel %d", a.LowChannel, a.HighChannel)
		}
		if a.SampleRate > daq.MaxScanSampleRate {
			t.Errorf("sample rate %d above maximum", a.SampleRate)
		}
	}
}

func TestParseIsDeterministic(t *testing.T) {
	a, err := settings.Parse(valid())
	if err != nil {
		t.Fatal(err)
	}
	b, err := settings.Parse(valid())
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("expected identical parameters from identical input, got %v and %v", a, b)
	}
}

func TestParseClampsSampleRate(t *testing.T) {
	for _, rate := range []interface{}{10e6, 1e19, 1e30, uint64(1 << 63), json.Number("1e19")} {
		raw := valid()
		section(raw, "ai")["sample_rate"] = rate
		p, err := settings.Parse(raw)
		if err != nil {
			t.Errorf("sample rate %v: %v", rate, err)
			continue
		}
		if p.AI.SampleRate != daq.MaxScanSampleRate {
			t.Errorf("expected sample rate %v clamped to %d, got %d", rate, daq.MaxScanSampleRate, p.AI.SampleRate)
		}
	}
}

func TestParseCollectsAllMissingFields(t *testing.T) {
	raw := valid()
	delete(section(raw, "ai"), "range_id")
	delete(section(raw, "ai"), "sample_rate")
	_, err := settings.Parse(raw)
	var mf *settings.MissingFieldsError
	if !errors.As(err, &mf) {
		t.Fatalf("expected a MissingFieldsError, got %v", err)
	}
	msg := err.Error()
	for _, f := range []string{"range_id", "sample_rate"} {
		if !strings.Contains(msg, f) {
			t.Errorf("expected %s in %q", f, msg)
		}
	}
	for _, f := range []string{"low_channel", "high_channel", "input_mode", "scan_flags", "options", "samples_per_channel"} {
		if strings.Contains(msg, "ai."+f) {
			t.Errorf("did not expect %s in %q", f, msg)
		}
	}
	if len(mf.Fields) != 2 {
		t.Errorf("expected exactly two missing fields, got %v", mf.Fields)
	}
	if !errors.Is(err, daq.ErrConfiguration) {
		t.Error("expected missing fields to be a configuration error")
	}
}

func TestParseCollectsAcrossSections(t *testing.T) {
	raw := valid()
	delete(section(raw, "daq"), "connection_code")
	delete(section(raw, "ao"), "period")
	_, err := settings.Parse(raw)
	var mf *settings.MissingFieldsError
	if !errors.As(err, &mf) {
		t.Fatalf("expected a MissingFieldsError, got %v", err)
	}
	expected := []string{"daq.connection_code", "ao.period"}
	if len(mf.Fields) != len(expected) {
		t.Fatalf("expected %v got %v", expected, mf.Fields)
	}
	for i := range expected {
		if mf.Fields[i] != expected[i] {
			t.Errorf("expected %s at %d, got %s", expected[i], i, mf.Fields[i])
		}
	}
}

func TestParseMissingSection(t *testing.T) {
	for _, name := range []string{"daq", "ai", "ao"} {
		raw := valid()
		delete(raw, name)
		_, err := settings.Parse(raw)
		var ms *settings.MissingSectionError
		if !errors.As(err, &ms) || ms.Section != name {
			t.Errorf("expected missing section %s, got %v", name, err)
		}
	}
}

func TestParseWrongTypeFailsImmediately(t *testing.T) {
	raw := valid()
	section(raw, "ai")["low_channel"] = "zero"
	// also missing, but the type error must win
	delete(section(raw, "ao"), "period")
	_, err := settings.Parse(raw)
	var fe *settings.FieldError
	if !errors.As(err, &fe) {
		t.Fatalf("expected a FieldError, got %v", err)
	}
	if fe.Field != "ai.low_channel" {
		t.Errorf("expected ai.low_channel, got %s", fe.Field)
	}
}

func TestParseFlagListTypeErrors(t *testing.T) {
	cases := []interface{}{
		"8",
		[]interface{}{1.0, "2"},
		[]interface{}{1.5},
		true,
	}
	for _, c := range cases {
		raw := valid()
		section(raw, "ao")["scan_flags"] = c
		_, err := settings.Parse(raw)
		var fe *settings.FieldError
		if !errors.As(err, &fe) || fe.Field != "ao.scan_flags" {
			t.Errorf("expected a type error on ao.scan_flags for %v, got %v", c, err)
		}
	}
}

func TestParseChannelOrder(t *testing.T) {
	raw := valid()
	section(raw, "ai")["low_channel"] = 4.0
	section(raw, "ai")["high_channel"] = 2.0
	_, err := settings.Parse(raw)
	var fe *settings.FieldError
	if !errors.As(err, &fe) || fe.Field != "ai.high_channel" {
		t.Errorf("expected high below low to be rejected, got %v", err)
	}
}

func TestParseNestedUnderSettings(t *testing.T) {
	raw := map[string]interface{}{"settings": valid()}
	if _, err := settings.Parse(raw); err != nil {
		t.Errorf("expected nested layout to parse, got %v", err)
	}
}

func TestParseAcceptsGoInts(t *testing.T) {
	raw := valid()
	section(raw, "ai")["sample_rate"] = 500
	section(raw, "ai")["scan_flags"] = []int{1, 2}
	p, err := settings.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if p.AI.SampleRate != 500 || p.AI.ScanFlags != 3 {
		t.Errorf("unexpected ai params %v", p.AI)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	if err := os.WriteFile(path, []byte(validJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := settings.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.AO.SamplesPerChannel != 100 || p.AO.ChannelCount() != 2 {
		t.Errorf("unexpected ao params %v", p.AO)
	}
}

func TestLoadRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	yml := filepath.Join(dir, "settings.yml")
	if err := os.WriteFile(yml, []byte(validJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{filepath.Join(dir, "nope.json"), yml, empty} {
		_, err := settings.Load(path)
		if !errors.Is(err, daq.ErrConfiguration) {
			t.Errorf("expected a configuration error for %s, got %v", path, err)
		}
	}
}
