/*Package settings loads and validates the acquisition settings file.

The file is a JSON object with three sections:

	{
	  "daq": {"interface_type": [1, 4], "connection_code": 0},
	  "ai":  {"sample_rate": 20000, "range_id": 5, "low_channel": 0, "high_channel": 3,
	          "input_mode": 2, "scan_flags": 0, "options": 0, "samples_per_channel": 20000},
	  "ao":  {"sample_rate": 20000, "range_id": 0, "low_channel": 0, "high_channel": 1,
	          "scan_flags": 0, "options": 0, "samples_per_channel": 20000,
	          "amplitude": 1, "offset": 0, "period": 10}
	}

The three sections may also be nested under a top level "settings" object.
Unknown fields are ignored.

A field of the wrong type fails the load immediately.  A missing field does
not: every missing field is collected, and once all three sections have been
parsed a single *MissingFieldsError naming all of them is returned.
*/
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"go.uber.org/multierr"

	"github.com/nanocal/nanocontrol/daq"
)

// Section names
const (
	SettingsSection = "settings"
	DAQSection      = "daq"
	AISection       = "ai"
	AOSection       = "ao"
)

// Field names
const (
	InterfaceTypeField     = "interface_type"
	ConnectionCodeField    = "connection_code"
	SampleRateField        = "sample_rate"
	RangeIDField           = "range_id"
	LowChannelField        = "low_channel"
	HighChannelField       = "high_channel"
	InputModeField         = "input_mode"
	ScanFlagsField         = "scan_flags"
	OptionsField           = "options"
	SamplesPerChannelField = "samples_per_channel"
	AmplitudeField         = "amplitude"
	OffsetField            = "offset"
	PeriodField            = "period"
)

// JSONExtension is the only extension Load accepts
const JSONExtension = ".json"

// Parameters is the result of a successful load
type Parameters struct {
	DAQ daq.DaqParams `json:"daq"`
	AI  daq.AiParams  `json:"ai"`
	AO  daq.AoParams  `json:"ao"`
}

// MissingSectionError is generated when one of the daq, ai, ao sections is absent
type MissingSectionError struct {
	Section string
}

func (e *MissingSectionError) Error() string {
	return fmt.Sprintf("no '%s' field found in the settings", e.Section)
}

// Unwrap makes errors.Is(err, daq.ErrConfiguration) true
func (e *MissingSectionError) Unwrap() error { return daq.ErrConfiguration }

// FieldError is generated when a field is present but has the wrong type or
// an unusable value
type FieldError struct {
	// Field is the qualified name, e.g. ai.sample_rate
	Field  string
	Value  interface{}
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("settings field '%s': %s (got %v)", e.Field, e.Reason, e.Value)
}

// Unwrap makes errors.Is(err, daq.ErrConfiguration) true
func (e *FieldError) Unwrap() error { return daq.ErrConfiguration }

// MissingFieldsError lists every field that was absent from the settings
type MissingFieldsError struct {
	// Fields are qualified names in parse order
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("no fields found in the settings: %s", strings.Join(e.Fields, ", "))
}

// Unwrap makes errors.Is(err, daq.ErrConfiguration) true
func (e *MissingFieldsError) Unwrap() error { return daq.ErrConfiguration }

// missingField is one entry in the accumulator
type missingField struct {
	field string
}

func (e *missingField) Error() string { return "missing " + e.field }

// Load reads a settings file and parses it.
// The file must exist, carry a .json extension and not be empty.
func Load(path string) (Parameters, error) {
	if _, err := os.Stat(path); err != nil {
		return Parameters{}, fmt.Errorf("%w: settings file %s doesn't exist", daq.ErrConfiguration, path)
	}
	if filepath.Ext(path) != JSONExtension {
		return Parameters{}, fmt.Errorf("%w: settings file %s doesn't have '%s' extension", daq.ErrConfiguration, path, JSONExtension)
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), json.Parser()); err != nil {
		return Parameters{}, fmt.Errorf("%w: reading %s: %v", daq.ErrConfiguration, path, err)
	}
	raw := k.Raw()
	if len(raw) == 0 {
		return Parameters{}, fmt.Errorf("%w: empty settings file %s", daq.ErrConfiguration, path)
	}
	return Parse(raw)
}

// Parse converts an already decoded settings object into Parameters
func Parse(raw map[string]interface{}) (Parameters, error) {
	var out Parameters
	if inner, ok := raw[SettingsSection].(map[string]interface{}); ok {
		raw = inner
	}
	for _, section := range []string{DAQSection, AISection, AOSection} {
		if _, ok := raw[section].(map[string]interface{}); !ok {
			return out, &MissingSectionError{Section: section}
		}
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(raw, "."), nil); err != nil {
		return out, fmt.Errorf("%w: %v", daq.ErrConfiguration, err)
	}
	p := &parser{k: k}

	// only in this order
	var err error
	if out.DAQ, err = p.parseDAQ(); err != nil {
		return out, err
	}
	if out.AI, err = p.parseAI(); err != nil {
		return out, err
	}
	if out.AO, err = p.parseAO(); err != nil {
		return out, err
	}
	if p.missing != nil {
		errs := multierr.Errors(p.missing)
		fields := make([]string, len(errs))
		for i, e := range errs {
			fields[i] = e.(*missingField).field
		}
		return out, &MissingFieldsError{Fields: fields}
	}
	return out, nil
}
