/*Package calibration converts heater temperatures into drive voltages.

A calibration file is JSON:

	{
	  "comment": "chip 7, 2024-03-01",
	  "coefficients": [0.05, 0.0121, 1.9e-6],
	  "max_voltage": 9.5
	}

Coefficients are polynomial terms in ascending order of power, so the file
above maps T to 0.05 + 0.0121 T + 1.9e-6 T^2.  Results are limited to
+/- max_voltage when it is non-zero.
*/
package calibration

import (
	"errors"
	"fmt"
	"os"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	"github.com/nanocal/nanocontrol/util"
)

// ErrNoCoefficients is generated when a calibration has an empty polynomial
var ErrNoCoefficients = errors.New("calibration has no coefficients")

// Calibration is a temperature to voltage polynomial
type Calibration struct {
	Comment      string    `koanf:"comment" json:"comment"`
	Coefficients []float64 `koanf:"coefficients" json:"coefficients"`

	// MaxVoltage, if non-zero, bounds the magnitude of every voltage
	MaxVoltage float64 `koanf:"max_voltage" json:"maxVoltage"`
}

// Default is used until a calibration file is applied: 10 mV per degree,
// limited to 10 V
func Default() Calibration {
	return Calibration{
		Comment:      "default calibration",
		Coefficients: []float64{0, 0.01},
		MaxVoltage:   10,
	}
}

// Validate checks that the polynomial is usable
func (c Calibration) Validate() error {
	if len(c.Coefficients) == 0 {
		return ErrNoCoefficients
	}
	if c.MaxVoltage < 0 {
		return fmt.Errorf("max voltage %g must not be negative", c.MaxVoltage)
	}
	return nil
}

// TemperatureToVoltage evaluates the polynomial at t
func (c Calibration) TemperatureToVoltage(t float64) float64 {
	// Horner
	v := 0.
	for i := len(c.Coefficients) - 1; i >= 0; i-- {
		v = v*t + c.Coefficients[i]
	}
	if c.MaxVoltage > 0 {
		v = util.Clamp(v, -c.MaxVoltage, c.MaxVoltage)
	}
	return v
}

// Read loads a calibration file
func Read(path string) (Calibration, error) {
	var c Calibration
	if _, err := os.Stat(path); err != nil {
		return c, fmt.Errorf("calibration file %s: %w", path, err)
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), json.Parser()); err != nil {
		return c, fmt.Errorf("reading calibration %s: %w", path, err)
	}
	if err := k.Unmarshal("", &c); err != nil {
		return c, fmt.Errorf("decoding calibration %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("calibration %s: %w", path, err)
	}
	return c, nil
}

// Write saves c to path as JSON
func Write(path string, c Calibration) error {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(c, "koanf"), nil); err != nil {
		return err
	}
	b, err := k.Marshal(json.Parser())
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
