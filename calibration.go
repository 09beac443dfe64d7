package stservo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// NormMode selects the engineering range a raw servo position maps to.
type NormMode int

const (
	NormModeRaw       NormMode = iota // Raw servo counts
	NormModeRange100                  // 0 to 100
	NormModeRangeM100                 // -100 to +100
	NormModeDegrees                   // -180° to +180°
)

func (m NormMode) String() string {
	switch m {
	case NormModeRaw:
		return "raw"
	case NormModeRange100:
		return "0-100"
	case NormModeRangeM100:
		return "-100 to +100"
	case NormModeDegrees:
		return "degrees"
	default:
		return "unknown"
	}
}

// Calibration holds per-servo calibration: drive direction, the homing
// offset programmed into the servo's position-correction register, and the
// usable position range with its normalization mode.
type Calibration struct {
	ID           int      `json:"id"`
	DriveMode    int      `json:"drive_mode"`          // 0=normal, 1=inverted
	HomingOffset int      `json:"homing_offset"`       // Written to the position-correction register
	RangeMin     int      `json:"range_min"`           // Minimum usable position
	RangeMax     int      `json:"range_max"`           // Maximum usable position
	NormMode     NormMode `json:"norm_mode,omitempty"` // Defaults to degrees
}

// NewCalibration creates a calibration covering the full STS3215 range.
func NewCalibration(id int) *Calibration {
	return &Calibration{
		ID:       id,
		RangeMin: 0,
		RangeMax: ModelSTS3215.MaxPosition,
		NormMode: NormModeDegrees,
	}
}

// Validate checks the calibration parameters.
func (c *Calibration) Validate() error {
	if c.ID < 0 || c.ID > int(MaxServoID) {
		return fmt.Errorf("invalid servo ID: %d (must be 0-%d)", c.ID, MaxServoID)
	}
	if c.RangeMin >= c.RangeMax {
		return fmt.Errorf("invalid range: min (%d) must be less than max (%d)", c.RangeMin, c.RangeMax)
	}
	if c.RangeMin < 0 {
		return fmt.Errorf("range min must not be negative, got %d", c.RangeMin)
	}
	if c.NormMode < NormModeRaw || c.NormMode > NormModeDegrees {
		return fmt.Errorf("invalid normalization mode: %d", c.NormMode)
	}
	return nil
}

func (c *Calibration) String() string {
	direction := "normal"
	if c.DriveMode != 0 {
		direction = "inverted"
	}
	return fmt.Sprintf("ID %d: range[%d-%d] %s %s (offset: %d)",
		c.ID, c.RangeMin, c.RangeMax, c.NormMode, direction, c.HomingOffset)
}

// span returns the half-width of the normalized range for symmetric modes,
// or the full width for NormModeRange100.
func (c *Calibration) span() (center, halfRange float64) {
	center = float64(c.RangeMin+c.RangeMax) / 2.0
	halfRange = float64(c.RangeMax-c.RangeMin) / 2.0
	return center, halfRange
}

// Normalize converts a raw servo position to the calibrated engineering
// range. The servo's reported position already includes the homing offset,
// so the raw value maps directly against RangeMin/RangeMax.
func (c *Calibration) Normalize(rawValue int) (float64, error) {
	var normalized float64

	switch c.NormMode {
	case NormModeRaw:
		normalized = float64(rawValue)

	case NormModeRange100:
		normalized = float64(rawValue-c.RangeMin) / float64(c.RangeMax-c.RangeMin) * 100.0
		normalized = clamp(normalized, 0, 100)

	case NormModeRangeM100:
		center, halfRange := c.span()
		normalized = (float64(rawValue) - center) / halfRange * 100.0
		normalized = clamp(normalized, -100, 100)

	case NormModeDegrees:
		center, halfRange := c.span()
		normalized = (float64(rawValue) - center) / halfRange * 180.0
		normalized = clamp(normalized, -180, 180)

	default:
		return 0, fmt.Errorf("unknown normalization mode: %d", c.NormMode)
	}

	return c.applyDriveMode(normalized), nil
}

// Denormalize converts an engineering value back to a raw servo position,
// clamped to the calibrated range.
func (c *Calibration) Denormalize(value float64) (int, error) {
	adjusted := c.applyDriveMode(value)

	var rawValue int

	switch c.NormMode {
	case NormModeRaw:
		rawValue = int(math.Round(adjusted))

	case NormModeRange100:
		clamped := clamp(adjusted, 0, 100)
		rawValue = int(math.Round(clamped/100.0*float64(c.RangeMax-c.RangeMin) + float64(c.RangeMin)))

	case NormModeRangeM100:
		center, halfRange := c.span()
		clamped := clamp(adjusted, -100, 100)
		rawValue = int(math.Round(center + clamped/100.0*halfRange))

	case NormModeDegrees:
		center, halfRange := c.span()
		clamped := clamp(adjusted, -180, 180)
		rawValue = int(math.Round(center + clamped/180.0*halfRange))

	default:
		return 0, fmt.Errorf("unknown normalization mode: %d", c.NormMode)
	}

	if rawValue < c.RangeMin {
		rawValue = c.RangeMin
	}
	if rawValue > c.RangeMax {
		rawValue = c.RangeMax
	}

	return rawValue, nil
}

// applyDriveMode inverts a normalized value for servos mounted backwards.
// It is its own inverse, so Normalize and Denormalize share it.
func (c *Calibration) applyDriveMode(value float64) float64 {
	if c.DriveMode == 0 {
		return value
	}
	if c.NormMode == NormModeRange100 {
		return 100.0 - value
	}
	if c.NormMode == NormModeRaw {
		center, _ := c.span()
		return 2*center - value
	}
	return -value
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Apply programs the homing offset into the servo's position-correction
// register through the EEPROM-locked write sequence.
func (c *Calibration) Apply(ctx context.Context, servo *Servo) error {
	return servo.SetPositionOffset(ctx, c.HomingOffset)
}

// LoadCalibrations loads calibration data from a JSON file keyed by motor
// name and returns it keyed by servo ID.
func LoadCalibrations(filename string) (map[int]*Calibration, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read calibration file: %w", err)
	}

	var motorMap map[string]*Calibration
	if err := json.Unmarshal(data, &motorMap); err != nil {
		return nil, fmt.Errorf("failed to parse calibration file: %w", err)
	}

	result := make(map[int]*Calibration)
	for motorName, cal := range motorMap {
		if cal.NormMode == 0 {
			cal.NormMode = NormModeDegrees
		}

		if err := cal.Validate(); err != nil {
			return nil, fmt.Errorf("invalid calibration for motor %s: %w", motorName, err)
		}

		if _, exists := result[cal.ID]; exists {
			return nil, fmt.Errorf("duplicate servo ID %d found in calibration file", cal.ID)
		}

		result[cal.ID] = cal
	}

	return result, nil
}

// SaveCalibrations saves calibration data to a JSON file keyed by motor
// name. Servos missing from motorNames get a generated "motor_<id>" key.
func SaveCalibrations(filename string, calibrations map[int]*Calibration, motorNames map[int]string) error {
	motorMap := make(map[string]*Calibration)

	for id, cal := range calibrations {
		motorName, exists := motorNames[id]
		if !exists {
			motorName = fmt.Sprintf("motor_%d", id)
		}
		motorMap[motorName] = cal
	}

	data, err := json.MarshalIndent(motorMap, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal calibrations: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write calibration file: %w", err)
	}

	return nil
}
