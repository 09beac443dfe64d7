package stservo

import (
	"context"
	"fmt"
)

// Servo provides a high-level interface for controlling a single servo.
type Servo struct {
	bus   *Bus
	id    int
	model *Model
}

// NewServo creates a new Servo instance.
// If model is nil, defaults to STS3215.
func NewServo(bus *Bus, id int, model *Model) *Servo {
	if model == nil {
		model = &ModelSTS3215
	}
	return &Servo{
		bus:   bus,
		id:    id,
		model: model,
	}
}

// ID returns the servo's ID.
func (s *Servo) ID() int {
	return s.id
}

// Model returns the servo's model specification.
func (s *Servo) Model() *Model {
	return s.model
}

// SetModel changes the servo's model.
func (s *Servo) SetModel(model *Model) {
	s.model = model
}

// Ping verifies the servo is alive.
func (s *Servo) Ping(ctx context.Context) error {
	return s.bus.Ping(ctx, s.id)
}

// Status

// Position reads the current position as a signed 16-bit value.
func (s *Servo) Position(ctx context.Context) (int, error) {
	raw, err := s.bus.ReadWord(ctx, s.id, RegPresentPosition.Address)
	if err != nil {
		return 0, err
	}
	return int(int16(raw)), nil
}

// Speed reads the current rotation speed. The register uses bit 15 as an
// explicit sign flag rather than two's complement; negative means reverse.
func (s *Servo) Speed(ctx context.Context) (int, error) {
	raw, err := s.bus.ReadWord(ctx, s.id, RegPresentVelocity.Address)
	if err != nil {
		return 0, err
	}
	return decodeSignMagnitude(int(raw), RegPresentVelocity.SignBit), nil
}

// Temperature reads the current temperature in degrees Celsius.
func (s *Servo) Temperature(ctx context.Context) (int, error) {
	value, err := s.bus.ReadByte(ctx, s.id, RegPresentTemp.Address)
	if err != nil {
		return 0, err
	}
	return int(value), nil
}

// Current reads the motor current in amps.
func (s *Servo) Current(ctx context.Context) (float64, error) {
	raw, err := s.bus.ReadWord(ctx, s.id, RegPresentCurrent.Address)
	if err != nil {
		return 0, err
	}
	return float64(int16(raw)) * CurrentScale, nil
}

// Voltage reads the supply voltage in tenths of a volt.
func (s *Servo) Voltage(ctx context.Context) (int, error) {
	value, err := s.bus.ReadByte(ctx, s.id, RegPresentVoltage.Address)
	if err != nil {
		return 0, err
	}
	return int(value), nil
}

// Load reads the current load; negative indicates load in reverse direction.
func (s *Servo) Load(ctx context.Context) (int, error) {
	raw, err := s.bus.ReadWord(ctx, s.id, RegPresentLoad.Address)
	if err != nil {
		return 0, err
	}
	return decodeSignMagnitude(int(raw), RegPresentLoad.SignBit), nil
}

// Moving returns whether the servo is currently moving.
func (s *Servo) Moving(ctx context.Context) (bool, error) {
	value, err := s.bus.ReadByte(ctx, s.id, RegMoving.Address)
	if err != nil {
		return false, err
	}
	return value != 0, nil
}

// Motion

// SetTargetPosition commands the servo to move to position at the given
// speed. The 6-byte payload is position(2) + two always-zero filler bytes +
// speed(2): the filler covers the goal-time registers that sit between the
// position and speed fields in the control table and must not be reordered.
func (s *Servo) SetTargetPosition(ctx context.Context, position, speed int, mode WriteMode) error {
	proto := s.bus.Protocol()

	data := make([]byte, 6)
	copy(data[0:2], proto.EncodeWord(uint16(position)))
	copy(data[4:6], proto.EncodeWord(uint16(speed)))

	return s.bus.WriteRegisters(ctx, s.id, RegGoalPosition.Address, data, mode)
}

// SetTargetVelocity sets the goal velocity (for wheel mode), encoded with
// bit 15 as the sign flag. The encodable domain is [-32767, 32767]; -32768
// has no sign-magnitude representation.
func (s *Servo) SetTargetVelocity(ctx context.Context, velocity int, mode WriteMode) error {
	if velocity < -0x7FFF || velocity > 0x7FFF {
		return fmt.Errorf("velocity %d out of range [-32767, 32767]", velocity)
	}

	encoded := encodeSignMagnitude(velocity, RegGoalVelocity.SignBit)
	return s.bus.WriteWord(ctx, s.id, RegGoalVelocity.Address, uint16(encoded), mode)
}

// SetTargetAcceleration sets the goal acceleration.
func (s *Servo) SetTargetAcceleration(ctx context.Context, accel uint8, mode WriteMode) error {
	return s.bus.WriteByte(ctx, s.id, RegAcceleration.Address, accel, mode)
}

// SetMode sets the operating mode (position, velocity, PWM, step).
func (s *Servo) SetMode(ctx context.Context, mode int) error {
	return s.bus.WriteByte(ctx, s.id, RegOperatingMode.Address, byte(mode), WriteImmediate)
}

// Torque

// SetTorqueEnabled enables or disables torque.
func (s *Servo) SetTorqueEnabled(ctx context.Context, enabled bool) error {
	var val byte
	if enabled {
		val = 1
	}
	return s.bus.WriteByte(ctx, s.id, RegTorqueEnable.Address, val, WriteImmediate)
}

// Enable is a convenience alias for SetTorqueEnabled(true).
func (s *Servo) Enable(ctx context.Context) error {
	return s.SetTorqueEnabled(ctx, true)
}

// Disable is a convenience alias for SetTorqueEnabled(false).
func (s *Servo) Disable(ctx context.Context) error {
	return s.SetTorqueEnabled(ctx, false)
}

// EEPROM configuration

// SetID reassigns the servo's bus ID. It refuses to proceed if the new ID
// already answers ping. The sequence is: unlock EEPROM, write the ID
// register, lock EEPROM addressing the NEW ID (the device adopts it as soon
// as the register is written), then verify with a ping.
//
// There is no rollback: a failure partway through can leave the EEPROM
// unlocked, or the ID changed but not re-locked. Callers must handle that —
// blindly retrying can trip the ID-in-use guard against the very servo that
// just adopted the new ID.
func (s *Servo) SetID(ctx context.Context, newID int) error {
	if err := s.bus.validateID(newID); err != nil {
		return err
	}
	if err := s.bus.validateID(s.id); err != nil {
		return err
	}

	if err := s.bus.Ping(ctx, newID); err == nil {
		return fmt.Errorf("%w: %d", ErrIDInUse, newID)
	}

	if err := s.bus.WriteByte(ctx, s.id, RegLock.Address, lockDisabled, WriteImmediate); err != nil {
		return fmt.Errorf("unlock eeprom: %w", err)
	}
	if err := s.bus.WriteByte(ctx, s.id, RegID.Address, byte(newID), WriteImmediate); err != nil {
		return fmt.Errorf("write id: %w", err)
	}
	if err := s.bus.WriteByte(ctx, newID, RegLock.Address, lockEnabled, WriteImmediate); err != nil {
		return fmt.Errorf("lock eeprom: %w", err)
	}

	if err := s.bus.Ping(ctx, newID); err != nil {
		return fmt.Errorf("verify new id %d: %w", newID, err)
	}

	s.id = newID
	return nil
}

// SetPositionOffset writes the position-correction calibration, a signed
// two-byte value, through the same unlock/write/lock sequence as SetID. The
// same no-rollback caveat applies: a partial failure can leave the EEPROM
// unlocked.
func (s *Servo) SetPositionOffset(ctx context.Context, offset int) error {
	if offset < -0x8000 || offset > 0x7FFF {
		return fmt.Errorf("position offset %d out of int16 range", offset)
	}

	if err := s.bus.WriteByte(ctx, s.id, RegLock.Address, lockDisabled, WriteImmediate); err != nil {
		return fmt.Errorf("unlock eeprom: %w", err)
	}
	if err := s.bus.WriteWord(ctx, s.id, RegPositionOffset.Address, uint16(int16(offset)), WriteImmediate); err != nil {
		return fmt.Errorf("write position offset: %w", err)
	}
	if err := s.bus.WriteByte(ctx, s.id, RegLock.Address, lockEnabled, WriteImmediate); err != nil {
		return fmt.Errorf("lock eeprom: %w", err)
	}

	return nil
}

// SetBaudRate changes the servo's baud rate. Takes the actual baud rate
// value (e.g., 1000000), not the index.
func (s *Servo) SetBaudRate(ctx context.Context, baudRate int) error {
	idx := s.model.BaudRateIndex(baudRate)
	if idx < 0 {
		return fmt.Errorf("baud rate %d not supported by model %s", baudRate, s.model.Name)
	}

	if err := s.bus.WriteByte(ctx, s.id, RegLock.Address, lockDisabled, WriteImmediate); err != nil {
		return fmt.Errorf("unlock eeprom: %w", err)
	}
	if err := s.bus.WriteByte(ctx, s.id, RegBaudRate.Address, byte(idx), WriteImmediate); err != nil {
		return fmt.Errorf("write baud rate: %w", err)
	}
	if err := s.bus.WriteByte(ctx, s.id, RegLock.Address, lockEnabled, WriteImmediate); err != nil {
		return fmt.Errorf("lock eeprom: %w", err)
	}

	return nil
}

// Named register access through the model's register table.

// ReadRegister reads a named register.
func (s *Servo) ReadRegister(ctx context.Context, name string) ([]byte, error) {
	reg, ok := s.model.GetRegister(name)
	if !ok {
		return nil, fmt.Errorf("unknown register: %s", name)
	}
	return s.bus.ReadRegisters(ctx, s.id, reg.Address, reg.Size)
}

// WriteRegister writes to a named register.
func (s *Servo) WriteRegister(ctx context.Context, name string, data []byte, mode WriteMode) error {
	reg, ok := s.model.GetRegister(name)
	if !ok {
		return fmt.Errorf("unknown register: %s", name)
	}
	if reg.ReadOnly {
		return fmt.Errorf("register %s is read-only", name)
	}
	if len(data) != reg.Size {
		return fmt.Errorf("data size mismatch: expected %d bytes, got %d", reg.Size, len(data))
	}
	return s.bus.WriteRegisters(ctx, s.id, reg.Address, data, mode)
}
