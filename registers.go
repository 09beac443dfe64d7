package stservo

// Register describes one entry of a servo's control/status table: a byte
// offset, a declared width, and its encoding.
type Register struct {
	Address  byte
	Size     int // 1 or 2 bytes
	ReadOnly bool
	// SignBit indicates which bit is the sign bit for sign-magnitude
	// encoding. 0 means no sign-magnitude encoding (standard two's
	// complement or unsigned).
	SignBit int
}

// CurrentScale converts the raw present-current register value to amps.
const CurrentScale = 0.0065

// Control table for the STS series. SCS series models override addresses
// through their Model register map.
var (
	// EEPROM registers (persistent; gated by RegLock)
	RegFirmwareVersion   = Register{Address: 0, Size: 1, ReadOnly: true}
	RegModelNumber       = Register{Address: 3, Size: 2, ReadOnly: true}
	RegID                = Register{Address: 5, Size: 1}
	RegBaudRate          = Register{Address: 6, Size: 1}
	RegResponseDelay     = Register{Address: 7, Size: 1}
	RegMinAngleLimit     = Register{Address: 9, Size: 2}
	RegMaxAngleLimit     = Register{Address: 11, Size: 2}
	RegMaxTemp           = Register{Address: 13, Size: 1}
	RegMaxVoltage        = Register{Address: 14, Size: 1}
	RegMinVoltage        = Register{Address: 15, Size: 1}
	RegMaxTorque         = Register{Address: 16, Size: 2}
	RegProtectionCurrent = Register{Address: 28, Size: 2}
	RegPositionOffset    = Register{Address: 31, Size: 2, SignBit: 11}
	RegOperatingMode     = Register{Address: 33, Size: 1}

	// RAM registers (volatile)
	RegTorqueEnable = Register{Address: 40, Size: 1}
	RegAcceleration = Register{Address: 41, Size: 1}
	RegGoalPosition = Register{Address: 42, Size: 2}
	RegGoalTime     = Register{Address: 44, Size: 2}
	RegGoalVelocity = Register{Address: 46, Size: 2, SignBit: 15}
	RegTorqueLimit  = Register{Address: 48, Size: 2}
	// RegLock gates every EEPROM register: write 0 to unlock, 1 to lock.
	RegLock = Register{Address: 55, Size: 1}

	// Feedback registers (read-only)
	RegPresentPosition = Register{Address: 56, Size: 2, ReadOnly: true}
	RegPresentVelocity = Register{Address: 58, Size: 2, ReadOnly: true, SignBit: 15}
	RegPresentLoad     = Register{Address: 60, Size: 2, ReadOnly: true, SignBit: 9}
	RegPresentVoltage  = Register{Address: 62, Size: 1, ReadOnly: true}
	RegPresentTemp     = Register{Address: 63, Size: 1, ReadOnly: true}
	RegServoStatus     = Register{Address: 65, Size: 1, ReadOnly: true}
	RegMoving          = Register{Address: 66, Size: 1, ReadOnly: true}
	RegPresentCurrent  = Register{Address: 69, Size: 2, ReadOnly: true}
)

// EEPROM lock values for RegLock.
const (
	lockDisabled byte = 0
	lockEnabled  byte = 1
)

// stsRegisters maps symbolic names to the STS control table. Models without
// their own register map fall back to this one.
var stsRegisters = map[string]Register{
	"firmware_version":   RegFirmwareVersion,
	"model_number":       RegModelNumber,
	"id":                 RegID,
	"baud_rate":          RegBaudRate,
	"response_delay":     RegResponseDelay,
	"min_angle_limit":    RegMinAngleLimit,
	"max_angle_limit":    RegMaxAngleLimit,
	"max_temp":           RegMaxTemp,
	"max_voltage":        RegMaxVoltage,
	"min_voltage":        RegMinVoltage,
	"max_torque":         RegMaxTorque,
	"protection_current": RegProtectionCurrent,
	"position_offset":    RegPositionOffset,
	"operating_mode":     RegOperatingMode,
	"torque_enable":      RegTorqueEnable,
	"acceleration":       RegAcceleration,
	"goal_position":      RegGoalPosition,
	"goal_time":          RegGoalTime,
	"goal_velocity":      RegGoalVelocity,
	"torque_limit":       RegTorqueLimit,
	"lock":               RegLock,
	"present_position":   RegPresentPosition,
	"present_velocity":   RegPresentVelocity,
	"present_load":       RegPresentLoad,
	"present_voltage":    RegPresentVoltage,
	"present_temp":       RegPresentTemp,
	"moving":             RegMoving,
	"present_current":    RegPresentCurrent,
}

// Operating modes for RegOperatingMode.
const (
	ModePosition = 0
	ModeVelocity = 1 // Wheel mode
	ModePWM      = 2
	ModeStep     = 3
)
