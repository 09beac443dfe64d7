package stservo

// Model represents a servo model specification. The register map is injected
// rather than hard-coded per call site so device variants with different
// control-table layouts reuse the same protocol engine.
type Model struct {
	Name        string
	Number      int // Model number reported by the device
	Protocol    int // ProtocolSTS or ProtocolSCS
	Resolution  int // Position resolution in steps (e.g., 4096 for 12-bit)
	MaxPosition int // Maximum position value

	// Registers maps register names to their definitions.
	// If nil, uses the default STS register map.
	Registers map[string]Register

	// BaudRates lists supported baud rates in index order.
	BaudRates []int
}

// DefaultBaudRates for most Feetech servos.
var DefaultBaudRates = []int{
	1000000, // 0
	500000,  // 1
	250000,  // 2
	128000,  // 3
	115200,  // 4
	76800,   // 5
	57600,   // 6
	38400,   // 7
}

// Predefined servo models.
var (
	ModelSTS3215 = Model{
		Name:        "sts3215",
		Number:      777,
		Protocol:    ProtocolSTS,
		Resolution:  4096,
		MaxPosition: 4095,
		BaudRates:   DefaultBaudRates,
	}

	ModelSTS3250 = Model{
		Name:        "sts3250",
		Number:      1540,
		Protocol:    ProtocolSTS,
		Resolution:  4096,
		MaxPosition: 4095,
		BaudRates:   DefaultBaudRates,
	}

	ModelSCS0009 = Model{
		Name:        "scs0009",
		Number:      9,
		Protocol:    ProtocolSCS,
		Resolution:  1024,
		MaxPosition: 1023,
		BaudRates:   DefaultBaudRates,
		Registers:   scsRegisters,
	}

	ModelSCS15 = Model{
		Name:        "scs15",
		Number:      15,
		Protocol:    ProtocolSCS,
		Resolution:  1024,
		MaxPosition: 1023,
		BaudRates:   DefaultBaudRates,
		Registers:   scsRegisters, // Same register layout
	}
)

// SCS series uses different addresses and names for some registers.
var scsRegisters = map[string]Register{
	"model_number":     {Address: 3, Size: 2, ReadOnly: true},
	"id":               {Address: 5, Size: 1},
	"baud_rate":        {Address: 6, Size: 1},
	"min_angle_limit":  {Address: 9, Size: 2},
	"max_angle_limit":  {Address: 11, Size: 2},
	"torque_enable":    {Address: 40, Size: 1},
	"goal_position":    {Address: 42, Size: 2},
	"running_time":     {Address: 44, Size: 2},
	"running_speed":    {Address: 46, Size: 2, SignBit: 15},
	"lock":             {Address: 48, Size: 1},
	"present_position": {Address: 56, Size: 2, ReadOnly: true},
	"present_velocity": {Address: 58, Size: 2, ReadOnly: true, SignBit: 15},
	"present_load":     {Address: 60, Size: 2, ReadOnly: true},
	"present_voltage":  {Address: 62, Size: 1, ReadOnly: true},
	"present_temp":     {Address: 63, Size: 1, ReadOnly: true},
	"moving":           {Address: 66, Size: 1, ReadOnly: true},
}

// modelRegistry holds all known models indexed by name and number.
var modelRegistry = struct {
	byName   map[string]*Model
	byNumber map[int]*Model
}{
	byName:   make(map[string]*Model),
	byNumber: make(map[int]*Model),
}

func init() {
	RegisterModel(&ModelSTS3215)
	RegisterModel(&ModelSTS3250)
	RegisterModel(&ModelSCS0009)
	RegisterModel(&ModelSCS15)
}

// RegisterModel adds a model to the registry.
func RegisterModel(m *Model) {
	modelRegistry.byName[m.Name] = m
	modelRegistry.byNumber[m.Number] = m
}

// GetModel returns a model by name.
func GetModel(name string) (*Model, bool) {
	m, ok := modelRegistry.byName[name]
	return m, ok
}

// GetModelByNumber returns a model by its hardware model number.
func GetModelByNumber(number int) (*Model, bool) {
	m, ok := modelRegistry.byNumber[number]
	return m, ok
}

// ListModels returns all registered model names.
func ListModels() []string {
	names := make([]string, 0, len(modelRegistry.byName))
	for name := range modelRegistry.byName {
		names = append(names, name)
	}
	return names
}

// GetRegister returns the register definition for the given name, falling
// back to the STS table when the model has no map of its own.
func (m *Model) GetRegister(name string) (Register, bool) {
	if m.Registers != nil {
		if reg, ok := m.Registers[name]; ok {
			return reg, true
		}
	}

	reg, ok := stsRegisters[name]
	return reg, ok
}

// BaudRateIndex returns the index for a baud rate, or -1 if not supported.
func (m *Model) BaudRateIndex(baudRate int) int {
	for i, rate := range m.BaudRates {
		if rate == baudRate {
			return i
		}
	}
	return -1
}
