package stservo

import (
	"context"
	"fmt"
	"time"
)

// ServoGroup coordinates operations across multiple servos. Positional
// arguments to group methods follow the order the servos were added in,
// which is also the block order inside broadcast sync-write frames.
type ServoGroup struct {
	bus    *Bus
	servos []*Servo
	ids    []int
}

// NewServoGroup creates a new group from the given servos.
func NewServoGroup(bus *Bus, servos ...*Servo) *ServoGroup {
	ids := make([]int, len(servos))
	for i, s := range servos {
		ids[i] = s.ID()
	}
	return &ServoGroup{
		bus:    bus,
		servos: servos,
		ids:    ids,
	}
}

// NewServoGroupByIDs creates servos with the given IDs and groups them.
// All servos default to the STS3215 model.
func NewServoGroupByIDs(bus *Bus, ids ...int) *ServoGroup {
	servos := make([]*Servo, len(ids))
	for i, id := range ids {
		servos[i] = NewServo(bus, id, nil)
	}
	return NewServoGroup(bus, servos...)
}

// Servos returns the servos in this group.
func (g *ServoGroup) Servos() []*Servo {
	return g.servos
}

// IDs returns the servo IDs in this group, in group order.
func (g *ServoGroup) IDs() []int {
	return g.ids
}

// ServoByID returns the servo with the given ID, or nil if not found.
func (g *ServoGroup) ServoByID(id int) *Servo {
	for _, s := range g.servos {
		if s.ID() == id {
			return s
		}
	}
	return nil
}

// Positions reads the position of every servo in the group, in group order.
func (g *ServoGroup) Positions(ctx context.Context) ([]int, error) {
	positions := make([]int, len(g.servos))
	for i, s := range g.servos {
		pos, err := s.Position(ctx)
		if err != nil {
			return nil, fmt.Errorf("servo %d: %w", s.ID(), err)
		}
		positions[i] = pos
	}
	return positions, nil
}

// SetPositions moves every servo to its target position in one broadcast
// sync-write frame, one position per servo in group order.
func (g *ServoGroup) SetPositions(ctx context.Context, positions []int) error {
	if len(positions) != len(g.servos) {
		return fmt.Errorf("got %d positions for %d servos", len(positions), len(g.servos))
	}

	proto := g.bus.Protocol()
	blocks := make([][]byte, len(positions))
	for i, pos := range positions {
		blocks[i] = proto.EncodeWord(uint16(pos))
	}

	return g.bus.SyncWrite(ctx, RegGoalPosition.Address, 2, g.ids, blocks)
}

// SetPositionsWithSpeed moves every servo to its target position at its own
// speed, all in one broadcast frame so the moves start together.
func (g *ServoGroup) SetPositionsWithSpeed(ctx context.Context, positions, speeds []int) error {
	if len(positions) != len(g.servos) || len(speeds) != len(g.servos) {
		return fmt.Errorf("got %d positions and %d speeds for %d servos",
			len(positions), len(speeds), len(g.servos))
	}

	return g.bus.SyncWritePositions(ctx, g.ids, positions, speeds)
}

// StagePositions stages a deferred position write on every servo. Nothing
// moves until Bus.Trigger broadcasts the release — the two-phase pattern for
// updating many devices and letting them go in lockstep.
func (g *ServoGroup) StagePositions(ctx context.Context, positions []int) error {
	if len(positions) != len(g.servos) {
		return fmt.Errorf("got %d positions for %d servos", len(positions), len(g.servos))
	}

	proto := g.bus.Protocol()
	for i, s := range g.servos {
		data := proto.EncodeWord(uint16(positions[i]))
		if err := g.bus.WriteRegisters(ctx, s.ID(), RegGoalPosition.Address, data, WriteDeferred); err != nil {
			return fmt.Errorf("servo %d: %w", s.ID(), err)
		}
	}

	return nil
}

// EnableAll enables torque on all servos with one broadcast frame.
func (g *ServoGroup) EnableAll(ctx context.Context) error {
	return g.setTorqueAll(ctx, 1)
}

// DisableAll disables torque on all servos with one broadcast frame.
func (g *ServoGroup) DisableAll(ctx context.Context) error {
	return g.setTorqueAll(ctx, 0)
}

func (g *ServoGroup) setTorqueAll(ctx context.Context, value byte) error {
	blocks := make([][]byte, len(g.servos))
	for i := range g.servos {
		blocks[i] = []byte{value}
	}
	return g.bus.SyncWrite(ctx, RegTorqueEnable.Address, 1, g.ids, blocks)
}

// WaitForStop polls the moving flag until every servo in the group has
// stopped, then returns the final positions in group order.
func (g *ServoGroup) WaitForStop(ctx context.Context, timeout time.Duration) ([]int, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	deadline := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, fmt.Errorf("move timeout after %v", timeout)
		case <-ticker.C:
			allStopped := true
			for _, s := range g.servos {
				moving, err := s.Moving(ctx)
				if err != nil {
					continue
				}
				if moving {
					allStopped = false
					break
				}
			}

			if allStopped {
				return g.Positions(ctx)
			}
		}
	}
}

// MoveTo commands the positions, waits for every servo to stop, and returns
// the final positions in group order.
func (g *ServoGroup) MoveTo(ctx context.Context, positions []int, timeout time.Duration) ([]int, error) {
	if err := g.SetPositions(ctx, positions); err != nil {
		return nil, err
	}
	return g.WaitForStop(ctx, timeout)
}
