package environment

import (
	"fmt"
	"strings"

	"github.com/boristopalov/timetravel/pkg/core"
	"github.com/boristopalov/timetravel/pkg/radix"
)

var doorRadix = radix.MustNew(numDoorStates, numDoorStates, core.NumRoles)

// DoorObservation is what either role sees of the door puzzle: both doors
// are always visible.
type DoorObservation struct {
	Door0 DoorState
	Door1 DoorState
	role  core.Role
}

func NewDoorObservation(door0, door1 DoorState, role core.Role) DoorObservation {
	return DoorObservation{Door0: door0, Door1: door1, role: role}
}

func (o DoorObservation) Role() core.Role { return o.role }

// Fields is (door0, door1, role).
func (o DoorObservation) Fields() []int {
	return []int{int(o.Door0), int(o.Door1), int(o.role)}
}

func (o DoorObservation) Index() int {
	idx, err := doorRadix.Encode(o.Fields())
	if err != nil {
		panic(err)
	}
	return idx
}

func (o DoorObservation) String() string {
	return fmt.Sprintf("Observation(door0=%s, door1=%s, role=%s)", o.Door0, o.Door1, o.role)
}

// DecodeDoorObservation is the inverse of DoorObservation.Fields.
func DecodeDoorObservation(fields []int) (DoorObservation, error) {
	if _, err := doorRadix.Encode(fields); err != nil {
		return DoorObservation{}, err
	}
	return DoorObservation{
		Door0: DoorState(fields[0]),
		Door1: DoorState(fields[1]),
		role:  core.Role(fields[2]),
	}, nil
}

// DoorObservationFromIndex is the inverse of DoorObservation.Index.
func DoorObservationFromIndex(idx int) (DoorObservation, error) {
	fields, err := doorRadix.Decode(idx)
	if err != nil {
		return DoorObservation{}, err
	}
	return DecodeDoorObservation(fields)
}

// TrapSide tells which of the two trap sites holds the trap. Left is the
// cell left of the goal, Right the cell below it.
type TrapSide int

const (
	TrapSideUnknown TrapSide = iota
	TrapSideLeft
	TrapSideRight
)

const numTrapSides = 3

func (s TrapSide) String() string {
	switch s {
	case TrapSideUnknown:
		return "UNKNOWN"
	case TrapSideLeft:
		return "LEFT"
	case TrapSideRight:
		return "RIGHT"
	}
	return fmt.Sprintf("TrapSide(%d)", int(s))
}

// MazeObservation is a role's view of the maze: its own position, the cells
// around it in a fixed offset order and what it knows about the trap.
type MazeObservation struct {
	GridSize int
	X, Y     int
	Cells    []CellState
	TrapSide TrapSide
	role     core.Role
}

func (o MazeObservation) Role() core.Role { return o.role }

// MazeRadix returns the field cardinalities of a maze observation:
// (x, y, cell..., role, trap side).
func MazeRadix(gridSize, neighborhood int) radix.Radix {
	cards := make([]int, 0, neighborhood+4)
	cards = append(cards, gridSize, gridSize)
	for i := 0; i < neighborhood; i++ {
		cards = append(cards, numCellStates)
	}
	cards = append(cards, core.NumRoles, numTrapSides)
	return radix.MustNew(cards...)
}

func (o MazeObservation) Fields() []int {
	fields := make([]int, 0, len(o.Cells)+4)
	fields = append(fields, o.X, o.Y)
	for _, c := range o.Cells {
		fields = append(fields, int(c))
	}
	return append(fields, int(o.role), int(o.TrapSide))
}

func (o MazeObservation) Index() int {
	idx, err := MazeRadix(o.GridSize, len(o.Cells)).Encode(o.Fields())
	if err != nil {
		panic(err)
	}
	return idx
}

func (o MazeObservation) String() string {
	cells := make([]string, len(o.Cells))
	for i, c := range o.Cells {
		cells[i] = c.String()
	}
	return fmt.Sprintf("Observation(position=(%d, %d), cells=[%s], trap=%s, role=%s)",
		o.X, o.Y, strings.Join(cells, " "), o.TrapSide, o.role)
}

// DecodeMazeObservation is the inverse of MazeObservation.Fields.
func DecodeMazeObservation(gridSize, neighborhood int, fields []int) (MazeObservation, error) {
	if _, err := MazeRadix(gridSize, neighborhood).Encode(fields); err != nil {
		return MazeObservation{}, err
	}
	cells := make([]CellState, neighborhood)
	for i := range cells {
		cells[i] = CellState(fields[2+i])
	}
	return MazeObservation{
		GridSize: gridSize,
		X:        fields[0],
		Y:        fields[1],
		Cells:    cells,
		role:     core.Role(fields[2+neighborhood]),
		TrapSide: TrapSide(fields[3+neighborhood]),
	}, nil
}

// MazeObservationFromIndex is the inverse of MazeObservation.Index.
func MazeObservationFromIndex(gridSize, neighborhood, idx int) (MazeObservation, error) {
	fields, err := MazeRadix(gridSize, neighborhood).Decode(idx)
	if err != nil {
		return MazeObservation{}, err
	}
	return DecodeMazeObservation(gridSize, neighborhood, fields)
}
