package environment

import (
	"github.com/boristopalov/timetravel/pkg/core"
)

// Legal actions are returned in ascending id order and are never empty: an
// absent traveler has ActionAbsent, every present agent has its no-op.

func doorLegalActions(w *doorWorld, role core.Role) []core.Action {
	if role == core.RoleTraveler {
		if w.timeline == core.TimelineOriginal {
			return []core.Action{core.ActionAbsent}
		}
		if w.t == 0 {
			return []core.Action{DoorLock0, DoorLock1, DoorDoNothing}
		}
		return []core.Action{DoorDoNothing}
	}

	switch w.t {
	case 0:
		return []core.Action{DoorDoNothing}
	case 1:
		legal := make([]core.Action, 0, 3)
		if w.doors[0].state != DoorLocked {
			legal = append(legal, DoorOpen0)
		}
		if w.doors[1].state != DoorLocked {
			legal = append(legal, DoorOpen1)
		}
		return append(legal, DoorDoNothing)
	}
	if w.timeline == core.TimelineOriginal {
		return []core.Action{DoorTimeTravel, DoorDoNothing}
	}
	return []core.Action{DoorDoNothing}
}

func mazeLegalActions(w *mazeWorld, role core.Role) []core.Action {
	if role == core.RoleTraveler && !w.hasTraveler {
		return []core.Action{core.ActionAbsent}
	}

	pos := w.position(role)
	if role == core.RolePrimary && w.cell(pos) == CellGoal {
		if w.timeline == core.TimelineOriginal {
			return []core.Action{MazeTimeTravel, MazeDoNothing}
		}
		return []core.Action{MazeDoNothing}
	}

	legal := make([]core.Action, 0, MazeActions.Len())
	for i, d := range directions {
		if w.cell(pos.Add(d)) != CellWall {
			legal = append(legal, MazeLeft+core.Action(i))
		}
	}
	legal = append(legal, MazeDoNothing)
	for i, d := range directions {
		target := pos.Add(d)
		if w.inBounds(target) && w.cell(target) == CellEmpty && !w.occupied(target) {
			legal = append(legal, MazeWallLeft+core.Action(i))
		}
	}
	return legal
}
