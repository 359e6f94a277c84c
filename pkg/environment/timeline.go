package environment

import (
	"github.com/boristopalov/timetravel/pkg/core"
)

// The branch functions are the only place a world is re-initialized in the
// middle of an episode. The new world keeps the layout, the hidden ground
// truth and every mutation made so far (walls, locks, opened doors); only
// positions and the step counter start over.

func branchDoors(w *doorWorld) *doorWorld {
	next := *w
	next.t = 0
	next.timeline = core.TimelineBranched
	return &next
}

// branchMaze puts the primary back on its spawn cell so its past self replays
// the ORIGINAL rollout from t=0.
func branchMaze(w *mazeWorld) *mazeWorld {
	next := *w
	next.cells = make([]CellState, len(w.cells))
	copy(next.cells, w.cells)
	next.t = 0
	next.timeline = core.TimelineBranched
	next.primary = primarySpawn()
	next.traveler = w.travelerSpawn()
	next.hasTraveler = true
	return &next
}
