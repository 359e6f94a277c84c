package environment

import (
	"fmt"
	"strings"

	"github.com/boristopalov/timetravel/pkg/config"
	"github.com/boristopalov/timetravel/pkg/core"
)

// Maze actions. Moves and wall placements share the direction order
// left, right, up, down.
const (
	MazeLeft core.Action = iota
	MazeRight
	MazeUp
	MazeDown
	MazeTimeTravel
	MazeDoNothing
	MazeWallLeft
	MazeWallRight
	MazeWallUp
	MazeWallDown
)

var MazeActions = core.NewActionSet(
	"LEFT",
	"RIGHT",
	"UP",
	"DOWN",
	"TIME_TRAVEL",
	"DO_NOTHING",
	"WALL_LEFT",
	"WALL_RIGHT",
	"WALL_UP",
	"WALL_DOWN",
)

type CellState int

const (
	CellGoal CellState = iota
	CellTrap
	CellWall
	CellEmpty
)

const numCellStates = 4

func (c CellState) String() string {
	switch c {
	case CellGoal:
		return "GOAL"
	case CellTrap:
		return "TRAP"
	case CellWall:
		return "WALL"
	case CellEmpty:
		return "EMPTY"
	}
	return fmt.Sprintf("CellState(%d)", int(c))
}

type Pos struct {
	X, Y int
}

func (p Pos) Add(d Pos) Pos {
	return Pos{p.X + d.X, p.Y + d.Y}
}

func manhattan(a, b Pos) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// directions in action order: left, right, up, down
var directions = [4]Pos{{-1, 0}, {1, 0}, {0, 1}, {0, -1}}

func moveDir(a core.Action) (Pos, bool) {
	if a >= MazeLeft && a <= MazeDown {
		return directions[a-MazeLeft], true
	}
	return Pos{}, false
}

func wallDir(a core.Action) (Pos, bool) {
	if a >= MazeWallLeft && a <= MazeWallDown {
		return directions[a-MazeWallLeft], true
	}
	return Pos{}, false
}

// neighborOffsets returns the observed offsets for a 4- or 8-neighborhood.
func neighborOffsets(neighborhood int) []Pos {
	if neighborhood == 8 {
		offsets := make([]Pos, 0, 8)
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				if dx == 0 && dy == 0 {
					continue
				}
				offsets = append(offsets, Pos{dx, dy})
			}
		}
		return offsets
	}
	return directions[:]
}

// mazeWorld is the world state of the maze. The grid is size x size with a
// solid block of walls inside, leaving a one-cell corridor around the edge.
// Everything outside the grid reads as wall.
type mazeWorld struct {
	size  int
	cells []CellState

	// hidden ground truth
	trap     Pos
	trapSide TrapSide

	t           int
	timeline    core.Timeline
	primary     Pos
	traveler    Pos
	hasTraveler bool
}

func (w *mazeWorld) inBounds(p Pos) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < w.size && p.Y < w.size
}

func (w *mazeWorld) cell(p Pos) CellState {
	if !w.inBounds(p) {
		return CellWall
	}
	return w.cells[p.Y*w.size+p.X]
}

func (w *mazeWorld) setCell(p Pos, c CellState) {
	w.cells[p.Y*w.size+p.X] = c
}

func (w *mazeWorld) goal() Pos {
	return Pos{w.size - 1, w.size - 1}
}

func (w *mazeWorld) trapSite(side TrapSide) Pos {
	if side == TrapSideLeft {
		return Pos{w.size - 2, w.size - 1}
	}
	return Pos{w.size - 1, w.size - 2}
}

func primarySpawn() Pos {
	return Pos{0, 0}
}

func (w *mazeWorld) travelerSpawn() Pos {
	return Pos{w.size - 1, 0}
}

func (w *mazeWorld) position(role core.Role) Pos {
	if role == core.RoleTraveler {
		return w.traveler
	}
	return w.primary
}

func (w *mazeWorld) occupied(p Pos) bool {
	return p == w.primary || (w.hasTraveler && p == w.traveler)
}

// placeWall turns an empty, unoccupied cell into a wall and is a no-op
// otherwise.
func (w *mazeWorld) placeWall(p Pos) {
	if w.inBounds(p) && w.cell(p) == CellEmpty && !w.occupied(p) {
		w.setCell(p, CellWall)
	}
}

// initialize lays out the static maze and puts agents on their spawn points.
// The trap side is redrawn only when preserveGroundTruth is false.
func (w *mazeWorld) initialize(preserveGroundTruth bool, timeline core.Timeline, draw func() int) {
	n := w.size
	w.cells = make([]CellState, n*n)
	for i := range w.cells {
		w.cells[i] = CellEmpty
	}
	for x := 1; x < n-1; x++ {
		for y := 1; y < n-1; y++ {
			w.setCell(Pos{x, y}, CellWall)
		}
	}
	w.setCell(w.goal(), CellGoal)

	if !preserveGroundTruth {
		w.trapSide = TrapSideLeft
		if draw() == 1 {
			w.trapSide = TrapSideRight
		}
	}
	w.trap = w.trapSite(w.trapSide)
	w.setCell(w.trap, CellTrap)

	w.t = 0
	w.timeline = timeline
	w.primary = primarySpawn()
	w.hasTraveler = timeline == core.TimelineBranched
	if w.hasTraveler {
		w.traveler = w.travelerSpawn()
	}
}

// MazeEnvironment is the grid maze. The primary walks from the bottom-left
// corner to the goal in the top-right corner, past a trap on one of the two
// approaches. From the goal it may travel back; in the BRANCHED timeline a
// traveler can wall off the trapped approach for its past self but must
// never come within one cell of it.
type MazeEnvironment struct {
	cfg   config.MazeConfig
	ep    episode
	world *mazeWorld

	// trapKnown survives branching: knowledge belongs to the role, not the
	// timeline.
	trapKnown [core.NumRoles]bool
}

func NewMazeEnvironment(cfg config.MazeConfig) (*MazeEnvironment, error) {
	if cfg.GridSize < 3 {
		return nil, fmt.Errorf("grid size %d too small", cfg.GridSize)
	}
	if cfg.Neighborhood != 4 && cfg.Neighborhood != 8 {
		return nil, fmt.Errorf("neighborhood must be 4 or 8, got %d", cfg.Neighborhood)
	}
	return &MazeEnvironment{
		cfg: cfg,
		ep:  newEpisode(),
	}, nil
}

func (e *MazeEnvironment) Spec() core.Spec {
	return core.Spec{
		Name:    "maze",
		Actions: MazeActions,
		Radix:   MazeRadix(e.cfg.GridSize, e.cfg.Neighborhood),
	}
}

func (e *MazeEnvironment) Timeline() core.Timeline {
	if e.world == nil {
		return core.TimelineOriginal
	}
	return e.world.timeline
}

// Reset starts an ORIGINAL episode with a new trap position, or restarts the
// current one in the BRANCHED timeline keeping the trap and what each role
// knows about it.
func (e *MazeEnvironment) Reset(opts core.ResetOptions) (core.ObservationPair, error) {
	if !opts.OriginalTimeline && e.world == nil {
		return core.ObservationPair{}, fmt.Errorf("branched reset: %w", core.ErrNotReset)
	}
	e.ep.begin(opts)
	timeline := core.TimelineBranched
	if opts.OriginalTimeline {
		timeline = core.TimelineOriginal
		e.world = &mazeWorld{size: e.cfg.GridSize}
		e.trapKnown = [core.NumRoles]bool{}
	}
	e.world.initialize(!opts.OriginalTimeline, timeline, func() int {
		return e.ep.rng.Intn(2)
	})
	e.noteTrap()
	return e.observe(), nil
}

func (e *MazeEnvironment) Step(a core.JointAction) (core.StepResult, error) {
	if err := e.ep.checkRunning(); err != nil {
		return core.StepResult{}, err
	}
	if err := checkKnown(MazeActions, a); err != nil {
		return core.StepResult{}, err
	}

	w := e.world
	if !isLegal(e.LegalActions(core.RolePrimary), a.Primary) ||
		!isLegal(e.LegalActions(core.RoleTraveler), a.Traveler) {
		return e.ep.illegal(e.observe(), core.Info{T: w.t, Timeline: w.timeline}, e.cfg.IllegalPenalty), nil
	}

	w.t++
	res := core.StepResult{Reward: e.cfg.TimeCost}
	e.ep.accrue(w.timeline, e.cfg.TimeCost)

	// primary
	startedOnGoal := w.cell(w.primary) == CellGoal
	moved := false
	if d, ok := moveDir(a.Primary); ok {
		if to := w.primary.Add(d); w.cell(to) != CellWall {
			w.primary = to
			moved = true
		}
	}
	if d, ok := wallDir(a.Primary); ok {
		w.placeWall(w.primary.Add(d))
	}

	switch {
	case a.Primary == MazeTimeTravel:
		res.Reward += e.ep.undo()
		e.world = branchMaze(w)
		w = e.world
		res.Info.Outcome = core.OutcomeBranched
	case a.Primary == MazeDoNothing && startedOnGoal:
		res.Terminated = true
		res.Info.Outcome = core.OutcomeStopped
	}

	// traveler movement
	if w.hasTraveler {
		if d, ok := moveDir(a.Traveler); ok {
			if to := w.traveler.Add(d); w.cell(to) != CellWall {
				w.traveler = to
			}
		}
	}

	if !res.Terminated && w.hasTraveler && manhattan(w.primary, w.traveler) <= 1 {
		res.Reward += e.cfg.ProximityPenalty
		res.Terminated = true
		res.Info.Outcome = core.OutcomeProximity
	}

	if !res.Terminated {
		if d, ok := wallDir(a.Traveler); ok && w.hasTraveler {
			w.placeWall(w.traveler.Add(d))
		}

		if moved {
			switch w.cell(w.primary) {
			case CellGoal:
				res.Reward += e.cfg.GoalReward
				res.Info.Outcome = core.OutcomeGoalReached
				if w.timeline == core.TimelineBranched {
					res.Terminated = true
					res.Info.Outcome = core.OutcomeGoal
				} else {
					e.ep.grantGoal(w.timeline, e.cfg.GoalReward)
				}
			case CellTrap:
				res.Reward += e.cfg.TrapPenalty
				res.Terminated = true
				res.Info.Outcome = core.OutcomeTrap
			}
		}
	}

	if !res.Terminated && w.t >= e.cfg.MaxEpisodeLen {
		res.Truncated = true
		res.Info.Outcome = core.OutcomeTimeLimit
	}
	if res.Done() {
		e.ep.finish()
	}

	e.noteTrap()
	res.Info.T = w.t
	res.Info.Timeline = w.timeline
	res.Observations = e.observe()
	return res, nil
}

func (e *MazeEnvironment) LegalActions(role core.Role) []core.Action {
	if e.world == nil {
		return nil
	}
	return mazeLegalActions(e.world, role)
}

// noteTrap marks the trap as known for every present role that has it in
// its neighborhood.
func (e *MazeEnvironment) noteTrap() {
	w := e.world
	for role := core.RolePrimary; role <= core.RoleTraveler; role++ {
		if role == core.RoleTraveler && !w.hasTraveler {
			continue
		}
		pos := w.position(role)
		for _, off := range neighborOffsets(e.cfg.Neighborhood) {
			if pos.Add(off) == w.trap {
				e.trapKnown[role] = true
			}
		}
	}
}

func (e *MazeEnvironment) observe() core.ObservationPair {
	pair := core.ObservationPair{Primary: e.observeRole(core.RolePrimary)}
	if e.world.hasTraveler {
		pair.Traveler = e.observeRole(core.RoleTraveler)
	}
	return pair
}

func (e *MazeEnvironment) observeRole(role core.Role) MazeObservation {
	w := e.world
	pos := w.position(role)
	offsets := neighborOffsets(e.cfg.Neighborhood)
	obs := MazeObservation{
		GridSize: w.size,
		X:        pos.X,
		Y:        pos.Y,
		Cells:    make([]CellState, len(offsets)),
		role:     role,
	}
	for i, off := range offsets {
		c := w.cell(pos.Add(off))
		if e.cfg.TrapMemory && c == CellTrap {
			c = CellEmpty
		}
		obs.Cells[i] = c
	}
	if e.cfg.TrapMemory && e.trapKnown[role] {
		obs.TrapSide = w.trapSide
	}
	return obs
}

func (e *MazeEnvironment) Render() string {
	if e.world == nil {
		return "(not reset)\n"
	}
	w := e.world
	var b strings.Builder
	b.WriteString(strings.Repeat("-", 30) + "\n")
	fmt.Fprintf(&b, "t = %d\n", w.t)
	fmt.Fprintf(&b, "timeline: %s\n", w.timeline)
	for y := w.size - 1; y >= 0; y-- {
		for x := 0; x < w.size; x++ {
			p := Pos{x, y}
			display := "."
			switch w.cell(p) {
			case CellWall:
				display = "#"
			case CellGoal:
				display = "G"
			case CellTrap:
				display = "X"
			}
			if w.hasTraveler && p == w.traveler {
				display = "t"
			}
			if p == w.primary {
				display = "p"
			}
			b.WriteString(display)
			if x < w.size-1 {
				b.WriteString(" ")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// TrapSide reveals the hidden ground truth of the current episode.
func (e *MazeEnvironment) TrapSide() TrapSide {
	if e.world == nil {
		return TrapSideUnknown
	}
	return e.world.trapSide
}
