package fleet

import (
	"errors"
	"fmt"

	"fleetnav/navgraph"
	"fleetnav/robot"
)

var (
	ErrUnknownRobot  = errors.New("unknown robot")
	ErrNoPath        = errors.New("no path")
	ErrInvalidVertex = errors.New("invalid vertex")
)

// Palette is cycled by the robot allocation counter.
var Palette = []string{
	"#FF0000", "#00FF00", "#0000FF", "#FFFF00", "#FF00FF",
	"#00FFFF", "#FF8000", "#8000FF", "#0080FF", "#FF0080",
}

// Config holds the parameters given to every new robot.
type Config struct {
	Speed   float64
	Battery float64
}

// Manager owns every robot and the per-tick lane occupancy table.
//
// Manager is not safe for concurrent use. The engine serializes commands and
// ticks through a single mutex and hands readers copies.
type Manager struct {
	graph    *navgraph.Graph
	emitter  EventEmitter
	cfg      Config
	robots   map[string]*robot.Robot
	order    []string
	count    int
	occupied map[navgraph.LaneKey]string
}

// NewManager creates an empty fleet on graph. A nil emitter discards events.
func NewManager(graph *navgraph.Graph, emitter EventEmitter, cfg Config) *Manager {
	if emitter == nil {
		emitter = nopEmitter{}
	}
	return &Manager{
		graph:    graph,
		emitter:  emitter,
		cfg:      cfg,
		robots:   make(map[string]*robot.Robot),
		occupied: make(map[navgraph.LaneKey]string),
	}
}

func (m *Manager) Graph() *navgraph.Graph { return m.graph }

// CreateRobot places a new idle robot at vertex and returns its id (R1, R2, ...).
func (m *Manager) CreateRobot(vertex int) (string, error) {
	if !m.graph.HasVertex(vertex) {
		return "", fmt.Errorf("create robot at %d: %w", vertex, ErrInvalidVertex)
	}
	m.count++
	id := fmt.Sprintf("R%d", m.count)
	r := robot.New(robot.Config{
		ID:      id,
		Color:   Palette[m.count%len(Palette)],
		Vertex:  vertex,
		Pos:     m.graph.VertexCoords(vertex),
		Speed:   m.cfg.Speed,
		Battery: m.cfg.Battery,
	})
	m.robots[id] = r
	m.order = append(m.order, id)
	m.emitter.EmitRobotCreated(id, vertex)
	return id, nil
}

// Assign routes robotID to dest. Failures are emitted as rejections and
// returned; the robot is left untouched.
func (m *Manager) Assign(robotID string, dest int) error {
	err := m.assign(robotID, dest)
	if err != nil {
		m.emitter.EmitTaskRejected(robotID, dest, err)
	}
	return err
}

func (m *Manager) assign(robotID string, dest int) error {
	r, ok := m.robots[robotID]
	if !ok {
		return fmt.Errorf("robot %s: %w", robotID, ErrUnknownRobot)
	}
	if !m.graph.HasVertex(dest) {
		return fmt.Errorf("destination %d: %w", dest, ErrInvalidVertex)
	}
	if st := r.State(); st != robot.Idle && st != robot.TaskComplete {
		return fmt.Errorf("robot %s is %s: %w", robotID, st, robot.ErrPrecondState)
	}
	path := m.graph.ShortestPath(r.Vertex(), dest)
	if len(path) == 0 {
		return fmt.Errorf("from vertex %d to %d: %w", r.Vertex(), dest, ErrNoPath)
	}
	if err := r.AssignTask(dest, path); err != nil {
		return err
	}
	m.emitter.EmitTaskAssigned(robotID, r.TaskID(), dest, path)
	if r.State() == robot.TaskComplete {
		// already at dest: no tick will report the arrival
		m.emitter.EmitRobotArrived(robotID, r.TaskID(), r.Vertex())
	}
	return nil
}

// AssignTask is Assign reduced to a success flag.
func (m *Manager) AssignTask(robotID string, dest int) bool {
	return m.Assign(robotID, dest) == nil
}

// Tick advances every robot by dt seconds.
//
// Occupancy is snapshotted once before the pass. A lane vacated by one robot
// is not visible to robots processed later in the same tick; they see it on
// the next tick.
func (m *Manager) Tick(dt float64) {
	m.rebuildOccupancy()
	for _, id := range m.order {
		r := m.robots[id]
		prevState, prevIdx, prevVertex := r.State(), r.PathIndex(), r.Vertex()
		if !r.Tick(dt, m.graph, m) {
			continue
		}
		if lane, ok := r.CurrentLane(); ok {
			m.claim(lane, id)
		}

		switch r.State() {
		case robot.TaskComplete:
			if prevState != robot.TaskComplete {
				m.emitter.EmitRobotArrived(id, r.TaskID(), r.Vertex())
			}
		case robot.Waiting:
			if prevState != robot.Waiting {
				lane, _ := r.PendingLane()
				m.emitter.EmitRobotWaiting(id, lane, m.occupied[lane])
			}
		case robot.Moving:
			if r.PathIndex() > prevIdx {
				m.emitter.EmitRobotMoved(id, prevVertex, r.Vertex())
			}
		}
	}
}

// rebuildOccupancy recomputes the table from every Moving robot. When two
// robots report the same lane the one further along keeps it; on a tie the
// earlier-created robot wins.
func (m *Manager) rebuildOccupancy() {
	clear(m.occupied)
	for _, id := range m.order {
		r := m.robots[id]
		lane, ok := r.CurrentLane()
		if !ok {
			continue
		}
		if holder, taken := m.occupied[lane]; taken && m.robots[holder].Progress() >= r.Progress() {
			continue
		}
		m.occupied[lane] = id
	}
}

// claim records id on lane unless another robot already holds it.
func (m *Manager) claim(lane navgraph.LaneKey, id string) {
	if holder, taken := m.occupied[lane]; taken && holder != id {
		return
	}
	m.occupied[lane] = id
}

// IsLaneBlocked reports whether start->end is held by a robot other than robotID.
func (m *Manager) IsLaneBlocked(start, end int, robotID string) bool {
	holder, ok := m.occupied[navgraph.LaneKey{Start: start, End: end}]
	return ok && holder != robotID
}

// Robot returns the robot with id.
func (m *Manager) Robot(id string) (*robot.Robot, bool) {
	r, ok := m.robots[id]
	return r, ok
}

// ListRobots returns the id -> robot mapping. The map is a copy; the robots are not.
func (m *Manager) ListRobots() map[string]*robot.Robot {
	out := make(map[string]*robot.Robot, len(m.robots))
	for id, r := range m.robots {
		out[id] = r
	}
	return out
}

// Robots returns every robot in creation order.
func (m *Manager) Robots() []*robot.Robot {
	out := make([]*robot.Robot, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.robots[id])
	}
	return out
}

// Statuses returns a copy of every robot's state in creation order.
func (m *Manager) Statuses() []robot.Status {
	out := make([]robot.Status, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.robots[id].Status())
	}
	return out
}

// Occupancy returns a copy of the occupied-lanes table.
func (m *Manager) Occupancy() map[navgraph.LaneKey]string {
	out := make(map[navgraph.LaneKey]string, len(m.occupied))
	for k, v := range m.occupied {
		out[k] = v
	}
	return out
}

// SetCharging puts an idle or finished robot on charge, or takes it off.
func (m *Manager) SetCharging(robotID string, on bool) error {
	r, ok := m.robots[robotID]
	if !ok {
		return fmt.Errorf("robot %s: %w", robotID, ErrUnknownRobot)
	}
	if on {
		return r.EnterCharging()
	}
	return r.StopCharging()
}
