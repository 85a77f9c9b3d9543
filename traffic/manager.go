package traffic

import (
	"time"

	"fleetnav/navgraph"
	"fleetnav/robot"
)

const (
	DefaultLaneLease         = 5 * time.Second
	DefaultIntersectionLease = 2 * time.Second
)

// Lease is a time-bounded claim on a lane or intersection.
type Lease struct {
	RobotID string    `json:"robot_id"`
	Expires time.Time `json:"expires"`
}

// live reports whether the lease still holds at now.
func (l Lease) live(now time.Time) bool { return l.Expires.After(now) }

// Fleet is the view of the fleet the traffic manager needs.
type Fleet interface {
	Robots() []*robot.Robot
	IsLaneBlocked(start, end int, robotID string) bool
}

// EventEmitter is the interface the traffic package uses to emit events.
type EventEmitter interface {
	EmitReservationsExpired(lanes, intersections int)
	EmitRobotResumed(robotID string, lane navgraph.LaneKey)
}

type nopEmitter struct{}

func (nopEmitter) EmitReservationsExpired(int, int)          {}
func (nopEmitter) EmitRobotResumed(string, navgraph.LaneKey) {}

type Config struct {
	LaneLease         time.Duration
	IntersectionLease time.Duration
	// Clock returns the current time. It must carry a monotonic reading;
	// time.Now does.
	Clock func() time.Time
}

// Manager holds lane and intersection leases and releases waiting robots.
// Reservations are advisory; collision prevention is the fleet's occupancy
// table. Like the fleet manager it is driven from a single goroutine.
type Manager struct {
	fleet             Fleet
	emitter           EventEmitter
	now               func() time.Time
	laneLease         time.Duration
	intersectionLease time.Duration
	lanes             map[navgraph.LaneKey]Lease
	intersections     map[int]Lease
}

func NewManager(fleet Fleet, emitter EventEmitter, cfg Config) *Manager {
	if emitter == nil {
		emitter = nopEmitter{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.LaneLease <= 0 {
		cfg.LaneLease = DefaultLaneLease
	}
	if cfg.IntersectionLease <= 0 {
		cfg.IntersectionLease = DefaultIntersectionLease
	}
	return &Manager{
		fleet:             fleet,
		emitter:           emitter,
		now:               cfg.Clock,
		laneLease:         cfg.LaneLease,
		intersectionLease: cfg.IntersectionLease,
		lanes:             make(map[navgraph.LaneKey]Lease),
		intersections:     make(map[int]Lease),
	}
}

// ReserveLane grants robotID a lease on lane for d (the configured lane lease
// when d <= 0). It fails without side effects if another robot holds a live lease.
func (m *Manager) ReserveLane(lane navgraph.LaneKey, robotID string, d time.Duration) bool {
	if d <= 0 {
		d = m.laneLease
	}
	return acquire(m.lanes, lane, robotID, m.now(), d)
}

// ReserveIntersection is ReserveLane for a vertex.
func (m *Manager) ReserveIntersection(vertex int, robotID string, d time.Duration) bool {
	if d <= 0 {
		d = m.intersectionLease
	}
	return acquire(m.intersections, vertex, robotID, m.now(), d)
}

func acquire[K comparable](table map[K]Lease, key K, robotID string, now time.Time, d time.Duration) bool {
	if cur, ok := table[key]; ok && cur.live(now) && cur.RobotID != robotID {
		return false
	}
	table[key] = Lease{RobotID: robotID, Expires: now.Add(d)}
	return true
}

// CheckPathAvailability reports whether every lane and vertex along path is
// free or held by robotID.
func (m *Manager) CheckPathAvailability(path []int, robotID string) bool {
	now := m.now()
	for i, v := range path {
		if l, ok := m.intersections[v]; ok && l.live(now) && l.RobotID != robotID {
			return false
		}
		if i+1 < len(path) {
			lane := navgraph.LaneKey{Start: v, End: path[i+1]}
			if l, ok := m.lanes[lane]; ok && l.live(now) && l.RobotID != robotID {
				return false
			}
		}
	}
	return true
}

// ClearExpiredReservations drops every lease that expired before now and
// returns how many were removed.
func (m *Manager) ClearExpiredReservations(now time.Time) int {
	lanes := purge(m.lanes, now)
	intersections := purge(m.intersections, now)
	if lanes+intersections > 0 {
		m.emitter.EmitReservationsExpired(lanes, intersections)
	}
	return lanes + intersections
}

func purge[K comparable](table map[K]Lease, now time.Time) int {
	n := 0
	for k, l := range table {
		if l.Expires.Before(now) {
			delete(table, k)
			n++
		}
	}
	return n
}

// ProcessWaitingRobots resumes every Waiting robot whose pending lane is no
// longer blocked and returns how many resumed. Calling it again is harmless.
func (m *Manager) ProcessWaitingRobots() int {
	n := 0
	for _, r := range m.fleet.Robots() {
		if r.State() != robot.Waiting {
			continue
		}
		lane, ok := r.PendingLane()
		if !ok || m.fleet.IsLaneBlocked(lane.Start, lane.End, r.ID()) {
			continue
		}
		if r.ResumeMovement() {
			m.emitter.EmitRobotResumed(r.ID(), lane)
			n++
		}
	}
	return n
}

// Update runs the once-per-tick housekeeping.
func (m *Manager) Update(now time.Time) {
	m.ClearExpiredReservations(now)
	m.ProcessWaitingRobots()
}

// Release drops every lease held by robotID.
func (m *Manager) Release(robotID string) {
	for k, l := range m.lanes {
		if l.RobotID == robotID {
			delete(m.lanes, k)
		}
	}
	for k, l := range m.intersections {
		if l.RobotID == robotID {
			delete(m.intersections, k)
		}
	}
}

// LaneReservations returns a copy of the lane lease table.
func (m *Manager) LaneReservations() map[navgraph.LaneKey]Lease {
	out := make(map[navgraph.LaneKey]Lease, len(m.lanes))
	for k, v := range m.lanes {
		out[k] = v
	}
	return out
}

// IntersectionReservations returns a copy of the intersection lease table.
func (m *Manager) IntersectionReservations() map[int]Lease {
	out := make(map[int]Lease, len(m.intersections))
	for k, v := range m.intersections {
		out[k] = v
	}
	return out
}
