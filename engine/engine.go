package engine

import (
	"log"
	"sort"
	"sync"
	"time"

	"fleetnav/config"
	"fleetnav/eventlog"
	"fleetnav/fleet"
	"fleetnav/navgraph"
	"fleetnav/robot"
	"fleetnav/traffic"
)

type LogFunc func(format string, args ...any)

type Config struct {
	AppConfig *config.Config
	Graph     *navgraph.Graph
	EventLog  *eventlog.Logger
	LogFunc   LogFunc
	// Clock defaults to time.Now. Lease expiry and tick dt are measured
	// against it.
	Clock func() time.Time
}

// Engine is the single coordinator of the simulation. Commands and ticks go
// through one mutex; readers get copies from Snapshot.
type Engine struct {
	cfg      *config.Config
	graph    *navgraph.Graph
	fleet    *fleet.Manager
	traffic  *traffic.Manager
	eventLog *eventlog.Logger
	Events   *EventBus
	logFn    LogFunc
	now      func() time.Time

	mu       sync.Mutex
	ticks    uint64
	expired  int
	lastTick time.Time

	stopChan chan struct{}
	done     chan struct{}
	running  bool
}

func New(c Config) *Engine {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = log.Printf
	}
	now := c.Clock
	if now == nil {
		now = time.Now
	}
	cfg := c.AppConfig
	if cfg == nil {
		cfg = config.Defaults()
	}

	e := &Engine{
		cfg:      cfg,
		graph:    c.Graph,
		eventLog: c.EventLog,
		Events:   NewEventBus(now),
		logFn:    logFn,
		now:      now,
	}
	e.fleet = fleet.NewManager(c.Graph, &fleetEmitter{bus: e.Events}, fleet.Config{
		Speed:   cfg.Sim.RobotSpeed,
		Battery: cfg.Sim.InitialBattery,
	})
	e.traffic = traffic.NewManager(e.fleet, &trafficEmitter{bus: e.Events}, traffic.Config{
		LaneLease:         cfg.Sim.LaneLease,
		IntersectionLease: cfg.Sim.IntersectionLease,
		Clock:             now,
	})
	e.wireEventHandlers()
	return e
}

// Start runs the tick loop at sim.tick_interval until Stop.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopChan = make(chan struct{})
	e.done = make(chan struct{})
	e.lastTick = e.now()
	e.mu.Unlock()

	go e.tickLoop()
	e.logFn("engine: started (tick %s, %d vertices, %d lanes)",
		e.cfg.Sim.TickInterval, e.graph.NumVertices(), len(e.graph.Lanes()))
}

func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopChan)
	done := e.done
	e.mu.Unlock()

	<-done
	e.logFn("engine: stopped after %d ticks", e.Ticks())
}

func (e *Engine) tickLoop() {
	defer close(e.done)
	interval := e.cfg.Sim.TickInterval
	if interval <= 0 {
		interval = 33 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			now := e.now()
			e.mu.Lock()
			dt := now.Sub(e.lastTick).Seconds()
			e.lastTick = now
			e.step(dt, now)
			e.mu.Unlock()
		}
	}
}

// Step advances the simulation by dt seconds: robots first, then lease
// expiry and release of waiting robots.
func (e *Engine) Step(dt float64, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.step(dt, now)
}

func (e *Engine) step(dt float64, now time.Time) {
	e.fleet.Tick(dt)
	e.traffic.Update(now)
	e.ticks++
}

// CreateRobot places a new robot at vertex.
func (e *Engine) CreateRobot(vertex int) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fleet.CreateRobot(vertex)
}

// AssignTask routes robotID to dest. The reservation table is consulted
// for the new path but never refuses it.
func (e *Engine) AssignTask(robotID string, dest int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.fleet.Assign(robotID, dest); err != nil {
		return err
	}
	r, _ := e.fleet.Robot(robotID)
	if !e.traffic.CheckPathAvailability(r.Path(), robotID) {
		e.logFn("engine: robot %s path %v crosses reservations held by other robots", robotID, r.Path())
	}
	return nil
}

// SetCharging puts a robot on or off charge.
func (e *Engine) SetCharging(robotID string, on bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.fleet.SetCharging(robotID, on); err != nil {
		return err
	}
	r, _ := e.fleet.Robot(robotID)
	e.record(eventlog.Entry{Kind: eventlog.KindInfo, RobotID: robotID, Vertex: r.Vertex(), Message: r.StatusText()})
	return nil
}

// Robot returns a copy of one robot's state.
func (e *Engine) Robot(id string) (robot.Status, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.fleet.Robot(id)
	if !ok {
		return robot.Status{}, false
	}
	return r.Status(), true
}

// ShortestPath is exposed for read-only route previews.
func (e *Engine) ShortestPath(from, to int) []int { return e.graph.ShortestPath(from, to) }

func (e *Engine) Graph() *navgraph.Graph    { return e.graph }
func (e *Engine) AppConfig() *config.Config { return e.cfg }

func (e *Engine) Ticks() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ticks
}

// LaneHolder is one row of the occupancy table.
type LaneHolder struct {
	Start   int    `json:"start"`
	End     int    `json:"end"`
	RobotID string `json:"robot_id"`
}

type LaneReservation struct {
	Start   int       `json:"start"`
	End     int       `json:"end"`
	RobotID string    `json:"robot_id"`
	Expires time.Time `json:"expires"`
}

type IntersectionReservation struct {
	Vertex  int       `json:"vertex"`
	RobotID string    `json:"robot_id"`
	Expires time.Time `json:"expires"`
}

// Snapshot is a consistent copy of the simulation taken between ticks.
type Snapshot struct {
	Tick            uint64                    `json:"tick"`
	Time            time.Time                 `json:"time"`
	Robots          []robot.Status            `json:"robots"`
	Occupancy       []LaneHolder              `json:"occupancy"`
	LaneLeases      []LaneReservation         `json:"lane_reservations"`
	VertexLeases    []IntersectionReservation `json:"intersection_reservations"`
	ExpiredLeases   int                       `json:"expired_leases"`
	DroppedLogLines int64                     `json:"dropped_log_lines"`
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		Tick:          e.ticks,
		Time:          e.now(),
		Robots:        e.fleet.Statuses(),
		Occupancy:     []LaneHolder{},
		LaneLeases:    []LaneReservation{},
		VertexLeases:  []IntersectionReservation{},
		ExpiredLeases: e.expired,
	}
	for k, id := range e.fleet.Occupancy() {
		s.Occupancy = append(s.Occupancy, LaneHolder{Start: k.Start, End: k.End, RobotID: id})
	}
	sort.Slice(s.Occupancy, func(i, j int) bool {
		return laneLess(s.Occupancy[i].Start, s.Occupancy[i].End, s.Occupancy[j].Start, s.Occupancy[j].End)
	})
	for k, l := range e.traffic.LaneReservations() {
		s.LaneLeases = append(s.LaneLeases, LaneReservation{Start: k.Start, End: k.End, RobotID: l.RobotID, Expires: l.Expires})
	}
	sort.Slice(s.LaneLeases, func(i, j int) bool {
		return laneLess(s.LaneLeases[i].Start, s.LaneLeases[i].End, s.LaneLeases[j].Start, s.LaneLeases[j].End)
	})
	for v, l := range e.traffic.IntersectionReservations() {
		s.VertexLeases = append(s.VertexLeases, IntersectionReservation{Vertex: v, RobotID: l.RobotID, Expires: l.Expires})
	}
	sort.Slice(s.VertexLeases, func(i, j int) bool { return s.VertexLeases[i].Vertex < s.VertexLeases[j].Vertex })
	if e.eventLog != nil {
		s.DroppedLogLines = e.eventLog.Dropped()
	}
	return s
}

func laneLess(s1, e1, s2, e2 int) bool {
	if s1 != s2 {
		return s1 < s2
	}
	return e1 < e2
}

// record hands an entry to the event logger, if there is one.
func (e *Engine) record(entry eventlog.Entry) {
	if e.eventLog == nil {
		return
	}
	if entry.Time.IsZero() {
		entry.Time = e.now()
	}
	e.eventLog.Log(entry)
}
