package www

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"fleetnav/fleet"
	"fleetnav/navgraph"
	"fleetnav/robot"
)

func (h *Handlers) apiHealthCheck(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Snapshot()
	status := "ok"
	checks := make(map[string]bool, len(h.checks))
	for _, c := range h.checks {
		checks[c.Name] = c.OK()
		if !checks[c.Name] {
			status = "degraded"
		}
	}
	h.jsonOK(w, map[string]any{
		"status":            status,
		"checks":            checks,
		"tick":              snap.Tick,
		"robots":            len(snap.Robots),
		"sse_clients":       h.eventHub.ClientCount(),
		"dropped_log_lines": snap.DroppedLogLines,
	})
}

func (h *Handlers) apiGraph(w http.ResponseWriter, r *http.Request) {
	g := h.engine.Graph()
	h.jsonOK(w, map[string]any{
		"level":    g.Level(),
		"vertices": g.Vertices(),
		"lanes":    g.Lanes(),
	})
}

func (h *Handlers) apiGraphPath(w http.ResponseWriter, r *http.Request) {
	from, err1 := strconv.Atoi(r.URL.Query().Get("from"))
	to, err2 := strconv.Atoi(r.URL.Query().Get("to"))
	g := h.engine.Graph()
	if err1 != nil || err2 != nil || !g.HasVertex(from) || !g.HasVertex(to) {
		h.jsonError(w, "from and to must be vertex indices", http.StatusBadRequest)
		return
	}
	path := h.engine.ShortestPath(from, to)
	if len(path) == 0 {
		h.jsonError(w, "no path", http.StatusNotFound)
		return
	}
	names := make([]string, len(path))
	for i, v := range path {
		names[i] = g.VertexName(v)
	}
	h.jsonOK(w, map[string]any{
		"path":   path,
		"names":  names,
		"length": g.PathLength(path),
	})
}

func (h *Handlers) apiChargers(w http.ResponseWriter, r *http.Request) {
	chargers := h.engine.Graph().Chargers()
	if chargers == nil {
		chargers = []navgraph.Vertex{}
	}
	h.jsonOK(w, chargers)
}

func (h *Handlers) apiListRobots(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, h.engine.Snapshot().Robots)
}

func (h *Handlers) apiGetRobot(w http.ResponseWriter, r *http.Request) {
	st, ok := h.engine.Robot(chi.URLParam(r, "id"))
	if !ok {
		h.jsonError(w, "robot not found", http.StatusNotFound)
		return
	}
	h.jsonOK(w, st)
}

func (h *Handlers) apiOccupancy(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, h.engine.Snapshot().Occupancy)
}

func (h *Handlers) apiReservations(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Snapshot()
	h.jsonOK(w, map[string]any{
		"lanes":         snap.LaneLeases,
		"intersections": snap.VertexLeases,
	})
}

func queryLimit(r *http.Request, def int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func (h *Handlers) apiListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.db.ListEventLog(r.URL.Query().Get("robot"), queryLimit(r, 100))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, events)
}

func (h *Handlers) apiListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.db.ListTasks(queryLimit(r, 100))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, tasks)
}

func (h *Handlers) apiCreateRobot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Vertex *int `json:"vertex"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Vertex == nil {
		h.jsonError(w, "invalid request", http.StatusBadRequest)
		return
	}
	id, err := h.engine.CreateRobot(*req.Vertex)
	if err != nil {
		h.jsonError(w, err.Error(), statusFor(err))
		return
	}
	st, _ := h.engine.Robot(id)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(st)
}

func (h *Handlers) apiAssignTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Destination *int `json:"destination"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Destination == nil {
		h.jsonError(w, "invalid request", http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.engine.AssignTask(id, *req.Destination); err != nil {
		h.jsonError(w, err.Error(), statusFor(err))
		return
	}
	st, _ := h.engine.Robot(id)
	h.jsonOK(w, st)
}

func (h *Handlers) apiSetCharging(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Charging bool `json:"charging"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request", http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.engine.SetCharging(id, req.Charging); err != nil {
		h.jsonError(w, err.Error(), statusFor(err))
		return
	}
	st, _ := h.engine.Robot(id)
	h.jsonOK(w, st)
}

// statusFor maps command errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, fleet.ErrUnknownRobot):
		return http.StatusNotFound
	case errors.Is(err, fleet.ErrInvalidVertex):
		return http.StatusBadRequest
	case errors.Is(err, fleet.ErrNoPath), errors.Is(err, robot.ErrPrecondState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
