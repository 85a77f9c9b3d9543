package store

import (
	"encoding/json"
	"time"
)

const (
	TaskActive    = "active"
	TaskCompleted = "completed"
)

// Task is the history record of one navigation task.
type Task struct {
	ID          int64      `json:"id"`
	TaskID      string     `json:"task_id"`
	RobotID     string     `json:"robot_id"`
	Origin      int        `json:"origin"`
	Destination int        `json:"destination"`
	PathJSON    string     `json:"-"`
	Status      string     `json:"status"`
	AssignedAt  time.Time  `json:"assigned_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Path decodes the stored vertex path.
func (t *Task) Path() []int {
	var p []int
	json.Unmarshal([]byte(t.PathJSON), &p)
	return p
}

func (db *DB) CreateTask(t *Task) error {
	if t.PathJSON == "" {
		t.PathJSON = "[]"
	}
	if t.Status == "" {
		t.Status = TaskActive
	}
	var id int64
	err := db.QueryRow(db.Q(`INSERT INTO tasks (task_id, robot_id, origin, destination, path, status) VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		t.TaskID, t.RobotID, t.Origin, t.Destination, t.PathJSON, t.Status).Scan(&id)
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

func (db *DB) CompleteTask(taskID string) error {
	_, err := db.Exec(db.Q(`UPDATE tasks SET status=?, completed_at={{now}} WHERE task_id=? AND status=?`),
		TaskCompleted, taskID, TaskActive)
	return err
}

const taskColumns = `id, task_id, robot_id, origin, destination, path, status, assigned_at, completed_at`

func scanTask(scan func(dest ...any) error) (*Task, error) {
	var t Task
	var assignedAt, completedAt any
	if err := scan(&t.ID, &t.TaskID, &t.RobotID, &t.Origin, &t.Destination, &t.PathJSON, &t.Status, &assignedAt, &completedAt); err != nil {
		return nil, err
	}
	t.AssignedAt = parseTime(assignedAt)
	t.CompletedAt = parseTimePtr(completedAt)
	return &t, nil
}

func (db *DB) GetTask(taskID string) (*Task, error) {
	row := db.QueryRow(db.Q(`SELECT `+taskColumns+` FROM tasks WHERE task_id=?`), taskID)
	return scanTask(row.Scan)
}

// ListTasks returns the newest tasks first.
func (db *DB) ListTasks(limit int) ([]*Task, error) {
	rows, err := db.Query(db.Q(`SELECT `+taskColumns+` FROM tasks ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
