package store

import (
	"encoding/json"
	"fmt"
	"time"

	"fleetnav/eventlog"
)

type EventRecord struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	RobotID   string    `json:"robot_id"`
	TaskID    string    `json:"task_id"`
	Message   string    `json:"message"`
	LoggedAt  time.Time `json:"logged_at"`
	CreatedAt time.Time `json:"created_at"`
}

// InsertEventLogs writes entries in one transaction.
func (db *DB) InsertEventLogs(entries []eventlog.Entry) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.Prepare(db.Q(`INSERT INTO event_log (kind, robot_id, task_id, message, logged_at) VALUES (?, ?, ?, ?, ?)`))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range entries {
		if _, err := stmt.Exec(string(e.Kind), e.RobotID, e.TaskID, e.Message, e.Time.Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}
	return tx.Commit()
}

// ListEventLog returns the newest events first. An empty robotID lists all robots.
func (db *DB) ListEventLog(robotID string, limit int) ([]*EventRecord, error) {
	query := `SELECT id, kind, robot_id, task_id, message, logged_at, created_at FROM event_log`
	args := []any{}
	if robotID != "" {
		query += ` WHERE robot_id=?`
		args = append(args, robotID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(db.Q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*EventRecord
	for rows.Next() {
		var e EventRecord
		var loggedAt string
		var createdAt any
		if err := rows.Scan(&e.ID, &e.Kind, &e.RobotID, &e.TaskID, &e.Message, &loggedAt, &createdAt); err != nil {
			return nil, err
		}
		e.LoggedAt = parseTime(loggedAt)
		e.CreatedAt = parseTime(createdAt)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// WriteEntries makes the DB an eventlog sink. Every entry lands in event_log;
// task assignments and arrivals also maintain the tasks table.
func (db *DB) WriteEntries(entries []eventlog.Entry) error {
	if err := db.InsertEventLogs(entries); err != nil {
		return err
	}
	for _, e := range entries {
		switch e.Kind {
		case eventlog.KindTaskAssigned:
			path, _ := json.Marshal(e.Path)
			origin := e.Vertex
			if len(e.Path) > 0 {
				origin = e.Path[0]
			}
			t := &Task{TaskID: e.TaskID, RobotID: e.RobotID, Origin: origin, Destination: e.Vertex, PathJSON: string(path)}
			if err := db.CreateTask(t); err != nil {
				return fmt.Errorf("record task %s: %w", e.TaskID, err)
			}
		case eventlog.KindRobotArrived:
			if e.TaskID == "" {
				continue
			}
			if err := db.CompleteTask(e.TaskID); err != nil {
				return fmt.Errorf("complete task %s: %w", e.TaskID, err)
			}
		}
	}
	return nil
}
