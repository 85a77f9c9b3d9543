package store

import (
	"database/sql"
	"errors"
	"time"
)

var ErrUnknownOperator = errors.New("unknown operator")

// Operator is an account allowed to issue fleet commands over HTTP.
type Operator struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

func (db *DB) CreateOperator(username, passwordHash string) error {
	_, err := db.Exec(db.Q(`INSERT INTO operators (username, password_hash) VALUES (?, ?)`), username, passwordHash)
	return err
}

// Operator looks up an account, returning ErrUnknownOperator when none exists.
func (db *DB) Operator(username string) (*Operator, error) {
	var op Operator
	var createdAt any
	err := db.QueryRow(db.Q(`SELECT id, username, password_hash, created_at FROM operators WHERE username=?`), username).
		Scan(&op.ID, &op.Username, &op.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownOperator
	}
	if err != nil {
		return nil, err
	}
	op.CreatedAt = parseTime(createdAt)
	return &op, nil
}

func (db *DB) CountOperators() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM operators`).Scan(&n)
	return n, err
}
