// Package eventlog delivers domain event notifications to slow sinks (files,
// databases, the messaging outbox) without ever blocking the caller.
package eventlog

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

type Kind string

const (
	KindInfo                Kind = "info"
	KindRobotCreated        Kind = "robot_created"
	KindTaskAssigned        Kind = "task_assigned"
	KindTaskRejected        Kind = "task_rejected"
	KindRobotMoved          Kind = "robot_moved"
	KindRobotWaiting        Kind = "robot_waiting"
	KindRobotResumed        Kind = "robot_resumed"
	KindRobotArrived        Kind = "robot_arrived"
	KindReservationsExpired Kind = "reservations_expired"
)

// Entry is one logged event. Vertex is the destination for task events and
// the reached vertex for movement events.
type Entry struct {
	Time    time.Time `json:"time"`
	Kind    Kind      `json:"kind"`
	RobotID string    `json:"robot_id,omitempty"`
	TaskID  string    `json:"task_id,omitempty"`
	Vertex  int       `json:"vertex"`
	Path    []int     `json:"path,omitempty"`
	Message string    `json:"message"`
}

// Sink receives batches of entries from the logger's worker goroutine.
type Sink interface {
	WriteEntries(entries []Entry) error
}

type LogFunc func(format string, args ...any)

type Config struct {
	QueueSize     int
	FlushSize     int
	FlushInterval time.Duration
	LogFunc       LogFunc
}

// Logger queues entries and writes them to every sink in batches, flushing
// when FlushSize entries are pending or every FlushInterval.
type Logger struct {
	ch            chan Entry
	sinks         []Sink
	flushSize     int
	flushInterval time.Duration
	logFn         LogFunc
	dropped       atomic.Int64
	// mu orders enqueues against Close so nothing lands after the final drain.
	mu     sync.RWMutex
	closed bool
	quit   chan struct{}
	done   chan struct{}
}

// New starts a logger writing to sinks. Call Close to flush and stop it.
func New(cfg Config, sinks ...Sink) *Logger {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.FlushSize <= 0 {
		cfg.FlushSize = 50
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.LogFunc == nil {
		cfg.LogFunc = log.Printf
	}
	l := &Logger{
		ch:            make(chan Entry, cfg.QueueSize),
		sinks:         sinks,
		flushSize:     cfg.FlushSize,
		flushInterval: cfg.FlushInterval,
		logFn:         cfg.LogFunc,
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go l.run()
	return l
}

// LogEvent records a plain message. It never blocks and never fails.
func (l *Logger) LogEvent(message string) {
	l.Log(Entry{Kind: KindInfo, Message: message})
}

// Log enqueues e. When the queue is full or the logger is closed the entry
// is dropped and counted.
func (l *Logger) Log(e Entry) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		l.dropped.Add(1)
		return
	}
	select {
	case l.ch <- e:
	default:
		l.dropped.Add(1)
	}
}

// Dropped is the number of entries discarded so far.
func (l *Logger) Dropped() int64 { return l.dropped.Load() }

// Close flushes queued entries and stops the worker.
func (l *Logger) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.quit)
	}
	l.mu.Unlock()
	<-l.done
}

func (l *Logger) run() {
	defer close(l.done)
	ticker := time.NewTicker(l.flushInterval)
	defer ticker.Stop()

	var buf []Entry
	for {
		select {
		case e := <-l.ch:
			buf = append(buf, e)
			if len(buf) >= l.flushSize {
				l.flush(buf)
				buf = nil
			}
		case <-ticker.C:
			if len(buf) > 0 {
				l.flush(buf)
				buf = nil
			}
		case <-l.quit:
			for {
				select {
				case e := <-l.ch:
					buf = append(buf, e)
					if len(buf) >= l.flushSize {
						l.flush(buf)
						buf = nil
					}
				default:
					if len(buf) > 0 {
						l.flush(buf)
					}
					return
				}
			}
		}
	}
}

func (l *Logger) flush(entries []Entry) {
	for _, s := range l.sinks {
		if err := s.WriteEntries(entries); err != nil {
			l.logFn("eventlog: sink %T: %v", s, err)
		}
	}
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(entries []Entry) error

func (f SinkFunc) WriteEntries(entries []Entry) error { return f(entries) }
