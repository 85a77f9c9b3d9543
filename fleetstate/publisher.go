package fleetstate

import (
	"context"
	"log"
	"time"

	"fleetnav/engine"
)

// SnapshotSource is implemented by *engine.Engine.
type SnapshotSource interface {
	Snapshot() engine.Snapshot
}

// SnapshotWriter is implemented by *RedisStore.
type SnapshotWriter interface {
	WriteSnapshot(ctx context.Context, snap engine.Snapshot) error
}

// Publisher copies the engine snapshot to a writer on a fixed interval,
// skipping intervals in which the engine did not tick.
type Publisher struct {
	src      SnapshotSource
	w        SnapshotWriter
	interval time.Duration
	lastTick uint64
	wrote    bool
	stopChan chan struct{}
	done     chan struct{}
}

func NewPublisher(src SnapshotSource, w SnapshotWriter, interval time.Duration) *Publisher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Publisher{
		src:      src,
		w:        w,
		interval: interval,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (p *Publisher) Start() {
	go p.run()
}

func (p *Publisher) Stop() {
	close(p.stopChan)
	<-p.done
}

func (p *Publisher) run() {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), p.interval)
			if _, err := p.PublishOnce(ctx); err != nil {
				log.Printf("fleetstate: publish snapshot: %v", err)
			}
			cancel()
		}
	}
}

// PublishOnce writes the current snapshot unless it was already written.
// It reports whether a write happened.
func (p *Publisher) PublishOnce(ctx context.Context) (bool, error) {
	snap := p.src.Snapshot()
	if p.wrote && snap.Tick == p.lastTick {
		return false, nil
	}
	if err := p.w.WriteSnapshot(ctx, snap); err != nil {
		return false, err
	}
	p.lastTick = snap.Tick
	p.wrote = true
	return true, nil
}
