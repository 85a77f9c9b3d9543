package messaging

import (
	"log"
	"sync"
	"time"

	"fleetnav/store"
)

// Publisher sends raw payloads; *Client implements it.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

const (
	drainBatch     = 50
	sentRetention  = 24 * time.Hour
	purgeEveryRuns = 100
)

// OutboxDrainer periodically sends pending outbox messages.
type OutboxDrainer struct {
	db       *store.DB
	pub      Publisher
	interval time.Duration
	runs     int
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewOutboxDrainer(db *store.DB, pub Publisher, interval time.Duration) *OutboxDrainer {
	return &OutboxDrainer{
		db:       db,
		pub:      pub,
		interval: interval,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (d *OutboxDrainer) Start() {
	go d.run()
}

// Stop ends the loop and waits for an in-flight batch to finish.
func (d *OutboxDrainer) Stop() {
	d.stopOnce.Do(func() { close(d.stopChan) })
	<-d.done
}

func (d *OutboxDrainer) run() {
	defer close(d.done)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopChan:
			return
		case <-ticker.C:
			d.Drain()
		}
	}
}

// Drain publishes one batch of pending messages and returns how many were sent.
func (d *OutboxDrainer) Drain() int {
	msgs, err := d.db.ListPendingOutbox(drainBatch)
	if err != nil {
		log.Printf("outbox: list pending: %v", err)
		return 0
	}
	sent := 0
	for _, msg := range msgs {
		if err := d.pub.Publish(msg.Topic, msg.Payload); err != nil {
			log.Printf("outbox: publish to %s failed: %v", msg.Topic, err)
			d.db.IncrementOutboxRetries(msg.ID)
			// Keep ordering: later messages wait for this one.
			break
		}
		if err := d.db.AckOutbox(msg.ID); err != nil {
			log.Printf("outbox: ack %d: %v", msg.ID, err)
		}
		sent++
	}

	d.runs++
	if d.runs%purgeEveryRuns == 0 {
		if n, err := d.db.PurgeSentOutbox(sentRetention); err != nil {
			log.Printf("outbox: purge: %v", err)
		} else if n > 0 {
			log.Printf("outbox: purged %d sent messages", n)
		}
	}
	return sent
}
