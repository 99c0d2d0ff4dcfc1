package queue

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type pendingEntry struct {
	msg      Message
	consumer string
	since    time.Time
}

// Memory is an in-process Queue for single-binary runs and tests.
type Memory struct {
	mu      sync.Mutex
	seq     int
	ready   []Message
	pending map[string]*pendingEntry
	dead    []DeadLetter
	notify  chan struct{}

	// Now returns the current time; replaceable in tests.
	Now func() time.Time
}

// NewMemory creates an empty in-memory queue.
func NewMemory() *Memory {
	return &Memory{
		pending: make(map[string]*pendingEntry),
		notify:  make(chan struct{}, 1),
		Now:     time.Now,
	}
}

// Init is a no-op.
func (q *Memory) Init(context.Context) error { return nil }

// Enqueue appends a copy of data.
func (q *Memory) Enqueue(_ context.Context, data []byte) (string, error) {
	q.mu.Lock()
	q.seq++
	id := strconv.Itoa(q.seq) + "-0"
	q.ready = append(q.ready, Message{ID: id, Data: append([]byte(nil), data...)})
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return id, nil
}

// Read pops the oldest undelivered message.
func (q *Memory) Read(ctx context.Context, consumer string, block time.Duration) (*Message, error) {
	var timeout <-chan time.Time
	if block > 0 {
		timer := time.NewTimer(block)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		if msg := q.pop(consumer); msg != nil {
			return msg, nil
		}
		if timeout == nil {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout:
			return nil, nil
		case <-q.notify:
		}
	}
}

func (q *Memory) pop(consumer string) *Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ready) == 0 {
		return nil
	}
	msg := q.ready[0]
	q.ready = q.ready[1:]
	q.pending[msg.ID] = &pendingEntry{msg: msg, consumer: consumer, since: q.Now()}
	if len(q.ready) > 0 {
		select {
		case q.notify <- struct{}{}:
		default:
		}
	}
	return &msg
}

// Reclaim hands idle pending messages to consumer, oldest ID first.
func (q *Memory) Reclaim(_ context.Context, consumer string, minIdle time.Duration, count int) ([]Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.Now()
	var out []Message
	for i := 1; i <= q.seq && (count <= 0 || len(out) < count); i++ {
		p, ok := q.pending[strconv.Itoa(i)+"-0"]
		if !ok || now.Sub(p.since) < minIdle {
			continue
		}
		p.consumer = consumer
		p.since = now
		out = append(out, p.msg)
	}
	return out, nil
}

// Ack drops id from the pending list.
func (q *Memory) Ack(_ context.Context, id string) error {
	q.mu.Lock()
	delete(q.pending, id)
	q.mu.Unlock()
	return nil
}

// DeadLetter records dl.
func (q *Memory) DeadLetter(_ context.Context, dl DeadLetter) error {
	q.mu.Lock()
	q.dead = append(q.dead, dl)
	q.mu.Unlock()
	return nil
}

// DeadLetters returns a copy of the dead-letter entries.
func (q *Memory) DeadLetters() []DeadLetter {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]DeadLetter(nil), q.dead...)
}

// Pending returns the number of delivered, unacknowledged messages.
func (q *Memory) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
