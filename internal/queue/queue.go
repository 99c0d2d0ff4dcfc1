// Package queue is the job intake boundary: a consumer-group stream with
// explicit acknowledgement and a dead-letter stream.
package queue

import (
	"context"
	"time"
)

// Default stream names.
const (
	DefaultStream = "ocr_jobs"
	DefaultGroup  = "ocr_workers"
	DefaultDLQ    = "ocr_dlq"
)

// Message is one delivered stream entry.
type Message struct {
	ID   string
	Data []byte
}

// DeadLetter is an entry written to the dead-letter stream.
type DeadLetter struct {
	Error       string `json:"error" yaml:"error"`
	OriginalMsg string `json:"original_msg" yaml:"original_msg"`
}

// Queue delivers each message to one consumer of the group at least once.
// A delivered message stays pending until acknowledged.
type Queue interface {
	// Init creates the stream and consumer group if they do not exist.
	Init(ctx context.Context) error

	// Enqueue appends data and returns the entry ID.
	Enqueue(ctx context.Context, data []byte) (string, error)

	// Read waits up to block for one new message. It returns nil, nil when
	// nothing arrived. A non-positive block does not wait.
	Read(ctx context.Context, consumer string, block time.Duration) (*Message, error)

	// Reclaim transfers up to count pending messages idle for at least
	// minIdle to consumer and returns them.
	Reclaim(ctx context.Context, consumer string, minIdle time.Duration, count int) ([]Message, error)

	// Ack removes id from the pending list.
	Ack(ctx context.Context, id string) error

	// DeadLetter records a message that could not be processed.
	DeadLetter(ctx context.Context, dl DeadLetter) error
}
