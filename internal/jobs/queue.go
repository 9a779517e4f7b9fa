package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type identifies what a job does when it fires.
type Type string

const (
	TypeAssignTechnician Type = "assign_technician"
	TypeFollowUp         Type = "follow_up"
)

// Job is a delayed side effect bound to a ticket.
type Job struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	TicketID  string    `json:"ticket_id"`
	Attempts  int       `json:"attempts"`
	RunAt     time.Time `json:"run_at"`
	LastError string    `json:"last_error,omitempty"`
}

// NewJob builds a job with a fresh identifier.
func NewJob(jobType Type, ticketID string, runAt time.Time) Job {
	return Job{
		ID:       uuid.NewString(),
		Type:     jobType,
		TicketID: ticketID,
		RunAt:    runAt.UTC(),
	}
}

// Queue persists delayed jobs. A claimed job stays invisible until it is acked, retried,
// or its visibility deadline passes and ReapExpired returns it to the delayed set.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Claim(ctx context.Context, now time.Time, limit int, visibility time.Duration) ([]Job, error)
	Ack(ctx context.Context, id string) error
	Retry(ctx context.Context, job Job, runAt time.Time) error
	ReapExpired(ctx context.Context, now time.Time) (int, error)
}

// Backoff returns the delay before the given retry attempt, doubling from base up to max.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	return delay
}
