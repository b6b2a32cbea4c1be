// Package journal publishes activity events for offline processing by the
// worker. Journaling is best-effort: a full or unreachable queue must never
// fail the request that triggered the event.
package journal

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"rollcall/internal/queue"
)

// Event kinds recorded by the API.
const (
	KindUserProvisioned = "user.provisioned"
	KindUserRemoved     = "user.removed"
	KindCodeValidated   = "code.validated"
	KindCheckinRecorded = "checkin.recorded"
	KindCommentAppended = "comment.appended"
	KindExportGenerated = "export.generated"
)

// Entry is one journal event.
type Entry struct {
	Kind    string    `json:"kind"`
	ActorID string    `json:"actor_id"`
	Subject string    `json:"subject"`
	Detail  string    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
}

// Publisher writes entries to the queue.
type Publisher struct {
	q   queue.Queue
	log *slog.Logger
}

// NewPublisher creates a publisher. A nil logger falls back to the default.
func NewPublisher(q queue.Queue, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{q: q, log: log}
}

// Record publishes an entry, stamping it if the caller left At zero.
// Failures are logged and swallowed.
func (p *Publisher) Record(ctx context.Context, e Entry) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	body, err := json.Marshal(e)
	if err != nil {
		p.log.Error("journal encode failed", "kind", e.Kind, "error", err)
		return
	}
	if err := p.q.Publish(ctx, queue.Message{Kind: e.Kind, Body: body}); err != nil {
		p.log.Error("journal publish failed", "kind", e.Kind, "error", err)
	}
}
