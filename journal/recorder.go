package journal

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmcleod/greetd-stub/internal/uuid"
)

// Recorder writes events to a Store and mirrors them as structured log
// lines. A failing store never interrupts the caller.
type Recorder struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder creates a Recorder. A nil store records to the log only.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: logger.With("component", "journal"),
		now:    time.Now,
	}
}

// Store returns the underlying store, which may be nil.
func (r *Recorder) Store() Store {
	return r.store
}

// Record appends an event for connID.
func (r *Recorder) Record(ctx context.Context, connID string, kind Kind, state, detail string) {
	if r == nil {
		return
	}
	ev := Event{
		ID:        uuid.New(),
		ConnID:    connID,
		Kind:      kind,
		State:     state,
		Detail:    detail,
		CreatedAt: r.now().UTC(),
	}
	attrs := []slog.Attr{
		slog.String("event", string(kind)),
		slog.String("conn_id", connID),
	}
	if state != "" {
		attrs = append(attrs, slog.String("state", state))
	}
	if detail != "" {
		attrs = append(attrs, slog.String("detail", detail))
	}
	r.logger.LogAttrs(ctx, slog.LevelDebug, "journal", attrs...)

	if r.store == nil {
		return
	}
	if err := r.store.Append(ev); err != nil {
		r.logger.Warn("failed to append journal event", "event", string(kind), "error", err)
	}
}
