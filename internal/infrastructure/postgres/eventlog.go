package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/drfirst/go-referral/internal/domain/referral"
)

// EventLog is an append-only audit trail of referral events, versioned per
// aggregate
type EventLog struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewEventLog creates a new event log
func NewEventLog(pool *pgxpool.Pool, logger *zap.Logger) *EventLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventLog{pool: pool, logger: logger}
}

// Publish appends the event at the next version of its aggregate
func (l *EventLog) Publish(ctx context.Context, event *referral.Event) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO referral_events (event_id, aggregate_id, event_type, event_data, version, source, timestamp)
		VALUES ($1, $2, $3, $4,
			COALESCE((SELECT MAX(version) FROM referral_events WHERE aggregate_id = $2), 0) + 1,
			$5, $6)
		ON CONFLICT (event_id) DO NOTHING
	`, event.ID, event.AggregateID, string(event.EventType), string(event.EventData), event.Source, event.Timestamp)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// GetEvents returns the events of one referral in version order
func (l *EventLog) GetEvents(ctx context.Context, aggregateID string) ([]*referral.Event, error) {
	return l.query(ctx, `
		SELECT event_id::text, aggregate_id, event_type, event_data, timestamp, source
		FROM referral_events
		WHERE aggregate_id = $1
		ORDER BY version ASC
	`, aggregateID)
}

func (l *EventLog) query(ctx context.Context, sql string, args ...interface{}) ([]*referral.Event, error) {
	rows, err := l.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []*referral.Event{}
	for rows.Next() {
		var (
			e       referral.Event
			typ     string
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.AggregateID, &typ, &payload, &e.Timestamp, &e.Source); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.EventType = referral.EventType(typ)
		e.EventData = payload
		events = append(events, &e)
	}
	return events, rows.Err()
}
