package referral

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of domain event
type EventType string

const (
	EventReferralCreated        EventType = "ReferralCreated"
	EventReferralUpdated        EventType = "ReferralUpdated"
	EventSelectionCommitted     EventType = "SelectionCommitted"
	EventLetterGenerated        EventType = "LetterGenerated"
	EventLetterGenerationFailed EventType = "LetterGenerationFailed"
	EventLetterEdited           EventType = "LetterEdited"
	EventReferralReady          EventType = "ReferralReady"
	EventReferralCompleted      EventType = "ReferralCompleted"
	EventNotesGenerated         EventType = "NotesGenerated"
	EventStateReset             EventType = "StateReset"
)

// Event represents a domain event
type Event struct {
	ID          string          `json:"id"`
	AggregateID string          `json:"aggregate_id"`
	EventType   EventType       `json:"event_type"`
	EventData   json.RawMessage `json:"event_data"`
	Timestamp   time.Time       `json:"timestamp"`
	Source      string          `json:"source,omitempty"`
}

// NewEvent creates a new event
func NewEvent(aggregateID string, eventType EventType, data interface{}) (*Event, error) {
	eventData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:          uuid.New().String(),
		AggregateID: aggregateID,
		EventType:   eventType,
		EventData:   eventData,
		Timestamp:   time.Now().UTC(),
	}, nil
}

// ReferralCreatedData contains creation details
type ReferralCreatedData struct {
	ReferralID string `json:"referral_id"`
	Specialty  string `json:"specialty"`
	PatientID  string `json:"patient_id"`
}

// ReferralUpdatedData lists the fields a patch changed
type ReferralUpdatedData struct {
	ReferralID string   `json:"referral_id"`
	Fields     []string `json:"fields"`
	Status     Status   `json:"status"`
}

// ReferralCompletedData contains completion details
type ReferralCompletedData struct {
	ReferralID    string    `json:"referral_id"`
	SentAt        time.Time `json:"sent_at"`
	HistoryLength int       `json:"history_length"`
}

// SelectionCommittedData carries the committed selection
type SelectionCommittedData struct {
	ReferralID string   `json:"referral_id"`
	Evidence   Evidence `json:"evidence"`
}

// LetterGeneratedData describes a successful generation
type LetterGeneratedData struct {
	ReferralID  string `json:"referral_id"`
	RequestHash string `json:"request_hash"`
	Length      int    `json:"length"`
}

// LetterGenerationFailedData describes a failed generation
type LetterGenerationFailedData struct {
	ReferralID string `json:"referral_id"`
	Reason     string `json:"reason"`
}

// LetterEditedData describes a manual edit
type LetterEditedData struct {
	ReferralID string `json:"referral_id"`
	Length     int    `json:"length"`
}

// NotesGeneratedData records the visit-note flag
type NotesGeneratedData struct {
	Generated bool `json:"generated"`
}

// StateResetData accompanies a full reset
type StateResetData struct {
	ResetAt time.Time `json:"reset_at"`
}

// EventSink receives domain events after they are persisted
type EventSink interface {
	Publish(ctx context.Context, event *Event) error
}

// Sinks fans an event out to several sinks
type Sinks []EventSink

// Publish delivers the event to every sink and joins the errors
func (s Sinks) Publish(ctx context.Context, event *Event) error {
	var errs []error
	for _, sink := range s {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
