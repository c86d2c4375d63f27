package referral

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	// ErrNoActiveReferral is returned by operations that need a current referral
	ErrNoActiveReferral = errors.New("no active referral")
	// ErrReferralChanged is returned when a patch targets a referral that is no
	// longer the current one
	ErrReferralChanged = errors.New("referral is no longer current")
	// ErrStateUnavailable is returned by mutations while the stored state
	// cannot be read
	ErrStateUnavailable = errors.New("referral state unavailable")
)

// Patch carries the fields an update may change. Nil fields are left as-is.
type Patch struct {
	// ExpectID, when set, must match the current referral
	ExpectID string

	ReferralLetter    *string
	Evidence          *Evidence
	SpecialistNotes   *string
	LetterRequestHash *string

	// Status must move strictly forward and may not be sent.
	Status *Status
	// AdvanceTo moves status forward when behind and is ignored otherwise.
	AdvanceTo *Status

	// Event overrides the emitted event type
	Event EventType
	// EventData overrides the emitted event payload
	EventData interface{}
}

// FailureObserver is notified when the backing store rejects a read or write
type FailureObserver interface {
	ObservePersistenceFailure(op string)
}

// Option configures a Manager
type Option func(*Manager)

// WithEventSink sets where events are published
func WithEventSink(sink EventSink) Option {
	return func(m *Manager) { m.sink = sink }
}

// WithFailureObserver sets the persistence failure observer
func WithFailureObserver(o FailureObserver) Option {
	return func(m *Manager) { m.observer = o }
}

// WithSource stamps events with the producing instance
func WithSource(source string) Option {
	return func(m *Manager) { m.source = source }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager owns the referral lifecycle. The in-memory copy is authoritative;
// every mutation writes the full document through to the store.
type Manager struct {
	store    Store
	sink     EventSink
	observer FailureObserver
	logger   *zap.Logger
	tracer   trace.Tracer
	source   string
	now      func() time.Time

	mu    sync.Mutex
	state *AppState
}

// NewManager creates a referral manager over store
func NewManager(store Store, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		store:  store,
		logger: logger,
		tracer: otel.Tracer("referral-manager"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a new draft referral. When one is already active it is
// returned unchanged and nothing is written.
func (m *Manager) Create(ctx context.Context, specialty, patientID string) (*Packet, error) {
	ctx, span := m.tracer.Start(ctx, "referral.create")
	defer span.End()

	var created *Packet
	err := m.mutate(ctx, "create", func(st *AppState) ([]*Event, error) {
		if st.CurrentReferral != nil {
			m.logger.Info("referral already active, create ignored",
				zap.String("referral_id", st.CurrentReferral.ID),
			)
			created = st.CurrentReferral.Clone()
			return nil, nil
		}

		p := &Packet{
			ID:                "ref-" + uuid.New().String(),
			CreatedAt:         m.now().UTC(),
			Status:            StatusDraft,
			Specialty:         specialty,
			SelectedSOAPNotes: []string{},
			SelectedLabs:      []string{},
			SelectedImaging:   []string{},
			PatientID:         patientID,
		}
		st.CurrentReferral = p
		created = p.Clone()

		evt, err := NewEvent(p.ID, EventReferralCreated, ReferralCreatedData{
			ReferralID: p.ID,
			Specialty:  specialty,
			PatientID:  patientID,
		})
		if err != nil {
			return nil, err
		}
		return []*Event{evt}, nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("referral.id", created.ID))
	return created, nil
}

// Update applies patch to the current referral. It is a no-op returning nil
// when no referral is active.
func (m *Manager) Update(ctx context.Context, patch Patch) (*Packet, error) {
	ctx, span := m.tracer.Start(ctx, "referral.update")
	defer span.End()

	var updated *Packet
	err := m.mutate(ctx, "update", func(st *AppState) ([]*Event, error) {
		cur := st.CurrentReferral
		if patch.ExpectID != "" && (cur == nil || cur.ID != patch.ExpectID) {
			return nil, ErrReferralChanged
		}
		if cur == nil {
			return nil, nil
		}

		if patch.Status != nil {
			target := *patch.Status
			if !target.Valid() || target == StatusSent || !cur.Status.Before(target) {
				return nil, ErrInvalidTransition
			}
		}

		next := cur.Clone()
		var fields []string
		if patch.ReferralLetter != nil {
			next.ReferralLetter = *patch.ReferralLetter
			fields = append(fields, "referralLetter")
		}
		if patch.Evidence != nil {
			next.setEvidence(*patch.Evidence)
			fields = append(fields, "selectedSOAPNotes", "selectedLabs", "selectedImaging")
		}
		if patch.SpecialistNotes != nil {
			next.SpecialistNotes = *patch.SpecialistNotes
			fields = append(fields, "specialistNotes")
		}
		if patch.LetterRequestHash != nil {
			next.LetterRequestHash = *patch.LetterRequestHash
		}
		if patch.Status != nil {
			next.Status = *patch.Status
			fields = append(fields, "status")
		}
		if patch.AdvanceTo != nil && patch.AdvanceTo.Valid() &&
			*patch.AdvanceTo != StatusSent && next.Status.Before(*patch.AdvanceTo) {
			next.Status = *patch.AdvanceTo
			fields = append(fields, "status")
		}

		st.CurrentReferral = next
		updated = next.Clone()

		eventType := patch.Event
		if eventType == "" {
			eventType = EventReferralUpdated
		}
		var data interface{} = ReferralUpdatedData{
			ReferralID: next.ID,
			Fields:     fields,
			Status:     next.Status,
		}
		if patch.EventData != nil {
			data = patch.EventData
		}
		evt, err := NewEvent(next.ID, eventType, data)
		if err != nil {
			return nil, err
		}
		return []*Event{evt}, nil
	})
	if err != nil {
		span.RecordError(err)
		return m.Current(ctx), err
	}
	return updated, nil
}

// MarkReady moves an in-progress referral with a letter to ready
func (m *Manager) MarkReady(ctx context.Context) (*Packet, error) {
	cur := m.Current(ctx)
	if cur == nil {
		return nil, ErrNoActiveReferral
	}
	if cur.Status != StatusInProgress || cur.ReferralLetter == "" {
		return cur, ErrInvalidTransition
	}
	ready := StatusReady
	return m.Update(ctx, Patch{Status: &ready, Event: EventReferralReady})
}

// Complete marks the current referral sent, appends it to history and clears
// the current slot. It returns nil without side effects when nothing is active.
func (m *Manager) Complete(ctx context.Context) (*Packet, error) {
	ctx, span := m.tracer.Start(ctx, "referral.complete")
	defer span.End()

	var completed *Packet
	err := m.mutate(ctx, "complete", func(st *AppState) ([]*Event, error) {
		cur := st.CurrentReferral
		if cur == nil {
			return nil, nil
		}

		sent := cur.Clone()
		sentAt := m.now().UTC()
		sent.Status = StatusSent
		sent.SentAt = &sentAt

		st.ReferralHistory = append(st.ReferralHistory, *sent)
		st.CurrentReferral = nil
		completed = sent.Clone()

		evt, err := NewEvent(sent.ID, EventReferralCompleted, ReferralCompletedData{
			ReferralID:    sent.ID,
			SentAt:        sentAt,
			HistoryLength: len(st.ReferralHistory),
		})
		if err != nil {
			return nil, err
		}
		return []*Event{evt}, nil
	})
	if err != nil {
		return nil, err
	}
	if completed != nil {
		span.SetAttributes(attribute.String("referral.id", completed.ID))
	}
	return completed, nil
}

// SetNotesGenerated records whether visit notes have been generated
func (m *Manager) SetNotesGenerated(ctx context.Context, generated bool) error {
	return m.mutate(ctx, "notes", func(st *AppState) ([]*Event, error) {
		if st.NotesGenerated == generated {
			return nil, nil
		}
		st.NotesGenerated = generated
		evt, err := NewEvent("", EventNotesGenerated, NotesGeneratedData{Generated: generated})
		if err != nil {
			return nil, err
		}
		return []*Event{evt}, nil
	})
}

// Reset returns to the default state and removes the stored document.
// Calling it repeatedly yields the same state.
func (m *Manager) Reset(ctx context.Context) error {
	ctx, span := m.tracer.Start(ctx, "referral.reset")
	defer span.End()

	evt, err := NewEvent("", EventStateReset, StateResetData{ResetAt: m.now().UTC()})
	if err != nil {
		return err
	}
	m.ResetLocal(ctx)
	m.publish(ctx, []*Event{evt})
	return nil
}

// ResetLocal clears state without emitting an event. It applies resets
// received from other instances.
func (m *Manager) ResetLocal(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := DefaultState()
	m.state = &st
	if err := m.store.Delete(ctx); err != nil {
		m.persistFailed("delete", err)
	}
	m.logger.Info("referral state reset")
}

// Current returns a copy of the active referral, or nil
func (m *Manager) Current(ctx context.Context) *Packet {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, _ := m.load(ctx)
	return st.CurrentReferral.Clone()
}

// History returns sent referrals, oldest first
func (m *Manager) History(ctx context.Context) []Packet {
	return m.State(ctx).ReferralHistory
}

// NotesGenerated reports whether visit notes have been generated
func (m *Manager) NotesGenerated(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, _ := m.load(ctx)
	return st.NotesGenerated
}

// State returns a copy of the full state
func (m *Manager) State(ctx context.Context) AppState {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, _ := m.load(ctx)
	return st.Clone()
}

// Reload drops the cached copy so the next read comes from the store
func (m *Manager) Reload() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = nil
}

// mutate runs fn against a copy of the state. On success the copy becomes
// authoritative and is written through; events go out after the lock is released.
// Nothing is written while the stored state cannot be read.
func (m *Manager) mutate(ctx context.Context, op string, fn func(st *AppState) ([]*Event, error)) error {
	m.mu.Lock()
	cur, err := m.load(ctx)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	next := cur.Clone()
	events, err := fn(&next)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if events == nil {
		m.mu.Unlock()
		return nil
	}
	m.state = &next
	m.save(ctx, op, next)
	m.mu.Unlock()

	m.publish(ctx, events)
	return nil
}

// load returns the cached state, reading the store on a miss. A failed read
// yields defaults without caching them, so the next call retries the store.
// Unreadable documents are cached as defaults.
func (m *Manager) load(ctx context.Context) (*AppState, error) {
	if m.state != nil {
		return m.state, nil
	}

	st := DefaultState()
	data, err := m.store.Load(ctx)
	switch {
	case errors.Is(err, ErrStateNotFound):
	case err != nil:
		m.persistFailed("load", err)
		return &st, fmt.Errorf("%w: %v", ErrStateUnavailable, err)
	default:
		decoded, derr := DecodeState(data)
		if derr != nil {
			m.logger.Warn("stored state unreadable, using defaults", zap.Error(derr))
			m.persistFailed("decode", derr)
		} else {
			st = decoded
		}
	}
	m.state = &st
	return m.state, nil
}

func (m *Manager) save(ctx context.Context, op string, st AppState) {
	data, err := EncodeState(st)
	if err != nil {
		m.persistFailed(op, err)
		return
	}
	if err := m.store.Save(ctx, data); err != nil {
		m.persistFailed(op, err)
	}
}

func (m *Manager) persistFailed(op string, err error) {
	m.logger.Error("state persistence failed", zap.String("op", op), zap.Error(err))
	if m.observer != nil {
		m.observer.ObservePersistenceFailure(op)
	}
}

func (m *Manager) publish(ctx context.Context, events []*Event) {
	if m.sink == nil {
		return
	}
	for _, evt := range events {
		evt.Source = m.source
		if err := m.sink.Publish(ctx, evt); err != nil {
			m.logger.Warn("publish event",
				zap.String("event_type", string(evt.EventType)),
				zap.Error(err),
			)
		}
	}
}
