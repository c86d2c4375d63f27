// Package workflow drives the referral control flow: evidence selection,
// letter generation, packet export and completion.
package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/drfirst/go-referral/internal/domain/record"
	"github.com/drfirst/go-referral/internal/domain/referral"
	"github.com/drfirst/go-referral/internal/domain/selection"
	"github.com/drfirst/go-referral/internal/export"
	"github.com/drfirst/go-referral/internal/letter"
	"github.com/drfirst/go-referral/internal/packet"
	"github.com/drfirst/go-referral/pkg/idempotency"
	"github.com/drfirst/go-referral/pkg/workerpool"
)

var (
	// ErrGenerationPending is returned when a letter generation is already running
	ErrGenerationPending = errors.New("letter generation already pending")
	// ErrNotesPending is returned when note generation is already running
	ErrNotesPending = errors.New("note generation already pending")
	// ErrNoRenderer is returned by PDF when no renderer is configured
	ErrNoRenderer = errors.New("pdf rendering not configured")
)

// Config holds workflow settings
type Config struct {
	PatientID   string
	Specialty   string
	RecentNotes int
	NotesDelay  time.Duration
}

// DefaultConfig returns settings for the demo chart
func DefaultConfig() Config {
	return Config{
		PatientID:   record.DemoPatientID,
		Specialty:   "Cardiology",
		RecentNotes: letter.DefaultRecentNotes,
		NotesDelay:  2 * time.Second,
	}
}

// Observer records workflow activity
type Observer interface {
	ObserveToggle(category string)
}

// Deps are the collaborators a Service needs. Renderer, Archive, Observer,
// Notifier and Logger are optional. Notifier reaches views on this instance
// only; remote resets are replayed to it and never to the outbox.
type Deps struct {
	Records   record.Store
	Manager   *referral.Manager
	Generator *letter.Generator
	Renderer  *export.PDFRenderer
	Archive   export.Archive
	Observer  Observer
	Notifier  referral.EventSink
	Logger    *zap.Logger
}

// View is the read model served to clients
type View struct {
	PatientID         string            `json:"patientId"`
	NotesGenerated    bool              `json:"notesGenerated"`
	NotesPending      bool              `json:"notesPending"`
	ReferralSuggested bool              `json:"referralSuggested"`
	Generating        bool              `json:"generating"`
	CurrentReferral   *referral.Packet  `json:"currentReferral"`
	ReferralHistory   []referral.Packet `json:"referralHistory"`
	Selection         referral.Evidence `json:"selection"`
	SelectionFrozen   bool              `json:"selectionFrozen"`
	RelevantImaging   []string          `json:"relevantImaging"`
}

// Service orchestrates the referral workflow for one patient chart
type Service struct {
	cfg       Config
	records   record.Store
	manager   *referral.Manager
	buffer    *selection.Buffer
	generator *letter.Generator
	renderer  *export.PDFRenderer
	archive   export.Archive
	observer  Observer
	notifier  referral.EventSink
	guard     *idempotency.Guard
	pool      *workerpool.Pool
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewService creates the workflow and seeds the working selection from
// persisted state
func NewService(ctx context.Context, cfg Config, deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.PatientID == "" {
		cfg.PatientID = def.PatientID
	}
	if cfg.Specialty == "" {
		cfg.Specialty = def.Specialty
	}
	if cfg.RecentNotes <= 0 {
		cfg.RecentNotes = def.RecentNotes
	}

	s := &Service{
		cfg:       cfg,
		records:   deps.Records,
		manager:   deps.Manager,
		buffer:    selection.NewBuffer(selection.Default()),
		generator: deps.Generator,
		renderer:  deps.Renderer,
		archive:   deps.Archive,
		observer:  deps.Observer,
		notifier:  deps.Notifier,
		guard:     idempotency.NewGuard(),
		logger:    logger,
		tracer:    otel.Tracer("referral-workflow"),
		now:       time.Now,
	}
	s.buffer.Load(s.manager.State(ctx))
	return s
}

// UsePool routes StartGeneration through pool
func (s *Service) UsePool(pool *workerpool.Pool) {
	s.pool = pool
}

func (s *Service) letterKey() string { return "letter:" + s.cfg.PatientID }

func (s *Service) notesKey() string { return "notes:" + s.cfg.PatientID }

// View returns the current read model
func (s *Service) View(ctx context.Context) View {
	st := s.manager.State(ctx)
	return View{
		PatientID:         s.cfg.PatientID,
		NotesGenerated:    st.NotesGenerated,
		NotesPending:      s.guard.Held(s.notesKey()),
		ReferralSuggested: s.referralSuggested(st),
		Generating:        s.guard.Held(s.letterKey()),
		CurrentReferral:   st.CurrentReferral,
		ReferralHistory:   st.ReferralHistory,
		Selection:         s.buffer.Snapshot(),
		SelectionFrozen:   s.buffer.Frozen(),
		RelevantImaging:   s.relevantImaging(st.CurrentReferral),
	}
}

// ActiveReferralID returns the current referral's ID, or "" when none is active
func (s *Service) ActiveReferralID(ctx context.Context) string {
	if cur := s.manager.Current(ctx); cur != nil {
		return cur.ID
	}
	return ""
}

// relevantImaging lists the chart's imaging IDs usually sent to the
// referral's specialty, falling back to the configured specialty
func (s *Service) relevantImaging(cur *referral.Packet) []string {
	specialty := s.cfg.Specialty
	if cur != nil && cur.Specialty != "" {
		specialty = cur.Specialty
	}
	ids := []string{}
	p, err := s.records.Patient(s.cfg.PatientID)
	if err != nil {
		return ids
	}
	for _, img := range record.RelevantImaging(p, specialty) {
		ids = append(ids, img.ID)
	}
	return ids
}

func (s *Service) referralSuggested(st referral.AppState) bool {
	if !st.NotesGenerated {
		return false
	}
	p, err := s.records.Patient(s.cfg.PatientID)
	if err != nil || !record.HasPendingReferral(p) {
		return false
	}
	for _, sent := range st.ReferralHistory {
		if sent.PatientID == s.cfg.PatientID {
			return false
		}
	}
	return true
}

// GenerateNotes simulates the upstream visit-note step and sets the notes flag
func (s *Service) GenerateNotes(ctx context.Context) error {
	if s.manager.NotesGenerated(ctx) {
		return nil
	}
	release, err := s.guard.Acquire(s.notesKey())
	if err != nil {
		return ErrNotesPending
	}
	defer release()

	if s.cfg.NotesDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.NotesDelay):
		}
	}
	return s.manager.SetNotesGenerated(ctx, true)
}

// StartReferral creates a draft referral, or returns the active one unchanged
func (s *Service) StartReferral(ctx context.Context, specialty string) (*referral.Packet, error) {
	if specialty == "" {
		specialty = s.cfg.Specialty
	}
	p, err := s.manager.Create(ctx, specialty, s.cfg.PatientID)
	if err != nil {
		return nil, err
	}
	s.buffer.Thaw()
	return p, nil
}

// Toggle flips one item in the working selection
func (s *Service) Toggle(category selection.Category, id string) (referral.Evidence, error) {
	e, err := s.buffer.Toggle(category, id)
	if err != nil {
		return e, err
	}
	if s.observer != nil {
		s.observer.ObserveToggle(string(category))
	}
	return e, nil
}

// CommitSelection writes the working selection to the active referral
func (s *Service) CommitSelection(ctx context.Context) (*referral.Packet, error) {
	cur := s.manager.Current(ctx)
	if cur == nil {
		return nil, referral.ErrNoActiveReferral
	}
	if s.buffer.Frozen() {
		return cur, selection.ErrFrozen
	}
	e := s.buffer.Snapshot()
	return s.manager.Update(ctx, referral.Patch{
		Evidence:  &e,
		Event:     referral.EventSelectionCommitted,
		EventData: referral.SelectionCommittedData{ReferralID: cur.ID, Evidence: e},
	})
}

// GenerateLetter runs one generation and waits for it
func (s *Service) GenerateLetter(ctx context.Context) (*referral.Packet, error) {
	release, err := s.guard.Acquire(s.letterKey())
	if err != nil {
		return nil, ErrGenerationPending
	}
	defer release()
	return s.generate(ctx)
}

// StartGeneration queues a generation on the worker pool and returns at once.
// A trigger while one is pending fails with ErrGenerationPending.
func (s *Service) StartGeneration(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("no worker pool configured")
	}
	release, err := s.guard.Acquire(s.letterKey())
	if err != nil {
		return ErrGenerationPending
	}

	if _, err := s.StartReferral(ctx, ""); err != nil {
		release()
		return err
	}

	task := &workerpool.Task{
		ID:      "generate-" + s.cfg.PatientID,
		Payload: release,
		Context: trace.ContextWithSpan(context.Background(), trace.SpanFromContext(ctx)),
	}
	if err := s.pool.Submit(task); err != nil {
		release()
		return fmt.Errorf("queue generation: %w", err)
	}
	return nil
}

// RunTask is the worker function for queued generations
func (s *Service) RunTask(ctx context.Context, task *workerpool.Task) *workerpool.Result {
	if release, ok := task.Payload.(func()); ok {
		defer release()
	}
	p, err := s.generate(ctx)
	return &workerpool.Result{TaskID: task.ID, Success: err == nil, Error: err, Data: p}
}

// Generating reports whether a generation is pending
func (s *Service) Generating() bool {
	return s.guard.Held(s.letterKey())
}

// generate assumes the letter guard is held. On success the letter replaces
// the previous one, the working selection is committed and a draft advances
// to in_progress. On failure the letter becomes the failure placeholder and
// status stays put.
func (s *Service) generate(ctx context.Context) (*referral.Packet, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.generate_letter",
		trace.WithAttributes(attribute.String("patient.id", s.cfg.PatientID)))
	defer span.End()

	cur, err := s.StartReferral(ctx, "")
	if err != nil {
		return nil, err
	}
	p, err := s.records.Patient(cur.PatientID)
	if err != nil {
		return nil, err
	}

	e := s.buffer.Snapshot()
	req := letter.BuildRequest(p, s.records.Provider(), cur.Specialty, e, s.cfg.RecentNotes)
	hash, err := req.Fingerprint()
	if err != nil {
		return nil, err
	}

	text, genErr := s.generator.Generate(ctx, req)
	if genErr != nil {
		span.RecordError(genErr)
		placeholder := letter.FailurePlaceholder
		updated, err := s.manager.Update(ctx, referral.Patch{
			ExpectID:       cur.ID,
			ReferralLetter: &placeholder,
			Event:          referral.EventLetterGenerationFailed,
			EventData:      referral.LetterGenerationFailedData{ReferralID: cur.ID, Reason: genErr.Error()},
		})
		if errors.Is(err, referral.ErrReferralChanged) {
			s.logger.Info("generation failure dropped, referral replaced", zap.String("referral_id", cur.ID))
			return nil, err
		}
		if err != nil {
			s.logger.Error("record generation failure", zap.Error(err))
		}
		return updated, genErr
	}

	inProgress := referral.StatusInProgress
	updated, err := s.manager.Update(ctx, referral.Patch{
		ExpectID:          cur.ID,
		ReferralLetter:    &text,
		Evidence:          &e,
		LetterRequestHash: &hash,
		AdvanceTo:         &inProgress,
		Event:             referral.EventLetterGenerated,
		EventData:         referral.LetterGeneratedData{ReferralID: cur.ID, RequestHash: hash, Length: len(text)},
	})
	if errors.Is(err, referral.ErrReferralChanged) {
		s.logger.Info("generated letter dropped, referral replaced", zap.String("referral_id", cur.ID))
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("referral letter generated",
		zap.String("referral_id", cur.ID),
		zap.String("request_hash", hash),
	)
	return updated, nil
}

// EditLetter replaces the letter verbatim without touching status
func (s *Service) EditLetter(ctx context.Context, text string) (*referral.Packet, error) {
	cur := s.manager.Current(ctx)
	if cur == nil {
		return nil, referral.ErrNoActiveReferral
	}
	return s.manager.Update(ctx, referral.Patch{
		ReferralLetter: &text,
		Event:          referral.EventLetterEdited,
		EventData:      referral.LetterEditedData{ReferralID: cur.ID, Length: len(text)},
	})
}

// UpdateDetails changes specialist notes and/or status
func (s *Service) UpdateDetails(ctx context.Context, specialistNotes *string, status *referral.Status) (*referral.Packet, error) {
	if s.manager.Current(ctx) == nil {
		return nil, referral.ErrNoActiveReferral
	}
	return s.manager.Update(ctx, referral.Patch{SpecialistNotes: specialistNotes, Status: status})
}

// MarkReady moves an in-progress referral with a letter to ready
func (s *Service) MarkReady(ctx context.Context) (*referral.Packet, error) {
	return s.manager.MarkReady(ctx)
}

// Complete sends the active referral to history, freezes the working
// selection and archives the rendered packet when an archive is configured
func (s *Service) Complete(ctx context.Context) (*referral.Packet, error) {
	cur := s.manager.Current(ctx)
	if cur == nil {
		return nil, referral.ErrNoActiveReferral
	}

	sent, err := s.manager.Complete(ctx)
	if err != nil {
		return nil, err
	}
	s.buffer.Freeze()

	if s.archive != nil && s.renderer != nil && sent != nil {
		s.archivePacket(ctx, sent)
	}
	return sent, nil
}

func (s *Service) archivePacket(ctx context.Context, sent *referral.Packet) {
	pkt, err := packet.Assemble(sent, s.records)
	if err != nil {
		s.logger.Warn("archive: assemble packet", zap.Error(err))
		return
	}
	doc := pkt.Document(s.now())
	data, err := s.renderer.Render(doc)
	if err != nil {
		s.logger.Warn("archive: render packet", zap.Error(err))
		return
	}
	key, err := s.archive.Store(ctx, sent.ID, doc.Filename, bytes.NewReader(data), "application/pdf")
	if err != nil {
		s.logger.Warn("archive: store packet", zap.String("referral_id", sent.ID), zap.Error(err))
		return
	}
	s.logger.Info("referral packet archived", zap.String("referral_id", sent.ID), zap.String("key", key))
}

// Reset clears all state and restores the default selection
func (s *Service) Reset(ctx context.Context) error {
	if err := s.manager.Reset(ctx); err != nil {
		return err
	}
	s.buffer.Reset()
	return nil
}

// ApplyRemoteReset applies a reset that originated on another instance and
// replays its event to local views
func (s *Service) ApplyRemoteReset(ctx context.Context, evt *referral.Event) {
	s.manager.ResetLocal(ctx)
	s.buffer.Reset()
	if s.notifier == nil || evt == nil {
		return
	}
	if err := s.notifier.Publish(ctx, evt); err != nil {
		s.logger.Warn("notify remote reset", zap.String("event_id", evt.ID), zap.Error(err))
	}
}

// Packet assembles the active referral
func (s *Service) Packet(ctx context.Context) (*packet.Packet, error) {
	return packet.Assemble(s.manager.Current(ctx), s.records)
}

// Document lays out the active referral for export
func (s *Service) Document(ctx context.Context) (packet.Document, error) {
	pkt, err := s.Packet(ctx)
	if err != nil {
		return packet.Document{}, err
	}
	return pkt.Document(s.now()), nil
}

// PDF renders the active referral
func (s *Service) PDF(ctx context.Context) ([]byte, string, error) {
	if s.renderer == nil {
		return nil, "", ErrNoRenderer
	}
	doc, err := s.Document(ctx)
	if err != nil {
		return nil, "", err
	}
	data, err := s.renderer.Render(doc)
	if err != nil {
		return nil, "", err
	}
	return data, doc.Filename, nil
}

// Email drafts the cover message for the active referral
func (s *Service) Email(ctx context.Context) (export.EmailDraft, error) {
	pkt, err := s.Packet(ctx)
	if err != nil {
		return export.EmailDraft{}, err
	}
	return export.ComposeEmail(pkt, packet.Filename(pkt, s.now())), nil
}
