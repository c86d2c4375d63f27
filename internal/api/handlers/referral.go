// Package handlers provides HTTP handlers for the referral API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/drfirst/go-referral/internal/api/middleware"
	"github.com/drfirst/go-referral/internal/domain/record"
	"github.com/drfirst/go-referral/internal/domain/referral"
	"github.com/drfirst/go-referral/internal/domain/selection"
	"github.com/drfirst/go-referral/internal/export"
	"github.com/drfirst/go-referral/internal/letter"
	"github.com/drfirst/go-referral/internal/packet"
	"github.com/drfirst/go-referral/internal/workflow"
)

// EventReader returns the recorded events of one referral
type EventReader interface {
	GetEvents(ctx context.Context, aggregateID string) ([]*referral.Event, error)
}

// ReferralHandler exposes the referral workflow
type ReferralHandler struct {
	svc      *workflow.Service
	hub      *workflow.Hub
	events   EventReader
	validate *validator.Validate
	logger   *zap.Logger
}

// NewReferralHandler creates a new handler. hub may be nil, which disables
// the event stream.
func NewReferralHandler(svc *workflow.Service, hub *workflow.Hub, logger *zap.Logger) *ReferralHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferralHandler{
		svc:      svc,
		hub:      hub,
		validate: validator.New(),
		logger:   logger,
	}
}

// WithEventLog enables GET /referrals/{id}/events
func (h *ReferralHandler) WithEventLog(events EventReader) *ReferralHandler {
	h.events = events
	return h
}

// Routes returns the handler routes
func (h *ReferralHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/state", h.State)
	r.Post("/notes/generate", h.GenerateNotes)
	r.Post("/reset", h.Reset)
	r.Get("/referrals/history", h.History)
	r.Get("/referrals/{id}/events", h.ReferralEvents)
	r.With(middleware.Stream(h.logger)).Get("/events", h.Events)

	r.Route("/referral", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Patch("/", h.Update)
		r.Post("/selection/toggle", h.Toggle)
		r.Put("/selection", h.CommitSelection)
		r.Post("/letter/generate", h.GenerateLetter)
		r.Put("/letter", h.EditLetter)
		r.Post("/ready", h.MarkReady)
		r.Post("/complete", h.Complete)
		r.Get("/packet", h.Packet)
		r.Get("/packet.pdf", h.PDF)
		r.Get("/packet/email", h.Email)
	})
	return r
}

// CreateRequest is the body of POST /referral
type CreateRequest struct {
	Specialty string `json:"specialty" validate:"omitempty,max=100"`
	PatientID string `json:"patientId" validate:"omitempty,max=64"`
}

// UpdateRequest is the body of PATCH /referral
type UpdateRequest struct {
	SpecialistNotes *string `json:"specialistNotes" validate:"omitempty,max=10000"`
	Status          *string `json:"status" validate:"omitempty,oneof=draft in_progress ready sent"`
}

// ToggleRequest is the body of POST /referral/selection/toggle
type ToggleRequest struct {
	Category string `json:"category" validate:"required,oneof=soapNotes labs imaging"`
	ID       string `json:"id" validate:"required,max=64"`
}

// EditLetterRequest is the body of PUT /referral/letter
type EditLetterRequest struct {
	Text *string `json:"text" validate:"required"`
}

// ResetRequest is the body of POST /reset
type ResetRequest struct {
	Confirm bool `json:"confirm" validate:"required"`
}

// ToggleResponse reports the working selection after a toggle
type ToggleResponse struct {
	Selection referral.Evidence `json:"selection"`
}

// PacketResponse is the assembled packet with its export layout
type PacketResponse struct {
	Packet   *packet.Packet  `json:"packet"`
	Document packet.Document `json:"document"`
}

// EmailResponse is the drafted cover message
type EmailResponse struct {
	export.EmailDraft
	Mailto string `json:"mailto"`
}

// State handles GET /state
func (h *ReferralHandler) State(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, http.StatusOK, h.svc.View(r.Context()))
}

// History handles GET /referrals/history
func (h *ReferralHandler) History(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, http.StatusOK, h.svc.View(r.Context()).ReferralHistory)
}

// ReferralEvents handles GET /referrals/{id}/events
func (h *ReferralHandler) ReferralEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		h.jsonError(w, "event log not configured", http.StatusNotImplemented)
		return
	}
	events, err := h.events.GetEvents(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.domainError(w, r, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, events)
}

// GenerateNotes handles POST /notes/generate
func (h *ReferralHandler) GenerateNotes(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.GenerateNotes(r.Context()); err != nil {
		h.domainError(w, r, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, h.svc.View(r.Context()))
}

// Create handles POST /referral
func (h *ReferralHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.PatientID != "" && req.PatientID != h.svc.View(r.Context()).PatientID {
		h.domainError(w, r, fmt.Errorf("%w: %s", record.ErrPatientNotFound, req.PatientID))
		return
	}

	p, err := h.svc.StartReferral(r.Context(), req.Specialty)
	if err != nil {
		h.domainError(w, r, err)
		return
	}
	h.jsonResponse(w, http.StatusCreated, p)
}

// Update handles PATCH /referral
func (h *ReferralHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !h.decode(w, r, &req) {
		return
	}
	var status *referral.Status
	if req.Status != nil {
		s := referral.Status(*req.Status)
		status = &s
	}

	p, err := h.svc.UpdateDetails(r.Context(), req.SpecialistNotes, status)
	if err != nil {
		h.domainError(w, r, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, p)
}

// Toggle handles POST /referral/selection/toggle
func (h *ReferralHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	var req ToggleRequest
	if !h.decode(w, r, &req) {
		return
	}
	e, err := h.svc.Toggle(selection.Category(req.Category), req.ID)
	if err != nil {
		h.domainError(w, r, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, ToggleResponse{Selection: e})
}

// CommitSelection handles PUT /referral/selection
func (h *ReferralHandler) CommitSelection(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.CommitSelection(r.Context())
	if err != nil {
		h.domainError(w, r, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, p)
}

// GenerateLetter handles POST /referral/letter/generate. The job is queued
// and 202 returned; ?wait=true runs it inline.
func (h *ReferralHandler) GenerateLetter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.URL.Query().Get("wait") != "true" {
		if err := h.svc.StartGeneration(ctx); err != nil {
			h.domainError(w, r, err)
			return
		}
		h.jsonResponse(w, http.StatusAccepted, h.svc.View(ctx))
		return
	}

	p, err := h.svc.GenerateLetter(ctx)
	if err != nil {
		if p != nil && p.ReferralLetter == letter.FailurePlaceholder {
			h.logger.Warn("letter generation failed",
				zap.String("referral_id", p.ID),
				zap.String("request_id", middleware.GetRequestID(ctx)),
				zap.Error(err))
			h.jsonResponse(w, http.StatusBadGateway, map[string]interface{}{
				"error":    "letter generation failed",
				"referral": p,
			})
			return
		}
		h.domainError(w, r, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, p)
}

// EditLetter handles PUT /referral/letter
func (h *ReferralHandler) EditLetter(w http.ResponseWriter, r *http.Request) {
	var req EditLetterRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.svc.EditLetter(r.Context(), *req.Text)
	if err != nil {
		h.domainError(w, r, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, p)
}

// MarkReady handles POST /referral/ready
func (h *ReferralHandler) MarkReady(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.MarkReady(r.Context())
	if err != nil {
		h.domainError(w, r, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, p)
}

// Complete handles POST /referral/complete
func (h *ReferralHandler) Complete(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Complete(r.Context())
	if err != nil {
		h.domainError(w, r, err)
		return
	}
	h.logger.Info("referral completed",
		zap.String("referral_id", p.ID),
		zap.String("request_id", middleware.GetRequestID(r.Context())),
	)
	h.jsonResponse(w, http.StatusOK, p)
}

// Packet handles GET /referral/packet
func (h *ReferralHandler) Packet(w http.ResponseWriter, r *http.Request) {
	pkt, err := h.svc.Packet(r.Context())
	if err != nil {
		h.domainError(w, r, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, PacketResponse{Packet: pkt, Document: pkt.Document(time.Now())})
}

// PDF handles GET /referral/packet.pdf
func (h *ReferralHandler) PDF(w http.ResponseWriter, r *http.Request) {
	data, filename, err := h.svc.PDF(r.Context())
	if err != nil {
		h.domainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Email handles GET /referral/packet/email
func (h *ReferralHandler) Email(w http.ResponseWriter, r *http.Request) {
	draft, err := h.svc.Email(r.Context())
	if err != nil {
		h.domainError(w, r, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, EmailResponse{EmailDraft: draft, Mailto: draft.MailtoURL()})
}

// Reset handles POST /reset
func (h *ReferralHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.Reset(r.Context()); err != nil {
		h.domainError(w, r, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, h.svc.View(r.Context()))
}

// Events handles GET /events as a server-sent event stream
func (h *ReferralHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if h.hub == nil || !ok {
		h.jsonError(w, "event stream unavailable", http.StatusNotImplemented)
		return
	}

	events, cancel := h.hub.Subscribe(32)
	defer cancel()

	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", evt.ID, evt.EventType, data)
			flusher.Flush()
		}
	}
}

// decode reads and validates a JSON body, writing 400 on failure
func (h *ReferralHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			h.jsonError(w, "invalid request body", http.StatusBadRequest)
			return false
		}
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			h.jsonError(w, fmt.Sprintf("invalid field %s: failed %s", verrs[0].Field(), verrs[0].Tag()), http.StatusBadRequest)
			return false
		}
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *ReferralHandler) domainError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, referral.ErrNoActiveReferral), errors.Is(err, record.ErrPatientNotFound):
		code = http.StatusNotFound
	case errors.Is(err, referral.ErrInvalidTransition),
		errors.Is(err, selection.ErrFrozen),
		errors.Is(err, referral.ErrReferralChanged),
		errors.Is(err, workflow.ErrGenerationPending),
		errors.Is(err, workflow.ErrNotesPending):
		code = http.StatusConflict
	case errors.Is(err, selection.ErrUnknownCategory):
		code = http.StatusBadRequest
	case errors.Is(err, workflow.ErrNoRenderer), errors.Is(err, export.ErrNoFont),
		errors.Is(err, referral.ErrStateUnavailable):
		code = http.StatusServiceUnavailable
	}

	if code == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
	}
	h.jsonError(w, err.Error(), code)
}

func (h *ReferralHandler) jsonResponse(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (h *ReferralHandler) jsonError(w http.ResponseWriter, message string, code int) {
	h.jsonResponse(w, code, map[string]string{"error": message})
}
